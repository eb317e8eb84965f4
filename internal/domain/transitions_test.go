package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSelfLoops[S ~string](t *testing.T, name string, table Table[S]) {
	t.Helper()
	for from, targets := range table {
		assert.False(t, table.Can(from, from), "%s: %s must not move to itself", name, from)
		for _, to := range targets {
			assert.NotEqual(t, from, to, "%s: table lists a self edge on %s", name, from)
			_, known := table[to]
			assert.True(t, known, "%s: target %s is not a known status", name, to)
		}
	}
}

func TestTablesHaveNoSelfTransitions(t *testing.T) {
	noSelfLoops(t, "offer", OfferTransitions)
	noSelfLoops(t, "order", OrderTransitions)
	noSelfLoops(t, "consent", ConsentTransitions)
	noSelfLoops(t, "delivery", DeliveryTransitions)
	noSelfLoops(t, "settlement", SettlementTransitions)
	noSelfLoops(t, "resource", ResourceTransitions)
	noSelfLoops(t, "lease", LeaseTransitions)
	noSelfLoops(t, "dispute", DisputeTransitions)
	noSelfLoops(t, "bridge", BridgeTransitions)
}

func TestBridgeTransitions(t *testing.T) {
	assert.True(t, BridgeTransitions.Can(BridgeRequested, BridgeInFlight))
	assert.True(t, BridgeTransitions.Can(BridgeInFlight, BridgeCompleted))
	assert.False(t, BridgeTransitions.Can(BridgeRequested, BridgeCompleted))
	assert.True(t, BridgeTransitions.Terminal(BridgeCompleted))

	// failed -> requested is the only way out of failed
	for _, to := range []BridgeStatus{BridgeInFlight, BridgeCompleted, BridgeFailed} {
		assert.False(t, BridgeTransitions.Can(BridgeFailed, to), "failed -> %s", to)
	}
	assert.True(t, BridgeTransitions.Can(BridgeFailed, BridgeRequested))
}

func TestOrderHappyPath(t *testing.T) {
	path := []OrderStatus{
		OrderCreated, OrderPaymentLocked, OrderConsentGranted,
		OrderDeliveryReady, OrderDeliveryCompleted, OrderSettlementCompleted,
	}
	for i := 1; i < len(path); i++ {
		assert.True(t, OrderTransitions.Can(path[i-1], path[i]), "%s -> %s", path[i-1], path[i])
	}
	assert.False(t, OrderTransitions.Can(OrderCreated, OrderDeliveryReady))
	assert.True(t, OrderTransitions.Terminal(OrderSettlementCompleted))
	assert.True(t, OrderTransitions.Terminal(OrderSettlementCancelled))
}

func TestCheckReturnsConflict(t *testing.T) {
	err := SettlementTransitions.Check(EntitySettlement, SettlementReleased, SettlementRefunded)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
	assert.Equal(t, KindConflict, KindOf(err))

	var tagged *Error
	require.ErrorAs(t, err, &tagged)
	assert.Equal(t, "settlement_released", tagged.Details["from"])

	assert.NoError(t, SettlementTransitions.Check(EntitySettlement, SettlementLocked, SettlementRefunded))
}

func TestUnknownStatusCannotMove(t *testing.T) {
	assert.False(t, LeaseTransitions.Can(LeaseStatus("lease_unknown"), LeaseActive))
	assert.True(t, LeaseTransitions.Terminal(LeaseStatus("lease_unknown")))
}
