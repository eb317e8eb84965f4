package dispute

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/clock"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/filestore"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-market-service/internal/usecase/audit"
	disputedto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/dispute"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	buyer  = "0x00000000000000000000000000000000000000b1"
	seller = "0x00000000000000000000000000000000000000c1"
)

type escrowStub struct {
	mu    sync.Mutex
	calls []string
}

func (e *escrowStub) record(op string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, op)
	return "0x" + op, nil
}

func (e *escrowStub) Lock(context.Context, domain.EscrowRequest) (string, error) {
	return e.record("lock")
}

func (e *escrowStub) Release(context.Context, domain.EscrowRequest) (string, error) {
	return e.record("release")
}

func (e *escrowStub) Refund(context.Context, domain.EscrowRequest) (string, error) {
	return e.record("refund")
}

type fixture struct {
	uc     *DefaultDisputeUsecase
	store  *filestore.Store
	clock  *clock.Fake
	escrow *escrowStub
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	store, err := filestore.Open(t.TempDir())
	require.NoError(t, err)
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewMarketMetrics(prometheus.NewRegistry())
	recorder := audit.NewRecorder(store, clk, logger, audit.WithMetrics(m))
	escrow := &escrowStub{}
	return &fixture{
		uc:     NewDefaultDisputeUsecase(store, recorder, escrow, m, clk, logger, cfg),
		store:  store,
		clock:  clk,
		escrow: escrow,
	}
}

// seedOrder stores an offer and an order in the given status, plus a locked settlement
// when amount is set.
func (f *fixture) seedOrder(t *testing.T, orderID string, status domain.OrderStatus, amount string) {
	t.Helper()
	ctx := context.Background()
	now := f.clock.Now()
	require.NoError(t, f.store.RunInTransaction(ctx, func(tx domain.Repository) error {
		if err := tx.SaveOffer(ctx, &domain.Offer{
			OfferID:      "offer-" + orderID,
			SellerID:     seller,
			AssetID:      "dataset-1",
			AssetType:    "data",
			Price:        "10",
			Currency:     "USD",
			DeliveryType: domain.DeliveryDownload,
			Status:       domain.OfferPublished,
			CreatedAt:    now,
			UpdatedAt:    now,
		}); err != nil {
			return err
		}
		if err := tx.SaveOrder(ctx, &domain.Order{
			OrderID:   orderID,
			OfferID:   "offer-" + orderID,
			BuyerID:   buyer,
			Quantity:  1,
			OrderHash: "0xorder",
			Status:    status,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return err
		}
		if amount == "" {
			return nil
		}
		return tx.SaveSettlement(ctx, &domain.Settlement{
			SettlementID: "settlement-" + orderID,
			OrderID:      orderID,
			Payer:        buyer,
			Amount:       amount,
			Status:       domain.SettlementLocked,
			LockedAt:     now,
			UpdatedAt:    now,
		})
	}))
}

func (f *fixture) open(t *testing.T, orderID, actor string) *domain.Dispute {
	t.Helper()
	d, err := f.uc.Open(context.Background(), &disputedto.OpenDisputeInput{ActorID: actor, OrderID: orderID, Reason: "data was incomplete"})
	require.NoError(t, err)
	return d
}

func TestSplitResolutionIsStable(t *testing.T) {
	f := newFixture(t, Config{MaxEvidencePerParty: 2})
	ctx := context.Background()
	f.seedOrder(t, "O1", domain.OrderDeliveryReady, "")

	d := f.open(t, "O1", buyer)
	assert.Equal(t, domain.DisputeOpened, d.Status)
	assert.Equal(t, seller, d.RespondentActorID)
	assert.Equal(t, f.clock.Now().Add(time.Hour*24*7), d.ExpiresAt)

	for _, party := range []string{buyer, seller} {
		for i := 0; i < 2; i++ {
			out, err := f.uc.SubmitEvidence(ctx, &disputedto.SubmitEvidenceInput{
				ActorID: party,
				Ref:     disputedto.Ref{DisputeID: d.DisputeID},
				Summary: "log excerpt",
				CID:     "bafy-evidence",
			})
			require.NoError(t, err)
			assert.Equal(t, domain.DisputeEvidenceSubmitted, out.Dispute.Status)
			assert.NotEmpty(t, out.Evidence.Hash)
		}
	}
	_, err := f.uc.SubmitEvidence(ctx, &disputedto.SubmitEvidenceInput{
		ActorID: buyer,
		Ref:     disputedto.Ref{OrderID: "O1"},
		Summary: "one more",
	})
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)

	out, err := f.uc.Resolve(ctx, &disputedto.ResolveDisputeInput{
		ActorID:      "0xarbiter",
		Ref:          disputedto.Ref{DisputeID: d.DisputeID},
		Ruling:       domain.RulingSplit,
		Reason:       "partial delivery",
		RefundAmount: "2.5",
	})
	require.NoError(t, err)
	assert.Nil(t, out.Settlement)
	assert.Equal(t, domain.DisputeResolved, out.Dispute.Status)
	require.NotNil(t, out.Dispute.Resolution)
	assert.Equal(t, "2.5", out.Dispute.Resolution.RefundAmount)
	assert.Equal(t, domain.RulingSplit, out.Dispute.Resolution.Ruling)

	first, err := f.uc.Get(ctx, disputedto.Ref{DisputeID: d.DisputeID})
	require.NoError(t, err)
	second, err := f.uc.Get(ctx, disputedto.Ref{OrderID: "O1"})
	require.NoError(t, err)
	assert.Equal(t, out.Dispute.Resolution, first.Resolution)
	assert.Equal(t, first, second)
	assert.Len(t, first.Evidence, 4)

	_, err = f.uc.SubmitEvidence(ctx, &disputedto.SubmitEvidenceInput{ActorID: seller, Ref: disputedto.Ref{DisputeID: d.DisputeID}, Summary: "late"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestSecondDisputeConflicts(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.seedOrder(t, "O1", domain.OrderDeliveryReady, "")
	original := f.open(t, "O1", buyer)

	_, err := f.uc.Open(ctx, &disputedto.OpenDisputeInput{ActorID: seller, OrderID: "O1", Reason: "counter claim"})
	require.ErrorIs(t, err, domain.ErrConflict)
	var tagged *domain.Error
	require.ErrorAs(t, err, &tagged)
	assert.Equal(t, original.DisputeID, tagged.Details["disputeId"])

	after, err := f.uc.Get(ctx, disputedto.Ref{DisputeID: original.DisputeID})
	require.NoError(t, err)
	assert.Equal(t, original.Status, after.Status)
	assert.Equal(t, original.DisputeHash, after.DisputeHash)
	assert.True(t, original.UpdatedAt.Equal(after.UpdatedAt))
	all, err := f.uc.List(ctx, &disputedto.ListDisputesInput{OrderID: "O1"})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestOpenAfterRejection(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.seedOrder(t, "O1", domain.OrderDeliveryReady, "")
	first := f.open(t, "O1", seller)
	assert.Equal(t, buyer, first.RespondentActorID)

	rejected, err := f.uc.Reject(ctx, &disputedto.RejectDisputeInput{ActorID: "0xarbiter", Ref: disputedto.Ref{OrderID: "O1"}, Reason: "no grounds"})
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeRejected, rejected.Status)

	f.clock.Advance(time.Minute)
	second := f.open(t, "O1", buyer)
	assert.NotEqual(t, first.DisputeID, second.DisputeID)
	latest, err := f.uc.Get(ctx, disputedto.Ref{OrderID: "O1"})
	require.NoError(t, err)
	assert.Equal(t, second.DisputeID, latest.DisputeID)
}

func TestOnlyPartiesMayParticipate(t *testing.T) {
	f := newFixture(t, Config{Arbiters: []string{"0xarbiter"}})
	ctx := context.Background()
	f.seedOrder(t, "O1", domain.OrderDeliveryReady, "")

	_, err := f.uc.Open(ctx, &disputedto.OpenDisputeInput{ActorID: "0xstranger", OrderID: "O1", Reason: "x"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.uc.Open(ctx, &disputedto.OpenDisputeInput{OrderID: "O1", Reason: "x"})
	assert.ErrorIs(t, err, domain.ErrAuthRequired)

	d := f.open(t, "O1", buyer)
	_, err = f.uc.SubmitEvidence(ctx, &disputedto.SubmitEvidenceInput{ActorID: "0xstranger", Ref: disputedto.Ref{DisputeID: d.DisputeID}, Summary: "x"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.uc.Resolve(ctx, &disputedto.ResolveDisputeInput{ActorID: buyer, Ref: disputedto.Ref{DisputeID: d.DisputeID}, Ruling: domain.RulingConsumerWins})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.uc.Resolve(ctx, &disputedto.ResolveDisputeInput{ActorID: "0xarbiter", Ref: disputedto.Ref{DisputeID: d.DisputeID}, Ruling: domain.RulingTimeout})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = f.uc.Get(ctx, disputedto.Ref{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestRulingsSettleLockedFunds(t *testing.T) {
	f := newFixture(t, Config{ContractSettlement: true})
	ctx := context.Background()
	f.seedOrder(t, "O-release", domain.OrderDeliveryCompleted, "25")
	f.seedOrder(t, "O-refund", domain.OrderPaymentLocked, "25")

	released := f.open(t, "O-release", seller)
	_, err := f.uc.Resolve(ctx, &disputedto.ResolveDisputeInput{
		ActorID:      "0xarbiter",
		Ref:          disputedto.Ref{DisputeID: released.DisputeID},
		Ruling:       domain.RulingProviderWins,
		RefundAmount: "30",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	out, err := f.uc.Resolve(ctx, &disputedto.ResolveDisputeInput{
		ActorID: "0xarbiter",
		Ref:     disputedto.Ref{DisputeID: released.DisputeID},
		Ruling:  domain.RulingProviderWins,
	})
	require.NoError(t, err)
	require.NotNil(t, out.Settlement)
	assert.Equal(t, domain.SettlementReleased, out.Settlement.Status)
	assert.Equal(t, []domain.Payee{{Address: seller, Amount: "25"}}, out.Settlement.Payees)
	assert.Equal(t, "0xrelease", out.Settlement.ReleaseTxHash)
	order, err := f.store.GetOrder(ctx, "O-release")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderSettlementCompleted, order.Status)

	refunded := f.open(t, "O-refund", buyer)
	out, err = f.uc.Resolve(ctx, &disputedto.ResolveDisputeInput{
		ActorID: "0xarbiter",
		Ref:     disputedto.Ref{DisputeID: refunded.DisputeID},
		Ruling:  domain.RulingConsumerWins,
	})
	require.NoError(t, err)
	require.NotNil(t, out.Settlement)
	assert.Equal(t, domain.SettlementRefunded, out.Settlement.Status)
	order, err = f.store.GetOrder(ctx, "O-refund")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderSettlementCancelled, order.Status)
	assert.Equal(t, []string{"release", "refund"}, f.escrow.calls)
}

func TestExpireStaleDisputes(t *testing.T) {
	f := newFixture(t, Config{Timeout: time.Hour})
	ctx := context.Background()
	f.seedOrder(t, "O1", domain.OrderDeliveryReady, "25")
	f.seedOrder(t, "O2", domain.OrderDeliveryReady, "")
	stale := f.open(t, "O1", buyer)
	f.clock.Advance(30 * time.Minute)
	fresh := f.open(t, "O2", buyer)
	f.clock.Advance(45 * time.Minute)

	report, err := f.uc.ExpireStale(ctx, &disputedto.ExpireStaleInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Expired)

	d, err := f.uc.Get(ctx, disputedto.Ref{DisputeID: stale.DisputeID})
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeExpired, d.Status)
	require.NotNil(t, d.Resolution)
	assert.Equal(t, domain.RulingTimeout, d.Resolution.Ruling)
	settlement, err := f.store.GetSettlementByOrder(ctx, "O1")
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementLocked, settlement.Status)

	d, err = f.uc.Get(ctx, disputedto.Ref{DisputeID: fresh.DisputeID})
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeOpened, d.Status)

	_, err = f.uc.Resolve(ctx, &disputedto.ResolveDisputeInput{ActorID: "0xarbiter", Ref: disputedto.Ref{DisputeID: stale.DisputeID}, Ruling: domain.RulingSplit})
	assert.ErrorIs(t, err, domain.ErrConflict)
}
