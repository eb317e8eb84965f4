// Package storetest holds the behaviour every domain.Store backend must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. The caller's cleanup closes it.
type Factory func(t *testing.T) domain.Store

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(offset time.Duration) time.Time { return base.Add(offset) }

func Run(t *testing.T, open Factory) {
	cases := map[string]func(t *testing.T, s domain.Store){
		"offers round trip and filter":        testOffers,
		"orders filter by buyer":              testOrders,
		"missing entities are not found":      testNotFound,
		"consent by order picks latest grant": testConsentByOrder,
		"delivery payload xor ref":            testDeliveryPayload,
		"settlement by order":                 testSettlementByOrder,
		"resources filter by tag":             testResources,
		"leases expire before":                testLeases,
		"ledger window and order":             testLedger,
		"disputes newest first":               testDisputes,
		"revocation jobs due and remove":      testRevocationJobs,
		"bridge transfers":                    testBridgeTransfers,
		"audit reads last n":                  testAudit,
		"transaction commits together":        testTransactionCommit,
		"transaction rolls back together":     testTransactionRollback,
		"stored values are not aliased":       testNoAliasing,
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			tc(t, open(t))
		})
	}
}

func offer(id, seller string, created time.Time) *domain.Offer {
	return &domain.Offer{
		OfferID:      id,
		SellerID:     seller,
		AssetID:      "asset-" + id,
		AssetType:    "dataset",
		AssetMeta:    map[string]string{"format": "csv"},
		Price:        "10",
		Currency:     "USDC",
		UsageScope:   domain.UsageScope{Purpose: "research", DurationDays: 30},
		DeliveryType: domain.DeliveryAPI,
		Status:       domain.OfferCreated,
		OfferHash:    "0xoffer" + id,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func order(id, offerID, buyer string, created time.Time) *domain.Order {
	return &domain.Order{
		OrderID:   id,
		OfferID:   offerID,
		BuyerID:   buyer,
		Quantity:  1,
		Status:    domain.OrderCreated,
		OrderHash: "0xorder" + id,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func testOffers(t *testing.T, s domain.Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveOffer(ctx, offer("o2", "seller-a", at(2*time.Minute))))
	require.NoError(t, s.SaveOffer(ctx, offer("o1", "seller-a", at(time.Minute))))
	require.NoError(t, s.SaveOffer(ctx, offer("o3", "seller-b", at(3*time.Minute))))

	got, err := s.GetOffer(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "seller-a", got.SellerID)
	assert.Equal(t, "csv", got.AssetMeta["format"])
	assert.Equal(t, 30, got.UsageScope.DurationDays)
	assert.True(t, got.CreatedAt.Equal(at(time.Minute)))

	list, err := s.ListOffers(ctx, domain.OfferFilter{SellerID: "seller-a"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "o1", list[0].OfferID)
	assert.Equal(t, "o2", list[1].OfferID)

	got.Status = domain.OfferPublished
	require.NoError(t, s.SaveOffer(ctx, got))
	published, err := s.ListOffers(ctx, domain.OfferFilter{Status: domain.OfferPublished})
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, "o1", published[0].OfferID)

	limited, err := s.ListOffers(ctx, domain.OfferFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func testOrders(t *testing.T, s domain.Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveOrder(ctx, order("r1", "o1", "0xAbC0000000000000000000000000000000000001", at(0))))
	require.NoError(t, s.SaveOrder(ctx, order("r2", "o1", "buyer-b", at(time.Second))))

	list, err := s.ListOrders(ctx, domain.OrderFilter{BuyerID: "0xabc0000000000000000000000000000000000001"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "r1", list[0].OrderID)

	byOffer, err := s.ListOrders(ctx, domain.OrderFilter{OfferID: "o1"})
	require.NoError(t, err)
	assert.Len(t, byOffer, 2)
}

func testNotFound(t *testing.T, s domain.Store) {
	ctx := context.Background()
	_, err := s.GetOffer(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetConsentByOrder(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetSettlementByOrder(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetLease(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetDispute(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetRevocationJob(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetBridgeTransfer(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testConsentByOrder(t *testing.T, s domain.Store) {
	ctx := context.Background()
	revokedAt := at(time.Hour)
	older := &domain.Consent{
		ConsentID: "c1", OrderID: "r1", BuyerID: "buyer", Status: domain.ConsentRevoked,
		Scope: domain.ConsentScope{Purpose: "research"}, GrantedAt: at(0), RevokedAt: &revokedAt,
	}
	newer := &domain.Consent{
		ConsentID: "c2", OrderID: "r1", BuyerID: "buyer", Status: domain.ConsentGranted,
		Scope: domain.ConsentScope{Purpose: "research"}, GrantedAt: at(2 * time.Hour),
	}
	require.NoError(t, s.SaveConsent(ctx, older))
	require.NoError(t, s.SaveConsent(ctx, newer))

	got, err := s.GetConsentByOrder(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "c2", got.ConsentID)

	first, err := s.GetConsent(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, first.RevokedAt)
	assert.True(t, first.RevokedAt.Equal(revokedAt))
}

func testDeliveryPayload(t *testing.T, s domain.Store) {
	ctx := context.Background()
	both := &domain.Delivery{
		DeliveryID: "d0", OrderID: "r1", DeliveryType: domain.DeliveryAPI,
		Payload:    &domain.DeliveryPayload{AccessToken: "tok_x"},
		PayloadRef: &domain.PayloadRef{Store: "file", Ref: "abc"},
		Status:     domain.DeliveryReady, IssuedAt: at(0),
	}
	assert.ErrorIs(t, s.SaveDelivery(ctx, both), domain.ErrInvalidArgument)

	inline := &domain.Delivery{
		DeliveryID: "d1", OrderID: "r1", DeliveryType: domain.DeliveryAPI,
		Payload: &domain.DeliveryPayload{AccessToken: "tok_x", Quota: 5},
		Status:  domain.DeliveryReady, IssuedAt: at(time.Second),
	}
	byRef := &domain.Delivery{
		DeliveryID: "d2", OrderID: "r1", DeliveryType: domain.DeliveryDownload,
		PayloadRef: &domain.PayloadRef{Store: "file", Ref: "abc"},
		Status:     domain.DeliveryReady, IssuedAt: at(0),
	}
	require.NoError(t, s.SaveDelivery(ctx, inline))
	require.NoError(t, s.SaveDelivery(ctx, byRef))

	got, err := s.GetDelivery(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, got.Payload)
	assert.Equal(t, int64(5), got.Payload.Quota)
	assert.Nil(t, got.PayloadRef)

	list, err := s.ListDeliveries(ctx, domain.DeliveryFilter{OrderID: "r1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "d2", list[0].DeliveryID)
}

func testSettlementByOrder(t *testing.T, s domain.Store) {
	ctx := context.Background()
	refunded := at(time.Minute)
	require.NoError(t, s.SaveSettlement(ctx, &domain.Settlement{
		SettlementID: "s1", OrderID: "r1", Payer: "buyer", Amount: "10",
		Status: domain.SettlementRefunded, LockedAt: at(0), RefundedAt: &refunded, UpdatedAt: refunded,
	}))
	require.NoError(t, s.SaveSettlement(ctx, &domain.Settlement{
		SettlementID: "s2", OrderID: "r1", Payer: "buyer", Amount: "10",
		Status: domain.SettlementLocked, LockedAt: at(2 * time.Minute), UpdatedAt: at(2 * time.Minute),
		Payees: []domain.Payee{{Address: "seller", Amount: "10"}},
	}))

	got, err := s.GetSettlementByOrder(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "s2", got.SettlementID)
	require.Len(t, got.Payees, 1)
	assert.Equal(t, "seller", got.Payees[0].Address)

	locked, err := s.ListSettlements(ctx, domain.SettlementFilter{Status: domain.SettlementLocked})
	require.NoError(t, err)
	require.Len(t, locked, 1)
	assert.Equal(t, "s2", locked[0].SettlementID)
}

func testResources(t *testing.T, s domain.Store) {
	ctx := context.Background()
	for i, tags := range [][]string{{"llm", "fast"}, {"llm"}, {"index"}} {
		require.NoError(t, s.SaveResource(ctx, &domain.Resource{
			ResourceID:      fmt.Sprintf("res%d", i),
			Kind:            domain.ResourceModel,
			ProviderActorID: "provider",
			OfferID:         "o1",
			Label:           "model",
			Tags:            tags,
			Price:           domain.ResourcePrice{Unit: "token", Amount: "10", Currency: "USDC"},
			Status:          domain.ResourcePublished,
			Version:         1,
			CreatedAt:       at(time.Duration(i) * time.Second),
			UpdatedAt:       at(time.Duration(i) * time.Second),
		}))
	}
	llm, err := s.ListResources(ctx, domain.ResourceFilter{Tag: "llm"})
	require.NoError(t, err)
	require.Len(t, llm, 2)
	assert.Equal(t, "res0", llm[0].ResourceID)
	assert.Equal(t, "res1", llm[1].ResourceID)

	none, err := s.ListResources(ctx, domain.ResourceFilter{Kind: domain.ResourceSearch})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testLeases(t *testing.T, s domain.Store) {
	ctx := context.Background()
	for i, exp := range []time.Duration{time.Minute, 2 * time.Minute, 3 * time.Minute} {
		require.NoError(t, s.SaveLease(ctx, &domain.Lease{
			LeaseID:         fmt.Sprintf("l%d", i),
			ResourceID:      "res0",
			Kind:            domain.ResourceModel,
			ProviderActorID: "provider",
			ConsumerActorID: "consumer",
			AccessTokenHash: "sha256:x",
			Status:          domain.LeaseActive,
			IssuedAt:        at(0),
			ExpiresAt:       at(exp),
		}))
	}
	cutoff := at(2 * time.Minute)
	due, err := s.ListLeases(ctx, domain.LeaseFilter{Status: domain.LeaseActive, ExpiresBefore: &cutoff})
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "l0", due[0].LeaseID)
	assert.Equal(t, "l1", due[1].LeaseID)
}

func testLedger(t *testing.T, s domain.Store) {
	ctx := context.Background()
	for i, ts := range []time.Duration{0, time.Minute, time.Minute, 2 * time.Minute} {
		require.NoError(t, s.AppendLedger(ctx, &domain.LedgerEntry{
			LedgerID:        fmt.Sprintf("e%d", i),
			Timestamp:       at(ts),
			LeaseID:         "l0",
			ResourceID:      "res0",
			Kind:            domain.ResourceModel,
			ProviderActorID: "provider",
			ConsumerActorID: "consumer",
			Unit:            domain.UnitToken,
			Quantity:        "42",
			Cost:            "420",
			Currency:        "USDC",
			EntryHash:       "0xentry",
		}))
	}
	since, until := at(time.Minute), at(time.Minute)
	window, err := s.ListLedger(ctx, domain.LedgerFilter{LeaseID: "l0", Since: &since, Until: &until})
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, "e1", window[0].LedgerID)
	assert.Equal(t, "e2", window[1].LedgerID)
	assert.Equal(t, "420", window[0].Cost)

	all, err := s.ListLedger(ctx, domain.LedgerFilter{ConsumerActorID: "consumer", Limit: 3})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "e0", all[0].LedgerID)
}

func testDisputes(t *testing.T, s domain.Store) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.SaveDispute(ctx, &domain.Dispute{
			DisputeID:         fmt.Sprintf("dp%d", i),
			OrderID:           fmt.Sprintf("r%d", i),
			InitiatorActorID:  "buyer",
			RespondentActorID: "seller",
			Reason:            "bad data",
			Status:            domain.DisputeOpened,
			Evidence: []domain.DisputeEvidence{
				{EvidenceID: "ev", ActorID: "buyer", Summary: "s", Hash: "0xh", SubmittedAt: at(0)},
			},
			OpenedAt:  at(0),
			ExpiresAt: at(time.Duration(i+1) * time.Hour),
			UpdatedAt: at(time.Duration(i) * time.Minute),
		}))
	}
	list, err := s.ListDisputes(ctx, domain.DisputeFilter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "dp2", list[0].DisputeID)
	assert.Equal(t, "dp0", list[2].DisputeID)
	require.Len(t, list[0].Evidence, 1)

	cutoff := at(2 * time.Hour)
	expiring, err := s.ListDisputes(ctx, domain.DisputeFilter{Status: domain.DisputeOpened, ExpiresBefore: &cutoff})
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, "dp0", expiring[0].DisputeID)

	got, err := s.GetDispute(ctx, "dp1")
	require.NoError(t, err)
	got.Status = domain.DisputeResolved
	got.Resolution = &domain.DisputeResolution{
		Ruling: domain.RulingSplit, Reason: "half", RefundAmount: "2.5", ResolvedBy: "arbiter", ResolvedAt: at(time.Hour),
	}
	require.NoError(t, s.SaveDispute(ctx, got))
	again, err := s.GetDispute(ctx, "dp1")
	require.NoError(t, err)
	require.NotNil(t, again.Resolution)
	assert.Equal(t, "2.5", again.Resolution.RefundAmount)
}

func testRevocationJobs(t *testing.T, s domain.Store) {
	ctx := context.Background()
	for i, next := range []time.Duration{time.Minute, 0, time.Hour} {
		require.NoError(t, s.SaveRevocationJob(ctx, &domain.RevocationJob{
			JobID:         fmt.Sprintf("j%d", i),
			DeliveryID:    "d1",
			Reason:        "consent revoked",
			PayloadHash:   "0xp",
			Status:        domain.RevocationPending,
			NextAttemptAt: at(next),
			CreatedAt:     at(0),
			UpdatedAt:     at(0),
		}))
	}
	now := at(time.Minute)
	due, err := s.ListRevocationJobs(ctx, domain.RevocationJobFilter{Status: domain.RevocationPending, DueBefore: &now})
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "j1", due[0].JobID)
	assert.Equal(t, "j0", due[1].JobID)

	require.NoError(t, s.RemoveRevocationJob(ctx, "j1"))
	require.NoError(t, s.RemoveRevocationJob(ctx, "j1"))
	_, err = s.GetRevocationJob(ctx, "j1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testBridgeTransfers(t *testing.T, s domain.Store) {
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		require.NoError(t, s.SaveBridgeTransfer(ctx, &domain.BridgeTransfer{
			BridgeID:    fmt.Sprintf("b%d", i),
			OrderID:     "r1",
			RouteID:     "ton-evm-usdc",
			FromChain:   "ton",
			ToChain:     "evm",
			AssetSymbol: "USDC",
			Amount:      "5",
			Status:      domain.BridgeRequested,
			RequestedAt: at(0),
			UpdatedAt:   at(time.Duration(i) * time.Minute),
		}))
	}
	list, err := s.ListBridgeTransfers(ctx, domain.BridgeTransferFilter{OrderID: "r1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b1", list[0].BridgeID)
}

func testAudit(t *testing.T, s domain.Store) {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendAuditEvent(ctx, &domain.AuditEvent{
			ID:        fmt.Sprintf("a%d", i),
			Kind:      domain.AuditOrderCreated,
			RefID:     "r1",
			Timestamp: at(time.Duration(i) * time.Second),
			Details:   map[string]any{"n": "v"},
		}))
	}
	last, err := s.ReadAuditEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "a3", last[0].ID)
	assert.Equal(t, "a4", last[1].ID)
	assert.Equal(t, "v", last[1].Details["n"])

	all, err := s.ReadAuditEvents(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func testTransactionCommit(t *testing.T, s domain.Store) {
	ctx := context.Background()
	err := s.RunInTransaction(ctx, func(tx domain.Repository) error {
		if err := tx.SaveOrder(ctx, order("r1", "o1", "buyer", at(0))); err != nil {
			return err
		}
		o, err := tx.GetOrder(ctx, "r1")
		if err != nil {
			return err
		}
		o.Status = domain.OrderPaymentLocked
		if err := tx.SaveOrder(ctx, o); err != nil {
			return err
		}
		return tx.AppendAuditEvent(ctx, &domain.AuditEvent{
			ID: "a1", Kind: domain.AuditPaymentLocked, RefID: "r1", Timestamp: at(0),
		})
	})
	require.NoError(t, err)

	got, err := s.GetOrder(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaymentLocked, got.Status)
	events, err := s.ReadAuditEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.AuditPaymentLocked, events[0].Kind)
}

func testTransactionRollback(t *testing.T, s domain.Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveOrder(ctx, order("r1", "o1", "buyer", at(0))))

	boom := errors.New("escrow unavailable")
	err := s.RunInTransaction(ctx, func(tx domain.Repository) error {
		o, err := tx.GetOrder(ctx, "r1")
		if err != nil {
			return err
		}
		o.Status = domain.OrderPaymentLocked
		if err := tx.SaveOrder(ctx, o); err != nil {
			return err
		}
		if err := tx.SaveSettlement(ctx, &domain.Settlement{
			SettlementID: "s1", OrderID: "r1", Payer: "buyer", Amount: "10",
			Status: domain.SettlementLocked, LockedAt: at(0), UpdatedAt: at(0),
		}); err != nil {
			return err
		}
		if err := tx.AppendLedger(ctx, &domain.LedgerEntry{
			LedgerID: "e1", Timestamp: at(0), LeaseID: "l1", Unit: domain.UnitCall, Quantity: "1", Cost: "1",
		}); err != nil {
			return err
		}
		if err := tx.AppendAuditEvent(ctx, &domain.AuditEvent{
			ID: "a1", Kind: domain.AuditPaymentLocked, RefID: "r1", Timestamp: at(0),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetOrder(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCreated, got.Status)
	_, err = s.GetSettlement(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	entries, err := s.ListLedger(ctx, domain.LedgerFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	events, err := s.ReadAuditEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func testNoAliasing(t *testing.T, s domain.Store) {
	ctx := context.Background()
	o := offer("o1", "seller", at(0))
	require.NoError(t, s.SaveOffer(ctx, o))
	o.AssetMeta["format"] = "parquet"
	o.Status = domain.OfferClosed

	got, err := s.GetOffer(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "csv", got.AssetMeta["format"])
	assert.Equal(t, domain.OfferCreated, got.Status)

	got.Price = "99"
	again, err := s.GetOffer(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "10", again.Price)
}
