package market

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/clock"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/filestore"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/keys"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/signature"
	"github.com/LavaJover/shvark-market-service/internal/usecase/audit"
	marketdto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/market"
	"github.com/LavaJover/shvark-market-service/internal/usecase/revocation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type actor struct {
	id  string
	key ed25519.PrivateKey
}

func newActor(t *testing.T) actor {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return actor{id: signature.Address(pub), key: priv}
}

type revoker struct {
	mu    sync.Mutex
	fail  bool
	calls []domain.RevocationRequest
}

func (r *revoker) Revoke(_ context.Context, req domain.RevocationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, req)
	if r.fail {
		return errors.New("revocation endpoint unavailable")
	}
	return nil
}

func (r *revoker) requests() []domain.RevocationRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.RevocationRequest(nil), r.calls...)
}

type fakeEscrow struct {
	mu    sync.Mutex
	fail  bool
	calls []string
}

func (e *fakeEscrow) do(op string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, op)
	if e.fail {
		return "", domain.Unavailable("escrow rejected %s", op)
	}
	return "0x" + op, nil
}

func (e *fakeEscrow) Lock(context.Context, domain.EscrowRequest) (string, error) {
	return e.do("lock")
}

func (e *fakeEscrow) Release(context.Context, domain.EscrowRequest) (string, error) {
	return e.do("release")
}

func (e *fakeEscrow) Refund(context.Context, domain.EscrowRequest) (string, error) {
	return e.do("refund")
}

type fixture struct {
	uc      *DefaultMarketUsecase
	store   *filestore.Store
	clock   *clock.Fake
	revoker *revoker
	escrow  *fakeEscrow
	seller  actor
	buyer   actor
}

type option func(*fixture, *DefaultMarketUsecase)

func withContractMode() option {
	return func(f *fixture, uc *DefaultMarketUsecase) {
		uc.Escrow = f.escrow
		uc.Config.SettlementMode = SettlementContract
	}
}

func withPayloads(p domain.PayloadStore) option {
	return func(_ *fixture, uc *DefaultMarketUsecase) { uc.Payloads = p }
}

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	store, err := filestore.Open(t.TempDir())
	require.NoError(t, err)
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	m := metrics.NewMarketMetrics(prometheus.NewRegistry())
	recorder := audit.NewRecorder(store, clk, quiet, audit.WithMetrics(m))
	rv := &revoker{}
	revocations := revocation.NewService(store, rv, recorder, m, clk, quiet, revocation.Config{MaxAttempts: 3})
	signer, err := keys.LoadOrCreate("", "", keys.DefaultWorkFactor, quiet)
	require.NoError(t, err)

	f := &fixture{
		store:   store,
		clock:   clk,
		revoker: rv,
		escrow:  &fakeEscrow{},
		seller:  newActor(t),
		buyer:   newActor(t),
	}
	f.uc = NewDefaultMarketUsecase(store, recorder, revocations, nil, signature.NewEd25519Verifier(),
		nil, nil, signer, m, clk, quiet, Config{})
	for _, opt := range opts {
		opt(f, f.uc)
	}
	return f
}

func (f *fixture) publishedOffer(t *testing.T, deliveryType domain.DeliveryType) *domain.Offer {
	t.Helper()
	ctx := context.Background()
	offer, err := f.uc.CreateOffer(ctx, &marketdto.CreateOfferInput{
		ActorID:      f.seller.id,
		AssetID:      "dataset-1",
		AssetType:    "data",
		Price:        "25",
		Currency:     "USD",
		UsageScope:   domain.UsageScope{Purpose: "research", DurationDays: 30},
		DeliveryType: deliveryType,
	})
	require.NoError(t, err)
	offer, err = f.uc.PublishOffer(ctx, &marketdto.EntityActionInput{ActorID: f.seller.id, ID: offer.OfferID})
	require.NoError(t, err)
	return offer
}

func (f *fixture) lockedOrder(t *testing.T, offer *domain.Offer) *domain.Order {
	t.Helper()
	ctx := context.Background()
	order, err := f.uc.CreateOrder(ctx, &marketdto.CreateOrderInput{ActorID: f.buyer.id, OfferID: offer.OfferID})
	require.NoError(t, err)
	_, err = f.uc.LockSettlement(ctx, &marketdto.LockSettlementInput{ActorID: f.buyer.id, OrderID: order.OrderID, Amount: "25"})
	require.NoError(t, err)
	order, err = f.uc.GetOrder(ctx, order.OrderID)
	require.NoError(t, err)
	return order
}

func (f *fixture) consentedOrder(t *testing.T, offer *domain.Offer) (*domain.Order, *domain.Consent) {
	t.Helper()
	order := f.lockedOrder(t, offer)
	scope := domain.ConsentScope{Purpose: "research", DurationDays: 7}
	message, err := ConsentMessage(order, scope)
	require.NoError(t, err)
	consent, err := f.uc.GrantConsent(context.Background(), &marketdto.GrantConsentInput{
		ActorID:   f.buyer.id,
		OrderID:   order.OrderID,
		Scope:     scope,
		Signature: signature.Sign(f.buyer.key, message),
	})
	require.NoError(t, err)
	return order, consent
}

func (f *fixture) auditKinds(t *testing.T) []domain.AuditKind {
	t.Helper()
	events, err := f.store.ReadAuditEvents(context.Background(), 1000)
	require.NoError(t, err)
	kinds := make([]domain.AuditKind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}
