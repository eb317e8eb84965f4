// Package market runs the transactional lifecycle of offers, orders, consents,
// deliveries, settlements, resources, leases and the usage ledger.
package market

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/clock"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/keys"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/tokens"
	"github.com/LavaJover/shvark-market-service/internal/usecase/audit"
	marketdto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/market"
	"github.com/LavaJover/shvark-market-service/internal/usecase/revocation"
)

type MarketUsecase interface {
	CreateOffer(ctx context.Context, in *marketdto.CreateOfferInput) (*domain.Offer, error)
	PublishOffer(ctx context.Context, in *marketdto.EntityActionInput) (*domain.Offer, error)
	UpdateOffer(ctx context.Context, in *marketdto.UpdateOfferInput) (*domain.Offer, error)
	CloseOffer(ctx context.Context, in *marketdto.EntityActionInput) (*domain.Offer, error)
	GetOffer(ctx context.Context, offerID string) (*domain.Offer, error)
	ListOffers(ctx context.Context, in *marketdto.ListOffersInput) ([]*domain.Offer, error)

	PublishResource(ctx context.Context, in *marketdto.PublishResourceInput) (*marketdto.PublishResourceOutput, error)
	UnpublishResource(ctx context.Context, in *marketdto.EntityActionInput) (*domain.Resource, error)
	GetResource(ctx context.Context, resourceID string) (*domain.Resource, error)
	ListResources(ctx context.Context, in *marketdto.ListResourcesInput) ([]*domain.Resource, error)
	ResourceIndex(ctx context.Context) (*marketdto.ResourceIndex, error)

	CreateOrder(ctx context.Context, in *marketdto.CreateOrderInput) (*domain.Order, error)
	CancelOrder(ctx context.Context, in *marketdto.EntityActionInput) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, in *marketdto.ListOrdersInput) ([]*domain.Order, error)

	LockSettlement(ctx context.Context, in *marketdto.LockSettlementInput) (*domain.Settlement, error)
	ReleaseSettlement(ctx context.Context, in *marketdto.ReleaseSettlementInput) (*domain.Settlement, error)
	RefundSettlement(ctx context.Context, in *marketdto.RefundSettlementInput) (*domain.Settlement, error)
	SettlementStatus(ctx context.Context, orderID string) (*domain.Settlement, error)

	GrantConsent(ctx context.Context, in *marketdto.GrantConsentInput) (*domain.Consent, error)
	RevokeConsent(ctx context.Context, in *marketdto.RevokeConsentInput) (*marketdto.RevokeConsentOutput, error)

	IssueDelivery(ctx context.Context, in *marketdto.IssueDeliveryInput) (*domain.Delivery, error)
	CompleteDelivery(ctx context.Context, in *marketdto.EntityActionInput) (*domain.Delivery, error)
	RevokeDelivery(ctx context.Context, in *marketdto.EntityActionInput) (*marketdto.RevokeDeliveryOutput, error)
	GetDelivery(ctx context.Context, deliveryID string) (*domain.Delivery, error)
	DeliveryPayload(ctx context.Context, in *marketdto.EntityActionInput) (*domain.DeliveryPayload, error)

	IssueLease(ctx context.Context, in *marketdto.IssueLeaseInput) (*marketdto.IssueLeaseOutput, error)
	RevokeLease(ctx context.Context, in *marketdto.EntityActionInput) (*marketdto.RevokeLeaseOutput, error)
	ExpireLeases(ctx context.Context, in *marketdto.ExpireLeasesInput) (*marketdto.ExpireLeasesReport, error)
	GetLease(ctx context.Context, leaseID string) (*domain.Lease, error)
	ListLeases(ctx context.Context, in *marketdto.ListLeasesInput) ([]*domain.Lease, error)

	AppendLedger(ctx context.Context, in *marketdto.AppendLedgerInput) (*domain.LedgerEntry, error)
	ListLedger(ctx context.Context, in *marketdto.ListLedgerInput) ([]*domain.LedgerEntry, error)
	SummarizeLedger(ctx context.Context, in *marketdto.ListLedgerInput) (*domain.LedgerSummary, error)

	StatusSnapshot(ctx context.Context) (*marketdto.StatusSnapshot, error)
	Reputation(ctx context.Context, in *marketdto.ReputationInput) (*marketdto.Reputation, error)
	Trace(ctx context.Context, in *marketdto.TraceInput) (*marketdto.Trace, error)
	Repair(ctx context.Context, limit int) (*marketdto.RepairReport, error)
}

type SettlementMode string

const (
	SettlementContract   SettlementMode = "contract"
	SettlementAnchorOnly SettlementMode = "anchor_only"
)

type Config struct {
	SettlementMode SettlementMode
	// TokenAddress is the default escrow token when a lock request names none.
	TokenAddress  string
	EscrowTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.SettlementMode == "" {
		c.SettlementMode = SettlementAnchorOnly
	}
	if c.EscrowTimeout <= 0 {
		c.EscrowTimeout = 10 * time.Second
	}
	return c
}

type DefaultMarketUsecase struct {
	Store       domain.Store
	Recorder    *audit.Recorder
	Revocations *revocation.Service
	// Escrow is only called in contract mode.
	Escrow   domain.EscrowService
	Verifier domain.SignatureVerifier
	// Payloads is optional; without it payloads are kept inline.
	Payloads domain.PayloadStore
	Tokens   tokens.Issuer
	Signer   *keys.Signer
	Metrics  *metrics.MarketMetrics
	Clock    clock.Clock
	Logger   *slog.Logger
	Config   Config
}

func NewDefaultMarketUsecase(
	store domain.Store,
	recorder *audit.Recorder,
	revocations *revocation.Service,
	escrow domain.EscrowService,
	verifier domain.SignatureVerifier,
	payloads domain.PayloadStore,
	issuer tokens.Issuer,
	signer *keys.Signer,
	marketMetrics *metrics.MarketMetrics,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *DefaultMarketUsecase {
	if issuer == nil {
		issuer = tokens.OpaqueIssuer{}
	}
	return &DefaultMarketUsecase{
		Store:       store,
		Recorder:    recorder,
		Revocations: revocations,
		Escrow:      escrow,
		Verifier:    verifier,
		Payloads:    payloads,
		Tokens:      issuer,
		Signer:      signer,
		Metrics:     marketMetrics,
		Clock:       clk,
		Logger:      logger,
		Config:      cfg.withDefaults(),
	}
}

// finish normalizes the error of an exported operation and records its outcome.
func (uc *DefaultMarketUsecase) finish(op string, start time.Time, errp *error) {
	domain.NormalizeError(errp)
	uc.Metrics.ObserveOperation(op, start, *errp)
	if *errp != nil && domain.KindOf(*errp) == domain.KindInternal {
		uc.Logger.Error("market operation failed", "operation", op, "error", *errp, "cause", errors.Unwrap(*errp))
	}
}

// record appends an audit event after the owning transaction committed. With an
// anchorID the hash is anchored first. Failures are logged only.
func (uc *DefaultMarketUsecase) record(ctx context.Context, e audit.Entry, anchorID string) {
	var err error
	if anchorID != "" {
		_, err = uc.Recorder.RecordWithAnchor(ctx, e, anchorID)
	} else {
		_, err = uc.Recorder.Record(ctx, e)
	}
	if err != nil {
		uc.Logger.Error("failed to record audit event", "kind", e.Kind, "ref_id", e.RefID, "error", err)
	}
}

func (uc *DefaultMarketUsecase) contractMode() bool {
	return uc.Config.SettlementMode == SettlementContract && uc.Escrow != nil
}

func requireActor(actorID, expected, role string) error {
	if !domain.SameActor(actorID, expected) {
		return domain.Forbidden("actorId does not match %s", role)
	}
	return nil
}

func outcome(deliveryID string, res revocation.Result) marketdto.RevocationOutcome {
	out := marketdto.RevocationOutcome{DeliveryID: deliveryID, OK: res.OK, Error: res.Error}
	if res.Job != nil {
		out.JobID = res.Job.JobID
	}
	return out
}

func revocationDetails(out marketdto.RevocationOutcome) map[string]any {
	details := map[string]any{"revokeOk": out.OK}
	if out.Error != "" {
		details["revokeError"] = out.Error
	}
	if out.JobID != "" {
		details["revocationJobId"] = out.JobID
	}
	return details
}
