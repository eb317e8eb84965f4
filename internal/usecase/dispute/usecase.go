// Package dispute runs the dispute process over an order: opening, evidence from both
// parties, arbitration and the timeout sweep.
package dispute

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/canonical"
	"github.com/LavaJover/shvark-market-service/internal/clock"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-market-service/internal/usecase/audit"
	disputedto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/dispute"
	"github.com/jaevor/go-nanoid"
)

type DisputeUsecase interface {
	Open(ctx context.Context, in *disputedto.OpenDisputeInput) (*domain.Dispute, error)
	SubmitEvidence(ctx context.Context, in *disputedto.SubmitEvidenceInput) (*disputedto.SubmitEvidenceOutput, error)
	Resolve(ctx context.Context, in *disputedto.ResolveDisputeInput) (*disputedto.ResolveDisputeOutput, error)
	Reject(ctx context.Context, in *disputedto.RejectDisputeInput) (*domain.Dispute, error)
	Get(ctx context.Context, ref disputedto.Ref) (*domain.Dispute, error)
	List(ctx context.Context, in *disputedto.ListDisputesInput) ([]*domain.Dispute, error)
	ExpireStale(ctx context.Context, in *disputedto.ExpireStaleInput) (*disputedto.ExpireStaleReport, error)
}

const idLength = 15

type Config struct {
	Timeout             time.Duration
	MaxEvidencePerParty int
	// Arbiters may resolve or reject disputes. Empty means any authenticated actor.
	Arbiters []string
	// ContractSettlement moves escrowed funds when a ruling settles the order.
	ContractSettlement bool
	EscrowTimeout      time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 7 * 24 * time.Hour
	}
	if c.MaxEvidencePerParty <= 0 {
		c.MaxEvidencePerParty = 5
	}
	if c.EscrowTimeout <= 0 {
		c.EscrowTimeout = 10 * time.Second
	}
	return c
}

type DefaultDisputeUsecase struct {
	store    domain.Store
	recorder *audit.Recorder
	escrow   domain.EscrowService
	metrics  *metrics.MarketMetrics
	clock    clock.Clock
	logger   *slog.Logger
	cfg      Config
}

func NewDefaultDisputeUsecase(
	store domain.Store,
	recorder *audit.Recorder,
	escrow domain.EscrowService,
	marketMetrics *metrics.MarketMetrics,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *DefaultDisputeUsecase {
	return &DefaultDisputeUsecase{
		store:    store,
		recorder: recorder,
		escrow:   escrow,
		metrics:  marketMetrics,
		clock:    clk,
		logger:   logger,
		cfg:      cfg.withDefaults(),
	}
}

func newID() (string, error) {
	idGenerator, err := nanoid.Standard(idLength)
	if err != nil {
		return "", domain.Internal(err, "failed to init id generator")
	}
	return idGenerator(), nil
}

func disputeHash(d *domain.Dispute) (string, error) {
	return canonical.Hash(map[string]any{
		"disputeId":         d.DisputeID,
		"orderId":           d.OrderID,
		"initiatorActorId":  d.InitiatorActorID,
		"respondentActorId": d.RespondentActorID,
		"reason":            d.Reason,
		"status":            d.Status,
		"evidence":          len(d.Evidence),
		"resolution":        d.Resolution,
		"openedAt":          d.OpenedAt,
	})
}

// seal refreshes updatedAt and the content hash after a mutation.
func seal(d *domain.Dispute, now time.Time) error {
	d.UpdatedAt = now
	hash, err := disputeHash(d)
	if err != nil {
		return err
	}
	d.DisputeHash = hash
	return nil
}

func (uc *DefaultDisputeUsecase) finish(op string, start time.Time, errp *error) {
	domain.NormalizeError(errp)
	uc.metrics.ObserveOperation(op, start, *errp)
	if *errp != nil && domain.KindOf(*errp) == domain.KindInternal {
		uc.logger.Error("dispute operation failed", "operation", op, "error", *errp, "cause", errors.Unwrap(*errp))
	}
}

func (uc *DefaultDisputeUsecase) record(ctx context.Context, e audit.Entry, anchorID string) {
	var err error
	if anchorID != "" {
		_, err = uc.recorder.RecordWithAnchor(ctx, e, anchorID)
	} else {
		_, err = uc.recorder.Record(ctx, e)
	}
	if err != nil {
		uc.logger.Error("failed to record audit event", "kind", e.Kind, "ref_id", e.RefID, "error", err)
	}
}

// load resolves a Ref against repo. By order it returns the most recently updated dispute.
func load(ctx context.Context, repo domain.Repository, ref disputedto.Ref) (*domain.Dispute, error) {
	if ref.DisputeID != "" {
		return repo.GetDispute(ctx, ref.DisputeID)
	}
	found, err := repo.ListDisputes(ctx, domain.DisputeFilter{OrderID: ref.OrderID, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, domain.NotFound("dispute for order %s not found", ref.OrderID)
	}
	return found[0], nil
}

func requireOpen(d *domain.Dispute) error {
	if !d.Status.Unresolved() {
		return domain.Conflict("dispute %s is already closed", d.DisputeID).
			WithDetail("status", string(d.Status))
	}
	return nil
}

func (uc *DefaultDisputeUsecase) requireArbiter(actorID string) error {
	if len(uc.cfg.Arbiters) == 0 {
		return nil
	}
	for _, a := range uc.cfg.Arbiters {
		if domain.SameActor(a, actorID) {
			return nil
		}
	}
	return domain.Forbidden("actorId is not a dispute arbiter")
}
