package dispute

import (
	"context"
	"strings"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/usecase/audit"
	disputedto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/dispute"
)

// Reject closes a dispute without a ruling. The order and settlement are untouched.
func (uc *DefaultDisputeUsecase) Reject(ctx context.Context, in *disputedto.RejectDisputeInput) (dispute *domain.Dispute, err error) {
	defer uc.finish("reject_dispute", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := uc.requireArbiter(in.ActorID); err != nil {
		return nil, err
	}
	err = uc.store.RunInTransaction(ctx, func(tx domain.Repository) error {
		var err error
		if dispute, err = load(ctx, tx, in.Ref); err != nil {
			return err
		}
		if err := requireOpen(dispute); err != nil {
			return err
		}
		if err := domain.DisputeTransitions.Check(domain.EntityDispute, dispute.Status, domain.DisputeRejected); err != nil {
			return err
		}
		now := uc.clock.Now()
		dispute.Status = domain.DisputeRejected
		dispute.Resolution = &domain.DisputeResolution{
			Reason:     strings.TrimSpace(in.Reason),
			ResolvedBy: in.ActorID,
			ResolvedAt: now,
		}
		if err := seal(dispute, now); err != nil {
			return err
		}
		return tx.SaveDispute(ctx, dispute)
	})
	if err != nil {
		return nil, err
	}
	uc.metrics.Transition(domain.EntityDispute, string(dispute.Status))
	uc.record(ctx, audit.Entry{
		Kind:    domain.AuditDisputeRejected,
		RefID:   dispute.DisputeID,
		Hash:    dispute.DisputeHash,
		Actor:   in.ActorID,
		Details: map[string]any{"orderId": dispute.OrderID, "reason": dispute.Resolution.Reason},
	}, "dispute:"+dispute.DisputeID)
	return dispute, nil
}
