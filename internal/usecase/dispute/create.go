package dispute

import (
	"context"
	"strings"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/usecase/audit"
	disputedto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/dispute"
)

// Open starts a dispute over an order. The initiator is the buyer or the seller and the
// respondent is the other party. At most one unresolved dispute exists per order.
func (uc *DefaultDisputeUsecase) Open(ctx context.Context, in *disputedto.OpenDisputeInput) (dispute *domain.Dispute, err error) {
	defer uc.finish("open_dispute", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	id, err := newID()
	if err != nil {
		return nil, err
	}
	err = uc.store.RunInTransaction(ctx, func(tx domain.Repository) error {
		order, err := tx.GetOrder(ctx, in.OrderID)
		if err != nil {
			return err
		}
		offer, err := tx.GetOffer(ctx, order.OfferID)
		if err != nil {
			return err
		}
		var respondent string
		switch {
		case domain.SameActor(in.ActorID, order.BuyerID):
			respondent = offer.SellerID
		case domain.SameActor(in.ActorID, offer.SellerID):
			respondent = order.BuyerID
		default:
			return domain.Forbidden("actorId must match order buyer or seller")
		}

		existing, err := tx.ListDisputes(ctx, domain.DisputeFilter{OrderID: order.OrderID})
		if err != nil {
			return err
		}
		for _, d := range existing {
			if d.Status.Unresolved() {
				return domain.Conflict("unresolved dispute already exists for order %s", order.OrderID).
					WithDetail("disputeId", d.DisputeID)
			}
		}

		now := uc.clock.Now()
		dispute = &domain.Dispute{
			DisputeID:         id,
			OrderID:           order.OrderID,
			InitiatorActorID:  in.ActorID,
			RespondentActorID: respondent,
			Reason:            strings.TrimSpace(in.Reason),
			Status:            domain.DisputeOpened,
			Evidence:          []domain.DisputeEvidence{},
			OpenedAt:          now,
			ExpiresAt:         now.Add(uc.cfg.Timeout),
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
		Kind:  domain.AuditDisputeOpened,
		RefID: dispute.DisputeID,
		Hash:  dispute.DisputeHash,
		Actor: in.ActorID,
		Details: map[string]any{
			"orderId":           dispute.OrderID,
			"reason":            dispute.Reason,
			"respondentActorId": dispute.RespondentActorID,
			"expiresAt":         dispute.ExpiresAt.Format(time.RFC3339Nano),
		},
	}, "dispute:"+dispute.DisputeID)
	return dispute, nil
}
