package dispute

import (
	"context"
	"strings"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/usecase/audit"
	"github.com/LavaJover/shvark-market-service/internal/usecase/dto/check"
	disputedto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/dispute"
)

// Resolve closes a dispute with a ruling. provider_wins releases and consumer_wins
// refunds a locked settlement in the same commit as the dispute.
func (uc *DefaultDisputeUsecase) Resolve(ctx context.Context, in *disputedto.ResolveDisputeInput) (out *disputedto.ResolveDisputeOutput, err error) {
	defer uc.finish("resolve_dispute", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := uc.requireArbiter(in.ActorID); err != nil {
		return nil, err
	}

	current, err := load(ctx, uc.store, in.Ref)
	if err != nil {
		return nil, err
	}
	if err := requireOpen(current); err != nil {
		return nil, err
	}
	order, err := uc.store.GetOrder(ctx, current.OrderID)
	if err != nil {
		return nil, err
	}
	offer, err := uc.store.GetOffer(ctx, order.OfferID)
	if err != nil {
		return nil, err
	}
	settlement, err := settlementOf(ctx, uc.store, order.OrderID)
	if err != nil {
		return nil, err
	}
	if err := checkRefundAmount(in.RefundAmount, settlement); err != nil {
		return nil, err
	}
	effect := planEffect(in.Ruling, order, offer, settlement)
	var txHash string
	if effect != nil {
		if txHash, err = uc.callEscrow(ctx, effect); err != nil {
			return nil, err
		}
	}

	var (
		dispute      *domain.Dispute
		settled      *domain.Settlement
		orderChanged bool
	)
	err = uc.store.RunInTransaction(ctx, func(tx domain.Repository) error {
		var err error
		if dispute, err = tx.GetDispute(ctx, current.DisputeID); err != nil {
			return err
		}
		if err := requireOpen(dispute); err != nil {
			return err
		}
		if err := domain.DisputeTransitions.Check(domain.EntityDispute, dispute.Status, domain.DisputeResolved); err != nil {
			return err
		}
		now := uc.clock.Now()
		if effect != nil {
			o, err := tx.GetOrder(ctx, dispute.OrderID)
			if err != nil {
				return err
			}
			s, err := settlementOf(ctx, tx, dispute.OrderID)
			if err != nil {
				return err
			}
			if !effect.same(planEffect(in.Ruling, o, offer, s)) {
				return domain.Conflict("settlement for order %s changed during resolution", dispute.OrderID)
			}
			if orderChanged, err = effect.apply(s, o, "dispute:"+dispute.DisputeID, txHash, now); err != nil {
				return err
			}
			if err := tx.SaveSettlement(ctx, s); err != nil {
				return err
			}
			if orderChanged {
				if err := tx.SaveOrder(ctx, o); err != nil {
					return err
				}
				order = o
			}
			settled = s
		}

		dispute.Status = domain.DisputeResolved
		dispute.Resolution = &domain.DisputeResolution{
			Ruling:       in.Ruling,
			Reason:       strings.TrimSpace(in.Reason),
			RefundAmount: in.RefundAmount,
			ResolvedBy:   in.ActorID,
			ResolvedAt:   now,
		}
		if err := seal(dispute, now); err != nil {
			return err
		}
		return tx.SaveDispute(ctx, dispute)
	})
	if err != nil {
		if txHash != "" {
			uc.logger.Error("escrow moved funds but resolution not committed", "dispute_id", current.DisputeID, "tx_hash", txHash, "error", err)
		}
		return nil, err
	}

	uc.metrics.Transition(domain.EntityDispute, string(dispute.Status))
	details := map[string]any{
		"orderId": dispute.OrderID,
		"ruling":  string(in.Ruling),
	}
	if in.RefundAmount != "" {
		details["refundAmount"] = in.RefundAmount
	}
	if settled != nil {
		uc.metrics.Transition(domain.EntitySettlement, string(settled.Status))
		if orderChanged {
			uc.metrics.Transition(domain.EntityOrder, string(order.Status))
		}
		details["settlementId"] = settled.SettlementID
		details["settlementStatus"] = string(settled.Status)
		details["txHash"] = txHash
		kind := domain.AuditSettlementReleased
		if settled.Status == domain.SettlementRefunded {
			kind = domain.AuditSettlementRefunded
		}
		uc.record(ctx, audit.Entry{
			Kind:    kind,
			RefID:   settled.SettlementID,
			Hash:    settled.SettlementHash,
			Actor:   in.ActorID,
			Details: map[string]any{"orderId": settled.OrderID, "amount": settled.Amount, "disputeId": dispute.DisputeID, "txHash": txHash},
		}, "")
	}
	uc.record(ctx, audit.Entry{
		Kind:    domain.AuditDisputeResolved,
		RefID:   dispute.DisputeID,
		Hash:    dispute.DisputeHash,
		Actor:   in.ActorID,
		Details: details,
	}, "dispute:"+dispute.DisputeID)
	return &disputedto.ResolveDisputeOutput{Dispute: dispute, Settlement: settled}, nil
}

// ExpireStale force-closes unresolved disputes whose expiresAt has passed with the
// timeout ruling. Settlements are left for the parties or an arbiter to settle.
func (uc *DefaultDisputeUsecase) ExpireStale(ctx context.Context, in *disputedto.ExpireStaleInput) (report *disputedto.ExpireStaleReport, err error) {
	defer uc.finish("expire_disputes", time.Now(), &err)
	limit, err := check.Limit(in.Limit, disputedto.DefaultSweepLimit, disputedto.MaxSweepLimit)
	if err != nil {
		return nil, err
	}
	now := uc.clock.Now()
	if in.Now != nil {
		now = *in.Now
	}
	candidates, err := uc.store.ListDisputes(ctx, domain.DisputeFilter{ExpiresBefore: &now})
	if err != nil {
		return nil, err
	}
	report = &disputedto.ExpireStaleReport{}
	for _, d := range candidates {
		if !d.Status.Unresolved() {
			continue
		}
		if report.Processed >= limit {
			break
		}
		report.Processed++
		expired, err := uc.expire(ctx, d.DisputeID, now)
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, disputedto.SweepError{DisputeID: d.DisputeID, Error: domain.Normalize(err).Message})
			continue
		}
		report.Expired++
		uc.record(ctx, audit.Entry{
			Kind:    domain.AuditDisputeExpired,
			RefID:   expired.DisputeID,
			Hash:    expired.DisputeHash,
			Details: map[string]any{"orderId": expired.OrderID, "ruling": string(domain.RulingTimeout)},
		}, "dispute:"+expired.DisputeID)
	}
	uc.metrics.SweepItems("dispute_timeout", "expired", report.Expired)
	uc.metrics.SweepItems("dispute_timeout", "skipped", report.Skipped)
	return report, nil
}

func (uc *DefaultDisputeUsecase) expire(ctx context.Context, disputeID string, now time.Time) (*domain.Dispute, error) {
	var dispute *domain.Dispute
	err := uc.store.RunInTransaction(ctx, func(tx domain.Repository) error {
		var err error
		if dispute, err = tx.GetDispute(ctx, disputeID); err != nil {
			return err
		}
		if err := domain.DisputeTransitions.Check(domain.EntityDispute, dispute.Status, domain.DisputeExpired); err != nil {
			return err
		}
		if !dispute.ExpiresAt.Before(now) {
			return domain.Conflict("dispute %s has not expired yet", disputeID)
		}
		dispute.Status = domain.DisputeExpired
		dispute.Resolution = &domain.DisputeResolution{
			Ruling:     domain.RulingTimeout,
			Reason:     "dispute timed out",
			ResolvedBy: "system",
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
	return dispute, nil
}
