package market

import (
	"context"
	"fmt"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/usecase/audit"
	"github.com/LavaJover/shvark-market-service/internal/usecase/dto/check"
	marketdto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/market"
	"github.com/LavaJover/shvark-market-service/internal/usecase/revocation"
	"github.com/hashicorp/go-multierror"
)

const repairOrphanReason = "repair_orphan"

type repairAction string

const (
	repairExpire repairAction = "expire"
	repairOrphan repairAction = "revoke_orphan"
)

type repairCandidate struct {
	lease  *domain.Lease
	action repairAction
	reason string
}

// Repair reconciles leases left inconsistent by crashes or manual edits: overdue active
// leases are expired, active leases whose resource, order or delivery is gone are
// revoked. Due revocation jobs are retried afterwards.
func (uc *DefaultMarketUsecase) Repair(ctx context.Context, limit int) (report *marketdto.RepairReport, err error) {
	defer uc.finish("repair", time.Now(), &err)
	limit, err = check.Limit(limit, marketdto.DefaultSweepLimit, marketdto.MaxSweepLimit)
	if err != nil {
		return nil, err
	}
	candidates, err := uc.repairCandidates(ctx, limit)
	if err != nil {
		return nil, err
	}

	report = &marketdto.RepairReport{}
	var failures *multierror.Error
	for _, c := range candidates {
		report.Processed++
		var err error
		switch c.action {
		case repairExpire:
			err = uc.expireLease(ctx, c.lease.LeaseID, uc.Clock.Now())
		case repairOrphan:
			err = uc.revokeOrphan(ctx, c.lease.LeaseID)
		}
		details := map[string]any{"action": string(c.action), "reason": c.reason, "ok": err == nil}
		if err != nil {
			report.Failed++
			msg := domain.Normalize(err).Message
			details["error"] = msg
			report.Errors = append(report.Errors, marketdto.SweepError{ID: c.lease.LeaseID, Error: msg})
			failures = multierror.Append(failures, fmt.Errorf("lease %s: %w", c.lease.LeaseID, err))
		} else {
			report.Succeeded++
		}
		uc.record(ctx, audit.Entry{
			Kind:    domain.AuditRepairRetry,
			RefID:   c.lease.LeaseID,
			Hash:    c.lease.AccessTokenHash,
			Details: details,
		}, "")
	}
	uc.Metrics.SweepItems("repair", "succeeded", report.Succeeded)
	uc.Metrics.SweepItems("repair", "failed", report.Failed)
	if err := failures.ErrorOrNil(); err != nil {
		uc.Logger.Warn("repair sweep finished with failures", "failed", report.Failed, "error", err)
	}

	retry, err := uc.Revocations.RetryPending(ctx, limit)
	if err != nil {
		return nil, err
	}
	report.Pending = retry.Pending
	return report, nil
}

func (uc *DefaultMarketUsecase) repairCandidates(ctx context.Context, limit int) ([]repairCandidate, error) {
	active, err := uc.Store.ListLeases(ctx, domain.LeaseFilter{Status: domain.LeaseActive})
	if err != nil {
		return nil, err
	}
	now := uc.Clock.Now()
	out := make([]repairCandidate, 0)
	for _, l := range active {
		if len(out) >= limit {
			break
		}
		if l.ExpiredAt(now) {
			out = append(out, repairCandidate{lease: l, action: repairExpire, reason: "lease_overdue"})
			continue
		}
		missing, err := uc.missingLink(ctx, l)
		if err != nil {
			return nil, err
		}
		if missing != "" {
			out = append(out, repairCandidate{lease: l, action: repairOrphan, reason: missing + "_missing"})
		}
	}
	return out, nil
}

// missingLink names the first entity referenced by l that no longer exists.
func (uc *DefaultMarketUsecase) missingLink(ctx context.Context, l *domain.Lease) (string, error) {
	links := []struct {
		name string
		get  func() error
	}{
		{"resource", func() error { _, err := uc.Store.GetResource(ctx, l.ResourceID); return err }},
		{"order", func() error { _, err := uc.Store.GetOrder(ctx, l.OrderID); return err }},
		{"delivery", func() error { _, err := uc.Store.GetDelivery(ctx, l.DeliveryID); return err }},
	}
	for _, p := range links {
		err := p.get()
		switch {
		case err == nil:
		case domain.KindOf(err) == domain.KindNotFound:
			return p.name, nil
		default:
			return "", err
		}
	}
	return "", nil
}

func (uc *DefaultMarketUsecase) revokeOrphan(ctx context.Context, leaseID string) error {
	var delivery *domain.Delivery
	err := uc.Store.RunInTransaction(ctx, func(tx domain.Repository) error {
		lease, err := tx.GetLease(ctx, leaseID)
		if err != nil {
			return err
		}
		if err := domain.LeaseTransitions.Check(domain.EntityLease, lease.Status, domain.LeaseRevoked); err != nil {
			return err
		}
		now := uc.Clock.Now()
		lease.Status = domain.LeaseRevoked
		lease.RevokedAt = &now
		lease.RevokeReason = repairOrphanReason
		if err := tx.SaveLease(ctx, lease); err != nil {
			return err
		}
		d, err := tx.GetDelivery(ctx, lease.DeliveryID)
		switch {
		case domain.KindOf(err) == domain.KindNotFound:
			return nil
		case err != nil:
			return err
		case domain.DeliveryTransitions.Terminal(d.Status):
			return nil
		}
		if err := revokeDeliveryInPlace(d, repairOrphanReason, now); err != nil {
			return err
		}
		delivery = d
		return tx.SaveDelivery(ctx, d)
	})
	if err != nil {
		return err
	}
	uc.Metrics.Transition(domain.EntityLease, string(domain.LeaseRevoked))
	if delivery != nil {
		uc.Metrics.Transition(domain.EntityDelivery, string(delivery.Status))
		uc.Revocations.RevokeNow(ctx, revocation.Target{Delivery: delivery, Reason: repairOrphanReason})
	}
	return nil
}
