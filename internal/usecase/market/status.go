package market

import (
	"context"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	marketdto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/market"
)

const (
	statusAuditWindow       = 1000
	disputeUnresolvedWindow = 24 * time.Hour
)

func countBy[T any](items []*T, status func(*T) string) marketdto.StatusCount {
	c := marketdto.StatusCount{Total: len(items), ByStatus: map[string]int{}}
	for _, item := range items {
		c.ByStatus[status(item)]++
	}
	return c
}

// StatusSnapshot aggregates entity counts and evaluates the operational alert rules.
func (uc *DefaultMarketUsecase) StatusSnapshot(ctx context.Context) (snap *marketdto.StatusSnapshot, err error) {
	defer uc.finish("status_snapshot", time.Now(), &err)
	offers, err := uc.Store.ListOffers(ctx, domain.OfferFilter{})
	if err != nil {
		return nil, err
	}
	orders, err := uc.Store.ListOrders(ctx, domain.OrderFilter{})
	if err != nil {
		return nil, err
	}
	deliveries, err := uc.Store.ListDeliveries(ctx, domain.DeliveryFilter{})
	if err != nil {
		return nil, err
	}
	settlements, err := uc.Store.ListSettlements(ctx, domain.SettlementFilter{})
	if err != nil {
		return nil, err
	}
	resources, err := uc.Store.ListResources(ctx, domain.ResourceFilter{})
	if err != nil {
		return nil, err
	}
	leases, err := uc.Store.ListLeases(ctx, domain.LeaseFilter{})
	if err != nil {
		return nil, err
	}
	disputes, err := uc.Store.ListDisputes(ctx, domain.DisputeFilter{})
	if err != nil {
		return nil, err
	}
	jobs, err := uc.Store.ListRevocationJobs(ctx, domain.RevocationJobFilter{})
	if err != nil {
		return nil, err
	}
	events, err := uc.Store.ReadAuditEvents(ctx, statusAuditWindow)
	if err != nil {
		return nil, err
	}

	now := uc.Clock.Now()
	snap = &marketdto.StatusSnapshot{
		GeneratedAt: now,
		Offers:      countBy(offers, func(o *domain.Offer) string { return string(o.Status) }),
		Orders:      countBy(orders, func(o *domain.Order) string { return string(o.Status) }),
		Deliveries:  countBy(deliveries, func(d *domain.Delivery) string { return string(d.Status) }),
		Resources:   countBy(resources, func(r *domain.Resource) string { return string(r.Status) }),
		Purposes:    map[string]int{},
		Assets:      map[string]int{},
	}
	for _, o := range offers {
		snap.Purposes[o.UsageScope.Purpose]++
		snap.Assets[o.AssetID]++
	}

	snap.Settlements.StatusCount = countBy(settlements, func(s *domain.Settlement) string { return string(s.Status) })
	released := snap.Settlements.ByStatus[string(domain.SettlementReleased)]
	refunded := snap.Settlements.ByStatus[string(domain.SettlementRefunded)]
	if released+refunded > 0 {
		snap.Settlements.FailureRate = float64(refunded) / float64(released+refunded)
	}

	snap.Leases.StatusCount = countBy(leases, func(l *domain.Lease) string { return string(l.Status) })
	for _, l := range leases {
		switch {
		case l.Status == domain.LeaseRevoked:
			snap.Leases.Revoked++
		case l.Status == domain.LeaseExpired, l.Status == domain.LeaseActive && l.ExpiredAt(now):
			snap.Leases.Expired++
		default:
			snap.Leases.Active++
		}
	}

	snap.Disputes.StatusCount = countBy(disputes, func(d *domain.Dispute) string { return string(d.Status) })
	staleDisputes := 0
	for _, d := range disputes {
		switch {
		case d.Status.Unresolved():
			snap.Disputes.Open++
			if now.Sub(d.OpenedAt) > disputeUnresolvedWindow {
				staleDisputes++
			}
		case d.Status == domain.DisputeResolved:
			snap.Disputes.Resolved++
		case d.Status == domain.DisputeRejected:
			snap.Disputes.Rejected++
		}
	}

	snap.Revocations.Total = len(jobs)
	for _, j := range jobs {
		switch j.Status {
		case domain.RevocationPending:
			snap.Revocations.Pending++
		case domain.RevocationFailed:
			snap.Revocations.Failed++
		}
	}

	snap.Audit.Events = len(events)
	for _, e := range events {
		if _, ok := e.Details["anchorError"]; ok {
			snap.Audit.AnchorPending++
		}
		if ok, isBool := e.Details["revokeOk"].(bool); e.Kind == domain.AuditDeliveryRevoked && isBool && !ok {
			snap.Audit.RevokeFailures++
		}
	}

	snap.Alerts = []marketdto.Alert{
		alert("settlement_failure_rate", "p0", snap.Settlements.FailureRate, 0.05),
		alert("anchor_pending", "p0", float64(snap.Audit.AnchorPending), 100),
		alert("dispute_unresolved_24h", "p0", float64(staleDisputes), 0),
		alert("revocation_failed", "p1", float64(snap.Revocations.Failed), 0),
		alert("revocation_pending", "p1", float64(snap.Revocations.Pending), 20),
	}
	uc.Metrics.SetRevocationJobs(snap.Revocations.Pending, snap.Revocations.Failed)
	return snap, nil
}

func alert(id, severity string, value, threshold float64) marketdto.Alert {
	return marketdto.Alert{
		ID:        id,
		Severity:  severity,
		Value:     value,
		Threshold: threshold,
		Triggered: value > threshold,
	}
}
