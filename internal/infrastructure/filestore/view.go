package filestore

import (
	"context"
	"sort"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
)

// view implements domain.Repository over one snapshot. Inside a transaction the
// snapshot is the staged copy; for plain reads it is the live state and readOnly is set.
type view struct {
	store      *Store
	state      *snapshot
	readOnly   bool
	stateDirty bool
	audit      []*domain.AuditEvent
}

func cloneOf[T any](v *view, src *T) (*T, error) {
	dst := new(T)
	if err := v.store.codec.clone(src, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

func get[T any](v *view, m map[string]*T, id string, kind domain.EntityKind) (*T, error) {
	e, ok := m[id]
	if !ok {
		return nil, domain.NotFound("%s %s not found", kind, id)
	}
	return cloneOf(v, e)
}

func put[T any](v *view, m map[string]*T, id string, e *T) error {
	if v.readOnly {
		panic("filestore: write through read-only view")
	}
	c, err := cloneOf(v, e)
	if err != nil {
		return err
	}
	m[id] = c
	v.stateDirty = true
	return nil
}

// list copies out the entries matching keep, ordered by less, bounded by limit.
func list[T any](v *view, m map[string]*T, keep func(*T) bool, less func(a, b *T) bool, limit int) ([]*T, error) {
	matched := make([]*T, 0)
	for _, e := range m {
		if keep(e) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return less(matched[i], matched[j]) })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]*T, 0, len(matched))
	for _, e := range matched {
		c, err := cloneOf(v, e)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func earlier(a, b time.Time, idA, idB string) bool {
	if !a.Equal(b) {
		return a.Before(b)
	}
	return idA < idB
}

func later(a, b time.Time, idA, idB string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return idA > idB
}

func (v *view) GetOffer(_ context.Context, id string) (*domain.Offer, error) {
	return get(v, v.state.Offers, id, domain.EntityOffer)
}

func (v *view) SaveOffer(_ context.Context, o *domain.Offer) error {
	return put(v, v.state.Offers, o.OfferID, o)
}

func (v *view) ListOffers(_ context.Context, f domain.OfferFilter) ([]*domain.Offer, error) {
	return list(v, v.state.Offers, f.Match, func(a, b *domain.Offer) bool {
		return earlier(a.CreatedAt, b.CreatedAt, a.OfferID, b.OfferID)
	}, f.Limit)
}

func (v *view) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	return get(v, v.state.Orders, id, domain.EntityOrder)
}

func (v *view) SaveOrder(_ context.Context, o *domain.Order) error {
	return put(v, v.state.Orders, o.OrderID, o)
}

func (v *view) ListOrders(_ context.Context, f domain.OrderFilter) ([]*domain.Order, error) {
	return list(v, v.state.Orders, f.Match, func(a, b *domain.Order) bool {
		return earlier(a.CreatedAt, b.CreatedAt, a.OrderID, b.OrderID)
	}, f.Limit)
}

func (v *view) GetConsent(_ context.Context, id string) (*domain.Consent, error) {
	return get(v, v.state.Consents, id, domain.EntityConsent)
}

func (v *view) GetConsentByOrder(_ context.Context, orderID string) (*domain.Consent, error) {
	found, err := list(v, v.state.Consents, func(c *domain.Consent) bool { return c.OrderID == orderID },
		func(a, b *domain.Consent) bool { return later(a.GrantedAt, b.GrantedAt, a.ConsentID, b.ConsentID) }, 1)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, domain.NotFound("consent for order %s not found", orderID)
	}
	return found[0], nil
}

func (v *view) SaveConsent(_ context.Context, c *domain.Consent) error {
	return put(v, v.state.Consents, c.ConsentID, c)
}

func (v *view) GetDelivery(_ context.Context, id string) (*domain.Delivery, error) {
	return get(v, v.state.Deliveries, id, domain.EntityDelivery)
}

func (v *view) SaveDelivery(_ context.Context, d *domain.Delivery) error {
	if err := d.CheckPayload(); err != nil {
		return err
	}
	return put(v, v.state.Deliveries, d.DeliveryID, d)
}

func (v *view) ListDeliveries(_ context.Context, f domain.DeliveryFilter) ([]*domain.Delivery, error) {
	return list(v, v.state.Deliveries, f.Match, func(a, b *domain.Delivery) bool {
		return earlier(a.IssuedAt, b.IssuedAt, a.DeliveryID, b.DeliveryID)
	}, 0)
}

func (v *view) GetSettlement(_ context.Context, id string) (*domain.Settlement, error) {
	return get(v, v.state.Settlements, id, domain.EntitySettlement)
}

func (v *view) GetSettlementByOrder(_ context.Context, orderID string) (*domain.Settlement, error) {
	found, err := list(v, v.state.Settlements, func(s *domain.Settlement) bool { return s.OrderID == orderID },
		func(a, b *domain.Settlement) bool {
			return later(a.UpdatedAt, b.UpdatedAt, a.SettlementID, b.SettlementID)
		}, 1)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, domain.NotFound("settlement for order %s not found", orderID)
	}
	return found[0], nil
}

func (v *view) SaveSettlement(_ context.Context, s *domain.Settlement) error {
	return put(v, v.state.Settlements, s.SettlementID, s)
}

func (v *view) ListSettlements(_ context.Context, f domain.SettlementFilter) ([]*domain.Settlement, error) {
	return list(v, v.state.Settlements, f.Match, func(a, b *domain.Settlement) bool {
		return earlier(a.LockedAt, b.LockedAt, a.SettlementID, b.SettlementID)
	}, 0)
}

func (v *view) GetResource(_ context.Context, id string) (*domain.Resource, error) {
	return get(v, v.state.Resources, id, domain.EntityResource)
}

func (v *view) SaveResource(_ context.Context, r *domain.Resource) error {
	return put(v, v.state.Resources, r.ResourceID, r)
}

func (v *view) ListResources(_ context.Context, f domain.ResourceFilter) ([]*domain.Resource, error) {
	return list(v, v.state.Resources, f.Match, func(a, b *domain.Resource) bool {
		return earlier(a.CreatedAt, b.CreatedAt, a.ResourceID, b.ResourceID)
	}, f.Limit)
}

func (v *view) GetLease(_ context.Context, id string) (*domain.Lease, error) {
	return get(v, v.state.Leases, id, domain.EntityLease)
}

func (v *view) SaveLease(_ context.Context, l *domain.Lease) error {
	return put(v, v.state.Leases, l.LeaseID, l)
}

func (v *view) ListLeases(_ context.Context, f domain.LeaseFilter) ([]*domain.Lease, error) {
	return list(v, v.state.Leases, f.Match, func(a, b *domain.Lease) bool {
		return earlier(a.ExpiresAt, b.ExpiresAt, a.LeaseID, b.LeaseID)
	}, f.Limit)
}

func (v *view) AppendLedger(_ context.Context, e *domain.LedgerEntry) error {
	if v.readOnly {
		panic("filestore: write through read-only view")
	}
	c, err := cloneOf(v, e)
	if err != nil {
		return err
	}
	v.state.Ledger = append(v.state.Ledger, c)
	v.stateDirty = true
	return nil
}

func (v *view) ListLedger(_ context.Context, f domain.LedgerFilter) ([]*domain.LedgerEntry, error) {
	matched := make([]*domain.LedgerEntry, 0)
	for _, e := range v.state.Ledger {
		if f.Match(e) {
			matched = append(matched, e)
		}
	}
	// append order breaks timestamp ties
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Timestamp.Before(matched[j].Timestamp) })
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	out := make([]*domain.LedgerEntry, 0, len(matched))
	for _, e := range matched {
		c, err := cloneOf(v, e)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (v *view) GetDispute(_ context.Context, id string) (*domain.Dispute, error) {
	return get(v, v.state.Disputes, id, domain.EntityDispute)
}

func (v *view) SaveDispute(_ context.Context, d *domain.Dispute) error {
	return put(v, v.state.Disputes, d.DisputeID, d)
}

func (v *view) ListDisputes(_ context.Context, f domain.DisputeFilter) ([]*domain.Dispute, error) {
	return list(v, v.state.Disputes, f.Match, func(a, b *domain.Dispute) bool {
		return later(a.UpdatedAt, b.UpdatedAt, a.DisputeID, b.DisputeID)
	}, f.Limit)
}

func (v *view) GetRevocationJob(_ context.Context, id string) (*domain.RevocationJob, error) {
	return get(v, v.state.RevocationJobs, id, "revocation job")
}

func (v *view) SaveRevocationJob(_ context.Context, j *domain.RevocationJob) error {
	return put(v, v.state.RevocationJobs, j.JobID, j)
}

func (v *view) RemoveRevocationJob(_ context.Context, id string) error {
	if v.readOnly {
		panic("filestore: write through read-only view")
	}
	if _, ok := v.state.RevocationJobs[id]; !ok {
		return nil
	}
	delete(v.state.RevocationJobs, id)
	v.stateDirty = true
	return nil
}

func (v *view) ListRevocationJobs(_ context.Context, f domain.RevocationJobFilter) ([]*domain.RevocationJob, error) {
	return list(v, v.state.RevocationJobs, f.Match, func(a, b *domain.RevocationJob) bool {
		return earlier(a.NextAttemptAt, b.NextAttemptAt, a.JobID, b.JobID)
	}, f.Limit)
}

func (v *view) GetBridgeTransfer(_ context.Context, id string) (*domain.BridgeTransfer, error) {
	return get(v, v.state.BridgeTransfers, id, domain.EntityBridge)
}

func (v *view) SaveBridgeTransfer(_ context.Context, t *domain.BridgeTransfer) error {
	return put(v, v.state.BridgeTransfers, t.BridgeID, t)
}

func (v *view) ListBridgeTransfers(_ context.Context, f domain.BridgeTransferFilter) ([]*domain.BridgeTransfer, error) {
	return list(v, v.state.BridgeTransfers, f.Match, func(a, b *domain.BridgeTransfer) bool {
		return later(a.UpdatedAt, b.UpdatedAt, a.BridgeID, b.BridgeID)
	}, f.Limit)
}

func (v *view) AppendAuditEvent(_ context.Context, e *domain.AuditEvent) error {
	if v.readOnly {
		panic("filestore: write through read-only view")
	}
	c := *e
	v.audit = append(v.audit, &c)
	return nil
}

func (v *view) ReadAuditEvents(_ context.Context, limit int) ([]*domain.AuditEvent, error) {
	if limit <= 0 {
		limit = domain.DefaultAuditReadLimit
	}
	events, err := v.store.readAudit(limit)
	if err != nil {
		return nil, err
	}
	events = append(events, v.state.AuditOutbox...)
	events = append(events, v.audit...)
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}
