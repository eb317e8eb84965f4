package filestore

import (
	"context"

	"github.com/LavaJover/shvark-market-service/internal/domain"
)

// Outside a transaction every read copies out of the live state and every write is a
// single-operation group.

func (s *Store) GetOffer(ctx context.Context, id string) (*domain.Offer, error) {
	return read(s, func(v *view) (*domain.Offer, error) { return v.GetOffer(ctx, id) })
}

func (s *Store) SaveOffer(ctx context.Context, o *domain.Offer) error {
	return s.write(ctx, func(tx domain.Repository) error { return tx.SaveOffer(ctx, o) })
}

func (s *Store) ListOffers(ctx context.Context, f domain.OfferFilter) ([]*domain.Offer, error) {
	return read(s, func(v *view) ([]*domain.Offer, error) { return v.ListOffers(ctx, f) })
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return read(s, func(v *view) (*domain.Order, error) { return v.GetOrder(ctx, id) })
}

func (s *Store) SaveOrder(ctx context.Context, o *domain.Order) error {
	return s.write(ctx, func(tx domain.Repository) error { return tx.SaveOrder(ctx, o) })
}

func (s *Store) ListOrders(ctx context.Context, f domain.OrderFilter) ([]*domain.Order, error) {
	return read(s, func(v *view) ([]*domain.Order, error) { return v.ListOrders(ctx, f) })
}

func (s *Store) GetConsent(ctx context.Context, id string) (*domain.Consent, error) {
	return read(s, func(v *view) (*domain.Consent, error) { return v.GetConsent(ctx, id) })
}

func (s *Store) GetConsentByOrder(ctx context.Context, orderID string) (*domain.Consent, error) {
	return read(s, func(v *view) (*domain.Consent, error) { return v.GetConsentByOrder(ctx, orderID) })
}

func (s *Store) SaveConsent(ctx context.Context, c *domain.Consent) error {
	return s.write(ctx, func(tx domain.Repository) error { return tx.SaveConsent(ctx, c) })
}

func (s *Store) GetDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	return read(s, func(v *view) (*domain.Delivery, error) { return v.GetDelivery(ctx, id) })
}

func (s *Store) SaveDelivery(ctx context.Context, d *domain.Delivery) error {
	return s.write(ctx, func(tx domain.Repository) error { return tx.SaveDelivery(ctx, d) })
}

func (s *Store) ListDeliveries(ctx context.Context, f domain.DeliveryFilter) ([]*domain.Delivery, error) {
	return read(s, func(v *view) ([]*domain.Delivery, error) { return v.ListDeliveries(ctx, f) })
}

func (s *Store) GetSettlement(ctx context.Context, id string) (*domain.Settlement, error) {
	return read(s, func(v *view) (*domain.Settlement, error) { return v.GetSettlement(ctx, id) })
}

func (s *Store) GetSettlementByOrder(ctx context.Context, orderID string) (*domain.Settlement, error) {
	return read(s, func(v *view) (*domain.Settlement, error) { return v.GetSettlementByOrder(ctx, orderID) })
}

func (s *Store) SaveSettlement(ctx context.Context, st *domain.Settlement) error {
	return s.write(ctx, func(tx domain.Repository) error { return tx.SaveSettlement(ctx, st) })
}

func (s *Store) ListSettlements(ctx context.Context, f domain.SettlementFilter) ([]*domain.Settlement, error) {
	return read(s, func(v *view) ([]*domain.Settlement, error) { return v.ListSettlements(ctx, f) })
}

func (s *Store) GetResource(ctx context.Context, id string) (*domain.Resource, error) {
	return read(s, func(v *view) (*domain.Resource, error) { return v.GetResource(ctx, id) })
}

func (s *Store) SaveResource(ctx context.Context, r *domain.Resource) error {
	return s.write(ctx, func(tx domain.Repository) error { return tx.SaveResource(ctx, r) })
}

func (s *Store) ListResources(ctx context.Context, f domain.ResourceFilter) ([]*domain.Resource, error) {
	return read(s, func(v *view) ([]*domain.Resource, error) { return v.ListResources(ctx, f) })
}

func (s *Store) GetLease(ctx context.Context, id string) (*domain.Lease, error) {
	return read(s, func(v *view) (*domain.Lease, error) { return v.GetLease(ctx, id) })
}

func (s *Store) SaveLease(ctx context.Context, l *domain.Lease) error {
	return s.write(ctx, func(tx domain.Repository) error { return tx.SaveLease(ctx, l) })
}

func (s *Store) ListLeases(ctx context.Context, f domain.LeaseFilter) ([]*domain.Lease, error) {
	return read(s, func(v *view) ([]*domain.Lease, error) { return v.ListLeases(ctx, f) })
}

func (s *Store) AppendLedger(ctx context.Context, e *domain.LedgerEntry) error {
	return s.write(ctx, func(tx domain.Repository) error { return tx.AppendLedger(ctx, e) })
}

func (s *Store) ListLedger(ctx context.Context, f domain.LedgerFilter) ([]*domain.LedgerEntry, error) {
	return read(s, func(v *view) ([]*domain.LedgerEntry, error) { return v.ListLedger(ctx, f) })
}

func (s *Store) GetDispute(ctx context.Context, id string) (*domain.Dispute, error) {
	return read(s, func(v *view) (*domain.Dispute, error) { return v.GetDispute(ctx, id) })
}

func (s *Store) SaveDispute(ctx context.Context, d *domain.Dispute) error {
	return s.write(ctx, func(tx domain.Repository) error { return tx.SaveDispute(ctx, d) })
}

func (s *Store) ListDisputes(ctx context.Context, f domain.DisputeFilter) ([]*domain.Dispute, error) {
	return read(s, func(v *view) ([]*domain.Dispute, error) { return v.ListDisputes(ctx, f) })
}

func (s *Store) GetRevocationJob(ctx context.Context, id string) (*domain.RevocationJob, error) {
	return read(s, func(v *view) (*domain.RevocationJob, error) { return v.GetRevocationJob(ctx, id) })
}

func (s *Store) SaveRevocationJob(ctx context.Context, j *domain.RevocationJob) error {
	return s.write(ctx, func(tx domain.Repository) error { return tx.SaveRevocationJob(ctx, j) })
}

func (s *Store) RemoveRevocationJob(ctx context.Context, id string) error {
	return s.write(ctx, func(tx domain.Repository) error { return tx.RemoveRevocationJob(ctx, id) })
}

func (s *Store) ListRevocationJobs(ctx context.Context, f domain.RevocationJobFilter) ([]*domain.RevocationJob, error) {
	return read(s, func(v *view) ([]*domain.RevocationJob, error) { return v.ListRevocationJobs(ctx, f) })
}

func (s *Store) GetBridgeTransfer(ctx context.Context, id string) (*domain.BridgeTransfer, error) {
	return read(s, func(v *view) (*domain.BridgeTransfer, error) { return v.GetBridgeTransfer(ctx, id) })
}

func (s *Store) SaveBridgeTransfer(ctx context.Context, t *domain.BridgeTransfer) error {
	return s.write(ctx, func(tx domain.Repository) error { return tx.SaveBridgeTransfer(ctx, t) })
}

func (s *Store) ListBridgeTransfers(ctx context.Context, f domain.BridgeTransferFilter) ([]*domain.BridgeTransfer, error) {
	return read(s, func(v *view) ([]*domain.BridgeTransfer, error) { return v.ListBridgeTransfers(ctx, f) })
}

func (s *Store) AppendAuditEvent(ctx context.Context, e *domain.AuditEvent) error {
	return s.write(ctx, func(tx domain.Repository) error { return tx.AppendAuditEvent(ctx, e) })
}

func (s *Store) ReadAuditEvents(ctx context.Context, limit int) ([]*domain.AuditEvent, error) {
	return read(s, func(v *view) ([]*domain.AuditEvent, error) { return v.ReadAuditEvents(ctx, limit) })
}

var _ domain.Store = (*Store)(nil)
