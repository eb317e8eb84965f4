package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/postgres/mappers"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/postgres/models"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgSerializationFailure = "40001"
	sqliteBusy             = 5
)

// sqliteCoder matches the sqlite driver's error type.
type sqliteCoder interface {
	Code() int
}

// DefaultMarketRepository implements domain.Repository on a gorm handle. Bound to a
// transaction handle it becomes the repository passed to RunInTransaction callbacks.
type DefaultMarketRepository struct {
	db *gorm.DB
}

func NewDefaultMarketRepository(db *gorm.DB) *DefaultMarketRepository {
	return &DefaultMarketRepository{db: db}
}

func wrapErr(err error, op string) error {
	if err == nil {
		return nil
	}
	var tagged *domain.Error
	if errors.As(err, &tagged) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.Conflict("%s: duplicate key", op)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgSerializationFailure {
		return domain.Conflict("%s: concurrent update, retry", op)
	}
	var liteErr sqliteCoder
	if errors.As(err, &liteErr) && liteErr.Code()&0xff == sqliteBusy {
		return domain.Unavailable("%s: store busy", op)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func first[M any](ctx context.Context, db *gorm.DB, notFound func() error, query string, args ...any) (*M, error) {
	var m M
	err := db.WithContext(ctx).Where(query, args...).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound()
	}
	if err != nil {
		return nil, wrapErr(err, "query")
	}
	return &m, nil
}

func byID[M any](ctx context.Context, db *gorm.DB, kind domain.EntityKind, id string) (*M, error) {
	return first[M](ctx, db, func() error { return domain.NotFound("%s %s not found", kind, id) }, "id = ?", id)
}

func upsert[M any](ctx context.Context, db *gorm.DB, m *M, op string) error {
	return wrapErr(db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(m).Error, op)
}

func find[M any](q *gorm.DB, limit int, op string) ([]M, error) {
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []M
	if err := q.Find(&out).Error; err != nil {
		return nil, wrapErr(err, op)
	}
	return out, nil
}

func toDomain[M any, E any](ms []M, fn func(*M) (*E, error)) ([]*E, error) {
	out := make([]*E, 0, len(ms))
	for i := range ms {
		e, err := fn(&ms[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *DefaultMarketRepository) GetOffer(ctx context.Context, offerID string) (*domain.Offer, error) {
	m, err := byID[models.OfferModel](ctx, r.db, domain.EntityOffer, offerID)
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainOffer(m)
}

func (r *DefaultMarketRepository) SaveOffer(ctx context.Context, offer *domain.Offer) error {
	m, err := mappers.ToGORMOffer(offer)
	if err != nil {
		return err
	}
	return upsert(ctx, r.db, m, "save offer")
}

func (r *DefaultMarketRepository) ListOffers(ctx context.Context, f domain.OfferFilter) ([]*domain.Offer, error) {
	q := r.db.WithContext(ctx).Model(&models.OfferModel{})
	if f.SellerID != "" {
		q = q.Where("seller_id = ?", domain.NormalizeActor(f.SellerID))
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	ms, err := find[models.OfferModel](q.Order("created_at asc, id asc"), f.Limit, "list offers")
	if err != nil {
		return nil, err
	}
	return toDomain(ms, mappers.ToDomainOffer)
}

func (r *DefaultMarketRepository) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	m, err := byID[models.OrderModel](ctx, r.db, domain.EntityOrder, orderID)
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainOrder(m)
}

func (r *DefaultMarketRepository) SaveOrder(ctx context.Context, order *domain.Order) error {
	m, err := mappers.ToGORMOrder(order)
	if err != nil {
		return err
	}
	return upsert(ctx, r.db, m, "save order")
}

func (r *DefaultMarketRepository) ListOrders(ctx context.Context, f domain.OrderFilter) ([]*domain.Order, error) {
	q := r.db.WithContext(ctx).Model(&models.OrderModel{})
	if f.BuyerID != "" {
		q = q.Where("buyer_id = ?", domain.NormalizeActor(f.BuyerID))
	}
	if f.OfferID != "" {
		q = q.Where("offer_id = ?", f.OfferID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	ms, err := find[models.OrderModel](q.Order("created_at asc, id asc"), f.Limit, "list orders")
	if err != nil {
		return nil, err
	}
	return toDomain(ms, mappers.ToDomainOrder)
}

func (r *DefaultMarketRepository) GetConsent(ctx context.Context, consentID string) (*domain.Consent, error) {
	m, err := byID[models.ConsentModel](ctx, r.db, domain.EntityConsent, consentID)
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainConsent(m)
}

func (r *DefaultMarketRepository) GetConsentByOrder(ctx context.Context, orderID string) (*domain.Consent, error) {
	var m models.ConsentModel
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).
		Order("granted_at desc, id desc").Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFound("consent for order %s not found", orderID)
	}
	if err != nil {
		return nil, wrapErr(err, "get consent by order")
	}
	return mappers.ToDomainConsent(&m)
}

func (r *DefaultMarketRepository) SaveConsent(ctx context.Context, consent *domain.Consent) error {
	m, err := mappers.ToGORMConsent(consent)
	if err != nil {
		return err
	}
	return upsert(ctx, r.db, m, "save consent")
}

func (r *DefaultMarketRepository) GetDelivery(ctx context.Context, deliveryID string) (*domain.Delivery, error) {
	m, err := byID[models.DeliveryModel](ctx, r.db, domain.EntityDelivery, deliveryID)
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainDelivery(m)
}

func (r *DefaultMarketRepository) SaveDelivery(ctx context.Context, delivery *domain.Delivery) error {
	if err := delivery.CheckPayload(); err != nil {
		return err
	}
	m, err := mappers.ToGORMDelivery(delivery)
	if err != nil {
		return err
	}
	return upsert(ctx, r.db, m, "save delivery")
}

func (r *DefaultMarketRepository) ListDeliveries(ctx context.Context, f domain.DeliveryFilter) ([]*domain.Delivery, error) {
	q := r.db.WithContext(ctx).Model(&models.DeliveryModel{})
	if f.OrderID != "" {
		q = q.Where("order_id = ?", f.OrderID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	ms, err := find[models.DeliveryModel](q.Order("issued_at asc, id asc"), 0, "list deliveries")
	if err != nil {
		return nil, err
	}
	return toDomain(ms, mappers.ToDomainDelivery)
}

func (r *DefaultMarketRepository) GetSettlement(ctx context.Context, settlementID string) (*domain.Settlement, error) {
	m, err := byID[models.SettlementModel](ctx, r.db, domain.EntitySettlement, settlementID)
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainSettlement(m)
}

func (r *DefaultMarketRepository) GetSettlementByOrder(ctx context.Context, orderID string) (*domain.Settlement, error) {
	var m models.SettlementModel
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).
		Order("updated_at desc, id desc").Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFound("settlement for order %s not found", orderID)
	}
	if err != nil {
		return nil, wrapErr(err, "get settlement by order")
	}
	return mappers.ToDomainSettlement(&m)
}

func (r *DefaultMarketRepository) SaveSettlement(ctx context.Context, settlement *domain.Settlement) error {
	m, err := mappers.ToGORMSettlement(settlement)
	if err != nil {
		return err
	}
	return upsert(ctx, r.db, m, "save settlement")
}

func (r *DefaultMarketRepository) ListSettlements(ctx context.Context, f domain.SettlementFilter) ([]*domain.Settlement, error) {
	q := r.db.WithContext(ctx).Model(&models.SettlementModel{})
	if f.OrderID != "" {
		q = q.Where("order_id = ?", f.OrderID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	ms, err := find[models.SettlementModel](q.Order("locked_at asc, id asc"), 0, "list settlements")
	if err != nil {
		return nil, err
	}
	return toDomain(ms, mappers.ToDomainSettlement)
}

func (r *DefaultMarketRepository) GetResource(ctx context.Context, resourceID string) (*domain.Resource, error) {
	m, err := byID[models.ResourceModel](ctx, r.db, domain.EntityResource, resourceID)
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainResource(m)
}

func (r *DefaultMarketRepository) SaveResource(ctx context.Context, resource *domain.Resource) error {
	m, err := mappers.ToGORMResource(resource)
	if err != nil {
		return err
	}
	return upsert(ctx, r.db, m, "save resource")
}

func (r *DefaultMarketRepository) ListResources(ctx context.Context, f domain.ResourceFilter) ([]*domain.Resource, error) {
	q := r.db.WithContext(ctx).Model(&models.ResourceModel{})
	if f.ProviderActorID != "" {
		q = q.Where("provider_actor_id = ?", domain.NormalizeActor(f.ProviderActorID))
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", string(f.Kind))
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	// tags live in the JSON document, so a tag filter is applied after decoding
	limit := f.Limit
	if f.Tag != "" {
		limit = 0
	}
	ms, err := find[models.ResourceModel](q.Order("created_at asc, id asc"), limit, "list resources")
	if err != nil {
		return nil, err
	}
	all, err := toDomain(ms, mappers.ToDomainResource)
	if err != nil || f.Tag == "" {
		return all, err
	}
	out := make([]*domain.Resource, 0, len(all))
	for _, res := range all {
		if f.Match(res) {
			out = append(out, res)
		}
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (r *DefaultMarketRepository) GetLease(ctx context.Context, leaseID string) (*domain.Lease, error) {
	m, err := byID[models.LeaseModel](ctx, r.db, domain.EntityLease, leaseID)
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainLease(m)
}

func (r *DefaultMarketRepository) SaveLease(ctx context.Context, lease *domain.Lease) error {
	m, err := mappers.ToGORMLease(lease)
	if err != nil {
		return err
	}
	return upsert(ctx, r.db, m, "save lease")
}

func (r *DefaultMarketRepository) ListLeases(ctx context.Context, f domain.LeaseFilter) ([]*domain.Lease, error) {
	q := r.db.WithContext(ctx).Model(&models.LeaseModel{})
	if f.ResourceID != "" {
		q = q.Where("resource_id = ?", f.ResourceID)
	}
	if f.ProviderActorID != "" {
		q = q.Where("provider_actor_id = ?", domain.NormalizeActor(f.ProviderActorID))
	}
	if f.ConsumerActorID != "" {
		q = q.Where("consumer_actor_id = ?", domain.NormalizeActor(f.ConsumerActorID))
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.ExpiresBefore != nil {
		q = q.Where("expires_at <= ?", f.ExpiresBefore.UTC())
	}
	ms, err := find[models.LeaseModel](q.Order("expires_at asc, id asc"), f.Limit, "list leases")
	if err != nil {
		return nil, err
	}
	return toDomain(ms, mappers.ToDomainLease)
}

func (r *DefaultMarketRepository) AppendLedger(ctx context.Context, entry *domain.LedgerEntry) error {
	m, err := mappers.ToGORMLedgerEntry(entry)
	if err != nil {
		return err
	}
	return wrapErr(r.db.WithContext(ctx).Create(m).Error, "append ledger")
}

func (r *DefaultMarketRepository) ListLedger(ctx context.Context, f domain.LedgerFilter) ([]*domain.LedgerEntry, error) {
	q := r.db.WithContext(ctx).Model(&models.LedgerEntryModel{})
	if f.LeaseID != "" {
		q = q.Where("lease_id = ?", f.LeaseID)
	}
	if f.ResourceID != "" {
		q = q.Where("resource_id = ?", f.ResourceID)
	}
	if f.ProviderActorID != "" {
		q = q.Where("provider_actor_id = ?", domain.NormalizeActor(f.ProviderActorID))
	}
	if f.ConsumerActorID != "" {
		q = q.Where("consumer_actor_id = ?", domain.NormalizeActor(f.ConsumerActorID))
	}
	if f.Since != nil {
		q = q.Where("recorded_at >= ?", f.Since.UTC())
	}
	if f.Until != nil {
		q = q.Where("recorded_at <= ?", f.Until.UTC())
	}
	ms, err := find[models.LedgerEntryModel](q.Order("recorded_at asc, seq asc"), f.Limit, "list ledger")
	if err != nil {
		return nil, err
	}
	return toDomain(ms, mappers.ToDomainLedgerEntry)
}

func (r *DefaultMarketRepository) GetDispute(ctx context.Context, disputeID string) (*domain.Dispute, error) {
	m, err := byID[models.DisputeModel](ctx, r.db, domain.EntityDispute, disputeID)
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainDispute(m)
}

func (r *DefaultMarketRepository) SaveDispute(ctx context.Context, dispute *domain.Dispute) error {
	m, err := mappers.ToGORMDispute(dispute)
	if err != nil {
		return err
	}
	return upsert(ctx, r.db, m, "save dispute")
}

func (r *DefaultMarketRepository) ListDisputes(ctx context.Context, f domain.DisputeFilter) ([]*domain.Dispute, error) {
	q := r.db.WithContext(ctx).Model(&models.DisputeModel{})
	if f.OrderID != "" {
		q = q.Where("order_id = ?", f.OrderID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.ExpiresBefore != nil {
		q = q.Where("expires_at < ?", f.ExpiresBefore.UTC())
	}
	ms, err := find[models.DisputeModel](q.Order("updated_at desc, id desc"), f.Limit, "list disputes")
	if err != nil {
		return nil, err
	}
	return toDomain(ms, mappers.ToDomainDispute)
}

func (r *DefaultMarketRepository) GetRevocationJob(ctx context.Context, jobID string) (*domain.RevocationJob, error) {
	m, err := byID[models.RevocationJobModel](ctx, r.db, "revocation job", jobID)
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainRevocationJob(m)
}

func (r *DefaultMarketRepository) SaveRevocationJob(ctx context.Context, job *domain.RevocationJob) error {
	m, err := mappers.ToGORMRevocationJob(job)
	if err != nil {
		return err
	}
	return upsert(ctx, r.db, m, "save revocation job")
}

func (r *DefaultMarketRepository) RemoveRevocationJob(ctx context.Context, jobID string) error {
	err := r.db.WithContext(ctx).Where("id = ?", jobID).Delete(&models.RevocationJobModel{}).Error
	return wrapErr(err, "remove revocation job")
}

func (r *DefaultMarketRepository) ListRevocationJobs(ctx context.Context, f domain.RevocationJobFilter) ([]*domain.RevocationJob, error) {
	q := r.db.WithContext(ctx).Model(&models.RevocationJobModel{})
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.DueBefore != nil {
		q = q.Where("next_attempt_at <= ?", f.DueBefore.UTC())
	}
	ms, err := find[models.RevocationJobModel](q.Order("next_attempt_at asc, id asc"), f.Limit, "list revocation jobs")
	if err != nil {
		return nil, err
	}
	return toDomain(ms, mappers.ToDomainRevocationJob)
}

func (r *DefaultMarketRepository) GetBridgeTransfer(ctx context.Context, bridgeID string) (*domain.BridgeTransfer, error) {
	m, err := byID[models.BridgeTransferModel](ctx, r.db, domain.EntityBridge, bridgeID)
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainBridgeTransfer(m)
}

func (r *DefaultMarketRepository) SaveBridgeTransfer(ctx context.Context, transfer *domain.BridgeTransfer) error {
	m, err := mappers.ToGORMBridgeTransfer(transfer)
	if err != nil {
		return err
	}
	return upsert(ctx, r.db, m, "save bridge transfer")
}

func (r *DefaultMarketRepository) ListBridgeTransfers(ctx context.Context, f domain.BridgeTransferFilter) ([]*domain.BridgeTransfer, error) {
	q := r.db.WithContext(ctx).Model(&models.BridgeTransferModel{})
	if f.OrderID != "" {
		q = q.Where("order_id = ?", f.OrderID)
	}
	if f.SettlementID != "" {
		q = q.Where("settlement_id = ?", f.SettlementID)
	}
	if f.FromChain != "" {
		q = q.Where("from_chain = ?", f.FromChain)
	}
	if f.ToChain != "" {
		q = q.Where("to_chain = ?", f.ToChain)
	}
	if f.AssetSymbol != "" {
		q = q.Where("asset_symbol = ?", f.AssetSymbol)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	ms, err := find[models.BridgeTransferModel](q.Order("updated_at desc, id desc"), f.Limit, "list bridge transfers")
	if err != nil {
		return nil, err
	}
	return toDomain(ms, mappers.ToDomainBridgeTransfer)
}

func (r *DefaultMarketRepository) AppendAuditEvent(ctx context.Context, event *domain.AuditEvent) error {
	m, err := mappers.ToGORMAuditEvent(event)
	if err != nil {
		return err
	}
	return wrapErr(r.db.WithContext(ctx).Create(m).Error, "append audit event")
}

func (r *DefaultMarketRepository) ReadAuditEvents(ctx context.Context, limit int) ([]*domain.AuditEvent, error) {
	if limit <= 0 {
		limit = domain.DefaultAuditReadLimit
	}
	q := r.db.WithContext(ctx).Model(&models.AuditEventModel{}).Order("seq desc")
	ms, err := find[models.AuditEventModel](q, limit, "read audit events")
	if err != nil {
		return nil, err
	}
	events, err := toDomain(ms, mappers.ToDomainAuditEvent)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

var _ domain.Repository = (*DefaultMarketRepository)(nil)
