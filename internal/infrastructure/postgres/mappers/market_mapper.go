package mappers

import (
	"encoding/json"
	"fmt"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/postgres/models"
)

func encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %T: %w", v, err)
	}
	return string(raw), nil
}

func decode[T any](data string) (*T, error) {
	out := new(T)
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return nil, fmt.Errorf("decode %T: %w", out, err)
	}
	return out, nil
}

func ToGORMOffer(o *domain.Offer) (*models.OfferModel, error) {
	data, err := encode(o)
	if err != nil {
		return nil, err
	}
	return &models.OfferModel{
		ID:        o.OfferID,
		SellerID:  domain.NormalizeActor(o.SellerID),
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt.UTC(),
		UpdatedAt: o.UpdatedAt.UTC(),
		Data:      data,
	}, nil
}

func ToDomainOffer(m *models.OfferModel) (*domain.Offer, error) {
	return decode[domain.Offer](m.Data)
}

func ToGORMOrder(o *domain.Order) (*models.OrderModel, error) {
	data, err := encode(o)
	if err != nil {
		return nil, err
	}
	return &models.OrderModel{
		ID:        o.OrderID,
		OfferID:   o.OfferID,
		BuyerID:   domain.NormalizeActor(o.BuyerID),
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt.UTC(),
		UpdatedAt: o.UpdatedAt.UTC(),
		Data:      data,
	}, nil
}

func ToDomainOrder(m *models.OrderModel) (*domain.Order, error) {
	return decode[domain.Order](m.Data)
}

func ToGORMConsent(c *domain.Consent) (*models.ConsentModel, error) {
	data, err := encode(c)
	if err != nil {
		return nil, err
	}
	return &models.ConsentModel{
		ID:        c.ConsentID,
		OrderID:   c.OrderID,
		Status:    string(c.Status),
		GrantedAt: c.GrantedAt.UTC(),
		Data:      data,
	}, nil
}

func ToDomainConsent(m *models.ConsentModel) (*domain.Consent, error) {
	return decode[domain.Consent](m.Data)
}

func ToGORMDelivery(d *domain.Delivery) (*models.DeliveryModel, error) {
	data, err := encode(d)
	if err != nil {
		return nil, err
	}
	return &models.DeliveryModel{
		ID:       d.DeliveryID,
		OrderID:  d.OrderID,
		Status:   string(d.Status),
		IssuedAt: d.IssuedAt.UTC(),
		Data:     data,
	}, nil
}

func ToDomainDelivery(m *models.DeliveryModel) (*domain.Delivery, error) {
	return decode[domain.Delivery](m.Data)
}

func ToGORMSettlement(s *domain.Settlement) (*models.SettlementModel, error) {
	data, err := encode(s)
	if err != nil {
		return nil, err
	}
	return &models.SettlementModel{
		ID:        s.SettlementID,
		OrderID:   s.OrderID,
		Status:    string(s.Status),
		LockedAt:  s.LockedAt.UTC(),
		UpdatedAt: s.UpdatedAt.UTC(),
		Data:      data,
	}, nil
}

func ToDomainSettlement(m *models.SettlementModel) (*domain.Settlement, error) {
	return decode[domain.Settlement](m.Data)
}

func ToGORMResource(r *domain.Resource) (*models.ResourceModel, error) {
	data, err := encode(r)
	if err != nil {
		return nil, err
	}
	return &models.ResourceModel{
		ID:              r.ResourceID,
		ProviderActorID: domain.NormalizeActor(r.ProviderActorID),
		Kind:            string(r.Kind),
		Status:          string(r.Status),
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
		Data:            data,
	}, nil
}

func ToDomainResource(m *models.ResourceModel) (*domain.Resource, error) {
	return decode[domain.Resource](m.Data)
}

func ToGORMLease(l *domain.Lease) (*models.LeaseModel, error) {
	data, err := encode(l)
	if err != nil {
		return nil, err
	}
	return &models.LeaseModel{
		ID:              l.LeaseID,
		ResourceID:      l.ResourceID,
		ProviderActorID: domain.NormalizeActor(l.ProviderActorID),
		ConsumerActorID: domain.NormalizeActor(l.ConsumerActorID),
		Status:          string(l.Status),
		ExpiresAt:       l.ExpiresAt.UTC(),
		Data:            data,
	}, nil
}

func ToDomainLease(m *models.LeaseModel) (*domain.Lease, error) {
	return decode[domain.Lease](m.Data)
}

func ToGORMLedgerEntry(e *domain.LedgerEntry) (*models.LedgerEntryModel, error) {
	data, err := encode(e)
	if err != nil {
		return nil, err
	}
	return &models.LedgerEntryModel{
		LedgerID:        e.LedgerID,
		LeaseID:         e.LeaseID,
		ResourceID:      e.ResourceID,
		ProviderActorID: domain.NormalizeActor(e.ProviderActorID),
		ConsumerActorID: domain.NormalizeActor(e.ConsumerActorID),
		Timestamp:       e.Timestamp.UTC(),
		Data:            data,
	}, nil
}

func ToDomainLedgerEntry(m *models.LedgerEntryModel) (*domain.LedgerEntry, error) {
	return decode[domain.LedgerEntry](m.Data)
}

func ToGORMDispute(d *domain.Dispute) (*models.DisputeModel, error) {
	data, err := encode(d)
	if err != nil {
		return nil, err
	}
	return &models.DisputeModel{
		ID:        d.DisputeID,
		OrderID:   d.OrderID,
		Status:    string(d.Status),
		ExpiresAt: d.ExpiresAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
		Data:      data,
	}, nil
}

func ToDomainDispute(m *models.DisputeModel) (*domain.Dispute, error) {
	return decode[domain.Dispute](m.Data)
}

func ToGORMRevocationJob(j *domain.RevocationJob) (*models.RevocationJobModel, error) {
	data, err := encode(j)
	if err != nil {
		return nil, err
	}
	return &models.RevocationJobModel{
		ID:            j.JobID,
		Status:        string(j.Status),
		NextAttemptAt: j.NextAttemptAt.UTC(),
		Data:          data,
	}, nil
}

func ToDomainRevocationJob(m *models.RevocationJobModel) (*domain.RevocationJob, error) {
	return decode[domain.RevocationJob](m.Data)
}

func ToGORMBridgeTransfer(t *domain.BridgeTransfer) (*models.BridgeTransferModel, error) {
	data, err := encode(t)
	if err != nil {
		return nil, err
	}
	return &models.BridgeTransferModel{
		ID:           t.BridgeID,
		OrderID:      t.OrderID,
		SettlementID: t.SettlementID,
		FromChain:    t.FromChain,
		ToChain:      t.ToChain,
		AssetSymbol:  t.AssetSymbol,
		Status:       string(t.Status),
		UpdatedAt:    t.UpdatedAt.UTC(),
		Data:         data,
	}, nil
}

func ToDomainBridgeTransfer(m *models.BridgeTransferModel) (*domain.BridgeTransfer, error) {
	return decode[domain.BridgeTransfer](m.Data)
}

func ToGORMAuditEvent(e *domain.AuditEvent) (*models.AuditEventModel, error) {
	data, err := encode(e)
	if err != nil {
		return nil, err
	}
	return &models.AuditEventModel{
		EventID:   e.ID,
		Kind:      string(e.Kind),
		RefID:     e.RefID,
		Timestamp: e.Timestamp.UTC(),
		Data:      data,
	}, nil
}

func ToDomainAuditEvent(m *models.AuditEventModel) (*domain.AuditEvent, error) {
	return decode[domain.AuditEvent](m.Data)
}
