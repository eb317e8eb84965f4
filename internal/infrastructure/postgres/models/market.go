package models

import "time"

// Every model keeps the full entity as JSON in Data. The other columns are copies of
// the fields lists filter and sort on.

type OfferModel struct {
	ID        string    `gorm:"primaryKey"`
	SellerID  string    `gorm:"index:idx_offer_seller"`
	Status    string    `gorm:"index:idx_offer_status"`
	CreatedAt time.Time `gorm:"autoCreateTime:false;index:idx_offer_created"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
	Data      string    `gorm:"type:text;not null"`
}

type OrderModel struct {
	ID        string    `gorm:"primaryKey"`
	OfferID   string    `gorm:"index:idx_order_offer"`
	BuyerID   string    `gorm:"index:idx_order_buyer"`
	Status    string    `gorm:"index:idx_order_status"`
	CreatedAt time.Time `gorm:"autoCreateTime:false;index:idx_order_created"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
	Data      string    `gorm:"type:text;not null"`
}

type ConsentModel struct {
	ID        string    `gorm:"primaryKey"`
	OrderID   string    `gorm:"index:idx_consent_order"`
	Status    string
	GrantedAt time.Time
	Data      string `gorm:"type:text;not null"`
}

type DeliveryModel struct {
	ID       string    `gorm:"primaryKey"`
	OrderID  string    `gorm:"index:idx_delivery_order"`
	Status   string    `gorm:"index:idx_delivery_status"`
	IssuedAt time.Time
	Data     string `gorm:"type:text;not null"`
}

type SettlementModel struct {
	ID        string    `gorm:"primaryKey"`
	OrderID   string    `gorm:"index:idx_settlement_order"`
	Status    string    `gorm:"index:idx_settlement_status"`
	LockedAt  time.Time
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
	Data      string    `gorm:"type:text;not null"`
}

type ResourceModel struct {
	ID              string    `gorm:"primaryKey"`
	ProviderActorID string    `gorm:"index:idx_resource_provider"`
	Kind            string    `gorm:"index:idx_resource_kind_status"`
	Status          string    `gorm:"index:idx_resource_kind_status"`
	CreatedAt       time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime:false"`
	Data            string    `gorm:"type:text;not null"`
}

type LeaseModel struct {
	ID              string    `gorm:"primaryKey"`
	ResourceID      string    `gorm:"index:idx_lease_resource"`
	ProviderActorID string    `gorm:"index:idx_lease_provider"`
	ConsumerActorID string    `gorm:"index:idx_lease_consumer"`
	Status          string    `gorm:"index:idx_lease_status_expires"`
	ExpiresAt       time.Time `gorm:"index:idx_lease_status_expires"`
	Data            string    `gorm:"type:text;not null"`
}

// LedgerEntryModel is append-only; Seq keeps append order among equal timestamps.
type LedgerEntryModel struct {
	Seq             int64     `gorm:"primaryKey;autoIncrement"`
	LedgerID        string    `gorm:"uniqueIndex:idx_ledger_id"`
	LeaseID         string    `gorm:"index:idx_ledger_lease"`
	ResourceID      string    `gorm:"index:idx_ledger_resource"`
	ProviderActorID string    `gorm:"index:idx_ledger_provider"`
	ConsumerActorID string    `gorm:"index:idx_ledger_consumer"`
	Timestamp       time.Time `gorm:"column:recorded_at;index:idx_ledger_recorded"`
	Data            string    `gorm:"type:text;not null"`
}

type DisputeModel struct {
	ID        string    `gorm:"primaryKey"`
	OrderID   string    `gorm:"index:idx_dispute_order"`
	Status    string    `gorm:"index:idx_dispute_status_expires"`
	ExpiresAt time.Time `gorm:"index:idx_dispute_status_expires"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
	Data      string    `gorm:"type:text;not null"`
}

type RevocationJobModel struct {
	ID            string    `gorm:"primaryKey"`
	Status        string    `gorm:"index:idx_revocation_status_next"`
	NextAttemptAt time.Time `gorm:"index:idx_revocation_status_next"`
	Data          string    `gorm:"type:text;not null"`
}

type BridgeTransferModel struct {
	ID           string    `gorm:"primaryKey"`
	OrderID      string    `gorm:"index:idx_bridge_order"`
	SettlementID string    `gorm:"index:idx_bridge_settlement"`
	FromChain    string
	ToChain      string
	AssetSymbol  string
	Status       string    `gorm:"index:idx_bridge_status"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false"`
	Data         string    `gorm:"type:text;not null"`
}

type AuditEventModel struct {
	Seq       int64     `gorm:"primaryKey;autoIncrement"`
	EventID   string    `gorm:"uniqueIndex:idx_audit_event_id"`
	Kind      string    `gorm:"index:idx_audit_kind"`
	RefID     string    `gorm:"index:idx_audit_ref"`
	Timestamp time.Time `gorm:"column:recorded_at"`
	Data      string    `gorm:"type:text;not null"`
}

// All lists the models in migration order.
func All() []any {
	return []any{
		&OfferModel{}, &OrderModel{}, &ConsentModel{}, &DeliveryModel{}, &SettlementModel{},
		&ResourceModel{}, &LeaseModel{}, &LedgerEntryModel{}, &DisputeModel{},
		&RevocationJobModel{}, &BridgeTransferModel{}, &AuditEventModel{},
	}
}
