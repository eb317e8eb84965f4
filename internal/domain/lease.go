package domain

import "time"

type LeaseStatus string

const (
	LeaseActive  LeaseStatus = "lease_active"
	LeaseRevoked LeaseStatus = "lease_revoked"
	LeaseExpired LeaseStatus = "lease_expired"
)

const (
	MinLeaseTTL = 10 * time.Second
	MaxLeaseTTL = 7 * 24 * time.Hour
)

type Lease struct {
	LeaseID         string       `json:"leaseId"`
	ResourceID      string       `json:"resourceId"`
	Kind            ResourceKind `json:"kind"`
	ProviderActorID string       `json:"providerActorId"`
	ConsumerActorID string       `json:"consumerActorId"`
	OrderID         string       `json:"orderId"`
	ConsentID       string       `json:"consentId"`
	DeliveryID      string       `json:"deliveryId"`
	AccessTokenHash string       `json:"accessTokenHash"`
	AccessRef       *PayloadRef  `json:"accessRef,omitempty"`
	Status          LeaseStatus  `json:"status"`
	IssuedAt        time.Time    `json:"issuedAt"`
	ExpiresAt       time.Time    `json:"expiresAt"`
	RevokedAt       *time.Time   `json:"revokedAt,omitempty"`
	RevokeReason    string       `json:"revokeReason,omitempty"`
	MaxCost         string       `json:"maxCost,omitempty"`
}

func (l *Lease) ExpiredAt(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

type LeaseFilter struct {
	ResourceID      string
	ProviderActorID string
	ConsumerActorID string
	Status          LeaseStatus
	// ExpiresBefore selects leases whose expiresAt is at or before the instant.
	ExpiresBefore *time.Time
	Limit         int
}

func (f LeaseFilter) Match(l *Lease) bool {
	if f.ResourceID != "" && f.ResourceID != l.ResourceID {
		return false
	}
	if f.ProviderActorID != "" && !SameActor(f.ProviderActorID, l.ProviderActorID) {
		return false
	}
	if f.ConsumerActorID != "" && !SameActor(f.ConsumerActorID, l.ConsumerActorID) {
		return false
	}
	if f.Status != "" && f.Status != l.Status {
		return false
	}
	if f.ExpiresBefore != nil && l.ExpiresAt.After(*f.ExpiresBefore) {
		return false
	}
	return true
}
