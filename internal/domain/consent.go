package domain

import "time"

type ConsentStatus string

const (
	ConsentGranted ConsentStatus = "consent_granted"
	ConsentRevoked ConsentStatus = "consent_revoked"
)

type ConsentScope struct {
	Purpose      string `json:"purpose"`
	DurationDays int    `json:"durationDays,omitempty"`
}

type Consent struct {
	ConsentID    string        `json:"consentId"`
	OrderID      string        `json:"orderId"`
	BuyerID      string        `json:"buyerId"`
	Scope        ConsentScope  `json:"scope"`
	Signature    string        `json:"signature"`
	ConsentHash  string        `json:"consentHash"`
	Status       ConsentStatus `json:"status"`
	GrantedAt    time.Time     `json:"grantedAt"`
	RevokedAt    *time.Time    `json:"revokedAt,omitempty"`
	RevokeReason string        `json:"revokeReason,omitempty"`
	RevokeHash   string        `json:"revokeHash,omitempty"`
}
