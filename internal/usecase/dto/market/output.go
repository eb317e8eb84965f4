package marketdto

import (
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
)

// RevocationOutcome reports the immediate external revocation of one delivery.
type RevocationOutcome struct {
	DeliveryID string `json:"deliveryId"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	JobID      string `json:"jobId,omitempty"`
}

type RevokeConsentOutput struct {
	Consent     *domain.Consent     `json:"consent"`
	Order       *domain.Order       `json:"order"`
	Revocations []RevocationOutcome `json:"revocations"`
}

type RevokeDeliveryOutput struct {
	Delivery   *domain.Delivery  `json:"delivery"`
	Revocation RevocationOutcome `json:"revocation"`
}

type PublishResourceOutput struct {
	Resource *domain.Resource `json:"resource"`
	Offer    *domain.Offer    `json:"offer"`
}

// IssueLeaseOutput carries the only copy of the plaintext access token.
type IssueLeaseOutput struct {
	Lease       *domain.Lease `json:"lease"`
	AccessToken string        `json:"accessToken"`
	OrderID     string        `json:"orderId"`
	ConsentID   string        `json:"consentId"`
	DeliveryID  string        `json:"deliveryId"`
}

type RevokeLeaseOutput struct {
	Lease      *domain.Lease      `json:"lease"`
	Revocation *RevocationOutcome `json:"revocation,omitempty"`
}

type SweepError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type ExpireLeasesReport struct {
	Processed int          `json:"processed"`
	Expired   int          `json:"expired"`
	Skipped   int          `json:"skipped"`
	DryRun    bool         `json:"dryRun"`
	Errors    []SweepError `json:"errors,omitempty"`
}

type RepairReport struct {
	Processed int          `json:"processed"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Pending   int          `json:"pending"`
	Errors    []SweepError `json:"errors,omitempty"`
}

type StatusCount struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
}

type SettlementStats struct {
	StatusCount
	FailureRate float64 `json:"failureRate"`
}

type LeaseStats struct {
	StatusCount
	Active  int `json:"active"`
	Expired int `json:"expired"`
	Revoked int `json:"revoked"`
}

type DisputeStats struct {
	StatusCount
	Open     int `json:"open"`
	Resolved int `json:"resolved"`
	Rejected int `json:"rejected"`
}

type RevocationStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}

type AuditStats struct {
	Events        int `json:"events"`
	AnchorPending int `json:"anchorPending"`
	// RevokeFailures counts delivery_revoked events whose external revocation failed.
	RevokeFailures int `json:"revokeFailures"`
}

type Alert struct {
	ID        string  `json:"id"`
	Severity  string  `json:"severity"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Triggered bool    `json:"triggered"`
}

type StatusSnapshot struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	Offers      StatusCount     `json:"offers"`
	Orders      StatusCount     `json:"orders"`
	Deliveries  StatusCount     `json:"deliveries"`
	Settlements SettlementStats `json:"settlements"`
	Resources   StatusCount     `json:"resources"`
	Leases      LeaseStats      `json:"leases"`
	Disputes    DisputeStats    `json:"disputes"`
	Revocations RevocationStats `json:"revocations"`
	Audit       AuditStats      `json:"audit"`
	// Purposes and Assets count offers per usage purpose and per asset id.
	Purposes map[string]int `json:"purposes"`
	Assets   map[string]int `json:"assets"`
	Alerts   []Alert        `json:"alerts"`
}

type ResourceIndexEntry struct {
	ResourceID      string                `json:"resourceId"`
	Kind            domain.ResourceKind   `json:"kind"`
	ProviderActorID string                `json:"providerActorId"`
	OfferID         string                `json:"offerId"`
	Label           string                `json:"label"`
	Tags            []string              `json:"tags,omitempty"`
	Price           domain.ResourcePrice  `json:"price"`
	Policy          domain.ResourcePolicy `json:"policy"`
	Version         int                   `json:"version"`
	ResourceHash    string                `json:"resourceHash"`
}

// ResourceIndex is the signed catalogue of published resources. Signature covers
// the canonical form of every field except itself.
type ResourceIndex struct {
	GeneratedAt time.Time            `json:"generatedAt"`
	KeyID       string               `json:"keyId"`
	PublicKey   string               `json:"publicKey"`
	Resources   []ResourceIndexEntry `json:"resources"`
	IndexHash   string               `json:"indexHash"`
	Signature   string               `json:"signature"`
}

type ReputationLedger struct {
	TotalCost string `json:"totalCost"`
	// Currency is empty when the entries mix currencies.
	Currency string `json:"currency"`
}

// Reputation scores a provider or resource from 0 to 100. Without leases the score is
// a neutral 50 with the insufficient_data signal.
type Reputation struct {
	ProviderActorID string           `json:"providerActorId,omitempty"`
	ResourceID      string           `json:"resourceId,omitempty"`
	Score           int              `json:"score"`
	Signals         []string         `json:"signals"`
	Leases          StatusCount      `json:"leases"`
	Disputes        StatusCount      `json:"disputes"`
	Ledger          ReputationLedger `json:"ledger"`
}

type TraceAudit struct {
	Events []*domain.AuditEvent `json:"events"`
	Count  int                  `json:"count"`
}

// Trace is the lineage of the selected entities with the audit events that refer
// to any of them.
type Trace struct {
	Offers      []*domain.Offer      `json:"offers"`
	Orders      []*domain.Order      `json:"orders"`
	Consents    []*domain.Consent    `json:"consents"`
	Deliveries  []*domain.Delivery   `json:"deliveries"`
	Settlements []*domain.Settlement `json:"settlements"`
	Audit       TraceAudit           `json:"audit"`
}
