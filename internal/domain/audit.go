package domain

import "time"

type AuditKind string

const (
	AuditOfferCreated   AuditKind = "offer_created"
	AuditOfferPublished AuditKind = "offer_published"
	AuditOfferUpdated   AuditKind = "offer_updated"
	AuditOfferClosed    AuditKind = "offer_closed"

	AuditResourcePublished   AuditKind = "resource_published"
	AuditResourceUnpublished AuditKind = "resource_unpublished"

	AuditOrderCreated   AuditKind = "order_created"
	AuditOrderCancelled AuditKind = "order_cancelled"
	AuditPaymentLocked  AuditKind = "payment_locked"

	AuditConsentGranted AuditKind = "consent_granted"
	AuditConsentRevoked AuditKind = "consent_revoked"

	AuditDeliveryReady     AuditKind = "delivery_ready"
	AuditDeliveryCompleted AuditKind = "delivery_completed"
	AuditDeliveryRevoked   AuditKind = "delivery_revoked"

	AuditLeaseIssued  AuditKind = "lease_issued"
	AuditLeaseRevoked AuditKind = "lease_revoked"
	AuditLeaseExpired AuditKind = "lease_expired"

	AuditLedgerAppended AuditKind = "ledger_appended"

	AuditSettlementReleased AuditKind = "settlement_released"
	AuditSettlementRefunded AuditKind = "settlement_refunded"

	AuditDisputeOpened            AuditKind = "dispute_opened"
	AuditDisputeEvidenceSubmitted AuditKind = "dispute_evidence_submitted"
	AuditDisputeResolved          AuditKind = "dispute_resolved"
	AuditDisputeRejected          AuditKind = "dispute_rejected"
	AuditDisputeExpired           AuditKind = "dispute_expired"

	AuditRevocationRetry     AuditKind = "revocation_retry"
	AuditRevocationSucceeded AuditKind = "revocation_succeeded"
	AuditRevocationFailed    AuditKind = "revocation_failed"
	AuditRepairRetry         AuditKind = "repair_retry"

	AuditBridgeRequested AuditKind = "bridge_requested"
	AuditBridgeInFlight  AuditKind = "bridge_in_flight"
	AuditBridgeCompleted AuditKind = "bridge_completed"
	AuditBridgeFailed    AuditKind = "bridge_failed"
)

// AuditEvent is immutable once appended.
type AuditEvent struct {
	ID        string         `json:"id"`
	Kind      AuditKind      `json:"kind"`
	RefID     string         `json:"refId"`
	Hash      string         `json:"hash,omitempty"`
	Actor     string         `json:"actor,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

const DefaultAuditReadLimit = 100

// AnchorResult is what an anchor service reports for a submitted hash.
type AnchorResult struct {
	AnchorID string `json:"anchorId"`
	Network  string `json:"network"`
	Tx       string `json:"tx"`
}
