package domain

import "context"

// SignatureVerifier checks that signature over message was produced by address.
type SignatureVerifier interface {
	Verify(ctx context.Context, message, signature, address string) (bool, error)
}

type EscrowRequest struct {
	OrderID      string  `json:"orderId"`
	OrderHash    string  `json:"orderHash"`
	Payer        string  `json:"payer,omitempty"`
	Payees       []Payee `json:"payees,omitempty"`
	Amount       string  `json:"amount,omitempty"`
	TokenAddress string  `json:"tokenAddress,omitempty"`
}

// EscrowService moves funds. Each call returns the chain transaction hash.
type EscrowService interface {
	Lock(ctx context.Context, req EscrowRequest) (string, error)
	Release(ctx context.Context, req EscrowRequest) (string, error)
	Refund(ctx context.Context, req EscrowRequest) (string, error)
}

// ChainAnchorService commits a content hash externally for tamper evidence.
type ChainAnchorService interface {
	AnchorHash(ctx context.Context, anchorID, hash string) (*AnchorResult, error)
}

// PayloadStore keeps delivery payloads outside the entity store.
type PayloadStore interface {
	Name() string
	Put(ctx context.Context, deliveryID string, payload *DeliveryPayload) (string, error)
	Get(ctx context.Context, ref string) (*DeliveryPayload, error)
	// Delete drops a payload; a missing ref is not an error.
	Delete(ctx context.Context, ref string) error
}

type RevocationRequest struct {
	DeliveryID   string      `json:"deliveryId"`
	OrderID      string      `json:"orderId,omitempty"`
	OfferID      string      `json:"offerId,omitempty"`
	ConsentID    string      `json:"consentId,omitempty"`
	DeliveryType string      `json:"deliveryType,omitempty"`
	PayloadRef   *PayloadRef `json:"payloadRef,omitempty"`
	Reason       string      `json:"reason"`
	PayloadHash  string      `json:"payloadHash"`
	RevokedAt    string      `json:"revokedAt"`
}

// RevocationHandler performs the external access invalidation.
type RevocationHandler interface {
	Revoke(ctx context.Context, req RevocationRequest) error
}

// EventPublisher fans audit events out to downstream consumers.
type EventPublisher interface {
	PublishAudit(ctx context.Context, event *AuditEvent) error
}
