package domain

import "context"

// Repository is the read/write surface shared by both store backends. Inside
// RunInTransaction it is bound to the transaction; outside, each write commits alone.
// Missing entities are reported as NotFound errors.
type Repository interface {
	GetOffer(ctx context.Context, offerID string) (*Offer, error)
	SaveOffer(ctx context.Context, offer *Offer) error
	ListOffers(ctx context.Context, filter OfferFilter) ([]*Offer, error)

	GetOrder(ctx context.Context, orderID string) (*Order, error)
	SaveOrder(ctx context.Context, order *Order) error
	ListOrders(ctx context.Context, filter OrderFilter) ([]*Order, error)

	GetConsent(ctx context.Context, consentID string) (*Consent, error)
	GetConsentByOrder(ctx context.Context, orderID string) (*Consent, error)
	SaveConsent(ctx context.Context, consent *Consent) error

	GetDelivery(ctx context.Context, deliveryID string) (*Delivery, error)
	SaveDelivery(ctx context.Context, delivery *Delivery) error
	ListDeliveries(ctx context.Context, filter DeliveryFilter) ([]*Delivery, error)

	GetSettlement(ctx context.Context, settlementID string) (*Settlement, error)
	// GetSettlementByOrder returns the most recently updated settlement of the order.
	GetSettlementByOrder(ctx context.Context, orderID string) (*Settlement, error)
	SaveSettlement(ctx context.Context, settlement *Settlement) error
	ListSettlements(ctx context.Context, filter SettlementFilter) ([]*Settlement, error)

	GetResource(ctx context.Context, resourceID string) (*Resource, error)
	SaveResource(ctx context.Context, resource *Resource) error
	ListResources(ctx context.Context, filter ResourceFilter) ([]*Resource, error)

	GetLease(ctx context.Context, leaseID string) (*Lease, error)
	SaveLease(ctx context.Context, lease *Lease) error
	ListLeases(ctx context.Context, filter LeaseFilter) ([]*Lease, error)

	AppendLedger(ctx context.Context, entry *LedgerEntry) error
	ListLedger(ctx context.Context, filter LedgerFilter) ([]*LedgerEntry, error)

	GetDispute(ctx context.Context, disputeID string) (*Dispute, error)
	SaveDispute(ctx context.Context, dispute *Dispute) error
	ListDisputes(ctx context.Context, filter DisputeFilter) ([]*Dispute, error)

	GetRevocationJob(ctx context.Context, jobID string) (*RevocationJob, error)
	SaveRevocationJob(ctx context.Context, job *RevocationJob) error
	RemoveRevocationJob(ctx context.Context, jobID string) error
	ListRevocationJobs(ctx context.Context, filter RevocationJobFilter) ([]*RevocationJob, error)

	GetBridgeTransfer(ctx context.Context, bridgeID string) (*BridgeTransfer, error)
	SaveBridgeTransfer(ctx context.Context, transfer *BridgeTransfer) error
	ListBridgeTransfers(ctx context.Context, filter BridgeTransferFilter) ([]*BridgeTransfer, error)

	AppendAuditEvent(ctx context.Context, event *AuditEvent) error
	// ReadAuditEvents returns the last limit events in append order.
	ReadAuditEvents(ctx context.Context, limit int) ([]*AuditEvent, error)
}

// Store adds the atomic group primitive. Every write made through the Repository
// passed to fn becomes visible together when fn returns nil, and none of them do
// when it returns an error.
type Store interface {
	Repository
	RunInTransaction(ctx context.Context, fn func(tx Repository) error) error
	Close() error
}
