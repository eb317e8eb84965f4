package domain

// Table is a fixed adjacency map of allowed status moves for one entity kind.
type Table[S ~string] map[S][]S

// Can reports whether from -> to is an allowed edge. Self moves are never allowed.
func (t Table[S]) Can(from, to S) bool {
	if from == to {
		return false
	}
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Check returns a Conflict error naming the entity kind when from -> to is not allowed.
func (t Table[S]) Check(kind EntityKind, from, to S) error {
	if t.Can(from, to) {
		return nil
	}
	return Conflict("invalid %s transition: %s -> %s", kind, from, to).
		WithDetail("from", string(from)).
		WithDetail("to", string(to))
}

// Terminal reports whether no edge leaves status s.
func (t Table[S]) Terminal(s S) bool {
	return len(t[s]) == 0
}

type EntityKind string

const (
	EntityOffer      EntityKind = "offer"
	EntityOrder      EntityKind = "order"
	EntityConsent    EntityKind = "consent"
	EntityDelivery   EntityKind = "delivery"
	EntitySettlement EntityKind = "settlement"
	EntityResource   EntityKind = "resource"
	EntityLease      EntityKind = "lease"
	EntityDispute    EntityKind = "dispute"
	EntityBridge     EntityKind = "bridge"
)

var OfferTransitions = Table[OfferStatus]{
	OfferCreated:   {OfferPublished, OfferClosed},
	OfferPublished: {OfferClosed},
	OfferClosed:    {},
}

var OrderTransitions = Table[OrderStatus]{
	OrderCreated:             {OrderPaymentLocked, OrderCancelled},
	OrderPaymentLocked:       {OrderConsentGranted, OrderSettlementCancelled},
	OrderConsentGranted:      {OrderDeliveryReady, OrderConsentRevoked},
	OrderDeliveryReady:       {OrderDeliveryCompleted, OrderConsentRevoked},
	OrderDeliveryCompleted:   {OrderSettlementCompleted},
	OrderConsentRevoked:      {OrderSettlementCancelled},
	OrderSettlementCompleted: {},
	OrderCancelled:           {},
	OrderSettlementCancelled: {},
}

var ConsentTransitions = Table[ConsentStatus]{
	ConsentGranted: {ConsentRevoked},
	ConsentRevoked: {},
}

var DeliveryTransitions = Table[DeliveryStatus]{
	DeliveryReady:     {DeliveryCompleted, DeliveryRevoked},
	DeliveryCompleted: {},
	DeliveryRevoked:   {},
}

var SettlementTransitions = Table[SettlementStatus]{
	SettlementLocked:   {SettlementReleased, SettlementRefunded},
	SettlementReleased: {},
	SettlementRefunded: {},
}

var ResourceTransitions = Table[ResourceStatus]{
	ResourceDraft:       {ResourcePublished},
	ResourcePublished:   {ResourceUnpublished},
	ResourceUnpublished: {ResourcePublished},
}

var LeaseTransitions = Table[LeaseStatus]{
	LeaseActive:  {LeaseRevoked, LeaseExpired},
	LeaseRevoked: {},
	LeaseExpired: {},
}

var DisputeTransitions = Table[DisputeStatus]{
	DisputeOpened:            {DisputeEvidenceSubmitted, DisputeResolved, DisputeRejected, DisputeExpired},
	DisputeEvidenceSubmitted: {DisputeResolved, DisputeRejected, DisputeExpired},
	DisputeResolved:          {},
	DisputeRejected:          {},
	DisputeExpired:           {},
}

var BridgeTransitions = Table[BridgeStatus]{
	BridgeRequested: {BridgeInFlight, BridgeFailed},
	BridgeInFlight:  {BridgeCompleted, BridgeFailed},
	BridgeCompleted: {},
	BridgeFailed:    {BridgeRequested},
}
