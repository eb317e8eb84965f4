package marketdto

import (
	"strings"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/usecase/dto/check"
)

var assetTypes = map[string]struct{}{"data": {}, "api": {}, "service": {}}

func validateUsageScope(scope domain.UsageScope) error {
	if err := check.Required("usageScope.purpose", scope.Purpose); err != nil {
		return err
	}
	if scope.DurationDays < 0 {
		return domain.InvalidArgument("usageScope.durationDays must be >= 0")
	}
	return nil
}

func validateAssetType(assetType string) error {
	if _, ok := assetTypes[assetType]; !ok {
		return domain.InvalidArgument("assetType must be one of data, api, service")
	}
	return nil
}

func validateDeliveryType(t domain.DeliveryType) error {
	if !t.Valid() {
		return domain.InvalidArgument("deliveryType must be one of download, api, service")
	}
	return nil
}

type CreateOfferInput struct {
	ActorID      string
	AssetID      string
	AssetType    string
	AssetMeta    map[string]string
	Price        string
	Currency     string
	UsageScope   domain.UsageScope
	DeliveryType domain.DeliveryType
}

func (in *CreateOfferInput) Validate() error {
	actor, err := check.Actor(in.ActorID)
	if err != nil {
		return err
	}
	in.ActorID = actor
	if err := check.Required("assetId", in.AssetID); err != nil {
		return err
	}
	if err := validateAssetType(in.AssetType); err != nil {
		return err
	}
	if _, err := check.Amount("price", in.Price, false); err != nil {
		return err
	}
	if err := check.Required("currency", in.Currency); err != nil {
		return err
	}
	if err := validateUsageScope(in.UsageScope); err != nil {
		return err
	}
	return validateDeliveryType(in.DeliveryType)
}

// UpdateOfferInput patches only the fields that are set.
type UpdateOfferInput struct {
	ActorID      string
	OfferID      string
	AssetMeta    map[string]string
	Price        string
	Currency     string
	UsageScope   *domain.UsageScope
	DeliveryType domain.DeliveryType
}

func (in *UpdateOfferInput) Validate() error {
	actor, err := check.Actor(in.ActorID)
	if err != nil {
		return err
	}
	in.ActorID = actor
	if err := check.Required("offerId", in.OfferID); err != nil {
		return err
	}
	if err := check.OptionalAmount("price", in.Price, false); err != nil {
		return err
	}
	if in.UsageScope != nil {
		if err := validateUsageScope(*in.UsageScope); err != nil {
			return err
		}
	}
	if in.DeliveryType != "" {
		return validateDeliveryType(in.DeliveryType)
	}
	return nil
}

// EntityActionInput names one entity and the acting party.
type EntityActionInput struct {
	ActorID string
	ID      string
	Reason  string
}

func (in *EntityActionInput) Validate() error {
	actor, err := check.Actor(in.ActorID)
	if err != nil {
		return err
	}
	in.ActorID = actor
	return check.Required("id", in.ID)
}

type ListOffersInput struct {
	SellerID string
	Status   domain.OfferStatus
	Limit    int
}

type CreateOrderInput struct {
	ActorID  string
	OfferID  string
	Quantity int
}

func (in *CreateOrderInput) Validate() error {
	actor, err := check.Actor(in.ActorID)
	if err != nil {
		return err
	}
	in.ActorID = actor
	if err := check.Required("offerId", in.OfferID); err != nil {
		return err
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity < 0 {
		return domain.InvalidArgument("quantity must be > 0")
	}
	return nil
}

type ListOrdersInput struct {
	BuyerID string
	OfferID string
	Status  domain.OrderStatus
	Limit   int
}

type LockSettlementInput struct {
	ActorID      string
	OrderID      string
	Amount       string
	TokenAddress string
}

func (in *LockSettlementInput) Validate() error {
	actor, err := check.Actor(in.ActorID)
	if err != nil {
		return err
	}
	in.ActorID = actor
	if err := check.Required("orderId", in.OrderID); err != nil {
		return err
	}
	_, err = check.Amount("amount", in.Amount, false)
	return err
}

type ReleaseSettlementInput struct {
	ActorID string
	OrderID string
	Payees  []domain.Payee
}

func (in *ReleaseSettlementInput) Validate() error {
	actor, err := check.Actor(in.ActorID)
	if err != nil {
		return err
	}
	in.ActorID = actor
	if err := check.Required("orderId", in.OrderID); err != nil {
		return err
	}
	if len(in.Payees) == 0 {
		return domain.InvalidArgument("payees must not be empty")
	}
	for i, p := range in.Payees {
		if err := check.Required("payees.address", p.Address); err != nil {
			return err
		}
		if _, err := check.Amount("payees.amount", p.Amount, false); err != nil {
			return err
		}
		in.Payees[i].Address = strings.TrimSpace(p.Address)
	}
	return nil
}

type RefundSettlementInput struct {
	ActorID string
	OrderID string
	Reason  string
}

func (in *RefundSettlementInput) Validate() error {
	actor, err := check.Actor(in.ActorID)
	if err != nil {
		return err
	}
	in.ActorID = actor
	return check.Required("orderId", in.OrderID)
}

type GrantConsentInput struct {
	ActorID   string
	OrderID   string
	Scope     domain.ConsentScope
	Signature string
}

func (in *GrantConsentInput) Validate() error {
	actor, err := check.Actor(in.ActorID)
	if err != nil {
		return err
	}
	in.ActorID = actor
	if err := check.Required("orderId", in.OrderID); err != nil {
		return err
	}
	if err := check.Required("scope.purpose", in.Scope.Purpose); err != nil {
		return err
	}
	if in.Scope.DurationDays < 0 {
		return domain.InvalidArgument("scope.durationDays must be >= 0")
	}
	if !strings.HasPrefix(in.Signature, "0x") || len(in.Signature) < 4 {
		return domain.InvalidArgument("signature must be a 0x-prefixed hex string")
	}
	return nil
}

type RevokeConsentInput struct {
	ActorID   string
	ConsentID string
	Reason    string
}

func (in *RevokeConsentInput) Validate() error {
	actor, err := check.Actor(in.ActorID)
	if err != nil {
		return err
	}
	in.ActorID = actor
	if err := check.Required("consentId", in.ConsentID); err != nil {
		return err
	}
	return check.MaxLen("reason", in.Reason, 512)
}

type IssueDeliveryInput struct {
	ActorID string
	OrderID string
	Payload domain.DeliveryPayload
}

func (in *IssueDeliveryInput) Validate() error {
	actor, err := check.Actor(in.ActorID)
	if err != nil {
		return err
	}
	in.ActorID = actor
	return check.Required("orderId", in.OrderID)
}

type ResourceOfferInput struct {
	AssetID      string
	AssetType    string
	AssetMeta    map[string]string
	Currency     string
	UsageScope   domain.UsageScope
	DeliveryType domain.DeliveryType
}

type PublishResourceInput struct {
	ActorID     string
	ResourceID  string
	Kind        domain.ResourceKind
	Label       string
	Description string
	Tags        []string
	Price       domain.ResourcePrice
	Policy      domain.ResourcePolicy
	Offer       ResourceOfferInput
}

func (in *PublishResourceInput) Validate() error {
	actor, err := check.Actor(in.ActorID)
	if err != nil {
		return err
	}
	in.ActorID = actor
	in.ResourceID = strings.TrimSpace(in.ResourceID)
	if !in.Kind.Valid() {
		return domain.InvalidArgument("kind must be one of model, search, storage")
	}
	if err := check.Required("label", in.Label); err != nil {
		return err
	}
	if err := check.MaxLen("label", in.Label, 80); err != nil {
		return err
	}
	if err := check.MaxLen("description", in.Description, 400); err != nil {
		return err
	}
	if err := check.Tags("tags", in.Tags, 12, 32); err != nil {
		return err
	}
	if !in.Kind.AllowsUnit(in.Price.Unit) {
		return domain.InvalidArgument("price.unit %q is not allowed for kind %s", in.Price.Unit, in.Kind)
	}
	if _, err := check.Amount("price.amount", in.Price.Amount, false); err != nil {
		return err
	}
	if err := check.Required("price.currency", in.Price.Currency); err != nil {
		return err
	}
	if in.Policy.MaxConcurrent < 0 || in.Policy.MaxConcurrent > 1000 {
		return domain.InvalidArgument("policy.maxConcurrent must be between 1 and 1000")
	}
	if err := check.Required("offer.assetId", in.Offer.AssetID); err != nil {
		return err
	}
	if err := validateAssetType(in.Offer.AssetType); err != nil {
		return err
	}
	if in.Offer.Currency != in.Price.Currency {
		return domain.InvalidArgument("offer.currency must match price.currency")
	}
	if err := validateUsageScope(in.Offer.UsageScope); err != nil {
		return err
	}
	return validateDeliveryType(in.Offer.DeliveryType)
}

type ListResourcesInput struct {
	ProviderActorID string
	Kind            domain.ResourceKind
	Status          domain.ResourceStatus
	Tag             string
	Limit           int
}

type IssueLeaseInput struct {
	ActorID         string
	ResourceID      string
	ConsumerActorID string
	TTL             time.Duration
	MaxCost         string
}

func (in *IssueLeaseInput) Validate() error {
	actor, err := check.Actor(in.ActorID)
	if err != nil {
		return err
	}
	in.ActorID = actor
	if err := check.Required("resourceId", in.ResourceID); err != nil {
		return err
	}
	if in.ConsumerActorID == "" {
		in.ConsumerActorID = actor
	}
	if !domain.SameActor(in.ConsumerActorID, actor) {
		return domain.Forbidden("actorId must match consumerActorId")
	}
	if in.TTL < domain.MinLeaseTTL || in.TTL > domain.MaxLeaseTTL {
		return domain.InvalidArgument("ttl must be between %s and %s", domain.MinLeaseTTL, domain.MaxLeaseTTL)
	}
	return check.OptionalAmount("maxCost", in.MaxCost, true)
}

type ExpireLeasesInput struct {
	Now    *time.Time
	Limit  int
	DryRun bool
}

type ListLeasesInput struct {
	ResourceID      string
	ProviderActorID string
	ConsumerActorID string
	Status          domain.LeaseStatus
	Limit           int
}

type AppendLedgerInput struct {
	ActorID   string
	LeaseID   string
	Unit      domain.LedgerUnit
	Quantity  string
	Cost      string
	SessionID string
	RunID     string
}

func (in *AppendLedgerInput) Validate() error {
	actor, err := check.Actor(in.ActorID)
	if err != nil {
		return err
	}
	in.ActorID = actor
	if err := check.Required("leaseId", in.LeaseID); err != nil {
		return err
	}
	if !in.Unit.Valid() {
		return domain.InvalidArgument("unit must be one of token, call, query, byte")
	}
	if _, err := check.Amount("quantity", in.Quantity, true); err != nil {
		return err
	}
	_, err = check.Amount("cost", in.Cost, true)
	return err
}

type ListLedgerInput struct {
	LeaseID         string
	ResourceID      string
	ProviderActorID string
	ConsumerActorID string
	Since           *time.Time
	Until           *time.Time
	Limit           int
}

func (in *ListLedgerInput) Validate() error {
	if err := check.Window(in.Since, in.Until); err != nil {
		return err
	}
	limit, err := check.Limit(in.Limit, DefaultSweepLimit, MaxSweepLimit)
	if err != nil {
		return err
	}
	in.Limit = limit
	return nil
}

func (in *ListLedgerInput) Filter() domain.LedgerFilter {
	return domain.LedgerFilter{
		LeaseID:         in.LeaseID,
		ResourceID:      in.ResourceID,
		ProviderActorID: in.ProviderActorID,
		ConsumerActorID: in.ConsumerActorID,
		Since:           in.Since,
		Until:           in.Until,
		Limit:           in.Limit,
	}
}

const (
	DefaultListLimit  = 100
	MaxListLimit      = 500
	DefaultSweepLimit = 200
	MaxSweepLimit     = 1000
)

// ReputationInput scopes a reputation summary to a provider, a resource, or both.
// Leases and disputes are windowed by issuedAt and openedAt.
type ReputationInput struct {
	ProviderActorID string
	ResourceID      string
	Since           *time.Time
	Until           *time.Time
	Limit           int
}

func (in *ReputationInput) Validate() error {
	if in.ProviderActorID != "" {
		actor, err := check.Actor(in.ProviderActorID)
		if err != nil {
			return err
		}
		in.ProviderActorID = actor
	}
	in.ResourceID = strings.TrimSpace(in.ResourceID)
	if in.ProviderActorID == "" && in.ResourceID == "" {
		return domain.InvalidArgument("providerActorId or resourceId is required")
	}
	if err := check.Window(in.Since, in.Until); err != nil {
		return err
	}
	limit, err := check.Limit(in.Limit, DefaultSweepLimit, MaxSweepLimit)
	if err != nil {
		return err
	}
	in.Limit = limit
	return nil
}

const DefaultTraceAuditLimit = 300

// TraceInput selects the entities to trace. Selectors narrow each other; Limit bounds
// the audit tail that is searched for their events.
type TraceInput struct {
	OfferID      string
	AssetID      string
	OrderID      string
	BuyerID      string
	ConsentID    string
	DeliveryID   string
	SettlementID string
	Limit        int
}

func (in *TraceInput) Validate() error {
	if in.OfferID == "" && in.AssetID == "" && in.OrderID == "" && in.BuyerID == "" &&
		in.ConsentID == "" && in.DeliveryID == "" && in.SettlementID == "" {
		return domain.InvalidArgument("at least one trace selector is required")
	}
	limit, err := check.Limit(in.Limit, DefaultTraceAuditLimit, MaxSweepLimit)
	if err != nil {
		return err
	}
	in.Limit = limit
	return nil
}

// OrderScoped reports whether a selector below the offer level is set.
func (in *TraceInput) OrderScoped() bool {
	return in.OrderID != "" || in.BuyerID != "" || in.ConsentID != "" || in.DeliveryID != "" || in.SettlementID != ""
}
