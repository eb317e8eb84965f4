package domain

import "time"

type ResourceKind string

const (
	ResourceModel   ResourceKind = "model"
	ResourceSearch  ResourceKind = "search"
	ResourceStorage ResourceKind = "storage"
)

type ResourceStatus string

const (
	ResourceDraft       ResourceStatus = "resource_draft"
	ResourcePublished   ResourceStatus = "resource_published"
	ResourceUnpublished ResourceStatus = "resource_unpublished"
)

// PriceUnits lists the billing units each resource kind may be priced in.
var PriceUnits = map[ResourceKind][]string{
	ResourceModel:   {"token", "call"},
	ResourceSearch:  {"query"},
	ResourceStorage: {"gb_day", "put", "get"},
}

func (k ResourceKind) Valid() bool {
	_, ok := PriceUnits[k]
	return ok
}

func (k ResourceKind) AllowsUnit(unit string) bool {
	for _, u := range PriceUnits[k] {
		if u == unit {
			return true
		}
	}
	return false
}

type ResourcePrice struct {
	Unit         string `json:"unit"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	TokenAddress string `json:"tokenAddress,omitempty"`
}

type ResourcePolicy struct {
	MaxConcurrent   int      `json:"maxConcurrent,omitempty"`
	AllowedPurposes []string `json:"allowedPurposes,omitempty"`
}

type Resource struct {
	ResourceID      string         `json:"resourceId"`
	Kind            ResourceKind   `json:"kind"`
	ProviderActorID string         `json:"providerActorId"`
	OfferID         string         `json:"offerId"`
	OfferHash       string         `json:"offerHash"`
	Label           string         `json:"label"`
	Description     string         `json:"description,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	Price           ResourcePrice  `json:"price"`
	Policy          ResourcePolicy `json:"policy"`
	Status          ResourceStatus `json:"status"`
	Version         int            `json:"version"`
	ResourceHash    string         `json:"resourceHash"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

type ResourceFilter struct {
	ProviderActorID string
	Kind            ResourceKind
	Status          ResourceStatus
	Tag             string
	Limit           int
}

func (f ResourceFilter) Match(r *Resource) bool {
	if f.ProviderActorID != "" && !SameActor(f.ProviderActorID, r.ProviderActorID) {
		return false
	}
	if f.Kind != "" && f.Kind != r.Kind {
		return false
	}
	if f.Status != "" && f.Status != r.Status {
		return false
	}
	if f.Tag != "" {
		for _, tag := range r.Tags {
			if tag == f.Tag {
				return true
			}
		}
		return false
	}
	return true
}
