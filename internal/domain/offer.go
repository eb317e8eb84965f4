package domain

import "time"

type OfferStatus string

const (
	OfferCreated   OfferStatus = "offer_created"
	OfferPublished OfferStatus = "offer_published"
	OfferClosed    OfferStatus = "offer_closed"
)

type DeliveryType string

const (
	DeliveryDownload DeliveryType = "download"
	DeliveryAPI      DeliveryType = "api"
	DeliveryService  DeliveryType = "service"
)

func (t DeliveryType) Valid() bool {
	switch t {
	case DeliveryDownload, DeliveryAPI, DeliveryService:
		return true
	}
	return false
}

type UsageScope struct {
	Purpose      string `json:"purpose"`
	Region       string `json:"region,omitempty"`
	DurationDays int    `json:"durationDays,omitempty"`
	Transferable bool   `json:"transferable,omitempty"`
}

type Offer struct {
	OfferID      string            `json:"offerId"`
	SellerID     string            `json:"sellerId"`
	AssetID      string            `json:"assetId"`
	AssetType    string            `json:"assetType"`
	AssetMeta    map[string]string `json:"assetMeta,omitempty"`
	Price        string            `json:"price"`
	Currency     string            `json:"currency"`
	UsageScope   UsageScope        `json:"usageScope"`
	DeliveryType DeliveryType      `json:"deliveryType"`
	Status       OfferStatus       `json:"status"`
	OfferHash    string            `json:"offerHash"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// HashInput is the canonical integrity payload of an offer.
func (o *Offer) HashInput() map[string]any {
	return map[string]any{
		"offerId":      o.OfferID,
		"sellerId":     o.SellerID,
		"assetId":      o.AssetID,
		"assetType":    o.AssetType,
		"assetMeta":    o.AssetMeta,
		"price":        o.Price,
		"currency":     o.Currency,
		"usageScope":   o.UsageScope,
		"deliveryType": o.DeliveryType,
	}
}

type OfferFilter struct {
	SellerID string
	Status   OfferStatus
	Limit    int
}

func (f OfferFilter) Match(o *Offer) bool {
	if f.SellerID != "" && !SameActor(f.SellerID, o.SellerID) {
		return false
	}
	if f.Status != "" && f.Status != o.Status {
		return false
	}
	return true
}
