package domain

import (
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderCreated             OrderStatus = "order_created"
	OrderPaymentLocked       OrderStatus = "payment_locked"
	OrderConsentGranted      OrderStatus = "consent_granted"
	OrderDeliveryReady       OrderStatus = "delivery_ready"
	OrderDeliveryCompleted   OrderStatus = "delivery_completed"
	OrderSettlementCompleted OrderStatus = "settlement_completed"
	OrderCancelled           OrderStatus = "order_cancelled"
	OrderSettlementCancelled OrderStatus = "settlement_cancelled"
	OrderConsentRevoked      OrderStatus = "consent_revoked"
)

type Order struct {
	OrderID       string      `json:"orderId"`
	OfferID       string      `json:"offerId"`
	BuyerID       string      `json:"buyerId"`
	Quantity      int         `json:"quantity"`
	Status        OrderStatus `json:"status"`
	OrderHash     string      `json:"orderHash"`
	PaymentTxHash string      `json:"paymentTxHash,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

type OrderFilter struct {
	BuyerID string
	OfferID string
	Status  OrderStatus
	Limit   int
}

func (f OrderFilter) Match(o *Order) bool {
	if f.BuyerID != "" && !SameActor(f.BuyerID, o.BuyerID) {
		return false
	}
	if f.OfferID != "" && f.OfferID != o.OfferID {
		return false
	}
	if f.Status != "" && f.Status != o.Status {
		return false
	}
	return true
}

// NormalizeActor lowercases hex addresses so 0xAbC and 0xabc name the same actor.
func NormalizeActor(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "0x") || strings.HasPrefix(id, "0X") {
		return strings.ToLower(id)
	}
	return id
}

func SameActor(a, b string) bool {
	return NormalizeActor(a) == NormalizeActor(b)
}
