package notifier

import "github.com/LavaJover/shvark-market-service/internal/domain"

// RevocationPayload is the JSON body posted to the revocation webhook.
type RevocationPayload struct {
	DeliveryID   string             `json:"deliveryId"`
	OrderID      string             `json:"orderId,omitempty"`
	OfferID      string             `json:"offerId,omitempty"`
	ConsentID    string             `json:"consentId,omitempty"`
	DeliveryType string             `json:"deliveryType,omitempty"`
	PayloadRef   *domain.PayloadRef `json:"payloadRef,omitempty"`
	Reason       string             `json:"reason"`
	PayloadHash  string             `json:"payloadHash"`
	RevokedAt    string             `json:"revokedAt"`
}

func payloadFromRequest(req domain.RevocationRequest) RevocationPayload {
	return RevocationPayload{
		DeliveryID:   req.DeliveryID,
		OrderID:      req.OrderID,
		OfferID:      req.OfferID,
		ConsentID:    req.ConsentID,
		DeliveryType: req.DeliveryType,
		PayloadRef:   req.PayloadRef,
		Reason:       req.Reason,
		PayloadHash:  req.PayloadHash,
		RevokedAt:    req.RevokedAt,
	}
}
