package domain

import "time"

type DeliveryStatus string

const (
	DeliveryReady     DeliveryStatus = "delivery_ready"
	DeliveryCompleted DeliveryStatus = "delivery_completed"
	DeliveryRevoked   DeliveryStatus = "delivery_revoked"
)

// DeliveryPayload carries exactly the fields of its delivery type.
type DeliveryPayload struct {
	DownloadURL  string `json:"downloadUrl,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	Quota        int64  `json:"quota,omitempty"`
	ServiceQuota int64  `json:"serviceQuota,omitempty"`
	TicketID     string `json:"ticketId,omitempty"`
}

// Validate checks the payload against the delivery type it is issued for.
func (p *DeliveryPayload) Validate(t DeliveryType) error {
	switch t {
	case DeliveryDownload:
		if p.DownloadURL == "" {
			return InvalidArgument("payload.downloadUrl is required for download delivery")
		}
	case DeliveryAPI:
		if p.AccessToken == "" {
			return InvalidArgument("payload.accessToken is required for api delivery")
		}
		if p.Quota < 0 {
			return InvalidArgument("payload.quota must be >= 0")
		}
	case DeliveryService:
		if p.TicketID == "" && p.ServiceQuota <= 0 {
			return InvalidArgument("payload.ticketId or payload.serviceQuota is required for service delivery")
		}
	default:
		return InvalidArgument("unknown delivery type %q", t)
	}
	return nil
}

type PayloadRef struct {
	Store string `json:"store"`
	Ref   string `json:"ref"`
}

type Delivery struct {
	DeliveryID   string           `json:"deliveryId"`
	OrderID      string           `json:"orderId"`
	DeliveryType DeliveryType     `json:"deliveryType"`
	Payload      *DeliveryPayload `json:"payload,omitempty"`
	PayloadRef   *PayloadRef      `json:"payloadRef,omitempty"`
	DeliveryHash string           `json:"deliveryHash"`
	Status       DeliveryStatus   `json:"status"`
	IssuedAt     time.Time        `json:"issuedAt"`
	CompletedAt  *time.Time       `json:"completedAt,omitempty"`
	RevokedAt    *time.Time       `json:"revokedAt,omitempty"`
	RevokeReason string           `json:"revokeReason,omitempty"`
	RevokeHash   string           `json:"revokeHash,omitempty"`
}

// CheckPayload enforces that a delivery holds a payload or a reference, never both.
func (d *Delivery) CheckPayload() error {
	switch {
	case d.Payload != nil && d.PayloadRef != nil:
		return InvalidArgument("delivery %s has both payload and payloadRef", d.DeliveryID)
	case d.Payload == nil && d.PayloadRef == nil:
		return InvalidArgument("delivery %s has neither payload nor payloadRef", d.DeliveryID)
	}
	return nil
}

type DeliveryFilter struct {
	OrderID string
	Status  DeliveryStatus
}

func (f DeliveryFilter) Match(d *Delivery) bool {
	if f.OrderID != "" && f.OrderID != d.OrderID {
		return false
	}
	if f.Status != "" && f.Status != d.Status {
		return false
	}
	return true
}
