package domain

import "time"

type RevocationJobStatus string

const (
	RevocationPending RevocationJobStatus = "pending"
	RevocationFailed  RevocationJobStatus = "failed"
)

// RevocationJob is the durable retry record for an access revocation that did not
// succeed immediately. Successful jobs are removed, failed ones stay for operators.
type RevocationJob struct {
	JobID         string              `json:"jobId"`
	DeliveryID    string              `json:"deliveryId"`
	OrderID       string              `json:"orderId,omitempty"`
	OfferID       string              `json:"offerId,omitempty"`
	ConsentID     string              `json:"consentId,omitempty"`
	Reason        string              `json:"reason"`
	PayloadHash   string              `json:"payloadHash"`
	Attempts      int                 `json:"attempts"`
	Status        RevocationJobStatus `json:"status"`
	LastError     string              `json:"lastError,omitempty"`
	NextAttemptAt time.Time           `json:"nextAttemptAt"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

type RevocationJobFilter struct {
	Status RevocationJobStatus
	// DueBefore selects jobs whose nextAttemptAt is at or before the instant.
	DueBefore *time.Time
	Limit     int
}

func (f RevocationJobFilter) Match(j *RevocationJob) bool {
	if f.Status != "" && f.Status != j.Status {
		return false
	}
	if f.DueBefore != nil && j.NextAttemptAt.After(*f.DueBefore) {
		return false
	}
	return true
}
