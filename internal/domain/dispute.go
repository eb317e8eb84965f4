package domain

import "time"

type DisputeStatus string

const (
	DisputeOpened            DisputeStatus = "dispute_opened"
	DisputeEvidenceSubmitted DisputeStatus = "dispute_evidence_submitted"
	DisputeResolved          DisputeStatus = "dispute_resolved"
	DisputeRejected          DisputeStatus = "dispute_rejected"
	DisputeExpired           DisputeStatus = "dispute_expired"
)

func (s DisputeStatus) Unresolved() bool {
	return s == DisputeOpened || s == DisputeEvidenceSubmitted
}

type DisputeRuling string

const (
	RulingProviderWins DisputeRuling = "provider_wins"
	RulingConsumerWins DisputeRuling = "consumer_wins"
	RulingSplit        DisputeRuling = "split"
	RulingTimeout      DisputeRuling = "timeout"
)

func (r DisputeRuling) Valid() bool {
	switch r {
	case RulingProviderWins, RulingConsumerWins, RulingSplit, RulingTimeout:
		return true
	}
	return false
}

type DisputeEvidence struct {
	EvidenceID  string    `json:"evidenceId"`
	ActorID     string    `json:"actorId"`
	Summary     string    `json:"summary"`
	CID         string    `json:"cid,omitempty"`
	Hash        string    `json:"hash"`
	SubmittedAt time.Time `json:"submittedAt"`
}

type DisputeResolution struct {
	Ruling       DisputeRuling `json:"ruling"`
	Reason       string        `json:"reason"`
	RefundAmount string        `json:"refundAmount,omitempty"`
	ResolvedBy   string        `json:"resolvedBy"`
	ResolvedAt   time.Time     `json:"resolvedAt"`
}

type Dispute struct {
	DisputeID         string             `json:"disputeId"`
	OrderID           string             `json:"orderId"`
	InitiatorActorID  string             `json:"initiatorActorId"`
	RespondentActorID string             `json:"respondentActorId"`
	Reason            string             `json:"reason"`
	Status            DisputeStatus      `json:"status"`
	Evidence          []DisputeEvidence  `json:"evidence"`
	Resolution        *DisputeResolution `json:"resolution,omitempty"`
	DisputeHash       string             `json:"disputeHash"`
	OpenedAt          time.Time          `json:"openedAt"`
	ExpiresAt         time.Time          `json:"expiresAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

func (d *Dispute) IsParty(actorID string) bool {
	return SameActor(actorID, d.InitiatorActorID) || SameActor(actorID, d.RespondentActorID)
}

func (d *Dispute) EvidenceCount(actorID string) int {
	n := 0
	for _, e := range d.Evidence {
		if SameActor(e.ActorID, actorID) {
			n++
		}
	}
	return n
}

type DisputeFilter struct {
	OrderID string
	Status  DisputeStatus
	// ExpiresBefore selects disputes whose expiresAt is strictly before the instant.
	ExpiresBefore *time.Time
	Limit         int
}

func (f DisputeFilter) Match(d *Dispute) bool {
	if f.OrderID != "" && f.OrderID != d.OrderID {
		return false
	}
	if f.Status != "" && f.Status != d.Status {
		return false
	}
	if f.ExpiresBefore != nil && !d.ExpiresAt.Before(*f.ExpiresBefore) {
		return false
	}
	return true
}
