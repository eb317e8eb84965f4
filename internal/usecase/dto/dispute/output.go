package disputedto

import "github.com/LavaJover/shvark-market-service/internal/domain"

type SubmitEvidenceOutput struct {
	Dispute  *domain.Dispute
	Evidence domain.DisputeEvidence
}

// ResolveDisputeOutput carries the settlement when the ruling moved funds.
type ResolveDisputeOutput struct {
	Dispute    *domain.Dispute
	Settlement *domain.Settlement
}

type SweepError struct {
	DisputeID string `json:"disputeId"`
	Error     string `json:"error"`
}

type ExpireStaleReport struct {
	Processed int          `json:"processed"`
	Expired   int          `json:"expired"`
	Skipped   int          `json:"skipped"`
	Errors    []SweepError `json:"errors,omitempty"`
}
