package domain

import "time"

type LedgerUnit string

const (
	UnitToken LedgerUnit = "token"
	UnitCall  LedgerUnit = "call"
	UnitQuery LedgerUnit = "query"
	UnitByte  LedgerUnit = "byte"
)

func (u LedgerUnit) Valid() bool {
	switch u {
	case UnitToken, UnitCall, UnitQuery, UnitByte:
		return true
	}
	return false
}

// LedgerEntry is an append-only usage record, not a balanced account line.
type LedgerEntry struct {
	LedgerID        string       `json:"ledgerId"`
	Timestamp       time.Time    `json:"timestamp"`
	LeaseID         string       `json:"leaseId"`
	ResourceID      string       `json:"resourceId"`
	Kind            ResourceKind `json:"kind"`
	ProviderActorID string       `json:"providerActorId"`
	ConsumerActorID string       `json:"consumerActorId"`
	Unit            LedgerUnit   `json:"unit"`
	Quantity        string       `json:"quantity"`
	Cost            string       `json:"cost"`
	Currency        string       `json:"currency"`
	TokenAddress    string       `json:"tokenAddress,omitempty"`
	SessionID       string       `json:"sessionId,omitempty"`
	RunID           string       `json:"runId,omitempty"`
	EntryHash       string       `json:"entryHash"`
}

type LedgerFilter struct {
	LeaseID         string
	ResourceID      string
	ProviderActorID string
	ConsumerActorID string
	Since           *time.Time
	Until           *time.Time
	Limit           int
}

func (f LedgerFilter) Match(e *LedgerEntry) bool {
	if f.LeaseID != "" && f.LeaseID != e.LeaseID {
		return false
	}
	if f.ResourceID != "" && f.ResourceID != e.ResourceID {
		return false
	}
	if f.ProviderActorID != "" && !SameActor(f.ProviderActorID, e.ProviderActorID) {
		return false
	}
	if f.ConsumerActorID != "" && !SameActor(f.ConsumerActorID, e.ConsumerActorID) {
		return false
	}
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && e.Timestamp.After(*f.Until) {
		return false
	}
	return true
}

type LedgerUnitTotal struct {
	Quantity string `json:"quantity"`
	Cost     string `json:"cost"`
}

type LedgerSummary struct {
	Entries   int                            `json:"entries"`
	ByUnit    map[LedgerUnit]LedgerUnitTotal `json:"byUnit"`
	TotalCost string                         `json:"totalCost"`
	Currency  string                         `json:"currency,omitempty"`
}
