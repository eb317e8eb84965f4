package publisher

import (
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
)

// AuditMessage is the wire shape of an audit event on the bus.
type AuditMessage struct {
	EventID   string         `json:"event_id"`
	Kind      string         `json:"kind"`
	RefID     string         `json:"ref_id"`
	Hash      string         `json:"hash,omitempty"`
	Actor     string         `json:"actor,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

func AuditMessageFromEvent(e *domain.AuditEvent) AuditMessage {
	return AuditMessage{
		EventID:   e.ID,
		Kind:      string(e.Kind),
		RefID:     e.RefID,
		Hash:      e.Hash,
		Actor:     e.Actor,
		Timestamp: e.Timestamp,
		Details:   e.Details,
	}
}
