// Package audit appends the redacted, immutable audit trail and optionally anchors
// event hashes with an external service.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/clock"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/metrics"
	"github.com/google/uuid"
)

const (
	DefaultAnchorTimeout  = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
)

// Entry is one audit record before redaction.
type Entry struct {
	Kind    domain.AuditKind
	RefID   string
	Hash    string
	Actor   string
	Details map[string]any
}

type Recorder struct {
	store         domain.Repository
	anchor        domain.ChainAnchorService
	anchorTimeout time.Duration
	publisher     domain.EventPublisher
	metrics       *metrics.MarketMetrics
	clock         clock.Clock
	logger        *slog.Logger
}

type Option func(*Recorder)

// WithAnchor enables RecordWithAnchor submissions, each bounded by timeout.
func WithAnchor(anchor domain.ChainAnchorService, timeout time.Duration) Option {
	return func(r *Recorder) {
		r.anchor = anchor
		if timeout > 0 {
			r.anchorTimeout = timeout
		}
	}
}

func WithPublisher(p domain.EventPublisher) Option {
	return func(r *Recorder) { r.publisher = p }
}

func WithMetrics(m *metrics.MarketMetrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

func NewRecorder(store domain.Repository, clk clock.Clock, logger *slog.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		store:         store,
		anchorTimeout: DefaultAnchorTimeout,
		clock:         clk,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record redacts e and appends it. A configured publisher receives the event
// asynchronously; publish failures are logged and counted only.
func (r *Recorder) Record(ctx context.Context, e Entry) (*domain.AuditEvent, error) {
	event := &domain.AuditEvent{
		ID:        uuid.NewString(),
		Kind:      e.Kind,
		RefID:     e.RefID,
		Hash:      e.Hash,
		Actor:     e.Actor,
		Timestamp: r.clock.Now(),
		Details:   domain.RedactDetails(e.Details),
	}
	if len(event.Details) == 0 {
		event.Details = nil
	}
	if err := r.store.AppendAuditEvent(ctx, event); err != nil {
		return nil, err
	}
	r.metrics.AuditAppended(event.Kind)

	if r.publisher != nil {
		published := *event
		go func(ev *domain.AuditEvent) {
			pctx, cancel := context.WithTimeout(context.Background(), defaultPublishTimeout)
			defer cancel()
			if err := r.publisher.PublishAudit(pctx, ev); err != nil {
				r.metrics.PublishFailed()
				r.logger.Error("failed to publish audit event", "event_id", ev.ID, "kind", ev.Kind, "error", err)
			}
		}(&published)
	}
	return event, nil
}

// RecordWithAnchor submits e.Hash under anchorID before recording e. The anchor
// outcome lands in details.anchor or details.anchorError and never fails the call;
// without an anchor service the event is recorded as is.
func (r *Recorder) RecordWithAnchor(ctx context.Context, e Entry, anchorID string) (*domain.AuditEvent, error) {
	if r.anchor == nil || e.Hash == "" {
		return r.Record(ctx, e)
	}
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}

	actx, cancel := context.WithTimeout(ctx, r.anchorTimeout)
	res, err := r.anchor.AnchorHash(actx, anchorID, e.Hash)
	cancel()
	if err != nil {
		r.metrics.AnchorFailed()
		r.logger.Warn("anchor submission failed", "anchor_id", anchorID, "error", err)
		details["anchorError"] = domain.Normalize(err).Message
	} else {
		details["anchor"] = map[string]any{
			"anchorId": res.AnchorID,
			"network":  res.Network,
			"tx":       res.Tx,
		}
	}
	e.Details = details
	return r.Record(ctx, e)
}

// Read returns the last limit events in append order.
func (r *Recorder) Read(ctx context.Context, limit int) (events []*domain.AuditEvent, err error) {
	defer domain.NormalizeError(&err)
	return r.store.ReadAuditEvents(ctx, limit)
}
