// Package revocation invalidates issued access outside the market. A failed immediate
// attempt becomes a durable job retried by RetryPending until it succeeds or runs out
// of attempts.
package revocation

import (
	"context"
	"log/slog"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/canonical"
	"github.com/LavaJover/shvark-market-service/internal/clock"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-market-service/internal/usecase/audit"
	"github.com/google/uuid"
)

// Target is the revoked delivery plus whatever context was at hand.
type Target struct {
	Delivery *domain.Delivery
	Order    *domain.Order
	Offer    *domain.Offer
	Consent  *domain.Consent
	Reason   string
}

type Result struct {
	OK    bool
	Error string
	// Job is the queued retry record when the immediate attempt failed.
	Job *domain.RevocationJob
}

type Service struct {
	store    domain.Store
	handler  domain.RevocationHandler
	recorder *audit.Recorder
	metrics  *metrics.MarketMetrics
	clock    clock.Clock
	logger   *slog.Logger
	cfg      Config
}

func NewService(
	store domain.Store,
	handler domain.RevocationHandler,
	recorder *audit.Recorder,
	m *metrics.MarketMetrics,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Service {
	return &Service{
		store:    store,
		handler:  handler,
		recorder: recorder,
		metrics:  m,
		clock:    clk,
		logger:   logger,
		cfg:      cfg.withDefaults(),
	}
}

func (s *Service) Config() Config { return s.cfg }

func payloadHash(t Target) string {
	in := map[string]any{
		"deliveryId": t.Delivery.DeliveryID,
		"reason":     t.Reason,
	}
	if t.Order != nil {
		in["orderId"] = t.Order.OrderID
	}
	if t.Offer != nil {
		in["offerId"] = t.Offer.OfferID
	}
	if t.Consent != nil {
		in["consentId"] = t.Consent.ConsentID
	}
	return canonical.MustHash(in)
}

func (s *Service) request(t Target, hash string) domain.RevocationRequest {
	req := domain.RevocationRequest{
		DeliveryID:   t.Delivery.DeliveryID,
		DeliveryType: string(t.Delivery.DeliveryType),
		PayloadRef:   t.Delivery.PayloadRef,
		Reason:       t.Reason,
		PayloadHash:  hash,
		RevokedAt:    s.clock.Now().Format(time.RFC3339Nano),
	}
	if t.Delivery.RevokedAt != nil {
		req.RevokedAt = t.Delivery.RevokedAt.Format(time.RFC3339Nano)
	}
	if t.Order != nil {
		req.OrderID = t.Order.OrderID
	}
	if t.Offer != nil {
		req.OfferID = t.Offer.OfferID
	}
	if t.Consent != nil {
		req.ConsentID = t.Consent.ConsentID
	}
	return req
}

func (s *Service) call(ctx context.Context, req domain.RevocationRequest) error {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	err := s.handler.Revoke(cctx, req)
	if err != nil {
		s.metrics.RevocationAttempt("failure")
		return err
	}
	s.metrics.RevocationAttempt("success")
	return nil
}

// RevokeNow runs the external revocation once. On failure the attempt is queued as a
// pending job and a revocation_retry event is recorded; the caller's committed state
// is never affected.
func (s *Service) RevokeNow(ctx context.Context, t Target) Result {
	hash := payloadHash(t)
	err := s.call(ctx, s.request(t, hash))
	if err == nil {
		return Result{OK: true}
	}

	now := s.clock.Now()
	job := &domain.RevocationJob{
		JobID:         uuid.NewString(),
		DeliveryID:    t.Delivery.DeliveryID,
		Reason:        t.Reason,
		PayloadHash:   hash,
		Attempts:      1,
		Status:        domain.RevocationPending,
		LastError:     domain.Normalize(err).Message,
		NextAttemptAt: now.Add(s.cfg.Delay(1)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if t.Order != nil {
		job.OrderID = t.Order.OrderID
	}
	if t.Offer != nil {
		job.OfferID = t.Offer.OfferID
	}
	if t.Consent != nil {
		job.ConsentID = t.Consent.ConsentID
	}
	if s.cfg.MaxAttempts <= 1 {
		job.Status = domain.RevocationFailed
	}

	res := Result{Error: job.LastError, Job: job}
	if err := s.store.SaveRevocationJob(ctx, job); err != nil {
		s.logger.Error("failed to queue revocation job", "delivery_id", job.DeliveryID, "error", err)
		return res
	}
	kind := domain.AuditRevocationRetry
	if job.Status == domain.RevocationFailed {
		kind = domain.AuditRevocationFailed
	}
	s.record(ctx, audit.Entry{
		Kind:  kind,
		RefID: job.JobID,
		Hash:  job.PayloadHash,
		Details: map[string]any{
			"deliveryId":    job.DeliveryID,
			"attempts":      job.Attempts,
			"nextAttemptAt": job.NextAttemptAt.Format(time.RFC3339Nano),
			"lastError":     job.LastError,
		},
	})
	s.logger.Warn("revocation queued for retry", "job_id", job.JobID, "delivery_id", job.DeliveryID, "error", err)
	return res
}

func (s *Service) record(ctx context.Context, e audit.Entry) {
	if _, err := s.recorder.Record(ctx, e); err != nil {
		s.logger.Error("failed to record audit event", "kind", e.Kind, "ref_id", e.RefID, "error", err)
	}
}
