package revocation

import (
	"context"
	"errors"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/usecase/audit"
)

const DefaultBatchSize = 50

type RetryReport struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	// Rescheduled jobs stay pending for a later pass.
	Rescheduled int `json:"rescheduled"`
	Pending     int `json:"pending"`
}

// RetryPending retries up to limit pending jobs whose nextAttemptAt has passed.
// Succeeded jobs are removed; a job that reaches MaxAttempts becomes failed and is
// never picked up again.
func (s *Service) RetryPending(ctx context.Context, limit int) (report *RetryReport, err error) {
	defer domain.NormalizeError(&err)
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	now := s.clock.Now()
	jobs, err := s.store.ListRevocationJobs(ctx, domain.RevocationJobFilter{
		Status:    domain.RevocationPending,
		DueBefore: &now,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}

	report = &RetryReport{}
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		out := s.retryOne(ctx, job.JobID)
		if out == outcomeNotClaimed {
			continue
		}
		report.Processed++
		switch out {
		case outcomeSucceeded:
			report.Succeeded++
		case outcomeFailed:
			report.Failed++
		case outcomeRescheduled:
			report.Rescheduled++
		}
	}
	s.refreshGauges(ctx, report)
	return report, nil
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeFailed
	outcomeRescheduled
	outcomeSkipped
	// another sweep holds the job or already finished it
	outcomeNotClaimed
)

// claim takes a due pending job by pushing its nextAttemptAt past the handler
// timeout. Concurrent sweeps see the job as not due until the claim lapses.
func (s *Service) claim(ctx context.Context, jobID string) (*domain.RevocationJob, error) {
	var claimed *domain.RevocationJob
	err := s.store.RunInTransaction(ctx, func(tx domain.Repository) error {
		job, err := tx.GetRevocationJob(ctx, jobID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if job.Status != domain.RevocationPending || job.NextAttemptAt.After(now) {
			return nil
		}
		job.NextAttemptAt = now.Add(2 * s.cfg.Timeout)
		job.UpdatedAt = now
		if err := tx.SaveRevocationJob(ctx, job); err != nil {
			return err
		}
		// read back so settle compares against the stored precision
		claimed, err = tx.GetRevocationJob(ctx, jobID)
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return claimed, err
}

// settle replaces the job with next, or removes it, only while the claim in lease
// still holds. It reports false when the job was removed or re-claimed meanwhile.
func (s *Service) settle(ctx context.Context, lease, next *domain.RevocationJob, remove bool) (bool, error) {
	applied := false
	err := s.store.RunInTransaction(ctx, func(tx domain.Repository) error {
		current, err := tx.GetRevocationJob(ctx, lease.JobID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if current.Status != domain.RevocationPending ||
			current.Attempts != lease.Attempts ||
			!current.NextAttemptAt.Equal(lease.NextAttemptAt) {
			return nil
		}
		applied = true
		if remove {
			return tx.RemoveRevocationJob(ctx, lease.JobID)
		}
		return tx.SaveRevocationJob(ctx, next)
	})
	return applied, err
}

func (s *Service) retryOne(ctx context.Context, jobID string) outcome {
	job, err := s.claim(ctx, jobID)
	if err != nil {
		s.logger.Error("failed to claim revocation job", "job_id", jobID, "error", err)
		return outcomeSkipped
	}
	if job == nil {
		return outcomeNotClaimed
	}
	lease := *job

	target, err := s.loadTarget(ctx, job)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error("failed to load revocation target", "job_id", job.JobID, "error", err)
		return outcomeSkipped
	}
	if err != nil {
		now := s.clock.Now()
		job.Status = domain.RevocationFailed
		job.LastError = domain.Normalize(err).Message
		job.UpdatedAt = now
		if !s.apply(ctx, &lease, job, false) {
			return outcomeNotClaimed
		}
		s.record(ctx, audit.Entry{
			Kind:    domain.AuditRevocationFailed,
			RefID:   job.JobID,
			Hash:    job.PayloadHash,
			Details: map[string]any{"deliveryId": job.DeliveryID, "lastError": job.LastError},
		})
		return outcomeFailed
	}

	callErr := s.call(ctx, s.request(target, job.PayloadHash))
	if callErr == nil {
		if !s.apply(ctx, &lease, job, true) {
			return outcomeNotClaimed
		}
		s.record(ctx, audit.Entry{
			Kind:    domain.AuditRevocationSucceeded,
			RefID:   job.JobID,
			Hash:    job.PayloadHash,
			Details: map[string]any{"deliveryId": job.DeliveryID, "attempts": job.Attempts + 1},
		})
		return outcomeSucceeded
	}

	now := s.clock.Now()
	job.Attempts++
	job.LastError = domain.Normalize(callErr).Message
	job.UpdatedAt = now
	if job.Attempts >= s.cfg.MaxAttempts {
		job.Status = domain.RevocationFailed
		if !s.apply(ctx, &lease, job, false) {
			return outcomeNotClaimed
		}
		s.record(ctx, audit.Entry{
			Kind:  domain.AuditRevocationFailed,
			RefID: job.JobID,
			Hash:  job.PayloadHash,
			Details: map[string]any{
				"deliveryId": job.DeliveryID,
				"attempts":   job.Attempts,
				"lastError":  job.LastError,
			},
		})
		s.logger.Error("revocation gave up", "job_id", job.JobID, "delivery_id", job.DeliveryID, "attempts", job.Attempts)
		return outcomeFailed
	}

	job.NextAttemptAt = now.Add(s.cfg.Delay(job.Attempts))
	if !s.apply(ctx, &lease, job, false) {
		return outcomeNotClaimed
	}
	s.record(ctx, audit.Entry{
		Kind:  domain.AuditRevocationRetry,
		RefID: job.JobID,
		Hash:  job.PayloadHash,
		Details: map[string]any{
			"deliveryId":    job.DeliveryID,
			"attempts":      job.Attempts,
			"nextAttemptAt": job.NextAttemptAt.Format(time.RFC3339Nano),
			"lastError":     job.LastError,
		},
	})
	return outcomeRescheduled
}

// apply settles next against the claim held in lease.
func (s *Service) apply(ctx context.Context, lease, next *domain.RevocationJob, remove bool) bool {
	applied, err := s.settle(ctx, lease, next, remove)
	if err != nil {
		s.logger.Error("failed to settle revocation job", "job_id", lease.JobID, "error", err)
		return false
	}
	if !applied {
		s.logger.Warn("revocation job changed during retry", "job_id", lease.JobID)
	}
	return applied
}

// loadTarget rebuilds the revocation context. A missing delivery fails the job; a
// missing order, offer or consent only narrows the request.
func (s *Service) loadTarget(ctx context.Context, job *domain.RevocationJob) (Target, error) {
	delivery, err := s.store.GetDelivery(ctx, job.DeliveryID)
	if err != nil {
		return Target{}, err
	}
	t := Target{Delivery: delivery, Reason: job.Reason}
	if t.Reason == "" {
		t.Reason = "retry"
	}
	orderID := job.OrderID
	if orderID == "" {
		orderID = delivery.OrderID
	}
	if order, err := s.store.GetOrder(ctx, orderID); err == nil {
		t.Order = order
		if offer, err := s.store.GetOffer(ctx, order.OfferID); err == nil {
			t.Offer = offer
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return Target{}, err
	}
	if job.ConsentID != "" {
		if consent, err := s.store.GetConsent(ctx, job.ConsentID); err == nil {
			t.Consent = consent
		}
	}
	return t, nil
}

func (s *Service) refreshGauges(ctx context.Context, report *RetryReport) {
	pending, err := s.store.ListRevocationJobs(ctx, domain.RevocationJobFilter{Status: domain.RevocationPending})
	if err != nil {
		return
	}
	failed, err := s.store.ListRevocationJobs(ctx, domain.RevocationJobFilter{Status: domain.RevocationFailed})
	if err != nil {
		return
	}
	report.Pending = len(pending)
	s.metrics.SetRevocationJobs(len(pending), len(failed))
}

// Jobs lists revocation jobs for operators.
func (s *Service) Jobs(ctx context.Context, status domain.RevocationJobStatus, limit int) (jobs []*domain.RevocationJob, err error) {
	defer domain.NormalizeError(&err)
	return s.store.ListRevocationJobs(ctx, domain.RevocationJobFilter{Status: status, Limit: limit})
}
