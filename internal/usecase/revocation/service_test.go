package revocation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/clock"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/filestore"
	"github.com/LavaJover/shvark-market-service/internal/usecase/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type scriptedHandler struct {
	mu    sync.Mutex
	fail  bool
	calls []domain.RevocationRequest
}

func (h *scriptedHandler) Revoke(_ context.Context, req domain.RevocationRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, req)
	if h.fail {
		return errors.New("webhook returned 503")
	}
	return nil
}

func (h *scriptedHandler) setFail(v bool) {
	h.mu.Lock()
	h.fail = v
	h.mu.Unlock()
}

func (h *scriptedHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

type fixture struct {
	store   *filestore.Store
	clock   *clock.Fake
	handler *scriptedHandler
	svc     *Service
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	store, err := filestore.Open(t.TempDir())
	require.NoError(t, err)
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	h := &scriptedHandler{}
	rec := audit.NewRecorder(store, clk, quiet)
	return &fixture{
		store:   store,
		clock:   clk,
		handler: h,
		svc:     NewService(store, h, rec, nil, clk, quiet, cfg),
	}
}

func (f *fixture) delivery(t *testing.T) *domain.Delivery {
	t.Helper()
	now := f.clock.Now()
	d := &domain.Delivery{
		DeliveryID:   "d1",
		OrderID:      "o1",
		DeliveryType: domain.DeliveryAPI,
		PayloadRef:   &domain.PayloadRef{Store: "memory", Ref: "d1"},
		Status:       domain.DeliveryRevoked,
		IssuedAt:     now,
		RevokedAt:    &now,
		RevokeReason: "manual_revoke",
	}
	require.NoError(t, f.store.SaveDelivery(context.Background(), d))
	return d
}

func auditKinds(t *testing.T, s *filestore.Store) []domain.AuditKind {
	t.Helper()
	events, err := s.ReadAuditEvents(context.Background(), 0)
	require.NoError(t, err)
	kinds := make([]domain.AuditKind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func TestRevokeNowSuccessQueuesNothing(t *testing.T) {
	f := newFixture(t, Config{})
	d := f.delivery(t)

	res := f.svc.RevokeNow(context.Background(), Target{Delivery: d, Reason: "manual_revoke"})
	assert.True(t, res.OK)
	assert.Nil(t, res.Job)

	jobs, err := f.store.ListRevocationJobs(context.Background(), domain.RevocationJobFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobs)
	require.Equal(t, 1, f.handler.count())
	assert.Equal(t, "d1", f.handler.calls[0].DeliveryID)
	assert.NotEmpty(t, f.handler.calls[0].PayloadHash)
}

func TestRevokeNowFailureQueuesJob(t *testing.T) {
	f := newFixture(t, Config{RetryDelay: time.Minute})
	d := f.delivery(t)
	f.handler.setFail(true)

	res := f.svc.RevokeNow(context.Background(), Target{Delivery: d, Reason: "manual_revoke"})
	assert.False(t, res.OK)
	require.NotNil(t, res.Job)
	assert.Equal(t, 1, res.Job.Attempts)
	assert.Equal(t, domain.RevocationPending, res.Job.Status)
	assert.Equal(t, f.clock.Now().Add(time.Minute), res.Job.NextAttemptAt)
	assert.Contains(t, auditKinds(t, f.store), domain.AuditRevocationRetry)
}

func TestRetryFailsAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{MaxAttempts: 3, RetryDelay: time.Minute})
	d := f.delivery(t)
	f.handler.setFail(true)

	res := f.svc.RevokeNow(ctx, Target{Delivery: d, Reason: "manual_revoke"})
	require.NotNil(t, res.Job)

	// not yet due
	report, err := f.svc.RetryPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)

	f.clock.Advance(time.Minute)
	report, err = f.svc.RetryPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rescheduled)

	f.clock.Advance(time.Minute)
	report, err = f.svc.RetryPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	job, err := f.store.GetRevocationJob(ctx, res.Job.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.RevocationFailed, job.Status)
	assert.Equal(t, 3, job.Attempts)
	assert.Equal(t, 3, f.handler.count())

	// a failed job is never retried again
	f.handler.setFail(false)
	f.clock.Advance(24 * time.Hour)
	report, err = f.svc.RetryPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 3, f.handler.count())
	assert.Contains(t, auditKinds(t, f.store), domain.AuditRevocationFailed)
}

func TestRetrySuccessRemovesJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{MaxAttempts: 5, RetryDelay: time.Second})
	d := f.delivery(t)
	f.handler.setFail(true)
	res := f.svc.RevokeNow(ctx, Target{Delivery: d, Reason: "manual_revoke"})
	require.NotNil(t, res.Job)

	f.handler.setFail(false)
	f.clock.Advance(time.Second)
	report, err := f.svc.RetryPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 0, report.Pending)

	_, err = f.store.GetRevocationJob(ctx, res.Job.JobID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	f.clock.Advance(time.Hour)
	report, err = f.svc.RetryPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 2, f.handler.count())
	assert.Contains(t, auditKinds(t, f.store), domain.AuditRevocationSucceeded)
}

func TestRetryMissingDeliveryFailsJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	now := f.clock.Now()
	require.NoError(t, f.store.SaveRevocationJob(ctx, &domain.RevocationJob{
		JobID: "j1", DeliveryID: "gone", Attempts: 1, Status: domain.RevocationPending,
		NextAttemptAt: now, CreatedAt: now, UpdatedAt: now,
	}))

	report, err := f.svc.RetryPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	job, err := f.store.GetRevocationJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.RevocationFailed, job.Status)
	assert.Equal(t, 0, f.handler.count())
}

func TestDelayPolicy(t *testing.T) {
	fixed := Config{RetryDelay: time.Second}.withDefaults()
	assert.Equal(t, time.Second, fixed.Delay(1))
	assert.Equal(t, time.Second, fixed.Delay(4))

	exp := Config{RetryDelay: time.Second, Policy: PolicyExponential, MaxRetryDelay: 5 * time.Second}.withDefaults()
	assert.Equal(t, time.Second, exp.Delay(1))
	assert.Equal(t, 2*time.Second, exp.Delay(2))
	assert.Equal(t, 4*time.Second, exp.Delay(3))
	assert.Equal(t, 5*time.Second, exp.Delay(4))
	assert.Equal(t, 5*time.Second, exp.Delay(60))
}
