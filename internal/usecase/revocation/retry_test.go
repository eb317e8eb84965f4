package revocation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedHandler blocks every call until release is closed and counts calls.
type gatedHandler struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
	fail    atomic.Bool
	onCall  func()
}

func newGatedHandler() *gatedHandler {
	return &gatedHandler{entered: make(chan struct{}), release: make(chan struct{})}
}

func (h *gatedHandler) Revoke(ctx context.Context, _ domain.RevocationRequest) error {
	h.calls.Add(1)
	h.once.Do(func() { close(h.entered) })
	select {
	case <-h.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	if h.onCall != nil {
		h.onCall()
	}
	if h.fail.Load() {
		return errors.New("webhook returned 503")
	}
	return nil
}

func queueJob(t *testing.T, f *fixture) *domain.RevocationJob {
	t.Helper()
	f.delivery(t)
	now := f.clock.Now()
	job := &domain.RevocationJob{
		JobID: "j1", DeliveryID: "d1", OrderID: "o1", Reason: "manual_revoke",
		Attempts: 1, Status: domain.RevocationPending,
		NextAttemptAt: now, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, f.store.SaveRevocationJob(context.Background(), job))
	return job
}

func TestConcurrentRetrySweepsCallHandlerOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{MaxAttempts: 5, RetryDelay: time.Second, Timeout: time.Minute})
	h := newGatedHandler()
	f.svc.handler = h
	queueJob(t, f)

	var first *RetryReport
	done := make(chan struct{})
	go func() {
		defer close(done)
		var err error
		first, err = f.svc.RetryPending(ctx, 0)
		assert.NoError(t, err)
	}()
	<-h.entered

	// the second sweep fails its call if it ever reaches the handler
	h.fail.Store(true)
	second, err := f.svc.RetryPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Processed)

	h.fail.Store(false)
	close(h.release)
	<-done
	require.NotNil(t, first)
	assert.Equal(t, 1, first.Succeeded)
	assert.Equal(t, int32(1), h.calls.Load())

	_, err = f.store.GetRevocationJob(ctx, "j1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	f.clock.Advance(time.Hour)
	report, err := f.svc.RetryPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)
}

func TestRetryDoesNotResurrectJobRemovedDuringCall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{MaxAttempts: 5, RetryDelay: time.Second})
	h := newGatedHandler()
	h.fail.Store(true)
	h.onCall = func() {
		require.NoError(t, f.store.RemoveRevocationJob(ctx, "j1"))
	}
	close(h.release)
	f.svc.handler = h
	queueJob(t, f)

	report, err := f.svc.RetryPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Rescheduled)
	assert.Equal(t, 0, report.Pending)

	_, err = f.store.GetRevocationJob(ctx, "j1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotContains(t, auditKinds(t, f.store), domain.AuditRevocationRetry)
}

func TestRetryLeavesFailedJobFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{MaxAttempts: 5, RetryDelay: time.Second})
	h := newGatedHandler()
	h.fail.Store(true)
	h.onCall = func() {
		job, err := f.store.GetRevocationJob(ctx, "j1")
		require.NoError(t, err)
		job.Status = domain.RevocationFailed
		require.NoError(t, f.store.SaveRevocationJob(ctx, job))
	}
	close(h.release)
	f.svc.handler = h
	queueJob(t, f)

	_, err := f.svc.RetryPending(ctx, 0)
	require.NoError(t, err)

	job, err := f.store.GetRevocationJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.RevocationFailed, job.Status)
	assert.Equal(t, 1, job.Attempts)
}
