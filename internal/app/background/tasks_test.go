package background

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	disputedto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/dispute"
	marketdto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/market"
	"github.com/LavaJover/shvark-market-service/internal/usecase/dispute"
	"github.com/LavaJover/shvark-market-service/internal/usecase/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type marketStub struct {
	market.MarketUsecase
	expired  atomic.Int32
	repaired atomic.Int32
	limit    atomic.Int32
}

func (m *marketStub) ExpireLeases(_ context.Context, in *marketdto.ExpireLeasesInput) (*marketdto.ExpireLeasesReport, error) {
	m.expired.Add(1)
	m.limit.Store(int32(in.Limit))
	return &marketdto.ExpireLeasesReport{Expired: 1}, nil
}

func (m *marketStub) Repair(context.Context, int) (*marketdto.RepairReport, error) {
	m.repaired.Add(1)
	return nil, errors.New("repair unavailable")
}

type disputeStub struct {
	dispute.DisputeUsecase
	calls atomic.Int32
}

func (d *disputeStub) ExpireStale(context.Context, *disputedto.ExpireStaleInput) (*disputedto.ExpireStaleReport, error) {
	d.calls.Add(1)
	return &disputedto.ExpireStaleReport{}, nil
}

func TestStartAllRunsEnabledSweepsUntilCancelled(t *testing.T) {
	m := &marketStub{}
	d := &disputeStub{}
	bt := NewBackgroundTasks(m, d, nil, Intervals{
		LeaseExpiry:    5 * time.Millisecond,
		LeaseLimit:     7,
		DisputeTimeout: 5 * time.Millisecond,
		Repair:         5 * time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	bt.StartAll(ctx)

	require.Eventually(t, func() bool {
		return m.expired.Load() >= 2 && d.calls.Load() >= 2 && m.repaired.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	bt.Wait()

	assert.EqualValues(t, 7, m.limit.Load())
	after := m.expired.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, m.expired.Load(), "no sweep runs after cancellation")
}
