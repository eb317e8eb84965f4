package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/config"
	disputedto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/dispute"
	marketdto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/market"
	"github.com/LavaJover/shvark-market-service/internal/usecase/dispute"
	"github.com/LavaJover/shvark-market-service/internal/usecase/market"
	"github.com/LavaJover/shvark-market-service/internal/usecase/revocation"
)

// Intervals of the periodic sweeps. A zero interval disables that sweep.
type Intervals struct {
	LeaseExpiry     time.Duration
	LeaseLimit      int
	RevocationRetry time.Duration
	RevocationBatch int
	DisputeTimeout  time.Duration
	DisputeLimit    int
	Repair          time.Duration
	RepairLimit     int
}

func IntervalsFromConfig(cfg *config.MarketConfig) Intervals {
	return Intervals{
		LeaseExpiry:     cfg.LeaseConfig.SweepInterval,
		LeaseLimit:      cfg.LeaseConfig.SweepLimit,
		RevocationRetry: cfg.RevocationConfig.RetryInterval,
		RevocationBatch: cfg.RevocationConfig.BatchSize,
		DisputeTimeout:  cfg.DisputeConfig.SweepInterval,
		DisputeLimit:    cfg.DisputeConfig.SweepLimit,
		Repair:          cfg.RepairConfig.Interval,
		RepairLimit:     cfg.RepairConfig.Limit,
	}
}

type BackgroundTasks struct {
	MarketUsecase  market.MarketUsecase
	DisputeUsecase dispute.DisputeUsecase
	Revocations    *revocation.Service
	Intervals      Intervals
	Logger         *slog.Logger

	wg sync.WaitGroup
}

func NewBackgroundTasks(
	marketUC market.MarketUsecase,
	disputeUC dispute.DisputeUsecase,
	revocations *revocation.Service,
	intervals Intervals,
	logger *slog.Logger,
) *BackgroundTasks {
	return &BackgroundTasks{
		MarketUsecase:  marketUC,
		DisputeUsecase: disputeUC,
		Revocations:    revocations,
		Intervals:      intervals,
		Logger:         logger,
	}
}

// StartAll launches every enabled sweep. Wait blocks until they all return after ctx ends.
func (bt *BackgroundTasks) StartAll(ctx context.Context) {
	bt.every(ctx, "lease_expiry", bt.Intervals.LeaseExpiry, bt.expireLeases)
	bt.every(ctx, "revocation_retry", bt.Intervals.RevocationRetry, bt.retryRevocations)
	bt.every(ctx, "dispute_timeout", bt.Intervals.DisputeTimeout, bt.expireDisputes)
	bt.every(ctx, "repair", bt.Intervals.Repair, bt.repair)
}

func (bt *BackgroundTasks) Wait() {
	bt.wg.Wait()
}

func (bt *BackgroundTasks) every(ctx context.Context, name string, interval time.Duration, run func(context.Context) error) {
	if interval <= 0 {
		bt.Logger.Info("background task disabled", "task", name)
		return
	}
	bt.wg.Add(1)
	go func() {
		defer bt.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := run(ctx); err != nil {
					bt.Logger.Error("background task failed", "task", name, "error", err)
				}
			}
		}
	}()
}

func (bt *BackgroundTasks) expireLeases(ctx context.Context) error {
	report, err := bt.MarketUsecase.ExpireLeases(ctx, &marketdto.ExpireLeasesInput{Limit: bt.Intervals.LeaseLimit})
	if err != nil {
		return err
	}
	if report.Expired > 0 || len(report.Errors) > 0 {
		bt.Logger.Info("leases expired", "expired", report.Expired, "skipped", report.Skipped, "errors", len(report.Errors))
	}
	return nil
}

func (bt *BackgroundTasks) retryRevocations(ctx context.Context) error {
	report, err := bt.Revocations.RetryPending(ctx, bt.Intervals.RevocationBatch)
	if err != nil {
		return err
	}
	if report.Processed > 0 {
		bt.Logger.Info("revocation jobs retried",
			"processed", report.Processed,
			"succeeded", report.Succeeded,
			"failed", report.Failed,
			"pending", report.Pending,
		)
	}
	return nil
}

func (bt *BackgroundTasks) expireDisputes(ctx context.Context) error {
	report, err := bt.DisputeUsecase.ExpireStale(ctx, &disputedto.ExpireStaleInput{Limit: bt.Intervals.DisputeLimit})
	if err != nil {
		return err
	}
	if report.Expired > 0 || len(report.Errors) > 0 {
		bt.Logger.Info("disputes expired", "expired", report.Expired, "errors", len(report.Errors))
	}
	return nil
}

func (bt *BackgroundTasks) repair(ctx context.Context) error {
	report, err := bt.MarketUsecase.Repair(ctx, bt.Intervals.RepairLimit)
	if err != nil {
		return err
	}
	if report.Processed > 0 {
		bt.Logger.Info("repair pass finished",
			"processed", report.Processed,
			"succeeded", report.Succeeded,
			"failed", report.Failed,
		)
	}
	return nil
}
