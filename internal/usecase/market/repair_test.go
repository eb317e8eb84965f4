package market

import (
	"context"
	"testing"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairRevokesOrphanedLeases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resource := f.publishResource(t, domain.ResourcePolicy{})
	healthy := f.issueLease(t, resource.ResourceID, time.Hour)
	overdue := f.issueLease(t, resource.ResourceID, 10*time.Second)

	orphan := *healthy.Lease
	orphan.LeaseID = "orphan-lease"
	orphan.ResourceID = "gone"
	orphan.DeliveryID = "gone-delivery"
	orphan.ExpiresAt = f.clock.Now().Add(time.Hour)
	require.NoError(t, f.store.RunInTransaction(ctx, func(tx domain.Repository) error {
		return tx.SaveLease(ctx, &orphan)
	}))
	f.clock.Advance(time.Minute)

	report, err := f.uc.Repair(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 2, report.Succeeded)
	assert.Zero(t, report.Failed)

	lease, err := f.uc.GetLease(ctx, overdue.Lease.LeaseID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeaseExpired, lease.Status)
	lease, err = f.uc.GetLease(ctx, "orphan-lease")
	require.NoError(t, err)
	assert.Equal(t, domain.LeaseRevoked, lease.Status)
	assert.Equal(t, "repair_orphan", lease.RevokeReason)
	lease, err = f.uc.GetLease(ctx, healthy.Lease.LeaseID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeaseActive, lease.Status)
	assert.Contains(t, f.auditKinds(t), domain.AuditRepairRetry)
}
