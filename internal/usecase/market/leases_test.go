package market

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/canonical"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	marketdto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) publishResource(t *testing.T, policy domain.ResourcePolicy) *domain.Resource {
	t.Helper()
	out, err := f.uc.PublishResource(context.Background(), &marketdto.PublishResourceInput{
		ActorID:     f.seller.id,
		ResourceID:  "R1",
		Kind:        domain.ResourceModel,
		Label:       "Hosted model",
		Description: "chat completion endpoint",
		Tags:        []string{"llm", "chat"},
		Price:       domain.ResourcePrice{Unit: "token", Amount: "10", Currency: "USD"},
		Policy:      policy,
		Offer: marketdto.ResourceOfferInput{
			AssetID:      "model-1",
			AssetType:    "api",
			Currency:     "USD",
			UsageScope:   domain.UsageScope{Purpose: "inference"},
			DeliveryType: domain.DeliveryAPI,
		},
	})
	require.NoError(t, err)
	return out.Resource
}

func (f *fixture) issueLease(t *testing.T, resourceID string, ttl time.Duration) *marketdto.IssueLeaseOutput {
	t.Helper()
	out, err := f.uc.IssueLease(context.Background(), &marketdto.IssueLeaseInput{
		ActorID:    f.buyer.id,
		ResourceID: resourceID,
		TTL:        ttl,
	})
	require.NoError(t, err)
	return out
}

func TestLeaseLedgerAndStatusScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resource := f.publishResource(t, domain.ResourcePolicy{})
	assert.Equal(t, "R1", resource.ResourceID)
	assert.Equal(t, 1, resource.Version)

	issued := f.issueLease(t, resource.ResourceID, 60*time.Second)
	assert.True(t, strings.HasPrefix(issued.AccessToken, "tok_"))
	assert.Equal(t, canonical.HashToken(issued.AccessToken), issued.Lease.AccessTokenHash)
	assert.Equal(t, domain.LeaseActive, issued.Lease.Status)

	order, err := f.uc.GetOrder(ctx, issued.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderDeliveryReady, order.Status)
	delivery, err := f.uc.GetDelivery(ctx, issued.DeliveryID)
	require.NoError(t, err)
	assert.Nil(t, delivery.Payload)
	assert.Equal(t, &domain.PayloadRef{Store: "lease", Ref: issued.Lease.LeaseID}, delivery.PayloadRef)

	entry, err := f.uc.AppendLedger(ctx, &marketdto.AppendLedgerInput{
		ActorID:  f.seller.id,
		LeaseID:  issued.Lease.LeaseID,
		Unit:     domain.UnitToken,
		Quantity: "42",
		Cost:     "420",
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", entry.Currency)
	assert.NotEmpty(t, entry.EntryHash)

	entries, err := f.uc.ListLedger(ctx, &marketdto.ListLedgerInput{LeaseID: issued.Lease.LeaseID})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	summary, err := f.uc.SummarizeLedger(ctx, &marketdto.ListLedgerInput{ResourceID: resource.ResourceID})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Entries)
	assert.Equal(t, "420", summary.TotalCost)
	assert.Equal(t, domain.LedgerUnitTotal{Quantity: "42", Cost: "420"}, summary.ByUnit[domain.UnitToken])

	snap, err := f.uc.StatusSnapshot(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, snap.Leases.Total, 1)
	assert.Equal(t, 1, snap.Leases.Active)
	assert.Equal(t, 0, snap.Disputes.Total)
	for _, a := range snap.Alerts {
		assert.False(t, a.Triggered, a.ID)
	}
}

func TestAppendLedgerGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resource := f.publishResource(t, domain.ResourcePolicy{})
	out, err := f.uc.IssueLease(ctx, &marketdto.IssueLeaseInput{
		ActorID:    f.buyer.id,
		ResourceID: resource.ResourceID,
		TTL:        time.Minute,
		MaxCost:    "100",
	})
	require.NoError(t, err)
	charge := func(actorID, cost string) error {
		_, err := f.uc.AppendLedger(ctx, &marketdto.AppendLedgerInput{
			ActorID:  actorID,
			LeaseID:  out.Lease.LeaseID,
			Unit:     domain.UnitCall,
			Quantity: "1",
			Cost:     cost,
		})
		return err
	}

	assert.ErrorIs(t, charge(f.buyer.id, "1"), domain.ErrForbidden)
	assert.ErrorIs(t, charge(f.seller.id, "-1"), domain.ErrInvalidArgument)
	require.NoError(t, charge(f.seller.id, "60"))
	assert.ErrorIs(t, charge(f.seller.id, "41"), domain.ErrQuotaExceeded)

	_, err = f.uc.RevokeLease(ctx, &marketdto.EntityActionInput{ActorID: f.buyer.id, ID: out.Lease.LeaseID})
	require.NoError(t, err)
	assert.ErrorIs(t, charge(f.seller.id, "1"), domain.ErrRevoked)
}

func TestIssueLeaseValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resource := f.publishResource(t, domain.ResourcePolicy{MaxConcurrent: 1})

	_, err := f.uc.IssueLease(ctx, &marketdto.IssueLeaseInput{ActorID: f.buyer.id, ResourceID: resource.ResourceID, TTL: time.Second})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = f.uc.IssueLease(ctx, &marketdto.IssueLeaseInput{ActorID: "", ResourceID: resource.ResourceID, TTL: time.Minute})
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
	_, err = f.uc.IssueLease(ctx, &marketdto.IssueLeaseInput{
		ActorID:         f.buyer.id,
		ConsumerActorID: f.seller.id,
		ResourceID:      resource.ResourceID,
		TTL:             time.Minute,
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	f.issueLease(t, resource.ResourceID, time.Minute)
	_, err = f.uc.IssueLease(ctx, &marketdto.IssueLeaseInput{ActorID: f.buyer.id, ResourceID: resource.ResourceID, TTL: time.Minute})
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)

	_, err = f.uc.UnpublishResource(ctx, &marketdto.EntityActionInput{ActorID: f.seller.id, ID: resource.ResourceID})
	require.NoError(t, err)
	_, err = f.uc.IssueLease(ctx, &marketdto.IssueLeaseInput{ActorID: f.buyer.id, ResourceID: resource.ResourceID, TTL: time.Minute})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRevokeLeaseRevokesDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resource := f.publishResource(t, domain.ResourcePolicy{})
	issued := f.issueLease(t, resource.ResourceID, time.Minute)
	stranger := newActor(t)

	_, err := f.uc.RevokeLease(ctx, &marketdto.EntityActionInput{ActorID: stranger.id, ID: issued.Lease.LeaseID})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	out, err := f.uc.RevokeLease(ctx, &marketdto.EntityActionInput{ActorID: f.seller.id, ID: issued.Lease.LeaseID})
	require.NoError(t, err)
	assert.Equal(t, domain.LeaseRevoked, out.Lease.Status)
	require.NotNil(t, out.Revocation)
	assert.True(t, out.Revocation.OK)

	delivery, err := f.uc.GetDelivery(ctx, issued.DeliveryID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryRevoked, delivery.Status)
	assert.Equal(t, "lease_revoked", delivery.RevokeReason)

	reqs := f.revoker.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, &domain.PayloadRef{Store: "lease", Ref: issued.Lease.LeaseID}, reqs[0].PayloadRef)

	_, err = f.uc.RevokeLease(ctx, &marketdto.EntityActionInput{ActorID: f.seller.id, ID: issued.Lease.LeaseID})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRevokeExpiredLease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issued := f.issueLease(t, f.publishResource(t, domain.ResourcePolicy{}).ResourceID, time.Minute)
	f.clock.Advance(time.Minute)

	_, err := f.uc.RevokeLease(ctx, &marketdto.EntityActionInput{ActorID: f.buyer.id, ID: issued.Lease.LeaseID})
	assert.ErrorIs(t, err, domain.ErrExpired)
}

func TestExpireLeasesSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resourceID := f.publishResource(t, domain.ResourcePolicy{}).ResourceID
	short := f.issueLease(t, resourceID, 10*time.Second)
	long := f.issueLease(t, resourceID, time.Hour)
	f.clock.Advance(30 * time.Second)

	report, err := f.uc.ExpireLeases(ctx, &marketdto.ExpireLeasesInput{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Expired)
	lease, err := f.uc.GetLease(ctx, short.Lease.LeaseID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeaseActive, lease.Status)

	report, err = f.uc.ExpireLeases(ctx, &marketdto.ExpireLeasesInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Expired)
	assert.Zero(t, report.Skipped)

	lease, err = f.uc.GetLease(ctx, short.Lease.LeaseID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeaseExpired, lease.Status)
	lease, err = f.uc.GetLease(ctx, long.Lease.LeaseID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeaseActive, lease.Status)

	_, err = f.uc.ExpireLeases(ctx, &marketdto.ExpireLeasesInput{Limit: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
