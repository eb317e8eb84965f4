package market

import (
	"context"
	"testing"

	"github.com/LavaJover/shvark-market-service/internal/canonical"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/signature"
	marketdto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishResourceRepublishAndUnpublish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.publishResource(t, domain.ResourcePolicy{})
	second := f.publishResource(t, domain.ResourcePolicy{MaxConcurrent: 4})
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, first.OfferID, second.OfferID)
	assert.NotEqual(t, first.ResourceHash, second.ResourceHash)

	other := newActor(t)
	_, err := f.uc.UnpublishResource(ctx, &marketdto.EntityActionInput{ActorID: other.id, ID: first.ResourceID})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	unpublished, err := f.uc.UnpublishResource(ctx, &marketdto.EntityActionInput{ActorID: f.seller.id, ID: first.ResourceID})
	require.NoError(t, err)
	assert.Equal(t, domain.ResourceUnpublished, unpublished.Status)
	offer, err := f.uc.GetOffer(ctx, first.OfferID)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferClosed, offer.Status)

	_, err = f.uc.PublishResource(ctx, &marketdto.PublishResourceInput{
		ActorID:    f.seller.id,
		ResourceID: first.ResourceID,
		Kind:       domain.ResourceModel,
		Label:      "Hosted model",
		Price:      domain.ResourcePrice{Unit: "token", Amount: "10", Currency: "USD"},
		Offer: marketdto.ResourceOfferInput{
			AssetID:      "model-1",
			AssetType:    "api",
			Currency:     "USD",
			UsageScope:   domain.UsageScope{Purpose: "inference"},
			DeliveryType: domain.DeliveryAPI,
		},
	})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = f.uc.PublishResource(ctx, &marketdto.PublishResourceInput{
		ActorID: f.seller.id,
		Kind:    domain.ResourceSearch,
		Label:   "Search",
		Price:   domain.ResourcePrice{Unit: "token", Amount: "1", Currency: "USD"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestResourceIndexIsSigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.publishResource(t, domain.ResourcePolicy{})

	index, err := f.uc.ResourceIndex(ctx)
	require.NoError(t, err)
	require.Len(t, index.Resources, 1)
	assert.Equal(t, "R1", index.Resources[0].ResourceID)

	message, err := IndexMessage(index)
	require.NoError(t, err)
	ok, err := signature.NewEd25519Verifier().Verify(ctx, message, index.Signature, index.KeyID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, canonical.MustHash(message), index.IndexHash)
}
