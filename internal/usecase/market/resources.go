package market

import (
	"context"
	"strings"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/canonical"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/usecase/audit"
	"github.com/LavaJover/shvark-market-service/internal/usecase/dto/check"
	marketdto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/market"
	"github.com/google/uuid"
)

func resourceHash(r *domain.Resource) (string, error) {
	return canonical.Hash(map[string]any{
		"resourceId":      r.ResourceID,
		"kind":            r.Kind,
		"status":          r.Status,
		"providerActorId": r.ProviderActorID,
		"offerId":         r.OfferID,
		"offerHash":       r.OfferHash,
		"label":           r.Label,
		"description":     r.Description,
		"tags":            r.Tags,
		"price":           r.Price,
		"policy":          r.Policy,
		"version":         r.Version,
	})
}

// PublishResource creates or republishes a resource together with its backing offer.
// Republishing a published resource is an update that bumps the version.
func (uc *DefaultMarketUsecase) PublishResource(ctx context.Context, in *marketdto.PublishResourceInput) (out *marketdto.PublishResourceOutput, err error) {
	defer uc.finish("publish_resource", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var (
		resource *domain.Resource
		offer    *domain.Offer
	)
	err = uc.Store.RunInTransaction(ctx, func(tx domain.Repository) error {
		var existing *domain.Resource
		if in.ResourceID != "" {
			r, err := tx.GetResource(ctx, in.ResourceID)
			switch {
			case err == nil:
				existing = r
			case domain.KindOf(err) != domain.KindNotFound:
				return err
			}
		}
		now := uc.Clock.Now()
		resource = &domain.Resource{
			ResourceID:      in.ResourceID,
			Kind:            in.Kind,
			ProviderActorID: in.ActorID,
			OfferID:         uuid.NewString(),
			Label:           strings.TrimSpace(in.Label),
			Description:     in.Description,
			Tags:            in.Tags,
			Price:           in.Price,
			Policy:          in.Policy,
			Status:          domain.ResourcePublished,
			Version:         1,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if resource.ResourceID == "" {
			resource.ResourceID = uuid.NewString()
		}
		if existing != nil {
			if err := requireActor(in.ActorID, existing.ProviderActorID, "resource.providerActorId"); err != nil {
				return err
			}
			if existing.Status != domain.ResourcePublished {
				if err := domain.ResourceTransitions.Check(domain.EntityResource, existing.Status, domain.ResourcePublished); err != nil {
					return err
				}
			}
			resource.OfferID = existing.OfferID
			resource.Version = existing.Version + 1
			resource.CreatedAt = existing.CreatedAt
		}

		offer = &domain.Offer{
			OfferID:      resource.OfferID,
			SellerID:     in.ActorID,
			AssetID:      strings.TrimSpace(in.Offer.AssetID),
			AssetType:    in.Offer.AssetType,
			AssetMeta:    in.Offer.AssetMeta,
			Price:        in.Price.Amount,
			Currency:     in.Offer.Currency,
			UsageScope:   in.Offer.UsageScope,
			DeliveryType: in.Offer.DeliveryType,
			Status:       domain.OfferPublished,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		prior, err := tx.GetOffer(ctx, offer.OfferID)
		switch {
		case err == nil:
			if prior.Status == domain.OfferClosed {
				return domain.Conflict("offer %s is closed", prior.OfferID)
			}
			offer.CreatedAt = prior.CreatedAt
		case domain.KindOf(err) != domain.KindNotFound:
			return err
		}
		if offer.OfferHash, err = canonical.Hash(offer.HashInput()); err != nil {
			return err
		}
		resource.OfferHash = offer.OfferHash
		if resource.ResourceHash, err = resourceHash(resource); err != nil {
			return err
		}
		if err := tx.SaveOffer(ctx, offer); err != nil {
			return err
		}
		return tx.SaveResource(ctx, resource)
	})
	if err != nil {
		return nil, err
	}
	uc.Metrics.Transition(domain.EntityResource, string(resource.Status))
	uc.Metrics.Transition(domain.EntityOffer, string(offer.Status))
	uc.record(ctx, audit.Entry{
		Kind:  domain.AuditResourcePublished,
		RefID: resource.ResourceID,
		Hash:  resource.ResourceHash,
		Actor: in.ActorID,
		Details: map[string]any{
			"offerId": resource.OfferID,
			"kind":    string(resource.Kind),
			"version": resource.Version,
		},
	}, "resource:"+resource.ResourceID)
	return &marketdto.PublishResourceOutput{Resource: resource, Offer: offer}, nil
}

// UnpublishResource hides the resource and closes its offer for new orders.
func (uc *DefaultMarketUsecase) UnpublishResource(ctx context.Context, in *marketdto.EntityActionInput) (resource *domain.Resource, err error) {
	defer uc.finish("unpublish_resource", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	offerClosed := false
	err = uc.Store.RunInTransaction(ctx, func(tx domain.Repository) error {
		var err error
		if resource, err = tx.GetResource(ctx, in.ID); err != nil {
			return err
		}
		if err := requireActor(in.ActorID, resource.ProviderActorID, "resource.providerActorId"); err != nil {
			return err
		}
		if err := domain.ResourceTransitions.Check(domain.EntityResource, resource.Status, domain.ResourceUnpublished); err != nil {
			return err
		}
		now := uc.Clock.Now()
		resource.Status = domain.ResourceUnpublished
		resource.UpdatedAt = now
		if resource.ResourceHash, err = resourceHash(resource); err != nil {
			return err
		}
		offer, err := tx.GetOffer(ctx, resource.OfferID)
		switch {
		case err == nil && offer.Status != domain.OfferClosed:
			if err := domain.OfferTransitions.Check(domain.EntityOffer, offer.Status, domain.OfferClosed); err != nil {
				return err
			}
			offer.Status = domain.OfferClosed
			offer.UpdatedAt = now
			if err := tx.SaveOffer(ctx, offer); err != nil {
				return err
			}
			offerClosed = true
		case err != nil && domain.KindOf(err) != domain.KindNotFound:
			return err
		}
		return tx.SaveResource(ctx, resource)
	})
	if err != nil {
		return nil, err
	}
	uc.Metrics.Transition(domain.EntityResource, string(resource.Status))
	if offerClosed {
		uc.Metrics.Transition(domain.EntityOffer, string(domain.OfferClosed))
	}
	uc.record(ctx, audit.Entry{
		Kind:    domain.AuditResourceUnpublished,
		RefID:   resource.ResourceID,
		Hash:    resource.ResourceHash,
		Actor:   in.ActorID,
		Details: map[string]any{"offerId": resource.OfferID, "reason": in.Reason},
	}, "")
	return resource, nil
}

func (uc *DefaultMarketUsecase) GetResource(ctx context.Context, resourceID string) (resource *domain.Resource, err error) {
	defer domain.NormalizeError(&err)
	if err := check.Required("resourceId", resourceID); err != nil {
		return nil, err
	}
	return uc.Store.GetResource(ctx, resourceID)
}

func (uc *DefaultMarketUsecase) ListResources(ctx context.Context, in *marketdto.ListResourcesInput) (resources []*domain.Resource, err error) {
	defer domain.NormalizeError(&err)
	limit, err := check.Limit(in.Limit, marketdto.DefaultListLimit, marketdto.MaxListLimit)
	if err != nil {
		return nil, err
	}
	return uc.Store.ListResources(ctx, domain.ResourceFilter{
		ProviderActorID: in.ProviderActorID,
		Kind:            in.Kind,
		Status:          in.Status,
		Tag:             in.Tag,
		Limit:           limit,
	})
}

// ResourceIndex lists every published resource and signs the listing with the
// service key.
func (uc *DefaultMarketUsecase) ResourceIndex(ctx context.Context) (index *marketdto.ResourceIndex, err error) {
	defer uc.finish("resource_index", time.Now(), &err)
	if uc.Signer == nil {
		return nil, domain.Unavailable("resource index signing key is not configured")
	}
	published, err := uc.Store.ListResources(ctx, domain.ResourceFilter{Status: domain.ResourcePublished})
	if err != nil {
		return nil, err
	}
	index = &marketdto.ResourceIndex{
		GeneratedAt: uc.Clock.Now(),
		KeyID:       uc.Signer.KeyID(),
		PublicKey:   uc.Signer.PublicKeyHex(),
		Resources:   make([]marketdto.ResourceIndexEntry, 0, len(published)),
	}
	for _, r := range published {
		index.Resources = append(index.Resources, marketdto.ResourceIndexEntry{
			ResourceID:      r.ResourceID,
			Kind:            r.Kind,
			ProviderActorID: r.ProviderActorID,
			OfferID:         r.OfferID,
			Label:           r.Label,
			Tags:            r.Tags,
			Price:           r.Price,
			Policy:          r.Policy,
			Version:         r.Version,
			ResourceHash:    r.ResourceHash,
		})
	}
	message, err := IndexMessage(index)
	if err != nil {
		return nil, err
	}
	index.IndexHash = canonical.MustHash(message)
	index.Signature = uc.Signer.Sign([]byte(message))
	return index, nil
}

// IndexMessage is the canonical text covered by a resource index signature.
func IndexMessage(index *marketdto.ResourceIndex) (string, error) {
	return canonical.Canonicalize(map[string]any{
		"generatedAt": index.GeneratedAt,
		"keyId":       index.KeyID,
		"publicKey":   index.PublicKey,
		"resources":   index.Resources,
	})
}
