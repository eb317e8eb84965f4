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

func (uc *DefaultMarketUsecase) CreateOffer(ctx context.Context, in *marketdto.CreateOfferInput) (offer *domain.Offer, err error) {
	defer uc.finish("create_offer", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := uc.Clock.Now()
	offer = &domain.Offer{
		OfferID:      uuid.NewString(),
		SellerID:     in.ActorID,
		AssetID:      strings.TrimSpace(in.AssetID),
		AssetType:    in.AssetType,
		AssetMeta:    in.AssetMeta,
		Price:        strings.TrimSpace(in.Price),
		Currency:     strings.TrimSpace(in.Currency),
		UsageScope:   in.UsageScope,
		DeliveryType: in.DeliveryType,
		Status:       domain.OfferCreated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if offer.OfferHash, err = canonical.Hash(offer.HashInput()); err != nil {
		return nil, err
	}
	err = uc.Store.RunInTransaction(ctx, func(tx domain.Repository) error {
		return tx.SaveOffer(ctx, offer)
	})
	if err != nil {
		return nil, err
	}
	uc.Metrics.Transition(domain.EntityOffer, string(offer.Status))
	uc.record(ctx, audit.Entry{
		Kind:  domain.AuditOfferCreated,
		RefID: offer.OfferID,
		Hash:  offer.OfferHash,
		Actor: in.ActorID,
	}, "offer:"+offer.OfferID)
	return offer, nil
}

func (uc *DefaultMarketUsecase) PublishOffer(ctx context.Context, in *marketdto.EntityActionInput) (offer *domain.Offer, err error) {
	defer uc.finish("publish_offer", time.Now(), &err)
	offer, err = uc.moveOffer(ctx, in, domain.OfferPublished)
	if err != nil {
		return nil, err
	}
	uc.record(ctx, audit.Entry{
		Kind:  domain.AuditOfferPublished,
		RefID: offer.OfferID,
		Hash:  offer.OfferHash,
		Actor: in.ActorID,
	}, "")
	return offer, nil
}

func (uc *DefaultMarketUsecase) CloseOffer(ctx context.Context, in *marketdto.EntityActionInput) (offer *domain.Offer, err error) {
	defer uc.finish("close_offer", time.Now(), &err)
	offer, err = uc.moveOffer(ctx, in, domain.OfferClosed)
	if err != nil {
		return nil, err
	}
	uc.record(ctx, audit.Entry{
		Kind:    domain.AuditOfferClosed,
		RefID:   offer.OfferID,
		Hash:    offer.OfferHash,
		Actor:   in.ActorID,
		Details: map[string]any{"reason": in.Reason},
	}, "")
	return offer, nil
}

func (uc *DefaultMarketUsecase) moveOffer(ctx context.Context, in *marketdto.EntityActionInput, to domain.OfferStatus) (*domain.Offer, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var offer *domain.Offer
	err := uc.Store.RunInTransaction(ctx, func(tx domain.Repository) error {
		var err error
		if offer, err = tx.GetOffer(ctx, in.ID); err != nil {
			return err
		}
		if err := requireActor(in.ActorID, offer.SellerID, "offer.sellerId"); err != nil {
			return err
		}
		if err := domain.OfferTransitions.Check(domain.EntityOffer, offer.Status, to); err != nil {
			return err
		}
		offer.Status = to
		offer.UpdatedAt = uc.Clock.Now()
		return tx.SaveOffer(ctx, offer)
	})
	if err != nil {
		return nil, err
	}
	uc.Metrics.Transition(domain.EntityOffer, string(to))
	return offer, nil
}

func (uc *DefaultMarketUsecase) UpdateOffer(ctx context.Context, in *marketdto.UpdateOfferInput) (offer *domain.Offer, err error) {
	defer uc.finish("update_offer", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	err = uc.Store.RunInTransaction(ctx, func(tx domain.Repository) error {
		var err error
		if offer, err = tx.GetOffer(ctx, in.OfferID); err != nil {
			return err
		}
		if err := requireActor(in.ActorID, offer.SellerID, "offer.sellerId"); err != nil {
			return err
		}
		if offer.Status == domain.OfferClosed {
			return domain.Conflict("offer %s is closed", offer.OfferID)
		}
		if in.AssetMeta != nil {
			offer.AssetMeta = in.AssetMeta
		}
		if in.Price != "" {
			offer.Price = strings.TrimSpace(in.Price)
		}
		if in.Currency != "" {
			offer.Currency = strings.TrimSpace(in.Currency)
		}
		if in.UsageScope != nil {
			offer.UsageScope = *in.UsageScope
		}
		if in.DeliveryType != "" {
			offer.DeliveryType = in.DeliveryType
		}
		if offer.OfferHash, err = canonical.Hash(offer.HashInput()); err != nil {
			return err
		}
		offer.UpdatedAt = uc.Clock.Now()
		return tx.SaveOffer(ctx, offer)
	})
	if err != nil {
		return nil, err
	}
	uc.record(ctx, audit.Entry{
		Kind:  domain.AuditOfferUpdated,
		RefID: offer.OfferID,
		Hash:  offer.OfferHash,
		Actor: in.ActorID,
	}, "offer:"+offer.OfferID)
	return offer, nil
}

func (uc *DefaultMarketUsecase) GetOffer(ctx context.Context, offerID string) (offer *domain.Offer, err error) {
	defer domain.NormalizeError(&err)
	if err := check.Required("offerId", offerID); err != nil {
		return nil, err
	}
	return uc.Store.GetOffer(ctx, offerID)
}

func (uc *DefaultMarketUsecase) ListOffers(ctx context.Context, in *marketdto.ListOffersInput) (offers []*domain.Offer, err error) {
	defer domain.NormalizeError(&err)
	limit, err := check.Limit(in.Limit, marketdto.DefaultListLimit, marketdto.MaxListLimit)
	if err != nil {
		return nil, err
	}
	return uc.Store.ListOffers(ctx, domain.OfferFilter{SellerID: in.SellerID, Status: in.Status, Limit: limit})
}
