package market

import (
	"context"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/canonical"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/usecase/audit"
	"github.com/LavaJover/shvark-market-service/internal/usecase/dto/check"
	marketdto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/market"
	"github.com/LavaJover/shvark-market-service/internal/usecase/revocation"
	"github.com/google/uuid"
)

func deliveryHash(d *domain.Delivery, payload any) (string, error) {
	return canonical.Hash(map[string]any{
		"deliveryId":   d.DeliveryID,
		"orderId":      d.OrderID,
		"deliveryType": d.DeliveryType,
		"issuedAt":     d.IssuedAt,
		"payload":      payload,
	})
}

// storePayload attaches payload to d, either inline or through the payload store.
func (uc *DefaultMarketUsecase) storePayload(ctx context.Context, d *domain.Delivery, payload *domain.DeliveryPayload) error {
	if uc.Payloads == nil {
		d.Payload = payload
		return nil
	}
	ref, err := uc.Payloads.Put(ctx, d.DeliveryID, payload)
	if err != nil {
		return err
	}
	d.PayloadRef = &domain.PayloadRef{Store: uc.Payloads.Name(), Ref: ref}
	return nil
}

// discardPayload drops a payload stored for a delivery whose commit failed.
func (uc *DefaultMarketUsecase) discardPayload(ctx context.Context, d *domain.Delivery) {
	if uc.Payloads == nil || d.PayloadRef == nil || d.PayloadRef.Store != uc.Payloads.Name() {
		return
	}
	if err := uc.Payloads.Delete(ctx, d.PayloadRef.Ref); err != nil {
		uc.Logger.Warn("failed to discard uncommitted payload", "delivery_id", d.DeliveryID, "store", d.PayloadRef.Store, "error", err)
	}
}

func (uc *DefaultMarketUsecase) IssueDelivery(ctx context.Context, in *marketdto.IssueDeliveryInput) (delivery *domain.Delivery, err error) {
	defer uc.finish("issue_delivery", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	order, err := uc.Store.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	offer, err := uc.Store.GetOffer(ctx, order.OfferID)
	if err != nil {
		return nil, err
	}
	if err := requireActor(in.ActorID, offer.SellerID, "offer.sellerId"); err != nil {
		return nil, err
	}
	if err := domain.OrderTransitions.Check(domain.EntityOrder, order.Status, domain.OrderDeliveryReady); err != nil {
		return nil, err
	}
	payload := in.Payload
	if err := payload.Validate(offer.DeliveryType); err != nil {
		return nil, err
	}

	delivery = &domain.Delivery{
		DeliveryID:   uuid.NewString(),
		OrderID:      order.OrderID,
		DeliveryType: offer.DeliveryType,
		Status:       domain.DeliveryReady,
		IssuedAt:     uc.Clock.Now(),
	}
	if delivery.DeliveryHash, err = deliveryHash(delivery, payload); err != nil {
		return nil, err
	}
	if err := uc.storePayload(ctx, delivery, &payload); err != nil {
		return nil, err
	}

	err = uc.Store.RunInTransaction(ctx, func(tx domain.Repository) error {
		current, err := tx.GetOrder(ctx, order.OrderID)
		if err != nil {
			return err
		}
		if err := uc.advanceOrder(current, domain.OrderDeliveryReady, delivery.IssuedAt); err != nil {
			return err
		}
		if err := tx.SaveDelivery(ctx, delivery); err != nil {
			return err
		}
		order = current
		return tx.SaveOrder(ctx, current)
	})
	if err != nil {
		uc.discardPayload(ctx, delivery)
		return nil, err
	}
	uc.Metrics.Transition(domain.EntityOrder, string(order.Status))
	uc.Metrics.Transition(domain.EntityDelivery, string(delivery.Status))
	uc.record(ctx, audit.Entry{
		Kind:  domain.AuditDeliveryReady,
		RefID: delivery.DeliveryID,
		Hash:  delivery.DeliveryHash,
		Actor: in.ActorID,
		Details: map[string]any{
			"orderId":      order.OrderID,
			"deliveryType": string(delivery.DeliveryType),
			"payload":      payload,
		},
	}, "delivery:"+delivery.DeliveryID)
	return delivery, nil
}

// CompleteDelivery may be confirmed by either party of the order.
func (uc *DefaultMarketUsecase) CompleteDelivery(ctx context.Context, in *marketdto.EntityActionInput) (delivery *domain.Delivery, err error) {
	defer uc.finish("complete_delivery", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var order *domain.Order
	err = uc.Store.RunInTransaction(ctx, func(tx domain.Repository) error {
		var err error
		if delivery, err = tx.GetDelivery(ctx, in.ID); err != nil {
			return err
		}
		if order, err = tx.GetOrder(ctx, delivery.OrderID); err != nil {
			return err
		}
		offer, err := tx.GetOffer(ctx, order.OfferID)
		if err != nil {
			return err
		}
		if !domain.SameActor(in.ActorID, order.BuyerID) && !domain.SameActor(in.ActorID, offer.SellerID) {
			return domain.Forbidden("actorId does not match order buyer or seller")
		}
		if err := domain.DeliveryTransitions.Check(domain.EntityDelivery, delivery.Status, domain.DeliveryCompleted); err != nil {
			return err
		}
		now := uc.Clock.Now()
		if err := uc.advanceOrder(order, domain.OrderDeliveryCompleted, now); err != nil {
			return err
		}
		delivery.Status = domain.DeliveryCompleted
		delivery.CompletedAt = &now
		if err := tx.SaveDelivery(ctx, delivery); err != nil {
			return err
		}
		return tx.SaveOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	uc.Metrics.Transition(domain.EntityOrder, string(order.Status))
	uc.Metrics.Transition(domain.EntityDelivery, string(delivery.Status))
	uc.record(ctx, audit.Entry{
		Kind:    domain.AuditDeliveryCompleted,
		RefID:   delivery.DeliveryID,
		Hash:    delivery.DeliveryHash,
		Actor:   in.ActorID,
		Details: map[string]any{"orderId": order.OrderID},
	}, "")
	return delivery, nil
}

func (uc *DefaultMarketUsecase) RevokeDelivery(ctx context.Context, in *marketdto.EntityActionInput) (out *marketdto.RevokeDeliveryOutput, err error) {
	defer uc.finish("revoke_delivery", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	reason := in.Reason
	if reason == "" {
		reason = "manual_revoke"
	}
	var (
		delivery *domain.Delivery
		order    *domain.Order
		offer    *domain.Offer
		consent  *domain.Consent
	)
	err = uc.Store.RunInTransaction(ctx, func(tx domain.Repository) error {
		var err error
		if delivery, err = tx.GetDelivery(ctx, in.ID); err != nil {
			return err
		}
		if order, err = tx.GetOrder(ctx, delivery.OrderID); err != nil {
			return err
		}
		if offer, err = tx.GetOffer(ctx, order.OfferID); err != nil {
			return err
		}
		if err := requireActor(in.ActorID, offer.SellerID, "offer.sellerId"); err != nil {
			return err
		}
		if err := revokeDeliveryInPlace(delivery, reason, uc.Clock.Now()); err != nil {
			return err
		}
		if c, err := tx.GetConsentByOrder(ctx, order.OrderID); err == nil {
			consent = c
		}
		return tx.SaveDelivery(ctx, delivery)
	})
	if err != nil {
		return nil, err
	}
	uc.Metrics.Transition(domain.EntityDelivery, string(delivery.Status))

	res := outcome(delivery.DeliveryID, uc.Revocations.RevokeNow(ctx, revocation.Target{
		Delivery: delivery,
		Order:    order,
		Offer:    offer,
		Consent:  consent,
		Reason:   reason,
	}))
	details := revocationDetails(res)
	details["orderId"] = order.OrderID
	details["reason"] = reason
	uc.record(ctx, audit.Entry{
		Kind:    domain.AuditDeliveryRevoked,
		RefID:   delivery.DeliveryID,
		Hash:    delivery.RevokeHash,
		Actor:   in.ActorID,
		Details: details,
	}, "revoke:"+delivery.DeliveryID)
	return &marketdto.RevokeDeliveryOutput{Delivery: delivery, Revocation: res}, nil
}

func (uc *DefaultMarketUsecase) GetDelivery(ctx context.Context, deliveryID string) (delivery *domain.Delivery, err error) {
	defer domain.NormalizeError(&err)
	if err := check.Required("deliveryId", deliveryID); err != nil {
		return nil, err
	}
	return uc.Store.GetDelivery(ctx, deliveryID)
}

// DeliveryPayload returns the payload of a live delivery to the buyer, resolving it
// from the payload store when only a reference is kept.
func (uc *DefaultMarketUsecase) DeliveryPayload(ctx context.Context, in *marketdto.EntityActionInput) (payload *domain.DeliveryPayload, err error) {
	defer uc.finish("delivery_payload", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	delivery, err := uc.Store.GetDelivery(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	order, err := uc.Store.GetOrder(ctx, delivery.OrderID)
	if err != nil {
		return nil, err
	}
	if err := requireActor(in.ActorID, order.BuyerID, "order.buyerId"); err != nil {
		return nil, err
	}
	if delivery.Status == domain.DeliveryRevoked {
		return nil, domain.Revoked("delivery %s was revoked", delivery.DeliveryID)
	}
	if delivery.Payload != nil {
		return delivery.Payload, nil
	}
	if uc.Payloads == nil || delivery.PayloadRef.Store != uc.Payloads.Name() {
		return nil, domain.NotFound("payload of delivery %s is not retrievable", delivery.DeliveryID)
	}
	return uc.Payloads.Get(ctx, delivery.PayloadRef.Ref)
}
