package market

import (
	"context"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/canonical"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/usecase/audit"
	marketdto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/market"
	"github.com/LavaJover/shvark-market-service/internal/usecase/revocation"
	"github.com/google/uuid"
)

// ConsentMessage is the canonical text a buyer signs to grant consent.
func ConsentMessage(order *domain.Order, scope domain.ConsentScope) (string, error) {
	return canonical.Canonicalize(map[string]any{
		"orderId": order.OrderID,
		"offerId": order.OfferID,
		"buyerId": order.BuyerID,
		"scope":   scope,
	})
}

func checkScope(scope domain.ConsentScope, offer *domain.Offer) error {
	if scope.Purpose != offer.UsageScope.Purpose {
		return domain.InvalidArgument("scope.purpose must match the offer usage scope")
	}
	if ceiling := offer.UsageScope.DurationDays; ceiling > 0 && scope.DurationDays > ceiling {
		return domain.InvalidArgument("scope.durationDays exceeds the offer limit of %d", ceiling)
	}
	return nil
}

func (uc *DefaultMarketUsecase) GrantConsent(ctx context.Context, in *marketdto.GrantConsentInput) (consent *domain.Consent, err error) {
	defer uc.finish("grant_consent", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	order, err := uc.Store.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if err := requireActor(in.ActorID, order.BuyerID, "order.buyerId"); err != nil {
		return nil, err
	}
	offer, err := uc.Store.GetOffer(ctx, order.OfferID)
	if err != nil {
		return nil, err
	}
	if err := checkScope(in.Scope, offer); err != nil {
		return nil, err
	}
	if err := domain.OrderTransitions.Check(domain.EntityOrder, order.Status, domain.OrderConsentGranted); err != nil {
		return nil, err
	}
	message, err := ConsentMessage(order, in.Scope)
	if err != nil {
		return nil, err
	}
	ok, err := uc.Verifier.Verify(ctx, message, in.Signature, order.BuyerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Forbidden("consent signature does not match buyer")
	}

	err = uc.Store.RunInTransaction(ctx, func(tx domain.Repository) error {
		current, err := tx.GetOrder(ctx, order.OrderID)
		if err != nil {
			return err
		}
		now := uc.Clock.Now()
		if err := uc.advanceOrder(current, domain.OrderConsentGranted, now); err != nil {
			return err
		}
		consent = &domain.Consent{
			ConsentID:   uuid.NewString(),
			OrderID:     current.OrderID,
			BuyerID:     current.BuyerID,
			Scope:       in.Scope,
			Signature:   in.Signature,
			ConsentHash: canonical.MustHash(message),
			Status:      domain.ConsentGranted,
			GrantedAt:   now,
		}
		if err := tx.SaveConsent(ctx, consent); err != nil {
			return err
		}
		order = current
		return tx.SaveOrder(ctx, current)
	})
	if err != nil {
		return nil, err
	}
	uc.Metrics.Transition(domain.EntityOrder, string(order.Status))
	uc.Metrics.Transition(domain.EntityConsent, string(consent.Status))
	uc.record(ctx, audit.Entry{
		Kind:    domain.AuditConsentGranted,
		RefID:   consent.ConsentID,
		Hash:    consent.ConsentHash,
		Actor:   in.ActorID,
		Details: map[string]any{"orderId": order.OrderID, "purpose": consent.Scope.Purpose},
	}, "consent:"+consent.ConsentID)
	return consent, nil
}

// revokeDeliveryInPlace moves d to revoked and stamps its revoke hash.
func revokeDeliveryInPlace(d *domain.Delivery, reason string, now time.Time) error {
	if err := domain.DeliveryTransitions.Check(domain.EntityDelivery, d.Status, domain.DeliveryRevoked); err != nil {
		return err
	}
	d.Status = domain.DeliveryRevoked
	d.RevokedAt = &now
	d.RevokeReason = reason
	hash, err := canonical.Hash(map[string]any{
		"deliveryId": d.DeliveryID,
		"orderId":    d.OrderID,
		"revokedAt":  now,
		"reason":     reason,
	})
	if err != nil {
		return err
	}
	d.RevokeHash = hash
	return nil
}

func (uc *DefaultMarketUsecase) RevokeConsent(ctx context.Context, in *marketdto.RevokeConsentInput) (out *marketdto.RevokeConsentOutput, err error) {
	defer uc.finish("revoke_consent", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	reason := in.Reason
	if reason == "" {
		reason = "consent_revoked"
	}
	var (
		consent *domain.Consent
		order   *domain.Order
		offer   *domain.Offer
		revoked []*domain.Delivery
	)
	err = uc.Store.RunInTransaction(ctx, func(tx domain.Repository) error {
		var err error
		if consent, err = tx.GetConsent(ctx, in.ConsentID); err != nil {
			return err
		}
		if err := requireActor(in.ActorID, consent.BuyerID, "consent.buyerId"); err != nil {
			return err
		}
		if err := domain.ConsentTransitions.Check(domain.EntityConsent, consent.Status, domain.ConsentRevoked); err != nil {
			return err
		}
		if order, err = tx.GetOrder(ctx, consent.OrderID); err != nil {
			return err
		}
		if offer, err = tx.GetOffer(ctx, order.OfferID); err != nil {
			return err
		}
		now := uc.Clock.Now()
		if err := uc.advanceOrder(order, domain.OrderConsentRevoked, now); err != nil {
			return err
		}
		consent.Status = domain.ConsentRevoked
		consent.RevokedAt = &now
		consent.RevokeReason = in.Reason
		hashInput := map[string]any{
			"consentId": consent.ConsentID,
			"revokedAt": now,
			"scope":     consent.Scope,
		}
		if in.Reason != "" {
			hashInput["reason"] = in.Reason
		}
		if consent.RevokeHash, err = canonical.Hash(hashInput); err != nil {
			return err
		}

		deliveries, err := tx.ListDeliveries(ctx, domain.DeliveryFilter{OrderID: order.OrderID})
		if err != nil {
			return err
		}
		revoked = revoked[:0]
		for _, d := range deliveries {
			if domain.DeliveryTransitions.Terminal(d.Status) {
				continue
			}
			if err := revokeDeliveryInPlace(d, reason, now); err != nil {
				return err
			}
			if err := tx.SaveDelivery(ctx, d); err != nil {
				return err
			}
			revoked = append(revoked, d)
		}
		if err := tx.SaveConsent(ctx, consent); err != nil {
			return err
		}
		return tx.SaveOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	uc.Metrics.Transition(domain.EntityOrder, string(order.Status))
	uc.Metrics.Transition(domain.EntityConsent, string(consent.Status))

	out = &marketdto.RevokeConsentOutput{Consent: consent, Order: order, Revocations: []marketdto.RevocationOutcome{}}
	for _, d := range revoked {
		uc.Metrics.Transition(domain.EntityDelivery, string(d.Status))
		res := outcome(d.DeliveryID, uc.Revocations.RevokeNow(ctx, revocation.Target{
			Delivery: d,
			Order:    order,
			Offer:    offer,
			Consent:  consent,
			Reason:   reason,
		}))
		out.Revocations = append(out.Revocations, res)
		details := revocationDetails(res)
		details["orderId"] = order.OrderID
		details["reason"] = reason
		uc.record(ctx, audit.Entry{
			Kind:    domain.AuditDeliveryRevoked,
			RefID:   d.DeliveryID,
			Hash:    d.RevokeHash,
			Actor:   in.ActorID,
			Details: details,
		}, "")
	}
	uc.record(ctx, audit.Entry{
		Kind:  domain.AuditConsentRevoked,
		RefID: consent.ConsentID,
		Hash:  consent.RevokeHash,
		Actor: in.ActorID,
		Details: map[string]any{
			"orderId":           order.OrderID,
			"reason":            reason,
			"revokedDeliveries": len(revoked),
		},
	}, "revoke:"+consent.ConsentID)
	return out, nil
}
