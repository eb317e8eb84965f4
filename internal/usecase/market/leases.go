package market

import (
	"context"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/canonical"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/tokens"
	"github.com/LavaJover/shvark-market-service/internal/usecase/audit"
	"github.com/LavaJover/shvark-market-service/internal/usecase/dto/check"
	marketdto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/market"
	"github.com/LavaJover/shvark-market-service/internal/usecase/revocation"
	"github.com/google/uuid"
)

const (
	leaseConsentSignature = "lease_issue"
	leasePayloadStore     = "lease"
)

// IssueLease grants time-boxed api access to a published resource. The order, consent,
// delivery and lease it implies are committed together; the plaintext token is only
// ever returned here.
func (uc *DefaultMarketUsecase) IssueLease(ctx context.Context, in *marketdto.IssueLeaseInput) (out *marketdto.IssueLeaseOutput, err error) {
	defer uc.finish("issue_lease", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	resource, err := uc.Store.GetResource(ctx, in.ResourceID)
	if err != nil {
		return nil, err
	}
	if resource.Status != domain.ResourcePublished {
		return nil, domain.Conflict("resource %s is not published", resource.ResourceID)
	}
	offer, err := uc.Store.GetOffer(ctx, resource.OfferID)
	if err != nil {
		return nil, err
	}
	if offer.Status != domain.OfferPublished {
		return nil, domain.Conflict("offer %s is not published", offer.OfferID)
	}

	now := uc.Clock.Now()
	lease := &domain.Lease{
		LeaseID:         uuid.NewString(),
		ResourceID:      resource.ResourceID,
		Kind:            resource.Kind,
		ProviderActorID: resource.ProviderActorID,
		ConsumerActorID: in.ConsumerActorID,
		OrderID:         uuid.NewString(),
		ConsentID:       uuid.NewString(),
		DeliveryID:      uuid.NewString(),
		Status:          domain.LeaseActive,
		IssuedAt:        now,
		ExpiresAt:       now.Add(in.TTL),
		MaxCost:         in.MaxCost,
	}
	token, err := uc.Tokens.Issue(tokens.Grant{
		LeaseID:         lease.LeaseID,
		ResourceID:      lease.ResourceID,
		ConsumerActorID: lease.ConsumerActorID,
		IssuedAt:        lease.IssuedAt,
		ExpiresAt:       lease.ExpiresAt,
	})
	if err != nil {
		return nil, domain.Internal(err, "failed to mint access token")
	}
	lease.AccessTokenHash = canonical.HashToken(token)

	order := &domain.Order{
		OrderID:   lease.OrderID,
		OfferID:   offer.OfferID,
		BuyerID:   lease.ConsumerActorID,
		Quantity:  1,
		Status:    domain.OrderCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if order.OrderHash, err = orderHash(order, offer); err != nil {
		return nil, err
	}
	for _, next := range []domain.OrderStatus{domain.OrderPaymentLocked, domain.OrderConsentGranted, domain.OrderDeliveryReady} {
		if err := uc.advanceOrder(order, next, now); err != nil {
			return nil, err
		}
	}

	scope := domain.ConsentScope{Purpose: offer.UsageScope.Purpose, DurationDays: offer.UsageScope.DurationDays}
	message, err := ConsentMessage(order, scope)
	if err != nil {
		return nil, err
	}
	consent := &domain.Consent{
		ConsentID:   lease.ConsentID,
		OrderID:     order.OrderID,
		BuyerID:     order.BuyerID,
		Scope:       scope,
		Signature:   leaseConsentSignature,
		ConsentHash: canonical.MustHash(message),
		Status:      domain.ConsentGranted,
		GrantedAt:   now,
	}

	delivery := &domain.Delivery{
		DeliveryID:   lease.DeliveryID,
		OrderID:      order.OrderID,
		DeliveryType: domain.DeliveryAPI,
		Status:       domain.DeliveryReady,
		IssuedAt:     now,
	}
	if delivery.DeliveryHash, err = deliveryHash(delivery, map[string]any{"accessTokenHash": lease.AccessTokenHash}); err != nil {
		return nil, err
	}
	if uc.Payloads != nil {
		if err := uc.storePayload(ctx, delivery, &domain.DeliveryPayload{AccessToken: token}); err != nil {
			return nil, err
		}
		ref := *delivery.PayloadRef
		lease.AccessRef = &ref
	} else {
		// the plaintext token is never persisted inline
		delivery.PayloadRef = &domain.PayloadRef{Store: leasePayloadStore, Ref: lease.LeaseID}
	}

	err = uc.Store.RunInTransaction(ctx, func(tx domain.Repository) error {
		current, err := tx.GetResource(ctx, resource.ResourceID)
		if err != nil {
			return err
		}
		if current.Status != domain.ResourcePublished {
			return domain.Conflict("resource %s is not published", current.ResourceID)
		}
		if ceiling := current.Policy.MaxConcurrent; ceiling > 0 {
			active, err := tx.ListLeases(ctx, domain.LeaseFilter{ResourceID: current.ResourceID, Status: domain.LeaseActive})
			if err != nil {
				return err
			}
			live := 0
			for _, l := range active {
				if !l.ExpiredAt(now) {
					live++
				}
			}
			if live >= ceiling {
				return domain.QuotaExceeded("resource %s allows at most %d concurrent leases", current.ResourceID, ceiling)
			}
		}
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}
		if err := tx.SaveConsent(ctx, consent); err != nil {
			return err
		}
		if err := tx.SaveDelivery(ctx, delivery); err != nil {
			return err
		}
		return tx.SaveLease(ctx, lease)
	})
	if err != nil {
		uc.discardPayload(ctx, delivery)
		return nil, err
	}
	uc.Metrics.Transition(domain.EntityOrder, string(order.Status))
	uc.Metrics.Transition(domain.EntityConsent, string(consent.Status))
	uc.Metrics.Transition(domain.EntityDelivery, string(delivery.Status))
	uc.Metrics.Transition(domain.EntityLease, string(lease.Status))
	uc.record(ctx, audit.Entry{
		Kind:  domain.AuditLeaseIssued,
		RefID: lease.LeaseID,
		Hash:  lease.AccessTokenHash,
		Actor: in.ActorID,
		Details: map[string]any{
			"resourceId": lease.ResourceID,
			"orderId":    lease.OrderID,
			"consentId":  lease.ConsentID,
			"deliveryId": lease.DeliveryID,
			"expiresAt":  lease.ExpiresAt.Format(time.RFC3339Nano),
		},
	}, "lease:"+lease.LeaseID)

	return &marketdto.IssueLeaseOutput{
		Lease:       lease,
		AccessToken: token,
		OrderID:     lease.OrderID,
		ConsentID:   lease.ConsentID,
		DeliveryID:  lease.DeliveryID,
	}, nil
}

// RevokeLease ends a live lease early. Its delivery is revoked in the same commit and
// then handed to external revocation.
func (uc *DefaultMarketUsecase) RevokeLease(ctx context.Context, in *marketdto.EntityActionInput) (out *marketdto.RevokeLeaseOutput, err error) {
	defer uc.finish("revoke_lease", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	reason := in.Reason
	if reason == "" {
		reason = "lease_revoked"
	}
	var (
		lease    *domain.Lease
		delivery *domain.Delivery
		order    *domain.Order
		offer    *domain.Offer
		consent  *domain.Consent
	)
	err = uc.Store.RunInTransaction(ctx, func(tx domain.Repository) error {
		var err error
		if lease, err = tx.GetLease(ctx, in.ID); err != nil {
			return err
		}
		if !domain.SameActor(in.ActorID, lease.ProviderActorID) && !domain.SameActor(in.ActorID, lease.ConsumerActorID) {
			return domain.Forbidden("actorId does not match lease provider or consumer")
		}
		now := uc.Clock.Now()
		if lease.Status == domain.LeaseExpired || (lease.Status == domain.LeaseActive && lease.ExpiredAt(now)) {
			return domain.Expired("lease %s has expired", lease.LeaseID)
		}
		if err := domain.LeaseTransitions.Check(domain.EntityLease, lease.Status, domain.LeaseRevoked); err != nil {
			return err
		}
		lease.Status = domain.LeaseRevoked
		lease.RevokedAt = &now
		lease.RevokeReason = reason
		if err := tx.SaveLease(ctx, lease); err != nil {
			return err
		}

		if order, err = optional(tx.GetOrder(ctx, lease.OrderID)); err != nil {
			return err
		}
		if order != nil {
			if offer, err = optional(tx.GetOffer(ctx, order.OfferID)); err != nil {
				return err
			}
		}
		if consent, err = optional(tx.GetConsent(ctx, lease.ConsentID)); err != nil {
			return err
		}
		d, err := tx.GetDelivery(ctx, lease.DeliveryID)
		switch {
		case domain.KindOf(err) == domain.KindNotFound:
			return nil
		case err != nil:
			return err
		case domain.DeliveryTransitions.Terminal(d.Status):
			return nil
		}
		if err := revokeDeliveryInPlace(d, reason, now); err != nil {
			return err
		}
		delivery = d
		return tx.SaveDelivery(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	uc.Metrics.Transition(domain.EntityLease, string(lease.Status))

	out = &marketdto.RevokeLeaseOutput{Lease: lease}
	if delivery != nil {
		uc.Metrics.Transition(domain.EntityDelivery, string(delivery.Status))
		res := outcome(delivery.DeliveryID, uc.Revocations.RevokeNow(ctx, revocation.Target{
			Delivery: delivery,
			Order:    order,
			Offer:    offer,
			Consent:  consent,
			Reason:   reason,
		}))
		out.Revocation = &res
		details := revocationDetails(res)
		details["leaseId"] = lease.LeaseID
		details["reason"] = reason
		uc.record(ctx, audit.Entry{
			Kind:    domain.AuditDeliveryRevoked,
			RefID:   delivery.DeliveryID,
			Hash:    delivery.RevokeHash,
			Actor:   in.ActorID,
			Details: details,
		}, "")
	}
	uc.record(ctx, audit.Entry{
		Kind:    domain.AuditLeaseRevoked,
		RefID:   lease.LeaseID,
		Hash:    lease.AccessTokenHash,
		Actor:   in.ActorID,
		Details: map[string]any{"resourceId": lease.ResourceID, "reason": reason},
	}, "")
	return out, nil
}

// ExpireLeases moves active leases whose expiresAt is at or before now to expired.
// With DryRun set the leases are only counted and audited.
func (uc *DefaultMarketUsecase) ExpireLeases(ctx context.Context, in *marketdto.ExpireLeasesInput) (report *marketdto.ExpireLeasesReport, err error) {
	defer uc.finish("expire_leases", time.Now(), &err)
	limit, err := check.Limit(in.Limit, marketdto.DefaultSweepLimit, marketdto.MaxSweepLimit)
	if err != nil {
		return nil, err
	}
	now := uc.Clock.Now()
	if in.Now != nil {
		now = *in.Now
	}
	due, err := uc.Store.ListLeases(ctx, domain.LeaseFilter{Status: domain.LeaseActive, ExpiresBefore: &now, Limit: limit})
	if err != nil {
		return nil, err
	}
	report = &marketdto.ExpireLeasesReport{DryRun: in.DryRun}
	for _, l := range due {
		report.Processed++
		if !in.DryRun {
			if err := uc.expireLease(ctx, l.LeaseID, now); err != nil {
				report.Skipped++
				report.Errors = append(report.Errors, marketdto.SweepError{ID: l.LeaseID, Error: domain.Normalize(err).Message})
				continue
			}
		}
		report.Expired++
		uc.record(ctx, audit.Entry{
			Kind:    domain.AuditLeaseExpired,
			RefID:   l.LeaseID,
			Hash:    l.AccessTokenHash,
			Details: map[string]any{"resourceId": l.ResourceID, "dryRun": in.DryRun},
		}, "")
	}
	if !in.DryRun {
		uc.Metrics.SweepItems("lease_expiry", "expired", report.Expired)
		uc.Metrics.SweepItems("lease_expiry", "skipped", report.Skipped)
	}
	return report, nil
}

func (uc *DefaultMarketUsecase) expireLease(ctx context.Context, leaseID string, now time.Time) error {
	err := uc.Store.RunInTransaction(ctx, func(tx domain.Repository) error {
		lease, err := tx.GetLease(ctx, leaseID)
		if err != nil {
			return err
		}
		if err := domain.LeaseTransitions.Check(domain.EntityLease, lease.Status, domain.LeaseExpired); err != nil {
			return err
		}
		if !lease.ExpiredAt(now) {
			return domain.Conflict("lease %s has not expired yet", leaseID)
		}
		lease.Status = domain.LeaseExpired
		return tx.SaveLease(ctx, lease)
	})
	if err == nil {
		uc.Metrics.Transition(domain.EntityLease, string(domain.LeaseExpired))
	}
	return err
}

func (uc *DefaultMarketUsecase) GetLease(ctx context.Context, leaseID string) (lease *domain.Lease, err error) {
	defer domain.NormalizeError(&err)
	if err := check.Required("leaseId", leaseID); err != nil {
		return nil, err
	}
	return uc.Store.GetLease(ctx, leaseID)
}

func (uc *DefaultMarketUsecase) ListLeases(ctx context.Context, in *marketdto.ListLeasesInput) (leases []*domain.Lease, err error) {
	defer domain.NormalizeError(&err)
	limit, err := check.Limit(in.Limit, marketdto.DefaultListLimit, marketdto.MaxListLimit)
	if err != nil {
		return nil, err
	}
	return uc.Store.ListLeases(ctx, domain.LeaseFilter{
		ResourceID:      in.ResourceID,
		ProviderActorID: in.ProviderActorID,
		ConsumerActorID: in.ConsumerActorID,
		Status:          in.Status,
		Limit:           limit,
	})
}

// optional treats NotFound as absence and passes every other error through.
func optional[T any](v *T, err error) (*T, error) {
	if domain.KindOf(err) == domain.KindNotFound {
		return nil, nil
	}
	return v, err
}
