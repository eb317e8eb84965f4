package market

import (
	"context"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	marketdto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/market"
)

type orderLineage struct {
	order       *domain.Order
	consent     *domain.Consent
	deliveries  []*domain.Delivery
	settlements []*domain.Settlement
}

// Trace follows the selected entities through their lineage (offer, order, consent,
// deliveries, settlements) and returns the audit events recorded for any of them.
func (uc *DefaultMarketUsecase) Trace(ctx context.Context, in *marketdto.TraceInput) (trace *marketdto.Trace, err error) {
	defer uc.finish("trace", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	allOffers, err := uc.Store.ListOffers(ctx, domain.OfferFilter{})
	if err != nil {
		return nil, err
	}
	offerByID := make(map[string]*domain.Offer, len(allOffers))
	for _, o := range allOffers {
		offerByID[o.OfferID] = o
	}
	offerMatches := func(o *domain.Offer) bool {
		return (in.OfferID == "" || o.OfferID == in.OfferID) && (in.AssetID == "" || o.AssetID == in.AssetID)
	}

	orders, err := uc.Store.ListOrders(ctx, domain.OrderFilter{OfferID: in.OfferID, BuyerID: in.BuyerID})
	if err != nil {
		return nil, err
	}
	var lineages []orderLineage
	for _, o := range orders {
		if in.OrderID != "" && o.OrderID != in.OrderID {
			continue
		}
		if in.AssetID != "" {
			offer, ok := offerByID[o.OfferID]
			if !ok || !offerMatches(offer) {
				continue
			}
		}
		l, keep, err := uc.lineage(ctx, o, in)
		if err != nil {
			return nil, err
		}
		if keep {
			lineages = append(lineages, l)
		}
	}

	trace = &marketdto.Trace{
		Offers:      []*domain.Offer{},
		Orders:      []*domain.Order{},
		Consents:    []*domain.Consent{},
		Deliveries:  []*domain.Delivery{},
		Settlements: []*domain.Settlement{},
	}
	refs := map[string]struct{}{}
	addOffer := func(o *domain.Offer) {
		if _, dup := refs[o.OfferID]; dup {
			return
		}
		refs[o.OfferID] = struct{}{}
		trace.Offers = append(trace.Offers, o)
	}
	if !in.OrderScoped() {
		for _, o := range allOffers {
			if offerMatches(o) {
				addOffer(o)
			}
		}
	}
	for _, l := range lineages {
		if offer, ok := offerByID[l.order.OfferID]; ok {
			addOffer(offer)
		}
		trace.Orders = append(trace.Orders, l.order)
		refs[l.order.OrderID] = struct{}{}
		if l.consent != nil {
			trace.Consents = append(trace.Consents, l.consent)
			refs[l.consent.ConsentID] = struct{}{}
		}
		for _, d := range l.deliveries {
			trace.Deliveries = append(trace.Deliveries, d)
			refs[d.DeliveryID] = struct{}{}
		}
		for _, s := range l.settlements {
			trace.Settlements = append(trace.Settlements, s)
			refs[s.SettlementID] = struct{}{}
		}
	}

	events, err := uc.Store.ReadAuditEvents(ctx, in.Limit)
	if err != nil {
		return nil, err
	}
	trace.Audit.Events = []*domain.AuditEvent{}
	for _, e := range events {
		if _, ok := refs[e.RefID]; ok {
			trace.Audit.Events = append(trace.Audit.Events, e)
		}
	}
	trace.Audit.Count = len(trace.Audit.Events)
	return trace, nil
}

// lineage loads the children of one order, keeping only those matching the consent,
// delivery and settlement selectors. keep is false when a selector matches nothing
// under the order.
func (uc *DefaultMarketUsecase) lineage(ctx context.Context, o *domain.Order, in *marketdto.TraceInput) (orderLineage, bool, error) {
	l := orderLineage{order: o}
	consent, err := optional(uc.Store.GetConsentByOrder(ctx, o.OrderID))
	if err != nil {
		return l, false, err
	}
	if consent != nil && (in.ConsentID == "" || consent.ConsentID == in.ConsentID) {
		l.consent = consent
	}
	if in.ConsentID != "" && l.consent == nil {
		return l, false, nil
	}

	deliveries, err := uc.Store.ListDeliveries(ctx, domain.DeliveryFilter{OrderID: o.OrderID})
	if err != nil {
		return l, false, err
	}
	for _, d := range deliveries {
		if in.DeliveryID == "" || d.DeliveryID == in.DeliveryID {
			l.deliveries = append(l.deliveries, d)
		}
	}
	if in.DeliveryID != "" && len(l.deliveries) == 0 {
		return l, false, nil
	}

	settlements, err := uc.Store.ListSettlements(ctx, domain.SettlementFilter{OrderID: o.OrderID})
	if err != nil {
		return l, false, err
	}
	for _, s := range settlements {
		if in.SettlementID == "" || s.SettlementID == in.SettlementID {
			l.settlements = append(l.settlements, s)
		}
	}
	if in.SettlementID != "" && len(l.settlements) == 0 {
		return l, false, nil
	}
	return l, true, nil
}
