package market

import (
	"context"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/canonical"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/usecase/audit"
	"github.com/LavaJover/shvark-market-service/internal/usecase/dto/check"
	marketdto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/market"
	"github.com/google/uuid"
)

func orderHash(order *domain.Order, offer *domain.Offer) (string, error) {
	return canonical.Hash(map[string]any{
		"orderId":  order.OrderID,
		"offerId":  order.OfferID,
		"buyerId":  order.BuyerID,
		"quantity": order.Quantity,
		"price":    offer.Price,
		"currency": offer.Currency,
	})
}

func (uc *DefaultMarketUsecase) CreateOrder(ctx context.Context, in *marketdto.CreateOrderInput) (order *domain.Order, err error) {
	defer uc.finish("create_order", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	err = uc.Store.RunInTransaction(ctx, func(tx domain.Repository) error {
		offer, err := tx.GetOffer(ctx, in.OfferID)
		if err != nil {
			return err
		}
		if offer.Status != domain.OfferPublished {
			return domain.Conflict("offer %s is not published", offer.OfferID)
		}
		now := uc.Clock.Now()
		order = &domain.Order{
			OrderID:   uuid.NewString(),
			OfferID:   offer.OfferID,
			BuyerID:   in.ActorID,
			Quantity:  in.Quantity,
			Status:    domain.OrderCreated,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if order.OrderHash, err = orderHash(order, offer); err != nil {
			return err
		}
		return tx.SaveOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	uc.Metrics.Transition(domain.EntityOrder, string(order.Status))
	uc.record(ctx, audit.Entry{
		Kind:    domain.AuditOrderCreated,
		RefID:   order.OrderID,
		Hash:    order.OrderHash,
		Actor:   in.ActorID,
		Details: map[string]any{"offerId": order.OfferID, "quantity": order.Quantity},
	}, "order:"+order.OrderID)
	return order, nil
}

func (uc *DefaultMarketUsecase) CancelOrder(ctx context.Context, in *marketdto.EntityActionInput) (order *domain.Order, err error) {
	defer uc.finish("cancel_order", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	err = uc.Store.RunInTransaction(ctx, func(tx domain.Repository) error {
		var err error
		if order, err = tx.GetOrder(ctx, in.ID); err != nil {
			return err
		}
		if err := requireActor(in.ActorID, order.BuyerID, "order.buyerId"); err != nil {
			return err
		}
		if err := domain.OrderTransitions.Check(domain.EntityOrder, order.Status, domain.OrderCancelled); err != nil {
			return err
		}
		order.Status = domain.OrderCancelled
		order.UpdatedAt = uc.Clock.Now()
		return tx.SaveOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	uc.Metrics.Transition(domain.EntityOrder, string(order.Status))
	uc.record(ctx, audit.Entry{
		Kind:    domain.AuditOrderCancelled,
		RefID:   order.OrderID,
		Hash:    order.OrderHash,
		Actor:   in.ActorID,
		Details: map[string]any{"reason": in.Reason},
	}, "")
	return order, nil
}

func (uc *DefaultMarketUsecase) GetOrder(ctx context.Context, orderID string) (order *domain.Order, err error) {
	defer domain.NormalizeError(&err)
	if err := check.Required("orderId", orderID); err != nil {
		return nil, err
	}
	return uc.Store.GetOrder(ctx, orderID)
}

func (uc *DefaultMarketUsecase) ListOrders(ctx context.Context, in *marketdto.ListOrdersInput) (orders []*domain.Order, err error) {
	defer domain.NormalizeError(&err)
	limit, err := check.Limit(in.Limit, marketdto.DefaultListLimit, marketdto.MaxListLimit)
	if err != nil {
		return nil, err
	}
	return uc.Store.ListOrders(ctx, domain.OrderFilter{
		BuyerID: in.BuyerID,
		OfferID: in.OfferID,
		Status:  in.Status,
		Limit:   limit,
	})
}

// advanceOrder checks and applies one order transition in place.
func (uc *DefaultMarketUsecase) advanceOrder(order *domain.Order, to domain.OrderStatus, now time.Time) error {
	if err := domain.OrderTransitions.Check(domain.EntityOrder, order.Status, to); err != nil {
		return err
	}
	order.Status = to
	order.UpdatedAt = now
	return nil
}
