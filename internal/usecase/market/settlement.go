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
	"github.com/shopspring/decimal"
)

type escrowCall func(ctx context.Context, req domain.EscrowRequest) (string, error)

// callEscrow runs one escrow operation in contract mode. In anchor_only mode no funds
// move and the returned tx hash is empty.
func (uc *DefaultMarketUsecase) callEscrow(ctx context.Context, call escrowCall, req domain.EscrowRequest) (string, error) {
	if !uc.contractMode() {
		return "", nil
	}
	cctx, cancel := context.WithTimeout(ctx, uc.Config.EscrowTimeout)
	defer cancel()
	txHash, err := call(cctx, req)
	if err != nil {
		uc.Logger.Error("escrow call failed", "order_id", req.OrderID, "error", err)
		return "", err
	}
	return txHash, nil
}

// lockable returns the settlement id to use for a new lock, reusing a refunded one.
func lockable(ctx context.Context, tx domain.Repository, orderID string) (string, error) {
	existing, err := tx.GetSettlementByOrder(ctx, orderID)
	switch {
	case domain.KindOf(err) == domain.KindNotFound:
		return uuid.NewString(), nil
	case err != nil:
		return "", err
	case existing.Status != domain.SettlementRefunded:
		return "", domain.Conflict("settlement already exists for order %s", orderID).
			WithDetail("settlementId", existing.SettlementID).
			WithDetail("status", string(existing.Status))
	}
	return existing.SettlementID, nil
}

func (uc *DefaultMarketUsecase) LockSettlement(ctx context.Context, in *marketdto.LockSettlementInput) (settlement *domain.Settlement, err error) {
	defer uc.finish("lock_settlement", time.Now(), &err)
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
	// fail before any escrow call when the lock cannot commit
	if _, err := lockable(ctx, uc.Store, order.OrderID); err != nil {
		return nil, err
	}
	if err := domain.OrderTransitions.Check(domain.EntityOrder, order.Status, domain.OrderPaymentLocked); err != nil {
		return nil, err
	}

	tokenAddress := in.TokenAddress
	if tokenAddress == "" {
		tokenAddress = uc.Config.TokenAddress
	}
	var lock escrowCall
	if uc.Escrow != nil {
		lock = uc.Escrow.Lock
	}
	txHash, err := uc.callEscrow(ctx, lock, domain.EscrowRequest{
		OrderID:      order.OrderID,
		OrderHash:    order.OrderHash,
		Payer:        in.ActorID,
		Amount:       in.Amount,
		TokenAddress: tokenAddress,
	})
	if err != nil {
		return nil, err
	}

	err = uc.Store.RunInTransaction(ctx, func(tx domain.Repository) error {
		current, err := tx.GetOrder(ctx, order.OrderID)
		if err != nil {
			return err
		}
		settlementID, err := lockable(ctx, tx, current.OrderID)
		if err != nil {
			return err
		}
		now := uc.Clock.Now()
		if err := uc.advanceOrder(current, domain.OrderPaymentLocked, now); err != nil {
			return err
		}
		current.PaymentTxHash = txHash
		settlement = &domain.Settlement{
			SettlementID: settlementID,
			OrderID:      current.OrderID,
			Payer:        in.ActorID,
			Amount:       in.Amount,
			TokenAddress: tokenAddress,
			Status:       domain.SettlementLocked,
			LockTxHash:   txHash,
			LockedAt:     now,
			UpdatedAt:    now,
		}
		if err := tx.SaveSettlement(ctx, settlement); err != nil {
			return err
		}
		order = current
		return tx.SaveOrder(ctx, current)
	})
	if err != nil {
		if txHash != "" {
			uc.Logger.Error("escrow locked but settlement not committed", "order_id", order.OrderID, "tx_hash", txHash, "error", err)
		}
		return nil, err
	}
	uc.Metrics.Transition(domain.EntityOrder, string(order.Status))
	uc.Metrics.Transition(domain.EntitySettlement, string(settlement.Status))
	uc.record(ctx, audit.Entry{
		Kind:  domain.AuditPaymentLocked,
		RefID: order.OrderID,
		Hash:  order.OrderHash,
		Actor: in.ActorID,
		Details: map[string]any{
			"settlementId": settlement.SettlementID,
			"amount":       settlement.Amount,
			"txHash":       txHash,
			"mode":         string(uc.Config.SettlementMode),
		},
	}, "")
	return settlement, nil
}

func sumPayees(payees []domain.Payee) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range payees {
		amount, err := check.Amount("payees.amount", p.Amount, false)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(amount)
	}
	return total, nil
}

// loadLocked returns the order, its offer and its locked settlement, checking that both
// the settlement and the order may move to the given statuses.
func loadLocked(ctx context.Context, repo domain.Repository, orderID string, settlementTo domain.SettlementStatus, orderTo domain.OrderStatus) (*domain.Order, *domain.Offer, *domain.Settlement, error) {
	order, err := repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, nil, err
	}
	offer, err := repo.GetOffer(ctx, order.OfferID)
	if err != nil {
		return nil, nil, nil, err
	}
	settlement, err := repo.GetSettlementByOrder(ctx, orderID)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := domain.SettlementTransitions.Check(domain.EntitySettlement, settlement.Status, settlementTo); err != nil {
		return nil, nil, nil, err
	}
	if err := domain.OrderTransitions.Check(domain.EntityOrder, order.Status, orderTo); err != nil {
		return nil, nil, nil, err
	}
	return order, offer, settlement, nil
}

func (uc *DefaultMarketUsecase) ReleaseSettlement(ctx context.Context, in *marketdto.ReleaseSettlementInput) (settlement *domain.Settlement, err error) {
	defer uc.finish("release_settlement", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	order, offer, locked, err := loadLocked(ctx, uc.Store, in.OrderID, domain.SettlementReleased, domain.OrderSettlementCompleted)
	if err != nil {
		return nil, err
	}
	if err := requireActor(in.ActorID, offer.SellerID, "offer.sellerId"); err != nil {
		return nil, err
	}
	total, err := sumPayees(in.Payees)
	if err != nil {
		return nil, err
	}
	mismatch := false
	if lockedAmount, perr := decimal.NewFromString(locked.Amount); perr != nil || !lockedAmount.Equal(total) {
		mismatch = true
		uc.Logger.Warn("release amount differs from locked amount",
			"order_id", order.OrderID, "locked", locked.Amount, "released", total.String())
	}

	var release escrowCall
	if uc.Escrow != nil {
		release = uc.Escrow.Release
	}
	txHash, err := uc.callEscrow(ctx, release, domain.EscrowRequest{
		OrderID:      order.OrderID,
		OrderHash:    order.OrderHash,
		Payees:       in.Payees,
		Amount:       total.String(),
		TokenAddress: locked.TokenAddress,
	})
	if err != nil {
		return nil, err
	}

	err = uc.Store.RunInTransaction(ctx, func(tx domain.Repository) error {
		current, _, s, err := loadLocked(ctx, tx, in.OrderID, domain.SettlementReleased, domain.OrderSettlementCompleted)
		if err != nil {
			return err
		}
		now := uc.Clock.Now()
		s.Status = domain.SettlementReleased
		s.Payees = in.Payees
		s.Amount = total.String()
		s.ReleaseTxHash = txHash
		s.ReleasedAt = &now
		s.UpdatedAt = now
		if s.SettlementHash, err = canonical.Hash(map[string]any{
			"orderId": s.OrderID,
			"payees":  s.Payees,
			"txHash":  txHash,
		}); err != nil {
			return err
		}
		if err := uc.advanceOrder(current, domain.OrderSettlementCompleted, now); err != nil {
			return err
		}
		if err := tx.SaveSettlement(ctx, s); err != nil {
			return err
		}
		settlement, order = s, current
		return tx.SaveOrder(ctx, current)
	})
	if err != nil {
		return nil, err
	}
	uc.Metrics.Transition(domain.EntityOrder, string(order.Status))
	uc.Metrics.Transition(domain.EntitySettlement, string(settlement.Status))
	uc.record(ctx, audit.Entry{
		Kind:  domain.AuditSettlementReleased,
		RefID: settlement.SettlementID,
		Hash:  settlement.SettlementHash,
		Actor: in.ActorID,
		Details: map[string]any{
			"orderId":        order.OrderID,
			"amount":         settlement.Amount,
			"lockedAmount":   locked.Amount,
			"amountMismatch": mismatch,
			"payees":         len(settlement.Payees),
			"txHash":         txHash,
		},
	}, "settlement:"+settlement.SettlementID)
	return settlement, nil
}

func (uc *DefaultMarketUsecase) RefundSettlement(ctx context.Context, in *marketdto.RefundSettlementInput) (settlement *domain.Settlement, err error) {
	defer uc.finish("refund_settlement", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	order, _, locked, err := loadLocked(ctx, uc.Store, in.OrderID, domain.SettlementRefunded, domain.OrderSettlementCancelled)
	if err != nil {
		return nil, err
	}
	if err := requireActor(in.ActorID, locked.Payer, "settlement.payer"); err != nil {
		return nil, err
	}

	var refund escrowCall
	if uc.Escrow != nil {
		refund = uc.Escrow.Refund
	}
	txHash, err := uc.callEscrow(ctx, refund, domain.EscrowRequest{
		OrderID:      order.OrderID,
		OrderHash:    order.OrderHash,
		Payer:        locked.Payer,
		Amount:       locked.Amount,
		TokenAddress: locked.TokenAddress,
	})
	if err != nil {
		return nil, err
	}

	err = uc.Store.RunInTransaction(ctx, func(tx domain.Repository) error {
		current, _, s, err := loadLocked(ctx, tx, in.OrderID, domain.SettlementRefunded, domain.OrderSettlementCancelled)
		if err != nil {
			return err
		}
		now := uc.Clock.Now()
		s.Status = domain.SettlementRefunded
		s.RefundTxHash = txHash
		s.RefundReason = in.Reason
		s.RefundedAt = &now
		s.UpdatedAt = now
		hashInput := map[string]any{
			"orderId": s.OrderID,
			"payer":   s.Payer,
			"txHash":  txHash,
		}
		if in.Reason != "" {
			hashInput["reason"] = in.Reason
		}
		if s.SettlementHash, err = canonical.Hash(hashInput); err != nil {
			return err
		}
		if err := uc.advanceOrder(current, domain.OrderSettlementCancelled, now); err != nil {
			return err
		}
		if err := tx.SaveSettlement(ctx, s); err != nil {
			return err
		}
		settlement, order = s, current
		return tx.SaveOrder(ctx, current)
	})
	if err != nil {
		return nil, err
	}
	uc.Metrics.Transition(domain.EntityOrder, string(order.Status))
	uc.Metrics.Transition(domain.EntitySettlement, string(settlement.Status))
	uc.record(ctx, audit.Entry{
		Kind:  domain.AuditSettlementRefunded,
		RefID: settlement.SettlementID,
		Hash:  settlement.SettlementHash,
		Actor: in.ActorID,
		Details: map[string]any{
			"orderId": order.OrderID,
			"amount":  settlement.Amount,
			"reason":  in.Reason,
			"txHash":  txHash,
		},
	}, "settlement:"+settlement.SettlementID)
	return settlement, nil
}

func (uc *DefaultMarketUsecase) SettlementStatus(ctx context.Context, orderID string) (settlement *domain.Settlement, err error) {
	defer domain.NormalizeError(&err)
	if err := check.Required("orderId", orderID); err != nil {
		return nil, err
	}
	return uc.Store.GetSettlementByOrder(ctx, orderID)
}
