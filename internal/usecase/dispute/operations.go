package dispute

import (
	"context"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/canonical"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/shopspring/decimal"
)

// settlementEffect is the fund movement a ruling implies for a locked settlement.
type settlementEffect struct {
	op           string
	settlementTo domain.SettlementStatus
	orderTo      domain.OrderStatus
	request      domain.EscrowRequest
}

// planEffect returns nil when the ruling moves no funds: split and timeout rulings,
// and orders without a locked settlement.
func planEffect(ruling domain.DisputeRuling, order *domain.Order, offer *domain.Offer, s *domain.Settlement) *settlementEffect {
	if s == nil || s.Status != domain.SettlementLocked {
		return nil
	}
	req := domain.EscrowRequest{
		OrderID:      order.OrderID,
		OrderHash:    order.OrderHash,
		Amount:       s.Amount,
		TokenAddress: s.TokenAddress,
	}
	switch ruling {
	case domain.RulingProviderWins:
		req.Payees = []domain.Payee{{Address: offer.SellerID, Amount: s.Amount}}
		return &settlementEffect{
			op:           "release",
			settlementTo: domain.SettlementReleased,
			orderTo:      domain.OrderSettlementCompleted,
			request:      req,
		}
	case domain.RulingConsumerWins:
		req.Payer = s.Payer
		return &settlementEffect{
			op:           "refund",
			settlementTo: domain.SettlementRefunded,
			orderTo:      domain.OrderSettlementCancelled,
			request:      req,
		}
	}
	return nil
}

func (e *settlementEffect) same(other *settlementEffect) bool {
	return other != nil && e.op == other.op && e.request.Amount == other.request.Amount
}

// callEscrow moves the funds in contract mode. Otherwise no funds move and the tx hash
// is empty.
func (uc *DefaultDisputeUsecase) callEscrow(ctx context.Context, e *settlementEffect) (string, error) {
	if !uc.cfg.ContractSettlement || uc.escrow == nil {
		return "", nil
	}
	cctx, cancel := context.WithTimeout(ctx, uc.cfg.EscrowTimeout)
	defer cancel()
	var (
		txHash string
		err    error
	)
	switch e.op {
	case "release":
		txHash, err = uc.escrow.Release(cctx, e.request)
	case "refund":
		txHash, err = uc.escrow.Refund(cctx, e.request)
	}
	if err != nil {
		uc.logger.Error("escrow call failed", "order_id", e.request.OrderID, "operation", e.op, "error", err)
		return "", err
	}
	return txHash, nil
}

// apply moves the settlement and, when the order table allows it, the order. It reports
// whether the order changed.
func (e *settlementEffect) apply(s *domain.Settlement, order *domain.Order, reason, txHash string, now time.Time) (bool, error) {
	if err := domain.SettlementTransitions.Check(domain.EntitySettlement, s.Status, e.settlementTo); err != nil {
		return false, err
	}
	var hashInput map[string]any
	s.Status = e.settlementTo
	s.UpdatedAt = now
	switch e.settlementTo {
	case domain.SettlementReleased:
		s.Payees = e.request.Payees
		s.ReleaseTxHash = txHash
		s.ReleasedAt = &now
		hashInput = map[string]any{"orderId": s.OrderID, "payees": s.Payees, "txHash": txHash}
	case domain.SettlementRefunded:
		s.RefundTxHash = txHash
		s.RefundReason = reason
		s.RefundedAt = &now
		hashInput = map[string]any{"orderId": s.OrderID, "payer": s.Payer, "txHash": txHash, "reason": reason}
	}
	hash, err := canonical.Hash(hashInput)
	if err != nil {
		return false, err
	}
	s.SettlementHash = hash

	if !domain.OrderTransitions.Can(order.Status, e.orderTo) {
		return false, nil
	}
	order.Status = e.orderTo
	order.UpdatedAt = now
	return true, nil
}

// checkRefundAmount bounds a ruling's refund by the locked amount when one exists.
func checkRefundAmount(refund string, s *domain.Settlement) error {
	if refund == "" || s == nil {
		return nil
	}
	want, err := decimal.NewFromString(refund)
	if err != nil {
		return domain.InvalidArgument("refundAmount must be a decimal")
	}
	locked, err := decimal.NewFromString(s.Amount)
	if err != nil {
		return nil
	}
	if want.GreaterThan(locked) {
		return domain.InvalidArgument("refundAmount %s exceeds settled amount %s", refund, s.Amount)
	}
	return nil
}

func settlementOf(ctx context.Context, repo domain.Repository, orderID string) (*domain.Settlement, error) {
	s, err := repo.GetSettlementByOrder(ctx, orderID)
	if domain.KindOf(err) == domain.KindNotFound {
		return nil, nil
	}
	return s, err
}
