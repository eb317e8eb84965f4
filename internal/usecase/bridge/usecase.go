// Package bridge tracks cross-chain transfers linked to an order or settlement. It only
// records confirmations reported from outside; no funds move here.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/clock"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-market-service/internal/usecase/audit"
	"github.com/LavaJover/shvark-market-service/internal/usecase/dto/check"
	bridgedto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/bridge"
	"github.com/google/uuid"
)

type BridgeUsecase interface {
	Routes(ctx context.Context, in *bridgedto.RoutesInput) (*bridgedto.RoutesOutput, error)
	Request(ctx context.Context, in *bridgedto.RequestInput) (*domain.BridgeTransfer, error)
	Update(ctx context.Context, in *bridgedto.UpdateInput) (*domain.BridgeTransfer, error)
	Status(ctx context.Context, bridgeID string) (*domain.BridgeTransfer, error)
	List(ctx context.Context, in *bridgedto.ListInput) ([]*domain.BridgeTransfer, error)
}

var auditKinds = map[domain.BridgeStatus]domain.AuditKind{
	domain.BridgeRequested: domain.AuditBridgeRequested,
	domain.BridgeInFlight:  domain.AuditBridgeInFlight,
	domain.BridgeCompleted: domain.AuditBridgeCompleted,
	domain.BridgeFailed:    domain.AuditBridgeFailed,
}

type DefaultBridgeUsecase struct {
	store    domain.Store
	recorder *audit.Recorder
	metrics  *metrics.MarketMetrics
	clock    clock.Clock
	logger   *slog.Logger
	assets   []domain.CrossChainAsset
	routes   []domain.BridgeRoute
}

func NewDefaultBridgeUsecase(store domain.Store, recorder *audit.Recorder, marketMetrics *metrics.MarketMetrics, clk clock.Clock, logger *slog.Logger) *DefaultBridgeUsecase {
	return &DefaultBridgeUsecase{
		store:    store,
		recorder: recorder,
		metrics:  marketMetrics,
		clock:    clk,
		logger:   logger,
		assets:   defaultAssets,
		routes:   defaultRoutes,
	}
}

func (uc *DefaultBridgeUsecase) finish(op string, start time.Time, errp *error) {
	domain.NormalizeError(errp)
	uc.metrics.ObserveOperation(op, start, *errp)
	if *errp != nil && domain.KindOf(*errp) == domain.KindInternal {
		uc.logger.Error("bridge operation failed", "operation", op, "error", *errp, "cause", errors.Unwrap(*errp))
	}
}

func (uc *DefaultBridgeUsecase) record(ctx context.Context, e audit.Entry) {
	if _, err := uc.recorder.Record(ctx, e); err != nil {
		uc.logger.Error("failed to record audit event", "kind", e.Kind, "ref_id", e.RefID, "error", err)
	}
}

func (uc *DefaultBridgeUsecase) Routes(_ context.Context, in *bridgedto.RoutesInput) (out *bridgedto.RoutesOutput, err error) {
	defer domain.NormalizeError(&err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &bridgedto.RoutesOutput{
		Assets: filterAssets(uc.assets, in),
		Routes: filterRoutes(uc.routes, in),
	}, nil
}

// Request records a new transfer on a known route. A settlement reference also pins the
// transfer to the settlement's order.
func (uc *DefaultBridgeUsecase) Request(ctx context.Context, in *bridgedto.RequestInput) (transfer *domain.BridgeTransfer, err error) {
	defer uc.finish("bridge_request", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	route, ok := findRoute(uc.routes, in.FromChain, in.ToChain, in.AssetSymbol)
	if !ok {
		return nil, domain.NotFound("no bridge route for %s %s -> %s", in.AssetSymbol, in.FromChain, in.ToChain)
	}
	err = uc.store.RunInTransaction(ctx, func(tx domain.Repository) error {
		orderID := in.OrderID
		if in.SettlementID != "" {
			s, err := tx.GetSettlement(ctx, in.SettlementID)
			if err != nil {
				return err
			}
			if orderID != "" && orderID != s.OrderID {
				return domain.InvalidArgument("settlement %s does not belong to order %s", s.SettlementID, orderID)
			}
			orderID = s.OrderID
		} else if _, err := tx.GetOrder(ctx, orderID); err != nil {
			return err
		}
		now := uc.clock.Now()
		transfer = &domain.BridgeTransfer{
			BridgeID:     uuid.NewString(),
			OrderID:      orderID,
			SettlementID: in.SettlementID,
			RouteID:      route.RouteID,
			FromChain:    route.FromChain,
			ToChain:      route.ToChain,
			AssetSymbol:  route.AssetSymbol,
			Amount:       in.Amount,
			Status:       domain.BridgeRequested,
			RequestedAt:  now,
			UpdatedAt:    now,
		}
		return tx.SaveBridgeTransfer(ctx, transfer)
	})
	if err != nil {
		return nil, err
	}
	uc.metrics.Transition(domain.EntityBridge, string(transfer.Status))
	uc.record(ctx, audit.Entry{
		Kind:  domain.AuditBridgeRequested,
		RefID: transfer.BridgeID,
		Actor: in.ActorID,
		Details: map[string]any{
			"orderId":      transfer.OrderID,
			"settlementId": transfer.SettlementID,
			"routeId":      transfer.RouteID,
			"amount":       transfer.Amount,
			"assetSymbol":  transfer.AssetSymbol,
		},
	})
	return transfer, nil
}

// Update applies an externally confirmed status and attaches txHash or failureReason.
// Attaching details alone leaves the status unchanged.
func (uc *DefaultBridgeUsecase) Update(ctx context.Context, in *bridgedto.UpdateInput) (transfer *domain.BridgeTransfer, err error) {
	defer uc.finish("bridge_update", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	moved := false
	err = uc.store.RunInTransaction(ctx, func(tx domain.Repository) error {
		var err error
		if transfer, err = tx.GetBridgeTransfer(ctx, in.BridgeID); err != nil {
			return err
		}
		if in.Status != "" && in.Status != transfer.Status {
			if err := domain.BridgeTransitions.Check(domain.EntityBridge, transfer.Status, in.Status); err != nil {
				return err
			}
			transfer.Status = in.Status
			moved = true
		}
		if in.TxHash != "" {
			transfer.TxHash = in.TxHash
		}
		if in.FailureReason != "" {
			transfer.FailureReason = in.FailureReason
		}
		transfer.UpdatedAt = uc.clock.Now()
		return tx.SaveBridgeTransfer(ctx, transfer)
	})
	if err != nil {
		return nil, err
	}
	if moved {
		uc.metrics.Transition(domain.EntityBridge, string(transfer.Status))
		uc.record(ctx, audit.Entry{
			Kind:  auditKinds[transfer.Status],
			RefID: transfer.BridgeID,
			Actor: in.ActorID,
			Details: map[string]any{
				"orderId":       transfer.OrderID,
				"settlementId":  transfer.SettlementID,
				"routeId":       transfer.RouteID,
				"txHash":        transfer.TxHash,
				"failureReason": transfer.FailureReason,
			},
		})
	}
	return transfer, nil
}

func (uc *DefaultBridgeUsecase) Status(ctx context.Context, bridgeID string) (transfer *domain.BridgeTransfer, err error) {
	defer domain.NormalizeError(&err)
	if err := check.Required("bridgeId", bridgeID); err != nil {
		return nil, err
	}
	return uc.store.GetBridgeTransfer(ctx, bridgeID)
}

func (uc *DefaultBridgeUsecase) List(ctx context.Context, in *bridgedto.ListInput) (transfers []*domain.BridgeTransfer, err error) {
	defer domain.NormalizeError(&err)
	limit, err := check.Limit(in.Limit, bridgedto.DefaultListLimit, bridgedto.MaxListLimit)
	if err != nil {
		return nil, err
	}
	return uc.store.ListBridgeTransfers(ctx, domain.BridgeTransferFilter{
		OrderID:      in.OrderID,
		SettlementID: in.SettlementID,
		FromChain:    in.FromChain,
		ToChain:      in.ToChain,
		AssetSymbol:  in.AssetSymbol,
		Status:       in.Status,
		Limit:        limit,
	})
}
