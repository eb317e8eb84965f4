package bridge

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/clock"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/filestore"
	"github.com/LavaJover/shvark-market-service/internal/usecase/audit"
	bridgedto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/bridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUsecase(t *testing.T) (*DefaultBridgeUsecase, *filestore.Store) {
	t.Helper()
	store, err := filestore.Open(t.TempDir())
	require.NoError(t, err)
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	require.NoError(t, store.RunInTransaction(ctx, func(tx domain.Repository) error {
		if err := tx.SaveOrder(ctx, &domain.Order{OrderID: "O1", OfferID: "F1", BuyerID: "0xb1", Quantity: 1, Status: domain.OrderPaymentLocked}); err != nil {
			return err
		}
		return tx.SaveSettlement(ctx, &domain.Settlement{SettlementID: "S1", OrderID: "O1", Payer: "0xb1", Amount: "25", Status: domain.SettlementLocked})
	}))
	recorder := audit.NewRecorder(store, clk, logger)
	return NewDefaultBridgeUsecase(store, recorder, nil, clk, logger), store
}

func request(t *testing.T, uc *DefaultBridgeUsecase) *domain.BridgeTransfer {
	t.Helper()
	transfer, err := uc.Request(context.Background(), &bridgedto.RequestInput{
		ActorID:      "0xb1",
		SettlementID: "S1",
		FromChain:    "ton",
		ToChain:      "evm",
		AssetSymbol:  "USDC",
		Amount:       "25000000",
	})
	require.NoError(t, err)
	return transfer
}

func TestRoutesCatalogue(t *testing.T) {
	uc, _ := newUsecase(t)
	ctx := context.Background()

	all, err := uc.Routes(ctx, &bridgedto.RoutesInput{})
	require.NoError(t, err)
	assert.Len(t, all.Routes, 2)
	assert.Len(t, all.Assets, 2)

	fromTon, err := uc.Routes(ctx, &bridgedto.RoutesInput{FromChain: "ton", ToChain: "evm"})
	require.NoError(t, err)
	require.Len(t, fromTon.Routes, 1)
	assert.Equal(t, "ton-evm-usdc", fromTon.Routes[0].RouteID)
	assert.Equal(t, 30, fromTon.Routes[0].FeeBps)
	require.Len(t, fromTon.Assets, 1)
	assert.Equal(t, "USDC", fromTon.Assets[0].Symbol)
	assert.Equal(t, 6, fromTon.Assets[0].Decimals)

	_, err = uc.Routes(ctx, &bridgedto.RoutesInput{FromChain: "solana"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestRequestResolvesSettlementOrder(t *testing.T) {
	uc, _ := newUsecase(t)
	ctx := context.Background()
	transfer := request(t, uc)
	assert.Equal(t, "O1", transfer.OrderID)
	assert.Equal(t, "ton-evm-usdc", transfer.RouteID)
	assert.Equal(t, domain.BridgeRequested, transfer.Status)

	_, err := uc.Request(ctx, &bridgedto.RequestInput{ActorID: "0xb1", OrderID: "O1", FromChain: "ton", ToChain: "evm", AssetSymbol: "TON", Amount: "1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = uc.Request(ctx, &bridgedto.RequestInput{ActorID: "0xb1", OrderID: "missing", FromChain: "ton", ToChain: "evm", AssetSymbol: "USDC", Amount: "1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = uc.Request(ctx, &bridgedto.RequestInput{ActorID: "0xb1", OrderID: "O1", FromChain: "ton", ToChain: "evm", AssetSymbol: "USDC", Amount: "1.5"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	listed, err := uc.List(ctx, &bridgedto.ListInput{OrderID: "O1"})
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestUpdateFollowsTransitionTable(t *testing.T) {
	uc, _ := newUsecase(t)
	ctx := context.Background()
	transfer := request(t, uc)
	update := func(status domain.BridgeStatus, txHash, reason string) (*domain.BridgeTransfer, error) {
		return uc.Update(ctx, &bridgedto.UpdateInput{ActorID: "0xrelayer", BridgeID: transfer.BridgeID, Status: status, TxHash: txHash, FailureReason: reason})
	}

	_, err := update(domain.BridgeCompleted, "", "")
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := update("", "0xabc", "")
	require.NoError(t, err)
	assert.Equal(t, domain.BridgeRequested, got.Status)
	assert.Equal(t, "0xabc", got.TxHash)

	_, err = update(domain.BridgeInFlight, "", "")
	require.NoError(t, err)
	got, err = update(domain.BridgeFailed, "", "relayer timeout")
	require.NoError(t, err)
	assert.Equal(t, "relayer timeout", got.FailureReason)

	_, err = update(domain.BridgeCompleted, "", "")
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = update(domain.BridgeRequested, "", "")
	require.NoError(t, err)
	_, err = update(domain.BridgeInFlight, "", "")
	require.NoError(t, err)
	got, err = update(domain.BridgeCompleted, "0xdef", "")
	require.NoError(t, err)
	assert.Equal(t, domain.BridgeCompleted, got.Status)

	_, err = update(domain.BridgeFailed, "", "")
	assert.ErrorIs(t, err, domain.ErrConflict)
	status, err := uc.Status(ctx, transfer.BridgeID)
	require.NoError(t, err)
	assert.Equal(t, domain.BridgeCompleted, status.Status)
	assert.Equal(t, "0xdef", status.TxHash)

	_, err = uc.Update(ctx, &bridgedto.UpdateInput{ActorID: "0xrelayer", BridgeID: transfer.BridgeID})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
