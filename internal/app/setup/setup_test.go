package setup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/LavaJover/shvark-market-service/internal/config"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/credentials"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/notifier"
	bridgedto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/bridge"
	marketdto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadConfig(t *testing.T, backend string) *config.MarketConfig {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`
store:
  backend: %s
  dir: %s
credentials:
  backend: file
  dir: %s
`, backend, filepath.Join(dir, "state"), filepath.Join(dir, "credentials"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestInitializeWiresEveryBackend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, backend := range []string{"file", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			deps, err := InitializeDependencies(loadConfig(t, backend), logger)
			require.NoError(t, err)
			t.Cleanup(func() { assert.NoError(t, deps.Close()) })

			assert.Nil(t, deps.Publisher)
			assert.Nil(t, deps.Anchor)
			assert.Nil(t, deps.Escrow)
			assert.IsType(t, notifier.NoopRevoker{}, deps.Revoker)
			assert.IsType(t, &credentials.FileStore{}, deps.Payloads)
			assert.False(t, deps.Signer.Persistent())

			uc := InitializeUseCases(deps)
			ctx := context.Background()
			offer, err := uc.MarketUsecase.CreateOffer(ctx, &marketdto.CreateOfferInput{
				ActorID:      "0xseller",
				AssetID:      "dataset-1",
				AssetType:    "data",
				Price:        "10",
				Currency:     "USD",
				UsageScope:   domain.UsageScope{Purpose: "research"},
				DeliveryType: domain.DeliveryAPI,
			})
			require.NoError(t, err)

			snap, err := uc.MarketUsecase.StatusSnapshot(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, snap.Offers.Total)
			assert.Equal(t, 1, snap.Offers.ByStatus[string(offer.Status)])

			routes, err := uc.BridgeUsecase.Routes(ctx, &bridgedto.RoutesInput{})
			require.NoError(t, err)
			assert.NotEmpty(t, routes.Routes)
		})
	}
}
