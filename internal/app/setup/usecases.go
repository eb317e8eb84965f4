package setup

import (
	"github.com/LavaJover/shvark-market-service/internal/usecase/audit"
	"github.com/LavaJover/shvark-market-service/internal/usecase/bridge"
	"github.com/LavaJover/shvark-market-service/internal/usecase/dispute"
	"github.com/LavaJover/shvark-market-service/internal/usecase/market"
	"github.com/LavaJover/shvark-market-service/internal/usecase/revocation"
)

type UseCases struct {
	Recorder       *audit.Recorder
	Revocations    *revocation.Service
	MarketUsecase  market.MarketUsecase
	DisputeUsecase dispute.DisputeUsecase
	BridgeUsecase  bridge.BridgeUsecase
}

func InitializeUseCases(deps *Dependencies) *UseCases {
	cfg := deps.Config

	opts := []audit.Option{audit.WithMetrics(deps.Metrics)}
	if deps.Anchor != nil {
		opts = append(opts, audit.WithAnchor(deps.Anchor, cfg.AnchorService.Timeout))
	}
	if deps.Publisher != nil {
		opts = append(opts, audit.WithPublisher(deps.Publisher))
	}
	recorder := audit.NewRecorder(deps.Store, deps.Clock, deps.Logger, opts...)

	revocations := revocation.NewService(
		deps.Store,
		deps.Revoker,
		recorder,
		deps.Metrics,
		deps.Clock,
		deps.Logger.With("component", "revocation"),
		revocation.Config{
			MaxAttempts:   cfg.RevocationConfig.MaxAttempts,
			RetryDelay:    cfg.RevocationConfig.RetryDelay,
			Policy:        revocation.DelayPolicy(cfg.RevocationConfig.DelayPolicy),
			MaxRetryDelay: cfg.RevocationConfig.MaxRetryDelay,
			Timeout:       cfg.RevocationConfig.Timeout,
		},
	)

	settlementMode := market.SettlementMode(cfg.SettlementConfig.Mode)
	marketUsecase := market.NewDefaultMarketUsecase(
		deps.Store,
		recorder,
		revocations,
		deps.Escrow,
		deps.Verifier,
		deps.Payloads,
		deps.Tokens,
		deps.Signer,
		deps.Metrics,
		deps.Clock,
		deps.Logger.With("component", "market"),
		market.Config{
			SettlementMode: settlementMode,
			TokenAddress:   cfg.SettlementConfig.TokenAddress,
			EscrowTimeout:  cfg.SettlementConfig.Timeout,
		},
	)

	disputeUsecase := dispute.NewDefaultDisputeUsecase(
		deps.Store,
		recorder,
		deps.Escrow,
		deps.Metrics,
		deps.Clock,
		deps.Logger.With("component", "dispute"),
		dispute.Config{
			Timeout:             cfg.DisputeConfig.Timeout,
			MaxEvidencePerParty: cfg.DisputeConfig.MaxEvidencePerParty,
			Arbiters:            cfg.DisputeConfig.Arbiters,
			ContractSettlement:  settlementMode == market.SettlementContract,
			EscrowTimeout:       cfg.SettlementConfig.Timeout,
		},
	)

	bridgeUsecase := bridge.NewDefaultBridgeUsecase(
		deps.Store,
		recorder,
		deps.Metrics,
		deps.Clock,
		deps.Logger.With("component", "bridge"),
	)

	return &UseCases{
		Recorder:       recorder,
		Revocations:    revocations,
		MarketUsecase:  marketUsecase,
		DisputeUsecase: disputeUsecase,
		BridgeUsecase:  bridgeUsecase,
	}
}
