package bridge

import (
	"slices"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	bridgedto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/bridge"
)

var defaultAssets = []domain.CrossChainAsset{
	{AssetID: "ton", Symbol: "TON", Decimals: 9, Chains: []string{"ton"}},
	{AssetID: "usdc", Symbol: "USDC", Decimals: 6, Chains: []string{"ton", "evm"}},
}

var defaultRoutes = []domain.BridgeRoute{
	{RouteID: "ton-evm-usdc", FromChain: "ton", ToChain: "evm", AssetSymbol: "USDC", FeeBps: 30, EstimatedSeconds: 300, Provider: "bridge"},
	{RouteID: "evm-ton-usdc", FromChain: "evm", ToChain: "ton", AssetSymbol: "USDC", FeeBps: 30, EstimatedSeconds: 300, Provider: "bridge"},
}

func filterRoutes(routes []domain.BridgeRoute, in *bridgedto.RoutesInput) []domain.BridgeRoute {
	out := make([]domain.BridgeRoute, 0, len(routes))
	for _, r := range routes {
		switch {
		case in.FromChain != "" && r.FromChain != in.FromChain:
		case in.ToChain != "" && r.ToChain != in.ToChain:
		case in.AssetSymbol != "" && r.AssetSymbol != in.AssetSymbol:
		default:
			out = append(out, r)
		}
	}
	return out
}

func filterAssets(assets []domain.CrossChainAsset, in *bridgedto.RoutesInput) []domain.CrossChainAsset {
	out := make([]domain.CrossChainAsset, 0, len(assets))
	for _, a := range assets {
		switch {
		case in.AssetSymbol != "" && a.Symbol != in.AssetSymbol:
		case in.FromChain != "" && !slices.Contains(a.Chains, in.FromChain):
		case in.ToChain != "" && !slices.Contains(a.Chains, in.ToChain):
		default:
			out = append(out, a)
		}
	}
	return out
}

func findRoute(routes []domain.BridgeRoute, from, to, symbol string) (domain.BridgeRoute, bool) {
	for _, r := range routes {
		if r.FromChain == from && r.ToChain == to && r.AssetSymbol == symbol {
			return r, true
		}
	}
	return domain.BridgeRoute{}, false
}
