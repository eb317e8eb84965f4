package bridgedto

import "github.com/LavaJover/shvark-market-service/internal/domain"

type RoutesOutput struct {
	Assets []domain.CrossChainAsset `json:"assets"`
	Routes []domain.BridgeRoute     `json:"routes"`
}
