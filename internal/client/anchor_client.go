package client

import (
	"context"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
)

type anchorRequest struct {
	AnchorID string `json:"anchorId"`
	Hash     string `json:"hash"`
	Network  string `json:"network"`
}

// AnchorClient submits content hashes to the anchoring gateway.
type AnchorClient struct {
	api     jsonClient
	network string
}

func NewAnchorClient(baseURL, network string, timeout time.Duration) *AnchorClient {
	return &AnchorClient{api: newJSONClient(baseURL, timeout), network: network}
}

func (c *AnchorClient) AnchorHash(ctx context.Context, anchorID, hash string) (*domain.AnchorResult, error) {
	var res domain.AnchorResult
	if err := c.api.post(ctx, "/anchor", anchorRequest{AnchorID: anchorID, Hash: hash, Network: c.network}, &res); err != nil {
		return nil, err
	}
	if res.AnchorID == "" {
		res.AnchorID = anchorID
	}
	if res.Network == "" {
		res.Network = c.network
	}
	return &res, nil
}
