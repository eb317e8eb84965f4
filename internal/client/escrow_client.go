package client

import (
	"context"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
)

type escrowResponse struct {
	TxHash string `json:"txHash"`
}

// EscrowClient talks to the escrow contract gateway.
type EscrowClient struct {
	api jsonClient
}

func NewEscrowClient(baseURL string, timeout time.Duration) *EscrowClient {
	return &EscrowClient{api: newJSONClient(baseURL, timeout)}
}

func (c *EscrowClient) Lock(ctx context.Context, req domain.EscrowRequest) (string, error) {
	return c.call(ctx, "/escrow/lock", req)
}

func (c *EscrowClient) Release(ctx context.Context, req domain.EscrowRequest) (string, error) {
	return c.call(ctx, "/escrow/release", req)
}

func (c *EscrowClient) Refund(ctx context.Context, req domain.EscrowRequest) (string, error) {
	return c.call(ctx, "/escrow/refund", req)
}

func (c *EscrowClient) call(ctx context.Context, path string, req domain.EscrowRequest) (string, error) {
	var resp escrowResponse
	if err := c.api.post(ctx, path, req, &resp); err != nil {
		return "", err
	}
	if resp.TxHash == "" {
		return "", domain.Unavailable("%s returned no transaction hash", path)
	}
	return resp.TxHash, nil
}
