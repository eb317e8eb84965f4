package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/canonical"
	"github.com/LavaJover/shvark-market-service/internal/domain"
)

const (
	HeaderTimestamp   = "x-market-timestamp"
	HeaderPayloadHash = "x-market-payload-hash"
	HeaderSignature   = "x-market-signature"
	HeaderAPIKey      = "x-market-api-key"
)

// WebhookRevoker asks an external endpoint to invalidate delivered access. Any non-2xx
// answer is a failure and leaves the revocation to the retry queue.
type WebhookRevoker struct {
	url           string
	apiKey        string
	signingSecret string
	client        *http.Client
	now           func() time.Time
}

func NewWebhookRevoker(url, apiKey, signingSecret string, timeout time.Duration) *WebhookRevoker {
	return &WebhookRevoker{
		url:           url,
		apiKey:        apiKey,
		signingSecret: signingSecret,
		client:        &http.Client{Timeout: timeout},
		now:           time.Now,
	}
}

func (w *WebhookRevoker) Revoke(ctx context.Context, req domain.RevocationRequest) error {
	payload := payloadFromRequest(req)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal revocation payload: %w", err)
	}
	payloadHash, err := canonical.Hash(payload)
	if err != nil {
		return fmt.Errorf("hash revocation payload: %w", err)
	}
	timestamp := w.now().UTC().Format(time.RFC3339Nano)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create revocation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(HeaderTimestamp, timestamp)
	httpReq.Header.Set(HeaderPayloadHash, payloadHash)
	if w.signingSecret != "" {
		httpReq.Header.Set(HeaderSignature, Sign(w.signingSecret, timestamp, body))
	}
	if w.apiKey != "" {
		httpReq.Header.Set(HeaderAPIKey, w.apiKey)
	}

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return domain.Unavailable("revocation webhook unreachable: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Unavailable("revocation webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Sign is the HMAC-SHA256 over "timestamp.body", hex encoded.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// NoopRevoker accepts every revocation. Used when no webhook is configured.
type NoopRevoker struct{}

func (NoopRevoker) Revoke(context.Context, domain.RevocationRequest) error { return nil }
