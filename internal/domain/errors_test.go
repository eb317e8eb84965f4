package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestNormalizeKeepsKind(t *testing.T) {
	err := fmt.Errorf("saving lease: %w", NotFound("lease %s not found", "l-1"))
	out := Normalize(err)
	assert.Equal(t, KindNotFound, out.Kind)
	assert.Equal(t, "lease l-1 not found", out.Message)
	assert.True(t, errors.Is(out, ErrNotFound))
}

func TestNormalizeRedactsUntaggedErrors(t *testing.T) {
	err := errors.New("open /var/lib/market/state.cbor: permission denied (https://rpc.example.com/v1) DB_PASSWORD=hunter2")
	out := Normalize(err)
	assert.Equal(t, KindInternal, out.Kind)
	assert.NotContains(t, out.Message, "/var/lib")
	assert.NotContains(t, out.Message, "rpc.example.com")
	assert.NotContains(t, out.Message, "hunter2")
	assert.Contains(t, out.Message, "[PATH]")
	assert.Contains(t, out.Message, "[URL]")
	assert.Contains(t, out.Message, "[ENV]")
	assert.ErrorIs(t, out, err)
}

func TestNormalizeTimeout(t *testing.T) {
	out := Normalize(fmt.Errorf("anchor: %w", context.DeadlineExceeded))
	assert.Equal(t, KindTimeout, out.Kind)
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
}

func TestNormalizeErrorInPlace(t *testing.T) {
	op := func() (err error) {
		defer NormalizeError(&err)
		return errors.New("boom")
	}
	err := op()
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))

	ok := func() (err error) {
		defer NormalizeError(&err)
		return nil
	}
	assert.NoError(t, ok())
}

func TestRedactMessagePatterns(t *testing.T) {
	msg := RedactMessage("signer 0x" + "ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12" + " token eyJhbGciOi.eyJzdWIiOi.c2lnbmF0dXJl tok_secretvalue")
	assert.Contains(t, msg, "[ADDRESS]")
	assert.Contains(t, msg, "[TOKEN]")
	assert.Contains(t, msg, "tok_***")
	assert.Equal(t, "lease/resource mismatch", RedactMessage("lease/resource mismatch"))
}

func TestRedactDetails(t *testing.T) {
	in := map[string]any{
		"accessToken": "tok_abc",
		"endpoint":    "https://hooks.example.com",
		"note":        "called https://hooks.example.com/x with Bearer abc",
		"nested":      map[string]any{"apiKey": "k", "orderId": "o-1"},
		"count":       3,
	}
	out := RedactDetails(in)
	assert.Equal(t, Redacted, out["accessToken"])
	assert.Equal(t, Redacted, out["endpoint"])
	assert.Equal(t, "called [REDACTED_ENDPOINT] with Bearer [REDACTED]", out["note"])
	nested := out["nested"].(map[string]any)
	assert.Equal(t, Redacted, nested["apiKey"])
	assert.Equal(t, "o-1", nested["orderId"])
	assert.Equal(t, 3, out["count"])
	// input untouched
	assert.Equal(t, "tok_abc", in["accessToken"])
}

func TestGRPCStatus(t *testing.T) {
	err := Conflict("settlement already exists").WithDetail("orderId", "o-1")
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.FailedPrecondition, st.Code())
	assert.Equal(t, "settlement already exists", st.Message())
	assert.NotEmpty(t, st.Details())
}
