package credentials

import (
	"context"
	"testing"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, s domain.PayloadStore) {
	ctx := context.Background()
	ref, err := s.Put(ctx, "d1", &domain.DeliveryPayload{AccessToken: "tok_secret", Quota: 10})
	require.NoError(t, err)
	require.NotEmpty(t, ref)

	got, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "tok_secret", got.AccessToken)
	assert.Equal(t, int64(10), got.Quota)

	ref2, err := s.Put(ctx, "d1", &domain.DeliveryPayload{AccessToken: "tok_rotated"})
	require.NoError(t, err)
	assert.Equal(t, ref, ref2)
	got, err = s.Get(ctx, ref2)
	require.NoError(t, err)
	assert.Equal(t, "tok_rotated", got.AccessToken)

	require.NoError(t, s.Delete(ctx, ref))
	_, err = s.Get(ctx, ref)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, s.Delete(ctx, ref))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exercise(t, s)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	exercise(t, s)

	ref := refFor("d1")
	assert.Len(t, ref, 64)
	assert.NotContains(t, ref, "d1")

	_, err = s.Get(context.Background(), refFor("absent"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.Get(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
