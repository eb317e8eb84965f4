package keys

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/LavaJover/shvark-market-service/internal/infrastructure/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWorkFactor = 10

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestLoadOrCreatePersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "signing-key.age")

	first, err := LoadOrCreate(path, "correct horse", testWorkFactor, quiet)
	require.NoError(t, err)
	assert.True(t, first.Persistent())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "age-encryption.org")
	assert.NotContains(t, string(raw), string(first.key.Seed()))

	second, err := LoadOrCreate(path, "correct horse", testWorkFactor, quiet)
	require.NoError(t, err)
	assert.Equal(t, first.KeyID(), second.KeyID())
}

func TestLoadWithWrongPassphraseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signing-key.age")
	_, err := LoadOrCreate(path, "right", testWorkFactor, quiet)
	require.NoError(t, err)

	_, err = LoadOrCreate(path, "wrong", testWorkFactor, quiet)
	assert.Error(t, err)
}

func TestEphemeralKeyWithoutPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signing-key.age")
	s, err := LoadOrCreate(path, "", testWorkFactor, quiet)
	require.NoError(t, err)
	assert.False(t, s.Persistent())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSignVerifiesAgainstKeyID(t *testing.T) {
	s, err := LoadOrCreate("", "", 0, quiet)
	require.NoError(t, err)
	sig := s.Sign([]byte("index"))
	ok, err := signature.NewEd25519Verifier().Verify(context.Background(), "index", sig, s.KeyID())
	require.NoError(t, err)
	assert.True(t, ok)
}
