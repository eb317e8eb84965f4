package signature

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func TestVerifyRoundTrip(t *testing.T) {
	pub, priv := newKey(t)
	addr := Address(pub)
	sig := Sign(priv, `{"orderId":"r1"}`)

	ok, err := NewEd25519Verifier().Verify(context.Background(), `{"orderId":"r1"}`, sig, addr)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewEd25519Verifier().Verify(context.Background(), `{"orderId":"r1"}`, sig, strings.ToUpper(addr[2:]))
	require.NoError(t, err)
	assert.False(t, ok, "address without 0x prefix is a different actor")
}

func TestVerifyRejectsOtherMessageOrAddress(t *testing.T) {
	pub, priv := newKey(t)
	otherPub, _ := newKey(t)
	sig := Sign(priv, "message")
	v := NewEd25519Verifier()

	ok, err := v.Verify(context.Background(), "tampered", sig, Address(pub))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = v.Verify(context.Background(), "message", sig, Address(otherPub))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyMalformedSignature(t *testing.T) {
	v := NewEd25519Verifier()
	for _, sig := range []string{"", "0x", "abcd", "0xzz", "0x" + strings.Repeat("ab", 10)} {
		_, err := v.Verify(context.Background(), "m", sig, "0x00")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument, sig)
	}
}

func TestAddressShape(t *testing.T) {
	pub, _ := newKey(t)
	addr := Address(pub)
	assert.True(t, strings.HasPrefix(addr, "0x"))
	assert.Len(t, addr, 42)
	assert.True(t, IsHex(addr))
	assert.False(t, IsHex("lease_issue"))
}
