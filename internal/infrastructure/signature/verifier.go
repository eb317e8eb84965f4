// Package signature verifies actor signatures. A signature is "0x" followed by the hex
// of the 32-byte ed25519 public key and the 64-byte signature; the actor address is
// "0x" plus the last 20 bytes of keccak256(public key).
package signature

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"strings"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"golang.org/x/crypto/sha3"
)

const encodedLen = ed25519.PublicKeySize + ed25519.SignatureSize

type Ed25519Verifier struct{}

func NewEd25519Verifier() *Ed25519Verifier { return &Ed25519Verifier{} }

func (Ed25519Verifier) Verify(_ context.Context, message, signature, address string) (bool, error) {
	raw, err := decodeHex(signature)
	if err != nil {
		return false, domain.InvalidArgument("signature is not 0x hex")
	}
	if len(raw) != encodedLen {
		return false, domain.InvalidArgument("signature must encode %d bytes, got %d", encodedLen, len(raw))
	}
	pub := ed25519.PublicKey(raw[:ed25519.PublicKeySize])
	sig := raw[ed25519.PublicKeySize:]
	if !domain.SameActor(Address(pub), address) {
		return false, nil
	}
	return ed25519.Verify(pub, []byte(message), sig), nil
}

// Address derives the actor address of an ed25519 public key.
func Address(pub ed25519.PublicKey) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(pub)
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[len(sum)-20:])
}

// Sign produces the encoded signature Verify accepts.
func Sign(priv ed25519.PrivateKey, message string) string {
	pub := priv.Public().(ed25519.PublicKey)
	sig := ed25519.Sign(priv, []byte(message))
	return "0x" + hex.EncodeToString(pub) + hex.EncodeToString(sig)
}

// IsHex reports whether s is a non-empty 0x-prefixed hex string.
func IsHex(s string) bool {
	_, err := decodeHex(s)
	return err == nil
}

func decodeHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, hex.ErrLength
	}
	body := s[2:]
	if body == "" {
		return nil, hex.ErrLength
	}
	return hex.DecodeString(body)
}
