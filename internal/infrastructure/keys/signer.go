// Package keys holds the service signing key. The ed25519 seed is stored encrypted with
// age under a scrypt passphrase, generated on first start and reloaded afterwards.
package keys

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"filippo.io/age"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/signature"
)

// DefaultWorkFactor is the scrypt cost used when persisting a new key.
const DefaultWorkFactor = 18

type Signer struct {
	key        ed25519.PrivateKey
	persistent bool
}

// LoadOrCreate reads the key at path, or generates and writes one when the file does
// not exist. An empty passphrase yields a process-lifetime key that is never written.
func LoadOrCreate(path, passphrase string, workFactor int, logger *slog.Logger) (*Signer, error) {
	if passphrase == "" {
		logger.Warn("signing key passphrase not set, using an ephemeral key")
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
		return &Signer{key: key}, nil
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		key, err := decrypt(raw, passphrase)
		if err != nil {
			return nil, err
		}
		logger.Info("signing key loaded", "key_id", signature.Address(key.Public().(ed25519.PublicKey)))
		return &Signer{key: key, persistent: true}, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read signing key: %w", err)
	}

	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	if err := persist(path, key, passphrase, workFactor); err != nil {
		return nil, err
	}
	logger.Info("signing key generated", "key_id", signature.Address(key.Public().(ed25519.PublicKey)), "path", path)
	return &Signer{key: key, persistent: true}, nil
}

func persist(path string, key ed25519.PrivateKey, passphrase string, workFactor int) error {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("signing key recipient: %w", err)
	}
	if workFactor > 0 {
		recipient.SetWorkFactor(workFactor)
	}
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return fmt.Errorf("encrypt signing key: %w", err)
	}
	if _, err := w.Write(key.Seed()); err != nil {
		return fmt.Errorf("encrypt signing key: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("encrypt signing key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write signing key: %w", err)
	}
	return os.Rename(tmp, path)
}

func decrypt(raw []byte, passphrase string) (ed25519.PrivateKey, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("signing key identity: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypt signing key: %w", err)
	}
	seed, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decrypt signing key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing key has %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// KeyID is the address derived from the public key.
func (s *Signer) KeyID() string {
	return signature.Address(s.PublicKey())
}

func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

func (s *Signer) PublicKeyHex() string {
	return "0x" + hex.EncodeToString(s.PublicKey())
}

func (s *Signer) Persistent() bool { return s.persistent }

// Sign returns the encoded signature over message, verifiable with signature.Ed25519Verifier
// against KeyID.
func (s *Signer) Sign(message []byte) string {
	return signature.Sign(s.key, string(message))
}
