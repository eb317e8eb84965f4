package credentials

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/zeebo/blake3"
)

// FileStore writes each payload to its own file named by the blake3 digest of the
// delivery id, so the reference never reveals the id it was issued for.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create credentials dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Name() string { return "file" }

func refFor(deliveryID string) string {
	sum := blake3.Sum256([]byte(deliveryID))
	return hex.EncodeToString(sum[:])
}

func (s *FileStore) Put(_ context.Context, deliveryID string, payload *domain.DeliveryPayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	ref := refFor(deliveryID)
	tmp, err := os.CreateTemp(s.dir, ref+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create payload file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write payload file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close payload file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, ref+".json")); err != nil {
		return "", fmt.Errorf("store payload file: %w", err)
	}
	return ref, nil
}

func (s *FileStore) Get(_ context.Context, ref string) (*domain.DeliveryPayload, error) {
	if _, err := hex.DecodeString(ref); err != nil || len(ref) != 64 {
		return nil, domain.InvalidArgument("malformed payload ref")
	}
	raw, err := os.ReadFile(filepath.Join(s.dir, ref+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.NotFound("payload %s not found", ref)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload file: %w", err)
	}
	var p domain.DeliveryPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode payload file: %w", err)
	}
	return &p, nil
}

func (s *FileStore) Delete(_ context.Context, ref string) error {
	if _, err := hex.DecodeString(ref); err != nil || len(ref) != 64 {
		return domain.InvalidArgument("malformed payload ref")
	}
	err := os.Remove(filepath.Join(s.dir, ref+".json"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete payload file: %w", err)
	}
	return nil
}
