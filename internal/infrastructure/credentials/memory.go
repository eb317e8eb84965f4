// Package credentials keeps delivery payloads out of the entity store. Deliveries keep
// only the returned reference.
package credentials

import (
	"context"
	"sync"

	"github.com/LavaJover/shvark-market-service/internal/domain"
)

type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]domain.DeliveryPayload
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]domain.DeliveryPayload)}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Put(_ context.Context, deliveryID string, payload *domain.DeliveryPayload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[deliveryID] = *payload
	return deliveryID, nil
}

func (s *MemoryStore) Get(_ context.Context, ref string) (*domain.DeliveryPayload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[ref]
	if !ok {
		return nil, domain.NotFound("payload %s not found", ref)
	}
	return &p, nil
}

func (s *MemoryStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, ref)
	return nil
}
