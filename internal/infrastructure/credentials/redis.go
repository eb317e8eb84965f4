package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "market:payload:"

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore keeps payloads under market:payload:<deliveryId>. A zero ttl keeps
// them until deleted.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) Put(ctx context.Context, deliveryID string, payload *domain.DeliveryPayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+deliveryID, raw, s.ttl).Err(); err != nil {
		return "", domain.Unavailable("store payload: %v", err)
	}
	return deliveryID, nil
}

func (s *RedisStore) Get(ctx context.Context, ref string) (*domain.DeliveryPayload, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+ref).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.NotFound("payload %s not found", ref)
	}
	if err != nil {
		return nil, domain.Unavailable("load payload: %v", err)
	}
	var p domain.DeliveryPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &p, nil
}

func (s *RedisStore) Delete(ctx context.Context, ref string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+ref).Err(); err != nil {
		return domain.Unavailable("delete payload: %v", err)
	}
	return nil
}
