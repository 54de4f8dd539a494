package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/uniorder/backend/internal/domain/shared"
)

// DefaultDeliveryKeyPrefix namespaces webhook delivery keys in Redis
const DefaultDeliveryKeyPrefix = "uniorder:webhook:delivery:"

// RedisDeliveryStore remembers webhook delivery IDs in Redis so that every
// instance behind the load balancer drops the same redeliveries
type RedisDeliveryStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisDeliveryStore wraps a shared client. The caller keeps ownership of it.
func NewRedisDeliveryStore(client redis.UniversalClient, keyPrefix string) *RedisDeliveryStore {
	if keyPrefix == "" {
		keyPrefix = DefaultDeliveryKeyPrefix
	}
	return &RedisDeliveryStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed uses SET NX with an expiry so the check and the write are atomic
func (s *RedisDeliveryStore) MarkProcessed(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+deliveryID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark delivery as processed: %w", err)
	}
	return ok, nil
}

// IsProcessed reports whether deliveryID is currently recorded
func (s *RedisDeliveryStore) IsProcessed(ctx context.Context, deliveryID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.keyPrefix+deliveryID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check delivery: %w", err)
	}
	return n > 0, nil
}

// Close is a no-op; the client belongs to the caller
func (s *RedisDeliveryStore) Close() error {
	return nil
}

var _ shared.IdempotencyStore = (*RedisDeliveryStore)(nil)
