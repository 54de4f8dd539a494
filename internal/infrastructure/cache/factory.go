package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/uniorder/backend/internal/domain/shared"
	"github.com/uniorder/backend/internal/infrastructure/config"
)

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

// Stores bundles the shared-state components that switch between Redis and
// in-process implementations
type Stores struct {
	Deliveries  shared.IdempotencyStore
	Invalidator Invalidator
	client      *redis.Client
}

// Close releases the stores and the Redis client, if any
func (s *Stores) Close() error {
	var firstErr error
	if s.Invalidator != nil {
		if err := s.Invalidator.Close(); err != nil {
			firstErr = err
		}
	}
	if s.Deliveries != nil {
		if err := s.Deliveries.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.client != nil {
		if err := s.client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewStores builds Redis-backed stores when Redis is configured and reachable,
// and in-process stores otherwise. In production an unreachable Redis is an error.
func NewStores(ctx context.Context, cfg config.RedisConfig, production bool, logger *zap.Logger) (*Stores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if !cfg.Enabled() {
		logger.Info("Redis not configured, using in-memory delivery store and local cache invalidation")
		return &Stores{
			Deliveries:  NewInMemoryDeliveryStore(),
			Invalidator: NewLocalInvalidator(),
		}, nil
	}

	client, err := NewRedisClient(ctx, cfg)
	if err != nil {
		if production {
			return nil, err
		}
		logger.Warn("Redis unavailable, falling back to in-memory stores. "+
			"Redeliveries may be processed twice across instances.",
			zap.Error(err))
		return &Stores{
			Deliveries:  NewInMemoryDeliveryStore(),
			Invalidator: NewLocalInvalidator(),
		}, nil
	}

	logger.Info("using Redis delivery store and Pub/Sub cache invalidation", zap.String("addr", cfg.Addr()))
	return &Stores{
		Deliveries:  NewRedisDeliveryStore(client, ""),
		Invalidator: NewRedisInvalidator(client, WithInvalidatorLogger(logger)),
		client:      client,
	}, nil
}
