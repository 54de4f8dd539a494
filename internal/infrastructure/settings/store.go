// Package settings holds the restaurant switches consulted on the webhook path.
package settings

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/uniorder/backend/internal/domain/ordering"
)

// MemoryStore keeps restaurant settings in process memory, seeded from configuration
type MemoryStore struct {
	mu       sync.RWMutex
	settings ordering.RestaurantSettings
	logger   *zap.Logger
}

// NewMemoryStore creates a store with the initial settings
func NewMemoryStore(initial ordering.RestaurantSettings, logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{settings: initial, logger: logger}
}

// Settings returns a snapshot
func (s *MemoryStore) Settings(ctx context.Context) ordering.RestaurantSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SetOpen opens or closes the restaurant for new orders
func (s *MemoryStore) SetOpen(ctx context.Context, open bool) ordering.RestaurantSettings {
	s.mu.Lock()
	s.settings.IsOpen = open
	snapshot := s.settings
	s.mu.Unlock()

	s.logger.Info("restaurant status changed", zap.Bool("is_open", open))
	return snapshot
}

// SetAutoAccept toggles automatic acceptance of new orders
func (s *MemoryStore) SetAutoAccept(ctx context.Context, autoAccept bool) ordering.RestaurantSettings {
	s.mu.Lock()
	s.settings.AutoAccept = autoAccept
	snapshot := s.settings
	s.mu.Unlock()

	s.logger.Info("auto-accept changed", zap.Bool("auto_accept", autoAccept))
	return snapshot
}

var _ ordering.SettingsStore = (*MemoryStore)(nil)
