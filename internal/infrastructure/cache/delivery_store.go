package cache

import (
	"context"
	"sync"
	"time"

	"github.com/uniorder/backend/internal/domain/shared"
)

type deliveryEntry struct {
	expiresAt time.Time
}

// InMemoryDeliveryStore remembers webhook delivery IDs in process memory.
// It is used when Redis is not configured and in tests.
type InMemoryDeliveryStore struct {
	mu              sync.RWMutex
	entries         map[string]deliveryEntry
	cleanupInterval time.Duration
	stopChan        chan struct{}
	wg              sync.WaitGroup
	closeOnce       sync.Once
}

// NewInMemoryDeliveryStore creates the store and starts its expiry sweeper
func NewInMemoryDeliveryStore() *InMemoryDeliveryStore {
	return newInMemoryDeliveryStore(5 * time.Minute)
}

func newInMemoryDeliveryStore(cleanupInterval time.Duration) *InMemoryDeliveryStore {
	store := &InMemoryDeliveryStore{
		entries:         make(map[string]deliveryEntry),
		cleanupInterval: cleanupInterval,
		stopChan:        make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// MarkProcessed records deliveryID for ttl.
// Returns false when the delivery was already recorded and has not expired.
func (s *InMemoryDeliveryStore) MarkProcessed(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if e, exists := s.entries[deliveryID]; exists && now.Before(e.expiresAt) {
		return false, nil
	}

	s.entries[deliveryID] = deliveryEntry{expiresAt: now.Add(ttl)}
	return true, nil
}

// IsProcessed reports whether deliveryID is currently recorded
func (s *InMemoryDeliveryStore) IsProcessed(ctx context.Context, deliveryID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[deliveryID]
	if !exists {
		return false, nil
	}
	return time.Now().Before(e.expiresAt), nil
}

// Close stops the sweeper. Safe to call multiple times.
func (s *InMemoryDeliveryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryDeliveryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryDeliveryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}

// Size returns the number of remembered deliveries, expired ones included
func (s *InMemoryDeliveryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ shared.IdempotencyStore = (*InMemoryDeliveryStore)(nil)
