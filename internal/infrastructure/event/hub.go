package event

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uniorder/backend/internal/domain/shared"
)

const defaultSubscriberBuffer = 64

// Message is one event as pushed to a live dashboard
type Message struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// Hub fans order events out to live subscribers (Server-Sent Events streams).
// It is an event bus handler; a slow subscriber loses messages instead of
// blocking the publisher.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]chan Message
	eventTypes  []string
	buffer      int
	logger      *zap.Logger

	dropped atomic.Int64
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithHubBuffer sets the per-subscriber channel size
func WithHubBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// NewHub creates a hub forwarding the given event types
func NewHub(logger *zap.Logger, eventTypes []string, opts ...HubOption) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		subscribers: make(map[uuid.UUID]chan Message),
		eventTypes:  eventTypes,
		buffer:      defaultSubscriberBuffer,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes implements shared.EventHandler
func (h *Hub) EventTypes() []string {
	return h.eventTypes
}

// Handle encodes the event once and offers it to every subscriber
func (h *Hub) Handle(ctx context.Context, event shared.DomainEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := Message{
		ID:   event.EventID().String(),
		Type: event.EventType(),
		At:   event.OccurredAt(),
		Data: data,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subscribers {
		select {
		case ch <- msg:
		default:
			h.dropped.Add(1)
			h.logger.Warn("live subscriber is slow, message dropped",
				zap.String("subscriber_id", id.String()),
				zap.String("event_type", msg.Type))
		}
	}
	return nil
}

// Subscribe registers a subscriber. The returned cancel func must be called
// when the subscriber goes away; it closes the channel.
func (h *Hub) Subscribe() (<-chan Message, func()) {
	id := uuid.New()
	ch := make(chan Message, h.buffer)

	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// SubscriberCount returns the number of live subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Dropped returns how many messages were dropped for slow subscribers
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

var _ shared.EventHandler = (*Hub)(nil)
