package metrics

import (
	"context"

	"github.com/uniorder/backend/internal/domain/shared"
)

// EventCounter is an event bus subscriber that counts published domain events.
type EventCounter struct {
	metrics *Metrics
	types   []string
}

// NewEventCounter counts events of the given types.
func NewEventCounter(m *Metrics, eventTypes ...string) *EventCounter {
	return &EventCounter{metrics: m, types: eventTypes}
}

// Handle implements shared.EventHandler.
func (c *EventCounter) Handle(_ context.Context, event shared.DomainEvent) error {
	if c.metrics != nil {
		c.metrics.eventsPublished.WithLabelValues(event.EventType()).Inc()
	}
	return nil
}

// EventTypes implements shared.EventHandler.
func (c *EventCounter) EventTypes() []string {
	return c.types
}
