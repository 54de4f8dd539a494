package ordering

import (
	"time"

	"github.com/google/uuid"
)

// System actor labels used when no operator is behind a transition
const (
	ActorWebhook    = "webhook"
	ActorAutoAccept = "auto-accept"
	ActorSystem     = "system"
)

// Actor identifies who caused a status change: either an operator (UserID)
// or a system label. Exactly one of the two is set.
type Actor struct {
	UserID string `json:"user_id,omitempty"`
	System string `json:"system,omitempty"`
}

// UserActor returns an actor for an authenticated operator
func UserActor(userID string) Actor {
	return Actor{UserID: userID}
}

// SystemActor returns an actor for an automated source
func SystemActor(label string) Actor {
	return Actor{System: label}
}

// IsSystem reports whether the actor is an automated source
func (a Actor) IsSystem() bool {
	return a.UserID == ""
}

// String returns the user id or the system label
func (a Actor) String() string {
	if a.UserID != "" {
		return a.UserID
	}
	if a.System == "" {
		return ActorSystem
	}
	return a.System
}

// AuditEntry is an append-only record of one accepted status change.
// OldStatus is empty for the entry written when the order is created.
type AuditEntry struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Sequence  int // per-order, assigned by the store in acceptance order
	OldStatus OrderStatus
	NewStatus OrderStatus
	Actor     Actor
	Reason    string
	Metadata  map[string]any
	Timestamp time.Time
}

// NewAuditEntry creates an audit entry stamped with the current time
func NewAuditEntry(orderID uuid.UUID, from, to OrderStatus, actor Actor, reason string) *AuditEntry {
	return &AuditEntry{
		ID:        uuid.New(),
		OrderID:   orderID,
		OldStatus: from,
		NewStatus: to,
		Actor:     actor,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// WithMetadata attaches a metadata key to the entry
func (e *AuditEntry) WithMetadata(key string, value any) *AuditEntry {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}
