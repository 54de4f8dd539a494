package ordering

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/uniorder/backend/internal/domain/shared"
)

// TransitionFunc mutates a locked order and returns the audit entry to append
type TransitionFunc func(order *Order) (*AuditEntry, error)

// OrderRepository is the order store. It is the only mutator of canonical
// order state and enforces uniqueness of (PartnerID, PlatformOrderID).
type OrderRepository interface {
	// Create inserts a new order together with its first audit entry.
	// Returns ErrDuplicateOrder if the idempotency key already exists
	Create(ctx context.Context, order *Order, initial *AuditEntry) error

	// FindByID finds an order by its internal ID
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByIdempotencyKey finds an order by partner and partner-assigned ID
	FindByIdempotencyKey(ctx context.Context, partnerID, platformOrderID string) (*Order, error)

	// ApplyTransition loads the order under a row lock, runs fn, then persists
	// the new status, timestamps and the returned audit entry in one transaction
	ApplyTransition(ctx context.Context, id uuid.UUID, fn TransitionFunc) (*Order, *AuditEntry, error)

	// AppendAudit appends an audit entry outside of a transition
	AppendAudit(ctx context.Context, entry *AuditEntry) error

	// ListAudit returns an order's audit trail in acceptance order
	ListAudit(ctx context.Context, orderID uuid.UUID) ([]AuditEntry, error)

	// List returns orders matching the filter and the total match count
	List(ctx context.Context, filter OrderFilter) ([]Order, int64, error)

	// UpdateNotes replaces the operator notes on an order
	UpdateNotes(ctx context.Context, id uuid.UUID, notes string) error

	// CountByStatus returns order counts grouped by status
	CountByStatus(ctx context.Context) (map[OrderStatus]int64, error)
}

// OrderFilter narrows an order listing
type OrderFilter struct {
	shared.Filter
	Status    OrderStatus
	PartnerID string
	Search    string // matches platform order id, customer name or phone
	From      *time.Time
	To        *time.Time
}

// DefaultOrderFilter returns a filter with default paging
func DefaultOrderFilter() OrderFilter {
	return OrderFilter{Filter: shared.DefaultFilter()}
}
