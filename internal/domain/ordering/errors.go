package ordering

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/uniorder/backend/internal/domain/shared"
)

// Sentinel domain errors for the ordering context
var (
	ErrOrderNotFound  = shared.NewDomainError(shared.CodeNotFound, "ordering: order not found")
	ErrDuplicateOrder = shared.NewDomainError(shared.CodeAlreadyExists, "ordering: order already exists for this partner")
	ErrValidation     = shared.NewDomainError(shared.CodeValidation, "ordering: order payload is invalid")
	ErrStateConflict  = shared.NewDomainError(shared.CodeStateConflict, "ordering: illegal status transition")
)

// ValidationError reports a partner payload that cannot become a canonical
// order. Field names the offending input, e.g. "items[2].quantity".
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a validation error for a field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ordering: invalid %s: %s", e.Field, e.Reason)
}

// Unwrap exposes the domain error so callers can map it to a response code
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// StateConflictError is returned when a transition is not allowed from the
// order's current status, including any transition out of a terminal status.
type StateConflictError struct {
	OrderID uuid.UUID
	From    OrderStatus
	To      OrderStatus
}

func (e *StateConflictError) Error() string {
	if e.From.IsTerminal() {
		return fmt.Sprintf("ordering: order %s is %s and accepts no further transitions", e.OrderID, e.From)
	}
	return fmt.Sprintf("ordering: order %s cannot transition from %s to %s", e.OrderID, e.From, e.To)
}

// Unwrap exposes the domain error so callers can map it to a response code
func (e *StateConflictError) Unwrap() error {
	return ErrStateConflict
}
