package ordering

import "fmt"

// OrderStatus is the canonical status of an order, independent of any partner vocabulary
type OrderStatus string

const (
	StatusReceived  OrderStatus = "received"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// AllStatuses lists every canonical status in lifecycle order
func AllStatuses() []OrderStatus {
	return []OrderStatus{StatusReceived, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled}
}

// IsValid checks if the status is a known canonical status
func (s OrderStatus) IsValid() bool {
	switch s {
	case StatusReceived, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are accepted
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo checks if the status can transition to the target status
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	switch s {
	case StatusReceived:
		return target == StatusPreparing || target == StatusCancelled
	case StatusPreparing:
		return target == StatusReady || target == StatusCancelled
	case StatusReady:
		return target == StatusCompleted || target == StatusCancelled
	case StatusCompleted, StatusCancelled:
		return false // Terminal states
	}
	return false
}

// ParseOrderStatus parses a canonical status token
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("ordering: unknown status %q", s)
	}
	return status, nil
}
