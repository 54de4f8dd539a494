package ordering

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/uniorder/backend/internal/domain/shared"
)

// AggregateTypeOrder is the aggregate type used on order events
const AggregateTypeOrder = "Order"

// Sentinels used when a partner omits customer details
const (
	UnknownCustomerName = "Unknown Customer"
	UnknownPhone        = "Unknown"
	UnknownAddress      = "Address not provided"
)

// Customer holds the delivery contact for an order
type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// WithDefaults fills empty fields with the unknown sentinels
func (c Customer) WithDefaults() Customer {
	if strings.TrimSpace(c.Name) == "" {
		c.Name = UnknownCustomerName
	}
	if strings.TrimSpace(c.Phone) == "" {
		c.Phone = UnknownPhone
	}
	if strings.TrimSpace(c.Address) == "" {
		c.Address = UnknownAddress
	}
	return c
}

// OrderItem is one line of a canonical order
type OrderItem struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Notes     string          `json:"notes,omitempty"`
	Category  string          `json:"category,omitempty"`
	SKU       string          `json:"sku,omitempty"`
}

// LineTotal returns quantity * unit price
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// SumItems returns the recomputed total of a set of items
func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// ResolveTotal returns the partner-declared total when the partner sent one,
// otherwise the recomputed item sum
func ResolveTotal(declared *decimal.Decimal, items []OrderItem) decimal.Decimal {
	if declared != nil {
		return *declared
	}
	return SumItems(items)
}

// NormalizedOrder is the partner-agnostic result of parsing a webhook payload.
// Status is the partner's status already mapped to the canonical vocabulary.
type NormalizedOrder struct {
	PlatformOrderID       string
	Customer              Customer
	Items                 []OrderItem
	TotalAmount           decimal.Decimal
	Status                OrderStatus
	RawPayload            json.RawMessage
	EstimatedDeliveryTime *time.Time
	Notes                 string
	CancellationReason    string
}

// Validate checks the invariants every canonical order must hold.
// Customer fields are not checked here: missing values become sentinels.
func (n *NormalizedOrder) Validate() error {
	if strings.TrimSpace(n.PlatformOrderID) == "" {
		return NewValidationError("platform_order_id", "is required")
	}
	if len(n.Items) == 0 {
		return NewValidationError("items", "must contain at least one item")
	}
	for i, item := range n.Items {
		if item.Quantity <= 0 {
			return NewValidationError(fmt.Sprintf("items[%d].quantity", i), "must be greater than zero")
		}
		if !item.UnitPrice.IsPositive() {
			return NewValidationError(fmt.Sprintf("items[%d].unit_price", i), "must be greater than zero")
		}
	}
	if !n.TotalAmount.IsPositive() {
		return NewValidationError("total_amount", "must be greater than zero")
	}
	return nil
}

// Order is the canonical order aggregate root.
// (PartnerID, PlatformOrderID) is its idempotency key.
type Order struct {
	shared.BaseAggregateRoot
	PlatformOrderID       string
	PartnerID             string
	Customer              Customer
	Items                 []OrderItem
	TotalAmount           decimal.Decimal
	Status                OrderStatus
	RawPayload            json.RawMessage
	EstimatedDeliveryTime *time.Time
	Notes                 string
	CancellationReason    string
	CompletedAt           *time.Time
	CancelledAt           *time.Time
}

// NewOrder creates an order in the received status from a normalized payload.
// The partner's own status is not applied here; the caller decides whether
// to follow it with a transition.
func NewOrder(partnerID string, n *NormalizedOrder) (*Order, error) {
	if strings.TrimSpace(partnerID) == "" {
		return nil, NewValidationError("partner_id", "is required")
	}
	if n == nil {
		return nil, NewValidationError("payload", "is empty")
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}

	order := &Order{
		BaseAggregateRoot:     shared.NewBaseAggregateRoot(),
		PlatformOrderID:       n.PlatformOrderID,
		PartnerID:             partnerID,
		Customer:              n.Customer.WithDefaults(),
		Items:                 n.Items,
		TotalAmount:           n.TotalAmount,
		Status:                StatusReceived,
		RawPayload:            n.RawPayload,
		EstimatedDeliveryTime: n.EstimatedDeliveryTime,
		Notes:                 n.Notes,
		CancellationReason:    strings.TrimSpace(n.CancellationReason),
	}

	order.AddDomainEvent(NewOrderReceivedEvent(order))

	return order, nil
}

// InitialAudit returns the audit entry recording the order's creation
func (o *Order) InitialAudit(actor Actor) *AuditEntry {
	entry := NewAuditEntry(o.ID, "", o.Status, actor, "order received")
	entry.Timestamp = o.CreatedAt
	return entry
}

// TransitionTo moves the order to target if the state graph allows it,
// stamping terminal timestamps. It returns the audit entry to append.
func (o *Order) TransitionTo(target OrderStatus, actor Actor, reason string) (*AuditEntry, error) {
	if !target.IsValid() || !o.Status.CanTransitionTo(target) {
		return nil, &StateConflictError{OrderID: o.ID, From: o.Status, To: target}
	}

	from := o.Status
	now := time.Now()
	o.Status = target
	switch target {
	case StatusCompleted:
		o.CompletedAt = &now
	case StatusCancelled:
		o.CancelledAt = &now
		if reason != "" {
			o.CancellationReason = reason
		}
	}
	o.IncrementVersion()
	o.UpdatedAt = now

	o.AddDomainEvent(NewOrderUpdatedEvent(o, from, actor, reason))

	entry := NewAuditEntry(o.ID, from, target, actor, reason)
	entry.Timestamp = now
	return entry, nil
}

// UpdateNotes replaces the operator notes on the order
func (o *Order) UpdateNotes(notes string) {
	o.Notes = notes
	o.UpdatedAt = time.Now()
}

// ItemCount returns the total number of units across all lines
func (o *Order) ItemCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}
