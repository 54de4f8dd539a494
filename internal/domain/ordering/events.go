package ordering

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/uniorder/backend/internal/domain/shared"
)

// Event type constants. The names double as the broadcast channel names
// that live dashboards listen for.
const (
	EventTypeNewOrder     = "new_order"
	EventTypeOrderUpdated = "order_updated"
)

// OrderReceivedEvent is raised when an order is first created from a webhook
type OrderReceivedEvent struct {
	shared.BaseDomainEvent
	OrderID         uuid.UUID       `json:"order_id"`
	PartnerID       string          `json:"partner_id"`
	PlatformOrderID string          `json:"platform_order_id"`
	CustomerName    string          `json:"customer_name"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ItemCount       int             `json:"item_count"`
	Status          OrderStatus     `json:"status"`
}

// NewOrderReceivedEvent creates a new OrderReceivedEvent
func NewOrderReceivedEvent(order *Order) *OrderReceivedEvent {
	return &OrderReceivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNewOrder, AggregateTypeOrder, order.ID),
		OrderID:         order.ID,
		PartnerID:       order.PartnerID,
		PlatformOrderID: order.PlatformOrderID,
		CustomerName:    order.Customer.Name,
		TotalAmount:     order.TotalAmount,
		ItemCount:       order.ItemCount(),
		Status:          order.Status,
	}
}

// OrderUpdatedEvent is raised on every accepted status transition
type OrderUpdatedEvent struct {
	shared.BaseDomainEvent
	OrderID         uuid.UUID   `json:"order_id"`
	PartnerID       string      `json:"partner_id"`
	PlatformOrderID string      `json:"platform_order_id"`
	OldStatus       OrderStatus `json:"old_status"`
	NewStatus       OrderStatus `json:"new_status"`
	Actor           string      `json:"actor"`
	Reason          string      `json:"reason,omitempty"`
}

// NewOrderUpdatedEvent creates a new OrderUpdatedEvent
func NewOrderUpdatedEvent(order *Order, from OrderStatus, actor Actor, reason string) *OrderUpdatedEvent {
	return &OrderUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderUpdated, AggregateTypeOrder, order.ID),
		OrderID:         order.ID,
		PartnerID:       order.PartnerID,
		PlatformOrderID: order.PlatformOrderID,
		OldStatus:       from,
		NewStatus:       order.Status,
		Actor:           actor.String(),
		Reason:          reason,
	}
}
