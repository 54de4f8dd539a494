package ordering

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/uniorder/backend/internal/domain/ordering"
)

// ---------------------------------------------------------------------------
// Request DTOs
// ---------------------------------------------------------------------------

// ListOrdersRequest narrows an order listing
type ListOrdersRequest struct {
	Page      int        `form:"page" binding:"omitempty,min=1"`
	PageSize  int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy   string     `form:"order_by" binding:"omitempty,oneof=created_at updated_at total_amount status"`
	OrderDir  string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Status    string     `form:"status" binding:"omitempty,order_status"`
	Partner   string     `form:"partner" binding:"omitempty,partner"`
	Search    string     `form:"search" binding:"omitempty,max=100"`
	StartDate *time.Time `form:"start_date" time_format:"2006-01-02"`
	EndDate   *time.Time `form:"end_date" time_format:"2006-01-02"`
}

// ToFilter converts the request to a repository filter
func (r ListOrdersRequest) ToFilter() ordering.OrderFilter {
	f := ordering.DefaultOrderFilter()
	if r.Page > 0 {
		f.Page = r.Page
	}
	if r.PageSize > 0 {
		f.PageSize = r.PageSize
	}
	if r.OrderBy != "" {
		f.OrderBy = r.OrderBy
	}
	if r.OrderDir != "" {
		f.OrderDir = r.OrderDir
	}
	f.Status = ordering.OrderStatus(r.Status)
	f.PartnerID = strings.ToLower(strings.TrimSpace(r.Partner))
	f.Search = r.Search
	f.From = r.StartDate
	if r.EndDate != nil {
		// inclusive end date
		end := r.EndDate.Add(24*time.Hour - time.Nanosecond)
		f.To = &end
	}
	return f
}

// TransitionRequest is the operator request to change an order's status
type TransitionRequest struct {
	Status string `json:"status" binding:"required,order_status"`
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// CancelRequest is the operator request to cancel an order
type CancelRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// UpdateNotesRequest replaces an order's notes
type UpdateNotesRequest struct {
	Notes string `json:"notes" binding:"max=2000"`
}

// ---------------------------------------------------------------------------
// Response DTOs
// ---------------------------------------------------------------------------

// OrderResponse is the operator view of an order
type OrderResponse struct {
	ID                    uuid.UUID            `json:"id"`
	PlatformOrderID       string               `json:"platform_order_id"`
	Partner               string               `json:"partner"`
	CustomerName          string               `json:"customer_name"`
	CustomerPhone         string               `json:"customer_phone"`
	CustomerAddress       string               `json:"customer_address"`
	Items                 []OrderItemResponse  `json:"items"`
	TotalAmount           decimal.Decimal      `json:"total_amount" swaggertype:"string" example:"45.00"`
	Status                ordering.OrderStatus `json:"status"`
	EstimatedDeliveryTime *time.Time           `json:"estimated_delivery_time,omitempty"`
	Notes                 string               `json:"notes,omitempty"`
	CancellationReason    string               `json:"cancellation_reason,omitempty"`
	CompletedAt           *time.Time           `json:"completed_at,omitempty"`
	CancelledAt           *time.Time           `json:"cancelled_at,omitempty"`
	RawPayload            json.RawMessage      `json:"raw_payload,omitempty" swaggertype:"object"`
	Version               int                  `json:"version"`
	CreatedAt             time.Time            `json:"created_at"`
	UpdatedAt             time.Time            `json:"updated_at"`
	AuditTrail            []AuditEntryResponse `json:"audit_trail,omitempty"`
}

// OrderItemResponse is one order line
type OrderItemResponse struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" swaggertype:"string" example:"22.50"`
	LineTotal decimal.Decimal `json:"line_total" swaggertype:"string" example:"45.00"`
	Notes     string          `json:"notes,omitempty"`
	Category  string          `json:"category,omitempty"`
	SKU       string          `json:"sku,omitempty"`
}

// AuditEntryResponse is one status change in an order's trail
type AuditEntryResponse struct {
	ID        uuid.UUID            `json:"id"`
	Sequence  int                  `json:"sequence"`
	OldStatus ordering.OrderStatus `json:"old_status,omitempty"`
	NewStatus ordering.OrderStatus `json:"new_status"`
	Actor     ordering.Actor       `json:"actor"`
	Reason    string               `json:"reason,omitempty"`
	Metadata  map[string]any       `json:"metadata,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// StatusCountsResponse counts orders per status
type StatusCountsResponse struct {
	Counts map[ordering.OrderStatus]int64 `json:"counts"`
	Total  int64                          `json:"total"`
	Active int64                          `json:"active"`
}

// ToOrderResponse converts an order to its operator view. The raw partner
// payload is only included when withPayload is set.
func ToOrderResponse(o *ordering.Order, withPayload bool) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = OrderItemResponse{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal(),
			Notes:     item.Notes,
			Category:  item.Category,
			SKU:       item.SKU,
		}
	}
	resp := OrderResponse{
		ID:                    o.ID,
		PlatformOrderID:       o.PlatformOrderID,
		Partner:               o.PartnerID,
		CustomerName:          o.Customer.Name,
		CustomerPhone:         o.Customer.Phone,
		CustomerAddress:       o.Customer.Address,
		Items:                 items,
		TotalAmount:           o.TotalAmount,
		Status:                o.Status,
		EstimatedDeliveryTime: o.EstimatedDeliveryTime,
		Notes:                 o.Notes,
		CancellationReason:    o.CancellationReason,
		CompletedAt:           o.CompletedAt,
		CancelledAt:           o.CancelledAt,
		Version:               o.Version,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
	}
	if withPayload {
		resp.RawPayload = o.RawPayload
	}
	return resp
}

// ToOrderResponses converts a page of orders
func ToOrderResponses(orders []ordering.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i := range orders {
		out[i] = ToOrderResponse(&orders[i], false)
	}
	return out
}

// ToAuditEntryResponses converts an audit trail
func ToAuditEntryResponses(entries []ordering.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = AuditEntryResponse{
			ID:        e.ID,
			Sequence:  e.Sequence,
			OldStatus: e.OldStatus,
			NewStatus: e.NewStatus,
			Actor:     e.Actor,
			Reason:    e.Reason,
			Metadata:  e.Metadata,
			Timestamp: e.Timestamp,
		}
	}
	return out
}
