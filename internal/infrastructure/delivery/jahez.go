package delivery

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/uniorder/backend/internal/domain/integration"
	"github.com/uniorder/backend/internal/domain/ordering"
)

// JahezProductionAPIURL is the default Jahez API endpoint
const JahezProductionAPIURL = "https://api.jahez.net/v1"

var jahezStatuses = statusTable{
	inbound: map[string]ordering.OrderStatus{
		"pending":          ordering.StatusReceived,
		"confirmed":        ordering.StatusReceived,
		"preparing":        ordering.StatusPreparing,
		"ready_for_pickup": ordering.StatusReady,
		"out_for_delivery": ordering.StatusReady,
		"delivered":        ordering.StatusCompleted,
		"cancelled":        ordering.StatusCancelled,
		"rejected":         ordering.StatusCancelled,
	},
	outbound: map[ordering.OrderStatus]string{
		ordering.StatusReceived:  "confirmed",
		ordering.StatusPreparing: "preparing",
		ordering.StatusReady:     "ready_for_pickup",
		ordering.StatusCompleted: "delivered",
		ordering.StatusCancelled: "cancelled",
	},
}

var jahezItemFields = itemFields{
	name:     []string{"name", "item_name"},
	quantity: []string{"quantity"},
	price:    []string{"price", "unit_price"},
	notes:    []string{"special_instructions", "notes"},
	category: []string{"category"},
	sku:      []string{"sku", "item_id"},
}

// JahezAdapter implements integration.PartnerAdapter for Jahez
type JahezAdapter struct {
	profile
	now func() time.Time
}

// NewJahezAdapter creates a new Jahez adapter
func NewJahezAdapter() *JahezAdapter {
	return &JahezAdapter{
		profile: profile{
			partner:         integration.PartnerJahez,
			signatureHeader: "X-Jahez-Signature",
			eventHeader:     "X-Jahez-Event",
			deliveryHeader:  "X-Jahez-Delivery",
			statuses:        jahezStatuses,
			events: map[string]integration.EventKind{
				"order.created":   integration.EventKindCreated,
				"order.updated":   integration.EventKindUpdated,
				"order.cancelled": integration.EventKindCancelled,
			},
			idKeys:     []string{"id", "order_id"},
			statusKeys: []string{"status"},
			reasonKeys: []string{"cancellation_reason", "reason"},
		},
		now: time.Now,
	}
}

// Partner returns the partner this adapter serves
func (a *JahezAdapter) Partner() integration.PartnerCode {
	return integration.PartnerJahez
}

// SignatureHeader returns the header carrying the webhook HMAC
func (a *JahezAdapter) SignatureHeader() string {
	return a.signatureHeader
}

// MapInboundStatus maps a Jahez status token to a canonical status
func (a *JahezAdapter) MapInboundStatus(token string) ordering.OrderStatus {
	return a.statuses.toCanonical(token)
}

// MapOutboundStatus maps a canonical status to a Jahez status token
func (a *JahezAdapter) MapOutboundStatus(status ordering.OrderStatus) string {
	return a.statuses.toPartner(status)
}

// ParseEvent reads the Jahez webhook envelope
func (a *JahezAdapter) ParseEvent(raw []byte, headers http.Header) (*integration.InboundEvent, error) {
	return a.parseEvent(raw, headers)
}

// Normalize converts a Jahez order payload into a canonical order
func (a *JahezAdapter) Normalize(raw []byte) (*ordering.NormalizedOrder, error) {
	p, err := decodePayload(raw)
	if err != nil {
		return nil, err
	}

	customer := p.obj("customer")
	name := customer.str("name")
	if name == "" {
		name = cleanText(customer.str("first_name") + " " + customer.str("last_name"))
	}

	n := &ordering.NormalizedOrder{
		PlatformOrderID: p.str("id", "order_id"),
		Customer: ordering.Customer{
			Name:  name,
			Phone: customer.str("phone", "mobile"),
			Address: addressFrom(p, "delivery_address", "formatted_address",
				"street", "building", "floor", "apartment", "district", "city"),
		},
		Items:                 parseItems(p.list("items"), jahezItemFields),
		Status:                a.statuses.toCanonical(p.str("status")),
		EstimatedDeliveryTime: p.timestamp("estimated_delivery_time"),
		Notes:                 p.str("special_instructions", "notes"),
		CancellationReason:    p.str("cancellation_reason"),
	}
	return finishOrder(n, p.decPtr("total_amount"), raw)
}

// BuildOutboundRequest builds the Jahez API call for an action
func (a *JahezAdapter) BuildOutboundRequest(action integration.OutboundAction, platformOrderID string, status ordering.OrderStatus, reason string) (*integration.OutboundRequest, error) {
	updatedAt := a.now().UTC().Format(time.RFC3339)
	switch action {
	case integration.ActionConfirm:
		return &integration.OutboundRequest{
			Method: http.MethodPost,
			Path:   orderPath(platformOrderID, "accept"),
			Body:   map[string]any{"status": "confirmed", "updated_at": updatedAt},
		}, nil
	case integration.ActionReject:
		return &integration.OutboundRequest{
			Method: http.MethodPost,
			Path:   orderPath(platformOrderID, "reject"),
			Body:   map[string]any{"status": "rejected", "reason": reason, "updated_at": updatedAt},
		}, nil
	case integration.ActionUpdateStatus:
		token := a.MapOutboundStatus(status)
		if token == "" {
			return nil, fmt.Errorf("%w: jahez has no status for %s", integration.ErrUnsupportedAction, status)
		}
		return &integration.OutboundRequest{
			Method: http.MethodPost,
			Path:   orderPath(platformOrderID, "ready"),
			Body:   map[string]any{"status": token, "updated_at": updatedAt},
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", integration.ErrUnsupportedAction, action)
}

// HealthCheck verifies the API key against the auth endpoint
func (a *JahezAdapter) HealthCheck() (*integration.OutboundRequest, func(body []byte) bool) {
	return &integration.OutboundRequest{Method: http.MethodGet, Path: "/auth/verify"},
		func(body []byte) bool {
			var resp struct {
				Authenticated bool `json:"authenticated"`
			}
			return json.Unmarshal(body, &resp) == nil && resp.Authenticated
		}
}

var _ integration.PartnerAdapter = (*JahezAdapter)(nil)
