package delivery

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/uniorder/backend/internal/domain/integration"
	"github.com/uniorder/backend/internal/domain/ordering"
)

// KeetaProductionAPIURL is the default Keeta API endpoint
const KeetaProductionAPIURL = "https://api.keeta.com/v1"

var keetaStatuses = statusTable{
	inbound: map[string]ordering.OrderStatus{
		"placed":           ordering.StatusReceived,
		"confirmed":        ordering.StatusReceived,
		"in_preparation":   ordering.StatusPreparing,
		"ready_for_pickup": ordering.StatusReady,
		"out_for_delivery": ordering.StatusReady,
		"completed":        ordering.StatusCompleted,
		"delivered":        ordering.StatusCompleted,
		"cancelled":        ordering.StatusCancelled,
		"rejected":         ordering.StatusCancelled,
	},
	outbound: map[ordering.OrderStatus]string{
		ordering.StatusReceived:  "confirmed",
		ordering.StatusPreparing: "in_preparation",
		ordering.StatusReady:     "ready_for_pickup",
		ordering.StatusCompleted: "completed",
		ordering.StatusCancelled: "cancelled",
	},
}

var keetaItemFields = itemFields{
	name:     []string{"item_name", "name"},
	quantity: []string{"quantity"},
	price:    []string{"unit_price", "price"},
	notes:    []string{"customer_notes", "special_instructions"},
	category: []string{"category_name"},
	sku:      []string{"item_id", "sku"},
}

// KeetaAdapter implements integration.PartnerAdapter for Keeta
type KeetaAdapter struct {
	profile
	now func() time.Time
}

// NewKeetaAdapter creates a new Keeta adapter
func NewKeetaAdapter() *KeetaAdapter {
	return &KeetaAdapter{
		profile: profile{
			partner:         integration.PartnerKeeta,
			signatureHeader: "X-Keeta-Signature",
			eventHeader:     "X-Event-Type",
			deliveryHeader:  "X-Delivery-ID",
			statuses:        keetaStatuses,
			events: map[string]integration.EventKind{
				"order.placed":         integration.EventKindCreated,
				"order.created":        integration.EventKindCreated,
				"order.status_updated": integration.EventKindUpdated,
				"order.updated":        integration.EventKindUpdated,
				"order.cancelled":      integration.EventKindCancelled,
			},
			idKeys:     []string{"order_number", "id"},
			statusKeys: []string{"order_status", "status"},
			reasonKeys: []string{"cancellation_reason", "cancel_reason"},
		},
		now: time.Now,
	}
}

// Partner returns the partner this adapter serves
func (a *KeetaAdapter) Partner() integration.PartnerCode {
	return integration.PartnerKeeta
}

// SignatureHeader returns the header carrying the webhook HMAC
func (a *KeetaAdapter) SignatureHeader() string {
	return a.signatureHeader
}

// MapInboundStatus maps a Keeta status token to a canonical status
func (a *KeetaAdapter) MapInboundStatus(token string) ordering.OrderStatus {
	return a.statuses.toCanonical(token)
}

// MapOutboundStatus maps a canonical status to a Keeta status token
func (a *KeetaAdapter) MapOutboundStatus(status ordering.OrderStatus) string {
	return a.statuses.toPartner(status)
}

// ParseEvent reads the Keeta webhook envelope
func (a *KeetaAdapter) ParseEvent(raw []byte, headers http.Header) (*integration.InboundEvent, error) {
	return a.parseEvent(raw, headers)
}

// Normalize converts a Keeta order payload into a canonical order
func (a *KeetaAdapter) Normalize(raw []byte) (*ordering.NormalizedOrder, error) {
	p, err := decodePayload(raw)
	if err != nil {
		return nil, err
	}

	customer := p.obj("customer_info")
	delivery := p.obj("delivery_info")
	address := delivery.str("address")
	if address == "" {
		address = joinAddress(delivery.str("street"), delivery.str("building"), delivery.str("floor"),
			delivery.str("unit"), delivery.str("district"), delivery.str("city"))
	}

	n := &ordering.NormalizedOrder{
		PlatformOrderID: p.str("order_number", "id"),
		Customer: ordering.Customer{
			Name:    customer.str("name", "first_name"),
			Phone:   customer.str("phone_number", "mobile"),
			Address: address,
		},
		Items:                 parseItems(p.list("order_items"), keetaItemFields),
		Status:                a.statuses.toCanonical(p.str("order_status", "status")),
		EstimatedDeliveryTime: p.timestamp("estimated_delivery"),
		Notes:                 p.str("customer_notes", "instructions"),
		CancellationReason:    p.str("cancellation_reason", "cancel_reason"),
	}
	return finishOrder(n, p.decPtr("order_total"), raw)
}

// BuildOutboundRequest builds the Keeta API call for an action.
// Keeta patches the order resource directly.
func (a *KeetaAdapter) BuildOutboundRequest(action integration.OutboundAction, platformOrderID string, status ordering.OrderStatus, reason string) (*integration.OutboundRequest, error) {
	req := &integration.OutboundRequest{
		Method: http.MethodPatch,
		Path:   orderPath(platformOrderID),
	}
	ts := a.now().UTC().Format(time.RFC3339)

	switch action {
	case integration.ActionConfirm:
		req.Body = map[string]any{"status": "confirmed", "timestamp": ts}
	case integration.ActionReject:
		req.Body = map[string]any{"status": "cancelled", "cancellation_reason": reason, "timestamp": ts}
	case integration.ActionUpdateStatus:
		token := a.MapOutboundStatus(status)
		if token == "" {
			return nil, fmt.Errorf("%w: keeta has no status for %s", integration.ErrUnsupportedAction, status)
		}
		req.Body = map[string]any{"status": token, "timestamp": ts}
	default:
		return nil, fmt.Errorf("%w: %s", integration.ErrUnsupportedAction, action)
	}
	return req, nil
}

// HealthCheck pings the Keeta API
func (a *KeetaAdapter) HealthCheck() (*integration.OutboundRequest, func(body []byte) bool) {
	return &integration.OutboundRequest{Method: http.MethodGet, Path: "/ping"},
		func(body []byte) bool {
			var resp struct {
				Status string `json:"status"`
				Pong   bool   `json:"pong"`
			}
			return json.Unmarshal(body, &resp) == nil && (resp.Status == "success" || resp.Pong)
		}
}

var _ integration.PartnerAdapter = (*KeetaAdapter)(nil)
