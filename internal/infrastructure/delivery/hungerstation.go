package delivery

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/uniorder/backend/internal/domain/integration"
	"github.com/uniorder/backend/internal/domain/ordering"
)

// HungerStationProductionAPIURL is the default HungerStation API endpoint
const HungerStationProductionAPIURL = "https://api.hungerstation.com/v1"

var hungerStationStatuses = statusTable{
	inbound: map[string]ordering.OrderStatus{
		"new":                ordering.StatusReceived,
		"accepted":           ordering.StatusReceived,
		"preparing":          ordering.StatusPreparing,
		"ready":              ordering.StatusReady,
		"ready_for_delivery": ordering.StatusReady,
		"picked_up":          ordering.StatusReady,
		"delivered":          ordering.StatusCompleted,
		"cancelled":          ordering.StatusCancelled,
		"rejected":           ordering.StatusCancelled,
	},
	outbound: map[ordering.OrderStatus]string{
		ordering.StatusReceived:  "accepted",
		ordering.StatusPreparing: "preparing",
		ordering.StatusReady:     "ready_for_delivery",
		ordering.StatusCompleted: "delivered",
		ordering.StatusCancelled: "cancelled",
	},
}

var hungerStationItemFields = itemFields{
	name:     []string{"name", "product_name"},
	quantity: []string{"quantity", "qty"},
	price:    []string{"price", "amount"},
	notes:    []string{"notes", "special_instructions"},
	category: []string{"category"},
	sku:      []string{"sku", "product_id"},
}

// HungerStationAdapter implements integration.PartnerAdapter for HungerStation
type HungerStationAdapter struct {
	profile
	now func() time.Time
}

// NewHungerStationAdapter creates a new HungerStation adapter
func NewHungerStationAdapter() *HungerStationAdapter {
	return &HungerStationAdapter{
		profile: profile{
			partner:         integration.PartnerHungerStation,
			signatureHeader: "X-HungerStation-Signature",
			eventHeader:     "X-Event-Type",
			deliveryHeader:  "X-Delivery-ID",
			statuses:        hungerStationStatuses,
			events: map[string]integration.EventKind{
				"order.new":            integration.EventKindCreated,
				"order.created":        integration.EventKindCreated,
				"order.status_changed": integration.EventKindUpdated,
				"order.updated":        integration.EventKindUpdated,
				"order.cancelled":      integration.EventKindCancelled,
			},
			idKeys:     []string{"order_id", "id"},
			statusKeys: []string{"status"},
			reasonKeys: []string{"cancellation_reason", "rejection_reason", "reason"},
		},
		now: time.Now,
	}
}

// Partner returns the partner this adapter serves
func (a *HungerStationAdapter) Partner() integration.PartnerCode {
	return integration.PartnerHungerStation
}

// SignatureHeader returns the header carrying the webhook HMAC
func (a *HungerStationAdapter) SignatureHeader() string {
	return a.signatureHeader
}

// MapInboundStatus maps a HungerStation status token to a canonical status
func (a *HungerStationAdapter) MapInboundStatus(token string) ordering.OrderStatus {
	return a.statuses.toCanonical(token)
}

// MapOutboundStatus maps a canonical status to a HungerStation status token
func (a *HungerStationAdapter) MapOutboundStatus(status ordering.OrderStatus) string {
	return a.statuses.toPartner(status)
}

// ParseEvent reads the HungerStation webhook envelope
func (a *HungerStationAdapter) ParseEvent(raw []byte, headers http.Header) (*integration.InboundEvent, error) {
	return a.parseEvent(raw, headers)
}

// Normalize converts a HungerStation order payload into a canonical order
func (a *HungerStationAdapter) Normalize(raw []byte) (*ordering.NormalizedOrder, error) {
	p, err := decodePayload(raw)
	if err != nil {
		return nil, err
	}

	customer := p.obj("customer")
	n := &ordering.NormalizedOrder{
		PlatformOrderID: p.str("order_id", "id"),
		Customer: ordering.Customer{
			Name:  customer.str("name", "first_name"),
			Phone: customer.str("phone", "mobile"),
			Address: addressFrom(p, "address", "full_address",
				"street_name", "building_number", "floor", "apartment", "area", "city"),
		},
		Items:                 parseItems(p.list("items"), hungerStationItemFields),
		Status:                a.statuses.toCanonical(p.str("status")),
		EstimatedDeliveryTime: p.timestamp("delivery_time"),
		Notes:                 p.str("notes", "special_requests"),
		CancellationReason:    p.str("cancellation_reason", "rejection_reason"),
	}
	return finishOrder(n, p.decPtr("total"), raw)
}

// BuildOutboundRequest builds the HungerStation API call for an action.
// Every action goes to the same status endpoint.
func (a *HungerStationAdapter) BuildOutboundRequest(action integration.OutboundAction, platformOrderID string, status ordering.OrderStatus, reason string) (*integration.OutboundRequest, error) {
	req := &integration.OutboundRequest{
		Method: http.MethodPut,
		Path:   orderPath(platformOrderID, "status"),
	}
	updatedAt := a.now().UTC().Format(time.RFC3339)

	switch action {
	case integration.ActionConfirm:
		req.Body = map[string]any{"status": "accepted", "updated_at": updatedAt}
	case integration.ActionReject:
		req.Body = map[string]any{"status": "rejected", "rejection_reason": reason, "updated_at": updatedAt}
	case integration.ActionUpdateStatus:
		token := a.MapOutboundStatus(status)
		if token == "" {
			return nil, fmt.Errorf("%w: hungerstation has no status for %s", integration.ErrUnsupportedAction, status)
		}
		req.Body = map[string]any{"status": token, "updated_at": updatedAt}
	default:
		return nil, fmt.Errorf("%w: %s", integration.ErrUnsupportedAction, action)
	}
	return req, nil
}

// HealthCheck calls the HungerStation health endpoint
func (a *HungerStationAdapter) HealthCheck() (*integration.OutboundRequest, func(body []byte) bool) {
	return &integration.OutboundRequest{Method: http.MethodGet, Path: "/health"},
		func(body []byte) bool {
			var resp struct {
				Status string `json:"status"`
			}
			return json.Unmarshal(body, &resp) == nil && resp.Status == "ok"
		}
}

var _ integration.PartnerAdapter = (*HungerStationAdapter)(nil)
