package integration

import (
	"net/http"

	"github.com/uniorder/backend/internal/domain/ordering"
)

// ---------------------------------------------------------------------------
// Outbound requests
// ---------------------------------------------------------------------------

// OutboundAction is a kind of call made back to a partner after a transition
type OutboundAction string

const (
	// ActionConfirm tells the partner the restaurant accepted the order
	ActionConfirm OutboundAction = "confirm"
	// ActionReject tells the partner the order was rejected or cancelled
	ActionReject OutboundAction = "reject"
	// ActionUpdateStatus pushes a ready/completed status change
	ActionUpdateStatus OutboundAction = "update_status"
)

// ActionForTransition returns the outbound action that mirrors a transition
// into target, and false when the target has no partner-side counterpart
func ActionForTransition(target ordering.OrderStatus) (OutboundAction, bool) {
	switch target {
	case ordering.StatusPreparing:
		return ActionConfirm, true
	case ordering.StatusCancelled:
		return ActionReject, true
	case ordering.StatusReady, ordering.StatusCompleted:
		return ActionUpdateStatus, true
	default:
		return "", false
	}
}

// OutboundRequest describes one HTTP call to a partner API.
// Path is relative to the partner base URL; Body is JSON-encoded by the client.
type OutboundRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

// ---------------------------------------------------------------------------
// Inbound events
// ---------------------------------------------------------------------------

// EventKind classifies a partner webhook event
type EventKind string

const (
	EventKindCreated   EventKind = "created"
	EventKindUpdated   EventKind = "updated"
	EventKindCancelled EventKind = "cancelled"
	EventKindUnknown   EventKind = "unknown"
)

// InboundEvent is the envelope of a partner webhook, read without full
// normalization so that status-only updates do not need a complete order
type InboundEvent struct {
	// EventType is the partner's own event name, e.g. "order.created"
	EventType string
	Kind      EventKind
	// PlatformOrderID is the partner-assigned order ID
	PlatformOrderID string
	// RawStatus is the partner's status token, if any
	RawStatus string
	// Status is RawStatus mapped to the canonical vocabulary
	Status             ordering.OrderStatus
	CancellationReason string
	// DeliveryID is the partner's delivery identifier, used to drop redeliveries
	DeliveryID string
}

// ---------------------------------------------------------------------------
// PartnerAdapter port
// ---------------------------------------------------------------------------

// PartnerAdapter converts between one partner's wire vocabulary and the
// canonical ordering model. Implementations are stateless and safe for
// concurrent use.
type PartnerAdapter interface {
	// Partner returns the partner this adapter serves
	Partner() PartnerCode

	// Normalize parses an order payload into a canonical order.
	// Returns *ordering.ValidationError when the payload cannot become an order
	Normalize(raw []byte) (*ordering.NormalizedOrder, error)

	// MapInboundStatus maps a partner status token; unknown tokens map to received
	MapInboundStatus(token string) ordering.OrderStatus

	// MapOutboundStatus maps a canonical status to the partner's token
	MapOutboundStatus(status ordering.OrderStatus) string

	// BuildOutboundRequest builds the partner call for an action
	BuildOutboundRequest(action OutboundAction, platformOrderID string, status ordering.OrderStatus, reason string) (*OutboundRequest, error)

	// ParseEvent reads the event envelope from the payload and headers
	ParseEvent(raw []byte, headers http.Header) (*InboundEvent, error)

	// SignatureHeader returns the header carrying the webhook HMAC
	SignatureHeader() string

	// HealthCheck returns a lightweight request and a predicate over its response body
	HealthCheck() (*OutboundRequest, func(body []byte) bool)
}

// AdapterRegistry looks up the adapter for a partner
type AdapterRegistry interface {
	Adapter(partner PartnerCode) (PartnerAdapter, bool)
}

// ResolvedPartner is everything needed to talk to one partner: its stored
// configuration, adapter and decrypted credentials
type ResolvedPartner struct {
	Record      *IntegrationRecord
	Adapter     PartnerAdapter
	Credentials Credentials
}
