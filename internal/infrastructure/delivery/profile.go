package delivery

import (
	"net/http"
	"strings"

	"github.com/uniorder/backend/internal/domain/integration"
	"github.com/uniorder/backend/internal/domain/ordering"
)

// defaultCancellationReason is used when a partner cancels without saying why
const defaultCancellationReason = "Cancelled by platform"

// statusTable maps a partner's status vocabulary to and from canonical statuses
type statusTable struct {
	inbound  map[string]ordering.OrderStatus
	outbound map[ordering.OrderStatus]string
}

// toCanonical maps a partner token; unmapped tokens fall back to received so
// the webhook can still be acknowledged
func (t statusTable) toCanonical(token string) ordering.OrderStatus {
	if s, ok := t.inbound[strings.ToLower(strings.TrimSpace(token))]; ok {
		return s
	}
	return ordering.StatusReceived
}

func (t statusTable) toPartner(status ordering.OrderStatus) string {
	return t.outbound[status]
}

// profile holds what differs between partners when reading a webhook envelope.
// Adapters compose it rather than inherit from it.
type profile struct {
	partner         integration.PartnerCode
	signatureHeader string
	eventHeader     string
	deliveryHeader  string
	statuses        statusTable
	events          map[string]integration.EventKind

	idKeys     []string
	statusKeys []string
	reasonKeys []string
}

// parseEvent reads the event envelope: the event type from the header (or
// the payload's own event field), the order id, and the mapped status
func (pr profile) parseEvent(raw []byte, headers http.Header) (*integration.InboundEvent, error) {
	p, err := decodePayload(raw)
	if err != nil {
		return nil, err
	}

	eventType := strings.TrimSpace(headers.Get(pr.eventHeader))
	if eventType == "" {
		eventType = p.str("event", "event_type", "type")
	}

	ev := &integration.InboundEvent{
		EventType:       eventType,
		PlatformOrderID: p.str(pr.idKeys...),
		RawStatus:       p.str(pr.statusKeys...),
		DeliveryID:      headers.Get(pr.deliveryHeader),
	}
	if ev.DeliveryID == "" {
		ev.DeliveryID = p.str("delivery_id", "webhook_id", "event_id")
	}

	switch {
	case eventType == "":
		// No event type: plain order ingestion
		ev.Kind = integration.EventKindCreated
	default:
		kind, ok := pr.events[strings.ToLower(eventType)]
		if !ok {
			kind = integration.EventKindUnknown
		}
		ev.Kind = kind
	}

	switch ev.Kind {
	case integration.EventKindCreated:
		ev.Status = ordering.StatusReceived
	case integration.EventKindCancelled:
		ev.Status = ordering.StatusCancelled
		ev.CancellationReason = p.str(pr.reasonKeys...)
		if ev.CancellationReason == "" {
			ev.CancellationReason = defaultCancellationReason
		}
	default:
		ev.Status = pr.statuses.toCanonical(ev.RawStatus)
		if ev.Status == ordering.StatusCancelled {
			ev.CancellationReason = p.str(pr.reasonKeys...)
		}
	}

	if ev.Kind != integration.EventKindUnknown && ev.PlatformOrderID == "" {
		return nil, ordering.NewValidationError("platform_order_id", "is required")
	}
	return ev, nil
}
