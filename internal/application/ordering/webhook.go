package ordering

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uniorder/backend/internal/domain/integration"
	"github.com/uniorder/backend/internal/domain/ordering"
	"github.com/uniorder/backend/internal/infrastructure/delivery"
	"github.com/uniorder/backend/internal/infrastructure/logger"
	"github.com/uniorder/backend/internal/infrastructure/metrics"
	"github.com/uniorder/backend/internal/infrastructure/storage"
	"github.com/uniorder/backend/internal/infrastructure/telemetry"
)

const archiveTimeout = 5 * time.Second

// WebhookResult is the outcome of one inbound webhook. Error is set when
// the webhook must not be acknowledged (authentication, configuration or
// internal failures) and for rejected payloads, which are acknowledged with
// Accepted false.
type WebhookResult struct {
	Accepted bool       `json:"accepted"`
	Outcome  string     `json:"outcome"`
	Result   string     `json:"result,omitempty"`
	OrderID  *uuid.UUID `json:"order_id,omitempty"`
	Reason   string     `json:"reason,omitempty"`
	Error    error      `json:"-"`
}

// HandleInboundWebhook authenticates, parses and ingests one partner webhook
func (o *Orchestrator) HandleInboundWebhook(ctx context.Context, partnerName string, body []byte, headers http.Header) (result WebhookResult) {
	ctx, span := telemetry.StartServiceSpan(ctx, "orchestrator", "HandleInboundWebhook",
		telemetry.WithAttribute(telemetry.SpanAttrPartner, partnerName))
	defer span.End()

	defer func() {
		o.metrics.WebhookReceived(partnerName, result.Outcome)
		telemetry.SetAttribute(span, "webhook.outcome", result.Outcome)
		if result.Error != nil {
			telemetry.RecordError(span, result.Error)
		}
	}()

	partner, err := integration.ParsePartnerCode(partnerName)
	if err != nil {
		return WebhookResult{Outcome: metrics.WebhookInvalid, Error: integration.ErrUnknownPartner}
	}
	ctx, _ = logger.WithPartner(ctx, logger.FromContext(ctx), partner.String())
	log := logger.L(ctx, o.logger)

	resolved, err := o.resolver.Resolve(ctx, partner)
	if err != nil {
		log.Warn("Rejecting webhook for unavailable partner", zap.Error(err))
		return WebhookResult{Outcome: metrics.WebhookInvalid, Error: err}
	}

	if err := o.authenticate(partner, resolved, body, headers, log); err != nil {
		return WebhookResult{Outcome: metrics.WebhookUnauthorized, Error: err}
	}

	event, err := resolved.Adapter.ParseEvent(body, headers)
	if err != nil {
		log.Warn("Rejecting unparseable webhook", zap.Error(err))
		return rejected(err)
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPlatformOrderID, event.PlatformOrderID,
		telemetry.SpanAttrDeliveryID, event.DeliveryID,
	)
	log = log.With(
		zap.String("event_type", event.EventType),
		zap.String("platform_order_id", event.PlatformOrderID),
		zap.String("delivery_id", event.DeliveryID),
	)

	deliveryKey := ""
	if event.DeliveryID != "" && o.deliveries != nil && o.idempotency.Enabled {
		deliveryKey = partner.String() + ":" + event.DeliveryID
		seen, err := o.deliveries.IsProcessed(ctx, deliveryKey)
		if err != nil {
			log.Warn("Delivery store unavailable, processing without dedupe", zap.Error(err))
		} else if seen {
			log.Info("Duplicate webhook delivery acknowledged")
			return WebhookResult{Accepted: true, Outcome: metrics.WebhookDuplicate, Reason: "duplicate delivery"}
		}
	}

	if event.Kind == integration.EventKindUnknown {
		log.Info("Ignoring unsupported webhook event")
		o.markProcessed(ctx, deliveryKey, log)
		return WebhookResult{Accepted: true, Outcome: metrics.WebhookAccepted, Result: metrics.IngestIgnored, Reason: "unsupported event type " + event.EventType}
	}

	req := IngestRequest{
		Partner:            partner,
		PlatformOrderID:    event.PlatformOrderID,
		Status:             event.Status,
		CancellationReason: event.CancellationReason,
	}
	normalized, err := resolved.Adapter.Normalize(body)
	switch {
	case err == nil:
		req.Order = normalized
		if event.Kind == integration.EventKindCreated {
			req.Status = normalized.Status
		}
	case event.Kind == integration.EventKindCreated:
		log.Warn("Rejecting invalid order payload", zap.Error(err))
		return rejected(err)
	default:
		// status-only update
		log.Debug("Event carries no complete order", zap.Error(err))
	}

	o.archive(ctx, partner, event, body, log)

	ingested, err := o.Ingest(ctx, req)
	if err != nil {
		if errors.Is(err, ordering.ErrValidation) {
			log.Warn("Rejecting invalid order payload", zap.Error(err))
			return rejected(err)
		}
		log.Error("Webhook ingestion failed", zap.Error(err))
		return WebhookResult{Outcome: metrics.WebhookFailed, Error: err}
	}
	o.markProcessed(ctx, deliveryKey, log)

	result = WebhookResult{
		Accepted: true,
		Outcome:  metrics.WebhookAccepted,
		Result:   ingested.Result,
		Reason:   ingested.Reason,
	}
	if ingested.Order != nil {
		id := ingested.Order.ID
		result.OrderID = &id
	}
	return result
}

// authenticate enforces the partner's webhook secret. Partners without a
// secret are rejected unless unsigned webhooks are allowed.
func (o *Orchestrator) authenticate(partner integration.PartnerCode, resolved *integration.ResolvedPartner, body []byte, headers http.Header, log *zap.Logger) error {
	secret := resolved.Credentials.WebhookSecret
	if secret == "" {
		if !o.allowUnsigned {
			log.Warn("Rejecting webhook, no webhook secret configured")
			return &integration.AuthenticationError{Partner: partner, Reason: "no webhook secret configured"}
		}
		log.Warn("Accepting unsigned webhook, no webhook secret configured")
		return nil
	}

	header := resolved.Adapter.SignatureHeader()
	if !delivery.VerifySignature(body, headers.Get(header), secret) {
		o.metrics.SignatureFailure(partner.String())
		log.Warn("Rejecting webhook with invalid signature", zap.String("header", header))
		return &integration.AuthenticationError{Partner: partner, Reason: "invalid signature"}
	}
	return nil
}

func (o *Orchestrator) markProcessed(ctx context.Context, key string, log *zap.Logger) {
	if key == "" {
		return
	}
	if _, err := o.deliveries.MarkProcessed(ctx, key, o.idempotency.TTL); err != nil {
		log.Warn("Failed to remember webhook delivery", zap.Error(err))
	}
}

func (o *Orchestrator) archive(ctx context.Context, partner integration.PartnerCode, event *integration.InboundEvent, body []byte, log *zap.Logger) {
	if o.archiver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	key, err := o.archiver.Archive(ctx, storage.ArchivedPayload{
		Partner:         partner.String(),
		PlatformOrderID: event.PlatformOrderID,
		DeliveryID:      event.DeliveryID,
		ReceivedAt:      time.Now(),
		Body:            body,
	})
	if err != nil {
		log.Warn("Failed to archive webhook payload", zap.Error(err))
		return
	}
	if key != "" {
		log.Debug("Webhook payload archived", zap.String("key", key))
	}
}

func rejected(err error) WebhookResult {
	return WebhookResult{Outcome: metrics.WebhookInvalid, Error: err, Reason: err.Error()}
}
