package ordering

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uniorder/backend/internal/domain/integration"
	"github.com/uniorder/backend/internal/domain/ordering"
	"github.com/uniorder/backend/internal/domain/shared"
	"github.com/uniorder/backend/internal/infrastructure/logger"
	"github.com/uniorder/backend/internal/infrastructure/metrics"
	"github.com/uniorder/backend/internal/infrastructure/storage"
	"github.com/uniorder/backend/internal/infrastructure/telemetry"
)

// PartnerResolver resolves a partner to its adapter and credentials and
// records the health of outbound calls
type PartnerResolver interface {
	Resolve(ctx context.Context, partner integration.PartnerCode) (*integration.ResolvedPartner, error)
	RecordSyncSuccess(ctx context.Context, partner integration.PartnerCode)
	RecordSyncFailure(ctx context.Context, partner integration.PartnerCode, cause error)
}

// OutboundExecutor sends one status change to a partner API
type OutboundExecutor interface {
	Execute(ctx context.Context, adapter integration.PartnerAdapter, creds integration.Credentials, action integration.OutboundAction, platformOrderID string, status ordering.OrderStatus, reason string) error
}

// Orchestrator is the single writer of canonical order state. It applies
// inbound partner events, drives operator transitions and mirrors accepted
// transitions back to the originating partner.
type Orchestrator struct {
	repo     ordering.OrderRepository
	settings ordering.SettingsProvider
	resolver PartnerResolver
	outbound OutboundExecutor

	publisher     shared.EventPublisher
	deliveries    shared.IdempotencyStore
	idempotency   shared.IdempotencyConfig
	archiver      storage.PayloadArchiver
	allowUnsigned bool
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithEventPublisher broadcasts new_order and order_updated events
func WithEventPublisher(p shared.EventPublisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithDeliveryStore drops webhook redeliveries by delivery id
func WithDeliveryStore(store shared.IdempotencyStore, cfg shared.IdempotencyConfig) Option {
	return func(o *Orchestrator) {
		o.deliveries = store
		o.idempotency = cfg
	}
}

// WithArchiver stores every authenticated webhook body
func WithArchiver(a storage.PayloadArchiver) Option {
	return func(o *Orchestrator) { o.archiver = a }
}

// WithAllowUnsigned accepts webhooks for partners that have no webhook secret
func WithAllowUnsigned(allow bool) Option {
	return func(o *Orchestrator) { o.allowUnsigned = allow }
}

// WithMetrics records ingest and transition counters
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates an Orchestrator
func NewOrchestrator(repo ordering.OrderRepository, settings ordering.SettingsProvider, resolver PartnerResolver, outbound OutboundExecutor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		repo:        repo,
		settings:    settings,
		resolver:    resolver,
		outbound:    outbound,
		idempotency: shared.DefaultIdempotencyConfig(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ---------------------------------------------------------------------------
// Ingest
// ---------------------------------------------------------------------------

// IngestRequest is one parsed partner event. Order is nil for status-only
// updates that carry no complete order.
type IngestRequest struct {
	Partner            integration.PartnerCode
	PlatformOrderID    string
	Status             ordering.OrderStatus
	CancellationReason string
	Order              *ordering.NormalizedOrder
}

// IngestResult reports what Ingest did with an event
type IngestResult struct {
	Result string // one of the metrics.Ingest* values
	Order  *ordering.Order
	Reason string
}

// Ingest applies a partner event. An event for a known order is a status
// update; anything else creates the order unless the restaurant is closed.
// Partner-originated transitions are never echoed back to the partner.
func (o *Orchestrator) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if req.PlatformOrderID == "" && req.Order != nil {
		req.PlatformOrderID = req.Order.PlatformOrderID
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "orchestrator", "Ingest",
		telemetry.WithAttribute(telemetry.SpanAttrPartner, req.Partner.String()),
		telemetry.WithAttribute(telemetry.SpanAttrPlatformOrderID, req.PlatformOrderID),
	)
	defer span.End()

	result, err := o.ingest(ctx, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if result.Order != nil {
		telemetry.SetAttribute(span, telemetry.SpanAttrOrderID, result.Order.ID.String())
	}
	telemetry.SetAttribute(span, "ingest.result", result.Result)
	o.metrics.OrderIngested(req.Partner.String(), result.Result)
	return result, nil
}

func (o *Orchestrator) ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if req.PlatformOrderID == "" {
		return nil, ordering.NewValidationError("platform_order_id", "is required")
	}
	partnerID := req.Partner.String()
	ctx, _ = logger.WithPartner(ctx, logger.FromContext(ctx), partnerID)
	log := logger.L(ctx, o.logger).With(zap.String("platform_order_id", req.PlatformOrderID))

	existing, err := o.repo.FindByIdempotencyKey(ctx, partnerID, req.PlatformOrderID)
	switch {
	case err == nil:
		return o.applyInboundStatus(ctx, existing, req)
	case !errors.Is(err, ordering.ErrOrderNotFound):
		return nil, err
	}

	if req.Order == nil {
		log.Info("Ignoring status update for unknown order", zap.String("status", string(req.Status)))
		return &IngestResult{Result: metrics.IngestIgnored, Reason: "unknown order"}, nil
	}

	settings := o.settings.Settings(ctx)
	if !settings.IsOpen {
		log.Info("Restaurant closed, dropping new order")
		return &IngestResult{Result: metrics.IngestDropped, Reason: "restaurant closed"}, nil
	}

	order, err := ordering.NewOrder(partnerID, req.Order)
	if err != nil {
		return nil, err
	}
	if err := o.repo.Create(ctx, order, order.InitialAudit(ordering.SystemActor(ordering.ActorWebhook))); err != nil {
		if !errors.Is(err, ordering.ErrDuplicateOrder) {
			return nil, err
		}
		// a concurrent delivery created it first
		existing, err := o.repo.FindByIdempotencyKey(ctx, partnerID, req.PlatformOrderID)
		if err != nil {
			return nil, err
		}
		return o.applyInboundStatus(ctx, existing, req)
	}
	ctx, _ = logger.WithOrderID(ctx, logger.FromContext(ctx), order.ID.String())
	log = logger.L(ctx, o.logger).With(zap.String("platform_order_id", req.PlatformOrderID))
	o.publish(ctx, order)
	log.Info("Order received",
		zap.String("total_amount", order.TotalAmount.String()),
		zap.Int("items", len(order.Items)),
	)

	target := req.Status
	if target == "" {
		target = req.Order.Status
	}
	if target != "" && target != order.Status {
		if order.Status.CanTransitionTo(target) {
			updated, err := o.commitTransition(ctx, order.ID, target, ordering.SystemActor(ordering.ActorWebhook), req.CancellationReason)
			if err != nil {
				log.Warn("Failed to apply partner status to new order", zap.String("status", string(target)), zap.Error(err))
			} else {
				order = updated
			}
		} else {
			log.Info("Partner status not reachable from received, keeping received", zap.String("status", string(target)))
		}
	}

	if settings.AutoAccept && order.Status == ordering.StatusReceived {
		accepted, err := o.Transition(ctx, order.ID, ordering.StatusPreparing, ordering.SystemActor(ordering.ActorAutoAccept), "")
		if err != nil {
			log.Warn("Auto-accept failed", zap.Error(err))
		} else {
			order = accepted
		}
	}

	return &IngestResult{Result: metrics.IngestCreated, Order: order}, nil
}

// applyInboundStatus handles an event for an order that already exists
func (o *Orchestrator) applyInboundStatus(ctx context.Context, existing *ordering.Order, req IngestRequest) (*IngestResult, error) {
	target := req.Status
	if target == "" && req.Order != nil {
		target = req.Order.Status
	}
	ctx, _ = logger.WithOrderID(ctx, logger.FromContext(ctx), existing.ID.String())
	log := logger.L(ctx, o.logger).With(
		zap.String("platform_order_id", req.PlatformOrderID),
		zap.String("from", string(existing.Status)),
		zap.String("to", string(target)),
	)

	if target == "" || target == existing.Status {
		log.Debug("Duplicate partner event, nothing to apply")
		return &IngestResult{Result: metrics.IngestNoop, Order: existing}, nil
	}
	if !existing.Status.CanTransitionTo(target) {
		log.Warn("Ignoring stale or illegal partner transition")
		return &IngestResult{
			Result: metrics.IngestIgnored,
			Order:  existing,
			Reason: fmt.Sprintf("cannot transition from %s to %s", existing.Status, target),
		}, nil
	}

	updated, err := o.commitTransition(ctx, existing.ID, target, ordering.SystemActor(ordering.ActorWebhook), req.CancellationReason)
	if err != nil {
		var conflict *ordering.StateConflictError
		if errors.As(err, &conflict) {
			log.Warn("Partner transition lost a race, ignoring", zap.Error(err))
			return &IngestResult{Result: metrics.IngestIgnored, Order: existing, Reason: err.Error()}, nil
		}
		return nil, err
	}
	log.Info("Partner status applied")
	return &IngestResult{Result: metrics.IngestUpdated, Order: updated}, nil
}

// ---------------------------------------------------------------------------
// Transitions
// ---------------------------------------------------------------------------

// Transition commits a status change and then mirrors it to the partner.
// The outbound call runs after the commit and its failure never fails the
// transition.
func (o *Orchestrator) Transition(ctx context.Context, orderID uuid.UUID, target ordering.OrderStatus, actor ordering.Actor, reason string) (*ordering.Order, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "orchestrator", "Transition",
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, orderID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrOrderStatus, target.String()),
	)
	defer span.End()
	ctx, _ = logger.WithOrderID(ctx, logger.FromContext(ctx), orderID.String())

	order, err := o.commitTransition(ctx, orderID, target, actor, reason)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	o.attemptOutboundSync(context.WithoutCancel(ctx), order, target, reason)
	telemetry.SetOK(span)
	return order, nil
}

// RequestTransition is the operator entry point for status changes
func (o *Orchestrator) RequestTransition(ctx context.Context, orderID uuid.UUID, target ordering.OrderStatus, actorUserID, reason string) (*ordering.Order, error) {
	if !target.IsValid() {
		return nil, ordering.NewValidationError("status", fmt.Sprintf("unknown status %q", target))
	}
	actor := ordering.UserActor(actorUserID)
	if actorUserID == "" {
		actor = ordering.SystemActor(ordering.ActorSystem)
	}
	return o.Transition(ctx, orderID, target, actor, reason)
}

// Cancel cancels an order on behalf of an operator
func (o *Orchestrator) Cancel(ctx context.Context, orderID uuid.UUID, actorUserID, reason string) (*ordering.Order, error) {
	return o.RequestTransition(ctx, orderID, ordering.StatusCancelled, actorUserID, reason)
}

// commitTransition validates and persists one transition with its audit
// entry in a single store transaction, then publishes order_updated
func (o *Orchestrator) commitTransition(ctx context.Context, orderID uuid.UUID, target ordering.OrderStatus, actor ordering.Actor, reason string) (*ordering.Order, error) {
	var from ordering.OrderStatus
	order, _, err := o.repo.ApplyTransition(ctx, orderID, func(order *ordering.Order) (*ordering.AuditEntry, error) {
		from = order.Status
		return order.TransitionTo(target, actor, reason)
	})
	if err != nil {
		return nil, err
	}

	ctx, _ = logger.WithOrderID(ctx, logger.FromContext(ctx), orderID.String())
	ctx, _ = logger.WithPartner(ctx, logger.FromContext(ctx), order.PartnerID)
	o.metrics.Transition(from.String(), target.String())
	o.publish(ctx, order)
	logger.L(ctx, o.logger).Info("Order transitioned",
		zap.String("from", from.String()),
		zap.String("to", target.String()),
		zap.String("actor", actor.String()),
	)
	return order, nil
}

// attemptOutboundSync mirrors an accepted transition to the partner. Every
// failure is contained here and recorded on the integration.
func (o *Orchestrator) attemptOutboundSync(ctx context.Context, order *ordering.Order, target ordering.OrderStatus, reason string) {
	action, ok := integration.ActionForTransition(target)
	if !ok {
		return
	}
	partner := integration.PartnerCode(order.PartnerID)
	ctx, _ = logger.WithOrderID(ctx, logger.FromContext(ctx), order.ID.String())
	ctx, _ = logger.WithPartner(ctx, logger.FromContext(ctx), order.PartnerID)
	log := logger.L(ctx, o.logger).With(
		zap.String("platform_order_id", order.PlatformOrderID),
		zap.String("action", string(action)),
	)

	resolved, err := o.resolver.Resolve(ctx, partner)
	if err != nil {
		log.Warn("Skipping outbound sync, partner not resolvable", zap.Error(err))
		o.metrics.OutboundCall(order.PartnerID, string(action), metrics.OutboundSkipped, 0)
		return
	}

	if err := o.outbound.Execute(ctx, resolved.Adapter, resolved.Credentials, action, order.PlatformOrderID, target, reason); err != nil {
		log.Error("Outbound sync failed, order state kept", zap.Error(err))
		o.resolver.RecordSyncFailure(ctx, partner, err)
		return
	}
	o.resolver.RecordSyncSuccess(ctx, partner)
}

func (o *Orchestrator) publish(ctx context.Context, order *ordering.Order) {
	events := order.GetDomainEvents()
	order.ClearDomainEvents()
	if o.publisher == nil || len(events) == 0 {
		return
	}
	if err := o.publisher.Publish(ctx, events...); err != nil {
		logger.L(ctx, o.logger).Warn("Failed to publish order events", zap.Error(err))
	}
}
