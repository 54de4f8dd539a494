// Package metrics exposes the engine's Prometheus collectors: webhook intake,
// order ingestion, state transitions, outbound partner calls and registry
// health. All recording methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "uniorder"

// Webhook outcomes.
const (
	WebhookAccepted     = "accepted"
	WebhookDuplicate    = "duplicate"
	WebhookUnauthorized = "unauthorized"
	WebhookTooLarge     = "too_large"
	WebhookInvalid      = "invalid"
	WebhookFailed       = "failed"
)

// Ingest results.
const (
	IngestCreated = "created"
	IngestUpdated = "updated"
	IngestNoop    = "noop"
	IngestDropped = "dropped"
	IngestIgnored = "ignored"
)

// Outbound results.
const (
	OutboundSuccess = "success"
	OutboundFailure = "failure"
	OutboundSkipped = "skipped"
)

// Metrics holds the engine collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	webhooks          *prometheus.CounterVec
	ingests           *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	outboundRequests  *prometheus.CounterVec
	outboundDuration  *prometheus.HistogramVec
	signatureFailures *prometheus.CounterVec
	registryCache     *prometheus.CounterVec
	integrationUp     *prometheus.GaugeVec
	restaurantOpen    prometheus.Gauge
	eventsPublished   *prometheus.CounterVec
}

// New creates and registers the engine collectors together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Inbound partner webhooks by outcome.",
		}, []string{"partner", "outcome"}),
		ingests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_ingested_total",
			Help:      "Normalized partner orders by ingest result.",
		}, []string{"partner", "result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Committed order status transitions.",
		}, []string{"from", "to"}),
		outboundRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_requests_total",
			Help:      "Status pushes to partner APIs by result.",
		}, []string{"partner", "action", "result"}),
		outboundDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbound_request_duration_seconds",
			Help:      "Latency of status pushes including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"partner", "action"}),
		signatureFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_signature_failures_total",
			Help:      "Webhooks rejected for a missing or invalid signature.",
		}, []string{"partner"}),
		registryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_cache_lookups_total",
			Help:      "Integration registry cache lookups by result.",
		}, []string{"result"}),
		integrationUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "integration_up",
			Help:      "1 when the last connection check for a partner succeeded.",
		}, []string{"partner"}),
		restaurantOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "restaurant_open",
			Help:      "1 while the restaurant accepts new orders.",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events seen on the event bus by type.",
		}, []string{"type"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.webhooks,
		m.ingests,
		m.transitions,
		m.outboundRequests,
		m.outboundDuration,
		m.signatureFailures,
		m.registryCache,
		m.integrationUp,
		m.restaurantOpen,
		m.eventsPublished,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WebhookReceived counts an inbound webhook.
func (m *Metrics) WebhookReceived(partner, outcome string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(partner, outcome).Inc()
}

// SignatureFailure counts a rejected signature.
func (m *Metrics) SignatureFailure(partner string) {
	if m == nil {
		return
	}
	m.signatureFailures.WithLabelValues(partner).Inc()
}

// OrderIngested counts an ingest decision.
func (m *Metrics) OrderIngested(partner, result string) {
	if m == nil {
		return
	}
	m.ingests.WithLabelValues(partner, result).Inc()
}

// Transition counts a committed status change.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// OutboundCall records a status push and its latency.
func (m *Metrics) OutboundCall(partner, action, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.outboundRequests.WithLabelValues(partner, action, result).Inc()
	if result != OutboundSkipped {
		m.outboundDuration.WithLabelValues(partner, action).Observe(elapsed.Seconds())
	}
}

// RegistryLookup counts a registry cache hit or miss.
func (m *Metrics) RegistryLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.registryCache.WithLabelValues(result).Inc()
}

// IntegrationHealth sets the connection gauge for partner.
func (m *Metrics) IntegrationHealth(partner string, up bool) {
	if m == nil {
		return
	}
	m.integrationUp.WithLabelValues(partner).Set(boolToFloat(up))
}

// RestaurantOpen sets the open gauge.
func (m *Metrics) RestaurantOpen(open bool) {
	if m == nil {
		return
	}
	m.restaurantOpen.Set(boolToFloat(open))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
