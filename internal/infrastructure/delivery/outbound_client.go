package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/uniorder/backend/internal/domain/integration"
	"github.com/uniorder/backend/internal/domain/ordering"
	"github.com/uniorder/backend/internal/infrastructure/telemetry"
)

const (
	// maxResponseSize limits the response body size to prevent memory exhaustion
	maxResponseSize = 10 * 1024 * 1024 // 10MB max response
	// maxErrorBodySize is how much of an error body is kept on HTTPStatusError
	maxErrorBodySize = 512
	// defaultRequestTimeout bounds a single attempt
	defaultRequestTimeout = 30 * time.Second

	userAgent = "UniOrder/1.0"
)

// CallObserver receives the outcome of every outbound call
type CallObserver func(partner integration.PartnerCode, action integration.OutboundAction, attempts int, elapsed time.Duration, err error)

// OutboundClient sends confirm, reject and status calls to partner APIs with
// bounded retry, per-attempt timeouts and per-partner pacing
type OutboundClient struct {
	httpClient *http.Client
	policy     RetryPolicy
	logger     *zap.Logger
	observer   CallObserver

	rateLimit rate.Limit
	burst     int
	mu        sync.Mutex
	limiters  map[integration.PartnerCode]*rate.Limiter
}

// OutboundOption configures an OutboundClient
type OutboundOption func(*OutboundClient)

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(c *http.Client) OutboundOption {
	return func(o *OutboundClient) { o.httpClient = c }
}

// WithRetryPolicy sets the retry policy
func WithRetryPolicy(p RetryPolicy) OutboundOption {
	return func(o *OutboundClient) { o.policy = p }
}

// WithRateLimit paces calls per partner; perSecond <= 0 disables pacing
func WithRateLimit(perSecond float64, burst int) OutboundOption {
	return func(o *OutboundClient) {
		if perSecond <= 0 {
			o.rateLimit = rate.Inf
			return
		}
		o.rateLimit = rate.Limit(perSecond)
		if burst < 1 {
			burst = 1
		}
		o.burst = burst
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) OutboundOption {
	return func(o *OutboundClient) { o.logger = l }
}

// WithCallObserver registers a callback for call outcomes
func WithCallObserver(fn CallObserver) OutboundOption {
	return func(o *OutboundClient) { o.observer = fn }
}

// NewOutboundClient creates a new outbound client
func NewOutboundClient(opts ...OutboundOption) *OutboundClient {
	c := &OutboundClient{
		httpClient: &http.Client{},
		policy:     DefaultRetryPolicy(),
		logger:     zap.NewNop(),
		rateLimit:  rate.Inf,
		burst:      1,
		limiters:   make(map[integration.PartnerCode]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Confirm tells the partner the order was accepted
func (c *OutboundClient) Confirm(ctx context.Context, adapter integration.PartnerAdapter, creds integration.Credentials, platformOrderID string) error {
	return c.Execute(ctx, adapter, creds, integration.ActionConfirm, platformOrderID, ordering.StatusPreparing, "")
}

// Reject tells the partner the order was rejected or cancelled
func (c *OutboundClient) Reject(ctx context.Context, adapter integration.PartnerAdapter, creds integration.Credentials, platformOrderID, reason string) error {
	return c.Execute(ctx, adapter, creds, integration.ActionReject, platformOrderID, ordering.StatusCancelled, reason)
}

// UpdateStatus pushes a canonical status to the partner
func (c *OutboundClient) UpdateStatus(ctx context.Context, adapter integration.PartnerAdapter, creds integration.Credentials, platformOrderID string, status ordering.OrderStatus) error {
	return c.Execute(ctx, adapter, creds, integration.ActionUpdateStatus, platformOrderID, status, "")
}

// Execute builds the partner request for action and sends it with retry.
// Exhausted or non-retryable failures are returned as *integration.OutboundSyncError.
func (c *OutboundClient) Execute(ctx context.Context, adapter integration.PartnerAdapter, creds integration.Credentials, action integration.OutboundAction, platformOrderID string, status ordering.OrderStatus, reason string) error {
	partner := adapter.Partner()
	ctx, span := telemetry.StartSpan(ctx, "outbound."+string(action),
		telemetry.WithAttribute(telemetry.SpanAttrPartner, partner.String()),
		telemetry.WithAttribute(telemetry.SpanAttrPlatformOrderID, platformOrderID),
	)
	defer span.End()

	req, err := adapter.BuildOutboundRequest(action, platformOrderID, status, reason)
	if err != nil {
		telemetry.RecordError(span, err)
		return &integration.OutboundSyncError{Partner: partner, PlatformOrderID: platformOrderID, Action: action, Err: err}
	}

	policy := c.policy
	if creds.MaxRetries > 0 {
		policy.MaxAttempts = creds.MaxRetries
	}
	userOnRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.logger.Warn("Outbound partner call failed, retrying",
			zap.String("partner", partner.String()),
			zap.String("action", string(action)),
			zap.String("platform_order_id", platformOrderID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if userOnRetry != nil {
			userOnRetry(attempt, delay, err)
		}
	}

	start := time.Now()
	attempts, err := WithRetry(ctx, func(ctx context.Context, _ int) error {
		_, err := c.send(ctx, partner, creds, req)
		return err
	}, policy)
	elapsed := time.Since(start)

	if c.observer != nil {
		c.observer(partner, action, attempts, elapsed, err)
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrAttempts, attempts)

	if err != nil {
		telemetry.RecordError(span, err)
		return &integration.OutboundSyncError{
			Partner:         partner,
			PlatformOrderID: platformOrderID,
			Action:          action,
			Attempts:        attempts,
			Err:             err,
		}
	}

	telemetry.SetOK(span)
	c.logger.Info("Outbound partner call succeeded",
		zap.String("partner", partner.String()),
		zap.String("action", string(action)),
		zap.String("platform_order_id", platformOrderID),
		zap.Int("attempts", attempts),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

// Check runs the adapter's health request once and reports whether the
// partner considers the credentials valid
func (c *OutboundClient) Check(ctx context.Context, adapter integration.PartnerAdapter, creds integration.Credentials) (bool, error) {
	req, healthy := adapter.HealthCheck()
	body, err := c.send(ctx, adapter.Partner(), creds, req)
	if err != nil {
		return false, err
	}
	return healthy(body), nil
}

// send performs one attempt under its own timeout
func (c *OutboundClient) send(ctx context.Context, partner integration.PartnerCode, creds integration.Credentials, req *integration.OutboundRequest) ([]byte, error) {
	if err := c.limiter(partner).Wait(ctx); err != nil {
		return nil, err
	}

	timeout := creds.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("delivery: failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	url := strings.TrimRight(creds.BaseURL, "/") + req.Path
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, fmt.Errorf("delivery: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	if creds.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+creds.APIKey)
	}
	if creds.APISecret != "" {
		httpReq.Header.Set("X-API-Secret", creds.APISecret)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("delivery: %s request failed: %w", partner, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("delivery: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(respBody)
		if len(snippet) > maxErrorBodySize {
			snippet = snippet[:maxErrorBodySize]
		}
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: snippet}
	}
	return respBody, nil
}

func (c *OutboundClient) limiter(partner integration.PartnerCode) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[partner]
	if !ok {
		l = rate.NewLimiter(c.rateLimit, c.burst)
		c.limiters[partner] = l
	}
	return l
}
