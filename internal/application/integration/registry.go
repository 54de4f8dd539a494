package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/uniorder/backend/internal/domain/integration"
	"github.com/uniorder/backend/internal/infrastructure/cache"
	"github.com/uniorder/backend/internal/infrastructure/delivery"
	"github.com/uniorder/backend/internal/infrastructure/logger"
	"github.com/uniorder/backend/internal/infrastructure/metrics"
	"github.com/uniorder/backend/internal/infrastructure/telemetry"
)

const defaultCacheTTL = 5 * time.Minute

// CredentialSealer seals partner secrets at rest
type CredentialSealer interface {
	Seal(plaintext []byte, associatedData string) (string, error)
	Open(sealed string, associatedData string) ([]byte, error)
}

// ConnectionChecker runs a partner's health request
type ConnectionChecker interface {
	Check(ctx context.Context, adapter integration.PartnerAdapter, creds integration.Credentials) (bool, error)
}

// sealedCredentials is the plaintext form of IntegrationRecord.CredentialsRef
type sealedCredentials struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret,omitempty"`
}

// Registry owns partner integration configuration and resolves a partner to
// its adapter and decrypted credentials
type Registry struct {
	repo        integration.IntegrationRepository
	adapters    integration.AdapterRegistry
	sealer      CredentialSealer
	checker     ConnectionChecker
	validate    *validator.Validate
	cache       *cache.TTLCache[*integration.ResolvedPartner]
	cacheTTL    time.Duration
	invalidator cache.Invalidator
	metrics     *metrics.Metrics
	baseURLs    func(integration.PartnerCode) string
	logger      *zap.Logger
	instanceID  string
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithInvalidator broadcasts cache invalidations to other instances
func WithInvalidator(inv cache.Invalidator) RegistryOption {
	return func(r *Registry) { r.invalidator = inv }
}

// WithMetrics records cache lookups and partner health
func WithMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// WithBaseURLs overrides partner base URLs for records that do not set one.
// An empty result falls back to the partner's production URL.
func WithBaseURLs(fn func(integration.PartnerCode) string) RegistryOption {
	return func(r *Registry) { r.baseURLs = fn }
}

// WithCacheTTL bounds how long a resolved partner is served from memory
func WithCacheTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		if ttl > 0 {
			r.cacheTTL = ttl
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates a Registry
func NewRegistry(repo integration.IntegrationRepository, adapters integration.AdapterRegistry, sealer CredentialSealer, checker ConnectionChecker, opts ...RegistryOption) *Registry {
	r := &Registry{
		repo:       repo,
		adapters:   adapters,
		sealer:     sealer,
		checker:    checker,
		validate:   newValidator(),
		cacheTTL:   defaultCacheTTL,
		logger:     zap.NewNop(),
		instanceID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cache = cache.NewTTLCache[*integration.ResolvedPartner](r.cacheTTL)
	return r
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Close stops the resolve cache's cleanup loop
func (r *Registry) Close() {
	r.cache.Close()
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Configure creates or updates a partner integration. The API key is
// required the first time a partner is configured.
func (r *Registry) Configure(ctx context.Context, partner integration.PartnerCode, in ConfigureInput) (*integration.IntegrationRecord, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "registry", "Configure",
		telemetry.WithAttribute(telemetry.SpanAttrPartner, partner.String()))
	defer span.End()

	if err := r.knownPartner(partner); err != nil {
		return nil, err
	}
	if err := r.validateInput(in); err != nil {
		return nil, err
	}

	record, err := r.repo.FindByPartner(ctx, partner)
	isNew := errors.Is(err, integration.ErrPartnerNotConfigured)
	switch {
	case isNew:
		if strings.TrimSpace(in.APIKey) == "" {
			return nil, &integration.ConfigurationError{Field: "api_key", Reason: "is required"}
		}
		record, err = integration.NewIntegrationRecord(partner)
		if err != nil {
			return nil, err
		}
		record.IsActive = true
	case err != nil:
		telemetry.RecordError(span, err)
		return nil, err
	}

	if in.APIKey != "" || in.APISecret != "" {
		creds := sealedCredentials{}
		if !isNew {
			if existing, err := r.openCredentials(record); err == nil {
				creds = existing
			}
		}
		if in.APIKey != "" {
			creds.APIKey = in.APIKey
		}
		if in.APISecret != "" {
			creds.APISecret = in.APISecret
		}
		plain, err := json.Marshal(creds)
		if err != nil {
			return nil, err
		}
		if record.CredentialsRef, err = r.sealer.Seal(plain, partner.String()); err != nil {
			return nil, fmt.Errorf("seal credentials: %w", err)
		}
	}
	if in.WebhookSecret != "" {
		if record.WebhookSecretRef, err = r.sealer.Seal([]byte(in.WebhookSecret), webhookAAD(partner)); err != nil {
			return nil, fmt.Errorf("seal webhook secret: %w", err)
		}
	}
	if in.BaseURL != "" {
		record.BaseURL = strings.TrimRight(in.BaseURL, "/")
	}
	if in.TimeoutSeconds > 0 {
		record.Timeout = time.Duration(in.TimeoutSeconds) * time.Second
	}
	if in.MaxRetries > 0 {
		record.MaxRetries = in.MaxRetries
	}
	if in.WebhookEvents != nil {
		record.WebhookEvents = in.WebhookEvents
	}
	if in.IsActive != nil {
		record.SetActive(*in.IsActive)
	}
	record.UpdatedAt = time.Now()

	if err := r.repo.Save(ctx, record); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	r.invalidate(ctx, partner)

	r.log(ctx, partner).Info("Partner integration configured",
		zap.Bool("created", isNew),
		zap.Bool("active", record.IsActive),
		zap.Bool("webhook_secret", record.HasWebhookSecret()),
	)
	return record, nil
}

// Toggle activates or deactivates a partner. Deactivation forces the
// integration to disconnected.
func (r *Registry) Toggle(ctx context.Context, partner integration.PartnerCode, active bool) (*integration.IntegrationRecord, error) {
	if err := r.knownPartner(partner); err != nil {
		return nil, err
	}
	record, err := r.repo.FindByPartner(ctx, partner)
	if err != nil {
		return nil, err
	}
	record.SetActive(active)
	if err := r.repo.Save(ctx, record); err != nil {
		return nil, err
	}
	r.invalidate(ctx, partner)
	if !active {
		r.metrics.IntegrationHealth(partner.String(), false)
	}

	r.log(ctx, partner).Info("Partner integration toggled",
		zap.Bool("active", active),
	)
	return record, nil
}

// Delete removes a partner's configuration
func (r *Registry) Delete(ctx context.Context, partner integration.PartnerCode) error {
	if err := r.knownPartner(partner); err != nil {
		return err
	}
	if err := r.repo.Delete(ctx, partner); err != nil {
		return err
	}
	r.invalidate(ctx, partner)
	r.metrics.IntegrationHealth(partner.String(), false)
	r.log(ctx, partner).Info("Partner integration deleted")
	return nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// GetStatus returns the operator view of one partner. A partner without a
// record is reported as not configured rather than as an error.
func (r *Registry) GetStatus(ctx context.Context, partner integration.PartnerCode) (*StatusResponse, error) {
	if err := r.knownPartner(partner); err != nil {
		return nil, err
	}
	record, err := r.repo.FindByPartner(ctx, partner)
	if errors.Is(err, integration.ErrPartnerNotConfigured) {
		resp := notConfiguredResponse(partner)
		return &resp, nil
	}
	if err != nil {
		return nil, err
	}
	resp := ToStatusResponse(record)
	return &resp, nil
}

// List returns every supported partner, configured or not
func (r *Registry) List(ctx context.Context) ([]StatusResponse, error) {
	records, err := r.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	byPartner := make(map[integration.PartnerCode]*integration.IntegrationRecord, len(records))
	for i := range records {
		byPartner[records[i].PartnerID] = &records[i]
	}

	out := make([]StatusResponse, 0, len(integration.AllPartners()))
	for _, p := range integration.AllPartners() {
		if rec, ok := byPartner[p]; ok {
			out = append(out, ToStatusResponse(rec))
			continue
		}
		out = append(out, notConfiguredResponse(p))
	}
	return out, nil
}

// Stats summarizes integration health across configured partners
func (r *Registry) Stats(ctx context.Context) (*StatsResponse, error) {
	records, err := r.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	byPartner := make(map[integration.PartnerCode]integration.SyncStatus, len(records))
	for _, rec := range records {
		byPartner[rec.PartnerID] = rec.SyncStatus
	}
	return &StatsResponse{Stats: integration.ComputeStats(records), ByPartner: byPartner}, nil
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// Resolve returns the adapter and decrypted credentials for an active
// partner. Results are cached until the TTL expires or the partner's
// configuration changes.
func (r *Registry) Resolve(ctx context.Context, partner integration.PartnerCode) (*integration.ResolvedPartner, error) {
	if resolved, ok := r.cache.Get(partner.String()); ok {
		r.metrics.RegistryLookup(true)
		return resolved, nil
	}
	r.metrics.RegistryLookup(false)

	adapter, ok := r.adapters.Adapter(partner)
	if !ok {
		return nil, integration.ErrUnknownPartner
	}
	record, err := r.repo.FindByPartner(ctx, partner)
	if err != nil {
		return nil, err
	}
	if !record.IsActive {
		return nil, integration.ErrPartnerInactive
	}

	resolved, err := r.resolveRecord(record, adapter)
	if err != nil {
		return nil, err
	}
	r.cache.Set(partner.String(), resolved)
	return resolved, nil
}

func (r *Registry) resolveRecord(record *integration.IntegrationRecord, adapter integration.PartnerAdapter) (*integration.ResolvedPartner, error) {
	creds, err := r.openCredentials(record)
	if err != nil {
		return nil, fmt.Errorf("open %s credentials: %w", record.PartnerID, err)
	}

	var webhookSecret string
	if record.HasWebhookSecret() {
		plain, err := r.sealer.Open(record.WebhookSecretRef, webhookAAD(record.PartnerID))
		if err != nil {
			return nil, fmt.Errorf("open %s webhook secret: %w", record.PartnerID, err)
		}
		webhookSecret = string(plain)
	}

	timeout := record.Timeout
	if timeout <= 0 {
		timeout = integration.DefaultTimeout
	}
	maxRetries := record.MaxRetries
	if maxRetries <= 0 {
		maxRetries = integration.DefaultMaxRetries
	}

	return &integration.ResolvedPartner{
		Record:  record,
		Adapter: adapter,
		Credentials: integration.Credentials{
			APIKey:        creds.APIKey,
			APISecret:     creds.APISecret,
			WebhookSecret: webhookSecret,
			BaseURL:       r.baseURLFor(record),
			Timeout:       timeout,
			MaxRetries:    maxRetries,
		},
	}, nil
}

func (r *Registry) openCredentials(record *integration.IntegrationRecord) (sealedCredentials, error) {
	var creds sealedCredentials
	if record.CredentialsRef == "" {
		return creds, nil
	}
	plain, err := r.sealer.Open(record.CredentialsRef, record.PartnerID.String())
	if err != nil {
		return creds, err
	}
	if err := json.Unmarshal(plain, &creds); err != nil {
		return creds, err
	}
	return creds, nil
}

func (r *Registry) baseURLFor(record *integration.IntegrationRecord) string {
	if record.BaseURL != "" {
		return record.BaseURL
	}
	if r.baseURLs != nil {
		if u := r.baseURLs(record.PartnerID); u != "" {
			return u
		}
	}
	return delivery.DefaultBaseURL(record.PartnerID)
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

// TestConnection calls the partner's health endpoint and records the result
// on the integration. It never fails; problems are reported in the result.
func (r *Registry) TestConnection(ctx context.Context, partner integration.PartnerCode) integration.ConnectionResult {
	ctx, span := telemetry.StartServiceSpan(ctx, "registry", "TestConnection",
		telemetry.WithAttribute(telemetry.SpanAttrPartner, partner.String()))
	defer span.End()

	result := integration.ConnectionResult{Partner: partner, TestedAt: time.Now()}

	adapter, ok := r.adapters.Adapter(partner)
	if !ok {
		result.Error = integration.ErrUnknownPartner.Error()
		return result
	}
	record, err := r.repo.FindByPartner(ctx, partner)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	resolved, err := r.resolveRecord(record, adapter)
	if err != nil {
		result.Error = err.Error()
		r.markSync(ctx, partner, integration.SyncStatusError, result.TestedAt, result.Error)
		return result
	}

	connected, err := r.checker.Check(ctx, adapter, resolved.Credentials)
	switch {
	case err != nil:
		result.Error = err.Error()
	case !connected:
		result.Error = "partner rejected the credentials"
	default:
		result.Connected = true
	}

	if result.Connected {
		r.markSync(ctx, partner, integration.SyncStatusConnected, result.TestedAt, "")
		telemetry.SetOK(span)
	} else {
		r.markSync(ctx, partner, integration.SyncStatusError, result.TestedAt, result.Error)
		telemetry.SetAttribute(span, "error.message", result.Error)
	}

	r.log(ctx, partner).Info("Partner connection tested",
		zap.Bool("connected", result.Connected),
		zap.String("error", result.Error),
	)
	return result
}

// TestAll tests every active partner concurrently
func (r *Registry) TestAll(ctx context.Context) []integration.ConnectionResult {
	records, err := r.repo.FindAll(ctx)
	if err != nil {
		logger.L(ctx, r.logger).Error("Failed to list integrations for connection test", zap.Error(err))
		return nil
	}

	active := make([]integration.PartnerCode, 0, len(records))
	for _, rec := range records {
		if rec.IsActive {
			active = append(active, rec.PartnerID)
		}
	}

	results := make([]integration.ConnectionResult, len(active))
	var g errgroup.Group
	for i, partner := range active {
		g.Go(func() error {
			results[i] = r.TestConnection(ctx, partner)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// RecordSyncSuccess marks a partner connected after a successful outbound call
func (r *Registry) RecordSyncSuccess(ctx context.Context, partner integration.PartnerCode) {
	r.markSync(ctx, partner, integration.SyncStatusConnected, time.Now(), "")
}

// RecordSyncFailure marks a partner errored after an outbound call exhausted
// its retries
func (r *Registry) RecordSyncFailure(ctx context.Context, partner integration.PartnerCode, cause error) {
	msg := "outbound sync failed"
	if cause != nil {
		msg = cause.Error()
	}
	r.markSync(ctx, partner, integration.SyncStatusError, time.Now(), msg)
}

func (r *Registry) markSync(ctx context.Context, partner integration.PartnerCode, status integration.SyncStatus, at time.Time, lastError string) {
	r.metrics.IntegrationHealth(partner.String(), status == integration.SyncStatusConnected)
	if err := r.repo.UpdateSyncStatus(ctx, partner, status, at, lastError); err != nil {
		r.log(ctx, partner).Warn("Failed to record partner sync status",
			zap.String("sync_status", string(status)),
			zap.Error(err),
		)
	}
}

// ---------------------------------------------------------------------------
// Cache invalidation
// ---------------------------------------------------------------------------

func (r *Registry) invalidate(ctx context.Context, partner integration.PartnerCode) {
	r.cache.Delete(partner.String())
	if r.invalidator == nil {
		return
	}
	err := r.invalidator.Publish(ctx, cache.InvalidationMessage{
		Key:       partner.String(),
		Source:    r.instanceID,
		Timestamp: time.Now().UnixNano(),
	})
	if err != nil {
		r.log(ctx, partner).Warn("Failed to broadcast registry invalidation",
			zap.Error(err),
		)
	}
}

// ListenForInvalidations drops cached partners when another instance
// changes their configuration. It blocks until ctx is done.
func (r *Registry) ListenForInvalidations(ctx context.Context) error {
	if r.invalidator == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return r.invalidator.Subscribe(ctx, func(msg cache.InvalidationMessage) {
		if msg.Key == "" {
			r.cache.Clear()
			return
		}
		r.cache.Delete(msg.Key)
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (r *Registry) knownPartner(partner integration.PartnerCode) error {
	if _, ok := r.adapters.Adapter(partner); !ok {
		return integration.ErrUnknownPartner
	}
	return nil
}

func (r *Registry) validateInput(in ConfigureInput) error {
	err := r.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &integration.ConfigurationError{Field: fe.Field(), Reason: "failed " + fe.Tag() + " check"}
	}
	return &integration.ConfigurationError{Field: "input", Reason: err.Error()}
}

func webhookAAD(partner integration.PartnerCode) string {
	return partner.String() + ":webhook"
}

// log returns the registry logger scoped to the request and partner
func (r *Registry) log(ctx context.Context, partner integration.PartnerCode) *zap.Logger {
	ctx, _ = logger.WithPartner(ctx, logger.FromContext(ctx), partner.String())
	return logger.L(ctx, r.logger)
}
