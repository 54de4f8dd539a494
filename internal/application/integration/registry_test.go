package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/uniorder/backend/internal/domain/integration"
	"github.com/uniorder/backend/internal/infrastructure/cache"
	"github.com/uniorder/backend/internal/infrastructure/delivery"
	"github.com/uniorder/backend/internal/infrastructure/metrics"
	"github.com/uniorder/backend/internal/infrastructure/persistence"
	"github.com/uniorder/backend/internal/infrastructure/persistence/models"
	"github.com/uniorder/backend/internal/infrastructure/secrets"
)

const testMasterKey = "registry-test-master-key-0123456789"

type fakeChecker struct {
	mu        sync.Mutex
	connected bool
	err       error
	seen      []integration.Credentials
}

func (f *fakeChecker) Check(_ context.Context, _ integration.PartnerAdapter, creds integration.Credentials) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, creds)
	return f.connected, f.err
}

func setupRegistryRepo(t *testing.T) integration.IntegrationRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return persistence.NewGormIntegrationRepository(db)
}

func newTestRegistry(t *testing.T, repo integration.IntegrationRepository, checker ConnectionChecker, opts ...RegistryOption) *Registry {
	t.Helper()
	sealer, err := secrets.NewAEADSealer(testMasterKey)
	require.NoError(t, err)
	r := NewRegistry(repo, delivery.NewAdapters(), sealer, checker, opts...)
	t.Cleanup(r.Close)
	return r
}

func lookupCount(t *testing.T, m *metrics.Metrics, result string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "uniorder_registry_cache_lookups_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "result" && lp.GetValue() == result {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRegistry_Configure(t *testing.T) {
	ctx := context.Background()

	t.Run("first configure requires an api key", func(t *testing.T) {
		r := newTestRegistry(t, setupRegistryRepo(t), &fakeChecker{})

		_, err := r.Configure(ctx, integration.PartnerJahez, ConfigureInput{WebhookSecret: "whsec-jahez-1"})

		var cfgErr *integration.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "api_key", cfgErr.Field)
		assert.ErrorIs(t, err, integration.ErrInvalidConfiguration)
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		r := newTestRegistry(t, setupRegistryRepo(t), &fakeChecker{})

		_, err := r.Configure(ctx, integration.PartnerKeeta, ConfigureInput{APIKey: "k", BaseURL: "not a url"})

		var cfgErr *integration.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "base_url", cfgErr.Field)
	})

	t.Run("unknown partner", func(t *testing.T) {
		r := newTestRegistry(t, setupRegistryRepo(t), &fakeChecker{})

		_, err := r.Configure(ctx, integration.PartnerCode("talabat"), ConfigureInput{APIKey: "k"})
		assert.ErrorIs(t, err, integration.ErrUnknownPartner)
	})

	t.Run("seals secrets and activates new records", func(t *testing.T) {
		repo := setupRegistryRepo(t)
		r := newTestRegistry(t, repo, &fakeChecker{})

		record, err := r.Configure(ctx, integration.PartnerJahez, ConfigureInput{
			APIKey:         "jz-key",
			APISecret:      "jz-secret",
			WebhookSecret:  "whsec-jahez-1",
			TimeoutSeconds: 10,
		})
		require.NoError(t, err)
		assert.True(t, record.IsActive)
		assert.Equal(t, 10*time.Second, record.Timeout)
		assert.NotContains(t, record.CredentialsRef, "jz-key")
		assert.NotContains(t, record.WebhookSecretRef, "whsec-jahez-1")

		stored, err := repo.FindByPartner(ctx, integration.PartnerJahez)
		require.NoError(t, err)
		assert.Equal(t, record.CredentialsRef, stored.CredentialsRef)
	})

	t.Run("partial update keeps stored secrets", func(t *testing.T) {
		r := newTestRegistry(t, setupRegistryRepo(t), &fakeChecker{})

		_, err := r.Configure(ctx, integration.PartnerKeeta, ConfigureInput{APIKey: "kt-key", APISecret: "kt-secret"})
		require.NoError(t, err)
		_, err = r.Configure(ctx, integration.PartnerKeeta, ConfigureInput{APISecret: "kt-secret-2"})
		require.NoError(t, err)

		resolved, err := r.Resolve(ctx, integration.PartnerKeeta)
		require.NoError(t, err)
		assert.Equal(t, "kt-key", resolved.Credentials.APIKey)
		assert.Equal(t, "kt-secret-2", resolved.Credentials.APISecret)
	})
}

func TestRegistry_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("decrypts credentials and falls back to the default base url", func(t *testing.T) {
		r := newTestRegistry(t, setupRegistryRepo(t), &fakeChecker{})
		_, err := r.Configure(ctx, integration.PartnerHungerStation, ConfigureInput{
			APIKey:        "hs-key",
			WebhookSecret: "whsec-hs-123",
		})
		require.NoError(t, err)

		resolved, err := r.Resolve(ctx, integration.PartnerHungerStation)
		require.NoError(t, err)
		assert.Equal(t, integration.PartnerHungerStation, resolved.Adapter.Partner())
		assert.Equal(t, "hs-key", resolved.Credentials.APIKey)
		assert.Equal(t, "whsec-hs-123", resolved.Credentials.WebhookSecret)
		assert.Equal(t, delivery.DefaultBaseURL(integration.PartnerHungerStation), resolved.Credentials.BaseURL)
		assert.Equal(t, integration.DefaultTimeout, resolved.Credentials.Timeout)
		assert.Equal(t, integration.DefaultMaxRetries, resolved.Credentials.MaxRetries)
	})

	t.Run("configured base url override", func(t *testing.T) {
		r := newTestRegistry(t, setupRegistryRepo(t), &fakeChecker{}, WithBaseURLs(func(p integration.PartnerCode) string {
			if p == integration.PartnerJahez {
				return "https://sandbox.jahez.test"
			}
			return ""
		}))
		_, err := r.Configure(ctx, integration.PartnerJahez, ConfigureInput{APIKey: "k"})
		require.NoError(t, err)

		resolved, err := r.Resolve(ctx, integration.PartnerJahez)
		require.NoError(t, err)
		assert.Equal(t, "https://sandbox.jahez.test", resolved.Credentials.BaseURL)
	})

	t.Run("not configured", func(t *testing.T) {
		r := newTestRegistry(t, setupRegistryRepo(t), &fakeChecker{})

		_, err := r.Resolve(ctx, integration.PartnerKeeta)
		assert.ErrorIs(t, err, integration.ErrPartnerNotConfigured)
	})

	t.Run("inactive", func(t *testing.T) {
		r := newTestRegistry(t, setupRegistryRepo(t), &fakeChecker{})
		inactive := false
		_, err := r.Configure(ctx, integration.PartnerKeeta, ConfigureInput{APIKey: "k", IsActive: &inactive})
		require.NoError(t, err)

		_, err = r.Resolve(ctx, integration.PartnerKeeta)
		assert.ErrorIs(t, err, integration.ErrPartnerInactive)
	})

	t.Run("serves from cache until invalidated", func(t *testing.T) {
		repo := setupRegistryRepo(t)
		m := metrics.New()
		r := newTestRegistry(t, repo, &fakeChecker{}, WithMetrics(m))
		_, err := r.Configure(ctx, integration.PartnerJahez, ConfigureInput{APIKey: "k1"})
		require.NoError(t, err)

		first, err := r.Resolve(ctx, integration.PartnerJahez)
		require.NoError(t, err)
		second, err := r.Resolve(ctx, integration.PartnerJahez)
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Equal(t, 1.0, lookupCount(t, m, "hit"))
		assert.Equal(t, 1.0, lookupCount(t, m, "miss"))

		_, err = r.Toggle(ctx, integration.PartnerJahez, false)
		require.NoError(t, err)
		_, err = r.Resolve(ctx, integration.PartnerJahez)
		assert.ErrorIs(t, err, integration.ErrPartnerInactive)
	})
}

func TestRegistry_CrossInstanceInvalidation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := setupRegistryRepo(t)
	inv := cache.NewLocalInvalidator()
	writer := newTestRegistry(t, repo, &fakeChecker{}, WithInvalidator(inv))
	reader := newTestRegistry(t, repo, &fakeChecker{}, WithInvalidator(inv))

	_, err := writer.Configure(ctx, integration.PartnerKeeta, ConfigureInput{APIKey: "k"})
	require.NoError(t, err)
	_, err = reader.Resolve(ctx, integration.PartnerKeeta)
	require.NoError(t, err)

	go func() { _ = reader.ListenForInvalidations(ctx) }()

	require.Eventually(t, func() bool {
		if _, err := writer.Toggle(ctx, integration.PartnerKeeta, false); err != nil {
			return false
		}
		_, err := reader.Resolve(ctx, integration.PartnerKeeta)
		return errors.Is(err, integration.ErrPartnerInactive)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRegistry_TestConnection(t *testing.T) {
	ctx := context.Background()

	t.Run("success marks connected", func(t *testing.T) {
		repo := setupRegistryRepo(t)
		checker := &fakeChecker{connected: true}
		r := newTestRegistry(t, repo, checker)
		_, err := r.Configure(ctx, integration.PartnerJahez, ConfigureInput{APIKey: "jz"})
		require.NoError(t, err)

		result := r.TestConnection(ctx, integration.PartnerJahez)
		assert.True(t, result.Connected)
		assert.Empty(t, result.Error)
		require.Len(t, checker.seen, 1)
		assert.Equal(t, "jz", checker.seen[0].APIKey)

		status, err := r.GetStatus(ctx, integration.PartnerJahez)
		require.NoError(t, err)
		assert.True(t, status.Connected)
		assert.Equal(t, integration.SyncStatusConnected, status.SyncStatus)
		assert.NotNil(t, status.LastSyncAt)
	})

	t.Run("failure marks error and never returns one", func(t *testing.T) {
		repo := setupRegistryRepo(t)
		r := newTestRegistry(t, repo, &fakeChecker{err: errors.New("dial tcp: connection refused")})
		_, err := r.Configure(ctx, integration.PartnerKeeta, ConfigureInput{APIKey: "kt"})
		require.NoError(t, err)

		result := r.TestConnection(ctx, integration.PartnerKeeta)
		assert.False(t, result.Connected)
		assert.Contains(t, result.Error, "connection refused")

		stored, err := repo.FindByPartner(ctx, integration.PartnerKeeta)
		require.NoError(t, err)
		assert.Equal(t, integration.SyncStatusError, stored.SyncStatus)
		assert.Contains(t, stored.LastError, "connection refused")
	})

	t.Run("rejected credentials", func(t *testing.T) {
		r := newTestRegistry(t, setupRegistryRepo(t), &fakeChecker{connected: false})
		_, err := r.Configure(ctx, integration.PartnerHungerStation, ConfigureInput{APIKey: "hs"})
		require.NoError(t, err)

		result := r.TestConnection(ctx, integration.PartnerHungerStation)
		assert.False(t, result.Connected)
		assert.NotEmpty(t, result.Error)
	})

	t.Run("not configured", func(t *testing.T) {
		checker := &fakeChecker{connected: true}
		r := newTestRegistry(t, setupRegistryRepo(t), checker)

		result := r.TestConnection(ctx, integration.PartnerKeeta)
		assert.False(t, result.Connected)
		assert.NotEmpty(t, result.Error)
		assert.Empty(t, checker.seen)
	})

	t.Run("test all covers active partners only", func(t *testing.T) {
		checker := &fakeChecker{connected: true}
		r := newTestRegistry(t, setupRegistryRepo(t), checker)
		inactive := false
		_, err := r.Configure(ctx, integration.PartnerJahez, ConfigureInput{APIKey: "a"})
		require.NoError(t, err)
		_, err = r.Configure(ctx, integration.PartnerKeeta, ConfigureInput{APIKey: "b"})
		require.NoError(t, err)
		_, err = r.Configure(ctx, integration.PartnerHungerStation, ConfigureInput{APIKey: "c", IsActive: &inactive})
		require.NoError(t, err)

		results := r.TestAll(ctx)
		require.Len(t, results, 2)
		for _, res := range results {
			assert.True(t, res.Connected)
			assert.NotEqual(t, integration.PartnerHungerStation, res.Partner)
		}
	})
}

func TestRegistry_StatusAndStats(t *testing.T) {
	ctx := context.Background()
	repo := setupRegistryRepo(t)
	r := newTestRegistry(t, repo, &fakeChecker{})

	status, err := r.GetStatus(ctx, integration.PartnerKeeta)
	require.NoError(t, err)
	assert.False(t, status.Configured)
	assert.Equal(t, "Integration not configured", status.Error)
	assert.Equal(t, "/webhooks/keeta", status.WebhookURL)

	_, err = r.Configure(ctx, integration.PartnerJahez, ConfigureInput{APIKey: "a", WebhookSecret: "whsec-jahez-1"})
	require.NoError(t, err)
	r.RecordSyncFailure(ctx, integration.PartnerJahez, errors.New("503 from partner"))

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, len(integration.AllPartners()))
	configured := 0
	for _, s := range list {
		if s.Configured {
			configured++
			assert.Equal(t, integration.PartnerJahez, s.Partner)
			assert.True(t, s.HasWebhookSecret)
			assert.Equal(t, "503 from partner", s.LastError)
		}
	}
	assert.Equal(t, 1, configured)

	stats, err := r.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 1, stats.Error)
	assert.Equal(t, integration.SyncStatusError, stats.ByPartner[integration.PartnerJahez])

	r.RecordSyncSuccess(ctx, integration.PartnerJahez)
	stats, err = r.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Connected)

	require.NoError(t, r.Delete(ctx, integration.PartnerJahez))
	assert.ErrorIs(t, r.Delete(ctx, integration.PartnerJahez), integration.ErrPartnerNotConfigured)
}

func TestRegistry_ToggleUnconfigured(t *testing.T) {
	r := newTestRegistry(t, setupRegistryRepo(t), &fakeChecker{})
	_, err := r.Toggle(context.Background(), integration.PartnerJahez, true)
	assert.ErrorIs(t, err, integration.ErrPartnerNotConfigured)
}
