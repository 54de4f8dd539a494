package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearUniorderEnv unsets every UNIORDER_ variable for the duration of the test.
func clearUniorderEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "UNIORDER_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearUniorderEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "uniorder", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "uniorder", cfg.Database.DBName)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.False(t, cfg.Redis.Enabled())

		assert.False(t, cfg.Webhook.AllowUnsigned)
		assert.Equal(t, int64(1<<20), cfg.Webhook.MaxPayloadBytes)
		assert.Equal(t, 24*time.Hour, cfg.Webhook.DeliveryTTL)

		assert.Equal(t, 30*time.Second, cfg.Outbound.Timeout)
		assert.Equal(t, 3, cfg.Outbound.MaxAttempts)
		assert.Equal(t, time.Second, cfg.Outbound.BaseBackoff)

		assert.True(t, cfg.Restaurant.IsOpen)
		assert.False(t, cfg.Restaurant.AutoAccept)
		assert.True(t, cfg.Health.Enabled)
		assert.Equal(t, 5*time.Minute, cfg.Health.Interval)
		assert.Equal(t, 5*time.Minute, cfg.Partners.RegistryCacheTTL)
		assert.False(t, cfg.Swagger.Enabled)
	})

	t.Run("loads values from environment variables with UNIORDER prefix", func(t *testing.T) {
		clearUniorderEnv(t)
		t.Setenv("UNIORDER_APP_NAME", "test-app")
		t.Setenv("UNIORDER_APP_PORT", "9000")
		t.Setenv("UNIORDER_DATABASE_HOST", "testdb.local")
		t.Setenv("UNIORDER_DATABASE_PORT", "5433")
		t.Setenv("UNIORDER_DATABASE_PASSWORD", "testpass")
		t.Setenv("UNIORDER_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("UNIORDER_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("UNIORDER_REDIS_HOST", "cache.local")
		t.Setenv("UNIORDER_WEBHOOK_ALLOW_UNSIGNED", "true")
		t.Setenv("UNIORDER_OUTBOUND_MAX_ATTEMPTS", "5")
		t.Setenv("UNIORDER_OUTBOUND_BASE_BACKOFF", "250ms")
		t.Setenv("UNIORDER_RESTAURANT_IS_OPEN", "false")
		t.Setenv("UNIORDER_RESTAURANT_AUTO_ACCEPT", "true")
		t.Setenv("UNIORDER_PARTNERS_KEETA_BASE_URL", "https://keeta.test")
		t.Setenv("UNIORDER_SWAGGER_ENABLED", "true")
		t.Setenv("UNIORDER_SWAGGER_REQUIRE_AUTH", "true")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "testpass", cfg.Database.Password)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.True(t, cfg.Redis.Enabled())
		assert.Equal(t, "cache.local:6379", cfg.Redis.Addr())
		assert.True(t, cfg.Webhook.AllowUnsigned)
		assert.Equal(t, 5, cfg.Outbound.MaxAttempts)
		assert.Equal(t, 250*time.Millisecond, cfg.Outbound.BaseBackoff)
		assert.False(t, cfg.Restaurant.IsOpen)
		assert.True(t, cfg.Restaurant.AutoAccept)
		assert.Equal(t, "https://keeta.test", cfg.Partners.BaseURL("keeta"))
		assert.Empty(t, cfg.Partners.BaseURL("jahez"))
		assert.True(t, cfg.Swagger.Enabled)
		assert.True(t, cfg.Swagger.RequireAuth)
	})

	t.Run("sqlite driver", func(t *testing.T) {
		clearUniorderEnv(t)
		t.Setenv("UNIORDER_DATABASE_DRIVER", "sqlite")
		t.Setenv("UNIORDER_DATABASE_SQLITE_PATH", ":memory:")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, ":memory:", cfg.Database.SQLitePath)
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		clearUniorderEnv(t)
		t.Setenv("UNIORDER_DATABASE_DRIVER", "mysql")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("rejects idle conns above open conns", func(t *testing.T) {
		clearUniorderEnv(t)
		t.Setenv("UNIORDER_DATABASE_MAX_OPEN_CONNS", "5")
		t.Setenv("UNIORDER_DATABASE_MAX_IDLE_CONNS", "10")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
	})

	t.Run("rejects short encryption key", func(t *testing.T) {
		clearUniorderEnv(t)
		t.Setenv("UNIORDER_SECURITY_ENCRYPTION_KEY", "too-short")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "encryption_key")
	})
}

func validProductionConfig() *Config {
	cfg := &Config{
		App:      AppConfig{Env: "production"},
		Database: DatabaseConfig{Password: "secret", SSLMode: "require"},
		JWT:      JWTConfig{Secret: strings.Repeat("j", 32)},
		Security: SecurityConfig{EncryptionKey: strings.Repeat("k", 32)},
	}
	applyDefaults(cfg)
	return cfg
}

func TestValidate_Production(t *testing.T) {
	t.Run("accepts a complete production config", func(t *testing.T) {
		cfg := validProductionConfig()
		require.NoError(t, cfg.validate())
		assert.True(t, cfg.IsProduction())
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing jwt secret", func(c *Config) { c.JWT.Secret = "" }, "jwt.secret is required"},
		{"short jwt secret", func(c *Config) { c.JWT.Secret = "short" }, "at least 32"},
		{"missing encryption key", func(c *Config) { c.Security.EncryptionKey = "" }, "security.encryption_key is required"},
		{"sqlite driver", func(c *Config) { c.Database.Driver = "sqlite" }, "sqlite"},
		{"missing db password", func(c *Config) { c.Database.Password = "" }, "database.password"},
		{"sslmode disabled", func(c *Config) { c.Database.SSLMode = "disable" }, "sslmode"},
		{"unsigned webhooks", func(c *Config) { c.Webhook.AllowUnsigned = true }, "allow_unsigned"},
		{"wildcard cors", func(c *Config) { c.HTTP.CORSAllowOrigins = []string{"*"} }, "cors_allow_origins"},
		{"open swagger", func(c *Config) { c.Swagger.Enabled = true }, "swagger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validProductionConfig()
			tt.mutate(cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ProductionSwagger(t *testing.T) {
	tests := []struct {
		name    string
		swagger SwaggerConfig
	}{
		{"disabled", SwaggerConfig{}},
		{"behind auth", SwaggerConfig{Enabled: true, RequireAuth: true}},
		{"allow listed", SwaggerConfig{Enabled: true, AllowedIPs: []string{"10.0.0.0/8"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validProductionConfig()
			cfg.Swagger = tt.swagger
			assert.NoError(t, cfg.validate())
		})
	}
}

func TestValidate_Archive(t *testing.T) {
	cfg := &Config{Archive: ArchiveConfig{Enabled: true}}
	applyDefaults(cfg)
	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive.bucket")

	cfg.Archive.Bucket = "raw-webhooks"
	assert.NoError(t, cfg.validate())
}

func TestValidate_SamplingRatio(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Telemetry.SamplingRatio = 1.5
	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sampling_ratio")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}
