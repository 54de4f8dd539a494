package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appintegration "github.com/uniorder/backend/internal/application/integration"
	appordering "github.com/uniorder/backend/internal/application/ordering"
	"github.com/uniorder/backend/internal/domain/integration"
	"github.com/uniorder/backend/internal/domain/ordering"
	"github.com/uniorder/backend/internal/domain/shared"
	"github.com/uniorder/backend/internal/infrastructure/auth"
	"github.com/uniorder/backend/internal/infrastructure/cache"
	"github.com/uniorder/backend/internal/infrastructure/config"
	"github.com/uniorder/backend/internal/infrastructure/delivery"
	"github.com/uniorder/backend/internal/infrastructure/event"
	"github.com/uniorder/backend/internal/infrastructure/logger"
	"github.com/uniorder/backend/internal/infrastructure/metrics"
	"github.com/uniorder/backend/internal/infrastructure/persistence"
	"github.com/uniorder/backend/internal/infrastructure/scheduler"
	"github.com/uniorder/backend/internal/infrastructure/secrets"
	"github.com/uniorder/backend/internal/infrastructure/settings"
	"github.com/uniorder/backend/internal/infrastructure/storage"
	"github.com/uniorder/backend/internal/infrastructure/telemetry"
	"github.com/uniorder/backend/internal/interfaces/http/handler"
	"github.com/uniorder/backend/internal/interfaces/http/middleware"

	_ "github.com/uniorder/backend/docs"
)

//go:generate swag init -g cmd/server/main.go -d ../../ -o ../../docs --parseInternal

//	@title			UniOrder API
//	@version		1.0
//	@description	Delivery partner order aggregation: partner webhooks in, one canonical order lifecycle, status sync back to Jahez, HungerStation and Keeta.

//	@contact.name	UniOrder Maintainers

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token minted by cmd/token. Format: "Bearer {token}"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		TimeFormat:  logger.DefaultTimeFormat,
		Service:     cfg.App.Name,
		Environment: cfg.App.Env,
		Sampling:    cfg.IsProduction(),
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// OpenTelemetry: traces, OTLP metrics, log export and profiling are all optional
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer shutdown(log, "tracer provider", tracerProvider.Shutdown)

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer shutdown(log, "meter provider", meterProvider.Shutdown)

	if cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled {
		loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
			Enabled:           true,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			ServiceName:       cfg.Telemetry.ServiceName,
			Insecure:          cfg.Telemetry.Insecure,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize logger provider", zap.Error(err))
		}
		defer shutdown(log, "logger provider", loggerProvider.Shutdown)

		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: loggerProvider,
			Level:          log.Level(),
		})
		log = log.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, otelCore)
		}))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingServer,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Warn("Continuous profiling unavailable", zap.Error(err))
	} else {
		defer func() { _ = profiler.Stop() }()
	}

	log.Info("Starting UniOrder sync engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("allow_unsigned_webhooks", cfg.Webhook.AllowUnsigned),
	)

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        dbSystem(cfg.Database.Driver),
		}, log)
		if err := plugin.Register(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to auto-migrate schema", zap.Error(err))
		}
		log.Info("Schema auto-migrated")
	}
	log.Info("Database connected successfully", zap.String("driver", dbSystem(cfg.Database.Driver)))

	// Shared state: Redis when configured, in-process otherwise
	stores, err := cache.NewStores(ctx, cfg.Redis, cfg.IsProduction(), log)
	if err != nil {
		log.Fatal("Failed to initialize shared stores", zap.Error(err))
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Error closing shared stores", zap.Error(err))
		}
	}()

	sealer, err := secrets.New(cfg.Security.EncryptionKey)
	if err != nil {
		log.Fatal("Failed to initialize credential sealer", zap.Error(err))
	}

	engineMetrics := metrics.New()

	// Repositories
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	integrationRepo := persistence.NewGormIntegrationRepository(db.DB)

	// Partner adapters and the outbound client
	adapters := delivery.NewAdapters()
	retryPolicy := delivery.DefaultRetryPolicy()
	retryPolicy.MaxAttempts = cfg.Outbound.MaxAttempts
	retryPolicy.BaseDelay = cfg.Outbound.BaseBackoff
	outbound := delivery.NewOutboundClient(
		delivery.WithHTTPClient(&http.Client{Timeout: cfg.Outbound.Timeout}),
		delivery.WithRetryPolicy(retryPolicy),
		delivery.WithRateLimit(cfg.Outbound.RateLimitPerSecond, cfg.Outbound.RateLimitBurst),
		delivery.WithLogger(log.Named("outbound")),
		delivery.WithCallObserver(func(partner integration.PartnerCode, action integration.OutboundAction, _ int, elapsed time.Duration, err error) {
			result := metrics.OutboundSuccess
			if err != nil {
				result = metrics.OutboundFailure
			}
			engineMetrics.OutboundCall(string(partner), string(action), result, elapsed)
		}),
	)

	// Integration registry
	registry := appintegration.NewRegistry(integrationRepo, adapters, sealer, outbound,
		appintegration.WithInvalidator(stores.Invalidator),
		appintegration.WithMetrics(engineMetrics),
		appintegration.WithCacheTTL(cfg.Partners.RegistryCacheTTL),
		appintegration.WithBaseURLs(func(p integration.PartnerCode) string {
			return cfg.Partners.BaseURL(string(p))
		}),
		appintegration.WithLogger(log.Named("registry")),
	)
	defer registry.Close()
	go func() {
		if err := registry.ListenForInvalidations(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Registry invalidation listener stopped", zap.Error(err))
		}
	}()

	// Event bus: SSE hub for dashboards plus prometheus counters
	eventBus := event.NewInMemoryEventBus(log)
	orderEvents := []string{ordering.EventTypeNewOrder, ordering.EventTypeOrderUpdated}
	hub := event.NewHub(log.Named("stream"), orderEvents)
	eventBus.Subscribe(hub)
	eventBus.Subscribe(metrics.NewEventCounter(engineMetrics, orderEvents...))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Restaurant switches
	restaurant := settings.NewMemoryStore(ordering.RestaurantSettings{
		IsOpen:     cfg.Restaurant.IsOpen,
		AutoAccept: cfg.Restaurant.AutoAccept,
	}, log)
	engineMetrics.RestaurantOpen(cfg.Restaurant.IsOpen)

	orchestratorOpts := []appordering.Option{
		appordering.WithEventPublisher(eventBus),
		appordering.WithDeliveryStore(stores.Deliveries, shared.IdempotencyConfig{
			TTL:     cfg.Webhook.DeliveryTTL,
			Enabled: true,
		}),
		appordering.WithAllowUnsigned(cfg.Webhook.AllowUnsigned),
		appordering.WithMetrics(engineMetrics),
		appordering.WithLogger(log.Named("orchestrator")),
	}
	if cfg.Archive.Enabled {
		archiver, err := storage.NewS3Archiver(ctx, &cfg.Archive, storage.WithLogger(log.Named("archive")))
		if err != nil {
			log.Fatal("Failed to initialize payload archive", zap.Error(err))
		}
		orchestratorOpts = append(orchestratorOpts, appordering.WithArchiver(archiver))
		log.Info("Raw webhook archival enabled", zap.String("bucket", cfg.Archive.Bucket))
	}
	orchestrator := appordering.NewOrchestrator(orderRepo, restaurant, registry, outbound, orchestratorOpts...)
	queries := appordering.NewQueryService(orderRepo)

	// Periodic partner health check
	var partnerHealth handler.PartnerHealthSource
	if cfg.Health.Enabled {
		checker, err := scheduler.NewHealthChecker(scheduler.HealthCheckerConfig{
			Interval:   cfg.Health.Interval,
			Timeout:    cfg.Health.Timeout,
			RunOnStart: true,
		}, registry, engineMetrics, log.Named("health"))
		if err != nil {
			log.Fatal("Failed to create partner health checker", zap.Error(err))
		}
		if err := checker.Start(ctx); err != nil {
			log.Fatal("Failed to start partner health checker", zap.Error(err))
		}
		defer func() {
			if err := checker.Stop(context.Background()); err != nil {
				log.Error("Error stopping partner health checker", zap.Error(err))
			}
		}()
		partnerHealth = checker
		log.Info("Partner health checker started", zap.Duration("interval", cfg.Health.Interval))
	}

	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer limiter.Stop()
	}

	setupRoutes(engine, routeDeps{
		cfg:     cfg,
		log:     log,
		limiter: limiter,
		meter:   meterProvider,
		jwt:     auth.NewJWTService(cfg.JWT),
		health:  handler.NewHealthHandler(db, partnerHealth),
		metrics: engineMetrics,
		webhook: handler.NewWebhookHandler(orchestrator, cfg.Webhook.MaxPayloadBytes),
		orders:  handler.NewOrderHandler(queries, orchestrator),
		stream: handler.NewOrderStreamHandler(hub,
			handler.WithStreamLogger(log.Named("stream")),
		),
		integrations: handler.NewIntegrationHandler(registry),
		restaurant:   handler.NewRestaurantHandler(restaurant, engineMetrics),
		system:       handler.NewSystemHandler(cfg.App.Name, cfg.App.Env),
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
		// request contexts end with ctx so open SSE streams unblock on shutdown
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

func shutdown(log *zap.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Error("Error shutting down "+name, zap.Error(err))
	}
}

func dbSystem(driver string) string {
	if driver == persistence.DriverSQLite {
		return persistence.DriverSQLite
	}
	return persistence.DriverPostgres
}
