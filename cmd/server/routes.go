package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/uniorder/backend/internal/infrastructure/auth"
	"github.com/uniorder/backend/internal/infrastructure/config"
	"github.com/uniorder/backend/internal/infrastructure/logger"
	"github.com/uniorder/backend/internal/infrastructure/metrics"
	"github.com/uniorder/backend/internal/infrastructure/telemetry"
	"github.com/uniorder/backend/internal/interfaces/http/handler"
	"github.com/uniorder/backend/internal/interfaces/http/middleware"
	"github.com/uniorder/backend/internal/interfaces/http/router"
)

type routeDeps struct {
	cfg     *config.Config
	log     *zap.Logger
	limiter *middleware.RateLimiter
	meter   *telemetry.MeterProvider
	jwt     *auth.JWTService
	metrics *metrics.Metrics

	health       *handler.HealthHandler
	webhook      *handler.WebhookHandler
	orders       *handler.OrderHandler
	stream       *handler.OrderStreamHandler
	integrations *handler.IntegrationHandler
	restaurant   *handler.RestaurantHandler
	system       *handler.SystemHandler
}

// setupRoutes installs the middleware chain and every route:
//
//	GET  /health, GET /metrics            health checks, open
//	POST /webhooks/:partner               partner deliveries, HMAC-authenticated
//	GET  /swagger/*any                    API docs, off unless swagger.enabled
//	     /api/v1/...                      operator API, bearer token
func setupRoutes(engine *gin.Engine, d routeDeps) {
	cfg := d.cfg

	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Request logging
	// 4. Tracing, span status and profiling labels
	// 5. HTTP metrics
	// 6. Security headers and CORS
	// 7. Rate limiting
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(d.log))
	engine.Use(logger.GinMiddleware(d.log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.ProfilingWithConfig(middleware.ProfilingConfig{
		Enabled:   cfg.Telemetry.ProfilingEnabled,
		SkipPaths: middleware.DefaultProfilingConfig().SkipPaths,
	}))
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: d.meter,
		ServiceName:   cfg.Telemetry.ServiceName,
		Enabled:       cfg.Telemetry.MetricsEnabled,
	}))
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	if d.limiter != nil {
		engine.Use(middleware.RateLimit(d.limiter))
	}

	// Health and metrics
	engine.GET("/health", d.health.Check)
	engine.GET("/metrics", gin.WrapH(d.metrics.Handler()))

	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:     cfg.Swagger.Enabled,
			RequireAuth: cfg.Swagger.RequireAuth,
			AllowedIPs:  cfg.Swagger.AllowedIPs,
		}, middleware.JWTAuthMiddleware(d.jwt)),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	// Partner webhooks enforce their own payload cap
	engine.POST("/webhooks/:partner", d.webhook.Receive)

	r := router.NewRouter(engine,
		router.WithAPIVersion("v1"),
		router.WithMiddleware(
			middleware.BodyLimit(cfg.HTTP.MaxBodySize),
			middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
				Validator:       d.jwt,
				AllowQueryToken: true,
				Logger:          d.log,
			}),
			middleware.TracingAttributeInjector(),
		),
	)

	orderRoutes := router.NewDomainGroup("orders", "/orders")
	orderRoutes.GET("", d.orders.List)
	orderRoutes.GET("/counts", d.orders.Counts)
	orderRoutes.GET("/stream", d.stream.Stream)
	orderRoutes.GET("/:id", d.orders.Get)
	orderRoutes.GET("/:id/audit", d.orders.Audit)
	orderRoutes.POST("/:id/transition", d.orders.Transition)
	orderRoutes.POST("/:id/cancel", d.orders.Cancel)
	orderRoutes.PATCH("/:id/notes", d.orders.UpdateNotes)

	integrationRoutes := router.NewDomainGroup("integrations", "/integrations")
	integrationRoutes.GET("", d.integrations.List)
	integrationRoutes.GET("/stats", d.integrations.Stats)
	integrationRoutes.POST("/test", d.integrations.TestAll)
	integrationRoutes.GET("/:partner", d.integrations.GetStatus)
	integrationRoutes.PUT("/:partner", d.integrations.Configure)
	integrationRoutes.PATCH("/:partner/toggle", d.integrations.Toggle)
	integrationRoutes.POST("/:partner/test", d.integrations.Test)
	integrationRoutes.DELETE("/:partner", d.integrations.Delete)

	restaurantRoutes := router.NewDomainGroup("restaurant", "/restaurant")
	restaurantRoutes.GET("/status", d.restaurant.GetStatus)
	restaurantRoutes.PATCH("/status", d.restaurant.SetStatus)
	restaurantRoutes.PATCH("/auto-accept", d.restaurant.SetAutoAccept)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", d.system.GetSystemInfo)
	systemRoutes.GET("/ping", d.system.Ping)

	r.Register(orderRoutes).
		Register(integrationRoutes).
		Register(restaurantRoutes).
		Register(systemRoutes)
	r.Setup()

	d.log.Info("Routes registered",
		zap.Int("orders", orderRoutes.RouteCount()),
		zap.Int("integrations", integrationRoutes.RouteCount()),
		zap.Int("restaurant", restaurantRoutes.RouteCount()),
		zap.Int("system", systemRoutes.RouteCount()),
	)
}
