package router

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/erp/wmssync/internal/infrastructure/config"
	"github.com/erp/wmssync/internal/infrastructure/logger"
	"github.com/erp/wmssync/internal/interfaces/http/handler"
	"github.com/erp/wmssync/internal/interfaces/http/middleware"
)

// EngineConfig holds everything the HTTP surface is built from
type EngineConfig struct {
	Logger        *zap.Logger
	HTTP          config.HTTPConfig
	WebhookPrefix string
	Tracing       middleware.TracingConfig
	Docs          config.SwaggerConfig

	// Meter records HTTP metrics; nil disables them.
	Meter    metric.Meter
	Tokens   middleware.TokenValidator
	Health   *handler.HealthHandler
	Webhooks *handler.WebhookHandler
	Admin    *handler.WMSAdminHandler
}

// NewEngine builds the gin engine with the global middleware stack, the
// health check, the webhook endpoint, the JWT protected admin API and,
// when enabled, its documentation under /swagger.
func NewEngine(cfg EngineConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Tracing runs before the request logger so log lines carry the trace ID.
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(cfg.Tracing))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.HTTPMetricsWithMeter(cfg.Meter, cfg.Meter != nil))

	engine.GET("/health", cfg.Health.Health)

	WebhookRoutes(cfg).RegisterRoutes(&engine.RouterGroup)

	jwt := middleware.JWTAuthMiddleware(middleware.JWTMiddlewareConfig{Validator: cfg.Tokens, Logger: log})
	NewAPI(engine, "v1").
		Use(jwt, middleware.TracingAttributeInjector()).
		Mount(AdminRoutes(cfg.Admin)).
		Setup()

	if cfg.Docs.Enabled {
		DocsRoutes(cfg.Docs, jwt).RegisterRoutes(&engine.RouterGroup)
	}

	return engine
}

// WebhookRoutes returns POST /{prefix}/hooks/:token. Requests are limited
// per token and the body is capped before the handler reads it.
func WebhookRoutes(cfg EngineConfig) *RouteSet {
	prefix := strings.Trim(cfg.WebhookPrefix, "/")
	hooks := NewRouteSet("/" + prefix + "/hooks")
	if cfg.HTTP.MaxBodySize > 0 {
		hooks.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}
	if cfg.HTTP.WebhookRateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.HTTP.WebhookRateLimit, cfg.HTTP.RateWindow)
		hooks.Use(middleware.RateLimitByKey(limiter, func(c *gin.Context) string {
			return c.Param("token")
		}))
	}
	hooks.POST("/:token", cfg.Webhooks.Receive)
	return hooks
}

// AdminRoutes returns the /wms group of the admin API
func AdminRoutes(h *handler.WMSAdminHandler) *RouteSet {
	s := NewRouteSet("/wms")
	s.GET("/config", h.GetConfig).
		PUT("/config", h.UpsertConfig).
		POST("/config/test", h.TestCredentials)
	s.Nest("/sync").POST("/full", h.TriggerFullSync)
	s.Nest("/queue").GET("/stats", h.QueueStats)
	return s
}

// DocsRoutes serves the generated admin API documentation. doc.json only
// resolves when the docs package is imported by the binary.
func DocsRoutes(cfg config.SwaggerConfig, auth gin.HandlerFunc) *RouteSet {
	s := NewRouteSet("/swagger")
	s.Use(middleware.DocsAccess(middleware.DocsAccessConfig{
		RequireAuth: cfg.RequireAuth,
		AllowedIPs:  cfg.AllowedIPs,
	}, auth))
	s.GET("/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	return s
}
