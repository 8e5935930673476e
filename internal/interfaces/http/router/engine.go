package router

import (
	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/erp/stockledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EngineOptions configures the gin engine of the ledger API
type EngineOptions struct {
	Env       string
	HTTP      config.HTTPConfig
	Telemetry config.TelemetryConfig
	Meter     *telemetry.MeterProvider
	Logger    *zap.Logger
}

// NewEngine builds a gin engine with the ledger middleware chain installed.
// Request IDs are assigned first so every later layer can log and trace them;
// the request context is bounded by the HTTP write timeout.
func NewEngine(opts EngineOptions) *gin.Engine {
	if opts.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(opts.HTTP.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
		_ = engine.SetTrustedProxies(nil)
	}

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName: opts.Telemetry.ServiceName,
			Enabled:     opts.Telemetry.Enabled,
		}),
		middleware.SpanAttributes(),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(opts.Meter, log),
		middleware.Secure(middleware.DefaultSecurityConfig()),
		middleware.Timeout(opts.HTTP.WriteTimeout),
	)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = opts.HTTP.CORSAllowOrigins
	if len(opts.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = opts.HTTP.CORSAllowMethods
	}
	if len(opts.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = opts.HTTP.CORSAllowHeaders
	}
	if cors := middleware.CORS(corsCfg); cors != nil {
		engine.Use(cors)
	}

	engine.Use(middleware.BodyLimit(opts.HTTP.MaxBodySize))
	if opts.HTTP.RateLimitEnabled {
		engine.Use(middleware.RateLimit(middleware.NewRateLimiter(opts.HTTP.RateLimitRequests, opts.HTTP.RateLimitWindow)))
	}
	return engine
}

// Mount registers the ledger routes under /api/v1 and the bare /health check
func Mount(engine *gin.Engine, h Handlers) {
	NewRouter(engine).Register(LedgerRoutes(h)...).Setup()
	if h.Health != nil {
		engine.GET("/health", h.Health.Health)
	}
}
