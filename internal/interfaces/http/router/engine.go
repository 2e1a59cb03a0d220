package router

import (
	"github.com/firesafe/ledger/internal/infrastructure/logger"
	"github.com/firesafe/ledger/internal/interfaces/http/handler"
	"github.com/firesafe/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// EngineConfig holds what NewEngine needs beyond the handlers
type EngineConfig struct {
	Logger         *zap.Logger
	ServiceName    string
	TracingEnabled bool
	Meter          metric.Meter // nil disables HTTP metrics
	MaxBodySize    int64
	TrustedProxies []string
}

// Handlers are the HTTP handlers mounted by NewEngine. Jobs may be nil.
type Handlers struct {
	Ledger  *handler.LedgerHandler
	Costing *handler.CostingHandler
	System  *handler.SystemHandler
	Jobs    *handler.JobsHandler
}

// NewEngine builds the gin engine: tracing, request logging, recovery,
// security headers, metrics and body limit, then /health and the
// versioned API.
func NewEngine(cfg EngineConfig, h Handlers) (*gin.Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.ServiceName,
		Enabled:     cfg.TracingEnabled,
	}))
	engine.Use(logger.GinMiddleware(cfg.Logger))
	engine.Use(logger.Recovery(cfg.Logger))
	engine.Use(middleware.Secure())
	engine.Use(middleware.HTTPMetrics(cfg.Meter))
	engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	engine.NoRoute(middleware.NoRoute())

	engine.GET("/health", h.System.Health)

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Use(middleware.SpanEnricher())
	r.Register(LedgerRoutes(h.Ledger))
	r.Register(CostingRoutes(h.Costing))
	r.Register(SystemRoutes(h.System, h.Jobs))
	r.Setup()

	return engine, nil
}
