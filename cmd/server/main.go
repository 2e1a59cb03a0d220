package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	costingapp "github.com/firesafe/ledger/internal/application/costing"
	ledgerapp "github.com/firesafe/ledger/internal/application/ledger"
	"github.com/firesafe/ledger/internal/domain/ledger"
	"github.com/firesafe/ledger/internal/infrastructure/cache"
	"github.com/firesafe/ledger/internal/infrastructure/config"
	"github.com/firesafe/ledger/internal/infrastructure/logger"
	"github.com/firesafe/ledger/internal/infrastructure/persistence"
	"github.com/firesafe/ledger/internal/infrastructure/scheduler"
	"github.com/firesafe/ledger/internal/infrastructure/storage"
	"github.com/firesafe/ledger/internal/infrastructure/strategy"
	"github.com/firesafe/ledger/internal/infrastructure/telemetry"
	"github.com/firesafe/ledger/internal/interfaces/http/handler"
	"github.com/firesafe/ledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()
	otelCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}

	// Tee zap into OTLP logs once the provider exists
	logsCfg := otelCfg
	logsCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled
	logProvider, err := telemetry.NewLoggerProvider(ctx, logsCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	if logProvider.IsEnabled() {
		log, err = logger.New(logCfg, logProvider.Core(cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level)))
		if err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	log.Info("Starting ledger server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, otelCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	metricsCfg := otelCfg
	metricsCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled
	meterProvider, err := telemetry.NewMeterProvider(ctx, metricsCfg, cfg.Telemetry.MetricsInterval, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	// nil when metrics are off so HTTP and query instrumentation skip recording
	var meter metric.Meter
	if meterProvider.IsEnabled() {
		meter = meterProvider.Meter(cfg.Telemetry.ServiceName)
	}

	// Database
	db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger:   log,
		LogLevel: cfg.Log.Level,
		Telemetry: telemetry.DBConfig{
			TraceEnabled: cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
			LogFullSQL:   cfg.Telemetry.DBLogFullSQL,
		},
		Meter: meter,
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	db.StartPoolStats(bgCtx)

	// Redis is optional: without it idempotency keys live in memory and
	// jobs run without the cross-instance lock.
	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}
	idempotencyStore := cache.NewIdempotencyStore(redisOrNil(rdb), log)

	// Ledger and costing services
	registry, err := strategy.NewRegistryWithDefaults()
	if err != nil {
		log.Fatal("Failed to initialize strategies", zap.Error(err))
	}
	policy, err := ledger.ParseArchivedBatchPolicy(cfg.Ledger.ArchivedBatchPolicy)
	if err != nil {
		log.Fatal("Invalid archived batch policy", zap.Error(err))
	}

	scope := persistence.NewGormTransactionScope(db.DB)
	repos := persistence.NewGormRepositories(db.DB)

	ledgerService := ledgerapp.NewService(scope.LedgerScope(), repos, registry, ledgerapp.Options{
		ConsumptionOrder:    cfg.Ledger.ConsumptionOrder,
		ArchivedBatchPolicy: policy,
		IdempotencyTTL:      cfg.Ledger.IdempotencyTTL,
	}, log.Named("ledger"))
	ledgerService.SetIdempotencyStore(idempotencyStore)

	if cfg.Storage.Enabled() {
		archive, err := storage.NewS3ObjectStorage(&cfg.Storage,
			storage.WithLogger(log.Named("storage")),
			storage.WithPresignExpiration(cfg.Storage.PresignExpiration),
		)
		if err != nil {
			log.Fatal("Failed to initialize snapshot archive", zap.Error(err))
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to prepare snapshot archive bucket", zap.Error(err))
		}
		ledgerService.SetSnapshotArchive(archive)
		log.Info("Snapshot archive enabled", zap.String("bucket", archive.GetBucket()))
	}

	costingService := costingapp.NewService(scope.CostingScope(), repos.Sessions(), registry, cfg.Ledger.ApportionMethod, log.Named("costing"))

	var ledgerMetrics *telemetry.LedgerMetrics
	if meter != nil {
		ledgerMetrics, err = telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
			Meter:         meter,
			Logger:        log,
			StockProvider: telemetry.NewGormStockLevelProvider(db.DB),
		})
		if err != nil {
			log.Fatal("Failed to initialize ledger metrics", zap.Error(err))
		}
		ledgerMetrics.StartPeriodicCollection(bgCtx, 0)
		ledgerService.SetLedgerMetrics(ledgerMetrics)
		costingService.SetLedgerMetrics(ledgerMetrics)
	}

	// Background jobs
	var locker scheduler.Locker
	if rdb != nil {
		locker = scheduler.NewRedisLocker(rdb)
	}
	sched := scheduler.NewScheduler(scheduler.Config{
		Workers:    cfg.Scheduler.Workers,
		JobTimeout: cfg.Scheduler.JobTimeout,
		LockTTL:    cfg.Scheduler.LockTTL,
	}, locker, log.Named("scheduler"))
	sched.SetLedgerMetrics(ledgerMetrics)
	for _, job := range scheduler.LedgerJobs(ledgerService, cfg.Scheduler, log.Named("jobs")) {
		if err := sched.Register(job); err != nil {
			log.Fatal("Failed to register job", zap.String("job", job.Name), zap.Error(err))
		}
	}
	if cfg.Scheduler.Enabled {
		if err := sched.Start(bgCtx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		log.Info("Scheduler started", zap.Strings("jobs", sched.Jobs()))
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	checks := []handler.HealthCheck{{Name: "database", Check: db.Ping}}
	if rdb != nil {
		checks = append(checks, handler.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	engine, err := router.NewEngine(router.EngineConfig{
		Logger:         log,
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: tracerProvider.IsEnabled(),
		Meter:          meter,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}, router.Handlers{
		Ledger:  handler.NewLedgerHandler(ledgerService),
		Costing: handler.NewCostingHandler(costingService),
		System:  handler.NewSystemHandler(cfg.App.Name, version, checks...),
		Jobs:    handler.NewJobsHandler(sched),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if cfg.Scheduler.Enabled {
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping scheduler", zap.Error(err))
		}
	}
	stopBackground()
	ledgerMetrics.Stop()

	if err := idempotencyStore.Close(); err != nil {
		log.Error("Error closing idempotency store", zap.Error(err))
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Error("Error closing Redis", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	shutdownTelemetry(shutdownCtx, log, tracerProvider, meterProvider, logProvider)

	log.Info("Server exited gracefully")
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

func shutdownTelemetry(ctx context.Context, log *zap.Logger, providers ...shutdowner) {
	for _, p := range providers {
		if err := p.Shutdown(ctx); err != nil {
			log.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}
}

func redisOrNil(rdb *redis.Client) redis.UniversalClient {
	if rdb == nil {
		return nil
	}
	return rdb
}
