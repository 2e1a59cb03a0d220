package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBConfig configures GORM instrumentation.
type DBConfig struct {
	TraceEnabled       bool
	LogFullSQL         bool
	SlowQueryThreshold time.Duration // default 200ms
	PoolStatsInterval  time.Duration // default 15s
	DBSystem           string        // default "postgresql"
}

type queryStartKey struct{}

// GormPlugin adds otelgorm spans, query metrics and slow query marking to a *gorm.DB.
// It implements gorm.Plugin.
type GormPlugin struct {
	config DBConfig
	logger *zap.Logger

	queryTotal    *Counter
	slowTotal     *Counter
	queryDuration *Histogram
	poolConns     *Gauge

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewGormPlugin creates the plugin. A nil meter disables metrics.
func NewGormPlugin(cfg DBConfig, meter metric.Meter, logger *zap.Logger) (*GormPlugin, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.PoolStatsInterval <= 0 {
		cfg.PoolStatsInterval = 15 * time.Second
	}
	if cfg.DBSystem == "" {
		cfg.DBSystem = "postgresql"
	}
	p := &GormPlugin{config: cfg, logger: logger, stopCh: make(chan struct{})}
	if meter == nil {
		return p, nil
	}

	var err error
	if p.queryTotal, err = NewCounter(meter, "db_query_total", "Database queries by operation", "{query}"); err != nil {
		return nil, err
	}
	if p.slowTotal, err = NewCounter(meter, "db_slow_query_total", "Queries slower than the threshold", "{query}"); err != nil {
		return nil, err
	}
	if p.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if p.poolConns, err = NewGauge(meter, "db_pool_connections", "Pool connections by state", "{connection}"); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *GormPlugin) Name() string { return "ledger:instrumentation" }

// Initialize registers otelgorm (when tracing is on) and the timing callbacks.
func (p *GormPlugin) Initialize(db *gorm.DB) error {
	if p.config.TraceEnabled {
		opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
		if !p.config.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return err
		}
	}

	cb := db.Callback()
	hooks := []struct {
		op     string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"INSERT", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"SELECT", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"UPDATE", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"DELETE", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"ROW", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"RAW", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		op := h.op
		if err := h.before("ledger:before_"+op, markStart); err != nil {
			return err
		}
		if err := h.after("ledger:after_"+op, func(tx *gorm.DB) { p.observe(tx, op) }); err != nil {
			return err
		}
	}
	return nil
}

func markStart(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	db.Statement.Context = context.WithValue(ctx, queryStartKey{}, time.Now())
}

func (p *GormPlugin) observe(db *gorm.DB, op string) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	table := db.Statement.Table
	if table == "" {
		table = "unknown"
	}

	if p.queryTotal != nil {
		p.queryTotal.Inc(ctx, AttrDBOperation.String(op))
		p.queryDuration.RecordDuration(ctx, elapsed, AttrDBOperation.String(op))
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("db.sql.table", table),
			attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
		)
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			RecordError(span, db.Error)
		}
	}

	if elapsed <= p.config.SlowQueryThreshold {
		return
	}
	if p.slowTotal != nil {
		p.slowTotal.Inc(ctx, AttrDBTable.String(table))
	}
	if span.IsRecording() {
		span.SetAttributes(attribute.Bool("db.slow_query", true))
	}
	p.logger.Warn("Slow query",
		zap.String("operation", op),
		zap.String("table", table),
		zap.Duration("elapsed", elapsed),
	)
}

// StartPoolStats samples sqlDB.Stats until ctx ends or Stop is called.
func (p *GormPlugin) StartPoolStats(ctx context.Context, sqlDB *sql.DB) {
	if p.poolConns == nil || sqlDB == nil {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.config.PoolStatsInterval)
		defer ticker.Stop()
		for {
			p.recordPool(ctx, sqlDB.Stats())
			select {
			case <-ticker.C:
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (p *GormPlugin) recordPool(ctx context.Context, s sql.DBStats) {
	p.poolConns.Record(ctx, int64(s.Idle), AttrDBState.String("idle"))
	p.poolConns.Record(ctx, int64(s.InUse), AttrDBState.String("in_use"))
	p.poolConns.Record(ctx, int64(s.MaxOpenConnections), AttrDBState.String("max"))
}

// Stop ends pool sampling. Safe to call more than once.
func (p *GormPlugin) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.wg.Wait()
	})
}
