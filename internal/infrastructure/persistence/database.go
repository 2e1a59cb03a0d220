package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/firesafe/ledger/internal/infrastructure/config"
	"github.com/firesafe/ledger/internal/infrastructure/logger"
	"github.com/firesafe/ledger/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Database holds the database connection and its instrumentation
type Database struct {
	DB     *gorm.DB
	plugin *telemetry.GormPlugin
}

// Options configure logging and instrumentation of the connection
type Options struct {
	Logger             *zap.Logger
	LogLevel           string // gorm log level: silent, error, warn, info
	SlowQueryThreshold time.Duration
	Telemetry          telemetry.DBConfig
	Meter              metric.Meter // nil disables query metrics
}

// NewDatabase connects to postgres with the given configuration
func NewDatabase(cfg *config.DatabaseConfig, opts Options) (*Database, error) {
	return Open(postgres.Open(cfg.DSN()), cfg, opts)
}

// Open creates a database from any gorm dialector, applying pool settings
// and instrumentation. Tests pass a sqlmock-backed postgres dialector.
func Open(dialector gorm.Dialector, cfg *config.DatabaseConfig, opts Options) (*Database, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SlowQueryThreshold <= 0 {
		opts.SlowQueryThreshold = 200 * time.Millisecond
	}
	if opts.Telemetry.SlowQueryThreshold <= 0 {
		opts.Telemetry.SlowQueryThreshold = opts.SlowQueryThreshold
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.NewGormLogger(opts.Logger, logger.GormLevel(opts.LogLevel), opts.SlowQueryThreshold),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	plugin, err := telemetry.NewGormPlugin(opts.Telemetry, opts.Meter, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create gorm instrumentation: %w", err)
	}
	if err := db.Use(plugin); err != nil {
		return nil, fmt.Errorf("failed to register gorm instrumentation: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg != nil {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db, plugin: plugin}, nil
}

// StartPoolStats samples connection pool usage until ctx ends or Close is called
func (d *Database) StartPoolStats(ctx context.Context) {
	sqlDB, err := d.DB.DB()
	if err != nil || d.plugin == nil {
		return
	}
	d.plugin.StartPoolStats(ctx, sqlDB)
}

// Close stops instrumentation and closes the database connection
func (d *Database) Close() error {
	if d.plugin != nil {
		d.plugin.Stop()
	}
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Stats returns database connection pool statistics
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
}
