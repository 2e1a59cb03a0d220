package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/firesafe/ledger/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type pluginRow struct {
	ID   int
	Name string
}

func openInstrumentedDB(t *testing.T, cfg telemetry.DBConfig) (*gorm.DB, *sdkmetric.ManualReader, *telemetry.GormPlugin) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	plugin, err := telemetry.NewGormPlugin(cfg, meter, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Use(plugin))
	require.NoError(t, db.AutoMigrate(&pluginRow{}))
	return db, reader, plugin
}

func sumCounter(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestGormPlugin_CountsQueries(t *testing.T) {
	db, reader, _ := openInstrumentedDB(t, telemetry.DBConfig{})
	ctx := context.Background()

	require.NoError(t, db.WithContext(ctx).Create(&pluginRow{ID: 1, Name: "a"}).Error)
	var got pluginRow
	require.NoError(t, db.WithContext(ctx).First(&got, 1).Error)

	assert.GreaterOrEqual(t, sumCounter(t, reader, "db_query_total"), int64(2))
	assert.Zero(t, sumCounter(t, reader, "db_slow_query_total"))
}

func TestGormPlugin_FlagsSlowQueries(t *testing.T) {
	db, reader, _ := openInstrumentedDB(t, telemetry.DBConfig{SlowQueryThreshold: time.Nanosecond})

	require.NoError(t, db.Create(&pluginRow{ID: 2, Name: "b"}).Error)

	assert.Positive(t, sumCounter(t, reader, "db_slow_query_total"))
}

func TestGormPlugin_PoolStats(t *testing.T) {
	db, _, plugin := openInstrumentedDB(t, telemetry.DBConfig{PoolStatsInterval: time.Millisecond})
	sqlDB, err := db.DB()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	plugin.StartPoolStats(ctx, sqlDB)
	time.Sleep(5 * time.Millisecond)
	plugin.Stop()
	plugin.Stop()
}

func TestNewGormPlugin_NilMeter(t *testing.T) {
	plugin, err := telemetry.NewGormPlugin(telemetry.DBConfig{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ledger:instrumentation", plugin.Name())
	plugin.StartPoolStats(context.Background(), nil)
	plugin.Stop()
}
