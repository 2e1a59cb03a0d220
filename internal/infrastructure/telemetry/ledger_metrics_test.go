package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/firesafe/ledger/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

type stubStockProvider struct {
	calls chan struct{}
	err   error
}

func (p *stubStockProvider) TotalQuantityByRegister(ctx context.Context) (map[string]float64, error) {
	select {
	case p.calls <- struct{}{}:
	default:
	}
	return map[string]float64{"ND": 10, "IM": 5}, p.err
}

func TestNewLedgerMetrics(t *testing.T) {
	m, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter:  noop.NewMeterProvider().Meter("test"),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	require.NotNil(t, m)
}

func TestNewLedgerMetrics_NilMeter(t *testing.T) {
	m, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{})
	require.Error(t, err)
	assert.Nil(t, m)
	assert.Equal(t, "NewLedgerMetrics: meter cannot be nil", err.Error())
}

func TestLedgerMetrics_Record(t *testing.T) {
	m, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter: noop.NewMeterProvider().Meter("test"),
	})
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordSettlement(ctx, "GREY", "Payme", decimal.NewFromInt(20))
	m.RecordInsufficientStock(ctx, "IM")
	m.RecordReturn(ctx)
	m.RecordOverReturn(ctx)
	m.RecordTransfer(ctx)
	m.RecordCostingFinalized(ctx)
	m.RecordReconcileDrift(ctx, "ND")
	m.RecordJobRun(ctx, "stock_snapshot", "success")
	m.RecordOperation(ctx, "settle", 15*time.Millisecond, errors.New("boom"))
	m.RecordRegisterQuantity(ctx, "ND", 12.5)
}

func TestLedgerMetrics_NilReceiver(t *testing.T) {
	var m *telemetry.LedgerMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordSettlement(ctx, "OFFICIAL", "Site", decimal.NewFromInt(1))
		m.RecordInsufficientStock(ctx, "IM")
		m.RecordOperation(ctx, "reverse", time.Millisecond, nil)
		m.Stop()
	})
}

func TestLedgerMetrics_PeriodicCollection(t *testing.T) {
	provider := &stubStockProvider{calls: make(chan struct{}, 1)}
	m, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter:         noop.NewMeterProvider().Meter("test"),
		StockProvider: provider,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.StartPeriodicCollection(ctx, time.Hour)
	select {
	case <-provider.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("expected an immediate collection")
	}
	m.Stop()
	m.Stop()
}
