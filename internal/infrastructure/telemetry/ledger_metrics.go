// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LedgerMetrics tracks settlements, returns, costing and register stock levels.
// All record methods are safe to call on a nil receiver.
type LedgerMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	settlementsTotal       *Counter
	insufficientStockTotal *Counter
	returnsTotal           *Counter
	overReturnTotal        *Counter
	transfersTotal         *Counter
	costingFinalizedTotal  *Counter
	reconcileDriftTotal    *Counter
	jobRunsTotal           *Counter

	consumedQuantity *Histogram
	operationLatency *Histogram

	registerQuantity *FloatGauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	stockProvider StockLevelProvider
}

// StockLevelProvider reports the total quantity held in each register.
// It keeps the telemetry layer independent of the ledger domain.
type StockLevelProvider interface {
	TotalQuantityByRegister(ctx context.Context) (map[string]float64, error)
}

// LedgerMetricsConfig holds configuration for ledger metrics.
type LedgerMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	StockProvider   StockLevelProvider
}

// NewLedgerMetrics creates a new LedgerMetrics instance.
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &LedgerMetrics{
		meter:         cfg.Meter,
		logger:        logger,
		stopChan:      make(chan struct{}),
		stockProvider: cfg.StockProvider,
	}

	counters := []struct {
		dst  **Counter
		name string
		desc string
		unit string
	}{
		{&m.settlementsTotal, "ledger_settlements_total", "Sale lines settled", "{lines}"},
		{&m.insufficientStockTotal, "ledger_insufficient_stock_total", "Withdrawals rejected for insufficient stock", "{requests}"},
		{&m.returnsTotal, "ledger_returns_total", "Return lines reversed", "{lines}"},
		{&m.overReturnTotal, "ledger_over_return_total", "Returns rejected for exceeding the consumed quantity", "{requests}"},
		{&m.transfersTotal, "ledger_transfers_total", "ND to IM transfers", "{transfers}"},
		{&m.costingFinalizedTotal, "ledger_costing_finalized_total", "Costing sessions finalized", "{sessions}"},
		{&m.reconcileDriftTotal, "ledger_reconcile_drift_total", "Balances corrected by reconciliation", "{balances}"},
		{&m.jobRunsTotal, "ledger_job_runs_total", "Scheduled job executions", "{runs}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	var err error
	m.consumedQuantity, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "ledger_consumed_quantity",
		Description: "Quantity consumed per settled sale line",
		Unit:        "{units}",
		Boundaries:  []float64{1, 5, 10, 50, 100, 500, 1000},
	})
	if err != nil {
		return nil, err
	}

	m.operationLatency, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "ledger_operation_duration_seconds",
		Description: "Duration of ledger operations including the database transaction",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	m.registerQuantity, err = NewFloatGauge(cfg.Meter, "ledger_register_quantity", "Total quantity held per register", "{units}")
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordSettlement records a settled sale line
func (m *LedgerMetrics) RecordSettlement(ctx context.Context, settlement, paymentType string, quantity decimal.Decimal) {
	if m == nil {
		return
	}
	m.settlementsTotal.Inc(ctx, AttrSettlement.String(settlement), AttrPaymentType.String(paymentType))
	m.consumedQuantity.Record(ctx, quantity.InexactFloat64(), AttrSettlement.String(settlement))
}

// RecordInsufficientStock records a rejected withdrawal
func (m *LedgerMetrics) RecordInsufficientStock(ctx context.Context, register string) {
	if m == nil {
		return
	}
	m.insufficientStockTotal.Inc(ctx, AttrRegister.String(register))
}

// RecordReturn records a reversed return line
func (m *LedgerMetrics) RecordReturn(ctx context.Context) {
	if m == nil {
		return
	}
	m.returnsTotal.Inc(ctx)
}

// RecordOverReturn records a rejected return
func (m *LedgerMetrics) RecordOverReturn(ctx context.Context) {
	if m == nil {
		return
	}
	m.overReturnTotal.Inc(ctx)
}

// RecordTransfer records an ND to IM transfer
func (m *LedgerMetrics) RecordTransfer(ctx context.Context) {
	if m == nil {
		return
	}
	m.transfersTotal.Inc(ctx)
}

// RecordCostingFinalized records a finalized costing session
func (m *LedgerMetrics) RecordCostingFinalized(ctx context.Context) {
	if m == nil {
		return
	}
	m.costingFinalizedTotal.Inc(ctx)
}

// RecordReconcileDrift records a corrected balance
func (m *LedgerMetrics) RecordReconcileDrift(ctx context.Context, register string) {
	if m == nil {
		return
	}
	m.reconcileDriftTotal.Inc(ctx, AttrRegister.String(register))
}

// RecordJobRun records a scheduled job execution
func (m *LedgerMetrics) RecordJobRun(ctx context.Context, job, outcome string) {
	if m == nil {
		return
	}
	m.jobRunsTotal.Inc(ctx, AttrJob.String(job), AttrOutcome.String(outcome))
}

// RecordOperation records the duration of a ledger operation
func (m *LedgerMetrics) RecordOperation(ctx context.Context, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operationLatency.RecordDuration(ctx, d, AttrDBOperation.String(operation), AttrOutcome.String(outcome))
}

// RecordRegisterQuantity records the current quantity of a register
func (m *LedgerMetrics) RecordRegisterQuantity(ctx context.Context, register string, quantity float64) {
	if m == nil {
		return
	}
	m.registerQuantity.Record(ctx, quantity, AttrRegister.String(register))
}

// StartPeriodicCollection starts periodic collection of register gauges.
// This is non-blocking - use Stop() to stop collection.
func (m *LedgerMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	m.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go m.runPeriodicCollection(ctx, interval)
	})
}

func (m *LedgerMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.collectStockLevels(ctx)

	for {
		select {
		case <-m.stopChan:
			m.logger.Info("Stopping periodic ledger metrics collection")
			return
		case <-ctx.Done():
			m.logger.Info("Context cancelled, stopping periodic ledger metrics collection")
			return
		case <-ticker.C:
			m.collectStockLevels(ctx)
		}
	}
}

func (m *LedgerMetrics) collectStockLevels(ctx context.Context) {
	if m.stockProvider == nil {
		m.logger.Debug("No stock provider configured, skipping register metrics collection")
		return
	}
	levels, err := m.stockProvider.TotalQuantityByRegister(ctx)
	if err != nil {
		m.logger.Warn("Failed to collect register quantities", zap.Error(err))
		return
	}
	for register, qty := range levels {
		m.RecordRegisterQuantity(ctx, register, qty)
	}
}

// Stop stops the periodic collection.
func (m *LedgerMetrics) Stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
