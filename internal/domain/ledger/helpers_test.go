package ledger

import (
	"bytes"
	"testing"
	"time"

	"github.com/firesafe/ledger/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type oldestFirst struct {
	strategy.BaseStrategy
}

func (oldestFirst) Order() strategy.ConsumptionOrder { return strategy.ConsumptionOrderFIFO }

func (oldestFirst) Compare(a, b strategy.StockLayer) int {
	if c := a.ReceivedAt.Compare(b.ReceivedAt); c != 0 {
		return c
	}
	return bytes.Compare(a.ID[:], b.ID[:])
}

var fifo = oldestFirst{strategy.NewBaseStrategy("fifo", strategy.StrategyTypeConsumption, "test")}

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestBatch(t *testing.T, productID uuid.UUID, r Register, qty, cost string, receivedAt time.Time) *Batch {
	t.Helper()
	b, err := NewBatch(productID, r, dec(qty), dec(cost), receivedAt, BatchSourcePurchase)
	require.NoError(t, err)
	return b
}

func snapshotQuantities(batches []*Batch) []decimal.Decimal {
	out := make([]decimal.Decimal, len(batches))
	for i, b := range batches {
		out[i] = b.Quantity
	}
	return out
}
