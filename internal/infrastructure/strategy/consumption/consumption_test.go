package consumption

import (
	"slices"
	"testing"
	"time"

	"github.com/firesafe/ledger/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func layer(id string, at time.Time) strategy.StockLayer {
	return strategy.StockLayer{
		ID:         uuid.MustParse(id),
		ReceivedAt: at,
		Quantity:   decimal.NewFromInt(10),
		UnitCost:   decimal.NewFromInt(1),
	}
}

func TestFIFOStrategy_Compare(t *testing.T) {
	s := NewFIFOStrategy()
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	old := layer("00000000-0000-0000-0000-000000000003", t0)
	newer := layer("00000000-0000-0000-0000-000000000001", t0.Add(time.Hour))
	tieA := layer("00000000-0000-0000-0000-00000000000a", t0)

	assert.Equal(t, "fifo", s.Name())
	assert.Equal(t, strategy.StrategyTypeConsumption, s.Type())
	assert.Negative(t, s.Compare(old, newer))
	assert.Positive(t, s.Compare(newer, old))

	t.Run("ties on receipt time are broken by id", func(t *testing.T) {
		assert.Negative(t, s.Compare(old, tieA))
		assert.Zero(t, s.Compare(old, old))
	})

	t.Run("sorting is stable across reads", func(t *testing.T) {
		layers := []strategy.StockLayer{newer, tieA, old}
		slices.SortFunc(layers, s.Compare)
		assert.Equal(t, []strategy.StockLayer{old, tieA, newer}, layers)
	})
}

func TestLIFOStrategy_Compare(t *testing.T) {
	s := NewLIFOStrategy()
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	old := layer("00000000-0000-0000-0000-000000000001", t0)
	newer := layer("00000000-0000-0000-0000-000000000002", t0.Add(time.Minute))
	tie := layer("00000000-0000-0000-0000-000000000003", t0)

	layers := []strategy.StockLayer{old, tie, newer}
	slices.SortFunc(layers, s.Compare)

	assert.Equal(t, strategy.ConsumptionOrderLIFO, s.Order())
	assert.Equal(t, []strategy.StockLayer{newer, tie, old}, layers)
}
