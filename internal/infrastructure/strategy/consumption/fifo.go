package consumption

import (
	"bytes"

	"github.com/firesafe/ledger/internal/domain/shared/strategy"
)

// FIFOStrategy drains the oldest layer first.
// Layers received at the same instant are ordered by ID.
type FIFOStrategy struct {
	strategy.BaseStrategy
}

// NewFIFOStrategy creates a new FIFO consumption strategy
func NewFIFOStrategy() *FIFOStrategy {
	return &FIFOStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			string(strategy.ConsumptionOrderFIFO),
			strategy.StrategyTypeConsumption,
			"First In First Out - drains batches by receipt time (oldest first)",
		),
	}
}

// Order returns FIFO
func (s *FIFOStrategy) Order() strategy.ConsumptionOrder {
	return strategy.ConsumptionOrderFIFO
}

// Compare orders by (receivedAt asc, id asc)
func (s *FIFOStrategy) Compare(a, b strategy.StockLayer) int {
	if c := a.ReceivedAt.Compare(b.ReceivedAt); c != 0 {
		return c
	}
	return bytes.Compare(a.ID[:], b.ID[:])
}
