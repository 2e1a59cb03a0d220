package consumption

import (
	"bytes"

	"github.com/firesafe/ledger/internal/domain/shared/strategy"
)

// LIFOStrategy drains the newest layer first
type LIFOStrategy struct {
	strategy.BaseStrategy
}

// NewLIFOStrategy creates a new LIFO consumption strategy
func NewLIFOStrategy() *LIFOStrategy {
	return &LIFOStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			string(strategy.ConsumptionOrderLIFO),
			strategy.StrategyTypeConsumption,
			"Last In First Out - drains batches by receipt time (newest first)",
		),
	}
}

// Order returns LIFO
func (s *LIFOStrategy) Order() strategy.ConsumptionOrder {
	return strategy.ConsumptionOrderLIFO
}

// Compare orders by (receivedAt desc, id desc)
func (s *LIFOStrategy) Compare(a, b strategy.StockLayer) int {
	if c := b.ReceivedAt.Compare(a.ReceivedAt); c != 0 {
		return c
	}
	return bytes.Compare(b.ID[:], a.ID[:])
}
