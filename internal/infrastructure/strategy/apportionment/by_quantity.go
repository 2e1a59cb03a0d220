package apportionment

import (
	"fmt"

	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/firesafe/ledger/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// ByQuantityStrategy weights each line by its unit count
type ByQuantityStrategy struct {
	strategy.BaseStrategy
}

// NewByQuantityStrategy creates a new by-quantity apportionment strategy
func NewByQuantityStrategy() *ByQuantityStrategy {
	return &ByQuantityStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			string(strategy.ApportionMethodByQuantity),
			strategy.StrategyTypeApportionment,
			"Splits absolute fees in proportion to line quantity",
		),
	}
}

// Method returns by_quantity
func (s *ByQuantityStrategy) Method() strategy.ApportionMethod {
	return strategy.ApportionMethodByQuantity
}

// Weights returns the line quantities. Every quantity must be positive.
func (s *ByQuantityStrategy) Weights(lines []strategy.ApportionLine) ([]decimal.Decimal, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no lines to apportion", shared.ErrInvalidInput)
	}
	weights := make([]decimal.Decimal, len(lines))
	for i, l := range lines {
		if !l.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: line %d has non-positive quantity %s", shared.ErrInvalidInput, i+1, l.Quantity)
		}
		weights[i] = l.Quantity
	}
	return weights, nil
}
