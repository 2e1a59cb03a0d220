package strategy

import (
	"github.com/firesafe/ledger/internal/domain/shared/strategy"
	"github.com/firesafe/ledger/internal/infrastructure/strategy/apportionment"
	"github.com/firesafe/ledger/internal/infrastructure/strategy/consumption"
)

// NewRegistryWithDefaults creates a registry with the built-in strategies.
// FIFO consumption and by-quantity apportionment are the defaults.
func NewRegistryWithDefaults() (*StrategyRegistry, error) {
	r := NewStrategyRegistry()

	fifo := consumption.NewFIFOStrategy()
	if err := r.RegisterConsumptionStrategy(fifo); err != nil {
		return nil, err
	}
	if err := r.RegisterConsumptionStrategy(consumption.NewLIFOStrategy()); err != nil {
		return nil, err
	}

	byQty := apportionment.NewByQuantityStrategy()
	if err := r.RegisterApportionmentStrategy(byQty); err != nil {
		return nil, err
	}

	if err := r.SetDefault(strategy.StrategyTypeConsumption, fifo.Name()); err != nil {
		return nil, err
	}
	if err := r.SetDefault(strategy.StrategyTypeApportionment, byQty.Name()); err != nil {
		return nil, err
	}
	return r, nil
}
