package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/firesafe/ledger/internal/domain/shared/strategy"
)

// StrategyRegistry manages strategy registrations
type StrategyRegistry struct {
	mu                      sync.RWMutex
	consumptionStrategies   map[string]strategy.ConsumptionOrderStrategy
	apportionmentStrategies map[string]strategy.ApportionmentStrategy
	defaults                map[strategy.StrategyType]string
}

// NewStrategyRegistry creates a new strategy registry
func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{
		consumptionStrategies:   make(map[string]strategy.ConsumptionOrderStrategy),
		apportionmentStrategies: make(map[string]strategy.ApportionmentStrategy),
		defaults:                make(map[strategy.StrategyType]string),
	}
}

// RegisterConsumptionStrategy registers a consumption order strategy
func (r *StrategyRegistry) RegisterConsumptionStrategy(s strategy.ConsumptionOrderStrategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.consumptionStrategies[name]; exists {
		return fmt.Errorf("%w: consumption strategy '%s' already registered", shared.ErrAlreadyExists, name)
	}
	r.consumptionStrategies[name] = s
	return nil
}

// GetConsumptionStrategy returns a consumption strategy by name, or the default if name is empty
func (r *StrategyRegistry) GetConsumptionStrategy(name string) (strategy.ConsumptionOrderStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaults[strategy.StrategyTypeConsumption]
		if name == "" {
			return nil, fmt.Errorf("%w: no default consumption strategy set", shared.ErrNotFound)
		}
	}

	s, exists := r.consumptionStrategies[name]
	if !exists {
		return nil, fmt.Errorf("%w: consumption strategy '%s' not found", shared.ErrNotFound, name)
	}
	return s, nil
}

// ListConsumptionStrategies returns all registered consumption strategy names
func (r *StrategyRegistry) ListConsumptionStrategies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.consumptionStrategies))
	for name := range r.consumptionStrategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterApportionmentStrategy registers an apportionment strategy
func (r *StrategyRegistry) RegisterApportionmentStrategy(s strategy.ApportionmentStrategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.apportionmentStrategies[name]; exists {
		return fmt.Errorf("%w: apportionment strategy '%s' already registered", shared.ErrAlreadyExists, name)
	}
	r.apportionmentStrategies[name] = s
	return nil
}

// GetApportionmentStrategy returns an apportionment strategy by name, or the default if name is empty
func (r *StrategyRegistry) GetApportionmentStrategy(name string) (strategy.ApportionmentStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaults[strategy.StrategyTypeApportionment]
		if name == "" {
			return nil, fmt.Errorf("%w: no default apportionment strategy set", shared.ErrNotFound)
		}
	}

	s, exists := r.apportionmentStrategies[name]
	if !exists {
		return nil, fmt.Errorf("%w: apportionment strategy '%s' not found", shared.ErrNotFound, name)
	}
	return s, nil
}

// ListApportionmentStrategies returns all registered apportionment strategy names
func (r *StrategyRegistry) ListApportionmentStrategies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.apportionmentStrategies))
	for name := range r.apportionmentStrategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetDefault sets the default strategy for a strategy type
func (r *StrategyRegistry) SetDefault(strategyType strategy.StrategyType, name string) error {
	if !strategyType.IsValid() {
		return fmt.Errorf("unknown strategy type %q", strategyType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRegisteredLocked(strategyType, name) {
		return fmt.Errorf("%w: strategy '%s' of type '%s' not found", shared.ErrNotFound, name, strategyType)
	}

	r.defaults[strategyType] = name
	return nil
}

// GetDefault returns the default strategy name for a strategy type
func (r *StrategyRegistry) GetDefault(strategyType strategy.StrategyType) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults[strategyType]
}

// IsRegistered returns true if a strategy with the given name is registered for the type
func (r *StrategyRegistry) IsRegistered(strategyType strategy.StrategyType, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isRegisteredLocked(strategyType, name)
}

// isRegisteredLocked checks registration without locking (caller must hold lock)
func (r *StrategyRegistry) isRegisteredLocked(strategyType strategy.StrategyType, name string) bool {
	switch strategyType {
	case strategy.StrategyTypeConsumption:
		_, exists := r.consumptionStrategies[name]
		return exists
	case strategy.StrategyTypeApportionment:
		_, exists := r.apportionmentStrategies[name]
		return exists
	default:
		return false
	}
}

// Stats returns registration counts for each strategy type
func (r *StrategyRegistry) Stats() map[strategy.StrategyType]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[strategy.StrategyType]int{
		strategy.StrategyTypeConsumption:   len(r.consumptionStrategies),
		strategy.StrategyTypeApportionment: len(r.apportionmentStrategies),
	}
}
