package strategy

import (
	"github.com/shopspring/decimal"
)

// ApportionMethod names how shared overheads are weighted across line items
type ApportionMethod string

const (
	ApportionMethodByQuantity ApportionMethod = "by_quantity"
)

// String returns the string representation of the apportion method
func (m ApportionMethod) String() string {
	return string(m)
}

// ApportionLine is the weighting view of a supply line
type ApportionLine struct {
	Quantity  decimal.Decimal
	BasePrice decimal.Decimal
}

// ApportionmentStrategy turns supply lines into weights for absolute fee
// distribution. Weights are returned in line order; the caller divides each
// weight by their sum.
type ApportionmentStrategy interface {
	Strategy
	// Method returns the apportion method implemented by this strategy
	Method() ApportionMethod
	// Weights returns one non-negative weight per line
	Weights(lines []ApportionLine) ([]decimal.Decimal, error)
}
