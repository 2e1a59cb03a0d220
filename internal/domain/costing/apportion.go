package costing

import (
	"errors"

	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/firesafe/ledger/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// PercentScale is the precision of percentage fee amounts
	PercentScale int32 = 4
	// MoneyScale is the precision of absolute shares and landed costs
	MoneyScale int32 = 2
)

// Line is one supply line fed into apportionment
type Line struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	Name        string          `json:"name"`
	Quantity    decimal.Decimal `json:"quantity"`
	SourcePrice decimal.Decimal `json:"source_price"` // line price in the supplier's currency
}

// Terms are the session parameters apportionment depends on
type Terms struct {
	ExchangeRate   decimal.Decimal
	PercentageFees []Fee
	AbsoluteFees   []Fee
}

// ItemSnapshot is the landed cost of one supply line
type ItemSnapshot struct {
	LineID         uuid.UUID       `json:"line_id"`
	ProductID      uuid.UUID       `json:"product_id"`
	Name           string          `json:"name"`
	Quantity       decimal.Decimal `json:"quantity"`
	SourcePrice    decimal.Decimal `json:"source_price"`
	BasePrice      decimal.Decimal `json:"base_price"`
	PercentageFees []FeeAmount     `json:"percentage_fees"`
	AbsoluteFees   []FeeAmount     `json:"absolute_fees"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
}

// AbsoluteShare returns the named absolute fee share of the item
func (s ItemSnapshot) AbsoluteShare(name string) decimal.Decimal {
	for _, f := range s.AbsoluteFees {
		if f.Name == name {
			return f.Amount
		}
	}
	return decimal.Zero
}

// Apportion computes landed costs for the lines. It has no side effects.
func Apportion(terms Terms, lines []Line, method strategy.ApportionmentStrategy) ([]ItemSnapshot, error) {
	if err := validateInput(terms, lines); err != nil {
		return nil, err
	}

	snapshots := make([]ItemSnapshot, len(lines))
	weightLines := make([]strategy.ApportionLine, len(lines))
	for i, l := range lines {
		base := l.SourcePrice.Mul(terms.ExchangeRate)
		pct := make([]FeeAmount, len(terms.PercentageFees))
		for j, f := range terms.PercentageFees {
			pct[j] = FeeAmount{Name: f.Name, Amount: base.Mul(f.Amount).Round(PercentScale)}
		}
		snapshots[i] = ItemSnapshot{
			LineID:         l.ID,
			ProductID:      l.ProductID,
			Name:           l.Name,
			Quantity:       l.Quantity,
			SourcePrice:    l.SourcePrice,
			BasePrice:      base,
			PercentageFees: pct,
			AbsoluteFees:   make([]FeeAmount, len(terms.AbsoluteFees)),
		}
		weightLines[i] = strategy.ApportionLine{Quantity: l.Quantity, BasePrice: base}
	}

	weights, err := method.Weights(weightLines)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidInput) {
			return nil, invalidInput("%s", err.Error())
		}
		return nil, err
	}
	totalWeight := decimal.Sum(decimal.Zero, weights...)
	if !totalWeight.IsPositive() {
		return nil, invalidInput("total apportionment weight must be positive")
	}

	for j, f := range terms.AbsoluteFees {
		shares := proportionalShares(f.Amount, weights, totalWeight)
		correctLastShare(f.Amount, shares)
		for i := range snapshots {
			snapshots[i].AbsoluteFees[j] = FeeAmount{Name: f.Name, Amount: shares[i]}
		}
	}

	for i := range snapshots {
		s := &snapshots[i]
		total := s.BasePrice.Add(sumAmounts(s.PercentageFees)).Add(sumAmounts(s.AbsoluteFees))
		s.TotalCost = total.Round(MoneyScale)
		s.UnitCost = total.Div(s.Quantity).Round(MoneyScale)
	}
	return snapshots, nil
}

// proportionalShares splits amount by weight, rounding each share to MoneyScale
func proportionalShares(amount decimal.Decimal, weights []decimal.Decimal, totalWeight decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(weights))
	for i, w := range weights {
		shares[i] = amount.Mul(w).Div(totalWeight).Round(MoneyScale)
	}
	return shares
}

// correctLastShare replaces the last share with the remainder so that the
// shares sum to amount exactly.
func correctLastShare(amount decimal.Decimal, shares []decimal.Decimal) {
	if len(shares) == 0 {
		return
	}
	last := len(shares) - 1
	assigned := decimal.Zero
	for _, s := range shares[:last] {
		assigned = assigned.Add(s)
	}
	shares[last] = amount.Sub(assigned)
}

func validateInput(terms Terms, lines []Line) error {
	if len(lines) == 0 {
		return invalidInput("at least one line is required")
	}
	if !terms.ExchangeRate.IsPositive() {
		return invalidInput("exchange rate must be positive")
	}
	total := decimal.Zero
	for i, l := range lines {
		if !l.Quantity.IsPositive() {
			return invalidInput("line %d quantity must be positive", i+1)
		}
		if l.SourcePrice.IsNegative() {
			return invalidInput("line %d price cannot be negative", i+1)
		}
		total = total.Add(l.Quantity)
	}
	if !total.IsPositive() {
		return invalidInput("total quantity must be positive")
	}
	seen := make(map[string]struct{})
	if err := validateFees("percentage", terms.PercentageFees, seen); err != nil {
		return err
	}
	return validateFees("absolute", terms.AbsoluteFees, seen)
}
