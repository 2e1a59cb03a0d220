package costing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Fee is a named overhead. For percentage fees Amount is a fraction of the
// base price (0.22 = 22%); for absolute fees it is the total to distribute.
type Fee struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// FeeAmount is a fee resolved against one line item
type FeeAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Default fee names used by the supply costing sheet
var (
	DefaultPercentageFeeNames = []string{"vat", "logistics", "storage", "declaration", "certification", "mchs", "unforeseen"}
	DefaultAbsoluteFeeNames   = []string{"customs", "loading", "returns"}
)

// DefaultFees returns the default fee sets with zero amounts
func DefaultFees() (percentage, absolute []Fee) {
	for _, n := range DefaultPercentageFeeNames {
		percentage = append(percentage, Fee{Name: n, Amount: decimal.Zero})
	}
	for _, n := range DefaultAbsoluteFeeNames {
		absolute = append(absolute, Fee{Name: n, Amount: decimal.Zero})
	}
	return percentage, absolute
}

// validateFees checks names are present and unique and amounts are not negative
func validateFees(kind string, fees []Fee, seen map[string]struct{}) error {
	for _, f := range fees {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return invalidInput("%s fee name is required", kind)
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return invalidInput("duplicate fee name %q", name)
		}
		seen[key] = struct{}{}
		if f.Amount.IsNegative() {
			return invalidInput("%s fee %q cannot be negative", kind, name)
		}
	}
	return nil
}

// sumAmounts totals a slice of fee amounts
func sumAmounts(amounts []FeeAmount) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.Amount)
	}
	return total
}
