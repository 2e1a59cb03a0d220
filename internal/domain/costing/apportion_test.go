package costing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/firesafe/ledger/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type byQuantity struct {
	strategy.BaseStrategy
}

func (byQuantity) Method() strategy.ApportionMethod { return strategy.ApportionMethodByQuantity }

func (byQuantity) Weights(lines []strategy.ApportionLine) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(lines))
	for i, l := range lines {
		if !l.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: quantity", shared.ErrInvalidInput)
		}
		out[i] = l.Quantity
	}
	return out, nil
}

var qtyMethod = byQuantity{strategy.NewBaseStrategy("by_quantity", strategy.StrategyTypeApportionment, "test")}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func line(qty, price string) Line {
	return Line{ID: uuid.New(), ProductID: uuid.New(), Quantity: dec(qty), SourcePrice: dec(price)}
}

func TestApportion_CustomsSplitExactly(t *testing.T) {
	terms := Terms{
		ExchangeRate: dec("1"),
		AbsoluteFees: []Fee{{Name: "customs", Amount: dec("1000000")}},
	}

	t.Run("30 then 70", func(t *testing.T) {
		snaps, err := Apportion(terms, []Line{line("30", "0"), line("70", "0")}, qtyMethod)
		require.NoError(t, err)
		assert.True(t, snaps[0].AbsoluteShare("customs").Equal(dec("300000")))
		assert.True(t, snaps[1].AbsoluteShare("customs").Equal(dec("700000")))
	})

	t.Run("70 then 30", func(t *testing.T) {
		snaps, err := Apportion(terms, []Line{line("70", "0"), line("30", "0")}, qtyMethod)
		require.NoError(t, err)
		assert.True(t, snaps[0].AbsoluteShare("customs").Equal(dec("700000")))
		assert.True(t, snaps[1].AbsoluteShare("customs").Equal(dec("300000")))
	})
}

func TestApportion_SumInvariant(t *testing.T) {
	fees := []Fee{
		{Name: "customs", Amount: dec("100.00")},
		{Name: "loading", Amount: dec("33.33")},
		{Name: "returns", Amount: dec("0.01")},
	}
	for n := 1; n <= 13; n++ {
		lines := make([]Line, n)
		for i := range lines {
			lines[i] = line(fmt.Sprintf("%d", i%4+1), "10")
		}
		snaps, err := Apportion(Terms{ExchangeRate: dec("1"), AbsoluteFees: fees}, lines, qtyMethod)
		require.NoError(t, err)

		for _, f := range fees {
			sum := decimal.Zero
			for _, s := range snaps {
				sum = sum.Add(s.AbsoluteShare(f.Name))
			}
			assert.True(t, sum.Equal(f.Amount), "n=%d fee=%s sum=%s", n, f.Name, sum)
		}
	}
}

func TestApportion_LastItemCorrection(t *testing.T) {
	// 100 / 3 = 33.333.. -> 33.33, 33.33, last gets 33.34
	snaps, err := Apportion(Terms{
		ExchangeRate: dec("1"),
		AbsoluteFees: []Fee{{Name: "loading", Amount: dec("100")}},
	}, []Line{line("1", "0"), line("1", "0"), line("1", "0")}, qtyMethod)
	require.NoError(t, err)

	assert.True(t, snaps[0].AbsoluteShare("loading").Equal(dec("33.33")))
	assert.True(t, snaps[1].AbsoluteShare("loading").Equal(dec("33.33")))
	assert.True(t, snaps[2].AbsoluteShare("loading").Equal(dec("33.34")))
}

func TestApportion_PercentageAndTotals(t *testing.T) {
	terms := Terms{
		ExchangeRate: dec("140.5"),
		PercentageFees: []Fee{
			{Name: "vat", Amount: dec("0.12")},
			{Name: "logistics", Amount: dec("0.005")},
		},
		AbsoluteFees: []Fee{{Name: "customs", Amount: dec("1000")}},
	}
	snaps, err := Apportion(terms, []Line{line("4", "100"), line("6", "50")}, qtyMethod)
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	first := snaps[0]
	assert.True(t, first.BasePrice.Equal(dec("14050")))
	assert.True(t, first.PercentageFees[0].Amount.Equal(dec("1686")))
	assert.True(t, first.PercentageFees[1].Amount.Equal(dec("70.25")))
	assert.True(t, first.AbsoluteShare("customs").Equal(dec("400")))
	// 14050 + 1686 + 70.25 + 400
	assert.True(t, first.TotalCost.Equal(dec("16206.25")))
	assert.True(t, first.UnitCost.Equal(dec("4051.56")))

	second := snaps[1]
	assert.True(t, second.BasePrice.Equal(dec("7025")))
	assert.True(t, second.AbsoluteShare("customs").Equal(dec("600")))
}

func TestApportion_PercentageKeepsFourPlaces(t *testing.T) {
	snaps, err := Apportion(Terms{
		ExchangeRate:   dec("1"),
		PercentageFees: []Fee{{Name: "storage", Amount: dec("0.002")}},
	}, []Line{line("1", "12.3456")}, qtyMethod)
	require.NoError(t, err)
	// 12.3456 * 0.002 = 0.0246912
	assert.True(t, snaps[0].PercentageFees[0].Amount.Equal(dec("0.0247")))
}

func TestApportion_InvalidInput(t *testing.T) {
	ok := Terms{ExchangeRate: dec("1")}
	tests := []struct {
		name  string
		terms Terms
		lines []Line
	}{
		{"no lines", ok, nil},
		{"zero quantity", ok, []Line{line("1", "1"), line("0", "1")}},
		{"negative quantity", ok, []Line{line("-2", "1")}},
		{"zero exchange rate", Terms{ExchangeRate: decimal.Zero}, []Line{line("1", "1")}},
		{"negative fee", Terms{ExchangeRate: dec("1"), AbsoluteFees: []Fee{{Name: "customs", Amount: dec("-1")}}}, []Line{line("1", "1")}},
		{"duplicate fee", Terms{
			ExchangeRate:   dec("1"),
			PercentageFees: []Fee{{Name: "vat", Amount: dec("0.1")}},
			AbsoluteFees:   []Fee{{Name: "VAT", Amount: dec("1")}},
		}, []Line{line("1", "1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apportion(tt.terms, tt.lines, qtyMethod)
			var de *shared.DomainError
			require.True(t, errors.As(err, &de), "got %v", err)
			assert.Equal(t, CodeInvalidApportionmentInput, de.Code)
		})
	}
}
