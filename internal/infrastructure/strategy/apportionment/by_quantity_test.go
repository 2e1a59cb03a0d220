package apportionment

import (
	"testing"

	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/firesafe/ledger/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByQuantityStrategy_Weights(t *testing.T) {
	s := NewByQuantityStrategy()

	t.Run("weights equal quantities", func(t *testing.T) {
		w, err := s.Weights([]strategy.ApportionLine{
			{Quantity: decimal.NewFromInt(30), BasePrice: decimal.NewFromInt(999)},
			{Quantity: decimal.NewFromInt(70), BasePrice: decimal.NewFromInt(1)},
		})
		require.NoError(t, err)
		require.Len(t, w, 2)
		assert.True(t, w[0].Equal(decimal.NewFromInt(30)))
		assert.True(t, w[1].Equal(decimal.NewFromInt(70)))
	})

	t.Run("rejects zero quantity", func(t *testing.T) {
		_, err := s.Weights([]strategy.ApportionLine{{Quantity: decimal.Zero}})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := s.Weights(nil)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}
