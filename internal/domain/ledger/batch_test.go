package ledger

import (
	"errors"
	"testing"

	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatch(t *testing.T) {
	productID := uuid.New()

	t.Run("creates batch", func(t *testing.T) {
		b, err := NewBatch(productID, RegisterND, dec("50"), dec("100.123456"), t0, BatchSourcePurchase)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, b.ID)
		assert.True(t, b.Quantity.Equal(dec("50")))
		assert.True(t, b.UnitCost.Equal(dec("100.1235")))
		assert.Equal(t, t0, b.ReceivedAt)
		assert.False(t, b.IsArchived())
	})

	tests := []struct {
		name     string
		product  uuid.UUID
		register Register
		qty      string
		cost     string
		code     string
	}{
		{"empty product", uuid.Nil, RegisterND, "1", "1", "INVALID_PRODUCT"},
		{"bad register", productID, Register("XX"), "1", "1", "INVALID_REGISTER"},
		{"zero quantity", productID, RegisterIM, "0", "1", CodeInvalidQuantity},
		{"negative cost", productID, RegisterIM, "1", "-1", "INVALID_COST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBatch(tt.product, tt.register, dec(tt.qty), dec(tt.cost), t0, BatchSourcePurchase)
			var de *shared.DomainError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.code, de.Code)
		})
	}
}

func TestBatch_TakeAndCredit(t *testing.T) {
	b := newTestBatch(t, uuid.New(), RegisterIM, "10", "5", t0)

	require.NoError(t, b.Take(dec("4")))
	assert.True(t, b.Quantity.Equal(dec("6")))

	err := b.Take(dec("7"))
	var ise *InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.True(t, ise.Missing.Equal(dec("1")))
	assert.True(t, b.Quantity.Equal(dec("6")), "failed take must not change the batch")

	require.NoError(t, b.Take(dec("6")))
	assert.False(t, b.IsConsumable())

	require.NoError(t, b.Credit(dec("2")))
	assert.True(t, b.Quantity.Equal(dec("2")))
	assert.Error(t, b.Credit(decimal.Zero))
}

func TestBatch_Archive(t *testing.T) {
	b := newTestBatch(t, uuid.New(), RegisterND, "3", "5", t0)

	err := b.Archive(t0)
	var de *shared.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "BATCH_NOT_EMPTY", de.Code)

	require.NoError(t, b.Take(dec("3")))
	require.NoError(t, b.Archive(t0))
	assert.True(t, b.IsArchived())

	b.Unarchive()
	assert.False(t, b.IsArchived())
}

func TestParseRegister(t *testing.T) {
	for in, want := range map[string]Register{"nd": RegisterND, "ND-40": RegisterND, "IM40": RegisterIM, " im ": RegisterIM} {
		got, err := ParseRegister(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseRegister("XX")
	assert.Error(t, err)
}

func TestStockBalance(t *testing.T) {
	s := NewStockBalance(uuid.New(), RegisterND)
	require.NoError(t, s.Increase(dec("5")))
	require.NoError(t, s.Decrease(dec("5")))
	assert.True(t, s.Quantity.IsZero())

	err := s.Decrease(dec("1"))
	var ise *InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, RegisterND, ise.Register)
}
