package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsume_DrainsOldestFirst(t *testing.T) {
	p := uuid.New()
	b1 := newTestBatch(t, p, RegisterND, "50", "100", t0)
	b2 := newTestBatch(t, p, RegisterND, "30", "120", t0.Add(time.Hour))

	// passed newest first to prove the engine orders them itself
	c, err := Consume(WithdrawalRequest{ProductID: p, Register: RegisterND, Quantity: dec("60")}, []*Batch{b2, b1}, fifo)
	require.NoError(t, err)

	assert.True(t, c.UnitCost.Equal(dec("103.33")), c.UnitCost.String())
	assert.True(t, c.TotalCost.Equal(dec("6200")))
	assert.True(t, b1.Quantity.IsZero())
	assert.True(t, b2.Quantity.Equal(dec("20")))
	require.Len(t, c.Draws, 2)
	assert.Equal(t, b1.ID, c.Draws[0].BatchID)
	assert.True(t, c.Draws[0].Quantity.Equal(dec("50")))
	assert.Equal(t, b2.ID, c.Draws[1].BatchID)
	assert.True(t, c.Draws[1].Quantity.Equal(dec("10")))
}

func TestConsume_WeightedCostAcrossBoundary(t *testing.T) {
	p := uuid.New()
	b1 := newTestBatch(t, p, RegisterIM, "7", "3.10", t0)
	b2 := newTestBatch(t, p, RegisterIM, "9", "4.25", t0.Add(time.Minute))

	// a < Q <= a+b
	c, err := Consume(WithdrawalRequest{ProductID: p, Register: RegisterIM, Quantity: dec("11")}, []*Batch{b1, b2}, fifo)
	require.NoError(t, err)

	want := dec("7").Mul(dec("3.10")).Add(dec("4").Mul(dec("4.25"))).Div(dec("11")).Round(2)
	assert.True(t, c.UnitCost.Equal(want), "got %s want %s", c.UnitCost, want)
	assert.True(t, b1.Quantity.IsZero())
}

func TestConsume_TieBreakOnID(t *testing.T) {
	p := uuid.New()
	a := newTestBatch(t, p, RegisterND, "1", "10", t0)
	b := newTestBatch(t, p, RegisterND, "1", "20", t0)
	a.ID = uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
	b.ID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

	for i := 0; i < 3; i++ {
		ordered := OrderBatches(WithdrawalRequest{ProductID: p, Register: RegisterND}, []*Batch{a, b}, fifo)
		require.Len(t, ordered, 2)
		assert.Equal(t, b.ID, ordered[0].ID)
	}
}

func TestConsume_InsufficientStockLeavesBatchesUntouched(t *testing.T) {
	p := uuid.New()
	batches := []*Batch{
		newTestBatch(t, p, RegisterND, "50", "100", t0),
		newTestBatch(t, p, RegisterND, "30", "120", t0.Add(time.Hour)),
	}
	before := snapshotQuantities(batches)

	_, err := Consume(WithdrawalRequest{ProductID: p, Register: RegisterND, Quantity: dec("81")}, batches, fifo)
	var ise *InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, p, ise.ProductID)
	assert.Equal(t, RegisterND, ise.Register)
	assert.True(t, ise.Missing.Equal(dec("1")))
	assert.Equal(t, before, snapshotQuantities(batches))

	var de *shared.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, CodeInsufficientStock, de.Code)
}

func TestConsume_ExactAvailableDrainsRegister(t *testing.T) {
	p := uuid.New()
	batches := []*Batch{
		newTestBatch(t, p, RegisterIM, "5", "10", t0),
		newTestBatch(t, p, RegisterIM, "5", "10", t0.Add(time.Second)),
	}
	c, err := Consume(WithdrawalRequest{ProductID: p, Register: RegisterIM, Quantity: dec("10")}, batches, fifo)
	require.NoError(t, err)
	assert.True(t, c.Quantity.Equal(dec("10")))
	assert.True(t, Available(p, RegisterIM, batches).IsZero())
}

func TestConsume_ZeroQuantity(t *testing.T) {
	p := uuid.New()
	b := newTestBatch(t, p, RegisterIM, "5", "10", t0)

	c, err := Consume(WithdrawalRequest{ProductID: p, Register: RegisterIM, Quantity: decimal.Zero}, []*Batch{b}, fifo)
	require.NoError(t, err)
	assert.True(t, c.UnitCost.IsZero())
	assert.True(t, c.IsEmpty())
	assert.True(t, b.Quantity.Equal(dec("5")))
}

func TestConsume_IgnoresOtherProductsAndRegisters(t *testing.T) {
	p := uuid.New()
	other := newTestBatch(t, uuid.New(), RegisterND, "100", "1", t0.Add(-time.Hour))
	im := newTestBatch(t, p, RegisterIM, "100", "1", t0.Add(-time.Hour))
	nd := newTestBatch(t, p, RegisterND, "10", "7", t0)

	c, err := Consume(WithdrawalRequest{ProductID: p, Register: RegisterND, Quantity: dec("4")}, []*Batch{other, im, nd}, fifo)
	require.NoError(t, err)
	assert.True(t, c.UnitCost.Equal(dec("7")))
	assert.True(t, other.Quantity.Equal(dec("100")))
	assert.True(t, im.Quantity.Equal(dec("100")))
}

func TestWeightedUnitCost_RoundsHalfAwayFromZero(t *testing.T) {
	assert.True(t, WeightedUnitCost(dec("0.125"), dec("1")).Equal(dec("0.13")))
	assert.True(t, WeightedUnitCost(dec("-0.125"), dec("1")).Equal(dec("-0.13")))
	assert.True(t, WeightedUnitCost(dec("10"), decimal.Zero).IsZero())
}
