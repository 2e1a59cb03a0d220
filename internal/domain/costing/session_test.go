package costing

import (
	"testing"
	"time"

	"github.com/firesafe/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newDraft(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(uuid.New(), "GTD-77", ledger.RegisterND, dec("140"), "")
	require.NoError(t, err)
	return s
}

func TestNewSession(t *testing.T) {
	s := newDraft(t)
	assert.Equal(t, StatusDraft, s.Status)
	assert.Equal(t, "by_quantity", s.Method.String())
	assert.Len(t, s.PercentageFees, 7)
	assert.Len(t, s.AbsoluteFees, 3)
	assert.Equal(t, 1, s.Version)

	_, err := NewSession(uuid.New(), "X", ledger.RegisterND, dec("0"), "")
	assert.Error(t, err)
	_, err = NewSession(uuid.Nil, "X", ledger.RegisterND, dec("1"), "")
	assert.Error(t, err)
}

func TestSession_Lifecycle(t *testing.T) {
	s := newDraft(t)
	require.NoError(t, s.SetLines([]Line{line("30", "10"), line("70", "20")}))

	err := s.Finalize(now)
	assert.ErrorIs(t, err, ErrNotCalculated)

	require.NoError(t, s.UpdateTerms(dec("150"), []Fee{{Name: "vat", Amount: dec("0.12")}}, []Fee{{Name: "customs", Amount: dec("1000")}}))
	require.NoError(t, s.Recalculate(qtyMethod, now))
	require.Len(t, s.Snapshots, 2)
	require.NotNil(t, s.CalculatedAt)

	t.Run("draft edits drop snapshots", func(t *testing.T) {
		require.NoError(t, s.UpdateTerms(dec("150"), s.PercentageFees, s.AbsoluteFees))
		assert.Empty(t, s.Snapshots)
		require.NoError(t, s.Recalculate(qtyMethod, now))
	})

	require.NoError(t, s.Finalize(now))
	assert.True(t, s.IsFinalized())
	assert.Equal(t, now, *s.FinalizedAt)

	t.Run("finalized is terminal", func(t *testing.T) {
		assert.ErrorIs(t, s.Finalize(now), ErrSessionFinalized)
		assert.ErrorIs(t, s.Recalculate(qtyMethod, now), ErrSessionFinalized)
		assert.ErrorIs(t, s.SetLines(nil), ErrSessionFinalized)
		assert.ErrorIs(t, s.UpdateTerms(dec("1"), nil, nil), ErrSessionFinalized)
		assert.Len(t, s.Snapshots, 2)
	})

	t.Run("receipt batches carry landed cost and code", func(t *testing.T) {
		batches, err := s.ReceiptBatches(now)
		require.NoError(t, err)
		require.Len(t, batches, 2)
		for i, b := range batches {
			assert.Equal(t, ledger.RegisterND, b.Register)
			assert.Equal(t, "GTD-77", b.Code)
			assert.True(t, b.UnitCost.Equal(s.Snapshots[i].UnitCost))
			assert.True(t, b.Quantity.Equal(s.Snapshots[i].Quantity))
			assert.Equal(t, s.Snapshots[i].ProductID, b.ProductID)
		}
	})
}

func TestSession_SetLinesRequiresProduct(t *testing.T) {
	s := newDraft(t)
	l := line("1", "1")
	l.ProductID = uuid.Nil
	assert.Error(t, s.SetLines([]Line{l}))
}

func TestStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, StatusDraft.CanTransitionTo(StatusFinalized))
	assert.False(t, StatusFinalized.CanTransitionTo(StatusDraft))
	assert.False(t, StatusFinalized.CanTransitionTo(StatusFinalized))
}
