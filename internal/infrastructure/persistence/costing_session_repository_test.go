package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/firesafe/ledger/internal/domain/costing"
	"github.com/firesafe/ledger/internal/domain/ledger"
	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/firesafe/ledger/internal/domain/shared/strategy"
	"github.com/firesafe/ledger/internal/infrastructure/strategy/apportionment"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDraftSession(t *testing.T) *costing.Session {
	t.Helper()
	s, err := costing.NewSession(uuid.New(), "SUP-001", ledger.RegisterND, dec("12500"), strategy.ApportionMethodByQuantity)
	require.NoError(t, err)
	require.NoError(t, s.UpdateTerms(dec("12500"),
		[]costing.Fee{{Name: "vat", Amount: dec("0.12")}},
		[]costing.Fee{{Name: "customs", Amount: dec("900000")}},
	))
	require.NoError(t, s.SetLines([]costing.Line{
		{ProductID: uuid.New(), Name: "Extinguisher OP-5", Quantity: dec("30"), SourcePrice: dec("10")},
		{ProductID: uuid.New(), Name: "Hose 20m", Quantity: dec("60"), SourcePrice: dec("4")},
	}))
	return s
}

func TestGormSessionRepository(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormSessionRepository(db)
	ctx := context.Background()

	session := newDraftSession(t)
	require.NoError(t, repo.Save(ctx, session))

	t.Run("FindByID loads lines in order", func(t *testing.T) {
		got, err := repo.FindByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, costing.StatusDraft, got.Status)
		assert.Equal(t, "SUP-001", got.SupplyCode)
		require.Len(t, got.Lines, 2)
		assert.Equal(t, "Extinguisher OP-5", got.Lines[0].Name)
		assert.Equal(t, "Hose 20m", got.Lines[1].Name)
		require.Len(t, got.AbsoluteFees, 1)
		assert.True(t, got.AbsoluteFees[0].Amount.Equal(dec("900000")))
		assert.Empty(t, got.Snapshots)
	})

	t.Run("FindByID not found", func(t *testing.T) {
		_, err := repo.FindByIDForUpdate(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("recalculated session stores snapshots", func(t *testing.T) {
		got, err := repo.FindByIDForUpdate(ctx, session.ID)
		require.NoError(t, err)
		require.NoError(t, got.Recalculate(apportionment.NewByQuantityStrategy(), time.Now()))
		require.NoError(t, repo.Save(ctx, got))

		reloaded, err := repo.FindByID(ctx, session.ID)
		require.NoError(t, err)
		require.Len(t, reloaded.Snapshots, 2)
		assert.NotNil(t, reloaded.CalculatedAt)
		assert.True(t, reloaded.Snapshots[0].AbsoluteShare("customs").Equal(dec("300000")))
		assert.True(t, reloaded.Snapshots[1].AbsoluteShare("customs").Equal(dec("600000")))
		assert.Equal(t, got.Version, reloaded.Version)
	})

	t.Run("stale version is rejected", func(t *testing.T) {
		stale, err := repo.FindByID(ctx, session.ID)
		require.NoError(t, err)
		fresh, err := repo.FindByID(ctx, session.ID)
		require.NoError(t, err)

		require.NoError(t, fresh.SetLines(fresh.Lines[:1]))
		require.NoError(t, repo.Save(ctx, fresh))

		require.NoError(t, stale.SetLines(stale.Lines[1:]))
		err = repo.Save(ctx, stale)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

		reloaded, err := repo.FindByID(ctx, session.ID)
		require.NoError(t, err)
		require.Len(t, reloaded.Lines, 1)
		assert.Equal(t, "Extinguisher OP-5", reloaded.Lines[0].Name)
	})

	t.Run("FindAll by status", func(t *testing.T) {
		other := newDraftSession(t)
		require.NoError(t, other.Recalculate(apportionment.NewByQuantityStrategy(), time.Now()))
		require.NoError(t, other.Finalize(time.Now()))
		require.NoError(t, repo.Save(ctx, other))

		drafts, total, err := repo.FindAll(ctx, costing.SessionFilter{Status: costing.StatusDraft})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, session.ID, drafts[0].ID)

		finalized, total, err := repo.FindAll(ctx, costing.SessionFilter{Status: costing.StatusFinalized})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, finalized[0].Snapshots, 2)

		all, total, err := repo.FindAll(ctx, costing.SessionFilter{OrderBy: "supply_code", OrderDir: "asc"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, all, 2)
	})
}
