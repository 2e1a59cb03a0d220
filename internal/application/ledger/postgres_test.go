package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	appledger "github.com/firesafe/ledger/internal/application/ledger"
	"github.com/firesafe/ledger/internal/domain/ledger"
	"github.com/firesafe/ledger/internal/infrastructure/persistence"
	"github.com/firesafe/ledger/internal/infrastructure/strategy"
	"github.com/firesafe/ledger/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostgresService(t *testing.T) (*appledger.Service, *testutil.TestDB) {
	t.Helper()
	tdb := testutil.NewPostgresDB(t)
	registry, err := strategy.NewRegistryWithDefaults()
	require.NoError(t, err)
	svc := appledger.NewService(
		persistence.NewGormTransactionScope(tdb.DB).LedgerScope(),
		persistence.NewGormRepositories(tdb.DB),
		registry,
		appledger.Options{},
		nil,
	)
	return svc, tdb
}

func TestPostgres_ConcurrentSettlementsNeverOversell(t *testing.T) {
	svc, _ := newPostgresService(t)
	ctx := context.Background()
	product := uuid.New()

	_, err := svc.CreateBatch(ctx, appledger.CreateBatchRequest{
		ProductID: product, Register: ledger.RegisterIM, Quantity: dec("5"), UnitCost: dec("120"),
	})
	require.NoError(t, err)

	const sellers = 12
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		settled      int
		insufficient int
		unexpected   []error
	)
	for i := 0; i < sellers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Settle(ctx, appledger.SettleRequest{
				SaleLineID:  uuid.New(),
				ProductID:   product,
				Quantity:    dec("1"),
				PaymentType: string(ledger.PaymentCardWithReceipt),
			})
			mu.Lock()
			defer mu.Unlock()
			var stockErr *ledger.InsufficientStockError
			switch {
			case err == nil:
				settled++
			case errors.As(err, &stockErr):
				insufficient++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, unexpected)
	assert.Equal(t, 5, settled)
	assert.Equal(t, sellers-5, insufficient)

	balances, err := svc.GetBalances(ctx, product)
	require.NoError(t, err)
	assert.True(t, balances.IM.IsZero(), "IM balance = %s", balances.IM)

	drift, err := svc.Reconcile(ctx, product)
	require.NoError(t, err)
	assert.Empty(t, drift.Drifts)
}

func TestPostgres_ReturnAndCancelRoundTrip(t *testing.T) {
	svc, _ := newPostgresService(t)
	ctx := context.Background()
	product := uuid.New()

	for _, req := range []appledger.CreateBatchRequest{
		{ProductID: product, Register: ledger.RegisterND, Quantity: dec("4"), UnitCost: dec("90"), Code: "SUP-11"},
		{ProductID: product, Register: ledger.RegisterIM, Quantity: dec("3"), UnitCost: dec("100")},
	} {
		_, err := svc.CreateBatch(ctx, req)
		require.NoError(t, err)
	}

	saleLine := uuid.New()
	settled, err := svc.Settle(ctx, appledger.SettleRequest{
		SaleLineID:  saleLine,
		ProductID:   product,
		Quantity:    dec("6"),
		PaymentType: string(ledger.PaymentCashNoReceipt),
	})
	require.NoError(t, err)
	assert.Len(t, settled.Trail, 2)

	returnLine := uuid.New()
	_, err = svc.Reverse(ctx, appledger.ReturnRequest{ReturnLineID: returnLine, SaleLineID: saleLine, Quantity: dec("6")})
	require.NoError(t, err)

	balances, err := svc.GetBalances(ctx, product)
	require.NoError(t, err)
	assert.Equal(t, "4", balances.ND.String())
	assert.Equal(t, "3", balances.IM.String())

	_, err = svc.CancelReturn(ctx, returnLine)
	require.NoError(t, err)
	balances, err = svc.GetBalances(ctx, product)
	require.NoError(t, err)
	assert.True(t, balances.ND.IsZero(), "ND = %s", balances.ND)
	assert.Equal(t, "1", balances.IM.String())

	journal, total, err := svc.ListJournal(ctx, appledger.JournalListFilter{ProductID: &product, Page: 1, PageSize: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(len(journal)), total)
	assert.NotEmpty(t, journal)
}

func TestPostgres_ConcurrentDuplicatesApplyOnce(t *testing.T) {
	svc, _ := newPostgresService(t)
	ctx := context.Background()
	product := uuid.New()

	_, err := svc.CreateBatch(ctx, appledger.CreateBatchRequest{
		ProductID: product, Register: ledger.RegisterIM, Quantity: dec("20"), UnitCost: dec("50"),
	})
	require.NoError(t, err)

	const clients = 8
	run := func(fn func() error) (applied int, rejected []error) {
		var (
			wg sync.WaitGroup
			mu sync.Mutex
		)
		for i := 0; i < clients; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := fn()
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					applied++
					return
				}
				rejected = append(rejected, err)
			}()
		}
		wg.Wait()
		return applied, rejected
	}

	saleLine := uuid.New()
	applied, rejected := run(func() error {
		_, err := svc.Settle(ctx, appledger.SettleRequest{
			SaleLineID:  saleLine,
			ProductID:   product,
			Quantity:    dec("10"),
			PaymentType: string(ledger.PaymentCashWithReceipt),
		})
		return err
	})
	assert.Equal(t, 1, applied)
	for _, err := range rejected {
		assert.ErrorIs(t, err, ledger.ErrSaleLineAlreadySettled)
	}

	returnLine := uuid.New()
	applied, rejected = run(func() error {
		_, err := svc.Reverse(ctx, appledger.ReturnRequest{
			ReturnLineID: returnLine, SaleLineID: saleLine, Quantity: dec("4"),
		})
		return err
	})
	assert.Equal(t, 1, applied)
	for _, err := range rejected {
		assert.ErrorIs(t, err, ledger.ErrReturnAlreadyApplied)
	}

	trail, err := svc.GetTrail(ctx, saleLine)
	require.NoError(t, err)
	assert.True(t, trail.Returnable.Equal(dec("6")), "returnable = %s", trail.Returnable)

	balances, err := svc.GetBalances(ctx, product)
	require.NoError(t, err)
	assert.True(t, balances.IM.Equal(dec("14")), "IM = %s", balances.IM)
}
