package persistence

import (
	"context"

	appcosting "github.com/firesafe/ledger/internal/application/costing"
	appledger "github.com/firesafe/ledger/internal/application/ledger"
	"github.com/firesafe/ledger/internal/domain/costing"
	"github.com/firesafe/ledger/internal/domain/ledger"
	"gorm.io/gorm"
)

// GormTransactionScope implements the ledger and costing TransactionScopes
// using GORM transactions.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// LedgerScope returns the scope as seen by the ledger service
func (s *GormTransactionScope) LedgerScope() appledger.TransactionScope {
	return ledgerScope{s}
}

// CostingScope returns the scope as seen by the costing service
func (s *GormTransactionScope) CostingScope() appcosting.TransactionScope {
	return costingScope{s}
}

func (s *GormTransactionScope) execute(ctx context.Context, fn func(repos *GormRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormRepositories(tx))
	})
}

type ledgerScope struct{ s *GormTransactionScope }

func (l ledgerScope) Execute(ctx context.Context, fn func(repos appledger.TransactionalRepositories) error) error {
	return l.s.execute(ctx, func(repos *GormRepositories) error { return fn(repos) })
}

type costingScope struct{ s *GormTransactionScope }

func (c costingScope) Execute(ctx context.Context, fn func(repos appcosting.TransactionalRepositories) error) error {
	return c.s.execute(ctx, func(repos *GormRepositories) error { return fn(repos) })
}

// GormRepositories hands out every repository bound to one *gorm.DB, which
// is a transaction inside Execute and the pool otherwise.
type GormRepositories struct {
	db *gorm.DB
}

// NewGormRepositories creates repositories bound to db
func NewGormRepositories(db *gorm.DB) *GormRepositories {
	return &GormRepositories{db: db}
}

func (r *GormRepositories) Batches() ledger.BatchRepository { return NewGormBatchRepository(r.db) }
func (r *GormRepositories) Balances() ledger.StockBalanceRepository {
	return NewGormStockBalanceRepository(r.db)
}
func (r *GormRepositories) Consumptions() ledger.ConsumptionRepository {
	return NewGormConsumptionRepository(r.db)
}
func (r *GormRepositories) Restocks() ledger.RestockRepository { return NewGormRestockRepository(r.db) }
func (r *GormRepositories) Journal() ledger.JournalRepository  { return NewGormJournalRepository(r.db) }
func (r *GormRepositories) Snapshots() ledger.SnapshotRepository {
	return NewGormSnapshotRepository(r.db)
}
func (r *GormRepositories) Sessions() costing.SessionRepository { return NewGormSessionRepository(r.db) }

var (
	_ appledger.TransactionScope           = ledgerScope{}
	_ appcosting.TransactionScope          = costingScope{}
	_ appcosting.TransactionalRepositories = (*GormRepositories)(nil)
)
