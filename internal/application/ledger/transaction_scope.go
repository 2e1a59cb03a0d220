package ledger

import (
	"context"

	"github.com/firesafe/ledger/internal/domain/ledger"
)

// TransactionScope provides transactional access to ledger repositories.
// Everything done through the repositories handed to fn is committed or
// rolled back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the ledger repositories within a transaction.
// All repositories returned share the same underlying database transaction.
//
// Lock order inside a transaction is the balance row first, then the batch rows.
type TransactionalRepositories interface {
	Batches() ledger.BatchRepository
	Balances() ledger.StockBalanceRepository
	Consumptions() ledger.ConsumptionRepository
	Restocks() ledger.RestockRepository
	Journal() ledger.JournalRepository
	Snapshots() ledger.SnapshotRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	batches      ledger.BatchRepository
	balances     ledger.StockBalanceRepository
	consumptions ledger.ConsumptionRepository
	restocks     ledger.RestockRepository
	journal      ledger.JournalRepository
	snapshots    ledger.SnapshotRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	batches ledger.BatchRepository,
	balances ledger.StockBalanceRepository,
	consumptions ledger.ConsumptionRepository,
	restocks ledger.RestockRepository,
	journal ledger.JournalRepository,
	snapshots ledger.SnapshotRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		batches:      batches,
		balances:     balances,
		consumptions: consumptions,
		restocks:     restocks,
		journal:      journal,
		snapshots:    snapshots,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) Batches() ledger.BatchRepository         { return s.batches }
func (s *NoOpTransactionScope) Balances() ledger.StockBalanceRepository { return s.balances }
func (s *NoOpTransactionScope) Consumptions() ledger.ConsumptionRepository {
	return s.consumptions
}
func (s *NoOpTransactionScope) Restocks() ledger.RestockRepository   { return s.restocks }
func (s *NoOpTransactionScope) Journal() ledger.JournalRepository    { return s.journal }
func (s *NoOpTransactionScope) Snapshots() ledger.SnapshotRepository { return s.snapshots }

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
)
