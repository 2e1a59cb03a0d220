package costing

import (
	"context"

	appledger "github.com/firesafe/ledger/internal/application/ledger"
	"github.com/firesafe/ledger/internal/domain/costing"
)

// TransactionScope provides transactional access to the costing session
// repository together with the ledger repositories a finalize writes to.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories shares one transaction between the session
// repository and the ledger repositories.
type TransactionalRepositories interface {
	appledger.TransactionalRepositories
	Sessions() costing.SessionRepository
}
