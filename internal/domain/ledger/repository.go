package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchFilter narrows batch listings
type BatchFilter struct {
	ProductID       *uuid.UUID
	Register        *Register
	Code            string
	IncludeArchived bool
	OrderBy         string
	OrderDir        string
	Page            int
	PageSize        int
}

// BatchRepository persists batches
type BatchRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Batch, error)
	// FindByIDs returns the batches found; missing IDs are skipped
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Batch, error)
	// FindConsumableForUpdate locks and returns non-archived batches with
	// quantity > 0 ordered by (received_at, id)
	FindConsumableForUpdate(ctx context.Context, productID uuid.UUID, register Register) ([]*Batch, error)
	// FindNewestActive returns the newest non-archived batch, or nil
	FindNewestActive(ctx context.Context, productID uuid.UUID, register Register) (*Batch, error)
	FindAll(ctx context.Context, filter BatchFilter) ([]*Batch, int64, error)
	// FindArchivable returns empty non-archived batches last updated before the cutoff
	FindArchivable(ctx context.Context, before time.Time, limit int) ([]*Batch, error)
	// FindArchivedWithStock returns archived batches whose quantity is positive again
	FindArchivedWithStock(ctx context.Context, limit int) ([]*Batch, error)
	// SumByProductRegister returns the batch quantity totals keyed by product and
	// register, archived batches included. A nil productID sums every product.
	SumByProductRegister(ctx context.Context, productID *uuid.UUID) (map[uuid.UUID]map[Register]decimal.Decimal, error)
	Save(ctx context.Context, batch *Batch) error
	SaveAll(ctx context.Context, batches []*Batch) error
}

// StockBalanceRepository persists register balances
type StockBalanceRepository interface {
	Get(ctx context.Context, productID uuid.UUID, register Register) (*StockBalance, error)
	// GetOrCreateForUpdate locks the balance row, inserting a zero row first if needed
	GetOrCreateForUpdate(ctx context.Context, productID uuid.UUID, register Register) (*StockBalance, error)
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]*StockBalance, error)
	FindAll(ctx context.Context) ([]*StockBalance, error)
	Save(ctx context.Context, balance *StockBalance) error
}

// ConsumptionRepository persists the sale consumption trail
type ConsumptionRepository interface {
	// FindBySaleLine returns the trail ordered by (created_at, sequence)
	FindBySaleLine(ctx context.Context, saleLineID uuid.UUID) (Trail, error)
	ExistsForSaleLine(ctx context.Context, saleLineID uuid.UUID) (bool, error)
	CreateBatch(ctx context.Context, records []ConsumptionRecord) error
}

// RestockRepository persists return credits
type RestockRepository interface {
	FindBySaleLine(ctx context.Context, saleLineID uuid.UUID) ([]RestockRecord, error)
	FindByReturnLine(ctx context.Context, returnLineID uuid.UUID) ([]RestockRecord, error)
	FindActiveByReturnLine(ctx context.Context, returnLineID uuid.UUID) ([]RestockRecord, error)
	CreateBatch(ctx context.Context, records []RestockRecord) error
	MarkCancelled(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// JournalFilter narrows journal listings
type JournalFilter struct {
	ProductID     *uuid.UUID
	Register      *Register
	ReferenceType ReferenceType
	ReferenceID   *uuid.UUID
	From          *time.Time
	To            *time.Time
	OrderBy       string
	OrderDir      string
	Page          int
	PageSize      int
}

// JournalRepository persists inventory transactions
type JournalRepository interface {
	Create(ctx context.Context, tx *InventoryTransaction) error
	CreateBatch(ctx context.Context, txs []*InventoryTransaction) error
	FindAll(ctx context.Context, filter JournalFilter) ([]*InventoryTransaction, int64, error)
}

// SnapshotRepository persists daily stock snapshots
type SnapshotRepository interface {
	ReplaceDay(ctx context.Context, day time.Time, snapshots []*StockSnapshot) error
	FindByDate(ctx context.Context, date time.Time) ([]*StockSnapshot, error)
}
