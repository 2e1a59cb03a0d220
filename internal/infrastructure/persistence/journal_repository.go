package persistence

import (
	"context"

	"github.com/firesafe/ledger/internal/domain/ledger"
	"github.com/firesafe/ledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormJournalRepository implements ledger.JournalRepository using GORM.
// The journal is append-only.
type GormJournalRepository struct {
	db *gorm.DB
}

// NewGormJournalRepository creates a new GormJournalRepository
func NewGormJournalRepository(db *gorm.DB) *GormJournalRepository {
	return &GormJournalRepository{db: db}
}

func (r *GormJournalRepository) Create(ctx context.Context, tx *ledger.InventoryTransaction) error {
	return r.db.WithContext(ctx).Create(models.InventoryTransactionModelFromDomain(tx)).Error
}

func (r *GormJournalRepository) CreateBatch(ctx context.Context, txs []*ledger.InventoryTransaction) error {
	if len(txs) == 0 {
		return nil
	}
	rows := make([]*models.InventoryTransactionModel, len(txs))
	for i, tx := range txs {
		rows[i] = models.InventoryTransactionModelFromDomain(tx)
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *GormJournalRepository) FindAll(ctx context.Context, filter ledger.JournalFilter) ([]*ledger.InventoryTransaction, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.InventoryTransactionModel{})
	if filter.ProductID != nil {
		q = q.Where("product_id = ?", *filter.ProductID)
	}
	if filter.Register != nil {
		q = q.Where("register = ?", *filter.Register)
	}
	if filter.ReferenceType != "" {
		q = q.Where("reference_type = ?", filter.ReferenceType)
	}
	if filter.ReferenceID != nil {
		q = q.Where("reference_id = ?", *filter.ReferenceID)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at < ?", *filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.InventoryTransactionModel
	if err := paginate(q.Order(orderBy(filter.OrderBy, filter.OrderDir, JournalSortFields, "created_at", "ASC")), filter.Page, filter.PageSize).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]*ledger.InventoryTransaction, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, total, nil
}

var _ ledger.JournalRepository = (*GormJournalRepository)(nil)
