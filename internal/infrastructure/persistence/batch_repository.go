package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/firesafe/ledger/internal/domain/ledger"
	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/firesafe/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBatchRepository implements ledger.BatchRepository using GORM
type GormBatchRepository struct {
	db *gorm.DB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

func (r *GormBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Batch, error) {
	var m models.BatchModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

func (r *GormBatchRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*ledger.Batch, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.BatchModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("received_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toBatches(rows), nil
}

// FindConsumableForUpdate locks the product/register's consumable batches in
// consumption order so concurrent withdrawals serialize on the same rows.
func (r *GormBatchRepository) FindConsumableForUpdate(ctx context.Context, productID uuid.UUID, register ledger.Register) ([]*ledger.Batch, error) {
	var rows []models.BatchModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND register = ? AND archived_at IS NULL AND quantity > 0", productID, register).
		Order("received_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toBatches(rows), nil
}

func (r *GormBatchRepository) FindNewestActive(ctx context.Context, productID uuid.UUID, register ledger.Register) (*ledger.Batch, error) {
	var m models.BatchModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND register = ? AND archived_at IS NULL", productID, register).
		Order("received_at DESC, id DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

func (r *GormBatchRepository) FindAll(ctx context.Context, filter ledger.BatchFilter) ([]*ledger.Batch, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.BatchModel{})
	if filter.ProductID != nil {
		q = q.Where("product_id = ?", *filter.ProductID)
	}
	if filter.Register != nil {
		q = q.Where("register = ?", *filter.Register)
	}
	if filter.Code != "" {
		q = q.Where("code = ?", filter.Code)
	}
	if !filter.IncludeArchived {
		q = q.Where("archived_at IS NULL")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.BatchModel
	if err := paginate(q.Order(orderBy(filter.OrderBy, filter.OrderDir, BatchSortFields, "received_at", "ASC")), filter.Page, filter.PageSize).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toBatches(rows), total, nil
}

func (r *GormBatchRepository) FindArchivable(ctx context.Context, before time.Time, limit int) ([]*ledger.Batch, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []models.BatchModel
	if err := r.db.WithContext(ctx).
		Where("archived_at IS NULL AND quantity <= 0 AND updated_at < ?", before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toBatches(rows), nil
}

func (r *GormBatchRepository) FindArchivedWithStock(ctx context.Context, limit int) ([]*ledger.Batch, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []models.BatchModel
	if err := r.db.WithContext(ctx).
		Where("archived_at IS NOT NULL AND quantity > 0").
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toBatches(rows), nil
}

func (r *GormBatchRepository) SumByProductRegister(ctx context.Context, productID *uuid.UUID) (map[uuid.UUID]map[ledger.Register]decimal.Decimal, error) {
	var rows []struct {
		ProductID uuid.UUID
		Register  ledger.Register
		Quantity  decimal.Decimal
	}
	q := r.db.WithContext(ctx).Model(&models.BatchModel{})
	if productID != nil {
		q = q.Where("product_id = ?", *productID)
	}
	if err := q.
		Select("product_id, register, COALESCE(SUM(quantity), 0) AS quantity").
		Group("product_id, register").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]map[ledger.Register]decimal.Decimal)
	for _, row := range rows {
		if out[row.ProductID] == nil {
			out[row.ProductID] = make(map[ledger.Register]decimal.Decimal, 2)
		}
		out[row.ProductID][row.Register] = row.Quantity
	}
	return out, nil
}

func (r *GormBatchRepository) Save(ctx context.Context, batch *ledger.Batch) error {
	return r.db.WithContext(ctx).Save(models.BatchModelFromDomain(batch)).Error
}

func (r *GormBatchRepository) SaveAll(ctx context.Context, batches []*ledger.Batch) error {
	if len(batches) == 0 {
		return nil
	}
	rows := make([]*models.BatchModel, len(batches))
	for i, b := range batches {
		rows[i] = models.BatchModelFromDomain(b)
	}
	return r.db.WithContext(ctx).Save(&rows).Error
}

func toBatches(rows []models.BatchModel) []*ledger.Batch {
	out := make([]*ledger.Batch, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

var _ ledger.BatchRepository = (*GormBatchRepository)(nil)
