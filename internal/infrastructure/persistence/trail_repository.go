package persistence

import (
	"context"
	"time"

	"github.com/firesafe/ledger/internal/domain/ledger"
	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/firesafe/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormConsumptionRepository implements ledger.ConsumptionRepository using GORM
type GormConsumptionRepository struct {
	db *gorm.DB
}

// NewGormConsumptionRepository creates a new GormConsumptionRepository
func NewGormConsumptionRepository(db *gorm.DB) *GormConsumptionRepository {
	return &GormConsumptionRepository{db: db}
}

func (r *GormConsumptionRepository) FindBySaleLine(ctx context.Context, saleLineID uuid.UUID) (ledger.Trail, error) {
	var rows []models.ConsumptionRecordModel
	if err := r.db.WithContext(ctx).
		Where("sale_line_id = ?", saleLineID).
		Order("created_at ASC, sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	trail := make(ledger.Trail, len(rows))
	for i := range rows {
		trail[i] = rows[i].ToDomain()
	}
	return trail, nil
}

func (r *GormConsumptionRepository) ExistsForSaleLine(ctx context.Context, saleLineID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ConsumptionRecordModel{}).
		Where("sale_line_id = ?", saleLineID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormConsumptionRepository) CreateBatch(ctx context.Context, records []ledger.ConsumptionRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]models.ConsumptionRecordModel, len(records))
	for i, rec := range records {
		rows[i] = models.ConsumptionRecordModelFromDomain(rec)
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// GormRestockRepository implements ledger.RestockRepository using GORM
type GormRestockRepository struct {
	db *gorm.DB
}

// NewGormRestockRepository creates a new GormRestockRepository
func NewGormRestockRepository(db *gorm.DB) *GormRestockRepository {
	return &GormRestockRepository{db: db}
}

func (r *GormRestockRepository) FindBySaleLine(ctx context.Context, saleLineID uuid.UUID) ([]ledger.RestockRecord, error) {
	return r.find(ctx, r.db.WithContext(ctx).Where("sale_line_id = ?", saleLineID))
}

func (r *GormRestockRepository) FindByReturnLine(ctx context.Context, returnLineID uuid.UUID) ([]ledger.RestockRecord, error) {
	return r.find(ctx, r.db.WithContext(ctx).Where("return_line_id = ?", returnLineID))
}

func (r *GormRestockRepository) FindActiveByReturnLine(ctx context.Context, returnLineID uuid.UUID) ([]ledger.RestockRecord, error) {
	return r.find(ctx, r.db.WithContext(ctx).Where("return_line_id = ? AND cancelled_at IS NULL", returnLineID))
}

func (r *GormRestockRepository) find(_ context.Context, q *gorm.DB) ([]ledger.RestockRecord, error) {
	var rows []models.RestockRecordModel
	if err := q.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ledger.RestockRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

func (r *GormRestockRepository) CreateBatch(ctx context.Context, records []ledger.RestockRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]models.RestockRecordModel, len(records))
	for i, rec := range records {
		rows[i] = models.RestockRecordModelFromDomain(rec)
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// MarkCancelled stamps the records as cancelled. It fails with a concurrency
// conflict when any of them was cancelled in the meantime.
func (r *GormRestockRepository) MarkCancelled(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.RestockRecordModel{}).
		Where("id IN ? AND cancelled_at IS NULL", ids).
		Update("cancelled_at", at.UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != int64(len(ids)) {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

var (
	_ ledger.ConsumptionRepository = (*GormConsumptionRepository)(nil)
	_ ledger.RestockRepository     = (*GormRestockRepository)(nil)
)
