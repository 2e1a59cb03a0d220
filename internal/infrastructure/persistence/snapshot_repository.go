package persistence

import (
	"context"
	"time"

	"github.com/firesafe/ledger/internal/domain/ledger"
	"github.com/firesafe/ledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormSnapshotRepository implements ledger.SnapshotRepository using GORM
type GormSnapshotRepository struct {
	db *gorm.DB
}

// NewGormSnapshotRepository creates a new GormSnapshotRepository
func NewGormSnapshotRepository(db *gorm.DB) *GormSnapshotRepository {
	return &GormSnapshotRepository{db: db}
}

// ReplaceDay replaces every stored row of the day with snapshots. Products
// missing from snapshots lose their row for that day.
func (r *GormSnapshotRepository) ReplaceDay(ctx context.Context, day time.Time, snapshots []*ledger.StockSnapshot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("date = ?", ledger.SnapshotDay(day)).
			Delete(&models.StockSnapshotModel{}).Error; err != nil {
			return err
		}
		if len(snapshots) == 0 {
			return nil
		}
		rows := make([]*models.StockSnapshotModel, len(snapshots))
		for i, s := range snapshots {
			rows[i] = models.StockSnapshotModelFromDomain(s)
		}
		return tx.Create(&rows).Error
	})
}

func (r *GormSnapshotRepository) FindByDate(ctx context.Context, date time.Time) ([]*ledger.StockSnapshot, error) {
	var rows []models.StockSnapshotModel
	if err := r.db.WithContext(ctx).
		Where("date = ?", ledger.SnapshotDay(date)).
		Order("product_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*ledger.StockSnapshot, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

var _ ledger.SnapshotRepository = (*GormSnapshotRepository)(nil)
