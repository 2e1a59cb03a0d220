package persistence

import (
	"context"
	"errors"

	"github.com/firesafe/ledger/internal/domain/costing"
	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/firesafe/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSessionRepository implements costing.SessionRepository using GORM
type GormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository creates a new GormSessionRepository
func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

func (r *GormSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*costing.Session, error) {
	return r.find(r.db.WithContext(ctx), id)
}

func (r *GormSessionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*costing.Session, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormSessionRepository) find(q *gorm.DB, id uuid.UUID) (*costing.Session, error) {
	var m models.CostingSessionModel
	if err := q.Preload("Lines").Preload("Snapshots").First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain()
}

func (r *GormSessionRepository) FindAll(ctx context.Context, filter costing.SessionFilter) ([]*costing.Session, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.CostingSessionModel{})
	if filter.SupplyID != nil {
		q = q.Where("supply_id = ?", *filter.SupplyID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.CostingSessionModel
	if err := paginate(q.Order(orderBy(filter.OrderBy, filter.OrderDir, SessionSortFields, "created_at", "DESC")), filter.Page, filter.PageSize).
		Preload("Lines").Preload("Snapshots").
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]*costing.Session, 0, len(rows))
	for i := range rows {
		s, err := rows[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, nil
}

// Save inserts a new session or updates an existing one whose stored version
// is older than the session's. Lines and snapshots are replaced wholesale.
func (r *GormSessionRepository) Save(ctx context.Context, session *costing.Session) error {
	m, err := models.CostingSessionModelFromDomain(session)
	if err != nil {
		return err
	}
	db := r.db.WithContext(ctx)

	result := db.Model(&models.CostingSessionModel{}).
		Where("id = ? AND version < ?", m.ID, m.Version).
		Updates(map[string]any{
			"supply_code":     m.SupplyCode,
			"register":        m.Register,
			"exchange_rate":   m.ExchangeRate,
			"percentage_fees": m.PercentageFeesJSON,
			"absolute_fees":   m.AbsoluteFeesJSON,
			"method":          m.Method,
			"status":          m.Status,
			"calculated_at":   m.CalculatedAt,
			"finalized_at":    m.FinalizedAt,
			"version":         m.Version,
			"updated_at":      m.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&models.CostingSessionModel{}).Where("id = ?", m.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return shared.ErrConcurrencyConflict
		}
		return db.Create(m).Error
	}

	if err := db.Where("session_id = ?", m.ID).Delete(&models.CostingLineModel{}).Error; err != nil {
		return err
	}
	if err := db.Where("session_id = ?", m.ID).Delete(&models.CostingSnapshotModel{}).Error; err != nil {
		return err
	}
	if len(m.Lines) > 0 {
		if err := db.Create(&m.Lines).Error; err != nil {
			return err
		}
	}
	if len(m.Snapshots) > 0 {
		if err := db.Create(&m.Snapshots).Error; err != nil {
			return err
		}
	}
	return nil
}

var _ costing.SessionRepository = (*GormSessionRepository)(nil)
