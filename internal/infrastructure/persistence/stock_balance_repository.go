package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/firesafe/ledger/internal/domain/ledger"
	"github.com/firesafe/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockBalanceRepository implements ledger.StockBalanceRepository using GORM
type GormStockBalanceRepository struct {
	db *gorm.DB
}

// NewGormStockBalanceRepository creates a new GormStockBalanceRepository
func NewGormStockBalanceRepository(db *gorm.DB) *GormStockBalanceRepository {
	return &GormStockBalanceRepository{db: db}
}

// Get returns the balance or a zero balance when the row does not exist
func (r *GormStockBalanceRepository) Get(ctx context.Context, productID uuid.UUID, register ledger.Register) (*ledger.StockBalance, error) {
	var m models.StockBalanceModel
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND register = ?", productID, register).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.NewStockBalance(productID, register), nil
	}
	if err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

func (r *GormStockBalanceRepository) GetOrCreateForUpdate(ctx context.Context, productID uuid.UUID, register ledger.Register) (*ledger.StockBalance, error) {
	seed := &models.StockBalanceModel{
		ProductID: productID,
		Register:  register,
		Quantity:  decimal.Zero,
		UpdatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(seed).Error; err != nil {
		return nil, err
	}

	var m models.StockBalanceModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND register = ?", productID, register).
		First(&m).Error; err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

func (r *GormStockBalanceRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]*ledger.StockBalance, error) {
	var rows []models.StockBalanceModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("register ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toBalances(rows), nil
}

func (r *GormStockBalanceRepository) FindAll(ctx context.Context) ([]*ledger.StockBalance, error) {
	var rows []models.StockBalanceModel
	if err := r.db.WithContext(ctx).Order("product_id ASC, register ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toBalances(rows), nil
}

func (r *GormStockBalanceRepository) Save(ctx context.Context, balance *ledger.StockBalance) error {
	return r.db.WithContext(ctx).Save(models.StockBalanceModelFromDomain(balance)).Error
}

func toBalances(rows []models.StockBalanceModel) []*ledger.StockBalance {
	out := make([]*ledger.StockBalance, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

var _ ledger.StockBalanceRepository = (*GormStockBalanceRepository)(nil)
