package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormStockLevelProvider implements StockLevelProvider using GORM.
// It aggregates the stock_balances table directly.
type GormStockLevelProvider struct {
	db *gorm.DB
}

// NewGormStockLevelProvider creates a new GormStockLevelProvider.
func NewGormStockLevelProvider(db *gorm.DB) *GormStockLevelProvider {
	return &GormStockLevelProvider{db: db}
}

// TotalQuantityByRegister returns the summed balance per register.
func (p *GormStockLevelProvider) TotalQuantityByRegister(ctx context.Context) (map[string]float64, error) {
	type result struct {
		Register string  `gorm:"column:register"`
		Quantity float64 `gorm:"column:quantity"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("stock_balances").
		Select("register, COALESCE(SUM(quantity), 0) as quantity").
		Group("register").
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	m := make(map[string]float64, len(results))
	for _, r := range results {
		m[r.Register] = r.Quantity
	}
	return m, nil
}
