package models

import (
	"time"

	"github.com/firesafe/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchModel is the persistence model for ledger.Batch.
type BatchModel struct {
	BaseModel
	ProductID  uuid.UUID          `gorm:"type:uuid;not null;index:idx_batches_consumable,priority:1"`
	Register   ledger.Register    `gorm:"type:varchar(2);not null;index:idx_batches_consumable,priority:2"`
	Quantity   decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	UnitCost   decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	ReceivedAt time.Time          `gorm:"not null;index:idx_batches_consumable,priority:3"`
	Code       string             `gorm:"type:varchar(100);index"`
	Source     ledger.BatchSource `gorm:"type:varchar(20);not null"`
	ArchivedAt *time.Time         `gorm:"index"`
}

func (BatchModel) TableName() string { return "batches" }

func (m *BatchModel) ToDomain() *ledger.Batch {
	return &ledger.Batch{
		BaseEntity: m.BaseModel.ToDomain(),
		ProductID:  m.ProductID,
		Register:   m.Register,
		Quantity:   m.Quantity,
		UnitCost:   m.UnitCost,
		ReceivedAt: m.ReceivedAt.UTC(),
		Code:       m.Code,
		Source:     m.Source,
		ArchivedAt: m.ArchivedAt,
	}
}

func BatchModelFromDomain(b *ledger.Batch) *BatchModel {
	m := &BatchModel{
		ProductID:  b.ProductID,
		Register:   b.Register,
		Quantity:   b.Quantity,
		UnitCost:   b.UnitCost,
		ReceivedAt: b.ReceivedAt,
		Code:       b.Code,
		Source:     b.Source,
		ArchivedAt: b.ArchivedAt,
	}
	m.FromDomainBaseEntity(b.BaseEntity)
	return m
}

// StockBalanceModel is keyed by (product_id, register).
type StockBalanceModel struct {
	ProductID uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Register  ledger.Register `gorm:"type:varchar(2);primaryKey"`
	Quantity  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	UpdatedAt time.Time       `gorm:"not null"`
}

func (StockBalanceModel) TableName() string { return "stock_balances" }

func (m *StockBalanceModel) ToDomain() *ledger.StockBalance {
	return &ledger.StockBalance{
		ProductID: m.ProductID,
		Register:  m.Register,
		Quantity:  m.Quantity,
		UpdatedAt: m.UpdatedAt,
	}
}

func StockBalanceModelFromDomain(b *ledger.StockBalance) *StockBalanceModel {
	return &StockBalanceModel{
		ProductID: b.ProductID,
		Register:  b.Register,
		Quantity:  b.Quantity,
		UpdatedAt: b.UpdatedAt,
	}
}

// ConsumptionRecordModel is one draw of a sale line from a batch.
type ConsumptionRecordModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SaleLineID uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID  uuid.UUID       `gorm:"type:uuid;not null"`
	BatchID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Register   ledger.Register `gorm:"type:varchar(2);not null"`
	Quantity   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitCost   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Sequence   int             `gorm:"not null"`
	CreatedAt  time.Time       `gorm:"not null"`
}

func (ConsumptionRecordModel) TableName() string { return "consumption_records" }

func (m *ConsumptionRecordModel) ToDomain() ledger.ConsumptionRecord {
	return ledger.ConsumptionRecord{
		ID:         m.ID,
		SaleLineID: m.SaleLineID,
		ProductID:  m.ProductID,
		BatchID:    m.BatchID,
		Register:   m.Register,
		Quantity:   m.Quantity,
		UnitCost:   m.UnitCost,
		Sequence:   m.Sequence,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

func ConsumptionRecordModelFromDomain(r ledger.ConsumptionRecord) ConsumptionRecordModel {
	return ConsumptionRecordModel{
		ID:         r.ID,
		SaleLineID: r.SaleLineID,
		ProductID:  r.ProductID,
		BatchID:    r.BatchID,
		Register:   r.Register,
		Quantity:   r.Quantity,
		UnitCost:   r.UnitCost,
		Sequence:   r.Sequence,
		CreatedAt:  r.CreatedAt,
	}
}

// RestockRecordModel is one return credit against a consumption record.
type RestockRecordModel struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ReturnLineID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	SaleLineID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	ConsumptionRecordID uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID           uuid.UUID       `gorm:"type:uuid;not null"`
	BatchID             uuid.UUID       `gorm:"type:uuid;not null"`
	Register            ledger.Register `gorm:"type:varchar(2);not null"`
	Quantity            decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreatedAt           time.Time       `gorm:"not null"`
	CancelledAt         *time.Time
}

func (RestockRecordModel) TableName() string { return "restock_records" }

func (m *RestockRecordModel) ToDomain() ledger.RestockRecord {
	return ledger.RestockRecord{
		ID:                  m.ID,
		ReturnLineID:        m.ReturnLineID,
		SaleLineID:          m.SaleLineID,
		ConsumptionRecordID: m.ConsumptionRecordID,
		ProductID:           m.ProductID,
		BatchID:             m.BatchID,
		Register:            m.Register,
		Quantity:            m.Quantity,
		CreatedAt:           m.CreatedAt.UTC(),
		CancelledAt:         m.CancelledAt,
	}
}

func RestockRecordModelFromDomain(r ledger.RestockRecord) RestockRecordModel {
	return RestockRecordModel{
		ID:                  r.ID,
		ReturnLineID:        r.ReturnLineID,
		SaleLineID:          r.SaleLineID,
		ConsumptionRecordID: r.ConsumptionRecordID,
		ProductID:           r.ProductID,
		BatchID:             r.BatchID,
		Register:            r.Register,
		Quantity:            r.Quantity,
		CreatedAt:           r.CreatedAt,
		CancelledAt:         r.CancelledAt,
	}
}

// InventoryTransactionModel is one journal entry.
type InventoryTransactionModel struct {
	ID            uuid.UUID              `gorm:"type:uuid;primaryKey"`
	ProductID     uuid.UUID              `gorm:"type:uuid;not null;index"`
	Register      ledger.Register        `gorm:"type:varchar(2);not null"`
	Type          ledger.TransactionType `gorm:"type:varchar(20);not null"`
	Quantity      decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	UnitCost      decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	BatchID       *uuid.UUID             `gorm:"type:uuid"`
	ReferenceType ledger.ReferenceType   `gorm:"type:varchar(30);not null;index:idx_inventory_tx_ref,priority:1"`
	ReferenceID   uuid.UUID              `gorm:"type:uuid;not null;index:idx_inventory_tx_ref,priority:2"`
	Note          string                 `gorm:"type:text"`
	CreatedAt     time.Time              `gorm:"not null;index"`
}

func (InventoryTransactionModel) TableName() string { return "inventory_transactions" }

func (m *InventoryTransactionModel) ToDomain() *ledger.InventoryTransaction {
	return &ledger.InventoryTransaction{
		ID:            m.ID,
		ProductID:     m.ProductID,
		Register:      m.Register,
		Type:          m.Type,
		Quantity:      m.Quantity,
		UnitCost:      m.UnitCost,
		BatchID:       m.BatchID,
		ReferenceType: m.ReferenceType,
		ReferenceID:   m.ReferenceID,
		Note:          m.Note,
		CreatedAt:     m.CreatedAt.UTC(),
	}
}

func InventoryTransactionModelFromDomain(t *ledger.InventoryTransaction) *InventoryTransactionModel {
	return &InventoryTransactionModel{
		ID:            t.ID,
		ProductID:     t.ProductID,
		Register:      t.Register,
		Type:          t.Type,
		Quantity:      t.Quantity,
		UnitCost:      t.UnitCost,
		BatchID:       t.BatchID,
		ReferenceType: t.ReferenceType,
		ReferenceID:   t.ReferenceID,
		Note:          t.Note,
		CreatedAt:     t.CreatedAt,
	}
}

// StockSnapshotModel is unique per (date, product_id).
type StockSnapshotModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Date      time.Time       `gorm:"type:date;not null;uniqueIndex:idx_stock_snapshots_day_product,priority:1"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_snapshots_day_product,priority:2"`
	NDQty     decimal.Decimal `gorm:"column:nd_qty;type:decimal(18,4);not null"`
	IMQty     decimal.Decimal `gorm:"column:im_qty;type:decimal(18,4);not null"`
	TotalQty  decimal.Decimal `gorm:"column:total_qty;type:decimal(18,4);not null"`
	CreatedAt time.Time       `gorm:"not null"`
}

func (StockSnapshotModel) TableName() string { return "stock_snapshots" }

func (m *StockSnapshotModel) ToDomain() *ledger.StockSnapshot {
	return &ledger.StockSnapshot{
		ID:        m.ID,
		Date:      ledger.SnapshotDay(m.Date),
		ProductID: m.ProductID,
		NDQty:     m.NDQty,
		IMQty:     m.IMQty,
		TotalQty:  m.TotalQty,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func StockSnapshotModelFromDomain(s *ledger.StockSnapshot) *StockSnapshotModel {
	return &StockSnapshotModel{
		ID:        s.ID,
		Date:      s.Date,
		ProductID: s.ProductID,
		NDQty:     s.NDQty,
		IMQty:     s.IMQty,
		TotalQty:  s.TotalQty,
		CreatedAt: s.CreatedAt,
	}
}
