package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/firesafe/ledger/internal/domain/costing"
	"github.com/firesafe/ledger/internal/domain/ledger"
	"github.com/firesafe/ledger/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CostingSessionModel is the persistence model for the costing.Session aggregate root.
// Fee sets are stored as JSON arrays; lines and snapshots live in child tables.
type CostingSessionModel struct {
	AggregateModel
	SupplyID           uuid.UUID                `gorm:"type:uuid;not null;index"`
	SupplyCode         string                   `gorm:"type:varchar(100)"`
	Register           ledger.Register          `gorm:"type:varchar(2);not null"`
	ExchangeRate       decimal.Decimal          `gorm:"type:decimal(18,6);not null"`
	PercentageFeesJSON string                   `gorm:"column:percentage_fees;type:jsonb;not null"`
	AbsoluteFeesJSON   string                   `gorm:"column:absolute_fees;type:jsonb;not null"`
	Method             strategy.ApportionMethod `gorm:"type:varchar(30);not null"`
	Status             costing.Status           `gorm:"type:varchar(20);not null;index"`
	CalculatedAt       *time.Time
	FinalizedAt        *time.Time
	Lines              []CostingLineModel     `gorm:"foreignKey:SessionID;references:ID"`
	Snapshots          []CostingSnapshotModel `gorm:"foreignKey:SessionID;references:ID"`
}

func (CostingSessionModel) TableName() string { return "costing_sessions" }

// CostingLineModel is one supply line of a session.
type CostingLineModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SessionID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position    int             `gorm:"not null"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null"`
	Name        string          `gorm:"type:varchar(200)"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	SourcePrice decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

func (CostingLineModel) TableName() string { return "costing_lines" }

// CostingSnapshotModel is the computed landed cost of one line.
type CostingSnapshotModel struct {
	LineID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SessionID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position           int             `gorm:"not null"`
	ProductID          uuid.UUID       `gorm:"type:uuid;not null"`
	Name               string          `gorm:"type:varchar(200)"`
	Quantity           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	SourcePrice        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BasePrice          decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	PercentageFeesJSON string          `gorm:"column:percentage_fees;type:jsonb;not null"`
	AbsoluteFeesJSON   string          `gorm:"column:absolute_fees;type:jsonb;not null"`
	TotalCost          decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	UnitCost           decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

func (CostingSnapshotModel) TableName() string { return "costing_item_snapshots" }

// ToDomain converts the persistence model to a costing.Session.
func (m *CostingSessionModel) ToDomain() (*costing.Session, error) {
	s := &costing.Session{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		SupplyID:          m.SupplyID,
		SupplyCode:        m.SupplyCode,
		Register:          m.Register,
		ExchangeRate:      m.ExchangeRate,
		Method:            m.Method,
		Status:            m.Status,
		CalculatedAt:      m.CalculatedAt,
		FinalizedAt:       m.FinalizedAt,
		Lines:             make([]costing.Line, len(m.Lines)),
		Snapshots:         make([]costing.ItemSnapshot, len(m.Snapshots)),
	}
	if err := decodeJSON(m.PercentageFeesJSON, &s.PercentageFees); err != nil {
		return nil, fmt.Errorf("session %s percentage fees: %w", m.ID, err)
	}
	if err := decodeJSON(m.AbsoluteFeesJSON, &s.AbsoluteFees); err != nil {
		return nil, fmt.Errorf("session %s absolute fees: %w", m.ID, err)
	}
	for _, l := range m.Lines {
		if l.Position < 0 || l.Position >= len(s.Lines) {
			return nil, fmt.Errorf("session %s: line position %d out of range", m.ID, l.Position)
		}
		s.Lines[l.Position] = costing.Line{
			ID:          l.ID,
			ProductID:   l.ProductID,
			Name:        l.Name,
			Quantity:    l.Quantity,
			SourcePrice: l.SourcePrice,
		}
	}
	for _, sn := range m.Snapshots {
		if sn.Position < 0 || sn.Position >= len(s.Snapshots) {
			return nil, fmt.Errorf("session %s: snapshot position %d out of range", m.ID, sn.Position)
		}
		item := costing.ItemSnapshot{
			LineID:      sn.LineID,
			ProductID:   sn.ProductID,
			Name:        sn.Name,
			Quantity:    sn.Quantity,
			SourcePrice: sn.SourcePrice,
			BasePrice:   sn.BasePrice,
			TotalCost:   sn.TotalCost,
			UnitCost:    sn.UnitCost,
		}
		if err := decodeJSON(sn.PercentageFeesJSON, &item.PercentageFees); err != nil {
			return nil, err
		}
		if err := decodeJSON(sn.AbsoluteFeesJSON, &item.AbsoluteFees); err != nil {
			return nil, err
		}
		s.Snapshots[sn.Position] = item
	}
	return s, nil
}

// CostingSessionModelFromDomain builds the model tree of a session.
func CostingSessionModelFromDomain(s *costing.Session) (*CostingSessionModel, error) {
	m := &CostingSessionModel{
		SupplyID:     s.SupplyID,
		SupplyCode:   s.SupplyCode,
		Register:     s.Register,
		ExchangeRate: s.ExchangeRate,
		Method:       s.Method,
		Status:       s.Status,
		CalculatedAt: s.CalculatedAt,
		FinalizedAt:  s.FinalizedAt,
		Lines:        make([]CostingLineModel, len(s.Lines)),
		Snapshots:    make([]CostingSnapshotModel, len(s.Snapshots)),
	}
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)

	var err error
	if m.PercentageFeesJSON, err = encodeJSON(s.PercentageFees); err != nil {
		return nil, err
	}
	if m.AbsoluteFeesJSON, err = encodeJSON(s.AbsoluteFees); err != nil {
		return nil, err
	}
	for i, l := range s.Lines {
		m.Lines[i] = CostingLineModel{
			ID:          l.ID,
			SessionID:   s.ID,
			Position:    i,
			ProductID:   l.ProductID,
			Name:        l.Name,
			Quantity:    l.Quantity,
			SourcePrice: l.SourcePrice,
		}
	}
	for i, sn := range s.Snapshots {
		pct, err := encodeJSON(sn.PercentageFees)
		if err != nil {
			return nil, err
		}
		abs, err := encodeJSON(sn.AbsoluteFees)
		if err != nil {
			return nil, err
		}
		m.Snapshots[i] = CostingSnapshotModel{
			LineID:             sn.LineID,
			SessionID:          s.ID,
			Position:           i,
			ProductID:          sn.ProductID,
			Name:               sn.Name,
			Quantity:           sn.Quantity,
			SourcePrice:        sn.SourcePrice,
			BasePrice:          sn.BasePrice,
			PercentageFeesJSON: pct,
			AbsoluteFeesJSON:   abs,
			TotalCost:          sn.TotalCost,
			UnitCost:           sn.UnitCost,
		}
	}
	return m, nil
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJSON(raw string, v any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}
