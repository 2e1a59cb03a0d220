package costing

import (
	"time"

	"github.com/firesafe/ledger/internal/domain/costing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeeInput is a named fee. Percentage fee amounts are fractions (0.12 = 12%).
type FeeInput struct {
	Name   string          `json:"name" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// LineInput is one supply line
type LineInput struct {
	ProductID   uuid.UUID       `json:"product_id" binding:"required"`
	Name        string          `json:"name"`
	Quantity    decimal.Decimal `json:"quantity"`
	SourcePrice decimal.Decimal `json:"source_price"`
}

// CreateSessionRequest opens a draft costing session for a supply.
// Nil fee sets fall back to the default fee names with zero amounts.
type CreateSessionRequest struct {
	SupplyID       uuid.UUID
	SupplyCode     string
	Register       string
	ExchangeRate   decimal.Decimal
	Method         string
	PercentageFees []FeeInput
	AbsoluteFees   []FeeInput
	Lines          []LineInput
}

// UpdateSessionRequest edits a draft session. Nil fields are left
// unchanged; an empty non-nil slice clears the set.
type UpdateSessionRequest struct {
	ExchangeRate   *decimal.Decimal
	PercentageFees []FeeInput
	AbsoluteFees   []FeeInput
	Lines          []LineInput
}

// SessionListFilter narrows session listings
type SessionListFilter struct {
	SupplyID *uuid.UUID
	Status   string
	OrderBy  string
	OrderDir string
	Page     int
	PageSize int
}

// FeeResponse is a named amount
type FeeResponse struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// LineResponse is a supply line of a session
type LineResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	Name        string          `json:"name"`
	Quantity    decimal.Decimal `json:"quantity"`
	SourcePrice decimal.Decimal `json:"source_price"`
}

// SnapshotResponse is the landed cost of one supply line
type SnapshotResponse struct {
	LineID         uuid.UUID       `json:"line_id"`
	ProductID      uuid.UUID       `json:"product_id"`
	Name           string          `json:"name"`
	Quantity       decimal.Decimal `json:"quantity"`
	SourcePrice    decimal.Decimal `json:"source_price"`
	BasePrice      decimal.Decimal `json:"base_price"`
	PercentageFees []FeeResponse   `json:"percentage_fees"`
	AbsoluteFees   []FeeResponse   `json:"absolute_fees"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
}

// SessionResponse represents a costing session in API responses
type SessionResponse struct {
	ID             uuid.UUID          `json:"id"`
	SupplyID       uuid.UUID          `json:"supply_id"`
	SupplyCode     string             `json:"supply_code"`
	Register       string             `json:"register"`
	ExchangeRate   decimal.Decimal    `json:"exchange_rate"`
	Method         string             `json:"method"`
	Status         string             `json:"status"`
	PercentageFees []FeeResponse      `json:"percentage_fees"`
	AbsoluteFees   []FeeResponse      `json:"absolute_fees"`
	Lines          []LineResponse     `json:"lines"`
	Snapshots      []SnapshotResponse `json:"snapshots"`
	CalculatedAt   *time.Time         `json:"calculated_at,omitempty"`
	FinalizedAt    *time.Time         `json:"finalized_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	Version        int                `json:"version"`
}

func toFees(in []FeeInput) []costing.Fee {
	out := make([]costing.Fee, len(in))
	for i, f := range in {
		out[i] = costing.Fee{Name: f.Name, Amount: f.Amount}
	}
	return out
}

func toLines(in []LineInput) []costing.Line {
	out := make([]costing.Line, len(in))
	for i, l := range in {
		out[i] = costing.Line{
			ProductID:   l.ProductID,
			Name:        l.Name,
			Quantity:    l.Quantity,
			SourcePrice: l.SourcePrice,
		}
	}
	return out
}

func feeResponses[T costing.Fee | costing.FeeAmount](in []T) []FeeResponse {
	out := make([]FeeResponse, len(in))
	for i, f := range in {
		v := costing.Fee(f)
		out[i] = FeeResponse{Name: v.Name, Amount: v.Amount}
	}
	return out
}

// ToSessionResponse converts a domain session to a response
func ToSessionResponse(s *costing.Session) SessionResponse {
	lines := make([]LineResponse, len(s.Lines))
	for i, l := range s.Lines {
		lines[i] = LineResponse{
			ID:          l.ID,
			ProductID:   l.ProductID,
			Name:        l.Name,
			Quantity:    l.Quantity,
			SourcePrice: l.SourcePrice,
		}
	}
	snaps := make([]SnapshotResponse, len(s.Snapshots))
	for i, sn := range s.Snapshots {
		snaps[i] = SnapshotResponse{
			LineID:         sn.LineID,
			ProductID:      sn.ProductID,
			Name:           sn.Name,
			Quantity:       sn.Quantity,
			SourcePrice:    sn.SourcePrice,
			BasePrice:      sn.BasePrice,
			PercentageFees: feeResponses(sn.PercentageFees),
			AbsoluteFees:   feeResponses(sn.AbsoluteFees),
			TotalCost:      sn.TotalCost,
			UnitCost:       sn.UnitCost,
		}
	}
	return SessionResponse{
		ID:             s.ID,
		SupplyID:       s.SupplyID,
		SupplyCode:     s.SupplyCode,
		Register:       s.Register.String(),
		ExchangeRate:   s.ExchangeRate,
		Method:         s.Method.String(),
		Status:         s.Status.String(),
		PercentageFees: feeResponses(s.PercentageFees),
		AbsoluteFees:   feeResponses(s.AbsoluteFees),
		Lines:          lines,
		Snapshots:      snaps,
		CalculatedAt:   s.CalculatedAt,
		FinalizedAt:    s.FinalizedAt,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		Version:        s.Version,
	}
}
