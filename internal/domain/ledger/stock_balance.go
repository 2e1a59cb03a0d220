package ledger

import (
	"time"

	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockBalance is the materialized quantity of one product in one register.
// It must always equal the sum of that product/register's batch quantities.
type StockBalance struct {
	ProductID uuid.UUID
	Register  Register
	Quantity  decimal.Decimal
	UpdatedAt time.Time
}

// NewStockBalance creates an empty balance
func NewStockBalance(productID uuid.UUID, register Register) *StockBalance {
	return &StockBalance{
		ProductID: productID,
		Register:  register,
		Quantity:  decimal.Zero,
		UpdatedAt: time.Now().UTC(),
	}
}

// Increase adds quantity to the balance
func (s *StockBalance) Increase(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return shared.NewDomainError(CodeInvalidQuantity, "Quantity must be positive")
	}
	s.Quantity = s.Quantity.Add(quantity)
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Decrease removes quantity from the balance
func (s *StockBalance) Decrease(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return shared.NewDomainError(CodeInvalidQuantity, "Quantity must be positive")
	}
	if quantity.GreaterThan(s.Quantity) {
		return NewInsufficientStockError(s.ProductID, s.Register, quantity.Sub(s.Quantity))
	}
	s.Quantity = s.Quantity.Sub(quantity)
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Reset overwrites the balance, used only by reconciliation
func (s *StockBalance) Reset(quantity decimal.Decimal) {
	s.Quantity = quantity
	s.UpdatedAt = time.Now().UTC()
}

// Balances holds both registers of one product
type Balances struct {
	ProductID uuid.UUID
	ND        decimal.Decimal
	IM        decimal.Decimal
}

// Total returns ND + IM
func (b Balances) Total() decimal.Decimal {
	return b.ND.Add(b.IM)
}

// Of returns the quantity of the given register
func (b Balances) Of(r Register) decimal.Decimal {
	if r == RegisterND {
		return b.ND
	}
	return b.IM
}
