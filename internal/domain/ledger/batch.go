package ledger

import (
	"time"

	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/firesafe/ledger/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchSource records what created a batch
type BatchSource string

const (
	BatchSourcePurchase   BatchSource = "PURCHASE"
	BatchSourceReturn     BatchSource = "RETURN"
	BatchSourceTransfer   BatchSource = "TRANSFER"
	BatchSourceAdjustment BatchSource = "ADJUSTMENT"
)

// IsValid returns true if the batch source is known
func (s BatchSource) IsValid() bool {
	switch s {
	case BatchSourcePurchase, BatchSourceReturn, BatchSourceTransfer, BatchSourceAdjustment:
		return true
	}
	return false
}

// Batch is a cost-bearing receipt of one product into one register.
// Quantity never drops below zero. An empty batch is kept for the audit
// trail and skipped by consumption; batches are never deleted.
type Batch struct {
	shared.BaseEntity
	ProductID  uuid.UUID
	Register   Register
	Quantity   decimal.Decimal
	UnitCost   decimal.Decimal
	ReceivedAt time.Time
	Code       string // supply or customs declaration code
	Source     BatchSource
	ArchivedAt *time.Time
}

// NewBatch creates a new batch
func NewBatch(productID uuid.UUID, register Register, quantity, unitCost decimal.Decimal, receivedAt time.Time, source BatchSource) (*Batch, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if !register.IsValid() {
		return nil, shared.NewDomainError("INVALID_REGISTER", "Register must be ND or IM")
	}
	if !quantity.IsPositive() {
		return nil, shared.NewDomainError(CodeInvalidQuantity, "Batch quantity must be positive")
	}
	if unitCost.IsNegative() {
		return nil, shared.NewDomainError("INVALID_COST", "Unit cost cannot be negative")
	}
	if !source.IsValid() {
		return nil, shared.NewDomainError("INVALID_BATCH_SOURCE", "Invalid batch source")
	}
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	return &Batch{
		BaseEntity: shared.NewBaseEntity(),
		ProductID:  productID,
		Register:   register,
		Quantity:   quantity,
		UnitCost:   unitCost.Round(4),
		ReceivedAt: receivedAt.UTC(),
		Source:     source,
	}, nil
}

// WithCode sets the supply code for the batch
func (b *Batch) WithCode(code string) *Batch {
	b.Code = code
	return b
}

// IsArchived returns true if the batch has been archived
func (b *Batch) IsArchived() bool {
	return b.ArchivedAt != nil
}

// IsConsumable returns true if the batch can feed a withdrawal
func (b *Batch) IsConsumable() bool {
	return b.Quantity.IsPositive()
}

// Take removes quantity from the batch
func (b *Batch) Take(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return shared.NewDomainError(CodeInvalidQuantity, "Quantity must be positive")
	}
	if quantity.GreaterThan(b.Quantity) {
		return NewInsufficientStockError(b.ProductID, b.Register, quantity.Sub(b.Quantity))
	}
	b.Quantity = b.Quantity.Sub(quantity)
	b.Touch()
	return nil
}

// Credit adds quantity back to the batch
func (b *Batch) Credit(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return shared.NewDomainError(CodeInvalidQuantity, "Quantity must be positive")
	}
	b.Quantity = b.Quantity.Add(quantity)
	b.Touch()
	return nil
}

// Archive marks an empty batch as archived
func (b *Batch) Archive(at time.Time) error {
	if b.Quantity.IsPositive() {
		return shared.NewDomainError("BATCH_NOT_EMPTY", "Only empty batches can be archived")
	}
	if b.ArchivedAt == nil {
		t := at.UTC()
		b.ArchivedAt = &t
		b.Touch()
	}
	return nil
}

// Unarchive clears the archived marker
func (b *Batch) Unarchive() {
	if b.ArchivedAt != nil {
		b.ArchivedAt = nil
		b.Touch()
	}
}

// Layer returns the ordering view of the batch
func (b *Batch) Layer() strategy.StockLayer {
	return strategy.StockLayer{
		ID:         b.ID,
		ReceivedAt: b.ReceivedAt,
		Quantity:   b.Quantity,
		UnitCost:   b.UnitCost,
	}
}

// TotalQuantity sums batch quantities
func TotalQuantity(batches []*Batch) decimal.Decimal {
	total := decimal.Zero
	for _, b := range batches {
		total = total.Add(b.Quantity)
	}
	return total
}
