package ledger

import (
	"time"

	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the type of inventory movement
type TransactionType string

const (
	TransactionTypePurchase    TransactionType = "PURCHASE"
	TransactionTypeSale        TransactionType = "SALE"
	TransactionTypeReturnIn    TransactionType = "RETURN_IN"
	TransactionTypeReturnOut   TransactionType = "RETURN_OUT"
	TransactionTypeTransferIn  TransactionType = "TRANSFER_IN"
	TransactionTypeTransferOut TransactionType = "TRANSFER_OUT"
	TransactionTypeAdjust      TransactionType = "ADJUST"
)

// IsValid returns true if the transaction type is valid
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypePurchase,
		TransactionTypeSale,
		TransactionTypeReturnIn,
		TransactionTypeReturnOut,
		TransactionTypeTransferIn,
		TransactionTypeTransferOut,
		TransactionTypeAdjust:
		return true
	}
	return false
}

// IsDecrease returns true if this movement takes stock out of a register
func (t TransactionType) IsDecrease() bool {
	switch t {
	case TransactionTypeSale, TransactionTypeReturnOut, TransactionTypeTransferOut:
		return true
	}
	return false
}

// ReferenceType names the document behind a movement
type ReferenceType string

const (
	ReferenceSupply         ReferenceType = "SUPPLY"
	ReferenceCostingSession ReferenceType = "COSTING_SESSION"
	ReferenceSaleLine       ReferenceType = "SALE_LINE"
	ReferenceReturnLine     ReferenceType = "RETURN_LINE"
	ReferenceTransfer       ReferenceType = "TRANSFER"
	ReferenceReconcile      ReferenceType = "RECONCILE"
)

// InventoryTransaction is an immutable journal entry for one stock movement.
// Quantity is always positive; direction comes from the type. ADJUST entries
// carry the signed delta in the note.
type InventoryTransaction struct {
	ID            uuid.UUID
	ProductID     uuid.UUID
	Register      Register
	Type          TransactionType
	Quantity      decimal.Decimal
	UnitCost      decimal.Decimal
	BatchID       *uuid.UUID
	ReferenceType ReferenceType
	ReferenceID   uuid.UUID
	Note          string
	CreatedAt     time.Time
}

// NewInventoryTransaction creates a journal entry
func NewInventoryTransaction(productID uuid.UUID, register Register, txType TransactionType, quantity, unitCost decimal.Decimal, refType ReferenceType, refID uuid.UUID) (*InventoryTransaction, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if !register.IsValid() {
		return nil, shared.NewDomainError("INVALID_REGISTER", "Register must be ND or IM")
	}
	if !txType.IsValid() {
		return nil, shared.NewDomainError("INVALID_TRANSACTION_TYPE", "Invalid transaction type")
	}
	if !quantity.IsPositive() {
		return nil, shared.NewDomainError(CodeInvalidQuantity, "Quantity must be positive")
	}
	return &InventoryTransaction{
		ID:            shared.NewID(),
		ProductID:     productID,
		Register:      register,
		Type:          txType,
		Quantity:      quantity,
		UnitCost:      unitCost,
		ReferenceType: refType,
		ReferenceID:   refID,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// WithBatch sets the batch the movement touched
func (t *InventoryTransaction) WithBatch(batchID uuid.UUID) *InventoryTransaction {
	t.BatchID = &batchID
	return t
}

// WithNote sets a free-form note
func (t *InventoryTransaction) WithNote(note string) *InventoryTransaction {
	t.Note = note
	return t
}

// SignedQuantity returns the quantity with sign based on transaction type
func (t *InventoryTransaction) SignedQuantity() decimal.Decimal {
	if t.Type.IsDecrease() {
		return t.Quantity.Neg()
	}
	return t.Quantity
}
