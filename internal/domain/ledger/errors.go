package ledger

import (
	"fmt"

	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Error codes raised by the ledger
const (
	CodeInsufficientStock      = "INSUFFICIENT_STOCK"
	CodeOverReturn             = "OVER_RETURN"
	CodeArchivedBatchTarget    = "ARCHIVED_BATCH_TARGET"
	CodeSaleLineAlreadySettled = "SALE_LINE_ALREADY_SETTLED"
	CodeSaleLineNotSettled     = "SALE_LINE_NOT_SETTLED"
	CodeReturnAlreadyCancelled = "RETURN_ALREADY_CANCELLED"
	CodeReturnAlreadyApplied   = "RETURN_ALREADY_APPLIED"
	CodeInvalidQuantity        = "INVALID_QUANTITY"
	CodeInvalidPaymentType     = "INVALID_PAYMENT_TYPE"
	CodeArchiveDisabled        = "SNAPSHOT_ARCHIVE_DISABLED"
)

// InsufficientStockError is returned when a withdrawal exceeds the batch
// quantity available in a register. Nothing is decremented when it is returned.
type InsufficientStockError struct {
	*shared.DomainError
	ProductID uuid.UUID
	Register  Register
	Missing   decimal.Decimal
}

// NewInsufficientStockError creates an InsufficientStockError
func NewInsufficientStockError(productID uuid.UUID, register Register, missing decimal.Decimal) *InsufficientStockError {
	return &InsufficientStockError{
		DomainError: shared.NewDomainError(CodeInsufficientStock,
			fmt.Sprintf("Insufficient stock for product %s in register %s: missing %s", productID, register, missing.String())),
		ProductID: productID,
		Register:  register,
		Missing:   missing,
	}
}

// Unwrap exposes the DomainError so errors.As(err, **shared.DomainError) matches
func (e *InsufficientStockError) Unwrap() error {
	return e.DomainError
}

// OverReturnError is returned when a return asks for more than what is still
// returnable on the sale line.
type OverReturnError struct {
	*shared.DomainError
	SaleLineID uuid.UUID
	Requested  decimal.Decimal
	Returnable decimal.Decimal
}

// NewOverReturnError creates an OverReturnError
func NewOverReturnError(saleLineID uuid.UUID, requested, returnable decimal.Decimal) *OverReturnError {
	return &OverReturnError{
		DomainError: shared.NewDomainError(CodeOverReturn,
			fmt.Sprintf("Return of %s exceeds returnable quantity %s for sale line %s",
				requested.String(), returnable.String(), saleLineID)),
		SaleLineID: saleLineID,
		Requested:  requested,
		Returnable: returnable,
	}
}

// Unwrap exposes the DomainError
func (e *OverReturnError) Unwrap() error {
	return e.DomainError
}

// ArchivedBatchTargetError is returned by the reject policy when a return
// credit would land on an archived batch.
type ArchivedBatchTargetError struct {
	*shared.DomainError
	BatchID uuid.UUID
}

// NewArchivedBatchTargetError creates an ArchivedBatchTargetError
func NewArchivedBatchTargetError(batchID uuid.UUID) *ArchivedBatchTargetError {
	return &ArchivedBatchTargetError{
		DomainError: shared.NewDomainError(CodeArchivedBatchTarget,
			fmt.Sprintf("Batch %s is archived and cannot receive a return credit", batchID)),
		BatchID: batchID,
	}
}

// Unwrap exposes the DomainError
func (e *ArchivedBatchTargetError) Unwrap() error {
	return e.DomainError
}

// ErrSaleLineAlreadySettled is returned when a sale line already has a consumption trail
var ErrSaleLineAlreadySettled = shared.NewDomainError(CodeSaleLineAlreadySettled, "Sale line has already been settled")

// ErrSaleLineNotSettled is returned when a return references a sale line without a settlement
var ErrSaleLineNotSettled = shared.NewDomainError(CodeSaleLineNotSettled, "Sale line has no settlement to reverse")

// ErrReturnAlreadyCancelled is returned when a return line has no active restock records left
var ErrReturnAlreadyCancelled = shared.NewDomainError(CodeReturnAlreadyCancelled, "Return has already been cancelled")

// ErrReturnAlreadyApplied is returned when a return line already has active restock records
var ErrReturnAlreadyApplied = shared.NewDomainError(CodeReturnAlreadyApplied, "Return line has already been applied")

// ErrArchiveDisabled is returned by archive operations when no object storage is configured
var ErrArchiveDisabled = shared.NewDomainError(CodeArchiveDisabled, "Snapshot archive is not configured")
