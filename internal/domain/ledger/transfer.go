package ledger

import (
	"time"

	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/firesafe/ledger/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer is the outcome of moving cleared stock from ND to IM
type Transfer struct {
	ProductID uuid.UUID
	Code      string
	Out       *Consumption
	In        []*Batch
}

// TransferToOfficial drains ND batches carrying the given supply code and
// creates one IM batch per draw with the same unit cost and code.
func TransferToOfficial(productID uuid.UUID, code string, quantity decimal.Decimal, ndBatches []*Batch, order strategy.ConsumptionOrderStrategy, at time.Time) (*Transfer, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_CODE", "Supply code is required")
	}
	if !quantity.IsPositive() {
		return nil, shared.NewDomainError(CodeInvalidQuantity, "Transfer quantity must be positive")
	}
	coded := make([]*Batch, 0, len(ndBatches))
	for _, b := range ndBatches {
		if b.Code == code {
			coded = append(coded, b)
		}
	}

	out, err := Consume(WithdrawalRequest{ProductID: productID, Register: RegisterND, Quantity: quantity}, coded, order)
	if err != nil {
		return nil, err
	}

	in := make([]*Batch, 0, len(out.Draws))
	for _, d := range out.Draws {
		b, err := NewBatch(productID, RegisterIM, d.Quantity, d.UnitCost, at, BatchSourceTransfer)
		if err != nil {
			return nil, err
		}
		in = append(in, b.WithCode(code))
	}
	return &Transfer{ProductID: productID, Code: code, Out: out, In: in}, nil
}
