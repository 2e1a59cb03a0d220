package ledger

import (
	"slices"
	"time"

	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Credit is a planned return credit against one consumption record
type Credit struct {
	Record   ConsumptionRecord
	Quantity decimal.Decimal
}

// SortTrail orders records by creation time then sequence
func SortTrail(records Trail) {
	slices.SortStableFunc(records, func(a, b ConsumptionRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return a.Sequence - b.Sequence
	})
}

// Returnable reports how much of the trail has not been restocked yet.
// restocked maps consumption record IDs to their active restocked quantity.
func Returnable(trail Trail, restocked map[uuid.UUID]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, r := range trail {
		left := r.Quantity.Sub(restocked[r.ID])
		if left.IsPositive() {
			total = total.Add(left)
		}
	}
	return total
}

// PlanReversal spreads a return quantity over the sale line's trail in the
// order the records were created. No record is credited past its consumed
// quantity.
func PlanReversal(saleLineID uuid.UUID, trail Trail, restocked map[uuid.UUID]decimal.Decimal, quantity decimal.Decimal) ([]Credit, error) {
	if !quantity.IsPositive() {
		return nil, shared.NewDomainError(CodeInvalidQuantity, "Return quantity must be positive")
	}
	if len(trail) == 0 {
		return nil, ErrSaleLineNotSettled
	}
	returnable := Returnable(trail, restocked)
	if quantity.GreaterThan(returnable) {
		return nil, NewOverReturnError(saleLineID, quantity, returnable)
	}

	ordered := slices.Clone(trail)
	SortTrail(ordered)

	remaining := quantity
	credits := make([]Credit, 0, len(ordered))
	for _, r := range ordered {
		if !remaining.IsPositive() {
			break
		}
		left := r.Quantity.Sub(restocked[r.ID])
		if !left.IsPositive() {
			continue
		}
		take := decimal.Min(left, remaining)
		credits = append(credits, Credit{Record: r, Quantity: take})
		remaining = remaining.Sub(take)
	}
	return credits, nil
}

// ApplyCredit credits a planned return onto its target batch. original is the
// batch the record was drawn from (nil when missing) and newest is the newest
// active batch of the same product and register (nil when none). The returned
// flag is true when a new return batch was created to absorb the credit.
func ApplyCredit(policy ArchivedBatchPolicy, credit Credit, original, newest *Batch, at time.Time) (*Batch, bool, error) {
	if original != nil && !original.IsArchived() {
		return original, false, original.Credit(credit.Quantity)
	}

	switch policy {
	case PolicyReactivate:
		if original == nil {
			return nil, false, NewArchivedBatchTargetError(credit.Record.BatchID)
		}
		original.Unarchive()
		return original, false, original.Credit(credit.Quantity)
	case PolicyReject:
		return nil, false, NewArchivedBatchTargetError(credit.Record.BatchID)
	case PolicyFallbackNewest:
		if newest != nil {
			return newest, false, newest.Credit(credit.Quantity)
		}
		b, err := NewBatch(credit.Record.ProductID, credit.Record.Register, credit.Quantity, credit.Record.UnitCost, at, BatchSourceReturn)
		if err != nil {
			return nil, false, err
		}
		if original != nil {
			b.WithCode(original.Code)
		}
		return b, true, nil
	}
	return nil, false, shared.NewDomainError("INVALID_POLICY", "Unknown archived batch policy")
}

// NewRestockRecord documents a credit applied to a batch
func NewRestockRecord(returnLineID uuid.UUID, credit Credit, batchID uuid.UUID, at time.Time) RestockRecord {
	return RestockRecord{
		ID:                  shared.NewID(),
		ReturnLineID:        returnLineID,
		SaleLineID:          credit.Record.SaleLineID,
		ConsumptionRecordID: credit.Record.ID,
		ProductID:           credit.Record.ProductID,
		BatchID:             batchID,
		Register:            credit.Record.Register,
		Quantity:            credit.Quantity,
		CreatedAt:           at.UTC(),
	}
}

// RestockedByRecord sums active restocks per consumption record
func RestockedByRecord(restocks []RestockRecord) map[uuid.UUID]decimal.Decimal {
	out := make(map[uuid.UUID]decimal.Decimal, len(restocks))
	for _, r := range restocks {
		if !r.IsActive() {
			continue
		}
		out[r.ConsumptionRecordID] = out[r.ConsumptionRecordID].Add(r.Quantity)
	}
	return out
}
