package ledger

import (
	"time"

	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConsumptionRecord is one entry of the trail that fed a sale line.
// Records are written once at settlement and never modified.
type ConsumptionRecord struct {
	ID         uuid.UUID
	SaleLineID uuid.UUID
	ProductID  uuid.UUID
	BatchID    uuid.UUID
	Register   Register
	Quantity   decimal.Decimal
	UnitCost   decimal.Decimal // batch unit cost at the time of the draw
	Sequence   int             // position in the sale line's trail, starting at 1
	CreatedAt  time.Time
}

// RestockRecord documents which batch absorbed a returned quantity
type RestockRecord struct {
	ID                  uuid.UUID
	ReturnLineID        uuid.UUID
	SaleLineID          uuid.UUID
	ConsumptionRecordID uuid.UUID
	ProductID           uuid.UUID
	BatchID             uuid.UUID
	Register            Register
	Quantity            decimal.Decimal
	CreatedAt           time.Time
	CancelledAt         *time.Time
}

// IsActive returns true if the restock has not been cancelled
func (r *RestockRecord) IsActive() bool {
	return r.CancelledAt == nil
}

// Cancel stamps the restock as cancelled
func (r *RestockRecord) Cancel(at time.Time) error {
	if r.CancelledAt != nil {
		return ErrReturnAlreadyCancelled
	}
	t := at.UTC()
	r.CancelledAt = &t
	return nil
}

// Trail is the ordered list of draws behind one sale line
type Trail []ConsumptionRecord

// Quantity sums the consumed quantity of the trail
func (t Trail) Quantity() decimal.Decimal {
	total := decimal.Zero
	for _, r := range t {
		total = total.Add(r.Quantity)
	}
	return total
}

// Cost sums quantity * unit cost across the trail, unrounded
func (t Trail) Cost() decimal.Decimal {
	total := decimal.Zero
	for _, r := range t {
		total = total.Add(r.Quantity.Mul(r.UnitCost))
	}
	return total
}

// newConsumptionRecord builds a trail entry for a draw
func newConsumptionRecord(saleLineID uuid.UUID, d Draw, sequence int, at time.Time) ConsumptionRecord {
	return ConsumptionRecord{
		ID:         shared.NewID(),
		SaleLineID: saleLineID,
		ProductID:  d.ProductID,
		BatchID:    d.BatchID,
		Register:   d.Register,
		Quantity:   d.Quantity,
		UnitCost:   d.UnitCost,
		Sequence:   sequence,
		CreatedAt:  at,
	}
}
