package ledger

import (
	"slices"

	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/firesafe/ledger/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CostScale is the number of decimal places carried by unit costs
const CostScale int32 = 2

// Draw is one batch decrement performed by a consumption
type Draw struct {
	BatchID   uuid.UUID
	ProductID uuid.UUID
	Register  Register
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
}

// Cost returns quantity * unit cost
func (d Draw) Cost() decimal.Decimal {
	return d.Quantity.Mul(d.UnitCost)
}

// Consumption is the result of draining one register for one withdrawal
type Consumption struct {
	ProductID uuid.UUID
	Register  Register
	Quantity  decimal.Decimal
	TotalCost decimal.Decimal // unrounded sum of draw costs
	UnitCost  decimal.Decimal // TotalCost / Quantity rounded to CostScale
	Draws     []Draw
	Touched   []*Batch
}

// IsEmpty returns true if nothing was drawn
func (c *Consumption) IsEmpty() bool {
	return c == nil || len(c.Draws) == 0
}

// WithdrawalRequest asks for quantity of one product out of one register
type WithdrawalRequest struct {
	ProductID uuid.UUID
	Register  Register
	Quantity  decimal.Decimal
}

// Available sums the consumable quantity of the batches that belong to
// the given product and register.
func Available(productID uuid.UUID, register Register, batches []*Batch) decimal.Decimal {
	total := decimal.Zero
	for _, b := range batches {
		if b.ProductID == productID && b.Register == register && b.IsConsumable() {
			total = total.Add(b.Quantity)
		}
	}
	return total
}

// OrderBatches returns the consumable batches of the request in draw order
func OrderBatches(req WithdrawalRequest, batches []*Batch, order strategy.ConsumptionOrderStrategy) []*Batch {
	eligible := make([]*Batch, 0, len(batches))
	for _, b := range batches {
		if b.ProductID == req.ProductID && b.Register == req.Register && b.IsConsumable() {
			eligible = append(eligible, b)
		}
	}
	slices.SortStableFunc(eligible, func(a, b *Batch) int {
		return order.Compare(a.Layer(), b.Layer())
	})
	return eligible
}

// Consume walks the batches in the strategy's order and takes the requested
// quantity. The available total is checked before any batch is touched, so a
// failed call leaves every batch unchanged.
func Consume(req WithdrawalRequest, batches []*Batch, order strategy.ConsumptionOrderStrategy) (*Consumption, error) {
	if !req.Register.IsValid() {
		return nil, shared.NewDomainError("INVALID_REGISTER", "Register must be ND or IM")
	}
	if req.Quantity.IsNegative() {
		return nil, shared.NewDomainError(CodeInvalidQuantity, "Quantity cannot be negative")
	}
	result := &Consumption{
		ProductID: req.ProductID,
		Register:  req.Register,
		Quantity:  decimal.Zero,
		TotalCost: decimal.Zero,
		UnitCost:  decimal.Zero,
	}
	if req.Quantity.IsZero() {
		return result, nil
	}

	ordered := OrderBatches(req, batches, order)
	available := TotalQuantity(ordered)
	if available.LessThan(req.Quantity) {
		return nil, NewInsufficientStockError(req.ProductID, req.Register, req.Quantity.Sub(available))
	}

	remaining := req.Quantity
	for _, b := range ordered {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, b.Quantity)
		if err := b.Take(take); err != nil {
			return nil, err
		}
		result.Draws = append(result.Draws, Draw{
			BatchID:   b.ID,
			ProductID: b.ProductID,
			Register:  b.Register,
			Quantity:  take,
			UnitCost:  b.UnitCost,
		})
		result.Touched = append(result.Touched, b)
		result.Quantity = result.Quantity.Add(take)
		result.TotalCost = result.TotalCost.Add(take.Mul(b.UnitCost))
		remaining = remaining.Sub(take)
	}

	result.UnitCost = WeightedUnitCost(result.TotalCost, result.Quantity)
	return result, nil
}

// WeightedUnitCost divides a total by a quantity and rounds half away from
// zero to CostScale. A zero quantity yields zero.
func WeightedUnitCost(total, quantity decimal.Decimal) decimal.Decimal {
	if quantity.IsZero() {
		return decimal.Zero
	}
	return total.Div(quantity).Round(CostScale)
}
