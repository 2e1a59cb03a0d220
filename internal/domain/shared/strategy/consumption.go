package strategy

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConsumptionOrder names the order in which cost layers are drained
type ConsumptionOrder string

const (
	ConsumptionOrderFIFO ConsumptionOrder = "fifo"
	ConsumptionOrderLIFO ConsumptionOrder = "lifo"
)

// String returns the string representation of the consumption order
func (o ConsumptionOrder) String() string {
	return string(o)
}

// StockLayer is the ordering view of a cost-bearing batch
type StockLayer struct {
	ID         uuid.UUID
	ReceivedAt time.Time
	Quantity   decimal.Decimal
	UnitCost   decimal.Decimal
}

// ConsumptionOrderStrategy decides which layer is drawn first.
// Compare must define a total order so that repeated reads produce the same walk.
type ConsumptionOrderStrategy interface {
	Strategy
	// Order returns the consumption order implemented by this strategy
	Order() ConsumptionOrder
	// Compare returns a negative number when a must be drawn before b,
	// a positive number when b comes first and zero only for the same layer.
	Compare(a, b StockLayer) int
}
