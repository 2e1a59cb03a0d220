package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/firesafe/ledger/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentType is the payment classification of a sale as recorded by the till
type PaymentType string

const (
	PaymentCashWithReceipt  PaymentType = "CashWithReceipt"
	PaymentCardWithReceipt  PaymentType = "CardWithReceipt"
	PaymentClickWithReceipt PaymentType = "ClickWithReceipt"
	PaymentSite             PaymentType = "Site"
	PaymentExchange         PaymentType = "Exchange"
	PaymentReturn           PaymentType = "Return"
	PaymentCredit           PaymentType = "Credit"
	PaymentCashNoReceipt    PaymentType = "CashNoReceipt"
	PaymentClickNoReceipt   PaymentType = "ClickNoReceipt"
	PaymentClick            PaymentType = "Click"
	PaymentPayme            PaymentType = "Payme"
	PaymentReservation      PaymentType = "Reservation"
)

// SettlementStrategy is the closed set of register draw plans
type SettlementStrategy string

const (
	SettlementOfficial    SettlementStrategy = "OFFICIAL"
	SettlementDeferred    SettlementStrategy = "DEFERRED"
	SettlementGrey        SettlementStrategy = "GREY"
	SettlementReservation SettlementStrategy = "RESERVATION"
)

var paymentStrategies = map[PaymentType]SettlementStrategy{
	PaymentCashWithReceipt:  SettlementOfficial,
	PaymentCardWithReceipt:  SettlementOfficial,
	PaymentClickWithReceipt: SettlementOfficial,
	PaymentSite:             SettlementOfficial,
	PaymentExchange:         SettlementOfficial,
	PaymentReturn:           SettlementOfficial,
	PaymentCredit:           SettlementDeferred,
	PaymentCashNoReceipt:    SettlementGrey,
	PaymentClickNoReceipt:   SettlementGrey,
	PaymentClick:            SettlementGrey,
	PaymentPayme:            SettlementGrey,
	PaymentReservation:      SettlementReservation,
}

// ParsePaymentType matches a payment type name case-insensitively
func ParsePaymentType(s string) (PaymentType, error) {
	s = strings.TrimSpace(s)
	for p := range paymentStrategies {
		if strings.EqualFold(string(p), s) {
			return p, nil
		}
	}
	return "", shared.NewDomainError(CodeInvalidPaymentType, fmt.Sprintf("Unknown payment type %q", s))
}

// ResolveSettlement maps a payment type onto its settlement strategy
func ResolveSettlement(p PaymentType) (SettlementStrategy, error) {
	s, ok := paymentStrategies[p]
	if !ok {
		return "", shared.NewDomainError(CodeInvalidPaymentType, fmt.Sprintf("Unknown payment type %q", p))
	}
	return s, nil
}

// Leg is one planned register draw
type Leg struct {
	Register Register
	Quantity decimal.Decimal
}

// planFunc turns the requested quantity into register legs. ndAvailable is
// the consumable ND quantity at planning time.
type planFunc func(quantity, ndAvailable decimal.Decimal) []Leg

func officialPlan(quantity, _ decimal.Decimal) []Leg {
	return []Leg{{Register: RegisterIM, Quantity: quantity}}
}

func greyPlan(quantity, ndAvailable decimal.Decimal) []Leg {
	fromND := decimal.Min(quantity, decimal.Max(ndAvailable, decimal.Zero))
	legs := make([]Leg, 0, 2)
	if fromND.IsPositive() {
		legs = append(legs, Leg{Register: RegisterND, Quantity: fromND})
	}
	if rest := quantity.Sub(fromND); rest.IsPositive() {
		legs = append(legs, Leg{Register: RegisterIM, Quantity: rest})
	}
	return legs
}

func reservationPlan(_, _ decimal.Decimal) []Leg {
	return nil
}

var settlementPlans = map[SettlementStrategy]planFunc{
	SettlementOfficial:    officialPlan,
	SettlementDeferred:    officialPlan,
	SettlementGrey:        greyPlan,
	SettlementReservation: reservationPlan,
}

// Plan returns the register legs for a settlement
func (s SettlementStrategy) Plan(quantity, ndAvailable decimal.Decimal) ([]Leg, error) {
	plan, ok := settlementPlans[s]
	if !ok {
		return nil, shared.NewDomainError("INVALID_SETTLEMENT_STRATEGY", fmt.Sprintf("Unknown settlement strategy %q", s))
	}
	return plan(quantity, ndAvailable), nil
}

// Registers returns the registers a strategy may draw from
func (s SettlementStrategy) Registers() []Register {
	switch s {
	case SettlementOfficial, SettlementDeferred:
		return []Register{RegisterIM}
	case SettlementGrey:
		return []Register{RegisterND, RegisterIM}
	}
	return nil
}

// SaleLine is the settlement request for one line of a sale
type SaleLine struct {
	ID          uuid.UUID
	ProductID   uuid.UUID
	Quantity    decimal.Decimal
	PaymentType PaymentType
}

// Settlement is the combined outcome of settling one sale line
type Settlement struct {
	SaleLineID uuid.UUID
	ProductID  uuid.UUID
	Strategy   SettlementStrategy
	Quantity   decimal.Decimal
	TotalCost  decimal.Decimal
	UnitCost   decimal.Decimal
	Legs       []*Consumption
	Trail      Trail
}

// Touched returns every batch decremented by the settlement
func (s *Settlement) Touched() []*Batch {
	var out []*Batch
	for _, leg := range s.Legs {
		out = append(out, leg.Touched...)
	}
	return out
}

// Settle draws the sale line from the batches according to its payment
// classification. Every leg is checked against the available quantity
// before any batch is decremented.
func Settle(line SaleLine, batches []*Batch, order strategy.ConsumptionOrderStrategy, at time.Time) (*Settlement, error) {
	if line.ID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SALE_LINE", "Sale line ID cannot be empty")
	}
	if line.Quantity.IsNegative() {
		return nil, shared.NewDomainError(CodeInvalidQuantity, "Quantity cannot be negative")
	}
	strat, err := ResolveSettlement(line.PaymentType)
	if err != nil {
		return nil, err
	}

	legs, err := strat.Plan(line.Quantity, Available(line.ProductID, RegisterND, batches))
	if err != nil {
		return nil, err
	}
	for _, leg := range legs {
		available := Available(line.ProductID, leg.Register, batches)
		if available.LessThan(leg.Quantity) {
			return nil, NewInsufficientStockError(line.ProductID, leg.Register, leg.Quantity.Sub(available))
		}
	}

	result := &Settlement{
		SaleLineID: line.ID,
		ProductID:  line.ProductID,
		Strategy:   strat,
		Quantity:   decimal.Zero,
		TotalCost:  decimal.Zero,
		UnitCost:   decimal.Zero,
	}
	for _, leg := range legs {
		c, err := Consume(WithdrawalRequest{ProductID: line.ProductID, Register: leg.Register, Quantity: leg.Quantity}, batches, order)
		if err != nil {
			return nil, err
		}
		result.Legs = append(result.Legs, c)
		result.Quantity = result.Quantity.Add(c.Quantity)
		result.TotalCost = result.TotalCost.Add(c.TotalCost)
		for _, d := range c.Draws {
			result.Trail = append(result.Trail, newConsumptionRecord(line.ID, d, len(result.Trail)+1, at.UTC()))
		}
	}
	result.UnitCost = WeightedUnitCost(result.TotalCost, result.Quantity)
	return result, nil
}
