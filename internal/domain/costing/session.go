package costing

import (
	"time"

	"github.com/firesafe/ledger/internal/domain/ledger"
	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/firesafe/ledger/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the status of a costing session
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusFinalized Status = "FINALIZED"
)

// IsValid returns true if the status is known
func (s Status) IsValid() bool {
	return s == StatusDraft || s == StatusFinalized
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s Status) CanTransitionTo(target Status) bool {
	return s == StatusDraft && target == StatusFinalized
}

// Session holds the overhead configuration of one supply and the landed
// costs computed from it. Draft sessions can be edited and recomputed;
// finalized sessions are read-only.
type Session struct {
	shared.BaseAggregateRoot
	SupplyID       uuid.UUID
	SupplyCode     string
	Register       ledger.Register // register the finalized batches are received into
	ExchangeRate   decimal.Decimal
	PercentageFees []Fee
	AbsoluteFees   []Fee
	Method         strategy.ApportionMethod
	Status         Status
	Lines          []Line
	Snapshots      []ItemSnapshot
	CalculatedAt   *time.Time
	FinalizedAt    *time.Time
}

// NewSession creates a draft costing session
func NewSession(supplyID uuid.UUID, supplyCode string, register ledger.Register, exchangeRate decimal.Decimal, method strategy.ApportionMethod) (*Session, error) {
	if supplyID == uuid.Nil {
		return nil, invalidInput("supply ID is required")
	}
	if !register.IsValid() {
		return nil, invalidInput("register must be ND or IM")
	}
	if !exchangeRate.IsPositive() {
		return nil, invalidInput("exchange rate must be positive")
	}
	if method == "" {
		method = strategy.ApportionMethodByQuantity
	}
	pct, abs := DefaultFees()
	return &Session{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SupplyID:          supplyID,
		SupplyCode:        supplyCode,
		Register:          register,
		ExchangeRate:      exchangeRate,
		PercentageFees:    pct,
		AbsoluteFees:      abs,
		Method:            method,
		Status:            StatusDraft,
	}, nil
}

// IsFinalized returns true once the session is read-only
func (s *Session) IsFinalized() bool {
	return s.Status == StatusFinalized
}

// Terms returns the apportionment parameters of the session
func (s *Session) Terms() Terms {
	return Terms{
		ExchangeRate:   s.ExchangeRate,
		PercentageFees: s.PercentageFees,
		AbsoluteFees:   s.AbsoluteFees,
	}
}

// UpdateTerms replaces the exchange rate and fee sets. Existing snapshots
// are dropped and must be recalculated.
func (s *Session) UpdateTerms(exchangeRate decimal.Decimal, percentage, absolute []Fee) error {
	if s.IsFinalized() {
		return ErrSessionFinalized
	}
	if !exchangeRate.IsPositive() {
		return invalidInput("exchange rate must be positive")
	}
	seen := make(map[string]struct{})
	if err := validateFees("percentage", percentage, seen); err != nil {
		return err
	}
	if err := validateFees("absolute", absolute, seen); err != nil {
		return err
	}
	s.ExchangeRate = exchangeRate
	s.PercentageFees = percentage
	s.AbsoluteFees = absolute
	s.invalidate()
	return nil
}

// SetLines replaces the supply lines of a draft session
func (s *Session) SetLines(lines []Line) error {
	if s.IsFinalized() {
		return ErrSessionFinalized
	}
	for i := range lines {
		if lines[i].ProductID == uuid.Nil {
			return invalidInput("line %d product is required", i+1)
		}
		if lines[i].ID == uuid.Nil {
			lines[i].ID = shared.NewID()
		}
	}
	s.Lines = lines
	s.invalidate()
	return nil
}

// Recalculate recomputes the snapshots from the current terms and lines
func (s *Session) Recalculate(method strategy.ApportionmentStrategy, at time.Time) error {
	if s.IsFinalized() {
		return ErrSessionFinalized
	}
	snaps, err := Apportion(s.Terms(), s.Lines, method)
	if err != nil {
		return err
	}
	t := at.UTC()
	s.Snapshots = snaps
	s.CalculatedAt = &t
	s.IncrementVersion()
	return nil
}

// Finalize freezes the session. Snapshots must have been calculated.
func (s *Session) Finalize(at time.Time) error {
	if !s.Status.CanTransitionTo(StatusFinalized) {
		return ErrSessionFinalized
	}
	if len(s.Snapshots) == 0 || s.CalculatedAt == nil {
		return ErrNotCalculated
	}
	t := at.UTC()
	s.Status = StatusFinalized
	s.FinalizedAt = &t
	s.IncrementVersion()
	return nil
}

// ReceiptBatches builds one batch per snapshot, costed at the unit landed cost
func (s *Session) ReceiptBatches(at time.Time) ([]*ledger.Batch, error) {
	if !s.IsFinalized() {
		return nil, shared.NewDomainError("INVALID_STATE", "Only finalized sessions can be received")
	}
	batches := make([]*ledger.Batch, 0, len(s.Snapshots))
	for _, snap := range s.Snapshots {
		b, err := ledger.NewBatch(snap.ProductID, s.Register, snap.Quantity, snap.UnitCost, at, ledger.BatchSourcePurchase)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b.WithCode(s.SupplyCode))
	}
	return batches, nil
}

func (s *Session) invalidate() {
	s.Snapshots = nil
	s.CalculatedAt = nil
	s.IncrementVersion()
}
