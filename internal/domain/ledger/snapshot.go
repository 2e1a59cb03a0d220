package ledger

import (
	"time"

	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockSnapshot is the end-of-day quantity of one product in both registers
type StockSnapshot struct {
	ID        uuid.UUID
	Date      time.Time // truncated to the UTC day
	ProductID uuid.UUID
	NDQty     decimal.Decimal
	IMQty     decimal.Decimal
	TotalQty  decimal.Decimal
	CreatedAt time.Time
}

// SnapshotDay truncates a timestamp to its UTC day
func SnapshotDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// BuildSnapshots groups balances per product into snapshots for the day.
// Products with zero stock in both registers are skipped.
func BuildSnapshots(balances []*StockBalance, at time.Time) []*StockSnapshot {
	byProduct := make(map[uuid.UUID]*StockSnapshot)
	order := make([]uuid.UUID, 0)
	day := SnapshotDay(at)
	for _, b := range balances {
		s, ok := byProduct[b.ProductID]
		if !ok {
			s = &StockSnapshot{
				ID:        shared.NewID(),
				Date:      day,
				ProductID: b.ProductID,
				NDQty:     decimal.Zero,
				IMQty:     decimal.Zero,
				CreatedAt: at.UTC(),
			}
			byProduct[b.ProductID] = s
			order = append(order, b.ProductID)
		}
		switch b.Register {
		case RegisterND:
			s.NDQty = s.NDQty.Add(b.Quantity)
		case RegisterIM:
			s.IMQty = s.IMQty.Add(b.Quantity)
		}
	}

	out := make([]*StockSnapshot, 0, len(order))
	for _, id := range order {
		s := byProduct[id]
		s.TotalQty = s.NDQty.Add(s.IMQty)
		if s.TotalQty.IsZero() {
			continue
		}
		out = append(out, s)
	}
	return out
}
