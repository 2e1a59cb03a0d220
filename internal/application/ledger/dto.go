package ledger

import (
	"time"

	"github.com/firesafe/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateBatchRequest receives stock outside of a costing session
// (opening balances, manual corrections)
type CreateBatchRequest struct {
	ProductID  uuid.UUID
	Register   ledger.Register
	Quantity   decimal.Decimal
	UnitCost   decimal.Decimal
	Code       string
	ReceivedAt *time.Time
	SupplyID   *uuid.UUID // journal reference; a new ID is used when empty
}

// SettleRequest settles one sale line
type SettleRequest struct {
	SaleLineID     uuid.UUID
	ProductID      uuid.UUID
	Quantity       decimal.Decimal
	PaymentType    string
	IdempotencyKey string
}

// ReturnRequest reverses part of a settled sale line
type ReturnRequest struct {
	ReturnLineID   uuid.UUID
	SaleLineID     uuid.UUID
	Quantity       decimal.Decimal
	IdempotencyKey string
}

// TransferRequest moves cleared stock from ND to IM
type TransferRequest struct {
	ProductID uuid.UUID
	Code      string
	Quantity  decimal.Decimal
}

// BatchListFilter narrows batch listings
type BatchListFilter struct {
	ProductID       uuid.UUID
	Register        string
	Code            string
	IncludeArchived bool
	OrderBy         string
	OrderDir        string
	Page            int
	PageSize        int
}

// JournalListFilter narrows journal listings
type JournalListFilter struct {
	ProductID     *uuid.UUID
	Register      string
	ReferenceType string
	ReferenceID   *uuid.UUID
	From          *time.Time
	To            *time.Time
	OrderBy       string
	OrderDir      string
	Page          int
	PageSize      int
}

// BatchResponse represents a batch in API responses
type BatchResponse struct {
	ID         uuid.UUID       `json:"id"`
	ProductID  uuid.UUID       `json:"product_id"`
	Register   string          `json:"register"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	Code       string          `json:"code,omitempty"`
	Source     string          `json:"source"`
	ReceivedAt time.Time       `json:"received_at"`
	ArchivedAt *time.Time      `json:"archived_at,omitempty"`
}

// ConsumptionRecordResponse represents one trail entry
type ConsumptionRecordResponse struct {
	ID        uuid.UUID       `json:"id"`
	BatchID   uuid.UUID       `json:"batch_id"`
	Register  string          `json:"register"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Sequence  int             `json:"sequence"`
	CreatedAt time.Time       `json:"created_at"`
}

// SettlementResponse is the outcome of settling a sale line
type SettlementResponse struct {
	SaleLineID uuid.UUID                   `json:"sale_line_id"`
	ProductID  uuid.UUID                   `json:"product_id"`
	Strategy   string                      `json:"strategy"`
	Quantity   decimal.Decimal             `json:"quantity"`
	UnitCost   decimal.Decimal             `json:"unit_cost"`
	TotalCost  decimal.Decimal             `json:"total_cost"`
	Trail      []ConsumptionRecordResponse `json:"trail"`
}

// RestockRecordResponse represents one return credit
type RestockRecordResponse struct {
	ID                  uuid.UUID       `json:"id"`
	ConsumptionRecordID uuid.UUID       `json:"consumption_record_id"`
	BatchID             uuid.UUID       `json:"batch_id"`
	Register            string          `json:"register"`
	Quantity            decimal.Decimal `json:"quantity"`
	CreatedAt           time.Time       `json:"created_at"`
	CancelledAt         *time.Time      `json:"cancelled_at,omitempty"`
}

// ReturnResponse is the outcome of a reversal or its cancellation
type ReturnResponse struct {
	ReturnLineID uuid.UUID               `json:"return_line_id"`
	SaleLineID   uuid.UUID               `json:"sale_line_id"`
	Quantity     decimal.Decimal         `json:"quantity"`
	Restocks     []RestockRecordResponse `json:"restocks"`
}

// TrailResponse is the consumption and return history of a sale line
type TrailResponse struct {
	SaleLineID uuid.UUID                   `json:"sale_line_id"`
	Quantity   decimal.Decimal             `json:"quantity"`
	Returnable decimal.Decimal             `json:"returnable"`
	Records    []ConsumptionRecordResponse `json:"records"`
	Restocks   []RestockRecordResponse     `json:"restocks"`
}

// TransferResponse is the outcome of an ND to IM transfer
type TransferResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Code      string          `json:"code"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Batches   []BatchResponse `json:"batches"`
}

// BalancesResponse holds both register balances of a product
type BalancesResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	ND        decimal.Decimal `json:"nd"`
	IM        decimal.Decimal `json:"im"`
	Total     decimal.Decimal `json:"total"`
}

// RegisterDrift reports a balance that did not match its batches
type RegisterDrift struct {
	Register   string          `json:"register"`
	Balance    decimal.Decimal `json:"balance"`
	BatchSum   decimal.Decimal `json:"batch_sum"`
	Difference decimal.Decimal `json:"difference"`
}

// ReconcileResponse lists the drift corrected for a product
type ReconcileResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Drifts    []RegisterDrift `json:"drifts"`
}

// JournalEntryResponse represents an inventory transaction
type JournalEntryResponse struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"product_id"`
	Register      string          `json:"register"`
	Type          string          `json:"type"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	BatchID       *uuid.UUID      `json:"batch_id,omitempty"`
	ReferenceType string          `json:"reference_type"`
	ReferenceID   uuid.UUID       `json:"reference_id"`
	Note          string          `json:"note,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SnapshotResponse represents one product's end-of-day stock
type SnapshotResponse struct {
	Date      time.Time       `json:"date"`
	ProductID uuid.UUID       `json:"product_id"`
	ND        decimal.Decimal `json:"nd"`
	IM        decimal.Decimal `json:"im"`
	Total     decimal.Decimal `json:"total"`
}

// SnapshotArchiveResponse locates an archived snapshot workbook
type SnapshotArchiveResponse struct {
	Date      time.Time `json:"date"`
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	Products  int       `json:"products,omitempty"`
}

// ToBatchResponse converts a domain batch to a response
func ToBatchResponse(b *ledger.Batch) BatchResponse {
	return BatchResponse{
		ID:         b.ID,
		ProductID:  b.ProductID,
		Register:   b.Register.String(),
		Quantity:   b.Quantity,
		UnitCost:   b.UnitCost,
		Code:       b.Code,
		Source:     string(b.Source),
		ReceivedAt: b.ReceivedAt,
		ArchivedAt: b.ArchivedAt,
	}
}

// ToBatchResponses converts a slice of batches
func ToBatchResponses(batches []*ledger.Batch) []BatchResponse {
	out := make([]BatchResponse, len(batches))
	for i, b := range batches {
		out[i] = ToBatchResponse(b)
	}
	return out
}

func toConsumptionRecordResponses(trail ledger.Trail) []ConsumptionRecordResponse {
	out := make([]ConsumptionRecordResponse, len(trail))
	for i, r := range trail {
		out[i] = ConsumptionRecordResponse{
			ID:        r.ID,
			BatchID:   r.BatchID,
			Register:  r.Register.String(),
			Quantity:  r.Quantity,
			UnitCost:  r.UnitCost,
			Sequence:  r.Sequence,
			CreatedAt: r.CreatedAt,
		}
	}
	return out
}

func toRestockRecordResponses(restocks []ledger.RestockRecord) []RestockRecordResponse {
	out := make([]RestockRecordResponse, len(restocks))
	for i, r := range restocks {
		out[i] = RestockRecordResponse{
			ID:                  r.ID,
			ConsumptionRecordID: r.ConsumptionRecordID,
			BatchID:             r.BatchID,
			Register:            r.Register.String(),
			Quantity:            r.Quantity,
			CreatedAt:           r.CreatedAt,
			CancelledAt:         r.CancelledAt,
		}
	}
	return out
}

// ToSettlementResponse converts a settlement to a response
func ToSettlementResponse(s *ledger.Settlement) SettlementResponse {
	return SettlementResponse{
		SaleLineID: s.SaleLineID,
		ProductID:  s.ProductID,
		Strategy:   string(s.Strategy),
		Quantity:   s.Quantity,
		UnitCost:   s.UnitCost,
		TotalCost:  s.TotalCost.Round(ledger.CostScale),
		Trail:      toConsumptionRecordResponses(s.Trail),
	}
}

func toJournalEntryResponse(t *ledger.InventoryTransaction) JournalEntryResponse {
	return JournalEntryResponse{
		ID:            t.ID,
		ProductID:     t.ProductID,
		Register:      t.Register.String(),
		Type:          string(t.Type),
		Quantity:      t.Quantity,
		UnitCost:      t.UnitCost,
		BatchID:       t.BatchID,
		ReferenceType: string(t.ReferenceType),
		ReferenceID:   t.ReferenceID,
		Note:          t.Note,
		CreatedAt:     t.CreatedAt,
	}
}

func toSnapshotResponse(s *ledger.StockSnapshot) SnapshotResponse {
	return SnapshotResponse{
		Date:      s.Date,
		ProductID: s.ProductID,
		ND:        s.NDQty,
		IM:        s.IMQty,
		Total:     s.TotalQty,
	}
}
