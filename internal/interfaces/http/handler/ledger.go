package handler

import (
	"bytes"
	"net/http"
	"time"

	ledgerapp "github.com/firesafe/ledger/internal/application/ledger"
	"github.com/firesafe/ledger/internal/domain/ledger"
	"github.com/firesafe/ledger/internal/interfaces/http/dto"
	"github.com/firesafe/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// XLSXContentType is the media type of snapshot exports
const XLSXContentType = ledgerapp.XLSXContentType

// LedgerHandler handles batch, settlement, return, transfer and snapshot endpoints
type LedgerHandler struct {
	BaseHandler
	ledgerService *ledgerapp.Service
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledgerService *ledgerapp.Service) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

// CreateBatchBody receives stock outside a costing session
type CreateBatchBody struct {
	ProductID  uuid.UUID       `json:"product_id" binding:"required"`
	Register   string          `json:"register" binding:"required,register"`
	Quantity   decimal.Decimal `json:"quantity" binding:"positive_decimal"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	Code       string          `json:"code" binding:"max=64"`
	ReceivedAt *time.Time      `json:"received_at"`
	SupplyID   *uuid.UUID      `json:"supply_id"`
}

// SettleBody settles one sale line. A zero quantity settles nothing.
type SettleBody struct {
	SaleLineID  uuid.UUID       `json:"sale_line_id" binding:"required"`
	ProductID   uuid.UUID       `json:"product_id" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity" binding:"nonnegative_decimal"`
	PaymentType string          `json:"payment_type" binding:"required,payment_type"`
}

// ReturnBody reverses part of a settled sale line
type ReturnBody struct {
	ReturnLineID uuid.UUID       `json:"return_line_id" binding:"required"`
	SaleLineID   uuid.UUID       `json:"sale_line_id" binding:"required"`
	Quantity     decimal.Decimal `json:"quantity" binding:"positive_decimal"`
}

// TransferBody moves cleared stock from ND to IM
type TransferBody struct {
	ProductID uuid.UUID       `json:"product_id" binding:"required"`
	Code      string          `json:"code" binding:"required,max=64"`
	Quantity  decimal.Decimal `json:"quantity" binding:"positive_decimal"`
}

// BatchListQuery narrows a product's batch listing
type BatchListQuery struct {
	dto.ListRequest
	Register        string `form:"register" binding:"omitempty,register"`
	Code            string `form:"code"`
	IncludeArchived bool   `form:"include_archived"`
}

// JournalListQuery narrows the journal listing
type JournalListQuery struct {
	dto.ListRequest
	ProductID     string `form:"product_id" binding:"omitempty,uuid"`
	Register      string `form:"register" binding:"omitempty,register"`
	ReferenceType string `form:"reference_type" binding:"omitempty,oneof=SUPPLY COSTING_SESSION SALE_LINE RETURN_LINE TRANSFER RECONCILE"`
	ReferenceID   string `form:"reference_id" binding:"omitempty,uuid"`
	From          string `form:"from"`
	To            string `form:"to"`
}

// CreateBatch receives a batch and journals it as a PURCHASE
func (h *LedgerHandler) CreateBatch(c *gin.Context) {
	var body CreateBatchBody
	if !h.BindJSON(c, &body) {
		return
	}
	register, err := ledger.ParseRegister(body.Register)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	batch, err := h.ledgerService.CreateBatch(c.Request.Context(), ledgerapp.CreateBatchRequest{
		ProductID:  body.ProductID,
		Register:   register,
		Quantity:   body.Quantity,
		UnitCost:   body.UnitCost,
		Code:       body.Code,
		ReceivedAt: body.ReceivedAt,
		SupplyID:   body.SupplyID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, batch)
}

// Settle draws a sale line's quantity from the registers its payment type selects
func (h *LedgerHandler) Settle(c *gin.Context) {
	var body SettleBody
	if !h.BindJSON(c, &body) {
		return
	}

	result, err := h.ledgerService.Settle(c.Request.Context(), ledgerapp.SettleRequest{
		SaleLineID:     body.SaleLineID,
		ProductID:      body.ProductID,
		Quantity:       body.Quantity,
		PaymentType:    body.PaymentType,
		IdempotencyKey: middleware.GetIdempotencyKey(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Return restocks part of a settled sale line along its consumption trail
func (h *LedgerHandler) Return(c *gin.Context) {
	var body ReturnBody
	if !h.BindJSON(c, &body) {
		return
	}

	result, err := h.ledgerService.Reverse(c.Request.Context(), ledgerapp.ReturnRequest{
		ReturnLineID:   body.ReturnLineID,
		SaleLineID:     body.SaleLineID,
		Quantity:       body.Quantity,
		IdempotencyKey: middleware.GetIdempotencyKey(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// CancelReturn withdraws the stock a return restocked
func (h *LedgerHandler) CancelReturn(c *gin.Context) {
	returnLineID, ok := h.ParamUUID(c, "returnLineId")
	if !ok {
		return
	}

	result, err := h.ledgerService.CancelReturn(c.Request.Context(), returnLineID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Transfer moves cleared stock of one code from ND to IM
func (h *LedgerHandler) Transfer(c *gin.Context) {
	var body TransferBody
	if !h.BindJSON(c, &body) {
		return
	}

	result, err := h.ledgerService.TransferToOfficial(c.Request.Context(), ledgerapp.TransferRequest{
		ProductID: body.ProductID,
		Code:      body.Code,
		Quantity:  body.Quantity,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// GetBalances returns ND, IM and total stock of a product
func (h *LedgerHandler) GetBalances(c *gin.Context) {
	productID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}

	balances, err := h.ledgerService.GetBalances(c.Request.Context(), productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balances)
}

// ListBatches lists a product's batches
func (h *LedgerHandler) ListBatches(c *gin.Context) {
	productID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var q BatchListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Normalize()

	batches, total, err := h.ledgerService.ListBatches(c.Request.Context(), ledgerapp.BatchListFilter{
		ProductID:       productID,
		Register:        q.Register,
		Code:            q.Code,
		IncludeArchived: q.IncludeArchived,
		OrderBy:         q.OrderBy,
		OrderDir:        q.OrderDir,
		Page:            q.Page,
		PageSize:        q.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, batches, total, q.Page, q.PageSize)
}

// Reconcile rebuilds a product's register balances from its batches
func (h *LedgerHandler) Reconcile(c *gin.Context) {
	productID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.ledgerService.Reconcile(c.Request.Context(), productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// GetTrail returns the consumption trail and returns of a sale line
func (h *LedgerHandler) GetTrail(c *gin.Context) {
	saleLineID, ok := h.ParamUUID(c, "saleLineId")
	if !ok {
		return
	}

	trail, err := h.ledgerService.GetTrail(c.Request.Context(), saleLineID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, trail)
}

// ListJournal lists inventory transactions
func (h *LedgerHandler) ListJournal(c *gin.Context) {
	var q JournalListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Normalize()

	filter := ledgerapp.JournalListFilter{
		Register:      q.Register,
		ReferenceType: q.ReferenceType,
		OrderBy:       q.OrderBy,
		OrderDir:      q.OrderDir,
		Page:          q.Page,
		PageSize:      q.PageSize,
	}
	if q.ProductID != "" {
		id := uuid.MustParse(q.ProductID)
		filter.ProductID = &id
	}
	if q.ReferenceID != "" {
		id := uuid.MustParse(q.ReferenceID)
		filter.ReferenceID = &id
	}
	if q.From != "" {
		from, err := parseDate(q.From)
		if err != nil {
			h.BadRequest(c, "Invalid from date")
			return
		}
		filter.From = &from
	}
	if q.To != "" {
		to, err := parseDate(q.To)
		if err != nil {
			h.BadRequest(c, "Invalid to date")
			return
		}
		filter.To = &to
	}

	entries, total, err := h.ledgerService.ListJournal(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, entries, total, q.Page, q.PageSize)
}

// TakeSnapshot stores today's stock snapshot
func (h *LedgerHandler) TakeSnapshot(c *gin.Context) {
	rows, err := h.ledgerService.TakeSnapshot(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, rows)
}

// GetSnapshot returns the stock snapshot of ?date=, today when omitted
func (h *LedgerHandler) GetSnapshot(c *gin.Context) {
	date, ok := h.snapshotDate(c)
	if !ok {
		return
	}

	rows, err := h.ledgerService.GetSnapshot(c.Request.Context(), date)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rows)
}

// ExportSnapshot downloads the stock snapshot of ?date= as XLSX
func (h *LedgerHandler) ExportSnapshot(c *gin.Context) {
	date, ok := h.snapshotDate(c)
	if !ok {
		return
	}

	// Buffered so a failure can still answer with JSON
	var buf bytes.Buffer
	if err := h.ledgerService.ExportSnapshot(c.Request.Context(), date, &buf); err != nil {
		h.HandleError(c, err)
		return
	}
	day := date
	if day.IsZero() {
		day = time.Now()
	}
	filename := ledgerapp.SnapshotArchiveKey(ledger.SnapshotDay(day))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, XLSXContentType, buf.Bytes())
}

// ArchiveSnapshot uploads the workbook of ?date= to the snapshot archive
func (h *LedgerHandler) ArchiveSnapshot(c *gin.Context) {
	date, ok := h.snapshotDate(c)
	if !ok {
		return
	}
	resp, err := h.ledgerService.ArchiveSnapshot(c.Request.Context(), date)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// GetSnapshotArchive returns a presigned download URL for an archived day
func (h *LedgerHandler) GetSnapshotArchive(c *gin.Context) {
	date, ok := h.snapshotDate(c)
	if !ok {
		return
	}
	resp, err := h.ledgerService.GetSnapshotArchive(c.Request.Context(), date)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

func (h *LedgerHandler) snapshotDate(c *gin.Context) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		return time.Time{}, true
	}
	date, err := parseDate(raw)
	if err != nil {
		h.BadRequest(c, "Invalid date, expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}
