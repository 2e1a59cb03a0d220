package handler

import (
	costingapp "github.com/firesafe/ledger/internal/application/costing"
	"github.com/firesafe/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CostingHandler handles costing session endpoints
type CostingHandler struct {
	BaseHandler
	costingService *costingapp.Service
}

// NewCostingHandler creates a new CostingHandler
func NewCostingHandler(costingService *costingapp.Service) *CostingHandler {
	return &CostingHandler{costingService: costingService}
}

// CreateSessionBody opens a draft costing session
type CreateSessionBody struct {
	SupplyID       uuid.UUID              `json:"supply_id" binding:"required"`
	SupplyCode     string                 `json:"supply_code" binding:"required,max=64"`
	Register       string                 `json:"register" binding:"required,register"`
	ExchangeRate   decimal.Decimal        `json:"exchange_rate" binding:"positive_decimal"`
	Method         string                 `json:"method" binding:"omitempty,max=32"`
	PercentageFees []costingapp.FeeInput  `json:"percentage_fees" binding:"omitempty,dive"`
	AbsoluteFees   []costingapp.FeeInput  `json:"absolute_fees" binding:"omitempty,dive"`
	Lines          []costingapp.LineInput `json:"lines" binding:"omitempty,dive"`
}

// UpdateSessionBody edits a draft session; omitted fields stay unchanged
type UpdateSessionBody struct {
	ExchangeRate   *decimal.Decimal       `json:"exchange_rate"`
	PercentageFees []costingapp.FeeInput  `json:"percentage_fees" binding:"omitempty,dive"`
	AbsoluteFees   []costingapp.FeeInput  `json:"absolute_fees" binding:"omitempty,dive"`
	Lines          []costingapp.LineInput `json:"lines" binding:"omitempty,dive"`
}

// SessionListQuery narrows session listings
type SessionListQuery struct {
	dto.ListRequest
	SupplyID string `form:"supply_id" binding:"omitempty,uuid"`
	Status   string `form:"status" binding:"omitempty,oneof=DRAFT FINALIZED"`
}

// CreateSession opens a draft session for a supply
func (h *CostingHandler) CreateSession(c *gin.Context) {
	var body CreateSessionBody
	if !h.BindJSON(c, &body) {
		return
	}

	session, err := h.costingService.CreateSession(c.Request.Context(), costingapp.CreateSessionRequest{
		SupplyID:       body.SupplyID,
		SupplyCode:     body.SupplyCode,
		Register:       body.Register,
		ExchangeRate:   body.ExchangeRate,
		Method:         body.Method,
		PercentageFees: body.PercentageFees,
		AbsoluteFees:   body.AbsoluteFees,
		Lines:          body.Lines,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, session)
}

// UpdateSession edits the terms or lines of a draft session
func (h *CostingHandler) UpdateSession(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var body UpdateSessionBody
	if !h.BindJSON(c, &body) {
		return
	}

	session, err := h.costingService.UpdateSession(c.Request.Context(), id, costingapp.UpdateSessionRequest{
		ExchangeRate:   body.ExchangeRate,
		PercentageFees: body.PercentageFees,
		AbsoluteFees:   body.AbsoluteFees,
		Lines:          body.Lines,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, session)
}

// GetSession returns a session with its lines and snapshots
func (h *CostingHandler) GetSession(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}

	session, err := h.costingService.GetSession(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, session)
}

// ListSessions lists sessions
func (h *CostingHandler) ListSessions(c *gin.Context) {
	var q SessionListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Normalize()

	filter := costingapp.SessionListFilter{
		Status:   q.Status,
		OrderBy:  q.OrderBy,
		OrderDir: q.OrderDir,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if q.SupplyID != "" {
		id := uuid.MustParse(q.SupplyID)
		filter.SupplyID = &id
	}

	sessions, total, err := h.costingService.ListSessions(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, sessions, total, q.Page, q.PageSize)
}

// Recalculate recomputes the landed costs of a draft session
func (h *CostingHandler) Recalculate(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}

	session, err := h.costingService.Recalculate(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, session)
}

// Finalize freezes a calculated session and receives its batches
func (h *CostingHandler) Finalize(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}

	session, err := h.costingService.Finalize(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, session)
}
