package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/firesafe/ledger/internal/domain/costing"
	"github.com/firesafe/ledger/internal/domain/ledger"
	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/firesafe/ledger/internal/infrastructure/logger"
	"github.com/firesafe/ledger/internal/interfaces/http/dto"
	"github.com/firesafe/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

func newTestContext(method, target string, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	c.Request = req
	return c, w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "body: %s", w.Body.String())
	return resp
}

func TestGetRequestID(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*gin.Context)
		expectedID string
	}{
		{
			name: "from request context",
			setup: func(c *gin.Context) {
				c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), "ctx-request-id"))
			},
			expectedID: "ctx-request-id",
		},
		{
			name: "from header when context empty",
			setup: func(c *gin.Context) {
				c.Request.Header.Set(logger.RequestIDHeader, "header-request-id")
			},
			expectedID: "header-request-id",
		},
		{
			name:       "empty when not set",
			setup:      func(c *gin.Context) {},
			expectedID: "",
		},
		{
			name: "context takes precedence over header",
			setup: func(c *gin.Context) {
				c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), "ctx-id"))
				c.Request.Header.Set(logger.RequestIDHeader, "header-id")
			},
			expectedID: "ctx-id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext(http.MethodGet, "/", "")
			tt.setup(c)
			assert.Equal(t, tt.expectedID, getRequestID(c))
		})
	}
}

func TestBaseHandlerSuccess(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext(http.MethodGet, "/", "")

	h.Success(c, map[string]string{"nd": "12"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.Equal(t, map[string]any{"nd": "12"}, resp.Data)
}

func TestBaseHandlerCreated(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext(http.MethodPost, "/", "")

	h.Created(c, gin.H{"id": "b-1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, decodeResponse(t, w).Success)
}

func TestBaseHandlerSuccessWithMeta(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext(http.MethodGet, "/", "")

	h.SuccessWithMeta(c, []string{"a", "b"}, 45, 2, 20)

	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(45), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.Page)
	assert.Equal(t, 3, resp.Meta.TotalPages)
}

func TestBaseHandlerErrorCarriesRequestID(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext(http.MethodGet, "/", "")
	c.Request.Header.Set(logger.RequestIDHeader, "req-42")

	h.BadRequest(c, "Invalid date")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
	assert.Equal(t, "Invalid date", resp.Error.Message)
	assert.Equal(t, "req-42", resp.Error.RequestID)
}

func TestHandleError(t *testing.T) {
	productID := uuid.New()
	tests := []struct {
		name     string
		err      error
		status   int
		code     string
		internal bool
	}{
		{
			name:   "insufficient stock",
			err:    ledger.NewInsufficientStockError(productID, ledger.RegisterIM, decimal.NewFromInt(3)),
			status: http.StatusUnprocessableEntity,
			code:   ledger.CodeInsufficientStock,
		},
		{
			name:   "wrapped insufficient stock",
			err:    fmt.Errorf("settle: %w", ledger.NewInsufficientStockError(productID, ledger.RegisterND, decimal.NewFromInt(1))),
			status: http.StatusUnprocessableEntity,
			code:   ledger.CodeInsufficientStock,
		},
		{
			name:   "over return",
			err:    ledger.NewOverReturnError(uuid.New(), decimal.NewFromInt(5), decimal.NewFromInt(2)),
			status: http.StatusUnprocessableEntity,
			code:   ledger.CodeOverReturn,
		},
		{
			name:   "sale line not settled",
			err:    ledger.ErrSaleLineNotSettled,
			status: http.StatusNotFound,
			code:   ledger.CodeSaleLineNotSettled,
		},
		{
			name:   "already settled",
			err:    ledger.ErrSaleLineAlreadySettled,
			status: http.StatusConflict,
			code:   ledger.CodeSaleLineAlreadySettled,
		},
		{
			name:   "finalized session",
			err:    costing.ErrSessionFinalized,
			status: http.StatusConflict,
			code:   dto.ErrCodeSessionFinalized,
		},
		{
			name:   "duplicate request",
			err:    shared.ErrDuplicateRequest,
			status: http.StatusConflict,
			code:   dto.ErrCodeDuplicateRequest,
		},
		{
			name:   "unlisted invalid code",
			err:    shared.NewDomainError("INVALID_COST", "Unit cost cannot be negative"),
			status: http.StatusBadRequest,
			code:   "INVALID_COST",
		},
		{
			name:     "plain error",
			err:      errors.New("connection reset by peer"),
			status:   http.StatusInternalServerError,
			code:     dto.ErrCodeInternal,
			internal: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			c, w := newTestContext(http.MethodPost, "/", "")

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			if tt.internal {
				assert.NotContains(t, resp.Error.Message, "connection reset")
			}
			assert.Len(t, c.Errors, 1)
		})
	}
}

func TestHandleErrorNil(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext(http.MethodPost, "/", "")

	h.HandleError(c, nil)

	assert.Empty(t, c.Errors)
	assert.Zero(t, w.Body.Len())
}

func TestParamUUID(t *testing.T) {
	h := &BaseHandler{}

	t.Run("valid", func(t *testing.T) {
		id := uuid.New()
		c, _ := newTestContext(http.MethodGet, "/", "")
		c.Params = gin.Params{{Key: "id", Value: id.String()}}

		got, ok := h.ParamUUID(c, "id")
		assert.True(t, ok)
		assert.Equal(t, id, got)
	})

	t.Run("malformed", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/", "")
		c.Params = gin.Params{{Key: "saleLineId", Value: "not-a-uuid"}}

		_, ok := h.ParamUUID(c, "saleLineId")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid saleLineId format", decodeResponse(t, w).Error.Message)
	})
}

func TestBindJSON(t *testing.T) {
	h := &BaseHandler{}

	t.Run("valid settle body", func(t *testing.T) {
		body := fmt.Sprintf(`{"sale_line_id":%q,"product_id":%q,"quantity":"2.5","payment_type":"cashwithreceipt"}`,
			uuid.NewString(), uuid.NewString())
		c, _ := newTestContext(http.MethodPost, "/", body)

		var got SettleBody
		require.True(t, h.BindJSON(c, &got))
		assert.True(t, got.Quantity.Equal(decimal.RequireFromString("2.5")))
		assert.Equal(t, "cashwithreceipt", got.PaymentType)
	})

	t.Run("invalid body answers 400 with details", func(t *testing.T) {
		body := fmt.Sprintf(`{"sale_line_id":%q,"quantity":"0","payment_type":"barter"}`, uuid.NewString())
		c, w := newTestContext(http.MethodPost, "/", body)

		var got SettleBody
		assert.False(t, h.BindJSON(c, &got))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		fields := make([]string, 0, len(resp.Error.Details))
		for _, d := range resp.Error.Details {
			fields = append(fields, d.Field)
		}
		assert.ElementsMatch(t, []string{"product_id", "quantity", "payment_type"}, fields)
	})
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, 2024, d.Year())

	d, err = parseDate("2024-05-01T10:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 10, d.Hour())

	_, err = parseDate("01/05/2024")
	assert.Error(t, err)
}
