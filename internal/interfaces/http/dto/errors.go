package dto

import (
	"net/http"
	"strings"
)

// Transport-level error codes. Domain errors keep their own codes.
const (
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeRouteNotFound = "ROUTE_NOT_FOUND"
	ErrCodeTooLarge      = "REQUEST_TOO_LARGE"
)

// Ledger and costing error codes
const (
	ErrCodeInsufficientStock      = "INSUFFICIENT_STOCK"
	ErrCodeOverReturn             = "OVER_RETURN"
	ErrCodeArchivedBatchTarget    = "ARCHIVED_BATCH_TARGET"
	ErrCodeSaleLineAlreadySettled = "SALE_LINE_ALREADY_SETTLED"
	ErrCodeSaleLineNotSettled     = "SALE_LINE_NOT_SETTLED"
	ErrCodeReturnAlreadyApplied   = "RETURN_ALREADY_APPLIED"
	ErrCodeReturnAlreadyCancelled = "RETURN_ALREADY_CANCELLED"
	ErrCodeInvalidApportionment   = "INVALID_APPORTIONMENT_INPUT"
	ErrCodeSessionFinalized       = "COSTING_SESSION_FINALIZED"
	ErrCodeNotCalculated          = "COSTING_NOT_CALCULATED"
	ErrCodeDuplicateRequest       = "DUPLICATE_REQUEST"
	ErrCodeAlreadyExists          = "ALREADY_EXISTS"
	ErrCodeConcurrencyConflict    = "CONCURRENCY_CONFLICT"
	ErrCodeInvalidState           = "INVALID_STATE"
	ErrCodeInvalidInput           = "INVALID_INPUT"
	ErrCodeArchiveDisabled        = "SNAPSHOT_ARCHIVE_DISABLED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:      http.StatusInternalServerError,
	ErrCodeBadRequest:    http.StatusBadRequest,
	ErrCodeValidation:    http.StatusBadRequest,
	ErrCodeInvalidInput:  http.StatusBadRequest,
	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeRouteNotFound: http.StatusNotFound,
	ErrCodeTooLarge:      http.StatusRequestEntityTooLarge,

	// Stock and costing preconditions -> 422
	ErrCodeInsufficientStock: http.StatusUnprocessableEntity,
	ErrCodeOverReturn:        http.StatusUnprocessableEntity,
	ErrCodeNotCalculated:     http.StatusUnprocessableEntity,
	ErrCodeInvalidState:      http.StatusUnprocessableEntity,

	ErrCodeInvalidApportionment: http.StatusBadRequest,
	ErrCodeSaleLineNotSettled:   http.StatusNotFound,

	// State conflicts -> 409
	ErrCodeArchivedBatchTarget:    http.StatusConflict,
	ErrCodeSessionFinalized:       http.StatusConflict,
	ErrCodeSaleLineAlreadySettled: http.StatusConflict,
	ErrCodeReturnAlreadyApplied:   http.StatusConflict,
	ErrCodeReturnAlreadyCancelled: http.StatusConflict,
	ErrCodeDuplicateRequest:       http.StatusConflict,
	ErrCodeAlreadyExists:          http.StatusConflict,
	ErrCodeConcurrencyConflict:    http.StatusConflict,

	ErrCodeArchiveDisabled: http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unlisted INVALID_* codes are input errors (400); anything else is 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	if strings.HasPrefix(code, "INVALID_") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
