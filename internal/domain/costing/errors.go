package costing

import (
	"fmt"

	"github.com/firesafe/ledger/internal/domain/shared"
)

// Error codes raised by costing
const (
	CodeInvalidApportionmentInput = "INVALID_APPORTIONMENT_INPUT"
	CodeSessionFinalized          = "COSTING_SESSION_FINALIZED"
	CodeNotCalculated             = "COSTING_NOT_CALCULATED"
)

// ErrSessionFinalized is returned on any edit of a finalized session
var ErrSessionFinalized = shared.NewDomainError(CodeSessionFinalized, "Costing session is finalized and cannot be changed")

// ErrNotCalculated is returned when finalizing a session without snapshots
var ErrNotCalculated = shared.NewDomainError(CodeNotCalculated, "Costing session has not been calculated")

func invalidInput(format string, args ...any) *shared.DomainError {
	return shared.NewDomainError(CodeInvalidApportionmentInput, fmt.Sprintf(format, args...))
}
