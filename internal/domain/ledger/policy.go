package ledger

import (
	"fmt"
	"strings"

	"github.com/firesafe/ledger/internal/domain/shared"
)

// ArchivedBatchPolicy decides where a return credit lands when the batch
// that was originally debited has been archived.
type ArchivedBatchPolicy string

const (
	// PolicyFallbackNewest credits the newest active batch of the same
	// product and register, creating a return batch if none exists.
	PolicyFallbackNewest ArchivedBatchPolicy = "fallback_newest"
	// PolicyReactivate clears the archive marker and credits the original batch.
	PolicyReactivate ArchivedBatchPolicy = "reactivate"
	// PolicyReject fails the return with ArchivedBatchTarget.
	PolicyReject ArchivedBatchPolicy = "reject"
)

// String returns the string representation of the policy
func (p ArchivedBatchPolicy) String() string {
	return string(p)
}

// IsValid returns true if the policy is known
func (p ArchivedBatchPolicy) IsValid() bool {
	switch p {
	case PolicyFallbackNewest, PolicyReactivate, PolicyReject:
		return true
	}
	return false
}

// ParseArchivedBatchPolicy parses a policy name
func ParseArchivedBatchPolicy(s string) (ArchivedBatchPolicy, error) {
	p := ArchivedBatchPolicy(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", shared.NewDomainError("INVALID_POLICY", fmt.Sprintf("Unknown archived batch policy %q", s))
	}
	return p, nil
}
