package ledger

import (
	"strings"

	"github.com/firesafe/ledger/internal/domain/shared"
)

// Register is one of the two parallel stock ledgers kept per product
type Register string

const (
	// RegisterND holds unofficial (bonded) stock
	RegisterND Register = "ND"
	// RegisterIM holds cleared (official) stock
	RegisterIM Register = "IM"
)

// String returns the string representation of Register
func (r Register) String() string {
	return string(r)
}

// IsValid returns true if the register is one of ND or IM
func (r Register) IsValid() bool {
	return r == RegisterND || r == RegisterIM
}

// AllRegisters returns both registers in reporting order
func AllRegisters() []Register {
	return []Register{RegisterND, RegisterIM}
}

// ParseRegister parses a register name, accepting the legacy ND-40/IM-40 spellings
func ParseRegister(s string) (Register, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ND", "ND40", "ND-40":
		return RegisterND, nil
	case "IM", "IM40", "IM-40":
		return RegisterIM, nil
	}
	return "", shared.NewDomainError("INVALID_REGISTER", "Register must be ND or IM")
}
