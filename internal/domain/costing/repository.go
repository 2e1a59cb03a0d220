package costing

import (
	"context"

	"github.com/google/uuid"
)

// SessionFilter narrows session listings
type SessionFilter struct {
	SupplyID *uuid.UUID
	Status   Status
	OrderBy  string
	OrderDir string
	Page     int
	PageSize int
}

// SessionRepository persists costing sessions together with their lines and snapshots
type SessionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Session, error)
	// FindByIDForUpdate locks the session row for the rest of the transaction
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Session, error)
	FindAll(ctx context.Context, filter SessionFilter) ([]*Session, int64, error)
	Save(ctx context.Context, session *Session) error
}
