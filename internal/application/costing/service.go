package costing

import (
	"context"
	"errors"
	"fmt"
	"time"

	appledger "github.com/firesafe/ledger/internal/application/ledger"
	"github.com/firesafe/ledger/internal/domain/costing"
	"github.com/firesafe/ledger/internal/domain/ledger"
	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/firesafe/ledger/internal/domain/shared/strategy"
	"github.com/firesafe/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const serviceName = "costing"

// StrategyProvider resolves apportionment strategies by method name
type StrategyProvider interface {
	GetApportionmentStrategy(name string) (strategy.ApportionmentStrategy, error)
}

// Service manages costing sessions from draft to finalized supply receipt
type Service struct {
	scope         TransactionScope
	sessions      costing.SessionRepository
	strategies    StrategyProvider
	defaultMethod string
	logger        *zap.Logger
	metrics       *telemetry.LedgerMetrics
	now           func() time.Time
}

// NewService creates the costing service. defaultMethod is used for
// sessions created without a method.
func NewService(
	scope TransactionScope,
	sessions costing.SessionRepository,
	strategies StrategyProvider,
	defaultMethod string,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		scope:         scope,
		sessions:      sessions,
		strategies:    strategies,
		defaultMethod: defaultMethod,
		logger:        logger,
		now:           time.Now,
	}
}

// SetLedgerMetrics sets the metrics recorder
func (s *Service) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// SetClock overrides the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) method(name string) (strategy.ApportionmentStrategy, error) {
	m, err := s.strategies.GetApportionmentStrategy(name)
	if err != nil {
		return nil, shared.NewDomainError(costing.CodeInvalidApportionmentInput,
			fmt.Sprintf("Unknown apportion method %q", name))
	}
	return m, nil
}

func (s *Service) finish(ctx context.Context, op string, start time.Time, err error) {
	s.metrics.RecordOperation(ctx, op, time.Since(start), err)
}

// CreateSession opens a draft session for a supply
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "create_session")
	defer span.End()
	start := time.Now()

	session, err := s.newSession(req)
	if err == nil {
		err = s.sessions.Save(ctx, session)
	}
	s.finish(ctx, "costing_create", start, err)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrSessionID, session.ID)
	s.logger.Info("Costing session created",
		zap.String("session_id", session.ID.String()),
		zap.String("supply_id", session.SupplyID.String()),
		zap.Int("lines", len(session.Lines)),
	)
	resp := ToSessionResponse(session)
	return &resp, nil
}

func (s *Service) newSession(req CreateSessionRequest) (*costing.Session, error) {
	register, err := ledger.ParseRegister(req.Register)
	if err != nil {
		return nil, err
	}
	methodName := req.Method
	if methodName == "" {
		methodName = s.defaultMethod
	}
	method, err := s.method(methodName)
	if err != nil {
		return nil, err
	}
	session, err := costing.NewSession(req.SupplyID, req.SupplyCode, register, req.ExchangeRate, method.Method())
	if err != nil {
		return nil, err
	}
	if req.PercentageFees != nil || req.AbsoluteFees != nil {
		pct, abs := session.PercentageFees, session.AbsoluteFees
		if req.PercentageFees != nil {
			pct = toFees(req.PercentageFees)
		}
		if req.AbsoluteFees != nil {
			abs = toFees(req.AbsoluteFees)
		}
		if err := session.UpdateTerms(req.ExchangeRate, pct, abs); err != nil {
			return nil, err
		}
	}
	if len(req.Lines) > 0 {
		if err := session.SetLines(toLines(req.Lines)); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// UpdateSession edits the terms or lines of a draft session. Calculated
// snapshots are discarded.
func (s *Service) UpdateSession(ctx context.Context, id uuid.UUID, req UpdateSessionRequest) (*SessionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "update_session")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrSessionID, id)
	start := time.Now()

	var session *costing.Session
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		session, err = repos.Sessions().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.ExchangeRate != nil || req.PercentageFees != nil || req.AbsoluteFees != nil {
			rate, pct, abs := session.ExchangeRate, session.PercentageFees, session.AbsoluteFees
			if req.ExchangeRate != nil {
				rate = *req.ExchangeRate
			}
			if req.PercentageFees != nil {
				pct = toFees(req.PercentageFees)
			}
			if req.AbsoluteFees != nil {
				abs = toFees(req.AbsoluteFees)
			}
			if err := session.UpdateTerms(rate, pct, abs); err != nil {
				return err
			}
		}
		if req.Lines != nil {
			if err := session.SetLines(toLines(req.Lines)); err != nil {
				return err
			}
		}
		return repos.Sessions().Save(ctx, session)
	})
	s.finish(ctx, "costing_update", start, err)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	resp := ToSessionResponse(session)
	return &resp, nil
}

// Recalculate recomputes the landed costs of a draft session
func (s *Service) Recalculate(ctx context.Context, id uuid.UUID) (*SessionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "recalculate")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrSessionID, id)
	start := time.Now()

	var session *costing.Session
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		session, err = repos.Sessions().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		method, err := s.method(session.Method.String())
		if err != nil {
			return err
		}
		if err := session.Recalculate(method, s.now()); err != nil {
			return err
		}
		return repos.Sessions().Save(ctx, session)
	})
	s.finish(ctx, "costing_recalculate", start, err)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Costing session recalculated",
		zap.String("session_id", id.String()),
		zap.Int("snapshots", len(session.Snapshots)),
	)
	resp := ToSessionResponse(session)
	return &resp, nil
}

// Finalize freezes a calculated session and receives one batch per snapshot
// into the session's register, all in one transaction.
func (s *Service) Finalize(ctx context.Context, id uuid.UUID) (*SessionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "finalize")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrSessionID, id)
	start := time.Now()

	var session *costing.Session
	var received []*ledger.Batch
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		session, err = repos.Sessions().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		if err := session.Finalize(now); err != nil {
			return err
		}
		received, err = session.ReceiptBatches(now)
		if err != nil {
			return err
		}
		if err := repos.Sessions().Save(ctx, session); err != nil {
			return err
		}
		return appledger.ReceiveBatches(ctx, repos, received, ledger.ReferenceCostingSession, session.ID)
	})
	s.finish(ctx, "costing_finalize", start, err)
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, costing.ErrNotCalculated) {
			s.logger.Warn("Finalize rejected, session not calculated", zap.String("session_id", id.String()))
		}
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrSessionStep, session.Status.String())
	s.metrics.RecordCostingFinalized(ctx)
	s.logger.Info("Costing session finalized",
		zap.String("session_id", id.String()),
		zap.String("supply_code", session.SupplyCode),
		zap.Int("batches", len(received)),
	)
	resp := ToSessionResponse(session)
	return &resp, nil
}

// GetSession returns a session with its lines and snapshots
func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*SessionResponse, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToSessionResponse(session)
	return &resp, nil
}

// ListSessions lists sessions with filtering and pagination
func (s *Service) ListSessions(ctx context.Context, filter SessionListFilter) ([]SessionResponse, int64, error) {
	f := costing.SessionFilter{
		SupplyID: filter.SupplyID,
		Status:   costing.Status(filter.Status),
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}
	if f.Status != "" && !f.Status.IsValid() {
		return nil, 0, shared.NewDomainError("INVALID_STATUS", fmt.Sprintf("Unknown session status %q", filter.Status))
	}
	sessions, total, err := s.sessions.FindAll(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	out := make([]SessionResponse, len(sessions))
	for i, session := range sessions {
		out[i] = ToSessionResponse(session)
	}
	return out, total, nil
}
