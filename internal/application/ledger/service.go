package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/firesafe/ledger/internal/domain/ledger"
	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/firesafe/ledger/internal/domain/shared/strategy"
	"github.com/firesafe/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const serviceName = "ledger"

// StrategyProvider resolves consumption order strategies by name
type StrategyProvider interface {
	GetConsumptionStrategy(name string) (strategy.ConsumptionOrderStrategy, error)
}

// Options are the behaviour switches of the ledger service
type Options struct {
	ConsumptionOrder    string // empty selects the registry default
	ArchivedBatchPolicy ledger.ArchivedBatchPolicy
	IdempotencyTTL      time.Duration
}

// Service runs the ledger operations. Every mutating operation is one
// transaction obtained from the scope; reads go straight to the repositories.
type Service struct {
	scope       TransactionScope
	repos       TransactionalRepositories
	strategies  StrategyProvider
	opts        Options
	logger      *zap.Logger
	metrics     *telemetry.LedgerMetrics
	idempotency shared.IdempotencyStore
	archive     SnapshotArchive
	now         func() time.Time
}

// NewService creates the ledger service
func NewService(
	scope TransactionScope,
	repos TransactionalRepositories,
	strategies StrategyProvider,
	opts Options,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ArchivedBatchPolicy == "" {
		opts.ArchivedBatchPolicy = ledger.PolicyFallbackNewest
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	return &Service{
		scope:      scope,
		repos:      repos,
		strategies: strategies,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// SetLedgerMetrics sets the metrics recorder
func (s *Service) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// SetIdempotencyStore sets the store used for Idempotency-Key deduplication
func (s *Service) SetIdempotencyStore(store shared.IdempotencyStore) {
	s.idempotency = store
}

// SetSnapshotArchive sets the object storage that keeps exported snapshots
func (s *Service) SetSnapshotArchive(archive SnapshotArchive) {
	s.archive = archive
}

// SetClock overrides the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) consumptionOrder() (strategy.ConsumptionOrderStrategy, error) {
	order, err := s.strategies.GetConsumptionStrategy(s.opts.ConsumptionOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve consumption order: %w", err)
	}
	return order, nil
}

// guard runs fn at most once per idempotency key. The key is released when
// fn fails so the client can retry.
func (s *Service) guard(ctx context.Context, op, key string, fn func() error) error {
	if key == "" || s.idempotency == nil {
		return fn()
	}
	full := "ledger:" + op + ":" + key
	fresh, err := s.idempotency.MarkProcessed(ctx, full, s.opts.IdempotencyTTL)
	if err != nil {
		s.logger.Warn("Idempotency store unavailable, processing without deduplication",
			zap.String("operation", op), zap.Error(err))
		return fn()
	}
	if !fresh {
		return shared.ErrDuplicateRequest
	}
	if err := fn(); err != nil {
		if rerr := s.idempotency.Release(ctx, full); rerr != nil {
			s.logger.Warn("Failed to release idempotency key", zap.String("key", full), zap.Error(rerr))
		}
		return err
	}
	return nil
}

func (s *Service) finish(ctx context.Context, span trace.Span, op string, start time.Time, err error) {
	s.metrics.RecordOperation(ctx, op, time.Since(start), err)
	if err == nil {
		return
	}
	telemetry.RecordError(span, err)
	var insufficient *ledger.InsufficientStockError
	if errors.As(err, &insufficient) {
		s.metrics.RecordInsufficientStock(ctx, insufficient.Register.String())
	}
}

// lockBalances locks the balance rows of one product in register order,
// creating missing rows.
func lockBalances(ctx context.Context, repos TransactionalRepositories, productID uuid.UUID, registers []ledger.Register) (map[ledger.Register]*ledger.StockBalance, error) {
	out := make(map[ledger.Register]*ledger.StockBalance, len(registers))
	for _, reg := range ledger.AllRegisters() {
		if !slices.Contains(registers, reg) {
			continue
		}
		bal, err := repos.Balances().GetOrCreateForUpdate(ctx, productID, reg)
		if err != nil {
			return nil, fmt.Errorf("failed to lock %s balance: %w", reg, err)
		}
		out[reg] = bal
	}
	return out, nil
}

func saveBalances(ctx context.Context, repos TransactionalRepositories, balances map[ledger.Register]*ledger.StockBalance) error {
	for _, reg := range ledger.AllRegisters() {
		bal, ok := balances[reg]
		if !ok {
			continue
		}
		if err := repos.Balances().Save(ctx, bal); err != nil {
			return fmt.Errorf("failed to save %s balance: %w", reg, err)
		}
	}
	return nil
}

// Settle draws a sale line from the registers chosen by its payment type
// and records the consumption trail.
func (s *Service) Settle(ctx context.Context, req SettleRequest) (*SettlementResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "settle")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSaleLineID, req.SaleLineID,
		telemetry.SpanAttrProductID, req.ProductID,
		telemetry.SpanAttrQuantity, req.Quantity,
	)
	start := time.Now()

	var result *ledger.Settlement
	paymentType, err := ledger.ParsePaymentType(req.PaymentType)
	if err == nil {
		err = s.guard(ctx, "settle", req.IdempotencyKey, func() error {
			var err error
			result, err = s.settle(ctx, ledger.SaleLine{
				ID:          req.SaleLineID,
				ProductID:   req.ProductID,
				Quantity:    req.Quantity,
				PaymentType: paymentType,
			})
			return err
		})
	}
	s.finish(ctx, span, "settle", start, err)
	if err != nil {
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrSettlement, string(result.Strategy),
		telemetry.SpanAttrUnitCost, result.UnitCost,
	)
	s.metrics.RecordSettlement(ctx, string(result.Strategy), string(paymentType), result.Quantity)
	s.logger.Info("Sale line settled",
		zap.String("sale_line_id", req.SaleLineID.String()),
		zap.String("product_id", req.ProductID.String()),
		zap.String("strategy", string(result.Strategy)),
		zap.String("quantity", result.Quantity.String()),
		zap.String("unit_cost", result.UnitCost.String()),
	)
	resp := ToSettlementResponse(result)
	return &resp, nil
}

func (s *Service) settle(ctx context.Context, line ledger.SaleLine) (*ledger.Settlement, error) {
	strat, err := ledger.ResolveSettlement(line.PaymentType)
	if err != nil {
		return nil, err
	}
	order, err := s.consumptionOrder()
	if err != nil {
		return nil, err
	}

	var result *ledger.Settlement
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		registers := strat.Registers()
		balances, err := lockBalances(ctx, repos, line.ProductID, registers)
		if err != nil {
			return err
		}
		// checked under the balance lock so a concurrent duplicate sees the first commit
		settled, err := repos.Consumptions().ExistsForSaleLine(ctx, line.ID)
		if err != nil {
			return fmt.Errorf("failed to check sale line: %w", err)
		}
		if settled {
			return ledger.ErrSaleLineAlreadySettled
		}
		var batches []*ledger.Batch
		for _, reg := range ledger.AllRegisters() {
			if _, ok := balances[reg]; !ok {
				continue
			}
			rows, err := repos.Batches().FindConsumableForUpdate(ctx, line.ProductID, reg)
			if err != nil {
				return fmt.Errorf("failed to load %s batches: %w", reg, err)
			}
			batches = append(batches, rows...)
		}

		settlement, err := ledger.Settle(line, batches, order, s.now())
		if err != nil {
			return err
		}

		if err := repos.Batches().SaveAll(ctx, settlement.Touched()); err != nil {
			return fmt.Errorf("failed to save batches: %w", err)
		}
		journal := make([]*ledger.InventoryTransaction, 0, len(settlement.Trail))
		for _, leg := range settlement.Legs {
			if leg.IsEmpty() {
				continue
			}
			if err := balances[leg.Register].Decrease(leg.Quantity); err != nil {
				return err
			}
			for _, d := range leg.Draws {
				entry, err := ledger.NewInventoryTransaction(line.ProductID, d.Register, ledger.TransactionTypeSale,
					d.Quantity, d.UnitCost, ledger.ReferenceSaleLine, line.ID)
				if err != nil {
					return err
				}
				journal = append(journal, entry.WithBatch(d.BatchID))
			}
		}
		if err := saveBalances(ctx, repos, balances); err != nil {
			return err
		}
		if err := repos.Consumptions().CreateBatch(ctx, settlement.Trail); err != nil {
			return fmt.Errorf("failed to save consumption trail: %w", err)
		}
		if err := repos.Journal().CreateBatch(ctx, journal); err != nil {
			return fmt.Errorf("failed to write journal: %w", err)
		}
		result = settlement
		return nil
	})
	return result, err
}

// Reverse credits a returned quantity back onto the batches recorded in the
// sale line's trail.
func (s *Service) Reverse(ctx context.Context, req ReturnRequest) (*ReturnResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "reverse")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrReturnLine, req.ReturnLineID,
		telemetry.SpanAttrSaleLineID, req.SaleLineID,
		telemetry.SpanAttrQuantity, req.Quantity,
	)
	start := time.Now()

	var restocks []ledger.RestockRecord
	var err error
	if req.ReturnLineID == uuid.Nil {
		err = shared.NewDomainError("INVALID_RETURN_LINE", "Return line ID cannot be empty")
	} else {
		err = s.guard(ctx, "return", req.IdempotencyKey, func() error {
			var err error
			restocks, err = s.reverse(ctx, req)
			return err
		})
	}
	s.finish(ctx, span, "reverse", start, err)
	if err != nil {
		var over *ledger.OverReturnError
		if errors.As(err, &over) {
			s.metrics.RecordOverReturn(ctx)
		}
		return nil, err
	}

	s.metrics.RecordReturn(ctx)
	s.logger.Info("Return applied",
		zap.String("return_line_id", req.ReturnLineID.String()),
		zap.String("sale_line_id", req.SaleLineID.String()),
		zap.String("quantity", req.Quantity.String()),
		zap.Int("credits", len(restocks)),
	)
	return &ReturnResponse{
		ReturnLineID: req.ReturnLineID,
		SaleLineID:   req.SaleLineID,
		Quantity:     req.Quantity,
		Restocks:     toRestockRecordResponses(restocks),
	}, nil
}

func (s *Service) reverse(ctx context.Context, req ReturnRequest) ([]ledger.RestockRecord, error) {
	var out []ledger.RestockRecord
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		trail, err := repos.Consumptions().FindBySaleLine(ctx, req.SaleLineID)
		if err != nil {
			return fmt.Errorf("failed to load consumption trail: %w", err)
		}
		if len(trail) == 0 {
			return ledger.ErrSaleLineNotSettled
		}
		productID := trail[0].ProductID
		registers := make([]ledger.Register, 0, 2)
		for _, r := range trail {
			if !slices.Contains(registers, r.Register) {
				registers = append(registers, r.Register)
			}
		}
		balances, err := lockBalances(ctx, repos, productID, registers)
		if err != nil {
			return err
		}
		applied, err := repos.Restocks().FindActiveByReturnLine(ctx, req.ReturnLineID)
		if err != nil {
			return fmt.Errorf("failed to check return line: %w", err)
		}
		if len(applied) > 0 {
			return ledger.ErrReturnAlreadyApplied
		}

		previous, err := repos.Restocks().FindBySaleLine(ctx, req.SaleLineID)
		if err != nil {
			return fmt.Errorf("failed to load restocks: %w", err)
		}
		credits, err := ledger.PlanReversal(req.SaleLineID, trail, ledger.RestockedByRecord(previous), req.Quantity)
		if err != nil {
			return err
		}

		ids := make([]uuid.UUID, 0, len(credits))
		for _, c := range credits {
			if !slices.Contains(ids, c.Record.BatchID) {
				ids = append(ids, c.Record.BatchID)
			}
		}
		originals, err := repos.Batches().FindByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to load batches: %w", err)
		}
		byID := make(map[uuid.UUID]*ledger.Batch, len(originals))
		for _, b := range originals {
			byID[b.ID] = b
		}

		now := s.now()
		newest := make(map[ledger.Register]*ledger.Batch, 2)
		newestLoaded := make(map[ledger.Register]bool, 2)
		var touched []*ledger.Batch
		journal := make([]*ledger.InventoryTransaction, 0, len(credits))
		for _, credit := range credits {
			reg := credit.Record.Register
			original := byID[credit.Record.BatchID]

			var fallback *ledger.Batch
			if (original == nil || original.IsArchived()) && s.opts.ArchivedBatchPolicy == ledger.PolicyFallbackNewest {
				if !newestLoaded[reg] {
					nb, err := repos.Batches().FindNewestActive(ctx, productID, reg)
					if err != nil {
						return fmt.Errorf("failed to load newest batch: %w", err)
					}
					if nb != nil {
						if known, ok := byID[nb.ID]; ok {
							nb = known
						} else {
							byID[nb.ID] = nb
						}
					}
					newest[reg] = nb
					newestLoaded[reg] = true
				}
				fallback = newest[reg]
			}

			target, created, err := ledger.ApplyCredit(s.opts.ArchivedBatchPolicy, credit, original, fallback, now)
			if err != nil {
				return err
			}
			if created {
				newest[reg] = target
				byID[target.ID] = target
			}
			if !slices.Contains(touched, target) {
				touched = append(touched, target)
			}
			if err := balances[reg].Increase(credit.Quantity); err != nil {
				return err
			}
			out = append(out, ledger.NewRestockRecord(req.ReturnLineID, credit, target.ID, now))

			entry, err := ledger.NewInventoryTransaction(productID, reg, ledger.TransactionTypeReturnIn,
				credit.Quantity, credit.Record.UnitCost, ledger.ReferenceReturnLine, req.ReturnLineID)
			if err != nil {
				return err
			}
			journal = append(journal, entry.WithBatch(target.ID))
		}

		if err := repos.Batches().SaveAll(ctx, touched); err != nil {
			return fmt.Errorf("failed to save batches: %w", err)
		}
		if err := saveBalances(ctx, repos, balances); err != nil {
			return err
		}
		if err := repos.Restocks().CreateBatch(ctx, out); err != nil {
			return fmt.Errorf("failed to save restocks: %w", err)
		}
		if err := repos.Journal().CreateBatch(ctx, journal); err != nil {
			return fmt.Errorf("failed to write journal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelReturn undoes every active restock of a return line
func (s *Service) CancelReturn(ctx context.Context, returnLineID uuid.UUID) (*ReturnResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "cancel_return")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrReturnLine, returnLineID)
	start := time.Now()

	var cancelled []ledger.RestockRecord
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		all, err := repos.Restocks().FindByReturnLine(ctx, returnLineID)
		if err != nil {
			return fmt.Errorf("failed to load restocks: %w", err)
		}
		if len(all) == 0 {
			return shared.NewDomainError(shared.ErrNotFound.Code, "Return line not found")
		}
		active := make([]ledger.RestockRecord, 0, len(all))
		for _, r := range all {
			if r.IsActive() {
				active = append(active, r)
			}
		}
		if len(active) == 0 {
			return ledger.ErrReturnAlreadyCancelled
		}

		productID := active[0].ProductID
		registers := make([]ledger.Register, 0, 2)
		ids := make([]uuid.UUID, 0, len(active))
		for _, r := range active {
			if !slices.Contains(registers, r.Register) {
				registers = append(registers, r.Register)
			}
			if !slices.Contains(ids, r.BatchID) {
				ids = append(ids, r.BatchID)
			}
		}
		balances, err := lockBalances(ctx, repos, productID, registers)
		if err != nil {
			return err
		}
		batches, err := repos.Batches().FindByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to load batches: %w", err)
		}
		byID := make(map[uuid.UUID]*ledger.Batch, len(batches))
		for _, b := range batches {
			byID[b.ID] = b
		}

		now := s.now()
		restockIDs := make([]uuid.UUID, 0, len(active))
		journal := make([]*ledger.InventoryTransaction, 0, len(active))
		for i := range active {
			r := &active[i]
			b, ok := byID[r.BatchID]
			if !ok {
				return fmt.Errorf("restocked batch %s: %w", r.BatchID, shared.ErrNotFound)
			}
			if err := b.Take(r.Quantity); err != nil {
				return err
			}
			if err := balances[r.Register].Decrease(r.Quantity); err != nil {
				return err
			}
			if err := r.Cancel(now); err != nil {
				return err
			}
			restockIDs = append(restockIDs, r.ID)

			entry, err := ledger.NewInventoryTransaction(productID, r.Register, ledger.TransactionTypeReturnOut,
				r.Quantity, b.UnitCost, ledger.ReferenceReturnLine, returnLineID)
			if err != nil {
				return err
			}
			journal = append(journal, entry.WithBatch(b.ID).WithNote("return cancelled"))
		}

		if err := repos.Batches().SaveAll(ctx, batches); err != nil {
			return fmt.Errorf("failed to save batches: %w", err)
		}
		if err := saveBalances(ctx, repos, balances); err != nil {
			return err
		}
		if err := repos.Restocks().MarkCancelled(ctx, restockIDs, now); err != nil {
			return fmt.Errorf("failed to cancel restocks: %w", err)
		}
		if err := repos.Journal().CreateBatch(ctx, journal); err != nil {
			return fmt.Errorf("failed to write journal: %w", err)
		}
		cancelled = active
		return nil
	})
	s.finish(ctx, span, "cancel_return", start, err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Return cancelled",
		zap.String("return_line_id", returnLineID.String()),
		zap.Int("restocks", len(cancelled)),
	)
	quantity := decimal.Zero
	for _, r := range cancelled {
		quantity = quantity.Add(r.Quantity)
	}
	return &ReturnResponse{
		ReturnLineID: returnLineID,
		SaleLineID:   cancelled[0].SaleLineID,
		Quantity:     quantity,
		Restocks:     toRestockRecordResponses(cancelled),
	}, nil
}

// TransferToOfficial moves cleared stock carrying a supply code from ND to IM
func (s *Service) TransferToOfficial(ctx context.Context, req TransferRequest) (*TransferResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "transfer_to_official")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrProductID, req.ProductID,
		telemetry.SpanAttrQuantity, req.Quantity,
		"ledger.code", req.Code,
	)
	start := time.Now()

	var result *ledger.Transfer
	order, err := s.consumptionOrder()
	if err == nil {
		err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			balances, err := lockBalances(ctx, repos, req.ProductID, ledger.AllRegisters())
			if err != nil {
				return err
			}
			nd, err := repos.Batches().FindConsumableForUpdate(ctx, req.ProductID, ledger.RegisterND)
			if err != nil {
				return fmt.Errorf("failed to load ND batches: %w", err)
			}
			tr, err := ledger.TransferToOfficial(req.ProductID, req.Code, req.Quantity, nd, order, s.now())
			if err != nil {
				return err
			}

			if err := balances[ledger.RegisterND].Decrease(tr.Out.Quantity); err != nil {
				return err
			}
			if err := balances[ledger.RegisterIM].Increase(tr.Out.Quantity); err != nil {
				return err
			}
			if err := repos.Batches().SaveAll(ctx, append(slices.Clone(tr.Out.Touched), tr.In...)); err != nil {
				return fmt.Errorf("failed to save batches: %w", err)
			}
			if err := saveBalances(ctx, repos, balances); err != nil {
				return err
			}

			transferID := shared.NewID()
			journal := make([]*ledger.InventoryTransaction, 0, 2*len(tr.In))
			for i, d := range tr.Out.Draws {
				out, err := ledger.NewInventoryTransaction(req.ProductID, ledger.RegisterND, ledger.TransactionTypeTransferOut,
					d.Quantity, d.UnitCost, ledger.ReferenceTransfer, transferID)
				if err != nil {
					return err
				}
				in, err := ledger.NewInventoryTransaction(req.ProductID, ledger.RegisterIM, ledger.TransactionTypeTransferIn,
					tr.In[i].Quantity, tr.In[i].UnitCost, ledger.ReferenceTransfer, transferID)
				if err != nil {
					return err
				}
				journal = append(journal, out.WithBatch(d.BatchID).WithNote(req.Code), in.WithBatch(tr.In[i].ID).WithNote(req.Code))
			}
			if err := repos.Journal().CreateBatch(ctx, journal); err != nil {
				return fmt.Errorf("failed to write journal: %w", err)
			}
			result = tr
			return nil
		})
	}
	s.finish(ctx, span, "transfer_to_official", start, err)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransfer(ctx)
	s.logger.Info("Stock transferred to IM",
		zap.String("product_id", req.ProductID.String()),
		zap.String("code", req.Code),
		zap.String("quantity", result.Out.Quantity.String()),
	)
	return &TransferResponse{
		ProductID: result.ProductID,
		Code:      result.Code,
		Quantity:  result.Out.Quantity,
		UnitCost:  result.Out.UnitCost,
		Batches:   ToBatchResponses(result.In),
	}, nil
}

// CreateBatch receives a single batch and raises the register balance
func (s *Service) CreateBatch(ctx context.Context, req CreateBatchRequest) (*BatchResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "create_batch")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrProductID, req.ProductID,
		telemetry.SpanAttrRegister, req.Register.String(),
		telemetry.SpanAttrQuantity, req.Quantity,
	)
	start := time.Now()

	receivedAt := s.now()
	if req.ReceivedAt != nil {
		receivedAt = *req.ReceivedAt
	}
	refID := shared.NewID()
	if req.SupplyID != nil {
		refID = *req.SupplyID
	}

	var batch *ledger.Batch
	b, err := ledger.NewBatch(req.ProductID, req.Register, req.Quantity, req.UnitCost, receivedAt, ledger.BatchSourcePurchase)
	if err == nil {
		batch = b.WithCode(req.Code)
		err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			return ReceiveBatches(ctx, repos, []*ledger.Batch{batch}, ledger.ReferenceSupply, refID)
		})
	}
	s.finish(ctx, span, "create_batch", start, err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Batch received",
		zap.String("batch_id", batch.ID.String()),
		zap.String("product_id", batch.ProductID.String()),
		zap.String("register", batch.Register.String()),
		zap.String("quantity", batch.Quantity.String()),
	)
	resp := ToBatchResponse(batch)
	return &resp, nil
}

// ReceiveBatches stores new batches inside an open transaction, raises the
// balances and journals a PURCHASE per batch. Balances are locked in
// (product, register) order.
func ReceiveBatches(ctx context.Context, repos TransactionalRepositories, batches []*ledger.Batch, refType ledger.ReferenceType, refID uuid.UUID) error {
	ordered := slices.Clone(batches)
	slices.SortStableFunc(ordered, func(a, b *ledger.Batch) int {
		if c := compareUUID(a.ProductID, b.ProductID); c != 0 {
			return c
		}
		return compareRegister(a.Register, b.Register)
	})

	type key struct {
		product  uuid.UUID
		register ledger.Register
	}
	balances := make(map[key]*ledger.StockBalance)
	keys := make([]key, 0)
	journal := make([]*ledger.InventoryTransaction, 0, len(ordered))
	for _, b := range ordered {
		k := key{b.ProductID, b.Register}
		bal, ok := balances[k]
		if !ok {
			var err error
			bal, err = repos.Balances().GetOrCreateForUpdate(ctx, b.ProductID, b.Register)
			if err != nil {
				return fmt.Errorf("failed to lock %s balance: %w", b.Register, err)
			}
			balances[k] = bal
			keys = append(keys, k)
		}
		if err := bal.Increase(b.Quantity); err != nil {
			return err
		}
		entry, err := ledger.NewInventoryTransaction(b.ProductID, b.Register, ledger.TransactionTypePurchase,
			b.Quantity, b.UnitCost, refType, refID)
		if err != nil {
			return err
		}
		journal = append(journal, entry.WithBatch(b.ID).WithNote(b.Code))
	}

	if err := repos.Batches().SaveAll(ctx, ordered); err != nil {
		return fmt.Errorf("failed to save batches: %w", err)
	}
	for _, k := range keys {
		if err := repos.Balances().Save(ctx, balances[k]); err != nil {
			return fmt.Errorf("failed to save balance: %w", err)
		}
	}
	if err := repos.Journal().CreateBatch(ctx, journal); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	return nil
}

// Reconcile resets the product's balances to their batch sums and journals
// every correction.
func (s *Service) Reconcile(ctx context.Context, productID uuid.UUID) (*ReconcileResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "reconcile")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrProductID, productID)
	start := time.Now()

	resp := &ReconcileResponse{ProductID: productID, Drifts: []RegisterDrift{}}
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		balances, err := lockBalances(ctx, repos, productID, ledger.AllRegisters())
		if err != nil {
			return err
		}
		sums, err := repos.Batches().SumByProductRegister(ctx, &productID)
		if err != nil {
			return fmt.Errorf("failed to sum batches: %w", err)
		}

		refID := shared.NewID()
		var journal []*ledger.InventoryTransaction
		for _, reg := range ledger.AllRegisters() {
			bal := balances[reg]
			sum := sums[productID][reg]
			if bal.Quantity.Equal(sum) {
				continue
			}
			diff := sum.Sub(bal.Quantity)
			resp.Drifts = append(resp.Drifts, RegisterDrift{
				Register:   reg.String(),
				Balance:    bal.Quantity,
				BatchSum:   sum,
				Difference: diff,
			})
			bal.Reset(sum)
			if err := repos.Balances().Save(ctx, bal); err != nil {
				return fmt.Errorf("failed to save %s balance: %w", reg, err)
			}
			entry, err := ledger.NewInventoryTransaction(productID, reg, ledger.TransactionTypeAdjust,
				diff.Abs(), decimal.Zero, ledger.ReferenceReconcile, refID)
			if err != nil {
				return err
			}
			journal = append(journal, entry.WithNote("drift "+diff.String()))
		}
		if err := repos.Journal().CreateBatch(ctx, journal); err != nil {
			return fmt.Errorf("failed to write journal: %w", err)
		}
		return nil
	})
	s.finish(ctx, span, "reconcile", start, err)
	if err != nil {
		return nil, err
	}

	for _, d := range resp.Drifts {
		s.metrics.RecordReconcileDrift(ctx, d.Register)
		s.logger.Warn("Balance drift corrected",
			zap.String("product_id", productID.String()),
			zap.String("register", d.Register),
			zap.String("balance", d.Balance.String()),
			zap.String("batch_sum", d.BatchSum.String()),
		)
	}
	return resp, nil
}

// ReconcileAll reconciles every product whose balances disagree with its batches
func (s *Service) ReconcileAll(ctx context.Context) ([]ReconcileResponse, error) {
	sums, err := s.repos.Batches().SumByProductRegister(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to sum batches: %w", err)
	}
	balances, err := s.repos.Balances().FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load balances: %w", err)
	}

	var drifting []uuid.UUID
	seen := make(map[uuid.UUID]struct{})
	mark := func(id uuid.UUID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			drifting = append(drifting, id)
		}
	}
	recorded := make(map[uuid.UUID]map[ledger.Register]bool)
	for _, b := range balances {
		if !b.Quantity.Equal(sums[b.ProductID][b.Register]) {
			mark(b.ProductID)
		}
		if recorded[b.ProductID] == nil {
			recorded[b.ProductID] = make(map[ledger.Register]bool, 2)
		}
		recorded[b.ProductID][b.Register] = true
	}
	for productID, regs := range sums {
		for reg, qty := range regs {
			if !recorded[productID][reg] && !qty.IsZero() {
				mark(productID)
			}
		}
	}
	slices.SortFunc(drifting, compareUUID)

	out := make([]ReconcileResponse, 0, len(drifting))
	for _, id := range drifting {
		resp, err := s.Reconcile(ctx, id)
		if err != nil {
			return out, err
		}
		out = append(out, *resp)
	}
	return out, nil
}

// ArchiveBatches archives empty batches untouched since the cutoff and
// unarchives archived batches that hold stock again.
func (s *Service) ArchiveBatches(ctx context.Context, before time.Time, limit int) (archived, restored int, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "archive_batches")
	defer span.End()
	start := time.Now()

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		empty, err := repos.Batches().FindArchivable(ctx, before, limit)
		if err != nil {
			return fmt.Errorf("failed to find archivable batches: %w", err)
		}
		now := s.now()
		for _, b := range empty {
			if err := b.Archive(now); err != nil {
				return err
			}
		}
		stocked, err := repos.Batches().FindArchivedWithStock(ctx, limit)
		if err != nil {
			return fmt.Errorf("failed to find archived batches with stock: %w", err)
		}
		for _, b := range stocked {
			b.Unarchive()
		}
		if err := repos.Batches().SaveAll(ctx, append(empty, stocked...)); err != nil {
			return fmt.Errorf("failed to save batches: %w", err)
		}
		archived, restored = len(empty), len(stocked)
		return nil
	})
	s.finish(ctx, span, "archive_batches", start, err)
	if err != nil {
		return 0, 0, err
	}
	telemetry.AddEvent(span, "batches.archived", "archived", archived, "restored", restored)
	return archived, restored, nil
}

func compareUUID(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}

func compareRegister(a, b ledger.Register) int {
	return slices.Index(ledger.AllRegisters(), a) - slices.Index(ledger.AllRegisters(), b)
}
