package ledger

import (
	"context"
	"fmt"

	"github.com/firesafe/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GetBalances returns both register balances of a product. Unknown products
// report zero.
func (s *Service) GetBalances(ctx context.Context, productID uuid.UUID) (*BalancesResponse, error) {
	rows, err := s.repos.Balances().FindByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load balances: %w", err)
	}
	b := ledger.Balances{ProductID: productID, ND: decimal.Zero, IM: decimal.Zero}
	for _, r := range rows {
		switch r.Register {
		case ledger.RegisterND:
			b.ND = r.Quantity
		case ledger.RegisterIM:
			b.IM = r.Quantity
		}
	}
	return &BalancesResponse{ProductID: productID, ND: b.ND, IM: b.IM, Total: b.Total()}, nil
}

// ListBatches lists batches with filtering and pagination
func (s *Service) ListBatches(ctx context.Context, filter BatchListFilter) ([]BatchResponse, int64, error) {
	f := ledger.BatchFilter{
		Code:            filter.Code,
		IncludeArchived: filter.IncludeArchived,
		OrderBy:         filter.OrderBy,
		OrderDir:        filter.OrderDir,
		Page:            filter.Page,
		PageSize:        filter.PageSize,
	}
	if filter.ProductID != uuid.Nil {
		f.ProductID = &filter.ProductID
	}
	if filter.Register != "" {
		reg, err := ledger.ParseRegister(filter.Register)
		if err != nil {
			return nil, 0, err
		}
		f.Register = &reg
	}
	batches, total, err := s.repos.Batches().FindAll(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list batches: %w", err)
	}
	return ToBatchResponses(batches), total, nil
}

// GetTrail returns the consumption trail of a sale line with its returns
func (s *Service) GetTrail(ctx context.Context, saleLineID uuid.UUID) (*TrailResponse, error) {
	trail, err := s.repos.Consumptions().FindBySaleLine(ctx, saleLineID)
	if err != nil {
		return nil, fmt.Errorf("failed to load consumption trail: %w", err)
	}
	if len(trail) == 0 {
		return nil, ledger.ErrSaleLineNotSettled
	}
	restocks, err := s.repos.Restocks().FindBySaleLine(ctx, saleLineID)
	if err != nil {
		return nil, fmt.Errorf("failed to load restocks: %w", err)
	}
	return &TrailResponse{
		SaleLineID: saleLineID,
		Quantity:   trail.Quantity(),
		Returnable: ledger.Returnable(trail, ledger.RestockedByRecord(restocks)),
		Records:    toConsumptionRecordResponses(trail),
		Restocks:   toRestockRecordResponses(restocks),
	}, nil
}

// ListJournal lists inventory transactions
func (s *Service) ListJournal(ctx context.Context, filter JournalListFilter) ([]JournalEntryResponse, int64, error) {
	f := ledger.JournalFilter{
		ProductID:     filter.ProductID,
		ReferenceType: ledger.ReferenceType(filter.ReferenceType),
		ReferenceID:   filter.ReferenceID,
		From:          filter.From,
		To:            filter.To,
		OrderBy:       filter.OrderBy,
		OrderDir:      filter.OrderDir,
		Page:          filter.Page,
		PageSize:      filter.PageSize,
	}
	if filter.Register != "" {
		reg, err := ledger.ParseRegister(filter.Register)
		if err != nil {
			return nil, 0, err
		}
		f.Register = &reg
	}
	entries, total, err := s.repos.Journal().FindAll(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list journal: %w", err)
	}
	out := make([]JournalEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = toJournalEntryResponse(e)
	}
	return out, total, nil
}
