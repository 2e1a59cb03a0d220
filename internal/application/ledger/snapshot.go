package ledger

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/firesafe/ledger/internal/domain/ledger"
	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/firesafe/ledger/internal/infrastructure/telemetry"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// SnapshotSheet is the sheet name of the stock snapshot export
const SnapshotSheet = "Stock"

// XLSXContentType is the media type of exported workbooks
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SnapshotArchive is object storage for exported snapshot workbooks
type SnapshotArchive interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	ObjectExists(ctx context.Context, key string) (bool, error)
	GenerateDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error)
}

// SnapshotArchiveKey names the archived workbook of a day
func SnapshotArchiveKey(day time.Time) string {
	return "stock-" + day.Format("2006-01-02") + ".xlsx"
}

var snapshotHeader = []string{"Product", "ND", "IM", "Total"}

// TakeSnapshot stores today's ND/IM/total per product. Running it again on
// the same day replaces that day's rows, dropping products that ran out.
func (s *Service) TakeSnapshot(ctx context.Context) ([]SnapshotResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "take_snapshot")
	defer span.End()
	start := time.Now()

	var snaps []*ledger.StockSnapshot
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		balances, err := repos.Balances().FindAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to load balances: %w", err)
		}
		now := s.now()
		snaps = ledger.BuildSnapshots(balances, now)
		if err := repos.Snapshots().ReplaceDay(ctx, now, snaps); err != nil {
			return fmt.Errorf("failed to store snapshots: %w", err)
		}
		return nil
	})
	s.finish(ctx, span, "take_snapshot", start, err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Stock snapshot taken",
		zap.Time("date", ledger.SnapshotDay(s.now())),
		zap.Int("products", len(snaps)),
	)
	return toSnapshotResponses(snaps), nil
}

// GetSnapshot returns the stored snapshot of a day; a zero date means today.
// Today's snapshot is taken on demand when none is stored yet.
func (s *Service) GetSnapshot(ctx context.Context, date time.Time) ([]SnapshotResponse, error) {
	if date.IsZero() {
		date = s.now()
	}
	day := ledger.SnapshotDay(date)
	snaps, err := s.repos.Snapshots().FindByDate(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}
	if len(snaps) == 0 && day.Equal(ledger.SnapshotDay(s.now())) {
		return s.TakeSnapshot(ctx)
	}
	return toSnapshotResponses(snaps), nil
}

// ExportSnapshot writes the snapshot of a day as an XLSX workbook
func (s *Service) ExportSnapshot(ctx context.Context, date time.Time, w io.Writer) error {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "export_snapshot")
	defer span.End()

	rows, err := s.GetSnapshot(ctx, date)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	f, err := SnapshotWorkbook(rows)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			s.logger.Warn("Failed to close workbook", zap.Error(cerr))
		}
	}()
	if err := f.Write(w); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ArchiveSnapshot exports the snapshot of a day and uploads it to the
// archive, replacing an earlier upload of the same day. A zero date means today.
func (s *Service) ArchiveSnapshot(ctx context.Context, date time.Time) (*SnapshotArchiveResponse, error) {
	if s.archive == nil {
		return nil, ledger.ErrArchiveDisabled
	}
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "archive_snapshot")
	defer span.End()
	start := time.Now()

	if date.IsZero() {
		date = s.now()
	}
	day := ledger.SnapshotDay(date)
	key := SnapshotArchiveKey(day)

	resp, err := s.archiveSnapshot(ctx, day, key)
	s.finish(ctx, span, "archive_snapshot", start, err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Stock snapshot archived",
		zap.Time("date", day),
		zap.String("key", key),
		zap.Int("products", resp.Products),
	)
	return resp, nil
}

func (s *Service) archiveSnapshot(ctx context.Context, day time.Time, key string) (*SnapshotArchiveResponse, error) {
	rows, err := s.GetSnapshot(ctx, day)
	if err != nil {
		return nil, err
	}
	f, err := SnapshotWorkbook(rows)
	if err != nil {
		return nil, err
	}
	buf, err := f.WriteToBuffer()
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := s.archive.Upload(ctx, key, buf.Bytes(), XLSXContentType); err != nil {
		return nil, fmt.Errorf("failed to archive snapshot: %w", err)
	}
	url, expiresAt, err := s.archive.GenerateDownloadURL(ctx, key, 0)
	if err != nil {
		return nil, err
	}
	return &SnapshotArchiveResponse{Date: day, Key: key, URL: url, ExpiresAt: expiresAt, Products: len(rows)}, nil
}

// GetSnapshotArchive returns a download URL for the archived workbook of a
// day, or shared.ErrNotFound when that day was never archived.
func (s *Service) GetSnapshotArchive(ctx context.Context, date time.Time) (*SnapshotArchiveResponse, error) {
	if s.archive == nil {
		return nil, ledger.ErrArchiveDisabled
	}
	if date.IsZero() {
		date = s.now()
	}
	day := ledger.SnapshotDay(date)
	key := SnapshotArchiveKey(day)

	exists, err := s.archive.ObjectExists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, shared.ErrNotFound
	}
	url, expiresAt, err := s.archive.GenerateDownloadURL(ctx, key, 0)
	if err != nil {
		return nil, err
	}
	return &SnapshotArchiveResponse{Date: day, Key: key, URL: url, ExpiresAt: expiresAt}, nil
}

// SnapshotWorkbook renders snapshot rows on one sheet under the header
// Product, ND, IM, Total.
func SnapshotWorkbook(rows []SnapshotResponse) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SnapshotSheet); err != nil {
		return nil, err
	}
	for i, h := range snapshotHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(SnapshotSheet, cell, h); err != nil {
			return nil, err
		}
	}
	for i, r := range rows {
		values := []any{
			r.ProductID.String(),
			r.ND.InexactFloat64(),
			r.IM.InexactFloat64(),
			r.Total.InexactFloat64(),
		}
		for j, v := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(SnapshotSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

func toSnapshotResponses(snaps []*ledger.StockSnapshot) []SnapshotResponse {
	out := make([]SnapshotResponse, len(snaps))
	for i, s := range snaps {
		out[i] = toSnapshotResponse(s)
	}
	return out
}
