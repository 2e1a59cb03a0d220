package scheduler

import (
	"context"
	"errors"
	"time"

	appledger "github.com/firesafe/ledger/internal/application/ledger"
	"github.com/firesafe/ledger/internal/domain/ledger"
	"github.com/firesafe/ledger/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Ledger job names
const (
	JobBatchArchival = "batch_archival"
	JobStockSnapshot = "stock_snapshot"
	JobReconcile     = "reconcile"
)

const archiveBatchLimit = 500

// LedgerMaintenance is the part of the ledger service the jobs drive
type LedgerMaintenance interface {
	ArchiveBatches(ctx context.Context, before time.Time, limit int) (archived, restored int, err error)
	TakeSnapshot(ctx context.Context) ([]appledger.SnapshotResponse, error)
	ArchiveSnapshot(ctx context.Context, date time.Time) (*appledger.SnapshotArchiveResponse, error)
	ReconcileAll(ctx context.Context) ([]appledger.ReconcileResponse, error)
}

// LedgerJobs builds the archival, snapshot and reconcile jobs. A zero
// interval leaves that job out.
func LedgerJobs(svc LedgerMaintenance, cfg config.SchedulerConfig, logger *zap.Logger) []Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	var jobs []Job

	if cfg.ArchiveInterval > 0 {
		jobs = append(jobs, Job{
			Name:     JobBatchArchival,
			Interval: cfg.ArchiveInterval,
			Run: func(ctx context.Context) error {
				archived, restored, err := svc.ArchiveBatches(ctx, time.Now().Add(-cfg.ArchiveAfter), archiveBatchLimit)
				if err != nil {
					return err
				}
				if archived > 0 || restored > 0 {
					logger.Info("Batches archived",
						zap.Int("archived", archived),
						zap.Int("restored", restored),
					)
				}
				return nil
			},
		})
	}

	if cfg.SnapshotInterval > 0 {
		jobs = append(jobs, Job{
			Name:     JobStockSnapshot,
			Interval: cfg.SnapshotInterval,
			Run: func(ctx context.Context) error {
				if _, err := svc.TakeSnapshot(ctx); err != nil {
					return err
				}
				// the workbook is uploaded only when an archive is configured
				_, err := svc.ArchiveSnapshot(ctx, time.Time{})
				if errors.Is(err, ledger.ErrArchiveDisabled) {
					return nil
				}
				return err
			},
		})
	}

	if cfg.ReconcileInterval > 0 {
		jobs = append(jobs, Job{
			Name:     JobReconcile,
			Interval: cfg.ReconcileInterval,
			Run: func(ctx context.Context) error {
				fixed, err := svc.ReconcileAll(ctx)
				if err != nil {
					return err
				}
				if len(fixed) > 0 {
					logger.Warn("Reconcile corrected drifting products", zap.Int("products", len(fixed)))
				}
				return nil
			},
		})
	}
	return jobs
}
