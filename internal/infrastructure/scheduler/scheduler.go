package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/firesafe/ledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Job outcomes recorded in metrics
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Job is a named piece of ledger maintenance run on an interval
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

func (j Job) validate() error {
	if j.Name == "" || j.Interval <= 0 || j.Run == nil {
		return fmt.Errorf("%w: %q", ErrInvalidJob, j.Name)
	}
	return nil
}

// Config holds scheduler configuration
type Config struct {
	Workers    int
	JobTimeout time.Duration
	LockTTL    time.Duration
	QueueSize  int
	RunOnStart bool // submit every job once right after Start
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Workers:    2,
		JobTimeout: 10 * time.Minute,
		LockTTL:    15 * time.Minute,
		QueueSize:  16,
	}
}

// Scheduler runs registered jobs on their intervals through a worker pool.
// A job never overlaps itself inside one process; across processes the
// Locker decides which instance runs it.
type Scheduler struct {
	config  Config
	locker  Locker
	metrics *telemetry.LedgerMetrics
	logger  *zap.Logger

	jobs    map[string]Job
	order   []string
	queue   chan Job
	running map[string]bool

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a new scheduler instance. A nil locker runs every
// job without cross-instance locking.
func NewScheduler(config Config, locker Locker, logger *zap.Logger) *Scheduler {
	defaults := DefaultConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = defaults.JobTimeout
	}
	if config.LockTTL <= 0 {
		config.LockTTL = defaults.LockTTL
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config:  config,
		locker:  locker,
		logger:  logger,
		jobs:    make(map[string]Job),
		running: make(map[string]bool),
	}
}

// SetLedgerMetrics sets the metrics recorder
func (s *Scheduler) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// Register adds a job. Jobs must be registered before Start.
func (s *Scheduler) Register(job Job) error {
	if err := job.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return ErrSchedulerRunning
	}
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name)
	}
	s.jobs[job.Name] = job
	s.order = append(s.order, job.Name)
	return nil
}

// Jobs returns the registered job names in registration order
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Start starts the worker pool and one ticker per job
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.queue = make(chan Job, s.config.QueueSize)
	jobs := make([]Job, 0, len(s.order))
	for _, name := range s.order {
		jobs = append(jobs, s.jobs[name])
	}
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}
	for _, job := range jobs {
		s.wg.Add(1)
		go s.tick(ctx, job)
	}

	s.logger.Info("Ledger scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Int("jobs", len(jobs)),
		zap.Duration("job_timeout", s.config.JobTimeout),
		zap.Bool("distributed_lock", s.locker != nil),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers to exit
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Ledger scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Ledger scheduler stop timed out")
		return ctx.Err()
	}
}

// Submit queues a job for immediate execution
func (s *Scheduler) Submit(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	select {
	case s.queue <- job:
		return nil
	default:
		return ErrJobQueueFull
	}
}

// RunNow executes a job synchronously under the same locking as a
// scheduled run and returns its outcome.
func (s *Scheduler) RunNow(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, job)
}

func (s *Scheduler) tick(ctx context.Context, job Job) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		s.enqueue(ctx, job)
	}
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueue(ctx, job)
		}
	}
}

func (s *Scheduler) enqueue(ctx context.Context, job Job) {
	select {
	case <-ctx.Done():
	case s.queue <- job:
	default:
		s.logger.Warn("Job queue full, skipping run", zap.String("job", job.Name))
	}
}

func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.queue:
			if _, err := s.execute(ctx, job); err != nil {
				s.logger.Error("Job failed",
					zap.Int("worker_id", workerID),
					zap.String("job", job.Name),
					zap.Error(err),
				)
			}
		}
	}
}

// execute runs one job with a timeout, skipping it when it is already
// running here or its lock is held by another instance.
func (s *Scheduler) execute(ctx context.Context, job Job) (outcome string, err error) {
	s.mu.Lock()
	if s.running[job.Name] {
		s.mu.Unlock()
		s.logger.Debug("Job still running, skipping", zap.String("job", job.Name))
		s.metrics.RecordJobRun(ctx, job.Name, OutcomeSkipped)
		return OutcomeSkipped, nil
	}
	s.running[job.Name] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, job.Name)
		s.mu.Unlock()
		s.metrics.RecordJobRun(ctx, job.Name, outcome)
	}()

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	if s.locker != nil {
		lock, err := s.locker.Obtain(jobCtx, "ledger:job:"+job.Name, s.config.LockTTL)
		if errors.Is(err, ErrLockNotObtained) {
			s.logger.Debug("Job lock held elsewhere, skipping", zap.String("job", job.Name))
			return OutcomeSkipped, nil
		}
		if err != nil {
			return OutcomeFailed, fmt.Errorf("failed to obtain lock for %s: %w", job.Name, err)
		}
		defer func() {
			if rerr := lock.Release(context.WithoutCancel(ctx)); rerr != nil {
				s.logger.Warn("Failed to release job lock", zap.String("job", job.Name), zap.Error(rerr))
			}
		}()
	}

	start := time.Now()
	if err := job.Run(jobCtx); err != nil {
		return OutcomeFailed, err
	}
	s.logger.Info("Job completed",
		zap.String("job", job.Name),
		zap.Duration("duration", time.Since(start)),
	)
	return OutcomeSuccess, nil
}
