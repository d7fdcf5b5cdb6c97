package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs an incremental sync every five minutes.
const DefaultSchedule = "@every 5m"

const stopTimeout = 30 * time.Second

// Scheduler runs incremental syncs on a cron schedule. Runs never overlap;
// a tick that fires while a sync is still running is skipped.
type Scheduler struct {
	reconciler *Reconciler
	schedule   string
	cron       *cron.Cron
	logger     *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler validates schedule, a standard five field cron expression or
// a descriptor such as "@hourly" or "@every 10m".
func NewScheduler(reconciler *Reconciler, schedule string, logger *slog.Logger) (*Scheduler, error) {
	if reconciler == nil {
		return nil, errors.New("reconciler required")
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "bridge-scheduler")

	cl := cronLogger{logger: logger}
	s := &Scheduler{
		reconciler: reconciler,
		schedule:   schedule,
		logger:     logger,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins running syncs. Each run uses a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", s.schedule)
}

// Stop cancels the running sync, if any, and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(stopTimeout):
		s.logger.Warn("scheduler stop timed out")
	}
	s.logger.Info("scheduler stopped")
}

// RunOnce performs one incremental sync. Errors are logged.
func (s *Scheduler) RunOnce() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.reconciler.Sync(ctx, nil)
	switch {
	case errors.Is(err, ErrSyncInProgress):
		s.logger.Info("sync skipped, another sync is running")
	case err != nil:
		s.logger.Error("scheduled sync failed", "err", err)
	default:
		s.logger.Info("scheduled sync complete",
			"run", result.RunID,
			"synced", result.SyncedCount,
			"candidates", result.TotalCandidates)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "err", err)...)
}
