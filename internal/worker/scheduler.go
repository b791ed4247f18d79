package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the full report export on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	worker   *ReportWorker
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

func NewScheduler(worker *ReportWorker, schedule string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		schedule: schedule,
		worker:   worker,
		logger:   logger,
	}
}

// Start registers the export job and starts the cron loop. Returns an error
// if already running or if the schedule does not parse.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.running = true
	s.logger.InfoContext(ctx, "Report export scheduled", "schedule", s.schedule)
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	if err := s.worker.ExportAll(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Scheduled report export failed", "error", err)
	}
}

// Stop stops the cron loop and waits for a running export to finish or for
// ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		s.logger.InfoContext(ctx, "Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
