package core

// scheduler.go runs import history retention on a cron schedule.
//
// The purge runs once at start and then on every schedule tick. Overlapping
// runs are skipped and a panicking run is recovered, so a bad night never
// stops the schedule. Failures are logged; they never stop the service.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// HistoryRetention configures the purge job.
type HistoryRetention struct {
	RetentionDays int    // Days of history to keep
	Schedule      string // Standard cron spec or descriptor such as "@daily"
}

// PurgeObserver receives purge counts, typically for metrics.
type PurgeObserver interface {
	ObserveHistoryPurge(n int64)
}

// StartHistoryScheduler runs the retention job until ctx is cancelled.
// It returns an error only when the schedule cannot be parsed.
func (s *Service) StartHistoryScheduler(ctx context.Context, cfg HistoryRetention, obs PurgeObserver) error {
	logger := cronLogger{log: slog.Default().With("job", "history_retention")}
	c := cron.New(cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))

	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
	job := func() { s.runHistoryPurge(ctx, retention, obs) }

	if _, err := c.AddFunc(cfg.Schedule, job); err != nil {
		return fmt.Errorf("schedule history retention %q: %w", cfg.Schedule, err)
	}

	slog.Info("history scheduler started",
		"retention_days", cfg.RetentionDays,
		"schedule", cfg.Schedule,
	)

	job()
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("history scheduler stopped")
	return nil
}

// runHistoryPurge performs one purge cycle.
func (s *Service) runHistoryPurge(ctx context.Context, retention time.Duration, obs PurgeObserver) {
	start := time.Now()
	purged, err := s.PurgeHistory(ctx, retention)
	if err != nil {
		slog.Error("history purge failed", "error", err)
		return
	}
	if obs != nil {
		obs.ObserveHistoryPurge(purged)
	}
	slog.Info("purged import history",
		"entries_purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
