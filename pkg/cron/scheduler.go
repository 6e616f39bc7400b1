// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/statement-ingest/pkg/storage"
)

// Scheduler manages background maintenance jobs using robfig/cron.
type Scheduler struct {
	cron          *cron.Cron
	store         *storage.DocumentStore
	retentionDays int
	logger        *slog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(store *storage.DocumentStore, retentionDays int, logger *slog.Logger) *Scheduler {
	// Standard 5-field cron format, no seconds.
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:          c,
		store:         store,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// Start begins scheduled jobs. schedule is a 5-field cron expression.
func (s *Scheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, s.cleanupBackups)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("schedule", schedule),
	)
	return nil
}

// Stop halts the scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("cron scheduler stopped")
}

// cleanupBackups removes pre-fix backup files older than the retention window.
func (s *Scheduler) cleanupBackups() {
	maxAge := time.Duration(s.retentionDays) * 24 * time.Hour
	removed, err := s.store.CleanupOldBackups(maxAge)
	if err != nil {
		s.logger.Error("backup cleanup failed", slog.Any("error", err))
		return
	}
	s.logger.Info("backup cleanup completed",
		slog.Int("removed", removed),
		slog.Int("retention_days", s.retentionDays),
	)
}
