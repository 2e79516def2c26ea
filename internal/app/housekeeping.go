package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Purger drops expired one-time tokens from the credential store.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// Pruner drops webhook ledger rows older than cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Housekeeping holds the periodic maintenance jobs. A nil Purger or Pruner
// skips its job.
type Housekeeping struct {
	purger    Purger
	pruner    Pruner
	retention time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewHousekeeping returns jobs that keep webhook rows for retention.
func NewHousekeeping(purger Purger, pruner Pruner, retention time.Duration, logger *slog.Logger) *Housekeeping {
	return &Housekeeping{
		purger:    purger,
		pruner:    pruner,
		retention: retention,
		timeout:   time.Minute,
		logger:    logger.With("component", "housekeeping"),
		now:       time.Now,
	}
}

// PurgeExpiredTokens clears reset and verification tokens past their expiry.
func (h *Housekeeping) PurgeExpiredTokens() {
	if h.purger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	n, err := h.purger.PurgeExpired(ctx, h.now())
	if err != nil {
		h.logger.Error("failed to purge expired tokens", "error", err)
		return
	}
	h.logger.Info("purged expired tokens", "accounts", n)
}

// PruneWebhookLedger deletes processed webhook events past retention.
func (h *Housekeeping) PruneWebhookLedger() {
	if h.pruner == nil || h.retention <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	n, err := h.pruner.Prune(ctx, h.now().Add(-h.retention))
	if err != nil {
		h.logger.Error("failed to prune webhook ledger", "error", err)
		return
	}
	h.logger.Info("pruned webhook ledger", "rows", n)
}

// Scheduler runs the housekeeping jobs on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	jobs     *Housekeeping
	schedule string
	logger   *slog.Logger
}

// NewScheduler creates a scheduler. A job that panics is logged and the
// scheduler keeps running.
func NewScheduler(jobs *Housekeeping, schedule string, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger))),
		jobs:     jobs,
		schedule: schedule,
		logger:   logger.With("component", "scheduler"),
	}
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	for name, job := range map[string]func(){
		"purge expired tokens": s.jobs.PurgeExpiredTokens,
		"prune webhook ledger": s.jobs.PruneWebhookLedger,
	} {
		if _, err := s.cron.AddFunc(s.schedule, job); err != nil {
			return err
		}
		s.logger.Info("scheduled job", "job", name, "schedule", s.schedule)
	}
	s.cron.Start()
	return nil
}

// Stop stops the scheduler. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
