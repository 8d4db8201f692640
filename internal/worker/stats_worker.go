package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/propertyhub/internal/domain"
	"github.com/aryan0dhankhar/propertyhub/internal/observability/metrics"
)

// StatusCounter reports how many accounts are in each status.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[domain.UserStatus]int, error)
}

// Purger drops expired cache entries.
type Purger interface {
	Purge() int
}

// StatsWorker periodically refreshes the users-by-status gauge and purges
// expired entries from in-process caches.
type StatsWorker struct {
	counter  StatusCounter
	purgers  []Purger
	logger   *slog.Logger
	interval time.Duration
}

// NewStatsWorker creates a new stats worker
func NewStatsWorker(counter StatusCounter, logger *slog.Logger, interval time.Duration, purgers ...Purger) *StatsWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &StatsWorker{
		counter:  counter,
		purgers:  purgers,
		logger:   logger,
		interval: interval,
	}
}

// Start runs until ctx is cancelled. The first refresh happens immediately.
func (w *StatsWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("stats worker started", slog.Duration("interval", w.interval))
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stats worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *StatsWorker) runOnce(ctx context.Context) {
	counts, err := w.counter.CountByStatus(ctx)
	if err != nil {
		w.logger.Error("failed to count users by status", slog.String("error", err.Error()))
	} else {
		gauge := make(map[string]int, len(counts))
		for status, n := range counts {
			gauge[string(status)] = n
		}
		metrics.SetUsersByStatus(gauge)
	}

	purged := 0
	for _, p := range w.purgers {
		purged += p.Purge()
	}
	if purged > 0 {
		w.logger.Debug("purged expired cache entries", slog.Int("count", purged))
	}
}
