package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Purger deletes cached responses older than a cutoff.
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Janitor periodically drops expired entries from the persistent cache so
// a long-running server does not grow its database without bound.
type Janitor struct {
	purger   Purger
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a janitor that purges entries older than ttl every interval.
func New(p Purger, ttl, interval time.Duration, logger *zap.Logger) *Janitor {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{
		purger:   p,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run purges once immediately, then on every tick. Blocks until ctx is
// cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.PurgeOnce(ctx)
	j.logger.Info("cache janitor running", zap.Duration("interval", j.interval), zap.Duration("ttl", j.ttl))

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("cache janitor stopped")
			return ctx.Err()
		case <-ticker.C:
			j.PurgeOnce(ctx)
		}
	}
}

// PurgeOnce deletes expired entries and returns how many were removed.
// Errors are logged.
func (j *Janitor) PurgeOnce(ctx context.Context) int64 {
	n, err := j.purger.PurgeBefore(ctx, j.now().Add(-j.ttl))
	if err != nil {
		j.logger.Warn("cache purge failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		j.logger.Info("cache purged", zap.Int64("deleted", n))
	}
	return n
}
