package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/guidance/internal/logging"
)

// Sweeper evicts sessions idle for longer than maxIdle.
type Sweeper interface {
	Sweep(ctx context.Context, maxIdle time.Duration) ([]string, error)
}

// Janitor runs a Sweeper periodically. It is the eviction hook that keeps
// session memory bounded; the engine itself never expires anything.
type Janitor struct {
	sweeper  Sweeper
	interval time.Duration
	maxIdle  time.Duration
	logger   *slog.Logger
}

// NewJanitor creates a janitor sweeping every interval for sessions idle past maxIdle.
func NewJanitor(sweeper Sweeper, interval, maxIdle time.Duration, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Janitor{
		sweeper:  sweeper,
		interval: interval,
		maxIdle:  maxIdle,
		logger:   logger,
	}
}

// Run blocks, sweeping on every tick until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	if j.interval <= 0 || j.maxIdle <= 0 {
		j.logger.Debug("session janitor disabled", "interval", j.interval, "max_idle", j.maxIdle)
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := j.sweeper.Sweep(ctx, j.maxIdle)
			if err != nil {
				j.logger.Warn("session sweep failed", "err", err)
				continue
			}
			if len(removed) > 0 {
				j.logger.Info("evicted idle sessions", "count", len(removed))
			}
		}
	}
}
