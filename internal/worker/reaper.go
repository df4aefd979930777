package worker

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper removes records older than ttl and reports how many it removed.
type Sweeper interface {
	Sweep(now time.Time, ttl time.Duration) int
}

// Reaper periodically evicts expired jobs.
type Reaper struct {
	sweeper   Sweeper
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewReaper creates a reaper sweeping every interval for jobs older than retention.
func NewReaper(sweeper Sweeper, interval, retention time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{
		sweeper:   sweeper,
		interval:  interval,
		retention: retention,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	r.logger.Info("reaper started", "interval", r.interval.String(), "retention", r.retention.String())

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return
		case <-ticker.C:
			r.SweepOnce()
		}
	}
}

// SweepOnce runs a single sweep and returns the number of evicted jobs.
func (r *Reaper) SweepOnce() int {
	n := r.sweeper.Sweep(r.now(), r.retention)
	if n > 0 {
		r.logger.Info("evicted expired jobs", "count", n)
	} else {
		r.logger.Debug("sweep found no expired jobs")
	}
	return n
}
