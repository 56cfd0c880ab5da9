package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/thatjpcsguy/peekfs/internal/store"
)

// DefaultSweepInterval is how often expired authorizations are purged.
const DefaultSweepInterval = time.Minute

// Sweeper periodically deletes expired authorizations and announces when
// none are left. It is the only thing that shuts the service down on its
// own; a sweep that fails leaves the service running.
type Sweeper struct {
	store    *store.Store
	logger   *slog.Logger
	interval time.Duration

	idleOnce sync.Once
	idle     chan struct{}
}

// NewSweeper returns a sweeper over st. A non-positive interval selects
// DefaultSweepInterval.
func NewSweeper(st *store.Store, logger *slog.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:    st,
		logger:   logger,
		interval: interval,
		idle:     make(chan struct{}),
	}
}

// Idle is closed after the first sweep that finds no active
// authorizations.
func (sw *Sweeper) Idle() <-chan struct{} {
	return sw.idle
}

// Run sweeps on every tick until ctx is cancelled. The first sweep
// happens one full interval after start, so a freshly granted token
// always outlives service startup.
func (sw *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.sweep(time.Now())
		}
	}
}

func (sw *Sweeper) sweep(now time.Time) {
	removed, err := sw.store.DeleteExpired(now)
	if err != nil {
		sw.logger.Error("failed to delete expired authorizations", slog.String("error", err.Error()))
		return
	}
	if removed > 0 {
		sw.logger.Info("removed expired authorizations", slog.Int64("count", removed))
	}

	count, err := sw.store.CountActive(now)
	if err != nil {
		sw.logger.Error("failed to count active authorizations", slog.String("error", err.Error()))
		return
	}
	activeGrants.Set(float64(count))

	if count == 0 {
		sw.idleOnce.Do(func() {
			sw.logger.Info("no active authorizations remain")
			close(sw.idle)
		})
	}
}
