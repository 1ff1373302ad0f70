package tracker

import (
	"context"
	"log/slog"
	"time"
)

// Autosave is the periodic persistence loop. It guarantees that an
// active session loses at most one tick of accrued time if the process
// dies. Elapsed time is measured from the clock at tick time, never
// derived from the number of ticks, so timer throttling by the host
// cannot silently shrink recorded durations.
type Autosave struct {
	tracker  *Tracker
	clock    Clock
	interval time.Duration
}

// NewAutosave creates the persistence loop. A nil clock falls back to
// the system clock.
func NewAutosave(t *Tracker, interval time.Duration, clock Clock) *Autosave {
	if clock == nil {
		clock = SystemClock{}
	}

	return &Autosave{
		tracker:  t,
		clock:    clock,
		interval: interval,
	}
}

// Run ticks until the context is cancelled. A failed commit is logged
// and retried on the next tick; the tracker's watermark only moves
// after confirmed writes, so retries never double-count.
func (a *Autosave) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.tracker.Commit(a.clock.Now()); err != nil {
				slog.Error(
					"autosave commit failed; retrying next tick",
					slog.Any("error", err),
				)
			}
		}
	}
}
