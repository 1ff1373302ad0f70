// Package tracker attributes elapsed wall-clock time to the browsing
// domain currently in focus and drives session lifecycle in the store.
package tracker

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trackerhq/sitewatch/config"
	"github.com/trackerhq/sitewatch/store"
)

type state int

const (
	stateIdle state = iota
	stateTracking
	statePaused
)

// activeRef is the tracker's transient reference to the single active
// session. The record itself is owned by the store.
type activeRef struct {
	id        string
	domain    string
	startTime time.Time
}

type finalizedRef struct {
	id        string
	domain    string
	startTime time.Time
	endTime   time.Time
}

// Tracker owns the "what domain is active right now and since when"
// state machine. It holds at most one active session reference and a
// single lastAccounted watermark consumed by both transition flushes
// and the periodic persistence loop, so the same wall-clock interval is
// never counted twice.
type Tracker struct {
	mu    sync.Mutex
	db    store.DB
	clock Clock
	opts  *config.TrackerConfig

	state         state
	current       *activeRef
	lastAccounted time.Time

	// most recently finalized session, kept for revisit merging
	lastFinalized *finalizedRef

	// finalize that failed on storage I/O, retried by Commit
	pendingFinalize *finalizedRef

	rejected atomic.Int64
}

// New creates a tracker. A nil clock falls back to the system clock.
func New(db store.DB, opts *config.TrackerConfig, clock Clock) *Tracker {
	if clock == nil {
		clock = SystemClock{}
	}

	return &Tracker{
		db:    db,
		clock: clock,
		opts:  opts,
	}
}

// Transition moves focus to the given domain at the coordinator's
// transition time. An empty domain means no tracked tab is focused.
func (t *Tracker) Transition(domain string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.admitLocked(domain, at) {
		return
	}

	if t.state == stateTracking && t.current != nil &&
		domain == t.current.domain {
		// re-affirmation of the current domain, not a new session
		return
	}

	t.closeCurrentLocked(at)

	if domain == "" {
		t.lastAccounted = at
		return
	}

	t.startSessionLocked(domain, at)
}

// Pause stops accruing time without finalizing the current session,
// e.g. when the user goes idle or locks the screen.
func (t *Tracker) Pause(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != stateTracking || t.current == nil {
		return
	}

	if !t.admitLocked(t.current.domain, at) {
		return
	}

	t.creditLocked(at)

	if err := t.db.SuspendSession(t.current.id, t.current.startTime, at); err != nil {
		slog.Error(
			"suspending session failed",
			slog.String("session_id", t.current.id),
			slog.Any("error", err),
		)
	}

	t.state = statePaused
}

// Resume restarts accounting from the resume timestamp. Time spent
// paused is never credited.
func (t *Tracker) Resume(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != statePaused || t.current == nil {
		return
	}

	if !t.admitLocked(t.current.domain, at) {
		return
	}

	if err := t.db.ResumeSession(t.current.id, t.current.startTime, at); err != nil {
		slog.Error(
			"resuming session failed",
			slog.String("session_id", t.current.id),
			slog.Any("error", err),
		)
	}

	t.state = stateTracking
	t.lastAccounted = at
}

// Commit persists unaccounted time for the current session. It is the
// periodic persistence loop's entry point: a monotonic pull that is
// safe to call whether or not any transition occurred. The watermark
// only advances after a confirmed write, so a failed write is retried
// on the next tick without double-counting.
func (t *Tracker) Commit(now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.retryFinalizeLocked()

	if t.state != stateTracking || t.current == nil {
		return nil
	}

	return t.creditLocked(now)
}

// Stop flushes and finalizes the current session, typically on
// shutdown.
func (t *Tracker) Stop(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closeCurrentLocked(now)
	t.retryFinalizeLocked()
	t.lastAccounted = now
}

// Rejected reports how many transitions were refused by the timing
// guards.
func (t *Tracker) Rejected() int64 {
	return t.rejected.Load()
}

// admitLocked enforces the timing guards: a transition must carry a
// timestamp close to the tracker's own clock and must never precede
// the watermark. A stale timestamp here is exactly how a session ends
// up finalized with another tab's time, so it is rejected outright.
func (t *Tracker) admitLocked(domain string, at time.Time) bool {
	drift := t.clock.Now().Sub(at)
	if drift < 0 {
		drift = -drift
	}

	if drift > t.opts.DriftTolerance {
		t.rejected.Add(1)

		slog.Warn(
			"rejecting transition: timestamp too far from now",
			slog.String("domain", domain),
			slog.Time("at", at),
			slog.Duration("drift", drift),
		)

		return false
	}

	if !t.lastAccounted.IsZero() && at.Before(t.lastAccounted) {
		t.rejected.Add(1)

		slog.Warn(
			"rejecting transition: timestamp precedes watermark",
			slog.String("domain", domain),
			slog.Time("at", at),
			slog.Time("watermark", t.lastAccounted),
		)

		return false
	}

	return true
}

// creditLocked flushes whole seconds elapsed since the watermark into
// the current session. Elapsed time beyond the per-write ceiling marks
// a clock gap (sleep or hibernate) and the gap itself is not credited.
func (t *Tracker) creditLocked(upTo time.Time) error {
	elapsed := upTo.Sub(t.lastAccounted)

	credit := elapsed.Truncate(time.Second)
	if credit < time.Second {
		return nil
	}

	gap := false

	if credit > t.opts.MaxDelta() {
		slog.Warn(
			"clock gap detected; crediting one interval only",
			slog.String("session_id", t.current.id),
			slog.String("domain", t.current.domain),
			slog.Duration("elapsed", elapsed),
		)

		credit = t.opts.MaxDelta()
		gap = true
	}

	err := t.db.IncrementDuration(t.current.id, t.current.startTime, credit)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			t.recreateLocked(upTo)
			return nil
		}

		// watermark untouched so the next tick retries this interval
		return err
	}

	if gap {
		t.lastAccounted = upTo
	} else {
		t.lastAccounted = t.lastAccounted.Add(credit)
	}

	return nil
}

// closeCurrentLocked flushes and finalizes the current session using
// the supplied transition time. The transition timestamp is the only
// value ever used for finalization.
func (t *Tracker) closeCurrentLocked(at time.Time) {
	if t.current == nil {
		t.state = stateIdle
		return
	}

	if t.state == stateTracking {
		if err := t.creditLocked(at); err != nil {
			slog.Error(
				"flushing elapsed time failed",
				slog.String("session_id", t.current.id),
				slog.Any("error", err),
			)
		}
	}

	if t.current == nil {
		// creditLocked recreated nothing; flush found the record gone
		t.state = stateIdle
		return
	}

	ref := &finalizedRef{
		id:        t.current.id,
		domain:    t.current.domain,
		startTime: t.current.startTime,
		endTime:   at,
	}

	err := t.db.FinalizeSession(ref.id, ref.startTime, ref.endTime)

	switch {
	case err == nil:
		t.lastFinalized = ref
	case errors.Is(err, store.ErrSessionNotFound):
		slog.Warn(
			"active session missing on finalize",
			slog.String("session_id", ref.id),
			slog.String("domain", ref.domain),
		)
	default:
		slog.Error(
			"finalize failed; will retry",
			slog.String("session_id", ref.id),
			slog.Any("error", err),
		)

		t.pendingFinalize = ref
	}

	t.current = nil
	t.state = stateIdle
}

// startSessionLocked begins tracking a domain, reopening the most
// recently finalized session when the user bounced back within the
// revisit window.
func (t *Tracker) startSessionLocked(domain string, at time.Time) {
	if lf := t.lastFinalized; lf != nil && lf.domain == domain {
		sinceEnd := at.Sub(lf.endTime)
		if sinceEnd >= 0 && sinceEnd <= t.opts.RevisitWindow {
			err := t.db.ReopenSession(lf.id, lf.startTime, at)
			if err == nil {
				t.current = &activeRef{
					id:        lf.id,
					domain:    domain,
					startTime: lf.startTime,
				}
				t.state = stateTracking
				t.lastAccounted = at
				t.lastFinalized = nil

				return
			}

			slog.Warn(
				"could not reopen recent session",
				slog.String("session_id", lf.id),
				slog.String("domain", domain),
				slog.Any("error", err),
			)
		}
	}

	sess, err := t.db.CreateSession(domain, at)
	if err != nil {
		slog.Error(
			"creating session failed",
			slog.String("domain", domain),
			slog.Any("error", err),
		)

		t.state = stateIdle
		t.lastAccounted = at

		return
	}

	t.current = &activeRef{
		id:        sess.ID,
		domain:    domain,
		startTime: sess.StartTime,
	}
	t.state = stateTracking
	t.lastAccounted = at
}

// recreateLocked replaces a session that vanished from the store, e.g.
// after a process restart wiped in-flight state. The tracker re-creates
// rather than failing.
func (t *Tracker) recreateLocked(at time.Time) {
	domain := t.current.domain

	slog.Warn(
		"active session missing from store; recreating",
		slog.String("session_id", t.current.id),
		slog.String("domain", domain),
	)

	sess, err := t.db.CreateSession(domain, at)
	if err != nil {
		slog.Error(
			"recreating session failed",
			slog.String("domain", domain),
			slog.Any("error", err),
		)

		t.current = nil
		t.state = stateIdle
		t.lastAccounted = at

		return
	}

	t.current = &activeRef{
		id:        sess.ID,
		domain:    domain,
		startTime: sess.StartTime,
	}
	t.lastAccounted = at
}

func (t *Tracker) retryFinalizeLocked() {
	pf := t.pendingFinalize
	if pf == nil {
		return
	}

	err := t.db.FinalizeSession(pf.id, pf.startTime, pf.endTime)
	if err != nil && !errors.Is(err, store.ErrSessionNotFound) {
		return
	}

	t.pendingFinalize = nil
}
