package tracker

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trackerhq/sitewatch/internal/domainutil"
)

// NoTab marks the coordinator's tab focus before any activation has
// been seen.
const NoTab = -1

// Sink consumes the linearized transition stream produced by the
// Coordinator. An empty domain means no tracked tab is focused.
type Sink interface {
	Transition(domain string, at time.Time)
	Pause(at time.Time)
	Resume(at time.Time)
}

type pendingTransition struct {
	domain string
	at     time.Time
}

// Coordinator turns the noisy raw event stream into a clean, ordered
// sequence of focus transitions. Rapid events inside the debounce
// window collapse into one transition, a pending transition superseded
// by a different domain is discarded entirely, and emitted transitions
// never go backwards in time.
type Coordinator struct {
	mu       sync.Mutex
	sink     Sink
	window   time.Duration
	pending  *pendingTransition
	timer    *time.Timer
	lastEmit time.Time

	// id of the tab currently holding focus, fed by tabActivated
	activeTab int

	malformed atomic.Int64
	stale     atomic.Int64
}

// NewCoordinator creates a Coordinator that debounces transitions over
// the given quiet window before handing them to sink.
func NewCoordinator(sink Sink, window time.Duration) *Coordinator {
	return &Coordinator{
		sink:      sink,
		window:    window,
		activeTab: NoTab,
	}
}

// Feed consumes one raw activity event. Malformed events are dropped
// and counted; they never crash the pipeline.
func (c *Coordinator) Feed(ev RawEvent) {
	if ev.Timestamp <= 0 {
		c.drop("invalid timestamp", ev)
		return
	}

	at := ev.Time()

	switch ev.Type {
	case EventIdleStateChanged:
		c.handleIdle(ev, at)
	case EventWindowFocusChanged:
		// Regained focus is always followed by a tab activation from
		// the source, so only the lost-focus case matters here.
		if ev.WindowID == NoWindow {
			c.schedule("", at)
		}
	case EventTabActivated, EventTabUpdated:
		if !c.admitTab(ev) {
			return
		}

		domain, err := domainutil.Registrable(ev.URL)
		if err != nil {
			// a browser-internal page took focus, so no tracked tab
			// has it
			if errors.Is(err, domainutil.ErrUntrackable) {
				c.schedule("", at)
				return
			}

			c.drop(err.Error(), ev)

			return
		}

		c.schedule(domain, at)
	default:
		c.drop("unknown event type", ev)
	}
}

func (c *Coordinator) handleIdle(ev RawEvent, at time.Time) {
	switch ev.IdleState {
	case IdleStateIdle, IdleStateLocked:
		c.mu.Lock()
		c.cancelPendingLocked()
		c.mu.Unlock()

		c.sink.Pause(at)
	case IdleStateActive:
		c.sink.Resume(at)
	default:
		c.drop("unknown idle state", ev)
	}
}

// admitTab records tab focus and filters events from unfocused tabs.
// A background tab finishing a load emits tabUpdated without holding
// focus; attributing time to it would steal it from the focused tab.
func (c *Coordinator) admitTab(ev RawEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.Type == EventTabActivated {
		c.activeTab = ev.TabID
		return true
	}

	if ev.TabID != c.activeTab {
		slog.Debug(
			"ignoring update from unfocused tab",
			slog.Int("tab_id", ev.TabID),
			slog.Int("active_tab", c.activeTab),
		)

		return false
	}

	return true
}

// schedule queues a transition behind the debounce window. A pending
// transition for the same domain is coalesced; one for a different
// domain is cancelled outright so it can never be applied late.
func (c *Coordinator) schedule(domain string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if at.Before(c.lastEmit) {
		c.stale.Add(1)

		slog.Debug(
			"dropping out-of-order event",
			slog.String("domain", domain),
			slog.Time("at", at),
			slog.Time("last_emit", c.lastEmit),
		)

		return
	}

	if c.pending != nil && c.pending.domain == domain {
		c.pending.at = at
		c.timer.Reset(c.window)

		return
	}

	c.cancelPendingLocked()

	c.pending = &pendingTransition{domain: domain, at: at}
	c.timer = time.AfterFunc(c.window, c.fire)
}

// fire emits the pending transition once its quiet window has elapsed.
func (c *Coordinator) fire() {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pending
	if p == nil {
		return
	}

	c.pending = nil

	if p.at.Before(c.lastEmit) {
		c.stale.Add(1)
		return
	}

	c.lastEmit = p.at

	c.sink.Transition(p.domain, p.at)
}

func (c *Coordinator) cancelPendingLocked() {
	if c.pending == nil {
		return
	}

	c.timer.Stop()
	c.pending = nil
}

// Stop discards any pending transition.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelPendingLocked()
}

func (c *Coordinator) drop(reason string, ev RawEvent) {
	c.malformed.Add(1)

	slog.Debug(
		"dropping malformed event",
		slog.String("reason", reason),
		slog.String("type", string(ev.Type)),
		slog.Int("tab_id", ev.TabID),
	)
}

// Malformed reports how many events were dropped as unusable.
func (c *Coordinator) Malformed() int64 {
	return c.malformed.Load()
}

// Stale reports how many events were dropped as reordering noise.
func (c *Coordinator) Stale() int64 {
	return c.stale.Load()
}
