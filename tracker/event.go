package tracker

import "time"

// EventType identifies a raw browser activity event.
type EventType string

const (
	EventTabActivated       EventType = "tabActivated"
	EventTabUpdated         EventType = "tabUpdated"
	EventWindowFocusChanged EventType = "windowFocusChanged"
	EventIdleStateChanged   EventType = "idleStateChanged"
)

// NoWindow is the window id reported when every browser window has
// lost focus.
const NoWindow = -1

// IdleState mirrors the browser's idle detection states.
type IdleState string

const (
	IdleStateActive IdleState = "active"
	IdleStateIdle   IdleState = "idle"
	IdleStateLocked IdleState = "locked"
)

// RawEvent is the inbound shape produced by the browser activity
// source. Timestamp is epoch milliseconds.
type RawEvent struct {
	Type      EventType `json:"type"`
	TabID     int       `json:"tabId"`
	WindowID  int       `json:"windowId"`
	URL       string    `json:"url,omitempty"`
	IdleState IdleState `json:"idleState,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// Time converts the event's epoch-millisecond timestamp.
func (e *RawEvent) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}
