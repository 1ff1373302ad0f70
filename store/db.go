package store

import (
	"time"

	"github.com/trackerhq/sitewatch/internal/session"
)

// DB is the database storage interface.
type DB interface {
	// CreateSession creates a new active session for the given domain.
	// It always creates a fresh record and never reuses an existing id.
	CreateSession(domain string, startTime time.Time) (*session.Session, error)
	// IncrementDuration adds delta to a session's persisted duration.
	// The update is additive, never replacing. Negative deltas are
	// dropped and implausibly large ones are clamped.
	IncrementDuration(id string, startTime time.Time, delta time.Duration) error
	// FinalizeSession marks a session completed and sets its end time.
	// Finalizing an already-completed session is a no-op.
	FinalizeSession(id string, startTime, endTime time.Time) error
	// SuspendSession pauses an active session without finalizing it.
	SuspendSession(id string, startTime, at time.Time) error
	// ResumeSession returns a suspended session to the active state.
	ResumeSession(id string, startTime, at time.Time) error
	// ReopenSession reactivates a completed session for a quick
	// revisit, clearing its end time and counting a new visit.
	ReopenSession(id string, startTime, at time.Time) error
	// GetSessions returns saved sessions according to the time and
	// domain constraints. Records that fail validation are excluded.
	GetSessions(startTime, endTime time.Time, domains []string) ([]session.Session, error)
	// Corrupt reports how many stored records failed validation on read.
	Corrupt() int64
	// Close ends the database connection.
	Close() error
}
