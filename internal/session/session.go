// Package session defines tracked browsing sessions
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status describes the lifecycle state of a session.
type Status string

const (
	// StatusActive marks a session that is currently accruing time.
	StatusActive Status = "active"
	// StatusCompleted marks a finalized session. Completed is terminal.
	StatusCompleted Status = "completed"
	// StatusSuspended marks a session paused by user inactivity.
	StatusSuspended Status = "suspended"
)

// DurationTolerance is the allowed divergence between a completed
// session's recorded duration and its start/end lifetime. Anything
// beyond it indicates timestamp corruption.
const DurationTolerance = 30 * time.Second

var (
	errEmptyID       = errors.New("session id cannot be empty")
	errEmptyDomain   = errors.New("session domain cannot be empty")
	errZeroStartTime = errors.New("session start time is not set")
)

// Session represents a contiguous record of time attributed to a single
// browsing domain, from first focus to finalization.
type Session struct {
	ID        string    `json:"id"`
	Domain    string    `json:"domain"`
	StartTime time.Time `json:"start_time"`
	// EndTime is zero while the session is active or suspended.
	EndTime time.Time `json:"end_time"`
	// Duration is the time persisted so far, in whole seconds. For an
	// active session it trails the wall clock by at most one save
	// interval.
	Duration int64  `json:"duration"`
	Status   Status `json:"status"`
	// Visits counts distinct activations folded into this session.
	Visits    int       `json:"visits"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New initialises an active session for the given domain.
func New(domain string, startTime time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Domain:    domain,
		StartTime: startTime,
		Status:    StatusActive,
		Visits:    1,
		CreatedAt: startTime,
		UpdatedAt: startTime,
	}
}

// Lifetime reports the wall-clock span of the session so far. It
// returns zero for a session without an end time.
func (s *Session) Lifetime() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}

	return s.EndTime.Sub(s.StartTime)
}

// Validate performs the structural checks shared by the store's read
// path and the stats aggregator. maxDuration is the sanity ceiling
// beyond which a recorded duration signals a tracking bug rather than
// real usage.
func (s *Session) Validate(maxDuration time.Duration) error {
	if s.ID == "" {
		return errEmptyID
	}

	if s.Domain == "" {
		return errEmptyDomain
	}

	if s.StartTime.IsZero() {
		return errZeroStartTime
	}

	if s.Duration < 0 {
		return fmt.Errorf(
			"session %s: negative duration %d",
			s.ID,
			s.Duration,
		)
	}

	if time.Duration(s.Duration)*time.Second > maxDuration {
		return fmt.Errorf(
			"session %s: duration %ds exceeds ceiling %s",
			s.ID,
			s.Duration,
			maxDuration,
		)
	}

	switch s.Status {
	case StatusActive, StatusSuspended:
		if !s.EndTime.IsZero() {
			return fmt.Errorf(
				"session %s: %s session has an end time",
				s.ID,
				s.Status,
			)
		}
	case StatusCompleted:
		if s.EndTime.IsZero() {
			return fmt.Errorf("session %s: completed without end time", s.ID)
		}

		if s.EndTime.Before(s.StartTime) {
			return fmt.Errorf(
				"session %s: end time %s precedes start time %s",
				s.ID,
				s.EndTime.Format(time.RFC3339),
				s.StartTime.Format(time.RFC3339),
			)
		}

		// A completed session's duration may be shorter than its
		// lifetime (suspended periods are not credited), but a duration
		// exceeding the lifetime means it was inflated with another
		// session's timestamps.
		lifetime := s.Lifetime()
		if time.Duration(s.Duration)*time.Second > lifetime+DurationTolerance {
			return fmt.Errorf(
				"session %s: duration %ds inconsistent with lifetime %s",
				s.ID,
				s.Duration,
				lifetime,
			)
		}
	default:
		return fmt.Errorf("session %s: unknown status %q", s.ID, s.Status)
	}

	return nil
}
