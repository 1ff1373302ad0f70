// Package store connects to the data store and manages session records
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/trackerhq/sitewatch/internal/session"
	"github.com/trackerhq/sitewatch/internal/timeutil"
)

const sessionsBucket = "sessions"

var (
	errWatchRunning = errors.New(
		"is sitewatch already running? Only one instance can be active at a time",
	)

	errEmptyDomain = errors.New(
		"cannot create a session for an empty domain",
	)

	// ErrSessionNotFound indicates that the expected session record is
	// missing, usually because the process restarted and tracking state
	// was lost.
	ErrSessionNotFound = errors.New("session not found")
)

// Client is a BoltDB database client.
type Client struct {
	db *bolt.DB

	// sanity bounds applied to mutations
	maxSession time.Duration
	maxDelta   time.Duration

	corrupt atomic.Int64
}

// NewClient opens (or creates) the session database and returns a
// wrapper to the BoltDB connection. maxSession caps any single
// session's duration and maxDelta caps a single increment.
func NewClient(
	dbPath string,
	maxSession, maxDelta time.Duration,
) (*Client, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err = tx.CreateBucketIfNotExists([]byte(sessionsBucket))
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		db:         db,
		maxSession: maxSession,
		maxDelta:   maxDelta,
	}, nil
}

// openDB creates or opens a database and locks it.
func openDB(dbPath string) (*bolt.DB, error) {
	var fileMode fs.FileMode = 0o600

	db, err := bolt.Open(
		dbPath,
		fileMode,
		&bolt.Options{Timeout: 1 * time.Second},
	)
	if err != nil {
		// a held file lock surfaces as a timeout
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, errWatchRunning
		}

		return nil, err
	}

	return db, nil
}

func (c *Client) CreateSession(
	domain string,
	startTime time.Time,
) (*session.Session, error) {
	if domain == "" {
		return nil, errEmptyDomain
	}

	sess := session.New(domain, startTime)

	value, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}

	err = c.db.Update(func(tx *bolt.Tx) error {
		day, err := tx.Bucket([]byte(sessionsBucket)).
			CreateBucketIfNotExists(timeutil.DayKey(startTime))
		if err != nil {
			return err
		}

		return day.Put([]byte(sess.ID), value)
	})
	if err != nil {
		return nil, err
	}

	return sess, nil
}

// mutate applies fn to a single session record inside one write
// transaction. All record updates go through here so that writers never
// read-modify-write outside the store.
func (c *Client) mutate(
	id string,
	startTime time.Time,
	fn func(sess *session.Session) error,
) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		day := tx.Bucket([]byte(sessionsBucket)).
			Bucket(timeutil.DayKey(startTime))
		if day == nil {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}

		value := day.Get([]byte(id))
		if len(value) == 0 {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}

		var sess session.Session

		if err := json.Unmarshal(value, &sess); err != nil {
			return err
		}

		if err := fn(&sess); err != nil {
			return err
		}

		updated, err := json.Marshal(&sess)
		if err != nil {
			return err
		}

		return day.Put([]byte(id), updated)
	})
}

func (c *Client) IncrementDuration(
	id string,
	startTime time.Time,
	delta time.Duration,
) error {
	if delta <= 0 {
		if delta < 0 {
			slog.Warn(
				"dropping negative duration increment",
				slog.String("session_id", id),
				slog.Duration("delta", delta),
			)
		}

		return nil
	}

	if delta > c.maxDelta {
		slog.Warn(
			"clamping implausible duration increment",
			slog.String("session_id", id),
			slog.Duration("delta", delta),
			slog.Duration("max_delta", c.maxDelta),
		)

		delta = c.maxDelta
	}

	return c.mutate(id, startTime, func(sess *session.Session) error {
		if sess.Status == session.StatusCompleted {
			slog.Warn(
				"ignoring increment on completed session",
				slog.String("session_id", id),
				slog.String("domain", sess.Domain),
			)

			return nil
		}

		next := sess.Duration + int64(delta.Seconds())

		ceiling := int64(c.maxSession.Seconds())
		if next > ceiling {
			slog.Error(
				"session duration hit sanity ceiling",
				slog.String("session_id", id),
				slog.String("domain", sess.Domain),
				slog.Int64("duration", next),
			)

			next = ceiling
		}

		sess.Duration = next
		sess.UpdatedAt = time.Now()

		return nil
	})
}

func (c *Client) FinalizeSession(id string, startTime, endTime time.Time) error {
	return c.mutate(id, startTime, func(sess *session.Session) error {
		// retry after a partial failure must be safe
		if sess.Status == session.StatusCompleted {
			return nil
		}

		if endTime.Before(sess.StartTime) {
			return fmt.Errorf(
				"refusing to finalize session %s: end %s precedes start %s",
				id,
				endTime.Format(time.RFC3339),
				sess.StartTime.Format(time.RFC3339),
			)
		}

		sess.Status = session.StatusCompleted
		sess.EndTime = endTime
		sess.UpdatedAt = endTime

		return nil
	})
}

func (c *Client) SuspendSession(id string, startTime, at time.Time) error {
	return c.mutate(id, startTime, func(sess *session.Session) error {
		if sess.Status != session.StatusActive {
			return nil
		}

		sess.Status = session.StatusSuspended
		sess.UpdatedAt = at

		return nil
	})
}

func (c *Client) ResumeSession(id string, startTime, at time.Time) error {
	return c.mutate(id, startTime, func(sess *session.Session) error {
		if sess.Status != session.StatusSuspended {
			return nil
		}

		sess.Status = session.StatusActive
		sess.UpdatedAt = at

		return nil
	})
}

func (c *Client) ReopenSession(id string, startTime, at time.Time) error {
	return c.mutate(id, startTime, func(sess *session.Session) error {
		if sess.Status == session.StatusActive {
			return nil
		}

		sess.Status = session.StatusActive
		sess.EndTime = time.Time{}
		sess.Visits++
		sess.UpdatedAt = at

		return nil
	})
}

func (c *Client) GetSessions(
	startTime, endTime time.Time,
	domains []string,
) ([]session.Session, error) {
	var b [][]byte

	err := c.db.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket([]byte(sessionsBucket)).Cursor()

		min := timeutil.DayKey(startTime)
		max := timeutil.DayKey(endTime)

		for k, _ := cur.Seek(min); k != nil && bytes.Compare(k, max) <= 0; k, _ = cur.Next() {
			day := tx.Bucket([]byte(sessionsBucket)).Bucket(k)
			if day == nil {
				continue
			}

			err := day.ForEach(func(_, v []byte) error {
				val := make([]byte, len(v))
				copy(val, v)
				b = append(b, val)

				return nil
			})
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	var s []session.Session

	for _, v := range b {
		sess := session.Session{}

		if err := json.Unmarshal(v, &sess); err != nil {
			c.corrupt.Add(1)

			slog.Error("excluding undecodable session record", slog.Any("error", err))

			continue
		}

		if err := sess.Validate(c.maxSession); err != nil {
			c.corrupt.Add(1)

			slog.Error(
				"excluding corrupt session record",
				slog.String("session_id", sess.ID),
				slog.String("domain", sess.Domain),
				slog.Any("error", err),
			)

			continue
		}

		// constrain to the query window
		if !startTime.IsZero() && sess.StartTime.Before(startTime) {
			continue
		}

		if sess.StartTime.After(endTime) {
			continue
		}

		if len(domains) != 0 && !slices.Contains(domains, sess.Domain) {
			continue
		}

		s = append(s, sess)
	}

	return s, nil
}

func (c *Client) Corrupt() int64 {
	return c.corrupt.Load()
}

func (c *Client) Close() error {
	return c.db.Close()
}
