package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	bolt "go.etcd.io/bbolt"

	"github.com/trackerhq/sitewatch/internal/session"
	"github.com/trackerhq/sitewatch/internal/timeutil"
)

const (
	testMaxSession = 4 * time.Hour
	testMaxDelta   = 9 * time.Second
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "sitewatch.db")

	c, err := NewClient(dbPath, testMaxSession, testMaxDelta)
	if err != nil {
		t.Fatalf("opening the test database failed: %v", err)
	}

	t.Cleanup(func() {
		_ = c.Close()
	})

	return c
}

// getOne fetches a single stored record by id, bypassing validation.
func getOne(t *testing.T, c *Client, id string, startTime time.Time) *session.Session {
	t.Helper()

	var sess *session.Session

	err := c.mutate(id, startTime, func(s *session.Session) error {
		clone := *s
		sess = &clone

		return nil
	})
	if err != nil {
		t.Fatalf("reading session %s failed: %v", id, err)
	}

	return sess
}

func TestNewClientRefusesLockedDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sitewatch.db")

	first, err := NewClient(dbPath, testMaxSession, testMaxDelta)
	if err != nil {
		t.Fatal(err)
	}

	defer first.Close()

	_, err = NewClient(dbPath, testMaxSession, testMaxDelta)
	if !errors.Is(err, errWatchRunning) {
		t.Fatalf("expected the second open to report a running instance, got %v", err)
	}
}

func TestCreateSession(t *testing.T) {
	c := newTestClient(t)

	start := time.Date(2026, time.August, 10, 9, 0, 0, 0, time.UTC)

	sess, err := c.CreateSession("youtube.com", start)
	if err != nil {
		t.Fatalf("creating a session failed: %v", err)
	}

	if sess.ID == "" {
		t.Fatal("expected the created session to have an id")
	}

	got := getOne(t, c, sess.ID, start)

	if got.Domain != "youtube.com" {
		t.Fatalf("expected domain youtube.com, got %s", got.Domain)
	}

	if got.Status != session.StatusActive {
		t.Fatalf("expected an active session, got %s", got.Status)
	}

	if got.Duration != 0 || got.Visits != 1 {
		t.Fatalf(
			"expected a fresh record, got duration %d and %d visits",
			got.Duration,
			got.Visits,
		)
	}

	_, err = c.CreateSession("", start)
	if err == nil {
		t.Fatal("expected an error when creating a session for an empty domain")
	}
}

func TestCreateSessionAlwaysFresh(t *testing.T) {
	c := newTestClient(t)

	start := time.Date(2026, time.August, 10, 9, 0, 0, 0, time.UTC)

	a, err := c.CreateSession("github.com", start)
	if err != nil {
		t.Fatal(err)
	}

	b, err := c.CreateSession("github.com", start.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}

	if a.ID == b.ID {
		t.Fatal("expected each created session to get its own record")
	}
}

func TestIncrementDuration(t *testing.T) {
	start := time.Date(2026, time.August, 10, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		deltas []time.Duration
		want   int64
	}{
		{
			name:   "single increment",
			deltas: []time.Duration{3 * time.Second},
			want:   3,
		},
		{
			name: "increments accumulate",
			deltas: []time.Duration{
				3 * time.Second,
				3 * time.Second,
				3 * time.Second,
			},
			want: 9,
		},
		{
			name:   "negative delta is dropped",
			deltas: []time.Duration{5 * time.Second, -3 * time.Second},
			want:   5,
		},
		{
			name:   "zero delta is a no-op",
			deltas: []time.Duration{0},
			want:   0,
		},
		{
			name:   "implausible delta is clamped to the ceiling",
			deltas: []time.Duration{50000 * time.Second},
			want:   int64(testMaxDelta.Seconds()),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t)

			sess, err := c.CreateSession("youtube.com", start)
			if err != nil {
				t.Fatal(err)
			}

			for _, delta := range tc.deltas {
				err = c.IncrementDuration(sess.ID, start, delta)
				if err != nil {
					t.Fatalf("incrementing duration failed: %v", err)
				}
			}

			got := getOne(t, c, sess.ID, start)

			if got.Duration != tc.want {
				t.Fatalf("expected duration %d, got %d", tc.want, got.Duration)
			}
		})
	}
}

func TestIncrementDurationIsAdditive(t *testing.T) {
	c := newTestClient(t)

	start := time.Date(2026, time.August, 10, 9, 0, 0, 0, time.UTC)

	sess, err := c.CreateSession("news.ycombinator.com", start)
	if err != nil {
		t.Fatal(err)
	}

	var prev int64

	// the stored duration must never move backwards, whatever the
	// increment sequence
	for _, delta := range []time.Duration{
		2 * time.Second,
		time.Second,
		-10 * time.Second,
		4 * time.Second,
	} {
		if err = c.IncrementDuration(sess.ID, start, delta); err != nil {
			t.Fatal(err)
		}

		got := getOne(t, c, sess.ID, start).Duration

		if got < prev {
			t.Fatalf("duration went backwards: %d -> %d", prev, got)
		}

		prev = got
	}

	if prev != 7 {
		t.Fatalf("expected final duration 7, got %d", prev)
	}
}

func TestIncrementDurationMissingSession(t *testing.T) {
	c := newTestClient(t)

	start := time.Date(2026, time.August, 10, 9, 0, 0, 0, time.UTC)

	err := c.IncrementDuration("nonexistent", start, 3*time.Second)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestIncrementDurationCompletedSession(t *testing.T) {
	c := newTestClient(t)

	start := time.Date(2026, time.August, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Second)

	sess, err := c.CreateSession("youtube.com", start)
	if err != nil {
		t.Fatal(err)
	}

	if err = c.IncrementDuration(sess.ID, start, 5*time.Second); err != nil {
		t.Fatal(err)
	}

	if err = c.FinalizeSession(sess.ID, start, end); err != nil {
		t.Fatal(err)
	}

	if err = c.IncrementDuration(sess.ID, start, 5*time.Second); err != nil {
		t.Fatal(err)
	}

	got := getOne(t, c, sess.ID, start)

	if got.Duration != 5 {
		t.Fatalf(
			"expected a completed session to keep its duration, got %d",
			got.Duration,
		)
	}
}

func TestFinalizeSessionIdempotent(t *testing.T) {
	c := newTestClient(t)

	start := time.Date(2026, time.August, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(9 * time.Second)

	sess, err := c.CreateSession("youtube.com", start)
	if err != nil {
		t.Fatal(err)
	}

	if err = c.IncrementDuration(sess.ID, start, 9*time.Second); err != nil {
		t.Fatal(err)
	}

	if err = c.FinalizeSession(sess.ID, start, end); err != nil {
		t.Fatal(err)
	}

	first := getOne(t, c, sess.ID, start)

	// a retried finalize must leave the record untouched
	if err = c.FinalizeSession(sess.ID, start, end.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	second := getOne(t, c, sess.ID, start)

	if diff := cmp.Diff(first, second, cmpopts.EquateApproxTime(0)); diff != "" {
		t.Fatalf("finalize was not idempotent (-first +second):\n%s", diff)
	}

	if second.Status != session.StatusCompleted {
		t.Fatalf("expected a completed session, got %s", second.Status)
	}

	if !second.EndTime.Equal(end) {
		t.Fatalf("expected end time %s, got %s", end, second.EndTime)
	}
}

func TestFinalizeSessionRefusesInvertedRange(t *testing.T) {
	c := newTestClient(t)

	start := time.Date(2026, time.August, 10, 9, 0, 0, 0, time.UTC)

	sess, err := c.CreateSession("youtube.com", start)
	if err != nil {
		t.Fatal(err)
	}

	err = c.FinalizeSession(sess.ID, start, start.Add(-time.Hour))
	if err == nil {
		t.Fatal("expected an error finalizing with an end before the start")
	}

	got := getOne(t, c, sess.ID, start)

	if got.Status != session.StatusActive {
		t.Fatalf("expected the session to stay active, got %s", got.Status)
	}
}

func TestSuspendAndResume(t *testing.T) {
	c := newTestClient(t)

	start := time.Date(2026, time.August, 10, 9, 0, 0, 0, time.UTC)

	sess, err := c.CreateSession("youtube.com", start)
	if err != nil {
		t.Fatal(err)
	}

	if err = c.SuspendSession(sess.ID, start, start.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	if got := getOne(t, c, sess.ID, start); got.Status != session.StatusSuspended {
		t.Fatalf("expected a suspended session, got %s", got.Status)
	}

	if err = c.ResumeSession(sess.ID, start, start.Add(2*time.Minute)); err != nil {
		t.Fatal(err)
	}

	if got := getOne(t, c, sess.ID, start); got.Status != session.StatusActive {
		t.Fatalf("expected an active session, got %s", got.Status)
	}
}

func TestReopenSession(t *testing.T) {
	c := newTestClient(t)

	start := time.Date(2026, time.August, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Second)

	sess, err := c.CreateSession("youtube.com", start)
	if err != nil {
		t.Fatal(err)
	}

	if err = c.FinalizeSession(sess.ID, start, end); err != nil {
		t.Fatal(err)
	}

	if err = c.ReopenSession(sess.ID, start, end.Add(5*time.Second)); err != nil {
		t.Fatal(err)
	}

	got := getOne(t, c, sess.ID, start)

	if got.Status != session.StatusActive {
		t.Fatalf("expected a reopened session to be active, got %s", got.Status)
	}

	if !got.EndTime.IsZero() {
		t.Fatalf("expected a reopened session to have no end time, got %s", got.EndTime)
	}

	if got.Visits != 2 {
		t.Fatalf("expected the revisit to be counted, got %d visits", got.Visits)
	}
}

func TestGetSessions(t *testing.T) {
	c := newTestClient(t)

	day1 := time.Date(2026, time.August, 10, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, time.August, 11, 14, 0, 0, 0, time.UTC)
	day3 := time.Date(2026, time.August, 12, 20, 0, 0, 0, time.UTC)

	seed := []struct {
		domain string
		start  time.Time
	}{
		{"youtube.com", day1},
		{"github.com", day1.Add(time.Hour)},
		{"youtube.com", day2},
		{"reddit.com", day3},
	}

	for _, s := range seed {
		sess, err := c.CreateSession(s.domain, s.start)
		if err != nil {
			t.Fatal(err)
		}

		err = c.FinalizeSession(sess.ID, s.start, s.start.Add(time.Minute))
		if err != nil {
			t.Fatal(err)
		}
	}

	cases := []struct {
		name    string
		start   time.Time
		end     time.Time
		domains []string
		want    int
	}{
		{
			name:  "full range",
			start: day1,
			end:   day3.Add(time.Hour),
			want:  4,
		},
		{
			name:  "single day",
			start: timeutil.RoundToStart(day2),
			end:   timeutil.RoundToEnd(day2),
			want:  1,
		},
		{
			name:  "window excludes earlier sessions on the same day",
			start: day1.Add(30 * time.Minute),
			end:   day1.Add(2 * time.Hour),
			want:  1,
		},
		{
			name:    "domain filter",
			start:   day1,
			end:     day3.Add(time.Hour),
			domains: []string{"youtube.com"},
			want:    2,
		},
		{
			name:  "empty range",
			start: day3.AddDate(0, 0, 5),
			end:   day3.AddDate(0, 0, 6),
			want:  0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.GetSessions(tc.start, tc.end, tc.domains)
			if err != nil {
				t.Fatalf("fetching sessions failed: %v", err)
			}

			if len(got) != tc.want {
				t.Fatalf("expected %d sessions, got %d", tc.want, len(got))
			}
		})
	}
}

// plant writes a raw value straight into a day bucket, simulating a
// record corrupted outside the store's own write path.
func plant(t *testing.T, c *Client, at time.Time, id string, value []byte) {
	t.Helper()

	err := c.db.Update(func(tx *bolt.Tx) error {
		day, err := tx.Bucket([]byte(sessionsBucket)).
			CreateBucketIfNotExists(timeutil.DayKey(at))
		if err != nil {
			return err
		}

		return day.Put([]byte(id), value)
	})
	if err != nil {
		t.Fatalf("planting record failed: %v", err)
	}
}

func TestGetSessionsExcludesCorruptRecords(t *testing.T) {
	c := newTestClient(t)

	start := time.Date(2026, time.August, 10, 9, 0, 0, 0, time.UTC)
	end := timeutil.RoundToEnd(start)

	sess, err := c.CreateSession("youtube.com", start)
	if err != nil {
		t.Fatal(err)
	}

	if err = c.IncrementDuration(sess.ID, start, 5*time.Second); err != nil {
		t.Fatal(err)
	}

	plant(t, c, start, "garbage", []byte("{not json"))

	plant(t, c, start, "negative",
		[]byte(`{"id":"negative","domain":"reddit.com",`+
			`"start_time":"2026-08-10T09:00:00Z","duration":-42,`+
			`"status":"active","visits":1}`))

	got, err := c.GetSessions(timeutil.RoundToStart(start), end, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 {
		t.Fatalf("expected only the valid session, got %d records", len(got))
	}

	if got[0].ID != sess.ID {
		t.Fatalf("expected session %s, got %s", sess.ID, got[0].ID)
	}

	if c.Corrupt() != 2 {
		t.Fatalf("expected 2 corrupt records to be counted, got %d", c.Corrupt())
	}
}

func TestGetSessionsDayKeysIgnoreTimezone(t *testing.T) {
	c := newTestClient(t)

	// 23:30 in UTC+10 is 13:30 UTC the same day; the record must land in
	// (and be found via) the UTC day bucket
	loc := time.FixedZone("UTC+10", 10*60*60)
	start := time.Date(2026, time.August, 10, 23, 30, 0, 0, loc)

	sess, err := c.CreateSession("youtube.com", start)
	if err != nil {
		t.Fatal(err)
	}

	utcDay := time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC)

	got, err := c.GetSessions(utcDay, timeutil.RoundToEnd(utcDay), nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 || got[0].ID != sess.ID {
		t.Fatalf("expected to find the session via its UTC day, got %d records", len(got))
	}
}
