package timeutil

import (
	"testing"
	"time"
)

func TestDayKey(t *testing.T) {
	cases := []struct {
		name string
		in   time.Time
		want string
	}{
		{
			name: "utc time",
			in:   time.Date(2026, time.August, 10, 9, 30, 0, 0, time.UTC),
			want: "20260810",
		},
		{
			name: "positive offset rolls back to previous utc day",
			in: time.Date(
				2026, time.August, 10, 1, 0, 0, 0,
				time.FixedZone("UTC+10", 10*60*60),
			),
			want: "20260809",
		},
		{
			name: "negative offset rolls forward to next utc day",
			in: time.Date(
				2026, time.August, 10, 22, 0, 0, 0,
				time.FixedZone("UTC-5", -5*60*60),
			),
			want: "20260811",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := string(DayKey(tc.in))

			if got != tc.want {
				t.Fatalf("expected day key %s, got %s", tc.want, got)
			}
		})
	}
}

func TestRoundToStartAndEnd(t *testing.T) {
	in := time.Date(2026, time.August, 10, 18, 45, 12, 0, time.UTC)

	start := RoundToStart(in)
	if start.Hour() != 0 || start.Minute() != 0 || start.Second() != 0 {
		t.Fatalf("expected the start of the day, got %s", start)
	}

	end := RoundToEnd(in)
	if end.Hour() != 23 || end.Minute() != 59 || end.Second() != 59 {
		t.Fatalf("expected the end of the day, got %s", end)
	}
}
