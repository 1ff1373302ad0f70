package tracker

import "time"

// Clock abstracts wall-clock reads so that tests can control time and
// the persistence loop can measure elapsed time instead of counting
// ticks.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
