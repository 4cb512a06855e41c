package util

import "time"

// Clock returns the current time. Services take one so tests can pin timestamps.
type Clock func() time.Time

// NowUTC is the default Clock.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
