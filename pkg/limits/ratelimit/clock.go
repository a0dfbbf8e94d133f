package ratelimit

import "time"

// Clock supplies the current time.
//
// Buckets measure elapsed time with Time.Sub, which uses the monotonic
// reading when both values carry one. Window counters use the wall clock
// (UnixNano) so that window boundaries line up across instances.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock is the default Clock backed by time.Now.
var SystemClock Clock = ClockFunc(time.Now)
