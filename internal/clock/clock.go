// Package clock holds the injectable collaborators that make scheduling
// deterministic under test: wall time, identifier generation, and the
// monotonic sequence used to order bus messages.
package clock

import "time"

// Clock supplies the current time. Every timestamp the core produces
// (event CreatedAt/UpdatedAt, bus message Timestamp, GeneratedAt) comes
// from a Clock.
type Clock interface {
	Now() time.Time
}

// System is the production Clock. Times are returned in UTC.
type System struct{}

// Now returns time.Now in UTC.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Func adapts a plain function to the Clock interface.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time {
	return f()
}
