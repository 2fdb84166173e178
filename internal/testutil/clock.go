// Package testutil provides deterministic collaborators for tests and the
// scenario harness.
package testutil

import (
	"sync"
	"time"
)

// StepClock is a controllable clock.Clock.
//
// Now returns the current instant and then advances it by the configured
// step, so consecutive timestamps are distinct yet reproducible. A zero step
// freezes time.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewStepClock creates a clock starting at start that advances by step after
// every Now call.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{now: start.UTC(), step: step}
}

// NewFrozenClock creates a clock that always returns at.
func NewFrozenClock(at time.Time) *StepClock {
	return NewStepClock(at, 0)
}

// Now returns the current instant, then advances by the step.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

// Set moves the clock to t.
func (c *StepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

// Advance moves the clock forward by d.
func (c *StepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Peek returns the current instant without advancing.
func (c *StepClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
