package clock

import (
	"sync"
	"time"
)

// StepClock is a manually advanced clock. Tests and offline replays use it
// to drive acquisition and recording deterministically, one frame or one
// sample period at a time.
type StepClock struct {
	mu      sync.RWMutex
	current MonoTime
	steps   int
}

// NewStepClock creates a StepClock starting at start.
func NewStepClock(start MonoTime) *StepClock {
	return &StepClock{current: start}
}

// Now returns the current monotonic time.
func (c *StepClock) Now() MonoTime {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Since returns the duration elapsed since the given time.
func (c *StepClock) Since(t MonoTime) time.Duration {
	return ToDuration(c.Now() - t)
}

// Advance moves the clock forward by d. Negative durations are ignored so
// the clock stays monotonic.
func (c *StepClock) Advance(d time.Duration) {
	if d < 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current += FromDuration(d)
	c.steps++
}

// AdvanceFrames moves the clock forward by n frame periods at fps.
func (c *StepClock) AdvanceFrames(n, fps int) {
	for i := 0; i < n; i++ {
		c.Advance(FramePeriod(fps))
	}
}

// Steps returns how many times the clock has been advanced.
func (c *StepClock) Steps() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.steps
}
