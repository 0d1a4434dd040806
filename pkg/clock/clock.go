package clock

import "time"

// MonoTime represents a monotonic timestamp in nanoseconds since an arbitrary epoch.
type MonoTime int64

// Clock provides monotonic time for acquisition and the frame loop.
// Trial and stimulus timing is frame-counted; Clock is only used where
// wall-clock pacing matters (sample generation, rate estimation, recording).
type Clock interface {
	// Now returns the current monotonic time
	Now() MonoTime

	// Since returns the duration elapsed since the given monotonic time
	Since(t MonoTime) time.Duration
}

// ToDuration converts a MonoTime (nanoseconds) to a time.Duration.
func ToDuration(ns MonoTime) time.Duration {
	return time.Duration(ns)
}

// FromDuration converts a time.Duration to MonoTime (nanoseconds).
func FromDuration(d time.Duration) MonoTime {
	return MonoTime(d.Nanoseconds())
}

// Seconds returns m as floating point seconds.
func (m MonoTime) Seconds() float64 {
	return float64(m) / float64(time.Second)
}

// FramePeriod returns the duration of one render frame at fps.
// Non-positive fps yields zero.
func FramePeriod(fps int) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Second / time.Duration(fps)
}

// SamplesDue returns how many samples a source running at rate Hz should
// have produced after elapsed time.
func SamplesDue(rate int, elapsed time.Duration) int64 {
	if rate <= 0 || elapsed <= 0 {
		return 0
	}
	return int64(elapsed) * int64(rate) / int64(time.Second)
}

// SystemClock uses the system's monotonic clock.
type SystemClock struct {
	epoch time.Time
}

// NewSystemClock creates a new SystemClock anchored at the current time.
func NewSystemClock() *SystemClock {
	return &SystemClock{
		epoch: time.Now(),
	}
}

// Now returns the current monotonic time in nanoseconds since epoch.
func (s *SystemClock) Now() MonoTime {
	return FromDuration(time.Since(s.epoch))
}

// Since returns the duration elapsed since the given monotonic time.
func (s *SystemClock) Since(t MonoTime) time.Duration {
	return ToDuration(s.Now() - t)
}
