package engine

import (
	"fmt"
	"io"
	"runtime/pprof"
	"sync"
	"time"
)

// RecordedFrame is one FrameResult with the wall time it was stepped at.
type RecordedFrame struct {
	At     time.Time
	Result FrameResult
}

// FrameRecorder keeps the last N frame results in a ring buffer so a crash
// or a bad session can be inspected after the fact.
type FrameRecorder struct {
	frames []RecordedFrame
	index  int
	count  int
	mu     sync.Mutex
}

// NewFrameRecorder creates a recorder holding size frames.
func NewFrameRecorder(size int) *FrameRecorder {
	if size <= 0 {
		size = 300
	}

	return &FrameRecorder{frames: make([]RecordedFrame, size)}
}

// Record stores res, overwriting the oldest frame once the ring is full.
func (r *FrameRecorder) Record(res FrameResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frames[r.index] = RecordedFrame{At: time.Now(), Result: res}
	r.index = (r.index + 1) % len(r.frames)
	if r.count < len(r.frames) {
		r.count++
	}
}

// Len returns the number of frames held.
func (r *FrameRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Snapshot returns the held frames, oldest first.
func (r *FrameRecorder) Snapshot() []RecordedFrame {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RecordedFrame, 0, r.count)
	start := (r.index - r.count + len(r.frames)) % len(r.frames)
	for i := 0; i < r.count; i++ {
		out = append(out, r.frames[(start+i)%len(r.frames)])
	}
	return out
}

// Dump writes the held frames in chronological order followed by a
// goroutine profile.
func (r *FrameRecorder) Dump(w io.Writer) error {
	frames := r.Snapshot()

	fmt.Fprintf(w, "=== Frame Recorder Dump ===\n")
	fmt.Fprintf(w, "Generated: %s\n\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(w, "Last %d frames:\n\n", len(frames))

	for _, f := range frames {
		res := f.Result
		fmt.Fprintf(w, "[%d] %s sensor=%s control=%s gauge=%d%%",
			res.Frame, f.At.Format("15:04:05.000"), res.Sensor, res.Control, res.Gauge)
		if res.Skipped {
			fmt.Fprintf(w, " skipped")
		}
		if res.Trial.Trials > 0 {
			fmt.Fprintf(w, " trial=%d/%d %s side=%s",
				res.Trial.Trial, res.Trial.Trials, res.Trial.State, res.Trial.Side)
		}
		for _, c := range res.Flushes {
			fmt.Fprintf(w, " %s:%s", c.Route.Side, c.Verdict)
		}
		fmt.Fprintln(w)
	}

	if len(frames) == 0 {
		fmt.Fprintf(w, "(No frames recorded yet)\n")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "=== Goroutine Profile ===\n")
	if goroutine := pprof.Lookup("goroutine"); goroutine != nil {
		if err := goroutine.WriteTo(w, 2); err != nil {
			return fmt.Errorf("goroutine profile: %w", err)
		}
	} else {
		fmt.Fprintf(w, "Goroutine profile not available\n")
	}

	return nil
}
