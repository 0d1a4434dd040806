package clock

import (
	"testing"
	"time"
)

func TestMonoTime_Conversions(t *testing.T) {
	d := 100 * time.Millisecond
	mono := FromDuration(d)
	back := ToDuration(mono)

	if back != d {
		t.Errorf("Round-trip conversion failed: %v -> %v -> %v", d, mono, back)
	}

	if got := FromDuration(1500 * time.Millisecond).Seconds(); got != 1.5 {
		t.Errorf("Expected 1.5s, got %v", got)
	}
}

func TestFramePeriod(t *testing.T) {
	if got := FramePeriod(60); got != time.Second/60 {
		t.Errorf("Expected %v, got %v", time.Second/60, got)
	}
	if got := FramePeriod(0); got != 0 {
		t.Errorf("Expected 0 for fps=0, got %v", got)
	}
}

func TestSamplesDue(t *testing.T) {
	tests := []struct {
		rate    int
		elapsed time.Duration
		want    int64
	}{
		{250, time.Second, 250},
		{250, 100 * time.Millisecond, 25},
		{250, time.Second / 60, 4},
		{250, 0, 0},
		{0, time.Second, 0},
	}

	for _, tt := range tests {
		if got := SamplesDue(tt.rate, tt.elapsed); got != tt.want {
			t.Errorf("SamplesDue(%d, %v) = %d, want %d", tt.rate, tt.elapsed, got, tt.want)
		}
	}
}

func TestSystemClock_Since(t *testing.T) {
	clk := NewSystemClock()

	start := clk.Now()
	time.Sleep(20 * time.Millisecond)
	elapsed := clk.Since(start)

	if elapsed < 20*time.Millisecond {
		t.Errorf("Expected at least 20ms, got %v", elapsed)
	}
}

func TestStepClock_Advance(t *testing.T) {
	clk := NewStepClock(0)

	clk.Advance(10 * time.Millisecond)
	clk.Advance(-5 * time.Millisecond)

	if clk.Now() != FromDuration(10*time.Millisecond) {
		t.Errorf("Expected 10ms, got %v", ToDuration(clk.Now()))
	}
	if clk.Steps() != 1 {
		t.Errorf("Expected 1 step, got %d", clk.Steps())
	}

	clk.AdvanceFrames(60, 60)
	if got := clk.Since(0); got < time.Second {
		t.Errorf("Expected at least 1s after 60 frames, got %v", got)
	}
}
