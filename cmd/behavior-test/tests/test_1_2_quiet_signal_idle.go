package tests

import (
	"context"

	"github.com/BYTE-6D65/blinkbreak/cmd/behavior-test/framework"
	"github.com/BYTE-6D65/blinkbreak/pkg/blink"
	"github.com/BYTE-6D65/blinkbreak/pkg/engine"
	"github.com/BYTE-6D65/blinkbreak/pkg/event"
	"github.com/BYTE-6D65/blinkbreak/pkg/testdata"
)

// Test12QuietSignalIdle runs five seconds of play on a blink-free signal.
//
// Test: 1.2 - Quiet Signal Stays Idle
// Category: Blink Control
//
// Pass Criteria:
//   - No control events
//   - Frames are skipped only until the first window fills
//   - INSUFFICIENT_WINDOW is reported once for that run of skips
type Test12QuietSignalIdle struct {
	*framework.BaseTestCase

	frames      int
	skipped     int
	lastSkipped int64
	controls    int
}

// NewTest12QuietSignalIdle creates a new test instance.
func NewTest12QuietSignalIdle() framework.TestCase {
	return &Test12QuietSignalIdle{
		BaseTestCase: framework.NewBaseTestCase(),
	}
}

func (t *Test12QuietSignalIdle) Name() string {
	return "1.2: Quiet Signal Stays Idle"
}

func (t *Test12QuietSignalIdle) Category() string {
	return "Blink Control"
}

func (t *Test12QuietSignalIdle) Description() string {
	return "Verify a blink-free recording never moves the paddle and skips only the warm-up frames"
}

func (t *Test12QuietSignalIdle) Setup(ctx context.Context) error {
	gen, err := testdata.ScenarioConfig(testdata.ScenarioBaseline, 250)
	if err != nil {
		return err
	}
	return t.SetupPipeline(ctx, engine.DefaultConfig(), engine.PlayMode, gen)
}

func (t *Test12QuietSignalIdle) Run(ctx context.Context) error {
	t.Step(300, func(res engine.FrameResult) {
		t.frames++
		if res.Skipped {
			t.skipped++
			t.lastSkipped = res.Frame
		}
		if res.Control != blink.None {
			t.controls++
		}
	})
	return ctx.Err()
}

func (t *Test12QuietSignalIdle) Teardown() error {
	return t.TeardownPipeline()
}

func (t *Test12QuietSignalIdle) Validate() *framework.TestResult {
	result := t.Result()
	result.TestName = t.Name()
	result.Category = t.Category()

	// 100 samples at 250 Hz take 24 or 25 frames at 60 fps.
	framework.AssertCountEquals(t.BaseTestCase, "Frames run", 300, t.frames)
	framework.AssertCountEquals(t.BaseTestCase, "No control events", 0, t.controls)
	framework.AssertCountInRange(t.BaseTestCase, "Warm-up skips", 23, 25, t.skipped)
	framework.AssertCountEquals(t.BaseTestCase, "Skips are contiguous", t.skipped, int(t.lastSkipped))
	framework.AssertErrorReported(t.BaseTestCase, "Starvation reported once", event.CodeInsufficientWindow, 1, 1)

	events := t.EventCounts()
	framework.AssertCountEquals(t.BaseTestCase, "No control events published",
		0, events[event.TypeControlLeft]+events[event.TypeControlRight])

	t.Metric("skipped_frames", t.skipped)

	result.Finish()
	return result
}
