package tests

import (
	"context"
	"fmt"
	"time"

	"github.com/BYTE-6D65/blinkbreak/cmd/behavior-test/framework"
	"github.com/BYTE-6D65/blinkbreak/pkg/engine"
	"github.com/BYTE-6D65/blinkbreak/pkg/event"
	"github.com/BYTE-6D65/blinkbreak/pkg/stimulus"
	"github.com/BYTE-6D65/blinkbreak/pkg/testdata"
)

// Test22NoFlickerBaseline runs a bilateral session with the stimulus off.
//
// Test: 2.2 - No-Flicker Baseline
// Category: SSVEP Calibration
//
// Pass Criteria:
//   - No frame flashes, and shown patches stay on the background color
//   - Both sides still flush and are classified
type Test22NoFlickerBaseline struct {
	*framework.BaseTestCase

	frames   int
	flashing int
	pulses   int
	sides    map[stimulus.Side]int
}

// NewTest22NoFlickerBaseline creates a new test instance.
func NewTest22NoFlickerBaseline() framework.TestCase {
	return &Test22NoFlickerBaseline{
		BaseTestCase: framework.NewBaseTestCase(),
		sides:        make(map[stimulus.Side]int),
	}
}

func (t *Test22NoFlickerBaseline) Name() string {
	return "2.2: No-Flicker Baseline"
}

func (t *Test22NoFlickerBaseline) Category() string {
	return "SSVEP Calibration"
}

func (t *Test22NoFlickerBaseline) Description() string {
	return "Verify a no-flicker session keeps every patch dark while both reducers keep flushing"
}

func (t *Test22NoFlickerBaseline) Setup(ctx context.Context) error {
	cfg := engine.DefaultConfig()
	cfg.Stimulus.Layout = "bilateral"
	cfg.Stimulus.Condition = "no_flicker"
	cfg.Trial.Trials = 2
	cfg.Trial.Countdown = 100 * time.Millisecond
	cfg.Trial.Stimulus = time.Second

	gen, err := testdata.ScenarioConfig(testdata.ScenarioBaseline, cfg.SampleRate)
	if err != nil {
		return err
	}
	return t.SetupPipeline(ctx, cfg, engine.CalibrationMode, gen)
}

func (t *Test22NoFlickerBaseline) Run(ctx context.Context) error {
	t.Step(10000, func(res engine.FrameResult) {
		t.frames++
		if res.Draw.Flashing {
			t.flashing++
		}
		for _, side := range []stimulus.Side{stimulus.Left, stimulus.Right} {
			if res.Draw.Color(side) == stimulus.Pulse {
				t.pulses++
			}
		}
		for _, f := range res.Flushes {
			t.sides[f.Route.Side]++
		}
	})
	if !t.Pipeline().Done() {
		return fmt.Errorf("session still running after %d frames", t.frames)
	}
	return ctx.Err()
}

func (t *Test22NoFlickerBaseline) Teardown() error {
	return t.TeardownPipeline()
}

func (t *Test22NoFlickerBaseline) Validate() *framework.TestResult {
	result := t.Result()
	result.TestName = t.Name()
	result.Category = t.Category()

	framework.AssertCountEquals(t.BaseTestCase, "No flashing frames", 0, t.flashing)
	framework.AssertCountEquals(t.BaseTestCase, "No pulse colors", 0, t.pulses)
	framework.AssertCountGreaterThan(t.BaseTestCase, "Left side flushed", 0, t.sides[stimulus.Left])
	framework.AssertCountGreaterThan(t.BaseTestCase, "Right side flushed", 0, t.sides[stimulus.Right])

	events := t.EventCounts()
	framework.AssertCountEquals(t.BaseTestCase, "Observations published",
		t.sides[stimulus.Left]+t.sides[stimulus.Right], events[event.TypeObservation])

	t.Metric("frames", t.frames)
	t.Metric("left_flushes", t.sides[stimulus.Left])
	t.Metric("right_flushes", t.sides[stimulus.Right])

	result.Finish()
	return result
}
