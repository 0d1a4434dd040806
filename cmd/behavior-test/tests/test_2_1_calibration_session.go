package tests

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/BYTE-6D65/blinkbreak/cmd/behavior-test/framework"
	"github.com/BYTE-6D65/blinkbreak/pkg/engine"
	"github.com/BYTE-6D65/blinkbreak/pkg/event"
	"github.com/BYTE-6D65/blinkbreak/pkg/testdata"
)

// Test21CalibrationSession runs a short cued session on the SSVEP scenario
// and writes its files.
//
// Test: 2.1 - Calibration Session Logs Every Trial
// Category: SSVEP Calibration
//
// Pass Criteria:
//   - The session ends on its own
//   - One started and one completed event per trial, then one summary
//   - Observations are published and reach the plot files
//   - The flicker report is written
type Test21CalibrationSession struct {
	*framework.BaseTestCase

	dir      string
	trials   int
	frames   int
	flashing int
	flushes  int
}

// NewTest21CalibrationSession creates a new test instance.
func NewTest21CalibrationSession() framework.TestCase {
	return &Test21CalibrationSession{
		BaseTestCase: framework.NewBaseTestCase(),
		trials:       3,
	}
}

func (t *Test21CalibrationSession) Name() string {
	return "2.1: Calibration Session Logs Every Trial"
}

func (t *Test21CalibrationSession) Category() string {
	return "SSVEP Calibration"
}

func (t *Test21CalibrationSession) Description() string {
	return "Verify a cued flicker session runs every trial, classifies flushes and writes its report"
}

func (t *Test21CalibrationSession) Setup(ctx context.Context) error {
	cfg := engine.DefaultConfig()
	cfg.Trial.Trials = t.trials
	cfg.Trial.Countdown = 100 * time.Millisecond
	cfg.Trial.Stimulus = 500 * time.Millisecond

	gen, err := testdata.ScenarioConfig(testdata.ScenarioSSVEP, cfg.SampleRate)
	if err != nil {
		return err
	}
	if err := t.SetupPipeline(ctx, cfg, engine.CalibrationMode, gen); err != nil {
		return err
	}

	if t.dir, err = os.MkdirTemp("", "blinkbreak-behavior-*"); err != nil {
		return err
	}
	return t.AttachSession(t.dir)
}

func (t *Test21CalibrationSession) Run(ctx context.Context) error {
	t.Step(10000, func(res engine.FrameResult) {
		t.frames++
		if res.Draw.Flashing {
			t.flashing++
		}
		t.flushes += len(res.Flushes)
	})
	if !t.Pipeline().Done() {
		return fmt.Errorf("session still running after %d frames", t.frames)
	}
	return ctx.Err()
}

func (t *Test21CalibrationSession) Teardown() error {
	err := t.TeardownPipeline()
	if t.dir != "" {
		os.RemoveAll(t.dir)
	}
	return err
}

func (t *Test21CalibrationSession) Validate() *framework.TestResult {
	result := t.Result()
	result.TestName = t.Name()
	result.Category = t.Category()

	events := t.EventCounts()
	framework.AssertCountEquals(t.BaseTestCase, "Trials started", t.trials, events[event.TypeTrialStarted])
	framework.AssertCountEquals(t.BaseTestCase, "Trials completed", t.trials, events[event.TypeTrialCompleted])
	framework.AssertCountEquals(t.BaseTestCase, "Session summary", 1, events[event.TypeSessionSummary])
	framework.AssertCountGreaterThan(t.BaseTestCase, "Flushes classified", 0, t.flushes)
	framework.AssertCountEquals(t.BaseTestCase, "Every flush published", t.flushes, events[event.TypeObservation])
	framework.AssertCountGreaterThan(t.BaseTestCase, "Stimulus flashed", 0, t.flashing)

	summary := t.Pipeline().Trials().Summary()
	framework.AssertCountEquals(t.BaseTestCase, "Trials summarised", t.trials, len(summary.Trials))
	for _, r := range summary.Trials {
		if r.Total == 0 {
			continue
		}
		framework.AssertNear(t.BaseTestCase, fmt.Sprintf("Trial %d shares add up", r.Trial),
			100, r.Correct+r.Incorrect+r.Indeterminate, 0.01)
	}

	for _, sink := range t.Session().Sinks() {
		plot, _ := sink.Paths()
		framework.AssertFileNotEmpty(t.BaseTestCase, "Plot written for "+sink.Key().String(), plot)
	}
	framework.AssertFileNotEmpty(t.BaseTestCase, "Report written", t.Session().ReportPath())

	t.Metric("frames", t.frames)
	t.Metric("flushes", t.flushes)
	t.Metric("correct_pct", summary.Correct)

	result.Finish()
	return result
}
