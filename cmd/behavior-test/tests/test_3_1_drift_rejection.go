package tests

import (
	"context"

	"github.com/BYTE-6D65/blinkbreak/cmd/behavior-test/framework"
	"github.com/BYTE-6D65/blinkbreak/pkg/blink"
	"github.com/BYTE-6D65/blinkbreak/pkg/engine"
	"github.com/BYTE-6D65/blinkbreak/pkg/game"
	"github.com/BYTE-6D65/blinkbreak/pkg/paddle"
	"github.com/BYTE-6D65/blinkbreak/pkg/testdata"
)

// Test31DriftRejection feeds a steeply falling baseline with the paddle
// armed. Undetrended, the last fifth of each window sits well below the
// window mean and would read as a blink.
//
// Test: 3.1 - Electrode Drift Is Not A Blink
// Category: Drift Correction
//
// Pass Criteria:
//   - No control events while drift is the only signal
//   - A blink on top of the drift is still detected
type Test31DriftRejection struct {
	*framework.BaseTestCase

	driftControls int
	blinkControls int
}

// NewTest31DriftRejection creates a new test instance.
func NewTest31DriftRejection() framework.TestCase {
	return &Test31DriftRejection{
		BaseTestCase: framework.NewBaseTestCase(),
	}
}

func (t *Test31DriftRejection) Name() string {
	return "3.1: Electrode Drift Is Not A Blink"
}

func (t *Test31DriftRejection) Category() string {
	return "Drift Correction"
}

func (t *Test31DriftRejection) Description() string {
	return "Verify linear electrode drift is removed before blink detection"
}

func (t *Test31DriftRejection) Setup(ctx context.Context) error {
	gen := testdata.DefaultConfig(250)
	gen.Drift = -0.002
	return t.SetupPipeline(ctx, engine.DefaultConfig(), engine.PlayMode, gen)
}

func (t *Test31DriftRejection) arm() {
	g := t.Pipeline().Game()
	g.SetBall(game.Ball{Pos: paddle.Vec{X: 400, Y: 200}, Vel: paddle.Vec{X: 0, Y: 4}})
	g.Paddle().OnBounce(paddle.Vec{X: 50, Y: 200}, paddle.Vec{X: 0, Y: 4})
}

func (t *Test31DriftRejection) Run(ctx context.Context) error {
	t.Step(30, nil)

	t.arm()
	t.Step(60, func(res engine.FrameResult) {
		if res.Control != blink.None {
			t.driftControls++
		}
	})

	t.arm()
	t.Source().Blink()
	t.Step(40, func(res engine.FrameResult) {
		if res.Control != blink.None {
			t.blinkControls++
		}
	})
	return ctx.Err()
}

func (t *Test31DriftRejection) Teardown() error {
	return t.TeardownPipeline()
}

func (t *Test31DriftRejection) Validate() *framework.TestResult {
	result := t.Result()
	result.TestName = t.Name()
	result.Category = t.Category()

	framework.AssertCountEquals(t.BaseTestCase, "Drift alone is ignored", 0, t.driftControls)
	framework.AssertCountEquals(t.BaseTestCase, "Blink on drift detected", 1, t.blinkControls)

	t.Metric("drift_v_per_s", t.Source().Generator().Config().Drift)

	result.Finish()
	return result
}
