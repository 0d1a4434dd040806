package tests

import (
	"context"

	"github.com/BYTE-6D65/blinkbreak/cmd/behavior-test/framework"
	"github.com/BYTE-6D65/blinkbreak/pkg/blink"
	"github.com/BYTE-6D65/blinkbreak/pkg/engine"
	"github.com/BYTE-6D65/blinkbreak/pkg/event"
	"github.com/BYTE-6D65/blinkbreak/pkg/game"
	"github.com/BYTE-6D65/blinkbreak/pkg/paddle"
	"github.com/BYTE-6D65/blinkbreak/pkg/testdata"
)

// Test11BlinkSteersPaddle validates that one blink moves the paddle once.
//
// Test: 1.1 - Blink Steers Paddle
// Category: Blink Control
//
// Goal: A single injected blink, while the ball falls toward a landing
// point left of the paddle, produces exactly one left move.
//
// Pass Criteria:
//   - Exactly one control event, and it is Left
//   - The paddle ends left of where it started
//   - One bci.control.left event reaches the external bus
type Test11BlinkSteersPaddle struct {
	*framework.BaseTestCase

	startX   float64
	endX     float64
	controls []blink.ControlEvent
}

// NewTest11BlinkSteersPaddle creates a new test instance.
func NewTest11BlinkSteersPaddle() framework.TestCase {
	return &Test11BlinkSteersPaddle{
		BaseTestCase: framework.NewBaseTestCase(),
	}
}

func (t *Test11BlinkSteersPaddle) Name() string {
	return "1.1: Blink Steers Paddle"
}

func (t *Test11BlinkSteersPaddle) Category() string {
	return "Blink Control"
}

func (t *Test11BlinkSteersPaddle) Description() string {
	return "Verify one blink moves the paddle one step toward the predicted landing point"
}

func (t *Test11BlinkSteersPaddle) Setup(ctx context.Context) error {
	return t.SetupPipeline(ctx, engine.DefaultConfig(), engine.PlayMode, testdata.DefaultConfig(250))
}

func (t *Test11BlinkSteersPaddle) Run(ctx context.Context) error {
	// Fill the first window with a quiet signal.
	t.Step(30, nil)

	g := t.Pipeline().Game()
	g.SetBall(game.Ball{Pos: paddle.Vec{X: 400, Y: 300}, Vel: paddle.Vec{X: 0, Y: 4}})
	g.Paddle().OnBounce(paddle.Vec{X: 50, Y: 300}, paddle.Vec{X: 0, Y: 4})
	t.startX = g.Paddle().X()

	t.Source().Blink()
	t.Step(40, func(res engine.FrameResult) {
		if res.Control != blink.None {
			t.controls = append(t.controls, res.Control)
		}
	})
	t.endX = g.Paddle().X()
	return ctx.Err()
}

func (t *Test11BlinkSteersPaddle) Teardown() error {
	return t.TeardownPipeline()
}

func (t *Test11BlinkSteersPaddle) Validate() *framework.TestResult {
	result := t.Result()
	result.TestName = t.Name()
	result.Category = t.Category()

	framework.AssertCountEquals(t.BaseTestCase, "One control event", 1, len(t.controls))
	if len(t.controls) > 0 {
		framework.AssertEquals(t.BaseTestCase, "Control is left", blink.Left.String(), t.controls[0].String())
	}
	framework.AssertTrue(t.BaseTestCase, "Paddle moved left", t.endX < t.startX, "")

	events := t.EventCounts()
	framework.AssertCountEquals(t.BaseTestCase, "Left events published", 1, events[event.TypeControlLeft])
	framework.AssertCountEquals(t.BaseTestCase, "No right events", 0, events[event.TypeControlRight])

	t.Metric("start_x", t.startX)
	t.Metric("end_x", t.endX)
	t.Metric("blinks_generated", t.Source().Generator().Blinks())

	result.Finish()
	return result
}
