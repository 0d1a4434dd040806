package paddle

import (
	"math"

	"github.com/BYTE-6D65/blinkbreak/pkg/blink"
)

// Plan is the paddle's step budget for the current bounce cycle.
type Plan struct {
	StepsNeeded int `json:"steps_needed"`
	StepsTaken  int `json:"steps_taken"`
	Direction   int `json:"direction"`
}

// Controller owns the paddle's horizontal position and its plan. Needed
// steps are frozen at each bounce; direction is refreshed every frame.
type Controller struct {
	geom       Geometry
	singleShot bool

	x        float64
	initialX float64
	xPred    float64
	hasPred  bool
	hasMoved bool
	plan     Plan
	gauge    int
}

// Option configures a Controller.
type Option func(*Controller)

// WithSingleShot makes the first event of a bounce cycle jump the paddle the
// whole planned distance. Later events in the same cycle do not move it.
func WithSingleShot(enabled bool) Option {
	return func(c *Controller) {
		c.singleShot = enabled
	}
}

// NewController creates a controller with the paddle centred.
func NewController(g Geometry, opts ...Option) *Controller {
	c := &Controller{
		geom:  g,
		x:     g.Width/2 - g.PaddleWidth/2,
		gauge: 100,
	}
	c.initialX = c.x
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Geometry returns the field geometry.
func (c *Controller) Geometry() Geometry { return c.geom }

// X returns the paddle's left edge.
func (c *Controller) X() float64 { return c.x }

// SetX places the paddle, for resets.
func (c *Controller) SetX(x float64) {
	c.x = c.clamp(x)
}

// Prediction returns the last predicted landing x, if any.
func (c *Controller) Prediction() (float64, bool) {
	return c.xPred, c.hasPred
}

// Plan returns the current plan.
func (c *Controller) Plan() Plan { return c.plan }

// GaugePercent returns the last bounce cycle's score.
func (c *Controller) GaugePercent() int { return c.gauge }

// OnBounce predicts the landing point for a ball leaving the ceiling or a
// brick, freezes the paddle's starting position and recomputes the steps
// needed.
func (c *Controller) OnBounce(pos, vel Vec) {
	c.xPred = PredictLandingX(pos, vel, c.geom)
	c.hasPred = true
	c.initialX = c.x
	c.plan.StepsNeeded = StepsNeeded(c.xPred, c.initialX, c.geom.Step)
	c.refresh()
}

// Update refreshes the direction toward the predicted landing column. It is
// called once per frame.
func (c *Controller) Update() {
	c.refresh()
}

func (c *Controller) refresh() {
	if !c.hasPred {
		c.plan.Direction = 0
		return
	}
	c.plan.Direction, _ = DirectionTo(c.xPred, c.x, c.geom.Step)
}

// Pending returns the direction the paddle should move next.
func (c *Controller) Pending() blink.ControlEvent {
	return blink.FromDirection(c.plan.Direction)
}

// CanMove reports whether one more step in direction stays inside the field.
func (c *Controller) CanMove(e blink.ControlEvent) bool {
	switch e {
	case blink.Right:
		return c.x+c.geom.PaddleWidth+c.geom.Step <= c.geom.Width
	case blink.Left:
		return c.x-c.geom.Step >= 0
	}
	return false
}

// Apply consumes one control event.
func (c *Controller) Apply(e blink.ControlEvent) {
	dir := e.Direction()
	if dir == 0 {
		return
	}
	c.plan.StepsTaken++

	if c.singleShot {
		if c.hasMoved {
			return
		}
		c.x = c.clamp(c.x + float64(c.plan.StepsNeeded)*c.geom.Step*float64(dir))
		c.hasMoved = true
	} else {
		c.x = c.clamp(c.x + c.geom.Step*float64(dir))
	}
	c.refresh()
}

// Score closes the bounce cycle when the ball reaches the paddle plane or is
// lost: it updates the gauge and clears the step budget.
func (c *Controller) Score() int {
	c.gauge = Gauge(c.plan.StepsNeeded, c.plan.StepsTaken)
	c.plan.StepsNeeded = 0
	c.plan.StepsTaken = 0
	c.hasMoved = false
	return c.gauge
}

// Reset clears the prediction and plan and recentres the paddle.
func (c *Controller) Reset() {
	c.x = c.geom.Width/2 - c.geom.PaddleWidth/2
	c.initialX = c.x
	c.xPred, c.hasPred, c.hasMoved = 0, false, false
	c.plan = Plan{}
	c.gauge = 100
}

func (c *Controller) clamp(x float64) float64 {
	return math.Max(0, math.Min(x, c.geom.Width-c.geom.PaddleWidth))
}
