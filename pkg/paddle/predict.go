// Package paddle plans blink-driven paddle moves from an analytic
// prediction of where the ball will cross the paddle plane.
package paddle

import "math"

// Vec is a position or velocity in field pixels (per frame).
type Vec struct {
	X, Y float64
}

// Geometry is the play field and the sizes that matter for prediction.
type Geometry struct {
	Width        float64 `yaml:"width"`
	Height       float64 `yaml:"height"`
	PaddleWidth  float64 `yaml:"paddle_width"`
	PaddleHeight float64 `yaml:"paddle_height"`
	BallRadius   float64 `yaml:"ball_radius"`
	Step         float64 `yaml:"step"`
}

// DefaultGeometry returns the 800x700 field with a 100x20 paddle moving in
// steps of its own width.
func DefaultGeometry() Geometry {
	return Geometry{
		Width:        800,
		Height:       700,
		PaddleWidth:  100,
		PaddleHeight: 20,
		BallRadius:   10,
		Step:         100,
	}
}

// PredictLandingX projects the ball in a straight line to the paddle plane
// and folds the result back into the field. The frame count to the plane is
// (Height - y - PaddleHeight - BallRadius) / |vy| - 1.
func PredictLandingX(pos, vel Vec, g Geometry) float64 {
	vy := math.Abs(vel.Y)
	if vy == 0 {
		return Fold(pos.X, g.Width)
	}
	frames := (g.Height-pos.Y-g.PaddleHeight-g.BallRadius)/vy - 1
	return Fold(pos.X+vel.X*frames, g.Width)
}

// Fold mirrors x off the side walls at 0 and width until it lies inside the
// field: 950 in a width of 800 becomes 650, and -50 becomes 50.
func Fold(x, width float64) float64 {
	if width <= 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	if x >= 0 && x <= width {
		return x
	}
	period := 2 * width
	m := math.Mod(x, period)
	if m < 0 {
		m += period
	}
	if m > width {
		m = period - m
	}
	return m
}

// StepsNeeded returns how many paddle steps separate the column of the
// predicted landing point from the paddle's column at the last bounce.
func StepsNeeded(xPred, initialX, step float64) int {
	if step <= 0 {
		return 0
	}
	d := math.Floor(xPred/step) - math.Floor(initialX/step)
	return int(math.Abs(d))
}

// DirectionTo returns the direction (-1, 0, 1) and remaining steps from the
// paddle's current column to the predicted landing column.
func DirectionTo(xPred, paddleX, step float64) (direction, steps int) {
	if step <= 0 {
		return 0, 0
	}
	d := int(math.Floor(xPred/step) - math.Floor(paddleX/step))
	switch {
	case d > 0:
		return 1, d
	case d < 0:
		return -1, -d
	}
	return 0, 0
}

// Gauge scores a bounce cycle as 100*(1 - |needed-taken|/needed), floored
// and clamped to [0, 100]. Zero steps needed scores 100.
func Gauge(needed, taken int) int {
	if needed == 0 {
		return 100
	}
	diff := math.Abs(float64(needed - taken))
	score := int(math.Floor(100 - 100*diff/float64(needed)))
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}
