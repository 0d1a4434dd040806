package paddle

import (
	"math"
	"testing"

	"github.com/BYTE-6D65/blinkbreak/pkg/blink"
)

func TestPredictLandingX_ClosedForm(t *testing.T) {
	g := DefaultGeometry()
	got := PredictLandingX(Vec{400, 300}, Vec{4, -4}, g)

	frames := (700.0-300-20-10)/4 - 1
	want := 400 + 4*frames
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("PredictLandingX = %v, want %v", got, want)
	}
}

func TestPredictLandingX_Folds(t *testing.T) {
	g := DefaultGeometry()
	// 600 + 4*91.5 = 966, folds to 634
	got := PredictLandingX(Vec{600, 300}, Vec{4, 4}, g)
	if math.Abs(got-634) > 1e-9 {
		t.Errorf("Expected folded 634, got %v", got)
	}
}

func TestFold(t *testing.T) {
	tests := []struct {
		x, want float64
	}{
		{950, 650},
		{-50, 50},
		{400, 400},
		{0, 0},
		{800, 800},
		{1700, 100},
		{-900, 700},
	}
	for _, tt := range tests {
		if got := Fold(tt.x, 800); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Fold(%v) = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestGauge(t *testing.T) {
	tests := []struct {
		needed, taken, want int
	}{
		{10, 10, 100},
		{10, 0, 0},
		{0, 0, 100},
		{0, 7, 100},
		{4, 3, 75},
		{3, 2, 66},
		{2, 5, 0},
	}
	for _, tt := range tests {
		if got := Gauge(tt.needed, tt.taken); got != tt.want {
			t.Errorf("Gauge(%d, %d) = %d, want %d", tt.needed, tt.taken, got, tt.want)
		}
	}
}

func TestStepsAndDirection(t *testing.T) {
	if got := StepsNeeded(766, 350, 100); got != 4 {
		t.Errorf("StepsNeeded = %d, want 4", got)
	}
	if got := StepsNeeded(50, 350, 100); got != 3 {
		t.Errorf("StepsNeeded = %d, want 3", got)
	}

	dir, steps := DirectionTo(766, 350, 100)
	if dir != 1 || steps != 4 {
		t.Errorf("DirectionTo = %d/%d, want 1/4", dir, steps)
	}
	dir, _ = DirectionTo(120, 350, 100)
	if dir != -1 {
		t.Errorf("Expected left, got %d", dir)
	}
	dir, _ = DirectionTo(399, 350, 100)
	if dir != 0 {
		t.Errorf("Expected no move within the same column, got %d", dir)
	}
}

func TestController_StepMode(t *testing.T) {
	c := NewController(DefaultGeometry())
	if c.X() != 350 {
		t.Fatalf("Expected centred paddle at 350, got %v", c.X())
	}

	c.OnBounce(Vec{400, 300}, Vec{4, -4})
	plan := c.Plan()
	if plan.StepsNeeded != 4 || plan.Direction != 1 || c.Pending() != blink.Right {
		t.Fatalf("Unexpected plan after bounce: %+v", plan)
	}

	for i := 0; i < 3; i++ {
		if !c.CanMove(blink.Right) {
			t.Fatalf("Step %d: expected room to move right at x=%v", i, c.X())
		}
		c.Apply(blink.Right)
	}

	if c.X() != 650 {
		t.Errorf("Expected x=650, got %v", c.X())
	}
	if c.CanMove(blink.Right) {
		t.Error("Paddle at the right wall should have no room")
	}
	if c.Plan().StepsTaken != 3 {
		t.Errorf("Expected 3 steps taken, got %d", c.Plan().StepsTaken)
	}
	if c.Plan().StepsNeeded != 4 {
		t.Error("Steps needed must stay frozen until the next bounce")
	}

	if got := c.Score(); got != 75 {
		t.Errorf("Expected gauge 75, got %d", got)
	}
	if c.Plan().StepsNeeded != 0 || c.Plan().StepsTaken != 0 {
		t.Error("Score should clear the step budget")
	}
}

func TestController_SingleShot(t *testing.T) {
	c := NewController(DefaultGeometry(), WithSingleShot(true))
	c.OnBounce(Vec{400, 300}, Vec{-4, -4}) // lands at 34
	if c.Plan().StepsNeeded != 3 || c.Pending() != blink.Left {
		t.Fatalf("Unexpected plan: %+v", c.Plan())
	}

	c.Apply(blink.Left)
	if c.X() != 50 {
		t.Fatalf("Expected single jump to 50, got %v", c.X())
	}

	c.Apply(blink.Left)
	if c.X() != 50 {
		t.Errorf("Second event in the same cycle must not move the paddle, got %v", c.X())
	}

	c.Score()
	c.SetX(350)
	c.OnBounce(Vec{400, 300}, Vec{4, -4})
	c.Apply(blink.Right)
	if c.X() != 700 {
		t.Errorf("Expected jump after score reset, got %v", c.X())
	}
}

func TestController_NoPrediction(t *testing.T) {
	c := NewController(DefaultGeometry())
	c.Update()
	if c.Pending() != blink.None {
		t.Errorf("Expected no pending direction, got %s", c.Pending())
	}
	if _, ok := c.Prediction(); ok {
		t.Error("Expected no prediction")
	}
}
