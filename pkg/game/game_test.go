package game

import (
	"math"
	"testing"

	"github.com/BYTE-6D65/blinkbreak/pkg/blink"
	"github.com/BYTE-6D65/blinkbreak/pkg/paddle"
)

func newGame() *Game {
	cfg := DefaultConfig()
	return New(cfg, paddle.NewController(cfg.Geometry))
}

func TestNew(t *testing.T) {
	g := newGame()
	if g.Lives() != 5 {
		t.Errorf("Expected 5 lives, got %d", g.Lives())
	}
	bricks := g.Bricks()
	if len(bricks) != 10 {
		t.Fatalf("Expected 10 bricks, got %d", len(bricks))
	}
	if bricks[0].W != 78 || bricks[1].X != 80 || bricks[0].Health != 2 {
		t.Errorf("Unexpected brick layout: %+v %+v", bricks[0], bricks[1])
	}
	if g.PaddleY() != 675 {
		t.Errorf("Expected paddle y 675, got %v", g.PaddleY())
	}
	if b := g.Ball(); b.Pos.X != 400 || b.Pos.Y != 665 || b.Vel.Y != -4 {
		t.Errorf("Unexpected ball %+v", b)
	}
}

func TestVelocityScale(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.VelocityScale(); math.Abs(got-1.2) > 1e-12 {
		t.Errorf("Expected 1.2, got %v", got)
	}
	cfg.Difficulty = 5
	if got := cfg.VelocityScale(); got != 2 {
		t.Errorf("Expected 2, got %v", got)
	}
}

func TestStep_CeilingBouncePredicts(t *testing.T) {
	g := newGame()
	g.SetBall(Ball{Pos: paddle.Vec{X: 400, Y: 12}, Vel: paddle.Vec{X: 4, Y: -4}})
	// Keep one unreachable brick so the board does not reset.
	g.bricks = []Brick{{X: 0, Y: -1000, W: 1, H: 1, Health: 1}}

	rep := g.Step()
	if !rep.Bounced {
		t.Fatal("Expected a ceiling bounce")
	}
	if _, ok := g.Paddle().Prediction(); !ok {
		t.Error("Expected a landing prediction after the bounce")
	}
	if g.Ball().Vel.Y <= 0 {
		t.Error("Ball should move down after the ceiling bounce")
	}

	cond := g.Conditions()
	if !cond.BallApproaching {
		t.Error("Expected ball approaching after ceiling bounce")
	}
	if cond.Pending == blink.None && g.Paddle().Plan().StepsNeeded != 0 {
		t.Error("Pending direction should follow the plan")
	}
}

func TestStep_BrickHit(t *testing.T) {
	g := newGame()
	g.SetBall(Ball{Pos: paddle.Vec{X: 40, Y: 33}, Vel: paddle.Vec{X: 0, Y: -4}})

	rep := g.Step()
	if !rep.Bounced {
		t.Fatal("Expected a brick bounce")
	}
	if g.Bricks()[0].Health != 1 {
		t.Errorf("Expected brick health 1, got %d", g.Bricks()[0].Health)
	}
}

func TestStep_PaddleHitScores(t *testing.T) {
	g := newGame()
	g.SetBall(Ball{Pos: paddle.Vec{X: 425, Y: 662}, Vel: paddle.Vec{X: 0, Y: 4}})

	rep := g.Step()
	if !rep.PaddleHit || !rep.Scored || rep.Gauge != 100 {
		t.Fatalf("Expected paddle hit scoring 100, got %+v", rep)
	}
	b := g.Ball()
	if b.Vel.Y >= 0 {
		t.Error("Ball should rebound upward")
	}
	// 25px right of centre on a 100px paddle is a 22.5 degree rebound.
	want := math.Sin(22.5*math.Pi/180) * 4
	if math.Abs(b.Vel.X-want) > 0.5 {
		t.Errorf("Expected x velocity near %v, got %v", want, b.Vel.X)
	}
}

func TestStep_LoseAllLives(t *testing.T) {
	g := newGame()
	var last Report
	for i := 0; i < 5; i++ {
		g.SetBall(Ball{Pos: paddle.Vec{X: 50, Y: 690}, Vel: paddle.Vec{X: 0, Y: 4}})
		last = g.Step()
		if !last.BallLost {
			t.Fatalf("Life %d: expected ball lost", i+1)
		}
	}
	if last.Outcome != Lost {
		t.Errorf("Expected Lost, got %s", last.Outcome)
	}
	if g.Lives() != 5 || len(g.Bricks()) != 10 {
		t.Error("Board should reset after losing")
	}
}
