// Package game is the brick-breaker board the paddle controller plays on:
// ball motion, wall, brick and paddle collisions, lives and win/loss resets.
package game

import (
	"math"

	"github.com/BYTE-6D65/blinkbreak/pkg/blink"
	"github.com/BYTE-6D65/blinkbreak/pkg/paddle"
)

// Config holds the board constants.
type Config struct {
	Geometry      paddle.Geometry `yaml:"geometry"`
	InitialVel    float64         `yaml:"initial_velocity"`
	Difficulty    int             `yaml:"difficulty"`
	MaxDifficulty int             `yaml:"max_difficulty"`
	Lives         int             `yaml:"lives"`
	BrickRows     int             `yaml:"brick_rows"`
	BrickCols     int             `yaml:"brick_cols"`
	BrickHealth   int             `yaml:"brick_health"`
	BrickHeight   float64         `yaml:"brick_height"`
	BrickGap      float64         `yaml:"brick_gap"`
	PaddleMargin  float64         `yaml:"paddle_margin"`
}

// DefaultConfig returns the board the game shipped with.
func DefaultConfig() Config {
	return Config{
		Geometry:      paddle.DefaultGeometry(),
		InitialVel:    4,
		Difficulty:    1,
		MaxDifficulty: 5,
		Lives:         5,
		BrickRows:     1,
		BrickCols:     10,
		BrickHealth:   2,
		BrickHeight:   20,
		BrickGap:      2,
		PaddleMargin:  5,
	}
}

// VelocityScale is the per-frame multiplier applied to ball motion.
func (c Config) VelocityScale() float64 {
	if c.MaxDifficulty <= 0 {
		return 1
	}
	return float64(c.Difficulty+c.MaxDifficulty) / float64(c.MaxDifficulty)
}

// Ball is the ball's centre and per-frame velocity before scaling.
type Ball struct {
	Pos paddle.Vec
	Vel paddle.Vec
}

// Brick is one brick; it is removed when Health reaches zero.
type Brick struct {
	X, Y, W, H float64
	Health     int
	MaxHealth  int
}

func (b Brick) hit(ball Ball, radius float64) bool {
	if ball.Pos.X < b.X || ball.Pos.X > b.X+b.W {
		return false
	}
	return ball.Pos.Y-radius <= b.Y+b.H
}

// Outcome is the board state after a frame.
type Outcome int

const (
	Playing Outcome = iota
	Won
	Lost
)

func (o Outcome) String() string {
	switch o {
	case Won:
		return "You Won!"
	case Lost:
		return "You Lost!"
	default:
		return "playing"
	}
}

// Report describes what happened during one frame.
type Report struct {
	Bounced   bool // ceiling or brick bounce, landing re-predicted
	PaddleHit bool
	BallLost  bool
	Scored    bool // gauge was updated this frame
	Gauge     int
	Outcome   Outcome
}

// Game is the board. It is driven from the frame loop only.
type Game struct {
	cfg     Config
	paddle  *paddle.Controller
	paddleY float64
	ball    Ball
	bricks  []Brick
	lives   int
}

// New creates a board around the given paddle controller.
func New(cfg Config, ctrl *paddle.Controller) *Game {
	g := &Game{
		cfg:     cfg,
		paddle:  ctrl,
		paddleY: cfg.Geometry.Height - cfg.Geometry.PaddleHeight - cfg.PaddleMargin,
	}
	g.reset()
	return g
}

func (g *Game) reset() {
	g.paddle.Reset()
	geo := g.cfg.Geometry
	g.ball = Ball{
		Pos: paddle.Vec{X: geo.Width / 2, Y: g.paddleY - geo.BallRadius},
		Vel: paddle.Vec{X: g.cfg.InitialVel, Y: -g.cfg.InitialVel},
	}
	g.bricks = g.generateBricks()
	g.lives = g.cfg.Lives
}

func (g *Game) generateBricks() []Brick {
	cols := g.cfg.BrickCols
	if cols <= 0 {
		return nil
	}
	w := math.Floor(g.cfg.Geometry.Width/float64(cols)) - g.cfg.BrickGap
	bricks := make([]Brick, 0, g.cfg.BrickRows*cols)
	for row := 0; row < g.cfg.BrickRows; row++ {
		for col := 0; col < cols; col++ {
			bricks = append(bricks, Brick{
				X:         float64(col)*w + g.cfg.BrickGap*float64(col),
				Y:         float64(row)*g.cfg.BrickHeight + g.cfg.BrickGap*float64(row),
				W:         w,
				H:         g.cfg.BrickHeight,
				Health:    g.cfg.BrickHealth,
				MaxHealth: g.cfg.BrickHealth,
			})
		}
	}
	return bricks
}

// Ball returns the ball.
func (g *Game) Ball() Ball { return g.ball }

// SetBall places the ball, for scenarios and tests.
func (g *Game) SetBall(b Ball) { g.ball = b }

// Bricks returns a copy of the remaining bricks.
func (g *Game) Bricks() []Brick { return append([]Brick(nil), g.bricks...) }

// Lives returns the remaining lives.
func (g *Game) Lives() int { return g.lives }

// PaddleY returns the paddle's top edge.
func (g *Game) PaddleY() float64 { return g.paddleY }

// Paddle returns the paddle controller.
func (g *Game) Paddle() *paddle.Controller { return g.paddle }

// Conditions returns the game state a blink detection is gated on.
func (g *Game) Conditions() blink.Conditions {
	return blink.Conditions{
		Pending:         g.paddle.Pending(),
		BallApproaching: g.ball.Vel.Y > 0,
		CanMoveLeft:     g.paddle.CanMove(blink.Left),
		CanMoveRight:    g.paddle.CanMove(blink.Right),
	}
}

// Step advances the board by one frame. Control events must already have
// been applied to the paddle.
func (g *Game) Step() Report {
	var rep Report
	geo := g.cfg.Geometry
	r := geo.BallRadius

	g.clampBall()
	scale := g.cfg.VelocityScale()
	g.ball.Pos.X += g.ball.Vel.X * scale
	g.ball.Pos.Y += g.ball.Vel.Y * scale

	// Walls and ceiling.
	if g.ball.Pos.X-r <= 0 || g.ball.Pos.X+r >= geo.Width {
		g.ball.Vel.X = -g.ball.Vel.X
	}
	if g.ball.Pos.Y-r <= 0 {
		g.paddle.OnBounce(g.ball.Pos, g.ball.Vel)
		g.ball.Vel.Y = -g.ball.Vel.Y
		rep.Bounced = true
	}

	// Paddle.
	px := g.paddle.X()
	if g.ball.Pos.X >= px && g.ball.Pos.X <= px+geo.PaddleWidth && g.ball.Pos.Y+r >= g.paddleY && g.ball.Vel.Y > 0 {
		rep.Gauge = g.paddle.Score()
		rep.Scored, rep.PaddleHit = true, true

		center := px + geo.PaddleWidth/2
		angle := (g.ball.Pos.X - center) / geo.PaddleWidth * 90 * math.Pi / 180
		g.ball.Vel.X = math.Sin(angle) * g.cfg.InitialVel
		g.ball.Vel.Y = -g.ball.Vel.Y
	}

	// Bricks.
	kept := g.bricks[:0]
	for _, b := range g.bricks {
		if b.hit(g.ball, r) {
			g.paddle.OnBounce(g.ball.Pos, g.ball.Vel)
			g.ball.Vel.Y = -g.ball.Vel.Y
			b.Health--
			rep.Bounced = true
		}
		if b.Health > 0 {
			kept = append(kept, b)
		}
	}
	g.bricks = kept

	g.paddle.Update()

	// Floor.
	if g.ball.Pos.Y+r >= geo.Height {
		g.lives--
		rep.BallLost = true
		rep.Gauge = g.paddle.Score()
		rep.Scored = true
		g.ball.Pos = paddle.Vec{X: g.paddle.X() + geo.PaddleWidth/2, Y: g.paddleY - r}
		g.ball.Vel.Y = -g.cfg.InitialVel
	}

	switch {
	case g.lives <= 0:
		rep.Outcome = Lost
		g.reset()
	case len(g.bricks) == 0:
		rep.Outcome = Won
		g.reset()
	}

	return rep
}

func (g *Game) clampBall() {
	r, w := g.cfg.Geometry.BallRadius, g.cfg.Geometry.Width
	if g.ball.Pos.X <= r {
		g.ball.Pos.X = r
	} else if g.ball.Pos.X >= w-r {
		g.ball.Pos.X = w - r
	}
	if g.ball.Pos.Y <= r {
		g.ball.Pos.Y = r
	}
}
