// Package blink turns detrended EEG windows into debounced directional
// control events.
package blink

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/BYTE-6D65/blinkbreak/pkg/eeg"
	"github.com/BYTE-6D65/blinkbreak/pkg/statemachine"
)

const (
	// DefaultThreshold is the minimum drop between the window average and
	// the average of its 80-90% slice that counts as a blink.
	DefaultThreshold = 0.00005

	// DefaultDebounceFrames is how many frames a detection suppresses
	// further events.
	DefaultDebounceFrames = 10
)

const (
	Idle     statemachine.State = "idle"
	Cooldown statemachine.State = "cooldown"

	evBlink  statemachine.Event = "blink"
	evSettle statemachine.Event = "settle"
)

// Vote decides how per-channel threshold crossings combine when more than
// one channel is monitored.
type Vote int

const (
	VoteAny Vote = iota
	VoteAll
	VoteMajority
)

func (v Vote) String() string {
	switch v {
	case VoteAny:
		return "any"
	case VoteAll:
		return "all"
	case VoteMajority:
		return "majority"
	default:
		return fmt.Sprintf("vote(%d)", int(v))
	}
}

// ParseVote parses "any", "all" or "majority".
func ParseVote(s string) (Vote, error) {
	switch s {
	case "any", "":
		return VoteAny, nil
	case "all":
		return VoteAll, nil
	case "majority":
		return VoteMajority, nil
	}
	return VoteAny, fmt.Errorf("unknown vote %q", s)
}

// Config tunes a Detector.
type Config struct {
	Threshold      float64
	DebounceFrames int
	Vote           Vote
}

// DefaultConfig returns the thresholds the game was calibrated with.
func DefaultConfig() Config {
	return Config{
		Threshold:      DefaultThreshold,
		DebounceFrames: DefaultDebounceFrames,
		Vote:           VoteAny,
	}
}

// Conditions is the game state a detection is gated on.
type Conditions struct {
	// Pending is the direction the paddle should move; None makes the
	// detector inert.
	Pending ControlEvent

	// BallApproaching is true while the ball moves toward the paddle.
	BallApproaching bool

	CanMoveLeft  bool
	CanMoveRight bool
}

func (c Conditions) roomFor(e ControlEvent) bool {
	switch e {
	case Left:
		return c.CanMoveLeft
	case Right:
		return c.CanMoveRight
	}
	return false
}

// Excursion returns avg(w[0:N-1]) - avg(w[0.8N:0.9N]), the size of the
// negative-going dip a blink leaves near the end of the window.
func Excursion(w []float64) float64 {
	n := len(w)
	if n < 2 {
		return 0
	}
	lo, hi := n*8/10, n*9/10
	if hi <= lo {
		hi = lo + 1
	}
	return eeg.Mean(w[:n-1]) - eeg.Mean(w[lo:hi])
}

// Detector is the Idle/Cooldown blink state machine. A detection emits the
// pending direction and suppresses events for DebounceFrames frames.
type Detector struct {
	cfg     Config
	machine *statemachine.Machine
	emitted atomic.Uint64
}

// NewDetector creates a Detector in Idle.
func NewDetector(cfg Config) *Detector {
	if cfg.DebounceFrames < 1 {
		cfg.DebounceFrames = DefaultDebounceFrames
	}

	m := statemachine.NewMachine(Idle)
	m.AddState(statemachine.StateConfig{Name: Idle})
	m.AddState(statemachine.StateConfig{
		Name:         Cooldown,
		Timeout:      cfg.DebounceFrames,
		TimeoutEvent: evSettle,
	})
	m.MustAddTransitions(
		statemachine.Transition{From: Idle, To: Cooldown, Event: evBlink},
		statemachine.Transition{From: Cooldown, To: Idle, Event: evSettle},
	)

	return &Detector{cfg: cfg, machine: m}
}

// State returns Idle or Cooldown.
func (d *Detector) State() statemachine.State {
	return d.machine.Current()
}

// Emitted returns how many events the detector has produced.
func (d *Detector) Emitted() uint64 {
	return d.emitted.Load()
}

// Step runs one frame. windows holds the detrended windows of the monitored
// channels that had enough samples this frame; an empty slice skips
// detection. Cooldown counts every frame whether or not detection runs.
func (d *Detector) Step(ctx context.Context, windows []eeg.DetrendedWindow, cond Conditions) ControlEvent {
	if d.machine.Current() == Cooldown {
		d.machine.Tick(ctx)
		return None
	}

	if cond.Pending == None || !cond.BallApproaching || len(windows) == 0 {
		return None
	}
	if !cond.roomFor(cond.Pending) {
		return None
	}
	if !d.crossed(windows) {
		return None
	}

	if err := d.machine.Trigger(ctx, evBlink); err != nil {
		return None
	}
	d.emitted.Add(1)
	return cond.Pending
}

func (d *Detector) crossed(windows []eeg.DetrendedWindow) bool {
	hits := 0
	for _, w := range windows {
		if Excursion(w.Values) > d.cfg.Threshold {
			hits++
		}
	}

	switch d.cfg.Vote {
	case VoteAll:
		return hits == len(windows)
	case VoteMajority:
		return hits*2 > len(windows)
	default:
		return hits > 0
	}
}

// Reset returns the detector to Idle.
func (d *Detector) Reset() {
	d.machine.Reset(Idle)
}
