// Package trial sequences calibration trials: a countdown showing the cued
// side, a stimulus period during which SSVEP verdicts are tallied, and an
// end state once every trial has run.
package trial

import (
	"context"
	"fmt"

	"github.com/BYTE-6D65/blinkbreak/pkg/ssvep"
	"github.com/BYTE-6D65/blinkbreak/pkg/statemachine"
	"github.com/BYTE-6D65/blinkbreak/pkg/stimulus"
)

const (
	Countdown statemachine.State = "countdown"
	Stimulus  statemachine.State = "stimulus"
	Ended     statemachine.State = "ended"

	evStart  statemachine.Event = "start"
	evNext   statemachine.Event = "next"
	evFinish statemachine.Event = "finish"
)

// Config describes a calibration session in frames.
type Config struct {
	Trials          int           `yaml:"trials"`
	CountdownFrames int           `yaml:"countdown_frames"`
	StimulusFrames  int           `yaml:"stimulus_frames"`
	FirstSide       stimulus.Side `yaml:"-"`
	Alternate       bool          `yaml:"alternate"`
}

// DefaultConfig is the alternating session: 15 trials of a one second cue
// followed by two seconds of flicker, starting on the right.
func DefaultConfig(fps int) Config {
	return Config{
		Trials:          15,
		CountdownFrames: fps,
		StimulusFrames:  2 * fps,
		FirstSide:       stimulus.Right,
		Alternate:       true,
	}
}

// BasicConfig is the single long trial used for baseline recordings: a five
// second countdown then five minutes of stimulus.
func BasicConfig(fps int, side stimulus.Side) Config {
	return Config{
		Trials:          1,
		CountdownFrames: 5 * fps,
		StimulusFrames:  300 * fps,
		FirstSide:       side,
	}
}

// Validate rejects sessions that cannot run.
func (c Config) Validate() error {
	if c.Trials < 1 {
		return fmt.Errorf("trial: need at least one trial, got %d", c.Trials)
	}
	if c.CountdownFrames < 1 || c.StimulusFrames < 1 {
		return fmt.Errorf("trial: countdown (%d) and stimulus (%d) must last at least one frame",
			c.CountdownFrames, c.StimulusFrames)
	}
	return nil
}

// Status is the controller's state for the current frame.
type Status struct {
	State     statemachine.State
	Trial     int // zero-based
	Trials    int
	Side      stimulus.Side
	Remaining int // frames left in the current phase
}

// Instruction is the text shown during the countdown.
func (s Status) Instruction() string {
	switch s.State {
	case Countdown:
		if s.Side == stimulus.Center {
			return fmt.Sprintf("(%d) Focus on the center of the screen", s.Trial+1)
		}
		return fmt.Sprintf("(%d) Shift your focus to the %s side of the screen", s.Trial+1, s.Side)
	case Ended:
		return "Testing has ended"
	}
	return ""
}

// Hooks are called on phase changes. Any may be nil.
type Hooks struct {
	TrialStarted   func(trial int, side stimulus.Side)
	TrialCompleted func(trial int, e Entry)
	Finished       func(s Summary)
}

// Controller runs a session one frame at a time. Call Status to learn the
// phase of the current frame, Record while in Stimulus, then Advance.
type Controller struct {
	cfg     Config
	hooks   Hooks
	machine *statemachine.Machine
	log     *Log
	trial   int
	side    stimulus.Side
}

// NewController validates cfg and starts the first trial's countdown.
func NewController(cfg Config, hooks Hooks) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:   cfg,
		hooks: hooks,
		log:   NewLog(cfg.Trials),
		side:  cfg.FirstSide,
	}

	m := statemachine.NewMachine(Countdown)
	m.AddState(statemachine.StateConfig{
		Name:         Countdown,
		Timeout:      cfg.CountdownFrames,
		TimeoutEvent: evStart,
	})
	m.AddState(statemachine.StateConfig{
		Name:          Stimulus,
		Timeout:       cfg.StimulusFrames,
		SelectTimeout: c.selectNext,
		OnEnter:       c.enterStimulus,
		OnExit:        c.exitStimulus,
	})
	m.AddState(statemachine.StateConfig{Name: Ended})
	m.MustAddTransitions(
		statemachine.Transition{From: Countdown, To: Stimulus, Event: evStart},
		statemachine.Transition{From: Stimulus, To: Countdown, Event: evNext, Action: c.nextTrial},
		statemachine.Transition{From: Stimulus, To: Ended, Event: evFinish, Action: c.finish},
	)
	c.machine = m

	c.log.Begin(c.side)
	return c, nil
}

func (c *Controller) selectNext(ctx context.Context) statemachine.Event {
	if c.trial+1 < c.cfg.Trials {
		return evNext
	}
	return evFinish
}

func (c *Controller) enterStimulus(ctx context.Context, s statemachine.State) error {
	if c.hooks.TrialStarted != nil {
		c.hooks.TrialStarted(c.trial, c.side)
	}
	return nil
}

func (c *Controller) exitStimulus(ctx context.Context, s statemachine.State) error {
	if c.hooks.TrialCompleted != nil {
		e, _ := c.log.Entry(c.trial)
		c.hooks.TrialCompleted(c.trial, e)
	}
	return nil
}

func (c *Controller) nextTrial(ctx context.Context, from, to statemachine.State, e statemachine.Event) error {
	c.trial++
	if c.cfg.Alternate {
		c.side = c.side.Opposite()
	}
	c.log.Begin(c.side)
	return nil
}

func (c *Controller) finish(ctx context.Context, from, to statemachine.State, e statemachine.Event) error {
	if c.hooks.Finished != nil {
		c.hooks.Finished(Summarize(c.log))
	}
	return nil
}

// Status returns the phase of the current frame.
func (c *Controller) Status() Status {
	st := Status{
		State:  c.machine.Current(),
		Trial:  c.trial,
		Trials: c.cfg.Trials,
		Side:   c.side,
	}
	if r := c.machine.Remaining(); r > 0 {
		st.Remaining = r
	}
	return st
}

// Record tallies a verdict against the current trial. Verdicts outside the
// stimulus phase are ignored.
func (c *Controller) Record(v ssvep.Verdict) {
	if c.machine.Current() != Stimulus {
		return
	}
	c.log.Record(c.trial, v)
}

// Advance ends the current frame.
func (c *Controller) Advance(ctx context.Context) error {
	if c.machine.Current() == Ended {
		return nil
	}
	_, err := c.machine.Tick(ctx)
	return err
}

// Done reports whether every trial has run.
func (c *Controller) Done() bool {
	return c.machine.Current() == Ended
}

// Log returns the session's trial log.
func (c *Controller) Log() *Log {
	return c.log
}

// Summary summarizes the trials run so far.
func (c *Controller) Summary() Summary {
	return Summarize(c.log)
}
