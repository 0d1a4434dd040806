package trial

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/BYTE-6D65/blinkbreak/pkg/ssvep"
	"github.com/BYTE-6D65/blinkbreak/pkg/statemachine"
	"github.com/BYTE-6D65/blinkbreak/pkg/stimulus"
)

func TestController_Sequence(t *testing.T) {
	cfg := Config{Trials: 3, CountdownFrames: 2, StimulusFrames: 3, FirstSide: stimulus.Right, Alternate: true}

	var started, completed []int
	var summary *Summary
	c, err := NewController(cfg, Hooks{
		TrialStarted:   func(i int, side stimulus.Side) { started = append(started, i) },
		TrialCompleted: func(i int, e Entry) { completed = append(completed, i) },
		Finished:       func(s Summary) { summary = &s },
	})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	type frame struct {
		state statemachine.State
		side  stimulus.Side
	}
	want := []frame{
		{Countdown, stimulus.Right}, {Countdown, stimulus.Right},
		{Stimulus, stimulus.Right}, {Stimulus, stimulus.Right}, {Stimulus, stimulus.Right},
		{Countdown, stimulus.Left}, {Countdown, stimulus.Left},
		{Stimulus, stimulus.Left}, {Stimulus, stimulus.Left}, {Stimulus, stimulus.Left},
		{Countdown, stimulus.Right}, {Countdown, stimulus.Right},
		{Stimulus, stimulus.Right}, {Stimulus, stimulus.Right}, {Stimulus, stimulus.Right},
		{Ended, stimulus.Right},
	}

	ctx := context.Background()
	for i, w := range want {
		st := c.Status()
		if st.State != w.state || st.Side != w.side {
			t.Fatalf("Frame %d: got %s/%s, want %s/%s", i+1, st.State, st.Side, w.state, w.side)
		}
		if err := c.Advance(ctx); err != nil {
			t.Fatalf("Frame %d: %v", i+1, err)
		}
	}

	if !c.Done() {
		t.Error("Expected session to be done")
	}
	if len(started) != 3 || len(completed) != 3 {
		t.Errorf("Expected 3 starts and completions, got %v and %v", started, completed)
	}
	if summary == nil || len(summary.Trials) != 3 {
		t.Fatalf("Expected finished summary with 3 trials, got %+v", summary)
	}
	if c.Log().Len() != 3 {
		t.Errorf("Expected 3 log entries, got %d", c.Log().Len())
	}
}

func TestController_DefaultAlternation(t *testing.T) {
	cfg := DefaultConfig(60)
	c, err := NewController(cfg, Hooks{})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	ctx := context.Background()
	frames := 0
	for !c.Done() {
		c.Advance(ctx)
		frames++
	}

	if want := 15 * (60 + 120); frames != want {
		t.Errorf("Expected %d frames, got %d", want, frames)
	}

	for i, e := range c.Log().Entries() {
		want := stimulus.Right
		if i%2 == 1 {
			want = stimulus.Left
		}
		if e.Side != want {
			t.Errorf("Trial %d: side %s, want %s", i+1, e.Side, want)
		}
	}
}

func TestController_RecordOnlyDuringStimulus(t *testing.T) {
	c, _ := NewController(Config{Trials: 1, CountdownFrames: 1, StimulusFrames: 2, FirstSide: stimulus.Left}, Hooks{})
	ctx := context.Background()

	c.Record(ssvep.AttendLeft) // countdown, ignored
	c.Advance(ctx)
	c.Record(ssvep.AttendLeft)
	c.Record(ssvep.AttendRight)
	c.Advance(ctx)
	c.Record(ssvep.Indeterminate)
	c.Advance(ctx)
	c.Record(ssvep.AttendLeft) // ended, ignored

	e, _ := c.Log().Entry(0)
	if e.Left != 1 || e.Right != 1 || e.Indet != 1 {
		t.Errorf("Unexpected tally %+v", e)
	}
}

func TestBasicConfig(t *testing.T) {
	cfg := BasicConfig(60, stimulus.Center)
	if cfg.Trials != 1 || cfg.CountdownFrames != 300 || cfg.StimulusFrames != 18000 || cfg.Alternate {
		t.Errorf("Unexpected basic config %+v", cfg)
	}
	c, _ := NewController(cfg, Hooks{})
	if got := c.Status().Instruction(); !strings.Contains(got, "center") {
		t.Errorf("Unexpected instruction %q", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := (Config{Trials: 0, CountdownFrames: 1, StimulusFrames: 1}).Validate(); err == nil {
		t.Error("Expected error for zero trials")
	}
	if err := (Config{Trials: 1, CountdownFrames: 0, StimulusFrames: 1}).Validate(); err == nil {
		t.Error("Expected error for zero countdown")
	}
}

func TestEntry_Result(t *testing.T) {
	r := Entry{Side: stimulus.Right, Right: 6, Left: 2, Indet: 2}.Result(1)
	if !near(r.Correct, 0.6) || !near(r.Incorrect, 0.2) || !near(r.Indeterminate, 0.2) || r.Total != 10 {
		t.Errorf("Unexpected result %+v", r)
	}

	r = Entry{Side: stimulus.Left, Right: 6, Left: 2, Indet: 2}.Result(2)
	if !near(r.Correct, 0.2) || !near(r.Incorrect, 0.6) {
		t.Errorf("Unexpected left-cued result %+v", r)
	}

	r = Entry{Side: stimulus.Right}.Result(3)
	if r.Correct != 0 || r.Incorrect != 0 || r.Indeterminate != 0 {
		t.Errorf("Zero-total trial should score 0, got %+v", r)
	}
}

func TestSummarize(t *testing.T) {
	l := NewLog(2)
	i := l.Begin(stimulus.Right)
	for n := 0; n < 3; n++ {
		l.Record(i, ssvep.AttendRight)
	}
	l.Record(i, ssvep.AttendLeft)
	l.Begin(stimulus.Left)

	s := Summarize(l)
	if !near(s.Correct, 0.375) || !near(s.Incorrect, 0.125) || s.Indeterminate != 0 {
		t.Errorf("Unexpected summary %+v", s)
	}

	if empty := Summarize(NewLog(0)); empty.Correct != 0 || len(empty.Trials) != 0 {
		t.Errorf("Unexpected empty summary %+v", empty)
	}
}

func TestWriteReport(t *testing.T) {
	l := NewLog(1)
	i := l.Begin(stimulus.Right)
	l.Record(i, ssvep.AttendRight)
	l.Record(i, ssvep.Indeterminate)

	var buf bytes.Buffer
	if err := WriteReport(&buf, Summarize(l)); err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}

	want := "Test #1 (right):\n" +
		"\tcorrect: 0.50\n" +
		"\tincorrect: 0.00\n" +
		"\tindeterminate: 0.50\n" +
		"\ttotal # of activations: 2.00\n\n" +
		"Total % of correct hs activation: 0.50\n" +
		"Total % of incorrect hs activation: 0.00\n" +
		"Total % of indeterminate activation: 0.50\n"
	if buf.String() != want {
		t.Errorf("Unexpected report:\n%s", buf.String())
	}
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}
