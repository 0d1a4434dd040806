package trial

import (
	"fmt"
	"io"
	"sync"

	"github.com/BYTE-6D65/blinkbreak/pkg/ssvep"
	"github.com/BYTE-6D65/blinkbreak/pkg/stimulus"
)

// Entry is the tally of one trial.
type Entry struct {
	Side  stimulus.Side `json:"side"`
	Left  int           `json:"left"`
	Right int           `json:"right"`
	Indet int           `json:"indet"`
}

// Total returns the number of recorded verdicts.
func (e Entry) Total() int {
	return e.Left + e.Right + e.Indet
}

// Result is a trial's verdict shares. Correct counts verdicts for the cued
// side, Incorrect for the other side. A trial with no verdicts scores zero
// everywhere; a center cue has no correct or incorrect side.
type Result struct {
	Trial         int           `json:"trial"`
	Side          stimulus.Side `json:"side"`
	Correct       float64       `json:"correct"`
	Incorrect     float64       `json:"incorrect"`
	Indeterminate float64       `json:"indeterminate"`
	Total         int           `json:"total"`
}

// Result computes the shares of e.
func (e Entry) Result(trial int) Result {
	r := Result{Trial: trial, Side: e.Side, Total: e.Total()}
	if r.Total == 0 {
		return r
	}

	total := float64(r.Total)
	left, right := float64(e.Left)/total, float64(e.Right)/total
	r.Indeterminate = float64(e.Indet) / total

	switch e.Side {
	case stimulus.Left:
		r.Correct, r.Incorrect = left, right
	case stimulus.Right:
		r.Correct, r.Incorrect = right, left
	}
	return r
}

// Log maps trial index to its tally. Entries are created when a trial's
// countdown starts and are never removed during a session.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewLog creates an empty log with room for n trials.
func NewLog(n int) *Log {
	return &Log{entries: make([]Entry, 0, n)}
}

// Begin opens the tally for the next trial and returns its index.
func (l *Log) Begin(side stimulus.Side) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Side: side})
	return len(l.entries) - 1
}

// Record adds a verdict to trial i.
func (l *Log) Record(i int, v ssvep.Verdict) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.entries) {
		return
	}
	switch v {
	case ssvep.AttendLeft:
		l.entries[i].Left++
	case ssvep.AttendRight:
		l.entries[i].Right++
	default:
		l.entries[i].Indet++
	}
}

// Entry returns trial i.
func (l *Log) Entry(i int) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.entries) {
		return Entry{}, false
	}
	return l.entries[i], true
}

// Len returns the number of trials started.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a copy of every tally.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}

// Summary averages trial results over the session.
type Summary struct {
	Trials        []Result `json:"trials"`
	Correct       float64  `json:"correct"`
	Incorrect     float64  `json:"incorrect"`
	Indeterminate float64  `json:"indeterminate"`
}

// Summarize computes per-trial results and their session averages.
func Summarize(l *Log) Summary {
	entries := l.Entries()
	s := Summary{Trials: make([]Result, len(entries))}
	if len(entries) == 0 {
		return s
	}

	for i, e := range entries {
		r := e.Result(i + 1)
		s.Trials[i] = r
		s.Correct += r.Correct
		s.Incorrect += r.Incorrect
		s.Indeterminate += r.Indeterminate
	}

	n := float64(len(entries))
	s.Correct /= n
	s.Incorrect /= n
	s.Indeterminate /= n
	return s
}

// WriteReport writes s in the flicker.log layout.
func WriteReport(w io.Writer, s Summary) error {
	for _, r := range s.Trials {
		_, err := fmt.Fprintf(w, "Test #%d (%s):\n\tcorrect: %.2f\n\tincorrect: %.2f\n\tindeterminate: %.2f\n\ttotal # of activations: %.2f\n\n",
			r.Trial, r.Side, r.Correct, r.Incorrect, r.Indeterminate, float64(r.Total))
		if err != nil {
			return fmt.Errorf("write trial %d: %w", r.Trial, err)
		}
	}

	_, err := fmt.Fprintf(w, "Total %% of correct hs activation: %.2f\nTotal %% of incorrect hs activation: %.2f\nTotal %% of indeterminate activation: %.2f\n",
		s.Correct, s.Incorrect, s.Indeterminate)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
