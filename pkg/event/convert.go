package event

import (
	"fmt"

	"github.com/BYTE-6D65/blinkbreak/pkg/blink"
	"github.com/BYTE-6D65/blinkbreak/pkg/eeg"
	"github.com/BYTE-6D65/blinkbreak/pkg/ssvep"
	"github.com/BYTE-6D65/blinkbreak/pkg/stimulus"
	"github.com/BYTE-6D65/blinkbreak/pkg/trial"
)

// ControlType returns the topic for a control event, or "" for None.
func ControlType(e blink.ControlEvent) string {
	switch e {
	case blink.Left:
		return TypeControlLeft
	case blink.Right:
		return TypeControlRight
	}
	return ""
}

// NewObservation builds the payload for a classified flush.
func NewObservation(f ssvep.SideFlush, v ssvep.Verdict) ObservationPayload {
	p := ObservationPayload{
		Side:      f.Route.Side.String(),
		Frequency: f.Frequency,
		Index:     f.Index,
		Recovered: f.Recovered,
		Processed: f.Route.Processed.String(),
		Mirrored:  f.Route.Mirrored.String(),
		Delta:     f.Delta(),
		Verdict:   v.String(),
		Channels:  make([]ChannelObservation, len(f.Observations)),
	}
	for i, o := range f.Observations {
		p.Channels[i] = ChannelObservation{
			Channel:    o.Channel.String(),
			PeakToPeak: o.PeakToPeak,
			Samples:    o.Samples,
		}
	}
	return p
}

// SideFlush rebuilds the flush the payload was made from.
func (p ObservationPayload) SideFlush() (ssvep.SideFlush, error) {
	side, err := stimulus.ParseSide(p.Side)
	if err != nil {
		return ssvep.SideFlush{}, fmt.Errorf("observation: %w", err)
	}
	f := ssvep.SideFlush{
		Route: ssvep.RouteFor(side),
		Flush: ssvep.Flush{
			Index:        p.Index,
			Frequency:    p.Frequency,
			Recovered:    p.Recovered,
			Observations: make([]ssvep.Observation, len(p.Channels)),
		},
	}
	for i, c := range p.Channels {
		ch, err := eeg.ParseChannel(c.Channel)
		if err != nil {
			return ssvep.SideFlush{}, fmt.Errorf("observation: %w", err)
		}
		f.Observations[i] = ssvep.Observation{Channel: ch, PeakToPeak: c.PeakToPeak, Samples: c.Samples}
	}
	return f, nil
}

// NewTrialPayload converts a trial result.
func NewTrialPayload(r trial.Result, e trial.Entry, trials int) TrialPayload {
	return TrialPayload{
		Trial:         r.Trial,
		Trials:        trials,
		Side:          r.Side.String(),
		Left:          e.Left,
		Right:         e.Right,
		Indeterminate: e.Indet,
		Correct:       r.Correct,
		Incorrect:     r.Incorrect,
		IndetShare:    r.Indeterminate,
	}
}

// NewSummaryPayload converts a session summary.
func NewSummaryPayload(s trial.Summary, entries []trial.Entry) SummaryPayload {
	p := SummaryPayload{
		Trials:        make([]TrialPayload, len(s.Trials)),
		Correct:       s.Correct,
		Incorrect:     s.Incorrect,
		Indeterminate: s.Indeterminate,
	}
	for i, r := range s.Trials {
		var e trial.Entry
		if i < len(entries) {
			e = entries[i]
		}
		p.Trials[i] = NewTrialPayload(r, e, len(s.Trials))
	}
	return p
}

// Summary rebuilds the trial summary.
func (p SummaryPayload) Summary() trial.Summary {
	s := trial.Summary{
		Trials:        make([]trial.Result, len(p.Trials)),
		Correct:       p.Correct,
		Incorrect:     p.Incorrect,
		Indeterminate: p.Indeterminate,
	}
	for i, t := range p.Trials {
		side, _ := stimulus.ParseSide(t.Side)
		s.Trials[i] = trial.Result{
			Trial:         t.Trial,
			Side:          side,
			Correct:       t.Correct,
			Incorrect:     t.Incorrect,
			Indeterminate: t.IndetShare,
			Total:         t.Left + t.Right + t.Indeterminate,
		}
	}
	return s
}
