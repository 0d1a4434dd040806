package engine

import (
	"github.com/BYTE-6D65/blinkbreak/pkg/blink"
	"github.com/BYTE-6D65/blinkbreak/pkg/game"
	"github.com/BYTE-6D65/blinkbreak/pkg/paddle"
	"github.com/BYTE-6D65/blinkbreak/pkg/sensor"
	"github.com/BYTE-6D65/blinkbreak/pkg/ssvep"
	"github.com/BYTE-6D65/blinkbreak/pkg/stimulus"
	"github.com/BYTE-6D65/blinkbreak/pkg/trial"
)

// Classified is a reducer flush with its verdict.
type Classified struct {
	ssvep.SideFlush
	Verdict ssvep.Verdict
}

// FrameResult is everything the renderer needs for one frame. The pipeline
// never draws; it only hands this record over.
type FrameResult struct {
	Frame int64

	Control blink.ControlEvent
	Gauge   int
	Plan    paddle.Plan
	Draw    stimulus.DrawState

	// Play mode
	Blink []blink.ChannelResult
	Game  game.Report

	// Calibration mode
	Trial   trial.Status
	Flushes []Classified

	Sensor sensor.Status

	// Skipped is set when a windowed computation lacked samples.
	Skipped bool
}

// FramePayload is the bci.frame event body streamed to viewers.
type FramePayload struct {
	Frame    int64             `json:"frame"`
	Control  string            `json:"control"`
	Gauge    int               `json:"gauge"`
	Plan     paddle.Plan       `json:"plan"`
	Flashing bool              `json:"flashing"`
	Patches  map[string]string `json:"patches,omitempty"`
	Trial    *TrialStatus      `json:"trial,omitempty"`
	Verdicts []string          `json:"verdicts,omitempty"`
	Sensor   string            `json:"sensor"`
	Skipped  bool              `json:"skipped,omitempty"`
}

// TrialStatus is the calibration part of a FramePayload.
type TrialStatus struct {
	State     string `json:"state"`
	Trial     int    `json:"trial"`
	Trials    int    `json:"trials"`
	Side      string `json:"side"`
	Remaining int    `json:"remaining"`
}

// Payload converts the result for the bus.
func (r FrameResult) Payload() FramePayload {
	p := FramePayload{
		Frame:    r.Frame,
		Control:  r.Control.String(),
		Gauge:    r.Gauge,
		Plan:     r.Plan,
		Flashing: r.Draw.Flashing,
		Sensor:   r.Sensor.String(),
		Skipped:  r.Skipped,
	}
	for _, side := range []stimulus.Side{stimulus.Center, stimulus.Left, stimulus.Right} {
		if c := r.Draw.Color(side); c != stimulus.Hidden {
			if p.Patches == nil {
				p.Patches = make(map[string]string)
			}
			p.Patches[side.String()] = c.String()
		}
	}
	if r.Trial.Trials > 0 {
		p.Trial = &TrialStatus{
			State:     string(r.Trial.State),
			Trial:     r.Trial.Trial,
			Trials:    r.Trial.Trials,
			Side:      r.Trial.Side.String(),
			Remaining: r.Trial.Remaining,
		}
	}
	for _, f := range r.Flushes {
		p.Verdicts = append(p.Verdicts, f.Verdict.String())
	}
	return p
}
