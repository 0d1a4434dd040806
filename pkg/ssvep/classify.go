package ssvep

import (
	"math"

	"github.com/BYTE-6D65/blinkbreak/pkg/stimulus"
)

// Verdict is the hemisphere a flush attributes attention to.
type Verdict int

const (
	Indeterminate Verdict = iota
	AttendLeft
	AttendRight
)

func (v Verdict) String() string {
	switch v {
	case AttendLeft:
		return "left"
	case AttendRight:
		return "right"
	default:
		return "indet"
	}
}

// Side maps a lateral verdict onto a stimulus side.
func (v Verdict) Side() (stimulus.Side, bool) {
	switch v {
	case AttendLeft:
		return stimulus.Left, true
	case AttendRight:
		return stimulus.Right, true
	}
	return stimulus.Center, false
}

func verdictFor(side stimulus.Side) Verdict {
	switch side {
	case stimulus.Left:
		return AttendLeft
	case stimulus.Right:
		return AttendRight
	}
	return Indeterminate
}

// Classifier turns a lateral flush into a threshold-crossing verdict. A
// stronger response on the processed (contralateral) channel counts for the
// flush's stimulus side, a stronger mirrored response for the other side,
// and differences within Margin are indeterminate.
type Classifier struct {
	Margin float64
}

// Classify returns the verdict for f. Center flushes are always
// indeterminate.
func (c Classifier) Classify(f SideFlush) Verdict {
	if f.Route.Side == stimulus.Center {
		return Indeterminate
	}
	delta := f.Delta()
	if math.IsNaN(delta) || math.Abs(delta) <= c.Margin {
		return Indeterminate
	}
	if delta > 0 {
		return verdictFor(f.Route.Side)
	}
	return verdictFor(f.Route.Side.Opposite())
}
