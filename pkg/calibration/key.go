// Package calibration records calibration sessions to plain-text files: one
// plot file and one data file per channel, stimulus side and condition, plus
// the flicker.log trial report.
package calibration

import (
	"fmt"

	"github.com/BYTE-6D65/blinkbreak/pkg/eeg"
	"github.com/BYTE-6D65/blinkbreak/pkg/stimulus"
)

// Mode is the calibration protocol.
type Mode int

const (
	// TrialMode runs alternating cued trials.
	TrialMode Mode = iota
	// BasicMode runs one long trial on a fixed layout.
	BasicMode
)

func (m Mode) String() string {
	if m == BasicMode {
		return "basic"
	}
	return "trial"
}

// Condition tells whether the stimulus was drawn while recording.
type Condition int

const (
	Flicker Condition = iota
	NoFlicker
)

func (c Condition) String() string {
	if c == NoFlicker {
		return "no_flicker"
	}
	return "flicker"
}

// ParseCondition parses "flicker" or "no_flicker".
func ParseCondition(s string) (Condition, error) {
	switch s {
	case "flicker", "":
		return Flicker, nil
	case "no_flicker", "no-flicker":
		return NoFlicker, nil
	}
	return 0, fmt.Errorf("unknown condition %q", s)
}

// Key identifies one pair of log files.
type Key struct {
	Channel   eeg.Channel
	Side      stimulus.Side
	Condition Condition
}

// Lobe returns the lobe of the key's channel.
func (k Key) Lobe() eeg.Lobe {
	return k.Channel.Lobe()
}

// Stem returns the file name stem, e.g. "occ_1_left_basic_flicker". The
// hemisphere index is 1 for the left electrode and 2 for the right one; the
// center side is left out of the name.
func (k Key) Stem(mode Mode) string {
	index := 1
	if k.Channel.Hemisphere() == eeg.RightHemisphere {
		index = 2
	}
	side := ""
	if k.Side != stimulus.Center {
		side = "_" + k.Side.String()
	}
	return fmt.Sprintf("%s_%d%s_%s_%s", k.Lobe(), index, side, mode, k.Condition)
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Channel, k.Side, k.Condition)
}
