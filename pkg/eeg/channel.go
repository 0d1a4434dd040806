// Package eeg holds the sample store and per-window signal conditioning for
// the four-channel headband: O1 and O2 over the occipital lobes, T3 and T4
// over the temporal lobes.
package eeg

import (
	"fmt"
	"strings"
)

// Channel identifies one electrode of the headband.
type Channel int

const (
	O1 Channel = iota // occipital, left hemisphere
	O2                // occipital, right hemisphere
	T3                // temporal, left hemisphere
	T4                // temporal, right hemisphere
)

// NumChannels is the number of electrodes the sensor reports.
const NumChannels = 4

// Channels lists all channels in device order.
var Channels = [NumChannels]Channel{O1, O2, T3, T4}

// Lobe is the cortical region under an electrode.
type Lobe int

const (
	Occipital Lobe = iota
	Temporal
)

func (l Lobe) String() string {
	switch l {
	case Occipital:
		return "occ"
	case Temporal:
		return "tmp"
	default:
		return fmt.Sprintf("lobe(%d)", int(l))
	}
}

// Hemisphere is the side of the head an electrode sits on.
type Hemisphere int

const (
	LeftHemisphere Hemisphere = iota
	RightHemisphere
)

func (h Hemisphere) String() string {
	if h == LeftHemisphere {
		return "left"
	}
	return "right"
}

// Opposite returns the other hemisphere.
func (h Hemisphere) Opposite() Hemisphere {
	if h == LeftHemisphere {
		return RightHemisphere
	}
	return LeftHemisphere
}

func (c Channel) String() string {
	switch c {
	case O1:
		return "O1"
	case O2:
		return "O2"
	case T3:
		return "T3"
	case T4:
		return "T4"
	default:
		return fmt.Sprintf("CH%d", int(c))
	}
}

// Valid reports whether c is one of the four device channels.
func (c Channel) Valid() bool {
	return c >= O1 && c <= T4
}

// Lobe returns the lobe the channel records from.
func (c Channel) Lobe() Lobe {
	if c == T3 || c == T4 {
		return Temporal
	}
	return Occipital
}

// Hemisphere returns the side of the head the channel sits on.
func (c Channel) Hemisphere() Hemisphere {
	if c == O2 || c == T4 {
		return RightHemisphere
	}
	return LeftHemisphere
}

// ChannelFor returns the electrode over the given lobe and hemisphere.
func ChannelFor(lobe Lobe, h Hemisphere) Channel {
	switch {
	case lobe == Occipital && h == LeftHemisphere:
		return O1
	case lobe == Occipital:
		return O2
	case h == LeftHemisphere:
		return T3
	default:
		return T4
	}
}

// ParseChannel parses a channel name such as "O1" or "t4".
func ParseChannel(s string) (Channel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "O1":
		return O1, nil
	case "O2":
		return O2, nil
	case "T3":
		return T3, nil
	case "T4":
		return T4, nil
	}
	return 0, fmt.Errorf("unknown channel %q", s)
}
