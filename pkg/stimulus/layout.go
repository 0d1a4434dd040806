// Package stimulus drives frame-locked flicker patches. A Layout names which
// patches are shown; a Scheduler steps them once per rendered frame.
package stimulus

import (
	"errors"
	"fmt"
	"strings"
)

// Side identifies a patch position on screen.
type Side int

const (
	Center Side = iota
	Left
	Right

	numSides
)

func (s Side) String() string {
	switch s {
	case Center:
		return "center"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// Opposite returns the other lateral side. Center is its own opposite.
func (s Side) Opposite() Side {
	switch s {
	case Left:
		return Right
	case Right:
		return Left
	}
	return s
}

// ParseSide parses "center", "left" or "right".
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(s) {
	case "center", "centre":
		return Center, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	return Center, fmt.Errorf("unknown side %q", s)
}

// Patch is one flickering rectangle. Each cycle lasts Period frames, of which
// the first OnFrames show the background color and the rest the pulse color.
type Patch struct {
	Period   int `yaml:"period"`
	OnFrames int `yaml:"on_frames"`
}

// NewPatch returns a patch with the default on-duration of period/2.
func NewPatch(period int) Patch {
	return Patch{Period: period, OnFrames: period / 2}
}

// Frequency returns the flicker frequency in whole Hz at fps frames per
// second.
func (p Patch) Frequency(fps int) int {
	if p.Period <= 0 {
		return 0
	}
	return fps / p.Period
}

// ErrInvalidLayout is wrapped by every *LayoutError.
var ErrInvalidLayout = errors.New("stimulus: invalid layout")

// LayoutError reports a patch that cannot be scheduled at the given frame
// rate.
type LayoutError struct {
	Side   Side
	Period int
	On     int
	FPS    int
	Reason string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("stimulus: %s patch period=%d on=%d at %d fps: %s",
		e.Side, e.Period, e.On, e.FPS, e.Reason)
}

func (e *LayoutError) Unwrap() error { return ErrInvalidLayout }

func (p Patch) validate(side Side, fps int) error {
	fail := func(reason string) error {
		return &LayoutError{Side: side, Period: p.Period, On: p.OnFrames, FPS: fps, Reason: reason}
	}
	switch {
	case fps <= 0:
		return fail("frame rate must be positive")
	case p.Period <= 0:
		return fail("period must be positive")
	case fps%p.Period != 0:
		return fail("period must evenly divide the frame rate")
	case p.OnFrames < 0 || p.OnFrames > p.Period:
		return fail("on-duration must be within [0, period]")
	}
	return nil
}

// Layout is one of CenterLayout, LeftLayout, RightLayout or BilateralLayout.
type Layout interface {
	// Name returns the layout's config name.
	Name() string

	// Patches returns the active patches in Center, Left, Right order.
	Patches() []SidePatch

	isLayout()
}

// SidePatch pairs a patch with its position.
type SidePatch struct {
	Side  Side
	Patch Patch
}

// CenterLayout shows one patch in the middle of the screen.
type CenterLayout struct{ Patch Patch }

// LeftLayout shows one patch to the left of the fixation cross.
type LeftLayout struct{ Patch Patch }

// RightLayout shows one patch to the right of the fixation cross.
type RightLayout struct{ Patch Patch }

// BilateralLayout shows independent left and right patches, typically at
// different frequencies.
type BilateralLayout struct {
	Left  Patch
	Right Patch
}

func (CenterLayout) Name() string    { return "center" }
func (LeftLayout) Name() string      { return "left" }
func (RightLayout) Name() string     { return "right" }
func (BilateralLayout) Name() string { return "bilateral" }

func (l CenterLayout) Patches() []SidePatch { return []SidePatch{{Center, l.Patch}} }
func (l LeftLayout) Patches() []SidePatch   { return []SidePatch{{Left, l.Patch}} }
func (l RightLayout) Patches() []SidePatch  { return []SidePatch{{Right, l.Patch}} }
func (l BilateralLayout) Patches() []SidePatch {
	return []SidePatch{{Left, l.Left}, {Right, l.Right}}
}

func (CenterLayout) isLayout()    {}
func (LeftLayout) isLayout()      {}
func (RightLayout) isLayout()     {}
func (BilateralLayout) isLayout() {}

// Lateral reports whether the layout has side patches and a fixation cross.
func Lateral(l Layout) bool {
	_, center := l.(CenterLayout)
	return !center
}

// Validate rejects layouts whose patches do not align to whole frames at
// fps. It must be called before the frame loop starts.
func Validate(l Layout, fps int) error {
	if l == nil {
		return fmt.Errorf("%w: no layout", ErrInvalidLayout)
	}
	for _, sp := range l.Patches() {
		if err := sp.Patch.validate(sp.Side, fps); err != nil {
			return err
		}
	}
	return nil
}

// NewLayout builds a layout by name. Patches with a zero on-duration get the
// default of period/2.
func NewLayout(name string, center, left, right Patch) (Layout, error) {
	center, left, right = withDefaultOn(center), withDefaultOn(left), withDefaultOn(right)

	switch strings.ToLower(name) {
	case "center", "":
		return CenterLayout{Patch: center}, nil
	case "left":
		return LeftLayout{Patch: left}, nil
	case "right":
		return RightLayout{Patch: right}, nil
	case "bilateral", "both":
		return BilateralLayout{Left: left, Right: right}, nil
	}
	return nil, fmt.Errorf("%w: unknown layout %q", ErrInvalidLayout, name)
}

func withDefaultOn(p Patch) Patch {
	if p.OnFrames == 0 {
		p.OnFrames = p.Period / 2
	}
	return p
}
