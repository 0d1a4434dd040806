package stimulus

// Color is what a patch shows on a given frame.
type Color uint8

const (
	// Hidden means the patch is not part of the layout.
	Hidden Color = iota
	Background
	Pulse
)

func (c Color) String() string {
	switch c {
	case Background:
		return "background"
	case Pulse:
		return "pulse"
	default:
		return "hidden"
	}
}

// DrawState is the per-frame output handed to the renderer.
type DrawState struct {
	Frame    int
	Flashing bool
	Colors   [numSides]Color
}

// Color returns the color of the patch at side.
func (d DrawState) Color(side Side) Color {
	if side < 0 || side >= numSides {
		return Hidden
	}
	return d.Colors[side]
}

type patchState struct {
	side  Side
	patch Patch
	count int
}

// Scheduler steps every patch of a layout once per frame. Each patch keeps a
// counter that starts at 1 and wraps to 1 after Period.
type Scheduler struct {
	layout  Layout
	fps     int
	enabled bool
	frame   int
	patches []patchState
}

// NewScheduler validates layout against fps and returns a Scheduler. A
// disabled scheduler keeps every patch on the background color, which is
// how no-flicker baselines are recorded.
func NewScheduler(layout Layout, fps int, enabled bool) (*Scheduler, error) {
	if err := Validate(layout, fps); err != nil {
		return nil, err
	}

	s := &Scheduler{layout: layout, fps: fps, enabled: enabled}
	for _, sp := range layout.Patches() {
		s.patches = append(s.patches, patchState{side: sp.Side, patch: sp.Patch, count: 1})
	}
	return s, nil
}

// Layout returns the scheduled layout.
func (s *Scheduler) Layout() Layout {
	return s.layout
}

// Enabled reports whether patches flicker.
func (s *Scheduler) Enabled() bool {
	return s.enabled
}

// Frequency returns the flicker frequency of the patch at side, or 0 if
// there is none.
func (s *Scheduler) Frequency(side Side) int {
	for _, p := range s.patches {
		if p.side == side {
			return p.patch.Frequency(s.fps)
		}
	}
	return 0
}

// Step advances every patch by one frame and returns what to draw.
func (s *Scheduler) Step() DrawState {
	s.frame++
	ds := DrawState{Frame: s.frame, Flashing: s.enabled}

	for i := range s.patches {
		p := &s.patches[i]
		if !s.enabled {
			ds.Colors[p.side] = Background
			continue
		}

		if p.count <= p.patch.OnFrames {
			ds.Colors[p.side] = Background
		} else {
			ds.Colors[p.side] = Pulse
		}

		if p.count >= p.patch.Period {
			p.count = 1
		} else {
			p.count++
		}
	}

	return ds
}

// Idle returns a draw state with the layout's patches hidden, used outside
// the stimulus phase.
func (s *Scheduler) Idle() DrawState {
	return DrawState{Frame: s.frame}
}

// Reset restarts every patch cycle.
func (s *Scheduler) Reset() {
	s.frame = 0
	for i := range s.patches {
		s.patches[i].count = 1
	}
}
