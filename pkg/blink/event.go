package blink

// ControlEvent is a discrete horizontal paddle command produced by a blink.
type ControlEvent int8

const (
	None  ControlEvent = 0
	Left  ControlEvent = -1
	Right ControlEvent = 1
)

// FromDirection maps a signed direction onto a ControlEvent.
func FromDirection(d int) ControlEvent {
	switch {
	case d > 0:
		return Right
	case d < 0:
		return Left
	default:
		return None
	}
}

// Direction returns -1, 0 or 1.
func (e ControlEvent) Direction() int {
	return int(e)
}

func (e ControlEvent) String() string {
	switch e {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "none"
	}
}
