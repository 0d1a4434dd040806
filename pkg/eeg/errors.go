package eeg

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientWindow is returned when fewer samples are available
	// than a windowed computation needs. Callers skip the computation for
	// the current frame.
	ErrInsufficientWindow = errors.New("eeg: insufficient samples for window")

	// ErrDegenerateRegression is reported when a window's regression slope is
	// undefined. The window is treated as having zero drift.
	ErrDegenerateRegression = errors.New("eeg: degenerate regression window")
)

// InsufficientWindowError carries how many samples were available.
type InsufficientWindowError struct {
	Channel Channel
	Have    int
	Need    int
}

func (e *InsufficientWindowError) Error() string {
	return fmt.Sprintf("eeg: channel %s has %d of %d samples", e.Channel, e.Have, e.Need)
}

// Is makes errors.Is(err, ErrInsufficientWindow) match.
func (e *InsufficientWindowError) Is(target error) bool {
	return target == ErrInsufficientWindow
}
