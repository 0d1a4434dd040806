// Package sensor is the acquisition side of the pipeline: sources that fill
// an eeg.SampleBuffer from a background worker while the frame loop reads
// it.
package sensor

import (
	"context"
	"errors"

	"github.com/BYTE-6D65/blinkbreak/pkg/eeg"
)

// Common errors returned by sources
var (
	ErrSensorUnavailable = errors.New("sensor: no device connected")
	ErrAlreadyStarted    = errors.New("sensor: already started")
	ErrNotStarted        = errors.New("sensor: not started")
)

// Status is the connection state shown to the user.
type Status int32

const (
	Disconnected Status = iota
	Connected
	Acquiring
)

func (s Status) String() string {
	switch s {
	case Connected:
		return "connected"
	case Acquiring:
		return "acquiring"
	default:
		return "disconnected"
	}
}

// Source is a four-channel EEG device.
//
// Sources own a background worker that appends to their sample buffer. The
// worker polls for cancellation with a bounded timeout, so Stop returns
// promptly. A source that loses its device keeps serving the samples it
// has; the buffer simply stops growing.
type Source interface {
	// ID returns a unique identifier, e.g. "serial:/dev/ttyUSB0".
	ID() string

	// Type returns the source category ("synthetic", "line", "serial").
	Type() string

	// Start begins acquisition. It returns ErrAlreadyStarted if running and
	// ErrSensorUnavailable if the device cannot be reached.
	Start(ctx context.Context) error

	// Stop ends acquisition and waits for the worker. Returns
	// ErrNotStarted if not currently running.
	Stop() error

	// Status reports the connection state.
	Status() Status

	// Latest returns up to n of the most recent samples of ch.
	Latest(ch eeg.Channel, n int) []float64

	// Buffer returns the buffer the worker fills.
	Buffer() *eeg.SampleBuffer
}
