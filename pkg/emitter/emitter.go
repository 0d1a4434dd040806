// Package emitter holds the sinks the engine fans external bus events out
// to: calibration log files, an MQTT broker and WebSocket viewers.
package emitter

import (
	"context"
	"errors"

	"github.com/BYTE-6D65/blinkbreak/pkg/event"
)

// Common errors returned by emitters
var (
	ErrNotInitialized   = errors.New("emitter: not initialized")
	ErrInvalidPayload   = errors.New("emitter: invalid event payload")
	ErrUnsupportedEvent = errors.New("emitter: unsupported event type")
	ErrClosed           = errors.New("emitter: closed")
)

// Emitter is an event sink managed by the engine's EmitterManager, which
// subscribes it to the external bus with a filter and calls Emit for every
// matching event.
type Emitter interface {
	// ID returns a unique identifier, e.g. "mqtt:tcp://localhost:1883".
	ID() string

	// Type returns the emitter category, e.g. "calibration".
	Type() string

	// Emit handles one event. ErrUnsupportedEvent is not a failure; the
	// manager ignores it.
	Emit(ctx context.Context, evt event.Event) error

	// Close releases resources. Safe to call more than once.
	Close() error
}
