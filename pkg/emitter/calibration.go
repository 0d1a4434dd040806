package emitter

import (
	"context"
	"fmt"
	"sync"

	"github.com/BYTE-6D65/blinkbreak/pkg/calibration"
	"github.com/BYTE-6D65/blinkbreak/pkg/event"
)

// CalibrationEmitter writes observations to a calibration session's sinks
// and the session summary to its report.
type CalibrationEmitter struct {
	session *calibration.Session
	codec   event.EventCodec

	mu     sync.Mutex
	closed bool
}

// NewCalibrationEmitter wraps session. The emitter owns it from now on and
// closes it on Close.
func NewCalibrationEmitter(session *calibration.Session) *CalibrationEmitter {
	return &CalibrationEmitter{session: session, codec: event.JSONCodec{}}
}

// Filter selects the events the emitter handles.
func (c *CalibrationEmitter) Filter() event.Filter {
	return event.Filter{Types: []string{event.TypeObservation, event.TypeSessionSummary}}
}

func (c *CalibrationEmitter) ID() string   { return "calibration:" + c.session.ID }
func (c *CalibrationEmitter) Type() string { return "calibration" }

// Session returns the wrapped session.
func (c *CalibrationEmitter) Session() *calibration.Session { return c.session }

// Emit records an observation or writes the report.
func (c *CalibrationEmitter) Emit(ctx context.Context, evt event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	switch evt.Type {
	case event.TypeObservation:
		var p event.ObservationPayload
		if err := evt.DecodePayload(&p, c.codec); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		flush, err := p.SideFlush()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		return c.session.Record(flush)

	case event.TypeSessionSummary:
		var p event.SummaryPayload
		if err := evt.DecodePayload(&p, c.codec); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		return c.session.WriteReport(p.Summary())
	}
	return ErrUnsupportedEvent
}

// Close closes the session's sinks.
func (c *CalibrationEmitter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.session.Close()
}
