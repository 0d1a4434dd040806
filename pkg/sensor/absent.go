package sensor

import "context"

// Absent stands in for a device that could not be opened. It never produces
// samples and reports Disconnected, so the frame loop idles and the renderer
// shows the missing sensor instead of the program exiting.
type Absent struct {
	*worker
	typ string
	err error
}

// NewAbsent creates a placeholder for the source id of type typ. Start
// returns cause, which should wrap ErrSensorUnavailable.
func NewAbsent(id, typ string, cause error, opts ...Option) *Absent {
	if cause == nil {
		cause = ErrSensorUnavailable
	}
	a := &Absent{worker: newWorker(id, opts), typ: typ, err: cause}
	a.setStatus(Disconnected)
	return a
}

// Type returns the type of the missing source.
func (a *Absent) Type() string { return a.typ }

// Start always fails with the open error.
func (a *Absent) Start(ctx context.Context) error { return a.err }

// Stop reports that the source never started.
func (a *Absent) Stop() error { return ErrNotStarted }
