package sensor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BYTE-6D65/blinkbreak/pkg/clock"
	"github.com/BYTE-6D65/blinkbreak/pkg/eeg"
)

const (
	// DefaultPollInterval bounds how long a worker goes without checking
	// for cancellation.
	DefaultPollInterval = 5 * time.Millisecond

	// DefaultStopTimeout is how long Stop waits for the worker.
	DefaultStopTimeout = time.Second
)

// Option configures a source.
type Option func(*options)

type options struct {
	logger        *zap.Logger
	clock         clock.Clock
	buffer        *eeg.SampleBuffer
	sessionLength time.Duration
	pollInterval  time.Duration
	stopTimeout   time.Duration
	rateWindow    int
	nominalRate   float64
}

func defaultOptions() options {
	return options{
		logger:       zap.NewNop(),
		clock:        clock.NewSystemClock(),
		pollInterval: DefaultPollInterval,
		stopTimeout:  DefaultStopTimeout,
		rateWindow:   50,
		nominalRate:  250,
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the clock used for pacing and rate estimation.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithBuffer makes the source fill buf instead of a private buffer.
func WithBuffer(buf *eeg.SampleBuffer) Option {
	return func(o *options) {
		o.buffer = buf
	}
}

// WithSessionLength stops acquisition on its own after d. Zero disables the
// cap.
func WithSessionLength(d time.Duration) Option {
	return func(o *options) {
		o.sessionLength = d
	}
}

// WithPollInterval sets the worker's cancellation polling bound.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithStopTimeout bounds how long Stop waits for the worker.
func WithStopTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.stopTimeout = d
		}
	}
}

// WithNominalRate sets the expected sample rate in Hz.
func WithNominalRate(hz float64) Option {
	return func(o *options) {
		if hz > 0 {
			o.nominalRate = hz
		}
	}
}

// worker is the lifecycle shared by every source: one goroutine, a cancel
// function acting as the stop flag, and a done channel Stop waits on.
type worker struct {
	opts   options
	id     string
	buffer *eeg.SampleBuffer
	rate   *clock.RateEstimator

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool

	// onStop runs after cancellation, to unblock a worker stuck in I/O.
	onStop func()

	status atomic.Int32
}

func newWorker(id string, opts []Option) *worker {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	buf := o.buffer
	if buf == nil {
		buf = eeg.NewSampleBuffer()
	}
	return &worker{
		opts:   o,
		id:     id,
		buffer: buf,
		rate:   clock.NewRateEstimator(o.nominalRate, o.rateWindow),
	}
}

// run starts fn in the background. fn must return soon after ctx is done.
func (w *worker) run(parent context.Context, fn func(ctx context.Context)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if w.opts.sessionLength > 0 {
		ctx, cancel = context.WithTimeout(parent, w.opts.sessionLength)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	w.cancel = cancel
	w.done = make(chan struct{})
	w.started = true
	w.setStatus(Acquiring)

	go func() {
		defer close(w.done)
		// A source that lost its device keeps reporting Disconnected.
		defer w.status.CompareAndSwap(int32(Acquiring), int32(Connected))
		fn(ctx)
		w.opts.logger.Info("[sensor] acquisition stopped",
			zap.String("source", w.id),
			zap.Int64("samples", w.buffer.Len(eeg.O1)))
	}()

	w.opts.logger.Info("[sensor] acquisition started", zap.String("source", w.id))
	return nil
}

func (w *worker) stop() error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return ErrNotStarted
	}
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	if w.onStop != nil {
		w.onStop()
	}
	select {
	case <-done:
		w.mu.Lock()
		w.started = false
		w.mu.Unlock()
		return nil
	case <-time.After(w.opts.stopTimeout):
		return fmt.Errorf("sensor: %s worker did not stop within %s", w.id, w.opts.stopTimeout)
	}
}

// append stores one reading and feeds the rate estimator.
func (w *worker) append(r eeg.Reading) {
	w.buffer.Append(r)
	n := w.buffer.Len(eeg.O1)
	if n%int64(w.opts.nominalRate/10+1) == 0 {
		w.rate.Observe(n, w.opts.clock.Now())
	}
}

func (w *worker) setStatus(s Status) { w.status.Store(int32(s)) }

func (w *worker) Status() Status { return Status(w.status.Load()) }

func (w *worker) ID() string { return w.id }

func (w *worker) Buffer() *eeg.SampleBuffer { return w.buffer }

func (w *worker) Latest(ch eeg.Channel, n int) []float64 {
	return w.buffer.Latest(ch, n)
}

// Rate returns the estimated effective sample rate in Hz.
func (w *worker) Rate() float64 {
	return w.rate.Rate()
}
