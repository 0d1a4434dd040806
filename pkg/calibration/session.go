package calibration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BYTE-6D65/blinkbreak/pkg/registry"
	"github.com/BYTE-6D65/blinkbreak/pkg/ssvep"
	"github.com/BYTE-6D65/blinkbreak/pkg/stimulus"
	"github.com/BYTE-6D65/blinkbreak/pkg/trial"
)

// ErrSinkWrite wraps every failure to write a session file.
var ErrSinkWrite = errors.New("calibration: sink write failed")

// ReportName is the trial report file written at session close.
const ReportName = "flicker.log"

// Config describes a calibration session.
type Config struct {
	Dir        string // root; plots/ and logs/ are created below it
	Mode       Mode
	Condition  Condition
	Layout     stimulus.Layout
	SampleRate int

	// Detrend rewrites plot files drift corrected at close.
	Detrend bool
}

// Session owns the sinks of one calibration run.
type Session struct {
	ID      string
	Started time.Time

	cfg    Config
	sinks  *registry.Registry[string, *Sink]
	logger *zap.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSession creates the output directories and opens a sink for every
// channel of every route the layout uses.
func NewSession(cfg Config, opts ...SessionOption) (*Session, error) {
	if cfg.Layout == nil {
		return nil, fmt.Errorf("calibration: %w: no layout", stimulus.ErrInvalidLayout)
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("calibration: sample rate %d must be positive", cfg.SampleRate)
	}

	s := &Session{
		ID:      uuid.NewString(),
		Started: time.Now(),
		cfg:     cfg,
		sinks:   registry.New[string, *Sink](),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	plots := filepath.Join(cfg.Dir, "plots")
	if err := os.MkdirAll(plots, 0o755); err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(cfg.Dir, "logs"), 0o755); err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}

	for _, sp := range cfg.Layout.Patches() {
		for _, ch := range ssvep.RouteFor(sp.Side).Channels() {
			key := Key{Channel: ch, Side: sp.Side, Condition: cfg.Condition}
			stem := key.Stem(cfg.Mode)
			sink, err := openSink(key,
				filepath.Join(plots, stem+".txt"),
				filepath.Join(plots, stem+"_data.txt"),
				cfg.SampleRate, cfg.Detrend)
			if err != nil {
				s.Close()
				return nil, fmt.Errorf("calibration: %w", err)
			}
			s.sinks.Set(key.String(), sink)
		}
	}

	s.logger.Info("[calibration] session opened",
		zap.String("session", s.ID),
		zap.String("mode", cfg.Mode.String()),
		zap.String("condition", cfg.Condition.String()),
		zap.String("layout", cfg.Layout.Name()),
		zap.Int("sinks", s.sinks.Len()))
	return s, nil
}

// Config returns the session configuration.
func (s *Session) Config() Config { return s.cfg }

// Sink returns the sink for key.
func (s *Session) Sink(key Key) (*Sink, bool) {
	return s.sinks.Get(key.String())
}

// Sinks returns all sinks ordered by key.
func (s *Session) Sinks() []*Sink {
	entries := s.sinks.List()
	out := make([]*Sink, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out
}

// Record writes every observation of a flush to its sink. Observations
// without a sink are ignored.
func (s *Session) Record(f ssvep.SideFlush) error {
	var errs []error
	for _, obs := range f.Observations {
		key := Key{Channel: obs.Channel, Side: f.Route.Side, Condition: s.cfg.Condition}
		sink, ok := s.sinks.Get(key.String())
		if !ok {
			continue
		}
		if err := sink.Write(obs.PeakToPeak, obs.Samples); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	return nil
}

// ReportPath returns where WriteReport puts flicker.log.
func (s *Session) ReportPath() string {
	return filepath.Join(s.cfg.Dir, "logs", ReportName)
}

// WriteReport writes the trial report.
func (s *Session) WriteReport(summary trial.Summary) error {
	f, err := os.Create(s.ReportPath())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	if err := trial.WriteReport(f, summary); err != nil {
		f.Close()
		return fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	s.logger.Info("[calibration] report written",
		zap.String("path", s.ReportPath()),
		zap.Int("trials", len(summary.Trials)),
		zap.Float64("correct", summary.Correct))
	return nil
}

// Close closes every sink. It keeps going past failures and returns them
// joined.
func (s *Session) Close() error {
	var errs []error
	s.sinks.Each(func(key string, sink *Sink) error {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
		return nil
	})
	s.sinks.Clear()

	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("[calibration] close failed", zap.String("session", s.ID), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	s.logger.Info("[calibration] session closed",
		zap.String("session", s.ID),
		zap.Duration("elapsed", time.Since(s.Started)))
	return nil
}
