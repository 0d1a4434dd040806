// Package engine wires the signal pipeline together: configuration, event
// buses, acquisition sources, bus emitters and the per-frame Step that turns
// the sample buffer into control events, SSVEP verdicts and draw state.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BYTE-6D65/blinkbreak/pkg/clock"
	"github.com/BYTE-6D65/blinkbreak/pkg/event"
	"github.com/BYTE-6D65/blinkbreak/pkg/registry"
	"github.com/BYTE-6D65/blinkbreak/pkg/sensor"
	"github.com/BYTE-6D65/blinkbreak/pkg/telemetry"
)

// Engine provides the shared infrastructure every pipeline component is
// injected with.
type Engine struct {
	internalBus event.Bus
	externalBus event.Bus
	errorBus    *event.ErrorBus
	clock       clock.Clock
	sources     *registry.Registry[string, sensor.Source]
	metrics     *telemetry.Metrics
	logger      *zap.Logger
}

// EngineOption configures an Engine instance.
type EngineOption func(*Engine)

// WithInternalBus sets the internal event bus (per-frame records).
func WithInternalBus(bus event.Bus) EngineOption {
	return func(e *Engine) {
		e.internalBus = bus
	}
}

// WithExternalBus sets the external event bus (domain events).
func WithExternalBus(bus event.Bus) EngineOption {
	return func(e *Engine) {
		e.externalBus = bus
	}
}

// WithErrorBus sets the bus absorbed errors are reported on.
func WithErrorBus(bus *event.ErrorBus) EngineOption {
	return func(e *Engine) {
		e.errorBus = bus
	}
}

// WithClock sets the clock implementation.
func WithClock(clk clock.Clock) EngineOption {
	return func(e *Engine) {
		e.clock = clk
	}
}

// WithMetrics records pipeline and bus metrics on m.
func WithMetrics(m *telemetry.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates a new Engine. Components not set by an option default to:
//   - InternalBus: InMemoryBus with 64 buffer, drop-slow enabled
//   - ExternalBus: InMemoryBus with 256 buffer, drop-slow disabled
//   - ErrorBus: 32 buffer
//   - Clock: SystemClock (monotonic)
//   - Metrics: none
//   - Logger: no-op
func New(opts ...EngineOption) *Engine {
	engine := &Engine{
		sources: registry.New[string, sensor.Source](),
	}
	for _, opt := range opts {
		opt(engine)
	}

	if engine.internalBus == nil {
		engine.internalBus = event.NewInMemoryBus(
			event.WithBufferSize(64),
			event.WithDropSlow(true),
			event.WithBusName("internal"),
			event.WithBusMetrics(engine.metrics),
		)
	}
	if engine.externalBus == nil {
		engine.externalBus = event.NewInMemoryBus(
			event.WithBufferSize(256),
			event.WithDropSlow(false),
			event.WithBusName("external"),
			event.WithBusMetrics(engine.metrics),
		)
	}
	if engine.errorBus == nil {
		engine.errorBus = event.NewErrorBus(32)
	}
	if engine.clock == nil {
		engine.clock = clock.NewSystemClock()
	}
	if engine.logger == nil {
		engine.logger = zap.NewNop()
	}

	return engine
}

// InternalBus returns the internal event bus.
func (e *Engine) InternalBus() event.Bus {
	return e.internalBus
}

// ExternalBus returns the external event bus.
func (e *Engine) ExternalBus() event.Bus {
	return e.externalBus
}

// ErrorBus returns the error bus.
func (e *Engine) ErrorBus() *event.ErrorBus {
	return e.errorBus
}

// Clock returns the clock implementation.
func (e *Engine) Clock() clock.Clock {
	return e.clock
}

// Sources returns the registry of acquisition sources.
func (e *Engine) Sources() *registry.Registry[string, sensor.Source] {
	return e.sources
}

// Metrics returns the metrics, or nil when none were configured.
func (e *Engine) Metrics() *telemetry.Metrics {
	return e.metrics
}

// Logger returns the logger.
func (e *Engine) Logger() *zap.Logger {
	return e.logger
}

// ReportError publishes an absorbed error on the error bus and counts it.
func (e *Engine) ReportError(evt event.ErrorEvent) {
	if e.metrics != nil {
		e.metrics.ErrorsReported.WithLabelValues(evt.Code).Inc()
	}
	e.errorBus.Publish(evt)

	fields := []zap.Field{
		zap.String("code", evt.Code),
		zap.String("component", evt.Component),
		zap.Int64("frame", evt.Frame),
	}
	if evt.Severity >= event.WarningSeverity {
		e.logger.Warn("[engine] "+evt.Message, fields...)
	} else {
		e.logger.Debug("[engine] "+evt.Message, fields...)
	}
}

// Shutdown closes the buses. It waits for them or for ctx, whichever
// comes first.
func (e *Engine) Shutdown(ctx context.Context) error {
	closers := []struct {
		name  string
		close func() error
	}{
		{"internal bus", e.internalBus.Close},
		{"external bus", e.externalBus.Close},
		{"error bus", e.errorBus.Close},
	}

	errCh := make(chan error, len(closers))
	for _, c := range closers {
		go func(name string, close func() error) {
			if err := close(); err != nil {
				errCh <- fmt.Errorf("%s shutdown: %w", name, err)
				return
			}
			errCh <- nil
		}(c.name, c.close)
	}

	var errs []error
	for range closers {
		select {
		case err := <-errCh:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			return fmt.Errorf("shutdown cancelled: %w", ctx.Err())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	e.logger.Info("[engine] shutdown complete")
	return nil
}
