package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BYTE-6D65/blinkbreak/pkg/event"
	"github.com/BYTE-6D65/blinkbreak/pkg/sensor"
)

// DefaultMonitorInterval is how often source metrics are refreshed.
const DefaultMonitorInterval = time.Second

// AcquisitionManager manages the lifecycle of the sensor sources registered
// with the engine. A source whose device is missing does not fail Start:
// it is reported as SENSOR_UNAVAILABLE and the pipeline idles on it.
type AcquisitionManager struct {
	engine *Engine
	mu     sync.RWMutex

	running    map[string]bool
	monitoring bool
	interval   time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewAcquisitionManager creates a new acquisition manager for the given
// engine.
func NewAcquisitionManager(engine *Engine) *AcquisitionManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &AcquisitionManager{
		engine:   engine,
		running:  make(map[string]bool),
		interval: DefaultMonitorInterval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register adds a source. It is not started until Start is called.
func (m *AcquisitionManager) Register(src sensor.Source) error {
	if err := m.engine.Sources().Register(src.ID(), src); err != nil {
		return fmt.Errorf("source %s: %w", src.ID(), err)
	}
	return nil
}

// Unregister stops and removes a source.
func (m *AcquisitionManager) Unregister(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.engine.Sources().Get(id)
	if !ok {
		return fmt.Errorf("source %s not found", id)
	}
	if m.running[id] {
		if err := src.Stop(); err != nil && !errors.Is(err, sensor.ErrNotStarted) {
			return fmt.Errorf("failed to stop source %s: %w", id, err)
		}
		delete(m.running, id)
	}
	m.engine.Sources().Delete(id)
	return nil
}

// Start starts every registered source and the metrics monitor.
func (m *AcquisitionManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var startErrors []error
	logger := m.engine.Logger()

	for _, entry := range m.engine.Sources().List() {
		id, src := entry.Key, entry.Value
		if m.running[id] {
			continue
		}

		err := src.Start(m.ctx)
		switch {
		case err == nil:
			m.running[id] = true
			logger.Info("[acquisition] started", zap.String("source", id), zap.String("type", src.Type()))
		case errors.Is(err, sensor.ErrSensorUnavailable):
			m.engine.ReportError(event.NewErrorEvent(event.WarningSeverity, event.CodeSensorUnavailable,
				"sensor:"+id, err.Error()).WithSignal(event.SignalDegraded))
		default:
			m.engine.ReportError(event.NewErrorEvent(event.ErrorSeverityLevel, event.CodeSensorStart,
				"sensor:"+id, err.Error()).WithRecoverable(false))
			startErrors = append(startErrors, fmt.Errorf("source %s: %w", id, err))
		}
	}

	if len(startErrors) > 0 {
		m.stopAll()
		return fmt.Errorf("failed to start sources: %w", errors.Join(startErrors...))
	}

	if !m.monitoring {
		m.monitoring = true
		m.wg.Add(1)
		go m.monitor()
	}
	return nil
}

// monitor refreshes per-source metrics until the manager shuts down.
func (m *AcquisitionManager) monitor() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			for _, src := range m.engine.Sources().List() {
				recordSource(m.engine.Metrics(), src.Value)
			}
		}
	}
}

// Stop stops all running sources.
func (m *AcquisitionManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.stopAll()
}

// stopAll stops every running source. Must be called with the lock held.
func (m *AcquisitionManager) stopAll() error {
	var stopErrors []error

	for id := range m.running {
		src, ok := m.engine.Sources().Get(id)
		if !ok {
			delete(m.running, id)
			continue
		}
		if err := src.Stop(); err != nil && !errors.Is(err, sensor.ErrNotStarted) {
			m.engine.ReportError(event.NewErrorEvent(event.ErrorSeverityLevel, event.CodeSensorStop,
				"sensor:"+id, err.Error()))
			stopErrors = append(stopErrors, fmt.Errorf("source %s: %w", id, err))
			continue
		}
		delete(m.running, id)
		m.engine.Logger().Info("[acquisition] stopped", zap.String("source", id))
	}

	if len(stopErrors) > 0 {
		return fmt.Errorf("errors stopping sources: %w", errors.Join(stopErrors...))
	}
	return nil
}

// Shutdown stops every source and the monitor.
func (m *AcquisitionManager) Shutdown() error {
	m.cancel()

	if err := m.Stop(); err != nil {
		return err
	}

	m.wg.Wait()
	return nil
}

// Running reports whether the source id was started.
func (m *AcquisitionManager) Running(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running[id]
}

// List returns the registered source IDs, sorted.
func (m *AcquisitionManager) List() []string {
	return m.engine.Sources().Keys()
}

// Get retrieves a source by ID.
func (m *AcquisitionManager) Get(id string) (sensor.Source, bool) {
	return m.engine.Sources().Get(id)
}
