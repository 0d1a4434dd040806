package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/BYTE-6D65/blinkbreak/pkg/calibration"
	"github.com/BYTE-6D65/blinkbreak/pkg/emitter"
	"github.com/BYTE-6D65/blinkbreak/pkg/event"
)

type registration struct {
	emitter emitter.Emitter
	filter  event.Filter
	bus     event.Bus
}

// EmitterManager manages the lifecycle of emitters attached to the engine.
// It subscribes each emitter to a bus and routes matching events to it.
type EmitterManager struct {
	engine *Engine
	mu     sync.RWMutex

	emitters      map[string]registration
	subscriptions map[string]event.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewEmitterManager creates a new emitter manager for the given engine.
func NewEmitterManager(engine *Engine) *EmitterManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &EmitterManager{
		engine:        engine,
		emitters:      make(map[string]registration),
		subscriptions: make(map[string]event.Subscription),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Register attaches an emitter to the external bus. An empty filter routes
// every event to it. The emitter is not started until Start is called.
func (m *EmitterManager) Register(id string, emit emitter.Emitter, filter event.Filter) error {
	return m.RegisterOn(m.engine.ExternalBus(), id, emit, filter)
}

// RegisterOn attaches an emitter to bus, e.g. the internal bus for
// per-frame records.
func (m *EmitterManager) RegisterOn(bus event.Bus, id string, emit emitter.Emitter, filter event.Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.emitters[id]; exists {
		return fmt.Errorf("emitter %s already registered", id)
	}

	m.emitters[id] = registration{emitter: emit, filter: filter, bus: bus}
	return nil
}

// Unregister removes an emitter from the manager, closing it.
func (m *EmitterManager) Unregister(emitterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, exists := m.emitters[emitterID]
	if !exists {
		return fmt.Errorf("emitter %s not found", emitterID)
	}

	if sub, ok := m.subscriptions[emitterID]; ok {
		sub.Close()
		delete(m.subscriptions, emitterID)
	}

	if err := reg.emitter.Close(); err != nil {
		return fmt.Errorf("failed to close emitter %s: %w", emitterID, err)
	}

	delete(m.emitters, emitterID)
	return nil
}

// Start subscribes every registered emitter to its bus.
func (m *EmitterManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var startErrors []error

	for id, reg := range m.emitters {
		if _, running := m.subscriptions[id]; running {
			continue
		}
		sub, err := reg.bus.Subscribe(m.ctx, reg.filter)
		if err != nil {
			startErrors = append(startErrors, fmt.Errorf("emitter %s: failed to subscribe: %w", id, err))
			continue
		}

		m.subscriptions[id] = sub

		m.wg.Add(1)
		go m.processEvents(id, reg.emitter, sub)
		m.engine.Logger().Info("[emitter] started", zap.String("emitter", id), zap.String("type", reg.emitter.Type()))
	}

	if len(startErrors) > 0 {
		m.stopAll()
		return fmt.Errorf("failed to start emitters: %w", errors.Join(startErrors...))
	}

	return nil
}

// processEvents is the event loop of one emitter.
func (m *EmitterManager) processEvents(id string, emit emitter.Emitter, sub event.Subscription) {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return

		case evt, ok := <-sub.Events():
			if !ok {
				return
			}

			err := emit.Emit(m.ctx, evt)
			if err == nil || errors.Is(err, emitter.ErrUnsupportedEvent) {
				continue
			}
			code := event.CodeEmitterFail
			if errors.Is(err, emitter.ErrInvalidPayload) || errors.Is(err, calibration.ErrSinkWrite) {
				code = event.CodeSinkWriteFail
			}
			m.engine.ReportError(event.NewErrorEvent(event.WarningSeverity, code, "emitter:"+id, err.Error()).
				WithFrame(evt.Frame).
				WithContext("type", evt.Type))
		}
	}
}

// Stop stops all running emitters and closes them once they have handled
// the events already queued for them.
func (m *EmitterManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.stopAll()
}

// stopAll must be called with the lock held.
func (m *EmitterManager) stopAll() error {
	for id, sub := range m.subscriptions {
		sub.Close()
		delete(m.subscriptions, id)
	}

	// Events already queued on a closed subscription are still handled.
	// Unlock while waiting so Get and List stay available.
	m.mu.Unlock()
	m.wg.Wait()
	m.mu.Lock()

	var closeErrors []error
	for id, reg := range m.emitters {
		if err := reg.emitter.Close(); err != nil {
			closeErrors = append(closeErrors, fmt.Errorf("emitter %s: %w", id, err))
		}
	}

	if len(closeErrors) > 0 {
		return fmt.Errorf("errors closing emitters: %w", errors.Join(closeErrors...))
	}

	return nil
}

// Shutdown cancels every emitter loop and closes the emitters.
func (m *EmitterManager) Shutdown() error {
	m.cancel()
	return m.Stop()
}

// List returns the registered emitter IDs, sorted.
func (m *EmitterManager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.emitters))
	for id := range m.emitters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get retrieves an emitter by ID.
func (m *EmitterManager) Get(emitterID string) (emitter.Emitter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reg, exists := m.emitters[emitterID]
	return reg.emitter, exists
}
