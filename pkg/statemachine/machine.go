// Package statemachine provides a small frame-ticked finite state machine.
// Besides explicit events, a state may time out after a number of frames,
// which is how debounce windows, countdowns and stimulus periods are driven
// from the render loop without wall-clock timers.
package statemachine

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// State represents a state in the state machine.
type State string

// Event represents an event that can trigger a state transition.
type Event string

// GuardFunc determines if a transition should be allowed.
type GuardFunc func(ctx context.Context, from State, to State, event Event) bool

// ActionFunc is executed during a transition, after OnExit and before OnEnter.
type ActionFunc func(ctx context.Context, from State, to State, event Event) error

// HookFunc is called when a state is entered or exited.
type HookFunc func(ctx context.Context, state State) error

// SelectFunc picks the event to fire when a state times out.
type SelectFunc func(ctx context.Context) Event

// StateConfig defines the configuration for a state.
type StateConfig struct {
	Name State

	OnEnter HookFunc
	OnExit  HookFunc

	// Timeout is the number of ticks after which the state fires its
	// timeout event. Zero disables the timeout.
	Timeout int

	// TimeoutEvent is fired when Timeout elapses.
	TimeoutEvent Event

	// SelectTimeout, if set, chooses the timeout event instead of
	// TimeoutEvent.
	SelectTimeout SelectFunc
}

// Transition defines a state transition.
type Transition struct {
	From   State
	To     State
	Event  Event
	Guard  GuardFunc
	Action ActionFunc
}

// TransitionHook is called whenever a transition occurs.
type TransitionHook func(ctx context.Context, from State, to State, event Event)

// Machine is a finite state machine that counts ticks spent in the current
// state.
type Machine struct {
	mu          sync.RWMutex
	current     State
	ticks       int
	states      map[State]StateConfig
	transitions map[State]map[Event]Transition
	hooks       []TransitionHook
}

// NewMachine creates a new state machine with the given initial state.
func NewMachine(initialState State) *Machine {
	return &Machine{
		current:     initialState,
		states:      make(map[State]StateConfig),
		transitions: make(map[State]map[Event]Transition),
	}
}

// AddState registers a state configuration.
func (m *Machine) AddState(config StateConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[config.Name] = config
}

// AddTransition registers a state transition.
func (m *Machine) AddTransition(trans Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.transitions[trans.From] == nil {
		m.transitions[trans.From] = make(map[Event]Transition)
	}

	if _, exists := m.transitions[trans.From][trans.Event]; exists {
		return fmt.Errorf("transition from %s on event %s already exists", trans.From, trans.Event)
	}

	m.transitions[trans.From][trans.Event] = trans
	return nil
}

// MustAddTransitions registers transitions and panics on a duplicate. It is
// meant for static tables built at construction time.
func (m *Machine) MustAddTransitions(trans ...Transition) {
	for _, t := range trans {
		if err := m.AddTransition(t); err != nil {
			panic(err)
		}
	}
}

// Trigger attempts to fire event from the current state.
func (m *Machine) Trigger(ctx context.Context, event Event) error {
	m.mu.RLock()
	currentState := m.current
	stateTransitions, ok := m.transitions[currentState]
	if !ok {
		m.mu.RUnlock()
		return fmt.Errorf("no transitions from state %s", currentState)
	}

	trans, ok := stateTransitions[event]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no transition from %s on event %s", currentState, event)
	}

	if trans.Guard != nil && !trans.Guard(ctx, trans.From, trans.To, event) {
		return fmt.Errorf("guard rejected transition from %s to %s on event %s", trans.From, trans.To, event)
	}

	return m.executeTransition(ctx, trans)
}

// Tick advances the tick counter of the current state and fires its timeout
// event once the configured number of ticks has elapsed. It reports whether
// a transition happened.
func (m *Machine) Tick(ctx context.Context) (bool, error) {
	m.mu.Lock()
	m.ticks++
	config, ok := m.states[m.current]
	ticks := m.ticks
	m.mu.Unlock()

	if !ok || config.Timeout <= 0 || ticks < config.Timeout {
		return false, nil
	}

	event := config.TimeoutEvent
	if config.SelectTimeout != nil {
		event = config.SelectTimeout(ctx)
	}

	if err := m.Trigger(ctx, event); err != nil {
		return false, err
	}
	return true, nil
}

// executeTransition performs the actual state transition.
func (m *Machine) executeTransition(ctx context.Context, trans Transition) error {
	m.mu.RLock()
	fromConfig, hasFromConfig := m.states[trans.From]
	toConfig, hasToConfig := m.states[trans.To]
	m.mu.RUnlock()

	if hasFromConfig && fromConfig.OnExit != nil {
		if err := fromConfig.OnExit(ctx, trans.From); err != nil {
			return fmt.Errorf("OnExit failed for state %s: %w", trans.From, err)
		}
	}

	if trans.Action != nil {
		if err := trans.Action(ctx, trans.From, trans.To, trans.Event); err != nil {
			return fmt.Errorf("action failed for transition %s -> %s: %w", trans.From, trans.To, err)
		}
	}

	m.mu.Lock()
	m.current = trans.To
	m.ticks = 0
	hooks := m.hooks
	m.mu.Unlock()

	if hasToConfig && toConfig.OnEnter != nil {
		if err := toConfig.OnEnter(ctx, trans.To); err != nil {
			return fmt.Errorf("OnEnter failed for state %s: %w", trans.To, err)
		}
	}

	for _, hook := range hooks {
		hook(ctx, trans.From, trans.To, trans.Event)
	}

	return nil
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Ticks returns how many ticks have elapsed in the current state.
func (m *Machine) Ticks() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ticks
}

// Remaining returns the ticks left before the current state times out, or
// -1 if it has no timeout.
func (m *Machine) Remaining() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	config, ok := m.states[m.current]
	if !ok || config.Timeout <= 0 {
		return -1
	}
	if left := config.Timeout - m.ticks; left > 0 {
		return left
	}
	return 0
}

// Can checks if an event can be triggered from the current state.
func (m *Machine) Can(event Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.transitions[m.current][event]
	return ok
}

// Reset forces the machine into state without running hooks.
func (m *Machine) Reset(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = state
	m.ticks = 0
}

// OnTransition registers a hook that is called on every transition.
func (m *Machine) OnTransition(hook TransitionHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
}

// States returns all registered states, sorted by name.
func (m *Machine) States() []State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make([]State, 0, len(m.states))
	for state := range m.states {
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })
	return states
}
