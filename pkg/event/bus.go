package event

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/BYTE-6D65/blinkbreak/pkg/telemetry"
)

// ErrClosed is returned when publishing to or subscribing on a closed bus.
var ErrClosed = errors.New("bus is closed")

// Bus is a publish/subscribe event bus.
type Bus interface {
	Publish(ctx context.Context, evt Event) error
	Subscribe(ctx context.Context, filter Filter) (Subscription, error)
	Close() error
}

// Filter selects events for a subscription. Empty fields match everything.
type Filter struct {
	// Types are matched with filepath.Match, so "bci.control.*" works.
	Types []string

	Sources  []string
	Metadata map[string]string
}

// Subscription is an active subscription to a bus.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// InMemoryBus fans events out to buffered subscriber channels.
type InMemoryBus struct {
	mu            sync.RWMutex
	name          string
	subscriptions map[string]*inMemorySubscription
	nextID        int
	closed        bool
	bufferSize    int
	dropSlow      bool // drop for full subscribers instead of blocking
	dropped       atomic.Uint64
	metrics       *telemetry.Metrics
}

// BusOption configures an InMemoryBus.
type BusOption func(*InMemoryBus)

// WithBufferSize sets the buffer size for subscription channels.
func WithBufferSize(size int) BusOption {
	return func(b *InMemoryBus) {
		b.bufferSize = size
	}
}

// WithDropSlow configures whether to drop events for slow subscribers (true)
// or block until they catch up (false).
func WithDropSlow(drop bool) BusOption {
	return func(b *InMemoryBus) {
		b.dropSlow = drop
	}
}

// WithBusName names the bus in metrics labels.
func WithBusName(name string) BusOption {
	return func(b *InMemoryBus) {
		b.name = name
	}
}

// WithBusMetrics records publishes and drops.
func WithBusMetrics(m *telemetry.Metrics) BusOption {
	return func(b *InMemoryBus) {
		b.metrics = m
	}
}

// NewInMemoryBus creates a new in-memory event bus with the given options.
func NewInMemoryBus(opts ...BusOption) *InMemoryBus {
	bus := &InMemoryBus{
		name:          "default",
		subscriptions: make(map[string]*inMemorySubscription),
		bufferSize:    64,
	}

	for _, opt := range opts {
		opt(bus)
	}

	return bus
}

// Name returns the bus name.
func (b *InMemoryBus) Name() string {
	return b.name
}

// Dropped returns how many deliveries were dropped for slow subscribers.
func (b *InMemoryBus) Dropped() uint64 {
	return b.dropped.Load()
}

// Publish sends an event to all matching subscribers.
func (b *InMemoryBus) Publish(ctx context.Context, evt Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	if b.metrics != nil {
		b.metrics.EventsPublished.WithLabelValues(b.name, evt.Type).Inc()
	}

	for _, sub := range b.subscriptions {
		if !sub.matches(evt) {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !sub.send(ctx, evt, b.dropSlow) {
			b.dropped.Add(1)
			if b.metrics != nil {
				b.metrics.EventsDropped.WithLabelValues(b.name, evt.Type).Inc()
			}
		}
	}

	return nil
}

// Subscribe creates a new subscription with the given filter.
func (b *InMemoryBus) Subscribe(ctx context.Context, filter Filter) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	b.nextID++
	sub := &inMemorySubscription{
		id:     fmt.Sprintf("%s-%d", b.name, b.nextID),
		bus:    b,
		filter: filter,
		ch:     make(chan Event, b.bufferSize),
	}

	b.subscriptions[sub.id] = sub
	return sub, nil
}

// Close shuts down the bus and all subscriptions.
func (b *InMemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	for _, sub := range b.subscriptions {
		sub.closeChannel()
	}
	b.subscriptions = nil
	return nil
}

type inMemorySubscription struct {
	id     string
	bus    *InMemoryBus
	filter Filter
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

func (s *inMemorySubscription) Events() <-chan Event {
	return s.ch
}

// Close unsubscribes and closes the event channel.
func (s *inMemorySubscription) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	delete(s.bus.subscriptions, s.id)
	s.closeChannel()
	return nil
}

func (s *inMemorySubscription) closeChannel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// send delivers evt and reports false if it was dropped.
func (s *inMemorySubscription) send(ctx context.Context, evt Event, dropSlow bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return true
	}

	if dropSlow {
		select {
		case s.ch <- evt:
			return true
		default:
			return false
		}
	}

	select {
	case s.ch <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *inMemorySubscription) matches(evt Event) bool {
	if len(s.filter.Types) > 0 && !matchesAny(evt.Type, s.filter.Types) {
		return false
	}
	if len(s.filter.Sources) > 0 && !matchesAny(evt.Source, s.filter.Sources) {
		return false
	}
	for key, value := range s.filter.Metadata {
		if evt.Metadata[key] != value {
			return false
		}
	}
	return true
}

// matchesAny reports whether str matches any filepath.Match pattern.
func matchesAny(str string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, err := filepath.Match(pattern, str); err == nil && matched {
			return true
		}
	}
	return false
}
