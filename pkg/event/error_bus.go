package event

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrorBus carries ErrorEvents from the frame loop to loggers and metrics.
// Publish never blocks: a full subscriber loses the event. The subscriber
// list is copy-on-write so the frame loop reads it without locking.
type ErrorBus struct {
	subs       atomic.Pointer[[]*ErrorSubscription]
	dropped    atomic.Uint64
	mu         sync.Mutex // guards subscribe/unsubscribe
	closed     bool
	bufferSize int
}

// ErrorSubscription represents a subscription to the error bus.
type ErrorSubscription struct {
	id     string
	ch     chan ErrorEvent
	mu     sync.Mutex // orders sends against close
	closed atomic.Bool
}

// NewErrorBus creates an error bus with bufferSize events per subscriber,
// 32 if bufferSize is not positive.
func NewErrorBus(bufferSize int) *ErrorBus {
	if bufferSize <= 0 {
		bufferSize = 32
	}

	bus := &ErrorBus{bufferSize: bufferSize}
	empty := make([]*ErrorSubscription, 0)
	bus.subs.Store(&empty)
	return bus
}

// Publish delivers evt to every subscriber with room and returns the number
// of deliveries.
func (b *ErrorBus) Publish(evt ErrorEvent) int {
	subs := b.subs.Load()
	if subs == nil || len(*subs) == 0 {
		return 0
	}

	delivered := 0

	for i := range *subs {
		sub := (*subs)[i]

		if sub.closed.Load() {
			continue
		}

		if sub.trySend(evt) {
			delivered++
		} else {
			b.dropped.Add(1)
		}
	}

	return delivered
}

// Subscribe returns a subscription receiving events published from now on.
func (b *ErrorBus) Subscribe(ctx context.Context) (*ErrorSubscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	sub := &ErrorSubscription{
		id: uuid.NewString(),
		ch: make(chan ErrorEvent, b.bufferSize),
	}

	old := b.subs.Load()
	next := make([]*ErrorSubscription, len(*old)+1)
	copy(next, *old)
	next[len(*old)] = sub
	b.subs.Store(&next)

	return sub, nil
}

// Unsubscribe removes a subscription from the error bus.
func (b *ErrorBus) Unsubscribe(sub *ErrorSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	sub.Close()

	old := b.subs.Load()
	next := make([]*ErrorSubscription, 0, len(*old))
	for _, s := range *old {
		if s != sub {
			next = append(next, s)
		}
	}
	b.subs.Store(&next)
}

// Close shuts down the error bus and all subscriptions.
func (b *ErrorBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	for _, sub := range *b.subs.Load() {
		sub.Close()
	}
	empty := make([]*ErrorSubscription, 0)
	b.subs.Store(&empty)
	return nil
}

// DroppedCount returns the number of events lost to full buffers.
func (b *ErrorBus) DroppedCount() uint64 {
	return b.dropped.Load()
}

// SubscriberCount returns the current number of active subscribers.
func (b *ErrorBus) SubscriberCount() int {
	subs := b.subs.Load()
	if subs == nil {
		return 0
	}
	return len(*subs)
}

// Events returns the channel for receiving error events.
func (s *ErrorSubscription) Events() <-chan ErrorEvent {
	return s.ch
}

// Close stops delivery. It is safe to call more than once.
func (s *ErrorSubscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}

func (s *ErrorSubscription) trySend(evt ErrorEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return true
	}
	select {
	case s.ch <- evt:
		return true
	default:
		return false
	}
}

// ID returns the subscription identifier.
func (s *ErrorSubscription) ID() string {
	return s.id
}

// ErrorHandler is a function that processes error events.
type ErrorHandler func(ErrorEvent)

// SubscribeWithHandler runs handler for each event in a goroutine that
// exits when ctx is done or the bus closes.
func (b *ErrorBus) SubscribeWithHandler(ctx context.Context, handler ErrorHandler) (*ErrorSubscription, error) {
	sub, err := b.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	go func() {
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-sub.Events():
				if !ok {
					return
				}
				handler(evt)
			}
		}
	}()

	return sub, nil
}
