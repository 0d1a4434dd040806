// Package registry provides a small concurrency-safe keyed store. The engine
// keeps its sensor sources and emitters in one, and calibration sessions keep
// their log sinks in another.
package registry

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrExists is returned by Register for a key that is already taken.
var ErrExists = errors.New("registry: key already registered")

// Entry is a key-value pair.
type Entry[K cmp.Ordered, V any] struct {
	Key   K
	Value V
}

// Registry maps ordered keys to values. Listing is in key order so that
// anything iterating a registry, such as sink shutdown, is deterministic.
type Registry[K cmp.Ordered, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

// New creates an empty registry.
func New[K cmp.Ordered, V any]() *Registry[K, V] {
	return &Registry[K, V]{items: make(map[K]V)}
}

// Register adds value under key, failing if key is taken.
func (r *Registry[K, V]) Register(key K, value V) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[key]; ok {
		return fmt.Errorf("%w: %v", ErrExists, key)
	}
	r.items[key] = value
	return nil
}

// Set stores value under key, replacing any previous value.
func (r *Registry[K, V]) Set(key K, value V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[key] = value
}

// Get retrieves a value by key.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, ok := r.items[key]
	return value, ok
}

// Has checks if a key exists.
func (r *Registry[K, V]) Has(key K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.items[key]
	return ok
}

// Delete removes an entry and returns it.
func (r *Registry[K, V]) Delete(key K) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, ok := r.items[key]
	delete(r.items, key)
	return value, ok
}

// Clear removes all entries.
func (r *Registry[K, V]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[K]V)
}

// Len returns the number of entries.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Keys returns all keys in ascending order.
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]K, 0, len(r.items))
	for key := range r.items {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// List returns all entries in key order.
func (r *Registry[K, V]) List() []Entry[K, V] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry[K, V], 0, len(r.items))
	for key, value := range r.items {
		entries = append(entries, Entry[K, V]{Key: key, Value: value})
	}
	slices.SortFunc(entries, func(a, b Entry[K, V]) int { return cmp.Compare(a.Key, b.Key) })
	return entries
}

// Each calls fn for every entry in key order and stops at the first error.
// fn runs on a snapshot, so it may modify the registry.
func (r *Registry[K, V]) Each(fn func(K, V) error) error {
	for _, e := range r.List() {
		if err := fn(e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}
