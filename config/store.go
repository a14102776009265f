// Package config loads TOML configuration, keeps the current value in an
// atomic store, and reloads it when the file changes on disk.
package config

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Store holds the current configuration value. Get never locks, so an accept
// loop can read it on every iteration.
type Store[T any] struct {
	value atomic.Pointer[T]

	mu        sync.Mutex
	nextID    uint64
	listeners []listener[T]
}

type listener[T any] struct {
	id uint64
	fn func(old, cur *T)
}

// NewStore creates a store holding initial.
func NewStore[T any](initial *T) *Store[T] {
	s := &Store[T]{}
	s.value.Store(initial)
	return s
}

// Get returns the current value. Callers must not modify it.
func (s *Store[T]) Get() *T {
	return s.value.Load()
}

// Swap installs cur, notifies listeners in registration order, and returns
// the previous value.
func (s *Store[T]) Swap(cur *T) *T {
	old := s.value.Swap(cur)

	s.mu.Lock()
	ls := s.listeners
	s.mu.Unlock()

	for _, l := range ls {
		l.fn(old, cur)
	}
	return old
}

// OnChange registers fn to run after every Swap. The returned func removes
// it; a Swap already in progress may still call fn once.
func (s *Store[T]) OnChange(fn func(old, cur *T)) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners = append(slices.Clip(s.listeners), listener[T]{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		// Build a new slice so a concurrent Swap keeps its snapshot intact.
		s.listeners = slices.DeleteFunc(slices.Clone(s.listeners), func(l listener[T]) bool {
			return l.id == id
		})
	}
}
