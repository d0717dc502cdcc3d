package flow

import (
	"context"
	"sync"
)

// StateFlow is a hot flow that always holds a value.
type StateFlow[T any] interface {
	Flow[T]
	Value() T
}

// MutableStateFlow is a StateFlow whose value can be replaced.
//
// Writers are serialised by a mutex. Each write closes the current generation channel,
// which wakes every waiting collector; collectors then read the latest value.
// Values are handed out as-is, so reference types (maps, slices) must be replaced, not mutated.
type MutableStateFlow[T any] struct {
	mu          sync.Mutex
	value       T
	version     uint64
	changed     chan struct{}
	subscribers int
}

var _ StateFlow[int] = (*MutableStateFlow[int])(nil)

func NewMutableStateFlow[T any](initial T) *MutableStateFlow[T] {
	return &MutableStateFlow[T]{
		value:   initial,
		changed: make(chan struct{}),
	}
}

// Value returns the current value.
func (s *MutableStateFlow[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set replaces the value and notifies collectors.
func (s *MutableStateFlow[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(v)
}

// Update atomically replaces the value with fn(current) and returns the new value.
func (s *MutableStateFlow[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := fn(s.value)
	s.setLocked(next)
	return next
}

// SetDistinct sets v unless it equals the current value, and reports whether it changed.
func SetDistinct[T comparable](s *MutableStateFlow[T], v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value == v {
		return false
	}
	s.setLocked(v)
	return true
}

// Subscribers returns the number of active collectors.
func (s *MutableStateFlow[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribers
}

func (s *MutableStateFlow[T]) setLocked(v T) {
	s.value = v
	s.version++
	close(s.changed)
	s.changed = make(chan struct{})
}

// Collect emits the current value immediately, then every later value until ctx is done
// or fn returns an error. A StateFlow never completes on its own.
func (s *MutableStateFlow[T]) Collect(ctx context.Context, fn func(T) error) error {
	s.mu.Lock()
	s.subscribers++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.subscribers--
		s.mu.Unlock()
	}()

	var (
		lastVersion uint64
		emitted     bool
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		value, version, changed := s.value, s.version, s.changed
		s.mu.Unlock()

		if !emitted || version != lastVersion {
			emitted = true
			lastVersion = version
			if err := fn(value); err != nil {
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}
