// Package reactive implements the signal/effect primitives used to
// propagate enable/disable, catalog, and cleanup state across the engine:
// a Signal is a mutex-guarded cell with an observer list, and an Effect is
// a scope that tracks which signals its body reads and re-runs when any of
// them changes, tearing down its own cleanups and spawned tasks first.
package reactive

import "sync"

// Signal is a mutable cell that notifies subscribers when Set changes its
// value under equality. The zero value is not usable; use NewSignal.
type Signal[T comparable] struct {
	mu   sync.Mutex
	val  T
	subs []chan struct{}
}

// NewSignal creates a signal holding initial.
func NewSignal[T comparable](initial T) *Signal[T] {
	return &Signal[T]{val: initial}
}

// Peek reads the current value without subscribing to future changes.
func (s *Signal[T]) Peek() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.val
}

// Set stores v. If v differs from the current value every channel handed
// out by a prior subscribe is closed, waking the effects that read this
// signal so they re-run.
func (s *Signal[T]) Set(v T) {
	s.mu.Lock()
	if v == s.val {
		s.mu.Unlock()
		return
	}
	s.val = v
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
}

// subscribe returns the current value and a channel that closes on the
// next change, both read under the same lock so a caller can't observe a
// value and then miss the change that immediately followed it.
func (s *Signal[T]) subscribe() (T, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.subs = append(s.subs, ch)
	return s.val, ch
}

// Getter is a read-only projection of a Signal.
type Getter[T comparable] struct {
	sig *Signal[T]
}

// Getter returns a read-only view of s.
func (s *Signal[T]) Getter() Getter[T] { return Getter[T]{sig: s} }

// Peek reads the current value without subscribing.
func (g Getter[T]) Peek() T { return g.sig.Peek() }

// Get performs a subscribed read of s inside e: e re-runs the next time
// s.Set changes the value.
func Get[T comparable](e *Effect, s *Signal[T]) T {
	v, ch := s.subscribe()
	e.watch(ch)
	return v
}

// GetFrom is Get for a read-only Getter.
func GetFrom[T comparable](e *Effect, g Getter[T]) T {
	return Get(e, g.sig)
}
