// Package subject provides a typed observable state container shared by the
// funnel's widgets.
package subject

import (
	"go.uber.org/zap"
)

// Observer receives a callback every time the subject it is attached to
// notifies. Implementations must be comparable (typically pointer types) so
// the subject can detach them by identity.
type Observer[T any] interface {
	Update(s *Subject[T])
}

// Subject holds a value of type T and fans out synchronous notifications to
// its observers in attachment order. It is not safe for concurrent use;
// callers serialise access.
type Subject[T any] struct {
	name      string
	state     T
	observers []Observer[T]
	logger    *zap.Logger
}

// New constructs a subject with the provided initial state. A nil logger is
// replaced by a no-op logger.
func New[T any](name string, initial T, logger *zap.Logger) *Subject[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subject[T]{
		name:   name,
		state:  initial,
		logger: logger.With(zap.String("subject", name)),
	}
}

// Name returns the identifier used in log entries.
func (s *Subject[T]) Name() string { return s.name }

// State returns the current state snapshot.
func (s *Subject[T]) State() T { return s.state }

// Attach registers an observer and immediately delivers the current state to
// it. Attaching an observer twice is a no-op.
func (s *Subject[T]) Attach(observer Observer[T]) {
	if observer == nil {
		return
	}
	if s.indexOf(observer) >= 0 {
		s.logger.Debug("observer already attached")
		return
	}
	s.observers = append(s.observers, observer)
	s.logger.Debug("observer attached", zap.Int("observers", len(s.observers)))
	observer.Update(s)
}

// Detach removes an observer by identity. Unknown observers are ignored.
func (s *Subject[T]) Detach(observer Observer[T]) {
	idx := s.indexOf(observer)
	if idx < 0 {
		s.logger.Debug("observer not attached")
		return
	}
	next := make([]Observer[T], 0, len(s.observers)-1)
	next = append(next, s.observers[:idx]...)
	next = append(next, s.observers[idx+1:]...)
	s.observers = next
	s.logger.Debug("observer detached", zap.Int("observers", len(s.observers)))
}

// Subscribe attaches fn as an observer and returns a function that detaches
// it. Calling the returned function more than once is harmless.
func (s *Subject[T]) Subscribe(fn func(T)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	obs := &funcObserver[T]{fn: fn}
	s.Attach(obs)
	return func() { s.Detach(obs) }
}

// Observers reports how many observers are attached.
func (s *Subject[T]) Observers() int { return len(s.observers) }

// SetState replaces the state and notifies observers.
func (s *Subject[T]) SetState(next T) {
	s.state = next
	s.Notify()
}

// Mutate applies fn to the state in place and notifies observers.
func (s *Subject[T]) Mutate(fn func(state *T)) {
	if fn != nil {
		fn(&s.state)
	}
	s.Notify()
}

// Notify calls Update on every observer attached when the pass starts.
// Observers attached or detached during the pass take effect on the next one.
// A panicking observer aborts the remainder of the pass.
func (s *Subject[T]) Notify() {
	snapshot := s.observers
	for _, observer := range snapshot {
		observer.Update(s)
	}
}

func (s *Subject[T]) indexOf(observer Observer[T]) int {
	for i, existing := range s.observers {
		if existing == observer {
			return i
		}
	}
	return -1
}

type funcObserver[T any] struct {
	fn func(T)
}

func (o *funcObserver[T]) Update(s *Subject[T]) { o.fn(s.State()) }
