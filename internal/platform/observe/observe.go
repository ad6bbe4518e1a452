// Package observe provides the listener registry that stores use to announce
// state changes. Listeners are invoked synchronously, outside the registry lock,
// in subscription order.
package observe

import "sync"

// Subject is a set of listeners notified on every change.
type Subject struct {
	mu        sync.Mutex
	next      uint64
	listeners map[uint64]func()
	order     []uint64
}

// Subscribe registers fn and returns a function that removes it. Calling the
// returned function more than once is safe.
func (s *Subject) Subscribe(fn func()) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listeners == nil {
		s.listeners = make(map[uint64]func())
	}
	id := s.next
	s.next++
	s.listeners[id] = fn
	s.order = append(s.order, id)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.listeners[id]; !ok {
			return
		}
		delete(s.listeners, id)
		remaining := s.order[:0]
		for _, o := range s.order {
			if o != id {
				remaining = append(remaining, o)
			}
		}
		s.order = remaining
	}
}

// Notify calls every registered listener.
func (s *Subject) Notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.listeners[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Len returns the number of registered listeners.
func (s *Subject) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}
