package state

import "sync"

// Subscription removes a subscriber when called. Calling it twice is safe.
type Subscription func()

// subscribers is an ordered set of callbacks.
type subscribers[T any] struct {
	mu    sync.Mutex
	next  uint64
	order []uint64
	fns   map[uint64]func(T)
}

func (s *subscribers[T]) add(fn func(T)) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[uint64]func(T))
	}
	s.next++
	id := s.next
	s.fns[id] = fn
	s.order = append(s.order, id)
	return id
}

func (s *subscribers[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fns[id]; !ok {
		return
	}
	delete(s.fns, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// snapshot returns the callbacks in subscription order so notification runs
// without holding the set lock.
func (s *subscribers[T]) snapshot() []func(T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]func(T), 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.fns[id])
	}
	return out
}

func (s *subscribers[T]) notify(value T) {
	for _, fn := range s.snapshot() {
		fn(value)
	}
}

func (s *subscribers[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}
