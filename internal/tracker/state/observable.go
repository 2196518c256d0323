package state

import "sync"

// Observable holds a value and notifies subscribers after each change.
//
// Subscriber callbacks run synchronously on the mutating goroutine after the
// new value is committed. A callback must not mutate the same Observable.
type Observable[T any] struct {
	publish sync.Mutex
	mu      sync.RWMutex
	value   T
	clone   func(T) T
	subs    subscribers[T]
}

// NewObservable creates an Observable. clone, when non-nil, is applied to
// every value handed out so readers cannot alias internal state.
func NewObservable[T any](initial T, clone func(T) T) *Observable[T] {
	return &Observable[T]{value: initial, clone: clone}
}

// Get returns the current value.
func (o *Observable[T]) Get() T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.copy(o.value)
}

// Set replaces the value and notifies subscribers.
func (o *Observable[T]) Set(value T) {
	o.Update(func(T) T { return value })
}

// Update derives the next value from the current one and notifies
// subscribers. Concurrent updates are serialised end to end, so subscribers
// see values in commit order.
func (o *Observable[T]) Update(fn func(current T) T) {
	o.publish.Lock()
	defer o.publish.Unlock()

	o.subs.notify(o.commit(fn))
}

func (o *Observable[T]) commit(fn func(current T) T) T {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.value = fn(o.copy(o.value))
	return o.copy(o.value)
}

// Subscribe registers fn and immediately calls it with the current value.
func (o *Observable[T]) Subscribe(fn func(T)) Subscription {
	if fn == nil {
		return func() {}
	}
	id := func() uint64 {
		o.publish.Lock()
		defer o.publish.Unlock()
		id := o.subs.add(fn)
		fn(o.Get())
		return id
	}()

	var once sync.Once
	return func() { once.Do(func() { o.subs.remove(id) }) }
}

func (o *Observable[T]) copy(value T) T {
	if o.clone == nil {
		return value
	}
	return o.clone(value)
}
