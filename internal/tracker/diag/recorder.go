package diag

import (
	"context"
	"sync"
	"time"
)

const defaultRecorderCapacity = 100

// Recorder keeps the most recent diagnostics in memory for the dashboard
// and tests.
type Recorder struct {
	mu       sync.Mutex
	capacity int
	events   []Event
	clock    func() time.Time
}

// NewRecorder creates a recorder holding at most capacity events; a
// non-positive capacity selects the default.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = defaultRecorderCapacity
	}
	return &Recorder{capacity: capacity, clock: time.Now}
}

// Report stores evt, evicting the oldest event when full.
func (r *Recorder) Report(_ context.Context, evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = r.clock().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	if over := len(r.events) - r.capacity; over > 0 {
		r.events = append([]Event(nil), r.events[over:]...)
	}
}

// Events returns recorded events, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many recorded events have the given kind.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, evt := range r.events {
		if evt.Kind == kind {
			n++
		}
	}
	return n
}
