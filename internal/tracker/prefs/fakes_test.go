package prefs

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeSubstrate struct {
	name        string
	unavailable bool
	loadErr     error
	saveErr     error

	mu      sync.Mutex
	payload []byte
	updated time.Time
	saves   int
}

func newFakeSubstrate(name string, payload string) *fakeSubstrate {
	f := &fakeSubstrate{name: name}
	if payload != "" {
		f.payload = []byte(payload)
	}
	return f
}

func (f *fakeSubstrate) Name() string    { return f.name }
func (f *fakeSubstrate) Available() bool { return !f.unavailable }

func (f *fakeSubstrate) Load(context.Context) (Record, bool, error) {
	if f.loadErr != nil {
		return Record{}, false, f.loadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.payload == nil {
		return Record{}, false, nil
	}
	return Record{Payload: append([]byte(nil), f.payload...), UpdatedAt: f.updated}, true, nil
}

func (f *fakeSubstrate) Save(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.payload = append([]byte(nil), payload...)
	f.updated = time.Now()
	return nil
}

func (f *fakeSubstrate) stored() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.payload)
}

var errDiskFull = errors.New("disk full")
