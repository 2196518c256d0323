package prefs

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/sebastos1/aa/internal/platform/errors"
)

// Record is a persisted payload and the time it was last written. A zero
// UpdatedAt means the substrate does not know when it was written.
type Record struct {
	Payload   []byte
	UpdatedAt time.Time
}

// DurableStore is one persistence substrate for the preferences payload.
type DurableStore interface {
	// Name identifies the substrate in diagnostics.
	Name() string
	// Available reports whether the substrate can be used right now.
	Available() bool
	// Load returns the persisted record, or found=false when none exists.
	Load(ctx context.Context) (record Record, found bool, err error)
	// Save replaces the persisted payload.
	Save(ctx context.Context, payload []byte) error
}

// Multi writes to every available substrate and reads the most recently
// written value among them. Ties go to the earlier substrate.
type Multi []DurableStore

// Name implements DurableStore.
func (m Multi) Name() string { return "multi" }

// Available reports whether any substrate is available.
func (m Multi) Available() bool {
	for _, store := range m {
		if store != nil && store.Available() {
			return true
		}
	}
	return false
}

// Load returns the newest record across the available substrates.
// Substrates that fail to read are skipped; their errors are joined into
// err, which may be non-nil even when a record is found.
func (m Multi) Load(ctx context.Context) (Record, bool, error) {
	var (
		errs   []error
		newest Record
		found  bool
	)
	for _, store := range m {
		if store == nil || !store.Available() {
			continue
		}
		record, ok, err := store.Load(ctx)
		if err != nil {
			errs = append(errs, substrateError(apperrors.CodePreferencesRead, "read preferences", store.Name(), err))
			continue
		}
		if ok && (!found || record.UpdatedAt.After(newest.UpdatedAt)) {
			newest, found = record, true
		}
	}
	return newest, found, errors.Join(errs...)
}

// Save writes payload to every available substrate. A failing substrate
// never prevents the others from being written.
func (m Multi) Save(ctx context.Context, payload []byte) error {
	var errs []error
	for _, store := range m {
		if store == nil || !store.Available() {
			continue
		}
		if err := store.Save(ctx, payload); err != nil {
			errs = append(errs, substrateError(apperrors.CodePreferencesWrite, "write preferences", store.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func substrateError(code apperrors.Code, message, name string, err error) error {
	return apperrors.WrapWithMetadata(code, message, map[string]string{"substrate": name}, err)
}

// LateBound is a substrate that becomes available once Attach is called.
type LateBound struct {
	name string

	mu    sync.RWMutex
	inner DurableStore
}

// NewLateBound creates an unattached substrate reporting under name.
func NewLateBound(name string) *LateBound {
	return &LateBound{name: name}
}

// Attach binds the backing substrate. A nil store detaches.
func (l *LateBound) Attach(store DurableStore) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner = store
}

// Name implements DurableStore.
func (l *LateBound) Name() string { return l.name }

// Available reports whether a backing substrate is attached and available.
func (l *LateBound) Available() bool {
	inner := l.current()
	return inner != nil && inner.Available()
}

// Load implements DurableStore.
func (l *LateBound) Load(ctx context.Context) (Record, bool, error) {
	inner := l.current()
	if inner == nil {
		return Record{}, false, apperrors.New(apperrors.CodePreferencesRead, l.name+" is not attached")
	}
	return inner.Load(ctx)
}

// Save implements DurableStore.
func (l *LateBound) Save(ctx context.Context, payload []byte) error {
	inner := l.current()
	if inner == nil {
		return apperrors.New(apperrors.CodePreferencesWrite, l.name+" is not attached")
	}
	return inner.Save(ctx, payload)
}

func (l *LateBound) current() DurableStore {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.inner
}
