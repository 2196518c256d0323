package prefs

import (
	"context"
	"strings"
	"sync"

	"github.com/sebastos1/aa/internal/tracker/diag"
	"github.com/sebastos1/aa/internal/tracker/model"
	"github.com/sebastos1/aa/internal/tracker/state"
)

// Store holds the in-memory preferences and persists every mutation.
type Store struct {
	mu       sync.Mutex
	durable  DurableStore
	reporter diag.Reporter
	value    *state.Observable[Preferences]
}

// New hydrates a Store from durable. Missing or unreadable payloads leave
// the defaults in place and are reported, never returned.
func New(ctx context.Context, durable DurableStore, reporter diag.Reporter) *Store {
	s := &Store{
		durable:  durable,
		reporter: diag.OrNop(reporter),
	}
	initial, ok := s.load(ctx)
	if !ok {
		initial = Defaults()
	}
	s.value = state.NewObservable(initial, Preferences.Clone)
	return s
}

// Get returns the current preferences.
func (s *Store) Get() Preferences {
	return s.value.Get()
}

// Subscribe calls fn with the current preferences and after every change.
// fn must not call the Store's mutation methods.
func (s *Store) Subscribe(fn func(Preferences)) state.Subscription {
	return s.value.Subscribe(fn)
}

// ToggleCoopMode flips CoopMode and returns the new preferences.
func (s *Store) ToggleCoopMode(ctx context.Context) Preferences {
	return s.mutate(ctx, func(p Preferences) Preferences {
		p.CoopMode = !p.CoopMode
		return p
	})
}

// ToggleTestFlag flips TestFlag and returns the new preferences.
func (s *Store) ToggleTestFlag(ctx context.Context) Preferences {
	return s.mutate(ctx, func(p Preferences) Preferences {
		p.TestFlag = !p.TestFlag
		return p
	})
}

// SetSelectedPlayer selects uuid. An empty uuid clears the selection.
func (s *Store) SetSelectedPlayer(ctx context.Context, uuid model.UUID) Preferences {
	uuid = strings.TrimSpace(uuid)
	return s.mutate(ctx, func(p Preferences) Preferences {
		if uuid == "" {
			p.SelectedPlayerUUID = nil
		} else {
			selected := uuid
			p.SelectedPlayerUUID = &selected
		}
		return p
	})
}

// Reload re-reads the substrates, typically after a late substrate was
// attached, adopts the newest value and writes it back to every available
// substrate so the copies agree. Missing or unreadable payloads keep the
// current value.
func (s *Store) Reload(ctx context.Context) Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.value.Get()
	next, ok := s.load(ctx)
	if !ok {
		next = current
	}
	s.persist(ctx, next)
	if !next.Equal(current) {
		s.value.Set(next)
	}
	return next.Clone()
}

func (s *Store) mutate(ctx context.Context, fn func(Preferences) Preferences) Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := fn(s.value.Get())
	s.persist(ctx, next)
	s.value.Set(next)
	return next.Clone()
}

func (s *Store) persist(ctx context.Context, p Preferences) {
	if s.durable == nil {
		return
	}
	payload, err := Encode(p)
	if err != nil {
		s.reporter.Report(ctx, diag.FromError(diag.KindPreferences, diag.SeverityError, "encode preferences", err))
		return
	}
	if err := s.durable.Save(ctx, payload); err != nil {
		s.reportEach(ctx, diag.SeverityWarn, "persist preferences", err)
	}
}

// load returns the decoded persisted value, or false when nothing usable
// was found.
func (s *Store) load(ctx context.Context) (Preferences, bool) {
	if s.durable == nil || !s.durable.Available() {
		return Preferences{}, false
	}
	record, found, err := s.durable.Load(ctx)
	if err != nil {
		s.reportEach(ctx, diag.SeverityWarn, "load preferences", err)
	}
	if !found {
		return Preferences{}, false
	}
	prefs, err := Decode(record.Payload)
	if err != nil {
		s.reporter.Report(ctx, diag.FromError(diag.KindPreferences, diag.SeverityWarn, "discard persisted preferences", err))
		return Preferences{}, false
	}
	return prefs, true
}

func (s *Store) reportEach(ctx context.Context, severity diag.Severity, message string, err error) {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		s.reporter.Report(ctx, diag.FromError(diag.KindPreferences, severity, message, err))
		return
	}
	for _, part := range joined.Unwrap() {
		s.reporter.Report(ctx, diag.FromError(diag.KindPreferences, severity, message, part))
	}
}
