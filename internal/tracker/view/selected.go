// Package view derives read-only projections from the tracker state.
package view

import (
	"sync"

	"github.com/sebastos1/aa/internal/tracker/model"
	"github.com/sebastos1/aa/internal/tracker/prefs"
	"github.com/sebastos1/aa/internal/tracker/state"
)

// PlayerSource is the part of the mirror the selected-player view reads.
type PlayerSource interface {
	Player(uuid model.UUID) (model.Player, bool)
	Subscribe(fn func(state.Change)) state.Subscription
}

// PreferenceSource is the part of the preference store the view reads.
type PreferenceSource interface {
	Get() prefs.Preferences
	Subscribe(fn func(prefs.Preferences)) state.Subscription
}

// Selection is the resolved selected player. Found is false when no player
// is selected or the selected UUID is not in the player table.
type Selection struct {
	UUID   model.UUID
	Player model.Player
	Found  bool
}

// Equal reports whether s and other resolve to the same player snapshot.
func (s Selection) Equal(other Selection) bool {
	return s.UUID == other.UUID && s.Found == other.Found && s.Player.Equal(other.Player)
}

func (s Selection) clone() Selection {
	s.Player = s.Player.Clone()
	return s
}

// SelectedPlayer tracks PlayerTable[selectedPlayerUuid] and recomputes it
// whenever the players or the preferences change.
type SelectedPlayer struct {
	players PlayerSource
	prefs   PreferenceSource

	mu      sync.Mutex
	current *state.Observable[Selection]
	stops   []state.Subscription
}

// NewSelectedPlayer subscribes to both sources. Call Close to detach.
func NewSelectedPlayer(players PlayerSource, preferences PreferenceSource) *SelectedPlayer {
	v := &SelectedPlayer{players: players, prefs: preferences}
	v.current = state.NewObservable(v.resolve(), Selection.clone)
	v.stops = append(v.stops,
		players.Subscribe(func(state.Change) { v.recompute() }),
		preferences.Subscribe(func(prefs.Preferences) { v.recompute() }),
	)
	return v
}

// Current returns the selected player, if any.
func (v *SelectedPlayer) Current() (model.Player, bool) {
	sel := v.current.Get()
	return sel.Player, sel.Found
}

// Selection returns the full resolved selection.
func (v *SelectedPlayer) Selection() Selection {
	return v.current.Get()
}

// Subscribe calls fn with the current selection and whenever it changes.
func (v *SelectedPlayer) Subscribe(fn func(Selection)) state.Subscription {
	return v.current.Subscribe(fn)
}

// Close detaches the view from its sources.
func (v *SelectedPlayer) Close() {
	v.mu.Lock()
	stops := v.stops
	v.stops = nil
	v.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
}

func (v *SelectedPlayer) recompute() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current == nil {
		return
	}
	next := v.resolve()
	if next.Equal(v.current.Get()) {
		return
	}
	v.current.Set(next)
}

func (v *SelectedPlayer) resolve() Selection {
	uuid, ok := v.prefs.Get().Selected()
	if !ok {
		return Selection{}
	}
	player, found := v.players.Player(uuid)
	if !found {
		return Selection{UUID: uuid}
	}
	return Selection{UUID: uuid, Player: player, Found: true}
}
