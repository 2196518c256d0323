package state

import (
	"encoding/json"
	"sync"

	apperrors "github.com/sebastos1/aa/internal/platform/errors"
	"github.com/sebastos1/aa/internal/tracker/model"
)

// Static holds the bootstrap data that never changes after startup:
// advancement definitions, categories, world metadata and classes.
type Static struct {
	mu           sync.RWMutex
	loaded       bool
	advancements map[model.AdvancementKey]json.RawMessage
	categories   map[string]json.RawMessage
	world        map[string]json.RawMessage
	classes      []string
}

// NewStatic creates an unloaded container whose mappings are empty.
func NewStatic() *Static {
	return &Static{
		advancements: map[model.AdvancementKey]json.RawMessage{},
		categories:   map[string]json.RawMessage{},
		world:        map[string]json.RawMessage{},
		classes:      []string{},
	}
}

// Load stores the static parts of snap. It succeeds once; later calls return
// a STATIC_ALREADY_LOADED error and leave the container unchanged.
func (s *Static) Load(snap model.Snapshot) error {
	snap.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return apperrors.New(apperrors.CodeStaticAlreadyLoaded, "static bootstrap data already loaded")
	}
	s.advancements = cloneRawMap(snap.Advancements)
	s.categories = cloneRawMap(snap.Categories)
	s.world = cloneRawMap(snap.World)
	s.classes = append([]string{}, snap.Classes...)
	s.loaded = true
	return nil
}

// Loaded reports whether Load has run.
func (s *Static) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Advancements returns a copy of the advancement definitions.
func (s *Static) Advancements() map[model.AdvancementKey]json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRawMap(s.advancements)
}

// Categories returns a copy of the advancement categories.
func (s *Static) Categories() map[string]json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRawMap(s.categories)
}

// World returns a copy of the world metadata.
func (s *Static) World() map[string]json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRawMap(s.world)
}

// Classes returns a copy of the advancement class list.
func (s *Static) Classes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.classes...)
}

// WorldName returns the world's display name when present.
func (s *Static) WorldName() string {
	return model.Snapshot{World: s.World()}.WorldName()
}

func cloneRawMap[K comparable](in map[K]json.RawMessage) map[K]json.RawMessage {
	out := make(map[K]json.RawMessage, len(in))
	for key, value := range in {
		out[key] = append(json.RawMessage(nil), value...)
	}
	return out
}
