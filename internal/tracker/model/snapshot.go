package model

import "encoding/json"

// Snapshot is the bootstrap payload served by the game server. Progress and
// Classes are optional; older servers omit them.
type Snapshot struct {
	Advancements map[AdvancementKey]json.RawMessage `json:"advancements"`
	Players      PlayerTable                        `json:"players"`
	Categories   map[string]json.RawMessage         `json:"categories"`
	World        map[string]json.RawMessage         `json:"world"`
	Progress     ProgressTable                      `json:"progress,omitempty"`
	Classes      []string                           `json:"classes,omitempty"`
}

// EmptySnapshot returns a snapshot whose mappings are all empty, never nil.
func EmptySnapshot() Snapshot {
	var s Snapshot
	s.Normalize()
	return s
}

// Normalize replaces nil mappings with empty ones.
func (s *Snapshot) Normalize() {
	if s.Advancements == nil {
		s.Advancements = map[AdvancementKey]json.RawMessage{}
	}
	if s.Players == nil {
		s.Players = PlayerTable{}
	}
	if s.Categories == nil {
		s.Categories = map[string]json.RawMessage{}
	}
	if s.World == nil {
		s.World = map[string]json.RawMessage{}
	}
	if s.Progress == nil {
		s.Progress = ProgressTable{}
	}
	if s.Classes == nil {
		s.Classes = []string{}
	}
}

// WorldName returns the world's display name when present.
func (s Snapshot) WorldName() string {
	var name string
	if raw, ok := s.World["name"]; ok {
		_ = json.Unmarshal(raw, &name)
	}
	return name
}
