package model

import (
	"bytes"
	"encoding/json"
)

// UUID identifies a player.
type UUID = string

// AdvancementKey identifies one advancement definition.
type AdvancementKey = string

// Player is an opaque player snapshot, replaced wholesale on update.
type Player json.RawMessage

// ProgressDetail is an opaque per-player progress payload for one advancement.
type ProgressDetail json.RawMessage

// MarshalJSON emits the stored bytes verbatim.
func (p Player) MarshalJSON() ([]byte, error) { return rawOrNull(p), nil }

// UnmarshalJSON stores a private copy of data.
func (p *Player) UnmarshalJSON(data []byte) error {
	*p = Player(cloneBytes(data))
	return nil
}

// Clone returns an independent copy.
func (p Player) Clone() Player { return Player(cloneBytes(p)) }

// Equal reports byte equality of two snapshots.
func (p Player) Equal(other Player) bool { return bytes.Equal(p, other) }

// Summary decodes the display fields of the snapshot. Snapshots without
// these fields, or that are not objects, yield a zero summary.
func (p Player) Summary() PlayerSummary {
	var summary PlayerSummary
	_ = json.Unmarshal(p, &summary)
	return summary
}

// MarshalJSON emits the stored bytes verbatim.
func (d ProgressDetail) MarshalJSON() ([]byte, error) { return rawOrNull(d), nil }

// UnmarshalJSON stores a private copy of data.
func (d *ProgressDetail) UnmarshalJSON(data []byte) error {
	*d = ProgressDetail(cloneBytes(data))
	return nil
}

// Clone returns an independent copy.
func (d ProgressDetail) Clone() ProgressDetail { return ProgressDetail(cloneBytes(d)) }

// Equal reports byte equality of two details.
func (d ProgressDetail) Equal(other ProgressDetail) bool { return bytes.Equal(d, other) }

// PlayerSummary holds the fields the dashboard shows for a player.
type PlayerSummary struct {
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

func cloneBytes(data []byte) []byte {
	if data == nil {
		return nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out
}

func rawOrNull(data []byte) []byte {
	if len(data) == 0 {
		return []byte("null")
	}
	return data
}
