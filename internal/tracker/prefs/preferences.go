package prefs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "github.com/sebastos1/aa/internal/platform/errors"
	"github.com/sebastos1/aa/internal/tracker/model"
)

// Key is the logical key preferences are stored under in every substrate.
const Key = "client-settings"

const (
	fieldTestFlag       = "testFlag"
	fieldCoopMode       = "coopMode"
	fieldSelectedPlayer = "selectedPlayerUuid"
	// Older clients wrote the selection under this name.
	fieldLegacySelectedPlayer = "selectedPlayer"
)

// Preferences is the persisted user settings document.
type Preferences struct {
	TestFlag           bool        `json:"testFlag"`
	CoopMode           bool        `json:"coopMode"`
	SelectedPlayerUUID *model.UUID `json:"selectedPlayerUuid"`
}

// Defaults returns the built-in preference values.
func Defaults() Preferences {
	return Preferences{}
}

// Clone returns a copy that shares no memory with p.
func (p Preferences) Clone() Preferences {
	out := p
	if p.SelectedPlayerUUID != nil {
		uuid := *p.SelectedPlayerUUID
		out.SelectedPlayerUUID = &uuid
	}
	return out
}

// Selected returns the selected player UUID, if any.
func (p Preferences) Selected() (model.UUID, bool) {
	if p.SelectedPlayerUUID == nil {
		return "", false
	}
	return *p.SelectedPlayerUUID, true
}

// Equal reports whether p and other hold the same values.
func (p Preferences) Equal(other Preferences) bool {
	if p.TestFlag != other.TestFlag || p.CoopMode != other.CoopMode {
		return false
	}
	a, aok := p.Selected()
	b, bok := other.Selected()
	return aok == bok && a == b
}

// Encode renders p as its persisted JSON form.
func Encode(p Preferences) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode preferences: %w", err)
	}
	return data, nil
}

// Decode parses a persisted payload and merges it over Defaults, persisted
// fields winning. Unknown fields are ignored. A null field keeps its
// default. Any other shape problem fails the whole payload.
func Decode(data []byte) (Preferences, error) {
	out := Defaults()
	if !utf8.Valid(data) {
		return out, apperrors.New(apperrors.CodePreferencesParse, "preferences are not valid UTF-8")
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return out, apperrors.New(apperrors.CodePreferencesParse, "preferences must be a JSON object")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Defaults(), apperrors.Wrap(apperrors.CodePreferencesParse, "decode preferences", err)
	}

	if err := decodeField(fields, fieldTestFlag, &out.TestFlag); err != nil {
		return Defaults(), err
	}
	if err := decodeField(fields, fieldCoopMode, &out.CoopMode); err != nil {
		return Defaults(), err
	}

	selectedField := fieldSelectedPlayer
	if _, ok := fields[selectedField]; !ok {
		selectedField = fieldLegacySelectedPlayer
	}
	var selected *string
	if err := decodeField(fields, selectedField, &selected); err != nil {
		return Defaults(), err
	}
	if selected != nil {
		if uuid := strings.TrimSpace(*selected); uuid != "" {
			out.SelectedPlayerUUID = &uuid
		}
	}
	return out, nil
}

func decodeField(fields map[string]json.RawMessage, name string, target any) error {
	raw, ok := fields[name]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return apperrors.WrapWithMetadata(
			apperrors.CodePreferencesParse,
			"decode preference field",
			map[string]string{"field": name},
			err,
		)
	}
	return nil
}
