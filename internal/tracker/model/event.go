package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	apperrors "github.com/sebastos1/aa/internal/platform/errors"
)

// Envelope field names of an update frame.
const (
	FieldUUID            = "uuid"
	FieldPlayer          = "player"
	FieldUpdatedProgress = "updatedProgress"
)

// UpdateEvent carries one player's latest snapshot and complete current
// progress set. It is consumed once and never retained.
type UpdateEvent struct {
	UUID            UUID                              `json:"uuid"`
	Player          Player                            `json:"player"`
	UpdatedProgress map[AdvancementKey]ProgressDetail `json:"updatedProgress"`
}

// DecodeUpdateEvent validates and decodes one frame payload. Failures are
// returned as *errors.Error values with a DECODE_* code and the offending
// field in Metadata["field"].
func DecodeUpdateEvent(data []byte) (UpdateEvent, error) {
	if !utf8.Valid(data) {
		return UpdateEvent{}, apperrors.New(apperrors.CodeDecodeInvalidUTF8, "update frame is not valid UTF-8")
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return UpdateEvent{}, apperrors.New(apperrors.CodeDecodeInvalidJSON, "update frame is not a JSON object")
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return UpdateEvent{}, apperrors.Wrap(apperrors.CodeDecodeInvalidJSON, "decode update frame", err)
	}

	var evt UpdateEvent

	rawUUID, ok := envelope[FieldUUID]
	if !ok {
		return UpdateEvent{}, missingField(FieldUUID)
	}
	if err := json.Unmarshal(rawUUID, &evt.UUID); err != nil || isNull(rawUUID) {
		return UpdateEvent{}, invalidField(FieldUUID, err)
	}
	evt.UUID = strings.TrimSpace(evt.UUID)
	if evt.UUID == "" {
		return UpdateEvent{}, apperrors.WithMetadata(apperrors.CodeDecodeEmptyIdentity, "update uuid is empty", map[string]string{"field": FieldUUID})
	}

	rawPlayer, ok := envelope[FieldPlayer]
	if !ok {
		return UpdateEvent{}, missingField(FieldPlayer)
	}
	if isNull(rawPlayer) {
		return UpdateEvent{}, invalidField(FieldPlayer, nil)
	}
	evt.Player = Player(cloneBytes(rawPlayer))

	rawProgress, ok := envelope[FieldUpdatedProgress]
	if !ok {
		return UpdateEvent{}, missingField(FieldUpdatedProgress)
	}
	if isNull(rawProgress) {
		return UpdateEvent{}, invalidField(FieldUpdatedProgress, nil)
	}
	var progress map[AdvancementKey]ProgressDetail
	if err := json.Unmarshal(rawProgress, &progress); err != nil {
		return UpdateEvent{}, invalidField(FieldUpdatedProgress, err)
	}
	if progress == nil {
		progress = map[AdvancementKey]ProgressDetail{}
	}
	evt.UpdatedProgress = progress

	return evt, nil
}

// IsDecodeError reports whether err rejects a single update frame, either
// from DecodeUpdateEvent or because the frame exceeded the size limit.
func IsDecodeError(err error) bool {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeDecodeInvalidUTF8, apperrors.CodeDecodeInvalidJSON,
		apperrors.CodeDecodeMissingField, apperrors.CodeDecodeInvalidField,
		apperrors.CodeDecodeEmptyIdentity, apperrors.CodeDecodeFrameTooLarge:
		return true
	default:
		return false
	}
}

func missingField(field string) error {
	return apperrors.WithMetadata(apperrors.CodeDecodeMissingField, "update "+field+" is required", map[string]string{"field": field})
}

func invalidField(field string, cause error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeDecodeInvalidField, "update "+field+" is invalid", map[string]string{"field": field}, cause)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
