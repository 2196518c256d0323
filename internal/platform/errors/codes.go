// Package errors provides structured, code-carrying errors for the tracker.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Decode errors for inbound update frames.
	CodeDecodeInvalidUTF8   Code = "DECODE_INVALID_UTF8"
	CodeDecodeInvalidJSON   Code = "DECODE_INVALID_JSON"
	CodeDecodeMissingField  Code = "DECODE_MISSING_FIELD"
	CodeDecodeInvalidField  Code = "DECODE_INVALID_FIELD"
	CodeDecodeEmptyIdentity Code = "DECODE_EMPTY_UUID"
	CodeDecodeFrameTooLarge Code = "DECODE_FRAME_TOO_LARGE"

	// Stream transport errors.
	CodeTransportConnect     Code = "TRANSPORT_CONNECT"
	CodeTransportStatus      Code = "TRANSPORT_STATUS"
	CodeTransportContentType Code = "TRANSPORT_CONTENT_TYPE"
	CodeTransportRead        Code = "TRANSPORT_READ"
	CodeTransportClosed      Code = "TRANSPORT_CLOSED"

	// Bootstrap snapshot errors.
	CodeBootstrapFetch  Code = "BOOTSTRAP_FETCH"
	CodeBootstrapStatus Code = "BOOTSTRAP_STATUS"
	CodeBootstrapDecode Code = "BOOTSTRAP_DECODE"

	// Preference persistence errors.
	CodePreferencesParse Code = "PREFERENCES_PARSE"
	CodePreferencesRead  Code = "PREFERENCES_READ"
	CodePreferencesWrite Code = "PREFERENCES_WRITE"

	// State container errors.
	CodeStaticAlreadyLoaded Code = "STATIC_ALREADY_LOADED"

	// Lookup errors.
	CodeNotFound Code = "NOT_FOUND"
)

// Diagnostic reports whether errors with this code are expected to be
// absorbed at their boundary and surfaced only as diagnostics.
func (c Code) Diagnostic() bool {
	switch c {
	case CodeDecodeInvalidUTF8, CodeDecodeInvalidJSON, CodeDecodeMissingField,
		CodeDecodeInvalidField, CodeDecodeEmptyIdentity, CodeDecodeFrameTooLarge,
		CodeTransportConnect, CodeTransportStatus, CodeTransportContentType,
		CodeTransportRead, CodeTransportClosed,
		CodeBootstrapFetch, CodeBootstrapStatus, CodeBootstrapDecode,
		CodePreferencesParse, CodePreferencesRead, CodePreferencesWrite:
		return true
	default:
		return false
	}
}
