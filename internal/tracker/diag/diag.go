// Package diag records the tracker's degraded-path diagnostics.
//
// Transport drops, malformed frames, bootstrap failures and preference
// persistence problems are absorbed where they happen; a diagnostic is the
// only trace they leave.
package diag

import (
	"context"
	stderrors "errors"
	"time"

	apperrors "github.com/sebastos1/aa/internal/platform/errors"
)

// Severity describes the diagnostic severity level.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// Kind names the boundary that produced a diagnostic.
type Kind string

const (
	KindTransport   Kind = "transport"
	KindDecode      Kind = "decode"
	KindBootstrap   Kind = "bootstrap"
	KindPreferences Kind = "preferences"
)

// Event is one diagnostic record.
type Event struct {
	Timestamp  time.Time
	Kind       Kind
	Severity   Severity
	Code       apperrors.Code
	Message    string
	Attributes map[string]string
}

// Reporter receives diagnostics. Implementations must not block for long
// and must never panic on malformed events.
type Reporter interface {
	Report(ctx context.Context, evt Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, evt Event)

// Report calls f.
func (f ReporterFunc) Report(ctx context.Context, evt Event) { f(ctx, evt) }

// FromError builds an event for err, copying its domain code and metadata.
func FromError(kind Kind, severity Severity, message string, err error) Event {
	evt := Event{Kind: kind, Severity: severity, Message: message}
	if err == nil {
		return evt
	}
	evt.Message = message + ": " + err.Error()
	evt.Code = apperrors.CodeOf(err)
	var domainErr *apperrors.Error
	if stderrors.As(err, &domainErr) && len(domainErr.Metadata) > 0 {
		evt.Attributes = make(map[string]string, len(domainErr.Metadata))
		for k, v := range domainErr.Metadata {
			evt.Attributes[k] = v
		}
	}
	return evt
}

// Nop discards diagnostics.
func Nop() Reporter { return ReporterFunc(func(context.Context, Event) {}) }

// Multi fans a diagnostic out to every non-nil reporter in order.
type Multi []Reporter

// Report forwards evt to each reporter.
func (m Multi) Report(ctx context.Context, evt Event) {
	for _, r := range m {
		if r != nil {
			r.Report(ctx, evt)
		}
	}
}

// OrNop returns r, or a discarding reporter when r is nil.
func OrNop(r Reporter) Reporter {
	if r == nil {
		return Nop()
	}
	return r
}
