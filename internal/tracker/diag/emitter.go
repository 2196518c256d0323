package diag

import (
	"context"
	"time"
)

// Sink persists diagnostics.
type Sink interface {
	AppendDiagnostic(ctx context.Context, evt Event) error
}

// Emitter timestamps diagnostics and appends them to a Sink. When the sink
// fails the event and the failure go to the fallback reporter instead.
type Emitter struct {
	sink     Sink
	fallback Reporter
	clock    func() time.Time
}

// NewEmitter creates an emitter. A nil sink makes Report a no-op apart from
// the fallback.
func NewEmitter(sink Sink, fallback Reporter) *Emitter {
	return &Emitter{sink: sink, fallback: fallback, clock: time.Now}
}

// Report records evt.
func (e *Emitter) Report(ctx context.Context, evt Event) {
	if e == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		if e.clock == nil {
			evt.Timestamp = time.Now().UTC()
		} else {
			evt.Timestamp = e.clock().UTC()
		}
	}
	if e.sink == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := e.sink.AppendDiagnostic(ctx, evt); err != nil && e.fallback != nil {
		e.fallback.Report(ctx, evt)
		e.fallback.Report(ctx, FromError(evt.Kind, SeverityWarn, "persist diagnostic", err))
	}
}
