package diag

import (
	"context"
	"log"
	"sort"
	"strings"
)

// LogReporter writes diagnostics through a standard logger.
type LogReporter struct {
	// Logger defaults to the standard logger when nil.
	Logger *log.Logger
}

// Report logs evt on one line.
func (r LogReporter) Report(_ context.Context, evt Event) {
	var b strings.Builder
	b.WriteString(string(evt.Severity))
	b.WriteString(" [")
	b.WriteString(string(evt.Kind))
	b.WriteString("]")
	if evt.Code != "" {
		b.WriteString(" ")
		b.WriteString(string(evt.Code))
	}
	b.WriteString(" ")
	b.WriteString(evt.Message)

	keys := make([]string, 0, len(evt.Attributes))
	for k := range evt.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(evt.Attributes[k])
	}

	if r.Logger != nil {
		r.Logger.Print(b.String())
		return
	}
	log.Print(b.String())
}
