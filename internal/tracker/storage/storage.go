package storage

import (
	"context"
	"time"
)

// PreferenceRecord is one persisted preference payload.
type PreferenceRecord struct {
	Key       string
	Payload   []byte
	UpdatedAt time.Time
}

// DiagnosticRecord is one persisted diagnostic row.
type DiagnosticRecord struct {
	ID         int64
	Kind       string
	Severity   string
	Code       string
	Message    string
	Attributes map[string]string
	RecordedAt time.Time
}

// PreferenceStore persists raw preference payloads by logical key.
type PreferenceStore interface {
	GetPreference(ctx context.Context, key string) (PreferenceRecord, bool, error)
	PutPreference(ctx context.Context, key string, payload []byte) error
	DeletePreference(ctx context.Context, key string) error
}

// DiagnosticStore persists diagnostics, newest kept.
type DiagnosticStore interface {
	ListDiagnostics(ctx context.Context, limit int) ([]DiagnosticRecord, error)
}
