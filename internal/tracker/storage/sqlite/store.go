package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/sebastos1/aa/internal/platform/storage/sqlitemigrate"
	"github.com/sebastos1/aa/internal/tracker/diag"
	"github.com/sebastos1/aa/internal/tracker/storage"
	"github.com/sebastos1/aa/internal/tracker/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// DefaultDiagnosticsRetention bounds the diagnostics journal.
const DefaultDiagnosticsRetention = 500

// Store provides SQLite-backed persistence for preferences and diagnostics.
type Store struct {
	sqlDB     *sql.DB
	retention int
	clock     func() time.Time
}

// Open opens and migrates a tracker SQLite store.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB, retention: DefaultDiagnosticsRetention, clock: time.Now}
	if err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SetDiagnosticsRetention changes how many diagnostics are kept; values
// below one keep the default.
func (s *Store) SetDiagnosticsRetention(keep int) {
	if s == nil {
		return
	}
	if keep < 1 {
		keep = DefaultDiagnosticsRetention
	}
	s.retention = keep
}

// GetPreference loads a preference payload by key.
func (s *Store) GetPreference(ctx context.Context, key string) (storage.PreferenceRecord, bool, error) {
	if s == nil || s.sqlDB == nil {
		return storage.PreferenceRecord{}, false, fmt.Errorf("storage is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return storage.PreferenceRecord{}, false, fmt.Errorf("preference key is required")
	}

	var record storage.PreferenceRecord
	var updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT pref_key, payload, updated_at FROM preferences WHERE pref_key = ?`,
		key,
	).Scan(&record.Key, &record.Payload, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.PreferenceRecord{}, false, nil
	}
	if err != nil {
		return storage.PreferenceRecord{}, false, fmt.Errorf("get preference: %w", err)
	}
	record.UpdatedAt = unixMillisToTime(updatedAt)
	return record, true, nil
}

// PutPreference upserts a preference payload by key.
func (s *Store) PutPreference(ctx context.Context, key string, payload []byte) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("preference key is required")
	}
	if payload == nil {
		return fmt.Errorf("preference payload is required")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO preferences (pref_key, payload, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(pref_key) DO UPDATE SET
		    payload = excluded.payload,
		    updated_at = excluded.updated_at`,
		key,
		payload,
		timeToUnixMillis(s.now()),
	)
	if err != nil {
		return fmt.Errorf("put preference: %w", err)
	}
	return nil
}

// DeletePreference removes a preference payload by key.
func (s *Store) DeletePreference(ctx context.Context, key string) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("preference key is required")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM preferences WHERE pref_key = ?`, key); err != nil {
		return fmt.Errorf("delete preference: %w", err)
	}
	return nil
}

// AppendDiagnostic stores one diagnostic and prunes rows beyond retention.
func (s *Store) AppendDiagnostic(ctx context.Context, evt diag.Event) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	attributes := evt.Attributes
	if attributes == nil {
		attributes = map[string]string{}
	}
	attributesJSON, err := json.Marshal(attributes)
	if err != nil {
		return fmt.Errorf("marshal diagnostic attributes: %w", err)
	}
	recordedAt := evt.Timestamp
	if recordedAt.IsZero() {
		recordedAt = s.now()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin diagnostic insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO diagnostics (kind, severity, code, message, attributes_json, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(evt.Kind),
		string(evt.Severity),
		string(evt.Code),
		evt.Message,
		string(attributesJSON),
		timeToUnixMillis(recordedAt),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("append diagnostic: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM diagnostics
		 WHERE id NOT IN (SELECT id FROM diagnostics ORDER BY id DESC LIMIT ?)`,
		s.retention,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prune diagnostics: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit diagnostic: %w", err)
	}
	return nil
}

// ListDiagnostics returns up to limit diagnostics, newest first.
func (s *Store) ListDiagnostics(ctx context.Context, limit int) ([]storage.DiagnosticRecord, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, kind, severity, code, message, attributes_json, recorded_at
		 FROM diagnostics
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list diagnostics: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	records := make([]storage.DiagnosticRecord, 0)
	for rows.Next() {
		var record storage.DiagnosticRecord
		var attributesJSON string
		var recordedAt int64
		if err := rows.Scan(
			&record.ID,
			&record.Kind,
			&record.Severity,
			&record.Code,
			&record.Message,
			&attributesJSON,
			&recordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		if err := json.Unmarshal([]byte(attributesJSON), &record.Attributes); err != nil {
			return nil, fmt.Errorf("decode diagnostic attributes: %w", err)
		}
		record.RecordedAt = unixMillisToTime(recordedAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostics: %w", err)
	}
	return records, nil
}

func (s *Store) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func timeToUnixMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func unixMillisToTime(value int64) time.Time {
	if value <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

var (
	_ storage.PreferenceStore = (*Store)(nil)
	_ storage.DiagnosticStore = (*Store)(nil)
	_ diag.Sink               = (*Store)(nil)
)
