package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"framex/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes.
const schemaVersion = 1

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	schemaLockTimeout = 5 * time.Second
	schemaLockRetry   = 50 * time.Millisecond

	// DefaultListLimit bounds List when the caller passes no limit.
	DefaultListLimit = 20
)

// ErrSchemaMismatch indicates the database was created by a different schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Status values recorded for a session.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Entry is one recorded extraction session.
type Entry struct {
	ID          string
	SourcePath  string
	Status      string
	Codec       string
	Width       int
	Height      int
	Rotation    int
	DurationMs  int64
	FrameBudget int
	Delivered   int
	Decoded     int
	Dropped     int
	Error       string
	StartedAt   time.Time
	Elapsed     time.Duration
}

// Store manages session history persistence.
type Store struct {
	db   *sql.DB
	path string
}

// OpenFromConfig opens the history database under the configured data directory.
func OpenFromConfig(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return Open(cfg.HistoryPath())
}

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchemaLocked(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchemaLocked(ctx context.Context) error {
	lock := flock.New(s.path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, schemaLockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(lockCtx, schemaLockRetry)
	if err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if !locked {
		return errors.New("acquire schema lock: lock held by another process")
	}
	defer func() { _ = lock.Unlock() }()
	return s.initSchema(ctx)
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset history)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Record inserts a finished session. An empty ID is assigned a new UUID,
// and a zero StartedAt is set to the current time.
func (s *Store) Record(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return errors.New("record session: nil entry")
	}
	if strings.TrimSpace(entry.SourcePath) == "" {
		return errors.New("record session: empty source path")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Status == "" {
		entry.Status = StatusCompleted
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now()
	}
	return s.execWithRetry(ctx, `INSERT INTO sessions (
		id, source_path, status, codec, width, height, rotation, duration_ms,
		frame_budget, delivered, decoded, dropped, error_message, started_at, elapsed_ms
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.SourcePath,
		entry.Status,
		nullableString(entry.Codec),
		entry.Width,
		entry.Height,
		entry.Rotation,
		entry.DurationMs,
		entry.FrameBudget,
		entry.Delivered,
		entry.Decoded,
		entry.Dropped,
		nullableString(entry.Error),
		entry.StartedAt.UTC().Format(time.RFC3339Nano),
		entry.Elapsed.Milliseconds(),
	)
}

// List returns up to limit sessions, most recent first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, source_path, status, codec, width, height, rotation, duration_ms,
		frame_budget, delivered, decoded, dropped, error_message, started_at, elapsed_ms
	FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry     Entry
			codec     sql.NullString
			errMsg    sql.NullString
			startedAt string
			elapsedMs int64
		)
		if err := rows.Scan(
			&entry.ID, &entry.SourcePath, &entry.Status, &codec,
			&entry.Width, &entry.Height, &entry.Rotation, &entry.DurationMs,
			&entry.FrameBudget, &entry.Delivered, &entry.Decoded, &entry.Dropped,
			&errMsg, &startedAt, &elapsedMs,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		entry.Codec = codec.String
		entry.Error = errMsg.String
		if ts, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			entry.StartedAt = ts
		}
		entry.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return entries, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}
