package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Partial unique index on schedules.application_number
const currentSchemaVersion = 1

// ErrNotFound is returned by reads and deletes targeting a record that
// does not exist.
var ErrNotFound = errors.New("record not found")

// ErrScheduleMissing is returned when a series upsert references a
// schedule identity that does not exist in this store.
var ErrScheduleMissing = errors.New("referenced schedule does not exist")

// Store provides durable storage for the records inventory.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db    *sql.DB
	clock *seqClock
	now   func() time.Time
	newID func() string
	actor string
}

// Option configures a Store at Open time.
type Option func(*Store)

// WithNow overrides the wall clock used for timestamps. Tests use this
// for deterministic created_at/updated_at values.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDSource overrides identity minting. Tests use this for
// deterministic handles; the default mints UUIDs.
func WithIDSource(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// WithActor sets the actor recorded on audit events for mutations made
// through this store handle.
func WithActor(actor string) Option {
	return func(s *Store) { s.actor = actor }
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically, and resumes
// the audit seq clock from the highest stored value.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
		actor: "local",
	}
	for _, opt := range opts {
		opt(s)
	}

	// Resume the logical clock so seq stays monotonic across restarts.
	var maxSeq sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(seq) FROM audit_events`).Scan(&maxSeq); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read audit seq: %w", err)
	}
	s.clock = newSeqClockAt(maxSeq.Int64)

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewID mints a fresh opaque identity from the store's ID source.
// The identity resolver uses this during import so all handles in one
// store come from a single source.
func (s *Store) NewID() string {
	return s.newID()
}

// Actor returns the actor recorded on audit events.
func (s *Store) Actor() string {
	return s.actor
}

// Now returns the store's current time. Tests pin this via WithNow so
// exported timestamps stay deterministic.
func (s *Store) Now() time.Time {
	return s.now()
}

// IsUnavailable reports whether err indicates the storage medium
// itself is failing (locked, full, or unreachable) rather than a
// single-record problem. Imports abort on these instead of skipping
// the record and continuing.
func IsUnavailable(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr, sqlite3.ErrFull, sqlite3.ErrCantOpen, sqlite3.ErrNotADB:
		return true
	}
	return false
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
		version = 1
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the partial unique index for databases created
// before it appeared in schema.sql. New databases get it from the
// schema directly; CREATE INDEX IF NOT EXISTS makes this a no-op there.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_schedules_application_number
		ON schedules(application_number)
		WHERE application_number IS NOT NULL
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// beginTx starts a transaction with the context attached.
func (s *Store) beginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}
