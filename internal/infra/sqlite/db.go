// Package sqlite provides SQLite-based persistent storage for VibeLoop.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/vibeloop/vibeloop/internal/domain"
)

// FileName is the database file created inside the data directory.
const FileName = "vibeloop.db"

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/vibeloop.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, FileName)
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer; one connection also serializes every
	// read-modify-write transaction on the ledger table.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Ledgers: one row per user. The full aggregate lives in data as
		// JSON; xp and level are denormalized for listing.
		`CREATE TABLE IF NOT EXISTS ledgers (
			user_id    TEXT PRIMARY KEY,
			xp         INTEGER NOT NULL DEFAULT 0,
			level      INTEGER NOT NULL DEFAULT 1,
			data       TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		// Applied events. Event IDs are unique per user; the primary key
		// makes redelivery a no-op.
		`CREATE TABLE IF NOT EXISTS events (
			id          TEXT NOT NULL,
			user_id     TEXT NOT NULL,
			kind        TEXT NOT NULL,
			occurred_at INTEGER NOT NULL,
			payload     TEXT NOT NULL,
			applied_at  INTEGER NOT NULL,
			PRIMARY KEY (user_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_user ON events(user_id, occurred_at)`,

		// XP journal: append-only, balance is the ledger XP after the grant.
		`CREATE TABLE IF NOT EXISTS xp_journal (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id   TEXT NOT NULL,
			source    TEXT NOT NULL,
			amount    INTEGER NOT NULL,
			reference TEXT NOT NULL DEFAULT '',
			balance   INTEGER NOT NULL,
			at        INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_xp_user ON xp_journal(user_id, id)`,

		// ─── Catalog ────────────────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS badge_definitions (
			id   TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			data TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_badges_type ON badge_definitions(type)`,

		`CREATE TABLE IF NOT EXISTS seasons (
			id         TEXT PRIMARY KEY,
			start_date INTEGER NOT NULL,
			end_date   INTEGER NOT NULL,
			active     BOOLEAN NOT NULL DEFAULT 0,
			data       TEXT NOT NULL
		)`,

		// Notification log (best-effort toasts for badges and level-ups)
		`CREATE TABLE IF NOT EXISTS notifications (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL,
			type       TEXT NOT NULL,
			title      TEXT NOT NULL,
			body       TEXT NOT NULL,
			badge_id   TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			shown      BOOLEAN DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notif_user ON notifications(user_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// classify maps a driver error onto the store error taxonomy. Lock
// contention is transient; everything else is persistent.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return &domain.TransientStoreError{Op: op, Err: err}
		}
	}
	if strings.Contains(err.Error(), "database is locked") {
		return &domain.TransientStoreError{Op: op, Err: err}
	}
	return &domain.PersistentStoreError{Op: op, Err: err}
}
