// Package store provides the SQLite store of record for sessions: factions,
// generals, cities, battles, and the durable command queue table.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/parkjunho/samguk/internal/command"
)

// ErrNotFound reports a missing record.
var ErrNotFound = errors.New("record not found")

// Store wraps the SQLite connection. The daemon is the only writer; the API
// layer reads through its own connection and never mutates gameplay fields.
type Store struct {
	db *sqlx.DB
}

// Open opens or creates the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite allows one writer; a single connection avoids busy errors
	// between the consumer workers and the tick loop.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for collaborating packages (queue).
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// RunInTx runs fn inside one transaction so partial application is
// impossible. Begin/commit failures are transient: the command is nacked and
// retried, never partially applied.
func (s *Store) RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return command.Transientf("begin tx: %v", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return command.Transientf("commit tx: %v", err)
	}
	return nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS factions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		name TEXT NOT NULL,
		doctrine TEXT NOT NULL DEFAULT '',
		gold INTEGER NOT NULL DEFAULT 0,
		rice INTEGER NOT NULL DEFAULT 0,
		eliminated INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS generals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		faction_id INTEGER NOT NULL,
		city_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		leadership INTEGER NOT NULL DEFAULT 50,
		strength INTEGER NOT NULL DEFAULT 50,
		intellect INTEGER NOT NULL DEFAULT 50,
		personality TEXT NOT NULL DEFAULT '',
		items TEXT NOT NULL DEFAULT '[]',
		troops INTEGER NOT NULL DEFAULT 0,
		training INTEGER NOT NULL DEFAULT 0,
		gold INTEGER NOT NULL DEFAULT 0,
		rice INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS cities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		faction_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		x INTEGER NOT NULL DEFAULT 0,
		y INTEGER NOT NULL DEFAULT 0,
		population INTEGER NOT NULL DEFAULT 0,
		commerce INTEGER NOT NULL DEFAULT 0,
		agriculture INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS battles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		city_id INTEGER NOT NULL,
		attacker_general_id INTEGER NOT NULL,
		defender_general_id INTEGER,
		attacker_faction_id INTEGER NOT NULL,
		defender_faction_id INTEGER NOT NULL,
		attacker_troops INTEGER NOT NULL,
		defender_troops INTEGER NOT NULL,
		round INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active'
	);

	CREATE TABLE IF NOT EXISTS commands (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		actor_id INTEGER NOT NULL,
		target_id INTEGER,
		kind TEXT NOT NULL,
		args TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		enqueued_at_ms INTEGER NOT NULL,
		not_before_ms INTEGER NOT NULL DEFAULT 0,
		completes_at_ms INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS session_meta (
		session_id TEXT PRIMARY KEY,
		started_at_ms INTEGER NOT NULL,
		last_turn_day INTEGER NOT NULL DEFAULT -1
	);

	CREATE INDEX IF NOT EXISTS idx_commands_status ON commands(session_id, status, not_before_ms);
	CREATE INDEX IF NOT EXISTS idx_commands_actor ON commands(session_id, actor_id, status);
	CREATE INDEX IF NOT EXISTS idx_generals_session ON generals(session_id);
	CREATE INDEX IF NOT EXISTS idx_cities_faction ON cities(session_id, faction_id);
	CREATE INDEX IF NOT EXISTS idx_battles_status ON battles(session_id, status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// wrapGet maps sql.ErrNoRows to ErrNotFound.
func wrapGet(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
