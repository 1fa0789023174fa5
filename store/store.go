// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/statebridge-dev/statebridge/codec"
	"github.com/statebridge-dev/statebridge/lib/sqlitepool"
)

// ErrUnavailable reports that the entry container could not be opened
// even after the single schema-upgrade attempt. It is fatal to the
// cycle that needed the store, not to the process: the daemon retries
// the open on a bounded schedule and can run bridge-only without one.
var ErrUnavailable = errors.New("store: entry container unavailable")

// Config holds the parameters for opening an entry store.
type Config struct {
	// Path is the SQLite database file. Required.
	Path string

	// PoolSize is the connection pool size. Defaults per sqlitepool.
	PoolSize int

	// TimestampIndex creates the secondary timestamp index during the
	// schema upgrade and enables the key→timestamp mapping in GetAll.
	TimestampIndex bool

	// Logger receives operational messages. Nil disables logging.
	Logger *slog.Logger
}

// Store is the binary-capable structured store: string keys mapped to
// codec values, persisted as deterministic CBOR in SQLite, with an
// optional numeric timestamp per entry and a secondary index over it.
//
// Every call is atomic on its own; no cross-call atomicity is offered
// or needed — the sync engine relies on idempotent per-key upserts
// instead of store-wide locking.
type Store struct {
	pool     *sqlitepool.Pool
	hasIndex bool
	logger   *slog.Logger
}

// Token is the opaque success token returned by Put. It is the rowid
// of the upserted entry; callers must not interpret it.
type Token int64

// Open opens the entry container. If the container is missing or
// incomplete, Open performs exactly one schema-upgrade attempt —
// creating the entries table and, when configured, the timestamp
// index — and probes once more. A second failure returns an error
// wrapping ErrUnavailable.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	s := &Store{pool: pool, hasIndex: cfg.TimestampIndex, logger: logger}
	if err := s.ensureSchema(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// ensureSchema probes for the entries table and, when configured,
// the timestamp index, upgrading the schema at most once before the
// second and final probe.
func (s *Store) ensureSchema(ctx context.Context) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer s.pool.Put(conn)

	if s.schemaComplete(conn) {
		return nil
	}

	s.logger.Info("entry container missing or incomplete, upgrading schema",
		"timestamp_index", s.hasIndex,
	)
	if err := s.upgradeSchema(conn); err != nil {
		return fmt.Errorf("%w: schema upgrade: %v", ErrUnavailable, err)
	}
	if !s.schemaComplete(conn) {
		return fmt.Errorf("%w: container still incomplete after upgrade", ErrUnavailable)
	}
	return nil
}

// schemaComplete reports whether everything GetAll relies on exists.
// A database created without the timestamp index and reopened with it
// enabled is incomplete, not broken: the upgrade adds the index to
// the existing table.
func (s *Store) schemaComplete(conn *sqlite.Conn) bool {
	if !s.objectExists(conn, "table", "entries") {
		return false
	}
	if s.hasIndex && !s.objectExists(conn, "index", "entries_by_timestamp") {
		return false
	}
	return true
}

func (s *Store) objectExists(conn *sqlite.Conn, objectType, name string) bool {
	var found bool
	err := sqlitex.Execute(conn,
		`SELECT 1 FROM sqlite_master WHERE type = ? AND name = ?`,
		&sqlitex.ExecOptions{
			Args: []any{objectType, name},
			ResultFunc: func(*sqlite.Stmt) error {
				found = true
				return nil
			},
		})
	return err == nil && found
}

func (s *Store) upgradeSchema(conn *sqlite.Conn) error {
	script := `
		CREATE TABLE IF NOT EXISTS entries (
			key       TEXT PRIMARY KEY,
			value     BLOB NOT NULL,
			timestamp INTEGER
		);
	`
	if s.hasIndex {
		script += `
		CREATE INDEX IF NOT EXISTS entries_by_timestamp
			ON entries(timestamp) WHERE timestamp IS NOT NULL;
		`
	}
	return sqlitex.ExecuteScript(conn, script, nil)
}

// GetAll returns every (key, value) pair, plus a key→timestamp map
// sourced from the secondary index when the store was opened with one
// (nil otherwise). Enumeration order is unspecified. Rows whose value
// blob fails to deserialize are logged and skipped; the enumeration
// continues.
func (s *Store) GetAll(ctx context.Context) (map[string]codec.Value, map[string]int64, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("store: get all: %w", err)
	}
	defer s.pool.Put(conn)

	values := make(map[string]codec.Value)
	err = sqlitex.Execute(conn, `SELECT key, value FROM entries`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			key := stmt.ColumnText(0)
			blob := make([]byte, stmt.ColumnLen(1))
			stmt.ColumnBytes(1, blob)
			value, err := unmarshalValue(blob)
			if err != nil {
				s.logger.Warn("skipping undecodable entry", "key", key, "error", err)
				return nil
			}
			values[key] = value
			return nil
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("store: get all: %w", err)
	}

	if !s.hasIndex {
		return values, nil, nil
	}

	timestamps := make(map[string]int64)
	err = sqlitex.Execute(conn,
		`SELECT key, timestamp FROM entries INDEXED BY entries_by_timestamp
		 WHERE timestamp IS NOT NULL`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				timestamps[stmt.ColumnText(0)] = stmt.ColumnInt64(1)
				return nil
			},
		})
	if err != nil {
		return nil, nil, fmt.Errorf("store: get timestamps: %w", err)
	}
	return values, timestamps, nil
}

// Put upserts a value under key. Idempotent: repeating a Put with the
// same value leaves the store unchanged. An existing timestamp on the
// entry is preserved — timestamps belong to the application's own
// writes, and the import path must not erase them.
func (s *Store) Put(ctx context.Context, key string, value codec.Value) (Token, error) {
	return s.put(ctx, key, value, nil)
}

// PutWithTimestamp upserts a value and sets its timestamp.
func (s *Store) PutWithTimestamp(ctx context.Context, key string, value codec.Value, timestamp int64) (Token, error) {
	return s.put(ctx, key, value, &timestamp)
}

func (s *Store) put(ctx context.Context, key string, value codec.Value, timestamp *int64) (Token, error) {
	blob, err := marshalValue(ctx, value)
	if err != nil {
		return 0, fmt.Errorf("store: put %q: %w", key, err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: put %q: %w", key, err)
	}
	defer s.pool.Put(conn)

	var query string
	args := []any{key, blob}
	if timestamp == nil {
		query = `INSERT INTO entries (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	} else {
		query = `INSERT INTO entries (key, value, timestamp) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, timestamp = excluded.timestamp`
		args = append(args, *timestamp)
	}
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args})
	if err != nil {
		return 0, fmt.Errorf("store: put %q: %w", key, err)
	}
	return Token(conn.LastInsertRowID()), nil
}

// Clear removes every entry. Used by the remote-initiated full
// replace and by tests.
func (s *Store) Clear(ctx context.Context) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: clear: %w", err)
	}
	defer s.pool.Put(conn)

	if err := sqlitex.Execute(conn, `DELETE FROM entries`, nil); err != nil {
		return fmt.Errorf("store: clear: %w", err)
	}
	return nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
