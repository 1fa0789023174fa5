// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Config holds the parameters for opening a SQLite connection pool.
// Path is required.
type Config struct {
	// Path is the filesystem path to the database file, created if
	// absent. ":memory:" opens an in-memory database; the pool size
	// must then be 1 because every in-memory connection is its own
	// database.
	Path string

	// PoolSize is the number of connections. Defaults to 4 when zero
	// or negative. Statebridge's workload is a single writer (the
	// sync engine) plus occasional bridge-driven reads, so a small
	// pool is plenty.
	PoolSize int

	// Logger receives open/close messages. Nil means no logging.
	Logger *slog.Logger

	// OnConnect runs once per connection after the standard pragmas,
	// for per-connection setup the pragmas do not cover.
	OnConnect func(conn *sqlite.Conn) error
}

// Pool is a fixed-size pool of SQLite connections with statebridge's
// standard pragmas applied. Pool is safe for concurrent use;
// individual connections are not — Take a connection per goroutine
// and Put it back when done.
type Pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// Open creates the pool. Connections are initialized lazily on first
// Take. The caller must Close the pool when finished.
func Open(cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlitepool: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	inner, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			if err := applyPragmas(conn); err != nil {
				return err
			}
			if cfg.OnConnect != nil {
				if err := cfg.OnConnect(conn); err != nil {
					return fmt.Errorf("sqlitepool: OnConnect: %w", err)
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: opening %s: %w", cfg.Path, err)
	}

	logger.Info("sqlite pool opened", "path", cfg.Path, "pool_size", poolSize)

	return &Pool{inner: inner, logger: logger, path: cfg.Path}, nil
}

// Take borrows a connection, blocking until one is available or ctx is
// cancelled. Pair every Take with a Put, typically via defer.
func (p *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: take: %w", err)
	}
	return conn, nil
}

// Put returns a connection to the pool. Safe to call with nil.
func (p *Pool) Put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

// Close closes all connections, blocking until borrowed ones are
// returned.
func (p *Pool) Close() error {
	if err := p.inner.Close(); err != nil {
		return fmt.Errorf("sqlitepool: closing %s: %w", p.path, err)
	}
	p.logger.Info("sqlite pool closed", "path", p.path)
	return nil
}

// applyPragmas puts every connection in WAL mode with a busy timeout,
// so the engine's export cycle and a bridge-driven import can overlap
// without either failing on a transient lock.
func applyPragmas(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlitepool: %s: %w", pragma, err)
		}
	}
	return nil
}
