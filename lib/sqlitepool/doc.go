// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides a small SQLite connection pool with
// statebridge's standard pragmas (WAL journal, NORMAL synchronous,
// 5-second busy timeout).
//
// The entry store is the only production consumer. Schema management
// stays in the store package: it probes and upgrades over a pooled
// connection right after opening. OnConnect is for per-connection
// setup beyond the standard pragmas.
package sqlitepool
