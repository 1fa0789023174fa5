// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package store implements the binary-capable structured store: the
// application-owned side of the synchronized pair.
//
// Entries are (key, value, optional timestamp) rows in a single
// SQLite table, with values persisted as deterministic CBOR so the
// full codec value union — including raw binary — survives storage
// without string tagging. When opened with TimestampIndex, a partial
// secondary index over the timestamp column feeds the key→timestamp
// mapping that the sync engine exports as companion metadata.
//
// [Open] is self-healing: a missing container triggers exactly one
// schema-upgrade attempt followed by one more probe. A store that
// cannot be opened after that reports [ErrUnavailable], which callers
// treat as fatal to the current cycle only.
package store
