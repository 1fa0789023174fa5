// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package syncengine drives the bidirectional reconciliation between
// the structured entry store and the flat string store.
//
// [Engine.ExportToFlat] derives flat entries from store entries
// through the codec, writing a companion `::ts` entry for every key
// the store's timestamp index covers. [Engine.ImportFromFlat] goes
// the other way. Both directions skip individual failed entries and
// keep going: batches are at-least-once and every write is an
// idempotent upsert, so a partial cycle is safely retried by the next
// one.
//
// After a non-empty export the engine hashes the would-be remote
// payload with BLAKE3 and notifies the remote peer only when the
// digest differs from the last payload actually delivered. This
// content-addressed guard is what keeps a steady-state store from
// flooding the peer with identical updates.
//
// [Engine.Run] performs one import-then-export pass at startup and
// then re-exports on a clock-driven interval. The companion
// remote-push interval lives on the bridge side and calls
// [Engine.NotifyRemote].
package syncengine
