// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package flatstore

// Store is a plain enumerable string key/value store: the flat medium
// shared with the hosting context. Implementations hold strings only;
// anything richer goes through the codec before it lands here.
//
// The namespace-prefix and companion-suffix conventions layered on
// the keys belong to the sync engine, not to the store.
type Store interface {
	// All returns a snapshot of every entry. Mutating the returned
	// map does not affect the store.
	All() (map[string]string, error)

	// Get returns the value for key and whether it exists.
	Get(key string) (string, bool, error)

	// Set stores value under key, replacing any existing value.
	Set(key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// Clear removes every entry.
	Clear() error
}
