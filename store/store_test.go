// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/statebridge-dev/statebridge/codec"
	"github.com/statebridge-dev/statebridge/store"
)

func openTestStore(t *testing.T, timestampIndex bool) *store.Store {
	t.Helper()
	s, err := store.Open(store.Config{
		Path:           filepath.Join(t.TempDir(), "entries.db"),
		PoolSize:       1,
		TimestampIndex: timestampIndex,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestOpenUpgradesSchema(t *testing.T) {
	// A fresh database has no entries table; Open must create it and
	// leave the store usable.
	s := openTestStore(t, false)

	if _, err := s.Put(context.Background(), "k", codec.Number(1)); err != nil {
		t.Fatalf("Put after fresh open: %v", err)
	}
}

func TestReopenExistingContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.db")
	ctx := context.Background()

	first, err := store.Open(store.Config{Path: path, PoolSize: 1})
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := first.Put(ctx, "persisted", codec.String("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := store.Open(store.Config{Path: path, PoolSize: 1})
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer second.Close()

	values, _, err := second.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if !values["persisted"].Equal(codec.String("v")) {
		t.Error("entry did not survive reopen")
	}
}

func TestReopenWithTimestampIndexUpgrades(t *testing.T) {
	// A database created without the timestamp index and reopened
	// with it enabled must grow the index on the existing table, not
	// leave GetAll failing against a missing index.
	path := filepath.Join(t.TempDir(), "entries.db")
	ctx := context.Background()

	first, err := store.Open(store.Config{Path: path, PoolSize: 1})
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := first.Put(ctx, "existing", codec.Number(1)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := store.Open(store.Config{Path: path, PoolSize: 1, TimestampIndex: true})
	if err != nil {
		t.Fatalf("reopen with index: %v", err)
	}
	defer second.Close()

	if _, err := second.PutWithTimestamp(ctx, "stamped", codec.Number(2), 4242); err != nil {
		t.Fatalf("PutWithTimestamp: %v", err)
	}
	values, timestamps, err := second.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll after index upgrade: %v", err)
	}
	if !values["existing"].Equal(codec.Number(1)) {
		t.Error("pre-upgrade entry missing")
	}
	if timestamps["stamped"] != 4242 {
		t.Errorf("timestamps[stamped] = %d, want 4242", timestamps["stamped"])
	}
}

func TestPutGetAllRoundTrip(t *testing.T) {
	s := openTestStore(t, false)
	ctx := context.Background()

	want := map[string]codec.Value{
		"null":   codec.Null(),
		"number": codec.Number(-2.5),
		"date":   codec.DateFromMillis(1700000000000),
		"binary": codec.Binary([]byte{0, 1, 2, 255}),
		"view":   codec.TypedView(codec.ViewFloat32, make([]byte, 8)),
		"blob":   codec.Blob([]byte("blob bytes")),
		"nested": codec.Map(map[string]codec.Value{
			"list": codec.List(codec.Bool(true), codec.Undefined()),
		}),
	}
	for key, value := range want {
		if _, err := s.Put(ctx, key, value); err != nil {
			t.Fatalf("Put(%q): %v", key, err)
		}
	}

	values, timestamps, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if timestamps != nil {
		t.Error("timestamps map present without index")
	}
	if len(values) != len(want) {
		t.Fatalf("GetAll returned %d entries, want %d", len(values), len(want))
	}
	for key, value := range want {
		if !values[key].Equal(value) {
			t.Errorf("entry %q did not round-trip", key)
		}
	}
}

func TestPutIsIdempotentUpsert(t *testing.T) {
	s := openTestStore(t, false)
	ctx := context.Background()

	for range 3 {
		if _, err := s.Put(ctx, "k", codec.String("same")); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if _, err := s.Put(ctx, "k", codec.String("replaced")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	values, _, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(values) != 1 {
		t.Fatalf("store holds %d entries, want 1", len(values))
	}
	if !values["k"].Equal(codec.String("replaced")) {
		t.Error("upsert did not replace the value")
	}
}

func TestTimestampIndex(t *testing.T) {
	s := openTestStore(t, true)
	ctx := context.Background()

	if _, err := s.PutWithTimestamp(ctx, "stamped", codec.Number(1), 12345); err != nil {
		t.Fatalf("PutWithTimestamp: %v", err)
	}
	if _, err := s.Put(ctx, "unstamped", codec.Number(2)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	_, timestamps, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if timestamps == nil {
		t.Fatal("timestamps map absent despite index")
	}
	if got, ok := timestamps["stamped"]; !ok || got != 12345 {
		t.Errorf("timestamps[stamped] = %d (present=%v), want 12345", got, ok)
	}
	if _, ok := timestamps["unstamped"]; ok {
		t.Error("unstamped entry appears in the timestamp mapping")
	}
}

func TestPutPreservesTimestamp(t *testing.T) {
	s := openTestStore(t, true)
	ctx := context.Background()

	if _, err := s.PutWithTimestamp(ctx, "k", codec.Number(1), 777); err != nil {
		t.Fatalf("PutWithTimestamp: %v", err)
	}
	// A plain Put (the import path) must not erase the timestamp the
	// application wrote.
	if _, err := s.Put(ctx, "k", codec.Number(2)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	values, timestamps, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if !values["k"].Equal(codec.Number(2)) {
		t.Error("Put did not update the value")
	}
	if timestamps["k"] != 777 {
		t.Errorf("timestamp = %d after plain Put, want 777", timestamps["k"])
	}
}

func TestClear(t *testing.T) {
	s := openTestStore(t, false)
	ctx := context.Background()

	if _, err := s.Put(ctx, "k", codec.Number(1)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	values, _, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("store holds %d entries after Clear, want 0", len(values))
	}
}
