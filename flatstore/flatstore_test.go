// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package flatstore_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/statebridge-dev/statebridge/flatstore"
)

// storeImplementations runs a subtest against each Store
// implementation.
func storeImplementations(t *testing.T, test func(t *testing.T, s flatstore.Store)) {
	t.Run("memory", func(t *testing.T) {
		test(t, flatstore.NewMemory())
	})
	t.Run("file", func(t *testing.T) {
		s, err := flatstore.OpenFile(filepath.Join(t.TempDir(), "flat.json"))
		if err != nil {
			t.Fatalf("OpenFile: %v", err)
		}
		test(t, s)
	})
}

func TestSetGetDelete(t *testing.T) {
	storeImplementations(t, func(t *testing.T, s flatstore.Store) {
		if err := s.Set("k", "v"); err != nil {
			t.Fatalf("Set: %v", err)
		}

		value, ok, err := s.Get("k")
		if err != nil || !ok || value != "v" {
			t.Fatalf("Get = (%q, %v, %v), want (v, true, nil)", value, ok, err)
		}

		if err := s.Delete("k"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, ok, _ := s.Get("k"); ok {
			t.Error("key still present after Delete")
		}
		// Deleting an absent key is not an error.
		if err := s.Delete("k"); err != nil {
			t.Errorf("Delete of absent key: %v", err)
		}
	})
}

func TestAllReturnsSnapshot(t *testing.T) {
	storeImplementations(t, func(t *testing.T, s flatstore.Store) {
		s.Set("a", "1")
		s.Set("b", "2")

		all, err := s.All()
		if err != nil {
			t.Fatalf("All: %v", err)
		}
		if len(all) != 2 || all["a"] != "1" || all["b"] != "2" {
			t.Fatalf("All = %v", all)
		}

		// Mutating the snapshot must not leak into the store.
		all["a"] = "mutated"
		value, _, _ := s.Get("a")
		if value != "1" {
			t.Error("snapshot mutation leaked into the store")
		}
	})
}

func TestClear(t *testing.T) {
	storeImplementations(t, func(t *testing.T, s flatstore.Store) {
		s.Set("a", "1")
		s.Set("b", "2")
		if err := s.Clear(); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		all, _ := s.All()
		if len(all) != 0 {
			t.Errorf("All after Clear = %v, want empty", all)
		}
	})
}

func TestFilePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flat.json")

	first, err := flatstore.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	first.Set("survives", "yes")

	second, err := flatstore.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	value, ok, _ := second.Get("survives")
	if !ok || value != "yes" {
		t.Errorf("reopened store Get = (%q, %v), want (yes, true)", value, ok)
	}
}

func TestFileLeavesNoTemporaryBehind(t *testing.T) {
	dir := t.TempDir()
	s, err := flatstore.OpenFile(filepath.Join(dir, "flat.json"))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	s.Set("k", "v")

	names, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, entry := range names {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("temporary file left behind: %s", entry.Name())
		}
	}
}

func TestOpenFileRejectsCorruptContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flat.json")
	if err := os.WriteFile(path, []byte("not json"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := flatstore.OpenFile(path); err == nil {
		t.Fatal("OpenFile accepted corrupt content")
	}
}
