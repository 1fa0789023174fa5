// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package flatstore

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// File is a Store persisted as a JSON object in a single file, so a
// sibling process (the operator CLI, a crashed-and-restarted daemon)
// sees exactly what the hosting context sees. Every mutation rewrites
// the file atomically: write to a temporary sibling, fsync, rename.
// Readers never observe a partial write.
//
// File is safe for concurrent use within one process. It does not
// coordinate between processes; the daemon owns the file while it
// runs.
type File struct {
	mu      sync.Mutex
	path    string
	entries map[string]string
}

// OpenFile loads the store at path, creating an empty one if the file
// does not exist yet.
func OpenFile(path string) (*File, error) {
	f := &File{path: path, entries: make(map[string]string)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("flatstore: reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &f.entries); err != nil {
		return nil, fmt.Errorf("flatstore: parsing %s: %w", path, err)
	}
	if f.entries == nil {
		f.entries = make(map[string]string)
	}
	return f, nil
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

func (f *File) All() (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := make(map[string]string, len(f.entries))
	for key, value := range f.entries {
		snapshot[key] = value
	}
	return snapshot, nil
}

func (f *File) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.entries[key]
	return value, ok, nil
}

func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = value
	return f.persist()
}

func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	return f.persist()
}

func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = make(map[string]string)
	return f.persist()
}

// persist rewrites the backing file. Caller holds f.mu.
func (f *File) persist() error {
	data, err := json.MarshalIndent(f.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("flatstore: marshaling %s: %w", f.path, err)
	}
	data = append(data, '\n')

	temporaryPath := f.path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("flatstore: creating temporary file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("flatstore: writing temporary file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("flatstore: syncing temporary file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("flatstore: closing temporary file: %w", err)
	}
	if err := os.Rename(temporaryPath, f.path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("flatstore: renaming into place: %w", err)
	}
	return nil
}
