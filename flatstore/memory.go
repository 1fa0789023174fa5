// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package flatstore

import "sync"

// Memory is an in-process Store. Safe for concurrent use. The zero
// value is not usable; create one with NewMemory.
type Memory struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]string)}
}

func (m *Memory) All() (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[string]string, len(m.entries))
	for key, value := range m.entries {
		snapshot[key] = value
	}
	return snapshot, nil
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.entries[key]
	return value, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]string)
	return nil
}
