// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Sync.Namespace != "save:" {
		t.Errorf("expected namespace=save:, got %s", cfg.Sync.Namespace)
	}
	if !cfg.Store.TimestampIndex {
		t.Error("expected timestamp_index=true")
	}
	if cfg.Store.PoolSize != 4 {
		t.Errorf("expected pool_size=4, got %d", cfg.Store.PoolSize)
	}
	if got := cfg.Host.InitialPullTimeoutDuration(); got != 5*time.Second {
		t.Errorf("expected initial_pull_timeout=5s, got %v", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoad_RequiresConfigVariable(t *testing.T) {
	origConfig := os.Getenv("STATEBRIDGE_CONFIG")
	defer os.Setenv("STATEBRIDGE_CONFIG", origConfig)

	os.Unsetenv("STATEBRIDGE_CONFIG")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when STATEBRIDGE_CONFIG not set, got nil")
	}
	if !strings.Contains(err.Error(), "STATEBRIDGE_CONFIG environment variable not set") {
		t.Errorf("unexpected error message: %q", err.Error())
	}
}

func TestLoadFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "statebridge.yaml")
	configContent := `
store:
  path: /test/entries.db
  timestamp_index: true
flat:
  path: /test/flat.json
sync:
  namespace: "game:"
  store_interval: 30s
host:
  url: ws://localhost:9000/bridge
  remote_interval: 10s
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Store.Path != "/test/entries.db" {
		t.Errorf("store.path = %s", cfg.Store.Path)
	}
	if cfg.Sync.Namespace != "game:" {
		t.Errorf("sync.namespace = %s", cfg.Sync.Namespace)
	}
	if got := cfg.Sync.StoreIntervalDuration(); got != 30*time.Second {
		t.Errorf("sync.store_interval = %v", got)
	}
	if cfg.Host.URL != "ws://localhost:9000/bridge" {
		t.Errorf("host.url = %s", cfg.Host.URL)
	}
	if got := cfg.Host.RemoteIntervalDuration(); got != 10*time.Second {
		t.Errorf("host.remote_interval = %v", got)
	}
	// Unset fields keep their defaults.
	if cfg.Store.PoolSize != 4 {
		t.Errorf("store.pool_size = %d, want default 4", cfg.Store.PoolSize)
	}
}

func TestLoadFile_HomeExpansion(t *testing.T) {
	t.Setenv("HOME", "/test/home")

	configPath := filepath.Join(t.TempDir(), "statebridge.yaml")
	configContent := `
store:
  path: ${HOME}/statebridge/entries.db
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Store.Path != "/test/home/statebridge/entries.db" {
		t.Errorf("store.path = %s", cfg.Store.Path)
	}
}

func TestLoadFile_RejectsBadDuration(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "statebridge.yaml")
	configContent := `
sync:
  store_interval: every minute
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := LoadFile(configPath); err == nil {
		t.Fatal("expected error for unparseable duration, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing store path", func(c *Config) { c.Store.Path = "" }, "store.path"},
		{"negative pool", func(c *Config) { c.Store.PoolSize = -1 }, "store.pool_size"},
		{"zero retries", func(c *Config) { c.Store.OpenRetries = 0 }, "store.open_retries"},
		{"missing namespace", func(c *Config) { c.Sync.Namespace = "" }, "sync.namespace"},
		{"negative size guard", func(c *Config) { c.Sync.MaxEncodedBytes = -1 }, "sync.max_encoded_bytes"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("error %q does not mention %s", err.Error(), test.want)
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Store.Path = filepath.Join(root, "deep", "nested", "entries.db")
	cfg.Flat.Path = filepath.Join(root, "flat", "flat.json")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths: %v", err)
	}
	for _, dir := range []string{filepath.Join(root, "deep", "nested"), filepath.Join(root, "flat")} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("directory %s not created: %v", dir, err)
		}
	}
}
