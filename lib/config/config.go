// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for statebridge.
type Config struct {
	// Store configures the structured store.
	Store StoreConfig `yaml:"store"`

	// Flat configures the string-only store.
	Flat FlatConfig `yaml:"flat"`

	// Sync configures the reconciliation engine.
	Sync SyncConfig `yaml:"sync"`

	// Host configures the channel to the hosting context.
	Host HostConfig `yaml:"host"`
}

// StoreConfig configures the structured store.
type StoreConfig struct {
	// Path is the SQLite database file. Required.
	Path string `yaml:"path"`

	// PoolSize is the connection pool size. Default: 4.
	PoolSize int `yaml:"pool_size"`

	// TimestampIndex enables the per-entry timestamp column and its
	// index. Default: true.
	TimestampIndex bool `yaml:"timestamp_index"`

	// OpenRetries is how many times startup retries opening the
	// store before giving up on it and running bridge-only.
	// Default: 3.
	OpenRetries int `yaml:"open_retries"`

	// OpenRetryDelay is the pause between open attempts.
	// Default: 1s.
	OpenRetryDelay string `yaml:"open_retry_delay"`
}

// FlatConfig configures the string-only store.
type FlatConfig struct {
	// Path is the JSON state file. Empty selects the in-memory
	// store, which does not survive a restart.
	Path string `yaml:"path"`
}

// SyncConfig configures the reconciliation engine.
type SyncConfig struct {
	// Namespace prefixes every flat key derived from a store entry.
	// Default: "save:".
	Namespace string `yaml:"namespace"`

	// StoreInterval is the period of the export cycle.
	// Default: 60s.
	StoreInterval string `yaml:"store_interval"`

	// MaxEncodedBytes rejects store entries whose encoded form
	// exceeds this size. Zero disables the guard.
	MaxEncodedBytes int `yaml:"max_encoded_bytes"`
}

// HostConfig configures the channel to the hosting context.
type HostConfig struct {
	// URL is the websocket endpoint of the hosting context
	// (ws:// or wss://). Empty runs standalone with no host at all.
	URL string `yaml:"url"`

	// InitialPullTimeout bounds the startup wait for the host's
	// initial state. Default: 5s.
	InitialPullTimeout string `yaml:"initial_pull_timeout"`

	// RemoteInterval is the period of the remote-push re-evaluation.
	// Default: 30s. "0" disables it.
	RemoteInterval string `yaml:"remote_interval"`

	// ReadyDelay postpones the readiness announcement after attach.
	// Default: 500ms.
	ReadyDelay string `yaml:"ready_delay"`
}

// Default returns the default configuration. These defaults are a
// base for the config file, with state files placed under the user's
// data directory.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".local", "share", "statebridge")

	return &Config{
		Store: StoreConfig{
			Path:           filepath.Join(defaultRoot, "entries.db"),
			PoolSize:       4,
			TimestampIndex: true,
			OpenRetries:    3,
			OpenRetryDelay: "1s",
		},
		Flat: FlatConfig{
			Path: filepath.Join(defaultRoot, "flat.json"),
		},
		Sync: SyncConfig{
			Namespace:     "save:",
			StoreInterval: "60s",
		},
		Host: HostConfig{
			InitialPullTimeout: "5s",
			RemoteInterval:     "30s",
			ReadyDelay:         "500ms",
		},
	}
}

// Load loads configuration from the STATEBRIDGE_CONFIG environment
// variable. There are no fallbacks: if the variable is unset, Load
// fails.
func Load() (*Config, error) {
	configPath := os.Getenv("STATEBRIDGE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("STATEBRIDGE_CONFIG environment variable not set; " +
			"set it to the path of your statebridge.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merging it
// over the defaults. The config file is the single source of truth;
// environment variables do not override values. The only expansion
// performed is ${HOME} and similar path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Store.Path = expandVars(c.Store.Path, vars)
	c.Flat.Path = expandVars(c.Flat.Path, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors, including that every
// duration field parses.
func (c *Config) Validate() error {
	var errs []error

	if c.Store.Path == "" {
		errs = append(errs, fmt.Errorf("store.path is required"))
	}
	if c.Store.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("store.pool_size must not be negative"))
	}
	if c.Store.OpenRetries < 1 {
		errs = append(errs, fmt.Errorf("store.open_retries must be at least 1"))
	}
	if c.Sync.Namespace == "" {
		errs = append(errs, fmt.Errorf("sync.namespace is required"))
	}
	if c.Sync.MaxEncodedBytes < 0 {
		errs = append(errs, fmt.Errorf("sync.max_encoded_bytes must not be negative"))
	}

	durations := map[string]string{
		"store.open_retry_delay":    c.Store.OpenRetryDelay,
		"sync.store_interval":       c.Sync.StoreInterval,
		"host.initial_pull_timeout": c.Host.InitialPullTimeout,
		"host.remote_interval":      c.Host.RemoteInterval,
		"host.ready_delay":          c.Host.ReadyDelay,
	}
	for field, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// duration parses a validated duration string, treating empty as the
// given fallback.
func duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// OpenRetryDelayDuration returns the parsed pause between store open
// attempts.
func (c *StoreConfig) OpenRetryDelayDuration() time.Duration {
	return duration(c.OpenRetryDelay, time.Second)
}

// StoreIntervalDuration returns the parsed export cycle period.
func (c *SyncConfig) StoreIntervalDuration() time.Duration {
	return duration(c.StoreInterval, 60*time.Second)
}

// InitialPullTimeoutDuration returns the parsed startup wait bound.
func (c *HostConfig) InitialPullTimeoutDuration() time.Duration {
	return duration(c.InitialPullTimeout, 5*time.Second)
}

// RemoteIntervalDuration returns the parsed remote-push period.
func (c *HostConfig) RemoteIntervalDuration() time.Duration {
	return duration(c.RemoteInterval, 30*time.Second)
}

// ReadyDelayDuration returns the parsed readiness delay.
func (c *HostConfig) ReadyDelayDuration() time.Duration {
	return duration(c.ReadyDelay, 500*time.Millisecond)
}

// EnsurePaths creates the parent directories of the configured state
// files if they do not exist.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Store.Path, c.Flat.Path} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
		}
	}
	return nil
}
