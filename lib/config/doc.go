// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for statebridge
// components.
//
// Configuration is loaded from a single YAML file specified by the
// STATEBRIDGE_CONFIG environment variable or a --config flag. There
// are no fallbacks or automatic discovery, so a deployment's
// configuration is deterministic and auditable. Duration fields are
// strings in time.ParseDuration syntax ("5s", "500ms") and are
// checked during validation.
package config
