// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package flatstore provides the string-only flat store: the medium
// the hosting context reads and writes.
//
// [Memory] backs tests and standalone runs; [File] persists the
// entries as one JSON file with atomic rewrites, giving other local
// processes (the operator CLI, a restarted daemon) the same view the
// host has.
package flatstore
