// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireNoReceive], and [RequireClosed] wrap the
// select-with-deadline pattern so tests never hang on a channel that
// the code under test failed to service. These helpers are the only
// place in the test suite where real wall-clock timeouts appear;
// production timing runs on lib/clock and is advanced deterministically
// with a FakeClock.
//
// All helpers call t.Fatalf on failure: a test that cannot receive its
// setup traffic is not recoverable.
//
// This package has no statebridge-internal dependencies.
package testutil
