// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"testing"
	"time"
)

// RequireReceive reads one value from ch within timeout, or fails the
// test. Encapsulates the select-with-deadline safety valve so
// individual tests do not sprinkle time.After calls:
//
//	envelope := testutil.RequireReceive(t, host.Inbox(), 5*time.Second, "waiting for push")
func RequireReceive[T any](t *testing.T, ch <-chan T, timeout time.Duration, message string) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed without a value: %s", message)
		}
		return v
	case <-time.After(timeout):
		t.Fatalf("timed out after %v: %s", timeout, message)
	}
	panic("unreachable")
}

// RequireNoReceive asserts that ch stays silent for the full window.
// Use it to prove a negative: a deduplicated notification that must
// not fire, a late response that must be dropped.
func RequireNoReceive[T any](t *testing.T, ch <-chan T, window time.Duration, message string) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected value %v: %s", v, message)
	case <-time.After(window):
	}
}

// RequireClosed waits for ch to close (or deliver) within timeout, or
// fails the test.
func RequireClosed(t *testing.T, ch <-chan struct{}, timeout time.Duration, message string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("timed out after %v waiting for close: %s", timeout, message)
	}
}
