// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// The sync engine's periodic export cycles, the bridge's request
// timeouts, its remote-notify ticker, and its readiness handshake
// delay are all driven through the [Clock] interface. Production
// wiring passes [Real]; tests pass [Fake] and call
// [FakeClock.Advance] to fire timers deterministically instead of
// sleeping.
package clock
