// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the time operations statebridge uses so that tests
// can drive logical time deterministically. Production code injects
// Real(); tests inject Fake().
//
// Code that would otherwise call time.Now, time.After, time.AfterFunc,
// or time.NewTicker takes a Clock instead. The sync engine's periodic
// cycles and the bridge's request timeouts all run on an injected
// Clock, so no production path in this module touches the time package
// directly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once
	// duration d has elapsed. If d <= 0 the channel receives
	// immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc waits for duration d, then calls f. The returned
	// Timer cancels the pending call via Stop. If d <= 0, f runs
	// immediately.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker returns a Ticker delivering ticks on its C channel
	// every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer is a scheduled one-shot event created by AfterFunc.
type Timer struct {
	stop func() bool
}

// Stop prevents the timer from firing. Returns false if the timer has
// already fired or been stopped.
func (t *Timer) Stop() bool { return t.stop() }

// Ticker delivers periodic ticks on C. The channel has capacity 1; if
// the consumer falls behind, ticks are dropped rather than queued,
// matching time.Ticker.
type Ticker struct {
	// C delivers ticks.
	C <-chan time.Time

	stop func()
}

// Stop turns off the ticker. Stop does not close C.
func (t *Ticker) Stop() { t.stop() }
