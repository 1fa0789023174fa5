// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock initialized to the given time. Time stands
// still until Advance is called; every timer and ticker registered
// against the clock fires deterministically, in deadline order, during
// Advance.
//
// FakeClock is safe for concurrent use.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{current: initial}
	c.registered = sync.NewCond(&c.mu)
	return c
}

// FakeClock is a deterministic Clock for tests. AfterFunc callbacks
// run synchronously inside Advance; do not call Advance from within a
// callback.
type FakeClock struct {
	mu         sync.Mutex
	current    time.Time
	pending    []*pendingEvent
	registered *sync.Cond
}

// pendingEvent is a scheduled timer, ticker tick, or After channel.
type pendingEvent struct {
	deadline time.Time
	channel  chan time.Time // nil for AfterFunc events
	callback func()         // nil for channel events
	interval time.Duration  // non-zero for tickers; rescheduled after firing
	stopped  bool
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that receives once the clock advances past
// the deadline. If d <= 0 the channel receives immediately.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.current
		return channel
	}
	c.add(&pendingEvent{deadline: c.current.Add(d), channel: channel})
	return channel
}

// AfterFunc schedules f to run when the clock advances past the
// deadline. If d <= 0, f runs synchronously before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stop: func() bool { return false }}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	event := &pendingEvent{deadline: c.current.Add(d), callback: f}
	c.add(event)
	return &Timer{stop: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if event.stopped {
			return false
		}
		event.stopped = true
		return true
	}}
}

// NewTicker returns a ticker that fires once per interval during
// Advance. Panics if d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	event := &pendingEvent{deadline: c.current.Add(d), channel: channel, interval: d}
	c.add(event)
	return &Ticker{C: channel, stop: func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		event.stopped = true
	}}
}

// Advance moves the clock forward by d and fires everything whose
// deadline falls within the new time, in deadline order. Channel sends
// are non-blocking: ticks that would overflow a full channel are
// dropped, matching time.Ticker. Tickers spanning multiple intervals
// fire once per interval.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	c.current = target
	c.mu.Unlock()

	for {
		expired := c.takeExpired(target)
		if len(expired) == 0 {
			return
		}
		sort.Slice(expired, func(i, j int) bool {
			return expired[i].deadline.Before(expired[j].deadline)
		})
		for _, event := range expired {
			if event.callback != nil {
				event.callback()
				continue
			}
			select {
			case event.channel <- target:
			default:
			}
		}
	}
}

// WaitForPending blocks until at least n events are scheduled and not
// stopped. Use it to eliminate the race between a goroutine
// registering a timer and the test advancing the clock:
//
//	go engine.Run(ctx)
//	fakeClock.WaitForPending(1)
//	fakeClock.Advance(interval)
func (c *FakeClock) WaitForPending(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.activeCount() < n {
		c.registered.Wait()
	}
}

// add registers an event. Caller holds c.mu.
func (c *FakeClock) add(event *pendingEvent) {
	c.pending = append(c.pending, event)
	c.registered.Broadcast()
}

// activeCount counts non-stopped events. Caller holds c.mu.
func (c *FakeClock) activeCount() int {
	count := 0
	for _, event := range c.pending {
		if !event.stopped {
			count++
		}
	}
	return count
}

// takeExpired removes and returns events due at or before target,
// rescheduling tickers for their next interval.
func (c *FakeClock) takeExpired(target time.Time) []*pendingEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expired, remaining []*pendingEvent
	for _, event := range c.pending {
		switch {
		case event.stopped:
		case !event.deadline.After(target):
			expired = append(expired, event)
			if event.interval > 0 {
				// Tickers stay registered with a pushed-out
				// deadline; the outer Advance loop fires them
				// again if the advance spans further intervals.
				event.deadline = event.deadline.Add(event.interval)
				remaining = append(remaining, event)
			}
		default:
			remaining = append(remaining, event)
		}
	}
	c.pending = remaining
	return expired
}
