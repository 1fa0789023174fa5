// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestAfterFires(t *testing.T) {
	c := Fake(epoch)
	ch := c.After(5 * time.Second)

	select {
	case <-ch:
		t.Fatal("After fired before Advance")
	default:
	}

	c.Advance(5 * time.Second)
	select {
	case fired := <-ch:
		if !fired.Equal(epoch.Add(5 * time.Second)) {
			t.Errorf("fired at %v, want %v", fired, epoch.Add(5*time.Second))
		}
	default:
		t.Fatal("After did not fire after Advance")
	}
}

func TestAfterImmediateWhenNonPositive(t *testing.T) {
	c := Fake(epoch)
	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) did not fire immediately")
	}
}

func TestAfterFuncStop(t *testing.T) {
	c := Fake(epoch)
	var fired bool
	timer := c.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("Stop returned false for a pending timer")
	}
	c.Advance(2 * time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
	if timer.Stop() {
		t.Error("second Stop returned true")
	}
}

func TestAfterFuncImmediateWhenNonPositive(t *testing.T) {
	c := Fake(epoch)
	var fired bool
	c.AfterFunc(0, func() { fired = true })
	if !fired {
		t.Fatal("AfterFunc(0) did not run synchronously")
	}
}

func TestTickerFiresOncePerInterval(t *testing.T) {
	c := Fake(epoch)
	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	// Drain between advances: the channel has capacity 1, so a tick
	// left unconsumed would cause the next one to be dropped.
	for i := range 3 {
		c.Advance(time.Second)
		select {
		case fired := <-ticker.C:
			want := epoch.Add(time.Duration(i+1) * time.Second)
			if !fired.Equal(want) {
				t.Errorf("tick %d at %v, want %v", i, fired, want)
			}
		default:
			t.Fatalf("tick %d not delivered", i)
		}
	}
}

func TestTickerStop(t *testing.T) {
	c := Fake(epoch)
	ticker := c.NewTicker(time.Second)
	ticker.Stop()

	c.Advance(3 * time.Second)
	select {
	case <-ticker.C:
		t.Error("stopped ticker delivered a tick")
	default:
	}
}

func TestTickerStopSurvivesReschedule(t *testing.T) {
	c := Fake(epoch)
	ticker := c.NewTicker(time.Second)

	c.Advance(time.Second)
	<-ticker.C
	ticker.Stop()

	c.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Error("ticker delivered a tick after Stop")
	default:
	}
}

func TestWaitForPending(t *testing.T) {
	c := Fake(epoch)
	registered := make(chan struct{})
	go func() {
		c.After(time.Second)
		close(registered)
	}()

	c.WaitForPending(1)
	select {
	case <-registered:
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForPending returned before registration")
	}
}

func TestNowAdvances(t *testing.T) {
	c := Fake(epoch)
	c.Advance(90 * time.Minute)
	if got := c.Now(); !got.Equal(epoch.Add(90 * time.Minute)) {
		t.Errorf("Now = %v, want %v", got, epoch.Add(90*time.Minute))
	}
}
