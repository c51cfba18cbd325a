// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a Clock whose time only moves when Advance is called.
// It is safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*alarm
	changed *sync.Cond
}

// alarm is one registered After, Sleep, or ticker deadline.
type alarm struct {
	at       time.Time
	ch       chan time.Time
	period   time.Duration // non-zero for tickers
	canceled bool
}

// Fake returns a FakeClock reading start.
func Fake(start time.Time) *FakeClock {
	c := &FakeClock{now: start}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After registers a one-shot alarm d from now.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.addLocked(&alarm{at: c.now.Add(d), ch: ch})
	return ch
}

// NewTicker registers a repeating alarm.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: NewTicker with non-positive period")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	a := &alarm{at: c.now.Add(d), ch: make(chan time.Time, 1), period: d}
	c.addLocked(a)
	return &Ticker{
		C: a.ch,
		stop: func() {
			c.mu.Lock()
			a.canceled = true
			c.mu.Unlock()
		},
	}
}

// Sleep blocks until the clock has been advanced past d.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.After(d)
}

func (c *FakeClock) addLocked(a *alarm) {
	c.pending = append(c.pending, a)
	c.changed.Broadcast()
}

// Advance moves the clock forward by d and fires every alarm whose
// deadline is at or before the new time, earliest first. Tickers that
// span several periods fire once per period, subject to the capacity-1
// drop rule.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		due := c.takeDue(target)
		if len(due) == 0 {
			return
		}
		for _, a := range due {
			select {
			case a.ch <- target:
			default:
			}
		}
	}
}

// takeDue removes due alarms from the pending list, re-arming tickers.
func (c *FakeClock) takeDue(target time.Time) []*alarm {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due, keep []*alarm
	for _, a := range c.pending {
		switch {
		case a.canceled:
		case a.at.After(target):
			keep = append(keep, a)
		default:
			due = append(due, a)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, a := range due {
		if a.period > 0 {
			a.at = a.at.Add(a.period)
			keep = append(keep, a)
		}
	}
	c.pending = keep
	return due
}

// WaitForTimers blocks until at least n alarms are registered and not
// canceled.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.activeLocked() < n {
		c.changed.Wait()
	}
}

// PendingCount reports the number of live alarms.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked()
}

func (c *FakeClock) activeLocked() int {
	n := 0
	for _, a := range c.pending {
		if !a.canceled {
			n++
		}
	}
	return n
}
