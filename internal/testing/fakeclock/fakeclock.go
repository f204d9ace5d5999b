// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fakeclock provides a manually advanced clock. Callbacks run
// synchronously on the goroutine calling Advance, in fire-time order, and
// timers due at the same instant fire in the order they were scheduled.
// A callback may call Now, AfterFunc or Stop on the same clock; the lock
// is released while it runs.
package fakeclock

import (
	"sort"
	"sync"
	"time"

	"github.com/luxfi/ads/pkg/clock"
)

// Clock is a fake clock.Clock.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*timer
}

type timer struct {
	clock  *Clock
	at     time.Time
	seq    int
	f      func()
	active bool
}

// New returns a clock frozen at now.
func New(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f to run once the clock is advanced past d.
func (c *Clock) AfterFunc(d time.Duration, f func()) clock.Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &timer{clock: c, at: c.now.Add(d), seq: c.seq, f: f, active: true}
	c.timers = append(c.timers, t)
	return t
}

func (t *timer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	wasActive := t.active
	t.active = false
	return wasActive
}

// Advance moves the clock forward by d, firing every timer that comes due,
// including timers scheduled by callbacks within the window.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDueLocked(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.active = false
		if next.at.After(c.now) {
			c.now = next.at
		}
		f := next.f
		c.mu.Unlock()

		f()
	}
}

// Set jumps the clock to t without firing timers.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Pending returns the number of timers not yet fired or stopped.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.timers {
		if t.active {
			n++
		}
	}
	return n
}

// NextFireTime returns the earliest pending fire time.
func (c *Clock) NextFireTime() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.nextDueLocked(time.Time{})
	if next == nil {
		return time.Time{}, false
	}
	return next.at, true
}

// nextDueLocked returns the earliest active timer at or before limit; a zero
// limit means no limit.
func (c *Clock) nextDueLocked(limit time.Time) *timer {
	active := c.timers[:0]
	for _, t := range c.timers {
		if t.active {
			active = append(active, t)
		}
	}
	c.timers = active

	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].at.Equal(c.timers[j].at) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].at.Before(c.timers[j].at)
	})
	if len(c.timers) == 0 {
		return nil
	}
	next := c.timers[0]
	if !limit.IsZero() && next.at.After(limit) {
		return nil
	}
	return next
}
