// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clock

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Stopper cancels a pending callback. Stop reports whether the call
// prevented the callback from running.
type Stopper interface {
	Stop() bool
}

// Clock is the time source every scheduled component is built on.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Stopper
}

// Real returns the wall clock.
func Real() Clock {
	return FromClock(clock.New())
}

// FromClock adapts a benbjohnson clock, the real one or a *clock.Mock.
// Mock callbacks run on their own goroutine after the mock is advanced.
func FromClock(c clock.Clock) Clock {
	return adapter{c: c}
}

type adapter struct {
	c clock.Clock
}

func (a adapter) Now() time.Time {
	return a.c.Now()
}

func (a adapter) AfterFunc(d time.Duration, f func()) Stopper {
	return a.c.AfterFunc(d, f)
}
