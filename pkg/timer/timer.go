// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package timer

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/luxfi/ads/pkg/clock"
)

// MinimumPrivacyDelay bounds the jittered delay from below.
const MinimumPrivacyDelay = time.Second

// RandFunc returns a uniformly distributed value in [0, 1).
type RandFunc func() float64

// Timer is a restartable one-shot timer. Starting it cancels any pending
// task, so at most one task is in flight.
type Timer struct {
	clock clock.Clock
	rand  RandFunc

	mu         sync.Mutex
	pending    clock.Stopper
	generation uint64
	fireAt     time.Time
}

// New returns a timer on c. A nil c uses the wall clock.
func New(c clock.Clock) *Timer {
	if c == nil {
		c = clock.Real()
	}
	return &Timer{clock: c, rand: rand.Float64}
}

// SetRand replaces the jitter source.
func (t *Timer) SetRand(f RandFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rand = f
}

// Start arms the timer to run task after delay and returns the fire time.
func (t *Timer) Start(delay time.Duration, task func()) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()

	t.generation++
	generation := t.generation
	t.fireAt = t.clock.Now().Add(delay)
	t.pending = t.clock.AfterFunc(delay, func() {
		t.mu.Lock()
		if generation != t.generation || t.pending == nil {
			t.mu.Unlock()
			return
		}
		t.pending = nil
		t.mu.Unlock()

		task()
	})
	return t.fireAt
}

// StartWithPrivacy is Start with the delay replaced by an exponentially
// distributed value whose mean is delay.
func (t *Timer) StartWithPrivacy(delay time.Duration, task func()) time.Time {
	return t.Start(t.PrivacyDelay(delay), task)
}

// PrivacyDelay draws a jittered delay with mean delay.
func (t *Timer) PrivacyDelay(delay time.Duration) time.Duration {
	t.mu.Lock()
	r := t.rand
	t.mu.Unlock()

	return privacyDelay(delay, r)
}

func privacyDelay(delay time.Duration, r RandFunc) time.Duration {
	u := r()
	if u < 0 || u >= 1 {
		u = 0
	}
	jittered := time.Duration(-float64(delay) * math.Log(1-u))
	if jittered < MinimumPrivacyDelay {
		return MinimumPrivacyDelay
	}
	return jittered
}

// IsRunning reports whether a task is pending.
func (t *Timer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

// FireAt returns the time the pending task is due.
func (t *Timer) FireAt() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fireAt, t.pending != nil
}

// Stop cancels the pending task and reports whether one was running.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopLocked()
}

func (t *Timer) stopLocked() bool {
	// Bumping the generation turns an already fired callback into a no-op.
	t.generation++
	if t.pending == nil {
		return false
	}
	t.pending.Stop()
	t.pending = nil
	return true
}
