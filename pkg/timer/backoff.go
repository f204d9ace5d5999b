// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package timer

import (
	"sync"
	"time"

	"github.com/luxfi/ads/pkg/clock"
)

// DefaultMaxBackoffDelay caps the exponential delay.
const DefaultMaxBackoffDelay = time.Hour

// BackoffTimer doubles the effective delay on every start until Stop.
type BackoffTimer struct {
	timer *Timer

	mu           sync.Mutex
	backoffCount uint
	maxDelay     time.Duration
}

// NewBackoff returns a backoff timer on c.
func NewBackoff(c clock.Clock) *BackoffTimer {
	return &BackoffTimer{
		timer:    New(c),
		maxDelay: DefaultMaxBackoffDelay,
	}
}

// SetMaxBackoffDelay changes the cap.
func (b *BackoffTimer) SetMaxBackoffDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maxDelay = d
}

// SetRand replaces the jitter source used by StartWithPrivacy.
func (b *BackoffTimer) SetRand(f RandFunc) {
	b.timer.SetRand(f)
}

// Start arms the timer at min(delay<<count, max) and bumps the count.
func (b *BackoffTimer) Start(delay time.Duration, task func()) time.Time {
	return b.timer.Start(b.nextDelay(delay), task)
}

// StartWithPrivacy jitters the backed off delay, keeping it under the cap.
func (b *BackoffTimer) StartWithPrivacy(delay time.Duration, task func()) time.Time {
	d := b.timer.PrivacyDelay(b.nextDelay(delay))

	b.mu.Lock()
	if d > b.maxDelay {
		d = b.maxDelay
	}
	b.mu.Unlock()

	return b.timer.Start(d, task)
}

// IsRunning reports whether a task is pending.
func (b *BackoffTimer) IsRunning() bool {
	return b.timer.IsRunning()
}

// Stop cancels the pending task, resets the backoff and reports whether a
// task was running.
func (b *BackoffTimer) Stop() bool {
	b.mu.Lock()
	b.backoffCount = 0
	b.mu.Unlock()

	return b.timer.Stop()
}

func (b *BackoffTimer) nextDelay(delay time.Duration) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := backoff(delay, b.backoffCount, b.maxDelay)
	b.backoffCount++
	return d
}

func backoff(delay time.Duration, count uint, maxDelay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}
	for i := uint(0); i < count; i++ {
		if delay >= maxDelay || delay > maxDelay/2 {
			return maxDelay
		}
		delay *= 2
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}
