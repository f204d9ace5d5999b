// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package timer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ads/internal/testing/fakeclock"
	"github.com/luxfi/ads/pkg/timer"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestTimerFires(t *testing.T) {
	require := require.New(t)

	clk := fakeclock.New(epoch)
	tm := timer.New(clk)

	fired := 0
	fireAt := tm.Start(time.Minute, func() { fired++ })
	require.Equal(epoch.Add(time.Minute), fireAt)
	require.True(tm.IsRunning())

	clk.Advance(59 * time.Second)
	require.Zero(fired)

	clk.Advance(time.Second)
	require.Equal(1, fired)
	require.False(tm.IsRunning())
}

func TestTimerRestartCancelsPending(t *testing.T) {
	require := require.New(t)

	clk := fakeclock.New(epoch)
	tm := timer.New(clk)

	var got []string
	tm.Start(time.Minute, func() { got = append(got, "first") })
	tm.Start(2*time.Minute, func() { got = append(got, "second") })

	clk.Advance(time.Hour)
	require.Equal([]string{"second"}, got)
}

func TestTimerStop(t *testing.T) {
	require := require.New(t)

	clk := fakeclock.New(epoch)
	tm := timer.New(clk)

	require.False(tm.Stop())

	fired := false
	tm.Start(time.Minute, func() { fired = true })
	require.True(tm.Stop())
	require.False(tm.IsRunning())

	clk.Advance(time.Hour)
	require.False(fired)
}

func TestStartWithPrivacy(t *testing.T) {
	require := require.New(t)

	clk := fakeclock.New(epoch)
	tm := timer.New(clk)

	// 1-e^-1 makes -ln(1-u) exactly 1, so the jittered delay is the mean.
	tm.SetRand(func() float64 { return 1 - 1/2.718281828459045 })
	fireAt := tm.StartWithPrivacy(time.Hour, func() {})
	require.WithinDuration(epoch.Add(time.Hour), fireAt, time.Millisecond)

	tm.SetRand(func() float64 { return 0 })
	fireAt = tm.StartWithPrivacy(time.Hour, func() {})
	require.Equal(epoch.Add(timer.MinimumPrivacyDelay), fireAt)
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	require := require.New(t)

	clk := fakeclock.New(epoch)
	b := timer.NewBackoff(clk)
	b.SetMaxBackoffDelay(time.Minute)

	var delays []time.Duration
	for i := 0; i < 6; i++ {
		delays = append(delays, b.Start(10*time.Second, func() {}).Sub(epoch))
	}
	require.Equal([]time.Duration{
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		time.Minute,
		time.Minute,
		time.Minute,
	}, delays)

	for i := 1; i < len(delays); i++ {
		require.GreaterOrEqual(delays[i], delays[i-1])
	}
}

func TestBackoffStopResets(t *testing.T) {
	require := require.New(t)

	clk := fakeclock.New(epoch)
	b := timer.NewBackoff(clk)

	b.Start(time.Second, func() {})
	b.Start(time.Second, func() {})
	require.True(b.IsRunning())
	require.True(b.Stop())
	require.False(b.IsRunning())
	require.False(b.Stop())

	require.Equal(epoch.Add(time.Second), b.Start(time.Second, func() {}))
}

func TestBackoffCountSurvivesFire(t *testing.T) {
	require := require.New(t)

	clk := fakeclock.New(epoch)
	b := timer.NewBackoff(clk)

	fired := 0
	b.Start(time.Second, func() { fired++ })
	clk.Advance(time.Second)
	require.Equal(1, fired)
	require.False(b.IsRunning())

	now := clk.Now()
	require.Equal(now.Add(2*time.Second), b.Start(time.Second, func() {}))
}

func TestBackoffPrivacyStaysUnderCap(t *testing.T) {
	require := require.New(t)

	clk := fakeclock.New(epoch)
	b := timer.NewBackoff(clk)
	b.SetMaxBackoffDelay(time.Hour)
	b.SetRand(func() float64 { return 0.999999 })

	fireAt := b.StartWithPrivacy(30*time.Minute, func() {})
	require.Equal(epoch.Add(time.Hour), fireAt)
}

func TestFakeClockFiresInOrder(t *testing.T) {
	require := require.New(t)

	clk := fakeclock.New(epoch)
	var got []int
	clk.AfterFunc(2*time.Second, func() { got = append(got, 2) })
	clk.AfterFunc(time.Second, func() { got = append(got, 1) })
	stopped := clk.AfterFunc(3*time.Second, func() { got = append(got, 3) })
	require.True(stopped.Stop())
	require.Equal(2, clk.Pending())

	next, ok := clk.NextFireTime()
	require.True(ok)
	require.Equal(epoch.Add(time.Second), next)

	clk.Advance(5 * time.Second)
	require.Equal([]int{1, 2}, got)
	require.Equal(epoch.Add(5*time.Second), clk.Now())
}
