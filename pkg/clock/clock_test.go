// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clock

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func TestRealAfterFunc(t *testing.T) {
	require := require.New(t)

	c := Real()
	require.WithinDuration(time.Now(), c.Now(), time.Second)

	fired := make(chan struct{})
	c.AfterFunc(time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		require.FailNow("timer did not fire")
	}

	stopped := c.AfterFunc(time.Hour, func() {})
	require.True(stopped.Stop())
	require.False(stopped.Stop())
}

func TestFromMockClock(t *testing.T) {
	require := require.New(t)

	mock := clock.NewMock()
	c := FromClock(mock)
	start := c.Now()

	fired := make(chan time.Time, 1)
	c.AfterFunc(time.Minute, func() { fired <- c.Now() })
	cancelled := c.AfterFunc(2*time.Minute, func() {})
	require.True(cancelled.Stop())

	mock.Add(time.Minute)
	select {
	case at := <-fired:
		require.Equal(start.Add(time.Minute), at)
	case <-time.After(5 * time.Second):
		require.FailNow("mock timer did not fire")
	}

	mock.Add(time.Hour)
	require.Equal(start.Add(61*time.Minute), c.Now())
}
