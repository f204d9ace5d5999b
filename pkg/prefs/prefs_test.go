// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package prefs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTypedValues(t *testing.T) {
	require := require.New(t)

	p := NewMemory()
	defer p.Close()

	serveAt, err := p.GetTime(ServeAdAt)
	require.NoError(err)
	require.True(serveAt.IsZero())

	now := time.Date(2025, 5, 4, 3, 2, 1, 123456000, time.UTC)
	require.NoError(p.SetTime(ServeAdAt, now))
	serveAt, err = p.GetTime(ServeAdAt)
	require.NoError(err)
	require.True(now.Equal(serveAt))

	n, err := p.GetInt(AdsPerHour, 5)
	require.NoError(err)
	require.Equal(5, n)
	require.NoError(p.SetInt(AdsPerHour, 3))
	n, err = p.GetInt(AdsPerHour, 5)
	require.NoError(err)
	require.Equal(3, n)

	require.NoError(p.SetString(SubdivisionCode, "US-CA"))
	code, err := p.GetString(SubdivisionCode)
	require.NoError(err)
	require.Equal("US-CA", code)

	type arm struct {
		Segment string  `json:"segment"`
		Value   float64 `json:"value"`
	}
	var arms []arm
	ok, err := p.GetJSON(EpsilonGreedyBanditArms, &arms)
	require.NoError(err)
	require.False(ok)

	require.NoError(p.SetJSON(EpsilonGreedyBanditArms, []arm{{"travel", 0.5}}))
	ok, err = p.GetJSON(EpsilonGreedyBanditArms, &arms)
	require.NoError(err)
	require.True(ok)
	require.Equal([]arm{{"travel", 0.5}}, arms)
}

func TestCorruptValue(t *testing.T) {
	require := require.New(t)

	p := NewMemory()
	require.NoError(p.SetString(AdsPerHour, "many"))
	n, err := p.GetInt(AdsPerHour, 5)
	require.Error(err)
	require.Equal(5, n)
}

func TestObserversAndClear(t *testing.T) {
	require := require.New(t)

	p := NewMemory()
	var changed []string
	p.AddObserver(func(key string) { changed = append(changed, key) })

	require.NoError(p.SetInt(AdsPerHour, 2))
	require.NoError(p.SetString("catalog_id", "c1"))
	require.NoError(p.SetString("catalog_version", "9"))
	require.NoError(p.Clear(AdsPerHour))

	removed, err := p.ClearPrefix("catalog_")
	require.NoError(err)
	require.Equal(2, removed)

	has, err := p.Has(CatalogID)
	require.NoError(err)
	require.False(has)

	require.Equal([]string{AdsPerHour, CatalogID, CatalogVersion, AdsPerHour, CatalogID, CatalogVersion}, changed)
}

func TestUnknownBackend(t *testing.T) {
	_, err := New("leveldb", t.TempDir())
	require.ErrorIs(t, err, ErrUnknownBackend)
}

func TestBadgerBackendPersists(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	p, err := New(BadgerBackend, dir)
	require.NoError(err)
	require.NoError(p.SetInt(AdsPerHour, 7))
	require.NoError(p.Close())

	p, err = New(BadgerBackend, dir)
	require.NoError(err)
	defer p.Close()
	n, err := p.GetInt(AdsPerHour, 0)
	require.NoError(err)
	require.Equal(7, n)
}
