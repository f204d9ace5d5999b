// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package usermodel

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ads/internal/testing/fakeclock"
	"github.com/luxfi/ads/internal/testing/fixtures"
	"github.com/luxfi/ads/pkg/core"
	"github.com/luxfi/ads/pkg/log"
)

type staticSegments struct {
	segments []string
	err      error
}

func (s staticSegments) Segments() ([]string, error) { return s.segments, s.err }

func TestBuild(t *testing.T) {
	require := require.New(t)

	clk := fakeclock.New(fixtures.Now)
	b := NewBuilder(clk, staticSegments{segments: []string{"sports"}}, log.NoLog)

	b.RecordIntentSegments("automotive-sedans")
	clk.Advance(8 * 24 * time.Hour)
	b.RecordIntentSegments("travel-hotels", "travel-hotels")
	b.RecordInterestSegments("food & drink", "technology & computing")
	b.RecordInterestSegments("food & drink")
	b.RecordTextEmbedding(core.TextEmbeddingHTMLEventInfo{Embedding: []float64{1, 2}})

	model := b.Build()
	require.Equal([]string{"travel-hotels"}, model.Intent.Segments)
	require.Equal([]string{"sports"}, model.LatentInterest.Segments)
	require.Equal([]string{"food & drink", "technology & computing"}, model.Interest.Segments)
	require.Len(model.Interest.TextEmbeddingHTMLEvents, 1)
	require.Equal(clk.Now(), model.Interest.TextEmbeddingHTMLEvents[0].CreatedAt)
}

func TestBuildToleratesLatentFailure(t *testing.T) {
	b := NewBuilder(fakeclock.New(fixtures.Now), staticSegments{err: errors.New("corrupt")}, log.NoLog)
	require.Empty(t, b.Build().LatentInterest.Segments)
}

func TestBoundedSignals(t *testing.T) {
	require := require.New(t)

	b := NewBuilder(fakeclock.New(fixtures.Now), nil, nil)
	for i := 0; i < MaxTextEmbeddings+5; i++ {
		b.RecordTextEmbedding(core.TextEmbeddingHTMLEventInfo{Embedding: []float64{float64(i)}})
	}
	model := b.Build()
	require.Len(model.Interest.TextEmbeddingHTMLEvents, MaxTextEmbeddings)
	require.Equal(float64(5), model.Interest.TextEmbeddingHTMLEvents[0].Embedding[0])

	b.RecordVisit("https://a.com")
	b.RecordVisit("https://b.com")
	b.RecordVisit("https://a.com")
	require.Equal([]string{"https://a.com", "https://b.com"}, b.BrowsingHistory())
}
