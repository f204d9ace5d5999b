// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package prediction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ads/internal/testing/fixtures"
	"github.com/luxfi/ads/pkg/core"
	"github.com/luxfi/ads/pkg/prefs"
)

var now = fixtures.Now

func TestComputeInputVariables(t *testing.T) {
	require := require.New(t)

	ad := fixtures.CreativeAd(core.NotificationAd, 1)
	ad.Segment = "automotive-sedans"
	ad.Priority = 2

	model := core.UserModelInfo{
		Intent:         core.IntentUserModelInfo{Segments: []string{"automotive-sedans"}},
		LatentInterest: core.LatentInterestUserModelInfo{Segments: []string{"automotive-suvs"}},
	}
	events := core.AdEventList{
		fixtures.AdEvent(ad, core.ViewedConfirmation, now.Add(-6*time.Hour)),
	}

	in := ComputeInputVariables(ad, model, events, now)
	require.Equal(1.0, in.ChildIntentSegment)
	require.Equal(1.0, in.ParentIntentSegment)
	require.Equal(0.0, in.ChildLatentInterestSegment)
	require.Equal(1.0, in.ParentLatentInterestSegment)
	require.Equal(0.0, in.ChildInterestSegment)
	require.Equal(0.0, in.ParentInterestSegment)
	require.InDelta(0.25, in.LastSeenAd, 1e-9)
	require.InDelta(0.25, in.LastSeenAdvertiser, 1e-9)
	require.Equal(0.5, in.Priority)

	unseen := ComputeInputVariables(fixtures.CreativeAd(core.NotificationAd, 2), core.UserModelInfo{}, events, now)
	require.Equal(1.0, unseen.LastSeenAd)
	require.Equal(1.0, unseen.Priority)
}

func TestScoreIsWeightedSum(t *testing.T) {
	require := require.New(t)

	in := InputVariables{ChildIntentSegment: 1, LastSeenAd: 0.5, Priority: 1}
	require.Equal(2.5, DefaultWeights().Score(in))

	w := DefaultWeights()
	w.ChildIntentSegment = 3
	w.Priority = 0
	require.Equal(3.5, w.Score(in))
}

func TestRankIsStableDescending(t *testing.T) {
	require := require.New(t)

	first := fixtures.NotificationAd(1)
	second := fixtures.NotificationAd(2)
	matched := fixtures.NotificationAd(3)
	matched.Segment = "travel-air travel"

	model := core.UserModelInfo{Interest: core.InterestUserModelInfo{Segments: []string{"travel-air travel"}}}
	ranked := Rank(ModelPredictor{Weights: DefaultWeights()}, []core.CreativeNotificationAdInfo{first, second, matched}, model, nil, now)

	require.Len(ranked, 3)
	require.Equal(matched.CreativeInstanceID, ranked[0].Ad.CreativeInstanceID)
	require.Equal(first.CreativeInstanceID, ranked[1].Ad.CreativeInstanceID)
	require.Equal(second.CreativeInstanceID, ranked[2].Ad.CreativeInstanceID)
	require.Equal(ranked[1].Score, ranked[2].Score)
}

func TestCosineSimilarity(t *testing.T) {
	require := require.New(t)

	s, ok := CosineSimilarity([]float64{1, 0}, []float64{1, 0})
	require.True(ok)
	require.InDelta(1, s, 1e-12)

	s, ok = CosineSimilarity([]float64{1, 0}, []float64{0, 1})
	require.True(ok)
	require.InDelta(0, s, 1e-12)

	_, ok = CosineSimilarity([]float64{1, 0}, []float64{1, 0, 0})
	require.False(ok)
	_, ok = CosineSimilarity([]float64{0, 0}, []float64{1, 0})
	require.False(ok)
}

func TestUserEmbeddingSkipsMismatchedDimensions(t *testing.T) {
	require := require.New(t)

	embedding, ok := UserEmbedding([]core.TextEmbeddingHTMLEventInfo{
		{Embedding: []float64{1, 0}},
		{Embedding: []float64{9, 9, 9}},
		{},
		{Embedding: []float64{0, 1}},
	})
	require.True(ok)
	require.Equal([]float64{0.5, 0.5}, embedding)

	_, ok = UserEmbedding(nil)
	require.False(ok)
}

func TestEmbeddingPredictor(t *testing.T) {
	require := require.New(t)

	model := core.UserModelInfo{Interest: core.InterestUserModelInfo{
		TextEmbeddingHTMLEvents: []core.TextEmbeddingHTMLEventInfo{{Embedding: []float64{1, 0, 0}}},
	}}

	close := fixtures.NotificationAd(1)
	close.Embedding = []float64{0.9, 0.1, 0}
	far := fixtures.NotificationAd(2)
	far.Embedding = []float64{0, 1, 0}
	broken := fixtures.NotificationAd(3)
	broken.Embedding = []float64{1, 0}
	missing := fixtures.NotificationAd(4)

	p := EmbeddingPredictor{Threshold: 0.5}
	ad, score, ok := Predict(p, []core.CreativeNotificationAdInfo{broken, missing, far, close}, model)
	require.True(ok)
	require.Equal(close.CreativeInstanceID, ad.CreativeInstanceID)
	require.Greater(score, 0.9)

	// Below the threshold nothing is selected, even as the only candidate.
	_, _, ok = Predict(p, []core.CreativeNotificationAdInfo{far}, model)
	require.False(ok)

	_, _, ok = Predict(p, []core.CreativeNotificationAdInfo{close}, core.UserModelInfo{})
	require.False(ok)
}

type fixedRand struct {
	f float64
}

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) IntN(int) int     { return 0 }

func TestEpsilonGreedyBanditExploits(t *testing.T) {
	require := require.New(t)

	store := prefs.NewMemory()
	bandit := NewEpsilonGreedyBandit(store, 0.1, fixedRand{f: 0.5})

	require.NoError(bandit.Initialize([]string{"travel-air travel", "automotive-sedans", "sports", "food & drink", "travel-hotels"}))
	arms, err := bandit.Arms()
	require.NoError(err)
	require.Len(arms, 4)

	reward, ok := RewardForEvent(core.ClickedConfirmation)
	require.True(ok)
	require.NoError(bandit.Reward("sports-tennis", reward))
	require.NoError(bandit.Reward("travel", 1))
	require.NoError(bandit.Reward("travel", 0))
	_, ok = RewardForEvent(core.ViewedConfirmation)
	require.False(ok)

	segments, err := bandit.Segments()
	require.NoError(err)
	require.Equal([]string{"sports", "travel", "automotive"}, segments)

	// Arms survive a new bandit on the same store.
	arms, err = NewEpsilonGreedyBandit(store, 0.1, nil).Arms()
	require.NoError(err)
	require.Equal(Arm{Segment: "travel", Value: 0.5, Pulls: 2}, arms[3])
}

func TestEpsilonGreedyBanditExplores(t *testing.T) {
	require := require.New(t)

	bandit := NewEpsilonGreedyBandit(prefs.NewMemory(), 1, fixedRand{f: 0})
	segments, err := bandit.Segments()
	require.NoError(err)
	require.Empty(segments)

	require.NoError(bandit.Initialize([]string{"a", "b", "c", "d"}))
	require.NoError(bandit.Reward("d", 1))

	// IntN always returning 0 rotates the sorted arms.
	segments, err = bandit.Segments()
	require.NoError(err)
	require.Equal([]string{"b", "c", "d"}, segments)
}
