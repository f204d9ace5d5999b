// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package eligible

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ads/internal/testing/fakeclock"
	"github.com/luxfi/ads/internal/testing/fixtures"
	"github.com/luxfi/ads/internal/testing/metrictest"
	"github.com/luxfi/ads/pkg/core"
	"github.com/luxfi/ads/pkg/database"
	"github.com/luxfi/ads/pkg/log"
	"github.com/luxfi/ads/pkg/metric"
	"github.com/luxfi/ads/pkg/prediction"
	"github.com/luxfi/ads/pkg/resource"
)

type staticResources struct {
	antiTargeting resource.AntiTargetingInfo
	subdivision   string
}

func (r staticResources) AntiTargeting() resource.AntiTargetingInfo { return r.antiTargeting }
func (r staticResources) SubdivisionCode() string                   { return r.subdivision }

type fixture struct {
	db       *database.DB
	clock    *fakeclock.Clock
	selector *NotificationAdSelector
	metrics  *metric.Metrics
}

func newFixture(t *testing.T, resources Resources, opts ...Option) *fixture {
	t.Helper()

	db, err := database.Open(database.Memory, log.NoLog)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	metrics, err := metric.NewMetrics()
	require.NoError(t, err)

	clk := fakeclock.New(fixtures.Now)
	opts = append(opts, WithMetrics(metrics))
	selector := NewSelector(
		core.NotificationAd,
		FromDatabase[core.CreativeNotificationAdInfo](db, core.NotificationAd),
		db,
		resources,
		prediction.ModelPredictor{Weights: prediction.DefaultWeights()},
		"linux",
		clk,
		log.NoLog,
		opts...,
	)
	return &fixture{db: db, clock: clk, selector: selector, metrics: metrics}
}

func (f *fixture) save(t *testing.T, ads ...core.Creative) {
	t.Helper()
	require.NoError(t, f.db.ReplaceCreativeAds(context.Background(), ads))
}

func ids(ads []core.CreativeNotificationAdInfo) []string {
	var out []string
	for _, ad := range ads {
		out = append(out, ad.CreativeInstanceID)
	}
	return out
}

func TestSelectorRanksMatchingSegmentFirst(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, staticResources{})

	untargeted := fixtures.NotificationAd(1)
	sedans := fixtures.NotificationAd(2)
	sedans.Segment = "automotive-sedans"
	unrelated := fixtures.NotificationAd(3)
	unrelated.Segment = "sports"
	f.save(t, untargeted, sedans, unrelated)

	ads, err := f.selector.Get(context.Background(), Request{
		UserModel: core.UserModelInfo{Intent: core.IntentUserModelInfo{Segments: []string{"automotive-sedans"}}},
	})
	require.NoError(err)
	require.Equal([]string{sedans.CreativeInstanceID, untargeted.CreativeInstanceID}, ids(ads))
	require.Equal(uint64(1), metrictest.HistogramCount(t, f.metrics.GetGatherer(), "eligible_ads"))
}

func TestSelectorAppliesExclusionRules(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, staticResources{
		antiTargeting: resource.AntiTargetingInfo{Version: 1, Sites: map[string][]string{"creative-set-3": {"rival.com"}}},
		subdivision:   "US-NY",
	})

	capped := fixtures.NotificationAd(1)
	capped.TotalMax = 1
	regional := fixtures.NotificationAd(2)
	regional.GeoTargets = []string{"US-CA"}
	antiTargeted := fixtures.NotificationAd(4)
	antiTargeted.CreativeSetID = "creative-set-3"
	windows := fixtures.NotificationAd(5)
	windows.OperatingSystems = []string{"windows"}
	expired := fixtures.NotificationAd(6)
	expired.EndAt = fixtures.Now.Add(-time.Hour)
	ok := fixtures.NotificationAd(7)
	f.save(t, capped, regional, antiTargeted, windows, expired, ok)

	require.NoError(f.db.RecordAdEvent(context.Background(),
		fixtures.AdEvent(capped.CreativeAdInfo, core.ServedConfirmation, fixtures.Now.Add(-2*time.Hour))))

	ads, err := f.selector.Get(context.Background(), Request{BrowsingHistory: []string{"https://rival.com"}})
	require.NoError(err)
	require.Equal([]string{ok.CreativeInstanceID}, ids(ads))
}

func TestSelectorPacing(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, staticResources{}, WithPacingRand(func() float64 { return 0.5 }))

	paced := fixtures.NotificationAd(1)
	paced.PassThroughRate = 0.4
	passed := fixtures.NotificationAd(2)
	passed.PassThroughRate = 0.6
	f.save(t, paced, passed)

	ads, err := f.selector.Get(context.Background(), Request{})
	require.NoError(err)
	require.Equal([]string{passed.CreativeInstanceID}, ids(ads))
}

func TestPriorityBucketing(t *testing.T) {
	require := require.New(t)

	withPriority := func(n, priority int) core.CreativeNotificationAdInfo {
		ad := fixtures.NotificationAd(n)
		ad.Priority = priority
		return ad
	}

	ads := []core.CreativeNotificationAdInfo{withPriority(1, 0), withPriority(2, 3), withPriority(3, 1), withPriority(4, 2), withPriority(5, 1)}
	require.Equal([]string{"creative-instance-3", "creative-instance-5"}, ids(HighestPriority(ads, log.NoLog)))

	ads = []core.CreativeNotificationAdInfo{withPriority(1, 0), withPriority(2, 3), withPriority(4, 2)}
	require.Equal([]string{"creative-instance-4"}, ids(HighestPriority(ads, log.NoLog)))

	require.Empty(HighestPriority([]core.CreativeNotificationAdInfo{withPriority(1, 0)}, log.NoLog))
}

func TestSelectorEmbeddingThreshold(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, staticResources{}, WithEmbeddingPredictor(prediction.EmbeddingPredictor{Threshold: 0.8}))

	only := fixtures.NotificationAd(1)
	only.Embedding = []float64{0, 1}
	f.save(t, only)

	model := core.UserModelInfo{Interest: core.InterestUserModelInfo{
		TextEmbeddingHTMLEvents: []core.TextEmbeddingHTMLEventInfo{{Embedding: []float64{1, 0}}},
	}}
	ads, err := f.selector.Get(context.Background(), Request{UserModel: model})
	require.NoError(err)
	require.Empty(ads)

	only.Embedding = []float64{1, 0.1}
	f.save(t, only)
	ads, err = f.selector.Get(context.Background(), Request{UserModel: model})
	require.NoError(err)
	require.Equal([]string{only.CreativeInstanceID}, ids(ads))
}

func TestDoesRespectOS(t *testing.T) {
	ad := fixtures.CreativeAd(core.NotificationAd, 1)
	require.True(t, DoesRespectOS(ad, "android"))
	ad.OperatingSystems = []string{"windows", "macos"}
	require.True(t, DoesRespectOS(ad, "macos"))
	require.False(t, DoesRespectOS(ad, "linux"))
}

func TestInlineContentBySize(t *testing.T) {
	require := require.New(t)

	db, err := database.Open(database.Memory, log.NoLog)
	require.NoError(err)
	defer db.Close()

	require.NoError(db.ReplaceCreativeAds(context.Background(), []core.Creative{
		fixtures.InlineContentAd(1, "200x100"),
		fixtures.InlineContentAd(2, "300x250"),
	}))

	var selector *InlineContentAdSelector = NewSelector(
		core.InlineContentAd,
		FromDatabase[core.CreativeInlineContentAdInfo](db, core.InlineContentAd),
		db,
		staticResources{},
		prediction.ModelPredictor{Weights: prediction.DefaultWeights()},
		"linux",
		fakeclock.New(fixtures.Now),
		log.NoLog,
	)
	ads, err := selector.Get(context.Background(), Request{Dimensions: "300x250"})
	require.NoError(err)
	require.Len(ads, 1)
	require.Equal("300x250", ads[0].Dimensions)
}
