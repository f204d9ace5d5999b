// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package exclusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/luxfi/ads/internal/testing/fixtures"
	"github.com/luxfi/ads/pkg/core"
	"github.com/luxfi/ads/pkg/log"
	"github.com/luxfi/ads/pkg/resource"
)

var now = fixtures.Now

func TestCapMonotonicity(t *testing.T) {
	require := require.New(t)

	ad := fixtures.CreativeAd(core.NotificationAd, 1)
	for served := 0; served < 5; served++ {
		events := fixtures.AdEvents(ad, core.ServedConfirmation, now, served)
		for c1 := 0; c1 < 8; c1++ {
			for c2 := c1 + 1; c2 < 9; c2++ {
				if DoesRespectCreativeSetCap(ad, events, core.ServedConfirmation, c1) {
					require.True(DoesRespectCreativeSetCap(ad, events, core.ServedConfirmation, c2))
				}
			}
		}
	}
}

func TestZeroCapNeverRespects(t *testing.T) {
	require := require.New(t)

	ad := fixtures.CreativeAd(core.NotificationAd, 1)
	require.False(DoesRespectCreativeSetCap(ad, nil, core.ServedConfirmation, 0))
	require.False(DoesRespectCapWithin(ad, nil, core.ServedConfirmation, ByCampaign, now, time.Hour, 0))
	require.True(DoesRespectCreativeSetCap(ad, nil, core.ServedConfirmation, 1))
}

func TestCountEventsGranularityAndWindow(t *testing.T) {
	require := require.New(t)

	ad := fixtures.CreativeAd(core.NotificationAd, 1)
	sibling := ad
	sibling.CreativeInstanceID = "creative-instance-sibling"
	other := fixtures.CreativeAd(core.NotificationAd, 2)

	events := core.AdEventList{
		fixtures.AdEvent(ad, core.ServedConfirmation, now.Add(-2*time.Hour)),
		fixtures.AdEvent(sibling, core.ServedConfirmation, now.Add(-30*time.Minute)),
		fixtures.AdEvent(other, core.ServedConfirmation, now),
		fixtures.AdEvent(ad, core.ViewedConfirmation, now),
	}

	require.Equal(1, CountEvents(ad, events, core.ServedConfirmation, ByCreativeInstance, now, 0))
	require.Equal(2, CountEvents(ad, events, core.ServedConfirmation, ByCreativeSet, now, 0))
	require.Equal(1, CountEvents(ad, events, core.ServedConfirmation, ByCreativeSet, now, time.Hour))
	require.Equal(2, CountEvents(ad, events, core.ServedConfirmation, ByAdvertiser, now, 0))
	require.Equal(1, CountEvents(ad, events, core.ViewedConfirmation, ByCampaign, now, 0))
	require.Equal("campaign_id", ByCampaign.String())
}

func TestConversionRule(t *testing.T) {
	require := require.New(t)

	ad := fixtures.CreativeAd(core.NotificationAd, 1)
	rule := &conversionRule{}
	ok, _ := rule.ShouldInclude(ad)
	require.True(ok)

	rule.events = core.AdEventList{fixtures.AdEvent(ad, core.ConversionConfirmation, now.Add(-365*day))}
	ok, reason := rule.ShouldInclude(ad)
	require.False(ok)
	require.Contains(reason, ad.CreativeSetID)
}

func TestFrequencyCapRules(t *testing.T) {
	ad := fixtures.CreativeAd(core.NotificationAd, 1)
	ad.DailyCap = 2
	ad.PerDay = 2
	ad.PerWeek = 3
	ad.PerMonth = 4
	ad.TotalMax = 5

	served := func(ages ...time.Duration) core.AdEventList {
		var events core.AdEventList
		for _, age := range ages {
			events = append(events, fixtures.AdEvent(ad, core.ServedConfirmation, now.Add(-age)))
		}
		return events
	}

	tests := []struct {
		name    string
		rule    Rule
		include bool
	}{
		{"daily cap under", &dailyCapRule{events: served(time.Hour), now: now}, true},
		{"daily cap reached", &dailyCapRule{events: served(time.Hour, 2*time.Hour), now: now}, false},
		{"daily cap outside window", &dailyCapRule{events: served(time.Hour, 25*time.Hour), now: now}, true},
		{"per day reached", &perDayRule{events: served(time.Hour, 23*time.Hour), now: now}, false},
		{"per week under", &perWeekRule{events: served(day, 2*day, 8*day), now: now}, true},
		{"per week reached", &perWeekRule{events: served(day, 2*day, 6*day), now: now}, false},
		{"per month reached", &perMonthRule{events: served(day, 2*day, 6*day, 27*day), now: now}, false},
		{"per month outside window", &perMonthRule{events: served(day, 2*day, 6*day, 29*day), now: now}, true},
		{"total max under", &totalMaxRule{events: served(day, 2*day, 6*day, 29*day)}, true},
		{"total max reached", &totalMaxRule{events: served(day, 2*day, 6*day, 29*day, 300*day)}, false},
		{"per hour reached", &perHourRule{events: served(59 * time.Minute), now: now}, false},
		{"per hour elapsed", &perHourRule{events: served(61 * time.Minute), now: now}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, _ := tt.rule.ShouldInclude(ad)
			require.Equal(t, tt.include, ok)
		})
	}
}

func TestZeroWeeklyAndMonthlyCapsAreUncapped(t *testing.T) {
	require := require.New(t)

	ad := fixtures.CreativeAd(core.NotificationAd, 1)
	ad.PerWeek = 0
	ad.PerMonth = 0
	events := fixtures.AdEvents(ad, core.ServedConfirmation, now, 10)

	ok, _ := (&perWeekRule{events: events, now: now}).ShouldInclude(ad)
	require.True(ok)
	ok, _ = (&perMonthRule{events: events, now: now}).ShouldInclude(ad)
	require.True(ok)

	ad.TotalMax = 0
	ok, _ = (&totalMaxRule{}).ShouldInclude(ad)
	require.False(ok)
}

func TestDismissedRule(t *testing.T) {
	ad := fixtures.CreativeAd(core.NotificationAd, 1)
	event := func(ct core.ConfirmationType, age time.Duration) core.AdEventInfo {
		return fixtures.AdEvent(ad, ct, now.Add(-age))
	}

	tests := []struct {
		name    string
		events  core.AdEventList
		include bool
	}{
		{"none", nil, true},
		{"once", core.AdEventList{event(core.DismissedConfirmation, time.Hour)}, true},
		{"twice", core.AdEventList{
			event(core.DismissedConfirmation, 2*time.Hour),
			event(core.DismissedConfirmation, time.Hour),
		}, false},
		{"click resets", core.AdEventList{
			event(core.DismissedConfirmation, 3*time.Hour),
			event(core.ClickedConfirmation, 2*time.Hour),
			event(core.DismissedConfirmation, time.Hour),
		}, true},
		{"outside window", core.AdEventList{
			event(core.DismissedConfirmation, 3*day),
			event(core.DismissedConfirmation, time.Hour),
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, _ := (&dismissedRule{events: tt.events, now: now}).ShouldInclude(ad)
			require.Equal(t, tt.include, ok)
		})
	}
}

func TestReactionRules(t *testing.T) {
	require := require.New(t)

	ad := fixtures.CreativeAd(core.NotificationAd, 1)

	ok, _ := (&dislikeRule{events: core.AdEventList{
		fixtures.AdEvent(ad, core.DownvotedConfirmation, now.Add(-time.Hour)),
	}}).ShouldInclude(ad)
	require.False(ok)

	ok, _ = (&dislikeRule{events: core.AdEventList{
		fixtures.AdEvent(ad, core.DownvotedConfirmation, now.Add(-time.Hour)),
		fixtures.AdEvent(ad, core.UpvotedConfirmation, now),
	}}).ShouldInclude(ad)
	require.True(ok)

	ok, _ = (&markedAsInappropriateRule{events: core.AdEventList{
		fixtures.AdEvent(ad, core.FlaggedConfirmation, now),
	}}).ShouldInclude(ad)
	require.False(ok)

	ok, _ = (&transferredRule{events: core.AdEventList{
		fixtures.AdEvent(ad, core.LandedConfirmation, now.Add(-day)),
	}, now: now}).ShouldInclude(ad)
	require.False(ok)

	ok, _ = (&transferredRule{events: core.AdEventList{
		fixtures.AdEvent(ad, core.LandedConfirmation, now.Add(-3*day)),
	}, now: now}).ShouldInclude(ad)
	require.True(ok)
}

func TestTargetingRules(t *testing.T) {
	require := require.New(t)

	ad := fixtures.CreativeAd(core.NotificationAd, 1)

	anti := &antiTargetingRule{
		info:    resource.AntiTargetingInfo{Version: 1, Sites: map[string][]string{ad.CreativeSetID: {"https://rival.com"}}},
		history: []string{"https://rival.com/shop"},
	}
	ok, _ := anti.ShouldInclude(ad)
	require.False(ok)

	// fixtures.Now is a Monday at 12:00.
	ad.Dayparts = []core.Daypart{{DaysOfWeek: "12345", StartMinute: 9 * 60, EndMinute: 17 * 60}}
	ok, _ = (&daypartRule{now: now}).ShouldInclude(ad)
	require.True(ok)
	ad.Dayparts = []core.Daypart{{DaysOfWeek: "06", StartMinute: 0, EndMinute: 1439}}
	ok, _ = (&daypartRule{now: now}).ShouldInclude(ad)
	require.False(ok)
	ad.Dayparts = nil

	ad.GeoTargets = []string{"US", "US-CA"}
	ok, _ = (&subdivisionRule{code: "US-CA"}).ShouldInclude(ad)
	require.True(ok)
	ok, _ = (&subdivisionRule{code: "US-NY"}).ShouldInclude(ad)
	require.False(ok)
	ok, _ = (&subdivisionRule{}).ShouldInclude(ad)
	require.False(ok)

	ad.GeoTargets = []string{"US"}
	ok, _ = (&subdivisionRule{}).ShouldInclude(ad)
	require.True(ok)
}

func TestRulesApplyLogsButDoesNotChangeOutcome(t *testing.T) {
	require := require.New(t)

	capped := fixtures.NotificationAd(1)
	capped.TotalMax = 1
	fresh := fixtures.NotificationAd(2)

	params := Params{
		AdType:   core.NotificationAd,
		AdEvents: core.AdEventList{fixtures.AdEvent(capped.CreativeAdInfo, core.ServedConfirmation, now.Add(-3*time.Hour))},
		Now:      now,
	}

	zcore, logs := observer.New(zapcore.DebugLevel)
	logged := Apply(NewRules(params, log.FromZap(zap.New(zcore))), []core.CreativeNotificationAdInfo{capped, fresh})
	silent := Apply(NewRules(params, log.NoLog), []core.CreativeNotificationAdInfo{capped, fresh})

	require.Equal(silent, logged)
	require.Len(logged, 1)
	require.Equal(fresh.CreativeInstanceID, logged[0].CreativeInstanceID)

	entries := logs.FilterMessage("excluded creative ad").All()
	require.Len(entries, 1)
	require.Equal("total max", entries[0].ContextMap()["rule"])
}

func TestRollingTimeConstraint(t *testing.T) {
	require := require.New(t)

	history := []time.Time{now.Add(-2 * time.Hour), now.Add(-30 * time.Minute), now.Add(-time.Minute)}
	require.True(DoesHistoryRespectRollingTimeConstraint(history, now, time.Hour, 3))
	require.False(DoesHistoryRespectRollingTimeConstraint(history, now, time.Hour, 2))
	require.False(DoesHistoryRespectRollingTimeConstraint(nil, now, time.Hour, 0))
	require.True(DoesHistoryRespectRollingTimeConstraint(nil, now, time.Hour, 1))
	require.True(DoesHistoryRespectRollingTimeConstraint([]time.Time{now.Add(-time.Hour)}, now, time.Hour, 1))
}
