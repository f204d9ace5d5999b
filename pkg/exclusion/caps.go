// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package exclusion

import (
	"time"

	"github.com/luxfi/ads/pkg/core"
)

// Granularity selects the identifier events are counted by.
type Granularity int

const (
	ByCreativeInstance Granularity = iota
	ByCreativeSet
	ByCampaign
	ByAdvertiser
)

func (g Granularity) String() string {
	switch g {
	case ByCreativeInstance:
		return "creative_instance_id"
	case ByCreativeSet:
		return "creative_set_id"
	case ByCampaign:
		return "campaign_id"
	case ByAdvertiser:
		return "advertiser_id"
	default:
		return "unknown"
	}
}

func (g Granularity) matches(ad core.CreativeAdInfo, ev core.AdEventInfo) bool {
	switch g {
	case ByCreativeInstance:
		return ev.CreativeInstanceID == ad.CreativeInstanceID
	case ByCreativeSet:
		return ev.CreativeSetID == ad.CreativeSetID
	case ByCampaign:
		return ev.CampaignID == ad.CampaignID
	case ByAdvertiser:
		return ev.AdvertiserID == ad.AdvertiserID
	default:
		return false
	}
}

// CountEvents counts events of confirmationType for ad at granularity g.
// A non-zero window only counts events no older than now - window.
func CountEvents(
	ad core.CreativeAdInfo,
	events core.AdEventList,
	confirmationType core.ConfirmationType,
	g Granularity,
	now time.Time,
	window time.Duration,
) int {
	var since time.Time
	if window > 0 {
		since = now.Add(-window)
	}

	count := 0
	for _, ev := range events {
		if ev.ConfirmationType != confirmationType || !g.matches(ad, ev) {
			continue
		}
		if window > 0 && ev.CreatedAt.Before(since) {
			continue
		}
		count++
	}
	return count
}

// DoesRespectCap reports whether fewer than limit lifetime events match.
// A limit of zero never respects.
func DoesRespectCap(
	ad core.CreativeAdInfo,
	events core.AdEventList,
	confirmationType core.ConfirmationType,
	g Granularity,
	limit int,
) bool {
	return CountEvents(ad, events, confirmationType, g, time.Time{}, 0) < limit
}

// DoesRespectCapWithin is DoesRespectCap restricted to the window ending at
// now.
func DoesRespectCapWithin(
	ad core.CreativeAdInfo,
	events core.AdEventList,
	confirmationType core.ConfirmationType,
	g Granularity,
	now time.Time,
	window time.Duration,
	limit int,
) bool {
	return CountEvents(ad, events, confirmationType, g, now, window) < limit
}

// DoesRespectCreativeSetCap is the creative set shorthand used by most rules.
func DoesRespectCreativeSetCap(
	ad core.CreativeAdInfo,
	events core.AdEventList,
	confirmationType core.ConfirmationType,
	limit int,
) bool {
	return DoesRespectCap(ad, events, confirmationType, ByCreativeSet, limit)
}

// DoesRespectCampaignCapWithin is the campaign shorthand with a window.
func DoesRespectCampaignCapWithin(
	ad core.CreativeAdInfo,
	events core.AdEventList,
	confirmationType core.ConfirmationType,
	now time.Time,
	window time.Duration,
	limit int,
) bool {
	return DoesRespectCapWithin(ad, events, confirmationType, ByCampaign, now, window, limit)
}

// DoesHistoryRespectRollingTimeConstraint reports whether fewer than limit
// of history fall strictly inside the window ending at now.
func DoesHistoryRespectRollingTimeConstraint(history []time.Time, now time.Time, window time.Duration, limit int) bool {
	since := now.Add(-window)
	count := 0
	for _, t := range history {
		if t.After(since) {
			count++
		}
	}
	return count < limit
}
