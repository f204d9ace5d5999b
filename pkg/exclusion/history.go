// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package exclusion

import (
	"fmt"
	"time"

	"github.com/luxfi/ads/pkg/core"
)

const (
	conversionCap = 1

	dismissedCap    = 2
	dismissedWindow = 2 * day

	transferredCap    = 1
	transferredWindow = 2 * day
)

type conversionRule struct {
	events core.AdEventList
}

func (*conversionRule) Name() string { return "conversion" }

func (r *conversionRule) ShouldInclude(ad core.CreativeAdInfo) (bool, string) {
	if !DoesRespectCreativeSetCap(ad, r.events, core.ConversionConfirmation, conversionCap) {
		return false, fmt.Sprintf("creative set %s has already converted", ad.CreativeSetID)
	}
	return true, ""
}

// Two dismissals of a campaign within the window, not interrupted by a
// click, exclude it.
type dismissedRule struct {
	events core.AdEventList
	now    time.Time
}

func (*dismissedRule) Name() string { return "dismissed" }

func (r *dismissedRule) ShouldInclude(ad core.CreativeAdInfo) (bool, string) {
	since := r.now.Add(-dismissedWindow)

	count := 0
	for _, ev := range r.events {
		if ev.CampaignID != ad.CampaignID || ev.CreatedAt.Before(since) {
			continue
		}
		switch ev.ConfirmationType {
		case core.ClickedConfirmation:
			count = 0
		case core.DismissedConfirmation:
			count++
			if count >= dismissedCap {
				return false, fmt.Sprintf("campaign %s was dismissed %d times in a row", ad.CampaignID, count)
			}
		}
	}
	return true, ""
}

type transferredRule struct {
	events core.AdEventList
	now    time.Time
}

func (*transferredRule) Name() string { return "transferred" }

func (r *transferredRule) ShouldInclude(ad core.CreativeAdInfo) (bool, string) {
	if !DoesRespectCampaignCapWithin(ad, r.events, core.LandedConfirmation, r.now, transferredWindow, transferredCap) {
		return false, fmt.Sprintf("campaign %s was recently landed on", ad.CampaignID)
	}
	return true, ""
}

// The latest reaction of the user to an advertiser wins.
type dislikeRule struct {
	events core.AdEventList
}

func (*dislikeRule) Name() string { return "dislike" }

func (r *dislikeRule) ShouldInclude(ad core.CreativeAdInfo) (bool, string) {
	disliked := false
	for _, ev := range r.events {
		if ev.AdvertiserID != ad.AdvertiserID {
			continue
		}
		switch ev.ConfirmationType {
		case core.DownvotedConfirmation:
			disliked = true
		case core.UpvotedConfirmation:
			disliked = false
		}
	}
	if disliked {
		return false, fmt.Sprintf("advertiser %s was disliked", ad.AdvertiserID)
	}
	return true, ""
}

type markedAsInappropriateRule struct {
	events core.AdEventList
}

func (*markedAsInappropriateRule) Name() string { return "marked as inappropriate" }

func (r *markedAsInappropriateRule) ShouldInclude(ad core.CreativeAdInfo) (bool, string) {
	if !DoesRespectCreativeSetCap(ad, r.events, core.FlaggedConfirmation, 1) {
		return false, fmt.Sprintf("creative set %s was marked as inappropriate", ad.CreativeSetID)
	}
	return true, ""
}
