// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fixtures builds creative ads and ad events for tests.
package fixtures

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luxfi/ads/pkg/core"
)

// Now is a Monday noon in UTC.
var Now = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

// CreativeAd returns a valid, uncapped creative numbered n.
func CreativeAd(adType core.AdType, n int) core.CreativeAdInfo {
	return core.CreativeAdInfo{
		Type:               adType,
		CreativeInstanceID: fmt.Sprintf("creative-instance-%d", n),
		CreativeSetID:      fmt.Sprintf("creative-set-%d", n),
		CampaignID:         fmt.Sprintf("campaign-%d", n),
		AdvertiserID:       fmt.Sprintf("advertiser-%d", n),
		StartAt:            Now.Add(-30 * 24 * time.Hour),
		EndAt:              Now.Add(30 * 24 * time.Hour),
		DailyCap:           1000,
		PerDay:             1000,
		PerWeek:            1000,
		PerMonth:           1000,
		TotalMax:           1000,
		Value:              decimal.RequireFromString("0.05"),
		Priority:           1,
		PassThroughRate:    1,
		Segment:            core.UntargetedSegment,
		TargetURL:          fmt.Sprintf("https://advertiser-%d.example.com", n),
	}
}

func NotificationAd(n int) core.CreativeNotificationAdInfo {
	return core.CreativeNotificationAdInfo{
		CreativeAdInfo: CreativeAd(core.NotificationAd, n),
		Title:          fmt.Sprintf("Title %d", n),
		Body:           fmt.Sprintf("Body %d", n),
	}
}

func InlineContentAd(n int, dimensions string) core.CreativeInlineContentAdInfo {
	return core.CreativeInlineContentAdInfo{
		CreativeAdInfo: CreativeAd(core.InlineContentAd, n),
		Title:          fmt.Sprintf("Title %d", n),
		Description:    fmt.Sprintf("Description %d", n),
		ImageURL:       fmt.Sprintf("https://cdn.example.com/%d.png", n),
		Dimensions:     dimensions,
		CTAText:        "Learn more",
	}
}

func NewTabPageAd(n int) core.CreativeNewTabPageAdInfo {
	return core.CreativeNewTabPageAdInfo{
		CreativeAdInfo: CreativeAd(core.NewTabPageAd, n),
		CompanyName:    fmt.Sprintf("Company %d", n),
		ImageURL:       fmt.Sprintf("https://cdn.example.com/ntp-%d.jpg", n),
		Alt:            "wallpaper",
	}
}

func PromotedContentAd(n int) core.CreativePromotedContentAdInfo {
	return core.CreativePromotedContentAdInfo{
		CreativeAdInfo: CreativeAd(core.PromotedContentAd, n),
		Title:          fmt.Sprintf("Title %d", n),
		Description:    fmt.Sprintf("Description %d", n),
	}
}

// AdEvent records confirmationType for creative at createdAt on a placement
// derived from the creative.
func AdEvent(creative core.CreativeAdInfo, confirmationType core.ConfirmationType, createdAt time.Time) core.AdEventInfo {
	ad := core.BuildAdWithPlacementID(creative, "placement-"+creative.CreativeInstanceID)
	return core.BuildAdEvent(ad, confirmationType, createdAt)
}

// AdEvents returns count copies of AdEvent.
func AdEvents(creative core.CreativeAdInfo, confirmationType core.ConfirmationType, createdAt time.Time, count int) core.AdEventList {
	events := make(core.AdEventList, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, AdEvent(creative, confirmationType, createdAt))
	}
	return events
}
