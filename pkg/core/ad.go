// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package core

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdInfo identifies one served instance of a creative. PlacementID is
// unique per serve and ties every later event to it.
type AdInfo struct {
	Type               AdType          `json:"type"`
	PlacementID        string          `json:"placement_id"`
	CreativeInstanceID string          `json:"creative_instance_id"`
	CreativeSetID      string          `json:"creative_set_id"`
	CampaignID         string          `json:"campaign_id"`
	AdvertiserID       string          `json:"advertiser_id"`
	Segment            string          `json:"segment"`
	TargetURL          string          `json:"target_url"`
	Value              decimal.Decimal `json:"value"`
}

// IsValid reports whether the ad can be recorded and confirmed.
func (a AdInfo) IsValid() bool {
	return a.Type != UndefinedAdType &&
		a.PlacementID != "" &&
		a.CreativeInstanceID != "" &&
		a.CreativeSetID != "" &&
		a.CampaignID != "" &&
		a.AdvertiserID != "" &&
		a.Segment != ""
}

// BuildAd creates an ad with a fresh placement id.
func BuildAd(creative CreativeAdInfo) AdInfo {
	return BuildAdWithPlacementID(creative, uuid.NewString())
}

// BuildAdWithPlacementID creates an ad for an existing placement.
func BuildAdWithPlacementID(creative CreativeAdInfo, placementID string) AdInfo {
	return AdInfo{
		Type:               creative.Type,
		PlacementID:        placementID,
		CreativeInstanceID: creative.CreativeInstanceID,
		CreativeSetID:      creative.CreativeSetID,
		CampaignID:         creative.CampaignID,
		AdvertiserID:       creative.AdvertiserID,
		Segment:            creative.Segment,
		TargetURL:          creative.TargetURL,
		Value:              creative.Value,
	}
}

// NotificationAdInfo is what the UI collaborator is asked to show.
type NotificationAdInfo struct {
	AdInfo
	Title string `json:"title"`
	Body  string `json:"body"`
}

// BuildNotificationAd creates a notification ad with a fresh placement id.
func BuildNotificationAd(creative CreativeNotificationAdInfo) NotificationAdInfo {
	return NotificationAdInfo{
		AdInfo: BuildAd(creative.CreativeAdInfo),
		Title:  creative.Title,
		Body:   creative.Body,
	}
}
