// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package core

import (
	"time"
)

// AdEventInfo records one observed lifecycle event of a served ad.
type AdEventInfo struct {
	Type               AdType           `json:"type"`
	ConfirmationType   ConfirmationType `json:"confirmation_type"`
	PlacementID        string           `json:"placement_id"`
	CreativeInstanceID string           `json:"creative_instance_id"`
	CreativeSetID      string           `json:"creative_set_id"`
	CampaignID         string           `json:"campaign_id"`
	AdvertiserID       string           `json:"advertiser_id"`
	Segment            string           `json:"segment"`
	CreatedAt          time.Time        `json:"created_at"`
}

// AdEventList is an append-only event history. Order is not significant.
type AdEventList []AdEventInfo

// BuildAdEvent creates an event for an ad at the given time.
func BuildAdEvent(ad AdInfo, confirmationType ConfirmationType, createdAt time.Time) AdEventInfo {
	return AdEventInfo{
		Type:               ad.Type,
		ConfirmationType:   confirmationType,
		PlacementID:        ad.PlacementID,
		CreativeInstanceID: ad.CreativeInstanceID,
		CreativeSetID:      ad.CreativeSetID,
		CampaignID:         ad.CampaignID,
		AdvertiserID:       ad.AdvertiserID,
		Segment:            ad.Segment,
		CreatedAt:          createdAt,
	}
}

// Filter returns the events matching pred.
func (l AdEventList) Filter(pred func(AdEventInfo) bool) AdEventList {
	var filtered AdEventList
	for _, ev := range l {
		if pred(ev) {
			filtered = append(filtered, ev)
		}
	}
	return filtered
}

// OfType returns the events for one ad format.
func (l AdEventList) OfType(adType AdType) AdEventList {
	return l.Filter(func(ev AdEventInfo) bool {
		return ev.Type == adType
	})
}

// Since returns the events created at or after t.
func (l AdEventList) Since(t time.Time) AdEventList {
	return l.Filter(func(ev AdEventInfo) bool {
		return !ev.CreatedAt.Before(t)
	})
}

// LastSeen returns the most recent event time matching pred.
func (l AdEventList) LastSeen(pred func(AdEventInfo) bool) (time.Time, bool) {
	var last time.Time
	found := false
	for _, ev := range l {
		if !pred(ev) {
			continue
		}
		if !found || ev.CreatedAt.After(last) {
			last = ev.CreatedAt
			found = true
		}
	}
	return last, found
}
