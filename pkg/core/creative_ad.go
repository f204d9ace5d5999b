// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Daypart restricts serving to a window on given weekdays. DaysOfWeek uses
// time.Weekday digits ("0" = Sunday); minutes are minutes since midnight.
type Daypart struct {
	DaysOfWeek  string `json:"days_of_week"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

// ConversionInfo is the optional conversion rule of a creative set.
type ConversionInfo struct {
	URLPattern        string        `json:"url_pattern"`
	ObservationWindow time.Duration `json:"observation_window"`
}

// CreativeAdInfo is the format independent part of an advertisable unit.
type CreativeAdInfo struct {
	Type               AdType    `json:"type"`
	CreativeInstanceID string    `json:"creative_instance_id"`
	CreativeSetID      string    `json:"creative_set_id"`
	CampaignID         string    `json:"campaign_id"`
	AdvertiserID       string    `json:"advertiser_id"`
	StartAt            time.Time `json:"start_at"`
	EndAt              time.Time `json:"end_at"`

	// Frequency caps
	DailyCap int `json:"daily_cap"`
	PerDay   int `json:"per_day"`
	PerWeek  int `json:"per_week"`
	PerMonth int `json:"per_month"`
	TotalMax int `json:"total_max"`

	Value           decimal.Decimal `json:"value"`
	Priority        int             `json:"priority"`
	PassThroughRate float64         `json:"pass_through_rate"`

	Segment          string          `json:"segment"`
	GeoTargets       []string        `json:"geo_targets,omitempty"`
	OperatingSystems []string        `json:"operating_systems,omitempty"`
	Dayparts         []Daypart       `json:"dayparts,omitempty"`
	TargetURL        string          `json:"target_url"`
	Conversion       *ConversionInfo `json:"conversion,omitempty"`
	Embedding        []float64       `json:"embedding,omitempty"`
}

// Creative is implemented by every format specific creative through the
// embedded CreativeAdInfo.
type Creative interface {
	Creative() CreativeAdInfo
}

// Creative returns the format independent fields.
func (c CreativeAdInfo) Creative() CreativeAdInfo {
	return c
}

// IsValid reports whether the identifiers required for serving are set.
func (c CreativeAdInfo) IsValid() bool {
	return c.Type != UndefinedAdType &&
		c.CreativeInstanceID != "" &&
		c.CreativeSetID != "" &&
		c.CampaignID != "" &&
		c.AdvertiserID != "" &&
		c.Segment != ""
}

// IsActiveAt reports whether t falls inside the campaign flight.
func (c CreativeAdInfo) IsActiveAt(t time.Time) bool {
	if !c.StartAt.IsZero() && t.Before(c.StartAt) {
		return false
	}
	if !c.EndAt.IsZero() && t.After(c.EndAt) {
		return false
	}
	return true
}

// CreativeNotificationAdInfo is a creative for system notification ads.
type CreativeNotificationAdInfo struct {
	CreativeAdInfo
	Title string `json:"title"`
	Body  string `json:"body"`
}

// CreativeInlineContentAdInfo is a creative rendered inside page content.
type CreativeInlineContentAdInfo struct {
	CreativeAdInfo
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Dimensions  string `json:"dimensions"`
	CTAText     string `json:"cta_text"`
}

// CreativeNewTabPageAdInfo is a sponsored new tab page background.
type CreativeNewTabPageAdInfo struct {
	CreativeAdInfo
	CompanyName string `json:"company_name"`
	ImageURL    string `json:"image_url"`
	Alt         string `json:"alt"`
}

// CreativePromotedContentAdInfo is a promoted news feed item.
type CreativePromotedContentAdInfo struct {
	CreativeAdInfo
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CreativeSearchResultAdInfo is an ad shown on a search results page.
type CreativeSearchResultAdInfo struct {
	CreativeAdInfo
	HeadlineText string `json:"headline_text"`
	Description  string `json:"description"`
}

// CreativeAds extracts the format independent fields of a list.
func CreativeAds[T Creative](ads []T) []CreativeAdInfo {
	infos := make([]CreativeAdInfo, 0, len(ads))
	for _, ad := range ads {
		infos = append(infos, ad.Creative())
	}
	return infos
}
