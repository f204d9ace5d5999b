// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package catalog parses the campaign catalog and keeps the creative ads
// table in sync with it.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luxfi/ads/pkg/core"
)

// Version is the only catalog schema accepted.
const Version = 9

var (
	ErrInvalidVersion = errors.New("unsupported catalog version")
	ErrInvalidCatalog = errors.New("invalid catalog")
)

// Creative type codes.
const (
	notificationCode    = "notification_all_v1"
	inlineContentCode   = "inline_content_all_v1"
	newTabPageCode      = "new_tab_page_all_v1"
	promotedContentCode = "promoted_content_all_v1"
)

type codeName struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type dayPart struct {
	DaysOfWeek  string `json:"dow"`
	StartMinute int    `json:"startMinute"`
	EndMinute   int    `json:"endMinute"`
}

type conversion struct {
	URLPattern        string `json:"urlPattern"`
	ObservationWindow int    `json:"observationWindow"`
}

type creativePayload struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	Dimensions  string `json:"dimensions"`
	CTAText     string `json:"ctaText"`
	TargetURL   string `json:"targetUrl"`
}

type logo struct {
	CompanyName string `json:"companyName"`
	ImageURL    string `json:"imageUrl"`
	Alt         string `json:"alt"`
	TargetURL   string `json:"destinationUrl"`
}

type creative struct {
	CreativeInstanceID string          `json:"creativeInstanceId"`
	Type               codeName        `json:"type"`
	Payload            creativePayload `json:"payload"`
	Logo               *logo           `json:"logo,omitempty"`
}

type creativeSet struct {
	CreativeSetID string       `json:"creativeSetId"`
	PerDay        int          `json:"perDay"`
	PerWeek       int          `json:"perWeek"`
	PerMonth      int          `json:"perMonth"`
	TotalMax      int          `json:"totalMax"`
	Value         string       `json:"value"`
	Segments      []codeName   `json:"segments"`
	OSes          []codeName   `json:"oses"`
	Conversions   []conversion `json:"conversions"`
	Creatives     []creative   `json:"creatives"`
	Embedding     []float64    `json:"embedding,omitempty"`
}

type campaign struct {
	CampaignID   string        `json:"campaignId"`
	AdvertiserID string        `json:"advertiserId"`
	Priority     int           `json:"priority"`
	PTR          *float64      `json:"ptr"`
	StartAt      string        `json:"startAt"`
	EndAt        string        `json:"endAt"`
	DailyCap     int           `json:"dailyCap"`
	GeoTargets   []codeName    `json:"geoTargets"`
	DayParts     []dayPart     `json:"dayParts"`
	CreativeSets []creativeSet `json:"creativeSets"`
}

type catalogJSON struct {
	CatalogID string     `json:"catalogId"`
	Version   int        `json:"version"`
	Ping      int64      `json:"ping"`
	Campaigns []campaign `json:"campaigns"`
}

// CatalogInfo is a parsed catalog.
type CatalogInfo struct {
	ID        string
	Version   int
	Ping      time.Duration
	Creatives []core.Creative
}

// Parse decodes and validates a catalog. Creatives of unknown types are
// skipped; any malformed field rejects the whole catalog.
func Parse(data []byte) (CatalogInfo, error) {
	var raw catalogJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return CatalogInfo{}, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if raw.Version != Version {
		return CatalogInfo{}, fmt.Errorf("%w: %d", ErrInvalidVersion, raw.Version)
	}
	if raw.CatalogID == "" {
		return CatalogInfo{}, fmt.Errorf("%w: missing catalog id", ErrInvalidCatalog)
	}

	info := CatalogInfo{
		ID:      raw.CatalogID,
		Version: raw.Version,
		Ping:    time.Duration(raw.Ping) * time.Millisecond,
	}
	for _, c := range raw.Campaigns {
		creatives, err := parseCampaign(c)
		if err != nil {
			return CatalogInfo{}, fmt.Errorf("%w: campaign %s: %v", ErrInvalidCatalog, c.CampaignID, err)
		}
		info.Creatives = append(info.Creatives, creatives...)
	}
	return info, nil
}

func parseCampaign(c campaign) ([]core.Creative, error) {
	if c.CampaignID == "" || c.AdvertiserID == "" {
		return nil, errors.New("missing campaign or advertiser id")
	}
	startAt, err := parseTime(c.StartAt)
	if err != nil {
		return nil, fmt.Errorf("start at: %w", err)
	}
	endAt, err := parseTime(c.EndAt)
	if err != nil {
		return nil, fmt.Errorf("end at: %w", err)
	}
	passThroughRate := 1.0
	if c.PTR != nil {
		passThroughRate = *c.PTR
	}

	var geoTargets []string
	for _, g := range c.GeoTargets {
		geoTargets = append(geoTargets, g.Code)
	}
	var dayparts []core.Daypart
	for _, d := range c.DayParts {
		dayparts = append(dayparts, core.Daypart{DaysOfWeek: d.DaysOfWeek, StartMinute: d.StartMinute, EndMinute: d.EndMinute})
	}

	var out []core.Creative
	for _, set := range c.CreativeSets {
		if set.CreativeSetID == "" {
			return nil, errors.New("missing creative set id")
		}
		if len(set.Segments) == 0 {
			return nil, fmt.Errorf("creative set %s has no segments", set.CreativeSetID)
		}
		value := decimal.Zero
		if set.Value != "" {
			if value, err = decimal.NewFromString(set.Value); err != nil {
				return nil, fmt.Errorf("creative set %s value: %w", set.CreativeSetID, err)
			}
		}
		var oses []string
		for _, os := range set.OSes {
			oses = append(oses, strings.ToLower(os.Name))
		}
		var conversion *core.ConversionInfo
		if len(set.Conversions) > 0 {
			conversion = &core.ConversionInfo{
				URLPattern:        set.Conversions[0].URLPattern,
				ObservationWindow: time.Duration(set.Conversions[0].ObservationWindow) * 24 * time.Hour,
			}
		}

		for _, cr := range set.Creatives {
			if cr.CreativeInstanceID == "" {
				return nil, fmt.Errorf("creative set %s has a creative without id", set.CreativeSetID)
			}
			base := core.CreativeAdInfo{
				CreativeInstanceID: cr.CreativeInstanceID,
				CreativeSetID:      set.CreativeSetID,
				CampaignID:         c.CampaignID,
				AdvertiserID:       c.AdvertiserID,
				StartAt:            startAt,
				EndAt:              endAt,
				DailyCap:           c.DailyCap,
				PerDay:             set.PerDay,
				PerWeek:            set.PerWeek,
				PerMonth:           set.PerMonth,
				TotalMax:           set.TotalMax,
				Value:              value,
				Priority:           c.Priority,
				PassThroughRate:    passThroughRate,
				Segment:            strings.ToLower(set.Segments[0].Name),
				GeoTargets:         geoTargets,
				OperatingSystems:   oses,
				Dayparts:           dayparts,
				TargetURL:          cr.Payload.TargetURL,
				Conversion:         conversion,
				Embedding:          set.Embedding,
			}

			switch cr.Type.Code {
			case notificationCode:
				base.Type = core.NotificationAd
				out = append(out, core.CreativeNotificationAdInfo{
					CreativeAdInfo: base,
					Title:          cr.Payload.Title,
					Body:           cr.Payload.Body,
				})
			case inlineContentCode:
				base.Type = core.InlineContentAd
				out = append(out, core.CreativeInlineContentAdInfo{
					CreativeAdInfo: base,
					Title:          cr.Payload.Title,
					Description:    cr.Payload.Description,
					ImageURL:       cr.Payload.ImageURL,
					Dimensions:     cr.Payload.Dimensions,
					CTAText:        cr.Payload.CTAText,
				})
			case newTabPageCode:
				if cr.Logo == nil {
					return nil, fmt.Errorf("new tab page creative %s has no logo", cr.CreativeInstanceID)
				}
				base.Type = core.NewTabPageAd
				base.TargetURL = cr.Logo.TargetURL
				out = append(out, core.CreativeNewTabPageAdInfo{
					CreativeAdInfo: base,
					CompanyName:    cr.Logo.CompanyName,
					ImageURL:       cr.Logo.ImageURL,
					Alt:            cr.Logo.Alt,
				})
			case promotedContentCode:
				base.Type = core.PromotedContentAd
				out = append(out, core.CreativePromotedContentAdInfo{
					CreativeAdInfo: base,
					Title:          cr.Payload.Title,
					Description:    cr.Payload.Description,
				})
			}
		}
	}
	return out, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
