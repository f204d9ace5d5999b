// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package exclusion

import (
	"fmt"
	"time"

	"github.com/luxfi/ads/pkg/core"
)

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 28 * day

	perHourCap = 1
)

type dailyCapRule struct {
	events core.AdEventList
	now    time.Time
}

func (*dailyCapRule) Name() string { return "daily cap" }

func (r *dailyCapRule) ShouldInclude(ad core.CreativeAdInfo) (bool, string) {
	if !DoesRespectCampaignCapWithin(ad, r.events, core.ServedConfirmation, r.now, day, ad.DailyCap) {
		return false, fmt.Sprintf("campaign %s has exceeded the daily cap of %d", ad.CampaignID, ad.DailyCap)
	}
	return true, ""
}

type perDayRule struct {
	events core.AdEventList
	now    time.Time
}

func (*perDayRule) Name() string { return "per day" }

func (r *perDayRule) ShouldInclude(ad core.CreativeAdInfo) (bool, string) {
	if !DoesRespectCapWithin(ad, r.events, core.ServedConfirmation, ByCreativeSet, r.now, day, ad.PerDay) {
		return false, fmt.Sprintf("creative set %s has exceeded the per day cap of %d", ad.CreativeSetID, ad.PerDay)
	}
	return true, ""
}

// A zero per week cap means uncapped.
type perWeekRule struct {
	events core.AdEventList
	now    time.Time
}

func (*perWeekRule) Name() string { return "per week" }

func (r *perWeekRule) ShouldInclude(ad core.CreativeAdInfo) (bool, string) {
	if ad.PerWeek == 0 {
		return true, ""
	}
	if !DoesRespectCapWithin(ad, r.events, core.ServedConfirmation, ByCreativeSet, r.now, week, ad.PerWeek) {
		return false, fmt.Sprintf("creative set %s has exceeded the per week cap of %d", ad.CreativeSetID, ad.PerWeek)
	}
	return true, ""
}

// A zero per month cap means uncapped.
type perMonthRule struct {
	events core.AdEventList
	now    time.Time
}

func (*perMonthRule) Name() string { return "per month" }

func (r *perMonthRule) ShouldInclude(ad core.CreativeAdInfo) (bool, string) {
	if ad.PerMonth == 0 {
		return true, ""
	}
	if !DoesRespectCapWithin(ad, r.events, core.ServedConfirmation, ByCreativeSet, r.now, month, ad.PerMonth) {
		return false, fmt.Sprintf("creative set %s has exceeded the per month cap of %d", ad.CreativeSetID, ad.PerMonth)
	}
	return true, ""
}

type perHourRule struct {
	events core.AdEventList
	now    time.Time
}

func (*perHourRule) Name() string { return "per hour" }

func (r *perHourRule) ShouldInclude(ad core.CreativeAdInfo) (bool, string) {
	if !DoesRespectCapWithin(ad, r.events, core.ServedConfirmation, ByCreativeInstance, r.now, time.Hour, perHourCap) {
		return false, fmt.Sprintf("creative instance %s has exceeded the per hour cap", ad.CreativeInstanceID)
	}
	return true, ""
}

type totalMaxRule struct {
	events core.AdEventList
}

func (*totalMaxRule) Name() string { return "total max" }

func (r *totalMaxRule) ShouldInclude(ad core.CreativeAdInfo) (bool, string) {
	if !DoesRespectCreativeSetCap(ad, r.events, core.ServedConfirmation, ad.TotalMax) {
		return false, fmt.Sprintf("creative set %s has exceeded the total max of %d", ad.CreativeSetID, ad.TotalMax)
	}
	return true, ""
}
