// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package exclusion

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/luxfi/ads/pkg/core"
	"github.com/luxfi/ads/pkg/resource"
)

type antiTargetingRule struct {
	info    resource.AntiTargetingInfo
	history []string
}

func (*antiTargetingRule) Name() string { return "anti-targeting" }

func (r *antiTargetingRule) ShouldInclude(ad core.CreativeAdInfo) (bool, string) {
	if r.info.IsVisited(ad.CreativeSetID, r.history) {
		return false, fmt.Sprintf("creative set %s is anti-targeted by browsing history", ad.CreativeSetID)
	}
	return true, ""
}

// Dayparts are evaluated in the local time zone of now.
type daypartRule struct {
	now time.Time
}

func (*daypartRule) Name() string { return "daypart" }

func (r *daypartRule) ShouldInclude(ad core.CreativeAdInfo) (bool, string) {
	if len(ad.Dayparts) == 0 {
		return true, ""
	}

	weekday := strconv.Itoa(int(r.now.Weekday()))
	minute := r.now.Hour()*60 + r.now.Minute()
	for _, daypart := range ad.Dayparts {
		if !strings.Contains(daypart.DaysOfWeek, weekday) {
			continue
		}
		if minute >= daypart.StartMinute && minute <= daypart.EndMinute {
			return true, ""
		}
	}
	return false, fmt.Sprintf("creative set %s is outside its dayparts", ad.CreativeSetID)
}

// Creatives targeting regions need a known, matching subdivision.
type subdivisionRule struct {
	code string
}

func (*subdivisionRule) Name() string { return "subdivision targeting" }

func (r *subdivisionRule) ShouldInclude(ad core.CreativeAdInfo) (bool, string) {
	var subdivisions []string
	for _, target := range ad.GeoTargets {
		if strings.Contains(target, "-") {
			subdivisions = append(subdivisions, strings.ToUpper(target))
		}
	}
	if len(subdivisions) == 0 {
		return true, ""
	}
	if r.code == "" {
		return false, fmt.Sprintf("creative set %s targets subdivisions but none is known", ad.CreativeSetID)
	}
	if !slices.Contains(subdivisions, strings.ToUpper(r.code)) {
		return false, fmt.Sprintf("creative set %s does not target %s", ad.CreativeSetID, r.code)
	}
	return true, ""
}
