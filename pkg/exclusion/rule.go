// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package exclusion

import (
	"time"

	"github.com/luxfi/ads/pkg/core"
	"github.com/luxfi/ads/pkg/log"
	"github.com/luxfi/ads/pkg/resource"
)

// Rule decides whether one creative may take part in a serving opportunity.
// ShouldInclude returns a human readable reason when it excludes.
type Rule interface {
	Name() string
	ShouldInclude(ad core.CreativeAdInfo) (bool, string)
}

// ShouldExclude evaluates rule and logs the reason for an exclusion. The
// logging has no effect on the result.
func ShouldExclude(ad core.CreativeAdInfo, rule Rule, logger log.Logger) bool {
	ok, reason := rule.ShouldInclude(ad)
	if ok {
		return false
	}
	logger.Debug("excluded creative ad",
		log.String("rule", rule.Name()),
		log.String("creative_instance_id", ad.CreativeInstanceID),
		log.String("reason", reason),
	)
	return true
}

// Params is the state the rules of one serving opportunity are built from.
// AdEvents are ordered oldest first.
type Params struct {
	AdType          core.AdType
	AdEvents        core.AdEventList
	Now             time.Time
	BrowsingHistory []string
	AntiTargeting   resource.AntiTargetingInfo
	SubdivisionCode string
}

// Rules is an ordered rule set.
type Rules struct {
	rules []Rule
	log   log.Logger
}

// NewRules builds the rule set for one opportunity. Events should already
// be restricted to the requested ad type.
func NewRules(p Params, logger log.Logger) *Rules {
	if logger == nil {
		logger = log.NoLog
	}
	rules := []Rule{
		&antiTargetingRule{info: p.AntiTargeting, history: p.BrowsingHistory},
		&conversionRule{events: p.AdEvents},
		&dailyCapRule{events: p.AdEvents, now: p.Now},
		&daypartRule{now: p.Now},
		&dislikeRule{events: p.AdEvents},
		&markedAsInappropriateRule{events: p.AdEvents},
		&perDayRule{events: p.AdEvents, now: p.Now},
		&perWeekRule{events: p.AdEvents, now: p.Now},
		&perMonthRule{events: p.AdEvents, now: p.Now},
		&totalMaxRule{events: p.AdEvents},
		&subdivisionRule{code: p.SubdivisionCode},
		&transferredRule{events: p.AdEvents, now: p.Now},
	}
	switch p.AdType {
	case core.NotificationAd:
		rules = append(rules,
			&perHourRule{events: p.AdEvents, now: p.Now},
			&dismissedRule{events: p.AdEvents, now: p.Now},
		)
	case core.NewTabPageAd, core.InlineContentAd:
		rules = append(rules, &dismissedRule{events: p.AdEvents, now: p.Now})
	}
	return &Rules{rules: rules, log: logger}
}

// NewRuleSet wraps explicit rules.
func NewRuleSet(logger log.Logger, rules ...Rule) *Rules {
	if logger == nil {
		logger = log.NoLog
	}
	return &Rules{rules: rules, log: logger}
}

// ShouldExclude reports whether any rule excludes ad.
func (r *Rules) ShouldExclude(ad core.CreativeAdInfo) bool {
	for _, rule := range r.rules {
		if ShouldExclude(ad, rule, r.log) {
			return true
		}
	}
	return false
}

// Apply returns the creatives no rule excludes, keeping their order.
func Apply[T core.Creative](r *Rules, ads []T) []T {
	eligible := make([]T, 0, len(ads))
	for _, ad := range ads {
		if !r.ShouldExclude(ad.Creative()) {
			eligible = append(eligible, ad)
		}
	}
	return eligible
}
