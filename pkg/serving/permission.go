// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package serving

import (
	"context"
	"fmt"
	"time"

	"github.com/luxfi/ads/pkg/clock"
	"github.com/luxfi/ads/pkg/core"
	"github.com/luxfi/ads/pkg/database"
	"github.com/luxfi/ads/pkg/eligible"
	"github.com/luxfi/ads/pkg/exclusion"
	"github.com/luxfi/ads/pkg/prefs"
)

// Readiness reports whether a downloaded resource is available.
type Readiness interface {
	Exists() bool
}

// ReadinessFunc adapts a function to Readiness.
type ReadinessFunc func() bool

func (f ReadinessFunc) Exists() bool { return f() }

// PermissionRules gate every serving attempt on global pacing limits.
type PermissionRules struct {
	events     eligible.AdEventSource
	catalog    Readiness
	issuers    Readiness
	adsPerHour func() int
	adsPerDay  int
	clock      clock.Clock
}

func NewPermissionRules(
	events eligible.AdEventSource,
	catalog Readiness,
	issuers Readiness,
	adsPerHour func() int,
	adsPerDay int,
	c clock.Clock,
) *PermissionRules {
	if c == nil {
		c = clock.Real()
	}
	return &PermissionRules{
		events:     events,
		catalog:    catalog,
		issuers:    issuers,
		adsPerHour: adsPerHour,
		adsPerDay:  adsPerDay,
		clock:      c,
	}
}

// HasPermission returns whether a notification ad may be served now and,
// if not, why.
func (p *PermissionRules) HasPermission(ctx context.Context) (bool, string, error) {
	if !p.catalog.Exists() {
		return false, "catalog does not exist", nil
	}
	if !p.issuers.Exists() {
		return false, "issuers do not exist", nil
	}

	adsPerHour := p.adsPerHour()
	if adsPerHour <= 0 {
		return false, "ads per hour is zero", nil
	}

	now := p.clock.Now()
	served, err := p.events.GetAdEvents(ctx, database.AdEventFilter{
		Type:             core.NotificationAd,
		ConfirmationType: core.ServedConfirmation,
		Since:            now.Add(-24 * time.Hour),
	})
	if err != nil {
		return false, "", err
	}
	history := make([]time.Time, 0, len(served))
	for _, ev := range served {
		history = append(history, ev.CreatedAt)
	}

	if !exclusion.DoesHistoryRespectRollingTimeConstraint(history, now, 24*time.Hour, p.adsPerDay) {
		return false, fmt.Sprintf("reached %d ads per day", p.adsPerDay), nil
	}
	if !exclusion.DoesHistoryRespectRollingTimeConstraint(history, now, time.Hour, adsPerHour) {
		return false, fmt.Sprintf("reached %d ads per hour", adsPerHour), nil
	}
	if !exclusion.DoesHistoryRespectRollingTimeConstraint(history, now, MinimumWaitTime(adsPerHour), 1) {
		return false, "minimum wait time has not elapsed", nil
	}
	return true, "", nil
}

// MinimumWaitTime is the spacing between ads at adsPerHour.
func MinimumWaitTime(adsPerHour int) time.Duration {
	if adsPerHour <= 0 {
		return 0
	}
	return time.Hour / time.Duration(adsPerHour)
}

// AdsPerHourFrom reads the ads per hour setting, falling back on error.
func AdsPerHourFrom(p Prefs, fallback int) func() int {
	return func() int {
		v, err := p.GetInt(prefs.AdsPerHour, fallback)
		if err != nil {
			return fallback
		}
		return v
	}
}
