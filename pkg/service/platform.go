// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"github.com/luxfi/ads/pkg/core"
	"github.com/luxfi/ads/pkg/log"
)

// StaticPlatform reports fixed capabilities.
type StaticPlatform struct {
	Supported bool
	Regular   bool
}

func (p StaticPlatform) IsSupported() bool                      { return p.Supported }
func (p StaticPlatform) ShouldServeAdsAtRegularIntervals() bool { return p.Regular }

// logPresenter shows ads by logging them, for headless runs.
type logPresenter struct {
	log log.Logger
}

func (p logPresenter) Show(ad core.NotificationAdInfo) {
	p.log.Info("notification ad",
		log.String("placement_id", ad.PlacementID),
		log.String("title", ad.Title),
		log.String("body", ad.Body),
		log.String("target_url", ad.TargetURL),
	)
}
