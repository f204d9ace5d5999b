// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package eligible

import (
	"context"

	"github.com/luxfi/ads/pkg/core"
	"github.com/luxfi/ads/pkg/database"
)

type tableSource[T core.Creative] struct {
	table *database.CreativeAds[T]
}

// FromDatabase reads candidates of adType from db.
func FromDatabase[T core.Creative](db *database.DB, adType core.AdType) Source[T] {
	return tableSource[T]{table: database.NewCreativeAds[T](db, adType)}
}

func (s tableSource[T]) Candidates(ctx context.Context, segments []string, dimensions string) ([]T, error) {
	if dimensions != "" {
		return s.table.GetForSegmentsAndDimensions(ctx, segments, dimensions)
	}
	return s.table.GetForSegments(ctx, segments)
}

type (
	NotificationAdSelector    = Selector[core.CreativeNotificationAdInfo]
	InlineContentAdSelector   = Selector[core.CreativeInlineContentAdInfo]
	NewTabPageAdSelector      = Selector[core.CreativeNewTabPageAdInfo]
	PromotedContentAdSelector = Selector[core.CreativePromotedContentAdInfo]
	SearchResultAdSelector    = Selector[core.CreativeSearchResultAdInfo]
)
