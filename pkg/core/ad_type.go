// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package core

import "fmt"

// AdType identifies an ad format.
type AdType string

const (
	UndefinedAdType   AdType = ""
	NotificationAd    AdType = "ad_notification"
	NewTabPageAd      AdType = "new_tab_page_ad"
	PromotedContentAd AdType = "promoted_content_ad"
	InlineContentAd   AdType = "inline_content_ad"
	SearchResultAd    AdType = "search_result_ad"
)

// AdTypes lists every defined format.
var AdTypes = []AdType{
	NotificationAd,
	NewTabPageAd,
	PromotedContentAd,
	InlineContentAd,
	SearchResultAd,
}

// ParseAdType parses the wire name of an ad format.
func ParseAdType(s string) (AdType, error) {
	for _, t := range AdTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return UndefinedAdType, fmt.Errorf("unknown ad type %q", s)
}

func (t AdType) String() string {
	return string(t)
}
