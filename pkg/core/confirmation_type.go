// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package core

import "fmt"

// ConfirmationType is the kind of ad interaction an event or confirmation
// records.
type ConfirmationType string

const (
	UndefinedConfirmationType ConfirmationType = ""
	ServedConfirmation        ConfirmationType = "served"
	ViewedConfirmation        ConfirmationType = "view"
	ClickedConfirmation       ConfirmationType = "click"
	DismissedConfirmation     ConfirmationType = "dismiss"
	LandedConfirmation        ConfirmationType = "landed"
	ConversionConfirmation    ConfirmationType = "conversion"
	FlaggedConfirmation       ConfirmationType = "flag"
	SavedConfirmation         ConfirmationType = "bookmark"
	UpvotedConfirmation       ConfirmationType = "upvote"
	DownvotedConfirmation     ConfirmationType = "downvote"
)

// ConfirmationTypes lists every defined confirmation type.
var ConfirmationTypes = []ConfirmationType{
	ServedConfirmation,
	ViewedConfirmation,
	ClickedConfirmation,
	DismissedConfirmation,
	LandedConfirmation,
	ConversionConfirmation,
	FlaggedConfirmation,
	SavedConfirmation,
	UpvotedConfirmation,
	DownvotedConfirmation,
}

// ParseConfirmationType parses the wire name of a confirmation type.
func ParseConfirmationType(s string) (ConfirmationType, error) {
	for _, t := range ConfirmationTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return UndefinedConfirmationType, fmt.Errorf("unknown confirmation type %q", s)
}

// IsRewardable reports whether the interaction earns a confirmation sent for
// redemption. Served events are bookkeeping only.
func (t ConfirmationType) IsRewardable() bool {
	switch t {
	case UndefinedConfirmationType, ServedConfirmation:
		return false
	}
	return true
}

func (t ConfirmationType) String() string {
	return string(t)
}
