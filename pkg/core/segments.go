// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package core

import (
	"slices"
	"strings"
)

// UntargetedSegment matches every user and is the fallback when no user
// model segment has eligible ads.
const UntargetedSegment = "untargeted"

const segmentSeparator = "-"

// ParentSegment returns the parent of a "parent-child" taxonomy segment, or
// the segment itself when it has no child part.
func ParentSegment(segment string) string {
	parent, _, _ := strings.Cut(segment, segmentSeparator)
	return parent
}

// ParentSegments returns the de-duplicated parents of segments, keeping the
// order of first appearance.
func ParentSegments(segments []string) []string {
	parents := make([]string, 0, len(segments))
	for _, segment := range segments {
		parent := ParentSegment(segment)
		if !slices.Contains(parents, parent) {
			parents = append(parents, parent)
		}
	}
	return parents
}

// HasChildSegment reports whether segment has a child part.
func HasChildSegment(segment string) bool {
	return strings.Contains(segment, segmentSeparator)
}
