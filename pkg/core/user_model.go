// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package core

import (
	"slices"
	"time"
)

// TextEmbeddingHTMLEventInfo is the embedding of one visited page.
type TextEmbeddingHTMLEventInfo struct {
	CreatedAt  time.Time `json:"created_at"`
	Locale     string    `json:"locale"`
	HashedText string    `json:"hashed_text"`
	Embedding  []float64 `json:"embedding"`
}

// IntentUserModelInfo holds purchase intent segments.
type IntentUserModelInfo struct {
	Segments []string `json:"segments"`
}

// LatentInterestUserModelInfo holds latent interest segments.
type LatentInterestUserModelInfo struct {
	Segments []string `json:"segments"`
}

// InterestUserModelInfo holds contextual interest segments and page
// embeddings.
type InterestUserModelInfo struct {
	Segments                []string                     `json:"segments"`
	TextEmbeddingHTMLEvents []TextEmbeddingHTMLEventInfo `json:"text_embedding_html_events"`
}

// UserModelInfo is rebuilt before every serving attempt and never persisted.
type UserModelInfo struct {
	Intent         IntentUserModelInfo         `json:"intent"`
	LatentInterest LatentInterestUserModelInfo `json:"latent_interest"`
	Interest       InterestUserModelInfo       `json:"interest"`
}

// Segments returns every segment of the model, intent first, without
// duplicates.
func (u UserModelInfo) Segments() []string {
	var segments []string
	for _, list := range [][]string{u.Intent.Segments, u.LatentInterest.Segments, u.Interest.Segments} {
		for _, segment := range list {
			if !slices.Contains(segments, segment) {
				segments = append(segments, segment)
			}
		}
	}
	return segments
}

// TargetingSegments returns the model segments, their parents and the
// untargeted segment, which together select candidate creatives.
func (u UserModelInfo) TargetingSegments() []string {
	segments := u.Segments()
	for _, parent := range ParentSegments(segments) {
		if !slices.Contains(segments, parent) {
			segments = append(segments, parent)
		}
	}
	if !slices.Contains(segments, UntargetedSegment) {
		segments = append(segments, UntargetedSegment)
	}
	return segments
}
