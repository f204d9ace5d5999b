// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package prediction

import (
	"slices"
	"sort"
	"time"

	"github.com/luxfi/ads/pkg/core"
)

// Weights scale each input variable of the model. Zero disables an input.
type Weights struct {
	ChildIntentSegment          float64
	ParentIntentSegment         float64
	ChildLatentInterestSegment  float64
	ParentLatentInterestSegment float64
	ChildInterestSegment        float64
	ParentInterestSegment       float64
	LastSeenAd                  float64
	LastSeenAdvertiser          float64
	Priority                    float64
}

// DefaultWeights weighs every input equally.
func DefaultWeights() Weights {
	return Weights{
		ChildIntentSegment:          1,
		ParentIntentSegment:         1,
		ChildLatentInterestSegment:  1,
		ParentLatentInterestSegment: 1,
		ChildInterestSegment:        1,
		ParentInterestSegment:       1,
		LastSeenAd:                  1,
		LastSeenAdvertiser:          1,
		Priority:                    1,
	}
}

// InputVariables are the unweighted model inputs for one creative. Absent
// signals are zero.
type InputVariables struct {
	ChildIntentSegment          float64
	ParentIntentSegment         float64
	ChildLatentInterestSegment  float64
	ParentLatentInterestSegment float64
	ChildInterestSegment        float64
	ParentInterestSegment       float64
	LastSeenAd                  float64
	LastSeenAdvertiser          float64
	Priority                    float64
}

// ComputeInputVariables derives the inputs of ad from the user model and
// the viewed ad history at now.
func ComputeInputVariables(ad core.CreativeAdInfo, model core.UserModelInfo, events core.AdEventList, now time.Time) InputVariables {
	var in InputVariables
	in.ChildIntentSegment, in.ParentIntentSegment = segmentMatch(ad.Segment, model.Intent.Segments)
	in.ChildLatentInterestSegment, in.ParentLatentInterestSegment = segmentMatch(ad.Segment, model.LatentInterest.Segments)
	in.ChildInterestSegment, in.ParentInterestSegment = segmentMatch(ad.Segment, model.Interest.Segments)

	viewed := events.Filter(func(ev core.AdEventInfo) bool {
		return ev.ConfirmationType == core.ViewedConfirmation
	})
	in.LastSeenAd = lastSeenValue(viewed, now, func(ev core.AdEventInfo) bool {
		return ev.CreativeInstanceID == ad.CreativeInstanceID
	})
	in.LastSeenAdvertiser = lastSeenValue(viewed, now, func(ev core.AdEventInfo) bool {
		return ev.AdvertiserID == ad.AdvertiserID
	})

	if ad.Priority > 0 {
		in.Priority = 1 / float64(ad.Priority)
	}
	return in
}

func segmentMatch(segment string, segments []string) (child, parent float64) {
	if slices.Contains(segments, segment) {
		child = 1
	}
	if slices.Contains(core.ParentSegments(segments), core.ParentSegment(segment)) {
		parent = 1
	}
	return child, parent
}

// lastSeenValue is 1 when never seen and otherwise grows linearly from 0 to
// 1 over the day since the last view.
func lastSeenValue(events core.AdEventList, now time.Time, match func(core.AdEventInfo) bool) float64 {
	last, ok := events.LastSeen(match)
	if !ok {
		return 1
	}
	v := now.Sub(last).Hours() / 24
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Score is the weighted sum of in.
func (w Weights) Score(in InputVariables) float64 {
	return w.ChildIntentSegment*in.ChildIntentSegment +
		w.ParentIntentSegment*in.ParentIntentSegment +
		w.ChildLatentInterestSegment*in.ChildLatentInterestSegment +
		w.ParentLatentInterestSegment*in.ParentLatentInterestSegment +
		w.ChildInterestSegment*in.ChildInterestSegment +
		w.ParentInterestSegment*in.ParentInterestSegment +
		w.LastSeenAd*in.LastSeenAd +
		w.LastSeenAdvertiser*in.LastSeenAdvertiser +
		w.Priority*in.Priority
}

// Scored pairs a creative with its score.
type Scored[T core.Creative] struct {
	Ad    T
	Score float64
}

// ModelPredictor ranks creatives with a linear model.
type ModelPredictor struct {
	Weights Weights
}

// Rank scores ads and sorts them by descending score. Equal scores keep
// their input order.
func Rank[T core.Creative](p ModelPredictor, ads []T, model core.UserModelInfo, events core.AdEventList, now time.Time) []Scored[T] {
	scored := make([]Scored[T], 0, len(ads))
	for _, ad := range ads {
		in := ComputeInputVariables(ad.Creative(), model, events, now)
		scored = append(scored, Scored[T]{Ad: ad, Score: p.Weights.Score(in)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}
