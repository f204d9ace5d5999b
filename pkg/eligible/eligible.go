// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package eligible

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/luxfi/ads/pkg/clock"
	"github.com/luxfi/ads/pkg/core"
	"github.com/luxfi/ads/pkg/database"
	"github.com/luxfi/ads/pkg/exclusion"
	"github.com/luxfi/ads/pkg/log"
	"github.com/luxfi/ads/pkg/metric"
	"github.com/luxfi/ads/pkg/prediction"
	"github.com/luxfi/ads/pkg/resource"
)

// Source fetches candidate creatives. An empty dimensions matches any size.
type Source[T core.Creative] interface {
	Candidates(ctx context.Context, segments []string, dimensions string) ([]T, error)
}

// AdEventSource reads the ad event history.
type AdEventSource interface {
	GetAdEvents(ctx context.Context, filter database.AdEventFilter) (core.AdEventList, error)
}

// Resources supplies the targeting resources current at request time.
type Resources interface {
	AntiTargeting() resource.AntiTargetingInfo
	SubdivisionCode() string
}

// Request is one serving opportunity.
type Request struct {
	UserModel       core.UserModelInfo
	BrowsingHistory []string
	Dimensions      string
}

// Option configures a Selector.
type Option func(*options)

type options struct {
	embedding *prediction.EmbeddingPredictor
	rand      func() float64
	metrics   *metric.Metrics
}

// WithEmbeddingPredictor restricts the result to the creative the
// embedding predictor selects.
func WithEmbeddingPredictor(p prediction.EmbeddingPredictor) Option {
	return func(o *options) { o.embedding = &p }
}

// WithPacingRand replaces the pacing random source.
func WithPacingRand(f func() float64) Option {
	return func(o *options) { o.rand = f }
}

func WithMetrics(m *metric.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Selector produces the ranked eligible creatives of one ad format.
type Selector[T core.Creative] struct {
	adType    core.AdType
	source    Source[T]
	events    AdEventSource
	resources Resources
	predictor prediction.ModelPredictor
	platform  string
	clock     clock.Clock
	log       log.Logger
	opts      options
}

// NewSelector returns a selector for adType on platform.
func NewSelector[T core.Creative](
	adType core.AdType,
	source Source[T],
	events AdEventSource,
	resources Resources,
	predictor prediction.ModelPredictor,
	platform string,
	c clock.Clock,
	logger log.Logger,
	opts ...Option,
) *Selector[T] {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = log.NoLog
	}
	o := options{rand: rand.Float64, metrics: metric.NoOp()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Selector[T]{
		adType:    adType,
		source:    source,
		events:    events,
		resources: resources,
		predictor: predictor,
		platform:  platform,
		clock:     c,
		log:       logger.With(log.String("ad_type", string(adType))),
		opts:      o,
	}
}

// Get returns the eligible creatives for req, best first. An empty result
// means no fill.
func (s *Selector[T]) Get(ctx context.Context, req Request) ([]T, error) {
	segments := req.UserModel.TargetingSegments()
	candidates, err := s.source.Candidates(ctx, segments, req.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("get %s candidates: %w", s.adType, err)
	}
	s.log.Debug("fetched candidates", log.Int("count", len(candidates)), log.Strings("segments", segments))

	events, err := s.events.GetAdEvents(ctx, database.AdEventFilter{Type: s.adType})
	if err != nil {
		return nil, fmt.Errorf("get %s ad events: %w", s.adType, err)
	}

	now := s.clock.Now()
	candidates = s.filterSupported(candidates, now)

	rules := exclusion.NewRules(exclusion.Params{
		AdType:          s.adType,
		AdEvents:        events,
		Now:             now,
		BrowsingHistory: req.BrowsingHistory,
		AntiTargeting:   s.resources.AntiTargeting(),
		SubdivisionCode: s.resources.SubdivisionCode(),
	}, s.log)
	candidates = exclusion.Apply(rules, candidates)
	candidates = s.pace(candidates)

	ranked := prediction.Rank(s.predictor, candidates, req.UserModel, events, now)
	eligible := make([]T, 0, len(ranked))
	for _, scored := range ranked {
		eligible = append(eligible, scored.Ad)
	}
	eligible = HighestPriority(eligible, s.log)

	if s.opts.embedding != nil {
		ad, similarity, ok := prediction.Predict(*s.opts.embedding, eligible, req.UserModel)
		if !ok {
			s.log.Debug("embedding predictor made no prediction")
			eligible = nil
		} else {
			s.log.Debug("embedding predictor selected creative",
				log.String("creative_instance_id", ad.Creative().CreativeInstanceID),
				log.Float64("similarity", similarity))
			eligible = []T{ad}
		}
	}

	s.opts.metrics.EligibleAds.Observe(float64(len(eligible)))
	return eligible, nil
}

// filterSupported drops creatives outside their flight or not built for
// the platform.
func (s *Selector[T]) filterSupported(ads []T, now time.Time) []T {
	return slices.DeleteFunc(ads, func(ad T) bool {
		info := ad.Creative()
		if !DoesRespectOS(info, s.platform) {
			s.log.Debug("creative does not support platform",
				log.String("creative_instance_id", info.CreativeInstanceID),
				log.String("platform", s.platform))
			return true
		}
		return !info.IsActiveAt(now)
	})
}

// pace randomly withholds creatives in proportion to their pass-through
// rate.
func (s *Selector[T]) pace(ads []T) []T {
	return slices.DeleteFunc(ads, func(ad T) bool {
		info := ad.Creative()
		if info.PassThroughRate >= 1 {
			return false
		}
		if s.opts.rand() < info.PassThroughRate {
			return false
		}
		s.log.Debug("paced creative",
			log.String("creative_instance_id", info.CreativeInstanceID),
			log.Float64("pass_through_rate", info.PassThroughRate))
		return true
	})
}

// DoesRespectOS reports whether ad can be shown on platform. An empty list
// supports every platform.
func DoesRespectOS(ad core.CreativeAdInfo, platform string) bool {
	return len(ad.OperatingSystems) == 0 || slices.Contains(ad.OperatingSystems, platform)
}

// HighestPriority keeps the creatives of the lowest positive priority
// present, in order. Priority zero is never served.
func HighestPriority[T core.Creative](ads []T, logger log.Logger) []T {
	buckets := map[int]int{}
	best := 0
	for _, ad := range ads {
		p := ad.Creative().Priority
		if p <= 0 {
			continue
		}
		buckets[p]++
		if best == 0 || p < best {
			best = p
		}
	}
	for p, n := range buckets {
		logger.Debug("priority bucket", log.Int("priority", p), log.Int("count", n))
	}
	if best == 0 {
		return nil
	}

	selected := make([]T, 0, buckets[best])
	for _, ad := range ads {
		if ad.Creative().Priority == best {
			selected = append(selected, ad)
		}
	}
	return selected
}
