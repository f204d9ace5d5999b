// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package adevent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/ads/pkg/clock"
	"github.com/luxfi/ads/pkg/core"
	"github.com/luxfi/ads/pkg/database"
	"github.com/luxfi/ads/pkg/log"
	"github.com/luxfi/ads/pkg/metric"
)

// DefaultRetention is how long ad events are kept.
const DefaultRetention = 90 * 24 * time.Hour

var (
	ErrInvalidAd       = errors.New("invalid ad")
	ErrDuplicateEvent  = errors.New("duplicate ad event")
	ErrMissingPrevious = errors.New("ad event out of order")
)

// Store is the ad event log.
type Store interface {
	RecordAdEvent(ctx context.Context, ev core.AdEventInfo) error
	GetAdEvents(ctx context.Context, filter database.AdEventFilter) (core.AdEventList, error)
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeOrphaned(ctx context.Context, adType core.AdType) (int64, error)
}

// Observer is told about every recorded event.
type Observer func(ev core.AdEventInfo)

// onceOnly confirmation types may be recorded once per placement, after
// the listed prerequisite.
var onceOnly = map[core.ConfirmationType]core.ConfirmationType{
	core.ServedConfirmation:    core.UndefinedConfirmationType,
	core.ViewedConfirmation:    core.ServedConfirmation,
	core.ClickedConfirmation:   core.ViewedConfirmation,
	core.DismissedConfirmation: core.ViewedConfirmation,
	core.LandedConfirmation:    core.ClickedConfirmation,
}

// Recorder validates and appends ad events.
type Recorder struct {
	store     Store
	clock     clock.Clock
	metrics   *metric.Metrics
	log       log.Logger
	retention time.Duration

	mu        sync.Mutex
	observers []Observer
}

func NewRecorder(store Store, c clock.Clock, metrics *metric.Metrics, logger log.Logger) *Recorder {
	if c == nil {
		c = clock.Real()
	}
	if metrics == nil {
		metrics = metric.NoOp()
	}
	if logger == nil {
		logger = log.NoLog
	}
	return &Recorder{
		store:     store,
		clock:     c,
		metrics:   metrics,
		log:       logger,
		retention: DefaultRetention,
	}
}

// SetRetention changes how long Purge keeps events.
func (r *Recorder) SetRetention(d time.Duration) {
	r.retention = d
}

func (r *Recorder) AddObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// Record appends an event of confirmationType for ad, enforcing the per
// placement ordering.
func (r *Recorder) Record(ctx context.Context, ad core.AdInfo, confirmationType core.ConfirmationType) (core.AdEventInfo, error) {
	if !ad.IsValid() {
		return core.AdEventInfo{}, ErrInvalidAd
	}

	// Serialize the check and the append per recorder.
	r.mu.Lock()
	ev, err := r.record(ctx, ad, confirmationType)
	observers := append([]Observer(nil), r.observers...)
	r.mu.Unlock()
	if err != nil {
		return core.AdEventInfo{}, err
	}

	r.metrics.AdEventsRecorded.WithLabelValues(string(ad.Type), string(confirmationType)).Inc()
	r.log.Debug("recorded ad event",
		log.String("ad_type", string(ad.Type)),
		log.String("confirmation_type", string(confirmationType)),
		log.String("placement_id", ad.PlacementID),
	)
	for _, o := range observers {
		o(ev)
	}
	return ev, nil
}

func (r *Recorder) record(ctx context.Context, ad core.AdInfo, confirmationType core.ConfirmationType) (core.AdEventInfo, error) {
	if previous, ok := onceOnly[confirmationType]; ok {
		history, err := r.store.GetAdEvents(ctx, database.AdEventFilter{PlacementID: ad.PlacementID})
		if err != nil {
			return core.AdEventInfo{}, err
		}
		seen := map[core.ConfirmationType]bool{}
		for _, ev := range history {
			seen[ev.ConfirmationType] = true
		}
		if seen[confirmationType] {
			return core.AdEventInfo{}, fmt.Errorf("%w: %s for placement %s", ErrDuplicateEvent, confirmationType, ad.PlacementID)
		}
		if previous != core.UndefinedConfirmationType && !seen[previous] {
			return core.AdEventInfo{}, fmt.Errorf("%w: %s before %s for placement %s", ErrMissingPrevious, confirmationType, previous, ad.PlacementID)
		}
	}

	ev := core.BuildAdEvent(ad, confirmationType, r.clock.Now())
	if err := r.store.RecordAdEvent(ctx, ev); err != nil {
		return core.AdEventInfo{}, err
	}
	return ev, nil
}

// Purge deletes events older than the retention and the events of
// placements that were served but never viewed.
func (r *Recorder) Purge(ctx context.Context) error {
	expired, err := r.store.PurgeExpired(ctx, r.clock.Now().Add(-r.retention))
	if err != nil {
		return err
	}
	orphaned, err := r.store.PurgeOrphaned(ctx, core.UndefinedAdType)
	if err != nil {
		return err
	}
	r.log.Info("purged ad events", log.Int("expired", int(expired)), log.Int("orphaned", int(orphaned)))
	return nil
}
