// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package serving

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/ads/pkg/clock"
	"github.com/luxfi/ads/pkg/config"
	"github.com/luxfi/ads/pkg/core"
	"github.com/luxfi/ads/pkg/eligible"
	"github.com/luxfi/ads/pkg/log"
	"github.com/luxfi/ads/pkg/metric"
	"github.com/luxfi/ads/pkg/prefs"
	"github.com/luxfi/ads/pkg/timer"
)

// State is the scheduler state.
type State int

const (
	Idle State = iota
	Scheduled
	Serving
	Served
	FailedToServe
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case Serving:
		return "serving"
	case Served:
		return "served"
	case FailedToServe:
		return "failed_to_serve"
	default:
		return "unknown"
	}
}

var (
	ErrNotSupported    = errors.New("ads are not supported")
	ErrNotPermitted    = errors.New("not permitted to serve an ad")
	ErrNoEligibleAds   = errors.New("no eligible ads")
	ErrAlreadyServing  = errors.New("already serving an ad")
	ErrInvalidCreative = errors.New("invalid creative ad")
)

// Prefs is the preference subset the scheduler uses.
type Prefs interface {
	GetTime(key string) (time.Time, error)
	SetTime(key string, t time.Time) error
	GetInt(key string, fallback int) (int, error)
}

// Selector returns eligible notification ads, best first.
type Selector interface {
	Get(ctx context.Context, req eligible.Request) ([]core.CreativeNotificationAdInfo, error)
}

// UserModel provides the targeting inputs of a request.
type UserModel interface {
	Build() core.UserModelInfo
	BrowsingHistory() []string
}

// Recorder appends ad events.
type Recorder interface {
	Record(ctx context.Context, ad core.AdInfo, confirmationType core.ConfirmationType) (core.AdEventInfo, error)
}

// Presenter shows a notification ad. It must not block.
type Presenter interface {
	Show(ad core.NotificationAdInfo)
}

// Platform gates serving; both checks run on every attempt.
type Platform interface {
	IsSupported() bool
	ShouldServeAdsAtRegularIntervals() bool
}

// Observer receives serving outcomes. Nil fields are skipped.
type Observer struct {
	OnOpportunityAroseToServeAd func(segments []string)
	OnDidServeAd                func(ad core.NotificationAdInfo)
	OnFailedToServeAd           func(err error)
}

// Scheduler serves notification ads at regular intervals and on demand.
type Scheduler struct {
	cfg        config.ServingConfig
	prefs      Prefs
	permission *PermissionRules
	selector   Selector
	userModel  UserModel
	recorder   Recorder
	presenter  Presenter
	platform   Platform
	clock      clock.Clock
	timer      *timer.Timer
	metrics    *metric.Metrics
	log        log.Logger

	mu        sync.Mutex
	ctx       context.Context
	state     State
	running   bool
	observers []Observer
}

// Deps are the collaborators of a Scheduler.
type Deps struct {
	Prefs      Prefs
	Permission *PermissionRules
	Selector   Selector
	UserModel  UserModel
	Recorder   Recorder
	Presenter  Presenter
	Platform   Platform
	Clock      clock.Clock
	Metrics    *metric.Metrics
	Log        log.Logger
}

func NewScheduler(cfg config.ServingConfig, deps Deps) *Scheduler {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Metrics == nil {
		deps.Metrics = metric.NoOp()
	}
	if deps.Log == nil {
		deps.Log = log.NoLog
	}
	return &Scheduler{
		cfg:        cfg,
		prefs:      deps.Prefs,
		permission: deps.Permission,
		selector:   deps.Selector,
		userModel:  deps.UserModel,
		recorder:   deps.Recorder,
		presenter:  deps.Presenter,
		platform:   deps.Platform,
		clock:      deps.Clock,
		timer:      timer.New(deps.Clock),
		metrics:    deps.Metrics,
		log:        deps.Log.With(log.String("component", "serving")),
		ctx:        context.Background(),
	}
}

func (s *Scheduler) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StartServingAdsAtRegularIntervals schedules the next ad. ctx bounds the
// work of fired attempts.
func (s *Scheduler) StartServingAdsAtRegularIntervals(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.running = true
	s.mu.Unlock()

	s.log.Info("start serving ads at regular intervals")
	s.scheduleAfter(s.CalculateDelayBeforeServingAnAd())
}

// StopServingAdsAtRegularIntervals cancels the pending attempt. An attempt
// already in flight completes but does not reschedule.
func (s *Scheduler) StopServingAdsAtRegularIntervals() {
	s.mu.Lock()
	s.running = false
	if s.state == Scheduled {
		s.state = Idle
	}
	s.mu.Unlock()

	if s.timer.Stop() {
		s.log.Info("stopped serving ads at regular intervals")
	}
}

// IsServingAdsAtRegularIntervals reports whether attempts are scheduled.
func (s *Scheduler) IsServingAdsAtRegularIntervals() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// OnPrefChanged reschedules when the ads per hour setting changes. The
// persisted serve time is kept.
func (s *Scheduler) OnPrefChanged(key string) {
	if key != prefs.AdsPerHour || !s.IsServingAdsAtRegularIntervals() {
		return
	}
	s.log.Debug("ads per hour changed")
	s.scheduleAfter(s.CalculateDelayBeforeServingAnAd())
}

// CalculateDelayBeforeServingAnAd returns the first ad delay before any ad
// was served, the minimum delay when the serve time has passed and the time
// left otherwise.
func (s *Scheduler) CalculateDelayBeforeServingAnAd() time.Duration {
	serveAt, err := s.prefs.GetTime(prefs.ServeAdAt)
	if err != nil {
		s.log.Warn("failed to read serve time", log.Error(err))
		return s.cfg.FirstAdDelay
	}
	if serveAt.IsZero() {
		return s.cfg.FirstAdDelay
	}

	now := s.clock.Now()
	if !now.Before(serveAt) {
		return s.cfg.MinimumDelay
	}
	delay := serveAt.Sub(now)
	if delay < s.cfg.MinimumDelay {
		return s.cfg.MinimumDelay
	}
	return delay
}

func (s *Scheduler) scheduleAfter(delay time.Duration) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.state = Scheduled
	s.mu.Unlock()

	serveAt := s.timer.Start(delay, s.onTimerFired)
	s.log.Info("scheduled to serve an ad", log.Time("serve_at", serveAt), log.Duration("delay", delay))
}

func (s *Scheduler) onTimerFired() {
	s.mu.Lock()
	ctx := s.ctx
	running := s.running
	s.mu.Unlock()
	if !running {
		return
	}

	if !s.platform.ShouldServeAdsAtRegularIntervals() {
		s.log.Info("not serving ads at regular intervals on this platform")
		s.mu.Lock()
		s.running = false
		s.state = Idle
		s.mu.Unlock()
		return
	}

	if _, err := s.MaybeServeAd(ctx); err != nil {
		s.scheduleAfter(s.cfg.RetryDelay)
		return
	}
	s.scheduleAfter(s.CalculateDelayBeforeServingAnAd())
}

// MaybeServeAd runs one serving attempt.
func (s *Scheduler) MaybeServeAd(ctx context.Context) (core.NotificationAdInfo, error) {
	s.mu.Lock()
	if s.state == Serving {
		s.mu.Unlock()
		return core.NotificationAdInfo{}, ErrAlreadyServing
	}
	s.state = Serving
	s.mu.Unlock()

	ad, err := s.serve(ctx)
	if err != nil {
		s.failed(err)
		return core.NotificationAdInfo{}, err
	}
	s.served(ad)
	return ad, nil
}

func (s *Scheduler) serve(ctx context.Context) (core.NotificationAdInfo, error) {
	if !s.platform.IsSupported() {
		return core.NotificationAdInfo{}, ErrNotSupported
	}

	ok, reason, err := s.permission.HasPermission(ctx)
	if err != nil {
		return core.NotificationAdInfo{}, err
	}
	if !ok {
		return core.NotificationAdInfo{}, fmt.Errorf("%w: %s", ErrNotPermitted, reason)
	}

	model := s.userModel.Build()
	segments := model.TargetingSegments()
	for _, o := range s.snapshotObservers() {
		if o.OnOpportunityAroseToServeAd != nil {
			o.OnOpportunityAroseToServeAd(segments)
		}
	}

	ads, err := s.selector.Get(ctx, eligible.Request{
		UserModel:       model,
		BrowsingHistory: s.userModel.BrowsingHistory(),
	})
	if err != nil {
		return core.NotificationAdInfo{}, err
	}
	if len(ads) == 0 {
		return core.NotificationAdInfo{}, ErrNoEligibleAds
	}

	ad := core.BuildNotificationAd(ads[0])
	if !ad.IsValid() {
		return core.NotificationAdInfo{}, ErrInvalidCreative
	}

	s.presenter.Show(ad)
	if _, err := s.recorder.Record(ctx, ad.AdInfo, core.ServedConfirmation); err != nil {
		return core.NotificationAdInfo{}, fmt.Errorf("record served event: %w", err)
	}

	adsPerHour, err := s.prefs.GetInt(prefs.AdsPerHour, s.cfg.AdsPerHour)
	if err != nil {
		s.log.Warn("failed to read ads per hour", log.Error(err))
	}
	serveAt := s.clock.Now().Add(MinimumWaitTime(adsPerHour))
	if err := s.prefs.SetTime(prefs.ServeAdAt, serveAt); err != nil {
		s.log.Warn("failed to persist serve time", log.Error(err))
	}
	return ad, nil
}

func (s *Scheduler) served(ad core.NotificationAdInfo) {
	s.mu.Lock()
	s.state = Served
	s.mu.Unlock()

	s.metrics.AdsServed.WithLabelValues(string(core.NotificationAd)).Inc()
	s.log.Info("served notification ad",
		log.String("placement_id", ad.PlacementID),
		log.String("creative_instance_id", ad.CreativeInstanceID),
		log.String("segment", ad.Segment),
	)
	for _, o := range s.snapshotObservers() {
		if o.OnDidServeAd != nil {
			o.OnDidServeAd(ad)
		}
	}

	s.settle()
}

func (s *Scheduler) failed(err error) {
	s.mu.Lock()
	s.state = FailedToServe
	s.mu.Unlock()

	s.metrics.AdsFailedToServe.WithLabelValues(string(core.NotificationAd)).Inc()
	s.log.Info("failed to serve notification ad", log.Error(err))
	for _, o := range s.snapshotObservers() {
		if o.OnFailedToServeAd != nil {
			o.OnFailedToServeAd(err)
		}
	}

	s.settle()
}

// settle leaves Scheduled when an interval attempt is still pending, so an
// on demand attempt does not hide the regular schedule.
func (s *Scheduler) settle() {
	state := Idle
	if s.timer.IsRunning() {
		state = Scheduled
	}
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Scheduler) snapshotObservers() []Observer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Observer(nil), s.observers...)
}
