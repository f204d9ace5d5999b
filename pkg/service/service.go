// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package service wires the ads components into one running instance.
// Every collaborator is built here and passed down explicitly.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/luxfi/ads/pkg/adevent"
	"github.com/luxfi/ads/pkg/catalog"
	"github.com/luxfi/ads/pkg/clock"
	"github.com/luxfi/ads/pkg/config"
	"github.com/luxfi/ads/pkg/confirmation"
	"github.com/luxfi/ads/pkg/core"
	"github.com/luxfi/ads/pkg/database"
	"github.com/luxfi/ads/pkg/eligible"
	"github.com/luxfi/ads/pkg/issuers"
	"github.com/luxfi/ads/pkg/log"
	"github.com/luxfi/ads/pkg/metric"
	"github.com/luxfi/ads/pkg/prediction"
	"github.com/luxfi/ads/pkg/prefs"
	"github.com/luxfi/ads/pkg/redemption"
	"github.com/luxfi/ads/pkg/resource"
	"github.com/luxfi/ads/pkg/serving"
	"github.com/luxfi/ads/pkg/tokens"
	"github.com/luxfi/ads/pkg/transport"
	"github.com/luxfi/ads/pkg/usermodel"
	"github.com/luxfi/ads/pkg/wallet"
)

var (
	ErrUnknownPlacement = errors.New("unknown notification ad placement")
	ErrNotStarted       = errors.New("service not started")
)

// Deps are the collaborators supplied by the embedder. Nil fields get
// defaults built from the config.
type Deps struct {
	DB        *database.DB
	Prefs     *prefs.Prefs
	Sender    transport.Sender
	Presenter serving.Presenter
	Platform  serving.Platform
	Clock     clock.Clock
	Metrics   *metric.Metrics
	Log       log.Logger
}

// Service is one ads instance.
type Service struct {
	cfg     config.Config
	db      *database.DB
	prefs   *prefs.Prefs
	ownsDB  bool
	clock   clock.Clock
	metrics *metric.Metrics
	log     log.Logger

	Wallet             *wallet.Manager
	UserModel          *usermodel.Builder
	Bandit             *prediction.EpsilonGreedyBandit
	AntiTargetingData  *resource.Manager[resource.AntiTargetingInfo]
	SubdivisionData    *resource.Manager[resource.SubdivisionInfo]
	Recorder           *adevent.Recorder
	Catalog            *catalog.Fetcher
	Issuers            *issuers.Fetcher
	ConfirmationTokens *tokens.ConfirmationTokens
	PaymentTokens      *tokens.PaymentTokens
	Refiller           *tokens.Refiller
	Queue              *confirmation.Queue
	PaymentRedemption  *redemption.PaymentTokens
	Scheduler          *serving.Scheduler

	mu      sync.Mutex
	ctx     context.Context
	started bool
	shown   map[string]core.NotificationAdInfo
}

// New builds the service. It opens the database and prefs from cfg unless
// deps carries them; those it opens are closed by Shutdown.
func New(cfg config.Config, deps Deps) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Log == nil {
		deps.Log = log.NoLog
	}
	if deps.Metrics == nil {
		m, err := metric.NewMetrics()
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
		deps.Metrics = m
	}
	if deps.Sender == nil {
		deps.Sender = transport.NewHTTPSender(transport.DefaultTimeout, "", deps.Log)
	}
	if deps.Platform == nil {
		deps.Platform = StaticPlatform{Supported: true, Regular: true}
	}
	if deps.Presenter == nil {
		deps.Presenter = logPresenter{log: deps.Log}
	}

	s := &Service{
		cfg:     cfg,
		clock:   deps.Clock,
		metrics: deps.Metrics,
		log:     deps.Log,
		ctx:     context.Background(),
		shown:   make(map[string]core.NotificationAdInfo),
	}

	if err := s.openStores(deps); err != nil {
		return nil, err
	}
	if err := s.build(deps); err != nil {
		s.closeStores()
		return nil, err
	}
	return s, nil
}

func (s *Service) openStores(deps Deps) error {
	s.db, s.prefs = deps.DB, deps.Prefs
	if s.db != nil && s.prefs != nil {
		return nil
	}

	s.ownsDB = true
	if err := os.MkdirAll(s.cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if s.db == nil {
		db, err := database.Open(s.cfg.DatabasePath(), s.log)
		if err != nil {
			return err
		}
		s.db = db
	}
	if s.prefs == nil {
		p, err := prefs.New(prefs.BadgerBackend, s.cfg.PrefsPath())
		if err != nil {
			_ = s.db.Close()
			return err
		}
		s.prefs = p
	}
	return nil
}

func (s *Service) closeStores() {
	if !s.ownsDB {
		return
	}
	if err := s.prefs.Close(); err != nil {
		s.log.Warn("failed to close prefs", log.Error(err))
	}
	if err := s.db.Close(); err != nil {
		s.log.Warn("failed to close database", log.Error(err))
	}
}

func (s *Service) build(deps Deps) error {
	cfg, c, m, logger := s.cfg, s.clock, s.metrics, s.log

	s.Wallet = wallet.NewManager(logger)
	s.Bandit = prediction.NewEpsilonGreedyBandit(s.prefs, cfg.Prediction.BanditEpsilon, nil)
	s.UserModel = usermodel.NewBuilder(c, s.Bandit, logger)

	s.AntiTargetingData = resource.NewManager("anti_targeting", resource.ParseAntiTargeting, logger)
	if cfg.Resources.AntiTargetingPath != "" {
		if err := s.AntiTargetingData.LoadFile(cfg.Resources.AntiTargetingPath); err != nil {
			logger.Warn("anti targeting resource not loaded", log.Error(err))
		}
	}
	s.SubdivisionData = resource.NewManager("subdivision", resource.ParseSubdivision, logger)
	if cfg.Resources.SubdivisionPath != "" {
		if err := s.SubdivisionData.LoadFile(cfg.Resources.SubdivisionPath); err != nil {
			logger.Warn("subdivision resource not loaded", log.Error(err))
		}
	}

	s.Recorder = adevent.NewRecorder(s.db, c, m, logger)
	if cfg.AdEvents.Retention > 0 {
		s.Recorder.SetRetention(cfg.AdEvents.Retention)
	}

	s.Catalog = catalog.NewFetcher(cfg.ServerURL, deps.Sender, s.db, s.prefs, cfg.Catalog.Ping, c, logger)
	s.Issuers = issuers.NewFetcher(cfg.ServerURL, deps.Sender, s.prefs, cfg.Issuers.Ping, c, logger)

	var err error
	s.ConfirmationTokens, err = tokens.NewPool[tokens.ConfirmationTokenInfo](s.prefs, prefs.ConfirmationTokens)
	if err != nil {
		return fmt.Errorf("load confirmation tokens: %w", err)
	}
	s.PaymentTokens, err = tokens.NewPool[tokens.PaymentTokenInfo](s.prefs, prefs.PaymentTokens)
	if err != nil {
		return fmt.Errorf("load payment tokens: %w", err)
	}

	s.Refiller = tokens.NewRefiller(
		tokens.RefillConfig{
			MinimumCount: cfg.Tokens.MinimumCount,
			MaximumCount: cfg.Tokens.MaximumCount,
			RetryDelay:   cfg.Tokens.RetryDelay,
		},
		cfg.ServerURL, deps.Sender, s.Wallet, s.prefs, s.ConfirmationTokens, c, m, logger,
	)
	if cfg.Redemption.MaxBackoffDelay > 0 {
		s.Refiller.SetMaxBackoffDelay(cfg.Redemption.MaxBackoffDelay)
	}

	redeemer := redemption.NewConfirmationRedeemer(cfg.ServerURL, deps.Sender, s.Wallet, s.prefs, s.Issuers, s.PaymentTokens, logger)
	s.Queue = confirmation.NewQueue(s.db, redeemer, cfg.Redemption.ConfirmationRetryDelay, cfg.Redemption.MaxBackoffDelay, c, m, logger)
	s.PaymentRedemption = redemption.NewPaymentTokens(
		cfg.ServerURL, deps.Sender, s.Wallet, s.PaymentTokens, s.prefs,
		cfg.Redemption.PaymentTokenInterval, c, m, logger,
	)
	if cfg.Redemption.MaxBackoffDelay > 0 {
		s.PaymentRedemption.SetMaxBackoffDelay(cfg.Redemption.MaxBackoffDelay)
	}

	opts := []eligible.Option{eligible.WithMetrics(m)}
	if cfg.Prediction.EmbeddingThreshold > 0 {
		opts = append(opts, eligible.WithEmbeddingPredictor(prediction.EmbeddingPredictor{Threshold: cfg.Prediction.EmbeddingThreshold}))
	}
	selector := eligible.NewSelector(
		core.NotificationAd,
		eligible.FromDatabase[core.CreativeNotificationAdInfo](s.db, core.NotificationAd),
		s.db,
		s,
		prediction.ModelPredictor{Weights: weights(cfg.Prediction)},
		cfg.Platform,
		c,
		logger,
		opts...,
	)
	permission := serving.NewPermissionRules(
		s.db,
		serving.ReadinessFunc(s.Catalog.Exists),
		serving.ReadinessFunc(s.issuersExist),
		serving.AdsPerHourFrom(s.prefs, cfg.Serving.AdsPerHour),
		cfg.Serving.AdsPerDay,
		c,
	)
	s.Scheduler = serving.NewScheduler(cfg.Serving, serving.Deps{
		Prefs:      s.prefs,
		Permission: permission,
		Selector:   selector,
		UserModel:  s.UserModel,
		Recorder:   s.Recorder,
		Presenter:  deps.Presenter,
		Platform:   deps.Platform,
		Clock:      c,
		Metrics:    m,
		Log:        logger,
	})

	s.observe()
	return nil
}

func (s *Service) observe() {
	s.prefs.AddObserver(s.Scheduler.OnPrefChanged)

	s.Scheduler.AddObserver(serving.Observer{
		OnDidServeAd: func(ad core.NotificationAdInfo) {
			s.mu.Lock()
			s.shown[ad.PlacementID] = ad
			s.mu.Unlock()
		},
	})

	s.Recorder.AddObserver(func(ev core.AdEventInfo) {
		reward, ok := prediction.RewardForEvent(ev.ConfirmationType)
		if !ok {
			return
		}
		if err := s.Bandit.Reward(ev.Segment, reward); err != nil {
			s.log.Warn("failed to reward segment", log.String("segment", ev.Segment), log.Error(err))
		}
	})

	s.Catalog.AddObserver(catalog.Observer{
		OnDidUpdateCatalog: func(info catalog.CatalogInfo) {
			segments := make([]string, 0, len(info.Creatives))
			for _, creative := range info.Creatives {
				segments = append(segments, creative.Creative().Segment)
			}
			if err := s.Bandit.Initialize(segments); err != nil {
				s.log.Warn("failed to initialize bandit arms", log.Error(err))
			}
		},
	})

	s.Issuers.AddObserver(issuers.Observer{
		OnDidFetchIssuers: func(issuers.IssuersInfo) {
			s.maybeRefill()
		},
	})

	s.Wallet.AddObserver(func(connected bool) {
		if !connected {
			s.Refiller.Stop()
			s.PaymentRedemption.Stop()
			return
		}
		if s.isStarted() {
			s.maybeRefill()
			s.PaymentRedemption.MaybeRedeemAfterDelay(s.currentContext())
		}
	})
}

// Start begins fetching issuers and the catalog, connects the configured
// wallet, resumes queued confirmations and starts serving.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.started = true
	s.mu.Unlock()

	if err := s.Recorder.Purge(ctx); err != nil {
		s.log.Warn("failed to purge ad events", log.Error(err))
	}

	// Issuers first so the wallet connection can refill right away.
	s.Issuers.Start(ctx)
	if s.cfg.Wallet.PaymentID != "" {
		if err := s.Wallet.Connect(s.cfg.Wallet.PaymentID, s.cfg.Wallet.RecoverySeed); err != nil {
			return fmt.Errorf("connect wallet: %w", err)
		}
	}
	s.Catalog.Start(ctx)
	s.Queue.Start(ctx)
	s.Scheduler.StartServingAdsAtRegularIntervals(ctx)

	s.log.Info("ads service started",
		log.String("server_url", s.cfg.ServerURL),
		log.Bool("wallet_connected", s.Wallet.IsConnected()),
	)
	return nil
}

// Shutdown stops every timer and closes the stores the service opened.
func (s *Service) Shutdown() {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	s.Scheduler.StopServingAdsAtRegularIntervals()
	s.Catalog.Stop()
	s.Issuers.Stop()
	s.Queue.Stop()
	s.Refiller.Stop()
	s.PaymentRedemption.Stop()
	s.closeStores()
	s.log.Info("ads service stopped")
}

// TriggerNotificationAdEvent records an interaction with a shown
// notification ad. Views, clicks and dismissals are confirmed; rewarded
// when a wallet is connected.
func (s *Service) TriggerNotificationAdEvent(ctx context.Context, placementID string, confirmationType core.ConfirmationType) error {
	if !s.isStarted() {
		return ErrNotStarted
	}
	s.mu.Lock()
	ad, ok := s.shown[placementID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlacement, placementID)
	}

	if _, err := s.Recorder.Record(ctx, ad.AdInfo, confirmationType); err != nil {
		return err
	}

	switch confirmationType {
	case core.ClickedConfirmation, core.DismissedConfirmation:
		s.mu.Lock()
		delete(s.shown, placementID)
		s.mu.Unlock()
	}

	switch confirmationType {
	case core.ViewedConfirmation, core.ClickedConfirmation, core.DismissedConfirmation:
		return s.confirm(ctx, ad.AdInfo, confirmationType)
	default:
		return nil
	}
}

func (s *Service) confirm(ctx context.Context, ad core.AdInfo, confirmationType core.ConfirmationType) error {
	rewarded := s.Wallet.IsConnected()
	c, err := confirmation.Build(ad, confirmationType, s.cfg.Platform, rewarded, s.ConfirmationTokens, s.clock.Now())
	if errors.Is(err, confirmation.ErrNoConfirmationTokens) {
		s.log.Warn("no confirmation tokens, sending unrewarded confirmation",
			log.String("confirmation_type", string(confirmationType)),
		)
		c, err = confirmation.Build(ad, confirmationType, s.cfg.Platform, false, nil, s.clock.Now())
	}
	if err != nil {
		return fmt.Errorf("build confirmation: %w", err)
	}
	if err := s.Queue.Add(ctx, c); err != nil {
		return err
	}
	if rewarded {
		s.maybeRefill()
	}
	return nil
}

// MaybeServeAd serves a notification ad now, outside the regular interval.
func (s *Service) MaybeServeAd(ctx context.Context) (core.NotificationAdInfo, error) {
	return s.Scheduler.MaybeServeAd(ctx)
}

// SetAdsPerHour stores the user's notification ad frequency.
func (s *Service) SetAdsPerHour(n int) error {
	if n < 0 || n > config.MaximumAdsPerHour {
		return fmt.Errorf("%w: %d", config.ErrInvalidAdsPerHour, n)
	}
	return s.prefs.SetInt(prefs.AdsPerHour, n)
}

// AntiTargeting implements eligible.Resources.
func (s *Service) AntiTargeting() resource.AntiTargetingInfo {
	info, _ := s.AntiTargetingData.Get()
	return info
}

// SubdivisionCode implements eligible.Resources. The loaded geo resource
// wins over the configured code.
func (s *Service) SubdivisionCode() string {
	if info, ok := s.SubdivisionData.Get(); ok {
		return info.Code()
	}
	return s.cfg.Resources.SubdivisionCode
}

func (s *Service) maybeRefill() {
	if !s.Wallet.IsConnected() {
		return
	}
	if _, err := s.Refiller.MaybeRefill(s.currentContext()); err != nil && !errors.Is(err, tokens.ErrRefillInProgress) {
		s.log.Debug("confirmation token refill did not complete", log.Error(err))
	}
}

func (s *Service) issuersExist() bool {
	info, err := issuers.Load(s.prefs)
	return err == nil && info.IsValid()
}

func (s *Service) isStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Service) currentContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func weights(p config.PredictionConfig) prediction.Weights {
	return prediction.Weights{
		ChildIntentSegment:          p.ChildIntentSegment,
		ParentIntentSegment:         p.ParentIntentSegment,
		ChildLatentInterestSegment:  p.ChildLatentInterestSegment,
		ParentLatentInterestSegment: p.ParentLatentInterestSegment,
		ChildInterestSegment:        p.ChildInterestSegment,
		ParentInterestSegment:       p.ParentInterestSegment,
		LastSeenAd:                  p.LastSeenAd,
		LastSeenAdvertiser:          p.LastSeenAdvertiser,
		Priority:                    p.Priority,
	}
}

var _ eligible.Resources = (*Service)(nil)
