// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package catalog

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/luxfi/ads/pkg/clock"
	"github.com/luxfi/ads/pkg/core"
	"github.com/luxfi/ads/pkg/log"
	"github.com/luxfi/ads/pkg/prefs"
	"github.com/luxfi/ads/pkg/timer"
	"github.com/luxfi/ads/pkg/transport"
)

// RetryDelay is the initial backoff after a failed fetch.
const RetryDelay = time.Minute

// Path is the catalog endpoint.
const Path = "/v9/catalog"

// Store receives the creatives of a new catalog.
type Store interface {
	ReplaceCreativeAds(ctx context.Context, ads []core.Creative) error
}

// Prefs records which catalog is stored.
type Prefs interface {
	GetString(key string) (string, error)
	SetString(key, value string) error
	SetInt(key string, value int) error
	SetTime(key string, t time.Time) error
}

// Observer is told about fetch outcomes. Nil fields are skipped.
type Observer struct {
	OnDidUpdateCatalog      func(CatalogInfo)
	OnFailedToUpdateCatalog func(error)
}

// Fetcher downloads the catalog and refetches it on its ping. A failed or
// malformed download leaves the stored catalog untouched.
type Fetcher struct {
	serverURL string
	sender    transport.Sender
	store     Store
	prefs     Prefs
	ping      time.Duration
	clock     clock.Clock
	log       log.Logger

	timer   *timer.Timer
	backoff *timer.BackoffTimer

	mu        sync.Mutex
	ctx       context.Context
	observers []Observer
}

func NewFetcher(serverURL string, sender transport.Sender, store Store, p Prefs, ping time.Duration, c clock.Clock, logger log.Logger) *Fetcher {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = log.NoLog
	}
	return &Fetcher{
		serverURL: serverURL,
		sender:    sender,
		store:     store,
		prefs:     p,
		ping:      ping,
		clock:     c,
		log:       logger.With(log.String("component", "catalog")),
		timer:     timer.New(c),
		backoff:   timer.NewBackoff(c),
		ctx:       context.Background(),
	}
}

func (f *Fetcher) AddObserver(o Observer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = append(f.observers, o)
}

// Exists reports whether a catalog has been stored.
func (f *Fetcher) Exists() bool {
	id, err := f.prefs.GetString(prefs.CatalogID)
	return err == nil && id != ""
}

// Start fetches now and keeps the catalog fresh until Stop.
func (f *Fetcher) Start(ctx context.Context) {
	f.mu.Lock()
	f.ctx = ctx
	f.mu.Unlock()
	f.fetchAndSchedule()
}

func (f *Fetcher) Stop() {
	f.timer.Stop()
	f.backoff.Stop()
}

// Fetch downloads and stores the catalog once. The creatives table is only
// rewritten when the catalog id changes.
func (f *Fetcher) Fetch(ctx context.Context) (CatalogInfo, error) {
	resp, err := f.sender.Send(ctx, transport.Request{Method: http.MethodGet, URL: f.serverURL + Path})
	if err != nil {
		return CatalogInfo{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return CatalogInfo{}, fmt.Errorf("fetch catalog: status %d", resp.StatusCode)
	}
	info, err := Parse(resp.Body)
	if err != nil {
		return CatalogInfo{}, err
	}

	current, err := f.prefs.GetString(prefs.CatalogID)
	if err != nil {
		return CatalogInfo{}, err
	}
	if current == info.ID {
		f.log.Debug("catalog is up to date", log.String("catalog_id", info.ID))
	} else {
		if err := f.store.ReplaceCreativeAds(ctx, info.Creatives); err != nil {
			return CatalogInfo{}, fmt.Errorf("save catalog: %w", err)
		}
		if err := f.prefs.SetString(prefs.CatalogID, info.ID); err != nil {
			return CatalogInfo{}, err
		}
		if err := f.prefs.SetInt(prefs.CatalogVersion, info.Version); err != nil {
			return CatalogInfo{}, err
		}
	}
	if err := f.prefs.SetInt(prefs.CatalogPing, int(info.Ping.Milliseconds())); err != nil {
		return CatalogInfo{}, err
	}
	if err := f.prefs.SetTime(prefs.CatalogLastUpdated, f.clock.Now()); err != nil {
		return CatalogInfo{}, err
	}
	return info, nil
}

func (f *Fetcher) fetchAndSchedule() {
	f.mu.Lock()
	ctx := f.ctx
	f.mu.Unlock()

	info, err := f.Fetch(ctx)
	if err != nil {
		f.log.Warn("failed to update catalog", log.Error(err))
		for _, o := range f.snapshotObservers() {
			if o.OnFailedToUpdateCatalog != nil {
				o.OnFailedToUpdateCatalog(err)
			}
		}
		retryAt := f.backoff.Start(RetryDelay, f.fetchAndSchedule)
		f.log.Info("retry fetching catalog", log.Time("retry_at", retryAt))
		return
	}

	f.backoff.Stop()
	f.log.Info("updated catalog",
		log.String("catalog_id", info.ID),
		log.Int("creatives", len(info.Creatives)),
	)
	for _, o := range f.snapshotObservers() {
		if o.OnDidUpdateCatalog != nil {
			o.OnDidUpdateCatalog(info)
		}
	}

	ping := info.Ping
	if ping <= 0 {
		ping = f.ping
	}
	f.timer.Start(ping, f.fetchAndSchedule)
}

func (f *Fetcher) snapshotObservers() []Observer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Observer(nil), f.observers...)
}
