// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package issuers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/luxfi/ads/pkg/clock"
	"github.com/luxfi/ads/pkg/log"
	"github.com/luxfi/ads/pkg/prefs"
	"github.com/luxfi/ads/pkg/timer"
	"github.com/luxfi/ads/pkg/transport"
)

// RetryDelay is the initial backoff after a failed fetch.
const RetryDelay = time.Minute

// Store persists issuers.
type Store interface {
	GetBytes(key string) ([]byte, bool, error)
	SetBytes(key string, value []byte) error
}

// Load returns the persisted issuers, or ErrNoIssuers.
func Load(store Store) (IssuersInfo, error) {
	raw, ok, err := store.GetBytes(prefs.Issuers)
	if err != nil {
		return IssuersInfo{}, err
	}
	if !ok {
		return IssuersInfo{}, ErrNoIssuers
	}
	return Parse(raw)
}

// Save persists issuers in the wire format.
func Save(store Store, info IssuersInfo) error {
	raw, err := info.MarshalWire()
	if err != nil {
		return err
	}
	return store.SetBytes(prefs.Issuers, raw)
}

// Observer is told about fetch outcomes. Nil fields are skipped.
type Observer struct {
	OnDidFetchIssuers      func(IssuersInfo)
	OnFailedToFetchIssuers func(error)
}

// Fetcher refreshes issuers on the ping the server returns, or the
// configured ping if it returns none, and backs off on failure.
type Fetcher struct {
	serverURL string
	sender    transport.Sender
	store     Store
	ping      time.Duration
	log       log.Logger

	timer   *timer.Timer
	backoff *timer.BackoffTimer

	mu        sync.Mutex
	ctx       context.Context
	observers []Observer
}

func NewFetcher(serverURL string, sender transport.Sender, store Store, ping time.Duration, c clock.Clock, logger log.Logger) *Fetcher {
	if logger == nil {
		logger = log.NoLog
	}
	return &Fetcher{
		serverURL: serverURL,
		sender:    sender,
		store:     store,
		ping:      ping,
		log:       logger.With(log.String("component", "issuers")),
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

// Start fetches now and keeps issuers fresh until Stop.
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

// Fetch requests, validates and persists the issuers once.
func (f *Fetcher) Fetch(ctx context.Context) (IssuersInfo, error) {
	resp, err := f.sender.Send(ctx, transport.Request{
		Method: http.MethodGet,
		URL:    f.serverURL + "/v3/issuers/",
	})
	if err != nil {
		return IssuersInfo{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return IssuersInfo{}, fmt.Errorf("fetch issuers: status %d", resp.StatusCode)
	}
	info, err := Parse(resp.Body)
	if err != nil {
		return IssuersInfo{}, err
	}
	if err := Save(f.store, info); err != nil {
		return IssuersInfo{}, fmt.Errorf("save issuers: %w", err)
	}
	return info, nil
}

func (f *Fetcher) fetchAndSchedule() {
	f.mu.Lock()
	ctx := f.ctx
	f.mu.Unlock()

	info, err := f.Fetch(ctx)
	if err != nil {
		f.log.Warn("failed to fetch issuers", log.Error(err))
		for _, o := range f.snapshotObservers() {
			if o.OnFailedToFetchIssuers != nil {
				o.OnFailedToFetchIssuers(err)
			}
		}
		retryAt := f.backoff.Start(RetryDelay, f.fetchAndSchedule)
		f.log.Info("retry fetching issuers", log.Time("retry_at", retryAt))
		return
	}

	f.backoff.Stop()
	f.log.Info("fetched issuers", log.Duration("ping", info.Ping))
	for _, o := range f.snapshotObservers() {
		if o.OnDidFetchIssuers != nil {
			o.OnDidFetchIssuers(info)
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
