// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"
)

// Preference keys.
const (
	ServeAdAt               = "serve_ad_at"
	AdsPerHour              = "ads_per_hour"
	NextTokenRedemptionAt   = "next_token_redemption_at"
	Issuers                 = "issuers"
	EpsilonGreedyBanditArms = "epsilon_greedy_bandit_arms"
	ConfirmationTokens      = "confirmation_tokens"
	PaymentTokens           = "unblinded_payment_tokens"
	CatalogID               = "catalog_id"
	CatalogVersion          = "catalog_version"
	CatalogPing             = "catalog_ping"
	CatalogLastUpdated      = "catalog_last_updated"
	SubdivisionCode         = "subdivision_code"
)

// Backends accepted by New.
const (
	MemoryBackend = "memory"
	BadgerBackend = "badger"
)

var ErrUnknownBackend = errors.New("unknown prefs backend")

// Observer is notified after a key changes.
type Observer func(key string)

// Prefs is a typed preference store on top of a luxfi key value database.
type Prefs struct {
	db database.Database

	mu        sync.RWMutex
	observers []Observer
}

// New opens a store on the named backend.
func New(backend, path string) (*Prefs, error) {
	var (
		db  database.Database
		err error
	)
	switch backend {
	case MemoryBackend:
		db = memdb.New()
	case BadgerBackend, "":
		db, err = badgerdb.New(path, nil, "", nil)
		if err != nil {
			return nil, fmt.Errorf("open prefs at %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
	return &Prefs{db: db}, nil
}

// NewMemory returns an in memory store.
func NewMemory() *Prefs {
	return &Prefs{db: memdb.New()}
}

// AddObserver registers o for change notifications.
func (p *Prefs) AddObserver(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, o)
}

func (p *Prefs) notify(key string) {
	p.mu.RLock()
	observers := append([]Observer(nil), p.observers...)
	p.mu.RUnlock()

	for _, o := range observers {
		o(key)
	}
}

// Has reports whether key is set.
func (p *Prefs) Has(key string) (bool, error) {
	return p.db.Has([]byte(key))
}

// GetBytes returns the raw value, or ok == false if key is not set.
func (p *Prefs) GetBytes(key string) ([]byte, bool, error) {
	value, err := p.db.Get([]byte(key))
	if errors.Is(err, database.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// SetBytes stores value under key.
func (p *Prefs) SetBytes(key string, value []byte) error {
	if err := p.db.Put([]byte(key), value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	p.notify(key)
	return nil
}

// GetString returns the value, or "" if key is not set.
func (p *Prefs) GetString(key string) (string, error) {
	value, _, err := p.GetBytes(key)
	return string(value), err
}

func (p *Prefs) SetString(key, value string) error {
	return p.SetBytes(key, []byte(value))
}

// GetInt returns the value, or fallback if key is not set.
func (p *Prefs) GetInt(key string, fallback int) (int, error) {
	value, ok, err := p.GetBytes(key)
	if err != nil || !ok {
		return fallback, err
	}
	n, err := strconv.Atoi(string(value))
	if err != nil {
		return fallback, fmt.Errorf("decode %s: %w", key, err)
	}
	return n, nil
}

func (p *Prefs) SetInt(key string, value int) error {
	return p.SetBytes(key, []byte(strconv.Itoa(value)))
}

// GetTime returns the stored time, or the zero time if key is not set.
func (p *Prefs) GetTime(key string) (time.Time, error) {
	value, ok, err := p.GetBytes(key)
	if err != nil || !ok {
		return time.Time{}, err
	}
	micros, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return time.UnixMicro(micros).UTC(), nil
}

// SetTime stores t with microsecond precision.
func (p *Prefs) SetTime(key string, t time.Time) error {
	return p.SetBytes(key, []byte(strconv.FormatInt(t.UnixMicro(), 10)))
}

// GetJSON decodes the value into v and reports whether key was set.
func (p *Prefs) GetJSON(key string, v any) (bool, error) {
	value, ok, err := p.GetBytes(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(value, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (p *Prefs) SetJSON(key string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return p.SetBytes(key, value)
}

// Clear removes key.
func (p *Prefs) Clear(key string) error {
	if err := p.db.Delete([]byte(key)); err != nil {
		return fmt.Errorf("clear %s: %w", key, err)
	}
	p.notify(key)
	return nil
}

// ClearPrefix atomically removes every key starting with prefix and returns
// how many were removed. An empty prefix clears the store.
func (p *Prefs) ClearPrefix(prefix string) (int, error) {
	it := p.db.NewIteratorWithPrefix([]byte(prefix))
	defer it.Release()

	batch := p.db.NewBatch()
	var keys []string
	for it.Next() {
		key := append([]byte(nil), it.Key()...)
		if err := batch.Delete(key); err != nil {
			return 0, err
		}
		keys = append(keys, string(key))
	}
	if err := it.Error(); err != nil {
		return 0, fmt.Errorf("iterate %q: %w", prefix, err)
	}
	if err := batch.Write(); err != nil {
		return 0, fmt.Errorf("clear %q: %w", prefix, err)
	}
	for _, key := range keys {
		p.notify(key)
	}
	return len(keys), nil
}

// Close closes the underlying database.
func (p *Prefs) Close() error {
	return p.db.Close()
}
