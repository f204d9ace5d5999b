// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tokens keeps the confirmation and payment token pools and
// refills confirmation tokens from the server.
package tokens

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/luxfi/ads/pkg/core"
	"github.com/luxfi/ads/pkg/crypto/cbr"
)

// ConfirmationTokenInfo is an unspent confirmation token. Signature is the
// wallet signature of the unblinded token.
type ConfirmationTokenInfo struct {
	UnblindedToken cbr.UnblindedToken
	PublicKey      cbr.PublicKey
	Signature      string
}

type confirmationTokenJSON struct {
	UnblindedToken string `json:"unblinded_token"`
	PublicKey      string `json:"public_key"`
	Signature      string `json:"signature"`
}

func (c ConfirmationTokenInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(confirmationTokenJSON{
		UnblindedToken: c.UnblindedToken.EncodeBase64(),
		PublicKey:      c.PublicKey.EncodeBase64(),
		Signature:      c.Signature,
	})
}

func (c *ConfirmationTokenInfo) UnmarshalJSON(data []byte) error {
	var raw confirmationTokenJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	unblinded, err := cbr.UnblindedTokenFromBase64(raw.UnblindedToken)
	if err != nil {
		return fmt.Errorf("unblinded token: %w", err)
	}
	publicKey, err := cbr.PublicKeyFromBase64(raw.PublicKey)
	if err != nil {
		return fmt.Errorf("public key: %w", err)
	}
	*c = ConfirmationTokenInfo{UnblindedToken: unblinded, PublicKey: publicKey, Signature: raw.Signature}
	return nil
}

// PaymentTokenInfo is an unblinded payment token earned by a confirmation.
type PaymentTokenInfo struct {
	TransactionID    string
	UnblindedToken   cbr.UnblindedToken
	PublicKey        cbr.PublicKey
	ConfirmationType core.ConfirmationType
	AdType           core.AdType
}

type paymentTokenJSON struct {
	TransactionID    string `json:"transaction_id"`
	UnblindedToken   string `json:"unblinded_token"`
	PublicKey        string `json:"public_key"`
	ConfirmationType string `json:"confirmation_type"`
	AdType           string `json:"ad_type"`
}

func (p PaymentTokenInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(paymentTokenJSON{
		TransactionID:    p.TransactionID,
		UnblindedToken:   p.UnblindedToken.EncodeBase64(),
		PublicKey:        p.PublicKey.EncodeBase64(),
		ConfirmationType: string(p.ConfirmationType),
		AdType:           string(p.AdType),
	})
}

func (p *PaymentTokenInfo) UnmarshalJSON(data []byte) error {
	var raw paymentTokenJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	unblinded, err := cbr.UnblindedTokenFromBase64(raw.UnblindedToken)
	if err != nil {
		return fmt.Errorf("unblinded token: %w", err)
	}
	publicKey, err := cbr.PublicKeyFromBase64(raw.PublicKey)
	if err != nil {
		return fmt.Errorf("public key: %w", err)
	}
	*p = PaymentTokenInfo{
		TransactionID:    raw.TransactionID,
		UnblindedToken:   unblinded,
		PublicKey:        publicKey,
		ConfirmationType: core.ConfirmationType(raw.ConfirmationType),
		AdType:           core.AdType(raw.AdType),
	}
	return nil
}

// Store persists a pool as JSON.
type Store interface {
	GetJSON(key string, v any) (bool, error)
	SetJSON(key string, v any) error
}

// Pool is an ordered token list persisted under one key. Every mutation
// is written through before it returns.
type Pool[T any] struct {
	store Store
	key   string

	mu     sync.Mutex
	tokens []T
}

// NewPool loads the pool stored under key.
func NewPool[T any](store Store, key string) (*Pool[T], error) {
	p := &Pool[T]{store: store, key: key}
	if _, err := store.GetJSON(key, &p.tokens); err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return p, nil
}

func (p *Pool[T]) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tokens)
}

// All returns a copy of the pool.
func (p *Pool[T]) All() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.tokens)
}

func (p *Pool[T]) Add(tokens ...T) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saveLocked(append(slices.Clone(p.tokens), tokens...))
}

// Take removes and returns the oldest token.
func (p *Pool[T]) Take() (T, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var zero T
	if len(p.tokens) == 0 {
		return zero, false, nil
	}
	first := p.tokens[0]
	if err := p.saveLocked(slices.Clone(p.tokens[1:])); err != nil {
		return zero, false, err
	}
	return first, true, nil
}

// RemoveFunc drops every token del matches and returns how many it
// dropped.
func (p *Pool[T]) RemoveFunc(del func(T) bool) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := slices.DeleteFunc(slices.Clone(p.tokens), del)
	removed := len(p.tokens) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, p.saveLocked(kept)
}

func (p *Pool[T]) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saveLocked(nil)
}

func (p *Pool[T]) saveLocked(tokens []T) error {
	if tokens == nil {
		tokens = []T{}
	}
	if err := p.store.SetJSON(p.key, tokens); err != nil {
		return err
	}
	p.tokens = tokens
	return nil
}

// ConfirmationTokens is the pool confirmations spend from.
type ConfirmationTokens = Pool[ConfirmationTokenInfo]

// PaymentTokens is the pool of earned, unredeemed payment tokens.
type PaymentTokens = Pool[PaymentTokenInfo]
