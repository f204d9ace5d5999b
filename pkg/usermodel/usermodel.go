// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package usermodel collects browsing signals and builds the user model
// each serving attempt ranks against.
package usermodel

import (
	"slices"
	"sync"
	"time"

	"github.com/luxfi/ads/pkg/clock"
	"github.com/luxfi/ads/pkg/core"
	"github.com/luxfi/ads/pkg/log"
)

const (
	IntentWindow        = 7 * 24 * time.Hour
	MaxInterestSegments = 20
	MaxTextEmbeddings   = 10
	MaxHistorySites     = 500
)

// LatentInterestSource suggests latent interest segments, typically the
// epsilon greedy bandit.
type LatentInterestSource interface {
	Segments() ([]string, error)
}

type intentSignal struct {
	segment string
	at      time.Time
}

// Builder accumulates signals in memory. It is safe for concurrent use.
type Builder struct {
	clock  clock.Clock
	latent LatentInterestSource
	log    log.Logger

	mu         sync.Mutex
	intent     []intentSignal
	interest   []string
	embeddings []core.TextEmbeddingHTMLEventInfo
	history    []string
}

func NewBuilder(c clock.Clock, latent LatentInterestSource, logger log.Logger) *Builder {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = log.NoLog
	}
	return &Builder{clock: c, latent: latent, log: logger}
}

// RecordIntentSegments notes purchase intent shown now.
func (b *Builder) RecordIntentSegments(segments ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	for _, segment := range segments {
		b.intent = append(b.intent, intentSignal{segment: segment, at: now})
	}
}

// RecordInterestSegments notes the classified segments of a visited page;
// the most recent segments win.
func (b *Builder) RecordInterestSegments(segments ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, segment := range segments {
		b.interest = slices.DeleteFunc(b.interest, func(s string) bool { return s == segment })
		b.interest = append([]string{segment}, b.interest...)
	}
	if len(b.interest) > MaxInterestSegments {
		b.interest = b.interest[:MaxInterestSegments]
	}
}

// RecordTextEmbedding keeps the embedding of a visited page.
func (b *Builder) RecordTextEmbedding(ev core.TextEmbeddingHTMLEventInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = b.clock.Now()
	}
	b.embeddings = append(b.embeddings, ev)
	if len(b.embeddings) > MaxTextEmbeddings {
		b.embeddings = b.embeddings[len(b.embeddings)-MaxTextEmbeddings:]
	}
}

// RecordVisit adds a site to the browsing history used for anti-targeting.
func (b *Builder) RecordVisit(site string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if slices.Contains(b.history, site) {
		return
	}
	b.history = append(b.history, site)
	if len(b.history) > MaxHistorySites {
		b.history = b.history[len(b.history)-MaxHistorySites:]
	}
}

// BrowsingHistory returns the recorded sites, oldest first.
func (b *Builder) BrowsingHistory() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.history)
}

// Build returns the current user model.
func (b *Builder) Build() core.UserModelInfo {
	var latent []string
	if b.latent != nil {
		segments, err := b.latent.Segments()
		if err != nil {
			b.log.Warn("failed to get latent interest segments", log.Error(err))
		}
		latent = segments
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	since := b.clock.Now().Add(-IntentWindow)
	b.intent = slices.DeleteFunc(b.intent, func(s intentSignal) bool { return s.at.Before(since) })

	var intent []string
	for _, s := range b.intent {
		if !slices.Contains(intent, s.segment) {
			intent = append(intent, s.segment)
		}
	}

	return core.UserModelInfo{
		Intent:         core.IntentUserModelInfo{Segments: intent},
		LatentInterest: core.LatentInterestUserModelInfo{Segments: latent},
		Interest: core.InterestUserModelInfo{
			Segments:                slices.Clone(b.interest),
			TextEmbeddingHTMLEvents: slices.Clone(b.embeddings),
		},
	}
}
