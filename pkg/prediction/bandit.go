// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package prediction

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/luxfi/ads/pkg/core"
	"github.com/luxfi/ads/pkg/prefs"
)

// TopArmCount is the number of segments the bandit suggests.
const TopArmCount = 3

// ArmStore persists bandit arms. *prefs.Prefs satisfies it.
type ArmStore interface {
	GetJSON(key string, v any) (bool, error)
	SetJSON(key string, v any) error
}

// Rand is the randomness the bandit draws from.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// Arm is the running mean reward of one segment.
type Arm struct {
	Segment string  `json:"segment"`
	Value   float64 `json:"value"`
	Pulls   int     `json:"pulls"`
}

// EpsilonGreedyBandit learns which parent segments the user engages with.
type EpsilonGreedyBandit struct {
	store   ArmStore
	epsilon float64
	rand    Rand

	mu sync.Mutex
}

// NewEpsilonGreedyBandit returns a bandit exploring with probability
// epsilon. A nil rnd uses the global source.
func NewEpsilonGreedyBandit(store ArmStore, epsilon float64, rnd Rand) *EpsilonGreedyBandit {
	if rnd == nil {
		rnd = globalRand{}
	}
	return &EpsilonGreedyBandit{store: store, epsilon: epsilon, rand: rnd}
}

// Arms returns the persisted arms sorted by segment.
func (b *EpsilonGreedyBandit) Arms() ([]Arm, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	arms, err := b.load()
	if err != nil {
		return nil, err
	}
	return sortedArms(arms), nil
}

// Initialize adds an untried arm for every parent segment not yet known.
func (b *EpsilonGreedyBandit) Initialize(segments []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	arms, err := b.load()
	if err != nil {
		return err
	}
	for _, segment := range core.ParentSegments(segments) {
		if _, ok := arms[segment]; !ok {
			arms[segment] = Arm{Segment: segment}
		}
	}
	return b.save(arms)
}

// Reward folds reward into the running mean of segment's parent.
func (b *EpsilonGreedyBandit) Reward(segment string, reward float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	arms, err := b.load()
	if err != nil {
		return err
	}
	parent := core.ParentSegment(segment)
	arm := arms[parent]
	arm.Segment = parent
	arm.Pulls++
	arm.Value += (reward - arm.Value) / float64(arm.Pulls)
	arms[parent] = arm
	return b.save(arms)
}

// RewardForEvent maps an ad interaction to a bandit reward. ok is false for
// events that carry no signal.
func RewardForEvent(confirmationType core.ConfirmationType) (reward float64, ok bool) {
	switch confirmationType {
	case core.ClickedConfirmation:
		return 1, true
	case core.DismissedConfirmation:
		return 0, true
	default:
		return 0, false
	}
}

// Segments returns up to TopArmCount segments: random arms with
// probability epsilon, otherwise the highest valued ones.
func (b *EpsilonGreedyBandit) Segments() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	arms, err := b.load()
	if err != nil {
		return nil, err
	}
	sorted := sortedArms(arms)
	if len(sorted) == 0 {
		return nil, nil
	}

	if b.rand.Float64() < b.epsilon {
		for i := len(sorted) - 1; i > 0; i-- {
			j := b.rand.IntN(i + 1)
			sorted[i], sorted[j] = sorted[j], sorted[i]
		}
	} else {
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Value > sorted[j].Value
		})
	}

	n := min(TopArmCount, len(sorted))
	segments := make([]string, 0, n)
	for _, arm := range sorted[:n] {
		segments = append(segments, arm.Segment)
	}
	return segments, nil
}

func (b *EpsilonGreedyBandit) load() (map[string]Arm, error) {
	arms := map[string]Arm{}
	if _, err := b.store.GetJSON(prefs.EpsilonGreedyBanditArms, &arms); err != nil {
		return nil, fmt.Errorf("load bandit arms: %w", err)
	}
	return arms, nil
}

func (b *EpsilonGreedyBandit) save(arms map[string]Arm) error {
	if err := b.store.SetJSON(prefs.EpsilonGreedyBanditArms, arms); err != nil {
		return fmt.Errorf("save bandit arms: %w", err)
	}
	return nil
}

func sortedArms(arms map[string]Arm) []Arm {
	sorted := make([]Arm, 0, len(arms))
	for _, arm := range arms {
		sorted = append(sorted, arm)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Segment < sorted[j].Segment
	})
	return sorted
}
