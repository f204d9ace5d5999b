// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package prediction

import (
	"math"

	"github.com/luxfi/ads/pkg/core"
)

// UserEmbedding averages the page embeddings. Vectors whose dimension
// differs from the first non-empty one are skipped.
func UserEmbedding(events []core.TextEmbeddingHTMLEventInfo) ([]float64, bool) {
	var (
		sum   []float64
		count int
	)
	for _, ev := range events {
		if len(ev.Embedding) == 0 {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(ev.Embedding))
		}
		if len(ev.Embedding) != len(sum) {
			continue
		}
		for i, v := range ev.Embedding {
			sum[i] += v
		}
		count++
	}
	if count == 0 {
		return nil, false
	}
	for i := range sum {
		sum[i] /= float64(count)
	}
	return sum, true
}

// CosineSimilarity returns the cosine of the angle between a and b. It is
// undefined for empty, mismatched or zero vectors.
func CosineSimilarity(a, b []float64) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

// EmbeddingPredictor selects the creative closest to the user's recent
// pages, provided it reaches Threshold.
type EmbeddingPredictor struct {
	Threshold float64
}

// Predict returns the most similar creative at or above the threshold. The
// first of equally similar creatives wins. Creatives without a usable
// embedding are skipped.
func Predict[T core.Creative](p EmbeddingPredictor, ads []T, model core.UserModelInfo) (T, float64, bool) {
	var (
		best      T
		bestScore float64
		found     bool
	)
	user, ok := UserEmbedding(model.Interest.TextEmbeddingHTMLEvents)
	if !ok {
		return best, 0, false
	}

	for _, ad := range ads {
		similarity, ok := CosineSimilarity(user, ad.Creative().Embedding)
		if !ok || similarity < p.Threshold {
			continue
		}
		if !found || similarity > bestScore {
			best, bestScore, found = ad, similarity, true
		}
	}
	return best, bestScore, found
}
