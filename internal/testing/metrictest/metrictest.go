// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrictest reads collected values back out of a gatherer.
package metrictest

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// CounterValue returns the counter whose family name ends in name and whose
// labels include every labels pair (name, value, name, value ...). A series
// that was never touched reads as zero.
func CounterValue(t *testing.T, g prometheus.Gatherer, name string, labels ...string) float64 {
	t.Helper()
	require.Zero(t, len(labels)%2, "labels come in name value pairs")

	for _, m := range find(t, g, name) {
		if hasLabels(m, labels) {
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

// HistogramCount returns the number of observations of the histogram whose
// family name ends in name.
func HistogramCount(t *testing.T, g prometheus.Gatherer, name string) uint64 {
	t.Helper()

	var count uint64
	for _, m := range find(t, g, name) {
		count += m.GetHistogram().GetSampleCount()
	}
	return count
}

func find(t *testing.T, g prometheus.Gatherer, name string) []*dto.Metric {
	families, err := g.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if strings.HasSuffix(family.GetName(), name) {
			return family.GetMetric()
		}
	}
	return nil
}

func hasLabels(m *dto.Metric, labels []string) bool {
	for i := 0; i < len(labels); i += 2 {
		found := false
		for _, pair := range m.GetLabel() {
			if pair.GetName() == labels[i] && pair.GetValue() == labels[i+1] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
