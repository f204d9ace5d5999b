// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ads/internal/testing/metrictest"
)

func TestMetricsAreIndependent(t *testing.T) {
	require := require.New(t)

	m1, err := NewMetrics()
	require.NoError(err)
	m2, err := NewMetrics()
	require.NoError(err)

	m1.AdsServed.WithLabelValues("ad_notification").Inc()
	m1.AdsServed.WithLabelValues("ad_notification").Inc()
	m1.EligibleAds.Observe(3)

	require.Equal(2.0, metrictest.CounterValue(t, m1.GetGatherer(), "served_total", "ad_type", "ad_notification"))
	require.Equal(0.0, metrictest.CounterValue(t, m2.GetGatherer(), "served_total", "ad_type", "ad_notification"))
	require.Equal(uint64(1), metrictest.HistogramCount(t, m1.GetGatherer(), "eligible_ads"))
	require.Zero(metrictest.HistogramCount(t, m2.GetGatherer(), "eligible_ads"))
}
