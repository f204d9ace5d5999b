// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import (
	metrics "github.com/luxfi/metric"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ads"

// Metrics holds all counters the ads pipeline reports, built on luxfi/metric
type Metrics struct {
	metricsInstance metrics.Metrics

	// Serving metrics
	AdsServed        metrics.CounterVec
	AdsFailedToServe metrics.CounterVec
	EligibleAds      metrics.Histogram
	AdEventsRecorded metrics.CounterVec

	// Redemption metrics
	ConfirmationsRedeemed metrics.CounterVec
	ConfirmationsFailed   metrics.CounterVec
	ConfirmationRetries   metrics.Counter
	PaymentTokensRedeemed metrics.Counter
	TokensRefilled        metrics.Counter
}

// NewMetrics creates metrics on a fresh luxfi/metric instance
func NewMetrics() (*Metrics, error) {
	factory := metrics.NewPrometheusFactory()
	metricsInstance := factory.New(namespace)

	m := &Metrics{
		metricsInstance: metricsInstance,
	}

	m.AdsServed = metricsInstance.NewCounterVec(
		"served_total",
		"Total number of ads served",
		[]string{"ad_type"},
	)
	m.AdsFailedToServe = metricsInstance.NewCounterVec(
		"failed_to_serve_total",
		"Total number of serving opportunities without an eligible ad",
		[]string{"ad_type"},
	)
	m.EligibleAds = metricsInstance.NewHistogram(
		"eligible_ads",
		"Number of eligible ads per serving opportunity",
		[]float64{0, 1, 2, 5, 10, 25, 50, 100},
	)
	m.AdEventsRecorded = metricsInstance.NewCounterVec(
		"ad_events_recorded_total",
		"Total number of ad events recorded",
		[]string{"ad_type", "confirmation_type"},
	)

	m.ConfirmationsRedeemed = metricsInstance.NewCounterVec(
		"confirmations_redeemed_total",
		"Total number of confirmations redeemed",
		[]string{"confirmation_type"},
	)
	m.ConfirmationsFailed = metricsInstance.NewCounterVec(
		"confirmations_failed_total",
		"Total number of confirmations that failed to redeem",
		[]string{"should_retry"},
	)
	m.ConfirmationRetries = metricsInstance.NewCounter(
		"confirmation_retries_total",
		"Total number of confirmation redemption retries",
	)
	m.PaymentTokensRedeemed = metricsInstance.NewCounter(
		"payment_tokens_redeemed_total",
		"Total number of unblinded payment tokens redeemed",
	)
	m.TokensRefilled = metricsInstance.NewCounter(
		"confirmation_tokens_refilled_total",
		"Total number of confirmation tokens added by refill",
	)

	return m, nil
}

// NoOp returns metrics on a private registry, for tests and components
// constructed without a metrics sink.
func NoOp() *Metrics {
	m, err := NewMetrics()
	if err != nil {
		panic(err)
	}
	return m
}

// GetGatherer returns the prometheus gatherer for metrics export
func (m *Metrics) GetGatherer() prometheus.Gatherer {
	if registry := m.metricsInstance.Registry(); registry != nil {
		return registry
	}
	return prometheus.DefaultGatherer
}

// GetRegisterer returns the prometheus registerer
func (m *Metrics) GetRegisterer() prometheus.Registerer {
	if registry := m.metricsInstance.Registry(); registry != nil {
		return registry
	}
	return prometheus.DefaultRegisterer
}
