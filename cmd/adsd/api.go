// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luxfi/ads/pkg/core"
	"github.com/luxfi/ads/pkg/log"
	"github.com/luxfi/ads/pkg/metric"
	"github.com/luxfi/ads/pkg/serving"
	"github.com/luxfi/ads/pkg/service"
)

// api is the local control surface of the daemon.
type api struct {
	svc     *service.Service
	metrics *metric.Metrics
	log     log.Logger
}

func newAPI(svc *service.Service, metrics *metric.Metrics, logger log.Logger) *api {
	return &api{svc: svc, metrics: metrics, log: logger}
}

func (a *api) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(a.metrics.GetGatherer(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	// Notification ads
	r.HandleFunc("/notification_ads/serve", a.handleServe).Methods(http.MethodPost)
	r.HandleFunc("/notification_ads/{placementId}/events/{eventType}", a.handleEvent).Methods(http.MethodPost)

	// Settings
	r.HandleFunc("/settings/ads_per_hour", a.handleAdsPerHour).Methods(http.MethodPut)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (a *api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"version":          Version,
		"serving":          a.svc.Scheduler.IsServingAdsAtRegularIntervals(),
		"state":            a.svc.Scheduler.State().String(),
		"wallet_connected": a.svc.Wallet.IsConnected(),
		"catalog":          a.svc.Catalog.Exists(),
	})
}

func (a *api) handleServe(w http.ResponseWriter, r *http.Request) {
	ad, err := a.svc.MaybeServeAd(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ad)
	case errors.Is(err, serving.ErrNoEligibleAds), errors.Is(err, serving.ErrNotPermitted):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, serving.ErrNotSupported):
		writeError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, serving.ErrAlreadyServing):
		writeError(w, http.StatusTooManyRequests, err)
	default:
		a.log.Warn("failed to serve ad", log.Error(err))
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (a *api) handleEvent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	confirmationType, err := core.ParseConfirmationType(vars["eventType"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err = a.svc.TriggerNotificationAdEvent(r.Context(), vars["placementId"], confirmationType)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, service.ErrUnknownPlacement):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusBadRequest, err)
	}
}

func (a *api) handleAdsPerHour(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AdsPerHour int `json:"ads_per_hour"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.svc.SetAdsPerHour(req.AdsPerHour); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
