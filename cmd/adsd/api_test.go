// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ads/internal/testing/fakeclock"
	"github.com/luxfi/ads/internal/testing/fixtures"
	"github.com/luxfi/ads/pkg/config"
	"github.com/luxfi/ads/pkg/core"
	"github.com/luxfi/ads/pkg/database"
	"github.com/luxfi/ads/pkg/log"
	"github.com/luxfi/ads/pkg/metric"
	"github.com/luxfi/ads/pkg/prefs"
	"github.com/luxfi/ads/pkg/sandbox"
	"github.com/luxfi/ads/pkg/service"
	"github.com/luxfi/ads/pkg/transport"
)

func newTestAPI(t *testing.T) (*service.Service, http.Handler) {
	t.Helper()
	require := require.New(t)

	sb, err := sandbox.New(log.NoLog)
	require.NoError(err)
	server := httptest.NewServer(sb.Router())
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.ServerURL = server.URL

	db, err := database.Open(database.Memory, log.NoLog)
	require.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	metrics := metric.NoOp()
	svc, err := service.New(cfg, service.Deps{
		DB:       db,
		Prefs:    prefs.NewMemory(),
		Sender:   transport.NewHTTPSender(0, "", log.NoLog),
		Platform: service.StaticPlatform{Supported: true},
		Clock:    fakeclock.New(fixtures.Now),
		Metrics:  metrics,
		Log:      log.NoLog,
	})
	require.NoError(err)
	return svc, newAPI(svc, metrics, log.NoLog).router()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestEventsRequireStart(t *testing.T) {
	_, h := newTestAPI(t)

	rec := do(h, http.MethodPost, "/notification_ads/p/events/view", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServeAndTriggerEvents(t *testing.T) {
	require := require.New(t)
	svc, h := newTestAPI(t)
	require.NoError(svc.Start(context.Background()))
	t.Cleanup(svc.Shutdown)

	rec := do(h, http.MethodGet, "/health", "")
	require.Equal(http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(true, health["catalog"])

	rec = do(h, http.MethodPost, "/notification_ads/serve", "")
	require.Equal(http.StatusOK, rec.Code)
	var ad core.NotificationAdInfo
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &ad))
	require.NotEmpty(ad.PlacementID)

	// Minimum wait time applies to the next attempt.
	rec = do(h, http.MethodPost, "/notification_ads/serve", "")
	require.Equal(http.StatusConflict, rec.Code)

	rec = do(h, http.MethodPost, "/notification_ads/"+ad.PlacementID+"/events/view", "")
	require.Equal(http.StatusNoContent, rec.Code)

	rec = do(h, http.MethodPost, "/notification_ads/"+ad.PlacementID+"/events/bogus", "")
	require.Equal(http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/notification_ads/unknown/events/click", "")
	require.Equal(http.StatusNotFound, rec.Code)

	rec = do(h, http.MethodGet, "/metrics", "")
	require.Equal(http.StatusOK, rec.Code)
	require.Contains(rec.Body.String(), "served_total")
}

func TestSetAdsPerHour(t *testing.T) {
	require := require.New(t)
	_, h := newTestAPI(t)

	rec := do(h, http.MethodPut, "/settings/ads_per_hour", `{"ads_per_hour":3}`)
	require.Equal(http.StatusNoContent, rec.Code)

	rec = do(h, http.MethodPut, "/settings/ads_per_hour", `{"ads_per_hour":11}`)
	require.Equal(http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPut, "/settings/ads_per_hour", `not json`)
	require.Equal(http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/settings/ads_per_hour", "")
	require.Equal(http.StatusMethodNotAllowed, rec.Code)
}
