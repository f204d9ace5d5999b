// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"context"
	"encoding/base64"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
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
	"github.com/luxfi/ads/pkg/transport"
	"github.com/luxfi/ads/pkg/wallet"
)

const paymentID = "c387c2d8-a26d-4451-83e4-5c0c6fd942be"

type mockPresenter struct {
	mock.Mock
}

func (m *mockPresenter) Show(ad core.NotificationAdInfo) {
	m.Called(ad)
}

type fixture struct {
	sandbox   *sandbox.Server
	clock     *fakeclock.Clock
	prefs     *prefs.Prefs
	presenter *mockPresenter
	service   *Service
}

func newFixture(t *testing.T, withWallet bool) *fixture {
	t.Helper()
	require := require.New(t)

	sb, err := sandbox.New(log.NoLog)
	require.NoError(err)
	server := httptest.NewServer(sb.Router())
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.ServerURL = server.URL
	if withWallet {
		seed := base64.StdEncoding.EncodeToString([]byte("service test recovery seed 00000"))
		info, err := wallet.FromRecoverySeed(paymentID, seed)
		require.NoError(err)
		sb.RegisterWallet(info.PaymentID, info.PublicKey)
		cfg.Wallet = config.WalletConfig{PaymentID: paymentID, RecoverySeed: seed}
	}

	db, err := database.Open(database.Memory, log.NoLog)
	require.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		sandbox:   sb,
		clock:     fakeclock.New(fixtures.Now),
		prefs:     prefs.NewMemory(),
		presenter: &mockPresenter{},
	}
	f.service, err = New(cfg, Deps{
		DB:        db,
		Prefs:     f.prefs,
		Sender:    transport.NewHTTPSender(0, "", log.NoLog),
		Presenter: f.presenter,
		Platform:  StaticPlatform{Supported: true, Regular: true},
		Clock:     f.clock,
		Metrics:   metric.NoOp(),
		Log:       log.NoLog,
	})
	require.NoError(err)
	return f
}

// serve advances to the first scheduled ad and returns it.
func (f *fixture) serve(t *testing.T) core.NotificationAdInfo {
	t.Helper()
	f.presenter.On("Show", mock.Anything).Return().Once()
	f.clock.Advance(config.Default().Serving.FirstAdDelay)
	f.presenter.AssertExpectations(t)

	calls := f.presenter.Calls
	return calls[len(calls)-1].Arguments.Get(0).(core.NotificationAdInfo)
}

func TestServeAndRedeem(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t, true)
	s := f.service

	require.NoError(s.Start(ctx))
	require.True(s.Wallet.IsConnected())
	require.True(s.Catalog.Exists())
	require.Equal(config.Default().Tokens.MaximumCount, s.ConfirmationTokens.Count())

	ad := f.serve(t)
	require.True(ad.IsValid())

	require.NoError(s.TriggerNotificationAdEvent(ctx, ad.PlacementID, core.ViewedConfirmation))
	f.clock.Advance(0)
	require.Equal(1, f.sandbox.ConfirmationCount())
	require.Equal(1, s.PaymentTokens.Count())

	require.NoError(s.TriggerNotificationAdEvent(ctx, ad.PlacementID, core.ClickedConfirmation))
	f.clock.Advance(0)
	require.Equal(2, f.sandbox.ConfirmationCount())
	require.Equal(2, s.PaymentTokens.Count())

	arms, err := s.Bandit.Arms()
	require.NoError(err)
	var rewarded bool
	for _, arm := range arms {
		if arm.Segment == core.ParentSegment(ad.Segment) {
			rewarded = arm.Pulls == 1 && arm.Value == 1
		}
	}
	require.True(rewarded)

	// Clicked ads are closed.
	err = s.TriggerNotificationAdEvent(ctx, ad.PlacementID, core.DismissedConfirmation)
	require.ErrorIs(err, ErrUnknownPlacement)

	redeemed, err := s.PaymentRedemption.Redeem(ctx)
	require.NoError(err)
	require.Len(redeemed, 2)
	require.True(decimal.RequireFromString("0.1").Equal(f.sandbox.Earnings(paymentID)))

	s.Shutdown()
	require.Zero(f.clock.Pending())
}

func TestUnrewardedWithoutWallet(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t, false)
	s := f.service

	require.NoError(s.Start(ctx))
	require.False(s.Wallet.IsConnected())
	require.Zero(s.ConfirmationTokens.Count())

	ad := f.serve(t)
	require.NoError(s.TriggerNotificationAdEvent(ctx, ad.PlacementID, core.ViewedConfirmation))
	f.clock.Advance(0)
	require.Equal(1, f.sandbox.ConfirmationCount())
	require.Zero(s.PaymentTokens.Count())

	s.Shutdown()
}

func TestTriggerNotificationAdEventRequiresStart(t *testing.T) {
	f := newFixture(t, false)
	err := f.service.TriggerNotificationAdEvent(context.Background(), "placement", core.ViewedConfirmation)
	require.ErrorIs(t, err, ErrNotStarted)
}

func TestSetAdsPerHourReschedules(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, false)
	s := f.service
	require.NoError(s.Start(context.Background()))

	f.serve(t)
	require.Error(s.SetAdsPerHour(config.MaximumAdsPerHour + 1))

	require.NoError(s.SetAdsPerHour(1))
	next, ok := f.clock.NextFireTime()
	require.True(ok)
	serveAt, err := f.prefs.GetTime(prefs.ServeAdAt)
	require.NoError(err)
	require.False(next.After(serveAt.Add(time.Second)))
	s.Shutdown()
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.ServerURL = ""
	_, err := New(cfg, Deps{})
	require.ErrorIs(t, err, config.ErrMissingServerURL)
}

func TestSubdivisionResourceOverridesConfiguredCode(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "subdivision.json")
	require.NoError(os.WriteFile(path, []byte(`{"country":"us","region":"ca"}`), 0o600))

	db, err := database.Open(database.Memory, log.NoLog)
	require.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	newService := func(cfg config.Config) *Service {
		s, err := New(cfg, Deps{
			DB:        db,
			Prefs:     prefs.NewMemory(),
			Sender:    transport.NewHTTPSender(0, "", log.NoLog),
			Presenter: &mockPresenter{},
			Platform:  StaticPlatform{Supported: true, Regular: true},
			Clock:     fakeclock.New(fixtures.Now),
			Metrics:   metric.NoOp(),
			Log:       log.NoLog,
		})
		require.NoError(err)
		return s
	}

	cfg := config.Default()
	cfg.ServerURL = "http://127.0.0.1:0"
	cfg.Resources.SubdivisionCode = "US-NY"
	require.Equal("US-NY", newService(cfg).SubdivisionCode())

	cfg.Resources.SubdivisionPath = path
	require.Equal("US-CA", newService(cfg).SubdivisionCode())

	cfg.Resources.SubdivisionPath = filepath.Join(t.TempDir(), "missing.json")
	require.Equal("US-NY", newService(cfg).SubdivisionCode())
}
