// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	require := require.New(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(err)
	require.Equal(Default(), cfg)
	require.Equal(2*time.Minute, cfg.Serving.FirstAdDelay)
	require.Equal(time.Hour, cfg.Redemption.MaxBackoffDelay)
}

func TestLoadOverlaysFileAndEnv(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "ads.yaml")
	require.NoError(os.WriteFile(path, []byte(`
server_url: https://ads.example.com
serving:
  first_ad_delay: 30s
  ads_per_hour: 3
prediction:
  priority: 0.5
`), 0o600))

	t.Setenv("ADS_LOG_LEVEL", "debug")
	t.Setenv("ADS_DATA_DIR", "/var/lib/ads")
	t.Setenv("ADS_API_ADDR", "127.0.0.1:9000")
	t.Setenv("ADS_PAYMENT_ID", "payment")
	t.Setenv("ADS_RECOVERY_SEED", "seed")

	cfg, err := Load(path)
	require.NoError(err)
	require.Equal("https://ads.example.com", cfg.ServerURL)
	require.Equal(30*time.Second, cfg.Serving.FirstAdDelay)
	require.Equal(time.Minute, cfg.Serving.MinimumDelay)
	require.Equal(3, cfg.Serving.AdsPerHour)
	require.Equal(0.5, cfg.Prediction.Priority)
	require.Equal(1.0, cfg.Prediction.LastSeenAd)
	require.Equal("debug", cfg.LogLevel)
	require.Equal("127.0.0.1:9000", cfg.APIAddr)
	require.Equal(WalletConfig{PaymentID: "payment", RecoverySeed: "seed"}, cfg.Wallet)
	require.Equal(filepath.Join("/var/lib/ads", "ads.sqlite"), cfg.DatabasePath())
}

func TestLoadRejectsInvalid(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "ads.yaml")
	require.NoError(os.WriteFile(path, []byte("serving:\n  ads_per_hour: 11\n"), 0o600))
	_, err := Load(path)
	require.ErrorIs(err, ErrInvalidAdsPerHour)

	require.NoError(os.WriteFile(path, []byte("tokens:\n  minimum_count: 50\n  maximum_count: 20\n"), 0o600))
	_, err = Load(path)
	require.ErrorIs(err, ErrInvalidTokenBounds)

	require.NoError(os.WriteFile(path, []byte("serving: [oops"), 0o600))
	_, err = Load(path)
	require.Error(err)
}
