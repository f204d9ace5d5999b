// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidAdsPerHour  = errors.New("ads per hour out of range")
	ErrInvalidTokenBounds = errors.New("token refill bounds out of range")
	ErrMissingServerURL   = errors.New("server url is required")
)

// MaximumAdsPerHour is the most notification ads a user can opt into.
const MaximumAdsPerHour = 10

// Config is the full runtime configuration of the ads service.
type Config struct {
	ServerURL string `yaml:"server_url"`
	DataDir   string `yaml:"data_dir"`
	LogLevel  string `yaml:"log_level"`
	Platform  string `yaml:"platform"`

	// APIAddr is where adsd serves its control API and prometheus metrics.
	APIAddr string `yaml:"api_addr"`

	Serving    ServingConfig    `yaml:"serving"`
	Redemption RedemptionConfig `yaml:"redemption"`
	Tokens     TokensConfig     `yaml:"tokens"`
	Prediction PredictionConfig `yaml:"prediction"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Issuers    IssuersConfig    `yaml:"issuers"`
	Resources  ResourcesConfig  `yaml:"resources"`
	AdEvents   AdEventsConfig   `yaml:"ad_events"`
	Wallet     WalletConfig     `yaml:"wallet"`
}

type ServingConfig struct {
	FirstAdDelay time.Duration `yaml:"first_ad_delay"`
	MinimumDelay time.Duration `yaml:"minimum_delay"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	AdsPerHour   int           `yaml:"ads_per_hour"`
	AdsPerDay    int           `yaml:"ads_per_day"`
}

type RedemptionConfig struct {
	PaymentTokenInterval   time.Duration `yaml:"payment_token_interval"`
	ConfirmationRetryDelay time.Duration `yaml:"confirmation_retry_delay"`
	MaxBackoffDelay        time.Duration `yaml:"max_backoff_delay"`
}

type TokensConfig struct {
	MinimumCount int           `yaml:"minimum_count"`
	MaximumCount int           `yaml:"maximum_count"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
}

// PredictionConfig weights each model input; zero disables an input.
type PredictionConfig struct {
	ChildIntentSegment          float64 `yaml:"child_intent_segment"`
	ParentIntentSegment         float64 `yaml:"parent_intent_segment"`
	ChildLatentInterestSegment  float64 `yaml:"child_latent_interest_segment"`
	ParentLatentInterestSegment float64 `yaml:"parent_latent_interest_segment"`
	ChildInterestSegment        float64 `yaml:"child_interest_segment"`
	ParentInterestSegment       float64 `yaml:"parent_interest_segment"`
	LastSeenAd                  float64 `yaml:"last_seen_ad"`
	LastSeenAdvertiser          float64 `yaml:"last_seen_advertiser"`
	Priority                    float64 `yaml:"priority"`

	EmbeddingThreshold float64 `yaml:"embedding_threshold"`
	BanditEpsilon      float64 `yaml:"bandit_epsilon"`
}

type CatalogConfig struct {
	Ping time.Duration `yaml:"ping"`
}

type IssuersConfig struct {
	Ping time.Duration `yaml:"ping"`
}

type ResourcesConfig struct {
	AntiTargetingPath string `yaml:"anti_targeting_path"`
	SubdivisionPath   string `yaml:"subdivision_path"`
	// SubdivisionCode is used until a subdivision resource is loaded.
	SubdivisionCode string `yaml:"subdivision_code"`
}

type AdEventsConfig struct {
	Retention time.Duration `yaml:"retention"`
}

// WalletConfig connects a rewards wallet at startup. Without one only
// unrewarded confirmations are sent.
type WalletConfig struct {
	PaymentID    string `yaml:"payment_id"`
	RecoverySeed string `yaml:"recovery_seed"`
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		ServerURL:   "http://127.0.0.1:8090",
		DataDir:     "ads-data",
		LogLevel:    "info",
		Platform:    "linux",
		APIAddr:     "127.0.0.1:8091",
		Serving: ServingConfig{
			FirstAdDelay: 2 * time.Minute,
			MinimumDelay: time.Minute,
			RetryDelay:   2 * time.Minute,
			AdsPerHour:   5,
			AdsPerDay:    100,
		},
		Redemption: RedemptionConfig{
			PaymentTokenInterval:   24 * time.Hour,
			ConfirmationRetryDelay: 15 * time.Second,
			MaxBackoffDelay:        time.Hour,
		},
		Tokens: TokensConfig{
			MinimumCount: 20,
			MaximumCount: 50,
			RetryDelay:   15 * time.Second,
		},
		Prediction: PredictionConfig{
			ChildIntentSegment:          1,
			ParentIntentSegment:         1,
			ChildLatentInterestSegment:  1,
			ParentLatentInterestSegment: 1,
			ChildInterestSegment:        1,
			ParentInterestSegment:       1,
			LastSeenAd:                  1,
			LastSeenAdvertiser:          1,
			Priority:                    1,
			EmbeddingThreshold:          0,
			BanditEpsilon:               0.25,
		},
		Catalog:  CatalogConfig{Ping: 2 * time.Hour},
		Issuers:  IssuersConfig{Ping: 2 * time.Hour},
		AdEvents: AdEventsConfig{Retention: 90 * 24 * time.Hour},
	}
}

// Load overlays the YAML file at path, if any, and the environment on the
// defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg.ServerURL = envOrDefault("ADS_SERVER_URL", cfg.ServerURL)
	cfg.LogLevel = envOrDefault("ADS_LOG_LEVEL", cfg.LogLevel)
	cfg.DataDir = envOrDefault("ADS_DATA_DIR", cfg.DataDir)
	cfg.APIAddr = envOrDefault("ADS_API_ADDR", cfg.APIAddr)
	cfg.Wallet.PaymentID = envOrDefault("ADS_PAYMENT_ID", cfg.Wallet.PaymentID)
	cfg.Wallet.RecoverySeed = envOrDefault("ADS_RECOVERY_SEED", cfg.Wallet.RecoverySeed)
	cfg.Serving.AdsPerHour = envInt("ADS_PER_HOUR", cfg.Serving.AdsPerHour)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross field constraints.
func (c Config) Validate() error {
	if c.ServerURL == "" {
		return ErrMissingServerURL
	}
	if c.Serving.AdsPerHour < 0 || c.Serving.AdsPerHour > MaximumAdsPerHour {
		return fmt.Errorf("%w: %d", ErrInvalidAdsPerHour, c.Serving.AdsPerHour)
	}
	if c.Tokens.MinimumCount < 0 || c.Tokens.MaximumCount <= c.Tokens.MinimumCount {
		return fmt.Errorf("%w: min %d max %d", ErrInvalidTokenBounds, c.Tokens.MinimumCount, c.Tokens.MaximumCount)
	}
	return nil
}

// DatabasePath is the sqlite ads database.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "ads.sqlite")
}

// PrefsPath is the key value preference store.
func (c Config) PrefsPath() string {
	return filepath.Join(c.DataDir, "prefs")
}

func envOrDefault(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
