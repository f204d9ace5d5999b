// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/ads/pkg/config"
	"github.com/luxfi/ads/pkg/log"
	"github.com/luxfi/ads/pkg/metric"
	"github.com/luxfi/ads/pkg/service"
)

var (
	configPath = flag.String("config", "", "YAML config file")
	dataDir    = flag.String("data-dir", "", "Data directory, overrides the config file")
	serverURL  = flag.String("server-url", "", "Ads server URL, overrides the config file")
	logLevel   = flag.String("log-level", "", "Log level, overrides the config file")
	apiAddr    = flag.String("api-addr", "", "Control API and metrics address, overrides the config file")

	// Version info
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	flag.Parse()

	fmt.Printf("Ads daemon (adsd) %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	logger := log.NewWithLevel(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	metrics, err := metric.NewMetrics()
	if err != nil {
		fmt.Printf("Failed to create metrics: %v\n", err)
		os.Exit(1)
	}

	svc, err := service.New(cfg, service.Deps{Metrics: metrics, Log: logger})
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Start(ctx); err != nil {
		fmt.Printf("Failed to start service: %v\n", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           newAPI(svc, metrics, logger).router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("control API listening", log.String("addr", cfg.APIAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("control API error", log.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("control API shutdown error", log.Error(err))
	}
	cancel()
	svc.Shutdown()

	fmt.Println("Daemon stopped")
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return config.Config{}, err
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *apiAddr != "" {
		cfg.APIAddr = *apiAddr
	}
	return cfg, cfg.Validate()
}
