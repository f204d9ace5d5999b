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

	"github.com/luxfi/ads/pkg/log"
	"github.com/luxfi/ads/pkg/sandbox"
	"github.com/luxfi/ads/pkg/wallet"
)

var (
	addr         = flag.String("addr", "127.0.0.1:8090", "Listen address")
	logLevel     = flag.String("log-level", "info", "Log level")
	catalogPath  = flag.String("catalog", "", "Catalog JSON to serve instead of the built in one")
	paymentID    = flag.String("payment-id", "", "Wallet payment id allowed to refill tokens")
	recoverySeed = flag.String("recovery-seed", "", "Base64 recovery seed of that wallet")
)

func main() {
	flag.Parse()

	logger := log.NewWithLevel(*logLevel)
	defer func() { _ = logger.Sync() }()

	sb, err := sandbox.New(logger)
	if err != nil {
		fmt.Printf("Failed to create sandbox: %v\n", err)
		os.Exit(1)
	}
	if *catalogPath != "" {
		raw, err := os.ReadFile(*catalogPath)
		if err != nil {
			fmt.Printf("Failed to read catalog: %v\n", err)
			os.Exit(1)
		}
		sb.SetCatalog(raw)
	}
	if *paymentID != "" {
		w, err := wallet.FromRecoverySeed(*paymentID, *recoverySeed)
		if err != nil {
			fmt.Printf("Invalid wallet: %v\n", err)
			os.Exit(1)
		}
		sb.RegisterWallet(w.PaymentID, w.PublicKey)
	}

	server := &http.Server{
		Addr:              *addr,
		Handler:           sb.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("sandbox listening", log.String("addr", *addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("sandbox server error", log.Error(err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("sandbox shutdown error", log.Error(err))
	}
}
