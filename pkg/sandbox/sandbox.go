// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sandbox is an in process ads server: it issues confirmation
// tokens, accepts confirmations, signs payment tokens, redeems them and
// serves a catalog. It backs integration tests and local development.
package sandbox

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/luxfi/ads/pkg/crypto/cbr"
	"github.com/luxfi/ads/pkg/issuers"
	"github.com/luxfi/ads/pkg/log"
)

// Route names, usable with FailNext.
const (
	RouteIssuers                      = "issuers"
	RouteRequestSignedTokens          = "request_signed_tokens"
	RouteGetSignedTokens              = "get_signed_tokens"
	RouteCreateConfirmation           = "create_confirmation"
	RouteCreateUnrewardedConfirmation = "create_unrewarded_confirmation"
	RouteFetchPaymentToken            = "fetch_payment_token"
	RouteRedeemPaymentTokens          = "redeem_payment_tokens"
	RouteCatalog                      = "catalog"
)

// DefaultPaymentValue is the value of every payment token.
var DefaultPaymentValue = decimal.RequireFromString("0.05")

type pendingTokens struct {
	paymentID string
	proof     cbr.BatchDLEQProof
	signed    []cbr.SignedToken
}

type confirmationRecord struct {
	transactionID      string
	creativeInstanceID string
	confirmationType   string
	blinded            []cbr.BlindedToken
	createdAt          time.Time
}

// Server holds the sandbox state. It is safe for concurrent use.
type Server struct {
	confirmationsKey       cbr.SigningKey
	confirmationsPublicKey cbr.PublicKey
	paymentsKey            cbr.SigningKey
	paymentsPublicKey      cbr.PublicKey
	paymentValue           decimal.Decimal
	ping                   time.Duration
	log                    log.Logger

	mu             sync.Mutex
	catalog        []byte
	wallets        map[string]ed25519.PublicKey
	nonces         map[string]pendingTokens
	confirmations  map[string]confirmationRecord
	spentConfirmed map[string]bool
	spentPayments  map[string]bool
	earnings       map[string]decimal.Decimal
	failures       map[string][]int
}

// New creates a sandbox with fresh signing keys.
func New(logger log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.NoLog
	}
	confirmationsKey, err := cbr.RandomSigningKey()
	if err != nil {
		return nil, err
	}
	confirmationsPublicKey, err := confirmationsKey.PublicKey()
	if err != nil {
		return nil, err
	}
	paymentsKey, err := cbr.RandomSigningKey()
	if err != nil {
		return nil, err
	}
	paymentsPublicKey, err := paymentsKey.PublicKey()
	if err != nil {
		return nil, err
	}
	return &Server{
		confirmationsKey:       confirmationsKey,
		confirmationsPublicKey: confirmationsPublicKey,
		paymentsKey:            paymentsKey,
		paymentsPublicKey:      paymentsPublicKey,
		paymentValue:           DefaultPaymentValue,
		ping:                   2 * time.Hour,
		log:                    logger.With(log.String("component", "sandbox")),
		catalog:                []byte(DefaultCatalog),
		wallets:                make(map[string]ed25519.PublicKey),
		nonces:                 make(map[string]pendingTokens),
		confirmations:          make(map[string]confirmationRecord),
		spentConfirmed:         make(map[string]bool),
		spentPayments:          make(map[string]bool),
		earnings:               make(map[string]decimal.Decimal),
		failures:               make(map[string][]int),
	}, nil
}

// RegisterWallet lets paymentID request tokens with requests signed by
// publicKey.
func (s *Server) RegisterWallet(paymentID string, publicKey ed25519.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[paymentID] = publicKey
}

// SetCatalog replaces the served catalog.
func (s *Server) SetCatalog(catalog []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = catalog
}

// FailNext makes the next len(statuses) calls to route answer with the
// given statuses, in order.
func (s *Server) FailNext(route string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], statuses...)
}

// Issuers returns the issuers the sandbox advertises.
func (s *Server) Issuers() issuers.IssuersInfo {
	return issuers.IssuersInfo{
		Ping: s.ping,
		Issuers: []issuers.IssuerInfo{
			{
				Type:       issuers.ConfirmationsType,
				PublicKeys: map[string]decimal.Decimal{s.confirmationsPublicKey.EncodeBase64(): decimal.Zero},
			},
			{
				Type:       issuers.PaymentsType,
				PublicKeys: map[string]decimal.Decimal{s.paymentsPublicKey.EncodeBase64(): s.paymentValue},
			},
		},
	}
}

// Earnings returns the value redeemed for paymentID.
func (s *Server) Earnings(paymentID string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.earnings[paymentID]
}

// ConfirmationCount returns the number of accepted confirmations.
func (s *Server) ConfirmationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.confirmations)
}

// Router returns the HTTP routes of the sandbox.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.injectFailures)

	r.HandleFunc("/v3/issuers/", s.handleIssuers).Methods(http.MethodGet).Name(RouteIssuers)
	r.HandleFunc("/v3/confirmation/token/{paymentId}", s.handleRequestSignedTokens).
		Methods(http.MethodPost).Name(RouteRequestSignedTokens)
	r.HandleFunc("/v3/confirmation/token/{paymentId}", s.handleGetSignedTokens).
		Methods(http.MethodGet).Queries("nonce", "{nonce}").Name(RouteGetSignedTokens)
	r.HandleFunc("/v3/confirmation/payment/{paymentId}", s.handleRedeemPaymentTokens).
		Methods(http.MethodPut).Name(RouteRedeemPaymentTokens)
	r.HandleFunc("/v3/confirmation/{transactionId}/paymentToken", s.handleFetchPaymentToken).
		Methods(http.MethodGet).Name(RouteFetchPaymentToken)
	r.HandleFunc("/v3/confirmation/{transactionId}/{credential}", s.handleCreateConfirmation).
		Methods(http.MethodPost).Name(RouteCreateConfirmation)
	r.HandleFunc("/v3/confirmation/{transactionId}", s.handleCreateConfirmation).
		Methods(http.MethodPost).Name(RouteCreateUnrewardedConfirmation)
	r.HandleFunc("/v9/catalog", s.handleCatalog).Methods(http.MethodGet).Name(RouteCatalog)
	return r
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := mux.CurrentRoute(r)
		if route != nil {
			s.mu.Lock()
			statuses := s.failures[route.GetName()]
			var status int
			if len(statuses) > 0 {
				status, s.failures[route.GetName()] = statuses[0], statuses[1:]
			}
			s.mu.Unlock()
			if status != 0 {
				s.log.Debug("injected failure", log.String("route", route.GetName()), log.Int("status", status))
				http.Error(w, http.StatusText(status), status)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleIssuers(w http.ResponseWriter, _ *http.Request) {
	body, err := s.Issuers().MarshalWire()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	catalog := s.catalog
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(catalog)
}

func newID() string {
	return uuid.NewString()
}

var errSpent = errors.New("token already spent")

func verifyCredential(key cbr.SigningKey, preimage, signature, message string) (string, error) {
	p, err := cbr.TokenPreimageFromBase64(preimage)
	if err != nil {
		return "", fmt.Errorf("preimage: %w", err)
	}
	unblinded, err := key.RederiveUnblindedToken(p)
	if err != nil {
		return "", err
	}
	vk, err := unblinded.DeriveVerificationKey()
	if err != nil {
		return "", err
	}
	sig, err := cbr.VerificationSignatureFromBase64(signature)
	if err != nil {
		return "", fmt.Errorf("signature: %w", err)
	}
	if !vk.Verify(sig, message) {
		return "", errors.New("signature does not verify")
	}
	return p.EncodeBase64(), nil
}
