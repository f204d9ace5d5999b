// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tokens

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/luxfi/ads/pkg/clock"
	"github.com/luxfi/ads/pkg/crypto/cbr"
	"github.com/luxfi/ads/pkg/issuers"
	"github.com/luxfi/ads/pkg/log"
	"github.com/luxfi/ads/pkg/metric"
	"github.com/luxfi/ads/pkg/timer"
	"github.com/luxfi/ads/pkg/transport"
	"github.com/luxfi/ads/pkg/wallet"
)

var (
	ErrRefillInProgress   = errors.New("refill already in progress")
	ErrAccessTokenExpired = errors.New("access token expired")
	ErrUnknownPublicKey   = errors.New("public key is not a confirmations issuer key")
)

// Wallet returns the connected wallet and disconnects it.
type Wallet interface {
	Get() (wallet.WalletInfo, error)
	Disconnect()
}

// RefillObserver is told about refill outcomes. Nil fields are skipped.
type RefillObserver struct {
	OnDidRefillConfirmationTokens      func(count int)
	OnFailedToRefillConfirmationTokens func(err error)
	OnWillRetryRefilling               func(retryAt time.Time)
	OnDidRetryRefilling                func()
}

// RefillConfig bounds the pool.
type RefillConfig struct {
	MinimumCount int
	MaximumCount int
	RetryDelay   time.Duration
}

// Refiller tops up the confirmation token pool.
type Refiller struct {
	cfg       RefillConfig
	serverURL string
	sender    transport.Sender
	wallet    Wallet
	issuers   issuers.Store
	pool      *ConfirmationTokens
	metrics   *metric.Metrics
	log       log.Logger
	backoff   *timer.BackoffTimer

	mu        sync.Mutex
	ctx       context.Context
	refilling bool
	retrying  bool
	observers []RefillObserver
}

func NewRefiller(
	cfg RefillConfig,
	serverURL string,
	sender transport.Sender,
	w Wallet,
	issuerStore issuers.Store,
	pool *ConfirmationTokens,
	c clock.Clock,
	metrics *metric.Metrics,
	logger log.Logger,
) *Refiller {
	if metrics == nil {
		metrics = metric.NoOp()
	}
	if logger == nil {
		logger = log.NoLog
	}
	return &Refiller{
		cfg:       cfg,
		serverURL: serverURL,
		sender:    sender,
		wallet:    w,
		issuers:   issuerStore,
		pool:      pool,
		metrics:   metrics,
		log:       logger.With(log.String("component", "refill_confirmation_tokens")),
		backoff:   timer.NewBackoff(c),
		ctx:       context.Background(),
	}
}

func (r *Refiller) AddObserver(o RefillObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// SetMaxBackoffDelay caps the retry delay.
func (r *Refiller) SetMaxBackoffDelay(d time.Duration) {
	r.backoff.SetMaxBackoffDelay(d)
}

// IsRetrying reports whether a retry is scheduled.
func (r *Refiller) IsRetrying() bool {
	return r.backoff.IsRunning()
}

// Stop cancels a scheduled retry.
func (r *Refiller) Stop() {
	r.backoff.Stop()
}

// MaybeRefill refills when the pool is below the minimum and no retry is
// pending. It returns the number of tokens added.
func (r *Refiller) MaybeRefill(ctx context.Context) (int, error) {
	if r.backoff.IsRunning() {
		r.log.Debug("refill retry already scheduled")
		return 0, nil
	}
	if r.pool.Count() >= r.cfg.MinimumCount {
		return 0, nil
	}

	r.mu.Lock()
	if r.refilling {
		r.mu.Unlock()
		return 0, ErrRefillInProgress
	}
	r.refilling = true
	r.ctx = ctx
	r.mu.Unlock()

	n, err := r.refill(ctx)

	r.mu.Lock()
	r.refilling = false
	wasRetrying := r.retrying
	r.retrying = false
	r.mu.Unlock()

	observers := r.snapshotObservers()
	if err != nil {
		r.log.Warn("failed to refill confirmation tokens", log.Error(err))
		for _, o := range observers {
			if o.OnFailedToRefillConfirmationTokens != nil {
				o.OnFailedToRefillConfirmationTokens(err)
			}
		}
		if !errors.Is(err, ErrAccessTokenExpired) && !errors.Is(err, wallet.ErrNotConnected) {
			r.retry()
		}
		return 0, err
	}

	r.backoff.Stop()
	r.metrics.TokensRefilled.Add(float64(n))
	r.log.Info("refilled confirmation tokens", log.Int("count", n), log.Int("pool", r.pool.Count()))
	for _, o := range observers {
		if wasRetrying && o.OnDidRetryRefilling != nil {
			o.OnDidRetryRefilling()
		}
		if o.OnDidRefillConfirmationTokens != nil {
			o.OnDidRefillConfirmationTokens(n)
		}
	}
	return n, nil
}

func (r *Refiller) retry() {
	retryAt := r.backoff.Start(r.cfg.RetryDelay, func() {
		r.mu.Lock()
		r.retrying = true
		ctx := r.ctx
		r.mu.Unlock()
		_, _ = r.MaybeRefill(ctx)
	})
	r.log.Info("retry refilling confirmation tokens", log.Time("retry_at", retryAt))
	for _, o := range r.snapshotObservers() {
		if o.OnWillRetryRefilling != nil {
			o.OnWillRetryRefilling(retryAt)
		}
	}
}

type requestSignedTokensBody struct {
	BlindedTokens []string `json:"blindedTokens"`
}

type requestSignedTokensResponse struct {
	Nonce string `json:"nonce"`
}

type signedTokensResponse struct {
	BatchProof   string   `json:"batchProof"`
	SignedTokens []string `json:"signedTokens"`
	PublicKey    string   `json:"publicKey"`
}

func (r *Refiller) refill(ctx context.Context) (int, error) {
	w, err := r.wallet.Get()
	if err != nil {
		return 0, err
	}
	issuerSet, err := issuers.Load(r.issuers)
	if err != nil {
		return 0, err
	}

	count := r.cfg.MaximumCount - r.pool.Count()
	tokens, err := cbr.RandomTokens(count)
	if err != nil {
		return 0, err
	}
	blinded, err := cbr.BlindTokens(tokens)
	if err != nil {
		return 0, err
	}

	nonce, err := r.requestSignedTokens(ctx, w, blinded)
	if err != nil {
		return 0, err
	}
	signed, err := r.getSignedTokens(ctx, w, nonce)
	if err != nil {
		return 0, err
	}

	if !issuerSet.PublicKeyExistsForIssuerType(issuers.ConfirmationsType, signed.PublicKey) {
		return 0, ErrUnknownPublicKey
	}
	publicKey, err := cbr.PublicKeyFromBase64(signed.PublicKey)
	if err != nil {
		return 0, err
	}
	proof, err := cbr.BatchDLEQProofFromBase64(signed.BatchProof)
	if err != nil {
		return 0, err
	}
	signedTokens, err := cbr.DecodeSignedTokens(signed.SignedTokens)
	if err != nil {
		return 0, err
	}
	if len(signedTokens) != len(blinded) {
		return 0, fmt.Errorf("got %d signed tokens for %d blinded tokens", len(signedTokens), len(blinded))
	}
	unblinded, err := proof.VerifyAndUnblind(tokens, blinded, signedTokens, publicKey)
	if err != nil {
		return 0, fmt.Errorf("verify and unblind: %w", err)
	}

	infos := make([]ConfirmationTokenInfo, 0, len(unblinded))
	for _, u := range unblinded {
		signature, err := w.Sign(u.EncodeBase64())
		if err != nil {
			return 0, err
		}
		infos = append(infos, ConfirmationTokenInfo{UnblindedToken: u, PublicKey: publicKey, Signature: signature})
	}
	if err := r.pool.Add(infos...); err != nil {
		return 0, err
	}
	return len(infos), nil
}

func (r *Refiller) requestSignedTokens(ctx context.Context, w wallet.WalletInfo, blinded []cbr.BlindedToken) (string, error) {
	req, err := transport.NewJSONRequest(
		http.MethodPost,
		fmt.Sprintf("%s/v3/confirmation/token/%s", r.serverURL, url.PathEscape(w.PaymentID)),
		requestSignedTokensBody{BlindedTokens: cbr.EncodeBlindedTokens(blinded)},
	)
	if err != nil {
		return "", err
	}
	if err := wallet.SignRequest(w, req.Headers, req.Body); err != nil {
		return "", err
	}

	resp, err := r.sender.Send(ctx, req)
	if err != nil {
		return "", err
	}
	if err := r.checkStatus(resp, http.StatusCreated); err != nil {
		return "", err
	}
	var body requestSignedTokensResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return "", err
	}
	if body.Nonce == "" {
		return "", errors.New("response is missing nonce")
	}
	return body.Nonce, nil
}

func (r *Refiller) getSignedTokens(ctx context.Context, w wallet.WalletInfo, nonce string) (signedTokensResponse, error) {
	resp, err := r.sender.Send(ctx, transport.Request{
		Method: http.MethodGet,
		URL: fmt.Sprintf("%s/v3/confirmation/token/%s?nonce=%s",
			r.serverURL, url.PathEscape(w.PaymentID), url.QueryEscape(nonce)),
	})
	if err != nil {
		return signedTokensResponse{}, err
	}
	if err := r.checkStatus(resp, http.StatusOK); err != nil {
		return signedTokensResponse{}, err
	}
	var body signedTokensResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return signedTokensResponse{}, err
	}
	return body, nil
}

func (r *Refiller) checkStatus(resp transport.Response, want int) error {
	if resp.IsUnauthorized() {
		r.wallet.Disconnect()
		return ErrAccessTokenExpired
	}
	if resp.StatusCode != want {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (r *Refiller) snapshotObservers() []RefillObserver {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RefillObserver(nil), r.observers...)
}
