// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package redemption

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/luxfi/ads/pkg/clock"
	"github.com/luxfi/ads/pkg/log"
	"github.com/luxfi/ads/pkg/metric"
	"github.com/luxfi/ads/pkg/prefs"
	"github.com/luxfi/ads/pkg/timer"
	"github.com/luxfi/ads/pkg/tokens"
	"github.com/luxfi/ads/pkg/transport"
	"github.com/luxfi/ads/pkg/wallet"
)

// DefaultRetryDelay is the initial backoff after a failed redemption.
const DefaultRetryDelay = time.Minute

var ErrNoPaymentTokens = errors.New("no payment tokens to redeem")

// PaymentWallet returns the connected wallet.
type PaymentWallet interface {
	Get() (wallet.WalletInfo, error)
	Disconnect()
}

// PaymentTokenPool is the pool redeemed tokens are removed from.
type PaymentTokenPool interface {
	All() []tokens.PaymentTokenInfo
	RemoveFunc(del func(tokens.PaymentTokenInfo) bool) (int, error)
}

// SchedulePrefs persists the next redemption time.
type SchedulePrefs interface {
	GetTime(key string) (time.Time, error)
	SetTime(key string, t time.Time) error
}

// PaymentTokensObserver is told about redemption progress. Nil fields
// are skipped.
type PaymentTokensObserver struct {
	OnDidRedeemUnblindedPaymentTokens                 func([]tokens.PaymentTokenInfo)
	OnFailedToRedeemUnblindedPaymentTokens            func(error)
	OnWillRetryRedeemingUnblindedPaymentTokens        func(retryAt time.Time)
	OnDidRetryRedeemingUnblindedPaymentTokens         func()
	OnDidScheduleNextUnblindedPaymentTokensRedemption func(redeemAt time.Time)
}

// PaymentTokens redeems every unblinded payment token on a privacy
// jittered interval.
type PaymentTokens struct {
	serverURL  string
	sender     transport.Sender
	wallet     PaymentWallet
	pool       PaymentTokenPool
	prefs      SchedulePrefs
	interval   time.Duration
	retryDelay time.Duration
	clock      clock.Clock
	metrics    *metric.Metrics
	log        log.Logger

	timer   *timer.Timer
	backoff *timer.BackoffTimer

	mu       sync.Mutex
	ctx      context.Context
	retrying bool
	// inFlight is set while a timer driven redemption is outstanding.
	inFlight  bool
	observers []PaymentTokensObserver
}

func NewPaymentTokens(
	serverURL string,
	sender transport.Sender,
	w PaymentWallet,
	pool PaymentTokenPool,
	p SchedulePrefs,
	interval time.Duration,
	c clock.Clock,
	metrics *metric.Metrics,
	logger log.Logger,
) *PaymentTokens {
	if c == nil {
		c = clock.Real()
	}
	if metrics == nil {
		metrics = metric.NoOp()
	}
	if logger == nil {
		logger = log.NoLog
	}
	return &PaymentTokens{
		serverURL:  serverURL,
		sender:     sender,
		wallet:     w,
		pool:       pool,
		prefs:      p,
		interval:   interval,
		retryDelay: DefaultRetryDelay,
		clock:      c,
		metrics:    metrics,
		log:        logger.With(log.String("component", "redeem_payment_tokens")),
		timer:      timer.New(c),
		backoff:    timer.NewBackoff(c),
		ctx:        context.Background(),
	}
}

func (p *PaymentTokens) AddObserver(o PaymentTokensObserver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, o)
}

// SetRand replaces the jitter source of both timers.
func (p *PaymentTokens) SetRand(f timer.RandFunc) {
	p.timer.SetRand(f)
	p.backoff.SetRand(f)
}

// SetRetryDelay sets the initial backoff.
func (p *PaymentTokens) SetRetryDelay(d time.Duration) {
	p.retryDelay = d
}

// SetMaxBackoffDelay caps the retry delay.
func (p *PaymentTokens) SetMaxBackoffDelay(d time.Duration) {
	p.backoff.SetMaxBackoffDelay(d)
}

// MaybeRedeemAfterDelay schedules the next redemption at the stored time,
// picking and storing a jittered time first if none is stored. It does
// nothing while a redemption or retry is pending.
func (p *PaymentTokens) MaybeRedeemAfterDelay(ctx context.Context) {
	p.mu.Lock()
	p.ctx = ctx
	inFlight := p.inFlight
	p.mu.Unlock()

	if inFlight || p.timer.IsRunning() || p.backoff.IsRunning() {
		return
	}

	redeemAt, err := p.prefs.GetTime(prefs.NextTokenRedemptionAt)
	if err != nil {
		p.log.Warn("failed to read next redemption time", log.Error(err))
	}
	if redeemAt.IsZero() {
		redeemAt = p.scheduleNext()
	}

	delay := redeemAt.Sub(p.clock.Now())
	if delay < 0 {
		delay = 0
	}
	p.timer.Start(delay, p.redeemFromTimer)
	p.log.Info("scheduled payment token redemption", log.Time("redeem_at", redeemAt))
}

// Stop cancels pending redemptions. The stored schedule is kept.
func (p *PaymentTokens) Stop() {
	p.timer.Stop()
	p.backoff.Stop()
}

// IsRetrying reports whether a retry is pending.
func (p *PaymentTokens) IsRetrying() bool {
	return p.backoff.IsRunning()
}

// Redeem redeems every pooled payment token now.
func (p *PaymentTokens) Redeem(ctx context.Context) ([]tokens.PaymentTokenInfo, error) {
	w, err := p.wallet.Get()
	if err != nil {
		return nil, terminal(err)
	}
	pending := p.pool.All()
	if len(pending) == 0 {
		return nil, ErrNoPaymentTokens
	}

	req, err := buildRedeemRequest(p.serverURL, w.PaymentID, pending)
	if err != nil {
		return nil, terminal(err)
	}
	resp, err := p.sender.Send(ctx, req)
	if err != nil {
		return nil, retry(err)
	}
	if resp.IsUnauthorized() {
		p.wallet.Disconnect()
		return nil, terminal(ErrAccessTokenExpired)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classify(resp)
	}

	redeemed := make(map[string]bool, len(pending))
	for _, t := range pending {
		redeemed[t.TransactionID] = true
	}
	if _, err := p.pool.RemoveFunc(func(t tokens.PaymentTokenInfo) bool { return redeemed[t.TransactionID] }); err != nil {
		return nil, retry(fmt.Errorf("remove redeemed tokens: %w", err))
	}
	return pending, nil
}

func (p *PaymentTokens) redeemFromTimer() {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	ctx := p.ctx
	wasRetrying := p.retrying
	p.retrying = false
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight = false
		p.mu.Unlock()
	}()

	redeemed, err := p.Redeem(ctx)
	observers := p.snapshotObservers()

	switch {
	case err == nil || errors.Is(err, ErrNoPaymentTokens):
		p.backoff.Stop()
		if err == nil {
			p.metrics.PaymentTokensRedeemed.Add(float64(len(redeemed)))
			p.log.Info("redeemed unblinded payment tokens", log.Int("count", len(redeemed)))
		} else {
			p.log.Info("no unblinded payment tokens to redeem")
		}
		for _, o := range observers {
			if wasRetrying && o.OnDidRetryRedeemingUnblindedPaymentTokens != nil {
				o.OnDidRetryRedeemingUnblindedPaymentTokens()
			}
			if err == nil && o.OnDidRedeemUnblindedPaymentTokens != nil {
				o.OnDidRedeemUnblindedPaymentTokens(redeemed)
			}
		}
		p.scheduleNextAndStart()

	default:
		p.log.Warn("failed to redeem unblinded payment tokens", log.Error(err))
		for _, o := range observers {
			if o.OnFailedToRedeemUnblindedPaymentTokens != nil {
				o.OnFailedToRedeemUnblindedPaymentTokens(err)
			}
		}

		var rerr *Error
		if errors.As(err, &rerr) && !rerr.ShouldRetry {
			return
		}
		retryAt := p.backoff.StartWithPrivacy(p.retryDelay, func() {
			p.mu.Lock()
			p.retrying = true
			p.mu.Unlock()
			p.redeemFromTimer()
		})
		p.log.Info("retry redeeming unblinded payment tokens", log.Time("retry_at", retryAt))
		for _, o := range observers {
			if o.OnWillRetryRedeemingUnblindedPaymentTokens != nil {
				o.OnWillRetryRedeemingUnblindedPaymentTokens(retryAt)
			}
		}
	}
}

func (p *PaymentTokens) scheduleNext() time.Time {
	redeemAt := p.clock.Now().Add(p.timer.PrivacyDelay(p.interval))
	if err := p.prefs.SetTime(prefs.NextTokenRedemptionAt, redeemAt); err != nil {
		p.log.Warn("failed to persist next redemption time", log.Error(err))
	}
	for _, o := range p.snapshotObservers() {
		if o.OnDidScheduleNextUnblindedPaymentTokensRedemption != nil {
			o.OnDidScheduleNextUnblindedPaymentTokensRedemption(redeemAt)
		}
	}
	return redeemAt
}

func (p *PaymentTokens) scheduleNextAndStart() {
	redeemAt := p.scheduleNext()
	p.timer.Start(redeemAt.Sub(p.clock.Now()), p.redeemFromTimer)
}

func (p *PaymentTokens) snapshotObservers() []PaymentTokensObserver {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PaymentTokensObserver(nil), p.observers...)
}

type paymentCredential struct {
	Credential struct {
		Signature string `json:"signature"`
		Preimage  string `json:"t"`
	} `json:"credential"`
	PublicKey        string `json:"publicKey"`
	ConfirmationType string `json:"confirmationType"`
}

type redeemRequest struct {
	Payload            string              `json:"payload"`
	PaymentCredentials []paymentCredential `json:"paymentCredentials"`
}

func buildRedeemRequest(serverURL, paymentID string, pending []tokens.PaymentTokenInfo) (transport.Request, error) {
	payload, err := json.Marshal(map[string]string{"paymentId": paymentID})
	if err != nil {
		return transport.Request{}, err
	}

	body := redeemRequest{Payload: string(payload)}
	for _, t := range pending {
		key, err := t.UnblindedToken.DeriveVerificationKey()
		if err != nil {
			return transport.Request{}, err
		}
		signature, err := key.Sign(body.Payload)
		if err != nil {
			return transport.Request{}, err
		}
		preimage, err := t.UnblindedToken.Preimage()
		if err != nil {
			return transport.Request{}, err
		}

		var pc paymentCredential
		pc.Credential.Signature = signature.EncodeBase64()
		pc.Credential.Preimage = preimage.EncodeBase64()
		pc.PublicKey = t.PublicKey.EncodeBase64()
		pc.ConfirmationType = string(t.ConfirmationType)
		body.PaymentCredentials = append(body.PaymentCredentials, pc)
	}

	return transport.NewJSONRequest(
		http.MethodPut,
		fmt.Sprintf("%s/v3/confirmation/payment/%s", serverURL, url.PathEscape(paymentID)),
		body,
	)
}
