// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package redemption redeems confirmations for payment tokens and payment
// tokens for earnings.
package redemption

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/luxfi/ads/pkg/confirmation"
	"github.com/luxfi/ads/pkg/crypto/cbr"
	"github.com/luxfi/ads/pkg/issuers"
	"github.com/luxfi/ads/pkg/log"
	"github.com/luxfi/ads/pkg/tokens"
	"github.com/luxfi/ads/pkg/transport"
)

// Wallet is disconnected when the server rejects the access token.
type Wallet interface {
	Disconnect()
}

// IssuersRefresher fetches issuers on demand.
type IssuersRefresher interface {
	Fetch(ctx context.Context) (issuers.IssuersInfo, error)
}

// PaymentTokenSink receives earned payment tokens.
type PaymentTokenSink interface {
	Add(tokens ...tokens.PaymentTokenInfo) error
}

// ConfirmationRedeemer creates confirmations on the server and, for
// rewarded ones, fetches and unblinds the payment token they earned.
type ConfirmationRedeemer struct {
	serverURL string
	sender    transport.Sender
	wallet    Wallet
	issuers   issuers.Store
	refresher IssuersRefresher
	sink      PaymentTokenSink
	log       log.Logger
}

func NewConfirmationRedeemer(
	serverURL string,
	sender transport.Sender,
	w Wallet,
	issuerStore issuers.Store,
	refresher IssuersRefresher,
	sink PaymentTokenSink,
	logger log.Logger,
) *ConfirmationRedeemer {
	if logger == nil {
		logger = log.NoLog
	}
	return &ConfirmationRedeemer{
		serverURL: serverURL,
		sender:    sender,
		wallet:    w,
		issuers:   issuerStore,
		refresher: refresher,
		sink:      sink,
		log:       logger.With(log.String("component", "redeem_confirmation")),
	}
}

// Redeem implements confirmation.Redeemer. Failures are *Error.
func (r *ConfirmationRedeemer) Redeem(ctx context.Context, c confirmation.ConfirmationInfo) (confirmation.ConfirmationInfo, error) {
	if !c.IsValid() {
		return c, terminal(confirmation.ErrInvalidConfirmation)
	}

	if !c.WasCreated {
		if err := r.create(ctx, c); err != nil {
			return c, err
		}
		c.WasCreated = true
		r.log.Debug("created confirmation", log.String("transaction_id", c.TransactionID))
	}

	if c.Reward == nil {
		return c, nil
	}

	token, err := r.fetchPaymentToken(ctx, c)
	if err != nil {
		return c, err
	}
	if err := r.sink.Add(token); err != nil {
		return c, retry(fmt.Errorf("store payment token: %w", err))
	}
	r.log.Info("redeemed confirmation",
		log.String("transaction_id", c.TransactionID),
		log.String("type", string(c.Type)),
	)
	return c, nil
}

func (r *ConfirmationRedeemer) create(ctx context.Context, c confirmation.ConfirmationInfo) error {
	payload, err := confirmation.BuildPayload(c)
	if err != nil {
		return terminal(err)
	}
	endpoint := fmt.Sprintf("%s/v3/confirmation/%s", r.serverURL, url.PathEscape(c.TransactionID))
	if c.Reward != nil {
		endpoint += "/" + c.Reward.Credential
	}

	req := transport.Request{
		Method:  http.MethodPost,
		URL:     endpoint,
		Headers: http.Header{"Content-Type": []string{"application/json"}},
		Body:    []byte(payload),
	}
	resp, err := r.sender.Send(ctx, req)
	if err != nil {
		return retry(err)
	}
	switch {
	case resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusConflict:
		r.log.Debug("confirmation already exists", log.String("transaction_id", c.TransactionID))
		return nil
	case resp.IsUnauthorized():
		r.wallet.Disconnect()
		return terminal(ErrAccessTokenExpired)
	default:
		return classify(resp)
	}
}

type paymentTokenResponse struct {
	ID           string `json:"id"`
	PaymentToken *struct {
		PublicKey    string   `json:"publicKey"`
		BatchProof   string   `json:"batchProof"`
		SignedTokens []string `json:"signedTokens"`
	} `json:"paymentToken"`
}

func (r *ConfirmationRedeemer) fetchPaymentToken(ctx context.Context, c confirmation.ConfirmationInfo) (tokens.PaymentTokenInfo, error) {
	resp, err := r.sender.Send(ctx, transport.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/v3/confirmation/%s/paymentToken", r.serverURL, url.PathEscape(c.TransactionID)),
	})
	if err != nil {
		return tokens.PaymentTokenInfo{}, retry(err)
	}
	if resp.IsUnauthorized() {
		r.wallet.Disconnect()
		return tokens.PaymentTokenInfo{}, terminal(ErrAccessTokenExpired)
	}
	if resp.StatusCode != http.StatusOK {
		return tokens.PaymentTokenInfo{}, classify(resp)
	}

	var body paymentTokenResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return tokens.PaymentTokenInfo{}, retry(fmt.Errorf("%w: %v", ErrInvalidResponse, err))
	}
	if body.ID != c.TransactionID || body.PaymentToken == nil {
		return tokens.PaymentTokenInfo{}, retry(fmt.Errorf("%w: missing payment token", ErrInvalidResponse))
	}

	if err := r.ensurePaymentsPublicKey(ctx, body.PaymentToken.PublicKey); err != nil {
		return tokens.PaymentTokenInfo{}, err
	}
	publicKey, err := cbr.PublicKeyFromBase64(body.PaymentToken.PublicKey)
	if err != nil {
		return tokens.PaymentTokenInfo{}, terminal(err)
	}
	proof, err := cbr.BatchDLEQProofFromBase64(body.PaymentToken.BatchProof)
	if err != nil {
		return tokens.PaymentTokenInfo{}, terminal(err)
	}
	signed, err := cbr.DecodeSignedTokens(body.PaymentToken.SignedTokens)
	if err != nil || len(signed) != 1 {
		return tokens.PaymentTokenInfo{}, terminal(fmt.Errorf("%w: signed tokens", ErrInvalidResponse))
	}
	unblinded, err := proof.VerifyAndUnblind(
		[]cbr.Token{c.Reward.Token},
		[]cbr.BlindedToken{c.Reward.BlindedToken},
		signed,
		publicKey,
	)
	if err != nil {
		return tokens.PaymentTokenInfo{}, terminal(fmt.Errorf("%w: %v", ErrVerificationFailed, err))
	}

	return tokens.PaymentTokenInfo{
		TransactionID:    c.TransactionID,
		UnblindedToken:   unblinded[0],
		PublicKey:        publicKey,
		ConfirmationType: c.Type,
		AdType:           c.AdType,
	}, nil
}

// ensurePaymentsPublicKey refreshes stale issuers once before giving up
// on an unknown key.
func (r *ConfirmationRedeemer) ensurePaymentsPublicKey(ctx context.Context, publicKey string) error {
	info, err := issuers.Load(r.issuers)
	if err == nil && info.PublicKeyExistsForIssuerType(issuers.PaymentsType, publicKey) {
		return nil
	}
	if r.refresher == nil {
		return retry(ErrUnknownPublicKey)
	}

	r.log.Info("payment token public key not found, refreshing issuers")
	info, err = r.refresher.Fetch(ctx)
	if err != nil {
		return retry(fmt.Errorf("refresh issuers: %w", err))
	}
	if !info.PublicKeyExistsForIssuerType(issuers.PaymentsType, publicKey) {
		return retry(ErrUnknownPublicKey)
	}
	return nil
}

var _ confirmation.Redeemer = (*ConfirmationRedeemer)(nil)
