// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package confirmation builds confirmations for ad events and queues them
// for redemption.
package confirmation

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/luxfi/ads/pkg/core"
	"github.com/luxfi/ads/pkg/crypto/cbr"
	"github.com/luxfi/ads/pkg/tokens"
)

var (
	ErrNoConfirmationTokens = errors.New("no confirmation tokens")
	ErrInvalidConfirmation  = errors.New("invalid confirmation")
)

// RewardInfo is the token material of a rewarded confirmation. Token and
// BlindedToken are the payment token being bought; ConfirmationToken is
// the token spent to buy it.
type RewardInfo struct {
	Token             cbr.Token
	BlindedToken      cbr.BlindedToken
	ConfirmationToken tokens.ConfirmationTokenInfo
	Credential        string
}

// ConfirmationInfo is one confirmation on its way to the server.
// WasCreated is set once the server accepted it, so retries go straight
// to fetching the payment token.
type ConfirmationInfo struct {
	TransactionID      string
	CreativeInstanceID string
	Type               core.ConfirmationType
	AdType             core.AdType
	CreatedAt          time.Time
	Platform           string
	WasCreated         bool
	Reward             *RewardInfo
}

// IsValid reports whether the confirmation can be sent.
func (c ConfirmationInfo) IsValid() bool {
	if c.TransactionID == "" || c.CreativeInstanceID == "" || c.Type == "" || c.AdType == "" {
		return false
	}
	if c.Reward == nil {
		return true
	}
	return c.Reward.Token.HasValue() &&
		c.Reward.BlindedToken.HasValue() &&
		c.Reward.ConfirmationToken.UnblindedToken.HasValue() &&
		c.Reward.Credential != ""
}

// Payload is the body of the create confirmation request.
type Payload struct {
	TransactionID        string   `json:"transactionId"`
	CreativeInstanceID   string   `json:"creativeInstanceId"`
	Type                 string   `json:"type"`
	Platform             string   `json:"platform,omitempty"`
	PublicKey            string   `json:"publicKey,omitempty"`
	BlindedPaymentTokens []string `json:"blindedPaymentTokens,omitempty"`
}

// BuildPayload returns the JSON payload the credential signs.
func BuildPayload(c ConfirmationInfo) (string, error) {
	p := Payload{
		TransactionID:      c.TransactionID,
		CreativeInstanceID: c.CreativeInstanceID,
		Type:               string(c.Type),
		Platform:           c.Platform,
	}
	if c.Reward != nil {
		p.PublicKey = c.Reward.ConfirmationToken.PublicKey.EncodeBase64()
		p.BlindedPaymentTokens = []string{c.Reward.BlindedToken.EncodeBase64()}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Credential proves possession of a confirmation token over a payload.
type Credential struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
	Preimage  string `json:"t"`
}

// BuildCredential signs payload with the verification key derived from
// the confirmation token and returns it base64url encoded.
func BuildCredential(token cbr.UnblindedToken, payload string) (string, error) {
	key, err := token.DeriveVerificationKey()
	if err != nil {
		return "", err
	}
	signature, err := key.Sign(payload)
	if err != nil {
		return "", err
	}
	preimage, err := token.Preimage()
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(Credential{
		Payload:   payload,
		Signature: signature.EncodeBase64(),
		Preimage:  preimage.EncodeBase64(),
	})
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// ParseCredential decodes a base64url credential.
func ParseCredential(s string) (Credential, error) {
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return Credential{}, fmt.Errorf("decode credential: %w", err)
	}
	var c Credential
	if err := json.Unmarshal(raw, &c); err != nil {
		return Credential{}, fmt.Errorf("decode credential: %w", err)
	}
	return c, nil
}

// TokenSource hands out confirmation tokens.
type TokenSource interface {
	Take() (tokens.ConfirmationTokenInfo, bool, error)
}

// Build creates a confirmation for ad. Rewarded confirmations spend one
// confirmation token and blind a fresh payment token.
func Build(ad core.AdInfo, confirmationType core.ConfirmationType, platform string, rewarded bool, source TokenSource, now time.Time) (ConfirmationInfo, error) {
	c := ConfirmationInfo{
		TransactionID:      uuid.NewString(),
		CreativeInstanceID: ad.CreativeInstanceID,
		Type:               confirmationType,
		AdType:             ad.Type,
		CreatedAt:          now,
		Platform:           platform,
	}
	if !rewarded {
		return c, nil
	}

	confirmationToken, ok, err := source.Take()
	if err != nil {
		return ConfirmationInfo{}, err
	}
	if !ok {
		return ConfirmationInfo{}, ErrNoConfirmationTokens
	}

	token, err := cbr.RandomToken()
	if err != nil {
		return ConfirmationInfo{}, err
	}
	blinded, err := token.Blind()
	if err != nil {
		return ConfirmationInfo{}, err
	}
	c.Reward = &RewardInfo{Token: token, BlindedToken: blinded, ConfirmationToken: confirmationToken}

	payload, err := BuildPayload(c)
	if err != nil {
		return ConfirmationInfo{}, err
	}
	credential, err := BuildCredential(confirmationToken.UnblindedToken, payload)
	if err != nil {
		return ConfirmationInfo{}, err
	}
	c.Reward.Credential = credential
	return c, nil
}

type rewardJSON struct {
	Token             string                       `json:"token"`
	BlindedToken      string                       `json:"blinded_token"`
	ConfirmationToken tokens.ConfirmationTokenInfo `json:"confirmation_token"`
	Credential        string                       `json:"credential"`
}

type confirmationJSON struct {
	TransactionID      string      `json:"transaction_id"`
	CreativeInstanceID string      `json:"creative_instance_id"`
	Type               string      `json:"type"`
	AdType             string      `json:"ad_type"`
	CreatedAt          time.Time   `json:"created_at"`
	Platform           string      `json:"platform,omitempty"`
	WasCreated         bool        `json:"was_created"`
	Reward             *rewardJSON `json:"reward,omitempty"`
}

func (c ConfirmationInfo) MarshalJSON() ([]byte, error) {
	raw := confirmationJSON{
		TransactionID:      c.TransactionID,
		CreativeInstanceID: c.CreativeInstanceID,
		Type:               string(c.Type),
		AdType:             string(c.AdType),
		CreatedAt:          c.CreatedAt,
		Platform:           c.Platform,
		WasCreated:         c.WasCreated,
	}
	if c.Reward != nil {
		raw.Reward = &rewardJSON{
			Token:             c.Reward.Token.EncodeBase64(),
			BlindedToken:      c.Reward.BlindedToken.EncodeBase64(),
			ConfirmationToken: c.Reward.ConfirmationToken,
			Credential:        c.Reward.Credential,
		}
	}
	return json.Marshal(raw)
}

func (c *ConfirmationInfo) UnmarshalJSON(data []byte) error {
	var raw confirmationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := ConfirmationInfo{
		TransactionID:      raw.TransactionID,
		CreativeInstanceID: raw.CreativeInstanceID,
		Type:               core.ConfirmationType(raw.Type),
		AdType:             core.AdType(raw.AdType),
		CreatedAt:          raw.CreatedAt,
		Platform:           raw.Platform,
		WasCreated:         raw.WasCreated,
	}
	if raw.Reward != nil {
		token, err := cbr.TokenFromBase64(raw.Reward.Token)
		if err != nil {
			return fmt.Errorf("token: %w", err)
		}
		blinded, err := cbr.BlindedTokenFromBase64(raw.Reward.BlindedToken)
		if err != nil {
			return fmt.Errorf("blinded token: %w", err)
		}
		out.Reward = &RewardInfo{
			Token:             token,
			BlindedToken:      blinded,
			ConfirmationToken: raw.Reward.ConfirmationToken,
			Credential:        raw.Reward.Credential,
		}
	}
	*c = out
	return nil
}
