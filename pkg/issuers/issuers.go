// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package issuers fetches and stores the public keys the server signs
// confirmation and payment tokens with.
package issuers

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luxfi/ads/pkg/crypto/cbr"
)

// IssuerType names a signing key set.
type IssuerType string

const (
	ConfirmationsType IssuerType = "confirmations"
	PaymentsType      IssuerType = "payments"
)

// Public key limits per issuer.
const (
	MaximumConfirmationsPublicKeys = 2
	MaximumPaymentsPublicKeys      = 3
)

var (
	ErrInvalidIssuers = errors.New("invalid issuers")
	ErrNoIssuers      = errors.New("issuers do not exist")
)

// IssuerInfo maps each base64 public key to its token value.
type IssuerInfo struct {
	Type       IssuerType                 `json:"type"`
	PublicKeys map[string]decimal.Decimal `json:"public_keys"`
}

// IssuersInfo is the full issuer set with the server requested refetch
// interval, zero if the server sent none.
type IssuersInfo struct {
	Ping    time.Duration `json:"ping"`
	Issuers []IssuerInfo  `json:"issuers"`
}

type wirePublicKey struct {
	PublicKey       string `json:"publicKey"`
	AssociatedValue string `json:"associatedValue"`
}

type wireIssuer struct {
	Name       string          `json:"name"`
	PublicKeys []wirePublicKey `json:"publicKeys"`
}

type wireIssuers struct {
	Ping    int64        `json:"ping"`
	Issuers []wireIssuer `json:"issuers"`
}

// Parse decodes a GET /v3/issuers/ response body and validates it.
func Parse(body []byte) (IssuersInfo, error) {
	var wire wireIssuers
	if err := json.Unmarshal(body, &wire); err != nil {
		return IssuersInfo{}, fmt.Errorf("%w: %v", ErrInvalidIssuers, err)
	}

	info := IssuersInfo{Ping: time.Duration(wire.Ping) * time.Millisecond}
	for _, wi := range wire.Issuers {
		issuer := IssuerInfo{
			Type:       IssuerType(wi.Name),
			PublicKeys: make(map[string]decimal.Decimal, len(wi.PublicKeys)),
		}
		for _, pk := range wi.PublicKeys {
			if _, err := cbr.PublicKeyFromBase64(pk.PublicKey); err != nil {
				return IssuersInfo{}, fmt.Errorf("%w: %s public key: %v", ErrInvalidIssuers, wi.Name, err)
			}
			value := decimal.Zero
			if pk.AssociatedValue != "" {
				v, err := decimal.NewFromString(pk.AssociatedValue)
				if err != nil {
					return IssuersInfo{}, fmt.Errorf("%w: %s associated value: %v", ErrInvalidIssuers, wi.Name, err)
				}
				value = v
			}
			issuer.PublicKeys[pk.PublicKey] = value
		}
		info.Issuers = append(info.Issuers, issuer)
	}

	if !info.IsValid() {
		return IssuersInfo{}, ErrInvalidIssuers
	}
	return info, nil
}

// MarshalWire encodes the issuers in the server response format.
func (i IssuersInfo) MarshalWire() ([]byte, error) {
	wire := wireIssuers{Ping: i.Ping.Milliseconds()}
	for _, issuer := range i.Issuers {
		wi := wireIssuer{Name: string(issuer.Type)}
		for pk, value := range issuer.PublicKeys {
			wi.PublicKeys = append(wi.PublicKeys, wirePublicKey{PublicKey: pk, AssociatedValue: value.String()})
		}
		wire.Issuers = append(wire.Issuers, wi)
	}
	return json.Marshal(wire)
}

// IsValid requires both issuer types within their public key limits.
func (i IssuersInfo) IsValid() bool {
	confirmations, ok := i.Get(ConfirmationsType)
	if !ok || len(confirmations.PublicKeys) == 0 || len(confirmations.PublicKeys) > MaximumConfirmationsPublicKeys {
		return false
	}
	payments, ok := i.Get(PaymentsType)
	if !ok || len(payments.PublicKeys) == 0 || len(payments.PublicKeys) > MaximumPaymentsPublicKeys {
		return false
	}
	return true
}

// Get returns the issuer of the given type.
func (i IssuersInfo) Get(t IssuerType) (IssuerInfo, bool) {
	for _, issuer := range i.Issuers {
		if issuer.Type == t {
			return issuer, true
		}
	}
	return IssuerInfo{}, false
}

// PublicKeyExistsForIssuerType reports whether publicKey belongs to the
// issuer of type t.
func (i IssuersInfo) PublicKeyExistsForIssuerType(t IssuerType, publicKey string) bool {
	issuer, ok := i.Get(t)
	if !ok {
		return false
	}
	_, ok = issuer.PublicKeys[publicKey]
	return ok
}

// GetValueForPublicKey returns the payment value associated with a
// payments public key.
func (i IssuersInfo) GetValueForPublicKey(publicKey string) (decimal.Decimal, bool) {
	issuer, ok := i.Get(PaymentsType)
	if !ok {
		return decimal.Zero, false
	}
	value, ok := issuer.PublicKeys[publicKey]
	return value, ok
}
