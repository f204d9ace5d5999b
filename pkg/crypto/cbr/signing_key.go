// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cbr

import (
	"github.com/gtank/ristretto255"
)

// SigningKey is the issuer secret scalar k. Only issuers hold one; clients
// use it in tests and in the sandbox issuer.
type SigningKey struct {
	raw string
}

// RandomSigningKey generates a fresh signing key.
func RandomSigningKey() (SigningKey, error) {
	k, err := randomScalar()
	if err != nil {
		return SigningKey{}, err
	}
	return SigningKey{raw: string(encodeScalar(k))}, nil
}

// SigningKeyFromBase64 decodes a base64 encoded scalar.
func SigningKeyFromBase64(s string) (SigningKey, error) {
	b, err := decodeBase64(s, scalarLength)
	if err != nil {
		return SigningKey{}, err
	}
	if _, err := decodeScalar(b); err != nil {
		return SigningKey{}, err
	}
	return SigningKey{raw: string(b)}, nil
}

// HasValue reports whether the key was successfully constructed.
func (k SigningKey) HasValue() bool {
	return k.raw != ""
}

// EncodeBase64 returns the base64 encoding, or "" without a value.
func (k SigningKey) EncodeBase64() string {
	return encodeBase64(k.raw)
}

// Equal compares canonical encodings.
func (k SigningKey) Equal(other SigningKey) bool {
	return k.EncodeBase64() == other.EncodeBase64()
}

// PublicKey returns X = k*G.
func (k SigningKey) PublicKey() (PublicKey, error) {
	if !k.HasValue() {
		return PublicKey{}, ErrNoValue
	}
	x := ristretto255.NewElement().ScalarBaseMult(k.scalar())
	return PublicKey{raw: string(encodePoint(x))}, nil
}

// Sign computes Q = k*P.
func (k SigningKey) Sign(blinded BlindedToken) (SignedToken, error) {
	if !k.HasValue() || !blinded.HasValue() {
		return SignedToken{}, ErrNoValue
	}
	p, err := decodePoint(blinded.bytes())
	if err != nil {
		return SignedToken{}, err
	}
	q := ristretto255.NewElement().ScalarMult(k.scalar(), p)
	return SignedToken{raw: string(encodePoint(q))}, nil
}

// SignTokens signs each blinded token in order.
func (k SigningKey) SignTokens(blinded []BlindedToken) ([]SignedToken, error) {
	signed := make([]SignedToken, 0, len(blinded))
	for _, b := range blinded {
		s, err := k.Sign(b)
		if err != nil {
			return nil, err
		}
		signed = append(signed, s)
	}
	return signed, nil
}

// RederiveUnblindedToken computes W = k*H(t). For a preimage whose blinded
// form this key signed, the result equals the client's unblinded token.
func (k SigningKey) RederiveUnblindedToken(preimage TokenPreimage) (UnblindedToken, error) {
	if !k.HasValue() || !preimage.HasValue() {
		return UnblindedToken{}, ErrNoValue
	}
	w := ristretto255.NewElement().ScalarMult(k.scalar(), preimage.point())

	raw := make([]byte, 0, unblindedLength)
	raw = append(raw, preimage.bytes()...)
	raw = append(raw, encodePoint(w)...)
	return UnblindedToken{raw: string(raw)}, nil
}

func (k SigningKey) scalar() *ristretto255.Scalar {
	s, err := decodeScalar([]byte(k.raw))
	if err != nil {
		panic(err)
	}
	return s
}
