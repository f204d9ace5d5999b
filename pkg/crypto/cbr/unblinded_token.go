// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cbr

import (
	"crypto/sha512"
)

var deriveKeyDomain = []byte("hash_derive_key")

// UnblindedToken is the pair (t, W) a client redeems.
type UnblindedToken struct {
	raw string
}

// UnblindedTokenFromBase64 decodes a base64 encoded unblinded token.
func UnblindedTokenFromBase64(s string) (UnblindedToken, error) {
	b, err := decodeBase64(s, unblindedLength)
	if err != nil {
		return UnblindedToken{}, err
	}
	if _, err := decodePoint(b[preimageLength:]); err != nil {
		return UnblindedToken{}, err
	}
	return UnblindedToken{raw: string(b)}, nil
}

// HasValue reports whether the token was successfully constructed.
func (u UnblindedToken) HasValue() bool {
	return u.raw != ""
}

// EncodeBase64 returns the base64 encoding, or "" without a value.
func (u UnblindedToken) EncodeBase64() string {
	return encodeBase64(u.raw)
}

// Equal compares canonical encodings.
func (u UnblindedToken) Equal(other UnblindedToken) bool {
	return u.EncodeBase64() == other.EncodeBase64()
}

func (u UnblindedToken) String() string {
	return u.EncodeBase64()
}

// Preimage returns t.
func (u UnblindedToken) Preimage() (TokenPreimage, error) {
	if !u.HasValue() {
		return TokenPreimage{}, ErrNoValue
	}
	return TokenPreimage{raw: u.raw[:preimageLength]}, nil
}

// DeriveVerificationKey derives the shared HMAC key from (t, W).
func (u UnblindedToken) DeriveVerificationKey() (VerificationKey, error) {
	if !u.HasValue() {
		return VerificationKey{}, ErrNoValue
	}
	h := sha512.New()
	h.Write(deriveKeyDomain)
	h.Write([]byte(u.raw[:preimageLength]))
	h.Write([]byte(u.raw[preimageLength:]))
	sum := h.Sum(nil)
	return VerificationKey{raw: string(sum[:keyLength])}, nil
}
