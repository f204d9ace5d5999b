// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cbr

import (
	"crypto/hmac"
	"crypto/sha512"
)

var requestBindingDomain = []byte("hash_request_binding")

// VerificationKey is the HMAC key both sides derive from an unblinded token.
type VerificationKey struct {
	raw string
}

// HasValue reports whether the key was successfully derived.
func (k VerificationKey) HasValue() bool {
	return k.raw != ""
}

// Sign binds message to the token.
func (k VerificationKey) Sign(message string) (VerificationSignature, error) {
	if !k.HasValue() {
		return VerificationSignature{}, ErrNoValue
	}
	return VerificationSignature{raw: string(k.mac(message))}, nil
}

// Verify reports whether signature was produced by Sign(message) under
// this key. Comparison is constant time.
func (k VerificationKey) Verify(signature VerificationSignature, message string) bool {
	if !k.HasValue() || !signature.HasValue() {
		return false
	}
	return hmac.Equal(k.mac(message), []byte(signature.raw))
}

func (k VerificationKey) mac(message string) []byte {
	m := hmac.New(sha512.New, []byte(k.raw))
	m.Write(requestBindingDomain)
	m.Write([]byte(message))
	return m.Sum(nil)
}

// VerificationSignature is an HMAC-SHA512 request binding.
type VerificationSignature struct {
	raw string
}

// VerificationSignatureFromBase64 decodes a base64 encoded signature.
func VerificationSignatureFromBase64(s string) (VerificationSignature, error) {
	b, err := decodeBase64(s, signatureLength)
	if err != nil {
		return VerificationSignature{}, err
	}
	return VerificationSignature{raw: string(b)}, nil
}

// HasValue reports whether the signature was successfully constructed.
func (s VerificationSignature) HasValue() bool {
	return s.raw != ""
}

// EncodeBase64 returns the base64 encoding, or "" without a value.
func (s VerificationSignature) EncodeBase64() string {
	return encodeBase64(s.raw)
}

// Equal compares canonical encodings.
func (s VerificationSignature) Equal(other VerificationSignature) bool {
	return s.EncodeBase64() == other.EncodeBase64()
}
