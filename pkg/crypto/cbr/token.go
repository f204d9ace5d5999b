// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cbr

import (
	"fmt"
	"io"

	"github.com/gtank/ristretto255"
)

// Token holds a preimage t together with its blinding scalar r. It never
// leaves the client.
type Token struct {
	raw string
}

// RandomToken generates a fresh token from the package random source.
func RandomToken() (Token, error) {
	var preimage [preimageLength]byte
	if _, err := io.ReadFull(randReader, preimage[:]); err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrRandomness, err)
	}
	blind, err := randomScalar()
	if err != nil {
		return Token{}, err
	}
	raw := make([]byte, 0, tokenLength)
	raw = append(raw, preimage[:]...)
	raw = append(raw, encodeScalar(blind)...)
	return Token{raw: string(raw)}, nil
}

// RandomTokens generates count fresh tokens.
func RandomTokens(count int) ([]Token, error) {
	tokens := make([]Token, 0, count)
	for i := 0; i < count; i++ {
		token, err := RandomToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// TokenFromBase64 decodes a base64 encoded token.
func TokenFromBase64(s string) (Token, error) {
	b, err := decodeBase64(s, tokenLength)
	if err != nil {
		return Token{}, err
	}
	if _, err := decodeScalar(b[preimageLength:]); err != nil {
		return Token{}, err
	}
	return Token{raw: string(b)}, nil
}

// HasValue reports whether the token was successfully constructed.
func (t Token) HasValue() bool {
	return t.raw != ""
}

// EncodeBase64 returns the base64 encoding, or "" without a value.
func (t Token) EncodeBase64() string {
	return encodeBase64(t.raw)
}

// Equal compares canonical encodings.
func (t Token) Equal(other Token) bool {
	return t.EncodeBase64() == other.EncodeBase64()
}

func (t Token) String() string {
	return t.EncodeBase64()
}

// Preimage returns the token preimage t.
func (t Token) Preimage() (TokenPreimage, error) {
	if !t.HasValue() {
		return TokenPreimage{}, ErrNoValue
	}
	return TokenPreimage{raw: t.raw[:preimageLength]}, nil
}

// Blind computes P = r*H(t).
func (t Token) Blind() (BlindedToken, error) {
	if !t.HasValue() {
		return BlindedToken{}, ErrNoValue
	}
	r := t.blind()
	p := ristretto255.NewElement().ScalarMult(r, hashToPoint([]byte(t.raw[:preimageLength])))
	return BlindedToken{raw: string(encodePoint(p))}, nil
}

// Unblind computes W = r^-1 * Q. The result is only meaningful when the
// signed token was produced from this token's blinded form, which callers
// establish with a DLEQ proof first.
func (t Token) Unblind(signed SignedToken) (UnblindedToken, error) {
	if !t.HasValue() || !signed.HasValue() {
		return UnblindedToken{}, ErrNoValue
	}
	q, err := decodePoint(signed.bytes())
	if err != nil {
		return UnblindedToken{}, err
	}
	rInv := ristretto255.NewScalar().Invert(t.blind())
	w := ristretto255.NewElement().ScalarMult(rInv, q)

	raw := make([]byte, 0, unblindedLength)
	raw = append(raw, t.raw[:preimageLength]...)
	raw = append(raw, encodePoint(w)...)
	return UnblindedToken{raw: string(raw)}, nil
}

func (t Token) blind() *ristretto255.Scalar {
	// validated at construction
	s, err := decodeScalar([]byte(t.raw[preimageLength:]))
	if err != nil {
		panic(err)
	}
	return s
}

// BlindTokens blinds each token in order.
func BlindTokens(tokens []Token) ([]BlindedToken, error) {
	blinded := make([]BlindedToken, 0, len(tokens))
	for _, token := range tokens {
		b, err := token.Blind()
		if err != nil {
			return nil, err
		}
		blinded = append(blinded, b)
	}
	return blinded, nil
}
