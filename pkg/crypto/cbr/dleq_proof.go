// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cbr

import (
	"github.com/gtank/ristretto255"
)

// DLEQProof is a Chaum-Pedersen proof that log_G(X) == log_P(Q), i.e. that
// a signed token was produced with the key behind a public key.
type DLEQProof struct {
	raw string
}

// NewDLEQProof proves that signed = k*blinded for the given key.
func NewDLEQProof(blinded BlindedToken, signed SignedToken, key SigningKey) (DLEQProof, error) {
	if !blinded.HasValue() || !signed.HasValue() || !key.HasValue() {
		return DLEQProof{}, ErrNoValue
	}
	p, err := decodePoint(blinded.bytes())
	if err != nil {
		return DLEQProof{}, err
	}
	q, err := decodePoint(signed.bytes())
	if err != nil {
		return DLEQProof{}, err
	}
	return newDLEQProof(p, q, key)
}

func newDLEQProof(p, q *ristretto255.Element, key SigningKey) (DLEQProof, error) {
	k := key.scalar()
	g := basePoint()
	y := ristretto255.NewElement().ScalarBaseMult(k)

	t, err := randomScalar()
	if err != nil {
		return DLEQProof{}, err
	}
	a := ristretto255.NewElement().ScalarBaseMult(t)
	b := ristretto255.NewElement().ScalarMult(t, p)

	c := challenge(g, y, p, q, a, b)
	ck := ristretto255.NewScalar().Multiply(c, k)
	s := ristretto255.NewScalar().Subtract(t, ck)

	raw := make([]byte, 0, proofLength)
	raw = append(raw, encodeScalar(c)...)
	raw = append(raw, encodeScalar(s)...)
	return DLEQProof{raw: string(raw)}, nil
}

// DLEQProofFromBase64 decodes a base64 encoded proof.
func DLEQProofFromBase64(s string) (DLEQProof, error) {
	b, err := decodeBase64(s, proofLength)
	if err != nil {
		return DLEQProof{}, err
	}
	if _, err := decodeScalar(b[:scalarLength]); err != nil {
		return DLEQProof{}, err
	}
	if _, err := decodeScalar(b[scalarLength:]); err != nil {
		return DLEQProof{}, err
	}
	return DLEQProof{raw: string(b)}, nil
}

// HasValue reports whether the proof was successfully constructed.
func (d DLEQProof) HasValue() bool {
	return d.raw != ""
}

// EncodeBase64 returns the base64 encoding, or "" without a value.
func (d DLEQProof) EncodeBase64() string {
	return encodeBase64(d.raw)
}

// Equal compares canonical encodings.
func (d DLEQProof) Equal(other DLEQProof) bool {
	return d.EncodeBase64() == other.EncodeBase64()
}

// Verify checks the proof against a blinded/signed pair and public key.
func (d DLEQProof) Verify(blinded BlindedToken, signed SignedToken, publicKey PublicKey) error {
	if !d.HasValue() || !blinded.HasValue() || !signed.HasValue() || !publicKey.HasValue() {
		return ErrNoValue
	}
	p, err := decodePoint(blinded.bytes())
	if err != nil {
		return err
	}
	q, err := decodePoint(signed.bytes())
	if err != nil {
		return err
	}
	y, err := decodePoint(publicKey.bytes())
	if err != nil {
		return err
	}
	return d.verify(p, q, y)
}

func (d DLEQProof) verify(p, q, y *ristretto255.Element) error {
	c, err := decodeScalar([]byte(d.raw[:scalarLength]))
	if err != nil {
		return err
	}
	s, err := decodeScalar([]byte(d.raw[scalarLength:]))
	if err != nil {
		return err
	}
	g := basePoint()

	// A = s*G + c*Y, B = s*P + c*Q
	a := ristretto255.NewElement().Add(
		ristretto255.NewElement().ScalarBaseMult(s),
		ristretto255.NewElement().ScalarMult(c, y),
	)
	b := ristretto255.NewElement().Add(
		ristretto255.NewElement().ScalarMult(s, p),
		ristretto255.NewElement().ScalarMult(c, q),
	)

	if challenge(g, y, p, q, a, b).Equal(c) != 1 {
		return ErrVerifyFailed
	}
	return nil
}

func challenge(points ...*ristretto255.Element) *ristretto255.Scalar {
	encoded := make([][]byte, 0, len(points))
	for _, p := range points {
		encoded = append(encoded, encodePoint(p))
	}
	return scalarFromHash(encoded...)
}
