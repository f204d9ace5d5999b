// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cbr

import (
	"crypto/sha512"
	"fmt"

	"github.com/gtank/ristretto255"
	"golang.org/x/crypto/chacha20"
)

// BatchDLEQProof proves a whole batch of signed tokens came from one key by
// proving a single DLEQ over random linear combinations of the batch.
type BatchDLEQProof struct {
	raw string
}

// NewBatchDLEQProof proves signed[i] = k*blinded[i] for every i.
func NewBatchDLEQProof(blinded []BlindedToken, signed []SignedToken, key SigningKey) (BatchDLEQProof, error) {
	if !key.HasValue() {
		return BatchDLEQProof{}, ErrNoValue
	}
	publicKey, err := key.PublicKey()
	if err != nil {
		return BatchDLEQProof{}, err
	}
	m, z, err := composites(blinded, signed, publicKey)
	if err != nil {
		return BatchDLEQProof{}, err
	}
	proof, err := newDLEQProof(m, z, key)
	if err != nil {
		return BatchDLEQProof{}, err
	}
	return BatchDLEQProof{raw: proof.raw}, nil
}

// BatchDLEQProofFromBase64 decodes a base64 encoded batch proof.
func BatchDLEQProofFromBase64(s string) (BatchDLEQProof, error) {
	proof, err := DLEQProofFromBase64(s)
	if err != nil {
		return BatchDLEQProof{}, err
	}
	return BatchDLEQProof{raw: proof.raw}, nil
}

// HasValue reports whether the proof was successfully constructed.
func (b BatchDLEQProof) HasValue() bool {
	return b.raw != ""
}

// EncodeBase64 returns the base64 encoding, or "" without a value.
func (b BatchDLEQProof) EncodeBase64() string {
	return encodeBase64(b.raw)
}

// Equal compares canonical encodings.
func (b BatchDLEQProof) Equal(other BatchDLEQProof) bool {
	return b.EncodeBase64() == other.EncodeBase64()
}

// Verify checks the batch proof.
func (b BatchDLEQProof) Verify(blinded []BlindedToken, signed []SignedToken, publicKey PublicKey) error {
	if !b.HasValue() || !publicKey.HasValue() {
		return ErrNoValue
	}
	m, z, err := composites(blinded, signed, publicKey)
	if err != nil {
		return err
	}
	y, err := decodePoint(publicKey.bytes())
	if err != nil {
		return err
	}
	return DLEQProof{raw: b.raw}.verify(m, z, y)
}

// VerifyAndUnblind verifies the proof and, only if it holds, unblinds every
// signed token with the matching client token.
func (b BatchDLEQProof) VerifyAndUnblind(tokens []Token, blinded []BlindedToken, signed []SignedToken, publicKey PublicKey) ([]UnblindedToken, error) {
	if len(tokens) != len(blinded) {
		return nil, fmt.Errorf("%w: %d tokens, %d blinded tokens", ErrLengthMismatch, len(tokens), len(blinded))
	}
	if err := b.Verify(blinded, signed, publicKey); err != nil {
		return nil, err
	}
	unblinded := make([]UnblindedToken, 0, len(tokens))
	for i, token := range tokens {
		u, err := token.Unblind(signed[i])
		if err != nil {
			return nil, err
		}
		unblinded = append(unblinded, u)
	}
	return unblinded, nil
}

// composites derives M = sum(c_i*P_i) and Z = sum(c_i*Q_i), with the c_i
// drawn from a ChaCha20 stream seeded by a hash over the whole transcript.
func composites(blinded []BlindedToken, signed []SignedToken, publicKey PublicKey) (*ristretto255.Element, *ristretto255.Element, error) {
	if len(blinded) != len(signed) {
		return nil, nil, fmt.Errorf("%w: %d blinded, %d signed", ErrLengthMismatch, len(blinded), len(signed))
	}
	if len(blinded) == 0 {
		return nil, nil, fmt.Errorf("%w: empty batch", ErrLengthMismatch)
	}

	h := sha512.New()
	h.Write(encodePoint(basePoint()))
	h.Write(publicKey.bytes())

	ps := make([]*ristretto255.Element, 0, len(blinded))
	for _, bt := range blinded {
		if !bt.HasValue() {
			return nil, nil, ErrNoValue
		}
		p, err := decodePoint(bt.bytes())
		if err != nil {
			return nil, nil, err
		}
		h.Write(bt.bytes())
		ps = append(ps, p)
	}
	qs := make([]*ristretto255.Element, 0, len(signed))
	for _, st := range signed {
		if !st.HasValue() {
			return nil, nil, ErrNoValue
		}
		q, err := decodePoint(st.bytes())
		if err != nil {
			return nil, nil, err
		}
		h.Write(st.bytes())
		qs = append(qs, q)
	}
	seed := h.Sum(nil)[:chacha20.KeySize]

	var nonce [chacha20.NonceSize]byte
	stream, err := chacha20.NewUnauthenticatedCipher(seed, nonce[:])
	if err != nil {
		return nil, nil, err
	}

	m := ristretto255.NewElement()
	z := ristretto255.NewElement()
	buf := make([]byte, uniformLength)
	for i := range ps {
		clear(buf)
		stream.XORKeyStream(buf, buf)
		c := ristretto255.NewScalar().FromUniformBytes(buf)
		m.Add(m, ristretto255.NewElement().ScalarMult(c, ps[i]))
		z.Add(z, ristretto255.NewElement().ScalarMult(c, qs[i]))
	}
	return m, z, nil
}
