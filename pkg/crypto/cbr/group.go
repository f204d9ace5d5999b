// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cbr

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/gtank/ristretto255"
)

const (
	pointLength     = 32
	scalarLength    = 32
	preimageLength  = 64
	uniformLength   = 64
	signatureLength = 64
	keyLength       = 64
	tokenLength     = preimageLength + scalarLength
	unblindedLength = preimageLength + pointLength
	proofLength     = 2 * scalarLength
)

// randReader supplies entropy for preimages, blinding factors, keys and proof nonces.
var randReader io.Reader = rand.Reader

func randomScalar() (*ristretto255.Scalar, error) {
	var buf [uniformLength]byte
	if _, err := io.ReadFull(randReader, buf[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRandomness, err)
	}
	return ristretto255.NewScalar().FromUniformBytes(buf[:]), nil
}

func scalarFromHash(data ...[]byte) *ristretto255.Scalar {
	h := sha512.New()
	for _, d := range data {
		h.Write(d)
	}
	return ristretto255.NewScalar().FromUniformBytes(h.Sum(nil))
}

// hashToPoint maps a token preimage onto the group with SHA-512 and the
// ristretto255 uniform-bytes map.
func hashToPoint(preimage []byte) *ristretto255.Element {
	digest := sha512.Sum512(preimage)
	return ristretto255.NewElement().FromUniformBytes(digest[:])
}

func basePoint() *ristretto255.Element {
	var one [scalarLength]byte
	one[0] = 1
	s := ristretto255.NewScalar()
	if err := s.Decode(one[:]); err != nil {
		panic(err)
	}
	return ristretto255.NewElement().ScalarBaseMult(s)
}

func decodePoint(b []byte) (*ristretto255.Element, error) {
	if len(b) != pointLength {
		return nil, fmt.Errorf("%w: point must be %d bytes, got %d", ErrInvalidEncoding, pointLength, len(b))
	}
	e := ristretto255.NewElement()
	if err := e.Decode(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return e, nil
}

func decodeScalar(b []byte) (*ristretto255.Scalar, error) {
	if len(b) != scalarLength {
		return nil, fmt.Errorf("%w: scalar must be %d bytes, got %d", ErrInvalidEncoding, scalarLength, len(b))
	}
	s := ristretto255.NewScalar()
	if err := s.Decode(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return s, nil
}

func encodePoint(e *ristretto255.Element) []byte {
	return e.Encode(make([]byte, 0, pointLength))
}

func encodeScalar(s *ristretto255.Scalar) []byte {
	return s.Encode(make([]byte, 0, scalarLength))
}

func decodeBase64(s string, length int) ([]byte, error) {
	if s == "" {
		return nil, ErrEmpty
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if len(b) != length {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidEncoding, length, len(b))
	}
	return b, nil
}

func encodeBase64(raw string) string {
	if raw == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(raw))
}
