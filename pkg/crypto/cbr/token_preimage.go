// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cbr

import "github.com/gtank/ristretto255"

// TokenPreimage is the 64 byte random value t a token is derived from.
type TokenPreimage struct {
	raw string
}

// TokenPreimageFromBase64 decodes a base64 encoded preimage.
func TokenPreimageFromBase64(s string) (TokenPreimage, error) {
	b, err := decodeBase64(s, preimageLength)
	if err != nil {
		return TokenPreimage{}, err
	}
	return TokenPreimage{raw: string(b)}, nil
}

// HasValue reports whether the preimage was successfully constructed.
func (t TokenPreimage) HasValue() bool {
	return t.raw != ""
}

// EncodeBase64 returns the base64 encoding, or "" without a value.
func (t TokenPreimage) EncodeBase64() string {
	return encodeBase64(t.raw)
}

// Equal compares canonical encodings.
func (t TokenPreimage) Equal(other TokenPreimage) bool {
	return t.EncodeBase64() == other.EncodeBase64()
}

func (t TokenPreimage) String() string {
	return t.EncodeBase64()
}

func (t TokenPreimage) bytes() []byte {
	return []byte(t.raw)
}

func (t TokenPreimage) point() *ristretto255.Element {
	return hashToPoint(t.bytes())
}
