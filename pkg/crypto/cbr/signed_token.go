// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cbr

// SignedToken is Q = k*P, an issuer signature over a blinded token.
type SignedToken struct {
	raw string
}

// SignedTokenFromBase64 decodes a base64 encoded compressed point.
func SignedTokenFromBase64(s string) (SignedToken, error) {
	b, err := decodeBase64(s, pointLength)
	if err != nil {
		return SignedToken{}, err
	}
	if _, err := decodePoint(b); err != nil {
		return SignedToken{}, err
	}
	return SignedToken{raw: string(b)}, nil
}

// HasValue reports whether the value was successfully constructed.
func (v SignedToken) HasValue() bool {
	return v.raw != ""
}

// EncodeBase64 returns the base64 encoding, or "" without a value.
func (v SignedToken) EncodeBase64() string {
	return encodeBase64(v.raw)
}

// Equal compares canonical encodings.
func (v SignedToken) Equal(other SignedToken) bool {
	return v.EncodeBase64() == other.EncodeBase64()
}

func (v SignedToken) String() string {
	return v.EncodeBase64()
}

func (v SignedToken) bytes() []byte {
	return []byte(v.raw)
}

// EncodeSignedTokens encodes each signed token in order.
func EncodeSignedTokens(signed []SignedToken) []string {
	encoded := make([]string, 0, len(signed))
	for _, s := range signed {
		encoded = append(encoded, s.EncodeBase64())
	}
	return encoded
}

// DecodeSignedTokens decodes a list of base64 signed tokens, failing on the
// first invalid entry.
func DecodeSignedTokens(encoded []string) ([]SignedToken, error) {
	signed := make([]SignedToken, 0, len(encoded))
	for _, s := range encoded {
		t, err := SignedTokenFromBase64(s)
		if err != nil {
			return nil, err
		}
		signed = append(signed, t)
	}
	return signed, nil
}
