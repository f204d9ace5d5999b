// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cbr

// PublicKey is X = k*G, the issuer public key a signing key commits to.
type PublicKey struct {
	raw string
}

// PublicKeyFromBase64 decodes a base64 encoded compressed point.
func PublicKeyFromBase64(s string) (PublicKey, error) {
	b, err := decodeBase64(s, pointLength)
	if err != nil {
		return PublicKey{}, err
	}
	if _, err := decodePoint(b); err != nil {
		return PublicKey{}, err
	}
	return PublicKey{raw: string(b)}, nil
}

// HasValue reports whether the value was successfully constructed.
func (v PublicKey) HasValue() bool {
	return v.raw != ""
}

// EncodeBase64 returns the base64 encoding, or "" without a value.
func (v PublicKey) EncodeBase64() string {
	return encodeBase64(v.raw)
}

// Equal compares canonical encodings.
func (v PublicKey) Equal(other PublicKey) bool {
	return v.EncodeBase64() == other.EncodeBase64()
}

func (v PublicKey) String() string {
	return v.EncodeBase64()
}

func (v PublicKey) bytes() []byte {
	return []byte(v.raw)
}
