// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cbr

// BlindedToken is P = r*H(t), the only token form the issuer sees before signing.
type BlindedToken struct {
	raw string
}

// BlindedTokenFromBase64 decodes a base64 encoded compressed point.
func BlindedTokenFromBase64(s string) (BlindedToken, error) {
	b, err := decodeBase64(s, pointLength)
	if err != nil {
		return BlindedToken{}, err
	}
	if _, err := decodePoint(b); err != nil {
		return BlindedToken{}, err
	}
	return BlindedToken{raw: string(b)}, nil
}

// HasValue reports whether the value was successfully constructed.
func (v BlindedToken) HasValue() bool {
	return v.raw != ""
}

// EncodeBase64 returns the base64 encoding, or "" without a value.
func (v BlindedToken) EncodeBase64() string {
	return encodeBase64(v.raw)
}

// Equal compares canonical encodings.
func (v BlindedToken) Equal(other BlindedToken) bool {
	return v.EncodeBase64() == other.EncodeBase64()
}

func (v BlindedToken) String() string {
	return v.EncodeBase64()
}

func (v BlindedToken) bytes() []byte {
	return []byte(v.raw)
}

// EncodeBlindedTokens encodes each blinded token in order.
func EncodeBlindedTokens(blinded []BlindedToken) []string {
	encoded := make([]string, 0, len(blinded))
	for _, b := range blinded {
		encoded = append(encoded, b.EncodeBase64())
	}
	return encoded
}

// DecodeBlindedTokens decodes a list of base64 blinded tokens, failing on the
// first invalid entry.
func DecodeBlindedTokens(encoded []string) ([]BlindedToken, error) {
	blinded := make([]BlindedToken, 0, len(encoded))
	for _, s := range encoded {
		b, err := BlindedTokenFromBase64(s)
		if err != nil {
			return nil, err
		}
		blinded = append(blinded, b)
	}
	return blinded, nil
}
