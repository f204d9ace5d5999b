// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cbr

import (
	"testing"
)

func FuzzTokenFromBase64(f *testing.F) {
	token, err := RandomToken()
	if err != nil {
		f.Fatal(err)
	}
	f.Add(token.EncodeBase64())
	f.Add("")
	f.Add("AAAA")

	f.Fuzz(func(t *testing.T, s string) {
		decoded, err := TokenFromBase64(s)
		if err != nil {
			if decoded.HasValue() {
				t.Fatalf("decode error %v returned a value", err)
			}
			return
		}
		again, err := TokenFromBase64(decoded.EncodeBase64())
		if err != nil || !again.Equal(decoded) {
			t.Fatalf("round trip failed for %q", s)
		}
	})
}

func FuzzUnblindedTokenFromBase64(f *testing.F) {
	key, err := RandomSigningKey()
	if err != nil {
		f.Fatal(err)
	}
	token, err := RandomToken()
	if err != nil {
		f.Fatal(err)
	}
	preimage, _ := token.Preimage()
	unblinded, err := key.RederiveUnblindedToken(preimage)
	if err != nil {
		f.Fatal(err)
	}
	f.Add(unblinded.EncodeBase64())
	f.Add("")

	f.Fuzz(func(t *testing.T, s string) {
		decoded, err := UnblindedTokenFromBase64(s)
		if err != nil {
			return
		}
		if _, err := decoded.DeriveVerificationKey(); err != nil {
			t.Fatalf("decoded token failed to derive key: %v", err)
		}
	})
}
