// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cbr implements the Challenge Bypass Ristretto blind signature
// protocol (a Privacy Pass variant over ristretto255) used to issue and
// redeem ad confirmation and payment tokens.
//
// Every type is an immutable value holding its canonical byte encoding. The
// zero value of each type reports HasValue() == false, encodes to "" and is
// rejected by every operation with ErrNoValue. Two values compare Equal when
// their base64 encodings match, which means two zero values are equal.
//
// Protocol outline:
//
//	client: t <- random preimage, r <- random scalar
//	        T = H(t), P = r*T                      (Token, BlindedToken)
//	issuer: Q = k*P, proof that log_G(X) == log_P(Q) (SignedToken, DLEQ proof)
//	client: W = r^-1 * Q                           (UnblindedToken)
//	        key = SHA512("hash_derive_key" || t || W)[:64]
//	        sig = HMAC-SHA512(key, "hash_request_binding" || message)
//	issuer: W' = k*H(t), recompute key and check sig
package cbr
