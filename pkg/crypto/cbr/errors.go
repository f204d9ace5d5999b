// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cbr

import "errors"

var (
	// ErrEmpty is returned when decoding an empty base64 string.
	ErrEmpty = errors.New("cbr: empty input")
	// ErrInvalidEncoding indicates bytes that do not decode to a valid value.
	ErrInvalidEncoding = errors.New("cbr: invalid encoding")
	// ErrNoValue is returned when operating on a zero value.
	ErrNoValue = errors.New("cbr: value not initialized")
	// ErrRandomness indicates the random source failed.
	ErrRandomness = errors.New("cbr: randomness failure")
	// ErrLengthMismatch indicates batch inputs of different sizes.
	ErrLengthMismatch = errors.New("cbr: batch length mismatch")
	// ErrVerifyFailed indicates a proof or signature did not verify.
	ErrVerifyFailed = errors.New("cbr: verification failed")
)
