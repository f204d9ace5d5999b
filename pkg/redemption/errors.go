// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package redemption

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/luxfi/ads/pkg/transport"
)

var (
	ErrAccessTokenExpired = errors.New("access token expired")
	ErrUnexpectedStatus   = errors.New("unexpected response status")
	ErrInvalidResponse    = errors.New("invalid response")
	ErrUnknownPublicKey   = errors.New("public key is not a payments issuer key")
	ErrVerificationFailed = errors.New("payment token proof did not verify")
)

// Error is a classified redemption failure.
type Error struct {
	Err error

	// ShouldRetry is false for failures a later attempt cannot fix.
	ShouldRetry bool

	// ShouldBackoff asks the caller to wait longer than its usual retry.
	ShouldBackoff bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v (should_retry=%t, should_backoff=%t)", e.Err, e.ShouldRetry, e.ShouldBackoff)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports ShouldRetry.
func (e *Error) Retryable() bool {
	return e.ShouldRetry
}

func retry(err error) *Error {
	return &Error{Err: err, ShouldRetry: true, ShouldBackoff: true}
}

func terminal(err error) *Error {
	return &Error{Err: err}
}

// classify maps a non success response to an Error. Callers handle 401
// and 403 before calling it.
func classify(resp transport.Response) *Error {
	err := fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return terminal(err)
	case resp.StatusCode == http.StatusNotFound:
		return retry(err)
	case resp.StatusCode >= 500:
		return retry(err)
	default:
		return &Error{Err: err, ShouldRetry: true}
	}
}
