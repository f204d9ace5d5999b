// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package transport sends requests to the ads server.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/luxfi/ads/pkg/log"
)

const (
	DefaultTimeout = 10 * time.Second

	// MaxResponseSize bounds how much of a response body is read.
	MaxResponseSize = 4 << 20
)

// Request is one call to the server. URL is absolute.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

// Response carries the status and body of any completed call, including
// non 2xx responses.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsUnauthorized reports a 401 or 403, meaning the wallet access token
// expired.
func (r Response) IsUnauthorized() bool {
	return r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden
}

// DecodeJSON unmarshals the body into v.
func (r Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Sender performs requests. Errors are reserved for calls that produced no
// response at all.
type Sender interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, req Request) (Response, error)

func (f SenderFunc) Send(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// NewJSONRequest builds a request with v marshaled as the body. A nil v
// sends no body.
func NewJSONRequest(method, url string, v any) (Request, error) {
	req := Request{Method: method, URL: url, Headers: http.Header{}}
	if v == nil {
		return req, nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return Request{}, fmt.Errorf("encode request: %w", err)
	}
	req.Body = body
	req.Headers.Set("Content-Type", "application/json")
	return req, nil
}

// HTTPSender sends requests with net/http.
type HTTPSender struct {
	client    *http.Client
	userAgent string
	log       log.Logger
}

// NewHTTPSender creates a sender with the given timeout; zero means
// DefaultTimeout.
func NewHTTPSender(timeout time.Duration, userAgent string, logger log.Logger) *HTTPSender {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.NoLog
	}
	return &HTTPSender{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		log:       logger.With(log.String("component", "transport")),
	}
}

func (s *HTTPSender) Send(ctx context.Context, req Request) (Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return Response{}, err
	}
	for k, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if s.userAgent != "" {
		httpReq.Header.Set("User-Agent", s.userAgent)
	}

	s.log.Debug("sending request", log.String("method", req.Method), log.String("url", redact(req.URL)))

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: %w", req.Method, redact(req.URL), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	s.log.Debug("received response",
		log.String("url", redact(req.URL)),
		log.Int("status", resp.StatusCode),
	)
	return Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

// redact drops the query string, which may carry nonces.
func redact(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}
