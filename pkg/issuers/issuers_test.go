// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package issuers

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/ads/internal/testing/fakeclock"
	"github.com/luxfi/ads/internal/testing/fixtures"
	"github.com/luxfi/ads/pkg/crypto/cbr"
	"github.com/luxfi/ads/pkg/log"
	"github.com/luxfi/ads/pkg/prefs"
	"github.com/luxfi/ads/pkg/transport"
)

func publicKey(t *testing.T) string {
	t.Helper()
	key, err := cbr.RandomSigningKey()
	require.NoError(t, err)
	pk, err := key.PublicKey()
	require.NoError(t, err)
	return pk.EncodeBase64()
}

func issuersJSON(confirmations, payments []string) string {
	body := `{"ping":7200000,"issuers":[{"name":"confirmations","publicKeys":[`
	for i, pk := range confirmations {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"publicKey":%q,"associatedValue":""}`, pk)
	}
	body += `]},{"name":"payments","publicKeys":[`
	for i, pk := range payments {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"publicKey":%q,"associatedValue":"0.1"}`, pk)
	}
	return body + `]}]}`
}

func TestParse(t *testing.T) {
	require := require.New(t)

	confirmation := publicKey(t)
	payment := publicKey(t)
	info, err := Parse([]byte(issuersJSON([]string{confirmation}, []string{payment})))
	require.NoError(err)
	require.Equal(2*time.Hour, info.Ping)
	require.True(info.IsValid())
	require.True(info.PublicKeyExistsForIssuerType(ConfirmationsType, confirmation))
	require.False(info.PublicKeyExistsForIssuerType(PaymentsType, confirmation))

	value, ok := info.GetValueForPublicKey(payment)
	require.True(ok)
	require.True(value.Equal(decimal.RequireFromString("0.1")))
	_, ok = info.GetValueForPublicKey(confirmation)
	require.False(ok)

	raw, err := info.MarshalWire()
	require.NoError(err)
	decoded, err := Parse(raw)
	require.NoError(err)
	require.Equal(info.Ping, decoded.Ping)
	require.True(decoded.PublicKeyExistsForIssuerType(PaymentsType, payment))
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"malformed":             `{"issuers":`,
		"missing payments":      `{"ping":1,"issuers":[{"name":"confirmations","publicKeys":[{"publicKey":"` + publicKey(t) + `"}]}]}`,
		"too many confirmation": issuersJSON([]string{publicKey(t), publicKey(t), publicKey(t)}, []string{publicKey(t)}),
		"bad public key":        issuersJSON([]string{"not-a-key"}, []string{publicKey(t)}),
		"no confirmation keys":  issuersJSON(nil, []string{publicKey(t)}),
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			require.ErrorIs(t, err, ErrInvalidIssuers)
		})
	}
}

func TestFetcherPersistsAndRetries(t *testing.T) {
	require := require.New(t)

	body := issuersJSON([]string{publicKey(t)}, []string{publicKey(t)})
	var calls atomic.Int32
	var fail atomic.Bool
	fail.Store(true)
	sender := transport.SenderFunc(func(_ context.Context, req transport.Request) (transport.Response, error) {
		calls.Add(1)
		require.Equal("https://ads.test/v3/issuers/", req.URL)
		if fail.Load() {
			return transport.Response{StatusCode: http.StatusInternalServerError}, nil
		}
		return transport.Response{StatusCode: http.StatusOK, Body: []byte(body)}, nil
	})

	store := prefs.NewMemory()
	clk := fakeclock.New(fixtures.Now)
	f := NewFetcher("https://ads.test", sender, store, time.Hour, clk, log.NoLog)

	var fetched, failed int
	f.AddObserver(Observer{
		OnDidFetchIssuers:      func(IssuersInfo) { fetched++ },
		OnFailedToFetchIssuers: func(error) { failed++ },
	})

	f.Start(context.Background())
	require.Equal(1, failed)
	_, err := Load(store)
	require.ErrorIs(err, ErrNoIssuers)

	next, ok := clk.NextFireTime()
	require.True(ok)
	require.Equal(RetryDelay, next.Sub(clk.Now()))

	fail.Store(false)
	clk.Advance(RetryDelay)
	require.Equal(1, fetched)

	info, err := Load(store)
	require.NoError(err)
	require.True(info.IsValid())

	next, ok = clk.NextFireTime()
	require.True(ok)
	require.Equal(2*time.Hour, next.Sub(clk.Now()))

	f.Stop()
	require.Zero(clk.Pending())
	require.Equal(int32(2), calls.Load())
}
