// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wallet holds the rewards wallet identity and signs server
// requests with it.
package wallet

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/hkdf"

	"github.com/luxfi/ads/pkg/log"
)

const (
	DigestHeader    = "Digest"
	SignatureHeader = "Signature"

	keyID = "primary"
)

// seedSalt is the HKDF salt applied to recovery seeds.
var seedSalt = []byte{
	126, 244, 99, 158, 51, 68, 253, 80, 133, 183, 51, 180, 77, 62, 74, 252,
	62, 106, 96, 125, 241, 110, 134, 87, 190, 208, 158, 84, 125, 69, 246, 207,
	162, 247, 107, 172, 37, 34, 53, 246, 105, 20, 215, 5, 248, 154, 179, 191,
	46, 17, 6, 72, 210, 91, 10, 169, 145, 248, 22, 147, 117, 24, 105, 12,
}

var (
	ErrInvalidSeed      = errors.New("invalid recovery seed")
	ErrInvalidWallet    = errors.New("invalid wallet")
	ErrNotConnected     = errors.New("wallet is not connected")
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// WalletInfo is a connected wallet.
type WalletInfo struct {
	PaymentID string
	PublicKey ed25519.PublicKey
	SecretKey ed25519.PrivateKey
}

// IsValid reports whether the wallet can sign requests.
func (w WalletInfo) IsValid() bool {
	return w.PaymentID != "" &&
		len(w.PublicKey) == ed25519.PublicKeySize &&
		len(w.SecretKey) == ed25519.PrivateKeySize
}

// PublicKeyBase64 returns the public key as the server expects it.
func (w WalletInfo) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(w.PublicKey)
}

// Sign returns the base64 ed25519 signature of message.
func (w WalletInfo) Sign(message string) (string, error) {
	if !w.IsValid() {
		return "", ErrInvalidWallet
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(w.SecretKey, []byte(message))), nil
}

// FromRecoverySeed derives the wallet key pair from a base64 recovery seed.
func FromRecoverySeed(paymentID, recoverySeed string) (WalletInfo, error) {
	if paymentID == "" {
		return WalletInfo{}, ErrInvalidWallet
	}
	seed, err := base64.StdEncoding.DecodeString(recoverySeed)
	if err != nil || len(seed) == 0 {
		return WalletInfo{}, ErrInvalidSeed
	}

	key := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(hkdf.New(sha512.New, seed, seedSalt, nil), key); err != nil {
		return WalletInfo{}, fmt.Errorf("derive key: %w", err)
	}
	secret := ed25519.NewKeyFromSeed(key)

	return WalletInfo{
		PaymentID: paymentID,
		PublicKey: secret.Public().(ed25519.PublicKey),
		SecretKey: secret,
	}, nil
}

// SignRequest sets the digest and signature headers for body.
func SignRequest(w WalletInfo, headers http.Header, body []byte) error {
	if !w.IsValid() {
		return ErrInvalidWallet
	}
	sum := sha256.Sum256(body)
	digest := "SHA-256=" + base64.StdEncoding.EncodeToString(sum[:])
	message := "digest: " + digest
	signature := ed25519.Sign(w.SecretKey, []byte(message))

	headers.Set(DigestHeader, digest)
	headers.Set(SignatureHeader, fmt.Sprintf(
		`keyId="%s",algorithm="ed25519",headers="digest",signature="%s"`,
		keyID, base64.StdEncoding.EncodeToString(signature),
	))
	return nil
}

// VerifyRequest checks the headers set by SignRequest against body.
func VerifyRequest(publicKey ed25519.PublicKey, headers http.Header, body []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	sum := sha256.Sum256(body)
	digest := "SHA-256=" + base64.StdEncoding.EncodeToString(sum[:])
	if headers.Get(DigestHeader) != digest {
		return false
	}

	var encoded string
	for _, part := range strings.Split(headers.Get(SignatureHeader), ",") {
		name, value, ok := strings.Cut(part, "=")
		if ok && name == "signature" {
			encoded = strings.Trim(value, `"`)
		}
	}
	signature, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}
	return ed25519.Verify(publicKey, []byte("digest: "+digest), signature)
}

// ParsePublicKey decodes a base64 ed25519 public key.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, ErrInvalidPublicKey
	}
	return ed25519.PublicKey(raw), nil
}

// Observer is told when the wallet connects or disconnects.
type Observer func(connected bool)

// Manager owns the current wallet.
type Manager struct {
	log log.Logger

	mu        sync.RWMutex
	wallet    WalletInfo
	observers []Observer
}

func NewManager(logger log.Logger) *Manager {
	if logger == nil {
		logger = log.NoLog
	}
	return &Manager{log: logger.With(log.String("component", "wallet"))}
}

func (m *Manager) AddObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// Connect replaces the current wallet.
func (m *Manager) Connect(paymentID, recoverySeed string) error {
	w, err := FromRecoverySeed(paymentID, recoverySeed)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.wallet = w
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	m.log.Info("wallet connected", log.String("payment_id", paymentID))
	for _, o := range observers {
		o(true)
	}
	return nil
}

// Get returns the wallet, or ErrNotConnected.
func (m *Manager) Get() (WalletInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.wallet.IsValid() {
		return WalletInfo{}, ErrNotConnected
	}
	return m.wallet, nil
}

// IsConnected reports whether a valid wallet is held.
func (m *Manager) IsConnected() bool {
	_, err := m.Get()
	return err == nil
}

// Disconnect clears the wallet. It is a no-op when not connected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if !m.wallet.IsValid() {
		m.mu.Unlock()
		return
	}
	m.wallet = WalletInfo{}
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	m.log.Warn("wallet disconnected")
	for _, o := range observers {
		o(false)
	}
}
