// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sandbox

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/luxfi/ads/pkg/crypto/cbr"
	"github.com/luxfi/ads/pkg/log"
	"github.com/luxfi/ads/pkg/wallet"
)

// MaximumTokensPerRequest bounds one refill.
const MaximumTokensPerRequest = 100

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

func (s *Server) handleRequestSignedTokens(w http.ResponseWriter, r *http.Request) {
	paymentID := mux.Vars(r)["paymentId"]
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	publicKey, ok := s.wallets[paymentID]
	s.mu.Unlock()
	if !ok || !wallet.VerifyRequest(publicKey, r.Header, body) {
		writeError(w, http.StatusUnauthorized, "invalid request signature")
		return
	}

	var req struct {
		BlindedTokens []string `json:"blindedTokens"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.BlindedTokens) == 0 || len(req.BlindedTokens) > MaximumTokensPerRequest {
		writeError(w, http.StatusBadRequest, "invalid number of blinded tokens")
		return
	}
	blinded, err := cbr.DecodeBlindedTokens(req.BlindedTokens)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	signed, err := s.confirmationsKey.SignTokens(blinded)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	proof, err := cbr.NewBatchDLEQProof(blinded, signed, s.confirmationsKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	nonce := newID()
	s.mu.Lock()
	s.nonces[nonce] = pendingTokens{paymentID: paymentID, proof: proof, signed: signed}
	s.mu.Unlock()

	s.log.Debug("signed confirmation tokens", log.String("payment_id", paymentID), log.Int("count", len(signed)))
	writeJSON(w, http.StatusCreated, map[string]string{"nonce": nonce})
}

func (s *Server) handleGetSignedTokens(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.mu.Lock()
	pending, ok := s.nonces[vars["nonce"]]
	s.mu.Unlock()
	if !ok || pending.paymentID != vars["paymentId"] {
		writeError(w, http.StatusNotFound, "unknown nonce")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"batchProof":   pending.proof.EncodeBase64(),
		"signedTokens": cbr.EncodeSignedTokens(pending.signed),
		"publicKey":    s.confirmationsPublicKey.EncodeBase64(),
	})
}

type confirmationPayload struct {
	TransactionID        string   `json:"transactionId"`
	CreativeInstanceID   string   `json:"creativeInstanceId"`
	Type                 string   `json:"type"`
	PublicKey            string   `json:"publicKey"`
	BlindedPaymentTokens []string `json:"blindedPaymentTokens"`
}

type credential struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
	Preimage  string `json:"t"`
}

func (s *Server) handleCreateConfirmation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	transactionID := vars["transactionId"]
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload confirmationPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.TransactionID != transactionID || payload.CreativeInstanceID == "" || payload.Type == "" {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	record := confirmationRecord{
		transactionID:      transactionID,
		creativeInstanceID: payload.CreativeInstanceID,
		confirmationType:   payload.Type,
		createdAt:          time.Now().UTC(),
	}

	var preimage string
	if encoded, ok := vars["credential"]; ok {
		raw, err := base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid credential")
			return
		}
		var cred credential
		if err := json.Unmarshal(raw, &cred); err != nil || cred.Payload != string(body) {
			writeError(w, http.StatusBadRequest, "invalid credential")
			return
		}
		if payload.PublicKey != s.confirmationsPublicKey.EncodeBase64() {
			writeError(w, http.StatusBadRequest, "unknown public key")
			return
		}
		preimage, err = verifyCredential(s.confirmationsKey, cred.Preimage, cred.Signature, cred.Payload)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		record.blinded, err = cbr.DecodeBlindedTokens(payload.BlindedPaymentTokens)
		if err != nil || len(record.blinded) == 0 {
			writeError(w, http.StatusBadRequest, "invalid blinded payment tokens")
			return
		}
	}

	s.mu.Lock()
	if _, exists := s.confirmations[transactionID]; exists {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "confirmation already exists")
		return
	}
	if preimage != "" {
		if s.spentConfirmed[preimage] {
			s.mu.Unlock()
			writeError(w, http.StatusBadRequest, errSpent.Error())
			return
		}
		s.spentConfirmed[preimage] = true
	}
	s.confirmations[transactionID] = record
	s.mu.Unlock()

	s.log.Debug("created confirmation",
		log.String("transaction_id", transactionID),
		log.String("type", payload.Type),
	)
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":                 transactionID,
		"type":               payload.Type,
		"creativeInstanceId": payload.CreativeInstanceID,
	})
}

func (s *Server) handleFetchPaymentToken(w http.ResponseWriter, r *http.Request) {
	transactionID := mux.Vars(r)["transactionId"]
	s.mu.Lock()
	record, ok := s.confirmations[transactionID]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown confirmation")
		return
	}

	resp := map[string]any{
		"id":                 record.transactionID,
		"createdAt":          record.createdAt.Format(time.RFC3339),
		"type":               record.confirmationType,
		"creativeInstanceId": record.creativeInstanceID,
	}
	if len(record.blinded) > 0 {
		signed, err := s.paymentsKey.SignTokens(record.blinded)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		proof, err := cbr.NewBatchDLEQProof(record.blinded, signed, s.paymentsKey)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["paymentToken"] = map[string]any{
			"publicKey":    s.paymentsPublicKey.EncodeBase64(),
			"batchProof":   proof.EncodeBase64(),
			"signedTokens": cbr.EncodeSignedTokens(signed),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type paymentCredential struct {
	Credential struct {
		Signature string `json:"signature"`
		Preimage  string `json:"t"`
	} `json:"credential"`
	PublicKey        string `json:"publicKey"`
	ConfirmationType string `json:"confirmationType"`
}

func (s *Server) handleRedeemPaymentTokens(w http.ResponseWriter, r *http.Request) {
	paymentID := mux.Vars(r)["paymentId"]

	var req struct {
		Payload            string              `json:"payload"`
		PaymentCredentials []paymentCredential `json:"paymentCredentials"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var payload struct {
		PaymentID string `json:"paymentId"`
	}
	if err := json.Unmarshal([]byte(req.Payload), &payload); err != nil || payload.PaymentID != paymentID {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if len(req.PaymentCredentials) == 0 {
		writeError(w, http.StatusBadRequest, "no payment credentials")
		return
	}

	preimages := make([]string, 0, len(req.PaymentCredentials))
	for _, pc := range req.PaymentCredentials {
		if pc.PublicKey != s.paymentsPublicKey.EncodeBase64() {
			writeError(w, http.StatusBadRequest, "unknown public key")
			return
		}
		preimage, err := verifyCredential(s.paymentsKey, pc.Credential.Preimage, pc.Credential.Signature, req.Payload)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		preimages = append(preimages, preimage)
	}

	s.mu.Lock()
	for _, p := range preimages {
		if s.spentPayments[p] {
			s.mu.Unlock()
			writeError(w, http.StatusConflict, errSpent.Error())
			return
		}
	}
	for _, p := range preimages {
		s.spentPayments[p] = true
		s.earnings[paymentID] = s.earnings[paymentID].Add(s.paymentValue)
	}
	s.mu.Unlock()

	s.log.Debug("redeemed payment tokens", log.String("payment_id", paymentID), log.Int("count", len(preimages)))
	writeJSON(w, http.StatusOK, map[string]string{"payload": req.Payload})
}
