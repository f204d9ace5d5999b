// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cbr

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func issue(t *testing.T, key SigningKey, count int) ([]Token, []BlindedToken, []SignedToken) {
	t.Helper()
	require := require.New(t)

	tokens, err := RandomTokens(count)
	require.NoError(err)
	blinded, err := BlindTokens(tokens)
	require.NoError(err)
	signed, err := key.SignTokens(blinded)
	require.NoError(err)
	return tokens, blinded, signed
}

func TestTokenRoundTrip(t *testing.T) {
	require := require.New(t)

	token, err := RandomToken()
	require.NoError(err)
	require.True(token.HasValue())

	decoded, err := TokenFromBase64(token.EncodeBase64())
	require.NoError(err)
	require.True(decoded.Equal(token))

	preimage, err := token.Preimage()
	require.NoError(err)
	decodedPreimage, err := TokenPreimageFromBase64(preimage.EncodeBase64())
	require.NoError(err)
	require.True(decodedPreimage.Equal(preimage))

	blinded, err := token.Blind()
	require.NoError(err)
	decodedBlinded, err := BlindedTokenFromBase64(blinded.EncodeBase64())
	require.NoError(err)
	require.True(decodedBlinded.Equal(blinded))
}

func TestDecodeFailuresHaveNoValue(t *testing.T) {
	require := require.New(t)

	for _, input := range []string{"", "not base64!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		token, err := TokenFromBase64(input)
		require.Error(err)
		require.False(token.HasValue())
		require.Empty(token.EncodeBase64())

		blinded, err := BlindedTokenFromBase64(input)
		require.Error(err)
		require.False(blinded.HasValue())

		unblinded, err := UnblindedTokenFromBase64(input)
		require.Error(err)
		require.False(unblinded.HasValue())

		key, err := SigningKeyFromBase64(input)
		require.Error(err)
		require.False(key.HasValue())
	}

	_, err := TokenFromBase64("")
	require.ErrorIs(err, ErrEmpty)
}

func TestInvalidPointIsRejected(t *testing.T) {
	require := require.New(t)

	// all 0xff is not a canonical ristretto255 encoding
	raw := make([]byte, pointLength)
	for i := range raw {
		raw[i] = 0xff
	}
	_, err := BlindedTokenFromBase64(base64.StdEncoding.EncodeToString(raw))
	require.ErrorIs(err, ErrInvalidEncoding)
}

func TestZeroValuesCompareEqual(t *testing.T) {
	require := require.New(t)

	bad1, _ := TokenFromBase64("garbage")
	bad2, _ := TokenFromBase64("")
	require.True(bad1.Equal(bad2))

	token, err := RandomToken()
	require.NoError(err)
	require.False(token.Equal(bad1))
}

func TestZeroValueOperationsFail(t *testing.T) {
	require := require.New(t)

	_, err := Token{}.Blind()
	require.ErrorIs(err, ErrNoValue)
	_, err = SigningKey{}.Sign(BlindedToken{})
	require.ErrorIs(err, ErrNoValue)
	_, err = UnblindedToken{}.DeriveVerificationKey()
	require.ErrorIs(err, ErrNoValue)
	_, err = VerificationKey{}.Sign("message")
	require.ErrorIs(err, ErrNoValue)
	require.False(VerificationKey{}.Verify(VerificationSignature{}, "message"))
}

func TestUnblindMatchesRederive(t *testing.T) {
	require := require.New(t)

	key, err := RandomSigningKey()
	require.NoError(err)

	tokens, _, signed := issue(t, key, 3)
	for i, token := range tokens {
		unblinded, err := token.Unblind(signed[i])
		require.NoError(err)

		preimage, err := unblinded.Preimage()
		require.NoError(err)
		rederived, err := key.RederiveUnblindedToken(preimage)
		require.NoError(err)
		require.True(rederived.Equal(unblinded))

		again, err := key.RederiveUnblindedToken(preimage)
		require.NoError(err)
		require.True(again.Equal(rederived))
	}
}

func TestVerificationSignature(t *testing.T) {
	require := require.New(t)

	key, err := RandomSigningKey()
	require.NoError(err)
	tokens, _, signed := issue(t, key, 1)

	unblinded, err := tokens[0].Unblind(signed[0])
	require.NoError(err)
	clientKey, err := unblinded.DeriveVerificationKey()
	require.NoError(err)

	signature, err := clientKey.Sign(`{"type":"view"}`)
	require.NoError(err)

	decoded, err := VerificationSignatureFromBase64(signature.EncodeBase64())
	require.NoError(err)
	require.True(decoded.Equal(signature))

	preimage, err := unblinded.Preimage()
	require.NoError(err)
	rederived, err := key.RederiveUnblindedToken(preimage)
	require.NoError(err)
	issuerKey, err := rederived.DeriveVerificationKey()
	require.NoError(err)

	require.True(issuerKey.Verify(decoded, `{"type":"view"}`))
	require.False(issuerKey.Verify(decoded, `{"type":"click"}`))

	otherKey, err := RandomSigningKey()
	require.NoError(err)
	wrong, err := otherKey.RederiveUnblindedToken(preimage)
	require.NoError(err)
	wrongKey, err := wrong.DeriveVerificationKey()
	require.NoError(err)
	require.False(wrongKey.Verify(decoded, `{"type":"view"}`))
}

func TestDLEQProof(t *testing.T) {
	require := require.New(t)

	key, err := RandomSigningKey()
	require.NoError(err)
	publicKey, err := key.PublicKey()
	require.NoError(err)
	_, blinded, signed := issue(t, key, 1)

	proof, err := NewDLEQProof(blinded[0], signed[0], key)
	require.NoError(err)
	require.NoError(proof.Verify(blinded[0], signed[0], publicKey))

	decoded, err := DLEQProofFromBase64(proof.EncodeBase64())
	require.NoError(err)
	require.NoError(decoded.Verify(blinded[0], signed[0], publicKey))

	otherKey, err := RandomSigningKey()
	require.NoError(err)
	otherPublicKey, err := otherKey.PublicKey()
	require.NoError(err)
	require.ErrorIs(proof.Verify(blinded[0], signed[0], otherPublicKey), ErrVerifyFailed)
}

func TestBatchDLEQProofVerifyAndUnblind(t *testing.T) {
	require := require.New(t)

	key, err := RandomSigningKey()
	require.NoError(err)
	publicKey, err := key.PublicKey()
	require.NoError(err)
	tokens, blinded, signed := issue(t, key, 5)

	proof, err := NewBatchDLEQProof(blinded, signed, key)
	require.NoError(err)

	decoded, err := BatchDLEQProofFromBase64(proof.EncodeBase64())
	require.NoError(err)

	unblinded, err := decoded.VerifyAndUnblind(tokens, blinded, signed, publicKey)
	require.NoError(err)
	require.Len(unblinded, 5)

	for i, u := range unblinded {
		expected, err := tokens[i].Unblind(signed[i])
		require.NoError(err)
		require.True(expected.Equal(u))
	}
}

func TestBatchDLEQProofRejectsTampering(t *testing.T) {
	require := require.New(t)

	key, err := RandomSigningKey()
	require.NoError(err)
	publicKey, err := key.PublicKey()
	require.NoError(err)
	tokens, blinded, signed := issue(t, key, 3)

	proof, err := NewBatchDLEQProof(blinded, signed, key)
	require.NoError(err)

	// a token signed by a different key cannot ride along in the batch
	otherKey, err := RandomSigningKey()
	require.NoError(err)
	forged, err := otherKey.Sign(blinded[1])
	require.NoError(err)
	tampered := []SignedToken{signed[0], forged, signed[2]}

	unblinded, err := proof.VerifyAndUnblind(tokens, blinded, tampered, publicKey)
	require.ErrorIs(err, ErrVerifyFailed)
	require.Nil(unblinded)

	_, err = proof.VerifyAndUnblind(tokens[:2], blinded, signed, publicKey)
	require.ErrorIs(err, ErrLengthMismatch)

	_, err = proof.VerifyAndUnblind(tokens, blinded, signed[:2], publicKey)
	require.ErrorIs(err, ErrLengthMismatch)
}

func TestSigningKeyRoundTrip(t *testing.T) {
	require := require.New(t)

	key, err := RandomSigningKey()
	require.NoError(err)
	decoded, err := SigningKeyFromBase64(key.EncodeBase64())
	require.NoError(err)
	require.True(decoded.Equal(key))

	pk1, err := key.PublicKey()
	require.NoError(err)
	pk2, err := decoded.PublicKey()
	require.NoError(err)
	require.True(pk1.Equal(pk2))

	decodedPublicKey, err := PublicKeyFromBase64(pk1.EncodeBase64())
	require.NoError(err)
	require.True(decodedPublicKey.Equal(pk1))
}
