// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keycustody.
//
// go-keycustody is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package aead

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := testKey(t)
	plaintext := []byte("the quick brown fox")
	additionalData := []byte("account-context")

	envelope, err := Seal(key, plaintext, additionalData)
	require.NoError(t, err)
	assert.Greater(t, len(envelope), len(plaintext))

	recovered, err := Open(key, envelope, additionalData)
	require.NoError(t, err)
	assert.Equal(t, plaintext, recovered)
}

func TestSealOpen_BothAlgorithms(t *testing.T) {
	key := testKey(t)
	plaintext := []byte("same plaintext, either cipher")

	for _, algorithm := range []Algorithm{AES256GCM, ChaCha20Poly1305} {
		envelope, err := SealWithAlgorithm(algorithm, key, plaintext, nil)
		require.NoError(t, err)

		recorded, err := EnvelopeAlgorithm(envelope)
		require.NoError(t, err)
		assert.Equal(t, algorithm, recorded)

		recovered, err := Open(key, envelope, nil)
		require.NoError(t, err)
		assert.Equal(t, plaintext, recovered)
	}
}

func TestOpen_WrongKey(t *testing.T) {
	key := testKey(t)
	envelope, err := Seal(key, []byte("plaintext"), nil)
	require.NoError(t, err)

	wrongKey := testKey(t)
	_, err = Open(wrongKey, envelope, nil)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestOpen_Tampered(t *testing.T) {
	key := testKey(t)
	envelope, err := Seal(key, []byte("plaintext"), nil)
	require.NoError(t, err)

	// Flip a bit in the ciphertext body.
	tampered := bytes.Clone(envelope)
	tampered[len(tampered)-1] ^= 0x01

	_, err = Open(key, tampered, nil)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestOpen_WrongAdditionalData(t *testing.T) {
	key := testKey(t)
	envelope, err := Seal(key, []byte("plaintext"), []byte("context-a"))
	require.NoError(t, err)

	_, err = Open(key, envelope, []byte("context-b"))
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestOpen_InvalidEnvelope(t *testing.T) {
	key := testKey(t)

	_, err := Open(key, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidEnvelope)

	_, err = Open(key, []byte{0x01}, nil)
	assert.ErrorIs(t, err, ErrInvalidEnvelope)

	// Unknown version byte.
	envelope, err := Seal(key, []byte("plaintext"), nil)
	require.NoError(t, err)
	envelope[0] = 0x7f
	_, err = Open(key, envelope, nil)
	assert.ErrorIs(t, err, ErrInvalidEnvelope)
}

func TestSeal_InvalidKeySize(t *testing.T) {
	_, err := Seal([]byte("short"), []byte("plaintext"), nil)
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestEnvelopeAlgorithm_Unknown(t *testing.T) {
	key := testKey(t)
	envelope, err := Seal(key, []byte("plaintext"), nil)
	require.NoError(t, err)

	envelope[1] = 0x7f
	_, err = EnvelopeAlgorithm(envelope)
	assert.ErrorIs(t, err, ErrInvalidEnvelope)
}

func TestSelectOptimal(t *testing.T) {
	algorithm := SelectOptimal()
	assert.Contains(t, []Algorithm{AES256GCM, ChaCha20Poly1305}, algorithm)
	if HasAESNI() {
		assert.Equal(t, AES256GCM, algorithm)
	} else {
		assert.Equal(t, ChaCha20Poly1305, algorithm)
	}
}

func TestSeal_NonceUniqueness(t *testing.T) {
	key := testKey(t)
	plaintext := []byte("same input")

	first, err := Seal(key, plaintext, nil)
	require.NoError(t, err)
	second, err := Seal(key, plaintext, nil)
	require.NoError(t, err)

	assert.NotEqual(t, first[2:headerSize], second[2:headerSize])
	assert.NotEqual(t, first, second)
}
