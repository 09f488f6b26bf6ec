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

// Package aead provides the authenticated-encryption envelope shared by
// every cipher in go-keycustody: the passphrase cipher, the PRF-derived
// cipher and the recovery cipher all seal through this package, so a
// ciphertext produced under one derivation method is structurally
// identical to one produced under another.
//
// Envelope layout:
//
//	[0]    format version (currently 0x01)
//	[1]    algorithm identifier
//	[2:14] nonce (12 bytes)
//	[14:]  ciphertext || authentication tag
//
// The algorithm is selected at seal time based on CPU capabilities
// (AES-256-GCM with AES-NI, ChaCha20-Poly1305 otherwise) and recorded in
// the envelope so decryption does not depend on the local CPU.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize is the symmetric key size in bytes for all supported
	// algorithms.
	KeySize = 32

	// NonceSize is the nonce size in bytes. Both AES-256-GCM and
	// ChaCha20-Poly1305 use 96-bit nonces.
	NonceSize = 12

	// envelopeVersion is the current envelope format version.
	envelopeVersion = 0x01

	// headerSize is version byte + algorithm byte + nonce.
	headerSize = 2 + NonceSize
)

// Algorithm identifies the AEAD cipher recorded in an envelope.
type Algorithm byte

const (
	// AES256GCM is AES-256 in Galois/Counter Mode.
	AES256GCM Algorithm = 0x01

	// ChaCha20Poly1305 is the ChaCha20-Poly1305 AEAD.
	ChaCha20Poly1305 Algorithm = 0x02
)

// String returns the algorithm name.
func (a Algorithm) String() string {
	switch a {
	case AES256GCM:
		return "aes256-gcm"
	case ChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(a))
	}
}

// newCipher constructs the AEAD primitive for the given algorithm.
func newCipher(algorithm Algorithm, key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	switch algorithm {
	case AES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case ChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, ErrInvalidEnvelope
	}
}

// Seal encrypts plaintext under key with a fresh random nonce, using the
// optimal algorithm for the local CPU, and returns the self-describing
// envelope. The additional data is authenticated but not encrypted.
func Seal(key, plaintext, additionalData []byte) ([]byte, error) {
	return SealWithAlgorithm(SelectOptimal(), key, plaintext, additionalData)
}

// SealWithAlgorithm encrypts plaintext under key using the specified
// algorithm.
func SealWithAlgorithm(algorithm Algorithm, key, plaintext, additionalData []byte) ([]byte, error) {
	aead, err := newCipher(algorithm, key)
	if err != nil {
		return nil, err
	}

	envelope := make([]byte, headerSize, headerSize+len(plaintext)+aead.Overhead())
	envelope[0] = envelopeVersion
	envelope[1] = byte(algorithm)

	nonce := envelope[2:headerSize]
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("aead: nonce generation failed: %w", err)
	}

	return aead.Seal(envelope, nonce, plaintext, additionalData), nil
}

// Open authenticates and decrypts an envelope produced by Seal.
// Returns ErrAuthentication if the key is wrong or the envelope was
// tampered with; the caller never receives unauthenticated plaintext.
func Open(key, envelope, additionalData []byte) ([]byte, error) {
	if len(envelope) < headerSize {
		return nil, ErrInvalidEnvelope
	}
	if envelope[0] != envelopeVersion {
		return nil, ErrInvalidEnvelope
	}

	algorithm := Algorithm(envelope[1])
	aead, err := newCipher(algorithm, key)
	if err != nil {
		return nil, err
	}

	nonce := envelope[2:headerSize]
	ciphertext := envelope[headerSize:]

	plaintext, err := aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		// cipher.AEAD implementations return an opaque error on tag
		// mismatch; normalize to the package sentinel.
		return nil, ErrAuthentication
	}

	return plaintext, nil
}

// EnvelopeAlgorithm reports the algorithm recorded in an envelope.
func EnvelopeAlgorithm(envelope []byte) (Algorithm, error) {
	if len(envelope) < headerSize || envelope[0] != envelopeVersion {
		return 0, ErrInvalidEnvelope
	}
	algorithm := Algorithm(envelope[1])
	switch algorithm {
	case AES256GCM, ChaCha20Poly1305:
		return algorithm, nil
	default:
		return 0, ErrInvalidEnvelope
	}
}
