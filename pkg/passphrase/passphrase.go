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

// Package passphrase implements the passphrase derivation method:
// generation of high-entropy word-group passphrases, Argon2id stretching
// and AEAD encryption of the account private key under the stretched key.
//
// The passphrase is never persisted. The ciphertext carries the KDF salt
// so decryption needs only the passphrase itself.
package passphrase

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tyler-smith/go-bip39"

	"github.com/jeremyhahn/go-keycustody/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-keycustody/pkg/crypto/aead"
	"github.com/jeremyhahn/go-keycustody/pkg/types"
)

const (
	// DefaultWordCount is the number of words in a generated passphrase.
	// Twelve words from a 2048-word list carry 128 bits of entropy.
	DefaultWordCount = 12

	// MinWordCount and MaxWordCount bound GenerateWords. The bounds
	// follow the BIP-39 entropy sizes (128 to 256 bits in 32-bit steps).
	MinWordCount = 12
	MaxWordCount = 24

	// WordSeparator joins the generated words.
	WordSeparator = "-"

	// bitsPerWord is the entropy contributed by each word drawn from a
	// 2048-word list.
	bitsPerWord = 11
)

var (
	// ErrInvalidWordCount is returned when the requested word count is
	// outside the supported range or not a multiple of three.
	ErrInvalidWordCount = errors.New("passphrase: word count must be 12, 15, 18, 21 or 24")

	// ErrWrongPassphrase is returned when decryption fails because the
	// passphrase does not match (or the ciphertext was tampered with;
	// the two are indistinguishable by construction).
	ErrWrongPassphrase = errors.New("passphrase: authentication failed")

	// ErrInvalidCiphertext is returned when the ciphertext is
	// structurally malformed and decryption was not attempted.
	ErrInvalidCiphertext = errors.New("passphrase: invalid ciphertext encoding")
)

// Generate produces a new word-group passphrase with the default word
// count, e.g. "rhythm-canvas-orbit-...". The caller owns the returned
// Password and must Clear it.
func Generate() (types.Password, error) {
	return GenerateWords(DefaultWordCount)
}

// GenerateWords produces a word-group passphrase with the given word
// count. Valid counts are the BIP-39 mnemonic lengths: 12, 15, 18, 21
// or 24 words.
func GenerateWords(count int) (types.Password, error) {
	if count < MinWordCount || count > MaxWordCount || count%3 != 0 {
		return nil, ErrInvalidWordCount
	}

	// words = (entropy + entropy/32) / 11  =>  entropy = words * 32 / 3
	entropyBits := count * 32 / 3
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return nil, fmt.Errorf("passphrase: entropy generation failed: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("passphrase: mnemonic generation failed: %w", err)
	}

	joined := strings.ReplaceAll(mnemonic, " ", WordSeparator)
	return types.NewPasswordFromString(joined)
}

// EntropyBits estimates the entropy of a word-group passphrase in bits.
// Each recognized word contributes 11 bits; the estimate assumes the
// words were drawn uniformly, so it is an upper bound for user-chosen
// phrases and exact for generated ones.
func EntropyBits(passphrase string) int {
	trimmed := strings.Trim(passphrase, WordSeparator)
	if trimmed == "" {
		return 0
	}
	words := strings.Split(trimmed, WordSeparator)
	return len(words) * bitsPerWord
}

// Encrypt seals plaintext under a key stretched from the passphrase.
// Output layout, base64 encoded:
//
//	[0:16] Argon2id salt
//	[16:]  AEAD envelope
//
// The salt is fresh per call, so encrypting the same plaintext twice
// yields unrelated ciphertexts.
func Encrypt(plaintext []byte, passphrase types.Password) (string, error) {
	salt := make([]byte, kdf.MinArgon2SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("passphrase: salt generation failed: %w", err)
	}

	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return "", err
	}
	defer types.Zeroize(key)

	envelope, err := aead.Seal(key, plaintext, salt)
	if err != nil {
		return "", fmt.Errorf("passphrase: seal failed: %w", err)
	}

	blob := make([]byte, 0, len(salt)+len(envelope))
	blob = append(blob, salt...)
	blob = append(blob, envelope...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// EncryptString seals a string plaintext. See Encrypt.
func EncryptString(plaintext string, passphrase types.Password) (string, error) {
	return Encrypt([]byte(plaintext), passphrase)
}

// Decrypt reverses Encrypt. Returns ErrWrongPassphrase when the
// passphrase does not authenticate and ErrInvalidCiphertext when the
// blob is structurally malformed. The caller owns the returned
// plaintext and must zeroize it when it holds key material.
func Decrypt(ciphertext string, passphrase types.Password) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	if len(blob) <= kdf.MinArgon2SaltLength {
		return nil, ErrInvalidCiphertext
	}

	salt := blob[:kdf.MinArgon2SaltLength]
	envelope := blob[kdf.MinArgon2SaltLength:]

	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	defer types.Zeroize(key)

	plaintext, err := aead.Open(key, envelope, salt)
	if err != nil {
		if errors.Is(err, aead.ErrAuthentication) {
			return nil, ErrWrongPassphrase
		}
		return nil, ErrInvalidCiphertext
	}

	return plaintext, nil
}

// DecryptString reverses EncryptString. See Decrypt.
func DecryptString(ciphertext string, passphrase types.Password) (string, error) {
	plaintext, err := Decrypt(ciphertext, passphrase)
	if err != nil {
		return "", err
	}
	defer types.Zeroize(plaintext)
	return string(plaintext), nil
}

// deriveKey stretches the passphrase into an AEAD key with Argon2id.
func deriveKey(passphrase types.Password, salt []byte) ([]byte, error) {
	if passphrase == nil {
		return nil, kdf.ErrInvalidIKM
	}

	ikm := passphrase.Bytes()
	if len(ikm) == 0 {
		return nil, kdf.ErrInvalidIKM
	}

	adapter := kdf.NewArgon2Adapter()
	key, err := adapter.DeriveKey(ikm, kdf.PassphraseParams(salt))
	if err != nil {
		return nil, fmt.Errorf("passphrase: key derivation failed: %w", err)
	}

	return key, nil
}
