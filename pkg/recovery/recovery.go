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

// Package recovery implements the recovery-key escape hatch: a
// generate-once, show-once key that independently decrypts the account
// private key regardless of which derivation method is live.
//
// The key is 8 groups of 4 characters from [A-Z0-9], carrying roughly
// 165 bits of entropy, grouped for transcription onto paper. Input is
// normalized (case, separators) before validation, and format
// validation always precedes any cryptographic work.
package recovery

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/jeremyhahn/go-keycustody/pkg/digest"
	"github.com/jeremyhahn/go-keycustody/pkg/passphrase"
	"github.com/jeremyhahn/go-keycustody/pkg/types"
)

const (
	// Alphabet is the recovery key character set. Uppercase letters and
	// digits only; unambiguous to read back over the phone.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// GroupCount and GroupLength define the key shape:
	// XXXX-XXXX-XXXX-XXXX-XXXX-XXXX-XXXX-XXXX.
	GroupCount  = 8
	GroupLength = 4

	// GroupSeparator joins groups in display form.
	GroupSeparator = "-"

	keyLength = GroupCount * GroupLength
)

var (
	// ErrMalformedRecoveryKey is returned when the input cannot be a
	// recovery key at all (wrong length or alphabet after
	// normalization). No decryption was attempted.
	ErrMalformedRecoveryKey = errors.New("recovery: malformed recovery key")

	// ErrRecoveryKeyInvalid is returned when a well-formed recovery key
	// does not match the account's recovery material.
	ErrRecoveryKeyInvalid = errors.New("recovery: recovery key invalid for this account")
)

// Document is the result of recovery-key generation. RecoveryKey is
// shown to the user exactly once and never persisted; the other two
// fields go into the credential record.
type Document struct {
	// RecoveryKey is the display-form key (grouped, uppercase).
	RecoveryKey string

	// EncryptedPrivateKey is the private key ciphertext under the
	// recovery key, independent of the live derivation method.
	EncryptedPrivateKey string

	// KeyHash is the salted digest of the normalized recovery key.
	KeyHash string
}

// Generate mints a fresh recovery key and seals the private key PEM
// under it. The caller shows Document.RecoveryKey once and persists the
// rest; the plaintext key material in privateKeyPEM is not consumed and
// remains the caller's to zeroize.
func Generate(privateKeyPEM []byte) (*Document, error) {
	if len(privateKeyPEM) == 0 {
		return nil, errors.New("recovery: private key required")
	}

	raw, err := randomKey()
	if err != nil {
		return nil, err
	}

	secret, err := types.NewPasswordFromString(raw)
	if err != nil {
		return nil, err
	}
	defer secret.Clear()

	encrypted, err := passphrase.Encrypt(privateKeyPEM, secret)
	if err != nil {
		return nil, fmt.Errorf("recovery: failed to seal private key: %w", err)
	}

	keyHash, err := digest.HashString(raw)
	if err != nil {
		return nil, fmt.Errorf("recovery: failed to hash recovery key: %w", err)
	}

	return &Document{
		RecoveryKey:         Format(raw),
		EncryptedPrivateKey: encrypted,
		KeyHash:             keyHash,
	}, nil
}

// Recover decrypts the recovery ciphertext with the presented key.
// The input is normalized first; a malformed key fails with
// ErrMalformedRecoveryKey before any KDF work, and a well-formed but
// wrong key fails with ErrRecoveryKeyInvalid. The caller owns the
// returned plaintext and must zeroize it.
func Recover(encryptedPrivateKey, presentedKey string) ([]byte, error) {
	raw, err := Normalize(presentedKey)
	if err != nil {
		return nil, err
	}

	secret, err := types.NewPasswordFromString(raw)
	if err != nil {
		return nil, ErrMalformedRecoveryKey
	}
	defer secret.Clear()

	plaintext, err := passphrase.Decrypt(encryptedPrivateKey, secret)
	if err != nil {
		if errors.Is(err, passphrase.ErrWrongPassphrase) {
			return nil, ErrRecoveryKeyInvalid
		}
		return nil, err
	}

	return plaintext, nil
}

// Verify checks a presented key against the stored digest without
// decrypting anything. Used to fail fast before KDF-heavy decryption.
func Verify(presentedKey, keyHash string) (bool, error) {
	raw, err := Normalize(presentedKey)
	if err != nil {
		return false, err
	}
	return digest.VerifyString(raw, keyHash)
}

// Normalize canonicalizes user input: uppercases and strips separators
// and whitespace, then validates shape and alphabet. Returns the raw
// 32-character key.
func Normalize(presentedKey string) (string, error) {
	var b strings.Builder
	b.Grow(keyLength)

	for _, r := range strings.ToUpper(presentedKey) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == ' ' || r == '\t':
			// separator noise from transcription
		default:
			return "", ErrMalformedRecoveryKey
		}
	}

	raw := b.String()
	if len(raw) != keyLength {
		return "", ErrMalformedRecoveryKey
	}

	return raw, nil
}

// ValidateFormat reports whether the input normalizes to a well-formed
// recovery key.
func ValidateFormat(presentedKey string) bool {
	_, err := Normalize(presentedKey)
	return err == nil
}

// Format renders a raw key in grouped display form.
func Format(raw string) string {
	groups := make([]string, 0, GroupCount)
	for i := 0; i < len(raw); i += GroupLength {
		end := i + GroupLength
		if end > len(raw) {
			end = len(raw)
		}
		groups = append(groups, raw[i:end])
	}
	return strings.Join(groups, GroupSeparator)
}

// randomKey draws keyLength characters uniformly from Alphabet.
func randomKey() (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	buf := make([]byte, keyLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("recovery: entropy source failed: %w", err)
		}
		buf[i] = Alphabet[n.Int64()]
	}
	return string(buf), nil
}
