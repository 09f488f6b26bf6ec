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

// Package digest provides salted one-way digests with constant-time
// verification for credential identifiers: the passphrase, the passkey
// credential ID and the recovery key are all verified against a digest
// before any decryption is attempted (fail fast).
//
// Digests are Argon2id in PHC string format:
//
//	$argon2id$v=19$m=65536,t=3,p=4$<base64 salt>$<base64 hash>
//
// Every digest carries its own random salt, so identical inputs produce
// different digests and precomputation attacks against the digest table
// are not possible.
package digest

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// SaltLength is the per-digest random salt length in bytes.
	SaltLength = 16

	// HashLength is the digest output length in bytes.
	HashLength = 32

	// Argon2id cost parameters, aligned with the KDF passphrase profile.
	memory  = 64 * 1024
	time    = 3
	threads = 4

	phcPrefix = "$argon2id$"
)

var (
	// ErrInvalidDigest is returned when a digest string cannot be parsed.
	ErrInvalidDigest = errors.New("digest: invalid digest format")

	// ErrEmptyValue is returned when the value to hash is empty.
	ErrEmptyValue = errors.New("digest: value cannot be empty")
)

// Hash computes a salted Argon2id digest of value and returns it in PHC
// string format. The salt is freshly generated per call.
func Hash(value []byte) (string, error) {
	if len(value) == 0 {
		return "", ErrEmptyValue
	}

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("digest: salt generation failed: %w", err)
	}

	return hashWithSalt(value, salt), nil
}

// HashString computes a salted digest of a string value.
func HashString(value string) (string, error) {
	return Hash([]byte(value))
}

func hashWithSalt(value, salt []byte) string {
	sum := argon2.IDKey(value, salt, time, memory, threads, HashLength)
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		phcPrefix,
		argon2.Version,
		memory, time, threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	)
}

// Verify recomputes the digest of value using the parameters and salt
// embedded in encoded and compares in constant time. Returns false with
// no error for a well-formed digest that does not match.
func Verify(value []byte, encoded string) (bool, error) {
	params, salt, sum, err := decode(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey(value, salt, params.time, params.memory, params.threads, uint32(len(sum)))
	return subtle.ConstantTimeCompare(candidate, sum) == 1, nil
}

// VerifyString verifies a string value against an encoded digest.
func VerifyString(value, encoded string) (bool, error) {
	return Verify([]byte(value), encoded)
}

type phcParams struct {
	memory  uint32
	time    uint32
	threads uint8
}

// decode parses a PHC-format Argon2id digest string.
func decode(encoded string) (*phcParams, []byte, []byte, error) {
	if !strings.HasPrefix(encoded, phcPrefix) {
		return nil, nil, nil, ErrInvalidDigest
	}

	// $argon2id$v=19$m=...,t=...,p=...$salt$hash
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, nil, nil, ErrInvalidDigest
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, nil, ErrInvalidDigest
	}
	if version != argon2.Version {
		return nil, nil, nil, ErrInvalidDigest
	}

	params := &phcParams{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d",
		&params.memory, &params.time, &params.threads); err != nil {
		return nil, nil, nil, ErrInvalidDigest
	}
	if params.memory == 0 || params.time == 0 || params.threads == 0 {
		return nil, nil, nil, ErrInvalidDigest
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return nil, nil, nil, ErrInvalidDigest
	}

	sum, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(sum) == 0 {
		return nil, nil, nil, ErrInvalidDigest
	}

	return params, salt, sum, nil
}
