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

// Package kdf provides key derivation function adapters for go-keycustody.
//
// Two derivation profiles cover the custody flows: Argon2id stretches
// low-entropy secrets (passphrases, recovery keys) and HKDF expands
// high-entropy material (WebAuthn PRF outputs) into AEAD keys. PBKDF2 is
// retained for interoperability with records produced by older clients.
package kdf

import (
	"crypto"
	"errors"
)

// Algorithm represents the key derivation function algorithm type
type Algorithm string

const (
	// AlgorithmHKDF represents HMAC-based Extract-and-Expand Key Derivation Function (RFC 5869)
	AlgorithmHKDF Algorithm = "HKDF"

	// AlgorithmPBKDF2 represents Password-Based Key Derivation Function 2 (RFC 2898)
	AlgorithmPBKDF2 Algorithm = "PBKDF2"

	// AlgorithmArgon2id represents the Argon2id variant (hybrid of Argon2i and Argon2d)
	AlgorithmArgon2id Algorithm = "Argon2id"
)

// String returns the string representation of the KDF algorithm
func (a Algorithm) String() string {
	return string(a)
}

// Params contains parameters for key derivation
type Params struct {
	// Algorithm specifies which KDF algorithm to use
	Algorithm Algorithm

	// Salt is the cryptographic salt (random and unique per derivation
	// for passphrase use; the PRF evaluation salt for HKDF use)
	Salt []byte

	// Info is additional context and application-specific information (HKDF only)
	Info []byte

	// Iterations specifies the number of iterations (PBKDF2 only)
	Iterations int

	// Memory is the memory cost in KiB (Argon2 only)
	Memory uint32

	// Threads is the number of parallel threads (Argon2 only)
	Threads uint8

	// Time is the time cost/iterations (Argon2 only)
	Time uint32

	// KeyLength is the desired output key length in bytes
	KeyLength int

	// Hash is the hash function to use (HKDF and PBKDF2)
	Hash crypto.Hash
}

// Adapter is the interface for key derivation function adapters.
// The passphrase cipher, recovery subsystem and PRF key derivation all
// consume this interface rather than a concrete algorithm.
type Adapter interface {
	// DeriveKey derives a key from the input key material using the specified parameters
	// Returns the derived key or an error if derivation fails
	DeriveKey(ikm []byte, params *Params) ([]byte, error)

	// Algorithm returns the KDF algorithm this adapter implements
	Algorithm() Algorithm

	// ValidateParams validates the KDF parameters for this algorithm
	// Returns an error if parameters are invalid or incompatible
	ValidateParams(params *Params) error
}

// Common errors
var (
	// ErrInvalidSalt indicates the salt is invalid (nil, empty, or too short)
	ErrInvalidSalt = errors.New("kdf: invalid salt")

	// ErrInvalidKeyLength indicates the requested key length is invalid
	ErrInvalidKeyLength = errors.New("kdf: invalid key length")

	// ErrInvalidIterations indicates the iteration count is invalid
	ErrInvalidIterations = errors.New("kdf: invalid iterations")

	// ErrInvalidMemory indicates the memory cost is invalid
	ErrInvalidMemory = errors.New("kdf: invalid memory cost")

	// ErrInvalidThreads indicates the thread count is invalid
	ErrInvalidThreads = errors.New("kdf: invalid threads")

	// ErrInvalidTime indicates the time cost is invalid
	ErrInvalidTime = errors.New("kdf: invalid time cost")

	// ErrInvalidHash indicates the hash function is invalid or not supported
	ErrInvalidHash = errors.New("kdf: invalid or unsupported hash function")

	// ErrInvalidIKM indicates the input key material is invalid
	ErrInvalidIKM = errors.New("kdf: invalid input key material")

	// ErrUnsupportedAlgorithm indicates the algorithm is not supported by this adapter
	ErrUnsupportedAlgorithm = errors.New("kdf: unsupported algorithm")
)

// PassphraseParams returns the recommended Argon2id parameters for
// stretching a memorized passphrase or recovery key with the given salt.
func PassphraseParams(salt []byte) *Params {
	return &Params{
		Algorithm: AlgorithmArgon2id,
		Salt:      salt,
		Memory:    64 * 1024, // 64 MiB
		Time:      3,
		Threads:   4,
		KeyLength: 32,
	}
}

// ExpandParams returns the recommended HKDF-SHA256 parameters for
// expanding high-entropy input key material into an AEAD key.
func ExpandParams(salt, info []byte) *Params {
	return &Params{
		Algorithm: AlgorithmHKDF,
		Salt:      salt,
		Info:      info,
		KeyLength: 32,
		Hash:      crypto.SHA256,
	}
}

// DefaultParams returns recommended default parameters for each KDF algorithm
func DefaultParams(algorithm Algorithm) *Params {
	switch algorithm {
	case AlgorithmHKDF:
		return &Params{
			Algorithm: AlgorithmHKDF,
			KeyLength: 32,
			Hash:      crypto.SHA256,
		}
	case AlgorithmPBKDF2:
		return &Params{
			Algorithm:  AlgorithmPBKDF2,
			Iterations: 600000, // OWASP recommendation for PBKDF2-SHA256 (2023)
			KeyLength:  32,
			Hash:       crypto.SHA256,
		}
	case AlgorithmArgon2id:
		return &Params{
			Algorithm: AlgorithmArgon2id,
			Memory:    64 * 1024, // 64 MiB
			Time:      3,
			Threads:   4,
			KeyLength: 32,
		}
	default:
		return nil
	}
}
