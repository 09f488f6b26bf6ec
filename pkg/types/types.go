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

// Package types defines the shared domain types for go-keycustody: the
// credential record persisted by the credential store, the derivation
// method and operating mode enumerations, and the Password interface for
// zeroizable in-memory secrets.
package types

import (
	"time"
)

// DerivationMethod identifies how the symmetric key protecting the
// private key is derived. Exactly one method is live per credential
// record at any time.
type DerivationMethod string

const (
	// MethodPassphrase derives the key from a memorized passphrase via a
	// password-based KDF.
	MethodPassphrase DerivationMethod = "passphrase"

	// MethodPasskeyPRF derives the key from a WebAuthn PRF extension
	// evaluation on a platform authenticator.
	MethodPasskeyPRF DerivationMethod = "passkey-prf"
)

// String returns the string representation of the derivation method.
func (m DerivationMethod) String() string {
	return string(m)
}

// Valid reports whether the method is a known derivation method.
func (m DerivationMethod) Valid() bool {
	return m == MethodPassphrase || m == MethodPasskeyPRF
}

// Mode is the custody operating mode for an account.
type Mode string

const (
	// ModeConvenience escrows the derivation secret server-side so the
	// account can always be unlocked without user interaction. The store
	// operator could decrypt; lockout is impossible.
	ModeConvenience Mode = "convenience"

	// ModeZeroKnowledge stores no secret capable of decrypting the
	// private key on its own. Unlocking always requires user-supplied
	// material, and recovery-document generation is mandatory.
	ModeZeroKnowledge Mode = "zero-knowledge"
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}

// Valid reports whether the mode is a known operating mode.
func (m Mode) Valid() bool {
	return m == ModeConvenience || m == ModeZeroKnowledge
}

// CredentialRecord is the persisted credential material for one account.
//
// The plaintext private key never appears here. EncryptedPrivateKey is
// decryptable by exactly the live DerivationMethod's derived key;
// RecoveryEncryptedKey, when present, is decryptable by the recovery key
// independent of the live method.
type CredentialRecord struct {
	// AccountID identifies the account this record belongs to.
	AccountID string `json:"account_id"`

	// Mode is the custody operating mode.
	Mode Mode `json:"mode"`

	// KeyHash is a salted one-way digest of the live method's credential
	// (passphrase or passkey credential ID). It permits verifying a
	// presented credential before attempting decryption.
	KeyHash string `json:"key_hash"`

	// PublicKeyPEM is the account's public key in PEM encoding.
	PublicKeyPEM string `json:"public_key_pem"`

	// EncryptedPrivateKey is the private key ciphertext under the live
	// method's derived key.
	EncryptedPrivateKey string `json:"encrypted_private_key"`

	// DerivationMethod is the currently live unlock method.
	DerivationMethod DerivationMethod `json:"derivation_method"`

	// PasskeyCredentialID is the WebAuthn credential identifier.
	// Present only when DerivationMethod is MethodPasskeyPRF.
	PasskeyCredentialID []byte `json:"passkey_credential_id,omitempty"`

	// PasskeyPRFSalt is the non-secret PRF evaluation salt. It must be
	// retained so future assertions re-derive the identical symmetric
	// key from the same physical authenticator.
	PasskeyPRFSalt []byte `json:"passkey_prf_salt,omitempty"`

	// RecoveryEncryptedKey is a second, independent ciphertext of the
	// private key under the recovery key. Empty until a recovery
	// document has been generated.
	RecoveryEncryptedKey string `json:"recovery_encrypted_key,omitempty"`

	// RecoveryKeyHash is the salted digest of the recovery key, used to
	// distinguish a wrong recovery key from corrupted data before
	// attempting decryption.
	RecoveryKeyHash string `json:"recovery_key_hash,omitempty"`

	// EscrowedSecret is the plaintext passphrase, present only in
	// convenience mode.
	EscrowedSecret string `json:"escrowed_secret,omitempty"`

	// Version is the optimistic-concurrency token. Every committed
	// update increments it; updates carrying a stale version are
	// rejected by the store.
	Version uint64 `json:"version"`

	// CreatedAt is when the record was first provisioned.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the record was last committed.
	UpdatedAt time.Time `json:"updated_at"`
}

// HasRecoveryData reports whether the record carries valid recovery
// material.
func (r *CredentialRecord) HasRecoveryData() bool {
	return r.RecoveryEncryptedKey != "" && r.RecoveryKeyHash != ""
}

// Clone returns a deep copy of the record. Byte slices are copied so
// mutations of the clone cannot reach the original.
func (r *CredentialRecord) Clone() *CredentialRecord {
	clone := *r
	if r.PasskeyCredentialID != nil {
		clone.PasskeyCredentialID = make([]byte, len(r.PasskeyCredentialID))
		copy(clone.PasskeyCredentialID, r.PasskeyCredentialID)
	}
	if r.PasskeyPRFSalt != nil {
		clone.PasskeyPRFSalt = make([]byte, len(r.PasskeyPRFSalt))
		copy(clone.PasskeyPRFSalt, r.PasskeyPRFSalt)
	}
	return &clone
}

// Password provides secure access to a secret stored in memory.
// Implementations must support explicit zeroization.
type Password interface {
	// String returns the password as a string.
	String() (string, error)

	// Bytes returns a copy of the password bytes.
	Bytes() []byte

	// Clear zeroizes the password in memory. Irreversible.
	Clear()
}
