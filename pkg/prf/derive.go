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

package prf

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/uuid"

	"github.com/jeremyhahn/go-keycustody/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-keycustody/pkg/crypto/aead"
	"github.com/jeremyhahn/go-keycustody/pkg/types"
)

// hkdfInfo domain-separates PRF-derived AEAD keys from any other HKDF
// use of the same output.
var hkdfInfo = []byte("go-keycustody/prf/v1")

// Credential is the non-secret reference to a passkey PRF credential:
// everything needed to re-derive the symmetric key, minus the physical
// authenticator itself.
type Credential struct {
	// CredentialID is the authenticator-assigned credential identifier.
	CredentialID []byte

	// PRFSalt is the evaluation salt fixed at creation time. Changing
	// it changes the derived key, so it is persisted verbatim.
	PRFSalt []byte
}

// CreateCredential creates a discoverable PRF-enabled credential for
// the account and fixes its evaluation salt. The authenticator will
// prompt for user verification.
func CreateCredential(ctx context.Context, auth Authenticator, rpID, rpName, accountID string) (*Credential, error) {
	if err := CheckSupport(auth); err != nil {
		return nil, err
	}

	userID := []byte(uuid.NewSHA1(uuid.NameSpaceURL, []byte(rpID+"/"+accountID)).String())

	req := &MakeCredentialRequest{
		RelyingParty: protocol.RelyingPartyEntity{
			CredentialEntity: protocol.CredentialEntity{Name: rpName},
			ID:               rpID,
		},
		User: protocol.UserEntity{
			CredentialEntity: protocol.CredentialEntity{Name: accountID},
			DisplayName:      accountID,
			ID:               userID,
		},
		RequireUserVerification: true,
	}

	resp, err := auth.MakeCredential(ctx, req)
	if err != nil {
		return nil, mapAuthenticatorError(err)
	}
	if !resp.PRFEnabled {
		// Credential exists but cannot derive keys; treat as platform
		// incapability so the caller falls back to passphrase.
		return nil, ErrUnsupportedPlatform
	}

	salt := make([]byte, PRFSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("prf: salt generation failed: %w", err)
	}

	return &Credential{
		CredentialID: resp.CredentialID,
		PRFSalt:      salt,
	}, nil
}

// DeriveKey performs an assertion against the credential and expands
// the PRF output into a 32-byte AEAD key. Deterministic for a fixed
// authenticator, credential and salt. The caller owns the key and must
// zeroize it.
func DeriveKey(ctx context.Context, auth Authenticator, rpID string, cred *Credential) ([]byte, error) {
	if cred == nil || len(cred.CredentialID) == 0 || len(cred.PRFSalt) != PRFSaltSize {
		return nil, ErrAssertionFailed
	}

	req := &GetAssertionRequest{
		RelyingPartyID: rpID,
		AllowList: []protocol.CredentialDescriptor{
			{
				Type:         protocol.PublicKeyCredentialType,
				CredentialID: cred.CredentialID,
			},
		},
		PRFEvalSalt:             cred.PRFSalt,
		RequireUserVerification: true,
	}

	resp, err := auth.GetAssertion(ctx, req)
	if err != nil {
		return nil, mapAuthenticatorError(err)
	}
	if len(resp.PRFOutput) == 0 {
		return nil, ErrNoPRFOutput
	}
	if len(resp.PRFOutput) != PRFOutputSize {
		return nil, ErrInvalidPRFOutput
	}
	defer types.Zeroize(resp.PRFOutput)

	adapter := kdf.NewHKDFAdapter()
	key, err := adapter.DeriveKey(resp.PRFOutput, kdf.ExpandParams(cred.PRFSalt, hkdfInfo))
	if err != nil {
		return nil, fmt.Errorf("prf: key expansion failed: %w", err)
	}

	return key, nil
}

// Encrypt asserts against the credential and seals plaintext under the
// derived key. The ciphertext is structurally identical to one produced
// by the passphrase cipher's inner envelope.
func Encrypt(ctx context.Context, auth Authenticator, rpID string, cred *Credential, plaintext []byte) (string, error) {
	key, err := DeriveKey(ctx, auth, rpID, cred)
	if err != nil {
		return "", err
	}
	defer types.Zeroize(key)

	envelope, err := aead.Seal(key, plaintext, cred.CredentialID)
	if err != nil {
		return "", fmt.Errorf("prf: seal failed: %w", err)
	}

	return base64.StdEncoding.EncodeToString(envelope), nil
}

// Decrypt asserts against the credential and opens a ciphertext
// produced by Encrypt. Returns aead.ErrAuthentication when the derived
// key does not match (wrong authenticator or tampered data).
func Decrypt(ctx context.Context, auth Authenticator, rpID string, cred *Credential, ciphertext string) ([]byte, error) {
	envelope, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, aead.ErrInvalidEnvelope
	}

	key, err := DeriveKey(ctx, auth, rpID, cred)
	if err != nil {
		return nil, err
	}
	defer types.Zeroize(key)

	return aead.Open(key, envelope, cred.CredentialID)
}

// mapAuthenticatorError normalizes authenticator failures into the
// package sentinels, preserving cancellation semantics.
func mapAuthenticatorError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrAssertionCancelled
	case errors.Is(err, ErrAssertionCancelled),
		errors.Is(err, ErrUnsupportedPlatform),
		errors.Is(err, ErrNoPRFOutput):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrAssertionFailed, err)
	}
}
