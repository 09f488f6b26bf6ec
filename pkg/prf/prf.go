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

// Package prf implements the passkey derivation method using the
// WebAuthn PRF extension (CTAP2 hmac-secret). A discoverable credential
// on a platform authenticator evaluates a keyed PRF over a stored salt;
// the output is expanded through HKDF into the AEAD key protecting the
// account private key.
//
// The determinism contract: the same physical authenticator, the same
// credential and the same evaluation salt always produce the same
// derived key. The salt is therefore non-secret but load-bearing and is
// persisted alongside the credential ID.
package prf

import (
	"context"

	"github.com/go-webauthn/webauthn/protocol"
)

const (
	// PRFSaltSize is the PRF evaluation salt size in bytes, per the
	// hmac-secret extension.
	PRFSaltSize = 32

	// PRFOutputSize is the PRF output size in bytes (HMAC-SHA256).
	PRFOutputSize = 32
)

// Capabilities describes what the local authenticator stack supports.
type Capabilities struct {
	// PlatformAuthenticator reports whether a platform (built-in)
	// authenticator is present.
	PlatformAuthenticator bool

	// PRF reports whether the PRF / hmac-secret extension is supported.
	PRF bool

	// UserVerification reports whether the authenticator can verify the
	// user (biometric or device PIN).
	UserVerification bool
}

// MakeCredentialRequest asks the authenticator to create a new
// discoverable credential with the PRF extension enabled.
type MakeCredentialRequest struct {
	// RelyingParty identifies the application.
	RelyingParty protocol.RelyingPartyEntity

	// User identifies the account on the authenticator.
	User protocol.UserEntity

	// RequireUserVerification requests the UV flag.
	RequireUserVerification bool
}

// MakeCredentialResponse is the result of credential creation.
type MakeCredentialResponse struct {
	// CredentialID is the authenticator-assigned credential identifier.
	CredentialID []byte

	// PRFEnabled reports whether the PRF extension was enabled on the
	// new credential. A credential created without it can never be used
	// for key derivation.
	PRFEnabled bool
}

// GetAssertionRequest asks the authenticator for an assertion with a
// PRF evaluation.
type GetAssertionRequest struct {
	// RelyingPartyID scopes the assertion.
	RelyingPartyID string

	// AllowList restricts which credentials may answer.
	AllowList []protocol.CredentialDescriptor

	// PRFEvalSalt is the evaluation salt. Must be PRFSaltSize bytes.
	PRFEvalSalt []byte

	// RequireUserVerification requests the UV flag.
	RequireUserVerification bool
}

// GetAssertionResponse is the result of an assertion.
type GetAssertionResponse struct {
	// CredentialID identifies the credential that answered.
	CredentialID []byte

	// PRFOutput is the PRF evaluation result, PRFOutputSize bytes.
	// Secret; the caller must zeroize it.
	PRFOutput []byte

	// UserPresent and UserVerified mirror the authenticator data flags.
	UserPresent  bool
	UserVerified bool
}

// Authenticator abstracts the platform authenticator stack. Production
// builds bind a CTAP2/platform implementation; tests use
// MockAuthenticator. The context carries the user-interaction deadline;
// implementations must return context.Canceled when the prompt is
// dismissed.
type Authenticator interface {
	// Capabilities reports what the authenticator supports. Never
	// blocks on user interaction.
	Capabilities() *Capabilities

	// MakeCredential creates a new discoverable credential.
	MakeCredential(ctx context.Context, req *MakeCredentialRequest) (*MakeCredentialResponse, error)

	// GetAssertion performs an assertion with PRF evaluation.
	GetAssertion(ctx context.Context, req *GetAssertionRequest) (*GetAssertionResponse, error)
}

// CheckSupport verifies the authenticator can serve the passkey method.
// Returns ErrUnsupportedPlatform when it cannot; the caller should
// offer the passphrase method instead.
func CheckSupport(auth Authenticator) error {
	if auth == nil {
		return ErrUnsupportedPlatform
	}
	caps := auth.Capabilities()
	if caps == nil || !caps.PlatformAuthenticator || !caps.PRF {
		return ErrUnsupportedPlatform
	}
	return nil
}
