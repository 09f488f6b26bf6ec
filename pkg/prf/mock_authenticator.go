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
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// prfSaltPrefix is the WebAuthn PRF input framing: the evaluation salt
// is hashed as SHA-256("WebAuthn PRF" || 0x00 || salt) before the
// hmac-secret PRF is applied, so browser-visible PRF inputs can never
// collide with raw hmac-secret salts.
var prfSaltPrefix = []byte("WebAuthn PRF\x00")

// MockAuthenticator simulates a platform authenticator with PRF
// support. Each credential carries an independent random CredRandom
// secret, and the PRF is the real CTAP2 hmac-secret construction:
// HMAC-SHA256(CredRandom, SHA-256("WebAuthn PRF" || 0x00 || salt)).
//
// Determinism matches hardware: the same mock instance, credential and
// salt always produce the same output; a second mock instance never
// reproduces the first one's keys.
type MockAuthenticator struct {
	mu sync.Mutex

	// credentials maps hex(credentialID) to the per-credential secret.
	credentials map[string][]byte

	capabilities Capabilities

	// CancelNext makes the next MakeCredential or GetAssertion behave
	// as if the user dismissed the prompt.
	CancelNext bool

	// OmitPRFOutput makes assertions succeed without a PRF evaluation,
	// as an authenticator without hmac-secret would.
	OmitPRFOutput bool
}

// MockOption configures a MockAuthenticator.
type MockOption func(*MockAuthenticator)

// WithoutPRF simulates a platform authenticator lacking the PRF
// extension.
func WithoutPRF() MockOption {
	return func(m *MockAuthenticator) {
		m.capabilities.PRF = false
	}
}

// WithoutPlatformAuthenticator simulates a host with no built-in
// authenticator.
func WithoutPlatformAuthenticator() MockOption {
	return func(m *MockAuthenticator) {
		m.capabilities.PlatformAuthenticator = false
	}
}

// NewMockAuthenticator creates a mock with full PRF capabilities.
func NewMockAuthenticator(opts ...MockOption) *MockAuthenticator {
	m := &MockAuthenticator{
		credentials: make(map[string][]byte),
		capabilities: Capabilities{
			PlatformAuthenticator: true,
			PRF:                   true,
			UserVerification:      true,
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Capabilities implements Authenticator.
func (m *MockAuthenticator) Capabilities() *Capabilities {
	caps := m.capabilities
	return &caps
}

// MakeCredential implements Authenticator. It mints a random credential
// ID and an independent CredRandom secret.
func (m *MockAuthenticator) MakeCredential(ctx context.Context, req *MakeCredentialRequest) (*MakeCredentialResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CancelNext {
		m.CancelNext = false
		return nil, ErrAssertionCancelled
	}

	credentialID := make([]byte, 32)
	if _, err := rand.Read(credentialID); err != nil {
		return nil, err
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}

	m.credentials[hex.EncodeToString(credentialID)] = secret

	return &MakeCredentialResponse{
		CredentialID: credentialID,
		PRFEnabled:   m.capabilities.PRF,
	}, nil
}

// GetAssertion implements Authenticator.
func (m *MockAuthenticator) GetAssertion(ctx context.Context, req *GetAssertionRequest) (*GetAssertionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CancelNext {
		m.CancelNext = false
		return nil, ErrAssertionCancelled
	}

	var credentialID, secret []byte
	for _, descriptor := range req.AllowList {
		if s, ok := m.credentials[hex.EncodeToString(descriptor.CredentialID)]; ok {
			credentialID = descriptor.CredentialID
			secret = s
			break
		}
	}
	if secret == nil {
		return nil, ErrAssertionFailed
	}

	resp := &GetAssertionResponse{
		CredentialID: credentialID,
		UserPresent:  true,
		UserVerified: req.RequireUserVerification,
	}

	if !m.OmitPRFOutput && m.capabilities.PRF && len(req.PRFEvalSalt) == PRFSaltSize {
		resp.PRFOutput = evaluatePRF(secret, req.PRFEvalSalt)
	}

	return resp, nil
}

// RemoveCredential deletes a credential, simulating the user removing
// the passkey from the authenticator.
func (m *MockAuthenticator) RemoveCredential(credentialID []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.credentials, hex.EncodeToString(credentialID))
}

// evaluatePRF is the CTAP2 hmac-secret PRF with the WebAuthn PRF salt
// framing.
func evaluatePRF(credRandom, salt []byte) []byte {
	framed := sha256.New()
	framed.Write(prfSaltPrefix)
	framed.Write(salt)

	mac := hmac.New(sha256.New, credRandom)
	mac.Write(framed.Sum(nil))
	return mac.Sum(nil)
}

// Verify interface compliance at compile time
var _ Authenticator = (*MockAuthenticator)(nil)
