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

package cli

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/jeremyhahn/go-keycustody/pkg/prf"
)

// PersistentMockAuthenticator is a development-only authenticator that
// persists credential secrets to disk so passkey unlock works across
// CLI invocations. It implements the same hmac-secret PRF semantics as
// prf.MockAuthenticator and must never be used outside local testing:
// the "hardware" secret lives in a file.
type PersistentMockAuthenticator struct {
	mu   sync.Mutex
	path string

	// credentials maps hex(credentialID) to the per-credential secret.
	credentials map[string]string
}

// NewPersistentMockAuthenticator creates the authenticator with state
// under dir.
func NewPersistentMockAuthenticator(dir string) *PersistentMockAuthenticator {
	m := &PersistentMockAuthenticator{
		path:        filepath.Join(dir, "mock-authenticator.json"),
		credentials: make(map[string]string),
	}
	m.load()
	return m
}

// Capabilities implements prf.Authenticator.
func (m *PersistentMockAuthenticator) Capabilities() *prf.Capabilities {
	return &prf.Capabilities{
		PlatformAuthenticator: true,
		PRF:                   true,
		UserVerification:      true,
	}
}

// MakeCredential implements prf.Authenticator.
func (m *PersistentMockAuthenticator) MakeCredential(ctx context.Context, req *prf.MakeCredentialRequest) (*prf.MakeCredentialResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	credentialID := make([]byte, 32)
	if _, err := rand.Read(credentialID); err != nil {
		return nil, err
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}

	m.credentials[hex.EncodeToString(credentialID)] = hex.EncodeToString(secret)
	if err := m.save(); err != nil {
		return nil, err
	}

	return &prf.MakeCredentialResponse{
		CredentialID: credentialID,
		PRFEnabled:   true,
	}, nil
}

// GetAssertion implements prf.Authenticator.
func (m *PersistentMockAuthenticator) GetAssertion(ctx context.Context, req *prf.GetAssertionRequest) (*prf.GetAssertionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, descriptor := range req.AllowList {
		secretHex, ok := m.credentials[hex.EncodeToString(descriptor.CredentialID)]
		if !ok {
			continue
		}
		secret, err := hex.DecodeString(secretHex)
		if err != nil {
			continue
		}

		resp := &prf.GetAssertionResponse{
			CredentialID: descriptor.CredentialID,
			UserPresent:  true,
			UserVerified: req.RequireUserVerification,
		}
		if len(req.PRFEvalSalt) == prf.PRFSaltSize {
			resp.PRFOutput = evaluateMockPRF(secret, req.PRFEvalSalt)
		}
		return resp, nil
	}

	return nil, prf.ErrAssertionFailed
}

// evaluateMockPRF is the CTAP2 hmac-secret PRF with the WebAuthn PRF
// salt framing, identical to the in-memory mock.
func evaluateMockPRF(credRandom, salt []byte) []byte {
	framed := sha256.New()
	framed.Write([]byte("WebAuthn PRF\x00"))
	framed.Write(salt)

	mac := hmac.New(sha256.New, credRandom)
	mac.Write(framed.Sum(nil))
	return mac.Sum(nil)
}

func (m *PersistentMockAuthenticator) load() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return
	}
	var stored map[string]string
	if err := json.Unmarshal(data, &stored); err != nil {
		return
	}
	m.credentials = stored
}

func (m *PersistentMockAuthenticator) save() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0700); err != nil {
		return err
	}
	data, err := json.Marshal(m.credentials)
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0600)
}

// Verify interface compliance at compile time
var _ prf.Authenticator = (*PersistentMockAuthenticator)(nil)
