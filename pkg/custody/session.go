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

package custody

import (
	"sync"

	"github.com/jeremyhahn/go-keycustody/pkg/types"
)

// Session is the scoped holder of an unlocked private key. The key is
// exposed only through WithPrivateKey and is zeroized exactly once on
// Close, regardless of how many references to the session exist. There
// is no ambient global; consumers receive a session explicitly.
type Session struct {
	accountID string
	method    types.DerivationMethod
	mode      types.Mode

	mu            sync.Mutex
	privateKeyPEM []byte
	closed        bool
}

// newSession takes ownership of privateKeyPEM; the caller must not
// retain or zeroize it afterwards.
func newSession(accountID string, method types.DerivationMethod, mode types.Mode, privateKeyPEM []byte) *Session {
	return &Session{
		accountID:     accountID,
		method:        method,
		mode:          mode,
		privateKeyPEM: privateKeyPEM,
	}
}

// AccountID returns the account this session unlocked.
func (s *Session) AccountID() string {
	return s.accountID
}

// Method returns the derivation method that produced this session.
func (s *Session) Method() types.DerivationMethod {
	return s.method
}

// Mode returns the account's operating mode at unlock time.
func (s *Session) Mode() types.Mode {
	return s.mode
}

// WithPrivateKey invokes fn with the plaintext private key PEM. The
// bytes are valid only for the duration of the call; fn must not retain
// them. Returns ErrSessionClosed after Close.
func (s *Session) WithPrivateKey(fn func(privateKeyPEM []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	return fn(s.privateKeyPEM)
}

// Close zeroizes the private key. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	types.Zeroize(s.privateKeyPEM)
	s.privateKeyPEM = nil
	s.closed = true
}
