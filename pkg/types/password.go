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

package types

import (
	"crypto/subtle"
	"errors"
)

var (
	// ErrEmptyPassword is returned when an empty password is provided.
	ErrEmptyPassword = errors.New("password cannot be empty")

	// ErrPasswordZeroed is returned when the password has been zeroed.
	ErrPasswordZeroed = errors.New("password has been zeroed")
)

// ClearPassword stores a secret in memory as cleartext and supports
// zeroization once the secret is no longer needed.
type ClearPassword struct {
	password []byte
}

// NewPassword creates a password from a byte slice. The slice is copied
// to prevent external modification. Returns an error if empty.
func NewPassword(password []byte) (Password, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	p := make([]byte, len(password))
	copy(p, password)
	return &ClearPassword{password: p}, nil
}

// NewPasswordFromString creates a password from a string.
func NewPasswordFromString(password string) (Password, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	return &ClearPassword{password: []byte(password)}, nil
}

// String returns the password as a string.
func (p *ClearPassword) String() (string, error) {
	if p.password == nil {
		return "", ErrPasswordZeroed
	}
	return string(p.password), nil
}

// Bytes returns a copy of the password bytes, or nil after Clear.
func (p *ClearPassword) Bytes() []byte {
	if p.password == nil {
		return nil
	}
	result := make([]byte, len(p.password))
	copy(result, p.password)
	return result
}

// Clear zeroizes the password in memory. Subsequent calls to String
// return ErrPasswordZeroed and Bytes returns nil.
func (p *ClearPassword) Clear() {
	if p.password != nil {
		for i := range p.password {
			p.password[i] = 0
		}
		// subtle.ConstantTimeCopy keeps the compiler from optimizing
		// the overwrite away.
		subtle.ConstantTimeCopy(1, p.password, make([]byte, len(p.password)))
		p.password = nil
	}
}

// PasswordsEqual compares two passwords in constant time.
func PasswordsEqual(a, b Password) (bool, error) {
	aBytes := a.Bytes()
	if aBytes == nil {
		return false, ErrPasswordZeroed
	}
	defer Zeroize(aBytes)

	bBytes := b.Bytes()
	if bBytes == nil {
		return false, ErrPasswordZeroed
	}
	defer Zeroize(bBytes)

	return subtle.ConstantTimeCompare(aBytes, bBytes) == 1, nil
}

// Zeroize overwrites the buffer with zeros. Callers use this on every
// exit path that held plaintext key material.
func Zeroize(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	subtle.ConstantTimeCopy(1, buf, make([]byte, len(buf)))
}

// Verify interface compliance at compile time
var _ Password = (*ClearPassword)(nil)
