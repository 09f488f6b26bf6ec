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

package keypair

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/youmark/pkcs8"
)

// ErrExportPassword is returned when an encrypted PKCS#8 export cannot
// be decrypted with the provided password.
var ErrExportPassword = errors.New("keypair: incorrect export password")

// ExportEncryptedPKCS8 re-encodes a plaintext PKCS#8 PEM private key as
// an encrypted PKCS#8 PEM block under the given password. This is the
// interchange format for moving a private key to other tooling
// (openssl-compatible); the credential store never sees this encoding.
func ExportEncryptedPKCS8(privateKeyPEM, password []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, errors.New("keypair: export password required")
	}

	key, err := ParsePrivateKeyPEM(privateKeyPEM)
	if err != nil {
		return nil, err
	}

	der, err := pkcs8.MarshalPrivateKey(key, password, nil)
	if err != nil {
		return nil, fmt.Errorf("keypair: failed to marshal encrypted PKCS#8: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: pemTypeEncryptedPrivateKey, Bytes: der}), nil
}

// ImportEncryptedPKCS8 decrypts an encrypted PKCS#8 PEM block and
// returns the plaintext PKCS#8 PEM private key. The caller owns the
// returned bytes and must zeroize them.
func ImportEncryptedPKCS8(encryptedPEM, password []byte) ([]byte, error) {
	block, _ := pem.Decode(encryptedPEM)
	if block == nil || block.Type != pemTypeEncryptedPrivateKey {
		return nil, ErrInvalidPEM
	}

	key, err := pkcs8.ParsePKCS8PrivateKey(block.Bytes, password)
	if err != nil {
		if isPasswordError(err) {
			return nil, ErrExportPassword
		}
		return nil, fmt.Errorf("keypair: failed to parse encrypted PKCS#8: %w", err)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrNotRSA
	}

	der, err := x509.MarshalPKCS8PrivateKey(rsaKey)
	if err != nil {
		return nil, fmt.Errorf("keypair: failed to marshal PKCS#8: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: pemTypePrivateKey, Bytes: der}), nil
}

// isPasswordError checks if an error from youmark/pkcs8 indicates an
// incorrect password rather than malformed data.
func isPasswordError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{
		"incorrect password",
		"asn1: structure error",
		"tags don't match",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
