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
	"context"
	"errors"
	"strings"

	"github.com/jeremyhahn/go-keycustody/pkg/crypto/aead"
	"github.com/jeremyhahn/go-keycustody/pkg/digest"
	"github.com/jeremyhahn/go-keycustody/pkg/keypair"
	"github.com/jeremyhahn/go-keycustody/pkg/passphrase"
	"github.com/jeremyhahn/go-keycustody/pkg/prf"
	"github.com/jeremyhahn/go-keycustody/pkg/types"
)

// methodCipher is the capability contract shared by both derivation
// methods. The switch orchestrator and unlock paths are method-agnostic
// above this interface.
type methodCipher interface {
	// method identifies the derivation method.
	method() types.DerivationMethod

	// seal encrypts the private key and stamps the record's method
	// tuple: KeyHash, EncryptedPrivateKey, DerivationMethod and the
	// method-specific fields. Fields belonging to the other method are
	// cleared.
	seal(ctx context.Context, record *types.CredentialRecord, privateKeyPEM []byte) error

	// open verifies the presented credential against KeyHash before
	// decrypting (fail fast), then returns the plaintext private key
	// PEM. The caller owns the bytes and must zeroize them.
	open(ctx context.Context, record *types.CredentialRecord) ([]byte, error)
}

// passphraseMethod derives through the passphrase cipher.
type passphraseMethod struct {
	secret types.Password
}

func (m *passphraseMethod) method() types.DerivationMethod {
	return types.MethodPassphrase
}

func (m *passphraseMethod) seal(_ context.Context, record *types.CredentialRecord, privateKeyPEM []byte) error {
	secretBytes := m.secret.Bytes()
	if secretBytes == nil {
		return types.ErrPasswordZeroed
	}
	defer types.Zeroize(secretBytes)

	keyHash, err := digest.Hash(secretBytes)
	if err != nil {
		return err
	}

	encrypted, err := passphrase.Encrypt(privateKeyPEM, m.secret)
	if err != nil {
		return err
	}

	record.KeyHash = keyHash
	record.EncryptedPrivateKey = encrypted
	record.DerivationMethod = types.MethodPassphrase
	record.PasskeyCredentialID = nil
	record.PasskeyPRFSalt = nil
	return nil
}

func (m *passphraseMethod) open(_ context.Context, record *types.CredentialRecord) ([]byte, error) {
	secretBytes := m.secret.Bytes()
	if secretBytes == nil {
		return nil, types.ErrPasswordZeroed
	}
	defer types.Zeroize(secretBytes)

	ok, err := digest.Verify(secretBytes, record.KeyHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Fail fast: no decryption attempt with a wrong passphrase.
		return nil, ErrWrongSecret
	}

	privateKeyPEM, err := passphrase.Decrypt(record.EncryptedPrivateKey, m.secret)
	if err != nil {
		if errors.Is(err, passphrase.ErrWrongPassphrase) {
			return nil, ErrWrongSecret
		}
		return nil, err
	}

	return checkPEM(privateKeyPEM)
}

// passkeyMethod derives through the WebAuthn PRF extension.
type passkeyMethod struct {
	auth      prf.Authenticator
	rpID      string
	rpName    string
	accountID string
}

func (m *passkeyMethod) method() types.DerivationMethod {
	return types.MethodPasskeyPRF
}

func (m *passkeyMethod) seal(ctx context.Context, record *types.CredentialRecord, privateKeyPEM []byte) error {
	cred, err := prf.CreateCredential(ctx, m.auth, m.rpID, m.rpName, m.accountID)
	if err != nil {
		return err
	}

	keyHash, err := digest.Hash(cred.CredentialID)
	if err != nil {
		return err
	}

	encrypted, err := prf.Encrypt(ctx, m.auth, m.rpID, cred, privateKeyPEM)
	if err != nil {
		return err
	}

	record.KeyHash = keyHash
	record.EncryptedPrivateKey = encrypted
	record.DerivationMethod = types.MethodPasskeyPRF
	record.PasskeyCredentialID = cred.CredentialID
	record.PasskeyPRFSalt = cred.PRFSalt
	// Passkey secrets live in hardware; nothing to escrow.
	record.EscrowedSecret = ""
	return nil
}

func (m *passkeyMethod) open(ctx context.Context, record *types.CredentialRecord) ([]byte, error) {
	ok, err := digest.Verify(record.PasskeyCredentialID, record.KeyHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrWrongSecret
	}

	cred := &prf.Credential{
		CredentialID: record.PasskeyCredentialID,
		PRFSalt:      record.PasskeyPRFSalt,
	}

	privateKeyPEM, err := prf.Decrypt(ctx, m.auth, m.rpID, cred, record.EncryptedPrivateKey)
	if err != nil {
		if errors.Is(err, aead.ErrAuthentication) {
			// A different physical authenticator answered: the derived
			// key is wrong even though the assertion succeeded.
			return nil, ErrWrongSecret
		}
		return nil, err
	}

	return checkPEM(privateKeyPEM)
}

// checkPEM is a cheap structural sanity check on decrypted material.
func checkPEM(privateKeyPEM []byte) ([]byte, error) {
	if !strings.HasPrefix(string(privateKeyPEM), keypair.PrivateKeyPEMHeader) {
		types.Zeroize(privateKeyPEM)
		return nil, ErrWrongSecret
	}
	return privateKeyPEM, nil
}
