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

package credstore

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/jeremyhahn/go-keycustody/pkg/validation"
)

// RecoveryMaterial is what the recovery flow may learn about an
// account: the recovery ciphertext and recovery key digest. It is
// returned for every well-formed account ID, so the response shape
// never reveals whether the account exists.
type RecoveryMaterial struct {
	// EncryptedPrivateKey is the recovery ciphertext of the private
	// key (or a decoy).
	EncryptedPrivateKey string

	// KeyHash is the salted digest of the recovery key (or a decoy
	// that no input can satisfy).
	KeyHash string
}

// RecoveryLookup returns the recovery material for an account. Unknown
// accounts and accounts without recovery data yield a deterministic
// decoy: structurally valid material whose digest no recovery key can
// match, so the caller performs the same KDF work and fails the same
// way as with a wrong key on a real account.
func (s *Store) RecoveryLookup(accountID string) (*RecoveryMaterial, error) {
	if err := validation.ValidateAccountID(accountID); err != nil {
		return nil, err
	}

	record, err := s.Fetch(accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return s.decoy.material(accountID), nil
		}
		return nil, err
	}

	if !record.HasRecoveryData() {
		return s.decoy.material(accountID), nil
	}

	return &RecoveryMaterial{
		EncryptedPrivateKey: record.RecoveryEncryptedKey,
		KeyHash:             record.RecoveryKeyHash,
	}, nil
}

// decoyCiphertextLength approximates a real recovery ciphertext: KDF
// salt plus an AEAD envelope around a PKCS#8 RSA-2048 private key PEM.
const decoyCiphertextLength = 16 + 14 + 1710 + 16

// decoyFactory derives per-account decoy recovery material from a
// store-lifetime secret. Deterministic per store instance, so repeated
// probes of the same unknown account observe a stable response.
type decoyFactory struct {
	secret []byte
}

func newDecoyFactory() (*decoyFactory, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("credstore: decoy secret generation failed: %w", err)
	}
	return &decoyFactory{secret: secret}, nil
}

// material builds decoy recovery material for an account ID.
func (d *decoyFactory) material(accountID string) *RecoveryMaterial {
	salt := d.expand("salt/"+accountID, 16)
	hash := d.expand("hash/"+accountID, 32)
	ciphertext := d.expand("ct/"+accountID, decoyCiphertextLength)

	// PHC shape matching the digest package; the embedded hash is HMAC
	// output, not an Argon2id result, so verification always fails.
	keyHash := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, 64*1024, 3, 4,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return &RecoveryMaterial{
		EncryptedPrivateKey: base64.StdEncoding.EncodeToString(ciphertext),
		KeyHash:             keyHash,
	}
}

// expand derives length pseudorandom bytes bound to the label.
func (d *decoyFactory) expand(label string, length int) []byte {
	out := make([]byte, 0, length)
	var counter uint32
	for len(out) < length {
		mac := hmac.New(sha256.New, d.secret)
		mac.Write([]byte(label))
		var ctr [4]byte
		binary.BigEndian.PutUint32(ctr[:], counter)
		mac.Write(ctr[:])
		out = append(out, mac.Sum(nil)...)
		counter++
	}
	return out[:length]
}
