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

package passphrase

import (
	"fmt"

	"github.com/jeremyhahn/go-keycustody/pkg/keypair"
	"github.com/jeremyhahn/go-keycustody/pkg/types"
)

// PreparedKeys is a freshly provisioned keypair with the private half
// already sealed under a passphrase-derived key. Nothing in this struct
// is secret.
type PreparedKeys struct {
	// PublicKeyPEM is the PKIX public key, PEM encoded.
	PublicKeyPEM string

	// EncryptedPrivateKey is the passphrase ciphertext of the PKCS#8
	// private key PEM, as produced by Encrypt.
	EncryptedPrivateKey string
}

// PrepareKeys generates a new account keypair and seals the private key
// under the passphrase. The plaintext private key is zeroized before
// return on every path.
func PrepareKeys(passphrase types.Password) (*PreparedKeys, error) {
	kp, err := keypair.Generate()
	if err != nil {
		return nil, err
	}
	defer types.Zeroize(kp.PrivateKeyPEM)

	encrypted, err := Encrypt(kp.PrivateKeyPEM, passphrase)
	if err != nil {
		return nil, fmt.Errorf("passphrase: failed to seal private key: %w", err)
	}

	return &PreparedKeys{
		PublicKeyPEM:        kp.PublicKeyPEM,
		EncryptedPrivateKey: encrypted,
	}, nil
}
