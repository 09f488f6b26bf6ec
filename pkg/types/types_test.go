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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDerivationMethod_Valid(t *testing.T) {
	assert.True(t, MethodPassphrase.Valid())
	assert.True(t, MethodPasskeyPRF.Valid())
	assert.False(t, DerivationMethod("pin").Valid())
	assert.False(t, DerivationMethod("").Valid())
}

func TestMode_Valid(t *testing.T) {
	assert.True(t, ModeConvenience.Valid())
	assert.True(t, ModeZeroKnowledge.Valid())
	assert.False(t, Mode("plaid").Valid())
}

func TestCredentialRecord_HasRecoveryData(t *testing.T) {
	record := &CredentialRecord{}
	assert.False(t, record.HasRecoveryData())

	record.RecoveryEncryptedKey = "ciphertext"
	assert.False(t, record.HasRecoveryData())

	record.RecoveryKeyHash = "$argon2id$..."
	assert.True(t, record.HasRecoveryData())
}

func TestCredentialRecord_Clone(t *testing.T) {
	record := &CredentialRecord{
		AccountID:           "alice@example.com",
		DerivationMethod:    MethodPasskeyPRF,
		PasskeyCredentialID: []byte{1, 2, 3},
		PasskeyPRFSalt:      []byte{4, 5, 6},
	}

	clone := record.Clone()
	clone.PasskeyCredentialID[0] = 9
	clone.PasskeyPRFSalt[0] = 9

	assert.Equal(t, byte(1), record.PasskeyCredentialID[0])
	assert.Equal(t, byte(4), record.PasskeyPRFSalt[0])
	assert.Equal(t, record.AccountID, clone.AccountID)
}
