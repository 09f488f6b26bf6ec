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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-keycustody/pkg/storage/memory"
	"github.com/jeremyhahn/go-keycustody/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	backend := memory.New()
	t.Cleanup(func() { _ = backend.Close() })

	store, err := New(backend, nil)
	require.NoError(t, err)
	return store
}

func testRecord(accountID string) *types.CredentialRecord {
	return &types.CredentialRecord{
		AccountID:           accountID,
		Mode:                types.ModeZeroKnowledge,
		KeyHash:             "$argon2id$v=19$m=65536,t=3,p=4$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		PublicKeyPEM:        "-----BEGIN PUBLIC KEY-----\n...\n-----END PUBLIC KEY-----\n",
		EncryptedPrivateKey: "ciphertext",
		DerivationMethod:    types.MethodPassphrase,
	}
}

func TestCreateFetch(t *testing.T) {
	store := newTestStore(t)

	record := testRecord("alice@example.com")
	require.NoError(t, store.Create(record))
	assert.Equal(t, uint64(1), record.Version)
	assert.False(t, record.CreatedAt.IsZero())

	fetched, err := store.Fetch("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, record.AccountID, fetched.AccountID)
	assert.Equal(t, record.EncryptedPrivateKey, fetched.EncryptedPrivateKey)
	assert.Equal(t, uint64(1), fetched.Version)
}

func TestCreate_AlreadyExists(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Create(testRecord("alice")))
	assert.ErrorIs(t, store.Create(testRecord("alice")), ErrAlreadyExists)
}

func TestCreate_InvalidAccountID(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.Create(testRecord("../escape")))
}

func TestFetch_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Fetch("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetch_Corrupted(t *testing.T) {
	backend := memory.New()
	defer func() { _ = backend.Close() }()

	store, err := New(backend, nil)
	require.NoError(t, err)

	require.NoError(t, backend.Put("credential/alice", []byte("not json")))
	_, err = store.Fetch("alice")
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestUpdate(t *testing.T) {
	store := newTestStore(t)

	record := testRecord("alice")
	require.NoError(t, store.Create(record))

	record.EncryptedPrivateKey = "new ciphertext"
	require.NoError(t, store.Update(record, 1))
	assert.Equal(t, uint64(2), record.Version)

	fetched, err := store.Fetch("alice")
	require.NoError(t, err)
	assert.Equal(t, "new ciphertext", fetched.EncryptedPrivateKey)
	assert.Equal(t, uint64(2), fetched.Version)
}

func TestUpdate_StaleVersion(t *testing.T) {
	store := newTestStore(t)

	record := testRecord("alice")
	require.NoError(t, store.Create(record))

	// A concurrent writer commits first.
	other, err := store.Fetch("alice")
	require.NoError(t, err)
	other.EncryptedPrivateKey = "winner"
	require.NoError(t, store.Update(other, 1))

	record.EncryptedPrivateKey = "loser"
	assert.ErrorIs(t, store.Update(record, 1), ErrConflict)

	fetched, err := store.Fetch("alice")
	require.NoError(t, err)
	assert.Equal(t, "winner", fetched.EncryptedPrivateKey)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Create(testRecord("alice")))
	require.NoError(t, store.Delete("alice"))

	_, err := store.Fetch("alice")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Delete("alice"), ErrNotFound)
}

func TestList(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Create(testRecord("bob")))
	require.NoError(t, store.Create(testRecord("alice")))

	accounts, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, accounts)
}
