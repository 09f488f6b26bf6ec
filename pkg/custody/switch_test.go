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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-keycustody/pkg/credstore"
	"github.com/jeremyhahn/go-keycustody/pkg/storage"
	"github.com/jeremyhahn/go-keycustody/pkg/storage/memory"
	"github.com/jeremyhahn/go-keycustody/pkg/types"
)

// flakyBackend wraps a backend and fails Put on demand, simulating a
// persistence outage at commit time.
type flakyBackend struct {
	storage.Backend
	failPuts bool
}

var errBackendDown = errors.New("backend unavailable")

func (f *flakyBackend) Put(key string, value []byte) error {
	if f.failPuts {
		return errBackendDown
	}
	return f.Backend.Put(key, value)
}

func setupPassphraseAccount(t *testing.T, env *testEnv, secret types.Password) {
	t.Helper()
	_, err := env.service.Setup(context.Background(), testAccount, SetupOptions{
		Method:     types.MethodPassphrase,
		Mode:       types.ModeZeroKnowledge,
		Passphrase: secret,
	})
	require.NoError(t, err)
}

func TestSwitch_PassphraseToPasskey(t *testing.T) {
	env := newTestEnv(t)
	secret := password(t, "old passphrase")
	defer secret.Clear()
	setupPassphraseAccount(t, env, secret)
	ctx := context.Background()

	sw, err := env.service.BeginSwitch(ctx, testAccount)
	require.NoError(t, err)
	defer sw.Abort()
	assert.Equal(t, SwitchStateVerify, sw.State())

	require.NoError(t, sw.VerifyWithPassphrase(ctx, secret))
	assert.Equal(t, SwitchStateChooseMethod, sw.State())

	require.NoError(t, sw.StageNewPasskey(ctx))
	assert.Equal(t, SwitchStateSetupNewMethod, sw.State())

	doc, err := sw.GenerateRecoveryDocument()
	require.NoError(t, err)
	assert.NotEmpty(t, doc.RecoveryKey)
	assert.Equal(t, SwitchStateRecoveryDocument, sw.State())

	require.NoError(t, sw.Commit(ctx))
	assert.Equal(t, SwitchStateSuccess, sw.State())

	// Old method is gone; the passkey is live.
	_, err = env.service.UnlockWithPassphrase(ctx, testAccount, secret)
	assert.ErrorIs(t, err, ErrMethodNotLive)

	session, err := env.service.UnlockWithPasskey(ctx, testAccount)
	require.NoError(t, err)
	session.Close()

	status, err := env.service.AccountStatus(testAccount)
	require.NoError(t, err)
	assert.Equal(t, types.MethodPasskeyPRF, status.DerivationMethod)
	assert.Equal(t, uint64(2), status.Version)
}

func TestSwitch_PasskeyToPassphrase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.service.Setup(ctx, testAccount, SetupOptions{
		Method: types.MethodPasskeyPRF,
		Mode:   types.ModeZeroKnowledge,
	})
	require.NoError(t, err)

	newSecret := password(t, "brand new passphrase")
	defer newSecret.Clear()

	sw, err := env.service.BeginSwitch(ctx, testAccount)
	require.NoError(t, err)
	defer sw.Abort()

	require.NoError(t, sw.VerifyWithPasskey(ctx))
	require.NoError(t, sw.StageNewPassphrase(ctx, newSecret))
	_, err = sw.GenerateRecoveryDocument()
	require.NoError(t, err)
	require.NoError(t, sw.Commit(ctx))

	session, err := env.service.UnlockWithPassphrase(ctx, testAccount, newSecret)
	require.NoError(t, err)
	session.Close()

	// Passkey fields were cleared on commit.
	record, err := env.store.Fetch(testAccount)
	require.NoError(t, err)
	assert.Empty(t, record.PasskeyCredentialID)
	assert.Empty(t, record.PasskeyPRFSalt)
}

func TestSwitch_VerifyWrongSecretRetryable(t *testing.T) {
	env := newTestEnv(t)
	secret := password(t, "right")
	defer secret.Clear()
	wrong := password(t, "wrong")
	defer wrong.Clear()
	setupPassphraseAccount(t, env, secret)
	ctx := context.Background()

	sw, err := env.service.BeginSwitch(ctx, testAccount)
	require.NoError(t, err)
	defer sw.Abort()

	assert.ErrorIs(t, sw.VerifyWithPassphrase(ctx, wrong), ErrWrongSecret)
	assert.Equal(t, SwitchStateVerify, sw.State())

	// Retry with the right secret succeeds.
	require.NoError(t, sw.VerifyWithPassphrase(ctx, secret))
	assert.Equal(t, SwitchStateChooseMethod, sw.State())
}

func TestSwitch_VerifyMethodNotLive(t *testing.T) {
	env := newTestEnv(t)
	secret := password(t, "passphrase")
	defer secret.Clear()
	setupPassphraseAccount(t, env, secret)
	ctx := context.Background()

	sw, err := env.service.BeginSwitch(ctx, testAccount)
	require.NoError(t, err)
	defer sw.Abort()

	assert.ErrorIs(t, sw.VerifyWithPasskey(ctx), ErrMethodNotLive)
}

func TestSwitch_StateOrdering(t *testing.T) {
	env := newTestEnv(t)
	secret := password(t, "passphrase")
	defer secret.Clear()
	setupPassphraseAccount(t, env, secret)
	ctx := context.Background()

	sw, err := env.service.BeginSwitch(ctx, testAccount)
	require.NoError(t, err)
	defer sw.Abort()

	// No staging or commit before verification.
	assert.ErrorIs(t, sw.StageNewPasskey(ctx), ErrInvalidSwitchState)
	assert.ErrorIs(t, sw.Commit(ctx), ErrInvalidSwitchState)
	_, err = sw.GenerateRecoveryDocument()
	assert.ErrorIs(t, err, ErrInvalidSwitchState)

	require.NoError(t, sw.VerifyWithPassphrase(ctx, secret))

	// No commit before a method is staged.
	assert.ErrorIs(t, sw.Commit(ctx), ErrInvalidSwitchState)
}

func TestSwitch_ZeroKnowledgeRequiresRecovery(t *testing.T) {
	env := newTestEnv(t)
	secret := password(t, "passphrase")
	defer secret.Clear()
	ctx := context.Background()

	// Provision directly so the zero-knowledge record lacks recovery
	// material (legacy record shape).
	_, err := env.service.Setup(ctx, testAccount, SetupOptions{
		Method:     types.MethodPassphrase,
		Mode:       types.ModeZeroKnowledge,
		Passphrase: secret,
	})
	require.NoError(t, err)

	record, err := env.store.Fetch(testAccount)
	require.NoError(t, err)
	record.RecoveryEncryptedKey = ""
	record.RecoveryKeyHash = ""
	require.NoError(t, env.store.Update(record, record.Version))

	sw, err := env.service.BeginSwitch(ctx, testAccount)
	require.NoError(t, err)
	defer sw.Abort()

	require.NoError(t, sw.VerifyWithPassphrase(ctx, secret))
	require.NoError(t, sw.StageNewPasskey(ctx))

	// The staged tuple inherited the empty recovery fields, so commit
	// refuses until a recovery document is generated.
	assert.ErrorIs(t, sw.Commit(ctx), ErrRecoveryRequired)

	_, err = sw.GenerateRecoveryDocument()
	require.NoError(t, err)
	assert.NoError(t, sw.Commit(ctx))
}

func TestSwitch_PreservesRecoveryMaterial(t *testing.T) {
	env := newTestEnv(t)
	secret := password(t, "passphrase")
	defer secret.Clear()
	setupPassphraseAccount(t, env, secret)
	ctx := context.Background()

	before, err := env.store.Fetch(testAccount)
	require.NoError(t, err)

	sw, err := env.service.BeginSwitch(ctx, testAccount)
	require.NoError(t, err)
	defer sw.Abort()

	require.NoError(t, sw.VerifyWithPassphrase(ctx, secret))
	require.NoError(t, sw.StageNewPasskey(ctx))
	require.NoError(t, sw.Commit(ctx))

	after, err := env.store.Fetch(testAccount)
	require.NoError(t, err)
	assert.Equal(t, before.RecoveryEncryptedKey, after.RecoveryEncryptedKey)
	assert.Equal(t, before.RecoveryKeyHash, after.RecoveryKeyHash)
}

func TestSwitch_Abort(t *testing.T) {
	env := newTestEnv(t)
	secret := password(t, "passphrase")
	defer secret.Clear()
	setupPassphraseAccount(t, env, secret)
	ctx := context.Background()

	before, err := env.store.Fetch(testAccount)
	require.NoError(t, err)

	sw, err := env.service.BeginSwitch(ctx, testAccount)
	require.NoError(t, err)

	require.NoError(t, sw.VerifyWithPassphrase(ctx, secret))
	require.NoError(t, sw.StageNewPasskey(ctx))
	sw.Abort()
	assert.Equal(t, SwitchStateAborted, sw.State())

	// Nothing persisted; the old method still unlocks.
	after, err := env.store.Fetch(testAccount)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.EncryptedPrivateKey, after.EncryptedPrivateKey)

	session, err := env.service.UnlockWithPassphrase(ctx, testAccount, secret)
	require.NoError(t, err)
	session.Close()

	// Terminal: nothing works after abort.
	assert.ErrorIs(t, sw.Commit(ctx), ErrInvalidSwitchState)
}

func TestSwitch_CommitPersistFailureKeepsOldMethod(t *testing.T) {
	backend := memory.New()
	t.Cleanup(func() { _ = backend.Close() })
	flaky := &flakyBackend{Backend: backend}

	store, err := credstore.New(flaky, nil)
	require.NoError(t, err)

	service, err := New(&Config{Store: store})
	require.NoError(t, err)

	secret := password(t, "passphrase")
	defer secret.Clear()
	newSecret := password(t, "replacement passphrase")
	defer newSecret.Clear()
	ctx := context.Background()

	_, err = service.Setup(ctx, testAccount, SetupOptions{
		Method:     types.MethodPassphrase,
		Mode:       types.ModeZeroKnowledge,
		Passphrase: secret,
	})
	require.NoError(t, err)

	sw, err := service.BeginSwitch(ctx, testAccount)
	require.NoError(t, err)
	defer sw.Abort()

	require.NoError(t, sw.VerifyWithPassphrase(ctx, secret))
	require.NoError(t, sw.StageNewPassphrase(ctx, newSecret))

	flaky.failPuts = true
	err = sw.Commit(ctx)
	require.Error(t, err)
	assert.NotEqual(t, SwitchStateSuccess, sw.State())

	// Old method remains authoritative after the failed commit.
	flaky.failPuts = false
	session, err := service.UnlockWithPassphrase(ctx, testAccount, secret)
	require.NoError(t, err)
	session.Close()

	_, err = service.UnlockWithPassphrase(ctx, testAccount, newSecret)
	assert.ErrorIs(t, err, ErrWrongSecret)
}

func TestSwitch_CommitConflictRetryable(t *testing.T) {
	env := newTestEnv(t)
	secret := password(t, "passphrase")
	defer secret.Clear()
	newSecret := password(t, "replacement")
	defer newSecret.Clear()
	setupPassphraseAccount(t, env, secret)
	ctx := context.Background()

	sw, err := env.service.BeginSwitch(ctx, testAccount)
	require.NoError(t, err)
	defer sw.Abort()

	require.NoError(t, sw.VerifyWithPassphrase(ctx, secret))
	require.NoError(t, sw.StageNewPassphrase(ctx, newSecret))

	// A concurrent writer bumps the version underneath the switch.
	record, err := env.store.Fetch(testAccount)
	require.NoError(t, err)
	require.NoError(t, env.store.Update(record, record.Version))

	assert.ErrorIs(t, sw.Commit(ctx), ErrPersistenceConflict)
	assert.NotEqual(t, SwitchStateSuccess, sw.State())

	// Old method still unlocks.
	session, err := env.service.UnlockWithPassphrase(ctx, testAccount, secret)
	require.NoError(t, err)
	session.Close()
}

func TestSwitch_AdoptSession(t *testing.T) {
	env := newTestEnv(t)
	secret := password(t, "passphrase")
	defer secret.Clear()
	setupPassphraseAccount(t, env, secret)
	ctx := context.Background()

	session, err := env.service.UnlockWithPassphrase(ctx, testAccount, secret)
	require.NoError(t, err)
	defer session.Close()

	sw, err := env.service.BeginSwitch(ctx, testAccount)
	require.NoError(t, err)
	defer sw.Abort()

	require.NoError(t, sw.AdoptSession(session))
	assert.Equal(t, SwitchStateChooseMethod, sw.State())

	require.NoError(t, sw.StageNewPasskey(ctx))
	require.NoError(t, sw.Commit(ctx))
}

func TestSwitch_AdoptSession_WrongAccount(t *testing.T) {
	env := newTestEnv(t)
	secret := password(t, "passphrase")
	defer secret.Clear()
	setupPassphraseAccount(t, env, secret)
	ctx := context.Background()

	otherSecret := password(t, "other passphrase")
	defer otherSecret.Clear()
	_, err := env.service.Setup(ctx, "bob@example.com", SetupOptions{
		Method:     types.MethodPassphrase,
		Mode:       types.ModeZeroKnowledge,
		Passphrase: otherSecret,
	})
	require.NoError(t, err)

	otherSession, err := env.service.UnlockWithPassphrase(ctx, "bob@example.com", otherSecret)
	require.NoError(t, err)
	defer otherSession.Close()

	sw, err := env.service.BeginSwitch(ctx, testAccount)
	require.NoError(t, err)
	defer sw.Abort()

	assert.Error(t, sw.AdoptSession(otherSession))
	assert.Equal(t, SwitchStateVerify, sw.State())
}

func TestSwitch_FreshRecoveryInvalidatesOldKey(t *testing.T) {
	env := newTestEnv(t)
	secret := password(t, "passphrase")
	defer secret.Clear()
	ctx := context.Background()

	result, err := env.service.Setup(ctx, testAccount, SetupOptions{
		Method:     types.MethodPassphrase,
		Mode:       types.ModeZeroKnowledge,
		Passphrase: secret,
	})
	require.NoError(t, err)
	oldKey := result.RecoveryDocument.RecoveryKey

	sw, err := env.service.BeginSwitch(ctx, testAccount)
	require.NoError(t, err)
	defer sw.Abort()

	require.NoError(t, sw.VerifyWithPassphrase(ctx, secret))
	require.NoError(t, sw.StageNewPasskey(ctx))
	doc, err := sw.GenerateRecoveryDocument()
	require.NoError(t, err)
	require.NoError(t, sw.Commit(ctx))

	// Old recovery key no longer matches; the fresh one does.
	_, err = env.service.Recover(ctx, testAccount, oldKey)
	assert.ErrorIs(t, err, ErrRecoveryKeyInvalid)

	session, err := env.service.Recover(ctx, testAccount, doc.RecoveryKey)
	require.NoError(t, err)
	session.Close()
}

// storage.Backend is satisfied by the wrapper.
var _ storage.Backend = (*flakyBackend)(nil)
