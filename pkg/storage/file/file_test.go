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

package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-keycustody/pkg/storage"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	backend, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

func TestNew_EmptyDir(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestNew_CreatesRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "store")
	backend, err := New(dir)
	require.NoError(t, err)
	defer func() { _ = backend.Close() }()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestPutGet(t *testing.T) {
	backend := newTestBackend(t)

	require.NoError(t, backend.Put("credential/alice@example.com", []byte("record")))

	value, err := backend.Get("credential/alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, []byte("record"), value)
}

func TestGet_NotFound(t *testing.T) {
	backend := newTestBackend(t)

	_, err := backend.Get("missing")
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestPut_Overwrite(t *testing.T) {
	backend := newTestBackend(t)

	require.NoError(t, backend.Put("key", []byte("first")))
	require.NoError(t, backend.Put("key", []byte("second")))

	value, err := backend.Get("key")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), value)
}

func TestPut_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	backend, err := New(dir)
	require.NoError(t, err)
	defer func() { _ = backend.Close() }()

	require.NoError(t, backend.Put("key", []byte("secret")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	info, err := entries[0].Info()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestKeyEscaping(t *testing.T) {
	backend := newTestBackend(t)

	// Slashes and dots in account identifiers must not traverse.
	key := "credential/../../etc/passwd"
	require.NoError(t, backend.Put(key, []byte("value")))

	value, err := backend.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)

	keys, err := backend.List("")
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)
}

func TestDeleteExists(t *testing.T) {
	backend := newTestBackend(t)

	require.NoError(t, backend.Put("key", []byte("value")))

	exists, err := backend.Exists("key")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, backend.Delete("key"))

	exists, err = backend.Exists("key")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, backend.Delete("key"))
}

func TestList(t *testing.T) {
	backend := newTestBackend(t)

	require.NoError(t, backend.Put("credential/bob", nil))
	require.NoError(t, backend.Put("credential/alice", nil))
	require.NoError(t, backend.Put("other/carol", nil))

	keys, err := backend.List("credential/")
	require.NoError(t, err)
	assert.Equal(t, []string{"credential/alice", "credential/bob"}, keys)
}

func TestList_IgnoresStrayFiles(t *testing.T) {
	dir := t.TempDir()
	backend, err := New(dir)
	require.NoError(t, err)
	defer func() { _ = backend.Close() }()

	require.NoError(t, backend.Put("key", []byte("value")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("stray"), 0600))

	keys, err := backend.List("")
	require.NoError(t, err)
	assert.Equal(t, []string{"key"}, keys)
}

func TestClose(t *testing.T) {
	backend := newTestBackend(t)
	require.NoError(t, backend.Close())

	_, err := backend.Get("key")
	assert.ErrorIs(t, err, storage.ErrClosed)
	assert.ErrorIs(t, backend.Put("key", nil), storage.ErrClosed)
}
