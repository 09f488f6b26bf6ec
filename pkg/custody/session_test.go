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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-keycustody/pkg/types"
)

func TestSession_Accessors(t *testing.T) {
	session := newSession("alice", types.MethodPassphrase, types.ModeZeroKnowledge, []byte("pem"))
	defer session.Close()

	assert.Equal(t, "alice", session.AccountID())
	assert.Equal(t, types.MethodPassphrase, session.Method())
	assert.Equal(t, types.ModeZeroKnowledge, session.Mode())
}

func TestSession_WithPrivateKey(t *testing.T) {
	session := newSession("alice", types.MethodPassphrase, types.ModeZeroKnowledge, []byte("pem bytes"))
	defer session.Close()

	var seen []byte
	err := session.WithPrivateKey(func(privateKeyPEM []byte) error {
		seen = append([]byte{}, privateKeyPEM...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("pem bytes"), seen)
}

func TestSession_CloseZeroizes(t *testing.T) {
	key := []byte("pem bytes")
	session := newSession("alice", types.MethodPassphrase, types.ModeZeroKnowledge, key)

	session.Close()

	// The owned buffer was zeroized in place.
	assert.Equal(t, make([]byte, len("pem bytes")), key)

	err := session.WithPrivateKey(func([]byte) error { return nil })
	assert.ErrorIs(t, err, ErrSessionClosed)

	// Idempotent
	session.Close()
}

func TestSession_WithPrivateKeyPropagatesError(t *testing.T) {
	session := newSession("alice", types.MethodPassphrase, types.ModeZeroKnowledge, []byte("pem"))
	defer session.Close()

	sentinel := assert.AnError
	err := session.WithPrivateKey(func([]byte) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
}
