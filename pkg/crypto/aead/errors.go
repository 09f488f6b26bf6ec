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

package aead

import "errors"

var (
	// ErrAuthentication is returned when an envelope fails authenticated
	// decryption. This is the signal callers rely on to distinguish a
	// wrong key from corrupted data; plaintext is never returned on this
	// path.
	ErrAuthentication = errors.New("aead: message authentication failed")

	// ErrInvalidKeySize is returned when the key is not KeySize bytes.
	ErrInvalidKeySize = errors.New("aead: invalid key size")

	// ErrInvalidEnvelope is returned when an envelope is structurally
	// malformed (truncated, unknown version or algorithm).
	ErrInvalidEnvelope = errors.New("aead: invalid envelope")
)
