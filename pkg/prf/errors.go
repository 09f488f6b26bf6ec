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

package prf

import "errors"

var (
	// ErrUnsupportedPlatform is returned when no platform authenticator
	// with PRF extension support is available. Callers should fall back
	// to the passphrase method.
	ErrUnsupportedPlatform = errors.New("prf: platform authenticator with PRF support unavailable")

	// ErrAssertionCancelled is returned when the user dismisses or
	// cancels the authenticator prompt.
	ErrAssertionCancelled = errors.New("prf: assertion cancelled by user")

	// ErrAssertionFailed is returned when the authenticator rejects the
	// assertion (unknown credential, verification failure).
	ErrAssertionFailed = errors.New("prf: assertion failed")

	// ErrNoPRFOutput is returned when an assertion succeeds but the
	// authenticator did not evaluate the PRF extension.
	ErrNoPRFOutput = errors.New("prf: assertion returned no PRF output")

	// ErrInvalidPRFOutput is returned when the PRF output has an
	// unexpected length.
	ErrInvalidPRFOutput = errors.New("prf: invalid PRF output length")
)
