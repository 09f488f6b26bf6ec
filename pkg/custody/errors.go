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
	"errors"

	"github.com/jeremyhahn/go-keycustody/pkg/prf"
	"github.com/jeremyhahn/go-keycustody/pkg/recovery"
)

var (
	// ErrWrongSecret is returned when a presented passphrase or
	// passkey-derived key fails to authenticate the ciphertext.
	// Recoverable; the user retries.
	ErrWrongSecret = errors.New("custody: wrong secret")

	// ErrAccountNotFound is returned when no credential record exists.
	ErrAccountNotFound = errors.New("custody: account not found")

	// ErrAccountExists is returned when Setup targets an account that
	// is already provisioned.
	ErrAccountExists = errors.New("custody: account already provisioned")

	// ErrMethodNotLive is returned when an unlock names a derivation
	// method that is not the account's live method.
	ErrMethodNotLive = errors.New("custody: requested method is not live for this account")

	// ErrRateLimited is returned when the per-account attempt budget is
	// exhausted.
	ErrRateLimited = errors.New("custody: too many attempts, try again later")

	// ErrPersistenceConflict is returned when a commit loses the
	// compare-and-swap race. The previously live method remains
	// authoritative; the operation is retryable.
	ErrPersistenceConflict = errors.New("custody: credential record changed concurrently")

	// ErrRecoveryRequired is returned when a zero-knowledge
	// configuration would be committed without valid recovery material.
	// Lockout prevention: the state is made unreachable, not handled.
	ErrRecoveryRequired = errors.New("custody: recovery document required before commit")

	// ErrNoEscrowedSecret is returned when an escrow unlock is
	// attempted against an account without an escrowed secret.
	ErrNoEscrowedSecret = errors.New("custody: no escrowed secret for this account")

	// ErrSessionClosed is returned when using a session after Close.
	ErrSessionClosed = errors.New("custody: session closed")

	// ErrInvalidSwitchState is returned when a switch operation is
	// invoked from the wrong state.
	ErrInvalidSwitchState = errors.New("custody: operation not valid in current switch state")

	// Passkey failures surface unchanged so callers can distinguish
	// fallback-worthy conditions from retry-worthy ones.
	ErrUnsupportedPlatform = prf.ErrUnsupportedPlatform
	ErrAssertionCancelled  = prf.ErrAssertionCancelled
	ErrAssertionFailed     = prf.ErrAssertionFailed

	// Recovery key failures surface unchanged; malformed input never
	// reaches cryptographic or storage code.
	ErrMalformedRecoveryKey = recovery.ErrMalformedRecoveryKey
	ErrRecoveryKeyInvalid   = recovery.ErrRecoveryKeyInvalid
)
