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
	"sync"
	"time"

	"github.com/jeremyhahn/go-keycustody/pkg/credstore"
	"github.com/jeremyhahn/go-keycustody/pkg/metrics"
	"github.com/jeremyhahn/go-keycustody/pkg/recovery"
	"github.com/jeremyhahn/go-keycustody/pkg/types"
	"github.com/jeremyhahn/go-keycustody/pkg/validation"
)

// SwitchState is a state of the method-switch machine.
type SwitchState string

const (
	// SwitchStateVerify requires proof of possession of the currently
	// live method before any mutation is permitted.
	SwitchStateVerify SwitchState = "verify"

	// SwitchStateChooseMethod awaits the choice of the new method.
	SwitchStateChooseMethod SwitchState = "choose-method"

	// SwitchStateSetupNewMethod has a staged ciphertext under the new
	// method, not yet committed. Re-staging is permitted (retry).
	SwitchStateSetupNewMethod SwitchState = "setup-new-method"

	// SwitchStateRecoveryDocument has a fresh recovery document staged
	// alongside the new method tuple.
	SwitchStateRecoveryDocument SwitchState = "recovery-document"

	// SwitchStateSuccess is terminal: the new tuple is committed and
	// all in-memory key material is zeroized.
	SwitchStateSuccess SwitchState = "success"

	// SwitchStateAborted is terminal: nothing was persisted and all
	// in-memory key material is zeroized.
	SwitchStateAborted SwitchState = "aborted"
)

// Switch is one method-switch operation. Not safe for concurrent use
// by multiple goroutines; cross-process races are handled by the
// compare-and-swap commit. The old method's tuple remains authoritative
// in the store until Commit succeeds.
type Switch struct {
	svc *Service

	mu          sync.Mutex
	state       SwitchState
	accountID   string
	baseVersion uint64
	fromMethod  types.DerivationMethod
	started     time.Time

	// snapshot is the record as read at BeginSwitch.
	snapshot *types.CredentialRecord

	// privateKeyPEM is held between verify and commit; zeroized on
	// every terminal transition.
	privateKeyPEM []byte

	// pending is the staged new tuple.
	pending *types.CredentialRecord

	// recoveryDoc is the staged fresh recovery document, if any.
	recoveryDoc *recovery.Document
}

// BeginSwitch starts a method switch for the account. The returned
// Switch is in the verify state.
func (s *Service) BeginSwitch(ctx context.Context, accountID string) (*Switch, error) {
	if err := validation.ValidateAccountID(accountID); err != nil {
		return nil, err
	}

	record, err := s.fetch(accountID)
	if err != nil {
		return nil, err
	}

	return &Switch{
		svc:         s,
		state:       SwitchStateVerify,
		accountID:   accountID,
		baseVersion: record.Version,
		fromMethod:  record.DerivationMethod,
		started:     time.Now(),
		snapshot:    record,
	}, nil
}

// State returns the current state.
func (sw *Switch) State() SwitchState {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.state
}

// RecoveryDocument returns the staged recovery document after
// GenerateRecoveryDocument, or the committed one after Commit. The
// recovery key inside is shown to the user exactly once.
func (sw *Switch) RecoveryDocument() *recovery.Document {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.recoveryDoc
}

// VerifyWithPassphrase proves possession of the live passphrase method.
// A failed verification keeps the machine in the verify state for
// retry.
func (sw *Switch) VerifyWithPassphrase(ctx context.Context, secret types.Password) error {
	return sw.verify(ctx, types.MethodPassphrase, secret)
}

// VerifyWithPasskey proves possession of the live passkey method.
func (sw *Switch) VerifyWithPasskey(ctx context.Context) error {
	return sw.verify(ctx, types.MethodPasskeyPRF, nil)
}

func (sw *Switch) verify(ctx context.Context, method types.DerivationMethod, secret types.Password) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.state != SwitchStateVerify {
		return ErrInvalidSwitchState
	}
	if sw.snapshot.DerivationMethod != method {
		return ErrMethodNotLive
	}

	if sw.svc.limiter != nil && !sw.svc.limiter.Allow(sw.accountID) {
		metrics.RateLimitedTotal.Inc()
		return ErrRateLimited
	}

	cipher, err := sw.svc.methodCipher(method, sw.accountID, secret)
	if err != nil {
		return err
	}

	privateKeyPEM, err := cipher.open(ctx, sw.snapshot)
	if err != nil {
		return err
	}

	sw.privateKeyPEM = privateKeyPEM
	sw.state = SwitchStateChooseMethod
	return nil
}

// AdoptSession skips re-verification using an already unlocked session
// for the same account. Possession is established, not bypassed. The
// session stays open and owned by the caller.
func (sw *Switch) AdoptSession(session *Session) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.state != SwitchStateVerify {
		return ErrInvalidSwitchState
	}
	if session == nil || session.AccountID() != sw.accountID {
		return errors.New("custody: session does not belong to this account")
	}

	return session.WithPrivateKey(func(privateKeyPEM []byte) error {
		sw.privateKeyPEM = make([]byte, len(privateKeyPEM))
		copy(sw.privateKeyPEM, privateKeyPEM)
		sw.state = SwitchStateChooseMethod
		return nil
	})
}

// StageNewPassphrase stages the passphrase method as the new live
// method, sealing the same plaintext private key under it.
func (sw *Switch) StageNewPassphrase(ctx context.Context, secret types.Password) error {
	return sw.stage(ctx, types.MethodPassphrase, secret)
}

// StageNewPasskey stages the passkey method as the new live method.
// The authenticator will prompt to create a credential.
func (sw *Switch) StageNewPasskey(ctx context.Context) error {
	return sw.stage(ctx, types.MethodPasskeyPRF, nil)
}

func (sw *Switch) stage(ctx context.Context, method types.DerivationMethod, secret types.Password) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	switch sw.state {
	case SwitchStateChooseMethod, SwitchStateSetupNewMethod:
		// staging and re-staging after a failed attempt
	default:
		return ErrInvalidSwitchState
	}

	cipher, err := sw.svc.methodCipher(method, sw.accountID, secret)
	if err != nil {
		return err
	}

	// The pending tuple inherits everything the switch does not touch;
	// in particular the recovery material stays valid across the
	// switch.
	pending := sw.snapshot.Clone()
	if err := cipher.seal(ctx, pending, sw.privateKeyPEM); err != nil {
		// Old method untouched; caller may retry or choose another
		// method.
		return err
	}

	if method == types.MethodPassphrase {
		if pending.Mode == types.ModeConvenience {
			escrowed, err := secret.String()
			if err != nil {
				return err
			}
			pending.EscrowedSecret = escrowed
		} else {
			pending.EscrowedSecret = ""
		}
	}

	sw.pending = pending
	sw.recoveryDoc = nil
	sw.state = SwitchStateSetupNewMethod
	return nil
}

// GenerateRecoveryDocument stages a fresh recovery document bound to
// the current plaintext key, replacing any prior recovery material in
// the pending tuple. Mandatory before Commit under zero-knowledge mode
// when the account has no valid recovery material.
func (sw *Switch) GenerateRecoveryDocument() (*recovery.Document, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	switch sw.state {
	case SwitchStateSetupNewMethod, SwitchStateRecoveryDocument:
	default:
		return nil, ErrInvalidSwitchState
	}

	doc, err := recovery.Generate(sw.privateKeyPEM)
	if err != nil {
		metrics.RecordRecoveryDocument(metrics.OpRecovery, metrics.StatusError)
		return nil, err
	}

	sw.pending.RecoveryEncryptedKey = doc.EncryptedPrivateKey
	sw.pending.RecoveryKeyHash = doc.KeyHash
	sw.recoveryDoc = doc
	sw.state = SwitchStateRecoveryDocument

	metrics.RecordRecoveryDocument(metrics.OpRecovery, metrics.StatusSuccess)
	return doc, nil
}

// Commit persists the staged tuple as a single compare-and-swap
// update. On ErrPersistenceConflict the old method remains
// authoritative and the machine stays retryable; any other failure
// likewise leaves the store untouched. Success is terminal and
// zeroizes the in-memory key.
func (sw *Switch) Commit(ctx context.Context) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	switch sw.state {
	case SwitchStateSetupNewMethod, SwitchStateRecoveryDocument:
	default:
		return ErrInvalidSwitchState
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// Lockout prevention: never commit a zero-knowledge tuple without
	// recovery material.
	if sw.pending.Mode == types.ModeZeroKnowledge && !sw.pending.HasRecoveryData() {
		return ErrRecoveryRequired
	}

	if err := sw.svc.store.Update(sw.pending, sw.baseVersion); err != nil {
		if errors.Is(err, credstore.ErrConflict) {
			sw.svc.logger.Warn("switch commit lost compare-and-swap race",
				"account_id", validation.SanitizeForLog(sw.accountID))
			return ErrPersistenceConflict
		}
		return err
	}

	metrics.RecordSwitch(sw.fromMethod.String(), sw.pending.DerivationMethod.String())
	metrics.RecordOperation(metrics.OpSwitch, sw.pending.DerivationMethod.String(), metrics.StatusSuccess)
	metrics.ObserveDuration(metrics.OpSwitch, sw.pending.DerivationMethod.String(), sw.started)

	sw.svc.logger.Info("derivation method switched",
		"account_id", validation.SanitizeForLog(sw.accountID),
		"from", sw.fromMethod,
		"to", sw.pending.DerivationMethod)

	sw.terminate(SwitchStateSuccess)
	return nil
}

// Abort abandons the switch. Nothing is persisted and the in-memory
// key material is zeroized, exactly as on success.
func (sw *Switch) Abort() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	switch sw.state {
	case SwitchStateSuccess, SwitchStateAborted:
		return
	}
	sw.terminate(SwitchStateAborted)
}

// terminate zeroizes and enters a terminal state. Caller holds sw.mu.
func (sw *Switch) terminate(state SwitchState) {
	types.Zeroize(sw.privateKeyPEM)
	sw.privateKeyPEM = nil
	sw.pending = nil
	sw.state = state
}
