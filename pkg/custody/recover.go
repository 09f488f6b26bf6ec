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
	"time"

	"github.com/jeremyhahn/go-keycustody/pkg/credstore"
	"github.com/jeremyhahn/go-keycustody/pkg/metrics"
	"github.com/jeremyhahn/go-keycustody/pkg/recovery"
	"github.com/jeremyhahn/go-keycustody/pkg/types"
	"github.com/jeremyhahn/go-keycustody/pkg/validation"
)

// Recover unlocks an account with its recovery key, independent of the
// live derivation method.
//
// Order of checks: local format validation (malformed input never
// reaches the store), rate limit, uniform lookup (unknown accounts get
// decoy material, so response shape and work performed do not reveal
// account existence), digest verification, decrypt.
//
// The resulting session must be followed by a method setup: the caller
// stages a new method via BeginSwitch + AdoptSession, which also
// regenerates the recovery document.
func (s *Service) Recover(ctx context.Context, accountID, presentedKey string) (*Session, error) {
	start := time.Now()

	if !recovery.ValidateFormat(presentedKey) {
		return nil, ErrMalformedRecoveryKey
	}
	if err := validation.ValidateAccountID(accountID); err != nil {
		return nil, err
	}

	if s.limiter != nil && !s.limiter.Allow(accountID) {
		metrics.RateLimitedTotal.Inc()
		return nil, ErrRateLimited
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	material, err := s.store.RecoveryLookup(accountID)
	if err != nil {
		return nil, err
	}

	ok, err := recovery.Verify(presentedKey, material.KeyHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.RecordOperation(metrics.OpRecover, "recovery", metrics.StatusError)
		s.logger.Warn("recovery attempt rejected",
			"account_id", validation.SanitizeForLog(accountID))
		return nil, ErrRecoveryKeyInvalid
	}

	privateKeyPEM, err := recovery.Recover(material.EncryptedPrivateKey, presentedKey)
	if err != nil {
		metrics.RecordOperation(metrics.OpRecover, "recovery", metrics.StatusError)
		return nil, err
	}

	record, err := s.fetch(accountID)
	if err != nil {
		types.Zeroize(privateKeyPEM)
		return nil, err
	}

	metrics.RecordOperation(metrics.OpRecover, "recovery", metrics.StatusSuccess)
	metrics.ObserveDuration(metrics.OpRecover, "recovery", start)
	metrics.RecordRecoveryDocument(metrics.OpRecover, metrics.StatusSuccess)

	s.logger.Info("account recovered with recovery key",
		"account_id", validation.SanitizeForLog(accountID))

	return newSession(accountID, record.DerivationMethod, record.Mode, privateKeyPEM), nil
}

// RegenerateRecovery issues a fresh recovery document for an unlocked
// account, replacing any previous recovery material. This can run at
// any time, not only during a switch; the old recovery key stops
// working once the new document is committed.
func (s *Service) RegenerateRecovery(ctx context.Context, session *Session) (*recovery.Document, error) {
	if session == nil {
		return nil, ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record, err := s.fetch(session.AccountID())
	if err != nil {
		return nil, err
	}

	var doc *recovery.Document
	err = session.WithPrivateKey(func(privateKeyPEM []byte) error {
		var genErr error
		doc, genErr = recovery.Generate(privateKeyPEM)
		return genErr
	})
	if err != nil {
		metrics.RecordRecoveryDocument(metrics.OpRecovery, metrics.StatusError)
		return nil, err
	}

	record.RecoveryEncryptedKey = doc.EncryptedPrivateKey
	record.RecoveryKeyHash = doc.KeyHash

	if err := s.store.Update(record, record.Version); err != nil {
		if errors.Is(err, credstore.ErrConflict) {
			return nil, ErrPersistenceConflict
		}
		return nil, err
	}

	metrics.RecordRecoveryDocument(metrics.OpRecovery, metrics.StatusSuccess)
	s.logger.Info("recovery document regenerated",
		"account_id", validation.SanitizeForLog(session.AccountID()))

	return doc, nil
}
