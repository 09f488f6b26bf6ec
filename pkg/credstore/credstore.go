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

// Package credstore persists credential records over a storage backend
// and enforces optimistic concurrency: every update names the record
// version it was computed from, and a stale version is rejected rather
// than overwritten. Multi-field transitions (method switches, recovery
// regeneration) therefore commit atomically or not at all.
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jeremyhahn/go-keycustody/pkg/logging"
	"github.com/jeremyhahn/go-keycustody/pkg/storage"
	"github.com/jeremyhahn/go-keycustody/pkg/types"
	"github.com/jeremyhahn/go-keycustody/pkg/validation"
)

const recordPrefix = "credential/"

var (
	// ErrNotFound is returned when no record exists for the account.
	ErrNotFound = errors.New("credstore: credential record not found")

	// ErrAlreadyExists is returned when creating a record for an
	// account that already has one.
	ErrAlreadyExists = errors.New("credstore: credential record already exists")

	// ErrConflict is returned when an update carries a stale version;
	// the caller must re-read and retry or abort.
	ErrConflict = errors.New("credstore: version conflict")

	// ErrCorrupted is returned when a persisted record fails to decode.
	ErrCorrupted = errors.New("credstore: credential record corrupted")
)

// Store persists credential records with compare-and-swap updates.
type Store struct {
	backend storage.Backend
	logger  *logging.Logger

	// mu serializes read-modify-write cycles within this process; the
	// version check covers conflicts across processes sharing a
	// backend.
	mu sync.Mutex

	decoy *decoyFactory
}

// New creates a credential store over the given backend.
func New(backend storage.Backend, logger *logging.Logger) (*Store, error) {
	if backend == nil {
		return nil, errors.New("credstore: backend required")
	}
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	decoy, err := newDecoyFactory()
	if err != nil {
		return nil, err
	}

	return &Store{
		backend: backend,
		logger:  logger.With("component", "credstore"),
		decoy:   decoy,
	}, nil
}

func recordKey(accountID string) string {
	return recordPrefix + accountID
}

// Create persists a brand-new record at version 1.
func (s *Store) Create(record *types.CredentialRecord) error {
	if record == nil {
		return errors.New("credstore: record required")
	}
	if err := validation.ValidateAccountID(record.AccountID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.backend.Exists(recordKey(record.AccountID))
	if err != nil {
		return fmt.Errorf("credstore: existence check failed: %w", err)
	}
	if exists {
		return ErrAlreadyExists
	}

	now := time.Now().UTC()
	record.Version = 1
	record.CreatedAt = now
	record.UpdatedAt = now

	if err := s.write(record); err != nil {
		return err
	}

	s.logger.Info("credential record created",
		"account_id", validation.SanitizeForLog(record.AccountID),
		"method", record.DerivationMethod,
		"mode", record.Mode)
	return nil
}

// Fetch returns the record for the account.
func (s *Store) Fetch(accountID string) (*types.CredentialRecord, error) {
	if err := validation.ValidateAccountID(accountID); err != nil {
		return nil, err
	}

	data, err := s.backend.Get(recordKey(accountID))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("credstore: fetch failed: %w", err)
	}

	record := &types.CredentialRecord{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}

	return record, nil
}

// Update commits a modified record if and only if the stored version
// still equals expectedVersion. On success the record's Version is
// bumped and UpdatedAt refreshed in place.
func (s *Store) Update(record *types.CredentialRecord, expectedVersion uint64) error {
	if record == nil {
		return errors.New("credstore: record required")
	}
	if err := validation.ValidateAccountID(record.AccountID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Fetch(record.AccountID)
	if err != nil {
		return err
	}
	if current.Version != expectedVersion {
		s.logger.Warn("update rejected on stale version",
			"account_id", validation.SanitizeForLog(record.AccountID),
			"expected", expectedVersion,
			"actual", current.Version)
		return ErrConflict
	}

	record.Version = expectedVersion + 1
	record.UpdatedAt = time.Now().UTC()

	if err := s.write(record); err != nil {
		return err
	}

	s.logger.Debug("credential record updated",
		"account_id", validation.SanitizeForLog(record.AccountID),
		"version", record.Version)
	return nil
}

// Delete removes the record for the account.
func (s *Store) Delete(accountID string) error {
	if err := validation.ValidateAccountID(accountID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.backend.Exists(recordKey(accountID))
	if err != nil {
		return fmt.Errorf("credstore: existence check failed: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	if err := s.backend.Delete(recordKey(accountID)); err != nil {
		return fmt.Errorf("credstore: delete failed: %w", err)
	}

	s.logger.Info("credential record deleted",
		"account_id", validation.SanitizeForLog(accountID))
	return nil
}

// List returns the account IDs with a credential record.
func (s *Store) List() ([]string, error) {
	keys, err := s.backend.List(recordPrefix)
	if err != nil {
		return nil, fmt.Errorf("credstore: list failed: %w", err)
	}

	accounts := make([]string, 0, len(keys))
	for _, key := range keys {
		accounts = append(accounts, key[len(recordPrefix):])
	}
	return accounts, nil
}

func (s *Store) write(record *types.CredentialRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("credstore: encode failed: %w", err)
	}
	if err := s.backend.Put(recordKey(record.AccountID), data); err != nil {
		return fmt.Errorf("credstore: persist failed: %w", err)
	}
	return nil
}
