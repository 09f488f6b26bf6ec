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

// Package custody orchestrates the credential lifecycle: account setup,
// unlock via the live derivation method, the method-switch state
// machine, recovery-key flows, and the convenience / zero-knowledge
// mode policy. The plaintext private key exists only inside Session
// objects and switch operations, and is zeroized on every exit path.
package custody

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-keycustody/pkg/credstore"
	"github.com/jeremyhahn/go-keycustody/pkg/keypair"
	"github.com/jeremyhahn/go-keycustody/pkg/logging"
	"github.com/jeremyhahn/go-keycustody/pkg/metrics"
	"github.com/jeremyhahn/go-keycustody/pkg/passphrase"
	"github.com/jeremyhahn/go-keycustody/pkg/prf"
	"github.com/jeremyhahn/go-keycustody/pkg/ratelimit"
	"github.com/jeremyhahn/go-keycustody/pkg/recovery"
	"github.com/jeremyhahn/go-keycustody/pkg/types"
	"github.com/jeremyhahn/go-keycustody/pkg/validation"
)

// Config assembles a custody service.
type Config struct {
	// Store persists credential records. Required.
	Store *credstore.Store

	// Limiter throttles unlock and recovery attempts. Optional; nil
	// disables throttling.
	Limiter *ratelimit.Limiter

	// Authenticator is the platform authenticator binding. Optional;
	// nil disables the passkey method (ErrUnsupportedPlatform).
	Authenticator prf.Authenticator

	// RelyingPartyID and RelyingPartyName identify the application to
	// the authenticator.
	RelyingPartyID   string
	RelyingPartyName string

	// DefaultMode applies when Setup does not name a mode.
	DefaultMode types.Mode

	// Logger for structured operational logging.
	Logger *logging.Logger
}

// Service is the custody orchestrator.
type Service struct {
	store   *credstore.Store
	limiter *ratelimit.Limiter
	auth    prf.Authenticator
	rpID    string
	rpName  string
	mode    types.Mode
	logger  *logging.Logger
}

// New creates a custody service from the config.
func New(config *Config) (*Service, error) {
	if config == nil || config.Store == nil {
		return nil, errors.New("custody: store required")
	}

	mode := config.DefaultMode
	if mode == "" {
		mode = types.ModeZeroKnowledge
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("custody: invalid default mode %q", config.DefaultMode)
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	return &Service{
		store:   config.Store,
		limiter: config.Limiter,
		auth:    config.Authenticator,
		rpID:    config.RelyingPartyID,
		rpName:  config.RelyingPartyName,
		mode:    mode,
		logger:  logger.With("component", "custody"),
	}, nil
}

// SetupOptions configures account provisioning.
type SetupOptions struct {
	// Method is the initial derivation method. Required.
	Method types.DerivationMethod

	// Mode is the operating mode; the service default applies when
	// empty.
	Mode types.Mode

	// Passphrase supplies a user-chosen passphrase for the passphrase
	// method. When nil, a passphrase is generated and returned once in
	// the result.
	Passphrase types.Password

	// GenerateRecovery requests a recovery document. Forced on under
	// zero-knowledge mode.
	GenerateRecovery bool
}

// SetupResult is returned from Setup. GeneratedPassphrase and
// RecoveryDocument are shown to the user exactly once and never
// persisted in plaintext (except the escrowed passphrase in
// convenience mode).
type SetupResult struct {
	// Record is the committed credential record.
	Record *types.CredentialRecord

	// GeneratedPassphrase is set only when Setup generated the
	// passphrase itself.
	GeneratedPassphrase string

	// RecoveryDocument is set when a recovery document was generated.
	RecoveryDocument *recovery.Document
}

// Setup provisions a new account: generates the keypair, seals the
// private key under the chosen method, applies the mode policy and
// commits the record.
func (s *Service) Setup(ctx context.Context, accountID string, opts SetupOptions) (*SetupResult, error) {
	start := time.Now()

	if err := validation.ValidateAccountID(accountID); err != nil {
		return nil, err
	}
	if !opts.Method.Valid() {
		return nil, fmt.Errorf("custody: invalid derivation method %q", opts.Method)
	}

	mode := opts.Mode
	if mode == "" {
		mode = s.mode
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("custody: invalid mode %q", opts.Mode)
	}

	// Zero-knowledge policy: losing the live method without recovery
	// material is permanent lockout, so the state is made unreachable.
	generateRecovery := opts.GenerateRecovery || mode == types.ModeZeroKnowledge

	result := &SetupResult{}

	secret := opts.Passphrase
	if opts.Method == types.MethodPassphrase && secret == nil {
		generated, err := passphrase.Generate()
		if err != nil {
			return nil, err
		}
		defer generated.Clear()
		secret = generated

		display, err := generated.String()
		if err != nil {
			return nil, err
		}
		result.GeneratedPassphrase = display
	}

	cipher, err := s.methodCipher(opts.Method, accountID, secret)
	if err != nil {
		return nil, err
	}

	kp, err := keypair.Generate()
	if err != nil {
		return nil, err
	}
	defer types.Zeroize(kp.PrivateKeyPEM)

	record := &types.CredentialRecord{
		AccountID:    accountID,
		Mode:         mode,
		PublicKeyPEM: kp.PublicKeyPEM,
	}

	if err := cipher.seal(ctx, record, kp.PrivateKeyPEM); err != nil {
		metrics.RecordOperation(metrics.OpSetup, opts.Method.String(), metrics.StatusError)
		return nil, err
	}

	if opts.Method == types.MethodPassphrase && mode == types.ModeConvenience {
		escrowed, err := secret.String()
		if err != nil {
			return nil, err
		}
		record.EscrowedSecret = escrowed
	}

	if generateRecovery {
		doc, err := recovery.Generate(kp.PrivateKeyPEM)
		if err != nil {
			metrics.RecordRecoveryDocument(metrics.OpRecovery, metrics.StatusError)
			return nil, err
		}
		record.RecoveryEncryptedKey = doc.EncryptedPrivateKey
		record.RecoveryKeyHash = doc.KeyHash
		result.RecoveryDocument = doc
		metrics.RecordRecoveryDocument(metrics.OpRecovery, metrics.StatusSuccess)
	}

	if err := s.store.Create(record); err != nil {
		if errors.Is(err, credstore.ErrAlreadyExists) {
			return nil, ErrAccountExists
		}
		return nil, err
	}

	result.Record = record

	metrics.RecordOperation(metrics.OpSetup, opts.Method.String(), metrics.StatusSuccess)
	metrics.ObserveDuration(metrics.OpSetup, opts.Method.String(), start)
	metrics.AccountsByMode.WithLabelValues(mode.String()).Inc()

	s.logger.Info("account provisioned",
		"account_id", validation.SanitizeForLog(accountID),
		"method", opts.Method,
		"mode", mode,
		"recovery", generateRecovery)

	return result, nil
}

// UnlockWithPassphrase unlocks the account with its live passphrase.
func (s *Service) UnlockWithPassphrase(ctx context.Context, accountID string, secret types.Password) (*Session, error) {
	return s.unlock(ctx, accountID, types.MethodPassphrase, secret)
}

// UnlockWithPasskey unlocks the account with its live passkey; the
// authenticator will prompt for user verification.
func (s *Service) UnlockWithPasskey(ctx context.Context, accountID string) (*Session, error) {
	return s.unlock(ctx, accountID, types.MethodPasskeyPRF, nil)
}

// UnlockWithEscrow unlocks a convenience-mode account using the
// escrowed passphrase, without user interaction.
func (s *Service) UnlockWithEscrow(ctx context.Context, accountID string) (*Session, error) {
	record, err := s.fetch(accountID)
	if err != nil {
		return nil, err
	}

	if record.Mode != types.ModeConvenience || record.EscrowedSecret == "" {
		return nil, ErrNoEscrowedSecret
	}

	secret, err := types.NewPasswordFromString(record.EscrowedSecret)
	if err != nil {
		return nil, ErrNoEscrowedSecret
	}
	defer secret.Clear()

	return s.unlock(ctx, accountID, types.MethodPassphrase, secret)
}

// unlock is the shared unlock path: rate limit, method match, fail-fast
// digest verification, decrypt, session.
func (s *Service) unlock(ctx context.Context, accountID string, method types.DerivationMethod, secret types.Password) (*Session, error) {
	start := time.Now()

	if err := validation.ValidateAccountID(accountID); err != nil {
		return nil, err
	}

	if s.limiter != nil && !s.limiter.Allow(accountID) {
		metrics.RateLimitedTotal.Inc()
		metrics.RecordUnlockFailure(method.String(), "rate_limited")
		return nil, ErrRateLimited
	}

	record, err := s.fetch(accountID)
	if err != nil {
		return nil, err
	}

	if record.DerivationMethod != method {
		return nil, ErrMethodNotLive
	}

	cipher, err := s.methodCipher(method, accountID, secret)
	if err != nil {
		return nil, err
	}

	privateKeyPEM, err := cipher.open(ctx, record)
	if err != nil {
		metrics.RecordOperation(metrics.OpUnlock, method.String(), metrics.StatusError)
		metrics.RecordUnlockFailure(method.String(), unlockErrorType(err))
		s.logger.Warn("unlock failed",
			"account_id", validation.SanitizeForLog(accountID),
			"method", method,
			"error_type", unlockErrorType(err))
		return nil, err
	}

	metrics.RecordOperation(metrics.OpUnlock, method.String(), metrics.StatusSuccess)
	metrics.ObserveDuration(metrics.OpUnlock, method.String(), start)

	s.logger.Debug("account unlocked",
		"account_id", validation.SanitizeForLog(accountID),
		"method", method)

	return newSession(accountID, method, record.Mode, privateKeyPEM), nil
}

// Status is a non-secret view of an account's custody state.
type Status struct {
	AccountID        string                 `json:"account_id"`
	Mode             types.Mode             `json:"mode"`
	DerivationMethod types.DerivationMethod `json:"derivation_method"`
	HasRecoveryData  bool                   `json:"has_recovery_data"`
	HasEscrow        bool                   `json:"has_escrow"`
	Version          uint64                 `json:"version"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// AccountStatus reports the custody state of an account.
func (s *Service) AccountStatus(accountID string) (*Status, error) {
	record, err := s.fetch(accountID)
	if err != nil {
		return nil, err
	}

	return &Status{
		AccountID:        record.AccountID,
		Mode:             record.Mode,
		DerivationMethod: record.DerivationMethod,
		HasRecoveryData:  record.HasRecoveryData(),
		HasEscrow:        record.EscrowedSecret != "",
		Version:          record.Version,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
	}, nil
}

// PublicKeyPEM returns the account's public key.
func (s *Service) PublicKeyPEM(accountID string) (string, error) {
	record, err := s.fetch(accountID)
	if err != nil {
		return "", err
	}
	return record.PublicKeyPEM, nil
}

// methodCipher builds the cipher for a derivation method.
func (s *Service) methodCipher(method types.DerivationMethod, accountID string, secret types.Password) (methodCipher, error) {
	switch method {
	case types.MethodPassphrase:
		if secret == nil {
			return nil, types.ErrEmptyPassword
		}
		return &passphraseMethod{secret: secret}, nil
	case types.MethodPasskeyPRF:
		if err := prf.CheckSupport(s.auth); err != nil {
			return nil, err
		}
		return &passkeyMethod{
			auth:      s.auth,
			rpID:      s.rpID,
			rpName:    s.rpName,
			accountID: accountID,
		}, nil
	default:
		return nil, fmt.Errorf("custody: invalid derivation method %q", method)
	}
}

func (s *Service) fetch(accountID string) (*types.CredentialRecord, error) {
	record, err := s.store.Fetch(accountID)
	if err != nil {
		if errors.Is(err, credstore.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return record, nil
}

// unlockErrorType buckets unlock failures for metrics labels.
func unlockErrorType(err error) string {
	switch {
	case errors.Is(err, ErrWrongSecret):
		return "wrong_secret"
	case errors.Is(err, ErrAssertionCancelled):
		return "cancelled"
	case errors.Is(err, ErrAssertionFailed):
		return "assertion_failed"
	case errors.Is(err, ErrUnsupportedPlatform):
		return "unsupported_platform"
	default:
		return "internal"
	}
}
