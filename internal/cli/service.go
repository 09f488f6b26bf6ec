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

package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/jeremyhahn/go-keycustody/internal/config"
	"github.com/jeremyhahn/go-keycustody/pkg/credstore"
	"github.com/jeremyhahn/go-keycustody/pkg/custody"
	"github.com/jeremyhahn/go-keycustody/pkg/logging"
	"github.com/jeremyhahn/go-keycustody/pkg/prf"
	"github.com/jeremyhahn/go-keycustody/pkg/ratelimit"
	"github.com/jeremyhahn/go-keycustody/pkg/storage"
	"github.com/jeremyhahn/go-keycustody/pkg/storage/file"
	"github.com/jeremyhahn/go-keycustody/pkg/storage/memory"
	"github.com/jeremyhahn/go-keycustody/pkg/types"
)

// app bundles the wired service with its resources for teardown.
type app struct {
	cfg     *config.Config
	service *custody.Service
	backend storage.Backend
	limiter *ratelimit.Limiter
}

// buildApp wires the custody service from configuration and flags.
func buildApp() (*app, error) {
	cfg, err := config.Load(flagConfigFile)
	if err != nil {
		return nil, err
	}
	if flagDebug {
		cfg.Debug = true
	}

	logger := logging.NewLogger(cfg.Debug)

	var backend storage.Backend
	switch cfg.Storage.Backend {
	case "memory":
		backend = memory.New()
	default:
		backend, err = file.New(cfg.Storage.Dir)
		if err != nil {
			return nil, err
		}
	}

	store, err := credstore.New(backend, logger)
	if err != nil {
		backend.Close()
		return nil, err
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(&ratelimit.Config{
			Enabled:           true,
			AttemptsPerMinute: cfg.RateLimit.AttemptsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		})
	}

	var auth prf.Authenticator
	if flagMockAuth {
		printDebug("using mock authenticator")
		auth = NewPersistentMockAuthenticator(cfg.Storage.Dir)
	}

	service, err := custody.New(&custody.Config{
		Store:            store,
		Limiter:          limiter,
		Authenticator:    auth,
		RelyingPartyID:   cfg.RelyingParty.ID,
		RelyingPartyName: cfg.RelyingParty.Name,
		DefaultMode:      types.Mode(cfg.Mode),
		Logger:           logger,
	})
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		service: service,
		backend: backend,
		limiter: limiter,
	}, nil
}

// close releases app resources.
func (a *app) close() {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.backend != nil {
		a.backend.Close()
	}
}

// readPassphrase resolves the passphrase: the flag value if given,
// otherwise an interactive prompt on stdin.
func readPassphrase(flagValue, prompt string) (types.Password, error) {
	if flagValue != "" {
		return types.NewPasswordFromString(flagValue)
	}

	fmt.Fprintf(os.Stderr, "%s: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}

	return types.NewPasswordFromString(strings.TrimSpace(line))
}
