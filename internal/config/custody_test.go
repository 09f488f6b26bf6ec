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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "zero-knowledge", cfg.Mode)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.NotEmpty(t, cfg.Storage.Dir)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 10, cfg.RateLimit.AttemptsPerMinute)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, "localhost", cfg.RelyingParty.ID)
	assert.Equal(t, "go-keycustody", cfg.RelyingParty.Name)
	assert.Equal(t, 12, cfg.Passphrase.Words)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keycustody.yaml")
	content := `
mode: convenience
debug: true
storage:
  backend: memory
ratelimit:
  enabled: false
relying_party:
  id: example.com
  name: Example
passphrase:
  words: 24
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "convenience", cfg.Mode)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "example.com", cfg.RelyingParty.ID)
	assert.Equal(t, 24, cfg.Passphrase.Words)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("KEYCUSTODY_MODE", "convenience")
	t.Setenv("KEYCUSTODY_STORAGE_BACKEND", "memory")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "convenience", cfg.Mode)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := &Config{
		Mode:    "zero-knowledge",
		Storage: StorageConfig{Backend: "memory"},
	}
	assert.NoError(t, valid.Validate())

	invalidMode := &Config{
		Mode:    "plaid",
		Storage: StorageConfig{Backend: "memory"},
	}
	assert.Error(t, invalidMode.Validate())

	missingDir := &Config{
		Mode:    "zero-knowledge",
		Storage: StorageConfig{Backend: "file"},
	}
	assert.Error(t, missingDir.Validate())

	unknownBackend := &Config{
		Mode:    "zero-knowledge",
		Storage: StorageConfig{Backend: "s3"},
	}
	assert.Error(t, unknownBackend.Validate())

	badRate := &Config{
		Mode:      "zero-knowledge",
		Storage:   StorageConfig{Backend: "memory"},
		RateLimit: RateLimitConfig{Enabled: true, AttemptsPerMinute: 0},
	}
	assert.Error(t, badRate.Validate())
}
