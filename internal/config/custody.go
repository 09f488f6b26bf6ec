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

// Package config loads custody configuration from file, environment and
// defaults via viper. Environment variables use the KEYCUSTODY_ prefix
// with underscores for nesting (KEYCUSTODY_STORAGE_BACKEND).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-keycustody/pkg/types"
)

// Config is the complete custody configuration.
type Config struct {
	// Mode is the default operating mode for new accounts:
	// "zero-knowledge" or "convenience".
	Mode string `mapstructure:"mode"`

	// Debug enables debug logging.
	Debug bool `mapstructure:"debug"`

	Storage      StorageConfig      `mapstructure:"storage"`
	RateLimit    RateLimitConfig    `mapstructure:"ratelimit"`
	RelyingParty RelyingPartyConfig `mapstructure:"relying_party"`
	Passphrase   PassphraseConfig   `mapstructure:"passphrase"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Backend is "file" or "memory".
	Backend string `mapstructure:"backend"`

	// Dir is the root directory for the file backend.
	Dir string `mapstructure:"dir"`
}

// RateLimitConfig configures per-account attempt throttling.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	AttemptsPerMinute int  `mapstructure:"attempts_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

// RelyingPartyConfig identifies the application to authenticators.
type RelyingPartyConfig struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

// PassphraseConfig tunes passphrase generation.
type PassphraseConfig struct {
	// Words is the generated passphrase word count (12, 15, 18, 21, 24).
	Words int `mapstructure:"words"`
}

// Load reads configuration from the optional file path, the
// environment, and defaults, in that order of increasing precedence
// for env over file.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("mode", types.ModeZeroKnowledge.String())
	v.SetDefault("debug", false)
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.dir", defaultStorageDir())
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.attempts_per_minute", 10)
	v.SetDefault("ratelimit.burst", 5)
	v.SetDefault("relying_party.id", "localhost")
	v.SetDefault("relying_party.name", "go-keycustody")
	v.SetDefault("passphrase.words", 12)

	v.SetEnvPrefix("KEYCUSTODY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("keycustody")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.keycustody")
		v.AddConfigPath(".")
		// Missing default config file is fine; defaults apply.
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if !types.Mode(c.Mode).Valid() {
		return fmt.Errorf("config: invalid mode %q", c.Mode)
	}

	switch c.Storage.Backend {
	case "file":
		if c.Storage.Dir == "" {
			return fmt.Errorf("config: storage.dir required for file backend")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}

	if c.RateLimit.Enabled && c.RateLimit.AttemptsPerMinute <= 0 {
		return fmt.Errorf("config: ratelimit.attempts_per_minute must be positive")
	}

	return nil
}

func defaultStorageDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "keycustody")
	}
	return filepath.Join(home, ".keycustody", "store")
}
