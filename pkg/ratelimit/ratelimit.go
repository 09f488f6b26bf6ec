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

// Package ratelimit throttles unlock and recovery attempts per account.
// Salted digests make precomputation against the credential table
// impossible; this limiter is what makes online guessing expensive.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter implements a token bucket rate limiter with per-account
// tracking, built on golang.org/x/time/rate.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	enabled  bool

	// Cleanup settings
	cleanupInterval time.Duration
	maxIdle         time.Duration
	lastSeen        map[string]time.Time
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// Config holds rate limiter configuration.
type Config struct {
	// Enabled controls whether rate limiting is active.
	Enabled bool

	// AttemptsPerMinute sets the sustained per-account attempt rate.
	AttemptsPerMinute int

	// Burst allows short bursts above the sustained rate.
	// If not set, defaults to AttemptsPerMinute.
	Burst int

	// CleanupInterval controls how often to remove idle accounts.
	// Defaults to 10 minutes.
	CleanupInterval time.Duration

	// MaxIdle is how long an account can be idle before cleanup.
	// Defaults to 30 minutes.
	MaxIdle time.Duration
}

// DefaultConfig returns the production defaults: 10 attempts per
// minute with a burst of 5.
func DefaultConfig() *Config {
	return &Config{
		Enabled:           true,
		AttemptsPerMinute: 10,
		Burst:             5,
	}
}

// New creates a new rate limiter with the given configuration.
func New(config *Config) *Limiter {
	if config == nil {
		config = &Config{Enabled: false}
	}

	burst := config.Burst
	if burst == 0 {
		burst = config.AttemptsPerMinute
	}

	cleanupInterval := config.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 10 * time.Minute
	}

	maxIdle := config.MaxIdle
	if maxIdle == 0 {
		maxIdle = 30 * time.Minute
	}

	// Convert attempts per minute to attempts per second
	ratePerSecond := rate.Limit(float64(config.AttemptsPerMinute) / 60.0)

	l := &Limiter{
		limiters:        make(map[string]*rate.Limiter),
		lastSeen:        make(map[string]time.Time),
		rate:            ratePerSecond,
		burst:           burst,
		enabled:         config.Enabled,
		cleanupInterval: cleanupInterval,
		maxIdle:         maxIdle,
		stopCleanup:     make(chan struct{}),
	}

	if config.Enabled {
		go l.cleanupWorker()
	}

	return l
}

// getLimiter returns the rate limiter for a given account.
// Creates a new limiter if one doesn't exist.
func (l *Limiter) getLimiter(accountID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[accountID]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[accountID] = limiter
	}

	l.lastSeen[accountID] = time.Now()
	return limiter
}

// Allow checks if an attempt for the given account should be allowed.
// Returns true if the attempt is within rate limits.
func (l *Limiter) Allow(accountID string) bool {
	if !l.enabled {
		return true
	}

	limiter := l.getLimiter(accountID)
	return limiter.Allow()
}

// Wait blocks until the rate limit allows the attempt.
// Returns nil on success or an error if the context is cancelled.
func (l *Limiter) Wait(ctx context.Context, accountID string) error {
	if !l.enabled {
		return nil
	}

	limiter := l.getLimiter(accountID)
	return limiter.Wait(ctx)
}

// cleanupWorker periodically removes idle accounts from memory.
func (l *Limiter) cleanupWorker() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

// cleanup removes accounts without recent attempts.
func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for accountID, lastSeen := range l.lastSeen {
		if now.Sub(lastSeen) > l.maxIdle {
			delete(l.limiters, accountID)
			delete(l.lastSeen, accountID)
		}
	}
}

// Stop stops the cleanup worker.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCleanup)
	})
}

// Stats returns current rate limiter statistics.
func (l *Limiter) Stats() map[string]interface{} {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return map[string]interface{}{
		"enabled":         l.enabled,
		"active_accounts": len(l.limiters),
		"rate_per_min":    float64(l.rate) * 60,
		"burst":           l.burst,
	}
}

// IsEnabled returns whether rate limiting is enabled.
func (l *Limiter) IsEnabled() bool {
	return l.enabled
}
