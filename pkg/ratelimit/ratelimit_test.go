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

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllow_BurstThenThrottle(t *testing.T) {
	limiter := New(&Config{
		Enabled:           true,
		AttemptsPerMinute: 10,
		Burst:             3,
	})
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("alice"), "attempt %d", i)
	}
	assert.False(t, limiter.Allow("alice"))
}

func TestAllow_PerAccountIsolation(t *testing.T) {
	limiter := New(&Config{
		Enabled:           true,
		AttemptsPerMinute: 10,
		Burst:             1,
	})
	defer limiter.Stop()

	assert.True(t, limiter.Allow("alice"))
	assert.False(t, limiter.Allow("alice"))

	// Bob has a separate bucket.
	assert.True(t, limiter.Allow("bob"))
}

func TestAllow_Disabled(t *testing.T) {
	limiter := New(&Config{Enabled: false})
	defer limiter.Stop()

	assert.False(t, limiter.IsEnabled())
	for i := 0; i < 100; i++ {
		assert.True(t, limiter.Allow("alice"))
	}
}

func TestNew_NilConfig(t *testing.T) {
	limiter := New(nil)
	defer limiter.Stop()

	assert.False(t, limiter.IsEnabled())
	assert.True(t, limiter.Allow("alice"))
}

func TestWait_ContextCancelled(t *testing.T) {
	limiter := New(&Config{
		Enabled:           true,
		AttemptsPerMinute: 1,
		Burst:             1,
	})
	defer limiter.Stop()

	// Exhaust the bucket.
	require.True(t, limiter.Allow("alice"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx, "alice")
	assert.Error(t, err)
}

func TestWait_Disabled(t *testing.T) {
	limiter := New(&Config{Enabled: false})
	defer limiter.Stop()

	assert.NoError(t, limiter.Wait(context.Background(), "alice"))
}

func TestStats(t *testing.T) {
	limiter := New(DefaultConfig())
	defer limiter.Stop()

	limiter.Allow("alice")
	limiter.Allow("bob")

	stats := limiter.Stats()
	assert.Equal(t, true, stats["enabled"])
	assert.Equal(t, 2, stats["active_accounts"])
	assert.InDelta(t, 10.0, stats["rate_per_min"], 0.01)
	assert.Equal(t, 5, stats["burst"])
}

func TestCleanup(t *testing.T) {
	limiter := New(&Config{
		Enabled:           true,
		AttemptsPerMinute: 10,
		Burst:             5,
		CleanupInterval:   time.Hour,
		MaxIdle:           time.Nanosecond,
	})
	defer limiter.Stop()

	limiter.Allow("alice")
	time.Sleep(time.Millisecond)
	limiter.cleanup()

	stats := limiter.Stats()
	assert.Equal(t, 0, stats["active_accounts"])
}

func TestStop_Idempotent(t *testing.T) {
	limiter := New(DefaultConfig())
	limiter.Stop()
	limiter.Stop()
}
