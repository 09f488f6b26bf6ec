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

package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAccountID(t *testing.T) {
	valid := []string{
		"alice",
		"alice@example.com",
		"550e8400-e29b-41d4-a716-446655440000",
		"user.name_1",
	}
	for _, id := range valid {
		assert.NoError(t, ValidateAccountID(id), "input: %q", id)
	}

	invalid := []string{
		"",
		"alice\x00",
		"alice\n",
		"../etc/passwd",
		"-leading-dash",
		"spaces in name",
		"semi;colon",
		strings.Repeat("a", MaxAccountIDLength+1),
	}
	for _, id := range invalid {
		assert.Error(t, ValidateAccountID(id), "input: %q", id)
	}
}

func TestSanitizeForLog(t *testing.T) {
	assert.Equal(t, "clean", SanitizeForLog("clean"))
	assert.Equal(t, "nonewlines", SanitizeForLog("no\nnew\rlines"))
	assert.Equal(t, "nonull", SanitizeForLog("no\x00null"))

	long := SanitizeForLog(strings.Repeat("x", 2000))
	assert.True(t, strings.HasSuffix(long, "...[truncated]"))
	assert.LessOrEqual(t, len(long), 1000+len("...[truncated]"))
}
