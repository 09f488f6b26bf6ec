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

// Package validation provides centralized input validation for go-keycustody
// APIs. The custody service and credential store validate account identifiers
// through this package before they reach storage keys or log lines.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// accountIDPattern matches safe account identifiers. UUIDs, email-style
// identifiers and plain usernames all pass.
var accountIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9@._\-]*$`)

// MaxAccountIDLength is the maximum accepted account identifier length.
const MaxAccountIDLength = 255

// ValidateAccountID validates an account identifier.
// Prevents path traversal and injection by:
// - Rejecting empty strings and null bytes
// - Rejecting control characters
// - Allowing only safe characters
// - Enforcing length limits
func ValidateAccountID(accountID string) error {
	if accountID == "" {
		return fmt.Errorf("account ID cannot be empty")
	}

	// Check for null bytes (can bypass some path checks)
	if strings.Contains(accountID, "\x00") {
		return fmt.Errorf("account ID contains null byte")
	}

	// Check length before other validations (prevent ReDoS)
	if len(accountID) > MaxAccountIDLength {
		return fmt.Errorf("account ID too long (max %d characters)", MaxAccountIDLength)
	}

	// Check for control characters
	for _, r := range accountID {
		if r < 32 || r == 127 {
			return fmt.Errorf("account ID contains control characters")
		}
	}

	if !accountIDPattern.MatchString(accountID) {
		return fmt.Errorf("account ID contains invalid characters (allowed: a-z, A-Z, 0-9, @, ., _, -)")
	}

	return nil
}

// SanitizeForLog sanitizes a string for safe logging (prevents log injection).
func SanitizeForLog(s string) string {
	// Remove control characters and null bytes
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)

	// Limit length to prevent log flooding
	if len(s) > 1000 {
		s = s[:1000] + "...[truncated]"
	}

	return s
}
