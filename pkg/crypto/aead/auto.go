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

package aead

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// HasAESNI returns true if the CPU has hardware AES acceleration.
//
// Supported architectures:
//   - amd64: Checks X86.HasAES
//   - arm64: Checks ARM64.HasAES
//   - Other architectures return false
func HasAESNI() bool {
	switch runtime.GOARCH {
	case "amd64":
		return cpu.X86.HasAES
	case "arm64":
		return cpu.ARM64.HasAES
	default:
		return false
	}
}

// SelectOptimal selects the optimal AEAD algorithm for the local CPU:
// AES-256-GCM when hardware AES instructions are available,
// ChaCha20-Poly1305 otherwise. ChaCha20 outperforms software AES and is
// constant-time without hardware support.
func SelectOptimal() Algorithm {
	if HasAESNI() {
		return AES256GCM
	}
	return ChaCha20Poly1305
}
