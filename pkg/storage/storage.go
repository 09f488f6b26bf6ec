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

// Package storage defines the persistence backend contract for the
// credential store. Backends are dumb byte stores; record semantics
// (serialization, optimistic concurrency) live in the credential store
// layer above.
package storage

import "errors"

var (
	// ErrKeyNotFound is returned when the requested key does not exist.
	ErrKeyNotFound = errors.New("storage: key not found")

	// ErrInvalidKey is returned for empty or unusable keys.
	ErrInvalidKey = errors.New("storage: invalid key")

	// ErrClosed is returned when the backend has been closed.
	ErrClosed = errors.New("storage: backend closed")
)

// Backend is a flat key/value store. Implementations must be safe for
// concurrent use; Put must be atomic (a reader never observes a partial
// write).
type Backend interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(key string) ([]byte, error)

	// Put stores value under key, overwriting any existing value.
	Put(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Exists reports whether key is present.
	Exists(key string) (bool, error)

	// List returns all keys with the given prefix.
	List(prefix string) ([]string, error)

	// Close releases backend resources. The backend is unusable after.
	Close() error
}
