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

// Package file provides a filesystem storage backend. Each key maps to
// one file under the backend root; writes go through a temp file and an
// atomic rename so a crash never leaves a partial record on disk.
package file

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-keycustody/pkg/storage"
)

const (
	dirPerm  = 0700
	filePerm = 0600

	// fileExt marks backend-owned files so List never picks up strays.
	fileExt = ".rec"
)

// Backend stores each value as a file under root.
type Backend struct {
	root string

	mu     sync.RWMutex
	closed bool
}

// New creates a file backend rooted at dir, creating it if needed.
func New(dir string) (*Backend, error) {
	if dir == "" {
		return nil, fmt.Errorf("file: root directory required")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("file: invalid root directory: %w", err)
	}

	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("file: failed to create root directory: %w", err)
	}

	return &Backend{root: abs}, nil
}

// path maps a key to its on-disk location. Keys are percent-escaped so
// arbitrary account identifiers can never traverse outside root.
func (b *Backend) path(key string) string {
	return filepath.Join(b.root, url.PathEscape(key)+fileExt)
}

// Get implements storage.Backend.
func (b *Backend) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, storage.ErrInvalidKey
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, storage.ErrClosed
	}

	data, err := os.ReadFile(b.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrKeyNotFound
		}
		return nil, fmt.Errorf("file: read failed: %w", err)
	}
	return data, nil
}

// Put implements storage.Backend. The value lands via write-to-temp
// plus rename, which is atomic on POSIX filesystems.
func (b *Backend) Put(key string, value []byte) error {
	if key == "" {
		return storage.ErrInvalidKey
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return storage.ErrClosed
	}

	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return fmt.Errorf("file: temp suffix generation failed: %w", err)
	}

	target := b.path(key)
	tmp := target + ".tmp." + hex.EncodeToString(suffix)

	if err := os.WriteFile(tmp, value, filePerm); err != nil {
		return fmt.Errorf("file: write failed: %w", err)
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("file: rename failed: %w", err)
	}

	return nil
}

// Delete implements storage.Backend.
func (b *Backend) Delete(key string) error {
	if key == "" {
		return storage.ErrInvalidKey
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return storage.ErrClosed
	}

	if err := os.Remove(b.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("file: delete failed: %w", err)
	}
	return nil
}

// Exists implements storage.Backend.
func (b *Backend) Exists(key string) (bool, error) {
	if key == "" {
		return false, storage.ErrInvalidKey
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false, storage.ErrClosed
	}

	_, err := os.Stat(b.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("file: stat failed: %w", err)
	}
	return true, nil
}

// List implements storage.Backend.
func (b *Backend) List(prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, storage.ErrClosed
	}

	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, fmt.Errorf("file: list failed: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, fileExt))
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close implements storage.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Verify interface compliance at compile time
var _ storage.Backend = (*Backend)(nil)
