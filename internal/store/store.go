// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package store implements the content-addressed package store:
// install/lookup of packages by hash-derived paths, an install record per
// package, and a local override (redirect) table. Every mutating operation
// is serialized across processes by a file lock on a well-known path.
package store

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/nativepkg/nativepkg/internal/fs"
	"github.com/nativepkg/nativepkg/internal/ident"
	"github.com/pkg/errors"
	"github.com/theckman/go-flock"
)

// InstallRecord is the per-installed-package metadata: a content
// hash of the on-disk layout, plus the group number shared across mirrored
// versions of the same package.
type InstallRecord struct {
	LayoutHash  string `toml:"layout_hash"`
	GroupNumber int64  `toml:"group_number"`
}

// OverrideRecord redirects a package id to a local source directory
// instead of the remote index.
type OverrideRecord struct {
	SourceDir    string   `toml:"source_dir"`
	PrefixLength int      `toml:"prefix_length"`
	OverrideID   int64    `toml:"override_id"`
	Dependencies []string `toml:"dependencies"`
}

// Store is a content-addressed directory tree rooted at Root, plus a
// sidecar override table. It is safe for concurrent use by multiple
// processes: every mutating call first takes the file lock on
// .store.lock under Root.
type Store struct {
	Root string

	mu          sync.Mutex
	overrideDir string
	lock        *flock.Flock
}

// New returns a Store rooted at root. root and its override-table
// directory are created lazily on first use, not here.
func New(root string) *Store {
	return &Store{
		Root:        root,
		overrideDir: filepath.Join(root, ".overrides"),
		lock:        flock.NewFlock(filepath.Join(root, ".store.lock")),
	}
}

// Path returns the stable, hash-derived directory for id under Root,
// the four-two-char-segment layout. It does not guarantee the
// directory exists.
func (s *Store) Path(id ident.ID) string {
	return filepath.Join(s.Root, filepath.FromSlash(id.FSSubpath()))
}

func (s *Store) withLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.Root, 0755); err != nil {
		return errors.Wrap(err, "store: creating store root")
	}
	if err := s.lock.Lock(); err != nil {
		return errors.Wrap(err, "store: acquiring store lock")
	}
	defer s.lock.Unlock()
	return fn()
}

// Install records a freshly unpacked package's layout hash and group
// number.
func (s *Store) Install(id ident.ID, layoutHash string, groupNumber int64) error {
	return s.withLock(func() error {
		dir := s.Path(id)
		if isDir, err := fs.IsDir(dir); err != nil {
			return err
		} else if !isDir {
			return errors.Errorf("store: %s has no unpacked content at %s", id, dir)
		}
		rec := InstallRecord{LayoutHash: layoutHash, GroupNumber: groupNumber}
		return writeTOMLAtomic(installRecordPath(dir), rec)
	})
}

// IsInstalled reports whether id has a recorded install.
func (s *Store) IsInstalled(id ident.ID) (bool, error) {
	return fs.IsRegular(installRecordPath(s.Path(id)))
}

// InstalledHash returns the layout hash recorded for id's install.
func (s *Store) InstalledHash(id ident.ID) (string, error) {
	var rec InstallRecord
	if err := readTOML(installRecordPath(s.Path(id)), &rec); err != nil {
		return "", errors.Wrapf(err, "store: reading install record for %s", id)
	}
	return rec.LayoutHash, nil
}

func installRecordPath(dir string) string {
	return filepath.Join(dir, ".install.toml")
}
