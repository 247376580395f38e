// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fingerprint implements the per-file content fingerprint and
// implicit-dependency database underlying the plan's staleness check:
// each file record holds its content fingerprint, the command that
// generated it (if any), and the implicit dependency edges (e.g. headers)
// discovered while building it, persisted across runs.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio"
	"github.com/pkg/errors"
)

// Record is one file's persisted fingerprint state.
type Record struct {
	Fingerprint  string   `json:"fingerprint"`
	Generator    string   `json:"generator,omitempty"`
	ImplicitDeps []string `json:"implicit_deps,omitempty"`
}

// DB is the persisted file-record table. Access is guarded by a
// reader/writer lock: reads
// (staleness checks during planning) vastly outnumber writes (recording a
// fresh fingerprint after a command completes).
type DB struct {
	path string

	mu      sync.RWMutex
	records map[string]Record
}

// Open loads path if it exists, or starts empty if it doesn't.
func Open(path string) (*DB, error) {
	db := &DB{path: path, records: map[string]Record{}}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return db, nil
		}
		return nil, errors.Wrapf(err, "fingerprint: reading %s", path)
	}
	if err := json.Unmarshal(b, &db.records); err != nil {
		return nil, errors.Wrapf(err, "fingerprint: decoding %s", path)
	}
	return db, nil
}

// Save persists the database atomically.
func (db *DB) Save() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	b, err := json.Marshal(db.records)
	if err != nil {
		return errors.Wrap(err, "fingerprint: encoding database")
	}
	if dir := filepath.Dir(db.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "fingerprint: creating %s", dir)
		}
	}
	return errors.Wrapf(renameio.WriteFile(db.path, b, 0644), "fingerprint: writing %s", db.path)
}

// fingerprintFile returns the sha256 content hash of path.
func fingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Record returns the stored record for path, if any.
func (db *DB) Record(path string) (Record, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	r, ok := db.records[path]
	return r, ok
}

// Update recomputes path's fingerprint from disk and stores it alongside
// generator (the hash/name of the command that produced it, or "" for a
// source file nobody generates) and implicitDeps (headers discovered
// while building it, or nil).
func (db *DB) Update(path, generator string, implicitDeps []string) error {
	fp, err := fingerprintFile(path)
	if err != nil {
		return errors.Wrapf(err, "fingerprint: hashing %s", path)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	db.records[path] = Record{Fingerprint: fp, Generator: generator, ImplicitDeps: implicitDeps}
	return nil
}

// Stale reports whether path has changed since its last recorded
// fingerprint: true if the file is missing, has no record, or its current
// content hash doesn't match the recorded one.
func (db *DB) Stale(path string) (bool, error) {
	rec, ok := db.Record(path)
	if !ok {
		return true, nil
	}
	fp, err := fingerprintFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, errors.Wrapf(err, "fingerprint: hashing %s", path)
	}
	return fp != rec.Fingerprint, nil
}

// ImplicitDeps returns the recorded implicit dependency paths for path.
func (db *DB) ImplicitDeps(path string) []string {
	rec, ok := db.Record(path)
	if !ok {
		return nil
	}
	return rec.ImplicitDeps
}
