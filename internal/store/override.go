// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"os"
	"path/filepath"

	"github.com/nativepkg/nativepkg/internal/ident"
	"github.com/pkg/errors"
)

// overrideTable is the whole override table, one entry per overridden
// package id's target name, persisted as a single TOML file so readers
// never have to walk the store to enumerate overrides.
type overrideTable struct {
	Entries map[string]OverrideRecord `toml:"entries"`
}

func (s *Store) overrideTablePath() string {
	return filepath.Join(s.overrideDir, "overrides.toml")
}

func (s *Store) loadOverrideTable() (overrideTable, error) {
	var t overrideTable
	if err := readTOML(s.overrideTablePath(), &t); err != nil {
		if os.IsNotExist(err) {
			return overrideTable{Entries: map[string]OverrideRecord{}}, nil
		}
		return overrideTable{}, err
	}
	if t.Entries == nil {
		t.Entries = map[string]OverrideRecord{}
	}
	return t, nil
}

// OverridePackage inserts or replaces the override record for id. Per
// any previous override sharing id's target name is deleted first,
// so a stale redirect never lingers alongside a new one.
func (s *Store) OverridePackage(id ident.ID, rec OverrideRecord) error {
	return s.withLock(func() error {
		t, err := s.loadOverrideTable()
		if err != nil {
			return errors.Wrap(err, "store: loading override table")
		}
		delete(t.Entries, id.TargetName())
		t.Entries[id.TargetName()] = rec
		return writeTOMLAtomic(s.overrideTablePath(), t)
	})
}

// OverriddenPackages returns a snapshot of the whole override table.
func (s *Store) OverriddenPackages() (map[string]OverrideRecord, error) {
	t, err := s.loadOverrideTable()
	if err != nil {
		return nil, errors.Wrap(err, "store: loading override table")
	}
	return t.Entries, nil
}

// DeleteOverridden removes the override record named by targetName, if any.
func (s *Store) DeleteOverridden(targetName string) error {
	return s.withLock(func() error {
		t, err := s.loadOverrideTable()
		if err != nil {
			return errors.Wrap(err, "store: loading override table")
		}
		if _, ok := t.Entries[targetName]; !ok {
			return nil
		}
		delete(t.Entries, targetName)
		return writeTOMLAtomic(s.overrideTablePath(), t)
	})
}
