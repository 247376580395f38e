// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package index implements the local snapshot of the remote package index
// a read-mostly table of (package path, version) -> (hash, group
// number, dependencies, prefix), refreshed from a remote source when it
// goes stale, backed by an embedded bbolt database.
package index

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

// schemaVersion is bumped whenever the on-disk entry encoding changes
// shape; a mismatch against the stored value triggers a clean reload
// instead of trying to decode incompatible records.
const schemaVersion = 1

var (
	bucketEntries = []byte("entries")
	bucketMeta    = []byte("meta")

	keySchemaVersion = []byte("schema_version")
	keyLastRefresh   = []byte("last_refresh_unix")
)

// Entry is one resolved (path, version) row of the index, carrying the
// findDependencies/resolveExact return shape.
type Entry struct {
	Path      string   `json:"path"`
	Version   string   `json:"version"`
	Hash      string   `json:"hash"`
	Group     int64    `json:"group"`
	Prefix    string   `json:"prefix"`
	Flags     []string `json:"flags"`
	Deps      []string `json:"deps"`
	UpdatedAt int64    `json:"updated_at"`
}

// Index is a local, read-mostly snapshot of the remote package index.
type Index struct {
	db            *bbolt.DB
	refreshWindow time.Duration
	logger        *log.Logger
}

// Open opens (creating if absent) the bbolt-backed snapshot file at path.
// refreshWindow is the staleness threshold for the local snapshot.
func Open(path string, refreshWindow time.Duration, logger *log.Logger) (*Index, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "index: creating %s", dir)
		}
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "index: opening %s", path)
	}

	idx := &Index{db: db, refreshWindow: refreshWindow, logger: logger}
	if err := idx.init(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) init() error {
	return idx.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketEntries); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}

		stored := meta.Get(keySchemaVersion)
		if stored == nil {
			return meta.Put(keySchemaVersion, schemaVersionBytes())
		}
		if string(stored) != string(schemaVersionBytes()) {
			idx.logf("index: schema version changed (have %s, want %d), clearing cached entries", stored, schemaVersion)
			if err := tx.DeleteBucket(bucketEntries); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(bucketEntries); err != nil {
				return err
			}
			return meta.Put(keySchemaVersion, schemaVersionBytes())
		}
		return nil
	})
}

func schemaVersionBytes() []byte {
	return []byte(jsonNumber(schemaVersion))
}

func jsonNumber(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func (idx *Index) logf(format string, args ...interface{}) {
	if idx.logger != nil {
		idx.logger.Printf(format, args...)
	}
}

// Close releases the underlying database file.
func (idx *Index) Close() error {
	return errors.Wrap(idx.db.Close(), "index: closing database")
}

func entryKey(path, version string) []byte {
	return []byte(path + "@" + version)
}

func (idx *Index) putEntry(tx *bbolt.Tx, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return errors.Wrapf(err, "index: encoding entry for %s", e.Path)
	}
	return tx.Bucket(bucketEntries).Put(entryKey(e.Path, e.Version), b)
}

func decodeEntry(b []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return Entry{}, errors.Wrap(err, "index: decoding entry")
	}
	return e, nil
}

func (idx *Index) lastRefresh() (time.Time, error) {
	var ts int64
	err := idx.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta).Get(keyLastRefresh)
		if b == nil {
			return nil
		}
		return json.Unmarshal(b, &ts)
	})
	return time.Unix(ts, 0), err
}

func (idx *Index) setLastRefresh(t time.Time) error {
	return idx.db.Update(func(tx *bbolt.Tx) error {
		b, err := json.Marshal(t.Unix())
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyLastRefresh, b)
	})
}

// Stale reports whether the local snapshot is older than refreshWindow.
func (idx *Index) Stale() (bool, error) {
	last, err := idx.lastRefresh()
	if err != nil {
		return true, err
	}
	return time.Since(last) > idx.refreshWindow, nil
}
