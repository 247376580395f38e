// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"regexp"
	"time"

	"github.com/nativepkg/nativepkg/internal/ident"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

// ErrNoSuchVersion is raised by ResolveExact when no cached entry for path
// satisfies rng.
var ErrNoSuchVersion = errors.New("index: no such version")

// Request is one unresolved package request fed to FindDependencies.
type Request struct {
	Path  ident.Path
	Range ident.Range
}

// Resolved is the per-request resolution result: the exact version
// chosen, its hash/group/prefix/flags, and its recorded dependency ids.
type Resolved struct {
	Version ident.Version
	Hash    string
	Group   int64
	Prefix  string
	Flags   []string
	Deps    []string
}

// FindDependencies resolves every request against the local snapshot,
// returning a map keyed by the request path's canonical string form. It
// never consults the network and answers even for recently updated
// entries; callers needing a guaranteed-fresh answer should check Stale
// (or call ResolveExact with offlineOnly=true, which reports
// ErrNeedsRemoteQuery for such entries) first.
func (idx *Index) FindDependencies(requests []Request) (map[string]Resolved, error) {
	out := make(map[string]Resolved, len(requests))
	for _, req := range requests {
		res, _, err := idx.resolveExact(req.Path, req.Range, false)
		if err != nil {
			return nil, errors.Wrapf(err, "index: resolving %s", req.Path)
		}
		out[req.Path.String()] = res
	}
	return out, nil
}

// ResolveExact picks the maximal cached version of path satisfying rng. If
// offlineOnly is true and the matched entry was updated within 2x the
// configured refresh window, ResolveExact refuses to answer from the
// cache and returns ErrNeedsRemoteQuery per the freshness rule: a
// very recently touched entry is not yet trusted to be the final word
// without checking upstream.
func (idx *Index) ResolveExact(path ident.Path, rng ident.Range, offlineOnly bool) (Resolved, error) {
	res, _, err := idx.resolveExact(path, rng, offlineOnly)
	return res, err
}

// ErrNeedsRemoteQuery is returned by ResolveExact when offlineOnly is set
// but the matched entry is too fresh to trust without a remote check.
var ErrNeedsRemoteQuery = errors.New("index: matched entry is within the freshness window; a remote query is required")

func (idx *Index) resolveExact(path ident.Path, rng ident.Range, offlineOnly bool) (Resolved, ident.Version, error) {
	candidates, entries, err := idx.versionsForPath(path)
	if err != nil {
		return Resolved{}, ident.Version{}, err
	}
	v, ok := rng.MaxSatisfying(candidates)
	if !ok {
		return Resolved{}, ident.Version{}, errors.Wrapf(ErrNoSuchVersion, "%s satisfying %s", path, rng)
	}
	e := entries[v.String()]

	if offlineOnly {
		updated := time.Unix(e.UpdatedAt, 0)
		if time.Since(updated) < 2*idx.refreshWindow {
			return Resolved{}, ident.Version{}, ErrNeedsRemoteQuery
		}
	}

	return Resolved{
		Version: v,
		Hash:    e.Hash,
		Group:   e.Group,
		Prefix:  e.Prefix,
		Flags:   e.Flags,
		Deps:    e.Deps,
	}, v, nil
}

func (idx *Index) versionsForPath(path ident.Path) ([]ident.Version, map[string]Entry, error) {
	lowered := path.HashString()
	var candidates []ident.Version
	entries := map[string]Entry{}

	err := idx.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			e, err := decodeEntry(v)
			if err != nil {
				return err
			}
			p, err := ident.ParsePath(e.Path)
			if err != nil {
				return nil // tolerate unrelated/legacy rows rather than failing the whole scan
			}
			if p.HashString() != lowered {
				return nil
			}
			ver, err := ident.ParseVersion(e.Version)
			if err != nil {
				return nil
			}
			candidates = append(candidates, ver)
			entries[ver.String()] = e
			return nil
		})
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "index: scanning entries for %s", path)
	}
	return candidates, entries, nil
}

// GetVersionsForPackage lists every cached version of path.
func (idx *Index) GetVersionsForPackage(path ident.Path) ([]ident.Version, error) {
	versions, _, err := idx.versionsForPath(path)
	return versions, err
}

// GetMatchingPackages returns every distinct package path in the local
// snapshot whose canonical string matches pattern.
func (idx *Index) GetMatchingPackages(pattern *regexp.Regexp) ([]ident.Path, error) {
	seen := map[string]ident.Path{}
	err := idx.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			e, err := decodeEntry(v)
			if err != nil {
				return err
			}
			if !pattern.MatchString(e.Path) {
				return nil
			}
			p, err := ident.ParsePath(e.Path)
			if err != nil {
				return nil
			}
			seen[p.HashString()] = p
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "index: scanning entries")
	}

	out := make([]ident.Path, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	return out, nil
}
