// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package resolver turns a set of unresolved requests
// into a concrete, downloaded, installed package set. It consults the
// local index first, falls back to a remote refresh for any request the
// index has no match for or whose match was updated too recently, then
// downloads and installs independent packages in parallel, each under its
// own per-hash lock.
package resolver

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/nativepkg/nativepkg/internal/fs"
	"github.com/nativepkg/nativepkg/internal/ident"
	"github.com/nativepkg/nativepkg/internal/index"
	"github.com/nativepkg/nativepkg/internal/source"
	"github.com/nativepkg/nativepkg/internal/store"
	"github.com/pkg/errors"
	"github.com/theckman/go-flock"
	"golang.org/x/sync/errgroup"
)

// Resolver ties the index, store, and source packages together.
type Resolver struct {
	Index  *index.Index
	Store  *store.Store
	Remote index.RemoteSource

	// Workers caps the size of the parallel resolution pool. Zero means
	// unlimited (errgroup.Group's default).
	Workers int

	Logger *log.Logger

	locks *lockSet
}

// New returns a Resolver. lockDir is where per-hash install locks live;
// it's typically a subdirectory of the store root.
func New(idx *index.Index, st *store.Store, remote index.RemoteSource, lockDir string) *Resolver {
	return &Resolver{
		Index:  idx,
		Store:  st,
		Remote: remote,
		locks:  newLockSet(lockDir),
	}
}

// DescriptorFunc resolves a package id to the source it should be downloaded
// from. Callers supply this since source.Descriptor doesn't live in the
// index itself - only its hash/group/prefix/deps do.
type DescriptorFunc func(id ident.ID) (source.Descriptor, error)

// Resolve runs the full pipeline over requests, returning every resolved
// id keyed by its request path. already holds requests already resolved
// by a prior call (or a long-lived process cache) so step 1's "already
// resolved" filter has something to filter against.
func (r *Resolver) Resolve(ctx context.Context, requests []index.Request, already map[string]ident.ID, descriptorOf DescriptorFunc) (map[string]ident.ID, error) {
	unresolved := make([]index.Request, 0, len(requests))
	resolved := make(map[string]ident.ID, len(already))
	for k, v := range already {
		resolved[k] = v
	}
	for _, req := range requests {
		if _, ok := resolved[req.Path.String()]; ok {
			continue
		}
		unresolved = append(unresolved, req)
	}
	unresolved, err := r.resolveOverrides(unresolved, resolved)
	if err != nil {
		return nil, err
	}
	if len(unresolved) == 0 {
		return resolved, nil
	}

	results, err := r.resolveViaIndex(ctx, unresolved)
	if err != nil {
		return nil, err
	}

	type workItem struct {
		pathKey string
		id      ident.ID
		res     index.Resolved
	}
	work := make([]workItem, 0, len(results))
	for pathKey, res := range results {
		p, err := ident.ParsePath(pathKey)
		if err != nil {
			return nil, errors.Wrapf(err, "resolver: re-parsing resolved path %q", pathKey)
		}
		work = append(work, workItem{pathKey: pathKey, id: ident.ID{Path: p, Version: res.Version}, res: res})
	}
	// Dispatch in hash order: locks must be taken in hash order
	// to avoid deadlock, and ordering dispatch the same way keeps worker
	// scheduling deterministic across runs.
	sort.Slice(work, func(i, j int) bool { return work[i].id.HashString() < work[j].id.HashString() })

	g, gctx := errgroup.WithContext(ctx)
	if r.Workers > 0 {
		g.SetLimit(r.Workers)
	}

	type outcome struct {
		pathKey string
		id      ident.ID
	}
	outcomes := make(chan outcome, len(work))

	for _, w := range work {
		w := w
		g.Go(func() error {
			id := w.id
			res := w.res

			desc, err := descriptorOf(id)
			if err != nil {
				return errors.Wrapf(err, "resolver: determining source for %s", id)
			}

			if err := r.installOne(gctx, id, desc, res); err != nil {
				return errors.Wrapf(err, "resolver: installing %s", id)
			}

			outcomes <- outcome{pathKey: w.pathKey, id: id}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(outcomes)

	for o := range outcomes {
		resolved[o.pathKey] = o.id
	}
	return resolved, nil
}

// resolveOverrides satisfies requests from the store's override table
// before the index is ever consulted: an override within the requested
// range wins regardless of what the index knows, and its local source
// directory is authoritative, so no download or install happens for it.
// The highest overridden version in range is chosen, matching the
// index's own maximal-version rule.
func (r *Resolver) resolveOverrides(requests []index.Request, resolved map[string]ident.ID) ([]index.Request, error) {
	overrides, err := r.Store.OverriddenPackages()
	if err != nil {
		return nil, errors.Wrap(err, "resolver: loading override table")
	}
	if len(overrides) == 0 {
		return requests, nil
	}

	remaining := make([]index.Request, 0, len(requests))
	for _, req := range requests {
		var best ident.ID
		found := false
		for name := range overrides {
			id, err := parseTargetName(name)
			if err != nil {
				return nil, errors.Wrapf(err, "resolver: malformed override entry %q", name)
			}
			if !id.Path.Equal(req.Path) || !req.Range.Contains(id.Version) {
				continue
			}
			if !found || best.Version.Less(id.Version) {
				best = id
				found = true
			}
		}
		if found {
			resolved[req.Path.String()] = best
			continue
		}
		remaining = append(remaining, req)
	}
	return remaining, nil
}

// parseTargetName splits a "path-version" target name back into an id.
// Canonical path elements never contain '-' (it normalizes to '_'), so
// the first dash is always the separator, even when the version carries
// a dashed branch name.
func parseTargetName(name string) (ident.ID, error) {
	i := strings.Index(name, "-")
	if i <= 0 || i == len(name)-1 {
		return ident.ID{}, errors.Errorf("target name %q has no version separator", name)
	}
	p, err := ident.ParsePath(name[:i])
	if err != nil {
		return ident.ID{}, err
	}
	v, err := ident.ParseVersion(name[i+1:])
	if err != nil {
		return ident.ID{}, err
	}
	return ident.ID{Path: p, Version: v}, nil
}

// resolveViaIndex tries the local index first, falling
// back to a remote refresh for any request the local index can't safely
// answer (too young, or no match at all).
func (r *Resolver) resolveViaIndex(ctx context.Context, requests []index.Request) (map[string]index.Resolved, error) {
	out := make(map[string]index.Resolved, len(requests))
	var needsRemote []index.Request

	for _, req := range requests {
		res, err := r.Index.ResolveExact(req.Path, req.Range, true)
		switch {
		case err == nil:
			out[req.Path.String()] = res
		case errors.Cause(err) == index.ErrNeedsRemoteQuery || errors.Cause(err) == index.ErrNoSuchVersion:
			needsRemote = append(needsRemote, req)
		default:
			return nil, err
		}
	}

	if len(needsRemote) == 0 {
		return out, nil
	}
	if r.Remote == nil {
		return nil, errors.New("resolver: local index insufficient and no remote source configured")
	}
	if err := r.Index.Refresh(ctx, r.Remote); err != nil {
		return nil, errors.Wrap(err, "resolver: refreshing index from remote")
	}

	for _, req := range needsRemote {
		res, err := r.Index.ResolveExact(req.Path, req.Range, false)
		if err != nil {
			return nil, errors.Wrapf(err, "resolver: resolving %s after remote refresh", req.Path)
		}
		out[req.Path.String()] = res
	}
	return out, nil
}

// errHashMismatch marks a post-download verification failure; it is the
// one resolution error treated as retriable, since it usually means the
// local index's recorded hash is stale rather than the download corrupt.
var errHashMismatch = errors.New("resolver: on-disk hash does not match index hash")

// installOne downloads, installs, and verifies a single resolved package
// under its hash lock. A hash mismatch is taken as a hint that the local
// index is stale: the index is refreshed from the remote, the version
// re-resolved, and the download+verify retried once before the mismatch
// is surfaced.
func (r *Resolver) installOne(ctx context.Context, id ident.ID, desc source.Descriptor, expected index.Resolved) error {
	lock, err := r.locks.acquire(id.HashString())
	if err != nil {
		return err
	}
	defer lock.Unlock()

	err = r.downloadAndVerify(ctx, id, desc, expected)
	if err == nil || errors.Cause(err) != errHashMismatch || r.Remote == nil {
		return err
	}

	if rerr := r.Index.Refresh(ctx, r.Remote); rerr != nil {
		return errors.Wrapf(rerr, "refreshing index after hash mismatch on %s", id)
	}
	exact, rerr := ident.ParseRange(id.Version.String())
	if rerr != nil {
		return err
	}
	fresh, rerr := r.Index.ResolveExact(id.Path, exact, false)
	if rerr != nil {
		return errors.Wrapf(rerr, "re-resolving %s after hash mismatch", id)
	}
	return r.downloadAndVerify(ctx, id, desc, fresh)
}

// downloadAndVerify is installOne's single attempt: skip when the
// recorded install already matches, otherwise download, hash the
// unpacked layout, and record the install.
func (r *Resolver) downloadAndVerify(ctx context.Context, id ident.ID, desc source.Descriptor, expected index.Resolved) error {
	if installed, err := r.Store.IsInstalled(id); err != nil {
		return err
	} else if installed {
		got, err := r.Store.InstalledHash(id)
		if err != nil {
			return err
		}
		if got == expected.Hash {
			return nil
		}
		// Recorded hash disagrees with what the index now says: fall
		// through and re-fetch, the same as a fresh install.
	}

	dir := r.Store.Path(id)
	versioned := desc.ApplyVersion(id.Version)
	if err := source.Download(ctx, versioned, dir); err != nil {
		return errors.Wrapf(err, "downloading %s", id)
	}

	gotHash, err := fs.HashFromNode("", dir)
	if err != nil {
		return errors.Wrapf(err, "hashing unpacked layout for %s", id)
	}
	if gotHash != expected.Hash {
		return errors.Wrapf(errHashMismatch, "%s: on-disk %s, index %s", id, gotHash, expected.Hash)
	}

	return r.Store.Install(id, gotHash, expected.Group)
}

type lockSet struct {
	dir string
}

func newLockSet(dir string) *lockSet {
	return &lockSet{dir: dir}
}

func (ls *lockSet) acquire(hash string) (*flock.Flock, error) {
	if err := ensureDir(ls.dir); err != nil {
		return nil, err
	}
	fl := flock.NewFlock(lockPath(ls.dir, hash))
	if err := fl.Lock(); err != nil {
		return nil, errors.Wrapf(err, "resolver: locking package hash %s", hash)
	}
	return fl, nil
}
