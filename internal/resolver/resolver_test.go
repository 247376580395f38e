// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nativepkg/nativepkg/internal/fs"
	"github.com/nativepkg/nativepkg/internal/ident"
	"github.com/nativepkg/nativepkg/internal/index"
	"github.com/nativepkg/nativepkg/internal/source"
	"github.com/nativepkg/nativepkg/internal/store"
)

func mustPath(t *testing.T, s string) ident.Path {
	t.Helper()
	p, err := ident.ParsePath(s)
	if err != nil {
		t.Fatalf("ParsePath(%q): %v", s, err)
	}
	return p
}

func mustRange(t *testing.T, s string) ident.Range {
	t.Helper()
	r, err := ident.ParseRange(s)
	if err != nil {
		t.Fatalf("ParseRange(%q): %v", s, err)
	}
	return r
}

type fakeRemote struct{ snap index.Snapshot }

func (f fakeRemote) FetchSnapshot(ctx context.Context) (index.Snapshot, error) { return f.snap, nil }

func setup(t *testing.T) (*index.Index, *store.Store, string) {
	t.Helper()
	root := t.TempDir()
	idx, err := index.Open(filepath.Join(root, "index.db"), time.Hour, nil)
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	st := store.New(filepath.Join(root, "store"))
	return idx, st, filepath.Join(root, "locks")
}

func TestResolveInstallsAndSkipsOnMatchingHash(t *testing.T) {
	idx, st, lockDir := setup(t)

	p := mustPath(t, "org.widgets.core")
	id := ident.ID{Path: p, Version: mustVersion(t, "1.0.0")}
	dir := st.Path(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "content.txt"), []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}
	hash, err := fs.HashFromNode("", dir)
	if err != nil {
		t.Fatalf("HashFromNode: %v", err)
	}

	remote := fakeRemote{snap: index.Snapshot{
		SchemaVersion: 1,
		Entries: []index.Entry{
			{Path: p.String(), Version: "1.0.0", Hash: hash, Group: 1, UpdatedAt: time.Now().Add(-24 * time.Hour).Unix()},
		},
	}}

	r := New(idx, st, remote, lockDir)
	descOf := func(id ident.ID) (source.Descriptor, error) {
		return source.Descriptor{Kind: source.Empty}, nil
	}

	resolved, err := r.Resolve(context.Background(), []index.Request{{Path: p, Range: mustRange(t, "*")}}, nil, descOf)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got, ok := resolved[p.String()]
	if !ok || !got.Version.Equal(id.Version) {
		t.Fatalf("resolved[%q] = %+v, %v", p.String(), got, ok)
	}

	installed, err := st.IsInstalled(id)
	if err != nil || !installed {
		t.Fatalf("IsInstalled = %v, %v; want true, nil", installed, err)
	}
	gotHash, err := st.InstalledHash(id)
	if err != nil || gotHash != hash {
		t.Fatalf("InstalledHash = %q, %v; want %q, nil", gotHash, err, hash)
	}

	// Resolving again should short-circuit on the matching recorded hash
	// without needing the descriptor function to do anything new.
	resolved2, err := r.Resolve(context.Background(), []index.Request{{Path: p, Range: mustRange(t, "*")}}, nil, descOf)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if resolved2[p.String()].String() != resolved[p.String()].String() {
		t.Fatalf("second resolve produced a different id: %+v vs %+v", resolved2[p.String()], resolved[p.String()])
	}
}

func TestResolveAlreadyResolvedIsSkipped(t *testing.T) {
	idx, st, lockDir := setup(t)
	p := mustPath(t, "org.widgets.core")
	already := map[string]ident.ID{p.String(): {Path: p, Version: mustVersion(t, "9.9.9")}}

	r := New(idx, st, nil, lockDir)
	resolved, err := r.Resolve(context.Background(), []index.Request{{Path: p, Range: mustRange(t, "*")}}, already, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved[p.String()].Version.String() != "9.9.9" {
		t.Fatalf("expected the already-resolved entry to be preserved untouched, got %+v", resolved[p.String()])
	}
}

func TestHashMismatchRefreshesIndexAndRetries(t *testing.T) {
	idx, st, lockDir := setup(t)

	p := mustPath(t, "org.widgets.core")
	id := ident.ID{Path: p, Version: mustVersion(t, "1.0.0")}
	dir := st.Path(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "content.txt"), []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}
	hash, err := fs.HashFromNode("", dir)
	if err != nil {
		t.Fatalf("HashFromNode: %v", err)
	}

	// Seed the local index with a stale hash, then hand the resolver a
	// remote that knows the correct one: the mismatch must trigger a
	// refresh and a second verify instead of a hard failure.
	old := time.Now().Add(-24 * time.Hour).Unix()
	stale := fakeRemote{snap: index.Snapshot{
		SchemaVersion: 1,
		Entries: []index.Entry{
			{Path: p.String(), Version: "1.0.0", Hash: "0000stale", Group: 1, UpdatedAt: old},
		},
	}}
	if err := idx.Refresh(context.Background(), stale); err != nil {
		t.Fatalf("seeding stale index: %v", err)
	}
	good := fakeRemote{snap: index.Snapshot{
		SchemaVersion: 1,
		Entries: []index.Entry{
			{Path: p.String(), Version: "1.0.0", Hash: hash, Group: 1, UpdatedAt: old},
		},
	}}

	r := New(idx, st, good, lockDir)
	descOf := func(id ident.ID) (source.Descriptor, error) {
		return source.Descriptor{Kind: source.Empty}, nil
	}
	resolved, err := r.Resolve(context.Background(), []index.Request{{Path: p, Range: mustRange(t, "*")}}, nil, descOf)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := resolved[p.String()]; !got.Version.Equal(id.Version) {
		t.Fatalf("resolved[%q] = %+v", p.String(), got)
	}
	gotHash, err := st.InstalledHash(id)
	if err != nil || gotHash != hash {
		t.Fatalf("InstalledHash = %q, %v; want %q, nil", gotHash, err, hash)
	}
}

func TestHashMismatchWithoutRemoteIsFatal(t *testing.T) {
	idx, st, lockDir := setup(t)

	p := mustPath(t, "org.widgets.core")
	id := ident.ID{Path: p, Version: mustVersion(t, "1.0.0")}
	dir := st.Path(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "content.txt"), []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}

	old := time.Now().Add(-24 * time.Hour).Unix()
	stale := fakeRemote{snap: index.Snapshot{
		SchemaVersion: 1,
		Entries: []index.Entry{
			{Path: p.String(), Version: "1.0.0", Hash: "0000stale", Group: 1, UpdatedAt: old},
		},
	}}
	if err := idx.Refresh(context.Background(), stale); err != nil {
		t.Fatalf("seeding stale index: %v", err)
	}

	r := New(idx, st, nil, lockDir)
	descOf := func(id ident.ID) (source.Descriptor, error) {
		return source.Descriptor{Kind: source.Empty}, nil
	}
	_, err := r.Resolve(context.Background(), []index.Request{{Path: p, Range: mustRange(t, "*")}}, nil, descOf)
	if err == nil {
		t.Fatal("Resolve: want hash-mismatch error when no remote can refresh the index")
	}
}

func TestOverrideBeatsIndex(t *testing.T) {
	idx, st, lockDir := setup(t)

	p := mustPath(t, "org.widgets.core")
	id := ident.ID{Path: p, Version: mustVersion(t, "1.2.0")}
	localDir := t.TempDir()
	if err := st.OverridePackage(id, store.OverrideRecord{SourceDir: localDir, OverrideID: -1}); err != nil {
		t.Fatalf("OverridePackage: %v", err)
	}

	// The index knows a newer in-range version, but the override wins;
	// no remote, descriptor, or download is ever consulted.
	seed := fakeRemote{snap: index.Snapshot{
		SchemaVersion: 1,
		Entries: []index.Entry{
			{Path: p.String(), Version: "1.5.0", Hash: "h150", Group: 1, UpdatedAt: time.Now().Add(-24 * time.Hour).Unix()},
		},
	}}
	if err := idx.Refresh(context.Background(), seed); err != nil {
		t.Fatalf("seeding index: %v", err)
	}
	r := New(idx, st, nil, lockDir)
	resolved, err := r.Resolve(context.Background(), []index.Request{{Path: p, Range: mustRange(t, "[1.0.0,2.0.0)")}}, nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got, ok := resolved[p.String()]
	if !ok || !got.Version.Equal(id.Version) {
		t.Fatalf("resolved[%q] = %+v, %v; want override id %s", p.String(), got, ok, id)
	}

	overrides, err := st.OverriddenPackages()
	if err != nil {
		t.Fatalf("OverriddenPackages: %v", err)
	}
	rec, ok := overrides[got.TargetName()]
	if !ok || rec.SourceDir != localDir || rec.OverrideID >= 0 {
		t.Fatalf("override record = %+v, %v; want SourceDir %q and a negative id", rec, ok, localDir)
	}
}

func TestOverrideOutsideRangeIsIgnored(t *testing.T) {
	idx, st, lockDir := setup(t)

	p := mustPath(t, "org.widgets.core")
	id := ident.ID{Path: p, Version: mustVersion(t, "3.0.0")}
	if err := st.OverridePackage(id, store.OverrideRecord{SourceDir: t.TempDir(), OverrideID: -1}); err != nil {
		t.Fatalf("OverridePackage: %v", err)
	}

	r := New(idx, st, nil, lockDir)
	_, err := r.Resolve(context.Background(), []index.Request{{Path: p, Range: mustRange(t, "[1.0.0,2.0.0)")}}, nil, nil)
	if err == nil {
		t.Fatal("Resolve: want error when the only override is out of range and no index/remote can answer")
	}
}

func mustVersion(t *testing.T, s string) ident.Version {
	t.Helper()
	v, err := ident.ParseVersion(s)
	if err != nil {
		t.Fatalf("ParseVersion(%q): %v", s, err)
	}
	return v
}
