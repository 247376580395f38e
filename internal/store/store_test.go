// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"os"
	"regexp"
	"testing"

	"github.com/nativepkg/nativepkg/internal/ident"
)

func mustID(t *testing.T, path, version string) ident.ID {
	t.Helper()
	p, err := ident.ParsePath(path)
	if err != nil {
		t.Fatalf("ParsePath(%q): %v", path, err)
	}
	v, err := ident.ParseVersion(version)
	if err != nil {
		t.Fatalf("ParseVersion(%q): %v", version, err)
	}
	return ident.ID{Path: p, Version: v}
}

func TestInstallAndLookup(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	id := mustID(t, "org.widgets.core", "1.2.3")

	if err := os.MkdirAll(s.Path(id), 0755); err != nil {
		t.Fatal(err)
	}

	if ok, err := s.IsInstalled(id); err != nil || ok {
		t.Fatalf("IsInstalled before Install = %v, %v; want false, nil", ok, err)
	}

	if err := s.Install(id, "deadbeef", 7); err != nil {
		t.Fatalf("Install: %v", err)
	}

	ok, err := s.IsInstalled(id)
	if err != nil || !ok {
		t.Fatalf("IsInstalled after Install = %v, %v; want true, nil", ok, err)
	}

	hash, err := s.InstalledHash(id)
	if err != nil {
		t.Fatalf("InstalledHash: %v", err)
	}
	if hash != "deadbeef" {
		t.Fatalf("InstalledHash = %q, want %q", hash, "deadbeef")
	}
}

func TestInstallRequiresUnpackedContent(t *testing.T) {
	s := New(t.TempDir())
	id := mustID(t, "org.widgets.core", "1.0.0")
	if err := s.Install(id, "hash", 1); err == nil {
		t.Fatal("expected Install to fail without an unpacked directory")
	}
}

func TestOverrideTableRoundTrips(t *testing.T) {
	s := New(t.TempDir())
	id := mustID(t, "pub.widgets.core", "2.0.0")

	rec := OverrideRecord{SourceDir: "/local/widgets", PrefixLength: 3, OverrideID: -1}
	if err := s.OverridePackage(id, rec); err != nil {
		t.Fatalf("OverridePackage: %v", err)
	}

	table, err := s.OverriddenPackages()
	if err != nil {
		t.Fatalf("OverriddenPackages: %v", err)
	}
	got, ok := table[id.TargetName()]
	if !ok {
		t.Fatalf("expected override entry for %s", id.TargetName())
	}
	if got.SourceDir != rec.SourceDir || got.OverrideID != -1 {
		t.Fatalf("got override %+v, want %+v", got, rec)
	}

	if err := s.DeleteOverridden(id.TargetName()); err != nil {
		t.Fatalf("DeleteOverridden: %v", err)
	}
	table, err = s.OverriddenPackages()
	if err != nil {
		t.Fatalf("OverriddenPackages after delete: %v", err)
	}
	if _, ok := table[id.TargetName()]; ok {
		t.Fatal("expected override entry to be gone after DeleteOverridden")
	}
}

func TestCleanWithCascade(t *testing.T) {
	s := New(t.TempDir())
	base := mustID(t, "org.widgets.base", "1.0.0")
	dependent := mustID(t, "org.widgets.dependent", "1.0.0")

	for _, id := range []ident.ID{base, dependent} {
		if err := os.MkdirAll(s.Path(id), 0755); err != nil {
			t.Fatal(err)
		}
	}

	all := []Installed{
		{ID: base},
		{ID: dependent, Deps: []ident.ID{base}},
	}

	filter := regexp.MustCompile("^" + regexp.QuoteMeta(base.TargetName()) + "$")
	if err := s.Clean(filter, true, all); err != nil {
		t.Fatalf("Clean: %v", err)
	}

	if isDir, _ := dirExists(s.Path(base)); isDir {
		t.Fatal("expected base's directory to be removed")
	}
	if isDir, _ := dirExists(s.Path(dependent)); isDir {
		t.Fatal("expected dependent's directory to cascade-remove with base")
	}
}

func dirExists(path string) (bool, error) {
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}
