// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestIsRegularAndIsDir(t *testing.T) {
	dir, err := ioutil.TempDir("", "fs-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	file := filepath.Join(dir, "f")
	if err := ioutil.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if ok, err := IsRegular(file); err != nil || !ok {
		t.Fatalf("IsRegular(%q) = %v, %v; want true, nil", file, ok, err)
	}
	if ok, err := IsDir(dir); err != nil || !ok {
		t.Fatalf("IsDir(%q) = %v, %v; want true, nil", dir, ok, err)
	}
	if ok, _ := IsDir(file); ok {
		t.Fatalf("IsDir(%q) = true; want false", file)
	}
	if ok, err := IsRegular(filepath.Join(dir, "missing")); err != nil || ok {
		t.Fatalf("IsRegular(missing) = %v, %v; want false, nil", ok, err)
	}
}

func TestCopyDirAndRenameWithFallback(t *testing.T) {
	src, err := ioutil.TempDir("", "fs-src")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(src)

	if err := ioutil.WriteFile(filepath.Join(src, "a.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(src, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(filepath.Join(src, "sub", "b.txt"), []byte("world"), 0644); err != nil {
		t.Fatal(err)
	}

	dest := src + "-copy"
	defer os.RemoveAll(dest)
	if err := CopyDir(src, dest); err != nil {
		t.Fatalf("CopyDir: %v", err)
	}

	got, err := ioutil.ReadFile(filepath.Join(dest, "sub", "b.txt"))
	if err != nil || string(got) != "world" {
		t.Fatalf("copied file content = %q, %v; want %q, nil", got, err, "world")
	}

	renamed := src + "-renamed"
	defer os.RemoveAll(renamed)
	if err := RenameWithFallback(dest, renamed); err != nil {
		t.Fatalf("RenameWithFallback: %v", err)
	}
	if ok, err := IsNonEmptyDir(renamed); err != nil || !ok {
		t.Fatalf("IsNonEmptyDir(renamed) = %v, %v; want true, nil", ok, err)
	}
	if ok, _ := IsDir(dest); ok {
		t.Fatalf("source directory %q still exists after rename", dest)
	}
}

func TestHasFilepathPrefix(t *testing.T) {
	dir, err := ioutil.TempDir("", "fs-prefix")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	foo := filepath.Join(dir, "foo")
	foobar := filepath.Join(dir, "foobar")
	if err := os.Mkdir(foo, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(foobar, 0755); err != nil {
		t.Fatal(err)
	}

	if !HasFilepathPrefix(filepath.Join(foo, "x"), foo) {
		t.Errorf("expected %q to have prefix %q", filepath.Join(foo, "x"), foo)
	}
	if HasFilepathPrefix(foobar, foo) {
		t.Errorf("did not expect %q to have prefix %q", foobar, foo)
	}
}

func TestHashFromNodeIsStableAndContentSensitive(t *testing.T) {
	dir, err := ioutil.TempDir("", "fs-hash")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	if err := ioutil.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	h1, err := HashFromNode("", dir)
	if err != nil {
		t.Fatalf("HashFromNode: %v", err)
	}
	h2, err := HashFromNode("", dir)
	if err != nil {
		t.Fatalf("HashFromNode: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("hash not stable across repeated calls: %q vs %q", h1, h2)
	}

	if err := ioutil.WriteFile(filepath.Join(dir, "a.txt"), []byte("world"), 0644); err != nil {
		t.Fatal(err)
	}
	h3, err := HashFromNode("", dir)
	if err != nil {
		t.Fatalf("HashFromNode: %v", err)
	}
	if h1 == h3 {
		t.Fatal("expected hash to change after file content changed")
	}
}
