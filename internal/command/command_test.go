// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import (
	"path/filepath"
	"testing"
)

func TestPrepareResolvesDeferredArgs(t *testing.T) {
	c := &Command{
		Name:    "link:x",
		Program: "cc",
		Args:    []Arg{Str("-o"), Deferred("outpath")},
	}
	resolve := func(key string) (string, error) {
		if key == "outpath" {
			return "/tmp/out", nil
		}
		t.Fatalf("unexpected key %q", key)
		return "", nil
	}
	if err := c.Prepare(resolve); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	got := c.ResolvedArgs()
	want := []string{"-o", "/tmp/out"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("ResolvedArgs = %v, want %v", got, want)
	}
}

func TestPrepareMissingResolverIsError(t *testing.T) {
	c := &Command{Program: "cc", Args: []Arg{Deferred("x")}}
	if err := c.Prepare(nil); err == nil {
		t.Fatal("Prepare: want error for deferred arg with no resolver")
	}
}

func TestResponseFileThreshold(t *testing.T) {
	dir := t.TempDir()
	c := &Command{
		Program:               "cc",
		Args:                  []Arg{Str("aaaaaaaaaa"), Str("bbbbbbbbbb")},
		ResponseFileThreshold: 5,
		RspDir:                dir,
	}
	if err := c.Prepare(nil); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	args := c.ResolvedArgs()
	if len(args) != 1 || args[0][0] != '@' {
		t.Fatalf("ResolvedArgs = %v, want single @rspfile arg", args)
	}
	rsp := args[0][1:]
	if filepath.Dir(rsp) != dir {
		t.Fatalf("response file %s not under %s", rsp, dir)
	}
}

func TestHashIgnoresArgOrderForBuiltins(t *testing.T) {
	c1 := &Command{Kind: KindBuiltin, Program: "self", resolvedArgs: []string{"a", "b"}}
	c2 := &Command{Kind: KindBuiltin, Program: "self", resolvedArgs: []string{"b", "a"}}
	if c1.Hash() != c2.Hash() {
		t.Fatal("builtin command hash should be order-independent")
	}
}

func TestHashPreservesArgOrderForGeneric(t *testing.T) {
	c1 := &Command{Program: "cc", resolvedArgs: []string{"a", "b"}}
	c2 := &Command{Program: "cc", resolvedArgs: []string{"b", "a"}}
	if c1.Hash() == c2.Hash() {
		t.Fatal("generic command hash should depend on arg order")
	}
}

func TestParseMSVCIncludes(t *testing.T) {
	out := []byte("compiling foo.c\nNote: including file: C:\\inc\\foo.h\nanother line\nNote: including file:  C:\\inc\\bar.h\n")
	implicit, cleaned := ParseMSVCIncludes(out)
	if len(implicit) != 2 || implicit[0] != `C:\inc\foo.h` || implicit[1] != `C:\inc\bar.h` {
		t.Fatalf("implicit = %v", implicit)
	}
	if string(cleaned) != "compiling foo.c\nanother line\n" {
		t.Fatalf("cleaned = %q", cleaned)
	}
}

func TestParseGCCDepContent(t *testing.T) {
	content := []byte("foo.o: foo.c foo.h \\\n  bar.h\n")
	deps := parseGCCDepContent(content)
	want := []string{"foo.c", "foo.h", "bar.h"}
	if len(deps) != len(want) {
		t.Fatalf("deps = %v, want %v", deps, want)
	}
	for i := range want {
		if deps[i] != want[i] {
			t.Fatalf("deps[%d] = %q, want %q", i, deps[i], want[i])
		}
	}
}
