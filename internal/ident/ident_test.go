// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ident

import "testing"

func mustPath(t *testing.T, s string) Path {
	t.Helper()
	p, err := ParsePath(s)
	if err != nil {
		t.Fatalf("ParsePath(%q): %v", s, err)
	}
	return p
}

func TestPathEqualityIsCaseInsensitive(t *testing.T) {
	a := mustPath(t, "pub.example.lib")
	b := mustPath(t, "PUB.Example.Lib")
	if !a.Equal(b) {
		t.Fatalf("expected %q and %q to be equal", a, b)
	}
	if a.Compare(b) != 0 {
		t.Fatalf("expected %q and %q to compare equal", a, b)
	}
}

func TestPathNormalizesDashes(t *testing.T) {
	p := mustPath(t, "pub.my-lib")
	if p.String() != "pub.my_lib" {
		t.Fatalf("got %q, want %q", p, "pub.my_lib")
	}
}

func TestPathNamespaceOrder(t *testing.T) {
	org := mustPath(t, "org.foo")
	pub := mustPath(t, "pub.foo")
	if org.Compare(pub) >= 0 {
		t.Fatalf("expected org namespace to sort before pub namespace")
	}
}

func TestVersionCompare(t *testing.T) {
	v1, _ := ParseVersion("1.0.0")
	v2, _ := ParseVersion("1.2.0")
	v3, _ := ParseVersion("1.2.0")
	if !v1.Less(v2) {
		t.Fatalf("expected 1.0.0 < 1.2.0")
	}
	if !v2.Equal(v3) {
		t.Fatalf("expected 1.2.0 == 1.2.0")
	}
	if !AnyVersion.Equal(v1) {
		t.Fatalf("expected AnyVersion to compare equal to any version")
	}
}

func TestRangeMaxSatisfying(t *testing.T) {
	r, err := ParseRange("[1.0.0,2.0.0)")
	if err != nil {
		t.Fatal(err)
	}
	candidates := []Version{mustVersion(t, "1.0.0"), mustVersion(t, "1.1.0"), mustVersion(t, "1.2.0"), mustVersion(t, "2.0.0")}
	got, ok := r.MaxSatisfying(candidates)
	if !ok {
		t.Fatalf("expected a satisfying version")
	}
	if got.String() != "1.2.0" {
		t.Fatalf("got %q, want %q", got, "1.2.0")
	}
}

func TestRangeMaxSatisfyingNoMatch(t *testing.T) {
	r, err := ParseRange("[3.0.0,4.0.0)")
	if err != nil {
		t.Fatal(err)
	}
	_, ok := r.MaxSatisfying([]Version{mustVersion(t, "1.0.0")})
	if ok {
		t.Fatalf("expected no satisfying version")
	}
}

func mustVersion(t *testing.T, s string) Version {
	t.Helper()
	v, err := ParseVersion(s)
	if err != nil {
		t.Fatalf("ParseVersion(%q): %v", s, err)
	}
	return v
}

func TestFSSubpathIsStableLayout(t *testing.T) {
	p := mustPath(t, "pub.example.lib")
	v := mustVersion(t, "1.2.0")
	id := ID{Path: p, Version: v}

	sub := id.FSSubpath()
	parts := []rune(sub)
	_ = parts

	expect := FSSubpathFromShortHash(id.ShortHash())
	if sub != expect {
		t.Fatalf("FSSubpath() = %q, want %q", sub, expect)
	}
	if len(sub) < len("aa/bb/cc/dd/") {
		t.Fatalf("FSSubpath() = %q is too short to be segmented", sub)
	}
}

func TestShortHashAndFullHashDiffer(t *testing.T) {
	id := ID{Path: mustPath(t, "pub.example.lib"), Version: mustVersion(t, "1.0.0")}
	if id.ShortHash() == id.HashString() {
		t.Fatalf("short hash should be a strict prefix, not equal to the full hash")
	}
	if id.HashString()[:len(id.ShortHash())] != id.ShortHash() {
		t.Fatalf("short hash must be a prefix of the full hash")
	}
}
