// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"context"
	"testing"

	"github.com/nativepkg/nativepkg/internal/ident"
)

func TestAliasValidate(t *testing.T) {
	cases := []struct {
		name string
		a    Alias
		ok   bool
	}{
		{"git upstream ok", Alias{CanonicalPath: "org.widgets.core", Upstream: Descriptor{Kind: Git, URL: "https://github.com/widgets/core"}, Major: -1}, true},
		{"missing canonical path", Alias{Upstream: Descriptor{Kind: Git, URL: "https://github.com/widgets/core"}, Major: -1}, false},
		{"non-git upstream", Alias{CanonicalPath: "org.widgets.core", Upstream: Descriptor{Kind: Svn, URL: "https://svn.example.com/core"}, Major: -1}, false},
		{"bad upstream url", Alias{CanonicalPath: "org.widgets.core", Upstream: Descriptor{Kind: Git, URL: "not a url"}, Major: -1}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.a.Validate()
			if (err == nil) != c.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, c.ok)
			}
		})
	}
}

func TestAliasCanonicalKeyIgnoresUpstream(t *testing.T) {
	a := Alias{CanonicalPath: "Org.Widgets.Core", Upstream: Descriptor{Kind: Git, URL: "https://github.com/widgets/core"}, Major: -1}
	b := Alias{CanonicalPath: "org.widgets.core", Upstream: Descriptor{Kind: Git, URL: "git://mirror.example.com/widgets/core"}, Major: -1}
	if a.CanonicalKey() != b.CanonicalKey() {
		t.Fatalf("mirrors of one canonical path got distinct keys: %q vs %q", a.CanonicalKey(), b.CanonicalKey())
	}

	c := Alias{CanonicalPath: "org.widgets.core", Upstream: Descriptor{Kind: Git, URL: "https://github.com/widgets/core", Selector: Selector{Tag: "v2.0.0"}}, Major: 2}
	if a.CanonicalKey() == c.CanonicalKey() {
		t.Fatal("distinct selectors share a key")
	}
}

func TestAliasAllowsTag(t *testing.T) {
	cases := []struct {
		major int64
		tag   string
		want  bool
	}{
		{2, "v2.1.0", true},
		{2, "2.1.0", true},
		{2, "v3.0.0", false},
		{2, "v1.9.9", false},
		{2, "release-2", false},
		{-1, "anything-goes", true},
		{0, "v0.4.1", true},
	}
	for _, c := range cases {
		a := Alias{Major: c.major}
		if got := a.AllowsTag(c.tag); got != c.want {
			t.Errorf("Major=%d AllowsTag(%q) = %v, want %v", c.major, c.tag, got, c.want)
		}
	}
}

func TestAliasApplyVersionTemplatesUpstream(t *testing.T) {
	a := Alias{
		CanonicalPath: "org.widgets.core",
		Upstream: Descriptor{
			Kind:     Git,
			URL:      "https://github.com/widgets/core",
			Selector: Selector{Tag: "v{major}.{minor}.{patch}"},
		},
		Major: 1,
	}
	v, err := ident.ParseVersion("1.2.3")
	if err != nil {
		t.Fatalf("ParseVersion: %v", err)
	}
	out := a.ApplyVersion(v)
	if out.Upstream.Selector.Tag != "v1.2.3" {
		t.Fatalf("Tag = %q", out.Upstream.Selector.Tag)
	}
	if out.CanonicalPath != a.CanonicalPath {
		t.Fatal("ApplyVersion must not rewrite the canonical path")
	}
}

func TestAliasDownloadRejectsOutOfMajorTag(t *testing.T) {
	a := Alias{
		CanonicalPath: "org.widgets.core",
		Upstream: Descriptor{
			Kind:     Git,
			URL:      "https://github.com/widgets/core",
			Selector: Selector{Tag: "v3.0.0"},
		},
		Major: 2,
	}
	if err := a.Download(context.Background(), t.TempDir()); err == nil {
		t.Fatal("Download: want error for a tag outside the pinned major version")
	}
}
