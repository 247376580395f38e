// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"context"
	"strconv"
	"strings"

	"github.com/nativepkg/nativepkg/internal/ident"
	"github.com/pkg/errors"
)

// Alias redirects a Git-backed descriptor the way gopkg.in-style hosts
// do: the package stays known (and deduplicated) under its canonical
// path, while the actual fetch goes to a different upstream. Package
// indices routinely mirror a package under one path and serve its bits
// from another; two aliases with the same canonical path share one
// download even when their upstream URLs differ by scheme or host.
type Alias struct {
	// CanonicalPath is the path the package is known by. It keys
	// deduplication and equality; it need not be fetchable itself.
	CanonicalPath string

	// Upstream is the Git descriptor actually fetched.
	Upstream Descriptor

	// Major, when >= 0, restricts tag selection to that major version -
	// the pkg.v2-serves-only-v2.x contract. Negative admits any tag.
	Major int64
}

// Validate reports whether a is a well-formed alias: a non-empty
// canonical path over a valid Git upstream. Only Git upstreams can be
// aliased; the mirror hosts that need this all serve git.
func (a Alias) Validate() error {
	if a.CanonicalPath == "" {
		return errors.New("source: alias has no canonical path")
	}
	if a.Upstream.Kind != Git {
		return errors.Errorf("source: cannot alias a %s upstream, only git", a.Upstream.Kind)
	}
	return a.Upstream.IsValidURL()
}

// CanonicalKey keys dedup and equality by the canonical path, not the
// upstream URL, so mirrors of one package collapse to one fetch.
func (a Alias) CanonicalKey() string {
	return "alias|" + strings.ToLower(a.CanonicalPath) + "|" + a.Upstream.Selector.String()
}

// ApplyVersion templates the upstream descriptor's URL and selector.
func (a Alias) ApplyVersion(v ident.Version) Alias {
	a.Upstream = a.Upstream.ApplyVersion(v)
	return a
}

// AllowsTag reports whether tag belongs to the aliased major version.
// Tags may carry a leading "v"; anything that doesn't parse as a
// dotted-number tag is rejected when a major filter is set, since an
// unparseable tag can't be proven to belong to the pinned major.
func (a Alias) AllowsTag(tag string) bool {
	if a.Major < 0 {
		return true
	}
	t := strings.TrimPrefix(tag, "v")
	head := t
	if i := strings.IndexByte(t, '.'); i >= 0 {
		head = t[:i]
	}
	major, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return false
	}
	return major == a.Major
}

// Download materializes the upstream into dir under the alias's own
// dedup key. A tag selector outside the pinned major version is an
// error rather than a silent fetch of the wrong line.
func (a Alias) Download(ctx context.Context, dir string) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if tag := a.Upstream.Selector.Tag; tag != "" && !a.AllowsTag(tag) {
		return errors.Errorf("source: tag %q is outside major version %d of aliased package %s",
			tag, a.Major, a.CanonicalPath)
	}
	_, err, _ := fetchGroup.Do(a.CanonicalKey()+"|"+dir, func() (interface{}, error) {
		return nil, retry(defaultRetries, func() error { return download(ctx, a.Upstream, dir) })
	})
	return err
}
