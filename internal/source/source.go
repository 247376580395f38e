// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package source implements the source descriptor sum type: a
// tagged union over VCS and archive download kinds, dispatched through one
// Download(dir) method, with version-field templating and in-memory
// download deduplication.
package source

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nativepkg/nativepkg/internal/ident"
	"github.com/pkg/errors"
)

// Kind tags the variant of a Descriptor.
type Kind int

// The source kinds.
const (
	Empty Kind = iota
	RemoteFile
	RemoteFiles
	Git
	Hg
	Bzr
	Fossil
	Cvs
	Svn
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case RemoteFile:
		return "remote-file"
	case RemoteFiles:
		return "remote-files"
	case Git:
		return "git"
	case Hg:
		return "hg"
	case Bzr:
		return "bzr"
	case Fossil:
		return "fossil"
	case Cvs:
		return "cvs"
	case Svn:
		return "svn"
	default:
		return fmt.Sprintf("source.Kind(%d)", int(k))
	}
}

// Selector picks a point in a VCS's history. At most one field is
// meaningful for any given Kind; when several are set, String and the
// drivers use the first of Tag, Branch, Commit, Revision.
type Selector struct {
	Tag      string
	Branch   string
	Commit   string
	Revision string
}

func (s Selector) empty() bool {
	return s == Selector{}
}

// String renders whichever field of s is set, or "" if none is.
func (s Selector) String() string {
	switch {
	case s.Tag != "":
		return s.Tag
	case s.Branch != "":
		return s.Branch
	case s.Commit != "":
		return s.Commit
	case s.Revision != "":
		return s.Revision
	default:
		return ""
	}
}

// Descriptor is the source-descriptor sum type
type Descriptor struct {
	Kind Kind

	// URL is the remote location for every Kind except RemoteFiles and
	// Empty.
	URL string
	// URLs holds the member URLs of a RemoteFiles source.
	URLs []string
	// Module is the CVS module name (CVS has no single-URL checkout unit).
	Module string
	// Method is the CVS pserver/ext/local access method, as in
	// "-d:method:user@host:path".
	Method string
	// User and Host refine a Cvs access string.
	User, Host string

	Selector Selector
}

// IsValidURL enforces source-kind-specific URL grammar. Cvs has its
// own root-string grammar distinct from a bare URL.
func (d Descriptor) IsValidURL() error {
	switch d.Kind {
	case Empty:
		return nil
	case RemoteFile:
		return validPlainURL(d.URL)
	case RemoteFiles:
		if len(d.URLs) == 0 {
			return errors.New("source: RemoteFiles descriptor has no URLs")
		}
		for _, u := range d.URLs {
			if err := validPlainURL(u); err != nil {
				return err
			}
		}
		return nil
	case Cvs:
		return validCvsRoot(d.URL)
	default:
		return validPlainURL(d.URL)
	}
}

func validPlainURL(u string) error {
	if u == "" {
		return errors.New("source: empty URL")
	}
	if !strings.Contains(u, "://") && !strings.HasPrefix(u, "/") {
		return errors.Errorf("source: %q does not look like a URL or absolute path", u)
	}
	return nil
}

// validCvsRoot checks the "-d:method:user@host:path" grammar.
func validCvsRoot(root string) error {
	if !strings.HasPrefix(root, "-d:") {
		return errors.Errorf("source: cvs root %q must start with \"-d:\"", root)
	}
	rest := strings.TrimPrefix(root, "-d:")
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 || parts[0] == "" {
		return errors.Errorf("source: cvs root %q is missing a method", root)
	}
	if !strings.Contains(parts[1], ":") {
		return errors.Errorf("source: cvs root %q is missing a host:path suffix", root)
	}
	return nil
}

// ApplyVersion performs "{field} -> value" templating across URL and the
// selector fields, for sources whose upstream location or ref is
// version-dependent (e.g. a release-archive URL keyed by tag).
func (d Descriptor) ApplyVersion(v ident.Version) Descriptor {
	fields := versionFields(v)
	apply := func(s string) string {
		for k, val := range fields {
			s = strings.ReplaceAll(s, "{"+k+"}", val)
		}
		return s
	}

	out := d
	out.URL = apply(d.URL)
	for i, u := range out.URLs {
		out.URLs[i] = apply(u)
	}
	out.Selector.Tag = apply(d.Selector.Tag)
	out.Selector.Branch = apply(d.Selector.Branch)
	out.Selector.Commit = apply(d.Selector.Commit)
	out.Selector.Revision = apply(d.Selector.Revision)
	return out
}

func versionFields(v ident.Version) map[string]string {
	s := v.String()
	parts := strings.SplitN(strings.TrimPrefix(s, "branch:"), ".", 4)
	fields := map[string]string{"version": s}
	names := []string{"major", "minor", "patch", "tweak"}
	for i, name := range names {
		if i < len(parts) {
			if n, err := strconv.ParseInt(parts[i], 10, 64); err == nil {
				fields[name] = strconv.FormatInt(n, 10)
			}
		}
	}
	return fields
}

// CanonicalKey returns a value two Descriptors share if and only if they
// would download identical content: it is used both as
// the in-memory download-dedup key and to decide source equality.
func (d Descriptor) CanonicalKey() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|", d.Kind)
	switch d.Kind {
	case RemoteFiles:
		us := append([]string(nil), d.URLs...)
		sort.Strings(us)
		b.WriteString(strings.Join(us, ","))
	case Cvs:
		fmt.Fprintf(&b, "%s|%s|%s", d.URL, d.Module, d.Selector)
	default:
		fmt.Fprintf(&b, "%s|%s", d.URL, d.Selector)
	}
	return b.String()
}

// Download materializes d into dir, retrying transient failures a small,
// fixed number of times. Concurrent Download calls on two
// Descriptors with the same CanonicalKey share a single in-flight fetch via
// the package-level fetchGroup.
func Download(ctx context.Context, d Descriptor, dir string) error {
	_, err, _ := fetchGroup.Do(d.CanonicalKey()+"|"+dir, func() (interface{}, error) {
		return nil, retry(defaultRetries, func() error { return download(ctx, d, dir) })
	})
	return err
}

func download(ctx context.Context, d Descriptor, dir string) error {
	switch d.Kind {
	case Empty:
		return nil
	case RemoteFile:
		return downloadArchive(ctx, []string{d.URL}, dir)
	case RemoteFiles:
		for _, u := range d.URLs {
			if err := downloadArchive(ctx, []string{u}, dir); err != nil {
				return err
			}
		}
		return nil
	case Git:
		return downloadGit(ctx, d, dir)
	case Hg, Bzr, Svn:
		return downloadVCS(ctx, d, dir)
	case Cvs:
		return downloadCvs(ctx, d, dir)
	case Fossil:
		return downloadFossil(ctx, d, dir)
	default:
		return errors.Errorf("source: unknown kind %v", d.Kind)
	}
}
