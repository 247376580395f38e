// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ident implements the identifiers at the base of the resolver and
// store: package paths, versions, version ranges, and package ids derived
// from them. Everything here is pure data - no I/O, no locking - so that
// every other component can treat identity as cheap to construct and
// compare.
package ident

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// namespaceOrder fixes the comparison order of the well-known leading
// namespace element of a Path. Namespaces not present here sort after all
// of these, in lexical order among themselves.
var namespaceOrder = map[string]int{
	"org":     0,
	"pvt":     1,
	"private": 1,
	"pub":     2,
	"public":  2,
	"com":     3,
	"demo":    4,
}

// pathElementReplacer normalizes '-' to '_' in path elements.
var pathElementReplacer = strings.NewReplacer("-", "_")

// Path is a package path: an ordered, dot-separated sequence of elements
// whose leading element is a namespace taken from a closed, well-known set.
// Elements compare case-insensitively.
type Path struct {
	elements []string
}

// ParsePath parses s into a Path. Allowed characters are
// [A-Za-z0-9._-]; '-' is normalized to '_' in every element.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return Path{}, errors.New("ident: empty package path")
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
		default:
			return Path{}, errors.Errorf("ident: invalid character %q in package path %q", r, s)
		}
	}

	raw := strings.Split(s, ".")
	elements := make([]string, len(raw))
	for i, e := range raw {
		if e == "" {
			return Path{}, errors.Errorf("ident: empty element in package path %q", s)
		}
		elements[i] = pathElementReplacer.Replace(e)
	}
	return Path{elements: elements}, nil
}

// String returns the canonical dotted form, elements as originally cased.
func (p Path) String() string {
	return strings.Join(p.elements, ".")
}

// lowered returns the dot-joined, fully lowercased form used for hashing
// and equality.
func (p Path) lowered() string {
	return strings.ToLower(p.String())
}

// Namespace returns the leading element of the path.
func (p Path) Namespace() string {
	if len(p.elements) == 0 {
		return ""
	}
	return p.elements[0]
}

// Equal reports whether p and other name the same path, ignoring case.
func (p Path) Equal(other Path) bool {
	return p.lowered() == other.lowered()
}

// Compare orders p relative to other: first by namespace order,
// then element-wise case-insensitively.
func (p Path) Compare(other Path) int {
	pn, on := namespaceRank(p.Namespace()), namespaceRank(other.Namespace())
	if pn != on {
		if pn < on {
			return -1
		}
		return 1
	}

	for i := 0; i < len(p.elements) && i < len(other.elements); i++ {
		a, b := strings.ToLower(p.elements[i]), strings.ToLower(other.elements[i])
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(p.elements) < len(other.elements):
		return -1
	case len(p.elements) > len(other.elements):
		return 1
	default:
		return 0
	}
}

func namespaceRank(ns string) int {
	if r, ok := namespaceOrder[strings.ToLower(ns)]; ok {
		return r
	}
	return len(namespaceOrder) // unknown namespaces sort last
}

// Hash returns a stable digest of p's lowercased, dot-joined form.
func (p Path) Hash() [sha256.Size]byte {
	return sha256.Sum256([]byte(p.lowered()))
}

// HashString is the lowercase hex encoding of Hash.
func (p Path) HashString() string {
	h := p.Hash()
	return hex.EncodeToString(h[:])
}
