// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ident

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ShortHashLen is the length, in hex characters, of a package id's short
// hash - the prefix used to derive its on-disk filesystem subpath.
//
// The two hash widths have distinct jobs: the
// short hash is the on-disk identity (the filesystem layout), the full
// hash is the in-memory identity (index lookups, in-flight-download dedup
// keys). Nothing in this package silently truncates one into the other;
// callers pick the one their boundary calls for.
const ShortHashLen = 10

// ID is a package identifier: a path plus a concrete version.
type ID struct {
	Path    Path
	Version Version
}

// String renders the id as "path-version", the same form used for the
// target name.
func (id ID) String() string {
	return id.Path.String() + "-" + id.Version.String()
}

// TargetName is the name the id is known by to the target/command graph:
// identical to String, named separately because the two have independent
// stability contracts (target names may gain suffixes; String must not).
func (id ID) TargetName() string {
	return id.String()
}

// Hash is the full, in-memory identity hash of the id: a keyed digest of
// "lowercase(path)-version". Use this for index lookups and any in-process
// map keyed by package identity.
func (id ID) Hash() [sha256.Size]byte {
	return sha256.Sum256([]byte(strings.ToLower(id.Path.String()) + "-" + id.Version.String()))
}

// HashString is the lowercase hex encoding of Hash.
func (id ID) HashString() string {
	h := id.Hash()
	return hex.EncodeToString(h[:])
}

// ShortHash is the ShortHashLen-byte hex prefix of HashString, the value
// used to derive the on-disk filesystem subpath. It is NOT a substitute for
// Hash as an in-memory identity key: two distinct ids could in principle
// collide on ShortHash, and any component that needs to tell them apart
// again (rather than just finding a directory) must keep the full Hash
// around.
func (id ID) ShortHash() string {
	full := id.HashString()
	if len(full) < ShortHashLen {
		return full
	}
	return full[:ShortHashLen]
}

// FSSubpath returns the four-two-character-segment-then-remainder layout
// "aa/bb/cc/dd/rest". This is a wire-visible contract - storage
// migration tooling depends on the exact segmentation - so it must never
// change shape, only ever be computed from ShortHash.
func (id ID) FSSubpath() string {
	return FSSubpathFromShortHash(id.ShortHash())
}

// FSSubpathFromShortHash computes the on-disk layout directly from an
// already-derived short hash, for callers (e.g. the store's clean-by-regex
// path) that only have the hash string, not a full ID.
func FSSubpathFromShortHash(shortHash string) string {
	h := shortHash
	for len(h) < 10 {
		h += "0"
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s", h[0:2], h[2:4], h[4:6], h[6:8], h[8:])
}
