// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ident

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
)

// Version is a semantic-version triple plus an optional tweak component and
// an optional branch name. A branch version compares as a string and is
// incomparable, in the numeric sense, with a triple version. The special
// "any" version (denoted "*") matches everything.
type Version struct {
	major, minor, patch int64
	tweak                int64
	hasTweak             bool
	branch               string
	isBranch             bool
	isAny                bool
}

// AnyVersion is the wildcard version that compares equal to, and is
// satisfied by, every version range.
var AnyVersion = Version{isAny: true}

// NewBranch constructs a branch-named version. Branches compare as plain
// strings and never numerically.
func NewBranch(name string) Version {
	return Version{branch: name, isBranch: true}
}

// ParseVersion parses s as "*", a branch name prefixed with "branch:", or a
// semver-ish "MAJOR.MINOR.PATCH[.TWEAK]".
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, errors.New("ident: empty version")
	}
	if s == "*" {
		return AnyVersion, nil
	}
	if strings.HasPrefix(s, "branch:") {
		return NewBranch(strings.TrimPrefix(s, "branch:")), nil
	}

	parts := strings.Split(s, ".")
	if len(parts) < 3 || len(parts) > 4 {
		return Version{}, errors.Errorf("ident: version %q is not MAJOR.MINOR.PATCH[.TWEAK]", s)
	}

	nums := make([]int64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return Version{}, errors.Wrapf(err, "ident: invalid version component %q in %q", p, s)
		}
		nums[i] = n
	}

	v := Version{major: nums[0], minor: nums[1], patch: nums[2]}
	if len(nums) == 4 {
		v.tweak, v.hasTweak = nums[3], true
	}
	return v, nil
}

// IsAny reports whether v is the wildcard version.
func (v Version) IsAny() bool { return v.isAny }

// IsBranch reports whether v names a branch rather than a semver triple.
func (v Version) IsBranch() bool { return v.isBranch }

// String renders v in the same form ParseVersion accepts.
func (v Version) String() string {
	switch {
	case v.isAny:
		return "*"
	case v.isBranch:
		return "branch:" + v.branch
	case v.hasTweak:
		return fmt.Sprintf("%d.%d.%d.%d", v.major, v.minor, v.patch, v.tweak)
	default:
		return fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch)
	}
}

// semver renders the semver-comparable triple (ignoring tweak, which has no
// home in strict semver) for use with Masterminds/semver comparisons.
func (v Version) semver() (*semver.Version, error) {
	return semver.NewVersion(fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch))
}

// Compare orders v relative to other. Two branch versions compare as
// strings; a branch and a triple are never equal and order with branches
// after triples, by convention, so that a range's upper bound never
// silently admits a moving branch. AnyVersion compares equal to everything.
func (v Version) Compare(other Version) int {
	switch {
	case v.isAny || other.isAny:
		return 0
	case v.isBranch && other.isBranch:
		return strings.Compare(v.branch, other.branch)
	case v.isBranch != other.isBranch:
		if v.isBranch {
			return 1
		}
		return -1
	}

	if v.major != other.major {
		return cmp64(v.major, other.major)
	}
	if v.minor != other.minor {
		return cmp64(v.minor, other.minor)
	}
	if v.patch != other.patch {
		return cmp64(v.patch, other.patch)
	}
	return cmp64(v.tweak, other.tweak)
}

func cmp64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Equal reports whether v and other denote the same version.
func (v Version) Equal(other Version) bool { return v.Compare(other) == 0 }

// Less reports whether v orders strictly before other.
func (v Version) Less(other Version) bool { return v.Compare(other) < 0 }
