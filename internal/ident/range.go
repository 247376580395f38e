// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ident

import (
	"strings"

	"github.com/pkg/errors"
)

// interval is an interval over Version; each bound is inclusive or
// exclusive (lowIncl, highIncl) and may be absent (unbounded).
type interval struct {
	hasLow, hasHigh bool
	low, high       Version
	lowIncl, highIncl bool
}

func (iv interval) contains(v Version) bool {
	if v.IsAny() {
		return true
	}
	if iv.hasLow {
		switch c := v.Compare(iv.low); {
		case c < 0:
			return false
		case c == 0 && !iv.lowIncl:
			return false
		}
	}
	if iv.hasHigh {
		switch c := v.Compare(iv.high); {
		case c > 0:
			return false
		case c == 0 && !iv.highIncl:
			return false
		}
	}
	return true
}

// Range is a union of version intervals, as produced by ParseRange.
type Range struct {
	intervals []interval
	any       bool
}

// AnyRange matches every version.
var AnyRange = Range{any: true}

// ParseRange parses textual range expressions of the forms:
//
//	*                    any version
//	1.2.3                exact version
//	[1.0.0,2.0.0)         half-open interval, brackets/parens choose inclusivity
//	(1.0.0,2.0.0]         "
//	>=1.0.0               open upper bound
//	<2.0.0                open lower bound
//	branch:name           exact branch
//
// Multiple clauses of any of these forms may be combined with "||" for a
// union.
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "*" || s == "" {
		return AnyRange, nil
	}

	var r Range
	for _, clause := range strings.Split(s, "||") {
		iv, err := parseClause(strings.TrimSpace(clause))
		if err != nil {
			return Range{}, err
		}
		r.intervals = append(r.intervals, iv)
	}
	return r, nil
}

func parseClause(s string) (interval, error) {
	switch {
	case strings.HasPrefix(s, "branch:"):
		v, err := ParseVersion(s)
		if err != nil {
			return interval{}, err
		}
		return interval{hasLow: true, low: v, lowIncl: true, hasHigh: true, high: v, highIncl: true}, nil

	case strings.HasPrefix(s, ">="):
		v, err := ParseVersion(strings.TrimSpace(s[2:]))
		if err != nil {
			return interval{}, err
		}
		return interval{hasLow: true, low: v, lowIncl: true}, nil

	case strings.HasPrefix(s, ">"):
		v, err := ParseVersion(strings.TrimSpace(s[1:]))
		if err != nil {
			return interval{}, err
		}
		return interval{hasLow: true, low: v, lowIncl: false}, nil

	case strings.HasPrefix(s, "<="):
		v, err := ParseVersion(strings.TrimSpace(s[2:]))
		if err != nil {
			return interval{}, err
		}
		return interval{hasHigh: true, high: v, highIncl: true}, nil

	case strings.HasPrefix(s, "<"):
		v, err := ParseVersion(strings.TrimSpace(s[1:]))
		if err != nil {
			return interval{}, err
		}
		return interval{hasHigh: true, high: v, highIncl: false}, nil

	case strings.HasPrefix(s, "[") || strings.HasPrefix(s, "("):
		return parseBracketInterval(s)

	default:
		v, err := ParseVersion(s)
		if err != nil {
			return interval{}, err
		}
		return interval{hasLow: true, low: v, lowIncl: true, hasHigh: true, high: v, highIncl: true}, nil
	}
}

func parseBracketInterval(s string) (interval, error) {
	if len(s) < 2 {
		return interval{}, errors.Errorf("ident: invalid range clause %q", s)
	}
	lowIncl := s[0] == '['
	highIncl := s[len(s)-1] == ']'
	if !lowIncl && s[0] != '(' {
		return interval{}, errors.Errorf("ident: invalid range clause %q", s)
	}
	if !highIncl && s[len(s)-1] != ')' {
		return interval{}, errors.Errorf("ident: invalid range clause %q", s)
	}

	body := s[1 : len(s)-1]
	bounds := strings.SplitN(body, ",", 2)
	if len(bounds) != 2 {
		return interval{}, errors.Errorf("ident: invalid range clause %q: expected two comma-separated bounds", s)
	}

	iv := interval{lowIncl: lowIncl, highIncl: highIncl}
	if low := strings.TrimSpace(bounds[0]); low != "" {
		v, err := ParseVersion(low)
		if err != nil {
			return interval{}, err
		}
		iv.hasLow, iv.low = true, v
	}
	if high := strings.TrimSpace(bounds[1]); high != "" {
		v, err := ParseVersion(high)
		if err != nil {
			return interval{}, err
		}
		iv.hasHigh, iv.high = true, v
	}
	return iv, nil
}

// Contains reports whether v satisfies r.
func (r Range) Contains(v Version) bool {
	if r.any {
		return true
	}
	for _, iv := range r.intervals {
		if iv.contains(v) {
			return true
		}
	}
	return false
}

// MaxSatisfying returns the maximal version among candidates that satisfies
// r, and true, or the zero Version and false if none does. Branch versions
// among the candidates are only considered when r contains a matching
// branch clause, since branches have no numeric ordering against triples.
func (r Range) MaxSatisfying(candidates []Version) (Version, bool) {
	var best Version
	found := false
	for _, c := range candidates {
		if !r.Contains(c) {
			continue
		}
		if c.IsBranch() {
			matched := false
			for _, iv := range r.intervals {
				if iv.hasLow && iv.low.IsBranch() && iv.low.Equal(c) {
					matched = true
				}
			}
			if !matched {
				continue
			}
		}
		if !found || best.Less(c) {
			best, found = c, true
		}
	}
	return best, found
}

// String renders r back into ParseRange's syntax.
func (r Range) String() string {
	if r.any {
		return "*"
	}
	parts := make([]string, len(r.intervals))
	for i, iv := range r.intervals {
		var b strings.Builder
		if iv.lowIncl {
			b.WriteByte('[')
		} else {
			b.WriteByte('(')
		}
		if iv.hasLow {
			b.WriteString(iv.low.String())
		}
		b.WriteByte(',')
		if iv.hasHigh {
			b.WriteString(iv.high.String())
		}
		if iv.highIncl {
			b.WriteByte(']')
		} else {
			b.WriteByte(')')
		}
		parts[i] = b.String()
	}
	return strings.Join(parts, "||")
}
