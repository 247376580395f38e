// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package check

// Set is a named collection of checks owned by a Checker. Two sets under
// the same Checker share deduplication: adding an equivalent check to
// either set returns the same *Check instance.
type Set struct {
	checker *Checker
	checks  map[uint64]*Check

	// order preserves insertion order for deterministic cache-file
	// "print-checks" style dumps and test output.
	order []uint64

	// CheckValues is finalized by the checker after execution: every
	// requested definition (and its Prefixes-expanded forms) mapped to
	// the resolving check, for a target to consume directly.
	CheckValues map[string]*Check
}

func newSet(checker *Checker) *Set {
	return &Set{checker: checker, checks: map[uint64]*Check{}, CheckValues: map[string]*Check{}}
}

// add registers c (deduping against the checker's global table) and
// returns the check that should be used from here on - c itself if it was
// new, or the existing equivalent check if one was already present.
func (s *Set) add(c *Check) *Check {
	h := c.Hash()
	if existing, ok := s.checker.checks[h]; ok {
		existing.mergeDuplicate(c)
		if _, ok := s.checks[h]; !ok {
			s.checks[h] = existing
			s.order = append(s.order, h)
		}
		return existing
	}
	s.checker.checks[h] = c
	s.checks[h] = c
	s.order = append(s.order, h)
	return c
}

func (s *Set) CheckFunctionExists(function string, cpp bool) *Check {
	c := NewFunctionExists(function, "")
	c.Parameters.CPP = cpp
	return s.add(c)
}

func (s *Set) CheckFunctionExistsDef(function, def string, cpp bool) *Check {
	c := NewFunctionExists(function, def)
	c.Parameters.CPP = cpp
	return s.add(c)
}

func (s *Set) CheckIncludeExists(include string, cpp bool) *Check {
	c := NewIncludeExists(include, "")
	c.Parameters.CPP = cpp
	return s.add(c)
}

func (s *Set) CheckIncludeExistsDef(include, def string, cpp bool) *Check {
	c := NewIncludeExists(include, def)
	c.Parameters.CPP = cpp
	return s.add(c)
}

func (s *Set) CheckLibraryFunctionExists(library, function string, cpp bool) *Check {
	c := NewLibraryFunctionExists(library, function, "")
	c.Parameters.CPP = cpp
	return s.add(c)
}

func (s *Set) CheckSymbolExists(symbol string, cpp bool) *Check {
	c := NewSymbolExists(symbol, "")
	c.Parameters.CPP = cpp
	return s.add(c)
}

func (s *Set) CheckStructMemberExists(structName, member string, cpp bool) *Check {
	c := NewStructMemberExists(structName, member, "")
	c.Parameters.CPP = cpp
	return s.add(c)
}

func (s *Set) CheckDeclarationExists(decl string, cpp bool) *Check {
	c := NewDeclarationExists(decl, "")
	c.Parameters.CPP = cpp
	return s.add(c)
}

func (s *Set) CheckTypeSize(typ string, cpp bool) *Check {
	c := NewTypeSize(typ, "")
	c.Parameters.CPP = cpp
	return s.add(c)
}

func (s *Set) CheckTypeAlignment(typ string, cpp bool) *Check {
	c := NewTypeAlignment(typ, "")
	c.Parameters.CPP = cpp
	return s.add(c)
}

func (s *Set) CheckSourceCompiles(def, src string, cpp bool) *Check {
	c := NewSourceCompiles(def, src)
	c.Parameters.CPP = cpp
	return s.add(c)
}

func (s *Set) CheckSourceLinks(def, src string, cpp bool) *Check {
	c := NewSourceLinks(def, src)
	c.Parameters.CPP = cpp
	return s.add(c)
}

func (s *Set) CheckSourceRuns(def, src string, cpp bool) *Check {
	c := NewSourceRuns(def, src)
	c.Parameters.CPP = cpp
	return s.add(c)
}

// Add registers a caller-built Custom check (e.g. one with a hand-rolled
// probe source) the same way the built-in constructors do.
func (s *Set) Add(c *Check) *Check {
	return s.add(c)
}

// finalize distributes results: once every check in s has resolved,
// populate CheckValues from each check's Definitions (and prefix-expanded
// variants) for consumption outside the package.
func (s *Set) finalize() {
	for _, h := range s.order {
		c := s.checks[h]
		for _, d := range c.Definitions {
			if _, requested := s.CheckValues[d]; requested {
				s.CheckValues[d] = c
			}
			for _, p := range c.Prefixes {
				if _, requested := s.CheckValues[p+d]; requested {
					s.CheckValues[p+d] = c
				}
			}
		}
	}
}

// requestDefinitions pre-registers every definition (and prefix
// expansion) a check controls as a pending entry in CheckValues, so
// finalize has something to fill in even if execution order differs;
// only requested definitions ever land in CheckValues.
func (s *Set) requestDefinitions(c *Check) {
	for _, d := range c.Definitions {
		if _, ok := s.CheckValues[d]; !ok {
			s.CheckValues[d] = nil
		}
		for _, p := range c.Prefixes {
			key := p + d
			if _, ok := s.CheckValues[key]; !ok {
				s.CheckValues[key] = nil
			}
		}
	}
}
