// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package check implements the compile-and-probe check engine:
// function/include/type/symbol/declaration/struct-member/library-function
// existence probes, arbitrary source compile/link/run probes, and the
// endianness probe every check set carries automatically. Checks dedup by
// a hash of their payload and parameters, persist their resolved values
// across runs, and stage manual-setup probes for cross-compilation.
package check

import (
	"sort"
	"strings"
)

// Kind identifies what a Check actually probes.
type Kind int

const (
	FunctionExists Kind = iota
	IncludeExists
	TypeSize
	TypeAlignment
	SymbolExists
	DeclarationExists
	StructMemberExists
	LibraryFunctionExists
	SourceCompiles
	SourceLinks
	SourceRuns
	Custom
)

func (k Kind) String() string {
	switch k {
	case FunctionExists:
		return "function-exists"
	case IncludeExists:
		return "include-exists"
	case TypeSize:
		return "type-size"
	case TypeAlignment:
		return "type-alignment"
	case SymbolExists:
		return "symbol-exists"
	case DeclarationExists:
		return "declaration-exists"
	case StructMemberExists:
		return "struct-member-exists"
	case LibraryFunctionExists:
		return "library-function-exists"
	case SourceCompiles:
		return "source-compiles"
	case SourceLinks:
		return "source-links"
	case SourceRuns:
		return "source-runs"
	default:
		return "custom"
	}
}

// Parameters bundles the compile/link environment a check's probe program
// runs under.
type Parameters struct {
	Definitions       []string
	Includes          []string
	IncludeDirectories []string
	Libraries         []string
	Options           []string
	CPP               bool
}

// hash folds Parameters into the running state h, in the exact field order
// (cpp, definitions, includes, include directories,
// libraries, options) so two equivalent parameter sets always combine to
// the same value regardless of slice order at the call site.
func (p Parameters) hash(h uint64) uint64 {
	h = hashCombineBool(h, p.CPP)
	for _, d := range sortedCopy(p.Definitions) {
		h = hashCombineString(h, d)
	}
	for _, i := range sortedCopy(p.Includes) {
		h = hashCombineString(h, i)
	}
	for _, d := range sortedCopy(p.IncludeDirectories) {
		h = hashCombineString(h, d)
	}
	for _, l := range sortedCopy(p.Libraries) {
		h = hashCombineString(h, l)
	}
	for _, o := range sortedCopy(p.Options) {
		h = hashCombineString(h, o)
	}
	return h
}

func sortedCopy(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}
	out := append([]string(nil), ss...)
	sort.Strings(out)
	return out
}

// Check is one probe: what it checks (Kind, Data - a symbol/type/include
// name, or raw source for the Source* kinds), the definitions it sets on
// success, and the environment (Parameters) its probe program compiles
// under.
type Check struct {
	Kind Kind
	Data string

	// Definitions are every preprocessor symbol this check controls; the
	// first (insertion order preserved in Definitions[0]) is the primary
	// one used for logging and manual-script labeling.
	Definitions []string
	Prefixes    []string

	// DefineIfZero keeps HAVE_FOO=0 in a target's definitions rather than
	// omitting it when the probe resolves to zero.
	DefineIfZero bool

	Parameters Parameters

	// Value is the resolved probe result: unset until Checked is true.
	Value   int
	Checked bool

	// RequiresManualSetup is true when the probe built successfully but
	// couldn't be executed on the host (cross-compilation): the executable
	// is staged instead and a manual run-script entry is generated for it.
	RequiresManualSetup bool
	ExecutablePath      string
}

// PrimaryDefinition returns the definition used to label this check in
// logs, the cache's manual-checks comment, and the run script.
func (c *Check) PrimaryDefinition() string {
	if len(c.Definitions) == 0 {
		return ""
	}
	return c.Definitions[0]
}

// Hash is the dedup/cache key for this check: its data, its parameters,
// and its CPP-ness combined in that order, the parameter hash-combine
// extended one level up to the whole check.
func (c *Check) Hash() uint64 {
	h := hashCombineString(fnvOffset, c.Data)
	h = c.Parameters.hash(h)
	h = hashCombineBool(h, c.Parameters.CPP)
	return h
}

// mergeDuplicate absorbs another check's definitions and prefixes into c
// when the two hash identically - duplicates merge.
func (c *Check) mergeDuplicate(dup *Check) {
	c.Definitions = unionStrings(c.Definitions, dup.Definitions)
	c.Prefixes = unionStrings(c.Prefixes, dup.Prefixes)
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string(nil), a...)
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func makeFunctionVar(d, prefix string) string {
	if prefix == "" {
		prefix = "HAVE_"
	}
	return prefix + strings.ToUpper(d)
}

func makeIncludeVar(i string) string {
	return sanitizeVar(makeFunctionVar(i, ""))
}

func makeTypeVar(t, prefix string) string {
	v := makeFunctionVar(t, prefix)
	var b strings.Builder
	for _, r := range v {
		if r == '*' {
			b.WriteByte('P')
		} else if isAlnum(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func makeStructMemberVar(s, member string) string {
	return makeIncludeVar(s + " " + member)
}

func makeAlignmentVar(t string) string {
	return makeTypeVar(t, "ALIGNOF_")
}

func sanitizeVar(v string) string {
	var b strings.Builder
	for _, r := range v {
		if isAlnum(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

var defaultStandardIncludes = []string{"sys/types.h", "stdint.h", "stddef.h", "inttypes.h"}

// NewFunctionExists builds a check for whether a C function of the given
// name is declared and linkable. def overrides the default HAVE_<FUNC>
// definition when non-empty.
func NewFunctionExists(function, def string) *Check {
	d := def
	if d == "" {
		d = makeFunctionVar(function, "")
	}
	return &Check{Kind: FunctionExists, Data: function, Definitions: []string{d}}
}

// NewIncludeExists builds a check for whether a header can be included.
func NewIncludeExists(include, def string) *Check {
	d := def
	if d == "" {
		d = makeIncludeVar(include)
	}
	return &Check{Kind: IncludeExists, Data: include, Definitions: []string{d}}
}

// NewTypeSize builds a check that resolves sizeof(type), emitting the
// conventional family of SIZEOF_/SIZE_OF_/HAVE_SIZEOF_ aliases alongside
// the primary definition.
func NewTypeSize(typ, def string) *Check {
	defs := []string{
		makeTypeVar(typ, ""),
		makeTypeVar(typ, "SIZEOF_"),
		makeTypeVar(typ, "SIZE_OF_"),
		makeTypeVar(typ, "HAVE_SIZEOF_"),
		makeTypeVar(typ, "HAVE_SIZE_OF_"),
	}
	if def != "" {
		defs = append(defs, def)
	}
	return &Check{
		Kind:        TypeSize,
		Data:        typ,
		Definitions: defs,
		Parameters:  Parameters{Includes: append([]string(nil), defaultStandardIncludes...)},
	}
}

// NewTypeAlignment builds a check that resolves alignof(type).
func NewTypeAlignment(typ, def string) *Check {
	d := def
	if d == "" {
		d = makeAlignmentVar(typ)
	}
	return &Check{
		Kind:        TypeAlignment,
		Data:        typ,
		Definitions: []string{d},
		Parameters: Parameters{Includes: []string{
			"sys/types.h", "stdint.h", "stddef.h", "stdio.h", "stdlib.h", "inttypes.h",
		}},
	}
}

// NewSymbolExists builds a check for whether an identifier (function,
// variable, macro) is visible without necessarily being callable.
func NewSymbolExists(symbol, def string) *Check {
	d := def
	if d == "" {
		d = makeFunctionVar(symbol, "")
	}
	return &Check{Kind: SymbolExists, Data: symbol, Definitions: []string{d}}
}

// NewDeclarationExists builds a check for whether a declaration is visible
// across a standard set of common headers.
func NewDeclarationExists(decl, def string) *Check {
	d := def
	if d == "" {
		d = makeFunctionVar(decl, "HAVE_DECL_")
	}
	return &Check{
		Kind:        DeclarationExists,
		Data:        decl,
		Definitions: []string{d},
		Parameters: Parameters{Includes: []string{
			"sys/types.h", "stdint.h", "stddef.h", "inttypes.h", "stdio.h",
			"sys/stat.h", "stdlib.h", "memory.h", "string.h", "strings.h", "unistd.h",
		}},
	}
}

// NewStructMemberExists builds a check for whether struct-or-class s has a
// member named member.
func NewStructMemberExists(s, member, def string) *Check {
	d := def
	if d == "" {
		d = makeStructMemberVar(s, member)
	}
	return &Check{Kind: StructMemberExists, Data: s + "." + member, Definitions: []string{d}}
}

// NewLibraryFunctionExists builds a check for whether function is
// resolvable when linked against library.
func NewLibraryFunctionExists(library, function, def string) *Check {
	d := def
	if d == "" {
		d = makeFunctionVar(function, "")
	}
	return &Check{
		Kind:        LibraryFunctionExists,
		Data:        library + "." + function,
		Definitions: []string{d},
		Parameters:  Parameters{Libraries: []string{library}},
	}
}

// NewSourceCompiles builds a check for whether an arbitrary source
// snippet compiles.
func NewSourceCompiles(def, source string) *Check {
	return &Check{Kind: SourceCompiles, Data: source, Definitions: []string{def}}
}

// NewSourceLinks builds a check for whether an arbitrary source snippet
// compiles and links into an executable.
func NewSourceLinks(def, source string) *Check {
	return &Check{Kind: SourceLinks, Data: source, Definitions: []string{def}}
}

// NewSourceRuns builds a check for whether an arbitrary source snippet
// compiles, links, and exits zero when run.
func NewSourceRuns(def, source string) *Check {
	return &Check{Kind: SourceRuns, Data: source, Definitions: []string{def}}
}

// Dependencies reports the checks this one needs resolved first: an
// include-exists check for each entry in Parameters.Includes, so a
// probe never runs before its headers are known present.
func (c *Check) Dependencies() []*Check {
	deps := make([]*Check, 0, len(c.Parameters.Includes))
	for _, inc := range c.Parameters.Includes {
		deps = append(deps, NewIncludeExists(inc, ""))
	}
	return deps
}
