// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package target implements the native target model: buildable artifacts
// (executables, static and shared libraries) owning source files and
// scope-tagged option bundles, plus the multi-pass dependency-resolution
// pipeline that folds dependency options into each target's effective
// option set. Targets live in an Arena and reference one another by
// index, so option-group propagation is a pure fold over the edge set.
package target

import (
	"path/filepath"
	"strings"
)

// Kind is the artifact type a Target produces.
type Kind int

const (
	Executable Kind = iota
	StaticLibrary
	SharedLibrary
)

func (k Kind) String() string {
	switch k {
	case Executable:
		return "executable"
	case StaticLibrary:
		return "static-library"
	case SharedLibrary:
		return "shared-library"
	}
	return "unknown"
}

// Scope tags an option bundle with its visibility: Private options apply
// only to the owning target, Protected to the owner and to consumers
// sharing the owner's package-path prefix, Public to the owner and every
// consumer, Interface to consumers only.
type Scope int

const (
	Private Scope = iota
	Protected
	Public
	Interface
)

func (s Scope) String() string {
	switch s {
	case Private:
		return "private"
	case Protected:
		return "protected"
	case Public:
		return "public"
	case Interface:
		return "interface"
	}
	return "unknown"
}

// ConfigType selects the configuration-type defaults merged into a
// target's compile options during preparation.
type ConfigType int

const (
	Debug ConfigType = iota
	Release
	MinSizeRel
	RelWithDebInfo
)

// configOptions returns the compiler settings a configuration type
// implies (optimization level, debug info).
func (c ConfigType) configOptions() []string {
	switch c {
	case Release:
		return []string{"-O2"}
	case MinSizeRel:
		return []string{"-Os"}
	case RelWithDebInfo:
		return []string{"-O2", "-g"}
	default:
		return []string{"-O0", "-g"}
	}
}

// OptionBundle groups the option kinds a target carries per scope.
type OptionBundle struct {
	IncludeDirectories []string
	Definitions        []string
	CompileOptions     []string
	LinkLibraries      []string
	LinkDirectories    []string
}

// absorb appends o's entries into b, skipping duplicates. compileOnly
// restricts absorption to include directories and definitions, which is
// all a headers-only dependency contributes.
func (b *OptionBundle) absorb(o *OptionBundle, compileOnly bool) {
	b.IncludeDirectories = appendUnique(b.IncludeDirectories, o.IncludeDirectories...)
	b.Definitions = appendUnique(b.Definitions, o.Definitions...)
	if compileOnly {
		return
	}
	b.CompileOptions = appendUnique(b.CompileOptions, o.CompileOptions...)
	b.LinkLibraries = appendUnique(b.LinkLibraries, o.LinkLibraries...)
	b.LinkDirectories = appendUnique(b.LinkDirectories, o.LinkDirectories...)
}

func appendUnique(dst []string, ss ...string) []string {
	for _, s := range ss {
		found := false
		for _, have := range dst {
			if have == s {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}

// SourceFile is one file a target compiles. Tool, when set, is an
// extension key overriding the registry's extension-based tool selection
// for this file; Language forces a build-as language; Generator names the
// command that produces this file, in which case the file is not compiled
// directly and the generator command must precede any consumer.
type SourceFile struct {
	Path      string
	Tool      string
	Language  string
	Generator string
}

// Dependency is a declared edge from a target to another target (by
// name). IncludeDirsOnly marks a headers-only dependency; the flag is
// monotone during propagation: once any path discovers the dependency as
// fully linked it never reverts to headers-only.
type Dependency struct {
	Name            string
	Scope           Scope
	IncludeDirsOnly bool

	// index into the arena, bound during preparation; -1 until then.
	resolved int
}

// CopyStep is one post-build file copy.
type CopyStep struct {
	From, To string
}

// Target is a named, typed buildable entity.
type Target struct {
	Name string
	Kind Kind

	// PackagePrefix is the parent package-path prefix this target
	// belongs to; Protected options of a dependency are visible only to
	// consumers with an equal prefix.
	PackagePrefix string

	// TargetOS is the OS the produced artifact runs on; it decides
	// whether a shared library needs an import library and an export
	// definitions file.
	TargetOS string

	Config ConfigType

	Sources map[string]*SourceFile

	Dependencies []*Dependency

	// Effective is the merged option set after preparation: this
	// target's own Private+Protected+Public bundles plus everything
	// absorbed from its effective dependency closure.
	Effective OptionBundle

	RootDir          string
	SourceDir        string
	BinaryDir        string
	BinaryPrivateDir string

	OutputPath            string
	ImportLibraryPath     string
	ExportDefinitionsFile string

	ExportAllSymbols  bool
	PrecompiledHeader string
	PostBuildCopies   []CopyStep

	// Circular is set during preparation when this target participates
	// in a link cycle among sibling targets; the command builder then
	// emits the alternate allow-unresolved link for it.
	Circular bool

	// Objects is filled by the command builder with the object files
	// handed to the selected linker or librarian.
	Objects []string

	bundles [4]OptionBundle

	// effectiveDeps maps arena index -> headers-only flag, built by the
	// inheritance flood-fill. The set only ever grows, and a false
	// (fully linked) flag never flips back to true.
	effectiveDeps map[int]bool
}

// New returns a Target of the given name and kind.
func New(name string, kind Kind) *Target {
	return &Target{
		Name:    name,
		Kind:    kind,
		Sources: map[string]*SourceFile{},
	}
}

// Options returns the option bundle for scope s, for callers to fill in.
func (t *Target) Options(s Scope) *OptionBundle {
	return &t.bundles[s]
}

// AddSource registers sf, keyed by its path. Re-adding a path replaces
// the previous record.
func (t *Target) AddSource(sf *SourceFile) {
	t.Sources[sf.Path] = sf
}

// DependsOn declares a dependency on the target named name, exported to
// this target's consumers according to scope. includeDirsOnly requests a
// headers-only edge; it may later be upgraded to a full link if any
// other path reaches the same dependency fully linked.
func (t *Target) DependsOn(name string, scope Scope, includeDirsOnly bool) {
	t.Dependencies = append(t.Dependencies, &Dependency{
		Name:            name,
		Scope:           scope,
		IncludeDirsOnly: includeDirsOnly,
		resolved:        -1,
	})
}

// EffectiveDependencies returns the names of every dependency in this
// target's prepared closure, with the headers-only flag each edge ended
// up with. Only valid after Arena.Prepare.
func (t *Target) EffectiveDependencies(a *Arena) map[string]bool {
	out := make(map[string]bool, len(t.effectiveDeps))
	for i, idirs := range t.effectiveDeps {
		out[a.targets[i].Name] = idirs
	}
	return out
}

// outputFileName is the platform artifact name for t. It is a pure
// function of the target's name, kind, and OS, so consumers may compute
// a dependency's output before final preparation has stamped it.
func (t *Target) outputFileName() string {
	switch t.Kind {
	case StaticLibrary:
		if t.TargetOS == "windows" {
			return t.Name + ".lib"
		}
		return "lib" + t.Name + ".a"
	case SharedLibrary:
		if t.TargetOS == "windows" {
			return t.Name + ".dll"
		}
		return "lib" + t.Name + ".so"
	default:
		if t.TargetOS == "windows" {
			return t.Name + ".exe"
		}
		return t.Name
	}
}

func (t *Target) outputPath() string {
	if t.OutputPath != "" {
		return t.OutputPath
	}
	return filepath.Join(t.BinaryDir, t.outputFileName())
}

// samePrefix reports whether t and other share the parent package-path
// prefix that gates Protected visibility. Comparison is case-insensitive
// to match package-path semantics.
func (t *Target) samePrefix(other *Target) bool {
	return t.PackagePrefix != "" &&
		strings.EqualFold(t.PackagePrefix, other.PackagePrefix)
}
