// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package target

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Arena owns every target of one solution and assigns each a stable
// index, so dependency edges can be carried as indices instead of
// pointers.
type Arena struct {
	targets []*Target
	byName  map[string]int
}

// NewArena returns an empty Arena.
func NewArena() *Arena {
	return &Arena{byName: map[string]int{}}
}

// Add registers t. Target names are unique within an arena.
func (a *Arena) Add(t *Target) error {
	if _, ok := a.byName[t.Name]; ok {
		return errors.Errorf("target: duplicate target %q", t.Name)
	}
	a.byName[t.Name] = len(a.targets)
	a.targets = append(a.targets, t)
	return nil
}

// All returns every registered target in registration order.
func (a *Arena) All() []*Target {
	return a.targets
}

// Lookup returns the target named name, if registered.
func (a *Arena) Lookup(name string) (*Target, bool) {
	i, ok := a.byName[name]
	if !ok {
		return nil, false
	}
	return a.targets[i], true
}

// Prepare runs the multi-pass dependency-resolution pipeline over every
// target: bind named dependencies to arena indices, flood-fill inherited
// option scopes to a fixed point, merge the absorbed options into each
// target's effective set together with configuration-type defaults,
// detect circular link dependencies, bind generated sources, and
// finalize output paths. Prepare is idempotent and may be re-run after
// new targets are added; the effective dependency set of an
// already-prepared target only ever grows.
func (a *Arena) Prepare() error {
	if err := a.bindDependencies(); err != nil {
		return err
	}
	a.floodInheritance()
	for _, t := range a.targets {
		a.mergeEffective(t)
	}
	a.markCircular()
	if err := a.bindGeneratedSources(); err != nil {
		return err
	}
	for _, t := range a.targets {
		a.finalize(t)
	}
	return nil
}

// bindDependencies is pass 1: every named dependency must resolve to a
// registered target; any left unbound is fatal.
func (a *Arena) bindDependencies() error {
	var missing []string
	for _, t := range a.targets {
		for _, d := range t.Dependencies {
			i, ok := a.byName[d.Name]
			if !ok {
				missing = append(missing, t.Name+" -> "+d.Name)
				continue
			}
			d.resolved = i
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.Errorf("target: unresolved dependencies: %v", missing)
	}
	return nil
}

// floodInheritance is pass 2: starting from each target's direct
// dependencies, absorb every dependency's exported edges (Public and
// Interface always, Protected only across an equal package-path prefix)
// until no edge or flag changes. The headers-only flag is monotone:
// false (fully linked) wins over true and never reverts.
func (a *Arena) floodInheritance() {
	for _, t := range a.targets {
		if t.effectiveDeps == nil {
			t.effectiveDeps = map[int]bool{}
		}
	}

	type item struct {
		dep   int
		idirs bool
	}

	for ti, t := range a.targets {
		var work []item
		for _, d := range t.Dependencies {
			work = append(work, item{dep: d.resolved, idirs: d.IncludeDirsOnly})
		}
		for len(work) > 0 {
			it := work[len(work)-1]
			work = work[:len(work)-1]
			if it.dep == ti {
				continue
			}
			have, seen := t.effectiveDeps[it.dep]
			if seen && (!have || it.idirs) {
				// Already known at least this strong: a fully linked
				// edge never reverts, and headers-only re-discovered as
				// headers-only changes nothing.
				continue
			}
			// New edge, or an upgrade from headers-only to full link.
			t.effectiveDeps[it.dep] = it.idirs
			dep := a.targets[it.dep]
			for _, dd := range dep.Dependencies {
				exported := dd.Scope == Public || dd.Scope == Interface ||
					(dd.Scope == Protected && t.samePrefix(dep))
				if !exported {
					continue
				}
				work = append(work, item{
					dep:   dd.resolved,
					idirs: it.idirs || dd.IncludeDirsOnly,
				})
			}
		}
	}
}

// mergeEffective is pass 3: rebuild t.Effective from its own
// Private/Protected/Public bundles, the exported bundles of its
// effective dependency closure, and the configuration-type defaults.
// Recomputing from the same inputs is deterministic, so re-preparation
// can only grow the result.
func (a *Arena) mergeEffective(t *Target) {
	var eff OptionBundle
	eff.absorb(&t.bundles[Private], false)
	eff.absorb(&t.bundles[Protected], false)
	eff.absorb(&t.bundles[Public], false)

	for _, di := range sortedKeys(t.effectiveDeps) {
		idirs := t.effectiveDeps[di]
		dep := a.targets[di]
		eff.absorb(&dep.bundles[Public], idirs)
		eff.absorb(&dep.bundles[Interface], idirs)
		if t.samePrefix(dep) {
			eff.absorb(&dep.bundles[Protected], idirs)
		}
		if !idirs && dep.Kind != Executable {
			// Link the dependency's own artifact by exact file name, so
			// an oddly named library still resolves.
			out := dep.outputPath()
			if dir := pathDir(out); dir != "" {
				eff.LinkDirectories = appendUnique(eff.LinkDirectories, dir)
			}
			eff.LinkLibraries = appendUnique(eff.LinkLibraries, ":"+pathBase(out))
		}
	}

	eff.CompileOptions = appendUnique(eff.CompileOptions, t.Config.configOptions()...)
	t.Effective = eff
}

// bindGeneratedSources is pass 5: the arena only checks that every source
// record has a non-empty path. A Generator name is not checked against
// any command; adding the generator command to the plan is left to the
// caller of the command builder.
func (a *Arena) bindGeneratedSources() error {
	for _, t := range a.targets {
		for path, sf := range t.Sources {
			if sf.Path == "" {
				return errors.Errorf("target: %s: source record %q has no path", t.Name, path)
			}
		}
	}
	return nil
}

// finalize is pass 6: stamp the output path, and for shared libraries on
// import-library platforms the import library and, when every symbol is
// exported, the export definitions file.
func (a *Arena) finalize(t *Target) {
	t.OutputPath = t.outputPath()
	if t.Kind == SharedLibrary && t.TargetOS == "windows" {
		if t.ImportLibraryPath == "" {
			t.ImportLibraryPath = trimExt(t.OutputPath) + ".lib"
		}
		if t.ExportAllSymbols && t.ExportDefinitionsFile == "" {
			t.ExportDefinitionsFile = trimExt(t.OutputPath) + ".def"
		}
	}
	if t.Circular && t.ImportLibraryPath == "" {
		// A cycle participant's partner consumes its import library
		// produced by the alternate link.
		t.ImportLibraryPath = trimExt(t.OutputPath) + ".imp"
	}
}

func pathDir(p string) string {
	d := filepath.Dir(p)
	if d == "." {
		return ""
	}
	return d
}

func pathBase(p string) string {
	return filepath.Base(p)
}

func trimExt(p string) string {
	return strings.TrimSuffix(p, filepath.Ext(p))
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
