// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package target

import (
	"path/filepath"
	"testing"
)

func mustAdd(t *testing.T, a *Arena, targets ...*Target) {
	t.Helper()
	for _, tg := range targets {
		if err := a.Add(tg); err != nil {
			t.Fatalf("Add(%s): %v", tg.Name, err)
		}
	}
}

func TestArenaRejectsDuplicateNames(t *testing.T) {
	a := NewArena()
	mustAdd(t, a, New("x", Executable))
	if err := a.Add(New("x", StaticLibrary)); err == nil {
		t.Fatal("Add: want error on duplicate name")
	}
}

func TestPrepareRejectsUnboundDependency(t *testing.T) {
	a := NewArena()
	exe := New("exe", Executable)
	exe.DependsOn("nosuch", Public, false)
	mustAdd(t, a, exe)
	if err := a.Prepare(); err == nil {
		t.Fatal("Prepare: want error for unresolved dependency")
	}
}

func TestPublicOptionsPropagateTransitively(t *testing.T) {
	a := NewArena()

	base := New("base", StaticLibrary)
	base.Options(Public).IncludeDirectories = []string{"base/include"}
	base.Options(Public).Definitions = []string{"HAVE_BASE=1"}

	mid := New("mid", StaticLibrary)
	mid.DependsOn("base", Public, false)
	mid.Options(Public).IncludeDirectories = []string{"mid/include"}

	exe := New("exe", Executable)
	exe.DependsOn("mid", Public, false)

	mustAdd(t, a, base, mid, exe)
	if err := a.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	for _, want := range []string{"base/include", "mid/include"} {
		if !contains(exe.Effective.IncludeDirectories, want) {
			t.Errorf("exe include dirs %v missing %q", exe.Effective.IncludeDirectories, want)
		}
	}
	if !contains(exe.Effective.Definitions, "HAVE_BASE=1") {
		t.Errorf("exe definitions %v missing HAVE_BASE=1", exe.Effective.Definitions)
	}
}

func TestInterfaceOptionsNotAppliedToOwner(t *testing.T) {
	a := NewArena()

	lib := New("lib", StaticLibrary)
	lib.Options(Interface).Definitions = []string{"CONSUMER_ONLY"}

	exe := New("exe", Executable)
	exe.DependsOn("lib", Public, false)

	mustAdd(t, a, lib, exe)
	if err := a.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	if contains(lib.Effective.Definitions, "CONSUMER_ONLY") {
		t.Error("interface definition leaked into its own target")
	}
	if !contains(exe.Effective.Definitions, "CONSUMER_ONLY") {
		t.Error("interface definition not visible to consumer")
	}
}

func TestPrivateOptionsDoNotPropagate(t *testing.T) {
	a := NewArena()

	lib := New("lib", StaticLibrary)
	lib.Options(Private).Definitions = []string{"INTERNAL"}

	exe := New("exe", Executable)
	exe.DependsOn("lib", Public, false)

	mustAdd(t, a, lib, exe)
	if err := a.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	if contains(exe.Effective.Definitions, "INTERNAL") {
		t.Error("private definition leaked to consumer")
	}
}

func TestProtectedOptionsGatedByPrefix(t *testing.T) {
	a := NewArena()

	lib := New("lib", StaticLibrary)
	lib.PackagePrefix = "org.example"
	lib.Options(Protected).Definitions = []string{"FAMILY"}

	sibling := New("sibling", Executable)
	sibling.PackagePrefix = "org.example"
	sibling.DependsOn("lib", Public, false)

	stranger := New("stranger", Executable)
	stranger.PackagePrefix = "org.other"
	stranger.DependsOn("lib", Public, false)

	mustAdd(t, a, lib, sibling, stranger)
	if err := a.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	if !contains(sibling.Effective.Definitions, "FAMILY") {
		t.Error("protected definition not visible across equal prefix")
	}
	if contains(stranger.Effective.Definitions, "FAMILY") {
		t.Error("protected definition leaked across prefixes")
	}
}

func TestHeadersOnlyUpgradesButNeverDowngrades(t *testing.T) {
	a := NewArena()

	lib := New("lib", StaticLibrary)

	// exe reaches lib both headers-only (directly) and fully linked
	// (through mid); the full link must win.
	mid := New("mid", StaticLibrary)
	mid.DependsOn("lib", Public, false)

	exe := New("exe", Executable)
	exe.DependsOn("lib", Public, true)
	exe.DependsOn("mid", Public, false)

	mustAdd(t, a, lib, mid, exe)
	if err := a.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	deps := exe.EffectiveDependencies(a)
	if idirs, ok := deps["lib"]; !ok || idirs {
		t.Fatalf("lib edge = (%v, %v), want fully linked", idirs, ok)
	}

	// Re-preparing must keep the upgrade; the flag is monotone.
	if err := a.Prepare(); err != nil {
		t.Fatalf("Prepare (again): %v", err)
	}
	deps = exe.EffectiveDependencies(a)
	if idirs := deps["lib"]; idirs {
		t.Fatal("headers-only flag flipped back after re-prepare")
	}
}

func TestHeadersOnlyDependencyContributesNoLinkInput(t *testing.T) {
	a := NewArena()

	lib := New("lib", StaticLibrary)
	lib.BinaryDir = "out"
	lib.Options(Public).IncludeDirectories = []string{"lib/include"}
	lib.Options(Public).LinkLibraries = []string{"m"}

	exe := New("exe", Executable)
	exe.DependsOn("lib", Public, true)

	mustAdd(t, a, lib, exe)
	if err := a.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	if !contains(exe.Effective.IncludeDirectories, "lib/include") {
		t.Error("headers-only dependency did not contribute include dirs")
	}
	if len(exe.Effective.LinkLibraries) != 0 {
		t.Errorf("headers-only dependency contributed link inputs: %v", exe.Effective.LinkLibraries)
	}
}

func TestFullLinkDependencyContributesArtifact(t *testing.T) {
	a := NewArena()

	lib := New("widget", StaticLibrary)
	lib.BinaryDir = "out"

	exe := New("exe", Executable)
	exe.DependsOn("widget", Public, false)

	mustAdd(t, a, lib, exe)
	if err := a.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	if !contains(exe.Effective.LinkDirectories, "out") {
		t.Errorf("link dirs %v missing out", exe.Effective.LinkDirectories)
	}
	if !contains(exe.Effective.LinkLibraries, ":libwidget.a") {
		t.Errorf("link libs %v missing :libwidget.a", exe.Effective.LinkLibraries)
	}
}

func TestEffectiveDependencySetGrowsMonotonically(t *testing.T) {
	a := NewArena()

	lib := New("lib", StaticLibrary)
	exe := New("exe", Executable)
	exe.DependsOn("lib", Public, false)
	mustAdd(t, a, lib, exe)
	if err := a.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	before := exe.EffectiveDependencies(a)

	// A later wave adds a target and a new edge; the old edges survive.
	extra := New("extra", StaticLibrary)
	mustAdd(t, a, extra)
	exe.DependsOn("extra", Public, false)
	if err := a.Prepare(); err != nil {
		t.Fatalf("Prepare (wave 2): %v", err)
	}
	after := exe.EffectiveDependencies(a)

	for name := range before {
		if _, ok := after[name]; !ok {
			t.Errorf("dependency %s lost across prepare waves", name)
		}
	}
	if _, ok := after["extra"]; !ok {
		t.Error("new dependency not picked up by re-prepare")
	}
}

func TestCircularLinkMarked(t *testing.T) {
	a := NewArena()

	x := New("x", SharedLibrary)
	y := New("y", SharedLibrary)
	z := New("z", SharedLibrary)
	x.DependsOn("y", Public, false)
	y.DependsOn("z", Public, false)
	z.DependsOn("x", Public, false)

	bystander := New("bystander", SharedLibrary)
	bystander.DependsOn("x", Public, false)

	mustAdd(t, a, x, y, z, bystander)
	if err := a.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	for _, tg := range []*Target{x, y, z} {
		if !tg.Circular {
			t.Errorf("%s not marked circular", tg.Name)
		}
		if tg.ImportLibraryPath == "" {
			t.Errorf("%s has no import library for the alternate link", tg.Name)
		}
	}
	if bystander.Circular {
		t.Error("bystander wrongly marked circular")
	}
}

func TestStaticLibrariesDoNotFormLinkCycles(t *testing.T) {
	a := NewArena()

	x := New("x", StaticLibrary)
	y := New("y", StaticLibrary)
	x.DependsOn("y", Public, false)
	y.DependsOn("x", Public, false)

	mustAdd(t, a, x, y)
	if err := a.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if x.Circular || y.Circular {
		t.Error("archived libraries marked as a link cycle")
	}
}

func TestFinalizeOutputPaths(t *testing.T) {
	tests := []struct {
		kind     Kind
		targetOS string
		want     string
	}{
		{Executable, "linux", "app"},
		{Executable, "windows", "app.exe"},
		{StaticLibrary, "linux", "libapp.a"},
		{StaticLibrary, "windows", "app.lib"},
		{SharedLibrary, "linux", "libapp.so"},
		{SharedLibrary, "windows", "app.dll"},
	}
	for _, tt := range tests {
		a := NewArena()
		tg := New("app", tt.kind)
		tg.TargetOS = tt.targetOS
		tg.BinaryDir = "bin"
		mustAdd(t, a, tg)
		if err := a.Prepare(); err != nil {
			t.Fatalf("Prepare: %v", err)
		}
		want := filepath.Join("bin", tt.want)
		if tg.OutputPath != want {
			t.Errorf("%v/%s: OutputPath = %q, want %q", tt.kind, tt.targetOS, tg.OutputPath, want)
		}
	}
}

func TestSharedLibraryImportArtifactsOnWindows(t *testing.T) {
	a := NewArena()
	tg := New("app", SharedLibrary)
	tg.TargetOS = "windows"
	tg.BinaryDir = "bin"
	tg.ExportAllSymbols = true
	mustAdd(t, a, tg)
	if err := a.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if want := filepath.Join("bin", "app.lib"); tg.ImportLibraryPath != want {
		t.Errorf("ImportLibraryPath = %q, want %q", tg.ImportLibraryPath, want)
	}
	if want := filepath.Join("bin", "app.def"); tg.ExportDefinitionsFile != want {
		t.Errorf("ExportDefinitionsFile = %q, want %q", tg.ExportDefinitionsFile, want)
	}
}

func TestConfigTypeDefaults(t *testing.T) {
	tests := []struct {
		config ConfigType
		want   string
	}{
		{Debug, "-O0"},
		{Release, "-O2"},
		{MinSizeRel, "-Os"},
		{RelWithDebInfo, "-O2"},
	}
	for _, tt := range tests {
		a := NewArena()
		tg := New("app", Executable)
		tg.Config = tt.config
		mustAdd(t, a, tg)
		if err := a.Prepare(); err != nil {
			t.Fatalf("Prepare: %v", err)
		}
		if !contains(tg.Effective.CompileOptions, tt.want) {
			t.Errorf("config %v: options %v missing %q", tt.config, tg.Effective.CompileOptions, tt.want)
		}
	}
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}
