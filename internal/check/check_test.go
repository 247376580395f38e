// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package check

import (
	"context"
	"os"
	"testing"
)

func TestHashIsOrderIndependentAndDeterministic(t *testing.T) {
	a := &Check{Data: "foo", Parameters: Parameters{
		Definitions: []string{"X", "Y"},
		Includes:    []string{"a.h", "b.h"},
		Libraries:   []string{"m"},
	}}
	b := &Check{Data: "foo", Parameters: Parameters{
		Definitions: []string{"Y", "X"},
		Includes:    []string{"b.h", "a.h"},
		Libraries:   []string{"m"},
	}}
	if a.Hash() != b.Hash() {
		t.Fatalf("hashes differ for equivalent parameter sets: %d vs %d", a.Hash(), b.Hash())
	}

	c := &Check{Data: "bar", Parameters: a.Parameters}
	if a.Hash() == c.Hash() {
		t.Fatal("different check data produced the same hash")
	}
}

func TestMakeVarHelpers(t *testing.T) {
	cases := []struct {
		got, want string
	}{
		{makeFunctionVar("memcpy", ""), "HAVE_MEMCPY"},
		{makeIncludeVar("sys/types.h"), "HAVE_SYS_TYPES_H"},
		{makeTypeVar("long long", ""), "HAVE_LONG_LONG"},
		{makeTypeVar("void*", ""), "HAVE_VOIDP"},
		{makeAlignmentVar("int"), "ALIGNOF_INT"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("got %q, want %q", c.got, c.want)
		}
	}
}

func TestSetDedupMergesDefinitions(t *testing.T) {
	ch := NewChecker()
	s1 := ch.AddSet("main")
	s2 := ch.AddSet("icu")

	c1 := s1.CheckFunctionExistsDef("memcpy", "HAVE_MEMCPY", false)
	c2 := s2.CheckFunctionExistsDef("memcpy", "U_HAVE_MEMCPY", false)

	if c1 != c2 {
		t.Fatal("equivalent checks in different sets should dedup to the same instance")
	}
	if len(c1.Definitions) != 2 {
		t.Fatalf("expected merged definitions, got %v", c1.Definitions)
	}
}

func TestDependenciesGatheredForTypeSize(t *testing.T) {
	c := NewTypeSize("size_t", "")
	deps := c.Dependencies()
	if len(deps) != len(defaultStandardIncludes) {
		t.Fatalf("expected %d dependency checks, got %d", len(defaultStandardIncludes), len(deps))
	}
	for i, d := range deps {
		if d.Kind != IncludeExists || d.Data != defaultStandardIncludes[i] {
			t.Errorf("dependency %d = %+v, want include-exists for %q", i, d, defaultStandardIncludes[i])
		}
	}
}

type fakeToolchain struct {
	buildOK    bool
	canRun     bool
	exitCode   int
	executable string
}

func (f fakeToolchain) CanExecuteOnHost() bool { return f.canRun }

func (f fakeToolchain) Run(ctx context.Context, p Probe) (Result, error) {
	if !f.buildOK {
		return Result{BuildOK: false}, nil
	}
	return Result{BuildOK: true, CanExecuteOnHost: f.canRun, ExitCode: f.exitCode, ExecutablePath: f.executable}, nil
}

func TestPerformChecksResolvesAndPersists(t *testing.T) {
	dir := t.TempDir()
	ch := NewChecker()
	set := ch.AddSet("main")
	set.CheckIncludeExists("stdint.h", false)

	tc := fakeToolchain{buildOK: true, canRun: true, exitCode: 1}
	if err := ch.PerformChecks(context.Background(), dir, dir+"/staging", tc, ShellPOSIX, "", ".sh"); err != nil {
		t.Fatalf("PerformChecks: %v", err)
	}

	def := makeIncludeVar("stdint.h")
	got, ok := set.CheckValues[def]
	if !ok || got == nil {
		t.Fatalf("CheckValues[%q] missing after PerformChecks", def)
	}
	if got.Value != 1 {
		t.Fatalf("Value = %d, want 1", got.Value)
	}

	// Re-running against the same cache directory should short-circuit
	// without needing the toolchain to do anything (it would fail loudly
	// since buildOK is false here).
	ch2 := NewChecker()
	set2 := ch2.AddSet("main")
	set2.CheckIncludeExists("stdint.h", false)
	failingTC := fakeToolchain{buildOK: false}
	if err := ch2.PerformChecks(context.Background(), dir, dir+"/staging", failingTC, ShellPOSIX, "", ".sh"); err != nil {
		t.Fatalf("second PerformChecks: %v", err)
	}
	if got2 := set2.CheckValues[def]; got2 == nil || got2.Value != 1 {
		t.Fatalf("expected cached value 1 to survive reload, got %+v", got2)
	}
}

func TestPerformChecksStagesManualSetup(t *testing.T) {
	dir := t.TempDir()
	execDir := t.TempDir()
	execPath := execDir + "/probe.out"
	if err := os.WriteFile(execPath, []byte("fake-binary"), 0644); err != nil {
		t.Fatal(err)
	}

	ch := NewChecker()
	set := ch.AddSet("main")
	set.CheckTypeSize("int", false)

	tc := fakeToolchain{buildOK: true, canRun: false, executable: execPath}
	err := ch.PerformChecks(context.Background(), dir, dir+"/staging", tc, ShellPOSIX, "", ".sh")
	if err == nil {
		t.Fatal("expected a manual-checks-required error")
	}
	if _, ok := err.(*ManualChecksRequiredError); !ok {
		t.Fatalf("err = %v (%T), want *ManualChecksRequiredError", err, err)
	}
}
