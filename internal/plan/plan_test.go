// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package plan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nativepkg/nativepkg/internal/command"
	"github.com/nativepkg/nativepkg/internal/fingerprint"
)

func TestBuildTopologicalOrder(t *testing.T) {
	p := New()
	p.Add(
		&command.Command{Name: "c", Dependencies: []string{"b"}},
		&command.Command{Name: "a"},
		&command.Command{Name: "b", Dependencies: []string{"a"}},
	)
	if err := p.Build(""); err != nil {
		t.Fatalf("Build: %v", err)
	}
	order := p.Order()
	pos := map[string]int{}
	for i, name := range order {
		pos[name] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Fatalf("order %v does not respect dependencies", order)
	}
}

func TestBuildDetectsCycle(t *testing.T) {
	dir := t.TempDir()
	p := New()
	p.Add(
		&command.Command{Name: "a", Dependencies: []string{"b"}},
		&command.Command{Name: "b", Dependencies: []string{"a"}},
	)
	err := p.Build(dir)
	if err != ErrCyclic {
		t.Fatalf("Build err = %v, want ErrCyclic", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "deps_cycle.dot")); statErr != nil {
		t.Fatalf("cycle DOT file not written: %v", statErr)
	}
}

func TestBuildRejectsUnknownDependency(t *testing.T) {
	p := New()
	p.Add(&command.Command{Name: "a", Dependencies: []string{"ghost"}})
	if err := p.Build(""); err == nil {
		t.Fatal("Build: want error for unknown dependency")
	}
}

func TestExecuteRunsInDependencyOrderAndSkipsStale(t *testing.T) {
	dir := t.TempDir()
	outA := filepath.Join(dir, "a.out")
	outB := filepath.Join(dir, "b.out")

	p := New()
	p.Add(
		&command.Command{Name: "a", Program: "touch", Args: []command.Arg{command.OutputFile(outA)}, Outputs: []string{outA}},
		&command.Command{Name: "b", Program: "touch", Args: []command.Arg{command.OutputFile(outB)}, Outputs: []string{outB}, Dependencies: []string{"a"}},
	)
	if err := p.Build(""); err != nil {
		t.Fatalf("Build: %v", err)
	}

	fp, err := fingerprint.Open(filepath.Join(dir, "fp.json"))
	if err != nil {
		t.Fatalf("fingerprint.Open: %v", err)
	}

	res, err := p.Execute(context.Background(), fp, nil, 2)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Failed {
		for name, o := range res.Outcomes {
			t.Logf("%s: status=%v err=%v", name, o.Status, o.Err)
		}
		t.Fatal("Execute reported failure")
	}
	if res.Outcomes["a"].Status != StatusDone || res.Outcomes["b"].Status != StatusDone {
		t.Fatalf("first run outcomes: a=%v b=%v", res.Outcomes["a"].Status, res.Outcomes["b"].Status)
	}

	// Second run with unchanged inputs/outputs should skip both as stale.
	res2, err := p.Execute(context.Background(), fp, nil, 2)
	if err != nil {
		t.Fatalf("Execute (2nd): %v", err)
	}
	if res2.Outcomes["a"].Status != StatusSkippedStale || res2.Outcomes["b"].Status != StatusSkippedStale {
		t.Fatalf("second run outcomes: a=%v b=%v, want both skipped-stale", res2.Outcomes["a"].Status, res2.Outcomes["b"].Status)
	}
}

func TestExecutePropagatesFailureToDependents(t *testing.T) {
	p := New()
	p.Add(
		&command.Command{Name: "a", Program: "false-nonexistent-binary-xyz"},
		&command.Command{Name: "b", Program: "true", Dependencies: []string{"a"}},
	)
	if err := p.Build(""); err != nil {
		t.Fatalf("Build: %v", err)
	}
	res, err := p.Execute(context.Background(), nil, nil, 2)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Failed {
		t.Fatal("want plan to report failure")
	}
	if res.Outcomes["a"].Status != StatusFailed {
		t.Fatalf("a status = %v, want Failed", res.Outcomes["a"].Status)
	}
	if res.Outcomes["b"].Status != StatusSkippedFailedDep {
		t.Fatalf("b status = %v, want SkippedFailedDep", res.Outcomes["b"].Status)
	}
}
