// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package plan implements the execution plan and scheduler: a
// command DAG built from the command builder's output, topologically
// executed with bounded parallelism, staleness detection via the file
// fingerprints, and a private binary serialization for incremental reuse
// across runs.
package plan

import (
	"sort"

	"github.com/nativepkg/nativepkg/internal/command"
	"github.com/pkg/errors"
)

// ErrCyclic is returned by Build when the command graph contains a cycle.
var ErrCyclic = errors.New("plan: cyclic command dependencies")

// Status is a command's outcome after Execute.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusDone
	StatusSkippedStale // not stale; skipped because fingerprints matched
	StatusSkippedFailedDep
	StatusFailed
)

// Plan is a topologically-ordered command DAG.
type Plan struct {
	Commands []*command.Command

	byName   map[string]*command.Command
	children map[string][]string // name -> names of commands that depend on it
	order    []string            // topological order, set by Build
	waves    [][]string          // order grouped into dependency-respecting waves

	// TotalCommands is the number of commands in the built order, the
	// total for "[n/total]" progress reporting. Plan keeps no live
	// progress counter itself.
	TotalCommands int

	// StopOnFirstError, when true (the default), stops dispatch after the
	// wave in which a command fails: commands already dispatched in that
	// wave run to completion and every later wave is marked skipped.
	// MaxFailures, when > 0, ends execution after the first wave at whose
	// end at least that many commands have failed, whatever
	// StopOnFirstError is; 0 means no bound.
	StopOnFirstError bool
	MaxFailures      int
}

// New returns an empty Plan.
func New() *Plan {
	return &Plan{StopOnFirstError: true}
}

// Add appends cmds to the plan. Build must be called (again) before
// Execute picks up newly added commands.
func (p *Plan) Add(cmds ...*command.Command) {
	p.Commands = append(p.Commands, cmds...)
}

// Build computes the topological ordering over the current command set,
// keyed by Command.Name. Cycles are reported as ErrCyclic after a DOT
// dump is written to dotDir (skipped if dotDir is "").
func (p *Plan) Build(dotDir string) error {
	p.byName = make(map[string]*command.Command, len(p.Commands))
	for _, c := range p.Commands {
		if _, dup := p.byName[c.Name]; dup {
			return errors.Errorf("plan: duplicate command name %q", c.Name)
		}
		p.byName[c.Name] = c
	}

	indegree := make(map[string]int, len(p.Commands))
	p.children = make(map[string][]string, len(p.Commands))
	for _, c := range p.Commands {
		indegree[c.Name] = 0
	}
	for _, c := range p.Commands {
		for _, dep := range c.Dependencies {
			if _, ok := p.byName[dep]; !ok {
				return errors.Errorf("plan: %s: unknown dependency %q", c.Name, dep)
			}
			indegree[c.Name]++
			p.children[dep] = append(p.children[dep], c.Name)
		}
	}

	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}

	var order []string
	var waves [][]string
	remaining := len(p.Commands)
	for len(ready) > 0 {
		sort.Strings(ready)
		wave := append([]string(nil), ready...)
		waves = append(waves, wave)
		order = append(order, ready...)
		remaining -= len(ready)

		var next []string
		for _, name := range ready {
			for _, child := range p.children[name] {
				indegree[child]--
				if indegree[child] == 0 {
					next = append(next, child)
				}
			}
		}
		ready = next
	}

	if remaining > 0 {
		if dotDir != "" {
			if err := writeCycleDOT(dotDir, p.Commands, indegree); err != nil {
				return errors.Wrap(err, "plan: writing cycle graph")
			}
		}
		return ErrCyclic
	}

	p.order = order
	p.waves = waves
	p.TotalCommands = len(order)
	return nil
}

// Order returns the computed topological order (command names). Build
// must have run first.
func (p *Plan) Order() []string {
	return append([]string(nil), p.order...)
}
