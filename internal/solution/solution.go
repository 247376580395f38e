// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package solution implements the solution orchestrator: a
// Solution holds one build configuration and coordinates check execution,
// target preparation, and plan execution; a Build owns several Solutions
// (one per requested configuration combination) and drives them in
// parallel. Package build descriptions are consumed through the narrow
// Plugin interface, keeping the (out-of-scope) dynamic module
// loader an external collaborator.
package solution

import (
	"context"

	"github.com/nativepkg/nativepkg/internal/check"
	"github.com/nativepkg/nativepkg/internal/command"
	"github.com/nativepkg/nativepkg/internal/fingerprint"
	"github.com/nativepkg/nativepkg/internal/plan"
	"github.com/nativepkg/nativepkg/internal/target"
	"github.com/pkg/errors"
)

// EventType names a point in a target's lifecycle that callbacks can
// subscribe to: callbacks register against a (target filter) x
// (event type) pair.
type EventType int

const (
	EventTargetAdded EventType = iota
	EventPrepared
	EventBuilt
)

// EventFilter reports whether a callback applies to t.
type EventFilter func(t *target.Target) bool

// AnyTarget is an EventFilter that matches every target.
func AnyTarget(*target.Target) bool { return true }

type eventCallback struct {
	filter EventFilter
	event  EventType
	fn     func(*target.Target) error
}

// TestCase is one registered test run: a
// named invocation of a built target, independent of the build graph
// itself.
type TestCase struct {
	Name       string
	TargetName string
	Args       []string
}

// Solution is one build configuration: target OS, architecture,
// libraries-type, configuration type, and compiler type, per the
// GLOSSARY.
type Solution struct {
	Name          string
	TargetOS      string
	Arch          string
	LibrariesType string // "static" or "shared"
	ConfigType    target.ConfigType
	CompilerType  string

	Arena        *target.Arena
	Checker      *check.Checker
	Builder      *command.Builder
	Plan         *plan.Plan
	Fingerprints *fingerprint.DB

	// HostExecutable reports whether binaries this solution produces can
	// run on the machine doing the building; false for a cross build.
	// Nothing in this package reads it; the check engine takes its own
	// setting from the Toolchain passed to PerformChecks.
	HostExecutable bool

	Tests []TestCase

	callbacks []eventCallback
}

// New returns a Solution with a fresh Arena and Checker, wired to the
// given command builder, plan, and fingerprint database. Callers
// typically construct one Solution per requested configuration
// combination and group them under a Build.
func New(name string, builder *command.Builder, p *plan.Plan, fp *fingerprint.DB) *Solution {
	return &Solution{
		Name:         name,
		Arena:        target.NewArena(),
		Checker:      check.NewChecker(),
		Builder:      builder,
		Plan:         p,
		Fingerprints: fp,
	}
}

// AddTarget registers t and fires any EventTargetAdded callbacks whose
// filter matches it.
func (s *Solution) AddTarget(t *target.Target) error {
	if err := s.Arena.Add(t); err != nil {
		return err
	}
	return s.fire(EventTargetAdded, t)
}

// OnEvent subscribes fn to run for every target matching filter when
// event fires.
func (s *Solution) OnEvent(filter EventFilter, event EventType, fn func(*target.Target) error) {
	s.callbacks = append(s.callbacks, eventCallback{filter: filter, event: event, fn: fn})
}

// RegisterTest records tc for later invocation by whatever test-runner
// consumes the solution (out of scope for the core itself; the core
// only records the registration).
func (s *Solution) RegisterTest(tc TestCase) {
	s.Tests = append(s.Tests, tc)
}

func (s *Solution) fire(event EventType, t *target.Target) error {
	for _, cb := range s.callbacks {
		if cb.event != event || !cb.filter(t) {
			continue
		}
		if err := cb.fn(t); err != nil {
			return errors.Wrapf(err, "solution: %s: event callback on %s", s.Name, t.Name)
		}
	}
	return nil
}

// PerformChecks runs every registered check for this solution.
func (s *Solution) PerformChecks(ctx context.Context, cacheDir, stagingDir string, tc check.Toolchain, shell check.Shell, execExt, shellExt string) error {
	return s.Checker.PerformChecks(ctx, cacheDir, stagingDir, tc, shell, execExt, shellExt)
}

// Prepare runs dependency resolution to a fixed point and fires
// EventPrepared callbacks, re-running when a callback (or the package
// description it's wired to) adds new targets mid-pass: preparation is
// re-entrant, and a wave that grows the target set triggers another
// wave until a fixed point.
func (s *Solution) Prepare() error {
	for {
		before := len(s.Arena.All())
		if err := s.Arena.Prepare(); err != nil {
			return errors.Wrapf(err, "solution: %s: preparing targets", s.Name)
		}
		for _, t := range s.Arena.All() {
			if err := s.fire(EventPrepared, t); err != nil {
				return err
			}
		}
		if len(s.Arena.All()) == before {
			return nil
		}
	}
}

// BuildCommands lowers every prepared target through the command
// builder and loads the resulting commands into the solution's
// plan, ready for Plan.Build + Execute.
func (s *Solution) BuildCommands() error {
	for _, t := range s.Arena.All() {
		cmds, err := s.Builder.BuildTarget(t)
		if err != nil {
			return errors.Wrapf(err, "solution: %s: building commands for %s", s.Name, t.Name)
		}
		s.Plan.Add(cmds...)
	}
	return nil
}

// Execute runs this solution's plan and fires EventBuilt callbacks for
// every target whose output command succeeded.
func (s *Solution) Execute(ctx context.Context, cycleDotDir string, pool int, resolve command.Resolver) (*plan.ExecuteResult, error) {
	if err := s.Plan.Build(cycleDotDir); err != nil {
		return nil, errors.Wrapf(err, "solution: %s: building plan", s.Name)
	}
	res, err := s.Plan.Execute(ctx, s.Fingerprints, resolve, pool)
	if err != nil {
		return nil, errors.Wrapf(err, "solution: %s: executing plan", s.Name)
	}
	for _, t := range s.Arena.All() {
		outcome, ok := res.Outcomes["link:"+t.OutputPath]
		if !ok {
			outcome, ok = res.Outcomes["archive:"+t.OutputPath]
		}
		if ok && (outcome.Status == plan.StatusDone || outcome.Status == plan.StatusSkippedStale) {
			if err := s.fire(EventBuilt, t); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}
