// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solution

import (
	"context"
	"sync"

	"github.com/nativepkg/nativepkg/internal/check"
	"github.com/nativepkg/nativepkg/internal/command"
	"github.com/nativepkg/nativepkg/internal/plan"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ABIVersion is the build-description ABI version this driver speaks:
// a plugin whose reported sw_get_module_abi_version
// doesn't match is rejected rather than loaded half-compatible.
const ABIVersion = 1

// Plugin is the narrow boundary between the core driver and a package's
// build description. The dynamic loading mechanism that turns a
// path on disk into a Plugin value is out of scope here; this type only
// describes the calling convention once a description is loaded.
type Plugin struct {
	Name string

	// ABIVersion, if non-zero, is what the plugin reported from
	// sw_get_module_abi_version. LoadPlugin rejects a mismatch rather
	// than attempting to run it.
	ABIVersion int

	Build     func(*Solution) error
	Check     func(*Solution) error
	Configure func(*Solution) error
}

// ErrABIMismatch is returned by LoadPlugin when a plugin's reported ABI
// version does not match ABIVersion.
var ErrABIMismatch = errors.New("solution: plugin ABI version mismatch")

// LoadPlugin validates p against the driver's expected ABI version
// before returning it for use. It does not perform any dynamic loading
// itself - p is assumed already resolved by the caller's module loader.
func LoadPlugin(p *Plugin) (*Plugin, error) {
	if p.ABIVersion != 0 && p.ABIVersion != ABIVersion {
		return nil, errors.Wrapf(ErrABIMismatch, "plugin %s: reported %d, want %d", p.Name, p.ABIVersion, ABIVersion)
	}
	return p, nil
}

// Build groups every Solution produced for one invocation - one per
// requested (OS, arch, libraries-type, config-type, compiler) tuple -
// and an optional Plugin describing how to check/configure/build the
// package across all of them.
type Build struct {
	Solutions []*Solution
	Plugin    *Plugin
}

// NewBuild returns a Build over solutions, optionally bound to plugin
// (may be nil for a plugin-less, driver-only build).
func NewBuild(solutions []*Solution, plugin *Plugin) *Build {
	return &Build{Solutions: solutions, Plugin: plugin}
}

// PerformChecks runs check.PerformChecks for every solution in parallel,
// then invokes the plugin's Check hook (once per solution) if present.
func (b *Build) PerformChecks(ctx context.Context, cacheDir, stagingDir string, tc check.Toolchain, shell check.Shell, execExt, shellExt string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range b.Solutions {
		s := s
		g.Go(func() error {
			if err := s.PerformChecks(gctx, cacheDir, stagingDir, tc, shell, execExt, shellExt); err != nil {
				return err
			}
			if b.Plugin != nil && b.Plugin.Check != nil {
				return b.Plugin.Check(s)
			}
			return nil
		})
	}
	return g.Wait()
}

// Prepare runs Configure (if a plugin is bound) and then Prepare for
// every solution in parallel.
func (b *Build) Prepare(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)
	for _, s := range b.Solutions {
		s := s
		g.Go(func() error {
			if b.Plugin != nil && b.Plugin.Configure != nil {
				if err := b.Plugin.Configure(s); err != nil {
					return errors.Wrapf(err, "solution %s: configure", s.Name)
				}
			}
			if b.Plugin != nil && b.Plugin.Build != nil {
				if err := b.Plugin.Build(s); err != nil {
					return errors.Wrapf(err, "solution %s: build description", s.Name)
				}
			}
			return s.Prepare()
		})
	}
	return g.Wait()
}

// Execute lowers and runs every solution's plan in parallel, returning
// each solution's result keyed by solution name.
func (b *Build) Execute(ctx context.Context, cycleDotDir string, pool int, resolve command.Resolver) (map[string]*plan.ExecuteResult, error) {
	results := make(map[string]*plan.ExecuteResult, len(b.Solutions))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range b.Solutions {
		s := s
		g.Go(func() error {
			if err := s.BuildCommands(); err != nil {
				return err
			}
			res, err := s.Execute(gctx, cycleDotDir, pool, resolve)
			if err != nil {
				return err
			}
			mu.Lock()
			results[s.Name] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
