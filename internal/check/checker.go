// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package check

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/nativepkg/nativepkg/internal/fs"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var errCyclicCheckDependencies = errors.New("check: cyclic dependencies among checks")

// Checker owns every named Set for one solution's checks and the shared
// dedup table across all of them.
type Checker struct {
	Sets   map[string]*Set
	checks map[uint64]*Check
	Logger *log.Logger
}

// NewChecker returns an empty Checker.
func NewChecker() *Checker {
	return &Checker{Sets: map[string]*Set{}, checks: map[uint64]*Check{}}
}

// AddSet returns the named Set, creating it if this is the first request
// for that name.
func (ch *Checker) AddSet(name string) *Set {
	if s, ok := ch.Sets[name]; ok {
		return s
	}
	s := newSet(ch)
	ch.Sets[name] = s
	return s
}

func (ch *Checker) logf(format string, args ...interface{}) {
	if ch.Logger != nil {
		ch.Logger.Printf(format, args...)
	}
}

// ManualChecksRequiredError is returned by PerformChecks when one or more
// checks could not run on the host (cross-compilation) and are now
// staged, awaiting a manually-run script's results.
type ManualChecksRequiredError struct {
	SidecarPath string
	ScriptPath  string
	StagingDir  string
}

func (e *ManualChecksRequiredError) Error() string {
	return fmt.Sprintf("check: some checks require manual setup; run %s and merge its results into %s (staged binaries: %s)",
		e.ScriptPath, e.SidecarPath, e.StagingDir)
}

// PerformChecks runs the full pipeline: accumulate the endianness
// probe, dedup, gather dependencies, load the cache, plan, execute, and
// persist. cacheDir holds checks.3.txt (and its manual sidecar);
// stagingDir is where not-runnable-on-host probe binaries and their run
// script are written.
func (ch *Checker) PerformChecks(ctx context.Context, cacheDir, stagingDir string, tc Toolchain, shell Shell, execExt, shellExt string) error {
	for _, s := range ch.Sets {
		s.CheckSourceRuns(bigEndianDefinition, bigEndianSource(), false)
	}

	deps := map[uint64][]uint64{}
	for _, s := range ch.Sets {
		hashes := append([]uint64(nil), s.order...)
		for _, h := range hashes {
			c := s.checks[h]
			s.requestDefinitions(c)
			for _, depTemplate := range c.Dependencies() {
				dep := s.add(depTemplate)
				deps[h] = appendUnique(deps[h], dep.Hash())
			}
		}
	}

	cache := newCacheStore()
	if err := cache.load(cacheDir); err != nil {
		return err
	}
	for h, c := range ch.checks {
		if v, ok := cache.values[h]; ok {
			c.Value = v
			c.Checked = true
		}
	}

	unchecked := map[uint64]*Check{}
	for h, c := range ch.checks {
		if !c.Checked {
			unchecked[h] = c
		}
	}

	if len(unchecked) > 0 {
		ch.logf("performing %d check(s)", len(unchecked))

		waves, err := topoSort(unchecked, deps)
		if err != nil {
			if derr := writeCycleDOT(cacheDir, deps, unchecked); derr != nil {
				return errors.Wrap(derr, "check: writing cycle graph")
			}
			return err
		}

		scratchRoot := filepath.Join(cacheDir, "cc")
		defer os.RemoveAll(scratchRoot)

		for _, wave := range waves {
			g, gctx := errgroup.WithContext(ctx)
			for _, h := range wave {
				c := unchecked[h]
				g.Go(func() error {
					return ch.executeOne(gctx, c, tc, scratchRoot)
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
		}
	}

	for h, c := range ch.checks {
		if c.Checked {
			cache.values[h] = c.Value
		} else if c.RequiresManualSetup {
			cache.manual[h] = c
		}
	}
	if err := cache.save(cacheDir); err != nil {
		return err
	}

	var manualPending []*Check
	for _, c := range ch.checks {
		if c.RequiresManualSetup && !c.Checked {
			manualPending = append(manualPending, c)
		}
	}
	if len(manualPending) > 0 {
		if err := os.MkdirAll(stagingDir, 0755); err != nil {
			return errors.Wrapf(err, "check: creating %s", stagingDir)
		}
		for _, c := range manualPending {
			dst := filepath.Join(stagingDir, fmt.Sprintf("%d%s", c.Hash(), execExt))
			if _, err := os.Stat(dst); os.IsNotExist(err) {
				if err := fs.CopyFile(c.ExecutablePath, dst); err != nil {
					return errors.Wrapf(err, "check: staging %s", dst)
				}
			}
		}
		sidecarName := cacheFileName + manualSidecarSuffix
		scriptPath, err := ManualScript(stagingDir, shell, execExt, shellExt, sidecarName, manualPending)
		if err != nil {
			return err
		}
		return &ManualChecksRequiredError{
			SidecarPath: filepath.Join(cacheDir, sidecarName),
			ScriptPath:  scriptPath,
			StagingDir:  stagingDir,
		}
	}

	for _, s := range ch.Sets {
		s.finalize()
	}
	return nil
}

func appendUnique(hashes []uint64, h uint64) []uint64 {
	for _, existing := range hashes {
		if existing == h {
			return hashes
		}
	}
	return append(hashes, h)
}

// probeMode reports the build depth a check's probe needs: whether it
// must link into an executable at all, and whether that executable must
// then run for the check's value to be known.
func probeMode(k Kind) (needsLink, needsRun bool) {
	switch k {
	case IncludeExists, SourceCompiles:
		return false, false
	case TypeSize, TypeAlignment, SourceRuns:
		return true, true
	default:
		return true, false
	}
}

func (ch *Checker) executeOne(ctx context.Context, c *Check, tc Toolchain, scratchRoot string) error {
	if c.Checked {
		return nil
	}

	resolvedIncludes := make(map[string]bool, len(c.Parameters.Includes))
	for _, inc := range c.Parameters.Includes {
		depHash := NewIncludeExists(inc, "").Hash()
		if dep, ok := ch.checks[depHash]; ok {
			resolvedIncludes[inc] = dep.Checked && dep.Value != 0
		}
	}

	src := sourceFileContents(c, resolvedIncludes)
	needsLink, needsRun := probeMode(c.Kind)

	var defines map[string]string
	if c.Kind == FunctionExists || c.Kind == LibraryFunctionExists {
		defines = map[string]string{"CHECK_FUNCTION_EXISTS": c.Data}
	}

	dir := filepath.Join(scratchRoot, fmt.Sprintf("%d", c.Hash()))
	probe := Probe{
		Dir:         dir,
		Source:      src,
		CPP:         c.Parameters.CPP,
		Includes:    c.Parameters.Includes,
		IncludeDirs: c.Parameters.IncludeDirectories,
		Libraries:   append([]string(nil), c.Parameters.Libraries...),
		Options:     c.Parameters.Options,
		Defines:     defines,
		NeedsRun:    needsRun,
		NeedsLink:   needsLink,
	}

	res, err := tc.Run(ctx, probe)
	if err != nil {
		return errors.Wrapf(err, "check: running probe for %s", c.PrimaryDefinition())
	}

	switch {
	case !res.BuildOK:
		c.Value = 0
		c.Checked = true
	case needsRun && !res.CanExecuteOnHost:
		c.RequiresManualSetup = true
		c.ExecutablePath = res.ExecutablePath
	case needsRun:
		c.Value = res.ExitCode
		c.Checked = true
	default:
		c.Value = 1
		c.Checked = true
	}

	if c.Checked && len(c.Definitions) == 0 {
		return errors.Errorf("check: %s: definition was not set", c.Data)
	}
	return nil
}
