// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package check

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/nativepkg/nativepkg/internal/procexec"
)

// Probe describes one compile(-link-run) attempt a Toolchain must carry
// out for a Check.
type Probe struct {
	Dir        string // scratch directory the probe program is written into
	Source     string
	CPP        bool
	Includes   []string
	IncludeDirs []string
	Libraries  []string
	Options    []string
	Defines    map[string]string

	// NeedsRun is true for checks whose value depends on the probe
	// actually executing (type-size, type-alignment, source-runs), as
	// opposed to merely compiling (include-exists, source-compiles) or
	// linking (function-exists, symbol-exists, source-links).
	NeedsRun bool
	// NeedsLink is true for every check whose probe must be linked into
	// an executable: all kinds except include-exists and source-compiles,
	// including the ones that also run it (NeedsRun).
	NeedsLink bool
}

// Result is what a Toolchain reports back for a Probe.
type Result struct {
	// BuildOK is false on any internal compile/link failure;
	// this is not fatal; the check simply resolves to 0.
	BuildOK bool

	// CanExecuteOnHost is false for cross-compiled targets the host
	// can't run; the check is then staged for manual setup instead of
	// being resolved now.
	CanExecuteOnHost bool
	ExecutablePath   string

	ExitCode int
}

// Toolchain performs the actual compile/link/run work a Check's probe
// needs. The check engine never shells out directly; it asks a Toolchain,
// so unit tests can substitute a fake one and a Solution
// can wire in the real compiler it already selected for the build.
type Toolchain interface {
	Run(ctx context.Context, p Probe) (Result, error)
	// CanExecuteOnHost reports whether binaries this toolchain produces
	// can run on the machine doing the building (false when
	// cross-compiling for another OS/architecture).
	CanExecuteOnHost() bool
}

// ExecToolchain is a Toolchain backed by an actual C/C++ compiler found on
// PATH, invoked through procexec the same way internal/source's VCS
// drivers invoke their external clients.
type ExecToolchain struct {
	CCompiler   string
	CXXCompiler string
	// HostExecutable reports whether the current build is compiling for
	// the host itself; false for a cross build.
	HostExecutable bool
}

// NewExecToolchain returns an ExecToolchain using cc/c++ unless overridden
// by the CC/CXX environment variables, matching the Unix convention every
// example repo's build tooling already honors.
func NewExecToolchain(hostExecutable bool) *ExecToolchain {
	cc := os.Getenv("CC")
	if cc == "" {
		cc = "cc"
	}
	cxx := os.Getenv("CXX")
	if cxx == "" {
		cxx = "c++"
	}
	return &ExecToolchain{CCompiler: cc, CXXCompiler: cxx, HostExecutable: hostExecutable}
}

func (t *ExecToolchain) CanExecuteOnHost() bool { return t.HostExecutable }

func (t *ExecToolchain) Run(ctx context.Context, p Probe) (Result, error) {
	compiler := t.CCompiler
	ext := ".c"
	if p.CPP {
		compiler = t.CXXCompiler
		ext = ".cpp"
	}

	if err := os.MkdirAll(p.Dir, 0755); err != nil {
		return Result{}, err
	}
	srcPath := filepath.Join(p.Dir, "probe"+ext)
	if err := os.WriteFile(srcPath, []byte(p.Source), 0644); err != nil {
		return Result{}, err
	}
	outPath := filepath.Join(p.Dir, "probe.out")
	if !p.NeedsLink {
		outPath = filepath.Join(p.Dir, "probe.o")
	}

	args := []string{srcPath, "-o", outPath}
	if !p.NeedsLink {
		args = append(args, "-c")
	}
	for _, d := range p.IncludeDirs {
		args = append(args, "-I"+d)
	}
	for k, v := range p.Defines {
		if v == "" {
			args = append(args, "-D"+k)
		} else {
			args = append(args, fmt.Sprintf("-D%s=%s", k, v))
		}
	}
	args = append(args, p.Options...)
	for _, l := range p.Libraries {
		args = append(args, "-l"+l)
	}

	cmd := procexec.Command(ctx, compiler, args...)
	cmd.SetDir(p.Dir)
	if _, err := cmd.CombinedOutput(); err != nil {
		return Result{BuildOK: false}, nil
	}

	res := Result{BuildOK: true, CanExecuteOnHost: t.CanExecuteOnHost(), ExecutablePath: outPath}
	if !p.NeedsRun {
		return res, nil
	}
	if !t.CanExecuteOnHost() {
		return res, nil
	}

	run := procexec.Command(ctx, outPath)
	run.SetDir(p.Dir)
	_, err := run.CombinedOutput()
	res.ExitCode = exitCodeOf(err)
	return res, nil
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}
