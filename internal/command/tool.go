// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import (
	"path/filepath"
	"strings"

	"github.com/nativepkg/nativepkg/internal/procexec"
	"github.com/pkg/errors"
)

// ToolKind is the small enum DESIGN NOTES calls for: a single Tool
// interface replaces the deep MSVC/Clang/GNU inheritance hierarchy, with a
// ToolKind used only where a caller must branch on it (e.g. import-library
// handling, which only shared-library-capable toolchains produce).
type ToolKind int

const (
	ToolCCompiler ToolKind = iota
	ToolCXXCompiler
	ToolStaticLibrarian
	ToolLinker
)

// SourceInput is what a Tool needs to build one source file's Command.
type SourceInput struct {
	Path               string
	IncludeDirectories []string
	Definitions        []string
	CompileOptions     []string
	OutputPath         string
	WorkDir            string
}

// LinkInput is what a Tool needs to build a target's final link/archive
// Command.
type LinkInput struct {
	Objects         []string
	LinkLibraries   []string
	LinkDirectories []string
	OutputPath      string
	ImportLibraryPath string
	WorkDir         string
	CircularUnresolved bool // the circular-link alternate: allow unresolved symbols
}

// Tool is the single interface every compiler/librarian/linker
// implements; callers branch on Kind only where behavior genuinely
// diverges (e.g. import-library handling).
type Tool interface {
	Kind() ToolKind
	PrepareCompile(in SourceInput) (*Command, error)
	PrepareLink(in LinkInput) (*Command, error)
	Clone() Tool
	GetCommand() string
	GetVersion(ctx toolVersionContext) (string, error)
}

// toolVersionContext is the minimal context GetVersion needs; defined as
// an interface (rather than importing context.Context by name here) so
// Tool stays usable from tests with a trivial fake.
type toolVersionContext interface {
	Done() <-chan struct{}
}

// Registry maps file extensions to the Tool that compiles them, per
// the builder selects a tool from the solution's program registry,
// keyed by file extension.
type Registry struct {
	byExt map[string]Tool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byExt: map[string]Tool{}}
}

// Register binds ext (e.g. ".c", ".cpp") to t.
func (r *Registry) Register(ext string, t Tool) {
	r.byExt[strings.ToLower(ext)] = t
}

// Lookup returns the Tool registered for path's extension, or override if
// non-empty (a source file's per-file tool override).
func (r *Registry) Lookup(path, override string) (Tool, error) {
	if override != "" {
		if t, ok := r.byExt[strings.ToLower(override)]; ok {
			return t, nil
		}
		return nil, errors.Errorf("command: no tool registered for override %q", override)
	}
	ext := strings.ToLower(filepath.Ext(path))
	t, ok := r.byExt[ext]
	if !ok {
		return nil, errors.Errorf("command: no tool registered for extension %q (file %s)", ext, path)
	}
	return t, nil
}

// GCCLikeTool is a Tool backed by a gcc/clang-compatible driver. It only
// builds Commands; the plan's scheduler runs them through procexec.
// ArchiverTool is the only other Tool in this package.
type GCCLikeTool struct {
	Program string
	K       ToolKind
	CPP     bool
}

func (g *GCCLikeTool) Kind() ToolKind { return g.K }
func (g *GCCLikeTool) Clone() Tool    { cp := *g; return &cp }
func (g *GCCLikeTool) GetCommand() string { return g.Program }

func (g *GCCLikeTool) GetVersion(ctx toolVersionContext) (string, error) {
	return g.Program, nil
}

func (g *GCCLikeTool) PrepareCompile(in SourceInput) (*Command, error) {
	args := []Arg{InputFile(in.Path), Str("-c")}
	for _, d := range in.IncludeDirectories {
		args = append(args, Str("-I"+d))
	}
	for _, d := range in.Definitions {
		args = append(args, Str("-D"+d))
	}
	args = append(args, stringsToArgs(in.CompileOptions)...)
	args = append(args, Str("-MMD"), Str("-MF"), OutputFile(depFilePath(in.OutputPath)))
	args = append(args, Str("-o"), OutputFile(in.OutputPath))

	return &Command{
		Name:          "compile:" + in.Path,
		Kind:          KindGNU,
		Program:       g.Program,
		Args:          args,
		Dir:           in.WorkDir,
		Inputs:        []string{in.Path},
		Outputs:       []string{in.OutputPath},
		Intermediates: []string{depFilePath(in.OutputPath)},
	}, nil
}

func depFilePath(objPath string) string {
	return strings.TrimSuffix(objPath, filepath.Ext(objPath)) + ".d"
}

func (g *GCCLikeTool) PrepareLink(in LinkInput) (*Command, error) {
	var args []Arg
	for _, o := range in.Objects {
		args = append(args, InputFile(o))
	}
	for _, d := range in.LinkDirectories {
		args = append(args, Str("-L"+d))
	}
	for _, l := range in.LinkLibraries {
		args = append(args, Str("-l"+l))
	}
	if in.CircularUnresolved {
		args = append(args, Str("-Wl,--allow-shlib-undefined"), Str("-Wl,-z,undefs"))
	}
	args = append(args, Str("-o"), OutputFile(in.OutputPath))

	return &Command{
		Name:    "link:" + in.OutputPath,
		Kind:    KindGNU,
		Program: g.Program,
		Args:    args,
		Dir:     in.WorkDir,
		Inputs:  append([]string(nil), in.Objects...),
		Outputs: []string{in.OutputPath},
	}, nil
}

func stringsToArgs(ss []string) []Arg {
	out := make([]Arg, 0, len(ss))
	for _, s := range ss {
		out = append(out, Str(s))
	}
	return out
}

// ArchiverTool builds static libraries (the librarian).
type ArchiverTool struct {
	Program string
}

func (a *ArchiverTool) Kind() ToolKind     { return ToolStaticLibrarian }
func (a *ArchiverTool) Clone() Tool        { cp := *a; return &cp }
func (a *ArchiverTool) GetCommand() string { return a.Program }
func (a *ArchiverTool) GetVersion(ctx toolVersionContext) (string, error) { return a.Program, nil }

func (a *ArchiverTool) PrepareCompile(in SourceInput) (*Command, error) {
	return nil, errors.New("command: ArchiverTool cannot compile sources")
}

func (a *ArchiverTool) PrepareLink(in LinkInput) (*Command, error) {
	args := []Arg{Str("rcs"), OutputFile(in.OutputPath)}
	for _, o := range in.Objects {
		args = append(args, InputFile(o))
	}
	return &Command{
		Name:    "archive:" + in.OutputPath,
		Kind:    KindGeneric,
		Program: a.Program,
		Args:    args,
		Dir:     in.WorkDir,
		Inputs:  append([]string(nil), in.Objects...),
		Outputs: []string{in.OutputPath},
	}, nil
}

// runCommand aliases procexec.Command for invoking a tool outside the
// plan. Nothing in this package calls it: GetVersion does not spawn a
// process, and compiles/links always go through the plan's scheduler.
var runCommand = procexec.Command
