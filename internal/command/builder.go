// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/nativepkg/nativepkg/internal/target"
	"github.com/pkg/errors"
)

// Builder translates a target's sources and effective options into
// Commands.
type Builder struct {
	Registry              *Registry
	ObjDir                string
	RspDir                string
	ResponseFileThreshold int
}

// NewBuilder returns a Builder backed by reg.
func NewBuilder(reg *Registry) *Builder {
	return &Builder{Registry: reg, ObjDir: "obj", ResponseFileThreshold: 8000}
}

// BuildTarget constructs every compile command for t's non-generated
// sources, the final link/archive command, and binds the resulting object
// paths onto t.Objects for the selected linker or librarian. Generated
// sources (SourceFile.Generator != "") are
// not compiled here; the caller is expected to have already added their
// generator Command to the plan as a separate input-producing step.
func (b *Builder) BuildTarget(t *target.Target) ([]*Command, error) {
	var cmds []*Command
	var objects []string

	names := make([]string, 0, len(t.Sources))
	for name := range t.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sf := t.Sources[name]
		if sf.Generator != "" {
			continue
		}
		tool, err := b.Registry.Lookup(sf.Path, sf.Tool)
		if err != nil {
			return nil, errors.Wrapf(err, "command: building %s", t.Name)
		}

		objPath := filepath.Join(b.ObjDir, t.Name, objectName(sf.Path))
		cmd, err := tool.PrepareCompile(SourceInput{
			Path:               sf.Path,
			IncludeDirectories: t.Effective.IncludeDirectories,
			Definitions:        t.Effective.Definitions,
			CompileOptions:     append(t.Effective.CompileOptions, extraForLanguage(sf.Language)...),
			OutputPath:         objPath,
			WorkDir:            t.RootDir,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "command: compiling %s", sf.Path)
		}
		cmd.ResponseFileThreshold = b.ResponseFileThreshold
		cmd.RspDir = b.RspDir
		cmds = append(cmds, cmd)
		objects = append(objects, objPath)
	}

	t.Objects = objects

	linkTool, err := b.linkToolFor(t)
	if err != nil {
		return nil, err
	}
	linkCmd, err := linkTool.PrepareLink(LinkInput{
		Objects:            objects,
		LinkLibraries:      t.Effective.LinkLibraries,
		LinkDirectories:    t.Effective.LinkDirectories,
		OutputPath:         t.OutputPath,
		ImportLibraryPath:  t.ImportLibraryPath,
		WorkDir:            t.RootDir,
		CircularUnresolved: t.Circular,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "command: linking %s", t.Name)
	}
	for _, cmd := range cmds {
		linkCmd.Dependencies = append(linkCmd.Dependencies, cmd.Name)
	}
	linkCmd.ResponseFileThreshold = b.ResponseFileThreshold
	linkCmd.RspDir = b.RspDir
	cmds = append(cmds, linkCmd)

	return cmds, nil
}

func (b *Builder) linkToolFor(t *target.Target) (Tool, error) {
	if t.Kind == target.StaticLibrary {
		return b.Registry.Lookup("", ".a")
	}
	return b.Registry.Lookup("", ".link")
}

func extraForLanguage(lang string) []string {
	if lang == "" {
		return nil
	}
	return []string{"-x", strings.ToLower(lang)}
}

func objectName(srcPath string) string {
	base := filepath.Base(srcPath)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + ".o"
}
