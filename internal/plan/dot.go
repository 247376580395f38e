// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package plan

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio"
	"github.com/nativepkg/nativepkg/internal/command"
	"github.com/pkg/errors"
)

// writeCycleDOT renders the commands that never reached zero indegree
// (the cyclic remainder) as a Graphviz file, mirroring check.writeCycleDOT
// for the command DAG.
func writeCycleDOT(dir string, cmds []*command.Command, indegree map[string]int) error {
	var names []string
	for name, deg := range indegree {
		if deg > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	inCycle := make(map[string]bool, len(names))
	for _, n := range names {
		inCycle[n] = true
	}

	byName := make(map[string]*command.Command, len(cmds))
	for _, c := range cmds {
		byName[c.Name] = c
	}

	var b strings.Builder
	b.WriteString("digraph G {\n")
	for _, name := range names {
		c := byName[name]
		for _, dep := range c.Dependencies {
			if inCycle[dep] {
				fmt.Fprintf(&b, "\t%q -> %q;\n", name, dep)
			}
		}
	}
	b.WriteString("}\n")

	path := filepath.Join(dir, "deps_cycle.dot")
	return errors.Wrapf(renameio.WriteFile(path, []byte(b.String()), 0644), "plan: writing %s", path)
}
