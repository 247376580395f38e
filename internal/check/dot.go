// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package check

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio"
	"github.com/pkg/errors"
)

// writeCycleDOT renders the unresolved portion of the dependency graph
// (keyed by each check's primary definition) as a Graphviz file, for a
// human to diagnose a cyclic check set.
func writeCycleDOT(dir string, deps map[uint64][]uint64, byHash map[uint64]*Check) error {
	labels := make(map[uint64]string, len(byHash))
	for h, c := range byHash {
		labels[h] = c.PrimaryDefinition()
	}

	hashes := make([]uint64, 0, len(deps))
	for h := range deps {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	var b strings.Builder
	b.WriteString("digraph G {\n")
	for _, h := range hashes {
		if _, ok := byHash[h]; !ok {
			continue
		}
		for _, d := range deps[h] {
			if _, ok := byHash[d]; !ok {
				continue
			}
			fmt.Fprintf(&b, "\t%q -> %q;\n", labels[h], labels[d])
		}
	}
	b.WriteString("}\n")

	path := filepath.Join(dir, "deps_checks.dot")
	return errors.Wrapf(renameio.WriteFile(path, []byte(b.String()), 0644), "check: writing %s", path)
}
