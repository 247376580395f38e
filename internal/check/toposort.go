// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package check

import "sort"

// topoSort layers nodes into execution waves: every node in wave N has had
// every dependency edge into it (restricted to deps also present in
// nodes - already-cached checks don't block anything) satisfied by waves
// 0..N-1. Returns an error if nodes contains a cycle.
func topoSort(nodes map[uint64]*Check, deps map[uint64][]uint64) ([][]uint64, error) {
	indegree := make(map[uint64]int, len(nodes))
	children := make(map[uint64][]uint64, len(nodes))
	for h := range nodes {
		indegree[h] = 0
	}
	for h := range nodes {
		for _, d := range deps[h] {
			if _, ok := nodes[d]; !ok {
				continue
			}
			indegree[h]++
			children[d] = append(children[d], h)
		}
	}

	var layers [][]uint64
	var current []uint64
	for h, deg := range indegree {
		if deg == 0 {
			current = append(current, h)
		}
	}
	remaining := len(nodes)

	for len(current) > 0 {
		sort.Slice(current, func(i, j int) bool { return current[i] < current[j] })
		layers = append(layers, current)
		remaining -= len(current)

		var next []uint64
		for _, h := range current {
			for _, dependent := range children[h] {
				indegree[dependent]--
				if indegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		current = next
	}

	if remaining > 0 {
		return nil, errCyclicCheckDependencies
	}
	return layers, nil
}
