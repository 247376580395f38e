// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package target

// markCircular is pass 4: find circular link dependencies among sibling
// targets. Only fully linked edges between natively linked artifacts
// (executables and shared libraries) can form a link cycle; static
// libraries are archived, not linked, and headers-only edges carry no
// link input. Every member of a non-trivial strongly connected component
// is marked Circular, which switches its link to the allow-unresolved
// alternate and makes its partner consume the import library that link
// produces.
func (a *Arena) markCircular() {
	n := len(a.targets)
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var stack []int
	next := 0

	linkEdge := func(from, to int, idirs bool) bool {
		if idirs {
			return false
		}
		if a.targets[from].Kind == StaticLibrary || a.targets[to].Kind == StaticLibrary {
			return false
		}
		return true
	}

	var strongconnect func(v int)
	strongconnect = func(v int) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range sortedKeys(a.targets[v].effectiveDeps) {
			if !linkEdge(v, w, a.targets[v].effectiveDeps[w]) {
				continue
			}
			if index[w] == -1 {
				strongconnect(w)
				if low[w] < low[v] {
					low[v] = low[w]
				}
			} else if onStack[w] {
				if index[w] < low[v] {
					low[v] = index[w]
				}
			}
		}

		if low[v] == index[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			if len(scc) > 1 {
				for _, w := range scc {
					a.targets[w].Circular = true
				}
			}
		}
	}

	for v := 0; v < n; v++ {
		if index[v] == -1 {
			strongconnect(v)
		}
	}
}
