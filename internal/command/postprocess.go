// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import (
	"bufio"
	"bytes"
	"os"
	"strings"

	"github.com/pkg/errors"
)

const msvcIncludePrefix = "Note: including file:"

// ParseMSVCIncludes strips MSVC's "Note: including file:" lines from
// output and returns the paths they named, in order, together with the
// remaining output. It records nothing itself; storing the paths as
// implicit dependencies is up to the caller.
func ParseMSVCIncludes(output []byte) (implicit []string, cleaned []byte) {
	var out bytes.Buffer
	sc := bufio.NewScanner(bytes.NewReader(output))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if idx := strings.Index(line, msvcIncludePrefix); idx >= 0 {
			path := strings.TrimSpace(line[idx+len(msvcIncludePrefix):])
			if path != "" {
				implicit = append(implicit, path)
			}
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return implicit, out.Bytes()
}

// ParseGCCDepFile parses a GCC/Clang-style .d make-dependency file and
// returns the prerequisite paths (everything after the first target's
// colon): GCC-style compilers emit a .d make-dependency file
// whose targets are parsed into implicit dependencies.
func ParseGCCDepFile(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "command: reading dep file %s", path)
	}
	return parseGCCDepContent(b), nil
}

func parseGCCDepContent(b []byte) []string {
	// Backslash-newline continuations join the whole rule onto one
	// logical line before splitting on whitespace.
	joined := strings.ReplaceAll(string(b), "\\\n", " ")

	colon := strings.Index(joined, ":")
	if colon < 0 {
		return nil
	}
	rest := joined[colon+1:]

	fields := strings.Fields(rest)
	seen := make(map[string]bool, len(fields))
	var deps []string
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		deps = append(deps, f)
	}
	return deps
}
