// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command sw-internal is the jumppad entry point for built-in
// sub-command protocol: re-exec'd with a leading argument
// `internal-call-builtin-function <module> <name> <version> <args…>`, it
// dispatches to the named built-in function with the remaining arguments
// decoded position-by-position, variable-arity arguments consuming a
// leading length prefix.
//
// Loading the named <module> itself - resolving a package's compiled
// build-description plugin from disk - is out of scope here; this binary
// only ever dispatches to built-ins registered in-process by the driver
// that exec's it (see internal/command.RegisterBuiltin).
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/nativepkg/nativepkg/internal/command"
)

const builtinCallArg = "internal-call-builtin-function"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 || args[0] != builtinCallArg {
		fmt.Fprintln(os.Stderr, "sw-internal: expected leading argument", builtinCallArg)
		return 2
	}
	args = args[1:]
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "sw-internal: usage:", builtinCallArg, "<module> <name> <version> <args…>")
		return 2
	}

	module, name, version := args[0], args[1], args[2]
	rest := args[3:]

	if _, err := strconv.Atoi(version); err != nil {
		fmt.Fprintf(os.Stderr, "sw-internal: bad version %q: %v\n", version, err)
		return 2
	}

	// module is accepted but unused: loading a package's own build
	// description module is the out-of-scope dynamic loader's job. A
	// driver that has already loaded module and registered its builtins
	// (via command.RegisterBuiltin) under name is assumed to have exec'd
	// this binary.
	_ = module

	if err := command.RunBuiltin(name, rest); err != nil {
		fmt.Fprintf(os.Stderr, "sw-internal: %s: %v\n", name, err)
		return 1
	}
	return 0
}
