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

// Shell is the scripting dialect a manual-check run-script is written in,
// chosen by the target OS the checks are meant to run on.
type Shell int

const (
	ShellPOSIX Shell = iota
	ShellBatch
)

// ManualScript writes the run script for the manual checks into
// stagingDir. It does not copy any executable: each check's binary must
// already be staged there as "<hash><execExt>", which is the name the
// script runs. sidecarName is the manual cache file's base name (the
// "checks.3.txt.manual.txt" this run appends to once executed elsewhere).
func ManualScript(stagingDir string, shell Shell, execExt, shellExt, sidecarName string, manual []*Check) (string, error) {
	sort.Slice(manual, func(i, j int) bool { return manual[i].Hash() < manual[j].Hash() })

	bat := shell == ShellBatch
	var b strings.Builder
	if !bat {
		b.WriteString("#!/bin/sh\n\n")
	}
	fmt.Fprintf(&b, "echo \"\" > %s\n\n", sidecarName)

	for _, c := range manual {
		h := c.Hash()
		defs := strings.Join(c.Definitions, " ")

		if bat {
			b.WriteString(":: " + defs + "\n")
		} else {
			b.WriteString("# " + defs + "\n")
		}
		fmt.Fprintf(&b, "echo \"Checking: %s... \"\n", defs)
		fmt.Fprintf(&b, "echo \"# %s\" >> %s\n", defs, sidecarName)
		if !bat {
			b.WriteString("./")
		}
		fmt.Fprintf(&b, "%d%s\n", h, execExt)
		fmt.Fprintf(&b, "echo %d ", h)
		if bat {
			b.WriteString("%errorlevel% ")
		} else {
			b.WriteString("$? ")
		}
		fmt.Fprintf(&b, ">> %s\n", sidecarName)
		if !bat {
			b.WriteString("echo ok\n")
		}
		fmt.Fprintf(&b, "echo \"\" >> %s\n\n", sidecarName)
	}

	scriptPath := filepath.Join(stagingDir, "run"+shellExt)
	if err := renameio.WriteFile(scriptPath, []byte(b.String()), 0755); err != nil {
		return "", errors.Wrapf(err, "check: writing %s", scriptPath)
	}
	return scriptPath, nil
}
