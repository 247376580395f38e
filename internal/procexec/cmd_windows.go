// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package procexec

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {
	// Process groups are a POSIX notion; Windows cancellation goes straight
	// to Kill below.
}

func interruptProcess(p *os.Process) error {
	// os.Interrupt is not implemented on Windows; go straight to Kill so the
	// caller's graceful-then-forceful protocol collapses to just forceful.
	return p.Kill()
}
