// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !windows

package procexec

import (
	"os"
	"os/exec"
	"syscall"
)

// setProcessGroup puts the subprocess in its own process group so a signal
// sent to this process's group (e.g. a terminal Ctrl-C) doesn't also land on
// every spawned compiler/VCS client; we manage their lifetime ourselves.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}
}

func interruptProcess(p *os.Process) error {
	return p.Signal(os.Interrupt)
}
