// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package procexec spawns external processes (VCS clients, compilers,
// linkers, probe binaries) with context-aware, gentle-then-forceful
// cancellation. Every subprocess launched anywhere in this module - source
// downloads, check-engine probes, compile/link commands - goes through
// this package so cancellation behaves uniformly.
package procexec

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/pkg/errors"
)

// Cmd wraps an *exec.Cmd with a context used only to decide how to react
// when the caller gives up: a graceful interrupt is attempted first, and a
// hard kill follows if the process hasn't exited within gracePeriod.
type Cmd struct {
	Cmd *exec.Cmd

	ctx          context.Context
	cancel       context.CancelFunc
	gracePeriod  time.Duration
}

const defaultGracePeriod = time.Minute

// Command builds a Cmd for name/arg that will be interrupted (and, failing
// that, killed) when ctx is done.
func Command(ctx context.Context, name string, arg ...string) *Cmd {
	// A process can outlive ctx briefly while it's being asked nicely to
	// exit, so exec.CommandContext is driven by an internal context that is
	// only canceled once we've given up on a graceful shutdown.
	innerCtx, cancel := context.WithCancel(context.Background())

	c := &Cmd{
		Cmd:         exec.CommandContext(innerCtx, name, arg...),
		ctx:         ctx,
		cancel:      cancel,
		gracePeriod: defaultGracePeriod,
	}
	setProcessGroup(c.Cmd)
	return c
}

// SetDir sets the working directory of the command.
func (c *Cmd) SetDir(dir string) { c.Cmd.Dir = dir }

// SetEnv sets the environment of the command.
func (c *Cmd) SetEnv(env []string) { c.Cmd.Env = env }

// Args returns the command's argument vector, including argv[0].
func (c *Cmd) Args() []string { return c.Cmd.Args }

// CombinedOutput runs the command to completion and returns its combined
// stdout+stderr. It mirrors (*os/exec.Cmd).CombinedOutput, except that
// cancellation of the context passed to Command first asks the process to
// exit (via interruptProcess) and only resorts to Kill after gracePeriod.
func (c *Cmd) CombinedOutput() ([]byte, error) {
	if c.Cmd.Stdout != nil {
		return nil, errors.New("procexec: Stdout already set")
	}
	if c.Cmd.Stderr != nil {
		return nil, errors.New("procexec: Stderr already set")
	}
	var buf bytes.Buffer
	c.Cmd.Stdout = &buf
	c.Cmd.Stderr = &buf

	if err := c.Cmd.Start(); err != nil {
		return nil, err
	}

	waitDone := make(chan struct{})
	defer close(waitDone)
	go func() {
		select {
		case <-c.ctx.Done():
			if err := interruptProcess(c.Cmd.Process); err != nil {
				c.cancel()
				return
			}
			stop := time.AfterFunc(c.gracePeriod, c.cancel)
			<-waitDone
			stop.Stop()
		case <-waitDone:
		}
	}()

	if err := c.Cmd.Wait(); err != nil {
		return buf.Bytes(), err
	}
	return buf.Bytes(), nil
}

// Run runs the command to completion, discarding output but honoring the
// same cancellation protocol as CombinedOutput.
func (c *Cmd) Run() error {
	_, err := c.CombinedOutput()
	return err
}

// Output runs the command through CombinedOutput and returns the same
// interleaved stdout+stderr stream; stderr is not separated from stdout.
func (c *Cmd) Output() ([]byte, error) {
	if c.Cmd.Stdout != nil {
		return nil, errors.New("procexec: Stdout already set")
	}
	c.Cmd.Stderr = nil
	return c.CombinedOutput()
}
