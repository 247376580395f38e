// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package plan

import (
	"context"
	"os"
	"sync"

	"github.com/nativepkg/nativepkg/internal/command"
	"github.com/nativepkg/nativepkg/internal/fingerprint"
	"github.com/nativepkg/nativepkg/internal/procexec"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Outcome records what happened to one command during Execute.
type Outcome struct {
	Status Status
	Err    error
}

// ExecuteResult is Execute's summary: every command's outcome, keyed by
// name, plus whether the whole plan failed.
type ExecuteResult struct {
	Outcomes map[string]*Outcome
	Failed   bool
}

// Execute dispatches the plan's commands wave by wave (each wave is every
// command whose dependencies are all in earlier waves, per Build), with
// up to pool commands running concurrently within a wave - the same
// dependency-respecting-waves discipline check.Checker.PerformChecks uses
// for probe execution: commands run in parallel subject to their
// dependency DAG. fp, if non-nil, is consulted for staleness
// before running each command and updated with a fresh fingerprint after
// it succeeds. resolve supplies values for any Deferred command args.
func (p *Plan) Execute(ctx context.Context, fp *fingerprint.DB, resolve command.Resolver, pool int) (*ExecuteResult, error) {
	if p.order == nil {
		return nil, errors.New("plan: Execute called before Build")
	}
	if pool <= 0 {
		pool = 1
	}

	res := &ExecuteResult{Outcomes: make(map[string]*Outcome, len(p.Commands))}
	var mu sync.Mutex
	skipped := map[string]bool{}

	for _, wave := range p.waves {
		if res.Failed && p.StopOnFirstError {
			for _, name := range wave {
				res.Outcomes[name] = &Outcome{Status: StatusSkippedFailedDep}
			}
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(pool)

		for _, name := range wave {
			name := name
			c := p.byName[name]

			mu.Lock()
			depFailed := false
			for _, dep := range c.Dependencies {
				if skipped[dep] {
					depFailed = true
					break
				}
			}
			mu.Unlock()

			if depFailed {
				mu.Lock()
				res.Outcomes[name] = &Outcome{Status: StatusSkippedFailedDep}
				res.Failed = true
				skipped[name] = true
				mu.Unlock()
				continue
			}

			g.Go(func() error {
				outcome := p.runOne(gctx, c, fp, resolve)
				mu.Lock()
				res.Outcomes[name] = outcome
				if outcome.Status == StatusFailed {
					res.Failed = true
					skipped[name] = true
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		if res.Failed && p.MaxFailures > 0 && failureCount(res) >= p.MaxFailures {
			break
		}
	}

	return res, nil
}

func failureCount(res *ExecuteResult) int {
	n := 0
	for _, o := range res.Outcomes {
		if o.Status == StatusFailed {
			n++
		}
	}
	return n
}

// runOne runs a single command, after checking staleness against fp.
func (p *Plan) runOne(ctx context.Context, c *command.Command, fp *fingerprint.DB, resolve command.Resolver) *Outcome {
	if fp != nil {
		stale, err := commandStale(fp, c)
		if err == nil && !stale {
			return &Outcome{Status: StatusSkippedStale}
		}
	}

	if err := c.Prepare(resolve); err != nil {
		return &Outcome{Status: StatusFailed, Err: err}
	}

	cmd := procexec.Command(ctx, c.Program, c.ResolvedArgs()...)
	if c.Dir != "" {
		cmd.SetDir(c.Dir)
	}
	if len(c.Env) > 0 {
		cmd.SetEnv(append(os.Environ(), c.Env...))
	}

	if _, err := cmd.CombinedOutput(); err != nil {
		return &Outcome{Status: StatusFailed, Err: errors.Wrapf(err, "plan: command %s failed", c.Name)}
	}

	if fp != nil {
		for _, out := range c.Outputs {
			if _, err := os.Stat(out); err != nil {
				// The tool exited 0 without producing this output; leave
				// it unrecorded so the next run sees the command stale.
				continue
			}
			if err := fp.Update(out, c.Name, nil); err != nil {
				return &Outcome{Status: StatusFailed, Err: err}
			}
		}
	}
	return &Outcome{Status: StatusDone}
}

// commandStale implements the staleness check: a command may be
// skipped only if every input's fingerprint matches its recorded one and
// every output exists with a matching fingerprint.
func commandStale(fp *fingerprint.DB, c *command.Command) (bool, error) {
	for _, in := range c.Inputs {
		stale, err := fp.Stale(in)
		if err != nil {
			return true, err
		}
		if stale {
			return true, nil
		}
	}
	for _, out := range c.Outputs {
		if _, err := os.Stat(out); err != nil {
			return true, nil
		}
		stale, err := fp.Stale(out)
		if err != nil {
			return true, err
		}
		if stale {
			return true, nil
		}
	}
	return false, nil
}
