// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"context"
	"os"
	"path/filepath"

	"github.com/nativepkg/nativepkg/internal/procexec"
	"github.com/pkg/errors"
)

// fossilRepo is the other hand-rolled ctxRepo driver, alongside cvsRepo: a
// Fossil checkout is a SQLite repository file plus an "open" working copy,
// so get/fetch/updateTo map onto fossil clone/pull/update rather than the
// single-command shape the other drivers use.
type fossilRepo struct {
	descriptor Descriptor
	path       string
}

func (f *fossilRepo) repoFile() string {
	return filepath.Join(filepath.Dir(f.path), filepath.Base(f.path)+".fossil")
}

func (f *fossilRepo) get(ctx context.Context) error {
	if err := os.MkdirAll(f.path, 0755); err != nil {
		return errors.Wrapf(err, "source: creating %s", f.path)
	}
	clone := procexec.Command(ctx, "fossil", "clone", f.descriptor.URL, f.repoFile())
	if out, err := clone.CombinedOutput(); err != nil {
		return errors.Wrapf(err, "source: fossil clone failed: %s", out)
	}
	open := procexec.Command(ctx, "fossil", "open", f.repoFile())
	open.SetDir(f.path)
	if out, err := open.CombinedOutput(); err != nil {
		return errors.Wrapf(err, "source: fossil open failed: %s", out)
	}
	return nil
}

func (f *fossilRepo) fetch(ctx context.Context) error {
	cmd := procexec.Command(ctx, "fossil", "pull")
	cmd.SetDir(f.path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(err, "source: fossil pull failed: %s", out)
	}
	return nil
}

func (f *fossilRepo) updateTo(ctx context.Context, sel Selector) error {
	args := []string{"update"}
	if target := sel.String(); target != "" {
		args = append(args, target)
	}
	cmd := procexec.Command(ctx, "fossil", args...)
	cmd.SetDir(f.path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(err, "source: fossil update failed: %s", out)
	}
	return nil
}

func downloadFossil(ctx context.Context, d Descriptor, dir string) error {
	r := &fossilRepo{descriptor: d, path: dir}
	if _, err := os.Stat(r.repoFile()); err != nil {
		if err := r.get(ctx); err != nil {
			return err
		}
	} else if err := r.fetch(ctx); err != nil {
		return err
	}
	return r.updateTo(ctx, d.Selector)
}
