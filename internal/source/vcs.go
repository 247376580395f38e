// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"context"
	"os"

	"github.com/Masterminds/vcs"
	"github.com/nativepkg/nativepkg/internal/procexec"
	"github.com/pkg/errors"
)

// ctxRepo is the common operation set every VCS driver below implements:
// clone-or-initialize, fetch new history, and move the working copy to a
// selector. Masterminds/vcs supplies the Git/Hg/Bzr/Svn implementations;
// the two VCS kinds it doesn't cover (Cvs, Fossil) get hand-rolled
// drivers with the same shape.
type ctxRepo interface {
	get(ctx context.Context) error
	fetch(ctx context.Context) error
	updateTo(ctx context.Context, sel Selector) error
}

func newCtxRepo(kind Kind, d Descriptor, path string) (ctxRepo, error) {
	switch kind {
	case Git:
		r, err := vcs.NewGitRepo(d.URL, path)
		if err != nil {
			return nil, err
		}
		return &gitRepo{r}, nil
	case Hg:
		r, err := vcs.NewHgRepo(d.URL, path)
		if err != nil {
			return nil, err
		}
		return &hgRepo{r}, nil
	case Bzr:
		r, err := vcs.NewBzrRepo(d.URL, path)
		if err != nil {
			return nil, err
		}
		return &bzrRepo{r}, nil
	case Svn:
		r, err := vcs.NewSvnRepo(d.URL, path)
		if err != nil {
			return nil, err
		}
		return &svnRepo{r}, nil
	case Cvs:
		return &cvsRepo{descriptor: d, path: path}, nil
	case Fossil:
		return &fossilRepo{descriptor: d, path: path}, nil
	default:
		return nil, errors.Errorf("source: %v is not a version-control kind", kind)
	}
}

// freshCtxRepo behaves like newCtxRepo, but if the VCS library reports the
// local checkout is in a broken state it removes the directory and starts
// over. A half-written checkout is worth less than the re-clone costs.
func freshCtxRepo(kind Kind, d Descriptor, path string) (ctxRepo, error) {
	r, err := newCtxRepo(kind, d, path)
	if err != nil {
		os.RemoveAll(path)
		r, err = newCtxRepo(kind, d, path)
	}
	return r, err
}

func newVcsRemoteErrorOr(ctx context.Context, msg string, err error, out string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return vcs.NewRemoteError(msg, err, out)
}

func newVcsLocalErrorOr(ctx context.Context, msg string, err error, out string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return vcs.NewLocalError(msg, err, out)
}

type gitRepo struct{ r *vcs.GitRepo }

func (g *gitRepo) get(ctx context.Context) error {
	cmd := procexec.Command(ctx, "git", "clone", "--recursive", "-v", "--progress", g.r.Remote(), g.r.LocalPath())
	if out, err := cmd.CombinedOutput(); err != nil {
		return newVcsRemoteErrorOr(ctx, "unable to get repository", errors.Wrapf(err, "command failed: %v", cmd.Args()), string(out))
	}
	return nil
}

func (g *gitRepo) fetch(ctx context.Context) error {
	cmd := procexec.Command(ctx, "git", "fetch", "--tags", "--prune", g.r.Remote())
	cmd.SetDir(g.r.LocalPath())
	if out, err := cmd.CombinedOutput(); err != nil {
		return newVcsRemoteErrorOr(ctx, "unable to update repository", errors.Wrapf(err, "command failed: %v", cmd.Args()), string(out))
	}
	return nil
}

func (g *gitRepo) updateTo(ctx context.Context, sel Selector) error {
	target := sel.String()
	if target == "" {
		target = "HEAD"
	}
	cmd := procexec.Command(ctx, "git", "checkout", target)
	cmd.SetDir(g.r.LocalPath())
	if out, err := cmd.CombinedOutput(); err != nil {
		return newVcsLocalErrorOr(ctx, "unable to update checked out version", errors.Wrapf(err, "command failed: %v", cmd.Args()), string(out))
	}
	return g.defendAgainstSubmodules(ctx)
}

// defendAgainstSubmodules keeps repo state sane in the presence of
// submodules (or nested submodules) across a checkout switch.
func (g *gitRepo) defendAgainstSubmodules(ctx context.Context) error {
	steps := [][]string{
		{"submodule", "update", "--init", "--recursive"},
		{"clean", "-x", "-d", "-f", "-f"},
		{"submodule", "foreach", "--recursive", "git", "clean", "-x", "-d", "-f", "-f"},
	}
	for _, args := range steps {
		cmd := procexec.Command(ctx, "git", args...)
		cmd.SetDir(g.r.LocalPath())
		if out, err := cmd.CombinedOutput(); err != nil {
			return newVcsLocalErrorOr(ctx, "unexpected error while defensively cleaning up submodules", errors.Wrapf(err, "command failed: %v", cmd.Args()), string(out))
		}
	}
	return nil
}

type hgRepo struct{ r *vcs.HgRepo }

func (h *hgRepo) get(ctx context.Context) error {
	cmd := procexec.Command(ctx, "hg", "clone", h.r.Remote(), h.r.LocalPath())
	if out, err := cmd.CombinedOutput(); err != nil {
		return newVcsRemoteErrorOr(ctx, "unable to get repository", errors.Wrapf(err, "command failed: %v", cmd.Args()), string(out))
	}
	return nil
}

func (h *hgRepo) fetch(ctx context.Context) error {
	cmd := procexec.Command(ctx, "hg", "pull")
	cmd.SetDir(h.r.LocalPath())
	if out, err := cmd.CombinedOutput(); err != nil {
		return newVcsRemoteErrorOr(ctx, "unable to fetch latest changes", errors.Wrapf(err, "command failed: %v", cmd.Args()), string(out))
	}
	return nil
}

func (h *hgRepo) updateTo(ctx context.Context, sel Selector) error {
	target := sel.String()
	if target == "" {
		target = "tip"
	}
	cmd := procexec.Command(ctx, "hg", "update", target)
	cmd.SetDir(h.r.LocalPath())
	if out, err := cmd.CombinedOutput(); err != nil {
		return newVcsRemoteErrorOr(ctx, "unable to update checked out version", errors.Wrapf(err, "command failed: %v", cmd.Args()), string(out))
	}
	return nil
}

type bzrRepo struct{ r *vcs.BzrRepo }

func (b *bzrRepo) get(ctx context.Context) error {
	cmd := procexec.Command(ctx, "bzr", "branch", b.r.Remote(), b.r.LocalPath())
	if out, err := cmd.CombinedOutput(); err != nil {
		return newVcsRemoteErrorOr(ctx, "unable to get repository", errors.Wrapf(err, "command failed: %v", cmd.Args()), string(out))
	}
	return nil
}

func (b *bzrRepo) fetch(ctx context.Context) error {
	cmd := procexec.Command(ctx, "bzr", "pull")
	cmd.SetDir(b.r.LocalPath())
	if out, err := cmd.CombinedOutput(); err != nil {
		return newVcsRemoteErrorOr(ctx, "unable to update repository", errors.Wrapf(err, "command failed: %v", cmd.Args()), string(out))
	}
	return nil
}

func (b *bzrRepo) updateTo(ctx context.Context, sel Selector) error {
	target := sel.String()
	if target == "" {
		return nil
	}
	cmd := procexec.Command(ctx, "bzr", "update", "-r", target)
	cmd.SetDir(b.r.LocalPath())
	if out, err := cmd.CombinedOutput(); err != nil {
		return newVcsLocalErrorOr(ctx, "unable to update checked out version", errors.Wrapf(err, "command failed: %v", cmd.Args()), string(out))
	}
	return nil
}

type svnRepo struct{ r *vcs.SvnRepo }

func (s *svnRepo) get(ctx context.Context) error {
	cmd := procexec.Command(ctx, "svn", "checkout", s.r.Remote(), s.r.LocalPath())
	if out, err := cmd.CombinedOutput(); err != nil {
		return newVcsRemoteErrorOr(ctx, "unable to get repository", errors.Wrapf(err, "command failed: %v", cmd.Args()), string(out))
	}
	return nil
}

func (s *svnRepo) fetch(ctx context.Context) error {
	cmd := procexec.Command(ctx, "svn", "update")
	cmd.SetDir(s.r.LocalPath())
	if out, err := cmd.CombinedOutput(); err != nil {
		return newVcsRemoteErrorOr(ctx, "unable to update repository", errors.Wrapf(err, "command failed: %v", cmd.Args()), string(out))
	}
	return nil
}

func (s *svnRepo) updateTo(ctx context.Context, sel Selector) error {
	target := sel.String()
	if target == "" {
		return nil
	}
	cmd := procexec.Command(ctx, "svn", "update", "-r", target)
	cmd.SetDir(s.r.LocalPath())
	if out, err := cmd.CombinedOutput(); err != nil {
		return newVcsLocalErrorOr(ctx, "unable to update checked out version", errors.Wrapf(err, "command failed: %v", cmd.Args()), string(out))
	}
	return nil
}

// downloadVCS drives get-or-fetch-then-updateTo for the VCS kinds backed by
// Masterminds/vcs (Hg, Bzr, Svn).
func downloadVCS(ctx context.Context, d Descriptor, dir string) error {
	r, err := freshCtxRepo(d.Kind, d, dir)
	if err != nil {
		return errors.Wrapf(unwrapVcsErr(err), "source: setting up %v repo at %s", d.Kind, d.URL)
	}
	if _, err := os.Stat(dir); err != nil {
		if err := r.get(ctx); err != nil {
			return err
		}
	} else if err := r.fetch(ctx); err != nil {
		return err
	}
	return r.updateTo(ctx, d.Selector)
}

// downloadGit is downloadVCS's Git-specific sibling: it tries
// an archive download first when the host is a recognized popular forge
// and a tag/branch/commit is already known, falling back to a full clone.
func downloadGit(ctx context.Context, d Descriptor, dir string) error {
	if url, ok := archiveURLForGit(d); ok {
		if err := downloadArchive(ctx, []string{url}, dir); err == nil {
			return nil
		}
		// Archive attempt failed (private repo, unsupported host quirk,
		// tag not actually a release asset) - fall through to a real clone.
	}
	return downloadVCS(ctx, d, dir)
}
