// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fs collects the filesystem primitives shared by the package
// store, the source descriptor downloaders, and the file fingerprint
// database: existence checks, recursive copy, and rename-with-copy-fallback
// across filesystem boundaries.
package fs

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"unicode"

	"github.com/pkg/errors"
)

// IsDir reports whether name exists and is a directory. A missing name
// is not an error; an existing non-directory is.
func IsDir(name string) (bool, error) {
	fi, err := os.Stat(name)
	switch {
	case os.IsNotExist(err):
		return false, nil
	case err != nil:
		return false, err
	case !fi.IsDir():
		return false, errors.Errorf("fs: %q is not a directory", name)
	}
	return true, nil
}

// IsRegular reports whether name exists and is a regular file. A missing
// name is not an error; an existing directory is.
func IsRegular(name string) (bool, error) {
	fi, err := os.Stat(name)
	switch {
	case os.IsNotExist(err):
		return false, nil
	case err != nil:
		return false, err
	case fi.IsDir():
		return false, errors.Errorf("fs: %q is a directory, should be a file", name)
	}
	return true, nil
}

// IsNonEmptyDir reports whether name is a directory with at least one
// entry.
func IsNonEmptyDir(name string) (bool, error) {
	if isDir, err := IsDir(name); !isDir || err != nil {
		return isDir, err
	}
	entries, err := os.ReadDir(name)
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// HasFilepathPrefix reports whether path sits at or below prefix from a
// filesystem's point of view: unlike strings.HasPrefix it knows /foo and
// /foobar are unrelated directories, and it compares case-insensitively
// on filesystems that do.
func HasFilepathPrefix(path, prefix string) bool {
	if filepath.VolumeName(path) != filepath.VolumeName(prefix) {
		return false
	}

	dir := path
	if isDir, err := IsDir(path); err != nil {
		return false
	} else if !isDir {
		dir = filepath.Dir(path)
	}

	sep := string(os.PathSeparator)
	dirSegs := splitSegments(dir, sep)
	prefixSegs := splitSegments(prefix, sep)
	if len(prefixSegs) > len(dirSegs) {
		return false
	}

	probe := sep
	for i, want := range prefixSegs {
		probe = filepath.Join(probe, dirSegs[i])
		if caseSensitiveAt(probe) {
			if dirSegs[i] != want {
				return false
			}
		} else if !strings.EqualFold(dirSegs[i], want) {
			return false
		}
	}
	return true
}

func splitSegments(p, sep string) []string {
	return strings.Split(strings.TrimSuffix(p, sep), sep)[1:]
}

// caseSensitiveAt probes whether the filesystem holding dir
// distinguishes case, by statting a case-flipped spelling of the same
// name and checking whether it resolves to the same file. Unprobeable
// paths are assumed case-sensitive, the stricter answer.
func caseSensitiveAt(dir string) bool {
	flipped := filepath.Join(filepath.Dir(dir), flipOneCase(filepath.Base(dir)))
	fi, err := os.Stat(dir)
	if err != nil {
		return true
	}
	alt, err := os.Stat(flipped)
	if err != nil {
		return true
	}
	return !os.SameFile(fi, alt)
}

// flipOneCase returns name with the first reversibly case-flippable rune
// flipped, producing an alternate spelling that differs only by case.
func flipOneCase(name string) string {
	done := false
	return strings.Map(func(r rune) rune {
		if done {
			return r
		}
		switch {
		case unicode.IsLower(r):
			if u := unicode.ToUpper(r); unicode.ToLower(u) == r {
				done = true
				return u
			}
		case unicode.IsUpper(r):
			if l := unicode.ToLower(r); unicode.ToUpper(l) == r {
				done = true
				return l
			}
		}
		return r
	}, name)
}

// RenameWithFallback moves src to dest, degrading to copy-then-remove
// when a plain rename can't work - the unpack paths routinely move a
// freshly downloaded tree from a temp directory into the
// content-addressed store, and those two locations are not guaranteed to
// share a filesystem.
func RenameWithFallback(src, dest string) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return errors.Wrapf(err, "fs: cannot stat %s", src)
	}

	err = os.Rename(src, dest)
	if err == nil {
		return nil
	}
	if !renameNeedsCopy(err) {
		return errors.Wrapf(err, "fs: cannot rename %s to %s", src, dest)
	}

	if fi.IsDir() {
		err = CopyDir(src, dest)
	} else {
		err = CopyFile(src, dest)
	}
	if err != nil {
		return errors.Wrapf(err, "fs: fallback copy of %s to %s failed", src, dest)
	}
	return errors.Wrapf(os.RemoveAll(src), "fs: cannot delete %s", src)
}

// renameNeedsCopy reports whether err is the kind of rename failure a
// copy can work around: crossing a device boundary (EXDEV everywhere,
// ERROR_NOT_SAME_DEVICE on Windows, where directory renames across
// volumes fail outright).
func renameNeedsCopy(err error) bool {
	le, ok := err.(*os.LinkError)
	if !ok {
		return false
	}
	if le.Err == syscall.EXDEV {
		return true
	}
	if runtime.GOOS == "windows" {
		if errno, ok := le.Err.(syscall.Errno); ok && errno == 0x11 {
			return true
		}
	}
	return false
}

// CopyDir recursively copies the tree at src to dest, preserving file
// modes. Symlinks are skipped rather than followed or recreated: a
// package tree's links are either VCS bookkeeping or broken relative to
// the new root, and neither belongs in the store.
func CopyDir(src, dest string) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return errors.Wrapf(err, "fs: cannot stat %s", src)
	}
	if err := os.MkdirAll(dest, fi.Mode()); err != nil {
		return errors.Wrapf(err, "fs: cannot mkdir %s", dest)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return errors.Wrapf(err, "fs: cannot read directory %s", src)
	}
	for _, e := range entries {
		if e.Type()&os.ModeSymlink != 0 {
			continue
		}
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dest, e.Name())
		if e.IsDir() {
			err = CopyDir(from, to)
		} else {
			err = CopyFile(from, to)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// CopyFile copies src to dest, preserving the permission bits.
func CopyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return os.Chmod(dest, fi.Mode())
}
