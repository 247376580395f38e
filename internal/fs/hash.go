// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// layoutSkip lists directory entries excluded from layout hashing: VCS
// bookkeeping left behind by a checkout is not part of a package's
// content identity.
var layoutSkip = map[string]bool{
	".git":             true,
	".hg":              true,
	".bzr":             true,
	".svn":             true,
	"CVS":              true,
	".fossil-settings": true,
}

// unhashableModes are node types a package tree should never contain;
// they are skipped rather than failed on, so a stray socket in a
// long-lived checkout doesn't wedge verification.
const unhashableModes = os.ModeDevice | os.ModeNamedPipe | os.ModeSocket | os.ModeCharDevice

// HashFromNode returns a deterministic content hash of the tree at
// prefix/pathname (prefix may be empty for an already-joined path). Node
// names are hashed relative to the tree's root, in sorted order, so the
// result depends only on the tree's shape and contents - never on the
// storage root it happens to be unpacked under, which is what lets the
// resolver compare a freshly downloaded package against the hash the
// index recorded on a different machine.
func HashFromNode(prefix, pathname string) (string, error) {
	root := pathname
	if prefix != "" {
		root = filepath.Join(prefix, pathname)
	}
	h := sha256.New()
	if err := hashTree(h, root, "."); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// hashTree mixes the node at fullpath into h under the tree-relative
// name rel ("/"-joined on every platform). Directories recurse over
// their sorted, non-skipped children; symlinks contribute their target;
// regular files contribute size and content.
func hashTree(h hash.Hash, fullpath, rel string) error {
	fi, err := os.Lstat(fullpath)
	if err != nil {
		return errors.Wrapf(err, "fs: stat %s", fullpath)
	}
	mode := fi.Mode()
	if mode&unhashableModes != 0 {
		return nil
	}

	io.WriteString(h, rel)

	if mode&os.ModeSymlink != 0 {
		target, err := os.Readlink(fullpath)
		if err != nil {
			return errors.Wrapf(err, "fs: readlink %s", fullpath)
		}
		io.WriteString(h, target)
		return nil
	}

	if fi.IsDir() {
		entries, err := os.ReadDir(fullpath)
		if err != nil {
			return errors.Wrapf(err, "fs: reading directory %s", fullpath)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !layoutSkip[e.Name()] {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			if err := hashTree(h, filepath.Join(fullpath, name), rel+"/"+name); err != nil {
				return err
			}
		}
		return nil
	}

	f, err := os.Open(fullpath)
	if err != nil {
		return errors.Wrapf(err, "fs: opening %s", fullpath)
	}
	defer f.Close()

	io.WriteString(h, strconv.FormatInt(fi.Size(), 10))
	if _, err := io.Copy(h, f); err != nil {
		return errors.Wrapf(err, "fs: hashing %s", fullpath)
	}
	return nil
}
