// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fingerprint

import (
	"path/filepath"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

// skipDirNames are directories whose contents never belong in a target's
// fingerprinted source set.
var skipDirNames = map[string]bool{
	".git": true, ".hg": true, ".bzr": true, ".svn": true, "vendor": true,
}

// ScanTree lists every regular file under root, for bulk-indexing a
// target's source tree (e.g. to discover headers it might implicitly
// depend on). VCS metadata and vendor directories are skipped.
func ScanTree(root string) ([]string, error) {
	var files []string
	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() && skipDirNames[filepath.Base(path)] {
				return filepath.SkipDir
			}
			if de.IsDir() {
				return nil
			}
			files = append(files, path)
			return nil
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fingerprint: walking %s", root)
	}
	return files, nil
}
