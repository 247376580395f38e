// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolver

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "resolver: creating lock directory %s", dir)
	}
	return nil
}

func lockPath(dir, hash string) string {
	return filepath.Join(dir, hash+".lock")
}
