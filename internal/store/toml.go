// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// writeTOMLAtomic encodes v as TOML and replaces path's contents in one
// atomic rename, so a crash mid-write never leaves a torn file.
func writeTOMLAtomic(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "store: creating %s", filepath.Dir(path))
	}
	b, err := toml.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "store: marshaling %s", path)
	}
	return errors.Wrapf(renameio.WriteFile(path, b, 0644), "store: writing %s", path)
}

func readTOML(path string, v interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return toml.Unmarshal(b, v)
}
