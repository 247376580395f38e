// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio"
	"github.com/pkg/errors"
)

// writeResponseFile spills c's resolved argument vector to
// rsp/<hash>.rsp, one argument per line.
func writeResponseFile(c *Command) (string, error) {
	dir := c.RspDir
	if dir == "" {
		dir = "rsp"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "command: creating %s", dir)
	}

	h := fnvArgs(c.resolvedArgs)
	path := filepath.Join(dir, strconv.FormatUint(h, 16)+".rsp")
	content := strings.Join(c.resolvedArgs, "\n")
	if err := renameio.WriteFile(path, []byte(content), 0644); err != nil {
		return "", errors.Wrapf(err, "command: writing response file %s", path)
	}
	return path, nil
}

func fnvArgs(args []string) uint64 {
	var h uint64 = 0xcbf29ce484222325
	for _, a := range args {
		for i := 0; i < len(a); i++ {
			h ^= uint64(a[i])
			h *= 0x100000001b3
		}
		h ^= '\n'
		h *= 0x100000001b3
	}
	return h
}
