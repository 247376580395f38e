// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package check

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/renameio"
	"github.com/pkg/errors"
)

const (
	cacheFileName  = "checks.3.txt"
	manualSidecarSuffix = ".manual.txt"
)

// cacheStore is the persisted (hash -> value) table plus the pending
// manual-check sidecar, loaded once per checker run.
type cacheStore struct {
	values  map[uint64]int
	manual  map[uint64]*Check // checks awaiting a manually-supplied value
	changed bool
}

func newCacheStore() *cacheStore {
	return &cacheStore{values: map[uint64]int{}, manual: map[uint64]*Check{}}
}

// load reads dir/checks.3.txt and its ".manual.txt" sidecar, if present.
// A present-but-unset ("?") manual line is skipped: it just means the
// probe is still awaiting a result from elsewhere.
func (c *cacheStore) load(dir string) error {
	path := filepath.Join(dir, cacheFileName)
	if err := c.loadMain(path); err != nil {
		return err
	}
	return c.loadManual(path + manualSidecarSuffix)
}

func (c *cacheStore) loadMain(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "check: reading %s", path)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		h, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		v, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		c.values[h] = v
	}
	return sc.Err()
}

// loadManual consumes lines of the form "<hash> <value>" where value may
// be the literal "?" for a still-unset manual probe; "#"-prefixed lines
// are the human-readable comment naming the probe's definitions.
func (c *cacheStore) loadManual(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "check: reading %s", path)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		if fields[1] == "?" {
			continue
		}
		h, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		v, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		c.values[h] = v
		c.changed = true
	}
	return sc.Err()
}

// save atomically rewrites dir/checks.3.txt (sorted by hash for a stable
// diff) and, if any manual checks remain unresolved, their sidecar.
func (c *cacheStore) save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "check: creating %s", dir)
	}

	hashes := make([]uint64, 0, len(c.values))
	for h := range c.values {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	var b strings.Builder
	for _, h := range hashes {
		fmt.Fprintf(&b, "%d %d\n", h, c.values[h])
	}
	path := filepath.Join(dir, cacheFileName)
	if err := renameio.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return errors.Wrapf(err, "check: writing %s", path)
	}

	if len(c.manual) == 0 {
		return nil
	}

	manualHashes := make([]uint64, 0, len(c.manual))
	for h := range c.manual {
		manualHashes = append(manualHashes, h)
	}
	sort.Slice(manualHashes, func(i, j int) bool { return manualHashes[i] < manualHashes[j] })

	var mb strings.Builder
	for _, h := range manualHashes {
		ck := c.manual[h]
		mb.WriteString("# " + strings.Join(ck.Definitions, " ") + "\n")
		fmt.Fprintf(&mb, "%d ?\n\n", h)
	}
	return errors.Wrapf(renameio.WriteFile(path+manualSidecarSuffix, []byte(mb.String()), 0644),
		"check: writing %s", path+manualSidecarSuffix)
}
