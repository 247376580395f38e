// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"os"
	"regexp"

	"github.com/nativepkg/nativepkg/internal/ident"
	"github.com/pkg/errors"
)

// Installed is everything Clean needs to know about one installed
// package to decide whether to remove it: its id string (matched against
// the clean filter) and the ids of packages it depends on, so a removal
// can cascade.
type Installed struct {
	ID   ident.ID
	Deps []ident.ID
}

// Clean removes every installed package whose target name matches filter.
// When cascade is true, any package depending (directly or transitively,
// per all) on a removed package is removed too ("Removal by
// explicit clean with a regex filter; optional cascade to dependents."
// all enumerates every known installed package so cascade can be computed;
// Clean itself has no registry of installed packages to walk.
func (s *Store) Clean(filter *regexp.Regexp, cascade bool, all []Installed) error {
	return s.withLock(func() error {
		remove := map[string]bool{}
		for _, inst := range all {
			if filter.MatchString(inst.ID.TargetName()) {
				remove[inst.ID.TargetName()] = true
			}
		}
		if cascade {
			growUntilStable(remove, all)
		}

		for _, inst := range all {
			if !remove[inst.ID.TargetName()] {
				continue
			}
			dir := s.Path(inst.ID)
			if err := os.RemoveAll(dir); err != nil {
				return errors.Wrapf(err, "store: removing %s", dir)
			}
		}
		return nil
	})
}

// growUntilStable adds to remove every package that (transitively)
// depends on something already marked for removal, iterating to a fixed
// point since dependency order among all is not assumed sorted.
func growUntilStable(remove map[string]bool, all []Installed) {
	for {
		grew := false
		for _, inst := range all {
			name := inst.ID.TargetName()
			if remove[name] {
				continue
			}
			for _, dep := range inst.Deps {
				if remove[dep.TargetName()] {
					remove[name] = true
					grew = true
					break
				}
			}
		}
		if !grew {
			return
		}
	}
}
