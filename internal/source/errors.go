// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"bytes"
	"fmt"

	"github.com/Masterminds/vcs"
)

// unwrapVcsErr extracts actual command output from a vcs error, if possible,
// so a wrapped error message isn't just "exit status 1".
func unwrapVcsErr(err error) error {
	switch verr := err.(type) {
	case *vcs.LocalError:
		return fmt.Errorf("%s: %s", verr.Error(), verr.Out())
	case *vcs.RemoteError:
		return fmt.Errorf("%s: %s", verr.Error(), verr.Out())
	default:
		return err
	}
}

// setupFailure records one failed attempt within a chain of candidate
// sources (e.g. archive-then-clone, or several mirrored URLs).
type setupFailure struct {
	ident string
	err   error
}

func (e setupFailure) Error() string {
	return fmt.Sprintf("failed to set up %q: %s", e.ident, e.err)
}

// setupFailures aggregates every failure in a candidate chain so a caller
// sees all the reasons nothing worked, not just the last one.
type setupFailures []setupFailure

func (sf setupFailures) Error() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "no valid source could be set up:")
	for _, e := range sf {
		fmt.Fprintf(&buf, "\n\t%s", e)
	}
	return buf.String()
}
