// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// defaultRetries bounds how many times Download will retry a transient
// failure (a dropped connection, a flaky mirror) before giving up.
const defaultRetries = 3

// retryBaseDelay is the delay before the first retry; each subsequent
// attempt doubles it.
const retryBaseDelay = 500 * time.Millisecond

// retry calls fn up to attempts times, sleeping with simple exponential
// backoff between attempts, and returns the last error if none succeed.
// A context.Canceled or context.DeadlineExceeded error is never worth
// retrying, so it's returned immediately.
func retry(attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if cause := errors.Cause(err); cause == context.Canceled || cause == context.DeadlineExceeded {
			return err
		}
		if i < attempts-1 {
			time.Sleep(retryBaseDelay * time.Duration(1<<uint(i)))
		}
	}
	return err
}
