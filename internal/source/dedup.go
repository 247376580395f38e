// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import "golang.org/x/sync/singleflight"

// fetchGroup collapses concurrent Download calls that target the same
// CanonicalKey and destination directory into a single in-flight fetch, so
// two targets depending on the same source don't race each other onto disk.
var fetchGroup singleflight.Group
