// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/google/renameio"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

// Snapshot is what a RemoteSource hands back: the schema version the
// remote is publishing under plus every entry in it. A schema version
// that doesn't match this package's schemaVersion forces a clean local
// reload rather than an attempted incremental merge.
type Snapshot struct {
	SchemaVersion int
	Entries       []Entry
}

// RemoteSource fetches a full snapshot of the remote index. The RPC
// transport behind it is an external collaborator; the index only
// consumes the response shape.
type RemoteSource interface {
	FetchSnapshot(ctx context.Context) (Snapshot, error)
}

// HTTPRemoteSource fetches a snapshot from a registry's "/api/v1/snapshot"
// endpoint, sending Token as a bearer token when it is set.
type HTTPRemoteSource struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func (s *HTTPRemoteSource) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

// FetchSnapshot implements RemoteSource.
func (s *HTTPRemoteSource) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return Snapshot{}, errors.Wrapf(err, "index: parsing registry URL %q", s.BaseURL)
	}
	u.Path = path.Join(u.Path, "api/v1/snapshot")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "index: building snapshot request")
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "BEARER "+s.Token)
	}

	resp, err := s.client().Do(req)
	if err != nil {
		return Snapshot{}, errors.Wrapf(err, "index: fetching snapshot from %s", u)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, errors.Errorf("index: fetching snapshot from %s: %s", u, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "index: reading snapshot response")
	}

	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return Snapshot{}, errors.Wrap(err, "index: decoding snapshot response")
	}
	return snap, nil
}

// snapshotStagingPath is where a freshly fetched snapshot is written
// before being indexed, via an atomic rename, so a crash mid-download
// never corrupts a snapshot file that's actually in use.
func (idx *Index) snapshotStagingPath() string {
	return idx.db.Path() + ".snapshot.json"
}

// Refresh downloads the remote snapshot and reloads the local cache from
// it, clearing the previous contents in the same bbolt transaction that
// writes the new ones so a reader never observes a half-populated index.
// A schema version mismatch against this package's own schemaVersion is
// treated the same way init() treats an on-disk mismatch: a clean reload.
func (idx *Index) Refresh(ctx context.Context, src RemoteSource) error {
	snap, err := src.FetchSnapshot(ctx)
	if err != nil {
		return errors.Wrap(err, "index: refreshing from remote")
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "index: encoding fetched snapshot")
	}
	if err := renameio.WriteFile(idx.snapshotStagingPath(), raw, 0644); err != nil {
		return errors.Wrap(err, "index: staging fetched snapshot")
	}

	err = idx.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketEntries); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		if _, err := tx.CreateBucket(bucketEntries); err != nil {
			return err
		}
		for _, e := range snap.Entries {
			if err := idx.putEntry(tx, e); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketMeta).Put(keySchemaVersion, []byte(jsonNumber(snap.SchemaVersion)))
	})
	if err != nil {
		return errors.Wrap(err, "index: loading fetched snapshot")
	}

	return idx.setLastRefresh(time.Now())
}
