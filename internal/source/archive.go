// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"archive/tar"
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// downloadArchive fetches the first URL in urls that succeeds, unpacks it
// into dir, then removes the downloaded file. Every candidate
// URL's failure is recorded so the aggregate error explains every attempt.
func downloadArchive(ctx context.Context, urls []string, dir string) error {
	var failures setupFailures
	for _, u := range urls {
		if err := fetchAndUnpackOne(ctx, u, dir); err != nil {
			failures = append(failures, setupFailure{ident: u, err: err})
			continue
		}
		return nil
	}
	if len(failures) == 1 {
		return failures[0].err
	}
	return failures
}

func fetchAndUnpackOne(ctx context.Context, rawurl, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "source: creating %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "download-*")
	if err != nil {
		return errors.Wrap(err, "source: creating temp download file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := fetchToFile(ctx, rawurl, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "source: closing temp download file")
	}

	return unpackArchive(tmpPath, rawurl, dir)
}

func fetchToFile(ctx context.Context, rawurl string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return errors.Wrapf(err, "source: building request for %s", rawurl)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "source: fetching %s", rawurl)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("source: fetching %s: %s", rawurl, resp.Status)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return errors.Wrapf(err, "source: downloading %s", rawurl)
	}
	return nil
}

// unpackArchive dispatches on the archive's apparent type, inferred from
// the source URL's path, and extracts into dir.
func unpackArchive(archivePath, rawurl, dir string) error {
	name := strings.ToLower(rawurl)
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return untarGzip(archivePath, dir)
	case strings.HasSuffix(name, ".zip"):
		return unzip(archivePath, dir)
	case strings.HasSuffix(name, ".tar"):
		f, err := os.Open(archivePath)
		if err != nil {
			return err
		}
		defer f.Close()
		return extractTar(tar.NewReader(f), dir)
	default:
		// No recognized archive extension: treat the download itself as
		// the payload (a single remote file with no unpacking step).
		return copyFlatFile(archivePath, rawurl, dir)
	}
}

func untarGzip(archivePath, dir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "source: opening gzip stream")
	}
	defer gz.Close()

	return extractTar(tar.NewReader(gz), dir)
}

func extractTar(tr *tar.Reader, dir string) error {
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "source: reading tar entry")
		}

		target, err := safeJoin(dir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode&0777))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}

func unzip(archivePath, dir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return errors.Wrap(err, "source: opening zip archive")
	}
	defer zr.Close()

	for _, f := range zr.File {
		target, err := safeJoin(dir, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		out.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func copyFlatFile(archivePath, rawurl, dir string) error {
	base := filepath.Base(rawurl)
	if base == "" || base == "." || base == "/" {
		base = "download"
	}
	dest := filepath.Join(dir, base)
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, f)
	return err
}

// safeJoin joins dir and name, rejecting any archive entry that would
// escape dir via ".." path traversal.
func safeJoin(dir, name string) (string, error) {
	target := filepath.Join(dir, name)
	if !strings.HasPrefix(target, filepath.Clean(dir)+string(filepath.Separator)) && target != filepath.Clean(dir) {
		return "", errors.Errorf("source: archive entry %q escapes destination directory", name)
	}
	return target, nil
}

// popularGitHosts recognizes forges whose release/archive URLs this
// package knows how to construct directly.
var popularGitHosts = regexp.MustCompile(`^(github\.com|gitlab\.com|bitbucket\.org)$`)

// archiveURLForGit returns the archive-download URL to try before falling
// back to a full clone, and whether one could be constructed: this
// requires a recognized host and a known tag/branch/commit (an archive
// download can't target an as-yet-unresolved ref).
func archiveURLForGit(d Descriptor) (string, bool) {
	u, err := url.Parse(d.URL)
	if err != nil || !popularGitHosts.MatchString(u.Host) {
		return "", false
	}
	ref := d.Selector.String()
	if ref == "" {
		return "", false
	}

	repoPath := strings.TrimSuffix(strings.TrimPrefix(u.Path, "/"), ".git")
	switch u.Host {
	case "github.com":
		return fmt.Sprintf("https://%s/%s/archive/%s.tar.gz", u.Host, repoPath, ref), true
	case "gitlab.com":
		return fmt.Sprintf("https://%s/%s/-/archive/%s/%s-%s.tar.gz", u.Host, repoPath, ref, lastSegment(repoPath), ref), true
	case "bitbucket.org":
		return fmt.Sprintf("https://%s/%s/get/%s.tar.gz", u.Host, repoPath, ref), true
	default:
		return "", false
	}
}

func lastSegment(path string) string {
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}
