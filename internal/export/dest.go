// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
)

// A Destination receives exported files. Names are slash-separated and
// relative, like io/fs names.
type Destination interface {
	// Create returns a writer for name, replacing any existing file.
	// The file is complete once Close returns nil.
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	String() string
}

// FromURL returns the destination for a file:// or gs:// URL.
// client is only used for gs:// URLs and can be nil otherwise.
func FromURL(client *storage.Client, base string) (Destination, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "gs":
		if u.Host == "" {
			return nil, fmt.Errorf("missing bucket in %q", base)
		}
		if client == nil {
			return nil, fmt.Errorf("%s: no storage client", base)
		}
		return NewGCS(client, u.Host, strings.Trim(u.Path, "/")), nil
	case "file":
		if u.Path == "" {
			return nil, fmt.Errorf("missing directory in %q", base)
		}
		return Dir(filepath.FromSlash(u.Path)), nil
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

// validPath reports whether name can be written below a destination.
// Snapshot paths come from git trees and never hold a backslash, which
// on Windows or as part of an object name would split the path
// differently than the tree does.
func validPath(name string) bool {
	return fs.ValidPath(name) && name != "." && !strings.ContainsRune(name, '\\')
}

// gcsDest writes objects below a prefix of a bucket.
type gcsDest struct {
	bucket *storage.BucketHandle
	name   string
	prefix string
}

var _ = Destination((*gcsDest)(nil))

// NewGCS returns a destination writing to bucket below prefix.
// Creating it does not access the network.
func NewGCS(client *storage.Client, bucket, prefix string) Destination {
	return &gcsDest{bucket: client.Bucket(bucket), name: bucket, prefix: prefix}
}

func (d *gcsDest) String() string {
	return "gs://" + path.Join(d.name, d.prefix)
}

// Create starts an object upload. A previous object with the same name
// remains visible until Close succeeds.
func (d *gcsDest) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	if !validPath(name) {
		return nil, &fs.PathError{Op: "create", Path: name, Err: fs.ErrInvalid}
	}
	w := d.bucket.Object(path.Join(d.prefix, name)).NewWriter(ctx)
	return &gcsWriter{w: w, name: name}, nil
}

type gcsWriter struct {
	w    *storage.Writer
	name string
}

func (w *gcsWriter) Write(b []byte) (int, error) {
	n, err := w.w.Write(b)
	return n, translateError("write", w.name, err)
}

func (w *gcsWriter) Close() error {
	return translateError("close", w.name, w.w.Close())
}

func translateError(op, name string, err error) error {
	if err == nil {
		return nil
	}
	nested := err
	if errors.Is(err, storage.ErrBucketNotExist) || errors.Is(err, storage.ErrObjectNotExist) {
		nested = fs.ErrNotExist
	} else if pe, ok := err.(*fs.PathError); ok {
		nested = pe.Err
	}
	return &fs.PathError{Op: op, Path: name, Err: nested}
}

// Dir returns a destination writing below the local directory dir.
// It is a suitable test fake for the GCS destination.
func Dir(dir string) Destination {
	return dirDest(dir)
}

type dirDest string

func (dir dirDest) String() string { return "file://" + filepath.ToSlash(string(dir)) }

func (dir dirDest) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	if !validPath(name) {
		return nil, &fs.PathError{Op: "create", Path: name, Err: fs.ErrInvalid}
	}
	full := filepath.Join(string(dir), filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(full)
	if err != nil {
		return nil, err
	}
	return f, nil
}
