// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package export copies the files of a Git snapshot to a local
// directory or a Cloud Storage bucket.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/gitsnap/gitfs"
	"golang.org/x/sync/errgroup"
)

// DefaultParallel is the default number of concurrent writes.
const DefaultParallel = 8

// Options configures an export. A nil *Options uses the defaults.
type Options struct {
	// Pattern selects files by base name, as in gitfs.FileSystem.Paths.
	// The default "*" exports every file.
	Pattern string

	// Parallel bounds the number of files written at once.
	Parallel int

	Logger *zap.Logger
}

// Stats summarizes a finished export.
type Stats struct {
	Files int
	Bytes int64
}

// Export copies every file of src that matches opts.Pattern to dst,
// keeping its path. It stops at the first error.
//
// File contents are read from the repository on the calling goroutine,
// one at a time; only the writes run concurrently.
func Export(ctx context.Context, src *gitfs.FileSystem, dst Destination, opts *Options) (Stats, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Parallel < 1 {
		o.Parallel = DefaultParallel
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	var files, bytesCopied atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Parallel)
	readErr := func() error {
		for name, err := range src.Paths("/", o.Pattern, true, gitfs.FilesOnly) {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := readFile(src, name)
			if err != nil {
				return err
			}
			g.Go(func() error {
				if err := write(ctx, dst, strings.TrimPrefix(name, "/"), data); err != nil {
					return err
				}
				files.Add(1)
				bytesCopied.Add(int64(len(data)))
				o.Logger.Debug("exported file", zap.String("path", name), zap.Int("bytes", len(data)))
				return nil
			})
		}
		return nil
	}()
	// A failed write cancels ctx, so prefer its error over the reader's.
	err := g.Wait()
	if err == nil {
		err = readErr
	}
	st := Stats{Files: int(files.Load()), Bytes: bytesCopied.Load()}
	if err != nil {
		return st, fmt.Errorf("exporting %s to %s: %w", src.Revision(), dst, err)
	}
	o.Logger.Info("export finished",
		zap.String("revision", src.Revision()),
		zap.Stringer("destination", dst),
		zap.Int("files", st.Files),
		zap.Int64("bytes", st.Bytes))
	return st, nil
}

func readFile(src *gitfs.FileSystem, name string) ([]byte, error) {
	f, err := src.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func write(ctx context.Context, dst Destination, name string, data []byte) error {
	w, err := dst.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
