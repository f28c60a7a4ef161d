// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"golang.org/x/gitsnap/gitfs"
	"golang.org/x/gitsnap/internal/export"
	"golang.org/x/gitsnap/internal/gitfuse"
	"golang.org/x/gitsnap/internal/snapweb"
	"golang.org/x/sync/errgroup"
)

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: gitsnap %s %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

func parseTarget(s string) (gitfs.Target, error) {
	switch s {
	case "a", "all", "":
		return gitfs.Both, nil
	case "f":
		return gitfs.FilesOnly, nil
	case "d":
		return gitfs.DirectoriesOnly, nil
	}
	return 0, fmt.Errorf("bad -type %q: want f, d or a", s)
}

// abs turns a command-line path into a virtual path.
func abs(name string) string {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	return name
}

func ls(e *env, args []string) error {
	fs := newFlagSet("ls", "[-r] [-pattern glob] [-type f|d|a] [path]")
	recursive := fs.Bool("r", false, "descend into subdirectories")
	pattern := fs.String("pattern", "*", "base name pattern; may contain a directory part")
	typ := fs.String("type", "a", "entries to list: f for files, d for directories, a for all")
	if err := fs.Parse(args); err != nil {
		return err
	}
	target, err := parseTarget(*typ)
	if err != nil {
		return err
	}
	dir := "/"
	switch fs.NArg() {
	case 0:
	case 1:
		dir = abs(fs.Arg(0))
	default:
		fs.Usage()
		return errors.New("too many arguments")
	}

	fsys, err := e.open()
	if err != nil {
		return err
	}
	defer fsys.Close()
	for p, err := range fsys.Paths(dir, *pattern, *recursive, target) {
		if err != nil {
			return err
		}
		fmt.Fprintln(e.stdout, p)
	}
	return nil
}

func cat(e *env, args []string) error {
	fs := newFlagSet("cat", "path...")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("no paths")
	}
	fsys, err := e.open()
	if err != nil {
		return err
	}
	defer fsys.Close()
	for _, name := range fs.Args() {
		f, err := fsys.Open(abs(name))
		if err != nil {
			return err
		}
		_, err = io.Copy(e.stdout, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func stat(e *env, args []string) error {
	fs := newFlagSet("stat", "path...")
	if err := fs.Parse(args); err != nil {
		return err
	}
	names := fs.Args()
	if len(names) == 0 {
		names = []string{"/"}
	}
	fsys, err := e.open()
	if err != nil {
		return err
	}
	defer fsys.Close()

	tw := tabwriter.NewWriter(e.stdout, 0, 8, 2, ' ', 0)
	for _, name := range names {
		name = abs(name)
		fi, err := fsys.Stat(name)
		if err != nil {
			return err
		}
		attrs, err := fsys.Attributes(name)
		if err != nil {
			return err
		}
		host, err := fsys.ToHost(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%v\t%d\t%s\t%s\t%s\n", name, fi.Mode(), fi.Size(), attrs, fi.ModTime().Format(time.RFC3339), host)
	}
	return tw.Flush()
}

func serve(e *env, args []string) error {
	fs := newFlagSet("serve", "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	fsys, err := e.open()
	if err != nil {
		return err
	}
	defer fsys.Close()

	ln, err := net.Listen("tcp", e.cfg.HTTPAddr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: snapweb.NewHandler(fsys, e.log)}
	e.log.Info("serving snapshot", zap.String("addr", ln.Addr().String()), zap.String("revision", fsys.Revision()))

	g, ctx := errgroup.WithContext(e.ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func mount(e *env, args []string) error {
	fs := newFlagSet("mount", "[-allow-other] dir")
	allowOther := fs.Bool("allow-other", e.cfg.Mount.AllowOther, "let other users access the mount")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("want exactly one mountpoint")
	}
	fsys, err := e.open()
	if err != nil {
		return err
	}
	defer fsys.Close()

	server, err := gitfuse.Mount(gitfuse.Options{
		Mountpoint: fs.Arg(0),
		FS:         fsys.FS(),
		AllowOther: *allowOther,
		Logger:     e.log,
	})
	if err != nil {
		return err
	}
	// Unmount on a signal; stop waiting if someone else unmounts.
	ctx, cancel := context.WithCancel(e.ctx)
	var g errgroup.Group
	g.Go(func() error {
		server.Wait()
		cancel()
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		if e.ctx.Err() != nil {
			return server.Unmount()
		}
		return nil
	})
	return g.Wait()
}

func exportFiles(e *env, args []string) error {
	fs := newFlagSet("export", "[-pattern glob] [-parallel n] url")
	pattern := fs.String("pattern", e.cfg.Export.Pattern, "base name pattern of the files to export")
	parallel := fs.Int("parallel", e.cfg.Export.Parallel, "number of files to write at once")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("want exactly one destination URL")
	}
	dest := fs.Arg(0)

	var client *storage.Client
	if strings.HasPrefix(dest, "gs://") {
		c, err := storage.NewClient(e.ctx)
		if err != nil {
			return err
		}
		defer c.Close()
		client = c
	}
	dst, err := export.FromURL(client, dest)
	if err != nil {
		return err
	}
	fsys, err := e.open()
	if err != nil {
		return err
	}
	defer fsys.Close()

	st, err := export.Export(e.ctx, fsys, dst, &export.Options{Pattern: *pattern, Parallel: *parallel, Logger: e.log})
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "exported %d files (%d bytes) to %s\n", st.Files, st.Bytes, dst)
	return nil
}
