// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gitfs

import (
	"errors"
	"io"
	"io/fs"
	"slices"
	"strings"
)

// FS returns an io/fs view of f. Names are unrooted as io/fs requires:
// "." is the root and "a/b" is the virtual path "/a/b".
//
// The result implements fs.StatFS, fs.ReadDirFS and fs.ReadFileFS.
// Files implement io.Seeker and directories implement fs.ReadDirFile.
func (f *FileSystem) FS() fs.FS {
	return ioFS{f}
}

type ioFS struct {
	f *FileSystem
}

var _ = fs.FS(ioFS{})
var _ = fs.StatFS(ioFS{})
var _ = fs.ReadDirFS(ioFS{})
var _ = fs.ReadFileFS(ioFS{})

// validPath reports whether name is a valid io/fs name. A backslash is
// rejected too, so a Windows-style path such as `src\main.ext` fails
// instead of being looked up as a single tree entry name.
func validPath(name string) bool {
	return fs.ValidPath(name) && !strings.ContainsRune(name, '\\')
}

func (fsys ioFS) abs(op, name string) (string, error) {
	if !validPath(name) {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return "/", nil
	}
	return "/" + name, nil
}

// translateError rewrites the virtual path in a *fs.PathError back to
// the io/fs name the caller used.
func translateError(name string, err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return &fs.PathError{Op: pe.Op, Path: name, Err: pe.Err}
	}
	return err
}

func (fsys ioFS) Open(name string) (fs.File, error) {
	abs, err := fsys.abs("open", name)
	if err != nil {
		return nil, err
	}
	n, err := fsys.f.resolve("open", abs)
	if err != nil {
		return nil, translateError(name, err)
	}
	fi, err := fsys.f.info("open", n)
	if err != nil {
		return nil, translateError(name, err)
	}
	if name == "." {
		fi.name = "."
	}
	if fi.IsDir() {
		return &dirFile{fsys: fsys, name: name, info: fi}, nil
	}
	file, err := fsys.f.Open(abs)
	if err != nil {
		return nil, translateError(name, err)
	}
	return &ioFile{file, name}, nil
}

func (fsys ioFS) Stat(name string) (fs.FileInfo, error) {
	abs, err := fsys.abs("stat", name)
	if err != nil {
		return nil, err
	}
	fi, err := fsys.f.Stat(abs)
	if err != nil {
		return nil, translateError(name, err)
	}
	if name == "." {
		fi.(*fileInfo).name = "."
	}
	return fi, nil
}

// ReadDir returns the entries of the directory sorted by name.
func (fsys ioFS) ReadDir(name string) ([]fs.DirEntry, error) {
	abs, err := fsys.abs("readdir", name)
	if err != nil {
		return nil, err
	}
	infos, err := fsys.f.readDir("readdir", abs)
	if err != nil {
		return nil, translateError(name, err)
	}
	entries := make([]fs.DirEntry, len(infos))
	for i, fi := range infos {
		entries[i] = fi
	}
	// Git orders a tree "a.go" < "a/" < "a0"; io/fs wants plain name order.
	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return entries, nil
}

func (fsys ioFS) ReadFile(name string) ([]byte, error) {
	file, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if _, ok := file.(*dirFile); ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: ErrNotAFile}
	}
	return io.ReadAll(file)
}

// ioFile reports errors with the io/fs name.
type ioFile struct {
	*File
	name string
}

func (fl *ioFile) Read(b []byte) (int, error) {
	n, err := fl.File.Read(b)
	if err == io.EOF {
		return n, err
	}
	return n, translateError(fl.name, err)
}

func (fl *ioFile) Seek(offset int64, whence int) (int64, error) {
	off, err := fl.File.Seek(offset, whence)
	return off, translateError(fl.name, err)
}

func (fl *ioFile) Stat() (fs.FileInfo, error) {
	fi, err := fl.File.Stat()
	return fi, translateError(fl.name, err)
}

func (fl *ioFile) Close() error {
	return translateError(fl.name, fl.File.Close())
}

// dirFile implements fs.ReadDirFile. The listing is read on the first
// call to ReadDir.
type dirFile struct {
	fsys    ioFS
	name    string
	info    *fileInfo
	entries []fs.DirEntry
	loaded  bool
	offset  int
	closed  bool
}

var _ = fs.ReadDirFile((*dirFile)(nil))

func (d *dirFile) Stat() (fs.FileInfo, error) {
	if d.closed {
		return nil, &fs.PathError{Op: "stat", Path: d.name, Err: fs.ErrClosed}
	}
	return d.info, nil
}

func (d *dirFile) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: ErrNotAFile}
}

func (d *dirFile) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.closed {
		return nil, &fs.PathError{Op: "readdir", Path: d.name, Err: fs.ErrClosed}
	}
	if !d.loaded {
		entries, err := d.fsys.ReadDir(d.name)
		if err != nil {
			return nil, err
		}
		d.entries, d.loaded = entries, true
	}
	rest := d.entries[d.offset:]
	if n <= 0 {
		d.offset = len(d.entries)
		return slices.Clone(rest), nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	rest = rest[:min(n, len(rest))]
	d.offset += len(rest)
	return slices.Clone(rest), nil
}

func (d *dirFile) Close() error {
	if d.closed {
		return &fs.PathError{Op: "close", Path: d.name, Err: fs.ErrClosed}
	}
	d.closed = true
	return nil
}
