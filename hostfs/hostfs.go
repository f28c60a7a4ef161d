// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hostfs locates repositories on a go-billy file system.
//
// Paths are absolute and slash-separated, relative to the root of the
// wrapped billy.Filesystem.
package hostfs

import (
	"path"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
)

// FS is a host file system.
type FS struct {
	fs billy.Filesystem
}

// New wraps a billy.Filesystem.
func New(fs billy.Filesystem) *FS {
	return &FS{fs: fs}
}

// OS returns the host operating system's file system, rooted at "/".
func OS() *FS {
	return New(osfs.New("/"))
}

// Dir returns the operating system's file system below dir.
// It is a suitable test fake for OS.
func Dir(dir string) *FS {
	return New(osfs.New(dir))
}

// Memory returns an empty in-memory file system.
func Memory() *FS {
	return New(memfs.New())
}

// Billy returns the wrapped file system.
func (h *FS) Billy() billy.Filesystem { return h.fs }

func clean(name string) string {
	return path.Clean("/" + name)
}

// DirExists reports whether name is an existing directory.
func (h *FS) DirExists(name string) bool {
	fi, err := h.fs.Stat(clean(name))
	return err == nil && fi.IsDir()
}

// MkdirAll creates name and any missing parents.
func (h *FS) MkdirAll(name string) error {
	return h.fs.MkdirAll(clean(name), 0o755)
}

// HostPath returns the native location of name.
func (h *FS) HostPath(name string) string {
	return filepath.Join(h.fs.Root(), filepath.FromSlash(clean(name)))
}

// Chroot returns the file system below name.
func (h *FS) Chroot(name string) (billy.Filesystem, error) {
	if name := clean(name); name != "/" {
		return h.fs.Chroot(name)
	}
	return h.fs, nil
}
