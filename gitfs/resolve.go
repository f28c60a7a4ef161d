// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gitfs

import (
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Attributes describe a path the way a host file system would.
// Attributes are the file attribute flags of an entry.
type Attributes uint8

const (
	AttrReadOnly  Attributes = 1 << iota // set on every entry
	AttrDirectory                        // a tree
	AttrNormal                           // a blob
)

func (a Attributes) String() string {
	var s []string
	if a&AttrNormal != 0 {
		s = append(s, "normal")
	}
	if a&AttrDirectory != 0 {
		s = append(s, "directory")
	}
	if a&AttrReadOnly != 0 {
		s = append(s, "readonly")
	}
	return strings.Join(s, "|")
}

type kind int

const (
	kindAbsent kind = iota
	kindTree
	kindBlob
	kindOther // submodule links
)

func entryKind(e *object.TreeEntry) kind {
	switch {
	case e == nil:
		return kindAbsent
	case e.Mode == filemode.Dir:
		return kindTree
	case e.Mode.IsFile():
		return kindBlob
	}
	return kindOther
}

// A node is a resolved virtual path. The root has no tree entry.
type node struct {
	name   string
	commit *object.Commit
	entry  *object.TreeEntry
}

func (n *node) root() bool { return n.name == "/" }

func (n *node) kind() kind {
	if n.root() {
		return kindTree
	}
	return entryKind(n.entry)
}

// resolve walks from the root tree of the effective commit to name.
// An absent path is not an error; its node has no entry.
func (f *FileSystem) resolve(op, name string) (*node, error) {
	if f.closed {
		return nil, pathError(op, name, fs.ErrClosed)
	}
	clean, err := cleanPath(op, name)
	if err != nil {
		return nil, err
	}
	c, err := f.rev.commit()
	if err != nil {
		return nil, pathError(op, name, err)
	}
	n := &node{name: clean, commit: c}
	if n.root() {
		return n, nil
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, pathError(op, name, err)
	}
	parts := strings.Split(treePath(clean), "/")
	for i, part := range parts {
		e := entryNamed(tree, part)
		if e == nil {
			return n, nil
		}
		if i == len(parts)-1 {
			n.entry = e
			break
		}
		if e.Mode != filemode.Dir {
			return n, nil
		}
		if tree, err = f.repo.TreeObject(e.Hash); err != nil {
			return nil, pathError(op, name, err)
		}
	}
	return n, nil
}

func entryNamed(t *object.Tree, name string) *object.TreeEntry {
	for i := range t.Entries {
		if t.Entries[i].Name == name {
			return &t.Entries[i]
		}
	}
	return nil
}

// tree returns the tree object of a directory node.
func (f *FileSystem) tree(op string, n *node) (*object.Tree, error) {
	switch n.kind() {
	case kindAbsent:
		return nil, pathError(op, n.name, ErrNotFound)
	case kindTree:
	default:
		return nil, pathError(op, n.name, ErrNotADirectory)
	}
	var (
		t   *object.Tree
		err error
	)
	if n.root() {
		t, err = n.commit.Tree()
	} else {
		t, err = f.repo.TreeObject(n.entry.Hash)
	}
	if err != nil {
		return nil, pathError(op, n.name, err)
	}
	return t, nil
}

// blob returns the blob object of a file node.
func (f *FileSystem) blob(op string, n *node) (*object.Blob, error) {
	switch n.kind() {
	case kindAbsent:
		return nil, pathError(op, n.name, ErrNotFound)
	case kindBlob:
	default:
		return nil, pathError(op, n.name, ErrNotAFile)
	}
	b, err := f.repo.BlobObject(n.entry.Hash)
	if err != nil {
		return nil, pathError(op, n.name, err)
	}
	return b, nil
}

// DirExists reports whether name is a directory. The root always is.
func (f *FileSystem) DirExists(name string) (bool, error) {
	n, err := f.resolve("direxists", name)
	if err != nil {
		return false, err
	}
	return n.kind() == kindTree, nil
}

// FileExists reports whether name is a file.
func (f *FileSystem) FileExists(name string) (bool, error) {
	n, err := f.resolve("fileexists", name)
	if err != nil {
		return false, err
	}
	return n.kind() == kindBlob, nil
}

// FileLength returns the size of the file name.
func (f *FileSystem) FileLength(name string) (int64, error) {
	n, err := f.resolve("filelength", name)
	if err != nil {
		return 0, err
	}
	b, err := f.blob("filelength", n)
	if err != nil {
		return 0, err
	}
	return b.Size, nil
}

// Attributes returns the attributes of name. Everything is read-only.
func (f *FileSystem) Attributes(name string) (Attributes, error) {
	n, err := f.resolve("attributes", name)
	if err != nil {
		return 0, err
	}
	switch n.kind() {
	case kindAbsent:
		return 0, pathError("attributes", n.name, ErrNotFound)
	case kindTree:
		return AttrDirectory | AttrReadOnly, nil
	case kindBlob:
		return AttrNormal | AttrReadOnly, nil
	}
	return AttrReadOnly, nil
}

// Stat returns a FileInfo describing name. Its Sys method returns the
// *object.TreeEntry, or nil for the root.
func (f *FileSystem) Stat(name string) (fs.FileInfo, error) {
	n, err := f.resolve("stat", name)
	if err != nil {
		return nil, err
	}
	return f.info("stat", n)
}

func (f *FileSystem) info(op string, n *node) (*fileInfo, error) {
	fi := &fileInfo{
		name:    path.Base(n.name),
		modTime: n.commit.Author.When.UTC(),
		entry:   n.entry,
	}
	switch n.kind() {
	case kindAbsent:
		return nil, pathError(op, n.name, ErrNotFound)
	case kindTree:
		fi.mode = fs.ModeDir | 0o555
	case kindBlob:
		b, err := f.blob(op, n)
		if err != nil {
			return nil, err
		}
		fi.size = b.Size
		fi.mode = 0o444
		if n.entry.Mode == filemode.Executable {
			fi.mode = 0o555
		}
	default:
		fi.mode = fs.ModeIrregular | 0o444
	}
	return fi, nil
}

// readDir returns the entries of the directory name in tree order.
func (f *FileSystem) readDir(op, name string) ([]*fileInfo, error) {
	n, err := f.resolve(op, name)
	if err != nil {
		return nil, err
	}
	t, err := f.tree(op, n)
	if err != nil {
		return nil, err
	}
	infos := make([]*fileInfo, 0, len(t.Entries))
	for i := range t.Entries {
		child := &node{name: path.Join(n.name, t.Entries[i].Name), commit: n.commit, entry: &t.Entries[i]}
		fi, err := f.info(op, child)
		if err != nil {
			return nil, err
		}
		infos = append(infos, fi)
	}
	return infos, nil
}

// fileInfo implements fs.FileInfo and fs.DirEntry.
type fileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	entry   *object.TreeEntry
}

var _ = fs.FileInfo((*fileInfo)(nil))
var _ = fs.DirEntry((*fileInfo)(nil))

func (fi *fileInfo) Name() string               { return fi.name }
func (fi *fileInfo) Size() int64                { return fi.size }
func (fi *fileInfo) Mode() fs.FileMode          { return fi.mode }
func (fi *fileInfo) ModTime() time.Time         { return fi.modTime }
func (fi *fileInfo) IsDir() bool                { return fi.mode.IsDir() }
func (fi *fileInfo) Info() (fs.FileInfo, error) { return fi, nil }
func (fi *fileInfo) Type() fs.FileMode          { return fi.mode.Type() }

func (fi *fileInfo) Sys() any {
	if fi.entry == nil {
		return nil
	}
	return fi.entry
}
