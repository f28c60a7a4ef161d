// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gitfs

import (
	"iter"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// A Target selects which kinds of entries Paths yields.
type Target int

const (
	Both            Target = iota // files and directories
	FilesOnly                     // blobs only
	DirectoriesOnly               // trees only
)

func (t Target) String() string {
	switch t {
	case FilesOnly:
		return "files"
	case DirectoriesOnly:
		return "directories"
	}
	return "both"
}

// Paths returns the paths of the entries below the directory name whose
// base names match pattern, in tree order. With recursive set it
// descends into every subdirectory, and the matches inside a directory
// come before the directory itself.
//
// pattern is a doublestar name pattern; "" means "*". A pattern with a
// directory part, like "cmd/*.go", lists that subdirectory of name.
//
// The sequence is computed lazily, depth first, each time it is ranged
// over. If an error occurs it is the last value produced.
func (f *FileSystem) Paths(name, pattern string, recursive bool, target Target) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		w, tree, err := f.startWalk(name, pattern, recursive, target)
		if err != nil {
			yield("", err)
			return
		}
		w.walk(w.dir, tree, yield)
	}
}

type walker struct {
	f         *FileSystem
	dir       string
	pattern   string
	recursive bool
	target    Target
}

func (f *FileSystem) startWalk(name, pattern string, recursive bool, target Target) (*walker, *object.Tree, error) {
	name, err := cleanPath("paths", name)
	if err != nil {
		return nil, nil, err
	}
	if i := strings.LastIndex(pattern, "/"); i >= 0 {
		name = path.Join(name, pattern[:i])
		pattern = pattern[i+1:]
	}
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, nil, pathError("paths", pattern, path.ErrBadPattern)
	}
	n, err := f.resolve("paths", name)
	if err != nil {
		return nil, nil, err
	}
	tree, err := f.tree("paths", n)
	if err != nil {
		return nil, nil, err
	}
	return &walker{f: f, dir: n.name, pattern: pattern, recursive: recursive, target: target}, tree, nil
}

// walk yields the matches in tree. It reports whether to continue.
func (w *walker) walk(dir string, tree *object.Tree, yield func(string, error) bool) bool {
	for _, e := range tree.Entries {
		p := path.Join(dir, e.Name)
		isTree := e.Mode == filemode.Dir
		if isTree && w.recursive {
			sub, err := w.f.repo.TreeObject(e.Hash)
			if err != nil {
				yield("", pathError("paths", p, err))
				return false
			}
			if !w.walk(p, sub, yield) {
				return false
			}
		}
		// A directory is considered again on its own, after its contents.
		if w.target == DirectoriesOnly && !isTree {
			continue
		}
		if w.target == FilesOnly && !e.Mode.IsFile() {
			continue
		}
		if ok, _ := doublestar.Match(w.pattern, e.Name); !ok {
			continue
		}
		if !yield(p, nil) {
			return false
		}
	}
	return true
}
