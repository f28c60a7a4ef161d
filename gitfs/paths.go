// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gitfs

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// cleanPath validates and cleans an absolute virtual path.
func cleanPath(op, name string) (string, error) {
	if !strings.HasPrefix(name, "/") {
		return "", pathError(op, name, fmt.Errorf("path must be absolute: %w", fs.ErrInvalid))
	}
	return path.Clean(name), nil
}

// treePath returns the root-tree-relative form of a clean virtual path.
// The root maps to "".
func treePath(name string) string {
	return strings.TrimPrefix(name, "/")
}

// translator maps virtual paths to and from host paths below subRoot.
type translator struct {
	subRoot string // absolute, clean
}

func (t translator) toHost(name string) string {
	return path.Join(t.subRoot, treePath(name))
}

func (t translator) fromHost(hostPath string) (string, error) {
	if !strings.HasPrefix(hostPath, "/") {
		return "", pathError("fromhost", hostPath, ErrPathNotRooted)
	}
	// The prefix check runs on the cleaned path; ".." may not leave subRoot.
	clean := path.Clean(hostPath)
	if t.subRoot == "/" {
		return clean, nil
	}
	rest, ok := strings.CutPrefix(clean, t.subRoot)
	if !ok || (rest != "" && rest[0] != '/') {
		// A well-behaved host file system never returns such a path.
		return "", pathError("fromhost", hostPath, fmt.Errorf("%w %q", ErrPathNotRooted, t.subRoot))
	}
	if rest == "" {
		return "/", nil
	}
	return rest, nil
}

// ToHost converts a virtual path to the corresponding path on the host
// file system.
func (f *FileSystem) ToHost(name string) (string, error) {
	name, err := cleanPath("tohost", name)
	if err != nil {
		return "", err
	}
	return f.paths.toHost(name), nil
}

// FromHost converts a host file system path below the sub root back to
// a virtual path. It fails with ErrPathNotRooted for any other path.
func (f *FileSystem) FromHost(hostPath string) (string, error) {
	return f.paths.fromHost(hostPath)
}
