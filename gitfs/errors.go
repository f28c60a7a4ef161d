// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gitfs

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrInvalidRepository is returned when the sub root does not
	// contain a Git repository.
	ErrInvalidRepository = errors.New("gitfs: not a valid repository")

	// ErrDirectoryNotFound is returned when the sub root does not exist
	// on the host file system.
	ErrDirectoryNotFound = fmt.Errorf("gitfs: directory not found: %w", fs.ErrNotExist)

	// ErrNoSuchCommit is returned when a revision or branch does not
	// resolve to a commit.
	ErrNoSuchCommit = errors.New("gitfs: no such commit")

	// ErrInvalidBranchKind is returned when binding to a branch that is
	// not a local branch.
	ErrInvalidBranchKind = errors.New("gitfs: branch must be a local branch")

	// ErrNotFound is returned for paths with no tree entry.
	ErrNotFound = fs.ErrNotExist

	// ErrNotAFile is returned when a file operation names a directory.
	ErrNotAFile = errors.New("gitfs: not a file")

	// ErrNotADirectory is returned when a directory operation names a
	// file.
	ErrNotADirectory = errors.New("gitfs: not a directory")

	// ErrReadOnly is returned by every operation that would modify the
	// file system.
	ErrReadOnly = fmt.Errorf("gitfs: file system is read-only: %w", fs.ErrPermission)

	// ErrPathNotRooted is returned by FromHost for host paths outside
	// the sub root.
	ErrPathNotRooted = errors.New("gitfs: path is not rooted in the sub root")
)

func pathError(op, name string, err error) error {
	return &fs.PathError{Op: op, Path: name, Err: err}
}
