// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gitfs

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// A HostFS is the file system holding the repository. Paths are
// absolute and slash-separated in the host's own namespace.
// *hostfs.FS implements it.
type HostFS interface {
	DirExists(name string) bool
	MkdirAll(name string) error
	// HostPath returns the native location of name, for messages.
	HostPath(name string) string
	Chroot(name string) (billy.Filesystem, error)
}

// openRepository opens the repository stored at subRoot on host, either
// a worktree with a .git directory or a bare repository.
// The returned closer releases the object storage.
func openRepository(host HostFS, subRoot string) (*git.Repository, io.Closer, error) {
	root, err := host.Chroot(subRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("%w in %s: %v", ErrInvalidRepository, host.HostPath(subRoot), err)
	}
	dot, worktree := root, billy.Filesystem(nil)
	if fi, err := root.Stat(git.GitDirName); err == nil && fi.IsDir() {
		if dot, err = root.Chroot(git.GitDirName); err != nil {
			return nil, nil, fmt.Errorf("%w in %s: %v", ErrInvalidRepository, host.HostPath(subRoot), err)
		}
		worktree = root
	}
	st := filesystem.NewStorage(dot, cache.NewObjectLRUDefault())
	repo, err := git.Open(st, worktree)
	if err != nil {
		st.Close()
		if errors.Is(err, git.ErrRepositoryNotExists) || errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w in %s", ErrInvalidRepository, host.HostPath(subRoot))
		}
		return nil, nil, fmt.Errorf("%w in %s: %v", ErrInvalidRepository, host.HostPath(subRoot), err)
	}
	return repo, st, nil
}

// storageCloser returns the closer for an already opened repository's
// storage, if it has one.
func storageCloser(repo *git.Repository) io.Closer {
	if c, ok := repo.Storer.(io.Closer); ok {
		return c
	}
	return nopCloser{}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// repositoryRoot returns the OS path a repository was opened from:
// its worktree, or the storage directory of a bare repository.
func repositoryRoot(repo *git.Repository) (string, error) {
	if wt, err := repo.Worktree(); err == nil {
		return wt.Filesystem.Root(), nil
	}
	if st, ok := repo.Storer.(*filesystem.Storage); ok {
		return st.Filesystem().Root(), nil
	}
	return "", fmt.Errorf("%w: repository has no file system location", ErrInvalidRepository)
}
