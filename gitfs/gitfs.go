// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gitfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
	"golang.org/x/gitsnap/hostfs"
)

// Options configures a FileSystem. A nil *Options is valid.
type Options struct {
	// Logger receives debug messages. If nil, nothing is logged.
	Logger *zap.Logger

	// Host is the host file system an already opened repository lives
	// on. It is only used by FromRepository and defaults to hostfs.OS().
	Host HostFS
}

func (o *Options) logger() *zap.Logger {
	if o == nil || o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// A FileSystem is a read-only view of one snapshot of a repository.
//
// A FileSystem adds no locking of its own; it is as safe for concurrent
// reads as the underlying go-git storage.
type FileSystem struct {
	repo    *git.Repository
	storage io.Closer
	rev     *binding
	paths   translator
	log     *zap.Logger
	closed  bool
}

// Open opens the repository at subRoot on host and binds it to rev.
// A nil rev means "HEAD".
//
// subRoot must be an absolute path naming an existing directory that
// holds a repository, either as a .git directory or as a bare
// repository.
func Open(host HostFS, subRoot string, rev Revision, opts *Options) (*FileSystem, error) {
	subRoot, err := cleanPath("open", subRoot)
	if err != nil {
		return nil, err
	}
	if !host.DirExists(subRoot) {
		return nil, pathError("open", host.HostPath(subRoot), ErrDirectoryNotFound)
	}
	repo, storage, err := openRepository(host, subRoot)
	if err != nil {
		return nil, err
	}
	return newFileSystem(repo, storage, subRoot, rev, opts)
}

// GetOrCreate is like Open but first creates subRoot on host if it
// does not exist. It never initializes a repository, so a newly created
// directory fails with ErrInvalidRepository.
func GetOrCreate(host HostFS, subRoot string, rev Revision, opts *Options) (*FileSystem, error) {
	subRoot, err := cleanPath("open", subRoot)
	if err != nil {
		return nil, err
	}
	if !host.DirExists(subRoot) {
		if err := host.MkdirAll(subRoot); err != nil {
			return nil, fmt.Errorf("creating %s: %w", host.HostPath(subRoot), err)
		}
	}
	return Open(host, subRoot, rev, opts)
}

// FromRepository binds an already opened repository to rev. The
// FileSystem takes ownership of the repository's storage and closes it
// in Close, including when FromRepository fails.
func FromRepository(repo *git.Repository, rev Revision, opts *Options) (*FileSystem, error) {
	storage := storageCloser(repo)
	root, err := repositoryRoot(repo)
	if err != nil {
		storage.Close()
		return nil, err
	}
	var host HostFS = hostfs.OS()
	if opts != nil && opts.Host != nil {
		host = opts.Host
	}
	subRoot, err := cleanPath("open", filepath.ToSlash(root))
	if err == nil && !host.DirExists(subRoot) {
		err = pathError("open", root, ErrDirectoryNotFound)
	}
	if err != nil {
		storage.Close()
		return nil, err
	}
	return newFileSystem(repo, storage, subRoot, rev, opts)
}

func newFileSystem(repo *git.Repository, storage io.Closer, subRoot string, rev Revision, opts *Options) (*FileSystem, error) {
	if rev == nil {
		rev = RevisionSpec("HEAD")
	}
	b, err := rev.bind(repo)
	if err != nil {
		storage.Close()
		return nil, err
	}
	log := opts.logger()
	b.log = log
	log.Debug("opened repository", zap.String("subroot", subRoot), zap.Stringer("revision", b))
	return &FileSystem{
		repo:    repo,
		storage: storage,
		rev:     b,
		paths:   translator{subRoot: subRoot},
		log:     log,
	}, nil
}

// Close releases the repository. Closing twice is a no-op.
// Files opened from f must not be used after Close.
func (f *FileSystem) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.log.Debug("closing repository", zap.String("subroot", f.paths.subRoot))
	return f.storage.Close()
}

// SubRoot returns the host path the repository was opened at.
func (f *FileSystem) SubRoot() string { return f.paths.subRoot }

// Repository returns the underlying repository.
func (f *FileSystem) Repository() *git.Repository { return f.repo }

// Floating reports whether f follows a branch rather than a fixed
// commit.
func (f *FileSystem) Floating() bool { return f.rev.floating() }

// Revision describes the binding, as "commit <hash>" or "branch <name>".
func (f *FileSystem) Revision() string { return f.rev.String() }

// Commit returns the commit f currently exposes. For a branch binding
// this is the branch head at the time of the call.
func (f *FileSystem) Commit() (*object.Commit, error) {
	if f.closed {
		return nil, fs.ErrClosed
	}
	return f.rev.commit()
}

// CreationTime, LastAccessTime and LastWriteTime all report the author
// time of the bound commit. Git has no per-file times.
func (f *FileSystem) CreationTime(name string) (time.Time, error) {
	return f.commitTime("creationtime", name)
}

func (f *FileSystem) LastAccessTime(name string) (time.Time, error) {
	return f.commitTime("lastaccesstime", name)
}

func (f *FileSystem) LastWriteTime(name string) (time.Time, error) {
	return f.commitTime("lastwritetime", name)
}

func (f *FileSystem) commitTime(op, name string) (time.Time, error) {
	if _, err := cleanPath(op, name); err != nil {
		return time.Time{}, err
	}
	c, err := f.Commit()
	if err != nil {
		return time.Time{}, pathError(op, name, err)
	}
	return c.Author.When.UTC(), nil
}

// CanWatch reports false: a snapshot never changes.
func (f *FileSystem) CanWatch(name string) bool { return false }

// Watch always fails with errors.ErrUnsupported.
func (f *FileSystem) Watch(name string) error {
	return pathError("watch", name, errors.ErrUnsupported)
}

// Mkdir, Remove, Rename and Chtimes always fail with ErrReadOnly.
func (f *FileSystem) Mkdir(name string, perm fs.FileMode) error {
	return pathError("mkdir", name, ErrReadOnly)
}

func (f *FileSystem) Remove(name string) error {
	return pathError("remove", name, ErrReadOnly)
}

func (f *FileSystem) Rename(oldname, newname string) error {
	return &linkError{Op: "rename", Old: oldname, New: newname, Err: ErrReadOnly}
}

func (f *FileSystem) Chtimes(name string, atime, mtime time.Time) error {
	return pathError("chtimes", name, ErrReadOnly)
}

// linkError is the two-path analogue of fs.PathError.
type linkError struct {
	Op, Old, New string
	Err          error
}

func (e *linkError) Error() string { return e.Op + " " + e.Old + " " + e.New + ": " + e.Err.Error() }
func (e *linkError) Unwrap() error { return e.Err }
