// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gittest builds small Git repositories for tests.
package gittest

import (
	"path"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"golang.org/x/gitsnap/hostfs"
)

// Epoch is the author time of the first commit made by a Repo.
// Each later commit is one hour after the previous one.
var Epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// A Repo is a non-bare repository with one worktree.
type Repo struct {
	t    testing.TB
	Host *hostfs.FS
	Dir  string // absolute path of the worktree on Host
	Git  *git.Repository

	when time.Time
}

// New initializes a repository at dir on host with main as its
// default branch. host may be nil for a fresh in-memory file system.
func New(t testing.TB, host *hostfs.FS, dir string) *Repo {
	t.Helper()
	if host == nil {
		host = hostfs.Memory()
	}
	if err := host.MkdirAll(dir); err != nil {
		t.Fatal(err)
	}
	wt, err := host.Chroot(dir)
	if err != nil {
		t.Fatal(err)
	}
	dot, err := wt.Chroot(git.GitDirName)
	if err != nil {
		t.Fatal(err)
	}
	st := filesystem.NewStorage(dot, cache.NewObjectLRUDefault())
	repo, err := git.InitWithOptions(st, wt, git.InitOptions{
		DefaultBranch: plumbing.NewBranchReferenceName("main"),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return &Repo{t: t, Host: host, Dir: dir, Git: repo, when: Epoch}
}

// Worktree returns the worktree file system.
func (r *Repo) Worktree() billy.Filesystem {
	wt, err := r.Git.Worktree()
	if err != nil {
		r.t.Fatal(err)
	}
	return wt.Filesystem
}

// Commit writes files into the worktree, removes the files mapped to
// "-", and commits everything on the current branch.
func (r *Repo) Commit(msg string, files map[string]string) plumbing.Hash {
	r.t.Helper()
	wt, err := r.Git.Worktree()
	if err != nil {
		r.t.Fatal(err)
	}
	for name, content := range files {
		if content == "-" {
			if err := util.RemoveAll(wt.Filesystem, name); err != nil {
				r.t.Fatal(err)
			}
			continue
		}
		if err := wt.Filesystem.MkdirAll(path.Dir(name), 0o755); err != nil {
			r.t.Fatal(err)
		}
		if err := util.WriteFile(wt.Filesystem, name, []byte(content), 0o644); err != nil {
			r.t.Fatal(err)
		}
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		r.t.Fatal(err)
	}
	sig := &object.Signature{Name: "Gopher", Email: "gopher@golang.org", When: r.when}
	r.when = r.when.Add(time.Hour)
	h, err := wt.Commit(msg, &git.CommitOptions{All: true, Author: sig, Committer: sig, AllowEmptyCommits: true})
	if err != nil {
		r.t.Fatal(err)
	}
	return h
}

// CommitObject returns the commit with hash h.
func (r *Repo) CommitObject(h plumbing.Hash) *object.Commit {
	r.t.Helper()
	c, err := r.Git.CommitObject(h)
	if err != nil {
		r.t.Fatal(err)
	}
	return c
}

// SetBranch points the branch name at h, creating it if needed,
// without touching the worktree.
func (r *Repo) SetBranch(name string, h plumbing.Hash) {
	r.t.Helper()
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), h)
	if err := r.Git.Storer.SetReference(ref); err != nil {
		r.t.Fatal(err)
	}
}

// SetRef sets an arbitrary reference, such as a remote-tracking branch.
func (r *Repo) SetRef(name plumbing.ReferenceName, h plumbing.Hash) {
	r.t.Helper()
	if err := r.Git.Storer.SetReference(plumbing.NewHashReference(name, h)); err != nil {
		r.t.Fatal(err)
	}
}

// Tag creates a tag at h. Annotated tags get a message.
func (r *Repo) Tag(name string, h plumbing.Hash, annotated bool) {
	r.t.Helper()
	var opts *git.CreateTagOptions
	if annotated {
		opts = &git.CreateTagOptions{
			Tagger:  &object.Signature{Name: "Gopher", Email: "gopher@golang.org", When: r.when},
			Message: "release " + name,
		}
	}
	if _, err := r.Git.CreateTag(name, h, opts); err != nil {
		r.t.Fatal(err)
	}
}

// DeleteBranch removes a branch reference.
func (r *Repo) DeleteBranch(name string) {
	r.t.Helper()
	if err := r.Git.Storer.RemoveReference(plumbing.NewBranchReferenceName(name)); err != nil {
		r.t.Fatal(err)
	}
}
