// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gitfs

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

// A Revision selects the snapshot a FileSystem exposes.
// Use RevisionSpec, PinnedCommit or LocalBranch to make one.
type Revision interface {
	bind(repo *git.Repository) (*binding, error)
}

// RevisionSpec selects a snapshot with a rev-parse expression such as
// "main", "v1.2.0", "HEAD~2" or a commit hash.
//
// If spec names a local branch, the FileSystem follows that branch.
// Otherwise spec is resolved once and peeled to a commit.
func RevisionSpec(spec string) Revision { return revisionSpec(spec) }

// PinnedCommit selects the given commit.
func PinnedCommit(c *object.Commit) Revision { return pinnedCommit{c} }

// LocalBranch selects the current head of a local branch, re-resolved
// on every call. A short name like "main" means refs/heads/main.
// Remote-tracking branches are rejected with ErrInvalidBranchKind.
func LocalBranch(name plumbing.ReferenceName) Revision { return localBranch(name) }

type revisionSpec string

func (s revisionSpec) bind(repo *git.Repository) (*binding, error) {
	if ref := lookupReference(repo, string(s)); ref != nil && ref.Name().IsBranch() {
		return &binding{repo: repo, branch: ref.Name()}, nil
	}
	h, err := repo.ResolveRevision(plumbing.Revision(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrNoSuchCommit, string(s), err)
	}
	c, err := peelCommit(repo, *h)
	if err != nil {
		return nil, err
	}
	return &binding{repo: repo, pinned: c}, nil
}

// lookupReference finds the reference spec names using git's
// rev-parse lookup order, or nil.
func lookupReference(repo *git.Repository, spec string) *plumbing.Reference {
	for _, rule := range plumbing.RefRevParseRules {
		ref, err := repo.Reference(plumbing.ReferenceName(fmt.Sprintf(rule, spec)), false)
		if err == nil {
			return ref
		}
	}
	return nil
}

func peelCommit(repo *git.Repository, h plumbing.Hash) (*object.Commit, error) {
	obj, err := repo.Object(plumbing.AnyObject, h)
	for err == nil {
		switch o := obj.(type) {
		case *object.Commit:
			return o, nil
		case *object.Tag:
			obj, err = o.Object()
		default:
			return nil, fmt.Errorf("%w: %s is a %s", ErrNoSuchCommit, h, obj.Type())
		}
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrNoSuchCommit, h, err)
}

type pinnedCommit struct{ c *object.Commit }

func (p pinnedCommit) bind(repo *git.Repository) (*binding, error) {
	if p.c == nil {
		return nil, fmt.Errorf("%w: nil commit", ErrNoSuchCommit)
	}
	return &binding{repo: repo, pinned: p.c}, nil
}

type localBranch plumbing.ReferenceName

func (b localBranch) bind(repo *git.Repository) (*binding, error) {
	name := plumbing.ReferenceName(b)
	if !strings.HasPrefix(name.String(), "refs/") {
		name = plumbing.NewBranchReferenceName(name.String())
	}
	if !name.IsBranch() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBranchKind, name)
	}
	if _, err := repo.Reference(name, true); err != nil {
		return nil, fmt.Errorf("%w: branch %s: %v", ErrNoSuchCommit, name.Short(), err)
	}
	return &binding{repo: repo, branch: name}, nil
}

// A binding is either a pinned commit or a floating local branch.
// Exactly one of pinned and branch is set.
type binding struct {
	repo   *git.Repository
	log    *zap.Logger
	pinned *object.Commit
	branch plumbing.ReferenceName
}

// commit returns the effective commit. For a branch binding it reads
// the branch reference again on every call and never caches the result.
func (b *binding) commit() (*object.Commit, error) {
	if b.branch == "" {
		return b.pinned, nil
	}
	ref, err := b.repo.Reference(b.branch, true)
	if err != nil {
		return nil, fmt.Errorf("%w: branch %s: %v", ErrNoSuchCommit, b.branch.Short(), err)
	}
	c, err := b.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("%w: branch %s at %s: %v", ErrNoSuchCommit, b.branch.Short(), ref.Hash(), err)
	}
	b.log.Debug("resolved branch", zap.String("branch", b.branch.Short()), zap.Stringer("commit", c.Hash))
	return c, nil
}

func (b *binding) floating() bool { return b.branch != "" }

func (b *binding) String() string {
	if b.floating() {
		return "branch " + b.branch.Short()
	}
	return "commit " + b.pinned.Hash.String()
}
