// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gitfs presents one snapshot of a local Git repository as a
// read-only file system.
//
// A FileSystem is bound either to a fixed commit or to a local branch.
// A branch binding is re-resolved on every call, so a FileSystem bound
// to "main" follows the branch as it moves. Bind to a commit for a
// stable view.
//
// Paths are absolute and slash-separated, rooted at "/". Nothing is
// checked out: trees are walked and blobs are streamed from the object
// store on demand, and no object content is cached between calls.
//
// FS returns an io/fs view of the same snapshot for use with
// fs.WalkDir, http.FileServerFS and similar.
package gitfs
