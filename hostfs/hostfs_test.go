// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hostfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/util"
)

func TestMemoryMkdirAll(t *testing.T) {
	h := Memory()
	if h.DirExists("/a/b") {
		t.Fatal("DirExists(/a/b) = true before MkdirAll")
	}
	if err := h.MkdirAll("/a/b"); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"/", "/a", "/a/b", "a/b/", "/a/./b"} {
		if !h.DirExists(name) {
			t.Errorf("DirExists(%q) = false, want true", name)
		}
	}
}

func TestDirExistsFile(t *testing.T) {
	h := Memory()
	if err := util.WriteFile(h.Billy(), "/f", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if h.DirExists("/f") {
		t.Error("DirExists on a file = true")
	}
}

func TestChroot(t *testing.T) {
	h := Memory()
	if err := util.WriteFile(h.Billy(), "/repo/x", []byte("hey\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sub, err := h.Chroot("/repo")
	if err != nil {
		t.Fatal(err)
	}
	b, err := util.ReadFile(sub, "x")
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "hey\n" {
		t.Fatalf("read %q, want %q", b, "hey\n")
	}
	root, err := h.Chroot("/")
	if err != nil {
		t.Fatal(err)
	}
	if root != h.Billy() {
		t.Error("Chroot(/) did not return the root file system")
	}
}

func TestDir(t *testing.T) {
	temp := t.TempDir()
	if err := os.Mkdir(filepath.Join(temp, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	h := Dir(temp)
	if !h.DirExists("/sub") {
		t.Error("DirExists(/sub) = false")
	}
	if got, want := h.HostPath("/sub"), filepath.Join(temp, "sub"); got != want {
		t.Errorf("HostPath(/sub) = %q, want %q", got, want)
	}
}
