// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gitfs

import (
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/gitsnap/internal/gittest"
)

func TestFSTest(t *testing.T) {
	fsys := newTreeFS(t)
	if err := fstest.TestFS(fsys.FS(), "readme.txt", "src/main.ext", "src/util/notes.md", "bin"); err != nil {
		t.Fatal(err)
	}
}

func TestFSReadDirSorted(t *testing.T) {
	r := gittest.New(t, nil, "/order")
	r.Commit("order", map[string]string{
		"a.go":   "1",
		"a/x.go": "2",
		"a0":     "3",
	})
	fsys := open(t, r, nil)

	// Trees sort as if their names ended in a slash.
	got, err := collect(fsys.Paths("/", "*", false, Both))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"/a.go", "/a", "/a0"}, got); diff != "" {
		t.Errorf("Paths mismatch (-want +got):\n%s", diff)
	}

	entries, err := fs.ReadDir(fsys.FS(), ".")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if diff := cmp.Diff([]string{"a", "a.go", "a0"}, names); diff != "" {
		t.Errorf("ReadDir mismatch (-want +got):\n%s", diff)
	}
}

func TestFSErrors(t *testing.T) {
	fsys := newTreeFS(t).FS()
	tests := []struct {
		name string
		want error
	}{
		{"/readme.txt", fs.ErrInvalid},
		{`src\main.ext`, fs.ErrInvalid},
		{"src/", fs.ErrInvalid},
		{"missing", fs.ErrNotExist},
		{"readme.txt/x", fs.ErrNotExist},
	}
	for _, tt := range tests {
		_, err := fsys.Open(tt.name)
		if !errors.Is(err, tt.want) {
			t.Errorf("Open(%q) error = %v, want %v", tt.name, err, tt.want)
		}
		var pe *fs.PathError
		if errors.As(err, &pe) && pe.Path != tt.name {
			t.Errorf("Open(%q) error path = %q", tt.name, pe.Path)
		}
	}
	if _, err := fs.ReadFile(fsys, "src"); !errors.Is(err, ErrNotAFile) {
		t.Errorf("ReadFile(src) error = %v, want ErrNotAFile", err)
	}
	if _, err := fs.ReadDir(fsys, "readme.txt"); !errors.Is(err, ErrNotADirectory) {
		t.Errorf("ReadDir(readme.txt) error = %v, want ErrNotADirectory", err)
	}
}

func TestFileSeek(t *testing.T) {
	r := gittest.New(t, nil, "/seek")
	const content = "0123456789abcdef"
	r.Commit("seek", map[string]string{"data": content})
	fsys := open(t, r, nil)

	f, err := fsys.Open("/data")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if f.Name() != "/data" {
		t.Errorf("Name() = %q", f.Name())
	}

	read := func(n int) string {
		t.Helper()
		b := make([]byte, n)
		m, err := io.ReadFull(f, b)
		if err != nil && err != io.ErrUnexpectedEOF {
			t.Fatal(err)
		}
		return string(b[:m])
	}
	if got := read(4); got != "0123" {
		t.Errorf("read = %q, want 0123", got)
	}
	if off, err := f.Seek(10, io.SeekStart); off != 10 || err != nil {
		t.Fatalf("Seek(10, start) = %d, %v", off, err)
	}
	if got := read(3); got != "abc" {
		t.Errorf("read after forward seek = %q, want abc", got)
	}
	if off, _ := f.Seek(-12, io.SeekCurrent); off != 1 {
		t.Fatalf("Seek(-12, current) = %d, want 1", off)
	}
	if got := read(2); got != "12" {
		t.Errorf("read after backward seek = %q, want 12", got)
	}
	if off, _ := f.Seek(-2, io.SeekEnd); off != 14 {
		t.Fatalf("Seek(-2, end) = %d, want 14", off)
	}
	if got := read(10); got != "ef" {
		t.Errorf("read at end = %q, want ef", got)
	}
	if n, err := f.Read(make([]byte, 1)); n != 0 || err != io.EOF {
		t.Errorf("Read at EOF = %d, %v; want 0, EOF", n, err)
	}
	if _, err := f.Seek(-1, io.SeekStart); err == nil {
		t.Error("Seek(-1, start) succeeded")
	}
	if _, err := f.Seek(0, 42); !errors.Is(err, fs.ErrInvalid) {
		t.Errorf("Seek whence 42 error = %v, want fs.ErrInvalid", err)
	}

	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Read(make([]byte, 1)); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("Read after Close = %v, want fs.ErrClosed", err)
	}
	if err := f.Close(); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("second Close = %v, want fs.ErrClosed", err)
	}
}

func TestFSReadFile(t *testing.T) {
	fsys := newTreeFS(t).FS()
	b, err := fs.ReadFile(fsys, "src/util/helper.ext")
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "helper\n" {
		t.Errorf("ReadFile = %q", b)
	}
	matches, err := fs.Glob(fsys, "src/*/*.md")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"src/util/notes.md"}, matches); diff != "" {
		t.Errorf("Glob mismatch (-want +got):\n%s", diff)
	}
	var walked []string
	err = fs.WalkDir(fsys, "docs", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		walked = append(walked, p)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(walked, " "); got != "docs docs/guide.md" {
		t.Errorf("WalkDir visited %q", got)
	}
}
