// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package export

import (
	"context"
	"errors"
	"flag"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/gitsnap/gitfs"
	"golang.org/x/gitsnap/internal/gittest"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

var slowTest = flag.Bool("slow", false, "run slow tests that write to GCS")

var files = map[string]string{
	"readme.txt":          "hi",
	"src/main.ext":        "package main\n",
	"src/util/helper.ext": "helper\n",
	"docs/guide.md":       "# Guide\n",
}

func snapshot(t *testing.T) *gitfs.FileSystem {
	t.Helper()
	r := gittest.New(t, nil, "/repo")
	r.Commit("initial", files)
	fsys, err := gitfs.Open(r.Host, r.Dir, gitfs.RevisionSpec("main"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { fsys.Close() })
	return fsys
}

// readTree returns the contents of every file below dir.
func readTree(t *testing.T, dir string) map[string]string {
	t.Helper()
	got := map[string]string{}
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		got[filepath.ToSlash(rel)] = string(b)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func TestExportDir(t *testing.T) {
	temp := t.TempDir()
	st, err := Export(context.Background(), snapshot(t), Dir(temp), &Options{Parallel: 2})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(files, readTree(t, temp)); diff != "" {
		t.Errorf("exported tree mismatch (-want +got):\n%s", diff)
	}
	want := Stats{Files: 4, Bytes: int64(len("hi") + len("package main\n") + len("helper\n") + len("# Guide\n"))}
	if st != want {
		t.Errorf("Export stats = %+v, want %+v", st, want)
	}
}

func TestExportPattern(t *testing.T) {
	temp := t.TempDir()
	if _, err := Export(context.Background(), snapshot(t), Dir(temp), &Options{Pattern: "*.ext"}); err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"src/main.ext":        "package main\n",
		"src/util/helper.ext": "helper\n",
	}
	if diff := cmp.Diff(want, readTree(t, temp)); diff != "" {
		t.Errorf("exported tree mismatch (-want +got):\n%s", diff)
	}

	if _, err := Export(context.Background(), snapshot(t), Dir(temp), &Options{Pattern: "["}); err == nil {
		t.Error("Export with a bad pattern succeeded")
	}
}

// failingDest fails to create one file and records the others.
type failingDest struct {
	mu      sync.Mutex
	created []string
}

var errBroken = errors.New("broken destination")

func (d *failingDest) String() string { return "failing" }

func (d *failingDest) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	if name == "src/main.ext" {
		return nil, errBroken
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created = append(d.created, name)
	return nopWriter{}, nil
}

type nopWriter struct{}

func (nopWriter) Write(b []byte) (int, error) { return len(b), nil }
func (nopWriter) Close() error                { return nil }

func TestExportError(t *testing.T) {
	d := &failingDest{}
	_, err := Export(context.Background(), snapshot(t), d, &Options{Parallel: 1})
	if !errors.Is(err, errBroken) {
		t.Errorf("Export error = %v, want %v", err, errBroken)
	}
}

func TestExportCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &failingDest{}
	if _, err := Export(ctx, snapshot(t), d, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Export error = %v, want context.Canceled", err)
	}
	if len(d.created) != 0 {
		t.Errorf("canceled export created %v", d.created)
	}
}

func TestDirWrite(t *testing.T) {
	temp := t.TempDir()
	w, err := Dir(temp).Create(context.Background(), "a/b/fsystest.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("hey\n")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(temp, "a", "b", "fsystest.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "hey\n" {
		t.Fatalf("unexpected file contents %q, want %q", string(b), "hey\n")
	}
	for _, name := range []string{"/abs", "../up", `a\b`, "."} {
		if _, err := Dir(temp).Create(context.Background(), name); !errors.Is(err, fs.ErrInvalid) {
			t.Errorf("Create(%q) error = %v, want fs.ErrInvalid", name, err)
		}
	}
}

func TestFromURL(t *testing.T) {
	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	tests := []struct {
		url  string
		want string // "" for an error
	}{
		{"file:///tmp/out", "file:///tmp/out"},
		{"gs://bucket", "gs://bucket"},
		{"gs://bucket/some/prefix/", "gs://bucket/some/prefix"},
		{"gs:///prefix", ""},
		{"file://", ""},
		{"s3://bucket", ""},
		{"::", ""},
	}
	for _, tt := range tests {
		d, err := FromURL(client, tt.url)
		if tt.want == "" {
			if err == nil {
				t.Errorf("FromURL(%q) = %v, want error", tt.url, d)
			}
			continue
		}
		if err != nil {
			t.Errorf("FromURL(%q): %v", tt.url, err)
			continue
		}
		if got := d.String(); got != tt.want {
			t.Errorf("FromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
	if _, err := FromURL(nil, "gs://bucket"); err == nil {
		t.Error("FromURL(gs) without a client succeeded")
	}
}

func TestGCSExport(t *testing.T) {
	bucket := os.Getenv("GITSNAP_TEST_BUCKET")
	if !*slowTest || bucket == "" {
		t.Skip("writes to the GCS bucket named by GITSNAP_TEST_BUCKET")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	client, err := storage.NewClient(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	prefix := "gitsnap-test/" + time.Now().UTC().Format("20060102T150405")
	st, err := Export(ctx, snapshot(t), NewGCS(client, bucket, prefix), nil)
	if err != nil {
		t.Fatal(err)
	}
	if st.Files != len(files) {
		t.Errorf("exported %d files, want %d", st.Files, len(files))
	}

	it := client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix + "/"})
	got := map[string]bool{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got[attrs.Name[len(prefix)+1:]] = true
		if err := client.Bucket(bucket).Object(attrs.Name).Delete(ctx); err != nil {
			t.Error(err)
		}
	}
	for name := range files {
		if !got[name] {
			t.Errorf("object %s/%s missing", prefix, name)
		}
	}
}
