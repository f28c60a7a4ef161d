// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package snapweb serves a Git snapshot over HTTP.
//
// The handler serves the snapshot's files and directory listings at /,
// two JSON endpoints and a Markdown renderer:
//
//	/_paths?path=/src&pattern=*.go&recursive=1&target=files
//	/_commit
//	/_render?path=/README.md
package snapweb

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"
	"golang.org/x/gitsnap/gitfs"
)

// handler serves one snapshot.
type handler struct {
	fsys *gitfs.FileSystem
	log  *zap.Logger
	mux  *http.ServeMux
	md   goldmark.Markdown
}

// NewHandler returns a handler for fsys. A nil log discards messages.
func NewHandler(fsys *gitfs.FileSystem, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &handler{
		fsys: fsys,
		log:  log,
		mux:  http.NewServeMux(),
		md:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
	h.mux.Handle("/", http.FileServerFS(fsys.FS()))
	h.mux.HandleFunc("/_paths", h.pathsHandler)
	h.mux.HandleFunc("/_commit", h.commitHandler)
	h.mux.HandleFunc("/_render", h.renderHandler)
	return readOnly(gziphandler.GzipHandler(h.mux))
}

// readOnly rejects every method but GET and HEAD.
func readOnly(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "snapshot is read-only", http.StatusMethodNotAllowed)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// PathsResponse is the body of a /_paths response.
type PathsResponse struct {
	Paths []string `json:"paths"`
}

func (h *handler) pathsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("path")
	if name == "" {
		name = "/"
	}
	if name[0] != '/' {
		name = "/" + name
	}
	recursive := false
	if v := q.Get("recursive"); v != "" {
		var err error
		if recursive, err = strconv.ParseBool(v); err != nil {
			http.Error(w, "bad recursive value", http.StatusBadRequest)
			return
		}
	}
	var target gitfs.Target
	switch q.Get("target") {
	case "", "both", "a":
		target = gitfs.Both
	case "files", "f":
		target = gitfs.FilesOnly
	case "directories", "d":
		target = gitfs.DirectoriesOnly
	default:
		http.Error(w, "bad target value", http.StatusBadRequest)
		return
	}

	res := PathsResponse{Paths: []string{}}
	for p, err := range h.fsys.Paths(name, q.Get("pattern"), recursive, target) {
		if err != nil {
			h.fail(w, r, err)
			return
		}
		res.Paths = append(res.Paths, p)
	}
	writeJSON(w, res)
}

// CommitResponse is the body of a /_commit response.
type CommitResponse struct {
	Hash     string    `json:"hash"`
	Author   string    `json:"author"`
	Time     time.Time `json:"time"`
	Message  string    `json:"message"`
	Revision string    `json:"revision"`
	Floating bool      `json:"floating"`
}

func (h *handler) commitHandler(w http.ResponseWriter, r *http.Request) {
	c, err := h.fsys.Commit()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, CommitResponse{
		Hash:     c.Hash.String(),
		Author:   c.Author.String(),
		Time:     c.Author.When.UTC(),
		Message:  c.Message,
		Revision: h.fsys.Revision(),
		Floating: h.fsys.Floating(),
	})
}

// renderHandler renders a Markdown file from the snapshot as an HTML
// fragment. Raw HTML in the source is omitted.
func (h *handler) renderHandler(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("path")
	if name == "" {
		http.Error(w, "missing path", http.StatusBadRequest)
		return
	}
	if name[0] != '/' {
		name = "/" + name
	}
	src, err := h.readFile(name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := h.md.Convert(src, &buf); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (h *handler) readFile(name string) ([]byte, error) {
	f, err := h.fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		code = http.StatusNotFound
	case errors.Is(err, gitfs.ErrNotADirectory),
		errors.Is(err, gitfs.ErrNotAFile),
		errors.Is(err, path.ErrBadPattern),
		errors.Is(err, fs.ErrInvalid):
		code = http.StatusBadRequest
	}
	if code == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("url", r.URL.String()), zap.Error(err))
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	enc.Encode(v)
}
