// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gitfuse mounts an io/fs file system, typically a Git
// snapshot, as a read-only FUSE file system.
package gitfuse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sync"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"go.uber.org/zap"
	"golang.org/x/gitsnap/gitfs"
)

// Options configures a mount.
type Options struct {
	// Mountpoint is the directory to mount on. It is created if missing.
	Mountpoint string

	// FS is the file system to expose. Files that implement
	// io.ReaderAt or io.Seeker support random access reads; others can
	// only be read sequentially.
	FS fs.FS

	// AllowOther permits other users to access the mount. It requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, nothing is logged.
	Logger *zap.Logger
}

// Mount mounts opts.FS at opts.Mountpoint. The caller must call
// Unmount on the returned server when done.
func Mount(opts Options) (*fuse.Server, error) {
	if opts.Mountpoint == "" {
		return nil, errors.New("gitfuse: mountpoint is required")
	}
	if opts.FS == nil {
		return nil, errors.New("gitfuse: file system is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if err := os.MkdirAll(opts.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", opts.Mountpoint, err)
	}

	// A floating branch can move at any time, so keep kernel caching short.
	entryTimeout := time.Second
	attrTimeout := time.Second
	negativeTimeout := 100 * time.Millisecond

	root := &dirNode{opts: &opts, name: "."}
	server, err := gofuse.Mount(opts.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "gitsnap",
			Name:       "gitsnap",
			AllowOther: opts.AllowOther,
			Options:    []string{"ro"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE file system at %s: %w", opts.Mountpoint, err)
	}
	opts.Logger.Info("mounted snapshot", zap.String("mountpoint", opts.Mountpoint))
	return server, nil
}

// errno maps file system errors to FUSE status codes.
func errno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, fs.ErrNotExist):
		return syscall.ENOENT
	case errors.Is(err, gitfs.ErrNotADirectory):
		return syscall.ENOTDIR
	case errors.Is(err, gitfs.ErrNotAFile):
		return syscall.EISDIR
	case errors.Is(err, fs.ErrPermission):
		return syscall.EROFS
	case errors.Is(err, fs.ErrInvalid):
		return syscall.EINVAL
	}
	return syscall.EIO
}

// stableMode returns the inode type of fi. Everything that is not a
// regular file, such as a submodule link, is shown as a directory.
func stableMode(fi fs.FileInfo) uint32 {
	if fi.Mode().IsRegular() {
		return syscall.S_IFREG
	}
	return syscall.S_IFDIR
}

func fillAttr(out *fuse.Attr, fi fs.FileInfo) {
	out.Mode = stableMode(fi) | uint32(fi.Mode().Perm()&0o555)
	if fi.Mode().IsRegular() {
		out.Size = uint64(fi.Size())
		out.Blocks = (out.Size + 511) / 512
	}
	out.Nlink = 1
	mtime := fi.ModTime()
	out.SetTimes(&mtime, &mtime, &mtime)
}

func newNode(opts *Options, name string, fi fs.FileInfo) gofuse.InodeEmbedder {
	switch {
	case fi.IsDir():
		return &dirNode{opts: opts, name: name}
	case fi.Mode().IsRegular():
		return &fileNode{opts: opts, name: name}
	}
	return &dirNode{opts: opts, name: name, empty: true}
}

// dirNode is a directory. Lookups and listings go to the file system
// on every call.
type dirNode struct {
	gofuse.Inode
	opts  *Options
	name  string // io/fs name
	empty bool   // a submodule link, listed as an empty directory
}

var _ gofuse.InodeEmbedder = (*dirNode)(nil)
var _ gofuse.NodeLookuper = (*dirNode)(nil)
var _ gofuse.NodeReaddirer = (*dirNode)(nil)
var _ gofuse.NodeGetattrer = (*dirNode)(nil)
var _ gofuse.NodeCreater = (*dirNode)(nil)
var _ gofuse.NodeMkdirer = (*dirNode)(nil)
var _ gofuse.NodeUnlinker = (*dirNode)(nil)
var _ gofuse.NodeRmdirer = (*dirNode)(nil)
var _ gofuse.NodeRenamer = (*dirNode)(nil)

func (d *dirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	if d.empty {
		return nil, syscall.ENOENT
	}
	child := path.Join(d.name, name)
	fi, err := fs.Stat(d.opts.FS, child)
	if err != nil {
		return nil, errno(err)
	}
	fillAttr(&out.Attr, fi)
	return d.NewInode(ctx, newNode(d.opts, child, fi), gofuse.StableAttr{Mode: stableMode(fi)}), 0
}

func (d *dirNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	if d.empty {
		return gofuse.NewListDirStream(nil), 0
	}
	list, err := fs.ReadDir(d.opts.FS, d.name)
	if err != nil {
		d.opts.Logger.Debug("readdir failed", zap.String("path", d.name), zap.Error(err))
		return nil, errno(err)
	}
	entries := make([]fuse.DirEntry, 0, len(list))
	for _, e := range list {
		mode := uint32(syscall.S_IFDIR)
		if e.Type().IsRegular() {
			mode = syscall.S_IFREG
		}
		entries = append(entries, fuse.DirEntry{Name: e.Name(), Mode: mode})
	}
	return gofuse.NewListDirStream(entries), 0
}

func (d *dirNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	fi, err := fs.Stat(d.opts.FS, d.name)
	if err != nil {
		return errno(err)
	}
	fillAttr(&out.Attr, fi)
	if d.empty {
		out.Mode = syscall.S_IFDIR | 0o555
	}
	return 0
}

func (d *dirNode) Create(ctx context.Context, name string, flags, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	return nil, nil, 0, syscall.EROFS
}

func (d *dirNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	return nil, syscall.EROFS
}

func (d *dirNode) Unlink(ctx context.Context, name string) syscall.Errno { return syscall.EROFS }
func (d *dirNode) Rmdir(ctx context.Context, name string) syscall.Errno  { return syscall.EROFS }

func (d *dirNode) Rename(ctx context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	return syscall.EROFS
}

// fileNode is a regular file.
type fileNode struct {
	gofuse.Inode
	opts *Options
	name string
}

var _ gofuse.InodeEmbedder = (*fileNode)(nil)
var _ gofuse.NodeGetattrer = (*fileNode)(nil)
var _ gofuse.NodeSetattrer = (*fileNode)(nil)
var _ gofuse.NodeOpener = (*fileNode)(nil)

func (n *fileNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	fi, err := fs.Stat(n.opts.FS, n.name)
	if err != nil {
		return errno(err)
	}
	fillAttr(&out.Attr, fi)
	return 0
}

func (n *fileNode) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	return syscall.EROFS
}

func (n *fileNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_APPEND|syscall.O_TRUNC) != 0 {
		return nil, 0, syscall.EROFS
	}
	f, err := n.opts.FS.Open(n.name)
	if err != nil {
		n.opts.Logger.Debug("open failed", zap.String("path", n.name), zap.Error(err))
		return nil, 0, errno(err)
	}
	return &handle{name: n.name, f: f, log: n.opts.Logger}, 0, 0
}

// handle is an open file. Reads are serialized because they move the
// underlying file's offset.
type handle struct {
	name string
	log  *zap.Logger

	mu  sync.Mutex
	f   fs.File
	off int64 // offset of f, for files without ReadAt or Seek
}

var _ gofuse.FileReader = (*handle)(nil)
var _ gofuse.FileReleaser = (*handle)(nil)

func (h *handle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, err := h.readAt(dest, off)
	if err != nil && err != io.EOF {
		h.log.Error("read failed", zap.String("path", h.name), zap.Int64("offset", off), zap.Error(err))
		return nil, errno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *handle) readAt(dest []byte, off int64) (int, error) {
	switch f := h.f.(type) {
	case io.ReaderAt:
		return f.ReadAt(dest, off)
	case io.Seeker:
		if _, err := f.Seek(off, io.SeekStart); err != nil {
			return 0, err
		}
	default:
		if off != h.off {
			return 0, fmt.Errorf("%s: non-sequential read at %d of a stream at %d: %w", h.name, off, h.off, errors.ErrUnsupported)
		}
	}
	n, err := io.ReadFull(h.f, dest)
	h.off = off + int64(n)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

func (h *handle) Release(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()
	return errno(h.f.Close())
}
