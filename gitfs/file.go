// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gitfs

import (
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/go-git/go-git/v5/plumbing/object"
)

// writeFlags are the os.OpenFile flags that imply modification.
const writeFlags = os.O_WRONLY | os.O_RDWR | os.O_CREATE | os.O_EXCL | os.O_TRUNC | os.O_APPEND

// Open opens the file name for reading.
func (f *FileSystem) Open(name string) (*File, error) {
	n, err := f.resolve("open", name)
	if err != nil {
		return nil, err
	}
	fi, err := f.info("open", n)
	if err != nil {
		return nil, err
	}
	b, err := f.blob("open", n)
	if err != nil {
		return nil, err
	}
	return &File{name: n.name, info: fi, blob: b}, nil
}

// OpenFile is like os.OpenFile. Any flag other than os.O_RDONLY fails
// with ErrReadOnly, whether or not name exists.
func (f *FileSystem) OpenFile(name string, flag int, perm fs.FileMode) (*File, error) {
	if flag&writeFlags != 0 {
		return nil, pathError("open", name, ErrReadOnly)
	}
	return f.Open(name)
}

// A File is an open blob. Content is streamed from the object store as
// it is read; nothing is buffered beyond the current read.
//
// Seeking forward discards content; seeking backward reopens the
// stream.
type File struct {
	name string
	info *fileInfo
	blob *object.Blob

	r      io.ReadCloser
	rpos   int64 // offset of r
	pos    int64
	closed bool
}

var _ = fs.File((*File)(nil))
var _ = io.ReadSeekCloser((*File)(nil))

// Name returns the virtual path of the file.
func (fl *File) Name() string { return fl.name }

// Stat returns the FileInfo of the file.
func (fl *File) Stat() (fs.FileInfo, error) {
	if fl.closed {
		return nil, pathError("stat", fl.name, fs.ErrClosed)
	}
	return fl.info, nil
}

func (fl *File) Read(b []byte) (int, error) {
	if fl.closed {
		return 0, pathError("read", fl.name, fs.ErrClosed)
	}
	if len(b) == 0 {
		return 0, nil
	}
	if fl.pos >= fl.blob.Size {
		return 0, io.EOF
	}
	if fl.r == nil || fl.rpos > fl.pos {
		if err := fl.reopen(); err != nil {
			return 0, err
		}
	}
	if fl.rpos < fl.pos {
		n, err := io.CopyN(io.Discard, fl.r, fl.pos-fl.rpos)
		fl.rpos += n
		if err != nil {
			return 0, fl.readError(err)
		}
	}
	n, err := fl.r.Read(b)
	fl.rpos += int64(n)
	fl.pos += int64(n)
	if err == io.EOF {
		return n, err
	}
	return n, fl.readError(err)
}

func (fl *File) reopen() error {
	if fl.r != nil {
		fl.r.Close()
		fl.r = nil
	}
	r, err := fl.blob.Reader()
	if err != nil {
		return fl.readError(err)
	}
	fl.r, fl.rpos = r, 0
	return nil
}

func (fl *File) readError(err error) error {
	if err == nil {
		return nil
	}
	if err == io.EOF {
		// The stream ended before the stored size.
		err = io.ErrUnexpectedEOF
	}
	return pathError("read", fl.name, err)
}

var errNegativeOffset = errors.New("negative position")

// Seek implements io.Seeker.
func (fl *File) Seek(offset int64, whence int) (int64, error) {
	if fl.closed {
		return 0, pathError("seek", fl.name, fs.ErrClosed)
	}
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += fl.pos
	case io.SeekEnd:
		offset += fl.blob.Size
	default:
		return 0, pathError("seek", fl.name, fs.ErrInvalid)
	}
	if offset < 0 {
		return 0, pathError("seek", fl.name, errNegativeOffset)
	}
	fl.pos = offset
	return offset, nil
}

// Close releases the content stream.
func (fl *File) Close() error {
	if fl.closed {
		return pathError("close", fl.name, fs.ErrClosed)
	}
	fl.closed = true
	if fl.r != nil {
		return fl.r.Close()
	}
	return nil
}
