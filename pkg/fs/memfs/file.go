// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memfs

import (
	"sync"

	"pintos.dev/userprog/pkg/errors/linuxerr"
	"pintos.dev/userprog/pkg/fs"
)

// File implements fs.File.
type File struct {
	fs    *FS
	inode *inode

	// mu protects the fields below.
	mu     sync.Mutex
	pos    uint32
	closed bool
}

var _ fs.File = (*File)(nil)

// Read implements fs.File.Read.
func (f *File) Read(dst []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, linuxerr.EBADF
	}
	f.inode.mu.Lock()
	defer f.inode.mu.Unlock()
	if f.pos >= uint32(len(f.inode.data)) {
		return 0, nil
	}
	n := copy(dst, f.inode.data[f.pos:])
	f.pos += uint32(n)
	return n, nil
}

// Write implements fs.File.Write.
func (f *File) Write(src []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, linuxerr.EBADF
	}
	f.inode.mu.Lock()
	defer f.inode.mu.Unlock()
	if f.pos >= uint32(len(f.inode.data)) {
		return 0, nil
	}
	n := copy(f.inode.data[f.pos:], src)
	f.pos += uint32(n)
	return n, nil
}

// Seek implements fs.File.Seek.
func (f *File) Seek(pos uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = pos
}

// Tell implements fs.File.Tell.
func (f *File) Tell() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

// Length implements fs.File.Length.
func (f *File) Length() uint32 {
	f.inode.mu.Lock()
	defer f.inode.mu.Unlock()
	return uint32(len(f.inode.data))
}

// Inumber returns the inode number of the file.
func (f *File) Inumber() uint32 {
	return f.inode.ino
}

// Close implements fs.File.Close.
func (f *File) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return linuxerr.EBADF
	}
	f.closed = true
	f.mu.Unlock()
	f.fs.release(f.inode)
	return nil
}

// Reopen implements fs.File.Reopen.
func (f *File) Reopen() (fs.File, error) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return nil, linuxerr.EBADF
	}
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	return f.fs.newFile(f.inode), nil
}
