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

package kernel

import (
	"sort"
	"sync"

	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/errors/linuxerr"
	"pintos.dev/userprog/pkg/fs"
)

// FDTable maps the file descriptors of a process to open files.
//
// Descriptors start at pintos.FirstFileFD and are never reused within a
// table. Callers hold the filesystem lock around every operation that
// opens, closes or uses a file.
type FDTable struct {
	// mu protects below.
	mu sync.Mutex

	files map[int32]fs.File

	// next is the next descriptor to hand out.
	next int32

	// max limits the number of open descriptors.
	max int

	// dead is set by RemoveAll. A dead table accepts no new files.
	dead bool
}

// NewFDTable returns an empty table holding at most max files.
func NewFDTable(max int) *FDTable {
	return &FDTable{
		files: make(map[int32]fs.File),
		next:  pintos.FirstFileFD,
		max:   max,
	}
}

// Add installs file and returns its descriptor. It fails with EMFILE if the
// table is full and with EBADF if the table is dead; the caller still owns
// file then.
func (f *FDTable) Add(file fs.File) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dead {
		return -1, linuxerr.EBADF
	}
	if len(f.files) >= f.max || f.next < 0 {
		return -1, linuxerr.EMFILE
	}
	fd := f.next
	f.next++
	f.files[fd] = file
	return fd, nil
}

// Get returns the file open as fd.
func (f *FDTable) Get(fd int32) (fs.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[fd]
	if !ok {
		return nil, linuxerr.EBADF
	}
	return file, nil
}

// Remove removes fd and returns its file, which the caller closes.
func (f *FDTable) Remove(fd int32) (fs.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[fd]
	if !ok {
		return nil, linuxerr.EBADF
	}
	delete(f.files, fd)
	return file, nil
}

// RemoveAll empties the table, marks it dead and returns the removed files
// in descriptor order.
func (f *FDTable) RemoveAll() []fs.File {
	f.mu.Lock()
	defer f.mu.Unlock()
	fds := f.fdsLocked()
	files := make([]fs.File, 0, len(fds))
	for _, fd := range fds {
		files = append(files, f.files[fd])
	}
	f.files = make(map[int32]fs.File)
	f.dead = true
	return files
}

// Fork returns a copy of the table. Each file is reopened with its own
// position, starting where the original is; the descriptor counter is
// copied.
func (f *FDTable) Fork() (*FDTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	child := &FDTable{
		files: make(map[int32]fs.File, len(f.files)),
		next:  f.next,
		max:   f.max,
		dead:  f.dead,
	}
	for fd, file := range f.files {
		dup, err := file.Reopen()
		if err != nil {
			for _, opened := range child.files {
				opened.Close()
			}
			return nil, err
		}
		dup.Seek(file.Tell())
		child.files[fd] = dup
	}
	return child, nil
}

// Len returns the number of open descriptors.
func (f *FDTable) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

func (f *FDTable) fdsLocked() []int32 {
	fds := make([]int32, 0, len(f.files))
	for fd := range f.files {
		fds = append(fds, fd)
	}
	sort.Slice(fds, func(i, j int) bool { return fds[i] < fds[j] })
	return fds
}
