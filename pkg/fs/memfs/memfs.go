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

// Package memfs provides an in-memory implementation of fs.FileSystem.
//
// Lock order:
//
//	FS.mu
//	  inode.mu
package memfs

import (
	"sync"

	"github.com/google/btree"
	"pintos.dev/userprog/pkg/errors/linuxerr"
	"pintos.dev/userprog/pkg/fs"
)

// inode holds the contents of one file. It outlives its directory entry
// while any File refers to it.
type inode struct {
	// ino is the inode number. It is immutable.
	ino uint32

	// mu protects the fields below.
	mu sync.Mutex

	// data is the file contents. Its length never changes.
	data []byte

	// opens counts open Files.
	opens int

	// removed is set once the name is gone.
	removed bool
}

type dirent struct {
	name  string
	inode *inode
}

func direntLess(a, b *dirent) bool {
	return a.name < b.name
}

// FS is an in-memory flat filesystem.
type FS struct {
	// mu protects the fields below.
	mu sync.Mutex

	// dir is the namespace, ordered by name.
	dir *btree.BTreeG[*dirent]

	// nextIno is the next inode number.
	nextIno uint32

	// live counts inodes still referenced by a name or an open File.
	live int
}

var _ fs.FileSystem = (*FS)(nil)

// New returns an empty filesystem.
func New() *FS {
	return &FS{
		dir:     btree.NewG[*dirent](4, direntLess),
		nextIno: 1,
	}
}

func checkName(name string) error {
	switch {
	case name == "":
		return linuxerr.ENOENT
	case len(name) > fs.NameMax:
		return linuxerr.ENAMETOOLONG
	}
	return nil
}

// Create implements fs.FileSystem.Create.
func (f *FS) Create(name string, size uint32) error {
	if err := checkName(name); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.dir.Get(&dirent{name: name}); ok {
		return linuxerr.EEXIST
	}
	in := &inode{ino: f.nextIno, data: make([]byte, size)}
	f.nextIno++
	f.live++
	f.dir.ReplaceOrInsert(&dirent{name: name, inode: in})
	return nil
}

// Remove implements fs.FileSystem.Remove.
func (f *FS) Remove(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.dir.Delete(&dirent{name: name})
	if !ok {
		return linuxerr.ENOENT
	}
	in := d.inode
	in.mu.Lock()
	defer in.mu.Unlock()
	in.removed = true
	if in.opens == 0 {
		f.live--
	}
	return nil
}

// Open implements fs.FileSystem.Open.
func (f *FS) Open(name string) (fs.File, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.dir.Get(&dirent{name: name})
	if !ok {
		return nil, linuxerr.ENOENT
	}
	return f.newFile(d.inode), nil
}

// newFile returns a new File for in.
//
// Preconditions: f.mu is locked.
func (f *FS) newFile(in *inode) *File {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.opens++
	return &File{fs: f, inode: in}
}

// release drops an open reference on in.
func (f *FS) release(in *inode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in.mu.Lock()
	defer in.mu.Unlock()
	in.opens--
	if in.opens == 0 && in.removed {
		f.live--
	}
}

// WriteFile creates name with exactly the contents of data.
func (f *FS) WriteFile(name string, data []byte) error {
	if err := f.Create(name, uint32(len(data))); err != nil {
		return err
	}
	file, err := f.Open(name)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.Write(data)
	return err
}

// ReadFile returns the contents of name.
func (f *FS) ReadFile(name string) ([]byte, error) {
	file, err := f.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	buf := make([]byte, file.Length())
	n, err := file.Read(buf)
	return buf[:n], err
}

// Names returns the file names in order.
func (f *FS) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, f.dir.Len())
	f.dir.Ascend(func(d *dirent) bool {
		names = append(names, d.name)
		return true
	})
	return names
}

// LiveInodes returns the number of inodes reachable by name or by an open
// file.
func (f *FS) LiveInodes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}
