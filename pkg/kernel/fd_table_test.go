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
	"testing"

	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/errors/linuxerr"
	"pintos.dev/userprog/pkg/fs"
	"pintos.dev/userprog/pkg/fs/memfs"
)

const (
	// maxFD is the maximum number of files to open in a table.
	maxFD = 64
)

func runFDTest(t testing.TB, fn func(fdTable *FDTable, fsys *memfs.FS, open func() fs.File)) {
	t.Helper() // Don't show in stacks.

	fsys := memfs.New()
	if err := fsys.WriteFile("file", []byte("0123456789")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	open := func() fs.File {
		f, err := fsys.Open("file")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		return f
	}
	fn(NewFDTable(maxFD), fsys, open)
}

// TestFDTableMany allocates maxFD FDs, i.e. maxes out the FDTable, until there
// is no room, then makes sure that removing one does not make its descriptor
// available again.
func TestFDTableMany(t *testing.T) {
	runFDTest(t, func(fdTable *FDTable, _ *memfs.FS, open func() fs.File) {
		last := int32(pintos.FirstFileFD - 1)
		for i := 0; i < maxFD; i++ {
			fd, err := fdTable.Add(open())
			if err != nil {
				t.Fatalf("Allocated %v FDs but wanted to allocate %v: %v", i, maxFD, err)
			}
			if fd <= last {
				t.Fatalf("Add got fd %d after %d, want increasing descriptors", fd, last)
			}
			last = fd
		}

		if _, err := fdTable.Add(open()); err != linuxerr.EMFILE {
			t.Fatalf("fdTable.Add in full table: got %v, wanted %v", err, linuxerr.EMFILE)
		}

		if _, err := fdTable.Remove(pintos.FirstFileFD); err != nil {
			t.Fatalf("fdTable.Remove(%d): got %v, wanted nil", pintos.FirstFileFD, err)
		}
		fd, err := fdTable.Add(open())
		if err != nil || fd != last+1 {
			t.Fatalf("fdTable.Add after Remove: got (%d, %v), wanted (%d, nil)", fd, err, last+1)
		}
	})
}

func TestFDTableReserved(t *testing.T) {
	runFDTest(t, func(fdTable *FDTable, _ *memfs.FS, open func() fs.File) {
		fd, err := fdTable.Add(open())
		if err != nil || fd != pintos.FirstFileFD {
			t.Fatalf("first Add got (%d, %v), want (%d, nil)", fd, err, pintos.FirstFileFD)
		}
		for _, fd := range []int32{pintos.STDIN_FILENO, pintos.STDOUT_FILENO, -1, 1000} {
			if _, err := fdTable.Get(fd); err != linuxerr.EBADF {
				t.Errorf("Get(%d) got %v, want %v", fd, err, linuxerr.EBADF)
			}
			if _, err := fdTable.Remove(fd); err != linuxerr.EBADF {
				t.Errorf("Remove(%d) got %v, want %v", fd, err, linuxerr.EBADF)
			}
		}
	})
}

func TestFDTableRemoveAll(t *testing.T) {
	runFDTest(t, func(fdTable *FDTable, _ *memfs.FS, open func() fs.File) {
		var fds []int32
		for i := 0; i < 3; i++ {
			fd, err := fdTable.Add(open())
			if err != nil {
				t.Fatalf("Add failed: %v", err)
			}
			fds = append(fds, fd)
		}
		files := fdTable.RemoveAll()
		if len(files) != 3 {
			t.Fatalf("RemoveAll got %d files, want 3", len(files))
		}
		for _, f := range files {
			if err := f.Close(); err != nil {
				t.Errorf("Close failed: %v", err)
			}
		}
		for _, fd := range fds {
			if _, err := fdTable.Get(fd); err != linuxerr.EBADF {
				t.Errorf("Get(%d) after RemoveAll got %v, want %v", fd, err, linuxerr.EBADF)
			}
		}
		f := open()
		defer f.Close()
		if _, err := fdTable.Add(f); err != linuxerr.EBADF {
			t.Errorf("Add to dead table got %v, want %v", err, linuxerr.EBADF)
		}
	})
}

func TestFDTableFork(t *testing.T) {
	runFDTest(t, func(fdTable *FDTable, _ *memfs.FS, open func() fs.File) {
		file := open()
		fd, err := fdTable.Add(file)
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		file.Seek(4)

		child, err := fdTable.Fork()
		if err != nil {
			t.Fatalf("Fork failed: %v", err)
		}
		dup, err := child.Get(fd)
		if err != nil {
			t.Fatalf("child Get(%d) failed: %v", fd, err)
		}
		if dup == file {
			t.Fatalf("child shares the file of the parent")
		}
		if got := dup.Tell(); got != 4 {
			t.Errorf("child Tell got %d, want 4", got)
		}

		buf := make([]byte, 2)
		if _, err := dup.Read(buf); err != nil {
			t.Fatalf("child Read failed: %v", err)
		}
		if got := file.Tell(); got != 4 {
			t.Errorf("parent Tell after child read got %d, want 4", got)
		}

		next, err := child.Add(open())
		if err != nil || next != fd+1 {
			t.Errorf("child Add got (%d, %v), want (%d, nil)", next, err, fd+1)
		}
	})
}
