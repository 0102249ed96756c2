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

// Package fs defines the filesystem the kernel serves user programs from:
// a flat namespace of fixed-size files, and the kernel-wide lock that
// serializes every operation on it.
package fs

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// NameMax is the longest file name the filesystem accepts.
const NameMax = 14

// FileSystem is the on-disk filesystem.
type FileSystem interface {
	// Create creates a file of the given initial size. It fails if a file
	// with that name already exists.
	Create(name string, size uint32) error

	// Remove deletes name from the namespace. Files already open stay
	// usable until closed.
	Remove(name string) error

	// Open opens an existing file at offset 0.
	Open(name string) (File, error)
}

// File is an open file. Each File has its own position. Files never grow:
// writes are truncated at the end of the file.
type File interface {
	// Read reads from the current position and advances it. It returns 0
	// at end of file.
	Read(dst []byte) (int, error)

	// Write writes at the current position and advances it. It returns the
	// number of bytes written, which is short at end of file.
	Write(src []byte) (int, error)

	// Seek sets the position. Positions past the end are allowed.
	Seek(pos uint32)

	// Tell returns the position.
	Tell() uint32

	// Length returns the size of the file in bytes.
	Length() uint32

	// Close releases the file.
	Close() error

	// Reopen returns a new File for the same inode, at offset 0.
	Reopen() (File, error)
}

// NoHolder is the holder of an unlocked Lock.
const NoHolder = 0

// Lock is the kernel-wide filesystem lock. It is not reentrant and records
// its holder so the exit path can verify no thread dies holding it.
type Lock struct {
	mu     sync.Mutex
	holder atomic.Int32
}

// Lock acquires l on behalf of holder, which must not be NoHolder.
func (l *Lock) Lock(holder int32) {
	if l.holder.Load() == holder {
		panic(fmt.Sprintf("filesystem lock re-acquired by %d", holder))
	}
	l.mu.Lock()
	l.holder.Store(holder)
}

// Unlock releases l.
func (l *Lock) Unlock() {
	l.holder.Store(NoHolder)
	l.mu.Unlock()
}

// HeldBy returns true if holder holds l.
func (l *Lock) HeldBy(holder int32) bool {
	return holder != NoHolder && l.holder.Load() == holder
}

// Holder returns the current holder, or NoHolder.
func (l *Lock) Holder() int32 {
	return l.holder.Load()
}
