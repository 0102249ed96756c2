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

package pintos

// Address space layout.
const (
	// PhysBase is the first kernel virtual address. User addresses are
	// strictly below it.
	PhysBase = 0xc0000000

	// PageSize is the size of a user page.
	PageSize = 4096

	// WordSize is the size of a stack slot and of every system call
	// argument.
	WordSize = 4

	// TextBase is where the loader places the first program symbol.
	TextBase = 0x08048000

	// HeapBase is where the loader places the program heap.
	HeapBase = 0x10000000

	// HeapPages is the number of pages in the program heap.
	HeapPages = 16
)

// Reserved file descriptors.
const (
	STDIN_FILENO  = 0
	STDOUT_FILENO = 1

	// FirstFileFD is the smallest descriptor open can return.
	FirstFileFD = 2
)

// Thread and stack limits.
const (
	// MaxStackPages bounds the stack of one thread (8MB). Thread stack
	// slot i starts at PhysBase - i*MaxStackPages*PageSize.
	MaxStackPages = 1 << 11

	// MaxThreads is the number of threads a process may have besides its
	// main thread.
	MaxThreads = 127

	// MaxProcessName is the number of bytes of the first command line
	// token kept as the process name.
	MaxProcessName = 15

	// MaxCmdline bounds the command line passed to exec, including the
	// argument vector built from it. It must fit the initial stack page.
	MaxCmdline = PageSize / 2
)

// Thread priorities.
const (
	PriMin     = 0
	PriDefault = 31
	PriMax     = 63
)

// TIDError is returned where a thread or process id was expected.
const TIDError = -1

// User-visible synchronization objects. lock_t and sema_t are a single char
// in user memory holding a handle into the per-process registry.
const (
	// MaxLocks is the number of user locks a process may create.
	MaxLocks = 256

	// MaxSemaphores is the number of user semaphores a process may create.
	MaxSemaphores = 256
)
