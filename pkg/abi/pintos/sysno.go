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

// Package pintos contains the constants and types of the Pintos user ABI:
// the 32-bit trap interface between user programs and the kernel.
package pintos

// System call numbers, as pushed on the user stack before the trap.
const (
	SYS_HALT         = 0
	SYS_EXIT         = 1
	SYS_EXEC         = 2
	SYS_WAIT         = 3
	SYS_CREATE       = 4
	SYS_REMOVE       = 5
	SYS_OPEN         = 6
	SYS_FILESIZE     = 7
	SYS_READ         = 8
	SYS_WRITE        = 9
	SYS_SEEK         = 10
	SYS_TELL         = 11
	SYS_CLOSE        = 12
	SYS_PRACTICE     = 13
	SYS_COMPUTE_E    = 14
	SYS_PT_CREATE    = 15
	SYS_PT_EXIT      = 16
	SYS_PT_JOIN      = 17
	SYS_LOCK_INIT    = 18
	SYS_LOCK_ACQUIRE = 19
	SYS_LOCK_RELEASE = 20
	SYS_SEMA_INIT    = 21
	SYS_SEMA_DOWN    = 22
	SYS_SEMA_UP      = 23
	SYS_GET_TID      = 24
	SYS_MMAP         = 25
	SYS_MUNMAP       = 26
	SYS_CHDIR        = 27
	SYS_MKDIR        = 28
	SYS_READDIR      = 29
	SYS_ISDIR        = 30
	SYS_INUMBER      = 31
	SYS_FORK         = 32

	// NumSyscalls is one more than the largest system call number.
	NumSyscalls = 33
)
