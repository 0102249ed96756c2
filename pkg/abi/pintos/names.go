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

// SyscallNames maps system call numbers to the names used in traces and in
// the syscall table listing.
var SyscallNames = map[uintptr]string{
	SYS_HALT:         "halt",
	SYS_EXIT:         "exit",
	SYS_EXEC:         "exec",
	SYS_WAIT:         "wait",
	SYS_CREATE:       "create",
	SYS_REMOVE:       "remove",
	SYS_OPEN:         "open",
	SYS_FILESIZE:     "filesize",
	SYS_READ:         "read",
	SYS_WRITE:        "write",
	SYS_SEEK:         "seek",
	SYS_TELL:         "tell",
	SYS_CLOSE:        "close",
	SYS_PRACTICE:     "practice",
	SYS_COMPUTE_E:    "compute_e",
	SYS_PT_CREATE:    "pthread_create",
	SYS_PT_EXIT:      "pthread_exit",
	SYS_PT_JOIN:      "pthread_join",
	SYS_LOCK_INIT:    "lock_init",
	SYS_LOCK_ACQUIRE: "lock_acquire",
	SYS_LOCK_RELEASE: "lock_release",
	SYS_SEMA_INIT:    "sema_init",
	SYS_SEMA_DOWN:    "sema_down",
	SYS_SEMA_UP:      "sema_up",
	SYS_GET_TID:      "get_tid",
	SYS_MMAP:         "mmap",
	SYS_MUNMAP:       "munmap",
	SYS_CHDIR:        "chdir",
	SYS_MKDIR:        "mkdir",
	SYS_READDIR:      "readdir",
	SYS_ISDIR:        "isdir",
	SYS_INUMBER:      "inumber",
	SYS_FORK:         "fork",
}
