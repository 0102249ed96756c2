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

// Package pintos provides the syscall table of the Pintos user ABI and its
// implementations.
package pintos

import (
	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/kernel"
)

// Pintos is the table of Pintos syscalls. Entries without a function are
// numbered but not supported; calls to them are logged and ignored.
var Pintos = &kernel.SyscallTable{
	Name: kernel.DefaultSyscallTable,
	Table: map[uintptr]kernel.Syscall{
		pintos.SYS_HALT:         {Name: "halt", Fn: Halt},
		pintos.SYS_EXIT:         {Name: "exit", NumArgs: 1, Fn: Exit},
		pintos.SYS_EXEC:         {Name: "exec", NumArgs: 1, Result: kernel.ResultInt, Fn: Exec},
		pintos.SYS_WAIT:         {Name: "wait", NumArgs: 1, Result: kernel.ResultInt, Fn: Wait},
		pintos.SYS_CREATE:       {Name: "create", NumArgs: 2, Result: kernel.ResultBool, Fn: Create},
		pintos.SYS_REMOVE:       {Name: "remove", NumArgs: 1, Result: kernel.ResultBool, Fn: Remove},
		pintos.SYS_OPEN:         {Name: "open", NumArgs: 1, Result: kernel.ResultInt, Fn: Open},
		pintos.SYS_FILESIZE:     {Name: "filesize", NumArgs: 1, Result: kernel.ResultInt, Fn: Filesize},
		pintos.SYS_READ:         {Name: "read", NumArgs: 3, Result: kernel.ResultInt, Fn: Read},
		pintos.SYS_WRITE:        {Name: "write", NumArgs: 3, Result: kernel.ResultInt, Fn: Write},
		pintos.SYS_SEEK:         {Name: "seek", NumArgs: 2, Fn: Seek},
		pintos.SYS_TELL:         {Name: "tell", NumArgs: 1, Result: kernel.ResultInt, Fn: Tell},
		pintos.SYS_CLOSE:        {Name: "close", NumArgs: 1, Fn: Close},
		pintos.SYS_PRACTICE:     {Name: "practice", NumArgs: 1, Result: kernel.ResultInt, Fn: Practice},
		pintos.SYS_COMPUTE_E:    {Name: "compute_e", NumArgs: 1, Result: kernel.ResultInt},
		pintos.SYS_PT_CREATE:    {Name: "pthread_create", NumArgs: 3, Result: kernel.ResultInt, Fn: PthreadCreate},
		pintos.SYS_PT_EXIT:      {Name: "pthread_exit", Fn: PthreadExit},
		pintos.SYS_PT_JOIN:      {Name: "pthread_join", NumArgs: 1, Result: kernel.ResultInt, Fn: PthreadJoin},
		pintos.SYS_LOCK_INIT:    {Name: "lock_init", NumArgs: 1, Result: kernel.ResultBool, Fn: LockInit},
		pintos.SYS_LOCK_ACQUIRE: {Name: "lock_acquire", NumArgs: 1, Result: kernel.ResultBool, Fn: LockAcquire},
		pintos.SYS_LOCK_RELEASE: {Name: "lock_release", NumArgs: 1, Result: kernel.ResultBool, Fn: LockRelease},
		pintos.SYS_SEMA_INIT:    {Name: "sema_init", NumArgs: 2, Result: kernel.ResultBool, Fn: SemaInit},
		pintos.SYS_SEMA_DOWN:    {Name: "sema_down", NumArgs: 1, Result: kernel.ResultBool, Fn: SemaDown},
		pintos.SYS_SEMA_UP:      {Name: "sema_up", NumArgs: 1, Result: kernel.ResultBool, Fn: SemaUp},
		pintos.SYS_GET_TID:      {Name: "get_tid", Result: kernel.ResultInt, Fn: GetTID},
		pintos.SYS_MMAP:         {Name: "mmap", NumArgs: 2, Result: kernel.ResultInt},
		pintos.SYS_MUNMAP:       {Name: "munmap", NumArgs: 1},
		pintos.SYS_CHDIR:        {Name: "chdir", NumArgs: 1, Result: kernel.ResultBool},
		pintos.SYS_MKDIR:        {Name: "mkdir", NumArgs: 1, Result: kernel.ResultBool},
		pintos.SYS_READDIR:      {Name: "readdir", NumArgs: 2, Result: kernel.ResultBool},
		pintos.SYS_ISDIR:        {Name: "isdir", NumArgs: 1, Result: kernel.ResultBool},
		pintos.SYS_INUMBER:      {Name: "inumber", NumArgs: 1, Result: kernel.ResultInt},
		pintos.SYS_FORK:         {Name: "fork", Result: kernel.ResultInt, Fn: Fork},
	},
}

func init() {
	kernel.RegisterSyscallTable(Pintos)
}
