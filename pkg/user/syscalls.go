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

package user

import (
	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/hostarch"
)

// ThreadID identifies a process or thread.
type ThreadID = int32

// TIDError is returned in place of a ThreadID on failure.
const TIDError ThreadID = pintos.TIDError

func boolArg(v uint32) bool {
	return v&0xff != 0
}

// Practice returns i+1.
func (e *Env) Practice(i int32) int32 {
	return int32(e.Syscall(pintos.SYS_PRACTICE, uint32(i)))
}

// Halt powers off the machine.
func (e *Env) Halt() {
	e.Syscall(pintos.SYS_HALT)
}

// Exit terminates the process with status. It does not return.
func (e *Env) Exit(status int32) {
	e.Syscall(pintos.SYS_EXIT, uint32(status))
}

// Exec starts cmdline in a child process and returns its pid, or TIDError
// if it could not be loaded.
func (e *Env) Exec(cmdline string) ThreadID {
	var pid ThreadID
	e.WithStackString(cmdline, func(addr hostarch.Addr) {
		pid = ThreadID(e.Syscall(pintos.SYS_EXEC, uint32(addr)))
	})
	return pid
}

// Wait waits for child pid to exit and returns its status.
func (e *Env) Wait(pid ThreadID) int32 {
	return int32(e.Syscall(pintos.SYS_WAIT, uint32(pid)))
}

// Create creates a file of size bytes.
func (e *Env) Create(name string, size uint32) bool {
	var ok bool
	e.WithStackString(name, func(addr hostarch.Addr) {
		ok = boolArg(e.Syscall(pintos.SYS_CREATE, uint32(addr), size))
	})
	return ok
}

// Remove deletes a file.
func (e *Env) Remove(name string) bool {
	var ok bool
	e.WithStackString(name, func(addr hostarch.Addr) {
		ok = boolArg(e.Syscall(pintos.SYS_REMOVE, uint32(addr)))
	})
	return ok
}

// Open opens a file and returns its descriptor, or -1.
func (e *Env) Open(name string) int32 {
	var fd int32
	e.WithStackString(name, func(addr hostarch.Addr) {
		fd = int32(e.Syscall(pintos.SYS_OPEN, uint32(addr)))
	})
	return fd
}

// Filesize returns the length of the file open as fd.
func (e *Env) Filesize(fd int32) int32 {
	return int32(e.Syscall(pintos.SYS_FILESIZE, uint32(fd)))
}

// Read reads up to n bytes from fd into buf and returns the count read.
func (e *Env) Read(fd int32, buf hostarch.Addr, n uint32) int32 {
	return int32(e.Syscall(pintos.SYS_READ, uint32(fd), uint32(buf), n))
}

// Write writes n bytes at buf to fd and returns the count written.
func (e *Env) Write(fd int32, buf hostarch.Addr, n uint32) int32 {
	return int32(e.Syscall(pintos.SYS_WRITE, uint32(fd), uint32(buf), n))
}

// Seek sets the position of fd.
func (e *Env) Seek(fd int32, pos uint32) {
	e.Syscall(pintos.SYS_SEEK, uint32(fd), pos)
}

// Tell returns the position of fd.
func (e *Env) Tell(fd int32) uint32 {
	return e.Syscall(pintos.SYS_TELL, uint32(fd))
}

// Close closes fd.
func (e *Env) Close(fd int32) {
	e.Syscall(pintos.SYS_CLOSE, uint32(fd))
}

// Print writes s to the console.
func (e *Env) Print(s string) {
	e.WithStackString(s, func(addr hostarch.Addr) {
		e.Write(pintos.STDOUT_FILENO, addr, uint32(len(s)))
	})
}

// Fork duplicates the process. The parent gets the pid of the child. The
// child resumes at the text symbol resume, which must be built by Forked,
// with the registers of the parent at the trap.
func (e *Env) Fork(resume string) ThreadID {
	eip := e.cpu.EIP
	e.cpu.EIP = uint32(e.Sym(resume))
	pid := ThreadID(e.Syscall(pintos.SYS_FORK))
	e.cpu.EIP = eip
	return pid
}

// PthreadCreate starts a thread running the text symbol fun, which must be
// built by ThreadFunc, with arg. It returns the new tid or TIDError.
func (e *Env) PthreadCreate(fun string, arg uint32) ThreadID {
	stub := e.Sym(StubSymbol)
	return ThreadID(e.Syscall(pintos.SYS_PT_CREATE, uint32(stub), uint32(e.Sym(fun)), arg))
}

// PthreadExit terminates the calling thread. In the main thread it first
// waits for every other thread and then exits the process with status 0.
func (e *Env) PthreadExit() {
	e.Syscall(pintos.SYS_PT_EXIT)
}

// PthreadJoin waits for thread tid and returns tid, or TIDError.
func (e *Env) PthreadJoin(tid ThreadID) ThreadID {
	return ThreadID(e.Syscall(pintos.SYS_PT_JOIN, uint32(tid)))
}

// GetTID returns the tid of the calling thread.
func (e *Env) GetTID() ThreadID {
	return ThreadID(e.Syscall(pintos.SYS_GET_TID))
}

// LockInit initializes the lock_t at lock.
func (e *Env) LockInit(lock hostarch.Addr) bool {
	return boolArg(e.Syscall(pintos.SYS_LOCK_INIT, uint32(lock)))
}

// LockAcquire acquires the lock at lock. Misuse exits the process with
// status 1.
func (e *Env) LockAcquire(lock hostarch.Addr) {
	if !boolArg(e.Syscall(pintos.SYS_LOCK_ACQUIRE, uint32(lock))) {
		e.Exit(1)
	}
}

// LockRelease releases the lock at lock. Misuse exits the process with
// status 1.
func (e *Env) LockRelease(lock hostarch.Addr) {
	if !boolArg(e.Syscall(pintos.SYS_LOCK_RELEASE, uint32(lock))) {
		e.Exit(1)
	}
}

// SemaInit initializes the sema_t at sema with value.
func (e *Env) SemaInit(sema hostarch.Addr, value int32) bool {
	return boolArg(e.Syscall(pintos.SYS_SEMA_INIT, uint32(sema), uint32(value)))
}

// SemaDown decrements the semaphore at sema. Misuse exits the process with
// status 1.
func (e *Env) SemaDown(sema hostarch.Addr) {
	if !boolArg(e.Syscall(pintos.SYS_SEMA_DOWN, uint32(sema))) {
		e.Exit(1)
	}
}

// SemaUp increments the semaphore at sema. Misuse exits the process with
// status 1.
func (e *Env) SemaUp(sema hostarch.Addr) {
	if !boolArg(e.Syscall(pintos.SYS_SEMA_UP, uint32(sema))) {
		e.Exit(1)
	}
}
