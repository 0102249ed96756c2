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
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"pintos.dev/userprog/pkg/arch"
	"pintos.dev/userprog/pkg/hostarch"
	"pintos.dev/userprog/pkg/kernel/ksync"
	"pintos.dev/userprog/pkg/log"
	"pintos.dev/userprog/pkg/usermem"
)

// Thread is a user thread: a CPU running user code of one process on its
// own goroutine.
type Thread struct {
	k *Kernel
	p *Process

	// tid is immutable.
	tid ThreadID

	// slot is the stack slot of the thread. slot is immutable.
	slot int

	priority atomic.Int32

	// cpu holds the registers. It is only used by the thread goroutine.
	cpu arch.CPU

	// inSyscall and sysno attribute faults to the syscall in progress.
	// sysno is -1 until the number has been read.
	inSyscall atomic.Bool
	sysno     atomic.Int32

	// exitStatus is set by PrepareExit. It is only used by the thread
	// goroutine.
	exitStatus int32

	// done is closed when joiners may proceed: on pthread_exit, on
	// pthread_exit of the main thread before it waits for its siblings, and
	// when the goroutine ends.
	done     chan struct{}
	doneOnce sync.Once

	// dead is closed when the goroutine has ended.
	dead chan struct{}

	// joined is set once a joiner has claimed the thread. It is protected
	// by p.threadsMu.
	joined bool
}

var (
	_ arch.Trapper = (*Thread)(nil)
	_ ksync.Waiter = (*Thread)(nil)
)

// TID returns the thread id.
func (t *Thread) TID() ThreadID {
	return t.tid
}

// Process returns the process of t.
func (t *Thread) Process() *Process {
	return t.p
}

// Kernel returns the kernel of t.
func (t *Thread) Kernel() *Kernel {
	return t.k
}

// Registers returns a copy of the registers of t. It must only be called
// by the thread goroutine.
func (t *Thread) Registers() arch.Registers {
	return t.cpu.Registers
}

// Priority implements ksync.Waiter.Priority.
func (t *Thread) Priority() int {
	return int(t.priority.Load())
}

// SetPriority sets the scheduling priority of t.
func (t *Thread) SetPriority(priority int32) {
	t.priority.Store(priority)
}

// Interrupted implements ksync.Waiter.Interrupted.
func (t *Thread) Interrupted() <-chan struct{} {
	return t.p.dying
}

// Context implements arch.Trapper.Context.
func (t *Thread) Context() context.Context {
	return t.k.ctx
}

// Memory implements arch.Trapper.Memory. Accesses that fail fault.
func (t *Thread) Memory() usermem.IO {
	return userIO{t}
}

// Resolve implements arch.Trapper.Resolve.
func (t *Thread) Resolve(addr hostarch.Addr) (arch.Entry, bool) {
	return t.p.mm.Resolve(addr)
}

// Fault implements arch.Trapper.Fault. The process is killed with status
// -1.
func (t *Thread) Fault(addr hostarch.Addr, at hostarch.AccessType) {
	t.checkDoom()
	if t.inSyscall.Load() {
		t.Debugf("Fault at %v (%v) in syscall %d", addr, at, t.sysno.Load())
	} else {
		t.Debugf("Fault at %v (%v), eip %#x", addr, at, t.cpu.EIP)
	}
	t.exitProcess(-1)
}

// Done returns a channel that is closed when joiners of t may proceed.
func (t *Thread) Done() <-chan struct{} {
	return t.done
}

// Dead returns a channel that is closed when the goroutine of t has ended.
func (t *Thread) Dead() <-chan struct{} {
	return t.dead
}

func (t *Thread) signalJoiners() {
	t.doneOnce.Do(func() {
		close(t.done)
	})
}

func (t *Thread) isMain() bool {
	return t == t.p.main
}

// String implements fmt.Stringer.
func (t *Thread) String() string {
	return fmt.Sprintf("[%d:%d]", t.tid, t.p.pid)
}

// Debugf logs a debug message prefixed with the thread and process ids.
func (t *Thread) Debugf(format string, v ...any) {
	if log.IsLogging(log.Debug) {
		log.Log().DebugfAtDepth(1, t.String()+" "+format, v...)
	}
}

// Infof logs an info message prefixed with the thread and process ids.
func (t *Thread) Infof(format string, v ...any) {
	if log.IsLogging(log.Info) {
		log.Log().InfofAtDepth(1, t.String()+" "+format, v...)
	}
}

// Warningf logs a warning prefixed with the thread and process ids.
func (t *Thread) Warningf(format string, v ...any) {
	if log.IsLogging(log.Warning) {
		log.Log().WarningfAtDepth(1, t.String()+" "+format, v...)
	}
}

// run is the thread goroutine.
func (t *Thread) run() {
	defer t.exited()
	defer func() {
		if r := recover(); r != nil {
			t.Warningf("User code panicked: %v", r)
			t.exitProcess(-1)
		}
	}()

	t.cpu.Call(hostarch.Addr(t.cpu.EIP))

	// The entry returned to the fake return address at the top of its
	// stack.
	t.Fault(0, hostarch.Execute)
}

// exited is deferred by the thread goroutine.
func (t *Thread) exited() {
	if t.k.fsLock.HeldBy(int32(t.tid)) {
		panic(fmt.Sprintf("thread %v exited holding the filesystem lock", t))
	}
	t.signalJoiners()
	close(t.dead)
	t.k.threadExited(t)
}

// exitThread ends the thread goroutine. It does not return.
func (t *Thread) exitThread() {
	runtime.Goexit()
}

// checkDoom ends the thread if its process is dying.
func (t *Thread) checkDoom() {
	if t.p.doomed() {
		t.exitThread()
	}
}

// FDTable returns the descriptor table of the process of t.
func (t *Thread) FDTable() *FDTable {
	return t.p.fds
}

// LockFS takes the kernel-wide filesystem lock on behalf of t.
func (t *Thread) LockFS() {
	t.k.fsLock.Lock(int32(t.tid))
}

// UnlockFS releases the filesystem lock taken by LockFS.
func (t *Thread) UnlockFS() {
	t.k.fsLock.Unlock()
}
