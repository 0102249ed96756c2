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

// Package kernel implements the user/kernel boundary of a Pintos kernel: the
// system call dispatcher, processes and their descriptor tables, the
// exec/fork/wait/exit protocol, user threads and the
// synchronization objects exposed to user programs.
//
// Each user thread runs on its own goroutine, the thread goroutine. User
// code enters the kernel by trapping (Thread.Trap); everything it asks for
// happens on that goroutine. A thread that terminates unwinds with
// runtime.Goexit, so calls that end a thread never return.
//
// Lock order:
//
//	fs.Lock (kernel-wide filesystem lock)
//		FDTable.mu
//	Process.threadsMu
//	Process.childrenMu
//		childRecord.mu
//	userSync.mu
//	Kernel.mu
package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/devices"
	"pintos.dev/userprog/pkg/fs"
	"pintos.dev/userprog/pkg/fs/memfs"
	"pintos.dev/userprog/pkg/loader"
	"pintos.dev/userprog/pkg/log"
)

// DefaultMaxOpenFiles is the per-process descriptor limit used when
// Config.MaxOpenFiles is zero.
const DefaultMaxOpenFiles = 128

// ErrHalted is returned by RunTask if the machine powered off before the
// initial process exited.
var ErrHalted = errors.New("machine halted")

// Config configures a Kernel. Zero fields get defaults.
type Config struct {
	// FS is the filesystem. Defaults to an empty memfs.
	FS fs.FileSystem

	// Console is the console device. Defaults to a console with no input
	// that discards output.
	Console *devices.Console

	// Loader loads the programs exec names. It is required.
	Loader loader.Loader

	// SyscallTable is the syscall table. Defaults to the table registered
	// as DefaultSyscallTable.
	SyscallTable *SyscallTable

	// MaxOpenFiles is the per-process descriptor limit.
	MaxOpenFiles int

	// MaxThreads is the number of user threads a process may have besides
	// its main thread. At most pintos.MaxThreads.
	MaxThreads int

	// Strace logs every syscall with its arguments and result.
	Strace bool

	// PowerOff is called once when the machine halts.
	PowerOff func()
}

// Kernel represents an emulated Pintos kernel.
type Kernel struct {
	fs           fs.FileSystem
	console      *devices.Console
	loader       loader.Loader
	table        *SyscallTable
	maxOpenFiles int
	maxThreads   int
	strace       bool
	powerOff     func()

	// ctx is the context of thread goroutines.
	ctx context.Context

	// fsLock serializes every filesystem operation.
	fsLock fs.Lock

	// unimplemented reports unknown syscalls.
	unimplemented log.Logger

	nextTID atomic.Int32

	// mu protects processes and threads.
	mu        sync.Mutex
	processes map[ThreadID]*Process
	threads   map[ThreadID]*Thread

	// halted is closed by Halt.
	halted   chan struct{}
	haltOnce sync.Once

	// running counts thread goroutines.
	running sync.WaitGroup

	// records is the number of live child records.
	records atomic.Int64
}

// NewKernel returns a kernel configured by conf.
func NewKernel(conf Config) (*Kernel, error) {
	if conf.Loader == nil {
		return nil, fmt.Errorf("kernel config has no loader")
	}
	k := &Kernel{
		fs:            conf.FS,
		console:       conf.Console,
		loader:        conf.Loader,
		table:         conf.SyscallTable,
		maxOpenFiles:  conf.MaxOpenFiles,
		maxThreads:    conf.MaxThreads,
		strace:        conf.Strace,
		powerOff:      conf.PowerOff,
		ctx:           context.Background(),
		unimplemented: log.BasicRateLimitedLogger(time.Second),
		processes:     make(map[ThreadID]*Process),
		threads:       make(map[ThreadID]*Thread),
		halted:        make(chan struct{}),
	}
	if k.fs == nil {
		k.fs = memfs.New()
	}
	if k.console == nil {
		k.console = devices.NewConsole(nil, nil)
	}
	if k.table == nil {
		st, ok := LookupSyscallTable(DefaultSyscallTable)
		if !ok {
			return nil, fmt.Errorf("no syscall table registered as %q", DefaultSyscallTable)
		}
		k.table = st
	}
	if k.maxOpenFiles <= 0 {
		k.maxOpenFiles = DefaultMaxOpenFiles
	}
	switch {
	case k.maxThreads <= 0:
		k.maxThreads = pintos.MaxThreads
	case k.maxThreads > pintos.MaxThreads:
		return nil, fmt.Errorf("max threads %d exceeds %d", k.maxThreads, pintos.MaxThreads)
	}
	return k, nil
}

// FS returns the filesystem.
func (k *Kernel) FS() fs.FileSystem {
	return k.fs
}

// Console returns the console device.
func (k *Kernel) Console() *devices.Console {
	return k.console
}

// SyscallTable returns the syscall table.
func (k *Kernel) SyscallTable() *SyscallTable {
	return k.table
}

// RunTask loads cmdline as the initial process and blocks until it exits,
// returning its exit status. The kernel itself holds the exit record of
// the initial process. Cancelling ctx halts the machine.
func (k *Kernel) RunTask(ctx context.Context, cmdline string) (int32, error) {
	if k.isHalted() {
		return -1, ErrHalted
	}
	img, err := k.loader.Load(ctx, cmdline)
	if err != nil {
		return -1, fmt.Errorf("loading initial process %q: %w", cmdline, err)
	}
	tid := k.allocTID()
	rec := k.newChildRecord(tid)
	p := k.newProcess(img.Name, img.MM, tid, rec, NewFDTable(k.maxOpenFiles))
	p.main = p.newThread(tid, 0, pintos.PriDefault, img.Regs)
	log.Infof("Starting initial process %d: %q", tid, cmdline)
	k.startProcess(p)

	select {
	case <-rec.exited:
		status := rec.exitStatus()
		rec.DecRef()
		return status, nil
	case <-k.halted:
		return -1, ErrHalted
	case <-ctx.Done():
		k.Halt()
		return -1, ctx.Err()
	}
}

// Halt powers off the machine. Every thread dies at its next kernel entry
// or user memory access, without exit messages.
func (k *Kernel) Halt() {
	k.haltOnce.Do(func() {
		log.Infof("Halting")
		close(k.halted)
		k.mu.Lock()
		for _, p := range k.processes {
			p.doom()
		}
		k.mu.Unlock()
		if k.powerOff != nil {
			k.powerOff()
		}
	})
}

// Halted returns a channel that is closed when the machine halts.
func (k *Kernel) Halted() <-chan struct{} {
	return k.halted
}

func (k *Kernel) isHalted() bool {
	select {
	case <-k.halted:
		return true
	default:
		return false
	}
}
