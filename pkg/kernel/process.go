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
	"fmt"
	"sync"
	"sync/atomic"

	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/arch"
	"pintos.dev/userprog/pkg/hostarch"
	"pintos.dev/userprog/pkg/mm"
)

// Process is a Pintos process: an address space, a descriptor table and the
// threads running in them.
type Process struct {
	k *Kernel

	// pid is the tid of the main thread. pid is immutable.
	pid ThreadID

	// name is the display name used in exit messages. name is immutable.
	name string

	// mm is owned exclusively by the process and released at exit.
	mm *mm.AddressSpace

	fds *FDTable

	// main is the main thread. main is immutable after start.
	main *Thread

	// record is the exit status record held for this process by its
	// parent, or by the kernel for the initial process.
	record *childRecord

	// parent is cleared when the parent exits.
	parent atomic.Pointer[Process]

	// childrenMu protects children.
	childrenMu sync.Mutex

	// children holds the records of children that have not been waited
	// for. It is nil once the process has exited.
	children map[ThreadID]*childRecord

	// threadsMu protects threads and slots.
	threadsMu sync.Mutex

	// threads holds every thread of the process that has not been joined.
	threads map[ThreadID]*Thread

	// slots maps stack slots to the threads using them. Slot 0 is the
	// stack of the initial thread.
	slots []*Thread

	// exitMu protects exiting and exitStatus.
	exitMu     sync.Mutex
	exiting    bool
	exitStatus int32

	// dying is closed when the process starts to exit or the machine
	// halts. Every blocked thread of the process wakes up and unwinds.
	dying     chan struct{}
	dyingOnce sync.Once

	sync *userSync
}

func (k *Kernel) newProcess(name string, as *mm.AddressSpace, pid ThreadID, rec *childRecord, fds *FDTable) *Process {
	p := &Process{
		k:        k,
		pid:      pid,
		name:     name,
		mm:       as,
		fds:      fds,
		record:   rec,
		children: make(map[ThreadID]*childRecord),
		threads:  make(map[ThreadID]*Thread),
		slots:    make([]*Thread, k.maxThreads+1),
		dying:    make(chan struct{}),
		sync:     &userSync{},
	}
	rec.child = p
	return p
}

// startProcess registers p with the kernel and starts its main thread.
func (k *Kernel) startProcess(p *Process) {
	p.threadsMu.Lock()
	p.threads[p.main.tid] = p.main
	p.slots[p.main.slot] = p.main
	p.threadsMu.Unlock()
	k.addProcess(p)
	k.start(p.main)
}

// String implements fmt.Stringer.
func (p *Process) String() string {
	return fmt.Sprintf("%s[%d]", p.name, p.pid)
}

// PID returns the process id.
func (p *Process) PID() ThreadID {
	return p.pid
}

// Name returns the process name.
func (p *Process) Name() string {
	return p.name
}

// MM returns the address space.
func (p *Process) MM() *mm.AddressSpace {
	return p.mm
}

// FDTable returns the descriptor table.
func (p *Process) FDTable() *FDTable {
	return p.fds
}

// Parent returns the parent process, or nil if it has exited or p is the
// initial process.
func (p *Process) Parent() *Process {
	return p.parent.Load()
}

// NumChildren returns the number of children not yet waited for.
func (p *Process) NumChildren() int {
	p.childrenMu.Lock()
	defer p.childrenMu.Unlock()
	return len(p.children)
}

// beginExit records status as the exit status of p. Only the first caller
// succeeds; it then owns the exit of p and every other thread is doomed.
func (p *Process) beginExit(status int32) bool {
	p.exitMu.Lock()
	if p.exiting {
		p.exitMu.Unlock()
		return false
	}
	p.exiting = true
	p.exitStatus = status
	p.exitMu.Unlock()
	p.doom()
	return true
}

// doom wakes every blocked thread of p and makes each thread exit at its
// next kernel entry or user memory access.
func (p *Process) doom() {
	p.dyingOnce.Do(func() {
		close(p.dying)
	})
}

// doomed returns true once p is dying.
func (p *Process) doomed() bool {
	select {
	case <-p.dying:
		return true
	default:
		return false
	}
}

// addChild records rec in the child registry.
func (p *Process) addChild(rec *childRecord) {
	p.childrenMu.Lock()
	defer p.childrenMu.Unlock()
	if _, ok := p.children[rec.pid]; ok {
		panic(fmt.Sprintf("pid %d registered twice as a child of %v", rec.pid, p))
	}
	p.children[rec.pid] = rec
}

// slotTop returns the initial stack pointer of stack slot i.
func slotTop(i int) hostarch.Addr {
	return hostarch.Addr(pintos.PhysBase - uint32(i)*pintos.MaxStackPages*pintos.PageSize)
}

// newThread returns a thread of p that starts with regs.
func (p *Process) newThread(tid ThreadID, slot int, priority int32, regs arch.Registers) *Thread {
	t := &Thread{
		k:    p.k,
		p:    p,
		tid:  tid,
		slot: slot,
		done: make(chan struct{}),
		dead: make(chan struct{}),
	}
	t.priority.Store(priority)
	t.cpu = arch.CPU{Registers: regs, Trapper: t}
	return t
}
