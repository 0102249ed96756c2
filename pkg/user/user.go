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

// Package user is the runtime of user programs: system call wrappers,
// access to the program's own memory and the entry points the loader starts
// programs and threads at.
//
// Everything here runs in user mode. It sees only the CPU registers and the
// process address space, and it reaches the kernel only by trapping with
// the system call number and arguments on the stack.
package user

import (
	"context"

	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/arch"
	"pintos.dev/userprog/pkg/hostarch"
	"pintos.dev/userprog/pkg/loader"
	"pintos.dev/userprog/pkg/usermem"
)

// Env is the user-mode view of one thread.
type Env struct {
	cpu *arch.CPU

	// args is set by Main.
	args []string
}

// New returns the environment of code running on cpu.
func New(cpu *arch.CPU) *Env {
	return &Env{cpu: cpu}
}

// CPU returns the CPU the environment runs on.
func (e *Env) CPU() *arch.CPU {
	return e.cpu
}

func (e *Env) ctx() context.Context {
	return e.cpu.Context()
}

func (e *Env) mem() usermem.IO {
	return e.cpu.Memory()
}

// Syscall traps into the kernel with system call nr. The arguments are
// pushed in reverse order followed by nr, as the C wrappers do, and popped
// again after the trap.
func (e *Env) Syscall(nr int, args ...uint32) uint32 {
	st := arch.Stack{IO: e.mem(), Bottom: hostarch.Addr(e.cpu.ESP)}
	for i := len(args) - 1; i >= 0; i-- {
		e.push(&st, args[i])
	}
	e.push(&st, uint32(nr))
	e.cpu.ESP = uint32(st.Bottom)
	e.cpu.Trap(&e.cpu.Registers)
	e.cpu.ESP += uint32(4 * (len(args) + 1))
	return e.cpu.EAX
}

func (e *Env) push(st *arch.Stack, v uint32) {
	if err := st.PushUint32(e.ctx(), v); err != nil {
		e.cpu.Fault(st.Bottom-4, hostarch.Write)
	}
}

// Peek reads the word at addr.
func (e *Env) Peek(addr hostarch.Addr) uint32 {
	v, err := usermem.CopyUint32In(e.ctx(), e.mem(), addr, usermem.IOOpts{})
	if err != nil {
		e.cpu.Fault(addr, hostarch.Read)
	}
	return v
}

// Poke writes the word v at addr.
func (e *Env) Poke(addr hostarch.Addr, v uint32) {
	if err := usermem.CopyUint32Out(e.ctx(), e.mem(), addr, v, usermem.IOOpts{}); err != nil {
		e.cpu.Fault(addr, hostarch.Write)
	}
}

// Bytes reads n bytes at addr.
func (e *Env) Bytes(addr hostarch.Addr, n int) []byte {
	b := make([]byte, n)
	if _, err := e.mem().CopyIn(e.ctx(), addr, b, usermem.IOOpts{}); err != nil {
		e.cpu.Fault(addr, hostarch.Read)
	}
	return b
}

// PutBytes writes b at addr.
func (e *Env) PutBytes(addr hostarch.Addr, b []byte) {
	if _, err := e.mem().CopyOut(e.ctx(), addr, b, usermem.IOOpts{}); err != nil {
		e.cpu.Fault(addr, hostarch.Write)
	}
}

// CString reads the NUL-terminated string at addr.
func (e *Env) CString(addr hostarch.Addr) string {
	s, err := usermem.CopyStringIn(e.ctx(), e.mem(), addr, pintos.PageSize, usermem.IOOpts{})
	if err != nil {
		e.cpu.Fault(addr, hostarch.Read)
	}
	return s
}

// Alloc returns n bytes of zeroed heap, or 0 if the heap is exhausted. Heap
// memory is never freed. Threads of a process allocate concurrently by
// compare-and-swap on the break word.
func (e *Env) Alloc(n uint32) hostarch.Addr {
	for {
		brk, err := e.mem().LoadUint32(e.ctx(), loader.BreakAddr, usermem.IOOpts{})
		if err != nil {
			e.cpu.Fault(loader.BreakAddr, hostarch.Read)
		}
		next := (uint64(brk) + uint64(n) + 3) &^ 3
		if next > loader.HeapEnd {
			return 0
		}
		prev, err := e.mem().CompareAndSwapUint32(e.ctx(), loader.BreakAddr, brk, uint32(next), usermem.IOOpts{})
		if err != nil {
			e.cpu.Fault(loader.BreakAddr, hostarch.Write)
		}
		if prev == brk {
			return hostarch.Addr(brk)
		}
	}
}

// NewString copies s and a terminating NUL to the heap.
func (e *Env) NewString(s string) hostarch.Addr {
	addr := e.Alloc(uint32(len(s) + 1))
	if addr == 0 {
		return 0
	}
	e.PutBytes(addr, append([]byte(s), 0))
	return addr
}

// WithStackString pushes s and a terminating NUL on the stack, calls fn
// with its address and pops it again.
func (e *Env) WithStackString(s string, fn func(addr hostarch.Addr)) {
	sp := e.cpu.ESP
	st := arch.Stack{IO: e.mem(), Bottom: hostarch.Addr(sp)}
	addr, err := st.PushString(e.ctx(), s)
	if err != nil {
		e.cpu.Fault(st.Bottom-hostarch.Addr(len(s)+1), hostarch.Write)
	}
	st.Align(4)
	e.cpu.ESP = uint32(st.Bottom)
	fn(addr)
	e.cpu.ESP = sp
}

// Sym returns the address of the text symbol name, or 0 if the program has
// no such symbol.
func (e *Env) Sym(name string) hostarch.Addr {
	count := e.Peek(loader.SymtabAddr)
	for i := uint32(0); i < count; i++ {
		ent := loader.SymtabAddr + 4 + hostarch.Addr(i*loader.SymEntrySize)
		b := e.Bytes(ent, loader.SymEntrySize)
		if symName(b[4:]) == name {
			return hostarch.Addr(usermem.ByteOrder.Uint32(b))
		}
	}
	return 0
}

func symName(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Args returns the command line arguments of the program. It is only set
// in the environment passed by Main.
func (e *Env) Args() []string {
	return e.args
}

// Arg returns argument i, or "" if there are not that many.
func (e *Env) Arg(i int) string {
	if i < 0 || i >= len(e.args) {
		return ""
	}
	return e.args[i]
}
