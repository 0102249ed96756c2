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

// Package arch describes the 32-bit user CPU: its registers, the system
// call argument encoding and the trap interface through which user code
// enters the kernel.
package arch

import (
	"context"
	"fmt"

	"pintos.dev/userprog/pkg/hostarch"
	"pintos.dev/userprog/pkg/usermem"
)

// Registers is the user register file saved on kernel entry.
type Registers struct {
	// EIP is the instruction pointer: an address in the text segment.
	EIP uint32

	// ESP is the user stack pointer.
	ESP uint32

	// EAX carries system call results.
	EAX uint32
}

// String implements fmt.Stringer.String.
func (r Registers) String() string {
	return fmt.Sprintf("eip=%#08x esp=%#08x eax=%#08x", r.EIP, r.ESP, r.EAX)
}

// SyscallArgument is an argument supplied to a syscall implementation. The
// methods used to access the arguments are named after the ***C type name*** and
// they convert to the closest Go type available. For example, Int() refers to a
// 32-bit signed integer argument represented in Go as an int32.
//
// Using the accessor methods guarantees that the conversion between types is
// correct, taking into account size and signedness (i.e., zero-extension vs
// signed-extension).
type SyscallArgument struct {
	// Prefer to use accessor methods instead of 'Value' directly.
	Value uintptr
}

// SyscallArguments represents the set of arguments passed to a syscall.
type SyscallArguments [3]SyscallArgument

// Pointer returns the hostarch.Addr representation of a pointer argument.
func (a SyscallArgument) Pointer() hostarch.Addr {
	return hostarch.Addr(a.Value)
}

// Int returns the int32 representation of a 32-bit signed integer argument.
func (a SyscallArgument) Int() int32 {
	return int32(a.Value)
}

// Uint returns the uint32 representation of a 32-bit unsigned integer argument.
func (a SyscallArgument) Uint() uint32 {
	return uint32(a.Value)
}

// SizeT returns the uint representation of a size_t argument.
func (a SyscallArgument) SizeT() uint {
	return uint(uint32(a.Value))
}

// Entry is user-mode code placed in the text segment. It runs on the thread
// goroutine and reaches the kernel only through cpu.
type Entry func(cpu *CPU)

// Trapper is the kernel side of a CPU.
type Trapper interface {
	// Trap enters the kernel through the system call gate. The system call
	// number and its arguments are at regs.ESP; the result is left in
	// regs.EAX. Trap does not return if the call terminates the thread.
	Trap(regs *Registers)

	// Fault reports a user-mode access to addr that the address space
	// refused. It does not return.
	Fault(addr hostarch.Addr, at hostarch.AccessType)

	// Memory returns the address space of the running process.
	Memory() usermem.IO

	// Resolve returns the code at a text address.
	Resolve(addr hostarch.Addr) (Entry, bool)

	// Context returns the context of the running thread.
	Context() context.Context
}

// CPU is the execution state handed to user code.
type CPU struct {
	Registers
	Trapper
}

// Call runs the code at addr on this CPU. A call through an address that
// holds no code faults.
func (c *CPU) Call(addr hostarch.Addr) {
	fn, ok := c.Resolve(addr)
	if !ok {
		c.Fault(addr, hostarch.Execute)
		return
	}
	fn(c)
}
