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
	"fmt"

	"pintos.dev/userprog/pkg/arch"
	"pintos.dev/userprog/pkg/hostarch"
	"pintos.dev/userprog/pkg/loader"
)

// StubSymbol is the entry stub of new threads.
const StubSymbol = "_pthread_stub"

// Main returns the _start entry of a program: it reads argc and argv from
// the initial stack, runs fn and exits with its result.
func Main(fn func(e *Env) int32) arch.Entry {
	return func(cpu *arch.CPU) {
		e := New(cpu)
		args, err := loader.ReadArgs(cpu.Context(), cpu.Memory(), hostarch.Addr(cpu.ESP))
		if err != nil {
			cpu.Fault(hostarch.Addr(cpu.ESP), hostarch.Read)
		}
		e.args = args
		e.Exit(fn(e))
	}
}

// ThreadFunc returns a thread function taking the argument passed to
// PthreadCreate. Returning ends the thread through the stub.
func ThreadFunc(fn func(e *Env, arg uint32)) arch.Entry {
	return func(cpu *arch.CPU) {
		e := New(cpu)
		fn(e, e.Peek(hostarch.Addr(cpu.ESP)+4))
	}
}

// PthreadStub is the entry of new threads. The kernel leaves the thread
// function and its argument above a fake return address; the stub calls
// the function and exits the thread when it returns.
func PthreadStub(cpu *arch.CPU) {
	e := New(cpu)
	sp := hostarch.Addr(cpu.ESP)
	fun, arg := e.Peek(sp+4), e.Peek(sp+8)

	st := arch.Stack{IO: cpu.Memory(), Bottom: sp}
	e.push(&st, arg)
	e.push(&st, 0)
	cpu.ESP = uint32(st.Bottom)
	cpu.Call(hostarch.Addr(fun))
	cpu.ESP += 8
	e.PthreadExit()
}

// Forked returns the entry a forked child resumes at, for use with
// Env.Fork. It drops the fork system call frame, runs fn and exits with its
// result.
func Forked(fn func(e *Env) int32) arch.Entry {
	return func(cpu *arch.CPU) {
		cpu.ESP += 4
		e := New(cpu)
		e.Exit(fn(e))
	}
}

// NewProgram returns a program whose _start runs main. Extra holds further
// symbols: thread functions and fork resume points.
func NewProgram(name, description string, main func(e *Env) int32, extra map[string]arch.Entry) *loader.Program {
	syms := map[string]arch.Entry{
		loader.EntrySymbol: Main(main),
		StubSymbol:         PthreadStub,
	}
	for sym, fn := range extra {
		if _, ok := syms[sym]; ok {
			panic(fmt.Sprintf("program %q redefines symbol %q", name, sym))
		}
		syms[sym] = fn
	}
	return &loader.Program{
		Name:        name,
		Symbols:     syms,
		Description: description,
	}
}
