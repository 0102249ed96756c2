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
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/arch"
	"pintos.dev/userprog/pkg/hostarch"
	"pintos.dev/userprog/pkg/loader"
	"pintos.dev/userprog/pkg/mm"
	"pintos.dev/userprog/pkg/usermem"
)

type trap struct {
	nr   uint32
	args [3]uint32
}

// stopped unwinds user code at a trap that does not return.
type stopped struct {
	nr     uint32
	status int32
}

// fakeTrapper decodes traps from the stack and answers them with handle.
type fakeTrapper struct {
	t      *testing.T
	as     *mm.AddressSpace
	traps  []trap
	handle func(tr trap) uint32
}

func (f *fakeTrapper) Trap(regs *arch.Registers) {
	ctx := context.Background()
	var words [4]uint32
	if err := usermem.CopyUint32sIn(ctx, f.as, hostarch.Addr(regs.ESP), words[:], usermem.IOOpts{}); err != nil {
		f.t.Fatalf("reading trap frame at %#x: %v", regs.ESP, err)
	}
	tr := trap{nr: words[0], args: [3]uint32{words[1], words[2], words[3]}}
	f.traps = append(f.traps, tr)
	switch tr.nr {
	case pintos.SYS_EXIT:
		panic(stopped{nr: tr.nr, status: int32(tr.args[0])})
	case pintos.SYS_PT_EXIT, pintos.SYS_HALT:
		panic(stopped{nr: tr.nr})
	}
	if f.handle != nil {
		regs.EAX = f.handle(tr)
	}
}

func (f *fakeTrapper) Fault(addr hostarch.Addr, at hostarch.AccessType) {
	f.t.Fatalf("fault at %v (%v)", addr, at)
}

func (f *fakeTrapper) Memory() usermem.IO { return f.as }

func (f *fakeTrapper) Resolve(addr hostarch.Addr) (arch.Entry, bool) { return f.as.Resolve(addr) }

func (f *fakeTrapper) Context() context.Context { return context.Background() }

// newCPU loads prog and returns a CPU positioned at its entry.
func newCPU(t *testing.T, prog *loader.Program, cmdline string) (*arch.CPU, *fakeTrapper) {
	t.Helper()
	img, err := loader.NewRegistry(prog).Load(context.Background(), cmdline)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	t.Cleanup(img.MM.Release)
	f := &fakeTrapper{t: t, as: img.MM}
	return &arch.CPU{Registers: img.Regs, Trapper: f}, f
}

// run calls fn and returns the trap that stopped it, if any.
func run(fn func()) (s *stopped) {
	defer func() {
		if r := recover(); r != nil {
			st, ok := r.(stopped)
			if !ok {
				panic(r)
			}
			s = &st
		}
	}()
	fn()
	return nil
}

func emptyMain(*Env) int32 { return 0 }

func TestSyscallFrame(t *testing.T) {
	cpu, f := newCPU(t, NewProgram("p", "", emptyMain, nil), "p")
	f.handle = func(tr trap) uint32 { return tr.args[0] + tr.args[1] + tr.args[2] }
	e := New(cpu)
	sp := cpu.ESP
	if got := e.Syscall(pintos.SYS_WRITE, 1, 2, 3); got != 6 {
		t.Errorf("Syscall got %d, want 6", got)
	}
	if cpu.ESP != sp {
		t.Errorf("ESP got %#x, want %#x", cpu.ESP, sp)
	}
	want := []trap{{nr: pintos.SYS_WRITE, args: [3]uint32{1, 2, 3}}}
	if diff := cmp.Diff(want, f.traps, cmp.AllowUnexported(trap{})); diff != "" {
		t.Errorf("traps mismatch (-want +got):\n%s", diff)
	}
}

func TestMainExitsWithResult(t *testing.T) {
	var args []string
	prog := NewProgram("args", "", func(e *Env) int32 {
		args = e.Args()
		if e.Arg(5) != "" {
			t.Errorf("Arg(5) got %q, want empty", e.Arg(5))
		}
		return 42
	}, nil)
	cpu, _ := newCPU(t, prog, "args one two")
	s := run(func() { cpu.Call(hostarch.Addr(cpu.EIP)) })
	if s == nil || s.nr != pintos.SYS_EXIT || s.status != 42 {
		t.Errorf("program stopped with %+v, want exit(42)", s)
	}
	if want := []string{"args", "one", "two"}; !cmp.Equal(args, want) {
		t.Errorf("Args got %v, want %v", args, want)
	}
}

func TestAlloc(t *testing.T) {
	cpu, _ := newCPU(t, NewProgram("p", "", emptyMain, nil), "p")
	e := New(cpu)
	if got := e.Alloc(5); got != loader.HeapStart {
		t.Errorf("first Alloc got %v, want %#x", got, loader.HeapStart)
	}
	if got := e.Alloc(1); got != loader.HeapStart+8 {
		t.Errorf("second Alloc got %v, want %#x", got, loader.HeapStart+8)
	}
	if got := e.Alloc(loader.HeapEnd); got != 0 {
		t.Errorf("oversized Alloc got %v, want 0", got)
	}
	addr := e.NewString("heap")
	if got := e.CString(addr); got != "heap" {
		t.Errorf("CString got %q, want %q", got, "heap")
	}
}

func TestSym(t *testing.T) {
	cpu, _ := newCPU(t, NewProgram("p", "", emptyMain, map[string]arch.Entry{"worker": ThreadFunc(func(*Env, uint32) {})}), "p")
	e := New(cpu)
	if got := e.Sym(loader.EntrySymbol); got != hostarch.Addr(cpu.EIP) {
		t.Errorf("Sym(%q) got %v, want %#x", loader.EntrySymbol, got, cpu.EIP)
	}
	for _, name := range []string{StubSymbol, "worker"} {
		if _, ok := cpu.Resolve(e.Sym(name)); !ok {
			t.Errorf("Sym(%q) does not resolve", name)
		}
	}
	if got := e.Sym("missing"); got != 0 {
		t.Errorf("Sym(missing) got %v, want 0", got)
	}
}

func TestPthreadStub(t *testing.T) {
	var got uint32
	prog := NewProgram("p", "", emptyMain, map[string]arch.Entry{
		"worker": ThreadFunc(func(e *Env, arg uint32) { got = arg }),
	})
	cpu, f := newCPU(t, prog, "p")
	e := New(cpu)

	// The frame the kernel builds for a new thread.
	st := arch.Stack{IO: f.as, Bottom: hostarch.Addr(cpu.ESP)}
	for _, v := range []uint32{77, uint32(e.Sym("worker")), 0} {
		if err := st.PushUint32(context.Background(), v); err != nil {
			t.Fatalf("PushUint32 failed: %v", err)
		}
	}
	cpu.ESP = uint32(st.Bottom)

	s := run(func() { PthreadStub(cpu) })
	if s == nil || s.nr != pintos.SYS_PT_EXIT {
		t.Errorf("stub stopped with %+v, want pthread_exit", s)
	}
	if got != 77 {
		t.Errorf("thread argument got %d, want 77", got)
	}
	if cpu.ESP != uint32(st.Bottom)-4 {
		t.Errorf("ESP at pthread_exit got %#x, want %#x", cpu.ESP, uint32(st.Bottom)-4)
	}
}

func TestLockMisuseExits(t *testing.T) {
	for _, tc := range []struct {
		name string
		fn   func(e *Env, addr hostarch.Addr)
	}{
		{"acquire", (*Env).LockAcquire},
		{"release", (*Env).LockRelease},
		{"down", (*Env).SemaDown},
		{"up", (*Env).SemaUp},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cpu, f := newCPU(t, NewProgram("p", "", emptyMain, nil), "p")
			f.handle = func(trap) uint32 { return 0 }
			e := New(cpu)
			s := run(func() { tc.fn(e, e.Alloc(1)) })
			if s == nil || s.nr != pintos.SYS_EXIT || s.status != 1 {
				t.Errorf("misuse stopped with %+v, want exit(1)", s)
			}
		})
	}
}

func TestStringWrappers(t *testing.T) {
	cpu, f := newCPU(t, NewProgram("p", "", emptyMain, nil), "p")
	var names []string
	f.handle = func(tr trap) uint32 {
		names = append(names, New(cpu).CString(hostarch.Addr(tr.args[0])))
		return 1
	}
	e := New(cpu)
	sp := cpu.ESP
	e.Create("a.txt", 10)
	e.Open("b.txt")
	e.Remove("c.txt")
	e.Exec("prog x")
	if cpu.ESP != sp {
		t.Errorf("ESP got %#x, want %#x", cpu.ESP, sp)
	}
	if want := []string{"a.txt", "b.txt", "c.txt", "prog x"}; !cmp.Equal(names, want) {
		t.Errorf("names got %v, want %v", names, want)
	}
}
