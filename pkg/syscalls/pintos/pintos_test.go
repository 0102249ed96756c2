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

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/devices"
	"pintos.dev/userprog/pkg/fs/memfs"
	"pintos.dev/userprog/pkg/kernel"
	"pintos.dev/userprog/pkg/loader"
	"pintos.dev/userprog/pkg/user"
)

// harness is a kernel running the Pintos table over an in-memory
// filesystem.
type harness struct {
	k   *kernel.Kernel
	fs  *memfs.FS
	out *bytes.Buffer
}

func newHarness(t *testing.T, stdin string, progs ...*loader.Program) *harness {
	t.Helper()
	h := &harness{
		fs:  memfs.New(),
		out: new(bytes.Buffer),
	}
	k, err := kernel.NewKernel(kernel.Config{
		FS:           h.fs,
		Console:      devices.NewConsole(strings.NewReader(stdin), h.out),
		Loader:       loader.NewRegistry(progs...),
		SyscallTable: Pintos,
	})
	if err != nil {
		t.Fatalf("NewKernel failed: %v", err)
	}
	h.k = k
	return h
}

// run runs cmdline as the initial process and waits until every thread has
// ended.
func (h *harness) run(t *testing.T, cmdline string) int32 {
	t.Helper()
	status, err := h.k.RunTask(context.Background(), cmdline)
	if err != nil {
		t.Fatalf("RunTask(%q) failed: %v", cmdline, err)
	}
	h.k.WaitExited()
	return status
}

func (h *harness) checkClean(t *testing.T) {
	t.Helper()
	if got := h.k.Stats(); got != (kernel.Stats{}) {
		t.Errorf("Stats after exit got %+v, want all zero", got)
	}
}

// program returns a program named name without extra symbols.
func program(name string, main func(e *user.Env) int32) *loader.Program {
	return user.NewProgram(name, "", main, nil)
}

func TestTableNames(t *testing.T) {
	if got, ok := kernel.LookupSyscallTable(kernel.DefaultSyscallTable); !ok || got != Pintos {
		t.Fatalf("LookupSyscallTable(%q) got (%p, %t), want (%p, true)", kernel.DefaultSyscallTable, got, ok, Pintos)
	}
	for sysno := uintptr(0); sysno < pintos.NumSyscalls; sysno++ {
		sc := Pintos.Lookup(sysno)
		if sc == nil {
			t.Errorf("syscall %d missing", sysno)
			continue
		}
		if want := pintos.SyscallNames[sysno]; sc.Name != want {
			t.Errorf("syscall %d name got %q, want %q", sysno, sc.Name, want)
		}
	}
	if sc := Pintos.Lookup(pintos.NumSyscalls); sc != nil {
		t.Errorf("Lookup(%d) got %q, want nil", pintos.NumSyscalls, sc.Name)
	}
}

func TestUnsupported(t *testing.T) {
	for _, sysno := range []uintptr{pintos.SYS_COMPUTE_E, pintos.SYS_MMAP, pintos.SYS_MUNMAP, pintos.SYS_CHDIR, pintos.SYS_MKDIR, pintos.SYS_READDIR, pintos.SYS_ISDIR, pintos.SYS_INUMBER} {
		if Pintos.Lookup(sysno).Supported() {
			t.Errorf("%s is supported", pintos.SyscallNames[sysno])
		}
	}
}

func TestUnknownSyscallIsIgnored(t *testing.T) {
	var after int32
	h := newHarness(t, "", program("p", func(e *user.Env) int32 {
		e.Syscall(pintos.NumSyscalls + 10)
		e.Syscall(pintos.SYS_MKDIR, 0)
		e.Syscall(-1)
		after = e.Practice(1)
		return 0
	}))
	if got := h.run(t, "p"); got != 0 {
		t.Errorf("exit status got %d, want 0", got)
	}
	if after != 2 {
		t.Errorf("practice after unknown syscalls got %d, want 2", after)
	}
}

func TestPractice(t *testing.T) {
	var got []int32
	h := newHarness(t, "", program("p", func(e *user.Env) int32 {
		got = append(got, e.Practice(0), e.Practice(-2), e.Practice(41))
		return 0
	}))
	h.run(t, "p")
	want := []int32{1, -1, 42}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("practice %d got %d, want %d", i, got[i], want[i])
		}
	}
}
