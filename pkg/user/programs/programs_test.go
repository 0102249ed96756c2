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

package programs

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pintos.dev/userprog/pkg/devices"
	"pintos.dev/userprog/pkg/fs/memfs"
	"pintos.dev/userprog/pkg/kernel"
	syscalls "pintos.dev/userprog/pkg/syscalls/pintos"
)

func TestPrograms(t *testing.T) {
	for _, tc := range []struct {
		cmdline    string
		stdin      string
		files      map[string]string
		wantStatus int32
		wantOut    string
	}{
		{
			cmdline: "echo hello  world",
			wantOut: "hello world\necho: exit(0)\n",
		},
		{
			cmdline: "cat",
			stdin:   "abc",
			wantOut: "abccat: exit(0)\n",
		},
		{
			cmdline: "cat a b",
			files:   map[string]string{"a": "xyz", "b": "\n"},
			wantOut: "xyz\ncat: exit(0)\n",
		},
		{
			cmdline:    "cat missing",
			wantStatus: 1,
			wantOut:    "cat: missing: cannot open\ncat: exit(1)\n",
		},
		{
			cmdline:    "exit 3",
			wantStatus: 3,
			wantOut:    "exit: exit(3)\n",
		},
		{
			cmdline:    "run exit 5",
			wantStatus: 5,
			wantOut:    "exit: exit(5)\nrun: exit: exit status 5\nrun: exit(5)\n",
		},
		{
			cmdline:    "run nothing",
			wantStatus: -1,
			wantOut:    "run: cannot exec \"nothing\"\nrun: exit(-1)\n",
		},
		{
			cmdline: "fork",
			wantOut: "fork: in child\nfork: exit(7)\nfork: child exited with 7\nfork: exit(0)\n",
		},
		{
			cmdline: "threads 3",
			wantOut: "threads: 3 threads counted 300\nthreads: exit(0)\n",
		},
		{
			cmdline: "sema",
			wantOut: "sema: worker signals\nsema: main woke up\nsema: exit(0)\n",
		},
		{
			cmdline: "sh",
			stdin:   "echo hi\nexit\n",
			wantOut: "$ echo hi\nhi\necho: exit(0)\n$ exit\nsh: exit(0)\n",
		},
		{
			cmdline: "sh",
			stdin:   "nope\n",
			wantOut: "$ nope\nsh: nope: not found\n$ sh: exit(0)\n",
		},
		{
			cmdline: "hello a",
			files:   map[string]string{"hello": "#!echo from script\n"},
			wantOut: "from script hello a\nhello: exit(0)\n",
		},
	} {
		t.Run(tc.cmdline, func(t *testing.T) {
			fsys := memfs.New()
			for name, data := range tc.files {
				if err := fsys.WriteFile(name, []byte(data)); err != nil {
					t.Fatalf("WriteFile(%q) failed: %v", name, err)
				}
			}
			out := new(bytes.Buffer)
			k, err := kernel.NewKernel(kernel.Config{
				FS:           fsys,
				Console:      devices.NewConsole(strings.NewReader(tc.stdin), out),
				Loader:       NewRegistry(fsys),
				SyscallTable: syscalls.Pintos,
			})
			if err != nil {
				t.Fatalf("NewKernel failed: %v", err)
			}
			status, err := k.RunTask(context.Background(), tc.cmdline)
			if err != nil {
				t.Fatalf("RunTask failed: %v", err)
			}
			k.WaitExited()
			if status != tc.wantStatus {
				t.Errorf("exit status got %d, want %d", status, tc.wantStatus)
			}
			if diff := cmp.Diff(tc.wantOut, out.String()); diff != "" {
				t.Errorf("console mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAllHaveEntries(t *testing.T) {
	seen := make(map[string]bool)
	for _, p := range All() {
		if seen[p.Name] {
			t.Errorf("program %q registered twice", p.Name)
		}
		seen[p.Name] = true
		if p.Description == "" {
			t.Errorf("program %q has no description", p.Name)
		}
		if len(p.Name) > 15 {
			t.Errorf("program name %q is longer than a process name", p.Name)
		}
	}
}

func TestHalt(t *testing.T) {
	out := new(bytes.Buffer)
	k, err := kernel.NewKernel(kernel.Config{
		Console:      devices.NewConsole(nil, out),
		Loader:       NewRegistry(nil),
		SyscallTable: syscalls.Pintos,
	})
	if err != nil {
		t.Fatalf("NewKernel failed: %v", err)
	}
	if _, err := k.RunTask(context.Background(), "run halt"); err != kernel.ErrHalted {
		t.Errorf("RunTask got err %v, want %v", err, kernel.ErrHalted)
	}
	k.WaitExited()
	if out.Len() != 0 {
		t.Errorf("console got %q, want nothing", out.String())
	}
}
