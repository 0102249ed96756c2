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

package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pintos.dev/userprog/pintos/config"
	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/devices"
	"pintos.dev/userprog/pkg/fs/memfs"
	"pintos.dev/userprog/pkg/kernel"
	"pintos.dev/userprog/pkg/user/programs"
)

func TestRunCommands(t *testing.T) {
	for _, tc := range []struct {
		name     string
		cmdlines []string
		status   int32
		out      string
	}{
		{
			name:     "echo",
			cmdlines: []string{"echo hi"},
			out:      "hi\necho: exit(0)\n",
		},
		{
			name:     "status",
			cmdlines: []string{"exit 3"},
			status:   3,
			out:      "exit: exit(3)\n",
		},
		{
			name:     "first failure",
			cmdlines: []string{"exit 0", "exit 4", "exit 5"},
			status:   4,
		},
		{
			name:     "halt",
			cmdlines: []string{"halt"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			out := new(bytes.Buffer)
			status, err := runCommands(context.Background(), &config.Config{}, memfs.New(), devices.NewConsole(nil, out), tc.cmdlines)
			if err != nil {
				t.Fatalf("runCommands(%q) failed: %v", tc.cmdlines, err)
			}
			if status != tc.status {
				t.Errorf("runCommands(%q) = %d, want %d", tc.cmdlines, status, tc.status)
			}
			if tc.out != "" && out.String() != tc.out {
				t.Errorf("console got %q, want %q", out.String(), tc.out)
			}
		})
	}
}

func TestRunCommandsErrors(t *testing.T) {
	console := devices.NewConsole(nil, nil)
	if _, err := runCommands(context.Background(), &config.Config{}, memfs.New(), console, []string{"nope"}); err == nil {
		t.Errorf("runCommands(nope) succeeded, want error")
	}
	conf := &config.Config{MaxThreads: pintos.MaxThreads + 1}
	if _, err := runCommands(context.Background(), conf, memfs.New(), console, []string{"echo"}); err == nil {
		t.Errorf("runCommands with max threads %d succeeded, want error", conf.MaxThreads)
	}
}

func TestRunCommandsFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "greeting"), []byte("hello\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	fsys := memfs.New()
	if err := loadFiles(fsys, dir); err != nil {
		t.Fatalf("loadFiles failed: %v", err)
	}
	if diff := cmp.Diff([]string{"greeting"}, fsys.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}

	out := new(bytes.Buffer)
	status, err := runCommands(context.Background(), &config.Config{}, fsys, devices.NewConsole(nil, out), []string{"cat greeting"})
	if err != nil || status != 0 {
		t.Fatalf("runCommands(cat greeting) = %d, %v, want 0, nil", status, err)
	}
	if want := "hello\ncat: exit(0)\n"; out.String() != want {
		t.Errorf("console got %q, want %q", out.String(), want)
	}
}

func TestLoadFilesErrors(t *testing.T) {
	if err := loadFiles(memfs.New(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Errorf("loadFiles(missing) succeeded, want error")
	}
	dir := t.TempDir()
	long := strings.Repeat("x", 64)
	if err := os.WriteFile(filepath.Join(dir, long), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := loadFiles(memfs.New(), dir); err == nil {
		t.Errorf("loadFiles with name %q succeeded, want error", long)
	}
}

func TestCRLFWriter(t *testing.T) {
	var buf bytes.Buffer
	w := crlfWriter{&buf}
	n, err := w.Write([]byte("a\nb\n"))
	if err != nil || n != 4 {
		t.Fatalf("Write = %d, %v, want 4, nil", n, err)
	}
	if got, want := buf.String(), "a\r\nb\r\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSyscallsOutput(t *testing.T) {
	info, err := getCompatibilityInfo(kernel.DefaultSyscallTable)
	if err != nil {
		t.Fatalf("getCompatibilityInfo failed: %v", err)
	}
	if got := len(info[kernel.DefaultSyscallTable].Syscalls); got != pintos.NumSyscalls {
		t.Errorf("got %d syscalls, want %d", got, pintos.NumSyscalls)
	}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		if err := outputTable(&buf, info); err != nil {
			t.Fatalf("outputTable failed: %v", err)
		}
		for _, want := range []string{"NUM", "pthread_create", "unimplemented"} {
			if !strings.Contains(buf.String(), want) {
				t.Errorf("table output missing %q:\n%s", want, buf.String())
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := outputJSON(&buf, info); err != nil {
			t.Fatalf("outputJSON failed: %v", err)
		}
		var got CompatibilityInfo
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		doc := got[kernel.DefaultSyscallTable].Syscalls[pintos.SYS_READ]
		want := SyscallDoc{Name: "read", Args: 3, Result: "int", Support: "full"}
		if diff := cmp.Diff(want, doc, cmp.AllowUnexported(SyscallDoc{})); diff != "" {
			t.Errorf("read doc mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		if err := outputCSV(&buf, info); err != nil {
			t.Fatalf("outputCSV failed: %v", err)
		}
		rows, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatalf("output is not CSV: %v", err)
		}
		if got, want := len(rows), pintos.NumSyscalls+1; got != want {
			t.Fatalf("got %d rows, want %d", got, want)
		}
		if diff := cmp.Diff([]string{kernel.DefaultSyscallTable, "0", "halt", "0", "void", "full"}, rows[1]); diff != "" {
			t.Errorf("first row mismatch (-want +got):\n%s", diff)
		}
	})

	if _, err := getCompatibilityInfo("nope"); err == nil {
		t.Errorf("getCompatibilityInfo(nope) succeeded, want error")
	}
}

func TestListPrograms(t *testing.T) {
	var buf bytes.Buffer
	if err := listPrograms(&buf); err != nil {
		t.Fatalf("listPrograms failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if got, want := len(lines), len(programs.All())+1; got != want {
		t.Fatalf("got %d lines, want %d:\n%s", got, want, buf.String())
	}
	for i, p := range programs.All() {
		if fields := strings.Fields(lines[i+1]); fields[0] != p.Name {
			t.Errorf("line %d lists %q, want %q", i+1, fields[0], p.Name)
		}
	}
}
