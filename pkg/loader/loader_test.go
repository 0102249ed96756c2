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

package loader

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/arch"
	"pintos.dev/userprog/pkg/fs/memfs"
	"pintos.dev/userprog/pkg/hostarch"
	"pintos.dev/userprog/pkg/usermem"
)

func nop(*arch.CPU) {}

func testProgram(name string) *Program {
	return &Program{
		Name: name,
		Symbols: map[string]arch.Entry{
			EntrySymbol: nop,
			"helper":    nop,
		},
	}
}

func TestLoadArgs(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(testProgram("echo"))
	img, err := r.Load(ctx, "  echo   x  yz ")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer img.MM.Release()

	if want := []string{"echo", "x", "yz"}; !cmp.Equal(img.Argv, want) {
		t.Errorf("Argv got %v, want %v", img.Argv, want)
	}
	sp := hostarch.Addr(img.Regs.ESP)
	if (sp+4)%16 != 0 {
		t.Errorf("argc at %v is not 16-byte aligned", sp+4)
	}
	ret, err := usermem.CopyUint32In(ctx, img.MM, sp, usermem.IOOpts{})
	if err != nil || ret != 0 {
		t.Errorf("fake return address got (%d, %v), want (0, nil)", ret, err)
	}
	args, err := ReadArgs(ctx, img.MM, sp)
	if err != nil {
		t.Fatalf("ReadArgs failed: %v", err)
	}
	if diff := cmp.Diff(img.Argv, args); diff != "" {
		t.Errorf("stack argv mismatch (-want +got):\n%s", diff)
	}

	// argv[argc] is NULL.
	argvAddr, _ := usermem.CopyUint32In(ctx, img.MM, sp+8, usermem.IOOpts{})
	null, err := usermem.CopyUint32In(ctx, img.MM, hostarch.Addr(argvAddr)+4*3, usermem.IOOpts{})
	if err != nil || null != 0 {
		t.Errorf("argv[argc] got (%#x, %v), want (0, nil)", null, err)
	}
}

func TestLoadEntry(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(testProgram("prog"))
	img, err := r.Load(ctx, "prog")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer img.MM.Release()

	fn, ok := img.MM.Resolve(hostarch.Addr(img.Regs.EIP))
	if !ok || fn == nil {
		t.Fatalf("EIP %#x does not resolve", img.Regs.EIP)
	}
	perms, err := img.MM.Translate(hostarch.Addr(img.Regs.EIP))
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if perms != hostarch.ReadExec {
		t.Errorf("text perms got %v, want %v", perms, hostarch.ReadExec)
	}
	brk, err := usermem.CopyUint32In(ctx, img.MM, BreakAddr, usermem.IOOpts{})
	if err != nil || brk != HeapStart {
		t.Errorf("break got (%#x, %v), want (%#x, nil)", brk, err, HeapStart)
	}
}

func TestSymbolTable(t *testing.T) {
	ctx := context.Background()
	img, err := NewRegistry(testProgram("prog")).Load(ctx, "prog")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer img.MM.Release()

	count, err := usermem.CopyUint32In(ctx, img.MM, SymtabAddr, usermem.IOOpts{})
	if err != nil || count != 2 {
		t.Fatalf("symbol count got (%d, %v), want (2, nil)", count, err)
	}
	var names []string
	for i := uint32(0); i < count; i++ {
		ent := SymtabAddr + 4 + hostarch.Addr(SymEntrySize*i)
		addr, _ := usermem.CopyUint32In(ctx, img.MM, ent, usermem.IOOpts{})
		name, err := usermem.CopyStringIn(ctx, img.MM, ent+4, SymNameMax+1, usermem.IOOpts{})
		if err != nil {
			t.Fatalf("reading symbol %d: %v", i, err)
		}
		if _, ok := img.MM.Resolve(hostarch.Addr(addr)); !ok {
			t.Errorf("symbol %q at %#x does not resolve", name, addr)
		}
		names = append(names, name)
	}
	if want := []string{EntrySymbol, "helper"}; !cmp.Equal(names, want) {
		t.Errorf("symbols got %v, want %v", names, want)
	}
}

func TestProcessName(t *testing.T) {
	long := "a-very-long-program-name"
	img, err := NewRegistry(testProgram(long)).Load(context.Background(), long+" arg")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer img.MM.Release()
	if want := long[:pintos.MaxProcessName]; img.Name != want {
		t.Errorf("Name got %q, want %q", img.Name, want)
	}
}

func TestLoadErrors(t *testing.T) {
	r := NewRegistry(testProgram("prog"), &Program{Name: "noentry", Symbols: map[string]arch.Entry{"main": nop}})
	for _, tc := range []struct {
		cmdline string
		want    error
	}{
		{"", ErrNoCommand},
		{"   ", ErrNoCommand},
		{"missing", ErrNotFound},
		{"noentry", ErrNoExec},
		{"prog " + strings.Repeat("x ", pintos.PageSize), ErrTooLong},
		{"prog " + strings.Repeat("y", pintos.PageSize), ErrTooLong},
	} {
		name := tc.cmdline
		if len(name) > 20 {
			name = name[:20]
		}
		t.Run(name, func(t *testing.T) {
			img, err := r.Load(context.Background(), tc.cmdline)
			if !errors.Is(err, tc.want) {
				t.Errorf("Load got err %v, want %v", err, tc.want)
			}
			if img != nil {
				t.Errorf("Load got image %+v, want nil", img)
			}
		})
	}
}

func TestInterpreterScript(t *testing.T) {
	fsys := memfs.New()
	if err := fsys.WriteFile("script", []byte("#! prog -v\nignored\n")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fsys.WriteFile("loop", []byte("#!loop\n")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fsys.WriteFile("plain", []byte("hello")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	r := NewRegistry(testProgram("prog"))
	r.FS = fsys

	img, err := r.Load(context.Background(), "script a b")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer img.MM.Release()
	if want := []string{"prog", "-v", "script", "a", "b"}; !cmp.Equal(img.Argv, want) {
		t.Errorf("Argv got %v, want %v", img.Argv, want)
	}
	if img.Name != "script" {
		t.Errorf("Name got %q, want %q", img.Name, "script")
	}

	for _, cmdline := range []string{"loop", "plain", "nofile"} {
		if _, err := r.Load(context.Background(), cmdline); !errors.Is(err, ErrNotFound) {
			t.Errorf("Load(%q) got err %v, want %v", cmdline, err, ErrNotFound)
		}
	}
}

func TestPrograms(t *testing.T) {
	r := NewRegistry(testProgram("b"), testProgram("a"))
	r.Register(testProgram("c"))
	var names []string
	for _, p := range r.Programs() {
		names = append(names, p.Name)
	}
	if want := []string{"a", "b", "c"}; !cmp.Equal(names, want) {
		t.Errorf("Programs got %v, want %v", names, want)
	}
}
