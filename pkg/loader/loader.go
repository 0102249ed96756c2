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

// Package loader loads user programs into a new address space and builds
// their initial stack.
//
// Programs are registered by name. Their code is a set of named symbols
// that the loader places in the text segment in name order, after a symbol
// table that user code can read to find its own functions.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/arch"
	"pintos.dev/userprog/pkg/cleanup"
	"pintos.dev/userprog/pkg/fs"
	"pintos.dev/userprog/pkg/hostarch"
	"pintos.dev/userprog/pkg/mm"
	"pintos.dev/userprog/pkg/usermem"
)

// EntrySymbol is the symbol execution starts at.
const EntrySymbol = "_start"

// maxLoaderAttempts is the maximum number of attempts to try to load an
// interpreter scripts, to prevent loops. 6 (initial + 5 changes) is what the
// Linux kernel allows (fs/exec.c:search_binary_handler).
const maxLoaderAttempts = 6

var (
	// ErrNoCommand is returned for an empty command line.
	ErrNoCommand = errors.New("empty command line")

	// ErrNotFound is returned when no program or script has the name.
	ErrNotFound = errors.New("program not found")

	// ErrNoExec is returned for programs that cannot be started.
	ErrNoExec = errors.New("exec format error")

	// ErrTooLong is returned when the arguments do not fit the initial
	// stack.
	ErrTooLong = errors.New("argument list too long")
)

// Program is a user program.
type Program struct {
	// Name is the name exec looks the program up by.
	Name string

	// Symbols is the code of the program. It must contain EntrySymbol.
	Symbols map[string]arch.Entry

	// Description is a one line summary shown in listings.
	Description string
}

// Image is a loaded program, ready to run.
type Image struct {
	// Name is the process name: argv[0] truncated to MaxProcessName bytes.
	Name string

	// Argv is the parsed command line.
	Argv []string

	// MM is the new address space. The caller owns it.
	MM *mm.AddressSpace

	// Regs are the initial registers of the main thread.
	Regs arch.Registers
}

// Loader loads command lines.
type Loader interface {
	// Load parses cmdline, finds the program named by its first word and
	// returns an image running it with the words as arguments.
	Load(ctx context.Context, cmdline string) (*Image, error)
}

// Registry is a Loader over a set of registered programs. Files in FS that
// start with "#!" are run as interpreter scripts.
type Registry struct {
	// FS, if set, is searched for interpreter scripts.
	FS fs.FileSystem

	// mu protects programs.
	mu       sync.RWMutex
	programs map[string]*Program
}

var _ Loader = (*Registry)(nil)

// NewRegistry returns a registry holding progs.
func NewRegistry(progs ...*Program) *Registry {
	r := &Registry{programs: make(map[string]*Program)}
	for _, p := range progs {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any program of the same name.
func (r *Registry) Register(p *Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.programs == nil {
		r.programs = make(map[string]*Program)
	}
	r.programs[p.Name] = p
}

// Lookup returns the program called name.
func (r *Registry) Lookup(name string) (*Program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.programs[name]
	return p, ok
}

// Programs returns the registered programs in name order.
func (r *Registry) Programs() []*Program {
	r.mu.RLock()
	defer r.mu.RUnlock()
	progs := make([]*Program, 0, len(r.programs))
	for _, p := range r.programs {
		progs = append(progs, p)
	}
	sort.Slice(progs, func(i, j int) bool { return progs[i].Name < progs[j].Name })
	return progs
}

// Load implements Loader.Load.
func (r *Registry) Load(ctx context.Context, cmdline string) (*Image, error) {
	argv := strings.Fields(cmdline)
	if len(argv) == 0 {
		return nil, ErrNoCommand
	}
	name := argv[0]
	for attempt := 1; ; attempt++ {
		if p, ok := r.Lookup(argv[0]); ok {
			return loadProgram(ctx, p, name, argv)
		}
		if r.FS == nil || attempt == maxLoaderAttempts {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, argv[0])
		}
		newArgv, err := parseInterpreterScript(r.FS, argv[0], argv)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrNotFound, argv[0], err)
		}
		argv = newArgv
	}
}

// processName truncates name to the length of the process name field.
func processName(name string) string {
	if len(name) > pintos.MaxProcessName {
		return name[:pintos.MaxProcessName]
	}
	return name
}

// loadProgram builds the address space of p: text, heap and a one page
// stack holding argv.
func loadProgram(ctx context.Context, p *Program, name string, argv []string) (*Image, error) {
	if _, ok := p.Symbols[EntrySymbol]; !ok {
		return nil, fmt.Errorf("%w: %q has no %s", ErrNoExec, p.Name, EntrySymbol)
	}
	as := mm.NewAddressSpace()
	cu := cleanup.Make(as.Release)
	defer cu.Clean()

	syms, err := mapText(ctx, as, p)
	if err != nil {
		return nil, err
	}
	if err := mapHeap(ctx, as); err != nil {
		return nil, err
	}
	sp, err := setupStack(ctx, as, argv)
	if err != nil {
		return nil, err
	}

	cu.Release()
	return &Image{
		Name: processName(name),
		Argv: argv,
		MM:   as,
		Regs: arch.Registers{
			EIP: uint32(syms[EntrySymbol]),
			ESP: uint32(sp),
		},
	}, nil
}

// mapHeap maps the heap and initializes its break word.
func mapHeap(ctx context.Context, as *mm.AddressSpace) error {
	if err := as.Map(pintos.HeapBase, pintos.HeapPages*pintos.PageSize, hostarch.ReadWrite); err != nil {
		return fmt.Errorf("mapping heap: %w", err)
	}
	return usermem.CopyUint32Out(ctx, as, BreakAddr, HeapStart, usermem.IOOpts{})
}

const (
	// BreakAddr holds the address of the first free heap byte.
	BreakAddr = hostarch.Addr(pintos.HeapBase)

	// HeapStart is the initial break.
	HeapStart = pintos.HeapBase + 16

	// HeapEnd is the end of the heap.
	HeapEnd = pintos.HeapBase + pintos.HeapPages*pintos.PageSize
)
