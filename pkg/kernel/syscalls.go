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

	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/arch"
)

// SyscallFn is a syscall implementation.
type SyscallFn func(t *Thread, args arch.SyscallArguments) (uintptr, *SyscallControl, error)

// ResultKind is the C return type of a syscall. It selects the value left
// in EAX when the syscall fails.
type ResultKind int

const (
	// ResultVoid syscalls leave EAX unchanged.
	ResultVoid ResultKind = iota

	// ResultInt syscalls return -1 on failure.
	ResultInt

	// ResultBool syscalls return false on failure.
	ResultBool
)

// String implements fmt.Stringer.
func (r ResultKind) String() string {
	switch r {
	case ResultVoid:
		return "void"
	case ResultInt:
		return "int"
	case ResultBool:
		return "bool"
	default:
		return fmt.Sprintf("ResultKind(%d)", int(r))
	}
}

// Syscall includes the syscall implementation and compatibility information.
type Syscall struct {
	// Name is the syscall name.
	Name string

	// NumArgs is the number of argument words read from the user stack.
	NumArgs int

	// Result is the return type.
	Result ResultKind

	// Fn is the implementation of the syscall. A nil Fn marks a number that
	// is reserved but not implemented.
	Fn SyscallFn
}

// Supported returns true if the syscall is implemented.
func (s *Syscall) Supported() bool {
	return s.Fn != nil
}

// Failure returns the value written to EAX when the syscall fails, and
// whether anything is written at all.
func (s *Syscall) Failure() (uint32, bool) {
	switch s.Result {
	case ResultInt:
		return ^uint32(0), true
	case ResultBool:
		return 0, true
	default:
		return 0, false
	}
}

// SyscallControl is returned by syscalls to control the behavior of
// the dispatcher after the syscall returns.
type SyscallControl struct {
	next ctrlKind
}

type ctrlKind int

const (
	ctrlNone ctrlKind = iota
	ctrlDoExit
	ctrlThreadExit
	ctrlHalt
)

var (
	// CtrlDoExit is returned by the implementations of the exit syscalls
	// after calling Thread.PrepareExit. The process exits with the prepared
	// status.
	CtrlDoExit = &SyscallControl{next: ctrlDoExit}

	// CtrlThreadExit is returned by syscalls that end only the calling
	// thread.
	CtrlThreadExit = &SyscallControl{next: ctrlThreadExit}

	// CtrlHalt is returned by halt. The machine powers off.
	CtrlHalt = &SyscallControl{next: ctrlHalt}
)

// SyscallTable is a lookup table of system calls.
type SyscallTable struct {
	// Name identifies the table.
	Name string

	// Table is the collection of functions.
	Table map[uintptr]Syscall

	// lookup is a fixed-size array that holds the syscalls (indexed by
	// their numbers). It is used for fast look ups.
	lookup [pintos.NumSyscalls]*Syscall
}

// Init initializes the system call table.
//
// This should be called once before the table is used.
func (s *SyscallTable) Init() {
	for i := range s.lookup {
		s.lookup[i] = nil
	}
	for num, sc := range s.Table {
		if num >= uintptr(len(s.lookup)) {
			continue
		}
		sc := sc
		s.lookup[num] = &sc
	}
}

// Lookup returns the syscall for sysno, or nil if it is unknown.
func (s *SyscallTable) Lookup(sysno uintptr) *Syscall {
	if sysno < uintptr(len(s.lookup)) {
		return s.lookup[sysno]
	}
	return s.mapLookup(sysno)
}

// mapLookup is similar to Lookup, except that it only uses the syscall table,
// that is, it skips the fast look array. This is available for benchmarking.
func (s *SyscallTable) mapLookup(sysno uintptr) *Syscall {
	if sc, ok := s.Table[sysno]; ok {
		return &sc
	}
	return nil
}

// Numbers returns the numbers in the table in ascending order.
func (s *SyscallTable) Numbers() []uintptr {
	nums := make([]uintptr, 0, len(s.Table))
	for i := range s.lookup {
		if _, ok := s.Table[uintptr(i)]; ok {
			nums = append(nums, uintptr(i))
		}
	}
	return nums
}

var (
	tablesMu sync.Mutex

	// allSyscallTables contains all known tables.
	allSyscallTables []*SyscallTable
)

// DefaultSyscallTable is the name of the table kernels use by default.
const DefaultSyscallTable = "pintos"

// SyscallTables returns all registered syscall tables.
func SyscallTables() []*SyscallTable {
	tablesMu.Lock()
	defer tablesMu.Unlock()
	return append([]*SyscallTable(nil), allSyscallTables...)
}

// LookupSyscallTable returns the SyscallTable registered as name.
func LookupSyscallTable(name string) (*SyscallTable, bool) {
	tablesMu.Lock()
	defer tablesMu.Unlock()
	for _, s := range allSyscallTables {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// RegisterSyscallTable registers a new syscall table for use by a Kernel.
func RegisterSyscallTable(s *SyscallTable) {
	s.Init()
	tablesMu.Lock()
	defer tablesMu.Unlock()
	allSyscallTables = append(allSyscallTables, s)
}
