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
	"strings"

	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/arch"
	"pintos.dev/userprog/pkg/errors/linuxerr"
	"pintos.dev/userprog/pkg/hostarch"
)

// Trap implements arch.Trapper.Trap. It is the system call dispatcher: it
// decodes the number and arguments from the user stack, runs the syscall
// and writes its result to regs.EAX.
//
// Invalid stack words kill the process before any lock is taken. EFAULT
// returned by a syscall kills the process after the syscall has returned,
// and so after it released its locks.
func (t *Thread) Trap(regs *arch.Registers) {
	t.checkDoom()
	t.sysno.Store(-1)
	t.inSyscall.Store(true)
	defer t.inSyscall.Store(false)

	sp := hostarch.Addr(regs.ESP)
	sysno := t.MustCopyInUint32(sp)
	t.sysno.Store(int32(sysno))

	sc := t.k.table.Lookup(uintptr(sysno))
	if sc == nil || !sc.Supported() {
		t.k.unimplemented.Warningf("%v Unsupported syscall %d (%s)", t, sysno, syscallName(sc, sysno))
		return
	}

	t.MustValidateRange(sp+pintos.WordSize, uint32(pintos.WordSize*sc.NumArgs))
	var args arch.SyscallArguments
	for i := 0; i < sc.NumArgs; i++ {
		args[i].Value = uintptr(t.MustCopyInUint32(sp + hostarch.Addr(pintos.WordSize*(i+1))))
	}

	rval, ctrl, err := t.executeSyscall(sc, args)
	t.syscallResult(regs, sc, rval, ctrl, err)
	t.checkDoom()
}

// executeSyscall runs sc, logging the call if the kernel is tracing.
func (t *Thread) executeSyscall(sc *Syscall, args arch.SyscallArguments) (uintptr, *SyscallControl, error) {
	if !t.k.strace {
		return sc.Fn(t, args)
	}
	call := fmt.Sprintf("%s(%s)", sc.Name, formatArgs(args, sc.NumArgs))
	t.Infof("%s E", call)
	rval, ctrl, err := sc.Fn(t, args)
	switch {
	case err != nil:
		t.Infof("%s = %v", call, err)
	case ctrl != nil:
		t.Infof("%s = %v", call, ctrl)
	default:
		t.Infof("%s = %d", call, int32(rval))
	}
	return rval, ctrl, err
}

// syscallResult acts on the outcome of a syscall.
func (t *Thread) syscallResult(regs *arch.Registers, sc *Syscall, rval uintptr, ctrl *SyscallControl, err error) {
	switch {
	case err == nil:
	case linuxerr.Equals(linuxerr.EFAULT, err):
		t.Debugf("%s: bad user address", sc.Name)
		t.exitProcess(-1)
	case err == linuxerr.ErrInterrupted:
		t.exitThread()
	default:
		if v, ok := sc.Failure(); ok {
			regs.EAX = v
		}
		return
	}

	if ctrl != nil {
		switch ctrl.next {
		case ctrlDoExit:
			t.exitProcess(t.exitStatus)
		case ctrlThreadExit:
			t.exitThread()
		case ctrlHalt:
			t.k.Halt()
			t.exitThread()
		}
	}
	if sc.Result != ResultVoid {
		regs.EAX = uint32(rval)
	}
}

// PrepareExit sets the status the process exits with when a syscall
// returns CtrlDoExit.
func (t *Thread) PrepareExit(status int32) {
	t.exitStatus = status
}

// String implements fmt.Stringer.
func (c *SyscallControl) String() string {
	switch c.next {
	case ctrlDoExit:
		return "exit"
	case ctrlThreadExit:
		return "thread exit"
	case ctrlHalt:
		return "halt"
	default:
		return "none"
	}
}

func syscallName(sc *Syscall, sysno uint32) string {
	if sc != nil && sc.Name != "" {
		return sc.Name
	}
	if name, ok := pintos.SyscallNames[uintptr(sysno)]; ok {
		return name
	}
	return "unknown"
}

func formatArgs(args arch.SyscallArguments, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%#x", args[i].Value)
	}
	return b.String()
}
