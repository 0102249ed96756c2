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
	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/arch"
	"pintos.dev/userprog/pkg/kernel"
)

// Halt implements halt(2).
func Halt(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	t.Infof("Halt requested")
	return 0, kernel.CtrlHalt, nil
}

// Exit implements exit(2).
func Exit(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	t.PrepareExit(args[0].Int())
	return 0, kernel.CtrlDoExit, nil
}

// Exec implements exec(2).
func Exec(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	cmdline, err := t.CopyInString(args[0].Pointer(), pintos.MaxCmdline)
	if err != nil {
		return 0, nil, err
	}
	tid, err := t.Execute(cmdline)
	return uintptr(uint32(tid)), nil, err
}

// Wait implements wait(2).
func Wait(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	status, err := t.Wait(kernel.ThreadID(args[0].Int()))
	return uintptr(uint32(status)), nil, err
}

// Fork implements fork(2).
func Fork(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	tid, err := t.Fork()
	return uintptr(uint32(tid)), nil, err
}

// Practice implements practice(2): it returns its argument plus one.
func Practice(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return uintptr(uint32(args[0].Int() + 1)), nil, nil
}
