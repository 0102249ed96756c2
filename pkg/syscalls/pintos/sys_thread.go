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
	"pintos.dev/userprog/pkg/arch"
	"pintos.dev/userprog/pkg/kernel"
)

// PthreadCreate implements pthread_create(2): args are the entry stub, the
// thread function and its argument.
func PthreadCreate(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	tid, err := t.PthreadCreate(args[0].Pointer(), args[1].Pointer(), args[2].Uint())
	return uintptr(uint32(tid)), nil, err
}

// PthreadExit implements pthread_exit(2).
func PthreadExit(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	ctrl, err := t.PthreadExit()
	return 0, ctrl, err
}

// PthreadJoin implements pthread_join(2).
func PthreadJoin(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	tid, err := t.PthreadJoin(kernel.ThreadID(args[0].Int()))
	return uintptr(uint32(tid)), nil, err
}

// GetTID implements get_tid(2).
func GetTID(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return uintptr(t.TID()), nil, nil
}
