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

// boolResult maps a nil error to true.
func boolResult(err error) (uintptr, *kernel.SyscallControl, error) {
	if err != nil {
		return 0, nil, err
	}
	return 1, nil, nil
}

// LockInit implements lock_init(2).
func LockInit(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return boolResult(t.LockInit(args[0].Pointer()))
}

// LockAcquire implements lock_acquire(2).
func LockAcquire(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return boolResult(t.LockAcquire(args[0].Pointer()))
}

// LockRelease implements lock_release(2).
func LockRelease(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return boolResult(t.LockRelease(args[0].Pointer()))
}

// SemaInit implements sema_init(2).
func SemaInit(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return boolResult(t.SemaInit(args[0].Pointer(), args[1].Int()))
}

// SemaDown implements sema_down(2).
func SemaDown(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return boolResult(t.SemaDown(args[0].Pointer()))
}

// SemaUp implements sema_up(2).
func SemaUp(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return boolResult(t.SemaUp(args[0].Pointer()))
}
