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
	"fmt"

	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/arch"
	"pintos.dev/userprog/pkg/hostarch"
	"pintos.dev/userprog/pkg/mm"
	"pintos.dev/userprog/pkg/usermem"
)

// StackTop is the top of the main thread stack.
const StackTop = hostarch.Addr(pintos.PhysBase)

// setupStack maps the first stack page and lays out argv on it the way the
// C runtime expects at _start:
//
//	esp ->	fake return address (0)
//		argc
//		argv
//		argv[0] ... argv[argc-1], NULL
//		padding
//		argument strings
//
// The address of argc is 16-byte aligned.
func setupStack(ctx context.Context, as *mm.AddressSpace, argv []string) (hostarch.Addr, error) {
	if err := as.Map(StackTop-pintos.PageSize, pintos.PageSize, hostarch.ReadWrite); err != nil {
		return 0, fmt.Errorf("mapping stack: %w", err)
	}
	st := &arch.Stack{IO: as, Bottom: StackTop}
	tooLong := func(error) error {
		return fmt.Errorf("%w: %d arguments", ErrTooLong, len(argv))
	}

	addrs := make([]uint32, len(argv)+1)
	for i := len(argv) - 1; i >= 0; i-- {
		addr, err := st.PushString(ctx, argv[i])
		if err != nil {
			return 0, tooLong(err)
		}
		addrs[i] = uint32(addr)
	}
	// argv[], argv and argc.
	words := uint32(len(addrs) + 2)
	st.Bottom = (st.Bottom - hostarch.Addr(4*words)) &^ 15
	st.Bottom += hostarch.Addr(4 * words)
	if st.Bottom < StackTop-pintos.PageSize+hostarch.Addr(4*(words+1)) {
		return 0, tooLong(nil)
	}

	for i := len(addrs) - 1; i >= 0; i-- {
		if err := st.PushUint32(ctx, addrs[i]); err != nil {
			return 0, tooLong(err)
		}
	}
	argvAddr := st.Bottom
	for _, v := range []uint32{uint32(argvAddr), uint32(len(argv)), 0} {
		if err := st.PushUint32(ctx, v); err != nil {
			return 0, tooLong(err)
		}
	}
	return st.Bottom, nil
}

// ReadArgs returns the arguments laid out by setupStack, given the stack
// pointer at _start.
func ReadArgs(ctx context.Context, uio usermem.IO, sp hostarch.Addr) ([]string, error) {
	argc, err := usermem.CopyUint32In(ctx, uio, sp+4, usermem.IOOpts{})
	if err != nil {
		return nil, err
	}
	argvAddr, err := usermem.CopyUint32In(ctx, uio, sp+8, usermem.IOOpts{})
	if err != nil {
		return nil, err
	}
	if argc > pintos.PageSize/4 {
		return nil, fmt.Errorf("argc %d too large", argc)
	}
	ptrs := make([]uint32, argc)
	if err := usermem.CopyUint32sIn(ctx, uio, hostarch.Addr(argvAddr), ptrs, usermem.IOOpts{}); err != nil {
		return nil, err
	}
	args := make([]string, argc)
	for i, p := range ptrs {
		s, err := usermem.CopyStringIn(ctx, uio, hostarch.Addr(p), pintos.PageSize, usermem.IOOpts{})
		if err != nil {
			return nil, err
		}
		args[i] = s
	}
	return args, nil
}
