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

package arch

import (
	"context"

	"pintos.dev/userprog/pkg/hostarch"
	"pintos.dev/userprog/pkg/usermem"
)

// Stack is a simple wrapper around a usermem.IO and an address. Push
// operations grow the stack downwards from Bottom.
type Stack struct {
	// IO is the address space in which the stack lives.
	IO usermem.IO

	// Bottom is the current top of the stack, which grows downwards.
	Bottom hostarch.Addr

	// Opts are passed to every access.
	Opts usermem.IOOpts
}

// PushUint32 pushes one word onto the stack.
func (s *Stack) PushUint32(ctx context.Context, v uint32) error {
	addr := s.Bottom - 4
	if err := usermem.CopyUint32Out(ctx, s.IO, addr, v, s.Opts); err != nil {
		return err
	}
	s.Bottom = addr
	return nil
}

// PushBytes pushes b onto the stack and returns its address.
func (s *Stack) PushBytes(ctx context.Context, b []byte) (hostarch.Addr, error) {
	addr := s.Bottom - hostarch.Addr(len(b))
	if _, err := s.IO.CopyOut(ctx, addr, b, s.Opts); err != nil {
		return 0, err
	}
	s.Bottom = addr
	return addr, nil
}

// PushString pushes str and a terminating NUL onto the stack and returns the
// address of its first byte.
func (s *Stack) PushString(ctx context.Context, str string) (hostarch.Addr, error) {
	b := make([]byte, len(str)+1)
	copy(b, str)
	return s.PushBytes(ctx, b)
}

// Align rounds Bottom down to a multiple of n, which must be a power of two.
func (s *Stack) Align(n uint32) {
	s.Bottom &^= hostarch.Addr(n - 1)
}

// PopUint32 pops one word off the stack.
func (s *Stack) PopUint32(ctx context.Context) (uint32, error) {
	v, err := usermem.CopyUint32In(ctx, s.IO, s.Bottom, s.Opts)
	if err != nil {
		return 0, err
	}
	s.Bottom += 4
	return v, nil
}
