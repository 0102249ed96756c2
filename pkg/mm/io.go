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

package mm

import (
	"context"

	"pintos.dev/userprog/pkg/errors/linuxerr"
	"pintos.dev/userprog/pkg/hostarch"
	"pintos.dev/userprog/pkg/usermem"
)

// CheckIORange is similar to hostarch.Addr.ToRange, but additionally requires
// the range to end at or below MaxAddr. A zero-length range still needs a
// start below MaxAddr.
func (as *AddressSpace) CheckIORange(addr hostarch.Addr, length uint32) (hostarch.AddrRange, bool) {
	ar, ok := addr.ToRange(length)
	return ar, ok && usermem.RangeOK(addr, length, as.MaxAddr)
}

// withPages calls fn for each page-sized piece of ar in order. fn receives
// the bytes of the page covering the piece. withPages stops at the first
// unmapped page or permission failure and returns the number of bytes
// visited before it.
//
// Preconditions: as.mu is locked. ar is within MaxAddr.
func (as *AddressSpace) withPages(ar hostarch.AddrRange, at hostarch.AccessType, opts usermem.IOOpts, fn func(b []byte)) (int, error) {
	if as.released {
		return 0, linuxerr.EFAULT
	}
	done := 0
	for addr := ar.Start; addr < ar.End; {
		p, ok := as.pages.Get(&page{vpn: addr.PageNumber()})
		if !ok {
			return done, linuxerr.EFAULT
		}
		if !opts.IgnorePermissions && !p.perms.SupersetOf(at) {
			return done, linuxerr.EFAULT
		}
		off := addr.PageOffset()
		n := uint32(hostarch.PageSize) - off
		if rem := uint32(ar.End - addr); rem < n {
			n = rem
		}
		fn(p.data[off : off+n])
		done += int(n)
		addr += hostarch.Addr(n)
		if addr == 0 {
			// Wrapped at the top of the address space.
			break
		}
	}
	return done, nil
}

// CopyOut implements usermem.IO.CopyOut.
func (as *AddressSpace) CopyOut(ctx context.Context, addr hostarch.Addr, src []byte, opts usermem.IOOpts) (int, error) {
	ar, ok := as.CheckIORange(addr, uint32(len(src)))
	if !ok {
		return 0, linuxerr.EFAULT
	}
	if len(src) == 0 {
		return 0, nil
	}
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.withPages(ar, hostarch.Write, opts, func(b []byte) {
		src = src[copy(b, src):]
	})
}

// CopyIn implements usermem.IO.CopyIn.
func (as *AddressSpace) CopyIn(ctx context.Context, addr hostarch.Addr, dst []byte, opts usermem.IOOpts) (int, error) {
	ar, ok := as.CheckIORange(addr, uint32(len(dst)))
	if !ok {
		return 0, linuxerr.EFAULT
	}
	if len(dst) == 0 {
		return 0, nil
	}
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.withPages(ar, hostarch.Read, opts, func(b []byte) {
		dst = dst[copy(dst, b):]
	})
}

// ZeroOut implements usermem.IO.ZeroOut.
func (as *AddressSpace) ZeroOut(ctx context.Context, addr hostarch.Addr, toZero int64, opts usermem.IOOpts) (int64, error) {
	if toZero < 0 || toZero > int64(^uint32(0)) {
		return 0, linuxerr.EINVAL
	}
	ar, ok := as.CheckIORange(addr, uint32(toZero))
	if !ok {
		return 0, linuxerr.EFAULT
	}
	if toZero == 0 {
		return 0, nil
	}
	as.mu.Lock()
	defer as.mu.Unlock()
	n, err := as.withPages(ar, hostarch.Write, opts, func(b []byte) {
		clear(b)
	})
	return int64(n), err
}

// word returns the page bytes holding the aligned word at addr.
//
// Preconditions: as.mu is locked.
func (as *AddressSpace) word(addr hostarch.Addr, at hostarch.AccessType, opts usermem.IOOpts) ([]byte, error) {
	if _, ok := as.CheckIORange(addr, 4); !ok {
		return nil, linuxerr.EFAULT
	}
	if addr%4 != 0 {
		return nil, linuxerr.EINVAL
	}
	if as.released {
		return nil, linuxerr.EFAULT
	}
	p, ok := as.pages.Get(&page{vpn: addr.PageNumber()})
	if !ok || (!opts.IgnorePermissions && !p.perms.SupersetOf(at)) {
		return nil, linuxerr.EFAULT
	}
	off := addr.PageOffset()
	return p.data[off : off+4], nil
}

// CompareAndSwapUint32 implements usermem.IO.CompareAndSwapUint32.
func (as *AddressSpace) CompareAndSwapUint32(ctx context.Context, addr hostarch.Addr, old, new uint32, opts usermem.IOOpts) (uint32, error) {
	as.mu.Lock()
	defer as.mu.Unlock()
	b, err := as.word(addr, hostarch.ReadWrite, opts)
	if err != nil {
		return 0, err
	}
	prev := usermem.ByteOrder.Uint32(b)
	if prev == old {
		usermem.ByteOrder.PutUint32(b, new)
	}
	return prev, nil
}

// LoadUint32 implements usermem.IO.LoadUint32.
func (as *AddressSpace) LoadUint32(ctx context.Context, addr hostarch.Addr, opts usermem.IOOpts) (uint32, error) {
	as.mu.Lock()
	defer as.mu.Unlock()
	b, err := as.word(addr, hostarch.Read, opts)
	if err != nil {
		return 0, err
	}
	return usermem.ByteOrder.Uint32(b), nil
}
