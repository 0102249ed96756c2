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
	"bytes"
	"context"

	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/errors/linuxerr"
	"pintos.dev/userprog/pkg/hostarch"
	"pintos.dev/userprog/pkg/usermem"
)

// userIO is the address space as seen by user code. Accesses of a dying
// process end the thread; failed accesses fault.
type userIO struct {
	t *Thread
}

var _ usermem.IO = userIO{}

// CopyOut implements usermem.IO.CopyOut.
func (u userIO) CopyOut(ctx context.Context, addr hostarch.Addr, src []byte, opts usermem.IOOpts) (int, error) {
	u.t.checkDoom()
	n, err := u.t.p.mm.CopyOut(ctx, addr, src, opts)
	if err != nil {
		u.t.Fault(addr+hostarch.Addr(n), hostarch.Write)
	}
	return n, err
}

// CopyIn implements usermem.IO.CopyIn.
func (u userIO) CopyIn(ctx context.Context, addr hostarch.Addr, dst []byte, opts usermem.IOOpts) (int, error) {
	u.t.checkDoom()
	n, err := u.t.p.mm.CopyIn(ctx, addr, dst, opts)
	if err != nil {
		u.t.Fault(addr+hostarch.Addr(n), hostarch.Read)
	}
	return n, err
}

// ZeroOut implements usermem.IO.ZeroOut.
func (u userIO) ZeroOut(ctx context.Context, addr hostarch.Addr, toZero int64, opts usermem.IOOpts) (int64, error) {
	u.t.checkDoom()
	n, err := u.t.p.mm.ZeroOut(ctx, addr, toZero, opts)
	if err != nil {
		u.t.Fault(addr+hostarch.Addr(n), hostarch.Write)
	}
	return n, err
}

// CompareAndSwapUint32 implements usermem.IO.CompareAndSwapUint32.
func (u userIO) CompareAndSwapUint32(ctx context.Context, addr hostarch.Addr, old, new uint32, opts usermem.IOOpts) (uint32, error) {
	u.t.checkDoom()
	prev, err := u.t.p.mm.CompareAndSwapUint32(ctx, addr, old, new, opts)
	if err != nil {
		u.t.Fault(addr, hostarch.ReadWrite)
	}
	return prev, err
}

// LoadUint32 implements usermem.IO.LoadUint32.
func (u userIO) LoadUint32(ctx context.Context, addr hostarch.Addr, opts usermem.IOOpts) (uint32, error) {
	u.t.checkDoom()
	v, err := u.t.p.mm.LoadUint32(ctx, addr, opts)
	if err != nil {
		u.t.Fault(addr, hostarch.Read)
	}
	return v, err
}

// The accessors below are used by syscall implementations. They fail with
// EFAULT for addresses outside the user address space or on unmapped pages;
// the dispatcher kills the process once the syscall has released its locks.

// CopyInBytes copies len(dst) bytes from user memory at addr.
func (t *Thread) CopyInBytes(addr hostarch.Addr, dst []byte) (int, error) {
	return t.p.mm.CopyIn(t.k.ctx, addr, dst, usermem.IOOpts{})
}

// CopyOutBytes copies src to user memory at addr.
func (t *Thread) CopyOutBytes(addr hostarch.Addr, src []byte) (int, error) {
	return t.p.mm.CopyOut(t.k.ctx, addr, src, usermem.IOOpts{})
}

// CopyInUint32 reads the word at addr.
func (t *Thread) CopyInUint32(addr hostarch.Addr) (uint32, error) {
	return usermem.CopyUint32In(t.k.ctx, t.p.mm, addr, usermem.IOOpts{})
}

// CopyInString reads the NUL-terminated string at addr. It fails with
// ENAMETOOLONG if the string is terminated but has no NUL in its first
// maxlen bytes, and with EFAULT if it is not terminated below PhysBase.
func (t *Thread) CopyInString(addr hostarch.Addr, maxlen int) (string, error) {
	s, err := usermem.CopyStringIn(t.k.ctx, t.p.mm, addr, maxlen, usermem.IOOpts{})
	if !linuxerr.Equals(linuxerr.ENAMETOOLONG, err) {
		return s, err
	}
	// A string longer than maxlen is only too long if it is terminated
	// below PhysBase; otherwise it is a bad pointer.
	if err := t.findNUL(addr + hostarch.Addr(len(s))); err != nil {
		return "", err
	}
	return s, linuxerr.ENAMETOOLONG
}

// findNUL scans user memory from addr for a zero byte, one page at a time.
// It returns EFAULT if it reaches PhysBase or an unmapped page first.
func (t *Thread) findNUL(addr hostarch.Addr) error {
	var buf [hostarch.PageSize]byte
	for {
		chunk := buf[:hostarch.PageSize-addr.PageOffset()]
		n, err := t.p.mm.CopyIn(t.k.ctx, addr, chunk, usermem.IOOpts{})
		if bytes.IndexByte(chunk[:n], 0) >= 0 {
			return nil
		}
		if err != nil {
			return linuxerr.EFAULT
		}
		end, ok := addr.AddLength(uint32(n))
		if !ok {
			return linuxerr.EFAULT
		}
		addr = end
	}
}

// ValidateRange returns EFAULT unless [addr, addr+length) is below
// PhysBase and every page in it is mapped.
func (t *Thread) ValidateRange(addr hostarch.Addr, length uint32) error {
	if !usermem.RangeOK(addr, length, pintos.PhysBase) {
		return linuxerr.EFAULT
	}
	if length == 0 {
		return nil
	}
	end := addr + hostarch.Addr(length)
	for pg := addr.RoundDown(); pg < end && pg >= addr.RoundDown(); pg += hostarch.PageSize {
		if !t.p.mm.IsMapped(pg) {
			return linuxerr.EFAULT
		}
	}
	return nil
}

// MustValidateRange kills the process with status -1 unless
// ValidateRange(addr, length) succeeds.
func (t *Thread) MustValidateRange(addr hostarch.Addr, length uint32) {
	if err := t.ValidateRange(addr, length); err != nil {
		t.Debugf("Invalid user range [%v, +%d)", addr, length)
		t.exitProcess(-1)
	}
}

// MustCopyInUint32 reads the word at addr or kills the process with status
// -1.
func (t *Thread) MustCopyInUint32(addr hostarch.Addr) uint32 {
	t.MustValidateRange(addr, 4)
	v, err := t.CopyInUint32(addr)
	if err != nil {
		t.exitProcess(-1)
	}
	return v
}
