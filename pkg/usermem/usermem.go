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

// Package usermem governs access to user memory.
package usermem

import (
	"bytes"
	"context"
	"encoding/binary"

	"pintos.dev/userprog/pkg/errors/linuxerr"
	"pintos.dev/userprog/pkg/hostarch"
)

// ByteOrder is the byte order of the user ABI.
var ByteOrder = binary.LittleEndian

// IO provides access to the contents of a virtual memory space.
type IO interface {
	// CopyOut copies len(src) bytes from src to the memory mapped at addr. It
	// returns the number of bytes copied. If the number of bytes copied is <
	// len(src), it returns a non-nil error explaining why.
	CopyOut(ctx context.Context, addr hostarch.Addr, src []byte, opts IOOpts) (int, error)

	// CopyIn copies len(dst) bytes from the memory mapped at addr to dst.
	// It returns the number of bytes copied. If the number of bytes copied is
	// < len(dst), it returns a non-nil error explaining why.
	CopyIn(ctx context.Context, addr hostarch.Addr, dst []byte, opts IOOpts) (int, error)

	// ZeroOut sets toZero bytes to 0, starting at addr. It returns the number
	// of bytes zeroed. If the number of bytes zeroed is < toZero, it returns a
	// non-nil error explaining why.
	ZeroOut(ctx context.Context, addr hostarch.Addr, toZero int64, opts IOOpts) (int64, error)

	// CompareAndSwapUint32 atomically compares the uint32 value at addr to
	// old; if they are equal, the value in memory is replaced by new. In
	// either case, the previous value stored in memory is returned.
	CompareAndSwapUint32(ctx context.Context, addr hostarch.Addr, old, new uint32, opts IOOpts) (uint32, error)

	// LoadUint32 atomically loads the uint32 value at addr and returns it.
	LoadUint32(ctx context.Context, addr hostarch.Addr, opts IOOpts) (uint32, error)
}

// IOOpts contains options applicable to all IO methods.
type IOOpts struct {
	// If IgnorePermissions is true, application-defined memory protections
	// set by mmap(2) or mprotect(2) will be ignored. (Memory protections
	// required by the target of the mapping are never ignored.)
	//
	// The loader sets it to fill read-only text pages.
	IgnorePermissions bool
}

// RangeOK reports whether [addr, addr+length) lies below limit without
// wrapping. A zero-length range still requires addr < limit.
func RangeOK(addr hostarch.Addr, length uint32, limit hostarch.Addr) bool {
	if addr >= limit {
		return false
	}
	end, ok := addr.AddLength(length)
	return ok && end <= limit
}

const (
	// copyStringIncrement is the maximum number of bytes that are copied from
	// virtual memory at a time by CopyStringIn.
	copyStringIncrement = 64

	// copyStringMaxInitBufLen is the maximum size of the initial buffer used by
	// CopyStringIn.
	copyStringMaxInitBufLen = 256
)

// CopyStringIn copies a NUL-terminated string of unknown length from the
// memory mapped at addr in uio and returns it as a string (not including the
// trailing NUL). If the length of the string, including the terminating NUL,
// would exceed maxlen, CopyStringIn returns the string truncated to maxlen and
// ENAMETOOLONG.
//
// If uio faults before the NUL is found, for example because the string
// reaches the end of user memory, CopyStringIn returns the bytes read so far
// and the error.
func CopyStringIn(ctx context.Context, uio IO, addr hostarch.Addr, maxlen int, opts IOOpts) (string, error) {
	initLen := maxlen
	if initLen > copyStringMaxInitBufLen {
		initLen = copyStringMaxInitBufLen
	}
	buf := make([]byte, initLen)
	var done int
	for done < maxlen {
		// Read up to copyStringIncrement bytes at a time.
		readlen := copyStringIncrement
		if readlen > maxlen-done {
			readlen = maxlen - done
		}
		end, ok := addr.AddLength(uint32(readlen))
		if !ok {
			return string(buf[:done]), linuxerr.EFAULT
		}
		// Shorten the read to avoid crossing page boundaries, since faulting
		// in a page unnecessarily is expensive. This also ensures that partial
		// copies up to the end of user memory succeed.
		if addr.RoundDown() != end.RoundDown() {
			end = end.RoundDown()
			readlen = int(end - addr)
		}
		// Ensure that our buffer is large enough to accommodate the read.
		if done+readlen > len(buf) {
			newBufLen := len(buf) * 2
			if newBufLen > maxlen {
				newBufLen = maxlen
			}
			buf = append(buf, make([]byte, newBufLen-len(buf))...)
		}
		n, err := uio.CopyIn(ctx, addr, buf[done:done+readlen], opts)
		// Look for the terminating zero byte, which may have occurred before
		// hitting err.
		if i := bytes.IndexByte(buf[done:done+n], byte(0)); i >= 0 {
			return string(buf[:done+i]), nil
		}

		done += n
		if err != nil {
			return string(buf[:done]), err
		}
		addr = end
	}
	return string(buf), linuxerr.ENAMETOOLONG
}

// CopyUint32In reads one 32-bit word from addr.
func CopyUint32In(ctx context.Context, uio IO, addr hostarch.Addr, opts IOOpts) (uint32, error) {
	var b [4]byte
	if _, err := uio.CopyIn(ctx, addr, b[:], opts); err != nil {
		return 0, err
	}
	return ByteOrder.Uint32(b[:]), nil
}

// CopyUint32Out writes one 32-bit word to addr.
func CopyUint32Out(ctx context.Context, uio IO, addr hostarch.Addr, v uint32, opts IOOpts) error {
	var b [4]byte
	ByteOrder.PutUint32(b[:], v)
	_, err := uio.CopyOut(ctx, addr, b[:], opts)
	return err
}

// CopyUint32sIn reads len(dst) consecutive 32-bit words starting at addr.
func CopyUint32sIn(ctx context.Context, uio IO, addr hostarch.Addr, dst []uint32, opts IOOpts) error {
	if len(dst) == 0 {
		return nil
	}
	b := make([]byte, 4*len(dst))
	if _, err := uio.CopyIn(ctx, addr, b, opts); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = ByteOrder.Uint32(b[4*i:])
	}
	return nil
}
