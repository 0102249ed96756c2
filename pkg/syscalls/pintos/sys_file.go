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
	"pintos.dev/userprog/pkg/errors/linuxerr"
	"pintos.dev/userprog/pkg/hostarch"
	"pintos.dev/userprog/pkg/kernel"
)

// chunkSize is the size of the kernel buffer data moves through between
// user memory and files.
const chunkSize = pintos.PageSize

// kill terminates the process of t with status -1 once the syscall returns.
func kill(t *kernel.Thread) (uintptr, *kernel.SyscallControl, error) {
	t.PrepareExit(-1)
	return 0, kernel.CtrlDoExit, nil
}

func copyInName(t *kernel.Thread, args arch.SyscallArguments) (string, error) {
	return t.CopyInString(args[0].Pointer(), pintos.PageSize)
}

// Create implements create(2).
func Create(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	name, err := copyInName(t, args)
	if err != nil {
		return 0, nil, err
	}
	t.LockFS()
	defer t.UnlockFS()
	if err := t.Kernel().FS().Create(name, args[1].Uint()); err != nil {
		return 0, nil, err
	}
	return 1, nil, nil
}

// Remove implements remove(2).
func Remove(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	name, err := copyInName(t, args)
	if err != nil {
		return 0, nil, err
	}
	t.LockFS()
	defer t.UnlockFS()
	if err := t.Kernel().FS().Remove(name); err != nil {
		return 0, nil, err
	}
	return 1, nil, nil
}

// Open implements open(2).
func Open(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	name, err := copyInName(t, args)
	if err != nil {
		return 0, nil, err
	}
	t.LockFS()
	defer t.UnlockFS()
	f, err := t.Kernel().FS().Open(name)
	if err != nil {
		return 0, nil, err
	}
	fd, err := t.FDTable().Add(f)
	if err != nil {
		f.Close()
		return 0, nil, err
	}
	return uintptr(fd), nil, nil
}

// Filesize implements filesize(2).
func Filesize(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	t.LockFS()
	defer t.UnlockFS()
	f, err := t.FDTable().Get(args[0].Int())
	if err != nil {
		return 0, nil, err
	}
	return uintptr(f.Length()), nil, nil
}

// checkFD returns EBADF unless fd is open, so that zero length transfers on
// unknown descriptors fail too.
func checkFD(t *kernel.Thread, fd int32) error {
	t.LockFS()
	defer t.UnlockFS()
	_, err := t.FDTable().Get(fd)
	return err
}

// Read implements read(2).
func Read(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	fd := args[0].Int()
	addr := args[1].Pointer()
	size := args[2].Uint()
	if err := t.ValidateRange(addr, size); err != nil {
		return 0, nil, err
	}

	switch fd {
	case pintos.STDOUT_FILENO:
		return 0, nil, linuxerr.EBADF
	case pintos.STDIN_FILENO:
		n, err := readConsole(t, args)
		return uintptr(n), nil, err
	}
	if err := checkFD(t, fd); err != nil {
		return 0, nil, err
	}

	var total uint32
	buf := make([]byte, min(size, chunkSize))
	for total < size {
		want := buf[:min(size-total, chunkSize)]
		t.LockFS()
		f, err := t.FDTable().Get(fd)
		if err != nil {
			t.UnlockFS()
			return 0, nil, err
		}
		n, err := f.Read(want)
		t.UnlockFS()
		if err != nil {
			return 0, nil, err
		}
		if _, err := t.CopyOutBytes(addr+hostarch.Addr(total), want[:n]); err != nil {
			return 0, nil, err
		}
		total += uint32(n)
		if n < len(want) {
			break
		}
	}
	return uintptr(total), nil, nil
}

// readConsole reads exactly size bytes of console input, or fewer at end of
// input.
func readConsole(t *kernel.Thread, args arch.SyscallArguments) (uint32, error) {
	addr := args[1].Pointer()
	size := args[2].Uint()
	console := t.Kernel().Console()

	var total uint32
	buf := make([]byte, min(size, chunkSize))
	for total < size {
		want := buf[:min(size-total, chunkSize)]
		n := 0
		t.LockFS()
		for n < len(want) {
			b, ok := console.Getc()
			if !ok {
				break
			}
			want[n] = b
			n++
		}
		t.UnlockFS()
		if _, err := t.CopyOutBytes(addr+hostarch.Addr(total), want[:n]); err != nil {
			return 0, err
		}
		total += uint32(n)
		if n < len(want) {
			break
		}
	}
	return total, nil
}

// Write implements write(2).
func Write(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	fd := args[0].Int()
	addr := args[1].Pointer()
	size := args[2].Uint()
	if err := t.ValidateRange(addr, size); err != nil {
		return 0, nil, err
	}

	switch fd {
	case pintos.STDIN_FILENO:
		return 0, nil, linuxerr.EBADF
	case pintos.STDOUT_FILENO:
		buf := make([]byte, size)
		if _, err := t.CopyInBytes(addr, buf); err != nil {
			return 0, nil, err
		}
		t.LockFS()
		t.Kernel().Console().Putbuf(buf)
		t.UnlockFS()
		return uintptr(size), nil, nil
	}
	if err := checkFD(t, fd); err != nil {
		return 0, nil, err
	}

	var total uint32
	buf := make([]byte, min(size, chunkSize))
	for total < size {
		chunk := buf[:min(size-total, chunkSize)]
		if _, err := t.CopyInBytes(addr+hostarch.Addr(total), chunk); err != nil {
			return 0, nil, err
		}
		t.LockFS()
		f, err := t.FDTable().Get(fd)
		if err != nil {
			t.UnlockFS()
			return 0, nil, err
		}
		n, err := f.Write(chunk)
		t.UnlockFS()
		if err != nil {
			return 0, nil, err
		}
		total += uint32(n)
		if n < len(chunk) {
			break
		}
	}
	return uintptr(total), nil, nil
}

// Seek implements seek(2). An unknown descriptor kills the process.
func Seek(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	t.LockFS()
	defer t.UnlockFS()
	f, err := t.FDTable().Get(args[0].Int())
	if err != nil {
		return kill(t)
	}
	f.Seek(args[1].Uint())
	return 0, nil, nil
}

// Tell implements tell(2).
func Tell(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	t.LockFS()
	defer t.UnlockFS()
	f, err := t.FDTable().Get(args[0].Int())
	if err != nil {
		return 0, nil, err
	}
	return uintptr(f.Tell()), nil, nil
}

// Close implements close(2). Closing the console or an unknown descriptor
// kills the process.
func Close(t *kernel.Thread, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	t.LockFS()
	defer t.UnlockFS()
	f, err := t.FDTable().Remove(args[0].Int())
	if err != nil {
		return kill(t)
	}
	f.Close()
	return 0, nil, nil
}
