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
	"sync"

	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/errors/linuxerr"
	"pintos.dev/userprog/pkg/hostarch"
	"pintos.dev/userprog/pkg/kernel/ksync"
)

// userSync holds the locks and semaphores created by a process. User memory
// holds only a one byte handle indexing them.
type userSync struct {
	// mu protects below.
	mu       sync.Mutex
	locks    []*ksync.Lock
	semas    []*ksync.Semaphore
	released bool
}

func (s *userSync) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks = nil
	s.semas = nil
	s.released = true
}

func (s *userSync) lock(h byte) (*ksync.Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(h) >= len(s.locks) {
		return nil, linuxerr.EINVAL
	}
	return s.locks[h], nil
}

func (s *userSync) sema(h byte) (*ksync.Semaphore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(h) >= len(s.semas) {
		return nil, linuxerr.EINVAL
	}
	return s.semas[h], nil
}

// readHandle reads the handle byte at addr.
func (t *Thread) readHandle(addr hostarch.Addr) (byte, error) {
	var b [1]byte
	if _, err := t.CopyInBytes(addr, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// LockInit creates a lock and stores its handle at addr. It fails with
// EAGAIN once the process has pintos.MaxLocks locks.
func (t *Thread) LockInit(addr hostarch.Addr) error {
	s := t.p.sync
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return linuxerr.ErrInterrupted
	}
	if len(s.locks) >= pintos.MaxLocks {
		return linuxerr.EAGAIN
	}
	if _, err := t.CopyOutBytes(addr, []byte{byte(len(s.locks))}); err != nil {
		return err
	}
	s.locks = append(s.locks, ksync.NewLock())
	return nil
}

// LockAcquire acquires the lock whose handle is at addr. It fails with
// EINVAL for an unknown handle and EDEADLK if t already holds the lock.
func (t *Thread) LockAcquire(addr hostarch.Addr) error {
	h, err := t.readHandle(addr)
	if err != nil {
		return err
	}
	l, err := t.p.sync.lock(h)
	if err != nil {
		return err
	}
	return l.Acquire(t)
}

// LockRelease releases the lock whose handle is at addr. It fails with
// EINVAL for an unknown handle and EPERM if t does not hold the lock.
func (t *Thread) LockRelease(addr hostarch.Addr) error {
	h, err := t.readHandle(addr)
	if err != nil {
		return err
	}
	l, err := t.p.sync.lock(h)
	if err != nil {
		return err
	}
	return l.Release(t)
}

// SemaInit creates a semaphore with value and stores its handle at addr. It
// fails with EINVAL for a negative value and EAGAIN once the process has
// pintos.MaxSemaphores semaphores.
func (t *Thread) SemaInit(addr hostarch.Addr, value int32) error {
	if value < 0 {
		return linuxerr.EINVAL
	}
	s := t.p.sync
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return linuxerr.ErrInterrupted
	}
	if len(s.semas) >= pintos.MaxSemaphores {
		return linuxerr.EAGAIN
	}
	if _, err := t.CopyOutBytes(addr, []byte{byte(len(s.semas))}); err != nil {
		return err
	}
	s.semas = append(s.semas, ksync.NewSemaphore(uint32(value)))
	return nil
}

// SemaDown decrements the semaphore whose handle is at addr, blocking while
// it is zero.
func (t *Thread) SemaDown(addr hostarch.Addr) error {
	h, err := t.readHandle(addr)
	if err != nil {
		return err
	}
	sema, err := t.p.sync.sema(h)
	if err != nil {
		return err
	}
	return sema.Down(t)
}

// SemaUp increments the semaphore whose handle is at addr.
func (t *Thread) SemaUp(addr hostarch.Addr) error {
	h, err := t.readHandle(addr)
	if err != nil {
		return err
	}
	sema, err := t.p.sync.sema(h)
	if err != nil {
		return err
	}
	sema.Up()
	return nil
}
