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

package ksync

import (
	"sync"

	"pintos.dev/userprog/pkg/errors/linuxerr"
)

// Lock is a non-recursive lock owned by the Waiter that acquired it.
type Lock struct {
	sema Semaphore

	// mu protects holder.
	mu     sync.Mutex
	holder Waiter
}

// NewLock returns an unlocked lock.
func NewLock() *Lock {
	return &Lock{sema: Semaphore{value: 1}}
}

// Acquire blocks until w holds the lock. It fails with EDEADLK if w already
// holds it, and with linuxerr.ErrInterrupted if w is interrupted.
func (l *Lock) Acquire(w Waiter) error {
	if l.HeldBy(w) {
		return linuxerr.EDEADLK
	}
	if err := l.sema.Down(w); err != nil {
		return err
	}
	l.mu.Lock()
	l.holder = w
	l.mu.Unlock()
	return nil
}

// Release releases the lock. It fails with EPERM if w does not hold it.
func (l *Lock) Release(w Waiter) error {
	l.mu.Lock()
	if l.holder == nil || l.holder != w {
		l.mu.Unlock()
		return linuxerr.EPERM
	}
	l.holder = nil
	l.mu.Unlock()
	l.sema.Up()
	return nil
}

// HeldBy returns true if w holds the lock.
func (l *Lock) HeldBy(w Waiter) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder != nil && l.holder == w
}

// Waiters returns the number of callers blocked in Acquire.
func (l *Lock) Waiters() int {
	return l.sema.Waiters()
}
