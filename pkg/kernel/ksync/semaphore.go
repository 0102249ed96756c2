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

// Package ksync implements the kernel synchronization primitives exposed to
// user programs: counting semaphores and non-recursive locks.
//
// Blocked callers are woken highest priority first, FIFO among callers of
// equal priority. A wakeup hands the unit directly to the woken caller, so a
// newcomer cannot take it in between.
package ksync

import (
	"sync"

	"pintos.dev/userprog/pkg/errors/linuxerr"
)

// Waiter is a thread that may block on a primitive.
type Waiter interface {
	// Priority returns the current scheduling priority of the waiter.
	Priority() int

	// Interrupted returns a channel that is closed when the waiter must
	// stop waiting.
	Interrupted() <-chan struct{}
}

// waiter represents a caller that is waiting for the semaphore value to
// become positive.
type waiter struct {
	w Waiter

	// seq orders waiters of equal priority.
	seq uint64

	// ch is closed when the unit has been handed to this waiter.
	ch chan struct{}
}

// Semaphore is a counting semaphore.
type Semaphore struct {
	// mu protects all fields below.
	mu      sync.Mutex
	value   uint32
	waiters []*waiter
	seq     uint64
}

// NewSemaphore returns a semaphore with the given initial value.
func NewSemaphore(value uint32) *Semaphore {
	return &Semaphore{value: value}
}

// Down decrements the semaphore, blocking while its value is zero. It returns
// linuxerr.ErrInterrupted if w is interrupted before a unit is available.
func (s *Semaphore) Down(w Waiter) error {
	s.mu.Lock()
	if s.value > 0 {
		s.value--
		s.mu.Unlock()
		return nil
	}
	wt := &waiter{w: w, seq: s.seq, ch: make(chan struct{})}
	s.seq++
	s.waiters = append(s.waiters, wt)
	s.mu.Unlock()

	select {
	case <-wt.ch:
		return nil
	case <-w.Interrupted():
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeLocked(wt) {
		return linuxerr.ErrInterrupted
	}
	// The unit was handed over while we were being interrupted. Pass it on.
	s.upLocked()
	return linuxerr.ErrInterrupted
}

// Up increments the semaphore, or hands the unit to the highest priority
// waiter if there is one.
func (s *Semaphore) Up() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upLocked()
}

// Preconditions: s.mu is locked.
func (s *Semaphore) upLocked() {
	if len(s.waiters) == 0 {
		s.value++
		return
	}
	best := 0
	for i, wt := range s.waiters[1:] {
		cur, pri := s.waiters[best], wt.w.Priority()
		if pri > cur.w.Priority() || (pri == cur.w.Priority() && wt.seq < cur.seq) {
			best = i + 1
		}
	}
	wt := s.waiters[best]
	s.waiters = append(s.waiters[:best], s.waiters[best+1:]...)
	close(wt.ch)
}

// removeLocked removes wt from the waiter list. It returns false if wt was
// already woken.
//
// Preconditions: s.mu is locked.
func (s *Semaphore) removeLocked(wt *waiter) bool {
	for i, cur := range s.waiters {
		if cur == wt {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// Value returns the current value.
func (s *Semaphore) Value() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Waiters returns the number of blocked callers.
func (s *Semaphore) Waiters() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}
