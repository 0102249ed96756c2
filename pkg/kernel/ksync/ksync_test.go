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
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"
	"pintos.dev/userprog/pkg/errors/linuxerr"
)

type testWaiter struct {
	pri  int
	intr chan struct{}
}

func newTestWaiter(pri int) *testWaiter {
	return &testWaiter{pri: pri, intr: make(chan struct{})}
}

func (w *testWaiter) Priority() int                { return w.pri }
func (w *testWaiter) Interrupted() <-chan struct{} { return w.intr }

// waitForWaiters polls until n callers are blocked on s.
func waitForWaiters(t *testing.T, s *Semaphore, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.Waiters() != n {
		if time.Now().After(deadline) {
			t.Fatalf("got %d waiters, want %d", s.Waiters(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSemaphorePriorityOrder(t *testing.T) {
	const base = 31
	s := NewSemaphore(0)
	woken := make(chan int)
	var eg errgroup.Group
	for _, pri := range []int{base, base + 1, base + 2} {
		w := newTestWaiter(pri)
		eg.Go(func() error {
			if err := s.Down(w); err != nil {
				return err
			}
			woken <- w.pri
			return nil
		})
	}
	waitForWaiters(t, s, 3)

	var order []int
	for i := 0; i < 3; i++ {
		s.Up()
		order = append(order, <-woken)
	}
	if err := eg.Wait(); err != nil {
		t.Fatalf("Down failed: %v", err)
	}
	if diff := cmp.Diff([]int{base + 2, base + 1, base}, order); diff != "" {
		t.Errorf("wakeup order mismatch (-want +got):\n%s", diff)
	}
	if got := s.Value(); got != 0 {
		t.Errorf("Value() = %d after hand-off, want 0", got)
	}
}

func TestSemaphoreFIFOAmongEquals(t *testing.T) {
	s := NewSemaphore(0)
	woken := make(chan int)
	for i := 0; i < 3; i++ {
		w := newTestWaiter(10)
		id := i
		go func() {
			s.Down(w)
			woken <- id
		}()
		waitForWaiters(t, s, i+1)
	}
	for want := 0; want < 3; want++ {
		s.Up()
		if got := <-woken; got != want {
			t.Errorf("woke waiter %d, want %d", got, want)
		}
	}
}

func TestSemaphoreInterrupt(t *testing.T) {
	s := NewSemaphore(0)
	w := newTestWaiter(1)
	errc := make(chan error)
	go func() { errc <- s.Down(w) }()
	waitForWaiters(t, s, 1)
	close(w.intr)
	if err := <-errc; err != linuxerr.ErrInterrupted {
		t.Errorf("Down: got %v, want %v", err, linuxerr.ErrInterrupted)
	}
	if s.Waiters() != 0 {
		t.Errorf("interrupted waiter still queued")
	}
	s.Up()
	if got := s.Value(); got != 1 {
		t.Errorf("Value after an interrupted Down and Up got %d, want 1", got)
	}
}

func TestLockMisuse(t *testing.T) {
	l := NewLock()
	a, b := newTestWaiter(1), newTestWaiter(1)
	if err := l.Release(a); err != linuxerr.EPERM {
		t.Errorf("Release of a free lock: got %v, want %v", err, linuxerr.EPERM)
	}
	if err := l.Acquire(a); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := l.Acquire(a); err != linuxerr.EDEADLK {
		t.Errorf("recursive Acquire: got %v, want %v", err, linuxerr.EDEADLK)
	}
	if err := l.Release(b); err != linuxerr.EPERM {
		t.Errorf("Release by non-holder: got %v, want %v", err, linuxerr.EPERM)
	}
	if !l.HeldBy(a) || l.HeldBy(b) {
		t.Errorf("HeldBy(a) = %t, HeldBy(b) = %t; want true, false", l.HeldBy(a), l.HeldBy(b))
	}
	if err := l.Release(a); err != nil {
		t.Errorf("Release failed: %v", err)
	}
}

func TestLockHandOff(t *testing.T) {
	l := NewLock()
	owner, next := newTestWaiter(1), newTestWaiter(5)
	if err := l.Acquire(owner); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	acquired := make(chan error)
	go func() { acquired <- l.Acquire(next) }()
	waitForWaiters(t, &l.sema, 1)
	if err := l.Release(owner); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := <-acquired; err != nil {
		t.Fatalf("blocked Acquire failed: %v", err)
	}
	if !l.HeldBy(next) {
		t.Errorf("lock not handed to the waiter")
	}
}
