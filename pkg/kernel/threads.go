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
	"fmt"

	"pintos.dev/userprog/pkg/abi/pintos"
)

// ThreadID is a generic thread identifier. The pid of a process is the tid
// of its main thread.
type ThreadID int32

// String returns a decimal representation of the ThreadID.
func (tid ThreadID) String() string {
	return fmt.Sprintf("%d", tid)
}

// InitTID is the TID given to the initial process.
const InitTID ThreadID = 1

// TIDError is returned in place of a tid on failure.
const TIDError = ThreadID(pintos.TIDError)

// allocTID returns a fresh tid. Tids are never reused.
func (k *Kernel) allocTID() ThreadID {
	return ThreadID(k.nextTID.Add(1))
}

// Stats counts the live objects of a kernel.
type Stats struct {
	// Processes is the number of processes that have not finished exiting.
	Processes int

	// Threads is the number of running thread goroutines.
	Threads int

	// ChildRecords is the number of exit status records not yet freed.
	ChildRecords int64
}

// Stats returns a snapshot of the live object counts.
func (k *Kernel) Stats() Stats {
	k.mu.Lock()
	defer k.mu.Unlock()
	return Stats{
		Processes:    len(k.processes),
		Threads:      len(k.threads),
		ChildRecords: k.records.Load(),
	}
}

// Process returns the live process pid.
func (k *Kernel) Process(pid ThreadID) (*Process, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	p, ok := k.processes[pid]
	return p, ok
}

// Thread returns the running thread tid.
func (k *Kernel) Thread(tid ThreadID) (*Thread, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, ok := k.threads[tid]
	return t, ok
}

func (k *Kernel) addProcess(p *Process) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.processes[p.pid] = p
	if k.isHalted() {
		p.doom()
	}
}

func (k *Kernel) removeProcess(p *Process) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.processes, p.pid)
}

// start runs t on a new goroutine.
func (k *Kernel) start(t *Thread) {
	k.mu.Lock()
	k.threads[t.tid] = t
	k.mu.Unlock()
	k.running.Add(1)
	go t.run()
}

// threadExited is called by the goroutine of t as it ends.
func (k *Kernel) threadExited(t *Thread) {
	k.mu.Lock()
	delete(k.threads, t.tid)
	k.mu.Unlock()
	k.running.Done()
}

// WaitExited blocks until every thread goroutine has ended.
func (k *Kernel) WaitExited() {
	k.running.Wait()
}
