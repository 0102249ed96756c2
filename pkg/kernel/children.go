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
	"sync"

	"pintos.dev/userprog/pkg/refs"
)

// childRecordRefType is the leak checking type of child records.
const childRecordRefType = "kernel.childRecord"

// childRecord is the exit status of a process, shared by the process and
// its parent. It starts with two references, one for each side, and is
// freed when both have dropped theirs.
type childRecord struct {
	refs.AtomicRefCount

	k *Kernel

	// pid is immutable.
	pid ThreadID

	// exited is closed when the process has exited. status is valid after
	// that.
	exited chan struct{}

	// mu protects below.
	mu sync.Mutex

	status    int32
	hasExited bool

	// waiting is set while the parent waits on the record.
	waiting bool

	// child is the live process, or nil once it has exited.
	child *Process
}

var _ refs.CheckedObject = (*childRecord)(nil)

func (k *Kernel) newChildRecord(pid ThreadID) *childRecord {
	rec := &childRecord{
		k:      k,
		pid:    pid,
		exited: make(chan struct{}),
	}
	rec.IncRef()
	k.records.Add(1)
	refs.Register(rec)
	return rec
}

// RefType implements refs.CheckedObject.RefType.
func (r *childRecord) RefType() string {
	return childRecordRefType
}

// LeakMessage implements refs.CheckedObject.LeakMessage.
func (r *childRecord) LeakMessage() string {
	return fmt.Sprintf("[%s %p] pid %d: %d references", r.RefType(), r, r.pid, r.ReadRefs())
}

// DecRef drops a reference and frees the record with the last one.
func (r *childRecord) DecRef() {
	r.DecRefWithDestructor(func() {
		r.k.records.Add(-1)
		refs.Unregister(r)
	})
}

// exit records status and wakes the parent.
func (r *childRecord) exit(status int32) {
	r.mu.Lock()
	r.status = status
	r.hasExited = true
	r.child = nil
	r.mu.Unlock()
	close(r.exited)
}

// detach clears the parent pointer of the live child, if any.
func (r *childRecord) detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.child != nil {
		r.child.parent.Store(nil)
	}
}

func (r *childRecord) exitStatus() int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}
