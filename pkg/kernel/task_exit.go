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
	"pintos.dev/userprog/pkg/errors/linuxerr"
)

// exitProcess terminates the process of t with status. It does not return.
//
// The first thread to exit a process owns the exit: it dooms its siblings
// and waits for their goroutines to end, prints the exit message, closes
// the descriptors, releases the synchronization objects and the address
// space, detaches the children and publishes status to the parent. Any
// later caller just ends its own thread.
func (t *Thread) exitProcess(status int32) {
	p := t.p
	if !p.beginExit(status) {
		t.exitThread()
	}
	t.Debugf("Exiting process %v with status %d", p, status)

	for _, sibling := range p.siblings(t) {
		<-sibling.dead
	}

	if !t.k.isHalted() {
		t.k.console.Printf("%s: exit(%d)\n", p.name, status)
	}

	t.k.fsLock.Lock(int32(t.tid))
	for _, file := range p.fds.RemoveAll() {
		file.Close()
	}
	t.k.fsLock.Unlock()

	p.sync.release()
	p.mm.Release()

	p.childrenMu.Lock()
	children := p.children
	p.children = nil
	p.childrenMu.Unlock()
	for _, rec := range children {
		rec.detach()
		rec.DecRef()
	}

	p.record.exit(status)
	p.record.DecRef()
	t.k.removeProcess(p)
	t.exitThread()
}

// siblings returns every thread of p other than t whose goroutine may still
// be running.
func (p *Process) siblings(t *Thread) []*Thread {
	p.threadsMu.Lock()
	defer p.threadsMu.Unlock()
	var ts []*Thread
	for _, other := range p.threads {
		if other != t {
			ts = append(ts, other)
		}
	}
	return ts
}

// Wait blocks until the child pid exits and returns its exit status. It
// fails with ECHILD at once if pid is not a child of the caller, has already
// been waited for, or is being waited for by another thread.
func (t *Thread) Wait(pid ThreadID) (int32, error) {
	p := t.p
	p.childrenMu.Lock()
	rec, ok := p.children[pid]
	if !ok || rec.waiting {
		p.childrenMu.Unlock()
		return -1, linuxerr.ECHILD
	}
	rec.waiting = true
	p.childrenMu.Unlock()

	select {
	case <-rec.exited:
	case <-p.dying:
		p.childrenMu.Lock()
		rec.waiting = false
		p.childrenMu.Unlock()
		return -1, linuxerr.ErrInterrupted
	}

	p.childrenMu.Lock()
	delete(p.children, pid)
	p.childrenMu.Unlock()
	status := rec.exitStatus()
	rec.DecRef()
	return status, nil
}
