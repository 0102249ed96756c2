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
	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/cleanup"
	"pintos.dev/userprog/pkg/errors/linuxerr"
)

// Execute starts cmdline as a child process of t and returns its pid.
//
// The program is loaded before anything else is created: if loading fails
// Execute returns ENOEXEC and no child exists. Otherwise the child record is
// registered before the child starts, so the child may exit at any time
// after Execute returns.
func (t *Thread) Execute(cmdline string) (ThreadID, error) {
	img, err := t.k.loader.Load(t.k.ctx, cmdline)
	if err != nil {
		t.Debugf("Exec %q failed: %v", cmdline, err)
		return TIDError, linuxerr.ENOEXEC
	}

	tid := t.k.allocTID()
	rec := t.k.newChildRecord(tid)
	child := t.k.newProcess(img.Name, img.MM, tid, rec, NewFDTable(t.k.maxOpenFiles))
	child.parent.Store(t.p)
	child.main = child.newThread(tid, 0, pintos.PriDefault, img.Regs)
	t.p.addChild(rec)
	t.Debugf("Exec %q as %v", cmdline, child)
	t.k.startProcess(child)
	return tid, nil
}

// Fork starts a copy of the process of t and returns the pid of the copy.
//
// The copy has a deep copy of the address space and a copy of the
// descriptor table with independent file positions. Its only thread resumes
// where t trapped, on the same stack, with EAX set to 0.
func (t *Thread) Fork() (ThreadID, error) {
	p := t.p
	as, err := p.mm.Fork()
	if err != nil {
		return TIDError, linuxerr.ENOMEM
	}
	cu := cleanup.Make(as.Release)
	defer cu.Clean()

	// Stacks of the other threads are not part of the copy.
	p.threadsMu.Lock()
	for slot, other := range p.slots {
		if other != nil && slot != t.slot {
			top := slotTop(slot)
			as.Unmap(top-pintos.MaxStackPages*pintos.PageSize, pintos.MaxStackPages*pintos.PageSize)
		}
	}
	p.threadsMu.Unlock()

	t.k.fsLock.Lock(int32(t.tid))
	fds, err := p.fds.Fork()
	t.k.fsLock.Unlock()
	if err != nil {
		t.Debugf("Fork of descriptor table failed: %v", err)
		return TIDError, linuxerr.ENOMEM
	}

	tid := t.k.allocTID()
	rec := t.k.newChildRecord(tid)
	child := t.k.newProcess(p.name, as, tid, rec, fds)
	child.parent.Store(p)
	regs := t.cpu.Registers
	regs.EAX = 0
	child.main = child.newThread(tid, t.slot, int32(t.Priority()), regs)
	cu.Release()

	p.addChild(rec)
	t.Debugf("Forked %v", child)
	t.k.startProcess(child)
	return tid, nil
}
